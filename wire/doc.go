// Package wire reads and writes the specialization protocol structures in
// wasm32 linear memory.
//
// Client modules keep three globals that the registration exports expose by
// address: the pending request list head ("weval.pending.head"), the
// specialized-run flag ("weval.is.wevaled"), and the lookup table descriptor
// ("weval.lookup.table"). A specializer harvests pending requests from a
// memory snapshot taken after the training run and installs the resulting
// table back into the image used for resolved runs. All fields are
// little-endian and pointers are 32-bit, so every structure has a fixed
// byte layout:
//
//	request node (28 bytes)        lookup entry (16 bytes)
//	  0  next                        0  func_id
//	  4  prev                        4  argbuf
//	  8  func_id                     8  arglen
//	 12  func                       12  specialized
//	 16  argbuf
//	 20  arglen                     table descriptor (8 bytes)
//	 24  specialized                 0  entries
//	                                 4  nentries
//
// Image wraps a flat byte snapshot in the Memory interface so the same
// accessors work against captured images and live instance memory.
package wire
