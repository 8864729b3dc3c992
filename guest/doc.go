// Package guest implements the client side of the specialization request
// protocol: typed argument lists encoded into canonical keys, the pending
// request queue populated during a collecting run, and the dispatcher
// that resolves requests against a specializer-built lookup table.
//
// A State carries all protocol state for one process image. Its mode is
// fixed at construction: Collect() queues every submitted request,
// Resolve(table) matches each request immediately and writes hits into
// the caller's Slot. Client code is identical in both modes:
//
//	st.Targets().Define(1, Interpret)
//	var slot guest.Slot
//	h, err := st.Request(&slot, Interpret, 1,
//		guest.Memory(code),
//		guest.I32(uint32(len(code))),
//		guest.RuntimeArg(),
//	)
//
// After resolving, guest.As recovers the typed function from the slot and
// falls back to the generic implementation on a miss.
package guest
