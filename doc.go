// Package wevalruntime provides runtime support for ahead-of-time
// specialization (partial evaluation) of bytecode interpreters compiled to
// WebAssembly, compatible with the weval request protocol.
//
// A program that wants a function specialized builds a request naming the
// function's stable identity and the arguments to fix ("train" phase). An
// external specializer later consumes the collected requests, produces
// compiled variants, and installs a sorted lookup table; on the next run the
// same requests resolve directly to specialized function pointers ("resolved"
// phase).
//
// # Architecture Overview
//
// The library is organized into several packages with distinct
// responsibilities:
//
//	wevalruntime/        Root package with the ABI name tables and the
//	                     Memory interface shared by all views of the protocol
//	├── guest/           Client-side core: argument encoding, the pending
//	│                    request queue, and the mode-switched dispatcher
//	├── lookup/          Sorted specialization lookup table and matching
//	├── intrinsics/      Interpreter intrinsics surface for instrumented
//	│                    interpreter loops, with generic-execution stubs
//	├── wire/            Byte-exact codec for the protocol's in-memory
//	│                    layouts (request chains, lookup tables, mode flag)
//	├── host/            wazero integration: the "weval" host module and
//	│                    guest introspection over the registration surface
//	└── errors/          Structured error types
//
// # Quick Start
//
// Collect a specialization request during a training run:
//
//	st := guest.Collect()
//	st.Targets().Define(1, Interpret)
//
//	var slot guest.Slot
//	h, err := st.Request(&slot, Interpret, 1,
//	    guest.Memory(bytecode),
//	    guest.I32(uint32(len(bytecode))),
//	    guest.RuntimeArg(),
//	)
//
// Resolve the same request once a lookup table has been installed:
//
//	st := guest.Resolve(table)
//	st.Request(&slot, Interpret, 1, args...)
//	if fn, ok := guest.As[InterpretFunc](&slot); ok {
//	    return fn(bytecode, state) // specialized body
//	}
//	return Interpret(bytecode, state) // generic fallback
//
// # Wire Compatibility
//
// The encoded argument buffer doubles as the request's cache key and is part
// of the wire contract with the external specializer: identical logical
// argument sequences produce byte-identical buffers across process images.
// The wire package exposes the same layouts against raw guest memory so host
// tooling can harvest pending requests and install lookup tables in a live
// wazero instance or a memory image snapshot.
//
// # Concurrency
//
// The protocol is single-threaded: collecting and resolving are two
// disjoint process lifetimes, and no operation suspends. None of the
// guest-side types are safe for concurrent use.
package wevalruntime
