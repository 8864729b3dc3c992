// Package intrinsics defines the contract between instrumented
// interpreter loops and the external specializer: a fixed set of narrow
// operations the loop calls to expose its control and data state. During
// a specialization pass these calls are observed by the specializer, not
// executed; whenever a client actually runs (training runs, native
// interpreters, tests) they are routed to a Handler.
package intrinsics

// Handler receives interpreter intrinsic calls. Implementations define
// what the calls do outside a specialization pass; LocalHandler is the
// standard in-process choice. None of the operations touch the request
// protocol's data structures.
//
// The virtual-stack and local mirror hints (push.stack, pop.stack,
// read.local and friends) are not part of the contract: their operands
// include a guest pointer to the mirrored slot, and the host module
// services them against guest memory directly.
type Handler interface {
	// Context tracking. A context is a program-location value the loop
	// pushes when it enters a specializable region, updates as it moves,
	// and pops on the way out. ContextBucket groups contexts for the
	// specializer's bookkeeping.
	PushContext(pc uint32)
	UpdateContext(pc uint32)
	PopContext()
	ContextBucket(bucket uint32)

	// Numbered register and global slots the loop exposes so their values
	// can be promoted to specialization-time constants. Reads of slots
	// never written yield zero.
	ReadReg(idx uint64) uint64
	WriteReg(idx uint64, value uint64)
	ReadGlobal(idx uint64) uint64
	WriteGlobal(idx uint64, value uint64)
	ReadSpecializationGlobal(idx uint32) uint64

	// SpecializeValue hints that value stays within [lo, hi), asking the
	// specializer to treat it as a small enumerable domain. It returns
	// the value itself.
	SpecializeValue(value, lo, hi uint32) uint32

	// Diagnostics.
	TraceLine(line uint32)
	AssertConst32(value, line uint32)
	AssertSpecialized(line uint32)
	ReachableAtDepth(depth uint32)
	AbortSpecialization(line, fatal uint32)
	Print(message string, line, value uint32)
}
