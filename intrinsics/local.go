package intrinsics

import "go.uber.org/zap"

// LocalHandler is the in-process Handler used when a client executes
// outside the specializer. Registers and globals are emulated so an
// instrumented loop behaves identically whether or not a specialization
// pass is watching; everything else logs and returns. Not safe for
// concurrent use.
type LocalHandler struct {
	regs    map[uint64]uint64
	globals map[uint64]uint64
	ctx     []uint32

	abortLine  uint32
	abortFatal bool
	aborted    bool
}

var _ Handler = (*LocalHandler)(nil)

// NewLocalHandler creates a handler with empty state.
func NewLocalHandler() *LocalHandler {
	return &LocalHandler{
		regs:    make(map[uint64]uint64),
		globals: make(map[uint64]uint64),
	}
}

func (h *LocalHandler) PushContext(pc uint32) {
	h.ctx = append(h.ctx, pc)
}

func (h *LocalHandler) UpdateContext(pc uint32) {
	if len(h.ctx) > 0 {
		h.ctx[len(h.ctx)-1] = pc
	}
}

func (h *LocalHandler) PopContext() {
	if len(h.ctx) > 0 {
		h.ctx = h.ctx[:len(h.ctx)-1]
	}
}

func (h *LocalHandler) ContextBucket(bucket uint32) {}

// Contexts returns the current context stack, oldest first.
func (h *LocalHandler) Contexts() []uint32 {
	out := make([]uint32, len(h.ctx))
	copy(out, h.ctx)
	return out
}

func (h *LocalHandler) ReadReg(idx uint64) uint64 {
	return h.regs[idx]
}

func (h *LocalHandler) WriteReg(idx uint64, value uint64) {
	h.regs[idx] = value
}

func (h *LocalHandler) ReadGlobal(idx uint64) uint64 {
	return h.globals[idx]
}

func (h *LocalHandler) WriteGlobal(idx uint64, value uint64) {
	h.globals[idx] = value
}

func (h *LocalHandler) ReadSpecializationGlobal(idx uint32) uint64 {
	return h.globals[uint64(idx)]
}

// SpecializeValue is the identity outside a specialization pass.
func (h *LocalHandler) SpecializeValue(value, lo, hi uint32) uint32 {
	return value
}

func (h *LocalHandler) TraceLine(line uint32) {
	Logger().Debug("trace", zap.Uint32("line", line))
}

func (h *LocalHandler) AssertConst32(value, line uint32) {}

func (h *LocalHandler) AssertSpecialized(line uint32) {}

func (h *LocalHandler) ReachableAtDepth(depth uint32) {}

// AbortSpecialization records that the loop asked the specializer to give
// up at the given line. A fatal abort is an instrumentation bug worth
// surfacing even in local runs.
func (h *LocalHandler) AbortSpecialization(line, fatal uint32) {
	h.aborted = true
	h.abortLine = line
	h.abortFatal = fatal != 0
	if h.abortFatal {
		Logger().Warn("fatal specialization abort",
			zap.Uint32("line", line))
	}
}

// Aborted reports whether AbortSpecialization was called, with the line
// and fatality of the most recent call.
func (h *LocalHandler) Aborted() (line uint32, fatal, ok bool) {
	return h.abortLine, h.abortFatal, h.aborted
}

func (h *LocalHandler) Print(message string, line, value uint32) {
	Logger().Info("guest print",
		zap.String("message", message),
		zap.Uint32("line", line),
		zap.Uint32("value", value))
}
