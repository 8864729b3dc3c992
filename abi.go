package wevalruntime

import (
	"strconv"
	"strings"
)

// ModuleName is the wasm import module under which every interpreter
// intrinsic is resolved, and the prefix of every registration export.
const ModuleName = "weval"

// Registration surface export names. The external specializer locates
// protocol state in a compiled artifact through these fixed symbols: each
// is a nullary function returning the address of the named object.
const (
	// ExportPendingHead names the export returning the address of the
	// pending request queue's head pointer.
	ExportPendingHead = "weval.pending.head"

	// ExportSpecializedFlag names the export returning the address of the
	// mode flag ("is wevaled"): zero while collecting, nonzero once a
	// lookup table has been installed.
	ExportSpecializedFlag = "weval.is.wevaled"

	// ExportLookupTable names the export returning the address of the
	// lookup table descriptor (entry array pointer + entry count).
	ExportLookupTable = "weval.lookup.table"
)

// targetExportPrefix prefixes the per-identity target exports
// ("weval.func.<index>").
const targetExportPrefix = "weval.func."

// TargetExport returns the registration export name for a function
// identity, e.g. TargetExport(3) == "weval.func.3". The export is a nullary
// function returning the address of the generic implementation.
func TargetExport(index uint32) string {
	return targetExportPrefix + strconv.FormatUint(uint64(index), 10)
}

// ParseTargetExport extracts the function identity from a target export
// name. It returns false for names outside the target scheme.
func ParseTargetExport(name string) (uint32, bool) {
	rest, ok := strings.CutPrefix(name, targetExportPrefix)
	if !ok || rest == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(rest, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}

// ValKind is a scalar wasm value type. Intrinsics never carry compound
// types: every parameter and result is one of these four.
type ValKind byte

const (
	ValI32 ValKind = iota
	ValI64
	ValF32
	ValF64
)

func (k ValKind) String() string {
	switch k {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	}
	return "val(" + strconv.Itoa(int(k)) + ")"
}

// Sig describes one intrinsic: its import name under ModuleName and its
// fixed scalar signature.
type Sig struct {
	Name    string
	Params  []ValKind
	Results []ValKind
}

// Intrinsic import names. The core set mirrors the client header; the
// virtual-stack and local hints are recognized by the specializer for
// instrumented interpreter loops that mirror their operand stacks and
// locals into specialization-time state.
const (
	IntrPushContext   = "push.context"
	IntrPopContext    = "pop.context"
	IntrUpdateContext = "update.context"
	IntrContextBucket = "context.bucket"

	IntrReadReg     = "read.reg"
	IntrWriteReg    = "write.reg"
	IntrReadGlobal  = "read.global"
	IntrWriteGlobal = "write.global"

	IntrSpecializeValue = "specialize.value"

	IntrTraceLine           = "trace.line"
	IntrAbortSpecialization = "abort.specialization"
	IntrAssertConst32       = "assert.const32"
	IntrAssertSpecialized   = "assert.specialized"
	IntrReachableAtDepth    = "reachable.at.depth"
	IntrPrint               = "print"

	// Tool-generation global accessor; older clients import IntrReadGlobal
	// instead. Both are served.
	IntrReadSpecializationGlobal = "read.specialization.global"

	IntrPushStack  = "push.stack"
	IntrPopStack   = "pop.stack"
	IntrReadStack  = "read.stack"
	IntrWriteStack = "write.stack"
	IntrSyncStack  = "sync.stack"
	IntrReadLocal  = "read.local"
	IntrWriteLocal = "write.local"
)

// intrinsicSigs is the fixed intrinsic ABI. Order matches the original
// specializer's discovery list; signatures must not change.
var intrinsicSigs = []Sig{
	{IntrReadReg, []ValKind{ValI64}, []ValKind{ValI64}},
	{IntrWriteReg, []ValKind{ValI64, ValI64}, nil},
	{IntrPushContext, []ValKind{ValI32}, nil},
	{IntrPopContext, nil, nil},
	{IntrUpdateContext, []ValKind{ValI32}, nil},
	{IntrContextBucket, []ValKind{ValI32}, nil},
	{IntrAbortSpecialization, []ValKind{ValI32, ValI32}, nil},
	{IntrReachableAtDepth, []ValKind{ValI32}, nil},
	{IntrTraceLine, []ValKind{ValI32}, nil},
	{IntrAssertConst32, []ValKind{ValI32, ValI32}, nil},
	{IntrAssertSpecialized, []ValKind{ValI32}, nil},
	{IntrSpecializeValue, []ValKind{ValI32, ValI32, ValI32}, []ValKind{ValI32}},
	{IntrPrint, []ValKind{ValI32, ValI32, ValI32}, nil},
	{IntrReadGlobal, []ValKind{ValI64}, []ValKind{ValI64}},
	{IntrWriteGlobal, []ValKind{ValI64, ValI64}, nil},
	{IntrReadSpecializationGlobal, []ValKind{ValI32}, []ValKind{ValI64}},
	{IntrPushStack, []ValKind{ValI32, ValI64}, nil},
	{IntrSyncStack, nil, nil},
	{IntrReadStack, []ValKind{ValI32, ValI32}, []ValKind{ValI64}},
	{IntrWriteStack, []ValKind{ValI32, ValI32, ValI64}, nil},
	{IntrPopStack, []ValKind{ValI32}, []ValKind{ValI64}},
	{IntrReadLocal, []ValKind{ValI32, ValI32}, []ValKind{ValI64}},
	{IntrWriteLocal, []ValKind{ValI32, ValI32, ValI64}, nil},
}

// Intrinsics returns the fixed intrinsic signature table. Callers must
// treat the returned slice as read-only.
func Intrinsics() []Sig {
	return intrinsicSigs
}

// IntrinsicSig returns the signature for a single intrinsic name.
func IntrinsicSig(name string) (Sig, bool) {
	for _, s := range intrinsicSigs {
		if s.Name == name {
			return s, true
		}
	}
	return Sig{}, false
}
