package host

import (
	"bytes"
	"context"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	wevalruntime "github.com/wippyai/weval-runtime"
	"github.com/wippyai/weval-runtime/errors"
	"github.com/wippyai/weval-runtime/intrinsics"
)

// maxPrintLen caps the message read by the print intrinsic. Longer or
// unterminated strings truncate.
const maxPrintLen = 4096

// Instantiate registers the "weval" intrinsic module in r, routing every
// intrinsic to h, and instantiates it. Client modules instantiated in the
// same runtime afterwards link their weval imports against it.
func Instantiate(ctx context.Context, r wazero.Runtime, h intrinsics.Handler) (api.Module, error) {
	if h == nil {
		return nil, errors.InvalidInput(errors.PhaseHost, "nil intrinsics handler")
	}

	builder := r.NewHostModuleBuilder(wevalruntime.ModuleName)
	for _, sig := range wevalruntime.Intrinsics() {
		fn, ok := bind(h, sig.Name)
		if !ok {
			return nil, errors.NotFound(errors.PhaseHost, "intrinsic binding", sig.Name)
		}
		builder = builder.NewFunctionBuilder().
			WithGoModuleFunction(fn, valueTypes(sig.Params), valueTypes(sig.Results)).
			Export(sig.Name)
	}

	mod, err := builder.Instantiate(ctx)
	if err != nil {
		return nil, errors.Instantiation(err)
	}
	Logger().Debug("instantiated intrinsic module",
		zap.String("module", wevalruntime.ModuleName),
		zap.Int("intrinsics", len(wevalruntime.Intrinsics())))
	return mod, nil
}

// VerifyImports checks that every import of the "weval" module in a
// compiled client is a known intrinsic with the expected signature.
// Imports from other modules are ignored.
func VerifyImports(compiled wazero.CompiledModule) error {
	var unknown []string
	for _, fn := range compiled.ImportedFunctions() {
		modName, name, _ := fn.Import()
		if modName != wevalruntime.ModuleName {
			continue
		}
		sig, ok := wevalruntime.IntrinsicSig(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		if !typesEqual(fn.ParamTypes(), sig.Params) || !typesEqual(fn.ResultTypes(), sig.Results) {
			return errors.TypeMismatch(errors.PhaseHost, []string{name},
				typesName(fn.ParamTypes(), fn.ResultTypes()),
				typesName(valueTypes(sig.Params), valueTypes(sig.Results)))
		}
	}
	if len(unknown) > 0 {
		return errors.NewUnknownIntrinsicsError(unknown)
	}
	return nil
}

// bind routes one intrinsic to its Handler method, except for the stack
// and local hints, which read and write guest memory. The stack
// convention is wazero's: params in order, then results written from
// index 0.
func bind(h intrinsics.Handler, name string) (api.GoModuleFunc, bool) {
	switch name {
	case wevalruntime.IntrPushContext:
		return func(_ context.Context, _ api.Module, stack []uint64) {
			h.PushContext(uint32(stack[0]))
		}, true
	case wevalruntime.IntrPopContext:
		return func(_ context.Context, _ api.Module, _ []uint64) {
			h.PopContext()
		}, true
	case wevalruntime.IntrUpdateContext:
		return func(_ context.Context, _ api.Module, stack []uint64) {
			h.UpdateContext(uint32(stack[0]))
		}, true
	case wevalruntime.IntrContextBucket:
		return func(_ context.Context, _ api.Module, stack []uint64) {
			h.ContextBucket(uint32(stack[0]))
		}, true
	case wevalruntime.IntrReadReg:
		return func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = h.ReadReg(stack[0])
		}, true
	case wevalruntime.IntrWriteReg:
		return func(_ context.Context, _ api.Module, stack []uint64) {
			h.WriteReg(stack[0], stack[1])
		}, true
	case wevalruntime.IntrReadGlobal:
		return func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = h.ReadGlobal(stack[0])
		}, true
	case wevalruntime.IntrWriteGlobal:
		return func(_ context.Context, _ api.Module, stack []uint64) {
			h.WriteGlobal(stack[0], stack[1])
		}, true
	case wevalruntime.IntrReadSpecializationGlobal:
		return func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = h.ReadSpecializationGlobal(uint32(stack[0]))
		}, true
	case wevalruntime.IntrSpecializeValue:
		return func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = uint64(h.SpecializeValue(uint32(stack[0]), uint32(stack[1]), uint32(stack[2])))
		}, true
	// Stack and local mirror hints carry a guest pointer to the mirrored
	// slot. Generic execution moves the value through that pointer; the
	// index operand is advisory and only read by the specializer.
	case wevalruntime.IntrPushStack:
		return func(_ context.Context, mod api.Module, stack []uint64) {
			storeSlot(mod, uint32(stack[0]), stack[1])
		}, true
	case wevalruntime.IntrPopStack:
		return func(_ context.Context, mod api.Module, stack []uint64) {
			stack[0] = loadSlot(mod, uint32(stack[0]))
		}, true
	case wevalruntime.IntrReadStack:
		return func(_ context.Context, mod api.Module, stack []uint64) {
			stack[0] = loadSlot(mod, uint32(stack[1]))
		}, true
	case wevalruntime.IntrWriteStack:
		return func(_ context.Context, mod api.Module, stack []uint64) {
			storeSlot(mod, uint32(stack[1]), stack[2])
		}, true
	case wevalruntime.IntrSyncStack:
		return func(_ context.Context, _ api.Module, _ []uint64) {}, true
	case wevalruntime.IntrReadLocal:
		return func(_ context.Context, mod api.Module, stack []uint64) {
			stack[0] = loadSlot(mod, uint32(stack[1]))
		}, true
	case wevalruntime.IntrWriteLocal:
		return func(_ context.Context, mod api.Module, stack []uint64) {
			storeSlot(mod, uint32(stack[1]), stack[2])
		}, true
	case wevalruntime.IntrTraceLine:
		return func(_ context.Context, _ api.Module, stack []uint64) {
			h.TraceLine(uint32(stack[0]))
		}, true
	case wevalruntime.IntrAssertConst32:
		return func(_ context.Context, _ api.Module, stack []uint64) {
			h.AssertConst32(uint32(stack[0]), uint32(stack[1]))
		}, true
	case wevalruntime.IntrAssertSpecialized:
		return func(_ context.Context, _ api.Module, stack []uint64) {
			h.AssertSpecialized(uint32(stack[0]))
		}, true
	case wevalruntime.IntrReachableAtDepth:
		return func(_ context.Context, _ api.Module, stack []uint64) {
			h.ReachableAtDepth(uint32(stack[0]))
		}, true
	case wevalruntime.IntrAbortSpecialization:
		return func(_ context.Context, _ api.Module, stack []uint64) {
			h.AbortSpecialization(uint32(stack[0]), uint32(stack[1]))
		}, true
	case wevalruntime.IntrPrint:
		return func(_ context.Context, mod api.Module, stack []uint64) {
			h.Print(readCString(mod, uint32(stack[0])), uint32(stack[1]), uint32(stack[2]))
		}, true
	}
	return nil, false
}

// loadSlot reads the 8-byte mirrored slot at addr in the calling
// module's memory. Bad pointers read as zero, never a trap.
func loadSlot(mod api.Module, addr uint32) uint64 {
	if mod == nil {
		return 0
	}
	mem := mod.Memory()
	if mem == nil {
		return 0
	}
	v, ok := mem.ReadUint64Le(addr)
	if !ok {
		return 0
	}
	return v
}

// storeSlot writes value to the 8-byte mirrored slot at addr. Stores
// through bad pointers are dropped.
func storeSlot(mod api.Module, addr uint32, value uint64) {
	if mod == nil {
		return
	}
	if mem := mod.Memory(); mem != nil {
		mem.WriteUint64Le(addr, value)
	}
}

// readCString reads the NUL-terminated string at addr in the calling
// module's memory. Bad pointers yield an empty string, never a trap.
func readCString(mod api.Module, addr uint32) string {
	if mod == nil || addr == 0 {
		return ""
	}
	mem := mod.Memory()
	if mem == nil {
		return ""
	}
	size := mem.Size()
	if addr >= size {
		return ""
	}
	window := size - addr
	if window > maxPrintLen {
		window = maxPrintLen
	}
	buf, ok := mem.Read(addr, window)
	if !ok {
		return ""
	}
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	return string(buf)
}

func valueTypes(kinds []wevalruntime.ValKind) []api.ValueType {
	if len(kinds) == 0 {
		return nil
	}
	types := make([]api.ValueType, len(kinds))
	for i, k := range kinds {
		switch k {
		case wevalruntime.ValI32:
			types[i] = api.ValueTypeI32
		case wevalruntime.ValI64:
			types[i] = api.ValueTypeI64
		case wevalruntime.ValF32:
			types[i] = api.ValueTypeF32
		case wevalruntime.ValF64:
			types[i] = api.ValueTypeF64
		}
	}
	return types
}

func typesEqual(got []api.ValueType, want []wevalruntime.ValKind) bool {
	if len(got) != len(want) {
		return false
	}
	for i, t := range valueTypes(want) {
		if got[i] != t {
			return false
		}
	}
	return true
}

func typesName(params, results []api.ValueType) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, t := range params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(api.ValueTypeName(t))
	}
	b.WriteByte(')')
	if len(results) > 0 {
		b.WriteString(" -> ")
		for i, t := range results {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(api.ValueTypeName(t))
		}
	}
	return b.String()
}
