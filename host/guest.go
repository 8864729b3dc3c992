package host

import (
	"context"
	"sort"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	wevalruntime "github.com/wippyai/weval-runtime"
	"github.com/wippyai/weval-runtime/errors"
	"github.com/wippyai/weval-runtime/lookup"
	"github.com/wippyai/weval-runtime/wire"
)

// Guest is the registration surface of an instantiated client module:
// the addresses its registration exports report and the specialization
// targets it declares. All protocol state lives in the guest's memory;
// Guest only holds addresses into it.
type Guest struct {
	mod       api.Module
	mem       wevalruntime.Memory
	headPtr   uint32 // address of the pending list head pointer
	flagAddr  uint32 // address of the specialized-run flag
	tableAddr uint32 // address of the lookup table descriptor
	targets   map[uint32]api.Function
}

// Attach resolves the registration exports of an instantiated client
// module. All three address exports must be present; target exports are
// optional.
func Attach(ctx context.Context, mod api.Module) (*Guest, error) {
	mem := WrapMemory(mod.Memory())
	if mem == nil {
		return nil, errors.NotInitialized(errors.PhaseHost, "guest memory")
	}

	headPtr, err := callAddr(ctx, mod, wevalruntime.ExportPendingHead)
	if err != nil {
		return nil, err
	}
	flagAddr, err := callAddr(ctx, mod, wevalruntime.ExportSpecializedFlag)
	if err != nil {
		return nil, err
	}
	tableAddr, err := callAddr(ctx, mod, wevalruntime.ExportLookupTable)
	if err != nil {
		return nil, err
	}

	targets := make(map[uint32]api.Function)
	for name := range mod.ExportedFunctionDefinitions() {
		index, ok := wevalruntime.ParseTargetExport(name)
		if !ok {
			continue
		}
		targets[index] = mod.ExportedFunction(name)
	}

	Logger().Debug("attached to guest",
		zap.String("module", mod.Name()),
		zap.Uint32("pending_head", headPtr),
		zap.Uint32("flag", flagAddr),
		zap.Uint32("table", tableAddr),
		zap.Int("targets", len(targets)))

	return &Guest{
		mod:       mod,
		mem:       mem,
		headPtr:   headPtr,
		flagAddr:  flagAddr,
		tableAddr: tableAddr,
		targets:   targets,
	}, nil
}

// callAddr invokes a no-argument registration export and returns the
// address it reports.
func callAddr(ctx context.Context, mod api.Module, name string) (uint32, error) {
	fn := mod.ExportedFunction(name)
	if fn == nil {
		return 0, errors.MissingExport(name)
	}
	results, err := fn.Call(ctx)
	if err != nil {
		return 0, errors.Wrap(errors.PhaseHost, errors.KindInstantiation, err, "call registration export "+name)
	}
	if len(results) != 1 {
		return 0, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
			Export(name).
			Detail("registration export returns %d values, want 1", len(results)).
			Build()
	}
	return uint32(results[0]), nil
}

// Memory returns the guest's linear memory.
func (g *Guest) Memory() wevalruntime.Memory { return g.mem }

// HeadPtr returns the address of the pending list head pointer.
func (g *Guest) HeadPtr() uint32 { return g.headPtr }

// FlagAddr returns the address of the specialized-run flag.
func (g *Guest) FlagAddr() uint32 { return g.flagAddr }

// TableAddr returns the address of the lookup table descriptor.
func (g *Guest) TableAddr() uint32 { return g.tableAddr }

// Specialized reports whether the guest runs in resolved mode.
func (g *Guest) Specialized() (bool, error) {
	return wire.ReadFlag(g.mem, g.flagAddr)
}

// SetSpecialized flips the guest into or out of resolved mode.
func (g *Guest) SetSpecialized(on bool) error {
	return wire.WriteFlag(g.mem, g.flagAddr, on)
}

// Pending harvests the guest's pending request list, most recently
// queued first. Keys alias guest memory.
func (g *Guest) Pending() ([]wire.PendingRequest, error) {
	reqs, err := wire.CollectPending(g.mem, g.headPtr)
	if err != nil {
		return nil, err
	}
	Logger().Debug("collected pending requests",
		zap.String("module", g.mod.Name()),
		zap.Int("count", len(reqs)))
	return reqs, nil
}

// InstallTable writes a lookup table into guest memory at base and
// points the guest's descriptor at it. It returns the number of bytes
// consumed from base.
func (g *Guest) InstallTable(base uint32, entries []wire.KeyedEntry) (uint32, error) {
	consumed, err := wire.InstallTable(g.mem, g.tableAddr, base, entries)
	if err != nil {
		return 0, err
	}
	Logger().Debug("installed lookup table",
		zap.String("module", g.mod.Name()),
		zap.Int("entries", len(entries)),
		zap.Uint32("base", base),
		zap.Uint32("consumed", consumed))
	return consumed, nil
}

// Lookup assembles the guest's installed lookup table. Keys alias guest
// memory.
func (g *Guest) Lookup() (*lookup.Table, error) {
	return wire.BuildLookup(g.mem, g.tableAddr)
}

// Targets returns the declared specialization target indices in
// ascending order.
func (g *Guest) Targets() []uint32 {
	indices := make([]uint32, 0, len(g.targets))
	for index := range g.targets {
		indices = append(indices, index)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	return indices
}

// TargetAddr calls the registration thunk for a target index and returns
// the guest function pointer it reports.
func (g *Guest) TargetAddr(ctx context.Context, index uint32) (uint32, error) {
	fn, ok := g.targets[index]
	if !ok {
		return 0, errors.NotFound(errors.PhaseHost, "target", wevalruntime.TargetExport(index))
	}
	results, err := fn.Call(ctx)
	if err != nil {
		return 0, errors.Wrap(errors.PhaseHost, errors.KindInstantiation, err,
			"call target export "+wevalruntime.TargetExport(index))
	}
	if len(results) != 1 {
		return 0, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
			Export(wevalruntime.TargetExport(index)).
			Detail("target export returns %d values, want 1", len(results)).
			Build()
	}
	return uint32(results[0]), nil
}
