package host

import (
	"context"
	"errors"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	rterrors "github.com/wippyai/weval-runtime/errors"
)

// instantiateInit stands up the init fixture without running any entry
// point, so each test controls what RunInit gets to call.
func instantiateInit(t *testing.T) (context.Context, api.Module) {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { rt.Close(ctx) })

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		t.Fatalf("instantiate wasi: %v", err)
	}
	compiled, err := rt.CompileModule(ctx, initWASM())
	if err != nil {
		t.Fatalf("compile fixture: %v", err)
	}
	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithStartFunctions())
	if err != nil {
		t.Fatalf("instantiate fixture: %v", err)
	}
	return ctx, mod
}

func TestRunInitProbeOrder(t *testing.T) {
	ctx, mod := instantiateInit(t)

	called, err := RunInit(ctx, mod, Config{})
	if err != nil {
		t.Fatalf("RunInit: %v", err)
	}
	if called != "wizer.initialize" {
		t.Fatalf("called %q, want wizer.initialize", called)
	}
}

func TestRunInitCleanExit(t *testing.T) {
	ctx, mod := instantiateInit(t)

	called, err := RunInit(ctx, mod, Config{InitFunctions: []string{"_start"}})
	if err != nil {
		t.Fatalf("RunInit: %v", err)
	}
	if called != "_start" {
		t.Fatalf("called %q, want _start", called)
	}
}

func TestRunInitFailures(t *testing.T) {
	for _, entry := range []string{"boom", "fail"} {
		t.Run(entry, func(t *testing.T) {
			ctx, mod := instantiateInit(t)

			called, err := RunInit(ctx, mod, Config{InitFunctions: []string{entry}})
			if !errors.Is(err, &rterrors.Error{Phase: rterrors.PhaseHost, Kind: rterrors.KindInstantiation}) {
				t.Fatalf("err = %v, want host instantiation error", err)
			}
			if called != entry {
				t.Fatalf("called %q, want %q", called, entry)
			}
		})
	}
}

func TestRunInitNoCandidate(t *testing.T) {
	ctx, mod := instantiateClient(t, clientWASM())

	called, err := RunInit(ctx, mod, Config{})
	if err != nil || called != "" {
		t.Fatalf("RunInit = %q, %v; want no candidate and no error", called, err)
	}

	called, err = RunInit(ctx, mod, Config{InitFunctions: []string{"nope"}})
	if err != nil || called != "" {
		t.Fatalf("RunInit = %q, %v; want no candidate and no error", called, err)
	}
}
