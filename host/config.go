package host

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"github.com/wippyai/weval-runtime/errors"
)

// Config adjusts how a client instance is initialized. The zero value
// works for modules built with standard toolchains.
type Config struct {
	// InitFunctions are tried in order by RunInit; the first one the
	// module exports is called. Empty means DefaultInitFunctions.
	InitFunctions []string
}

// DefaultInitFunctions is the zero Config probe order: a WASI reactor
// initializer, then wizer-style pre-initialization, then a command
// entry point.
var DefaultInitFunctions = []string{"_initialize", "wizer.initialize", "_start"}

// RunInit invokes the module's initializer and returns the name of the
// export it called, or "" when the module exports none of the
// candidates. A clean exit is not an error; requests planted before a
// proc_exit(0) stay readable through the module's memory.
func RunInit(ctx context.Context, mod api.Module, cfg Config) (string, error) {
	names := cfg.InitFunctions
	if len(names) == 0 {
		names = DefaultInitFunctions
	}
	for _, name := range names {
		fn := mod.ExportedFunction(name)
		if fn == nil {
			continue
		}
		Logger().Debug("running initializer",
			zap.String("module", mod.Name()),
			zap.String("export", name))
		if _, err := fn.Call(ctx); err != nil {
			if exit, ok := err.(*sys.ExitError); ok && exit.ExitCode() == 0 {
				return name, nil
			}
			return name, errors.Wrap(errors.PhaseHost, errors.KindInstantiation, err, "run initializer "+name)
		}
		return name, nil
	}
	return "", nil
}
