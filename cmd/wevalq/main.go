package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/xyproto/env/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	wevalruntime "github.com/wippyai/weval-runtime"
	"github.com/wippyai/weval-runtime/guest"
	"github.com/wippyai/weval-runtime/host"
	"github.com/wippyai/weval-runtime/intrinsics"
	"github.com/wippyai/weval-runtime/lookup"
	"github.com/wippyai/weval-runtime/wire"
)

func main() {
	var (
		wasmFile    = flag.String("wasm", "", "Path to client wasm file")
		entry       = flag.String("entry", env.Str("WEVALQ_ENTRY", ""), "Initializer export to run (default: _initialize, wizer.initialize or _start)")
		envVars     = flag.String("env", "", "Environment variables (KEY=VAL,KEY2=VAL2)")
		cliArgs     = flag.String("argv", "", "CLI arguments (comma-separated)")
		showKeys    = flag.Bool("keys", false, "Dump raw key bytes for each request")
		list        = flag.Bool("list", false, "List the weval import/export surface and exit")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	setupLogging()

	if *wasmFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: wevalq -wasm <client.wasm> [-entry name] [-argv a,b] [-env K=V,...]")
		fmt.Fprintln(os.Stderr, "       wevalq -wasm <client.wasm> -list")
		fmt.Fprintln(os.Stderr, "       wevalq -wasm <client.wasm> -i  (interactive mode)")
		os.Exit(1)
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(*wasmFile, *entry, *cliArgs, *envVars); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*wasmFile, *entry, *cliArgs, *envVars, *showKeys, *list); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setupLogging wires a shared development logger into the runtime packages
// when WEVALQ_LOG names a zap level. Logging stays off otherwise.
func setupLogging() {
	name := env.Str("WEVALQ_LOG", "")
	if name == "" {
		return
	}
	level, err := zapcore.ParseLevel(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wevalq: unknown WEVALQ_LOG level %q\n", name)
		return
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	logger, err := cfg.Build()
	if err != nil {
		return
	}
	host.SetLogger(logger)
	guest.SetLogger(logger)
	intrinsics.SetLogger(logger)
}

func run(wasmFile, entry, argvStr, envStr string, showKeys, listOnly bool) error {
	ctx := context.Background()

	if listOnly {
		return listSurface(ctx, wasmFile)
	}

	sess, err := collect(ctx, wasmFile, entry, argvStr, envStr, os.Stdout, os.Stderr)
	if err != nil {
		return err
	}
	printSession(sess, showKeys)
	return nil
}

// listSurface compiles the client and prints its weval import and export
// surface without running it.
func listSurface(ctx context.Context, wasmFile string) error {
	data, err := os.ReadFile(wasmFile)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	compiled, err := rt.CompileModule(ctx, data)
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}

	fmt.Printf("Client: %s\n", wasmFile)

	fmt.Printf("\nIntrinsic imports:\n")
	imports := 0
	for _, fn := range compiled.ImportedFunctions() {
		modName, name, _ := fn.Import()
		if modName != wevalruntime.ModuleName {
			continue
		}
		imports++
		fmt.Printf("  %s.%s\n", modName, name)
	}
	if imports == 0 {
		fmt.Printf("  (none)\n")
	}
	if err := host.VerifyImports(compiled); err != nil {
		fmt.Printf("  ! %v\n", err)
	}

	exports := compiled.ExportedFunctions()
	fmt.Printf("\nRegistration exports:\n")
	for _, name := range []string{
		wevalruntime.ExportPendingHead,
		wevalruntime.ExportSpecializedFlag,
		wevalruntime.ExportLookupTable,
	} {
		mark := "missing"
		if _, ok := exports[name]; ok {
			mark = "ok"
		}
		fmt.Printf("  %-20s %s\n", name, mark)
	}

	var targets []uint32
	for name := range exports {
		if index, ok := wevalruntime.ParseTargetExport(name); ok {
			targets = append(targets, index)
		}
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })
	fmt.Printf("\nTargets: %d\n", len(targets))
	for _, index := range targets {
		fmt.Printf("  %s\n", wevalruntime.TargetExport(index))
	}

	return nil
}

// session is the harvest from one client run: the registration surface,
// the queue contents and, for a resolved image, the installed table.
type session struct {
	Module      string
	HeadPtr     uint32
	FlagAddr    uint32
	TableAddr   uint32
	Targets     []targetInfo
	Specialized bool
	Requests    []requestInfo
	Table       []tableEntryInfo
}

type targetInfo struct {
	Index uint32
	Addr  uint32
}

// requestInfo is one pending request with its key copied out of guest
// memory and decoded.
type requestInfo struct {
	Addr      uint32
	Node      wire.ReqNode
	Key       []byte
	Args      []guest.Arg
	DecodeErr error
}

type tableEntryInfo struct {
	FuncID uint32
	KeyLen int
	Func   uint32
}

// collect runs the client's initializer under the weval host module and
// reads back everything the registration surface exposes. The returned
// session owns its key bytes; nothing aliases guest memory once the
// runtime is closed.
func collect(ctx context.Context, wasmFile, entry, argvStr, envStr string, stdout, stderr io.Writer) (*session, error) {
	data, err := os.ReadFile(wasmFile)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	// Host modules first: intrinsics under "weval", then WASI for clients
	// built against wasi-libc.
	if _, err := host.Instantiate(ctx, rt, intrinsics.NewLocalHandler()); err != nil {
		return nil, fmt.Errorf("instantiate weval module: %w", err)
	}
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		return nil, fmt.Errorf("instantiate wasi: %w", err)
	}

	compiled, err := rt.CompileModule(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	if err := host.VerifyImports(compiled); err != nil {
		return nil, err
	}

	cfg := wazero.NewModuleConfig().
		WithStdout(stdout).
		WithStderr(stderr).
		WithStartFunctions()
	if argvStr != "" {
		cfg = cfg.WithArgs(strings.Split(argvStr, ",")...)
	}
	if envStr != "" {
		for _, kv := range strings.Split(envStr, ",") {
			parts := strings.SplitN(kv, "=", 2)
			if len(parts) == 2 {
				cfg = cfg.WithEnv(parts[0], parts[1])
			}
		}
	}

	mod, err := rt.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		return nil, fmt.Errorf("instantiate: %w", err)
	}

	// Registration exports and target thunks are pure; resolve them before
	// the initializer gets a chance to exit the instance.
	g, err := host.Attach(ctx, mod)
	if err != nil {
		return nil, err
	}
	sess := &session{
		Module:    wasmFile,
		HeadPtr:   g.HeadPtr(),
		FlagAddr:  g.FlagAddr(),
		TableAddr: g.TableAddr(),
	}
	for _, index := range g.Targets() {
		addr, err := g.TargetAddr(ctx, index)
		if err != nil {
			return nil, err
		}
		sess.Targets = append(sess.Targets, targetInfo{Index: index, Addr: addr})
	}

	var initCfg host.Config
	if entry != "" {
		initCfg.InitFunctions = []string{entry}
	}
	called, err := host.RunInit(ctx, mod, initCfg)
	if err != nil {
		return nil, err
	}
	if entry != "" && called == "" {
		return nil, fmt.Errorf("entry export %q not found", entry)
	}

	// Everything below is memory reads through addresses captured above,
	// so a clean proc_exit from the initializer does not get in the way.
	on, err := g.Specialized()
	if err != nil {
		return nil, err
	}
	sess.Specialized = on

	pending, err := g.Pending()
	if err != nil {
		return nil, err
	}
	for _, req := range pending {
		info := requestInfo{Addr: req.Addr, Node: req.Node, Key: bytes.Clone(req.Key)}
		info.Args, info.DecodeErr = guest.DecodeKey(info.Key)
		sess.Requests = append(sess.Requests, info)
	}

	if on {
		table, err := g.Lookup()
		if err != nil {
			return nil, err
		}
		table.Each(func(e lookup.Entry) bool {
			fn, _ := e.Specialized.(uint32)
			sess.Table = append(sess.Table, tableEntryInfo{FuncID: e.FuncID, KeyLen: len(e.Key), Func: fn})
			return true
		})
	}

	return sess, nil
}

func printSession(sess *session, showKeys bool) {
	fmt.Printf("Client: %s\n", sess.Module)
	fmt.Printf("Queue head ptr: 0x%x  mode flag: 0x%x  table: 0x%x\n",
		sess.HeadPtr, sess.FlagAddr, sess.TableAddr)

	mode := "collecting"
	if sess.Specialized {
		mode = "resolved"
	}
	fmt.Printf("Mode: %s\n", mode)

	fmt.Printf("\nTargets: %d\n", len(sess.Targets))
	for _, t := range sess.Targets {
		fmt.Printf("  %s -> 0x%x\n", wevalruntime.TargetExport(t.Index), t.Addr)
	}

	fmt.Printf("\nPending requests: %d\n", len(sess.Requests))
	for i, req := range sess.Requests {
		fmt.Printf("  [%d] node=0x%x func_id=%d key=%dB slot=0x%x\n",
			i, req.Addr, req.Node.FuncID, len(req.Key), req.Node.Specialized)
		if req.DecodeErr != nil {
			fmt.Printf("      key does not decode: %v\n", req.DecodeErr)
		} else {
			for j, a := range req.Args {
				fmt.Printf("      arg%d: %s\n", j, a)
			}
		}
		if showKeys {
			fmt.Printf("      key: % x\n", req.Key)
		}
	}

	if sess.Specialized {
		fmt.Printf("\nLookup table: %d entries\n", len(sess.Table))
		for i, e := range sess.Table {
			fmt.Printf("  [%d] func_id=%d key=%dB -> 0x%x\n", i, e.FuncID, e.KeyLen, e.Func)
		}
	}
}
