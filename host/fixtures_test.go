package host

import (
	wevalruntime "github.com/wippyai/weval-runtime"
)

// Hand-assembled wasm fixtures. All vectors and section payloads stay
// under 128 bytes so every length encodes as a single LEB128 byte.

const (
	secType     = 0x01
	secImport   = 0x02
	secFunction = 0x03
	secMemory   = 0x05
	secExport   = 0x07
	secCode     = 0x0a

	valI32 = 0x7f
	valI64 = 0x7e

	kindFunc   = 0x00
	kindMemory = 0x02
)

// Registration addresses baked into the client fixture. All below 64 so
// i32.const operands encode as a single byte.
const (
	fixtureHeadPtr   = 8
	fixtureFlagAddr  = 16
	fixtureTableAddr = 20
	fixtureFuncAddr  = 48
)

func wasmHeader() []byte {
	return []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
}

func section(id byte, payload []byte) []byte {
	if len(payload) >= 128 {
		panic("fixture section needs multi-byte LEB length")
	}
	out := []byte{id, byte(len(payload))}
	return append(out, payload...)
}

func name(s string) []byte {
	out := []byte{byte(len(s))}
	return append(out, s...)
}

// importWASM builds a module whose only content is a single function
// import of module/field with the given core types.
func importWASM(module, field string, params, results []byte) []byte {
	ft := []byte{0x60, byte(len(params))}
	ft = append(ft, params...)
	ft = append(ft, byte(len(results)))
	ft = append(ft, results...)
	typeSec := append([]byte{0x01}, ft...)

	imp := []byte{0x01}
	imp = append(imp, name(module)...)
	imp = append(imp, name(field)...)
	imp = append(imp, kindFunc, 0x00)

	out := wasmHeader()
	out = append(out, section(secType, typeSec)...)
	out = append(out, section(secImport, imp)...)
	return out
}

// clientWASM builds a minimal client: one page of memory and the four
// registration exports, each a thunk returning a fixture address.
func clientWASM() []byte {
	exports := []struct {
		name string
		addr byte
	}{
		{wevalruntime.ExportPendingHead, fixtureHeadPtr},
		{wevalruntime.ExportSpecializedFlag, fixtureFlagAddr},
		{wevalruntime.ExportLookupTable, fixtureTableAddr},
		{wevalruntime.TargetExport(1), fixtureFuncAddr},
	}

	// One function type: () -> i32.
	typeSec := []byte{0x01, 0x60, 0x00, 0x01, valI32}

	funcSec := []byte{byte(len(exports))}
	for range exports {
		funcSec = append(funcSec, 0x00)
	}

	memSec := []byte{0x01, 0x00, 0x01} // one page, no max

	expSec := []byte{byte(len(exports) + 1)}
	expSec = append(expSec, name("memory")...)
	expSec = append(expSec, kindMemory, 0x00)
	for i, e := range exports {
		expSec = append(expSec, name(e.name)...)
		expSec = append(expSec, kindFunc, byte(i))
	}

	codeSec := []byte{byte(len(exports))}
	for _, e := range exports {
		codeSec = append(codeSec, 0x04, 0x00, 0x41, e.addr, 0x0b)
	}

	out := wasmHeader()
	out = append(out, section(secType, typeSec)...)
	out = append(out, section(secFunction, funcSec)...)
	out = append(out, section(secMemory, memSec)...)
	out = append(out, section(secExport, expSec)...)
	out = append(out, section(secCode, codeSec)...)
	return out
}

// initWASM builds a module with initializer entry points: a no-op
// "wizer.initialize", a "_start" that exits cleanly through proc_exit(0),
// a trapping "boom" and a "fail" that exits with code 3.
func initWASM() []byte {
	// Type 0 is (i32) -> () for proc_exit, type 1 is () -> ().
	typeSec := []byte{0x02, 0x60, 0x01, valI32, 0x00, 0x60, 0x00, 0x00}

	imp := []byte{0x01}
	imp = append(imp, name("wasi_snapshot_preview1")...)
	imp = append(imp, name("proc_exit")...)
	imp = append(imp, kindFunc, 0x00)

	funcSec := []byte{0x04, 0x01, 0x01, 0x01, 0x01}

	exports := []string{"wizer.initialize", "_start", "boom", "fail"}
	expSec := []byte{byte(len(exports))}
	for i, e := range exports {
		expSec = append(expSec, name(e)...)
		expSec = append(expSec, kindFunc, byte(i+1))
	}

	codeSec := []byte{0x04}
	codeSec = append(codeSec, 0x02, 0x00, 0x0b)                         // wizer.initialize
	codeSec = append(codeSec, 0x06, 0x00, 0x41, 0x00, 0x10, 0x00, 0x0b) // _start: proc_exit(0)
	codeSec = append(codeSec, 0x03, 0x00, 0x00, 0x0b)                   // boom: unreachable
	codeSec = append(codeSec, 0x06, 0x00, 0x41, 0x03, 0x10, 0x00, 0x0b) // fail: proc_exit(3)

	out := wasmHeader()
	out = append(out, section(secType, typeSec)...)
	out = append(out, section(secImport, imp)...)
	out = append(out, section(secFunction, funcSec)...)
	out = append(out, section(secExport, expSec)...)
	out = append(out, section(secCode, codeSec)...)
	return out
}

// memOnlyWASM builds a module exporting one page of memory and nothing
// else.
func memOnlyWASM() []byte {
	memSec := []byte{0x01, 0x00, 0x01}
	expSec := []byte{0x01}
	expSec = append(expSec, name("memory")...)
	expSec = append(expSec, kindMemory, 0x00)

	out := wasmHeader()
	out = append(out, section(secMemory, memSec)...)
	out = append(out, section(secExport, expSec)...)
	return out
}

// noMemWASM builds a module with the registration exports but no memory.
func noMemWASM() []byte {
	typeSec := []byte{0x01, 0x60, 0x00, 0x01, valI32}
	funcSec := []byte{0x01, 0x00}
	expSec := []byte{0x01}
	expSec = append(expSec, name(wevalruntime.ExportPendingHead)...)
	expSec = append(expSec, kindFunc, 0x00)
	codeSec := []byte{0x01, 0x04, 0x00, 0x41, fixtureHeadPtr, 0x0b}

	out := wasmHeader()
	out = append(out, section(secType, typeSec)...)
	out = append(out, section(secFunction, funcSec)...)
	out = append(out, section(secExport, expSec)...)
	out = append(out, section(secCode, codeSec)...)
	return out
}
