package guest

import (
	"fmt"
	"math"
)

// ArgKind tags one specialization argument inside an encoded key. The tag
// values are part of the wire contract and never change.
type ArgKind uint32

const (
	ArgI32    ArgKind = 0
	ArgI64    ArgKind = 1
	ArgF32    ArgKind = 2
	ArgF64    ArgKind = 3
	ArgBuffer ArgKind = 4
	ArgNone   ArgKind = 255
)

func (k ArgKind) String() string {
	switch k {
	case ArgI32:
		return "i32"
	case ArgI64:
		return "i64"
	case ArgF32:
		return "f32"
	case ArgF64:
		return "f64"
	case ArgBuffer:
		return "buffer"
	case ArgNone:
		return "none"
	}
	return fmt.Sprintf("arg(%d)", uint32(k))
}

// Arg is one specialization argument: a scalar fixed at specialization
// time, a fixed-content memory region, or a placeholder for a value that
// stays a normal call argument. Argument order is significant; the same
// logical call must list its arguments in the same order every time to
// produce a stable key. The zero Arg is a runtime placeholder.
type Arg struct {
	spec bool
	kind ArgKind
	raw  uint64
	data []byte
}

// I32 fixes a 32-bit integer argument.
func I32(v uint32) Arg {
	return Arg{spec: true, kind: ArgI32, raw: uint64(v)}
}

// I64 fixes a 64-bit integer argument.
func I64(v uint64) Arg {
	return Arg{spec: true, kind: ArgI64, raw: v}
}

// F32 fixes a 32-bit float argument.
func F32(v float32) Arg {
	return Arg{spec: true, kind: ArgF32, raw: uint64(math.Float32bits(v))}
}

// F64 fixes a 64-bit float argument.
func F64(v float64) Arg {
	return Arg{spec: true, kind: ArgF64, raw: math.Float64bits(v)}
}

// Bool fixes a boolean argument. Booleans travel as i32 0 or 1.
func Bool(v bool) Arg {
	var raw uint64
	if v {
		raw = 1
	}
	return Arg{spec: true, kind: ArgI32, raw: raw}
}

// Memory fixes a memory region argument. The bytes are read when the key
// is encoded; the caller must not mutate them before then.
func Memory(data []byte) Arg {
	return Arg{spec: true, kind: ArgBuffer, data: data}
}

// RuntimeArg marks an argument that remains a normal call argument. Only
// its position contributes to the key.
func RuntimeArg() Arg {
	return Arg{}
}

// Kind returns the wire type tag.
func (a Arg) Kind() ArgKind {
	if !a.spec {
		return ArgNone
	}
	return a.kind
}

// Specialized reports whether the argument carries a fixed value.
func (a Arg) Specialized() bool { return a.spec }

// Raw returns the 8-byte value union as encoded. For 32-bit kinds the
// value occupies the low four bytes; for buffers use Bytes instead.
func (a Arg) Raw() uint64 { return a.raw }

// U32 returns the value of an i32 argument.
func (a Arg) U32() uint32 { return uint32(a.raw) }

// U64 returns the value of an i64 argument.
func (a Arg) U64() uint64 { return a.raw }

// F32 returns the value of an f32 argument.
func (a Arg) F32() float32 { return math.Float32frombits(uint32(a.raw)) }

// F64 returns the value of an f64 argument.
func (a Arg) F64() float64 { return math.Float64frombits(a.raw) }

// Bytes returns a buffer argument's contents, nil for other kinds.
func (a Arg) Bytes() []byte { return a.data }

func (a Arg) String() string {
	switch a.Kind() {
	case ArgI32:
		return fmt.Sprintf("i32(%d)", a.U32())
	case ArgI64:
		return fmt.Sprintf("i64(%d)", a.U64())
	case ArgF32:
		return fmt.Sprintf("f32(%g)", a.F32())
	case ArgF64:
		return fmt.Sprintf("f64(%g)", a.F64())
	case ArgBuffer:
		return fmt.Sprintf("buffer(%d bytes)", len(a.data))
	case ArgNone:
		return "runtime"
	}
	return a.Kind().String()
}
