package guest

import (
	"encoding/binary"
	"fmt"

	"github.com/wippyai/weval-runtime/errors"
)

// Key wire format: one 16-byte header record per argument, little-endian
// throughout. A header holds the specialize flag (u32), the type tag
// (u32), and an 8-byte value union. Buffer arguments store (length,
// padded length) in the union and append their payload inline, zero
// padded to an 8-byte boundary. The layout is shared with the external
// specializer and must stay byte-stable across builds.
const (
	// ArgHeaderLen is the size of one argument header record.
	ArgHeaderLen = 16

	// MaxKeyLen caps an encoded key. Exceeding it fails the encode.
	MaxKeyLen = 1 << 20

	initialKeyCap = 1024
)

// padded rounds a payload length up to the 8-byte alignment the wire
// format requires.
func padded(n int) int {
	return (n + 7) &^ 7
}

// keyWriter accumulates an encoded key. Capacity starts small and doubles
// as needed; a write that would pass MaxKeyLen fails before touching the
// buffer.
type keyWriter struct {
	buf []byte
}

func (w *keyWriter) alloc(n int) ([]byte, error) {
	need := len(w.buf) + n
	if need > MaxKeyLen {
		return nil, errors.KeyTooLarge(need, MaxKeyLen)
	}
	if need > cap(w.buf) {
		newCap := cap(w.buf)
		if newCap == 0 {
			newCap = initialKeyCap
		}
		for newCap < need {
			newCap *= 2
		}
		grown := make([]byte, len(w.buf), newCap)
		copy(grown, w.buf)
		w.buf = grown
	}
	w.buf = w.buf[:need]
	return w.buf[need-n : need], nil
}

// EncodeKey serializes an argument sequence into its canonical key.
// Identical logical sequences always yield byte-identical keys, which is
// what makes the key usable as an exact-match identity: scalar unions are
// zeroed before the value is stored and buffer padding is always zero, so
// no incidental bytes ever leak into the output.
func EncodeKey(args []Arg) ([]byte, error) {
	var w keyWriter
	for _, a := range args {
		if err := encodeArg(&w, a); err != nil {
			return nil, err
		}
	}
	return w.buf, nil
}

func encodeArg(w *keyWriter, a Arg) error {
	hdr, err := w.alloc(ArgHeaderLen)
	if err != nil {
		return err
	}

	if !a.spec {
		binary.LittleEndian.PutUint32(hdr[0:4], 0)
		binary.LittleEndian.PutUint32(hdr[4:8], uint32(ArgNone))
		binary.LittleEndian.PutUint64(hdr[8:16], 0)
		return nil
	}

	binary.LittleEndian.PutUint32(hdr[0:4], 1)
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(a.kind))

	if a.kind != ArgBuffer {
		binary.LittleEndian.PutUint64(hdr[8:16], a.raw)
		return nil
	}

	n := len(a.data)
	pn := padded(n)
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(n))
	binary.LittleEndian.PutUint32(hdr[12:16], uint32(pn))

	dst, err := w.alloc(pn)
	if err != nil {
		return err
	}
	copy(dst, a.data)
	for i := n; i < pn; i++ {
		dst[i] = 0
	}
	return nil
}

// DecodeKey parses an encoded key back into its argument sequence. The
// decode is strict: truncated records, unknown type tags, inconsistent
// padded lengths, and nonzero bytes where the format requires zeros are
// all rejected, since any of them means the key cannot have come from
// EncodeKey. Buffer arguments borrow their payload from key.
func DecodeKey(key []byte) ([]Arg, error) {
	var args []Arg
	off := 0
	for idx := 0; off < len(key); idx++ {
		if len(key)-off < ArgHeaderLen {
			return nil, errors.InvalidData(errors.PhaseDecode, argPath(idx), "truncated header record")
		}
		spec := binary.LittleEndian.Uint32(key[off : off+4])
		ty := ArgKind(binary.LittleEndian.Uint32(key[off+4 : off+8]))
		raw := binary.LittleEndian.Uint64(key[off+8 : off+16])
		off += ArgHeaderLen

		switch spec {
		case 0:
			if ty != ArgNone {
				return nil, errors.InvalidData(errors.PhaseDecode, argPath(idx),
					fmt.Sprintf("runtime placeholder with type tag %d", uint32(ty)))
			}
			if raw != 0 {
				return nil, errors.InvalidData(errors.PhaseDecode, argPath(idx), "runtime placeholder with nonzero value union")
			}
			args = append(args, RuntimeArg())

		case 1:
			switch ty {
			case ArgI32, ArgF32:
				if raw>>32 != 0 {
					return nil, errors.InvalidData(errors.PhaseDecode, argPath(idx),
						fmt.Sprintf("32-bit value with nonzero high union bytes: %#x", raw))
				}
				args = append(args, Arg{spec: true, kind: ty, raw: raw})
			case ArgI64, ArgF64:
				args = append(args, Arg{spec: true, kind: ty, raw: raw})
			case ArgBuffer:
				n := int(uint32(raw))
				pn := int(uint32(raw >> 32))
				if pn != padded(n) {
					return nil, errors.InvalidData(errors.PhaseDecode, argPath(idx),
						fmt.Sprintf("padded length %d for %d payload bytes", pn, n))
				}
				if len(key)-off < pn {
					return nil, errors.InvalidData(errors.PhaseDecode, argPath(idx), "truncated buffer payload")
				}
				for _, b := range key[off+n : off+pn] {
					if b != 0 {
						return nil, errors.InvalidData(errors.PhaseDecode, argPath(idx), "nonzero padding byte")
					}
				}
				args = append(args, Arg{spec: true, kind: ArgBuffer, data: key[off : off+n]})
				off += pn
			default:
				return nil, errors.InvalidData(errors.PhaseDecode, argPath(idx),
					fmt.Sprintf("unknown argument type tag %d", uint32(ty)))
			}

		default:
			return nil, errors.InvalidData(errors.PhaseDecode, argPath(idx),
				fmt.Sprintf("specialize flag %d", spec))
		}
	}
	return args, nil
}

func argPath(i int) []string {
	return []string{fmt.Sprintf("arg[%d]", i)}
}
