package wire

import (
	"encoding/binary"

	wevalruntime "github.com/wippyai/weval-runtime"
	"github.com/wippyai/weval-runtime/errors"
)

// Image is an offline snapshot of a wasm32 linear memory. The zero value
// is an empty image that rejects every non-empty access.
type Image []byte

var (
	_ wevalruntime.Memory      = Image(nil)
	_ wevalruntime.MemorySizer = Image(nil)
)

// NewImage allocates a zeroed image of the given size.
func NewImage(size uint32) Image {
	return make(Image, size)
}

// ImageOf wraps existing bytes without copying. Writes through the image
// mutate the caller's slice.
func ImageOf(data []byte) Image {
	return Image(data)
}

// Size returns the image size in bytes.
func (m Image) Size() uint32 {
	return uint32(len(m))
}

// Bytes returns the underlying byte slice.
func (m Image) Bytes() []byte {
	return m
}

func (m Image) in(offset, length uint32) bool {
	return uint64(offset)+uint64(length) <= uint64(m.Size())
}

func (m Image) oob(op string, offset, length uint32) error {
	return errors.OutOfBounds(errors.PhaseWire, []string{op}, offset, length, m.Size())
}

// Read returns a view of length bytes at offset. The view aliases the
// image and stays valid only until the image is mutated.
func (m Image) Read(offset uint32, length uint32) ([]byte, error) {
	if !m.in(offset, length) {
		return nil, m.oob("read", offset, length)
	}
	end := offset + length
	return m[offset:end:end], nil
}

// Write copies data into the image at offset.
func (m Image) Write(offset uint32, data []byte) error {
	if !m.in(offset, uint32(len(data))) {
		return m.oob("write", offset, uint32(len(data)))
	}
	copy(m[offset:], data)
	return nil
}

// ReadU8 reads a single byte at offset.
func (m Image) ReadU8(offset uint32) (uint8, error) {
	if !m.in(offset, 1) {
		return 0, m.oob("u8", offset, 1)
	}
	return m[offset], nil
}

// ReadU32 reads a little-endian uint32 at offset.
func (m Image) ReadU32(offset uint32) (uint32, error) {
	if !m.in(offset, 4) {
		return 0, m.oob("u32", offset, 4)
	}
	return binary.LittleEndian.Uint32(m[offset:]), nil
}

// ReadU64 reads a little-endian uint64 at offset.
func (m Image) ReadU64(offset uint32) (uint64, error) {
	if !m.in(offset, 8) {
		return 0, m.oob("u64", offset, 8)
	}
	return binary.LittleEndian.Uint64(m[offset:]), nil
}

// WriteU8 writes a single byte at offset.
func (m Image) WriteU8(offset uint32, value uint8) error {
	if !m.in(offset, 1) {
		return m.oob("u8", offset, 1)
	}
	m[offset] = value
	return nil
}

// WriteU32 writes a little-endian uint32 at offset.
func (m Image) WriteU32(offset uint32, value uint32) error {
	if !m.in(offset, 4) {
		return m.oob("u32", offset, 4)
	}
	binary.LittleEndian.PutUint32(m[offset:], value)
	return nil
}

// WriteU64 writes a little-endian uint64 at offset.
func (m Image) WriteU64(offset uint32, value uint64) error {
	if !m.in(offset, 8) {
		return m.oob("u64", offset, 8)
	}
	binary.LittleEndian.PutUint64(m[offset:], value)
	return nil
}
