package host

import (
	"github.com/tetratelabs/wazero/api"

	wevalruntime "github.com/wippyai/weval-runtime"
	"github.com/wippyai/weval-runtime/errors"
)

// WrapMemory adapts a wazero api.Memory to the runtime Memory interface.
// It returns nil for nil memory.
func WrapMemory(mem api.Memory) wevalruntime.Memory {
	if mem == nil {
		return nil
	}
	return &Wrapper{Mem: mem}
}

// Wrapper adapts wazero api.Memory to the runtime Memory interface.
type Wrapper struct {
	Mem api.Memory
}

var (
	_ wevalruntime.Memory      = (*Wrapper)(nil)
	_ wevalruntime.MemorySizer = (*Wrapper)(nil)
)

// Size returns the current memory size in bytes.
func (m *Wrapper) Size() uint32 {
	return m.Mem.Size()
}

// Read returns a view of length bytes at offset. The view aliases guest
// memory and stays valid only until the memory grows.
func (m *Wrapper) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.Mem.Read(offset, length)
	if !ok {
		return nil, m.oob("read", offset, length)
	}
	return data, nil
}

// Write copies data into guest memory at offset.
func (m *Wrapper) Write(offset uint32, data []byte) error {
	if !m.Mem.Write(offset, data) {
		return m.oob("write", offset, uint32(len(data)))
	}
	return nil
}

// ReadU8 reads a single byte at offset.
func (m *Wrapper) ReadU8(offset uint32) (uint8, error) {
	v, ok := m.Mem.ReadByte(offset)
	if !ok {
		return 0, m.oob("u8", offset, 1)
	}
	return v, nil
}

// ReadU32 reads a little-endian uint32 at offset.
func (m *Wrapper) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.Mem.ReadUint32Le(offset)
	if !ok {
		return 0, m.oob("u32", offset, 4)
	}
	return v, nil
}

// ReadU64 reads a little-endian uint64 at offset.
func (m *Wrapper) ReadU64(offset uint32) (uint64, error) {
	v, ok := m.Mem.ReadUint64Le(offset)
	if !ok {
		return 0, m.oob("u64", offset, 8)
	}
	return v, nil
}

// WriteU8 writes a single byte at offset.
func (m *Wrapper) WriteU8(offset uint32, value uint8) error {
	if !m.Mem.WriteByte(offset, value) {
		return m.oob("u8", offset, 1)
	}
	return nil
}

// WriteU32 writes a little-endian uint32 at offset.
func (m *Wrapper) WriteU32(offset uint32, value uint32) error {
	if !m.Mem.WriteUint32Le(offset, value) {
		return m.oob("u32", offset, 4)
	}
	return nil
}

// WriteU64 writes a little-endian uint64 at offset.
func (m *Wrapper) WriteU64(offset uint32, value uint64) error {
	if !m.Mem.WriteUint64Le(offset, value) {
		return m.oob("u64", offset, 8)
	}
	return nil
}

func (m *Wrapper) oob(op string, offset, length uint32) error {
	return errors.OutOfBounds(errors.PhaseHost, []string{op}, offset, length, m.Mem.Size())
}
