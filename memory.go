package wevalruntime

// Memory is the linear-memory view the protocol operates on. Both live
// wasm instance memory and offline memory images implement it. All
// multi-byte accessors are little-endian, matching wasm memory order.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU8(offset uint32, value uint8) error
	WriteU32(offset uint32, value uint32) error
	WriteU64(offset uint32, value uint64) error
}

// MemorySizer reports the current size of a linear memory in bytes.
type MemorySizer interface {
	Size() uint32
}
