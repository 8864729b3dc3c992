package wire

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	wevalruntime "github.com/wippyai/weval-runtime"
	"github.com/wippyai/weval-runtime/errors"
	"github.com/wippyai/weval-runtime/lookup"
)

// TableHeaderLen is the size of the table descriptor in guest memory.
const TableHeaderLen = 8

// TableEntryLen is the size of one lookup entry in guest memory.
const TableEntryLen = 16

// Lookup entry field offsets.
const (
	entFuncID      = 0
	entArgBuf      = 4
	entArgLen      = 8
	entSpecialized = 12
)

const maxTableEntries = math.MaxUint32 / TableEntryLen

// TableEntry is a decoded lookup entry. ArgBuf holds the guest address of
// the entry's key bytes; Specialized is the specialized function pointer
// value itself, unlike the slot address a request node carries.
type TableEntry struct {
	FuncID      uint32
	ArgBuf      uint32
	ArgLen      uint32
	Specialized uint32
}

// KeyedEntry pairs a function identity and key with the specialized
// function pointer to install for it.
type KeyedEntry struct {
	FuncID      uint32
	Key         []byte
	Specialized uint32
}

// ReadTable decodes the lookup table reachable from the descriptor at
// descAddr, as returned by the "weval.lookup.table" export. A null
// entries pointer or a zero count yields an empty table.
func ReadTable(m wevalruntime.Memory, descAddr uint32) ([]TableEntry, error) {
	entriesAddr, err := m.ReadU32(descAddr)
	if err != nil {
		return nil, err
	}
	n, err := m.ReadU32(descAddr + 4)
	if err != nil {
		return nil, err
	}
	if entriesAddr == 0 || n == 0 {
		return nil, nil
	}
	if n > maxTableEntries {
		return nil, errors.InvalidData(errors.PhaseWire, []string{"table"},
			fmt.Sprintf("entry count %d exceeds a 32-bit address space", n))
	}

	buf, err := m.Read(entriesAddr, n*TableEntryLen)
	if err != nil {
		return nil, err
	}
	entries := make([]TableEntry, n)
	for i := range entries {
		off := i * TableEntryLen
		entries[i] = TableEntry{
			FuncID:      binary.LittleEndian.Uint32(buf[off+entFuncID:]),
			ArgBuf:      binary.LittleEndian.Uint32(buf[off+entArgBuf:]),
			ArgLen:      binary.LittleEndian.Uint32(buf[off+entArgLen:]),
			Specialized: binary.LittleEndian.Uint32(buf[off+entSpecialized:]),
		}
	}
	return entries, nil
}

// BuildLookup reads the table at descAddr and assembles a lookup.Table
// over its entries, with the specialized function pointer as each entry's
// payload. Keys alias guest memory. The stored table must already be in
// comparator order; a misordered image is rejected.
func BuildLookup(m wevalruntime.Memory, descAddr uint32) (*lookup.Table, error) {
	raw, err := ReadTable(m, descAddr)
	if err != nil {
		return nil, err
	}
	entries := make([]lookup.Entry, len(raw))
	for i, e := range raw {
		key, err := m.Read(e.ArgBuf, e.ArgLen)
		if err != nil {
			return nil, err
		}
		entries[i] = lookup.Entry{FuncID: e.FuncID, Key: key, Specialized: e.Specialized}
	}
	return lookup.FromSorted(entries)
}

// InstallTable writes entries into guest memory in comparator order and
// points the descriptor at descAddr at them. The entry array is laid out
// at base rounded up to 8, with each key following 8-aligned, matching
// the alignment the argument encoder guarantees. It returns the number
// of bytes consumed from base. Duplicate entries are rejected.
//
// The descriptor is written last, so on any error the previous table
// stays in effect.
func InstallTable(m wevalruntime.Memory, descAddr uint32, base uint32, entries []KeyedEntry) (uint32, error) {
	if len(entries) == 0 {
		if err := m.WriteU32(descAddr, 0); err != nil {
			return 0, err
		}
		if err := m.WriteU32(descAddr+4, 0); err != nil {
			return 0, err
		}
		return 0, nil
	}

	sorted := make([]KeyedEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return lookup.Compare(sorted[i].FuncID, sorted[i].Key, sorted[j].FuncID, sorted[j].Key) < 0
	})
	for i := 1; i < len(sorted); i++ {
		if lookup.Compare(sorted[i-1].FuncID, sorted[i-1].Key, sorted[i].FuncID, sorted[i].Key) == 0 {
			return 0, errors.Unsorted(i, fmt.Sprintf("duplicate entry for func %d", sorted[i].FuncID))
		}
	}

	start := (uint64(base) + 7) &^ 7
	end := start + uint64(len(sorted))*TableEntryLen
	for _, e := range sorted {
		end += (uint64(len(e.Key)) + 7) &^ 7
	}
	if end > math.MaxUint32 {
		return 0, errors.InvalidData(errors.PhaseWire, []string{"table"},
			"layout does not fit a 32-bit address space")
	}

	var pad [8]byte
	entriesAddr := uint32(start)
	cursor := entriesAddr + uint32(len(sorted))*TableEntryLen
	buf := make([]byte, len(sorted)*TableEntryLen)
	for i, e := range sorted {
		keyAddr := cursor
		if err := m.Write(keyAddr, e.Key); err != nil {
			return 0, err
		}
		aligned := (uint32(len(e.Key)) + 7) &^ 7
		if slack := aligned - uint32(len(e.Key)); slack > 0 {
			if err := m.Write(keyAddr+uint32(len(e.Key)), pad[:slack]); err != nil {
				return 0, err
			}
		}
		cursor += aligned

		off := i * TableEntryLen
		binary.LittleEndian.PutUint32(buf[off+entFuncID:], e.FuncID)
		binary.LittleEndian.PutUint32(buf[off+entArgBuf:], keyAddr)
		binary.LittleEndian.PutUint32(buf[off+entArgLen:], uint32(len(e.Key)))
		binary.LittleEndian.PutUint32(buf[off+entSpecialized:], e.Specialized)
	}
	if err := m.Write(entriesAddr, buf); err != nil {
		return 0, err
	}
	if err := m.WriteU32(descAddr, entriesAddr); err != nil {
		return 0, err
	}
	if err := m.WriteU32(descAddr+4, uint32(len(sorted))); err != nil {
		return 0, err
	}
	return cursor - base, nil
}

// ReadFlag reads the specialized-run flag at addr, as returned by the
// "weval.is.wevaled" export. The flag occupies a single byte; any nonzero
// value reads as set.
func ReadFlag(m wevalruntime.Memory, addr uint32) (bool, error) {
	b, err := m.ReadU8(addr)
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

// WriteFlag sets or clears the specialized-run flag at addr.
func WriteFlag(m wevalruntime.Memory, addr uint32, on bool) error {
	var b uint8
	if on {
		b = 1
	}
	return m.WriteU8(addr, b)
}
