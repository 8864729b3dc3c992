// Package lookup implements the sorted specialization table and its
// three-part key order: function identity ascending, then key bytes
// lexicographically, then shorter key first. Matching is an exact-match
// binary search; a miss is an expected outcome, not an error.
package lookup

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/wippyai/weval-runtime/errors"
)

// Entry maps one (function identity, encoded key) pair to a specialized
// function. Specialized is opaque to this package: native tables hold Go
// functions, tables decoded from a memory image hold wasm table indices.
// The key is borrowed, not copied; callers must not mutate it while the
// entry is part of a Table.
type Entry struct {
	FuncID      uint32
	Key         []byte
	Specialized any
}

// Compare orders two (identity, key) pairs. Identities order first; equal
// identities fall through to the key bytes, compared over the shared
// prefix with the shorter key sorting before any proper extension of it.
// The result is negative, zero, or positive in the usual way.
func Compare(aID uint32, aKey []byte, bID uint32, bKey []byte) int {
	if aID != bID {
		if aID < bID {
			return -1
		}
		return 1
	}
	return bytes.Compare(aKey, bKey)
}

// Table is an immutable sequence of entries sorted by Compare. Construct
// one with New or FromSorted; a zero Table is valid and matches nothing.
type Table struct {
	entries []Entry
}

// New builds a table from entries in any order. The slice is copied and
// sorted; the keys themselves are borrowed. Entries with a nil Specialized
// or a pair that collides with another entry are rejected.
func New(entries []Entry) (*Table, error) {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return Compare(sorted[i].FuncID, sorted[i].Key, sorted[j].FuncID, sorted[j].Key) < 0
	})

	t := &Table{entries: sorted}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// FromSorted builds a table from entries the producer claims are already
// in Compare order. Order and integrity are verified; nothing is copied.
func FromSorted(entries []Entry) (*Table, error) {
	t := &Table{entries: entries}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks table integrity: every entry carries a specialized
// function and the sequence is strictly ascending under Compare. Strict
// order implies no duplicate (identity, key) pairs.
func (t *Table) Validate() error {
	for i, e := range t.entries {
		if e.Specialized == nil {
			return errors.New(errors.PhaseLookup, errors.KindInvalidData).
				Path("entry", fmt.Sprintf("[%d]", i)).
				Detail("nil specialized function for identity %d", e.FuncID).
				Build()
		}
		if i == 0 {
			continue
		}
		prev := t.entries[i-1]
		if Compare(prev.FuncID, prev.Key, e.FuncID, e.Key) >= 0 {
			return errors.Unsorted(i, fmt.Sprintf("entry %d does not sort after entry %d (identity %d)", i, i-1, e.FuncID))
		}
	}
	return nil
}

// Find locates the entry matching the identity and key exactly. The bool
// result distinguishes a miss from a found entry.
func (t *Table) Find(funcID uint32, key []byte) (any, bool) {
	i := sort.Search(len(t.entries), func(i int) bool {
		return Compare(t.entries[i].FuncID, t.entries[i].Key, funcID, key) >= 0
	})
	if i < len(t.entries) &&
		t.entries[i].FuncID == funcID &&
		bytes.Equal(t.entries[i].Key, key) {
		return t.entries[i].Specialized, true
	}
	return nil, false
}

// Len reports the number of entries.
func (t *Table) Len() int {
	return len(t.entries)
}

// Each calls fn for every entry in sorted order until fn returns false.
func (t *Table) Each(fn func(Entry) bool) {
	for _, e := range t.entries {
		if !fn(e) {
			return
		}
	}
}
