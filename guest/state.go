package guest

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/weval-runtime/lookup"
)

// Mode selects the dispatcher behavior for one process image. The zero
// value is Collecting.
type Mode uint32

const (
	// Collecting gathers requests into the pending queue for a later
	// specializer run.
	Collecting Mode = iota
	// Resolving matches requests against an installed lookup table.
	Resolving
)

func (m Mode) String() string {
	switch m {
	case Collecting:
		return "collecting"
	case Resolving:
		return "resolving"
	}
	return fmt.Sprintf("mode(%d)", uint32(m))
}

// State owns one image's protocol state: the mode flag, the pending
// queue, the lookup table, and the target registry. Create one with
// Collect or Resolve; the mode is fixed for the State's lifetime. Not
// safe for concurrent use.
type State struct {
	mode    Mode
	pending *Queue
	table   *lookup.Table
	targets *Registry
}

// Collect creates a state in collecting mode with an empty queue.
func Collect() *State {
	return &State{
		mode:    Collecting,
		pending: NewQueue(),
		targets: NewRegistry(),
	}
}

// Resolve creates a state in resolving mode over an installed table. A
// nil table is a valid empty one; every request then misses.
func Resolve(table *lookup.Table) *State {
	if table == nil {
		table = &lookup.Table{}
	}
	return &State{
		mode:    Resolving,
		pending: NewQueue(),
		table:   table,
		targets: NewRegistry(),
	}
}

// Mode reports the dispatch mode.
func (s *State) Mode() Mode { return s.mode }

// Table returns the installed lookup table, nil while collecting.
func (s *State) Table() *lookup.Table { return s.table }

// Targets returns the function identity registry.
func (s *State) Targets() *Registry { return s.targets }

// Submit dispatches one request. Collecting: the request is queued at the
// front and its handle returned; the caller keeps it queued until the
// requests are harvested, then releases it. Resolving: the table is
// searched, a hit writes the specialized function into the request's
// destination slot, a miss leaves the slot untouched; nothing is retained
// and NoHandle is returned. Submit never blocks and never fails: anything
// that can go wrong was already rejected while encoding the key.
func (s *State) Submit(req *Request) Handle {
	if s.mode == Resolving {
		fn, ok := s.table.Find(req.FuncID, req.Key)
		if ok && req.Dest != nil {
			req.Dest.resolve(fn)
		}
		Logger().Debug("resolved request",
			zap.Uint32("func_id", req.FuncID),
			zap.Int("key_len", len(req.Key)),
			zap.Bool("hit", ok))
		return NoHandle
	}

	h := s.pending.Push(req)
	Logger().Debug("queued request",
		zap.Uint32("func_id", req.FuncID),
		zap.Int("key_len", len(req.Key)),
		zap.Uint32("handle", uint32(h)))
	return h
}

// Request encodes args and submits the result in one step. On encode
// failure nothing is queued and the destination slot is untouched; the
// caller falls back to the generic implementation.
func (s *State) Request(dest *Slot, generic any, funcID uint32, args ...Arg) (Handle, error) {
	req, err := NewRequest(dest, generic, funcID, args...)
	if err != nil {
		return NoHandle, err
	}
	return s.Submit(req), nil
}

// Release drops a queued request. NoHandle and already-released handles
// are ignored.
func (s *State) Release(h Handle) {
	if h == NoHandle {
		return
	}
	if req := s.pending.Remove(h); req != nil {
		Logger().Debug("released request",
			zap.Uint32("func_id", req.FuncID),
			zap.Uint32("handle", uint32(h)))
	}
}

// Pending reports the number of queued requests.
func (s *State) Pending() int { return s.pending.Len() }

// EachPending walks queued requests, most recently submitted first.
func (s *State) EachPending(fn func(Handle, *Request) bool) {
	s.pending.Each(fn)
}
