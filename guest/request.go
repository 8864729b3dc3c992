package guest

// Slot is a caller-owned destination for a specialized function. The
// dispatcher writes it on a lookup hit and leaves it untouched otherwise,
// so an unset slot always means "call the generic fallback".
type Slot struct {
	fn  any
	set bool
}

// Resolved reports whether a specialized function has been written.
func (s *Slot) Resolved() bool { return s.set }

// Fn returns the specialized function, or nil while the slot is unset.
func (s *Slot) Fn() any {
	if !s.set {
		return nil
	}
	return s.fn
}

func (s *Slot) resolve(fn any) {
	s.fn = fn
	s.set = true
}

// As returns the slot's function as a concrete type. ok is false when the
// slot is unset or holds a different type; the caller then dispatches to
// its generic implementation.
func As[F any](s *Slot) (F, bool) {
	var zero F
	if s == nil || !s.set {
		return zero, false
	}
	fn, ok := s.fn.(F)
	if !ok {
		return zero, false
	}
	return fn, true
}

// Request is one specialization request: FuncID names the function stably
// across builds and relinks, Generic is the unspecialized fallback, Key
// is the encoded fixed-argument buffer, and Dest receives the specialized
// function if resolution finds one. The request owns its key for as long
// as it sits in a queue.
type Request struct {
	FuncID  uint32
	Generic any
	Key     []byte
	Dest    *Slot
}

// NewRequest encodes args into a key and builds the request. On encode
// failure no request exists; nothing is partially constructed for a
// caller to accidentally submit.
func NewRequest(dest *Slot, generic any, funcID uint32, args ...Arg) (*Request, error) {
	key, err := EncodeKey(args)
	if err != nil {
		return nil, err
	}
	return &Request{
		FuncID:  funcID,
		Generic: generic,
		Key:     key,
		Dest:    dest,
	}, nil
}
