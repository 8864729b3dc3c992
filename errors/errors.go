package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseEncode Phase = "encode" // argument key encoding
	PhaseDecode Phase = "decode" // argument key decoding
	PhaseQueue  Phase = "queue"  // pending request queue
	PhaseLookup Phase = "lookup" // lookup table search and validation
	PhaseWire   Phase = "wire"   // linear-memory protocol structures
	PhaseHost   Phase = "host"   // host module and registration surface
	PhaseRun    Phase = "run"    // request dispatch
)

// Kind categorizes the error
type Kind string

const (
	KindKeyTooLarge    Kind = "key_too_large"
	KindInvalidData    Kind = "invalid_data"
	KindOutOfBounds    Kind = "out_of_bounds"
	KindUnsorted       Kind = "unsorted"
	KindNotFound       Kind = "not_found"
	KindMissingExport  Kind = "missing_export"
	KindBadChain       Kind = "bad_chain"
	KindTypeMismatch   Kind = "type_mismatch"
	KindInvalidInput   Kind = "invalid_input"
	KindNotInitialized Kind = "not_initialized"
	KindInstantiation  Kind = "instantiation"
	KindUnsupported    Kind = "unsupported"
)

// Error is the structured error type used throughout the runtime
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Export string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Export != "" {
		b.WriteString(": export ")
		b.WriteString(e.Export)
	}

	if e.Detail != "" {
		if e.Export != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the context path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Export sets the export or intrinsic name
func (b *Builder) Export(name string) *Builder {
	b.err.Export = name
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// KeyTooLarge creates an error for an argument key exceeding the encoder cap
func KeyTooLarge(size, max int) *Error {
	return &Error{
		Phase:  PhaseEncode,
		Kind:   KindKeyTooLarge,
		Detail: fmt.Sprintf("argument key needs %d bytes, cap is %d", size, max),
		Value:  size,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// OutOfBounds creates an error for a memory access outside the image
func OutOfBounds(phase Phase, path []string, offset, length, size uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("%d bytes at 0x%x exceed memory size %d", length, offset, size),
		Value:  offset,
	}
}

// Unsorted creates an error for a lookup table order violation
func Unsorted(index int, detail string) *Error {
	return &Error{
		Phase:  PhaseLookup,
		Kind:   KindUnsorted,
		Detail: detail,
		Value:  index,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// MissingExport creates an error for an absent registration export
func MissingExport(name string) *Error {
	return &Error{
		Phase:  PhaseHost,
		Kind:   KindMissingExport,
		Export: name,
		Detail: "registration export not present in module",
	}
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, got, want string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Path:   path,
		Detail: fmt.Sprintf("got %s, want %s", got, want),
	}
}

// BadChain creates an error for a corrupt pending request chain
func BadChain(path []string, detail string) *Error {
	return &Error{
		Phase:  PhaseWire,
		Kind:   KindBadChain,
		Path:   path,
		Detail: detail,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// NotInitialized creates a not-initialized error for missing state
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}

// Instantiation creates an instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseHost,
		Kind:   KindInstantiation,
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// UnknownIntrinsicsError is returned when a client module imports names
// from the intrinsic module that the runtime does not provide.
type UnknownIntrinsicsError struct {
	Names []string
}

// NewUnknownIntrinsicsError creates an error from a list of import names,
// deduplicated in first-seen order.
func NewUnknownIntrinsicsError(names []string) *UnknownIntrinsicsError {
	result := &UnknownIntrinsicsError{
		Names: make([]string, 0, len(names)),
	}
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		result.Names = append(result.Names, name)
	}
	return result
}

func (e *UnknownIntrinsicsError) Error() string {
	if len(e.Names) == 0 {
		return "[host] missing_export: no intrinsics specified"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("unknown %d intrinsic import(s):\n", len(e.Names)))
	for _, name := range e.Names {
		b.WriteString("  - ")
		b.WriteString(name)
		b.WriteByte('\n')
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target matches this error type
func (e *UnknownIntrinsicsError) Is(target error) bool {
	_, ok := target.(*UnknownIntrinsicsError)
	return ok
}
