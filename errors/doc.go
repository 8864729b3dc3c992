// Package errors provides structured error types for the weval-runtime library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: a context path, the export or intrinsic name
// involved, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseWire, errors.KindInvalidData).
//		Path("request", "arg[2]").
//		Detail("unknown argument type tag %d", tag).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.KeyTooLarge(size, guest.MaxKeyLen)
//	err := errors.OutOfBounds(errors.PhaseWire, path, off, 16, memSize)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
