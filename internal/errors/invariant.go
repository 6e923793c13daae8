package errors

import (
	stderrors "errors"
	"fmt"
)

// InvariantViolation signals a bug in an earlier phase: the IR handed to
// a pass broke one of its structural guarantees.
type InvariantViolation struct {
	Message string
}

func (e *InvariantViolation) Error() string {
	return "invariant violation: " + e.Message
}

// UnimplementedError signals valid input that is not supported yet
type UnimplementedError struct {
	Feature string
}

func (e *UnimplementedError) Error() string {
	return "unimplemented: " + e.Feature
}

// Invariant aborts the current pass with an InvariantViolation
func Invariant(format string, args ...any) {
	panic(&InvariantViolation{Message: fmt.Sprintf(format, args...)})
}

// NotImplemented aborts the current pass with an UnimplementedError
func NotImplemented(format string, args ...any) {
	panic(&UnimplementedError{Feature: fmt.Sprintf(format, args...)})
}

// Unimplemented returns an UnimplementedError for callers that report
// failures through return values
func Unimplemented(format string, args ...any) error {
	return &UnimplementedError{Feature: fmt.Sprintf(format, args...)}
}

// Recover converts an InvariantViolation or UnimplementedError panic into
// an error stored in *err. It must be deferred directly. Any other panic
// is propagated unchanged.
func Recover(err *error) {
	r := recover()
	if r == nil {
		return
	}
	switch e := r.(type) {
	case *InvariantViolation:
		*err = e
	case *UnimplementedError:
		*err = e
	default:
		panic(r)
	}
}

// IsInvariantViolation reports whether err wraps an InvariantViolation
func IsInvariantViolation(err error) bool {
	var iv *InvariantViolation
	return stderrors.As(err, &iv)
}

// IsUnimplemented reports whether err wraps an UnimplementedError
func IsUnimplemented(err error) bool {
	var ue *UnimplementedError
	return stderrors.As(err, &ue)
}

// FromFailure turns a pass failure into a diagnostic for the given function
func FromFailure(symbol string, err error) CompilerError {
	code := ErrorInvariantViolation
	help := "this is a bug in an earlier compilation phase; the function was left unoptimized"
	if IsUnimplemented(err) {
		code = ErrorUnimplemented
		help = "the function was left unoptimized"
	}
	return NewSemanticError(code, fmt.Sprintf("in function @%s: %s", symbol, err), Position{}).
		WithHelp(help).
		Build()
}
