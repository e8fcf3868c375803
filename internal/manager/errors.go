package manager

import (
	"errors"
	"fmt"
)

// tooBusyError signals that no animation slot could be freed (429). code
// names the exhausted resource for the backpressure metric.
type tooBusyError struct {
	code   string
	reason string
}

func (e tooBusyError) Error() string { return "too busy: " + e.reason }

// ErrTooBusy returns a backpressure error for the exhausted resource code.
func ErrTooBusy(code, reason string) error { return tooBusyError{code: code, reason: reason} }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	var e tooBusyError
	return errors.As(err, &e)
}

// TooBusyReason returns the backpressure reason carried by err, or "" when
// err is not a too-busy error.
func TooBusyReason(err error) string {
	var e tooBusyError
	if !errors.As(err, &e) {
		return ""
	}
	return e.code
}

type animationNotFoundError struct{ id string }

func (e animationNotFoundError) Error() string { return "animation not found: " + e.id }

// ErrAnimationNotFound returns an error for an unknown animation id.
func ErrAnimationNotFound(id string) error { return animationNotFoundError{id: id} }

// IsAnimationNotFound reports whether the error indicates a missing animation id.
func IsAnimationNotFound(err error) bool {
	var e animationNotFoundError
	return errors.As(err, &e)
}

// dependencyUnavailableError signals a missing external dependency (the
// native renderer) or a closed manager so the HTTP layer can return 503.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing/failed runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var e dependencyUnavailableError
	return errors.As(err, &e)
}

// invalidRequestError marks caller mistakes (400).
type invalidRequestError struct{ err error }

func (e invalidRequestError) Error() string { return e.err.Error() }
func (e invalidRequestError) Unwrap() error { return e.err }

// ErrInvalidRequest wraps err as a validation failure.
func ErrInvalidRequest(err error) error {
	if err == nil {
		return nil
	}
	return invalidRequestError{err: err}
}

func invalidf(format string, args ...any) error {
	return invalidRequestError{err: fmt.Errorf(format, args...)}
}

// IsInvalidRequest reports whether err is a validation failure.
func IsInvalidRequest(err error) bool {
	var e invalidRequestError
	return errors.As(err, &e)
}

var errClosed = ErrDependencyUnavailable("manager is closed")
