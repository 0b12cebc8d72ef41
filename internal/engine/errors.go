package engine

import (
	"errors"
	"fmt"
)

// ErrorKind discriminates engine failures so callers can react to the
// specific condition instead of a generic message.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindModelNotFound
	KindModelLoadFailed
	KindModelNotLoaded
	KindGenerationFailed
	KindGenerationTimeout
	KindInvalidResponse
	KindOutOfMemory
)

func (k ErrorKind) String() string {
	switch k {
	case KindModelNotFound:
		return "model_not_found"
	case KindModelLoadFailed:
		return "model_load_failed"
	case KindModelNotLoaded:
		return "model_not_loaded"
	case KindGenerationFailed:
		return "generation_failed"
	case KindGenerationTimeout:
		return "generation_timeout"
	case KindInvalidResponse:
		return "invalid_response"
	case KindOutOfMemory:
		return "out_of_memory"
	default:
		return "unknown"
	}
}

// Error is the typed failure returned by every fallible engine operation.
type Error struct {
	Kind   ErrorKind
	Reason string
	Path   string // model path for KindModelNotFound
	Raw    string // raw model output for KindInvalidResponse
	Cause  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindModelNotFound:
		return fmt.Sprintf("model not found: %s", e.Path)
	case KindModelNotLoaded:
		return "no model loaded"
	case KindGenerationTimeout:
		return "generation timed out"
	}
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ErrModelNotFound reports a missing model file.
func ErrModelNotFound(path string) *Error {
	return &Error{Kind: KindModelNotFound, Path: path}
}

// ErrModelLoadFailed reports a failed load attempt.
func ErrModelLoadFailed(reason string, cause error) *Error {
	return &Error{Kind: KindModelLoadFailed, Reason: reason, Cause: cause}
}

// ErrModelNotLoaded reports a call that requires a loaded model.
func ErrModelNotLoaded() *Error {
	return &Error{Kind: KindModelNotLoaded}
}

// ErrGenerationFailed reports a failed generation call.
func ErrGenerationFailed(reason string, cause error) *Error {
	return &Error{Kind: KindGenerationFailed, Reason: reason, Cause: cause}
}

// ErrGenerationTimeout reports a generation call that hit its ceiling.
func ErrGenerationTimeout(cause error) *Error {
	return &Error{Kind: KindGenerationTimeout, Cause: cause}
}

// ErrInvalidResponse reports model output that could not be used.
func ErrInvalidResponse(raw string) *Error {
	return &Error{Kind: KindInvalidResponse, Reason: "unusable model output", Raw: raw}
}

// ErrOutOfMemory reports the runtime running out of memory.
func ErrOutOfMemory(reason string, cause error) *Error {
	return &Error{Kind: KindOutOfMemory, Reason: reason, Cause: cause}
}

// KindOf extracts the engine error kind, or KindUnknown for foreign errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsTransient reports whether the failure is worth retrying. Timeouts are;
// a bad credential or a malformed model file is not.
func IsTransient(err error) bool {
	return KindOf(err) == KindGenerationTimeout
}
