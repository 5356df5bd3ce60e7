// Package errors provides coded domain errors for the player and its control API.
//
// Usage:
//
//	// In the player - return typed errors
//	if p.state.Track == nil {
//	    return errors.ErrNoTrack
//	}
//
//	// At the API boundary - check with errors.Is
//	if errors.Is(err, errors.ErrPlaybackBlocked) {
//	    response.Conflict(w, err.Error(), logger)
//	    return
//	}
//
//	// Or switch on the Code directly
//	var domainErr *errors.Error
//	if errors.As(err, &domainErr) {
//	    switch domainErr.Code {
//	    case errors.CodeMediaLoad:
//	        ...
//	    }
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
	New    = errors.New
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the application.
const (
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidation      Code = "VALIDATION"
	CodeConflict        Code = "CONFLICT"
	CodeInternal        Code = "INTERNAL"
	CodeNoTrack         Code = "NO_TRACK"
	CodeMediaLoad       Code = "MEDIA_LOAD"
	CodePlaybackBlocked Code = "PLAYBACK_BLOCKED"
	CodeCheckpointWrite Code = "CHECKPOINT_WRITE"
	CodeRateLimited     Code = "RATE_LIMITED"
)

// Recoverable reports whether the condition can be resolved by the user
// (retrying a load, pressing play) rather than indicating a defect.
func (c Code) Recoverable() bool {
	switch c {
	case CodeMediaLoad, CodePlaybackBlocked, CodeCheckpointWrite, CodeNoTrack:
		return true
	default:
		return false
	}
}

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeNoTrack, CodePlaybackBlocked:
		return http.StatusConflict
	case CodeValidation:
		return http.StatusBadRequest
	case CodeMediaLoad:
		return http.StatusUnprocessableEntity
	case CodeCheckpointWrite:
		return http.StatusServiceUnavailable
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error  // unexported, for wrapping
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a new error with additional details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		cause:   e.cause,
	}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		cause:   err,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound        = &Error{Code: CodeNotFound, Message: "not found"}
	ErrValidation      = &Error{Code: CodeValidation, Message: "validation error"}
	ErrConflict        = &Error{Code: CodeConflict, Message: "conflict"}
	ErrInternal        = &Error{Code: CodeInternal, Message: "internal error"}
	ErrNoTrack         = &Error{Code: CodeNoTrack, Message: "no track loaded"}
	ErrMediaLoad       = &Error{Code: CodeMediaLoad, Message: "media failed to load"}
	ErrPlaybackBlocked = &Error{Code: CodePlaybackBlocked, Message: "playback blocked until user gesture"}
	ErrCheckpointWrite = &Error{Code: CodeCheckpointWrite, Message: "checkpoint write failed"}
)

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Internalf creates an internal error with formatted message.
func Internalf(format string, args ...any) *Error {
	return &Error{Code: CodeInternal, Message: fmt.Sprintf(format, args...)}
}

// MediaLoad creates a media load error for the given URI.
func MediaLoad(uri string, cause error) *Error {
	return &Error{Code: CodeMediaLoad, Message: fmt.Sprintf("load %q", uri), cause: cause}
}

// PlaybackBlocked creates a playback blocked error.
func PlaybackBlocked(cause error) *Error {
	return &Error{Code: CodePlaybackBlocked, Message: ErrPlaybackBlocked.Message, cause: cause}
}

// CheckpointWrite wraps a persistence failure from the checkpointer.
func CheckpointWrite(trackID string, cause error) *Error {
	return &Error{Code: CodeCheckpointWrite, Message: fmt.Sprintf("checkpoint %s", trackID), cause: cause}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}

// CodeOf extracts the code from err, or CodeInternal if err carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
