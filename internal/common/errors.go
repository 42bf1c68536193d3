// Package common defines shared constants and sentinel errors used across
// client and server layers of Bookly. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")

	// Error kinds surfaced to the user. Every failure that crosses a remote
	// call boundary is translated into one of these.
	ErrValidation  = errors.New("validation error")
	ErrRemoteWrite = errors.New("remote write error")
	ErrRemoteRead  = errors.New("remote read error")
	ErrNotFound    = errors.New("resource not found")
	ErrUpload      = errors.New("upload error")

	// ErrClosed is returned by operations on a disposed view.
	ErrClosed = errors.New("closed")
)

// Error is a user-facing failure. Message is static, human-readable text;
// Cause keeps the underlying error for logs and is never shown to the user.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

// Validation builds an ErrValidation failure.
func Validation(msg string) error {
	return &Error{Kind: ErrValidation, Message: msg}
}

// Wrap attaches kind and message to cause. A cause that already is an *Error
// is returned unchanged so the first translation wins.
func Wrap(kind error, msg string, cause error) error {
	var ue *Error
	if errors.As(cause, &ue) {
		return cause
	}
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// UserMessage returns the text that may be shown to a user for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Message
	}
	switch {
	case errors.Is(err, ErrorUnauthorized), errors.Is(err, ErrInvalidToken):
		return "You must be logged in."
	case errors.Is(err, ErrorNotFound), errors.Is(err, ErrNotFound):
		return "Not found."
	}
	return "Something went wrong. Please try again."
}
