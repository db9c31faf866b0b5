// Package apperr holds the error kinds shared by services and handlers.
//
// Services return *Error values carrying a user-facing message; handlers
// match the kind with errors.Is and pick the HTTP response.
package apperr

import "errors"

var (
	ErrValidation = errors.New("validation failed")
	ErrAuth       = errors.New("invalid credentials")
	ErrDuplicate  = errors.New("already exists")
	ErrNotFound   = errors.New("not found")
)

type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func Validation(msg string) error { return &Error{Kind: ErrValidation, Message: msg} }
func Auth(msg string) error       { return &Error{Kind: ErrAuth, Message: msg} }
func Duplicate(msg string) error  { return &Error{Kind: ErrDuplicate, Message: msg} }
func NotFound(msg string) error   { return &Error{Kind: ErrNotFound, Message: msg} }

// Message returns the user-facing text of err, or fallback when err does
// not carry one.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}
