package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeAlreadySubscribed = "already_subscribed"
	ErrCodeNotSubscribed     = "not_subscribed"
	ErrCodeBadRequest        = "bad_request"
	ErrCodeStorage           = "storage_error"
)

var (
	ErrAlreadySubscribed = errors.New("already subscribed")
	ErrNotSubscribed     = errors.New("not subscribed")
	ErrBadRequest        = errors.New("bad request")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
