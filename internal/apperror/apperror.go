package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")

	// ErrProtocol marks a malformed or unknown inbound message.
	ErrProtocol = errors.New("protocol error")

	// ErrConnectionLost marks a transport close, expected or not.
	ErrConnectionLost = errors.New("connection lost")

	// ErrReconnectExhausted is terminal: the client stopped retrying.
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")

	// ErrNotConnected is returned when sending without an open connection.
	ErrNotConnected = errors.New("not connected")
)

type AppError struct {
	Err     error  // sentinel the error classifies as
	Message string // human-readable message, safe to show to clients
	Field   string // optional field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// SessionNotFound is the error surfaced for joins and lookups against an unknown session.
func SessionNotFound(id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: "Session not found",
		Field:   id,
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

func Protocol(format string, args ...any) *AppError {
	return &AppError{
		Err:     ErrProtocol,
		Message: fmt.Sprintf(format, args...),
	}
}
