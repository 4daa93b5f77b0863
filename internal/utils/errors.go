package utils

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks a request the caller must fix (blank question, missing telemetry).
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotConfigured marks a missing credential or collaborator.
	ErrNotConfigured = errors.New("not configured")
	// ErrUpstream marks a failed call to the language model, embedding or rerank service.
	ErrUpstream = errors.New("upstream failure")
)

// AppError wraps an operation, human-facing message, and underlying error.
type AppError struct {
	Op  string
	Msg string
	Err error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}

// InvalidInput reports a caller error for op.
func InvalidInput(op, msg string) error {
	return &AppError{Op: op, Msg: msg, Err: ErrInvalidInput}
}

// NotConfigured reports a missing dependency or credential for op.
func NotConfigured(op, msg string) error {
	return &AppError{Op: op, Msg: msg, Err: ErrNotConfigured}
}

// Upstream wraps err as an external call failure.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	return &AppError{Op: op, Msg: "upstream call failed", Err: errors.Join(ErrUpstream, err)}
}

// PublicMessage returns the message a caller may see for err. Details of
// internal failures stay in logs.
func PublicMessage(err error) string {
	var appErr *AppError
	switch {
	case errors.Is(err, ErrInvalidInput) && errors.As(err, &appErr):
		return appErr.Msg
	case errors.Is(err, ErrNotConfigured):
		return "service not configured"
	default:
		return "analysis failed"
	}
}
