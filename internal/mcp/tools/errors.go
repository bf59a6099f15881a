package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/usestring/shapescan/internal/store"
)

// Error codes for MCP tool responses.
const (
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeSourceError  = "SOURCE_ERROR"
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeTimeout      = "TIMEOUT"
)

// CodedError is an error with an associated error code.
type CodedError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CodedError) Unwrap() error {
	return e.Cause
}

// WrapSourceError converts a source or pipeline failure to a coded error.
func WrapSourceError(err error) error {
	if err == nil {
		return nil
	}

	coded := &CodedError{Code: ErrCodeSourceError, Message: "reading source failed", Cause: err}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		coded.Code = ErrCodeTimeout
		coded.Message = "source timed out"
	}

	slog.Warn("source error",
		slog.String("code", coded.Code),
		slog.String("error", err.Error()),
	)

	return coded
}

// WrapStoreError converts a run store failure to a coded error.
func WrapStoreError(err error, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound("run", id)
	}
	return err
}

// ErrNotFound creates a not found error.
func ErrNotFound(resource, id string) error {
	return &CodedError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// ErrInvalidInput creates an invalid input error.
func ErrInvalidInput(message string) error {
	return &CodedError{
		Code:    ErrCodeInvalidInput,
		Message: message,
	}
}
