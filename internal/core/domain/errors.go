package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrPrecondition        = errors.New("precondition failed")
	ErrAnalysisFailed      = errors.New("analysis failed")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrTemporary           = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// PreconditionError rejects a request before any state change. Messages are
// human-readable and safe to return to callers.
type PreconditionError struct {
	Messages []string
}

func NewPreconditionError(messages ...string) *PreconditionError {
	return &PreconditionError{Messages: messages}
}

func (e *PreconditionError) Error() string {
	if e == nil || len(e.Messages) == 0 {
		return ErrPrecondition.Error()
	}
	return strings.Join(e.Messages, "; ")
}

func (e *PreconditionError) Unwrap() error {
	return ErrPrecondition
}

// PreconditionMessages returns the caller-facing messages carried by err, if any.
func PreconditionMessages(err error) []string {
	var precondition *PreconditionError
	if errors.As(err, &precondition) {
		return append([]string(nil), precondition.Messages...)
	}
	return nil
}
