package orders

import (
	"context"
	"errors"
	"fmt"

	"food-distribution-api/statemachine"
	"food-distribution-api/store"
)

// Code classifies every failure SubmitAction and the reads can return.
type Code string

const (
	CodeUnauthorized      Code = "unauthorized"
	CodeInvalidTransition Code = "invalid_transition"
	CodeConflict          Code = "conflict"
	CodeUnknown           Code = "unknown"
	CodeUnavailable       Code = "unavailable"
	CodeNotFound          Code = "not_found"
	CodeInvalidInput      Code = "invalid_input"
)

// Error is the single error type returned by the engine. Reason is a
// short machine-readable token such as "not_owner" or "wrong_state".
type Error struct {
	Code   Code
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf returns the code carried by err, or CodeUnavailable for errors
// that did not come from the engine.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnavailable
}

// Retryable reports whether the caller may re-read the order and try
// again. Unknown is not retryable blindly: the write may have landed.
func Retryable(err error) bool {
	c := CodeOf(err)
	return c == CodeConflict || c == CodeUnavailable
}

func newError(code Code, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// fromGuard maps a rejected transition.
func fromGuard(err error) error {
	var g *statemachine.GuardError
	if errors.As(err, &g) {
		return newError(CodeInvalidTransition, g.Reason, err)
	}
	return newError(CodeInvalidTransition, "", err)
}

// fromPlace maps a malformed new order.
func fromPlace(err error) error {
	switch {
	case errors.Is(err, statemachine.ErrEmptyOrder):
		return newError(CodeInvalidInput, "empty_order", err)
	case errors.Is(err, statemachine.ErrDuplicateLine):
		return newError(CodeInvalidInput, "duplicate_line", err)
	case errors.Is(err, statemachine.ErrInvalidQuantity):
		return newError(CodeInvalidInput, "invalid_quantity", err)
	}
	return newError(CodeInvalidInput, "", err)
}

// fromRead maps a failed read. Nothing was written, so a timeout is
// plain unavailability.
func fromRead(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(CodeUnavailable, "timeout", err)
	}
	return fromStore(err)
}

// fromStore maps a failed write.
func fromStore(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return newError(CodeNotFound, "", err)
	case errors.Is(err, store.ErrConflict):
		return newError(CodeConflict, "stale_version", err)
	case errors.Is(err, store.ErrWrongDataset):
		return newError(CodeUnauthorized, "not_owner", err)
	case errors.Is(err, context.DeadlineExceeded):
		return newError(CodeUnknown, "timeout", err)
	case errors.Is(err, context.Canceled):
		return newError(CodeUnavailable, "cancelled", err)
	}
	return newError(CodeUnavailable, "", fmt.Errorf("gateway: %w", err))
}
