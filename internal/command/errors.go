package command

import (
	"errors"
	"fmt"
)

// Domain errors for the command package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, command.ErrConflict) {
//	    // expected rejection, not a fault
//	}
var (
	// ErrInvalidCommand is returned when a command's shape does not fit
	// its target device. Rejected synchronously, no state touched.
	ErrInvalidCommand = errors.New("command: invalid")

	// ErrConflict is the base of all conflict rejections. Expected and
	// non-fatal; the concrete ConflictError carries the conflict type.
	ErrConflict = errors.New("command: conflict")

	// ErrTransport is returned when a send to the controller failed or
	// timed out. Swallowed at the dispatcher boundary and surfaced only
	// via the command-failed event.
	ErrTransport = errors.New("command: transport failure")
)

// ConflictError wraps a ConflictResult as an error.
// It unwraps to ErrConflict so callers can match the whole category.
type ConflictError struct {
	Result ConflictResult
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("command: conflict (%s): %s", e.Result.Type, e.Result.Reason)
}

// Unwrap allows errors.Is(err, ErrConflict).
func (e *ConflictError) Unwrap() error {
	return ErrConflict
}
