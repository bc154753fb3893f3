package task

import "errors"

// Domain errors for the task package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, task.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when a task ID does not exist.
	ErrNotFound = errors.New("task: not found")

	// ErrExists is returned when creating a task with an ID that already exists.
	ErrExists = errors.New("task: already exists")

	// ErrInvalid is returned when task validation fails.
	ErrInvalid = errors.New("task: invalid")

	// ErrInvalidName is returned when a task name is empty or too long.
	ErrInvalidName = errors.New("task: invalid name")

	// ErrInvalidAction is returned when an action within a task is invalid.
	ErrInvalidAction = errors.New("task: invalid action")

	// ErrInvalidLoop is returned when a parallel loop is invalid.
	ErrInvalidLoop = errors.New("task: invalid loop")

	// ErrUnknownActionType is returned when an action carries an
	// unrecognised type discriminator.
	ErrUnknownActionType = errors.New("task: unknown action type")
)
