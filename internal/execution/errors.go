package execution

import "errors"

// Domain errors for the execution package.
var (
	// ErrAlreadyRunning is returned by Start while a task is active.
	// One task at a time; callers stop the current run first.
	ErrAlreadyRunning = errors.New("execution: a task is already running")

	// ErrNilTask is returned by Start when no task is given.
	ErrNilTask = errors.New("execution: task is nil")
)
