package transport

import "errors"

// Domain errors for the transport package.
var (
	// ErrSendFailed is returned when a command batch could not be
	// delivered to the controller.
	ErrSendFailed = errors.New("transport: send failed")

	// ErrBadStatus is returned when the controller answered with a
	// non-success HTTP status.
	ErrBadStatus = errors.New("transport: unexpected status")

	// ErrNotFound is returned when a discovery sweep finds no controller.
	ErrNotFound = errors.New("transport: controller not found")
)
