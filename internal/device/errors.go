package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when an actuator ID does not exist.
	ErrNotFound = errors.New("device: not found")

	// ErrExists is returned when creating an actuator with an ID that already exists.
	ErrExists = errors.New("device: already exists")

	// ErrPinInUse is returned when another actuator already occupies the pin.
	ErrPinInUse = errors.New("device: pin already in use")

	// ErrInvalid is returned when actuator validation fails.
	ErrInvalid = errors.New("device: invalid")

	// ErrInvalidType is returned when an actuator type is not recognised.
	ErrInvalidType = errors.New("device: invalid type")

	// ErrInvalidMode is returned when a drive mode is not recognised.
	ErrInvalidMode = errors.New("device: invalid mode")

	// ErrInvalidName is returned when an actuator name is empty or too long.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrInvalidPin is returned when a pin number is outside the usable range.
	ErrInvalidPin = errors.New("device: invalid pin")

	// ErrNotSeeded is returned when the state store has no entry for a device.
	ErrNotSeeded = errors.New("device: state not seeded")
)
