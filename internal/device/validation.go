package device

import (
	"fmt"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxNameLength = 100

	// Pin range of the controller board. Pin 0/1 are the serial pins
	// and are never wired to actuators.
	minPin = 2
	maxPin = 13
)

// Pre-computed validation sets for O(1) lookups.
var (
	validTypes map[Type]struct{}
	validModes map[Mode]struct{}
)

func init() {
	// Build validation sets once at startup
	validTypes = make(map[Type]struct{}, len(AllTypes()))
	for _, t := range AllTypes() {
		validTypes[t] = struct{}{}
	}

	validModes = make(map[Mode]struct{}, len(AllModes()))
	for _, m := range AllModes() {
		validModes[m] = struct{}{}
	}
}

// ValidateActuator performs comprehensive validation on an actuator.
// Returns an error describing the first validation failure found.
func ValidateActuator(a *Actuator) error {
	if a == nil {
		return ErrInvalid
	}

	if err := ValidateName(a.Name); err != nil {
		return err
	}

	if err := ValidateType(a.Type); err != nil {
		return err
	}

	if err := ValidateMode(a.Mode); err != nil {
		return err
	}

	if a.Pin < minPin || a.Pin > maxPin {
		return fmt.Errorf("%w: pin %d outside range %d-%d", ErrInvalidPin, a.Pin, minPin, maxPin)
	}

	if a.PWMFrequency != nil {
		if a.Mode != ModePWM {
			return fmt.Errorf("%w: pwm_frequency set on a %s device", ErrInvalid, a.Mode)
		}
		if *a.PWMFrequency < 1 {
			return fmt.Errorf("%w: pwm_frequency must be at least 1Hz", ErrInvalid)
		}
	}

	if a.MaxPower != nil {
		if *a.MaxPower < 1 || *a.MaxPower > 100 {
			return fmt.Errorf("%w: max_power must be between 1 and 100", ErrInvalid)
		}
	}

	switch a.Mode {
	case ModePWM:
		if a.DefaultValue < 0 || a.DefaultValue > 100 {
			return fmt.Errorf("%w: default_value must be between 0 and 100 for pwm devices", ErrInvalid)
		}
	case ModeDigital:
		if a.DefaultValue != 0 && a.DefaultValue != 1 {
			return fmt.Errorf("%w: default_value must be 0 or 1 for digital devices", ErrInvalid)
		}
	}

	return nil
}

// ValidateName checks an actuator name is present and within length limits.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateType checks an actuator type is recognised.
func ValidateType(t Type) error {
	if _, ok := validTypes[t]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidType, t)
	}
	return nil
}

// ValidateMode checks a drive mode is recognised.
func ValidateMode(m Mode) error {
	if _, ok := validModes[m]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidMode, m)
	}
	return nil
}

// GenerateID creates a new unique identifier for an actuator.
func GenerateID() string {
	return uuid.New().String()
}
