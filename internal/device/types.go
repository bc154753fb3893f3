package device

import "time"

// Actuator represents a single physical device wired to the embedded
// controller. This matches the database schema in
// migrations/20250301_120000_create_devices.up.sql.
type Actuator struct {
	// Identity
	ID   string `json:"id"`
	Name string `json:"name"`

	// Classification
	Type Type `json:"type"`

	// Wiring
	Pin  int  `json:"pin"`
	Mode Mode `json:"mode"`

	// PWMFrequency is the drive frequency in Hz for pwm-mode devices.
	PWMFrequency *int `json:"pwm_frequency,omitempty"`

	// MaxPower caps the duty cycle for this device, in per cent.
	// Nil means the global limit applies unmodified.
	MaxPower *int `json:"max_power,omitempty"`

	// DefaultValue is the value the device reverts to when a timed
	// action expires (normally 0: off/closed).
	DefaultValue float64 `json:"default_value"`

	// Enabled devices are seeded into the state store; disabled ones
	// stay in the catalog but receive no commands.
	Enabled bool `json:"enabled"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy creates an independent copy of the Actuator.
// Pointer fields are cloned so modifications to the copy do not affect
// the original. This is essential for cache isolation.
func (a *Actuator) DeepCopy() *Actuator {
	if a == nil {
		return nil
	}

	cpy := *a // Shallow copy of value fields

	if a.PWMFrequency != nil {
		f := *a.PWMFrequency
		cpy.PWMFrequency = &f
	}
	if a.MaxPower != nil {
		p := *a.MaxPower
		cpy.MaxPower = &p
	}

	return &cpy
}

// Type classifies what an actuator physically is.
type Type string

// Actuator types.
const (
	TypePump  Type = "pump"
	TypeValve Type = "valve"
)

// AllTypes returns every recognised actuator type.
func AllTypes() []Type {
	return []Type{TypePump, TypeValve}
}

// Mode describes how an actuator is driven.
//
// PWM devices accept a duty cycle (0-100 per cent) via power commands.
// Digital devices accept an on/off state (0 or 1) via state commands.
type Mode string

// Drive modes.
const (
	ModePWM     Mode = "pwm"
	ModeDigital Mode = "digital"
)

// AllModes returns every recognised drive mode.
func AllModes() []Mode {
	return []Mode{ModePWM, ModeDigital}
}

// State is the runtime state of one actuator.
//
// One instance exists per enabled catalog entry. Instances are created
// when the StateStore is seeded and never deleted while the process runs.
type State struct {
	DeviceID string `json:"device_id"`

	// Online reflects controller reachability as observed by the
	// transport health monitor.
	Online bool `json:"online"`

	// CurrentValue is the last commanded value: a duty cycle for pwm
	// devices, 0/1 for digital devices.
	CurrentValue float64 `json:"current_value"`

	LastUpdate time.Time `json:"last_update"`

	// LockExpiry is set while the device holds an advisory lock.
	// Nil when unlocked.
	LockExpiry *time.Time `json:"lock_expiry,omitempty"`
}

// DeepCopy creates an independent copy of the State.
func (s *State) DeepCopy() *State {
	if s == nil {
		return nil
	}

	cpy := *s
	if s.LockExpiry != nil {
		t := *s.LockExpiry
		cpy.LockExpiry = &t
	}
	return &cpy
}

// StateUpdate is a partial state mutation applied via StateStore.Update.
// Nil fields are left unchanged.
type StateUpdate struct {
	Online       *bool
	CurrentValue *float64
}
