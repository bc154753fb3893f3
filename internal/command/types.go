package command

import (
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes what a command sets on its device.
type Kind string

// Command kinds.
const (
	// KindPower sets a duty cycle on a pwm device (0-100 per cent).
	KindPower Kind = "power"

	// KindState sets an on/off state on a digital device (0 or 1).
	KindState Kind = "state"
)

// Command is a single device command headed for the hardware.
//
// Commands are created per dispatched action and consumed immediately;
// after dispatch only the history entry is mutated to attach the
// execution result.
type Command struct {
	// ID is the unique command identifier, generated at creation.
	ID string `json:"id"`

	// DeviceID names the target actuator.
	DeviceID string `json:"device_id"`

	Kind  Kind    `json:"kind"`
	Value float64 `json:"value"`

	// Duration bounds a timed action: after it elapses the device
	// reverts to its default value. Zero means the value holds.
	Duration time.Duration `json:"-"`

	// IssuedAt is when the command was created.
	IssuedAt time.Time `json:"issued_at"`
}

// New creates a command with a fresh ID and timestamp.
func New(deviceID string, kind Kind, value float64, duration time.Duration) Command {
	return Command{
		ID:       uuid.New().String(),
		DeviceID: deviceID,
		Kind:     kind,
		Value:    value,
		Duration: duration,
		IssuedAt: time.Now().UTC(),
	}
}

// IsStop reports whether the command turns its device off
// (power 0 or state off). Stop commands are critical: a failed stop
// aborts the remainder of its batch.
func (c Command) IsStop() bool {
	return c.Value == 0
}

// ConflictType is the machine-readable category of a rejection.
type ConflictType string

// Conflict types, in check order.
const (
	ConflictDeviceLock    ConflictType = "device_lock"
	ConflictTimeWindow    ConflictType = "time_window"
	ConflictSafetyRule    ConflictType = "safety_rule"
	ConflictUnknownDevice ConflictType = "unknown_device"
	ConflictDeviceOffline ConflictType = "device_offline"
	ConflictRedundant     ConflictType = "redundant_command"
)

// ConflictResult is the outcome of one Detector check.
// Produced fresh per check, never persisted.
type ConflictResult struct {
	HasConflict bool         `json:"has_conflict"`
	Reason      string       `json:"reason,omitempty"`
	Type        ConflictType `json:"conflict_type,omitempty"`

	// Earlier is the previously accepted command that triggered a
	// time-window rejection.
	Earlier *Command `json:"earlier,omitempty"`

	// RuleName names the safety rule that rejected the command.
	RuleName string `json:"rule_name,omitempty"`
}

// accept returns a passing result.
func accept() ConflictResult {
	return ConflictResult{}
}

// Status describes what became of a processed command.
type Status string

// Command statuses.
const (
	StatusExecuted Status = "executed"
	StatusRejected Status = "rejected"
	StatusFailed   Status = "failed"
)

// Result is the outcome of Dispatcher.Process for one command.
type Result struct {
	Command Command `json:"command"`
	Status  Status  `json:"status"`

	// Conflict carries the rejection detail when Status is rejected
	// for a conflict.
	Conflict *ConflictResult `json:"conflict,omitempty"`

	// Err is the validation, conflict, or transport error. Never set
	// when Status is executed.
	Err error `json:"-"`
}
