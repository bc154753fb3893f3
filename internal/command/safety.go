package command

import (
	"fmt"
	"time"

	"github.com/fishcontrol/fishcontrol-core/internal/device"
)

// SafetyRule is a named predicate+check pair vetting a command against
// domain limits. Rules are evaluated in registration order; the first
// non-empty reason rejects the command.
type SafetyRule struct {
	// Name identifies the rule in rejections and logs.
	Name string

	// AppliesTo filters which commands the rule inspects.
	AppliesTo func(cmd Command) bool

	// Evaluate returns a rejection reason, or "" to pass.
	Evaluate func(cmd Command, states *device.StateStore) string
}

// Limits carries the tunables of the built-in safety rules.
type Limits struct {
	// MaxPower is the highest accepted power value, in per cent.
	MaxPower float64

	// MaxDuration is the longest accepted timed action.
	MaxDuration time.Duration

	// MaxActivePWM caps simultaneously driven PWM devices with a
	// non-zero value.
	MaxActivePWM int
}

// DefaultLimits returns the stock safety limits.
func DefaultLimits() Limits {
	return Limits{
		MaxPower:     100,
		MaxDuration:  time.Hour,
		MaxActivePWM: 4,
	}
}

// Built-in rule names.
const (
	RuleMaxPower     = "max_power"
	RuleMaxDuration  = "max_duration"
	RuleMaxActivePWM = "max_active_pwm"
)

// BuiltinRules returns the stock safety rules in their fixed
// registration order: power cap, duration cap, active-PWM cap.
func BuiltinRules(limits Limits) []SafetyRule {
	return []SafetyRule{
		maxPowerRule(limits.MaxPower),
		maxDurationRule(limits.MaxDuration),
		maxActivePWMRule(limits.MaxActivePWM),
	}
}

// maxPowerRule rejects power values above the global cap, or above the
// device's own max_power when the catalog sets a lower one.
func maxPowerRule(maxPower float64) SafetyRule {
	return SafetyRule{
		Name: RuleMaxPower,
		AppliesTo: func(cmd Command) bool {
			return cmd.Kind == KindPower
		},
		Evaluate: func(cmd Command, states *device.StateStore) string {
			limit := maxPower
			if a, ok := states.Actuator(cmd.DeviceID); ok && a.MaxPower != nil && float64(*a.MaxPower) < limit {
				limit = float64(*a.MaxPower)
			}
			if cmd.Value > limit {
				return fmt.Sprintf("power %.0f%% exceeds limit %.0f%%", cmd.Value, limit)
			}
			return ""
		},
	}
}

// maxDurationRule rejects timed actions longer than the cap.
func maxDurationRule(maxDuration time.Duration) SafetyRule {
	return SafetyRule{
		Name: RuleMaxDuration,
		AppliesTo: func(cmd Command) bool {
			return cmd.Duration > 0
		},
		Evaluate: func(cmd Command, _ *device.StateStore) string {
			if cmd.Duration > maxDuration {
				return fmt.Sprintf("duration %s exceeds limit %s", cmd.Duration, maxDuration)
			}
			return ""
		},
	}
}

// maxActivePWMRule bounds how many PWM devices may be driven at once.
// A command that would bring the count of PWM devices with value > 0 up
// to the cap is rejected; commands to an already-active device pass.
func maxActivePWMRule(maxActive int) SafetyRule {
	return SafetyRule{
		Name: RuleMaxActivePWM,
		AppliesTo: func(cmd Command) bool {
			return cmd.Kind == KindPower && cmd.Value > 0
		},
		Evaluate: func(cmd Command, states *device.StateStore) string {
			active := 0
			for _, st := range states.All() {
				if st.DeviceID == cmd.DeviceID {
					continue
				}
				a, ok := states.Actuator(st.DeviceID)
				if !ok || a.Mode != device.ModePWM {
					continue
				}
				if st.CurrentValue > 0 {
					active++
				}
			}
			if active+1 >= maxActive {
				return fmt.Sprintf("%d PWM devices already active, limit %d", active, maxActive)
			}
			return ""
		},
	}
}
