package command

import (
	"fmt"
	"sync"
	"time"

	"github.com/fishcontrol/fishcontrol-core/internal/device"
)

// DefaultConflictWindow is the minimum spacing between accepted commands
// for the same device.
const DefaultConflictWindow = 50 * time.Millisecond

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// DetectorConfig carries the detector's tunables.
type DetectorConfig struct {
	// ConflictWindow is the minimum spacing between accepted commands
	// for the same device. Zero means DefaultConflictWindow.
	ConflictWindow time.Duration

	// Limits configures the built-in safety rules.
	Limits Limits
}

// Detector decides whether a candidate command may reach the hardware.
//
// Checks run in a fixed order, short-circuiting on the first failure:
// device lock, time window, safety rules (registration order), logic
// checks. Accepted commands are recorded into the history, which also
// backs the time-window check.
//
// All public methods are thread-safe.
type Detector struct {
	states  *device.StateStore
	history *History
	window  time.Duration

	rulesMu sync.RWMutex
	rules   []SafetyRule

	logger Logger
}

// NewDetector creates a detector with the built-in safety rules
// registered in their fixed order.
func NewDetector(states *device.StateStore, history *History, cfg DetectorConfig) *Detector {
	window := cfg.ConflictWindow
	if window <= 0 {
		window = DefaultConflictWindow
	}
	limits := cfg.Limits
	if limits == (Limits{}) {
		limits = DefaultLimits()
	}

	return &Detector{
		states:  states,
		history: history,
		window:  window,
		rules:   BuiltinRules(limits),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the detector.
func (d *Detector) SetLogger(logger Logger) {
	d.logger = logger
}

// RegisterRule appends a safety rule after the built-ins.
// Rules are evaluated in registration order.
func (d *Detector) RegisterRule(rule SafetyRule) {
	d.rulesMu.Lock()
	d.rules = append(d.rules, rule)
	d.rulesMu.Unlock()
}

// Check gates one command. A passing command is recorded into the
// history before returning.
func (d *Detector) Check(cmd Command) ConflictResult {
	// 1. Device lock
	if d.states.IsLocked(cmd.DeviceID) {
		return ConflictResult{
			HasConflict: true,
			Type:        ConflictDeviceLock,
			Reason:      fmt.Sprintf("device %s holds an unexpired lock", cmd.DeviceID),
		}
	}

	// 2. Time window
	if last, ok := d.history.LastAccepted(cmd.DeviceID); ok {
		if elapsed := time.Since(last.AcceptedAt); elapsed < d.window {
			earlier := last.Command
			return ConflictResult{
				HasConflict: true,
				Type:        ConflictTimeWindow,
				Reason:      fmt.Sprintf("command accepted %s ago, window is %s", elapsed.Round(time.Millisecond), d.window),
				Earlier:     &earlier,
			}
		}
	}

	// 3. Safety rules, in registration order
	d.rulesMu.RLock()
	rules := d.rules
	d.rulesMu.RUnlock()

	for _, rule := range rules {
		if !rule.AppliesTo(cmd) {
			continue
		}
		if reason := rule.Evaluate(cmd, d.states); reason != "" {
			return ConflictResult{
				HasConflict: true,
				Type:        ConflictSafetyRule,
				Reason:      reason,
				RuleName:    rule.Name,
			}
		}
	}

	// 4. Logic checks
	st, err := d.states.Get(cmd.DeviceID)
	if err != nil {
		return ConflictResult{
			HasConflict: true,
			Type:        ConflictUnknownDevice,
			Reason:      fmt.Sprintf("device %s is not in the catalog", cmd.DeviceID),
		}
	}
	if !st.Online {
		return ConflictResult{
			HasConflict: true,
			Type:        ConflictDeviceOffline,
			Reason:      fmt.Sprintf("device %s is offline", cmd.DeviceID),
		}
	}
	// Value-only comparison: a repeated timed action with the same value
	// but a different duration is still redundant.
	if st.CurrentValue == cmd.Value {
		return ConflictResult{
			HasConflict: true,
			Type:        ConflictRedundant,
			Reason:      fmt.Sprintf("device %s already at value %g", cmd.DeviceID, cmd.Value),
		}
	}

	d.history.Record(cmd)
	return accept()
}
