package task

import (
	"encoding/json"
	"fmt"
	"time"
)

// Task is a named, ordered sequence of steps submitted for execution.
// This matches the database schema in
// migrations/20250301_130000_create_tasks.up.sql (steps serialised as JSON).
type Task struct {
	// Identity
	ID   string `json:"id"`
	Name string `json:"name"`

	// Description (optional)
	Description *string `json:"description,omitempty"`

	// Steps to execute (ordered)
	Steps []Step `json:"steps"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy creates a complete independent copy of the Task.
// The scheduler copies the task it starts so later catalog edits cannot
// reach into a running execution.
func (t *Task) DeepCopy() *Task {
	if t == nil {
		return nil
	}

	cpy := *t

	if t.Description != nil {
		d := *t.Description
		cpy.Description = &d
	}

	if t.Steps != nil {
		cpy.Steps = make([]Step, len(t.Steps))
		for i := range t.Steps {
			cpy.Steps[i] = *t.Steps[i].DeepCopy()
		}
	}

	return &cpy
}

// Step is a unit of a task. Its actions and loops are all evaluated
// relative to a shared step-start time.
type Step struct {
	// Actions is an ordered mix of direct actions and delay subtrees.
	Actions Actions `json:"actions"`

	// Loops run alongside the step's delays.
	Loops []ParallelLoop `json:"loops,omitempty"`
}

// DeepCopy creates an independent copy of the Step.
func (s *Step) DeepCopy() *Step {
	if s == nil {
		return nil
	}

	cpy := Step{
		Actions: copyActions(s.Actions),
		Loops:   copyLoops(s.Loops),
	}
	return &cpy
}

// ActionKind distinguishes what a direct action commands.
type ActionKind string

// Action kinds.
const (
	// KindPower sets a duty cycle on a pwm device (0-100 per cent).
	KindPower ActionKind = "power"

	// KindState sets an on/off state on a digital device (0 or 1).
	KindState ActionKind = "state"
)

// Action is a step entry: either a Direct command or a Delay subtree.
// The interface is sealed; Direct and Delay are the only variants.
type Action interface {
	isAction()
}

// Direct commands one device to one value, optionally for a bounded
// duration after which the device reverts to its default.
type Direct struct {
	DeviceID string
	Kind     ActionKind
	Value    float64
	Duration time.Duration
}

func (Direct) isAction() {}

// Delay nests further actions and loops that activate only after the
// delay elapses, measured from the moment the enclosing scope fired.
type Delay struct {
	After   time.Duration
	Actions Actions
	Loops   []ParallelLoop
}

func (Delay) isAction() {}

// ParallelLoop repeats its sub-steps a fixed number of times,
// independently of — but within the lifetime of — its enclosing step
// or delay.
type ParallelLoop struct {
	Iterations int
	Interval   time.Duration
	SubSteps   []SubStep
}

// SubStep holds one iteration slice of a loop: direct actions only,
// no further nesting.
type SubStep struct {
	Actions []Direct `json:"actions"`
}

// Actions is an ordered list of step entries with tagged-union JSON
// encoding. Each element carries a "type" discriminator: "direct" or
// "delay". Unknown discriminators are an unmarshal error.
type Actions []Action

// Action type discriminators on the wire.
const (
	actionTypeDirect = "direct"
	actionTypeDelay  = "delay"
)

// directJSON is the wire form of a Direct action.
type directJSON struct {
	Type       string     `json:"type"`
	DeviceID   string     `json:"device_id"`
	Kind       ActionKind `json:"kind"`
	Value      any        `json:"value"`
	DurationMS int64      `json:"duration_ms,omitempty"`
}

// delayJSON is the wire form of a Delay subtree.
type delayJSON struct {
	Type    string         `json:"type"`
	DelayMS int64          `json:"delay_ms"`
	Actions Actions        `json:"actions,omitempty"`
	Loops   []ParallelLoop `json:"loops,omitempty"`
}

// MarshalJSON encodes each action with its type discriminator.
func (as Actions) MarshalJSON() ([]byte, error) {
	out := make([]json.RawMessage, len(as))
	for i, a := range as {
		var (
			raw []byte
			err error
		)
		switch v := a.(type) {
		case Direct:
			raw, err = json.Marshal(directJSON{
				Type:       actionTypeDirect,
				DeviceID:   v.DeviceID,
				Kind:       v.Kind,
				Value:      v.Value,
				DurationMS: v.Duration.Milliseconds(),
			})
		case Delay:
			raw, err = json.Marshal(delayJSON{
				Type:    actionTypeDelay,
				DelayMS: v.After.Milliseconds(),
				Actions: v.Actions,
				Loops:   v.Loops,
			})
		default:
			err = fmt.Errorf("task: unknown action variant %T", a)
		}
		if err != nil {
			return nil, err
		}
		out[i] = raw
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a list of tagged actions.
func (as *Actions) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}

	actions := make(Actions, 0, len(raws))
	for i, raw := range raws {
		var probe struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			return fmt.Errorf("task: action %d: %w", i, err)
		}

		switch probe.Type {
		case actionTypeDirect:
			var dj directJSON
			if err := json.Unmarshal(raw, &dj); err != nil {
				return fmt.Errorf("task: action %d: %w", i, err)
			}
			value, err := normaliseValue(dj.Kind, dj.Value)
			if err != nil {
				return fmt.Errorf("task: action %d: %w", i, err)
			}
			actions = append(actions, Direct{
				DeviceID: dj.DeviceID,
				Kind:     dj.Kind,
				Value:    value,
				Duration: time.Duration(dj.DurationMS) * time.Millisecond,
			})
		case actionTypeDelay:
			var dj delayJSON
			if err := json.Unmarshal(raw, &dj); err != nil {
				return fmt.Errorf("task: action %d: %w", i, err)
			}
			actions = append(actions, Delay{
				After:   time.Duration(dj.DelayMS) * time.Millisecond,
				Actions: dj.Actions,
				Loops:   dj.Loops,
			})
		default:
			return fmt.Errorf("%w: %q", ErrUnknownActionType, probe.Type)
		}
	}

	*as = actions
	return nil
}

// normaliseValue coerces a JSON action value to float64.
// Boolean values for state actions map to 0/1.
func normaliseValue(kind ActionKind, v any) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case bool:
		if kind != KindState {
			return 0, fmt.Errorf("%w: boolean value on a %s action", ErrInvalidAction, kind)
		}
		if val {
			return 1, nil
		}
		return 0, nil
	case nil:
		return 0, fmt.Errorf("%w: value is required", ErrInvalidAction)
	default:
		return 0, fmt.Errorf("%w: unsupported value type %T", ErrInvalidAction, v)
	}
}

// loopJSON is the wire form of a ParallelLoop.
type loopJSON struct {
	Iterations int       `json:"iterations"`
	IntervalMS int64     `json:"interval_ms"`
	SubSteps   []SubStep `json:"sub_steps"`
}

// MarshalJSON encodes the loop interval as milliseconds.
func (l ParallelLoop) MarshalJSON() ([]byte, error) {
	return json.Marshal(loopJSON{
		Iterations: l.Iterations,
		IntervalMS: l.Interval.Milliseconds(),
		SubSteps:   l.SubSteps,
	})
}

// UnmarshalJSON decodes the loop interval from milliseconds.
func (l *ParallelLoop) UnmarshalJSON(data []byte) error {
	var lj loopJSON
	if err := json.Unmarshal(data, &lj); err != nil {
		return err
	}
	l.Iterations = lj.Iterations
	l.Interval = time.Duration(lj.IntervalMS) * time.Millisecond
	l.SubSteps = lj.SubSteps
	return nil
}

// subStepDirectJSON is the wire form of a Direct inside a SubStep.
// Sub-step actions carry no type discriminator: they are always direct.
type subStepDirectJSON struct {
	DeviceID   string     `json:"device_id"`
	Kind       ActionKind `json:"kind"`
	Value      any        `json:"value"`
	DurationMS int64      `json:"duration_ms,omitempty"`
}

// MarshalJSON encodes a direct action for sub-step use.
func (d Direct) MarshalJSON() ([]byte, error) {
	return json.Marshal(subStepDirectJSON{
		DeviceID:   d.DeviceID,
		Kind:       d.Kind,
		Value:      d.Value,
		DurationMS: d.Duration.Milliseconds(),
	})
}

// UnmarshalJSON decodes a direct action for sub-step use.
func (d *Direct) UnmarshalJSON(data []byte) error {
	var dj subStepDirectJSON
	if err := json.Unmarshal(data, &dj); err != nil {
		return err
	}
	value, err := normaliseValue(dj.Kind, dj.Value)
	if err != nil {
		return err
	}
	d.DeviceID = dj.DeviceID
	d.Kind = dj.Kind
	d.Value = value
	d.Duration = time.Duration(dj.DurationMS) * time.Millisecond
	return nil
}

// copyActions deep-copies an action list, recursing into delay subtrees.
func copyActions(actions Actions) Actions {
	if actions == nil {
		return nil
	}
	out := make(Actions, len(actions))
	for i, a := range actions {
		switch v := a.(type) {
		case Direct:
			out[i] = v
		case Delay:
			out[i] = Delay{
				After:   v.After,
				Actions: copyActions(v.Actions),
				Loops:   copyLoops(v.Loops),
			}
		}
	}
	return out
}

// copyLoops deep-copies a loop list.
func copyLoops(loops []ParallelLoop) []ParallelLoop {
	if loops == nil {
		return nil
	}
	out := make([]ParallelLoop, len(loops))
	for i, l := range loops {
		cp := l
		if l.SubSteps != nil {
			cp.SubSteps = make([]SubStep, len(l.SubSteps))
			for j, ss := range l.SubSteps {
				sub := SubStep{}
				if ss.Actions != nil {
					sub.Actions = make([]Direct, len(ss.Actions))
					copy(sub.Actions, ss.Actions)
				}
				cp.SubSteps[j] = sub
			}
		}
		out[i] = cp
	}
	return out
}
