package task

import (
	"fmt"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxNameLength = 100

	// maxDelayNesting bounds how deep delay subtrees may nest.
	maxDelayNesting = 8
)

// Validate performs comprehensive validation on a task.
// Returns an error describing the first validation failure found.
//
// An empty step list is allowed: the task is storable and completes
// immediately when run.
func Validate(t *Task) error {
	if t == nil {
		return ErrInvalid
	}

	if t.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if len(t.Name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}

	for i := range t.Steps {
		if err := validateStep(&t.Steps[i]); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}

// validateStep checks a step's actions and loops.
func validateStep(s *Step) error {
	if err := validateActions(s.Actions, 0); err != nil {
		return err
	}
	for i := range s.Loops {
		if err := validateLoop(&s.Loops[i]); err != nil {
			return fmt.Errorf("loop %d: %w", i, err)
		}
	}
	return nil
}

// validateActions walks an action list, recursing into delay subtrees.
func validateActions(actions Actions, depth int) error {
	if depth > maxDelayNesting {
		return fmt.Errorf("%w: delay nesting exceeds %d levels", ErrInvalidAction, maxDelayNesting)
	}

	for i, a := range actions {
		switch v := a.(type) {
		case Direct:
			if err := validateDirect(v); err != nil {
				return fmt.Errorf("action %d: %w", i, err)
			}
		case Delay:
			if v.After < 0 {
				return fmt.Errorf("action %d: %w: negative delay", i, ErrInvalidAction)
			}
			if err := validateActions(v.Actions, depth+1); err != nil {
				return fmt.Errorf("action %d: %w", i, err)
			}
			for j := range v.Loops {
				if err := validateLoop(&v.Loops[j]); err != nil {
					return fmt.Errorf("action %d: loop %d: %w", i, j, err)
				}
			}
		default:
			return fmt.Errorf("action %d: %w: %T", i, ErrUnknownActionType, a)
		}
	}
	return nil
}

// validateDirect checks a single direct action.
func validateDirect(d Direct) error {
	if d.DeviceID == "" {
		return fmt.Errorf("%w: device_id is required", ErrInvalidAction)
	}
	switch d.Kind {
	case KindPower, KindState:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidAction, d.Kind)
	}
	if d.Duration < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidAction)
	}
	if d.Value < 0 {
		return fmt.Errorf("%w: negative value", ErrInvalidAction)
	}
	return nil
}

// validateLoop checks a parallel loop.
func validateLoop(l *ParallelLoop) error {
	if l.Iterations < 1 {
		return fmt.Errorf("%w: iterations must be at least 1", ErrInvalidLoop)
	}
	if l.Interval < 0 {
		return fmt.Errorf("%w: negative interval", ErrInvalidLoop)
	}
	if len(l.SubSteps) == 0 {
		return fmt.Errorf("%w: at least one sub-step is required", ErrInvalidLoop)
	}
	for i, ss := range l.SubSteps {
		for j, d := range ss.Actions {
			if err := validateDirect(d); err != nil {
				return fmt.Errorf("sub-step %d action %d: %w", i, j, err)
			}
		}
	}
	return nil
}

// GenerateID creates a new unique identifier for a task.
func GenerateID() string {
	return uuid.New().String()
}
