package execution

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fishcontrol/fishcontrol-core/internal/command"
	"github.com/fishcontrol/fishcontrol-core/internal/task"
)

// captureDispatcher records submitted batches.
type captureDispatcher struct {
	mu      sync.Mutex
	batches [][]command.Command
}

func (c *captureDispatcher) Submit(cmds []command.Command) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, cmds)
}

func (c *captureDispatcher) all() [][]command.Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]command.Command, len(c.batches))
	copy(out, c.batches)
	return out
}

// captureEvents records lifecycle notifications.
type captureEvents struct {
	mu        sync.Mutex
	completed []Status
	timedOut  []Status
}

func (c *captureEvents) TaskCompleted(st Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completed = append(c.completed, st)
}

func (c *captureEvents) TaskTimedOut(st Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timedOut = append(c.timedOut, st)
}

func (c *captureEvents) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.completed), len(c.timedOut)
}

// newTestScheduler builds a scheduler whose real tick loop never fires
// within a test, so ticks are driven synthetically.
func newTestScheduler(t *testing.T) (*Scheduler, *captureDispatcher, *captureEvents) {
	t.Helper()

	disp := &captureDispatcher{}
	events := &captureEvents{}
	s := NewScheduler(disp, SchedulerConfig{TickInterval: time.Hour})
	s.SetEvents(events)
	t.Cleanup(s.Stop)
	return s, disp, events
}

func powerAction(deviceID string, value float64, duration time.Duration) task.Direct {
	return task.Direct{DeviceID: deviceID, Kind: task.KindPower, Value: value, Duration: duration}
}

func simpleTask(steps ...task.Step) *task.Task {
	return &task.Task{ID: "t1", Name: "test task", Steps: steps}
}

func flatValues(batches [][]command.Command) []float64 {
	var out []float64
	for _, b := range batches {
		for _, c := range b {
			out = append(out, c.Value)
		}
	}
	return out
}

func TestSchedulerStartValidation(t *testing.T) {
	s, _, _ := newTestScheduler(t)

	if err := s.Start(nil, 0); !errors.Is(err, ErrNilTask) {
		t.Errorf("Start(nil) error = %v, want ErrNilTask", err)
	}

	tk := simpleTask(task.Step{Actions: task.Actions{
		task.Delay{After: time.Minute},
	}})
	if err := s.Start(tk, 0); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Start(tk, 0); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start() error = %v, want ErrAlreadyRunning", err)
	}

	s.Stop()
	if err := s.Start(tk, 0); err != nil {
		t.Errorf("Start() after Stop error = %v", err)
	}
}

func TestSchedulerEmptyTaskCompletes(t *testing.T) {
	s, disp, events := newTestScheduler(t)

	if err := s.Start(simpleTask(), 0); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	s.tick(time.Now())

	st := s.Status()
	if st.IsRunning {
		t.Error("expected scheduler idle after empty task")
	}
	if !st.Completed {
		t.Error("expected task marked completed")
	}
	if completed, _ := events.counts(); completed != 1 {
		t.Errorf("completed events = %d, want 1", completed)
	}
	if len(disp.all()) != 0 {
		t.Error("empty task must not submit commands")
	}
}

func TestSchedulerDirectActionsFireOnce(t *testing.T) {
	s, disp, events := newTestScheduler(t)

	tk := simpleTask(task.Step{Actions: task.Actions{
		powerAction("pump1", 50, 0),
		task.Direct{DeviceID: "valve1", Kind: task.KindState, Value: 1},
	}})
	if err := s.Start(tk, 0); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	s.tick(time.Now())

	batches := disp.all()
	if len(batches) != 1 {
		t.Fatalf("got %d batches, want 1", len(batches))
	}
	if len(batches[0]) != 2 {
		t.Fatalf("got %d commands, want 2", len(batches[0]))
	}
	if batches[0][0].DeviceID != "pump1" || batches[0][0].Kind != command.KindPower {
		t.Errorf("first command = %+v, want pump1 power", batches[0][0])
	}
	if batches[0][1].DeviceID != "valve1" || batches[0][1].Kind != command.KindState {
		t.Errorf("second command = %+v, want valve1 state", batches[0][1])
	}

	// Single step, nothing pending: the same tick finishes the run
	if completed, _ := events.counts(); completed != 1 {
		t.Errorf("completed events = %d, want 1", completed)
	}
}

func TestSchedulerStepsRunInOrder(t *testing.T) {
	s, disp, events := newTestScheduler(t)

	tk := simpleTask(
		task.Step{Actions: task.Actions{powerAction("pump1", 40, 0)}},
		task.Step{Actions: task.Actions{powerAction("pump2", 60, 0)}},
	)
	if err := s.Start(tk, 0); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	start := time.Now()
	s.tick(start)

	st := s.Status()
	if !st.IsRunning || st.CurrentStep != 2 {
		t.Errorf("after first tick: running=%v step=%d, want running step 2", st.IsRunning, st.CurrentStep)
	}

	s.tick(start.Add(100 * time.Millisecond))

	batches := disp.all()
	if len(batches) != 2 {
		t.Fatalf("got %d batches, want 2", len(batches))
	}
	if batches[0][0].DeviceID != "pump1" || batches[1][0].DeviceID != "pump2" {
		t.Errorf("batch order = %s, %s; want pump1, pump2", batches[0][0].DeviceID, batches[1][0].DeviceID)
	}
	if completed, _ := events.counts(); completed != 1 {
		t.Errorf("completed events = %d, want 1", completed)
	}
}

func TestSchedulerDelayFiresAtEndTime(t *testing.T) {
	s, disp, events := newTestScheduler(t)

	tk := simpleTask(task.Step{Actions: task.Actions{
		powerAction("pump1", 50, 0),
		task.Delay{
			After:   300 * time.Millisecond,
			Actions: task.Actions{powerAction("pump2", 70, 0)},
		},
	}})
	if err := s.Start(tk, 0); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	start := time.Now()
	s.tick(start)

	if st := s.Status(); st.PendingDelays != 1 {
		t.Errorf("pending delays = %d, want 1", st.PendingDelays)
	}

	// Before the delay elapses nothing more fires
	s.tick(start.Add(100 * time.Millisecond))
	s.tick(start.Add(200 * time.Millisecond))
	if got := len(disp.all()); got != 1 {
		t.Fatalf("got %d batches before delay end, want 1", got)
	}

	s.tick(start.Add(400 * time.Millisecond))

	batches := disp.all()
	if len(batches) != 2 {
		t.Fatalf("got %d batches, want 2", len(batches))
	}
	if batches[1][0].DeviceID != "pump2" {
		t.Errorf("delayed command device = %s, want pump2", batches[1][0].DeviceID)
	}
	if completed, _ := events.counts(); completed != 1 {
		t.Errorf("completed events = %d, want 1", completed)
	}
}

func TestSchedulerNestedDelays(t *testing.T) {
	s, disp, _ := newTestScheduler(t)

	// Outer fires at +100ms, inner counts from there and fires at +300ms
	tk := simpleTask(task.Step{Actions: task.Actions{
		task.Delay{
			After:   100 * time.Millisecond,
			Actions: task.Actions{
				powerAction("pump1", 30, 0),
				task.Delay{
					After:   200 * time.Millisecond,
					Actions: task.Actions{powerAction("pump2", 80, 0)},
				},
			},
		},
	}})
	if err := s.Start(tk, 0); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	start := time.Now()
	s.tick(start)
	if got := len(disp.all()); got != 0 {
		t.Fatalf("got %d batches at start, want 0", got)
	}

	s.tick(start.Add(150 * time.Millisecond))
	batches := disp.all()
	if len(batches) != 1 || batches[0][0].DeviceID != "pump1" {
		t.Fatalf("after outer delay: batches = %+v, want one pump1 batch", batches)
	}

	// Inner not yet due at +250ms (ends ~+350ms)
	s.tick(start.Add(250 * time.Millisecond))
	if got := len(disp.all()); got != 1 {
		t.Fatalf("got %d batches before inner delay end, want 1", got)
	}

	s.tick(start.Add(400 * time.Millisecond))
	batches = disp.all()
	if len(batches) != 2 || batches[1][0].DeviceID != "pump2" {
		t.Fatalf("after inner delay: batches = %+v, want pump2 batch", batches)
	}
}

func TestSchedulerZeroDelayFiresSameTick(t *testing.T) {
	s, disp, _ := newTestScheduler(t)

	// A zero-offset delay nested in a due delay releases the same tick
	tk := simpleTask(task.Step{Actions: task.Actions{
		task.Delay{
			After: 100 * time.Millisecond,
			Actions: task.Actions{
				task.Delay{
					Actions: task.Actions{powerAction("pump1", 45, 0)},
				},
			},
		},
	}})
	if err := s.Start(tk, 0); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	start := time.Now()
	s.tick(start)
	s.tick(start.Add(150 * time.Millisecond))

	batches := disp.all()
	if len(batches) != 1 || batches[0][0].DeviceID != "pump1" {
		t.Fatalf("batches = %+v, want one pump1 batch", batches)
	}
}

func TestSchedulerLoopWalksSubSteps(t *testing.T) {
	s, disp, events := newTestScheduler(t)

	tk := simpleTask(task.Step{
		Loops: []task.ParallelLoop{{
			Iterations: 2,
			Interval:   200 * time.Millisecond,
			SubSteps: []task.SubStep{
				{Actions: []task.Direct{powerAction("pump1", 40, 100 * time.Millisecond)}},
				{Actions: []task.Direct{powerAction("pump1", 0, 0)}},
			},
		}},
	})
	if err := s.Start(tk, 0); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	start := time.Now()

	// Iteration 1: on at t0, off once the 100ms action ends
	s.tick(start)
	s.tick(start.Add(100 * time.Millisecond))

	// Interval gap: nothing at +200ms (next iteration at subStepEnd+200ms)
	s.tick(start.Add(200 * time.Millisecond))
	if got := len(disp.all()); got != 2 {
		t.Fatalf("got %d batches during interval, want 2", got)
	}

	// Iteration 2
	s.tick(start.Add(300 * time.Millisecond))
	s.tick(start.Add(400 * time.Millisecond))

	got := flatValues(disp.all())
	want := []float64{40, 0, 40, 0}
	if len(got) != len(want) {
		t.Fatalf("values = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("values = %v, want %v", got, want)
		}
	}

	if completed, _ := events.counts(); completed != 1 {
		t.Errorf("completed events = %d, want 1", completed)
	}
	if st := s.Status(); st.ActiveLoops != 0 {
		t.Errorf("active loops = %d, want 0", st.ActiveLoops)
	}
}

func TestSchedulerLoopWaitsForSubStepInFlight(t *testing.T) {
	s, disp, _ := newTestScheduler(t)

	tk := simpleTask(task.Step{
		Loops: []task.ParallelLoop{{
			Iterations: 1,
			Interval:   0,
			SubSteps: []task.SubStep{
				{Actions: []task.Direct{powerAction("pump1", 40, 300 * time.Millisecond)}},
				{Actions: []task.Direct{powerAction("pump1", 0, 0)}},
			},
		}},
	})
	if err := s.Start(tk, 0); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	start := time.Now()
	s.tick(start)

	// The 300ms action holds the next sub-step back
	s.tick(start.Add(100 * time.Millisecond))
	s.tick(start.Add(200 * time.Millisecond))
	if got := len(disp.all()); got != 1 {
		t.Fatalf("got %d batches while sub-step in flight, want 1", got)
	}

	s.tick(start.Add(400 * time.Millisecond))
	if got := len(disp.all()); got != 2 {
		t.Fatalf("got %d batches after action end, want 2", got)
	}
}

func TestSchedulerDelayCarriedLoop(t *testing.T) {
	s, disp, _ := newTestScheduler(t)

	// A loop carried by a delay starts counting when the delay fires,
	// releasing its first sub-step that same tick.
	tk := simpleTask(task.Step{Actions: task.Actions{
		task.Delay{
			After: 100 * time.Millisecond,
			Loops: []task.ParallelLoop{{
				Iterations: 1,
				SubSteps: []task.SubStep{
					{Actions: []task.Direct{{DeviceID: "valve1", Kind: task.KindState, Value: 1}}},
				},
			}},
		},
	}})
	if err := s.Start(tk, 0); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	start := time.Now()
	s.tick(start)
	if got := len(disp.all()); got != 0 {
		t.Fatalf("got %d batches before delay, want 0", got)
	}

	s.tick(start.Add(150 * time.Millisecond))
	batches := disp.all()
	if len(batches) != 1 || batches[0][0].DeviceID != "valve1" {
		t.Fatalf("batches = %+v, want one valve1 batch", batches)
	}
}

func TestSchedulerCoalescesPerDevice(t *testing.T) {
	s, disp, _ := newTestScheduler(t)

	tk := simpleTask(task.Step{Actions: task.Actions{
		powerAction("pump1", 30, 0),
		powerAction("pump2", 55, 0),
		powerAction("pump1", 70, 0),
	}})
	if err := s.Start(tk, 0); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	s.tick(time.Now())

	batches := disp.all()
	if len(batches) != 1 {
		t.Fatalf("got %d batches, want 1", len(batches))
	}
	if len(batches[0]) != 2 {
		t.Fatalf("got %d commands, want 2 (pump1 coalesced)", len(batches[0]))
	}
	if batches[0][0].DeviceID != "pump1" || batches[0][0].Value != 70 {
		t.Errorf("pump1 command = %+v, want the later value 70", batches[0][0])
	}
	if batches[0][1].DeviceID != "pump2" || batches[0][1].Value != 55 {
		t.Errorf("pump2 command = %+v, want value 55", batches[0][1])
	}
}

func TestSchedulerTimeout(t *testing.T) {
	s, _, events := newTestScheduler(t)

	tk := simpleTask(task.Step{Actions: task.Actions{
		task.Delay{After: time.Hour},
	}})
	if err := s.Start(tk, 0); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	s.tick(time.Now())

	s.onTimeout()

	st := s.Status()
	if st.IsRunning {
		t.Error("expected scheduler stopped after timeout")
	}
	if st.Completed {
		t.Error("timed-out task must not read as completed")
	}
	if completed, timedOut := events.counts(); completed != 0 || timedOut != 1 {
		t.Errorf("events completed/timed-out = %d/%d, want 0/1", completed, timedOut)
	}

	// Watchdog fires once; a repeat is a no-op
	s.onTimeout()
	if _, timedOut := events.counts(); timedOut != 1 {
		t.Errorf("timed-out events after repeat = %d, want 1", timedOut)
	}
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	s, _, _ := newTestScheduler(t)

	s.Stop() // idle
	tk := simpleTask(task.Step{Actions: task.Actions{powerAction("pump1", 50, 0)}})
	if err := s.Start(tk, 0); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	s.Stop()
	s.Stop()

	if st := s.Status(); st.IsRunning {
		t.Error("expected scheduler idle after Stop")
	}
}

func TestSchedulerStatusSnapshot(t *testing.T) {
	s, _, _ := newTestScheduler(t)

	if st := s.Status(); st.IsRunning || st.TaskID != "" {
		t.Errorf("idle status = %+v, want zero value", st)
	}

	tk := simpleTask(
		task.Step{
			Actions: task.Actions{
				powerAction("pump1", 50, 0),
				task.Delay{After: time.Minute},
			},
			Loops: []task.ParallelLoop{{
				Iterations: 5,
				Interval:   time.Minute,
				SubSteps:   []task.SubStep{{Actions: []task.Direct{powerAction("pump2", 20, 0)}}},
			}},
		},
		task.Step{},
	)
	if err := s.Start(tk, 0); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	s.tick(time.Now())

	st := s.Status()
	if !st.IsRunning {
		t.Error("expected running")
	}
	if st.TaskID != "t1" || st.TaskName != "test task" {
		t.Errorf("task identity = %s/%s, want t1/test task", st.TaskID, st.TaskName)
	}
	if st.TotalSteps != 2 || st.CurrentStep != 1 {
		t.Errorf("steps = %d/%d, want 1/2", st.CurrentStep, st.TotalSteps)
	}
	if st.PendingDelays != 1 {
		t.Errorf("pending delays = %d, want 1", st.PendingDelays)
	}
	if st.ActiveLoops != 1 {
		t.Errorf("active loops = %d, want 1", st.ActiveLoops)
	}
}

func TestEstimateTimeout(t *testing.T) {
	tests := []struct {
		name string
		task *task.Task
		want time.Duration
	}{
		{
			name: "empty task clamps to minimum",
			task: simpleTask(),
			want: minTimeout,
		},
		{
			name: "one second per direct action",
			task: simpleTask(task.Step{Actions: task.Actions{
				powerAction("pump1", 50, 0),
				powerAction("pump2", 50, 0),
				powerAction("pump3", 50, 0),
			}}),
			want: 8 * time.Second,
		},
		{
			name: "nested directs counted, delay offsets ignored",
			task: simpleTask(task.Step{Actions: task.Actions{
				task.Delay{
					After:   10 * time.Minute,
					Actions: task.Actions{powerAction("pump1", 50, 0)},
				},
			}}),
			want: 6 * time.Second,
		},
		{
			name: "loop iterations times interval",
			task: simpleTask(task.Step{
				Loops: []task.ParallelLoop{{
					Iterations: 10,
					Interval:   time.Minute,
					SubSteps:   []task.SubStep{{Actions: []task.Direct{powerAction("pump1", 50, 0)}}},
				}},
			}),
			want: 10*time.Minute + 5*time.Second,
		},
		{
			name: "clamped to maximum",
			task: simpleTask(task.Step{
				Loops: []task.ParallelLoop{{
					Iterations: 100,
					Interval:   time.Hour,
					SubSteps:   []task.SubStep{{Actions: []task.Direct{powerAction("pump1", 50, 0)}}},
				}},
			}),
			want: maxTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateTimeout(tt.task); got != tt.want {
				t.Errorf("EstimateTimeout() = %v, want %v", got, tt.want)
			}
		})
	}
}
