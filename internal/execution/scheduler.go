package execution

import (
	"sync"
	"time"

	"github.com/fishcontrol/fishcontrol-core/internal/command"
	"github.com/fishcontrol/fishcontrol-core/internal/task"
)

// DefaultTickInterval is the scheduler's cadence when none is
// configured. Actions are timed in multiples of it.
const DefaultTickInterval = 100 * time.Millisecond

// Timeout heuristic tunables. When the caller gives no estimate the
// watchdog is derived from the task's shape: a base allowance, a
// second per direct action, and each loop's iterations times its
// interval, clamped to a sane range. The grace period is added on top
// either way.
const (
	baseTimeout      = 5 * time.Second
	perActionTimeout = 1 * time.Second
	minTimeout       = 5 * time.Second
	maxTimeout       = 30 * time.Minute
	timeoutGrace     = 30 * time.Second
)

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

// Dispatcher receives each tick's coalesced batch.
// Satisfied by command.Dispatcher.
type Dispatcher interface {
	Submit(cmds []command.Command)
}

// Events receives run lifecycle notifications. Implementations must
// not block; they are invoked synchronously off the tick path.
type Events interface {
	TaskCompleted(st Status)
	TaskTimedOut(st Status)
}

// Status is a point-in-time snapshot of the scheduler.
type Status struct {
	IsRunning     bool   `json:"is_running"`
	TaskID        string `json:"task_id,omitempty"`
	TaskName      string `json:"task_name,omitempty"`
	TotalSteps    int    `json:"total_steps"`
	CurrentStep   int    `json:"current_step"` // 1-based
	ActiveLoops   int    `json:"active_loops"`
	PendingDelays int    `json:"pending_delays"`
	Completed     bool   `json:"completed"`
}

// SchedulerConfig carries the scheduler's tunables.
type SchedulerConfig struct {
	// TickInterval is the walk cadence. Zero means DefaultTickInterval.
	TickInterval time.Duration
}

// delayState tracks one pending delay subtree.
type delayState struct {
	delay     task.Delay
	endTime   time.Time
	triggered bool
}

// loopState tracks one running parallel loop.
type loopState struct {
	loop       task.ParallelLoop
	iteration  int // completed iterations
	subIndex   int
	nextTime   time.Time
	subStepEnd time.Time
}

// runState is the mutable walk position within one task.
type runState struct {
	task         *task.Task
	stepIndex    int
	stepStart    time.Time
	actionsFired bool
	delays       []*delayState
	loops        []*loopState
	completed    bool
}

// Scheduler walks one task at a time, translating its structure into
// per-tick command batches.
//
// All public methods are thread-safe. The tick loop, the timeout timer
// and callers serialise on one mutex; event sinks are invoked outside
// it so they may call back into Status.
type Scheduler struct {
	dispatcher Dispatcher
	interval   time.Duration
	events     Events
	logger     Logger

	mu           sync.Mutex
	state        *runState
	running      bool
	stopCh       chan struct{}
	timeoutTimer *time.Timer
}

// NewScheduler creates an idle scheduler over the given dispatcher.
func NewScheduler(dispatcher Dispatcher, cfg SchedulerConfig) *Scheduler {
	interval := cfg.TickInterval
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Scheduler{
		dispatcher: dispatcher,
		interval:   interval,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the scheduler.
func (s *Scheduler) SetLogger(logger Logger) {
	s.logger = logger
}

// SetEvents sets the lifecycle notification sink.
func (s *Scheduler) SetEvents(events Events) {
	s.events = events
}

// Start begins executing a task from its first step.
//
// estimate bounds the run; zero means the heuristic derived from the
// task's shape. A fixed grace period is added either way. Returns
// ErrAlreadyRunning while a task is active.
func (s *Scheduler) Start(t *task.Task, estimate time.Duration) error {
	if t == nil {
		return ErrNilTask
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	now := time.Now()
	st := &runState{task: t.DeepCopy()}
	if len(st.task.Steps) > 0 {
		st.initStep(now)
	}
	s.state = st
	s.running = true

	timeout := estimate
	if timeout <= 0 {
		timeout = EstimateTimeout(st.task)
	} else {
		timeout = clampTimeout(timeout)
	}
	timeout += timeoutGrace

	s.timeoutTimer = time.AfterFunc(timeout, s.onTimeout)
	s.stopCh = make(chan struct{})
	go s.run(s.stopCh)

	s.logger.Info("task execution started",
		"task_id", st.task.ID,
		"task_name", st.task.Name,
		"steps", len(st.task.Steps),
		"timeout_ms", timeout.Milliseconds(),
	)
	return nil
}

// Stop halts the current run. Idempotent; stopping an idle scheduler
// is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Status returns a snapshot of the scheduler's position.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

// run is the tick loop. It exits when its stop channel closes.
func (s *Scheduler) run(stop chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.tick(time.Now())
		}
	}
}

// tick advances the walk to now. Split out from the loop so tests can
// drive time synthetically.
func (s *Scheduler) tick(now time.Time) {
	s.mu.Lock()

	st := s.state
	if !s.running || st == nil || st.completed {
		s.mu.Unlock()
		return
	}

	// A walk position past the task marks the run done rather than
	// indexing out of range. Covers the empty task too.
	if st.stepIndex >= len(st.task.Steps) {
		st.completed = true
		status := s.statusLocked()
		s.stopLocked()
		s.mu.Unlock()
		s.notifyCompleted(status)
		return
	}

	batch := s.coalesce(st.collect(now))

	var completed bool
	var status Status
	if st.stepDone() {
		st.advance(now)
		if st.completed {
			status = s.statusLocked()
			s.stopLocked()
			completed = true
		}
	}
	s.mu.Unlock()

	if len(batch) > 0 {
		s.dispatcher.Submit(batch)
	}
	if completed {
		s.notifyCompleted(status)
	}
}

// onTimeout is the watchdog: force-stop and report, unconditionally.
func (s *Scheduler) onTimeout() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}

	status := s.statusLocked()
	s.logger.Warn("task execution timed out",
		"task_id", status.TaskID,
		"current_step", status.CurrentStep,
		"total_steps", status.TotalSteps,
	)
	s.stopLocked()
	s.mu.Unlock()

	if s.events != nil {
		s.events.TaskTimedOut(status)
	}
}

func (s *Scheduler) notifyCompleted(status Status) {
	s.logger.Info("task execution completed",
		"task_id", status.TaskID,
		"task_name", status.TaskName,
	)
	if s.events != nil {
		s.events.TaskCompleted(status)
	}
}

func (s *Scheduler) stopLocked() {
	if !s.running {
		return
	}
	s.running = false
	if s.timeoutTimer != nil {
		s.timeoutTimer.Stop()
		s.timeoutTimer = nil
	}
	if s.stopCh != nil {
		close(s.stopCh)
		s.stopCh = nil
	}
}

func (s *Scheduler) statusLocked() Status {
	st := s.state
	if st == nil {
		return Status{}
	}

	status := Status{
		IsRunning:  s.running,
		TaskID:     st.task.ID,
		TaskName:   st.task.Name,
		TotalSteps: len(st.task.Steps),
		Completed:  st.completed,
	}
	status.CurrentStep = st.stepIndex + 1
	if status.CurrentStep > status.TotalSteps {
		status.CurrentStep = status.TotalSteps
	}
	for _, ds := range st.delays {
		if !ds.triggered {
			status.PendingDelays++
		}
	}
	for _, ls := range st.loops {
		if ls.iteration < ls.loop.Iterations {
			status.ActiveLoops++
		}
	}
	return status
}

// coalesce folds one tick's actions into a batch with at most one
// command per device, last writer winning.
func (s *Scheduler) coalesce(directs []task.Direct) []command.Command {
	if len(directs) == 0 {
		return nil
	}

	byDevice := make(map[string]int, len(directs))
	out := make([]command.Command, 0, len(directs))
	for _, d := range directs {
		cmd := command.New(d.DeviceID, commandKind(d.Kind), d.Value, d.Duration)
		if i, ok := byDevice[d.DeviceID]; ok {
			s.logger.Warn("overlapping commands in one tick, keeping the later",
				"device_id", d.DeviceID,
				"dropped_value", out[i].Value,
				"kept_value", cmd.Value,
			)
			out[i] = cmd
			continue
		}
		byDevice[d.DeviceID] = len(out)
		out = append(out, cmd)
	}
	return out
}

func commandKind(k task.ActionKind) command.Kind {
	if k == task.KindState {
		return command.KindState
	}
	return command.KindPower
}

// initStep points the walk at the current step: delay and loop state
// rebuilt fresh, direct actions armed to fire on the next tick.
func (st *runState) initStep(now time.Time) {
	st.stepStart = now
	st.actionsFired = false
	st.delays = nil
	st.loops = nil

	step := &st.task.Steps[st.stepIndex]
	for _, a := range step.Actions {
		if d, ok := a.(task.Delay); ok {
			st.delays = append(st.delays, &delayState{delay: d, endTime: now.Add(d.After)})
		}
	}
	for _, l := range step.Loops {
		st.loops = append(st.loops, &loopState{loop: l, nextTime: now})
	}
}

// collect gathers every direct action due at now, mutating the delay
// and loop state as subtrees fire.
func (st *runState) collect(now time.Time) []task.Direct {
	var directs []task.Direct
	step := &st.task.Steps[st.stepIndex]

	// Step-level direct actions fire exactly once.
	if !st.actionsFired {
		for _, a := range step.Actions {
			if d, ok := a.(task.Direct); ok {
				directs = append(directs, d)
			}
		}
		st.actionsFired = true
	}

	// Due delays release their subtree. Indexed loop on purpose:
	// a fired delay may append nested delays whose zero offsets make
	// them due this same tick.
	for i := 0; i < len(st.delays); i++ {
		ds := st.delays[i]
		if ds.triggered || now.Before(ds.endTime) {
			continue
		}
		ds.triggered = true

		for _, a := range ds.delay.Actions {
			switch act := a.(type) {
			case task.Direct:
				directs = append(directs, act)
			case task.Delay:
				st.delays = append(st.delays, &delayState{delay: act, endTime: now.Add(act.After)})
			}
		}
		for _, l := range ds.delay.Loops {
			// Loop timing counts from the delay's fire time
			st.loops = append(st.loops, &loopState{loop: l, nextTime: now})
		}
	}

	// Loops step through their sub-steps, pacing on each sub-step's
	// longest timed action plus the loop interval between iterations.
	for _, ls := range st.loops {
		if ls.iteration >= ls.loop.Iterations || now.Before(ls.nextTime) {
			continue
		}
		if now.Before(ls.subStepEnd) {
			continue
		}

		sub := ls.loop.SubSteps[ls.subIndex]
		directs = append(directs, sub.Actions...)
		ls.subStepEnd = now.Add(maxActionDuration(sub.Actions))

		ls.subIndex++
		if ls.subIndex >= len(ls.loop.SubSteps) {
			ls.subIndex = 0
			ls.iteration++
			if ls.iteration < ls.loop.Iterations {
				ls.nextTime = ls.subStepEnd.Add(ls.loop.Interval)
			} else {
				ls.nextTime = ls.subStepEnd
			}
		}
	}

	return directs
}

// stepDone reports whether everything the current step owns has fired.
func (st *runState) stepDone() bool {
	if !st.actionsFired {
		return false
	}
	for _, ds := range st.delays {
		if !ds.triggered {
			return false
		}
	}
	for _, ls := range st.loops {
		if ls.iteration < ls.loop.Iterations {
			return false
		}
	}
	return true
}

// advance moves past the current step, completing the run at the end.
func (st *runState) advance(now time.Time) {
	st.stepIndex++
	if st.stepIndex >= len(st.task.Steps) {
		st.completed = true
		return
	}
	st.initStep(now)
}

func maxActionDuration(actions []task.Direct) time.Duration {
	var longest time.Duration
	for _, a := range actions {
		if a.Duration > longest {
			longest = a.Duration
		}
	}
	return longest
}

// EstimateTimeout derives a watchdog bound from a task's shape: the
// base allowance, a second per direct action (nested delays included),
// and each loop's iterations times its interval, clamped to
// [minTimeout, maxTimeout]. Delay offsets are deliberately left out.
func EstimateTimeout(t *task.Task) time.Duration {
	d := baseTimeout
	for i := range t.Steps {
		step := &t.Steps[i]
		d += time.Duration(countDirects(step.Actions)) * perActionTimeout
		d += loopSpan(step.Actions, step.Loops)
	}
	return clampTimeout(d)
}

func clampTimeout(d time.Duration) time.Duration {
	if d < minTimeout {
		return minTimeout
	}
	if d > maxTimeout {
		return maxTimeout
	}
	return d
}

func countDirects(actions task.Actions) int {
	n := 0
	for _, a := range actions {
		switch act := a.(type) {
		case task.Direct:
			n++
		case task.Delay:
			n += countDirects(act.Actions)
		}
	}
	return n
}

func loopSpan(actions task.Actions, loops []task.ParallelLoop) time.Duration {
	var d time.Duration
	for _, l := range loops {
		d += time.Duration(l.Iterations) * l.Interval
	}
	for _, a := range actions {
		if delay, ok := a.(task.Delay); ok {
			d += loopSpan(delay.Actions, delay.Loops)
		}
	}
	return d
}
