package command

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fishcontrol/fishcontrol-core/internal/device"
	"github.com/fishcontrol/fishcontrol-core/internal/transport"
	"github.com/google/uuid"
)

// DefaultQueueSize is the capacity of the asynchronous submit queue.
const DefaultQueueSize = 64

// Sender delivers wire-format batches to the controller.
// Satisfied by transport.Client.
type Sender interface {
	Send(ctx context.Context, batch transport.Batch) error
}

// Events receives dispatch outcome notifications. Implementations must
// not block; they are invoked synchronously on the dispatch path.
type Events interface {
	CommandExecuted(res Result)
	CommandFailed(res Result)
}

// DispatcherConfig carries the dispatcher's tunables.
type DispatcherConfig struct {
	// QueueSize is the capacity of the asynchronous submit queue.
	// Zero means DefaultQueueSize.
	QueueSize int

	// LockTTL is how long a device stays locked around its send.
	// Zero means the state store's default.
	LockTTL time.Duration
}

// Dispatcher runs commands through the full pipeline: shape validation,
// conflict check, advisory lock, wire translation, send, state update.
//
// Process is serialised: whether a command arrives synchronously or
// through the submit queue, only one is in flight at a time. This keeps
// the lock/send/update sequence atomic without per-device bookkeeping.
type Dispatcher struct {
	states   *device.StateStore
	detector *Detector
	history  *History
	sender   Sender
	lockTTL  time.Duration

	events Events
	logger Logger

	// procMu serialises Process across callers and the queue worker.
	procMu sync.Mutex

	queue  chan []Command
	cancel context.CancelFunc
	done   chan struct{}
}

// NewDispatcher creates a dispatcher over the given pipeline stages.
func NewDispatcher(states *device.StateStore, detector *Detector, history *History, sender Sender, cfg DispatcherConfig) *Dispatcher {
	size := cfg.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}

	return &Dispatcher{
		states:   states,
		detector: detector,
		history:  history,
		sender:   sender,
		lockTTL:  cfg.LockTTL,
		logger:   noopLogger{},
		queue:    make(chan []Command, size),
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// SetEvents sets the outcome notification sink.
func (d *Dispatcher) SetEvents(events Events) {
	d.events = events
}

// Process runs one command through the pipeline and returns its result.
//
// A rejected command carries the conflict detail; a failed command
// carries the transport error and leaves device state untouched.
func (d *Dispatcher) Process(ctx context.Context, cmd Command) Result {
	d.procMu.Lock()
	defer d.procMu.Unlock()
	return d.process(ctx, cmd)
}

// ProcessBatch runs commands sequentially under a single serialisation
// hold. Processing stops early when a stop command fails: the remaining
// commands are dropped rather than layered onto a device that could not
// be turned off.
func (d *Dispatcher) ProcessBatch(ctx context.Context, cmds []Command) []Result {
	d.procMu.Lock()
	defer d.procMu.Unlock()

	results := make([]Result, 0, len(cmds))
	for i, cmd := range cmds {
		res := d.process(ctx, cmd)
		results = append(results, res)

		if res.Status == StatusFailed && cmd.IsStop() {
			d.logger.Error("stop command failed, aborting batch remainder",
				"command_id", cmd.ID,
				"device_id", cmd.DeviceID,
				"dropped", len(cmds)-i-1,
			)
			break
		}
	}
	return results
}

// Submit queues a batch for asynchronous processing. Batches are
// drained in FIFO order, so dispatch order across ticks is preserved.
// When the queue is full the batch is dropped with a warning rather
// than blocking the caller.
func (d *Dispatcher) Submit(cmds []Command) {
	if len(cmds) == 0 {
		return
	}
	select {
	case d.queue <- cmds:
	default:
		d.logger.Warn("dispatch queue full, dropping batch",
			"commands", len(cmds),
		)
	}
}

// Start launches the queue worker.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})

	go func() {
		defer close(d.done)
		for {
			select {
			case <-ctx.Done():
				return
			case cmds := <-d.queue:
				d.ProcessBatch(ctx, cmds)
			}
		}
	}()
}

// Stop halts the queue worker and waits for it to exit. Batches still
// queued are dropped.
func (d *Dispatcher) Stop() {
	if d.cancel == nil {
		return
	}
	d.cancel()
	<-d.done
}

func (d *Dispatcher) process(ctx context.Context, cmd Command) Result {
	if err := d.validate(cmd); err != nil {
		d.logger.Warn("command rejected",
			"command_id", cmd.ID,
			"device_id", cmd.DeviceID,
			"error", err,
		)
		return d.rejected(cmd, nil, err)
	}

	if conflict := d.detector.Check(cmd); conflict.HasConflict {
		d.logger.Info("command rejected by conflict check",
			"command_id", cmd.ID,
			"device_id", cmd.DeviceID,
			"conflict_type", conflict.Type,
			"reason", conflict.Reason,
		)
		return d.rejected(cmd, &conflict, &ConflictError{Result: conflict})
	}

	// Lock the device around its send so nothing else slips in while
	// the hardware settles.
	if err := d.states.Lock(cmd.DeviceID, d.lockTTL); err != nil {
		return d.rejected(cmd, nil, fmt.Errorf("%w: %v", ErrInvalidCommand, err))
	}
	defer d.states.Unlock(cmd.DeviceID)

	batch := transport.Batch{
		ID:   uuid.New().String(),
		TS:   time.Now().UnixMilli(),
		Cmds: []transport.WireCommand{wireCommand(cmd)},
	}

	if err := d.sender.Send(ctx, batch); err != nil {
		d.history.MarkFailed(cmd.ID, err.Error())
		d.logger.Error("command send failed",
			"command_id", cmd.ID,
			"device_id", cmd.DeviceID,
			"error", err,
		)
		res := Result{
			Command: cmd,
			Status:  StatusFailed,
			Err:     fmt.Errorf("%w: %v", ErrTransport, err),
		}
		if d.events != nil {
			d.events.CommandFailed(res)
		}
		return res
	}

	// The controller accepted the batch: the store becomes the record
	// of what the hardware is now doing, including the timed revert.
	if err := d.states.ApplyCommand(cmd.DeviceID, cmd.Value, cmd.Duration); err != nil {
		d.logger.Error("state update failed after send",
			"command_id", cmd.ID,
			"device_id", cmd.DeviceID,
			"error", err,
		)
	}
	d.history.MarkExecuted(cmd.ID)

	d.logger.Debug("command executed",
		"command_id", cmd.ID,
		"device_id", cmd.DeviceID,
		"value", cmd.Value,
		"duration_ms", cmd.Duration.Milliseconds(),
	)

	res := Result{Command: cmd, Status: StatusExecuted}
	if d.events != nil {
		d.events.CommandExecuted(res)
	}
	return res
}

// validate checks command shape against the catalog before the
// conflict checks run. Unknown devices pass through: the detector
// reports those with its own conflict type.
func (d *Dispatcher) validate(cmd Command) error {
	if cmd.DeviceID == "" {
		return fmt.Errorf("%w: device id is required", ErrInvalidCommand)
	}
	if cmd.Kind != KindPower && cmd.Kind != KindState {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidCommand, cmd.Kind)
	}
	if cmd.Value < 0 {
		return fmt.Errorf("%w: value must not be negative", ErrInvalidCommand)
	}
	if cmd.Duration < 0 {
		return fmt.Errorf("%w: duration must not be negative", ErrInvalidCommand)
	}
	if cmd.Kind == KindState && cmd.Value != 0 && cmd.Value != 1 {
		return fmt.Errorf("%w: state value must be 0 or 1", ErrInvalidCommand)
	}

	if a, ok := d.states.Actuator(cmd.DeviceID); ok {
		if cmd.Kind == KindPower && a.Mode != device.ModePWM {
			return fmt.Errorf("%w: device %s is not a pwm device", ErrInvalidCommand, cmd.DeviceID)
		}
		if cmd.Kind == KindState && a.Mode != device.ModeDigital {
			return fmt.Errorf("%w: device %s is not a digital device", ErrInvalidCommand, cmd.DeviceID)
		}
	}
	return nil
}

// rejected builds a rejection result. Rejected commands stay out of the
// history: recording them would start a fresh time window on a device
// that never received anything.
func (d *Dispatcher) rejected(cmd Command, conflict *ConflictResult, err error) Result {
	return Result{
		Command:  cmd,
		Status:   StatusRejected,
		Conflict: conflict,
		Err:      err,
	}
}

// wireCommand translates a command into the controller's wire form:
// power commands carry a numeric duty cycle, state commands a boolean.
func wireCommand(cmd Command) transport.WireCommand {
	wc := transport.WireCommand{
		Dev: cmd.DeviceID,
		Dur: cmd.Duration.Milliseconds(),
	}
	switch cmd.Kind {
	case KindState:
		wc.Act = transport.ActSetState
		wc.Val = cmd.Value != 0
	default:
		wc.Act = transport.ActSetPower
		wc.Val = cmd.Value
	}
	return wc
}
