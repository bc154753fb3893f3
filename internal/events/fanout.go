package events

import (
	"encoding/json"
	"time"

	"github.com/fishcontrol/fishcontrol-core/internal/command"
	"github.com/fishcontrol/fishcontrol-core/internal/device"
	"github.com/fishcontrol/fishcontrol-core/internal/execution"
	"github.com/fishcontrol/fishcontrol-core/internal/infrastructure/mqtt"
)

// Event types pushed to websocket clients and mirrored onto MQTT.
const (
	TypeDeviceStateChanged = "device.state_changed"
	TypeCommandExecuted    = "command.executed"
	TypeCommandFailed      = "command.failed"
	TypeTaskCompleted      = "task.completed"
	TypeTaskTimedOut       = "task.timed_out"
)

// Event is the envelope every sink receives.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// Broadcaster pushes events to connected websocket clients.
// Satisfied by the API hub. Must not block.
type Broadcaster interface {
	Broadcast(ev Event)
}

// Publisher mirrors events onto the MQTT broker.
// Satisfied by *mqtt.Client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// Writer records telemetry points.
// Satisfied by *influxdb.Client.
type Writer interface {
	WriteDeviceState(deviceID string, value float64, online bool)
	WriteCommand(deviceID string, status string, value float64, duration time.Duration)
}

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Fanout forwards core events to every configured sink.
//
// It implements device.StateObserver, command.Events and
// execution.Events, so a single instance plugs into the state store,
// the dispatcher and the scheduler. Nil sinks are skipped; MQTT
// publishes run on their own goroutine so a slow broker never blocks
// the dispatch or tick paths.
type Fanout struct {
	hub    Broadcaster
	broker Publisher
	tsdb   Writer
	topics mqtt.Topics
	logger Logger
}

// NewFanout creates a fan-out with no sinks attached.
func NewFanout() *Fanout {
	return &Fanout{logger: noopLogger{}}
}

// SetLogger sets the logger for the fan-out.
func (f *Fanout) SetLogger(logger Logger) {
	f.logger = logger
}

// SetBroadcaster attaches the websocket hub sink.
func (f *Fanout) SetBroadcaster(hub Broadcaster) {
	f.hub = hub
}

// SetPublisher attaches the MQTT sink.
func (f *Fanout) SetPublisher(broker Publisher) {
	f.broker = broker
}

// SetWriter attaches the telemetry sink.
func (f *Fanout) SetWriter(w Writer) {
	f.tsdb = w
}

// DeviceStateChanged implements device.StateObserver.
func (f *Fanout) DeviceStateChanged(st device.State) {
	f.broadcast(TypeDeviceStateChanged, st)

	if f.broker != nil {
		payload := map[string]any{
			"value":       st.CurrentValue,
			"online":      st.Online,
			"last_update": st.LastUpdate,
		}
		f.publish(f.topics.DeviceState(st.DeviceID), payload, true)
	}
	if f.tsdb != nil {
		f.tsdb.WriteDeviceState(st.DeviceID, st.CurrentValue, st.Online)
	}
}

// CommandExecuted implements command.Events.
func (f *Fanout) CommandExecuted(res command.Result) {
	f.forwardCommand(TypeCommandExecuted, res)
}

// CommandFailed implements command.Events.
func (f *Fanout) CommandFailed(res command.Result) {
	f.forwardCommand(TypeCommandFailed, res)
}

// TaskCompleted implements execution.Events.
func (f *Fanout) TaskCompleted(st execution.Status) {
	f.broadcast(TypeTaskCompleted, st)
	if f.broker != nil {
		f.publish(f.topics.Event(TypeTaskCompleted), st, false)
	}
}

// TaskTimedOut implements execution.Events.
func (f *Fanout) TaskTimedOut(st execution.Status) {
	f.broadcast(TypeTaskTimedOut, st)
	if f.broker != nil {
		f.publish(f.topics.Event(TypeTaskTimedOut), st, false)
	}
}

func (f *Fanout) forwardCommand(eventType string, res command.Result) {
	f.broadcast(eventType, res)

	if f.broker != nil {
		f.publish(f.topics.Event(eventType), res, false)
	}
	if f.tsdb != nil {
		f.tsdb.WriteCommand(res.Command.DeviceID, string(res.Status), res.Command.Value, res.Command.Duration)
	}
}

func (f *Fanout) broadcast(eventType string, payload any) {
	if f.hub == nil {
		return
	}
	f.hub.Broadcast(Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
}

// publish mirrors one event onto the broker, fire and forget.
func (f *Fanout) publish(topic string, payload any, retained bool) {
	if !f.broker.IsConnected() {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		f.logger.Warn("event payload not serialisable", "topic", topic, "error", err)
		return
	}

	go func() {
		if err := f.broker.Publish(topic, data, 0, retained); err != nil {
			f.logger.Debug("mqtt event publish failed", "topic", topic, "error", err)
		}
	}()
}
