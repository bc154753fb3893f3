package events

import (
	"sync"
	"testing"
	"time"

	"github.com/fishcontrol/fishcontrol-core/internal/command"
	"github.com/fishcontrol/fishcontrol-core/internal/device"
	"github.com/fishcontrol/fishcontrol-core/internal/execution"
)

type mockHub struct {
	mu     sync.Mutex
	events []Event
}

func (m *mockHub) Broadcast(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

func (m *mockHub) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, ev := range m.events {
		out[i] = ev.Type
	}
	return out
}

type mockPublisher struct {
	mu        sync.Mutex
	published map[string][]byte
	retained  map[string]bool
	connected bool
}

func newMockPublisher() *mockPublisher {
	return &mockPublisher{
		published: make(map[string][]byte),
		retained:  make(map[string]bool),
		connected: true,
	}
}

func (m *mockPublisher) Publish(topic string, payload []byte, _ byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published[topic] = payload
	m.retained[topic] = retained
	return nil
}

func (m *mockPublisher) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockPublisher) topic(topic string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload, ok := m.published[topic]
	return payload, ok
}

type mockWriter struct {
	mu       sync.Mutex
	states   []string
	commands []string
}

func (m *mockWriter) WriteDeviceState(deviceID string, _ float64, _ bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = append(m.states, deviceID)
}

func (m *mockWriter) WriteCommand(deviceID string, status string, _ float64, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, deviceID+":"+status)
}

func (m *mockWriter) snapshot() ([]string, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.states...), append([]string(nil), m.commands...)
}

func waitForTopic(t *testing.T, pub *mockPublisher, topic string) []byte {
	t.Helper()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if payload, ok := pub.topic(topic); ok {
			return payload
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("topic %s never published", topic)
	return nil
}

func TestFanoutWithNoSinks(t *testing.T) {
	f := NewFanout()

	// Must not panic with nothing attached
	f.DeviceStateChanged(device.State{DeviceID: "pump1"})
	f.CommandExecuted(command.Result{})
	f.CommandFailed(command.Result{})
	f.TaskCompleted(execution.Status{})
	f.TaskTimedOut(execution.Status{})
}

func TestFanoutDeviceState(t *testing.T) {
	hub := &mockHub{}
	pub := newMockPublisher()
	w := &mockWriter{}

	f := NewFanout()
	f.SetBroadcaster(hub)
	f.SetPublisher(pub)
	f.SetWriter(w)

	f.DeviceStateChanged(device.State{DeviceID: "pump1", CurrentValue: 75, Online: true})

	types := hub.types()
	if len(types) != 1 || types[0] != TypeDeviceStateChanged {
		t.Errorf("hub events = %v, want [%s]", types, TypeDeviceStateChanged)
	}

	payload := waitForTopic(t, pub, "fishcontrol/state/pump1")
	if len(payload) == 0 {
		t.Error("expected a state payload")
	}
	pub.mu.Lock()
	retained := pub.retained["fishcontrol/state/pump1"]
	pub.mu.Unlock()
	if !retained {
		t.Error("device state must be published retained")
	}

	states, _ := w.snapshot()
	if len(states) != 1 || states[0] != "pump1" {
		t.Errorf("telemetry states = %v, want [pump1]", states)
	}
}

func TestFanoutCommandOutcomes(t *testing.T) {
	hub := &mockHub{}
	pub := newMockPublisher()
	w := &mockWriter{}

	f := NewFanout()
	f.SetBroadcaster(hub)
	f.SetPublisher(pub)
	f.SetWriter(w)

	cmd := command.New("pump1", command.KindPower, 75, 5*time.Second)
	f.CommandExecuted(command.Result{Command: cmd, Status: command.StatusExecuted})
	f.CommandFailed(command.Result{Command: cmd, Status: command.StatusFailed})

	types := hub.types()
	if len(types) != 2 || types[0] != TypeCommandExecuted || types[1] != TypeCommandFailed {
		t.Errorf("hub events = %v", types)
	}

	waitForTopic(t, pub, "fishcontrol/event/command.executed")
	waitForTopic(t, pub, "fishcontrol/event/command.failed")

	_, commands := w.snapshot()
	if len(commands) != 2 || commands[0] != "pump1:executed" || commands[1] != "pump1:failed" {
		t.Errorf("telemetry commands = %v", commands)
	}
}

func TestFanoutTaskLifecycle(t *testing.T) {
	hub := &mockHub{}
	pub := newMockPublisher()

	f := NewFanout()
	f.SetBroadcaster(hub)
	f.SetPublisher(pub)

	f.TaskCompleted(execution.Status{TaskID: "t1", Completed: true})
	f.TaskTimedOut(execution.Status{TaskID: "t2"})

	types := hub.types()
	if len(types) != 2 || types[0] != TypeTaskCompleted || types[1] != TypeTaskTimedOut {
		t.Errorf("hub events = %v", types)
	}
	waitForTopic(t, pub, "fishcontrol/event/task.completed")
	waitForTopic(t, pub, "fishcontrol/event/task.timed_out")
}

func TestFanoutSkipsDisconnectedBroker(t *testing.T) {
	pub := newMockPublisher()
	pub.connected = false

	f := NewFanout()
	f.SetPublisher(pub)
	f.DeviceStateChanged(device.State{DeviceID: "pump1"})

	time.Sleep(20 * time.Millisecond)
	if _, ok := pub.topic("fishcontrol/state/pump1"); ok {
		t.Error("must not publish while broker disconnected")
	}
}
