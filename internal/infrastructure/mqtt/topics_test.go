package mqtt

import (
	"strings"
	"testing"
)

func TestTopicShapes(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"device state", Topics{}.DeviceState("pump1"), "fishcontrol/state/pump1"},
		{"event", Topics{}.Event("task.completed"), "fishcontrol/event/task.completed"},
		{"system status", Topics{}.SystemStatus(), "fishcontrol/system/status"},
		{"all device states", Topics{}.AllDeviceStates(), "fishcontrol/state/+"},
		{"all events", Topics{}.AllEvents(), "fishcontrol/event/+"},
		{"everything", Topics{}.All(), "fishcontrol/#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("topic = %s, want %s", tt.got, tt.want)
			}
		})
	}
}

func TestConcreteTopicsCarryNoWildcards(t *testing.T) {
	concrete := []string{
		Topics{}.DeviceState("pump1"),
		Topics{}.Event("command.executed"),
		Topics{}.SystemStatus(),
	}
	for _, topic := range concrete {
		if strings.ContainsAny(topic, "+#") {
			t.Errorf("topic %s contains a wildcard", topic)
		}
	}
}

func TestStatusPayloadShapes(t *testing.T) {
	online := buildOnlinePayload("fishcontrol-core")
	if !strings.Contains(online, `"status":"online"`) {
		t.Errorf("online payload = %s, missing status", online)
	}
	if !strings.Contains(online, `"client_id":"fishcontrol-core"`) {
		t.Errorf("online payload = %s, missing client id", online)
	}

	offline := buildOfflinePayload("fishcontrol-core")
	if !strings.Contains(offline, `"reason":"graceful_shutdown"`) {
		t.Errorf("offline payload = %s, missing reason", offline)
	}
}
