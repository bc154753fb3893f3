package mqtt

import "fmt"

// Topic namespace segments. All FishControl traffic lives under one
// root so broker ACLs can scope it with a single pattern.
const (
	topicRoot = "fishcontrol"

	segmentState  = "state"
	segmentEvent  = "event"
	segmentSystem = "system"
)

// Topics builds FishControl topic strings. Zero-value receiver; use as
// Topics{}.DeviceState("pump1").
type Topics struct{}

// DeviceState returns the retained per-device state topic.
//
// Example: fishcontrol/state/pump1
func (Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("%s/%s/%s", topicRoot, segmentState, deviceID)
}

// Event returns the topic for one event kind, e.g. "command.executed"
// or "task.completed".
//
// Example: fishcontrol/event/task.completed
func (Topics) Event(kind string) string {
	return fmt.Sprintf("%s/%s/%s", topicRoot, segmentEvent, kind)
}

// SystemStatus returns the controller liveness topic. Retained; also
// the LWT target, so subscribers see "offline" even after a crash.
//
// Example: fishcontrol/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/%s/status", topicRoot, segmentSystem)
}

// AllDeviceStates returns a wildcard matching every device state topic.
func (Topics) AllDeviceStates() string {
	return fmt.Sprintf("%s/%s/+", topicRoot, segmentState)
}

// AllEvents returns a wildcard matching every event topic.
func (Topics) AllEvents() string {
	return fmt.Sprintf("%s/%s/+", topicRoot, segmentEvent)
}

// All returns a wildcard matching the entire FishControl namespace.
func (Topics) All() string {
	return topicRoot + "/#"
}
