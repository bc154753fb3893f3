package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteDeviceState records one device state change.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceID: The actuator identifier (e.g., "pump1")
//   - value: The device's current value (duty cycle or 0/1 state)
//   - online: Whether the controller was reachable at the time
//
// Example:
//
//	client.WriteDeviceState("pump1", 75, true)
func (c *Client) WriteDeviceState(deviceID string, value float64, online bool) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_state",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"value":  value,
			"online": online,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteCommand records one command outcome.
//
// Parameters:
//   - deviceID: The target actuator
//   - status: The outcome ("executed" or "failed")
//   - value: The commanded value
//   - duration: The timed-action bound, zero for untimed commands
func (c *Client) WriteCommand(deviceID string, status string, value float64, duration time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"command",
		map[string]string{
			"device_id": deviceID,
			"status":    status,
		},
		map[string]interface{}{
			"value":       value,
			"duration_ms": duration.Milliseconds(),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
