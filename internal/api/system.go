package api

import (
	"net/http"
	"time"
)

// SystemStatus is the payload for GET /system/status.
type SystemStatus struct {
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Controller    ControllerStatus `json:"controller"`
	Devices       DeviceCounts     `json:"devices"`
	Tasks         TaskCounts       `json:"tasks"`
	Execution     any              `json:"execution"`
	WSClients     int              `json:"ws_clients"`
}

// ControllerStatus reports hardware reachability.
type ControllerStatus struct {
	Reachable bool `json:"reachable"`
}

// DeviceCounts summarises the catalogue and runtime states.
type DeviceCounts struct {
	Total  int `json:"total"`
	Seeded int `json:"seeded"`
	Active int `json:"active"`
}

// TaskCounts summarises the task store.
type TaskCounts struct {
	Total int `json:"total"`
}

// handleSystemStatus returns a one-shot snapshot of the whole system:
// scheduler state, controller reachability, and catalogue counts.
func (s *Server) handleSystemStatus(w http.ResponseWriter, _ *http.Request) {
	active := 0
	for _, st := range s.states.All() {
		if st.CurrentValue > 0 {
			active++
		}
	}

	reachable := false
	if s.monitor != nil {
		reachable = s.monitor.Online()
	}

	writeJSON(w, http.StatusOK, SystemStatus{
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Controller:    ControllerStatus{Reachable: reachable},
		Devices: DeviceCounts{
			Total:  s.devices.ActuatorCount(),
			Seeded: s.states.Count(),
			Active: active,
		},
		Tasks:     TaskCounts{Total: s.tasks.TaskCount()},
		Execution: s.scheduler.Status(),
		WSClients: s.hub.ClientCount(),
	})
}
