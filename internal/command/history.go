package command

import (
	"sync"
	"time"
)

// DefaultHistoryCap is the per-device bound on retained history entries.
const DefaultHistoryCap = 100

// Entry is one recorded command with its execution outcome.
type Entry struct {
	Command    Command   `json:"command"`
	AcceptedAt time.Time `json:"accepted_at"`
	Status     Status    `json:"status"`
	Error      string    `json:"error,omitempty"`
}

// History is the bounded per-device record of accepted commands.
//
// It backs the Detector's time-window check and keeps a short in-memory
// audit trail. When a device's history exceeds the cap, the oldest entry
// is dropped. Nothing here survives a process restart.
//
// All methods are thread-safe.
type History struct {
	mu        sync.RWMutex
	perDevice map[string][]*Entry
	cap       int
}

// NewHistory creates a history with the given per-device cap
// (DefaultHistoryCap when n <= 0).
func NewHistory(n int) *History {
	if n <= 0 {
		n = DefaultHistoryCap
	}
	return &History{
		perDevice: make(map[string][]*Entry),
		cap:       n,
	}
}

// Record appends an accepted command to its device's history,
// dropping the oldest entry once the cap is reached.
func (h *History) Record(cmd Command) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entries := h.perDevice[cmd.DeviceID]
	entries = append(entries, &Entry{
		Command:    cmd,
		AcceptedAt: time.Now().UTC(),
	})
	if len(entries) > h.cap {
		entries = entries[1:]
	}
	h.perDevice[cmd.DeviceID] = entries
}

// LastAccepted returns the most recently accepted command for a device.
func (h *History) LastAccepted(deviceID string) (Entry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	entries := h.perDevice[deviceID]
	if len(entries) == 0 {
		return Entry{}, false
	}
	return *entries[len(entries)-1], true
}

// MarkExecuted attaches a successful outcome to a recorded command.
// Unknown IDs are ignored.
func (h *History) MarkExecuted(commandID string) {
	h.setOutcome(commandID, StatusExecuted, "")
}

// MarkFailed attaches a failure outcome to a recorded command.
func (h *History) MarkFailed(commandID, reason string) {
	h.setOutcome(commandID, StatusFailed, reason)
}

// setOutcome finds the entry by command ID, searching each device's
// newest entries first, and stamps the outcome.
func (h *History) setOutcome(commandID string, status Status, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, entries := range h.perDevice {
		for i := len(entries) - 1; i >= 0; i-- {
			if entries[i].Command.ID == commandID {
				entries[i].Status = status
				entries[i].Error = reason
				return
			}
		}
	}
}

// ForDevice returns a snapshot of one device's history, oldest first.
func (h *History) ForDevice(deviceID string) []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	entries := h.perDevice[deviceID]
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = *e
	}
	return out
}

// Len returns the total number of retained entries across all devices.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, entries := range h.perDevice {
		total += len(entries)
	}
	return total
}
