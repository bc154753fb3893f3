package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fishcontrol/fishcontrol-core/internal/command"
)

// CommandRequest is the body for POST /commands.
type CommandRequest struct {
	DeviceID string  `json:"device_id"`
	Kind     string  `json:"kind"` // "power" or "state"
	Value    float64 `json:"value"`

	// DurationMS bounds a timed action; the device reverts to its
	// default value when it elapses. Zero means the value holds.
	DurationMS int64 `json:"duration_ms,omitempty"`
}

// handleCommand pushes a single manual command through the full dispatch
// pipeline and returns the outcome synchronously.
//
// Status mapping: executed 200, invalid shape 400, conflict 409 with the
// conflict detail, controller send failure 502.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.DeviceID == "" {
		writeBadRequest(w, "device_id is required")
		return
	}

	var kind command.Kind
	switch req.Kind {
	case string(command.KindPower):
		kind = command.KindPower
	case string(command.KindState):
		kind = command.KindState
	default:
		writeBadRequest(w, "kind must be power or state")
		return
	}

	cmd := command.New(req.DeviceID, kind, req.Value, time.Duration(req.DurationMS)*time.Millisecond)
	result := s.dispatcher.Process(r.Context(), cmd)

	switch {
	case result.Err == nil:
		writeJSON(w, http.StatusOK, result)
	case errors.Is(result.Err, command.ErrInvalidCommand):
		writeBadRequest(w, result.Err.Error())
	case errors.Is(result.Err, command.ErrConflict):
		writeJSON(w, http.StatusConflict, result)
	case errors.Is(result.Err, command.ErrTransport):
		writeError(w, http.StatusBadGateway, ErrCodeBadGateway, result.Err.Error())
	default:
		writeInternalError(w, "command processing failed")
	}
}
