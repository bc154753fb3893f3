package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fishcontrol/fishcontrol-core/internal/codegen"
)

// handleControllerSketch generates the controller sketch for the current
// catalogue and serves it as a download, ready to flash.
func (s *Server) handleControllerSketch(w http.ResponseWriter, r *http.Request) {
	enabled, err := s.devices.ListEnabled(r.Context())
	if err != nil {
		writeInternalError(w, "failed to load device catalogue")
		return
	}

	sketch, err := codegen.Generate(enabled, codegen.Options{LogPort: s.cfg.Port})
	if err != nil {
		if errors.Is(err, codegen.ErrNoDevices) {
			writeBadRequest(w, "no enabled devices to generate a sketch for")
			return
		}
		writeInternalError(w, "sketch generation failed")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="fishcontrol.ino"`)
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response
	w.Write([]byte(sketch))
}

// ControllerLogEntry is the body the flashed sketch POSTs to /api/arduino-logs.
type ControllerLogEntry struct {
	// TimestampMS is the controller's millis() value, its uptime clock.
	TimestampMS int64  `json:"timestamp"`
	Level       string `json:"level"`
	Message     string `json:"message"`
}

// handleControllerLog ingests a log line from the controller and re-logs it
// at the level the controller reported.
func (s *Server) handleControllerLog(w http.ResponseWriter, r *http.Request) {
	var entry ControllerLogEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if entry.Message == "" {
		writeBadRequest(w, "message is required")
		return
	}

	fields := []any{
		"source", "controller",
		"controller_uptime_ms", entry.TimestampMS,
	}
	switch entry.Level {
	case "error":
		s.logger.Error(entry.Message, fields...)
	case "warn", "warning":
		s.logger.Warn(entry.Message, fields...)
	case "debug":
		s.logger.Debug(entry.Message, fields...)
	default:
		s.logger.Info(entry.Message, fields...)
	}

	w.WriteHeader(http.StatusNoContent)
}
