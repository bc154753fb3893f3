package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fishcontrol/fishcontrol-core/internal/execution"
	"github.com/fishcontrol/fishcontrol-core/internal/task"
)

// ExecutionStartRequest is the body for POST /execution/start.
type ExecutionStartRequest struct {
	TaskID string `json:"task_id"`

	// EstimatedDurationMS overrides the scheduler's timeout heuristic
	// when positive.
	EstimatedDurationMS int64 `json:"estimated_duration_ms,omitempty"`
}

// handleExecutionStart loads a task and hands it to the scheduler.
func (s *Server) handleExecutionStart(w http.ResponseWriter, r *http.Request) {
	var req ExecutionStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.TaskID == "" {
		writeBadRequest(w, "task_id is required")
		return
	}
	if req.EstimatedDurationMS < 0 {
		writeBadRequest(w, "estimated_duration_ms must not be negative")
		return
	}

	t, err := s.tasks.GetTask(r.Context(), req.TaskID)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			writeNotFound(w, "task not found")
			return
		}
		writeInternalError(w, "failed to load task")
		return
	}

	estimate := time.Duration(req.EstimatedDurationMS) * time.Millisecond
	if err := s.scheduler.Start(t, estimate); err != nil {
		if errors.Is(err, execution.ErrAlreadyRunning) {
			writeConflict(w, "a task is already running")
			return
		}
		writeInternalError(w, "failed to start task")
		return
	}

	s.logger.Info("task started via API", "task_id", t.ID, "task_name", t.Name)
	writeJSON(w, http.StatusOK, s.scheduler.Status())
}

// handleExecutionStop stops the running task, if any.
// Stopping an idle scheduler is a no-op, not an error.
func (s *Server) handleExecutionStop(w http.ResponseWriter, _ *http.Request) {
	s.scheduler.Stop()
	writeJSON(w, http.StatusOK, s.scheduler.Status())
}

// handleExecutionStatus returns a snapshot of the scheduler.
func (s *Server) handleExecutionStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.scheduler.Status())
}
