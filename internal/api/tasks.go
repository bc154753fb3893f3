package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fishcontrol/fishcontrol-core/internal/task"
)

// handleListTasks returns all stored tasks.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tasks.ListTasks(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list tasks")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks, "count": len(tasks)})
}

// handleGetTask returns a single task by ID.
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	t, err := s.tasks.GetTask(r.Context(), id)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			writeNotFound(w, "task not found")
			return
		}
		writeInternalError(w, "failed to get task")
		return
	}

	writeJSON(w, http.StatusOK, t)
}

// handleCreateTask creates a new task.
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var t task.Task
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.tasks.CreateTask(r.Context(), &t); err != nil {
		switch {
		case isTaskValidationError(err):
			writeBadRequest(w, err.Error())
		case errors.Is(err, task.ErrExists):
			writeConflict(w, err.Error())
		default:
			writeInternalError(w, "failed to create task")
		}
		return
	}

	writeJSON(w, http.StatusCreated, t)
}

// handleUpdateTask partially updates a task.
func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := s.tasks.GetTask(r.Context(), id)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			writeNotFound(w, "task not found")
			return
		}
		writeInternalError(w, "failed to get task")
		return
	}

	if err := json.NewDecoder(r.Body).Decode(existing); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	existing.ID = id // ID cannot be changed

	if err := s.tasks.UpdateTask(r.Context(), existing); err != nil {
		if isTaskValidationError(err) {
			writeBadRequest(w, err.Error())
			return
		}
		writeInternalError(w, "failed to update task")
		return
	}

	writeJSON(w, http.StatusOK, existing)
}

// handleDeleteTask removes a task by ID.
func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.tasks.DeleteTask(r.Context(), id); err != nil {
		if errors.Is(err, task.ErrNotFound) {
			writeNotFound(w, "task not found")
			return
		}
		writeInternalError(w, "failed to delete task")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TaskExport is the envelope for task export and import.
type TaskExport struct {
	Tasks []task.Task `json:"tasks"`
}

// handleExportTasks returns all tasks as a portable JSON document.
func (s *Server) handleExportTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tasks.ListTasks(r.Context())
	if err != nil {
		writeInternalError(w, "failed to export tasks")
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="fishcontrol-tasks.json"`)
	writeJSON(w, http.StatusOK, TaskExport{Tasks: tasks})
}

// handleImportTasks merges an exported task document into the store.
// Tasks whose ID already exists are updated, the rest created.
func (s *Server) handleImportTasks(w http.ResponseWriter, r *http.Request) {
	var imp TaskExport
	if err := json.NewDecoder(r.Body).Decode(&imp); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(imp.Tasks) == 0 {
		writeBadRequest(w, "no tasks in import")
		return
	}

	imported := 0
	for i := range imp.Tasks {
		t := imp.Tasks[i]
		err := s.tasks.CreateTask(r.Context(), &t)
		if errors.Is(err, task.ErrExists) {
			err = s.tasks.UpdateTask(r.Context(), &t)
		}
		if err != nil {
			if isTaskValidationError(err) {
				writeBadRequest(w, err.Error())
				return
			}
			writeInternalError(w, "failed to import tasks")
			return
		}
		imported++
	}

	writeJSON(w, http.StatusOK, map[string]any{"imported": imported})
}

// isTaskValidationError checks whether an error is a task validation error.
func isTaskValidationError(err error) bool {
	return errors.Is(err, task.ErrInvalid) ||
		errors.Is(err, task.ErrInvalidName) ||
		errors.Is(err, task.ErrInvalidAction) ||
		errors.Is(err, task.ErrInvalidLoop) ||
		errors.Is(err, task.ErrUnknownActionType)
}
