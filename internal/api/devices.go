package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fishcontrol/fishcontrol-core/internal/device"
)

// handleListDevices returns the full actuator catalogue.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.devices.ListActuators(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list devices")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single actuator by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	a, err := s.devices.GetActuator(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, a)
}

// handleCreateDevice creates a new actuator and seeds its runtime state.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var a device.Actuator
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.devices.CreateActuator(r.Context(), &a); err != nil {
		switch {
		case isDeviceValidationError(err):
			writeBadRequest(w, err.Error())
		case errors.Is(err, device.ErrExists), errors.Is(err, device.ErrPinInUse):
			writeConflict(w, err.Error())
		default:
			writeInternalError(w, "failed to create device")
		}
		return
	}

	s.reseedStates(r)
	writeJSON(w, http.StatusCreated, a)
}

// handleUpdateDevice partially updates an actuator.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := s.devices.GetActuator(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	// Decode partial update onto the existing actuator
	if err := json.NewDecoder(r.Body).Decode(existing); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	existing.ID = id // ID cannot be changed

	if err := s.devices.UpdateActuator(r.Context(), existing); err != nil {
		switch {
		case isDeviceValidationError(err):
			writeBadRequest(w, err.Error())
		case errors.Is(err, device.ErrPinInUse):
			writeConflict(w, err.Error())
		default:
			writeInternalError(w, "failed to update device")
		}
		return
	}

	s.reseedStates(r)
	writeJSON(w, http.StatusOK, existing)
}

// handleDeleteDevice removes an actuator by ID.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.devices.DeleteActuator(r.Context(), id); err != nil {
		if errors.Is(err, device.ErrNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to delete device")
		return
	}

	s.reseedStates(r)
	w.WriteHeader(http.StatusNoContent)
}

// handleDeviceStates returns the runtime state of every seeded device.
func (s *Server) handleDeviceStates(w http.ResponseWriter, _ *http.Request) {
	states := s.states.All()
	writeJSON(w, http.StatusOK, map[string]any{"states": states, "count": len(states)})
}

// DeviceExport is the envelope for catalogue export and import.
type DeviceExport struct {
	Devices []device.Actuator `json:"devices"`
}

// handleExportDevices returns the catalogue as a portable JSON document.
func (s *Server) handleExportDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.devices.ListActuators(r.Context())
	if err != nil {
		writeInternalError(w, "failed to export devices")
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="fishcontrol-devices.json"`)
	writeJSON(w, http.StatusOK, DeviceExport{Devices: devices})
}

// handleImportDevices merges an exported catalogue into the registry.
// Existing devices are updated, new ones created.
func (s *Server) handleImportDevices(w http.ResponseWriter, r *http.Request) {
	var imp DeviceExport
	if err := json.NewDecoder(r.Body).Decode(&imp); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(imp.Devices) == 0 {
		writeBadRequest(w, "no devices in import")
		return
	}

	imported, err := s.devices.ImportCatalog(r.Context(), imp.Devices)
	if err != nil {
		if isDeviceValidationError(err) {
			writeBadRequest(w, err.Error())
			return
		}
		writeInternalError(w, "failed to import devices")
		return
	}

	s.reseedStates(r)
	writeJSON(w, http.StatusOK, map[string]any{"imported": imported})
}

// reseedStates refreshes the runtime state store after a catalogue change.
// Newly seeded devices start offline; if the controller is currently
// reachable they are flipped online immediately.
func (s *Server) reseedStates(r *http.Request) {
	enabled, err := s.devices.ListEnabled(r.Context())
	if err != nil {
		s.logger.Warn("state reseed failed", "error", err)
		return
	}
	s.states.Seed(enabled)
	if s.monitor != nil && s.monitor.Online() {
		s.states.SetAllOnline(true)
	}
}

// isDeviceValidationError checks whether an error is an actuator validation
// error. ValidateActuator wraps several sentinel errors, so all of them are
// checked rather than just ErrInvalid.
func isDeviceValidationError(err error) bool {
	return errors.Is(err, device.ErrInvalid) ||
		errors.Is(err, device.ErrInvalidName) ||
		errors.Is(err, device.ErrInvalidType) ||
		errors.Is(err, device.ErrInvalidMode) ||
		errors.Is(err, device.ErrInvalidPin)
}
