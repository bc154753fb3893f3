package api

import (
	"net/http"
	"testing"

	"github.com/fishcontrol/fishcontrol-core/internal/device"
)

func TestDeviceList(t *testing.T) {
	env := newTestEnv(t)

	var got struct {
		Devices []device.Actuator `json:"devices"`
		Count   int               `json:"count"`
	}
	if status := env.do(t, http.MethodGet, "/api/v1/devices", nil, &got); status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if got.Count != 3 || len(got.Devices) != 3 {
		t.Errorf("count = %d, devices = %d, want 3", got.Count, len(got.Devices))
	}
}

func TestDeviceGet(t *testing.T) {
	env := newTestEnv(t)

	var got device.Actuator
	if status := env.do(t, http.MethodGet, "/api/v1/devices/pump1", nil, &got); status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if got.Name != "Main Pump" || got.Pin != 3 {
		t.Errorf("got %q pin %d, want Main Pump pin 3", got.Name, got.Pin)
	}

	if status := env.do(t, http.MethodGet, "/api/v1/devices/ghost", nil, nil); status != http.StatusNotFound {
		t.Errorf("missing device status = %d, want 404", status)
	}
}

func TestDeviceCreate(t *testing.T) {
	env := newTestEnv(t)

	body := device.Actuator{
		Name:    "Air Stone",
		Type:    device.TypePump,
		Pin:     9,
		Mode:    device.ModePWM,
		Enabled: true,
	}

	var created device.Actuator
	if status := env.do(t, http.MethodPost, "/api/v1/devices", body, &created); status != http.StatusCreated {
		t.Fatalf("status = %d, want 201", status)
	}
	if created.ID == "" {
		t.Error("ID not generated")
	}

	// The new device is seeded into the runtime state store.
	if _, err := env.states.Get(created.ID); err != nil {
		t.Errorf("state not seeded for new device: %v", err)
	}
}

func TestDeviceCreateInvalid(t *testing.T) {
	env := newTestEnv(t)

	body := device.Actuator{
		Name:    "", // name required
		Type:    device.TypePump,
		Pin:     9,
		Mode:    device.ModePWM,
		Enabled: true,
	}
	if status := env.do(t, http.MethodPost, "/api/v1/devices", body, nil); status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
}

func TestDeviceCreatePinInUse(t *testing.T) {
	env := newTestEnv(t)

	body := device.Actuator{
		Name:    "Pin Squatter",
		Type:    device.TypePump,
		Pin:     3, // pump1's pin
		Mode:    device.ModePWM,
		Enabled: true,
	}
	if status := env.do(t, http.MethodPost, "/api/v1/devices", body, nil); status != http.StatusConflict {
		t.Errorf("status = %d, want 409", status)
	}
}

func TestDeviceUpdate(t *testing.T) {
	env := newTestEnv(t)

	var updated device.Actuator
	status := env.do(t, http.MethodPatch, "/api/v1/devices/pump1",
		map[string]any{"name": "Renamed Pump"}, &updated)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if updated.Name != "Renamed Pump" {
		t.Errorf("name = %q, want Renamed Pump", updated.Name)
	}
	if updated.Pin != 3 {
		t.Errorf("pin = %d, untouched fields must survive a partial update", updated.Pin)
	}

	if status := env.do(t, http.MethodPatch, "/api/v1/devices/ghost",
		map[string]any{"name": "x"}, nil); status != http.StatusNotFound {
		t.Errorf("missing device status = %d, want 404", status)
	}
}

func TestDeviceDelete(t *testing.T) {
	env := newTestEnv(t)

	if status := env.do(t, http.MethodDelete, "/api/v1/devices/pump2", nil, nil); status != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", status)
	}

	// Deleted devices leave the state store on reseed.
	if _, err := env.states.Get("pump2"); err == nil {
		t.Error("deleted device still has runtime state")
	}

	if status := env.do(t, http.MethodDelete, "/api/v1/devices/pump2", nil, nil); status != http.StatusNotFound {
		t.Errorf("double delete status = %d, want 404", status)
	}
}

func TestDeviceStates(t *testing.T) {
	env := newTestEnv(t)

	var got struct {
		States []device.State `json:"states"`
		Count  int            `json:"count"`
	}
	if status := env.do(t, http.MethodGet, "/api/v1/devices/states", nil, &got); status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if got.Count != 3 {
		t.Fatalf("count = %d, want 3", got.Count)
	}
	for _, st := range got.States {
		if !st.Online {
			t.Errorf("device %s offline, harness marks all online", st.DeviceID)
		}
	}
}

func TestDeviceExportImport(t *testing.T) {
	env := newTestEnv(t)

	var exported DeviceExport
	if status := env.do(t, http.MethodGet, "/api/v1/devices/export", nil, &exported); status != http.StatusOK {
		t.Fatalf("export status = %d, want 200", status)
	}
	if len(exported.Devices) != 3 {
		t.Fatalf("exported %d devices, want 3", len(exported.Devices))
	}

	// Re-import into a fresh environment.
	fresh := newTestEnv(t)
	for i := range exported.Devices {
		exported.Devices[i].Pin += 20 // avoid pin collisions with the fresh seed
	}

	var imp struct {
		Imported int `json:"imported"`
	}
	if status := fresh.do(t, http.MethodPost, "/api/v1/devices/import", exported, &imp); status != http.StatusOK {
		t.Fatalf("import status = %d, want 200", status)
	}
	if imp.Imported != 3 {
		t.Errorf("imported = %d, want 3", imp.Imported)
	}

	if status := fresh.do(t, http.MethodPost, "/api/v1/devices/import", DeviceExport{}, nil); status != http.StatusBadRequest {
		t.Errorf("empty import status = %d, want 400", status)
	}
}
