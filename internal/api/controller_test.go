package api

import (
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestControllerSketchDownload(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.http.Client().Get(env.http.URL + "/api/v1/controller/sketch")
	if err != nil {
		t.Fatalf("get sketch: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "fishcontrol.ino") {
		t.Errorf("content-disposition = %q, want filename fishcontrol.ino", cd)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	sketch := string(body)
	for _, want := range []string{`"pump1"`, `"pump2"`, `"valve1"`, "POST /api/commands"} {
		if !strings.Contains(sketch, want) {
			t.Errorf("sketch missing %q", want)
		}
	}
}

func TestControllerSketchNoDevices(t *testing.T) {
	env := newTestEnv(t)

	for _, id := range []string{"pump1", "pump2", "valve1"} {
		if status := env.do(t, http.MethodDelete, "/api/v1/devices/"+id, nil, nil); status != http.StatusNoContent {
			t.Fatalf("delete %s status = %d", id, status)
		}
	}

	if status := env.do(t, http.MethodGet, "/api/v1/controller/sketch", nil, nil); status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 with an empty catalogue", status)
	}
}

func TestControllerLogIngest(t *testing.T) {
	env := newTestEnv(t)

	entry := ControllerLogEntry{TimestampMS: 12500, Level: "warn", Message: "Device pump1 does not support PWM"}
	if status := env.do(t, http.MethodPost, "/api/arduino-logs", entry, nil); status != http.StatusNoContent {
		t.Errorf("status = %d, want 204", status)
	}

	// Unknown levels fall back to info rather than failing.
	entry.Level = "chatty"
	if status := env.do(t, http.MethodPost, "/api/arduino-logs", entry, nil); status != http.StatusNoContent {
		t.Errorf("unknown level status = %d, want 204", status)
	}
}

func TestControllerLogValidation(t *testing.T) {
	env := newTestEnv(t)

	if status := env.do(t, http.MethodPost, "/api/arduino-logs",
		ControllerLogEntry{Level: "info"}, nil); status != http.StatusBadRequest {
		t.Errorf("empty message status = %d, want 400", status)
	}
}
