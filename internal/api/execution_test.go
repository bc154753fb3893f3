package api

import (
	"net/http"
	"testing"

	"github.com/fishcontrol/fishcontrol-core/internal/execution"
)

func TestExecutionStartAndStatus(t *testing.T) {
	env := newTestEnv(t)
	created := createTask(t, env)

	var got execution.Status
	status := env.do(t, http.MethodPost, "/api/v1/execution/start",
		ExecutionStartRequest{TaskID: created.ID}, &got)
	if status != http.StatusOK {
		t.Fatalf("start status = %d, want 200", status)
	}
	if !got.IsRunning {
		t.Error("scheduler not running after start")
	}
	if got.TaskID != created.ID {
		t.Errorf("task id = %q, want %q", got.TaskID, created.ID)
	}

	var snap execution.Status
	if status := env.do(t, http.MethodGet, "/api/v1/execution/status", nil, &snap); status != http.StatusOK {
		t.Fatalf("status status = %d, want 200", status)
	}
	if !snap.IsRunning {
		t.Error("status endpoint does not reflect the running task")
	}
}

func TestExecutionStartConflict(t *testing.T) {
	env := newTestEnv(t)
	created := createTask(t, env)

	req := ExecutionStartRequest{TaskID: created.ID}
	if status := env.do(t, http.MethodPost, "/api/v1/execution/start", req, nil); status != http.StatusOK {
		t.Fatalf("first start status = %d, want 200", status)
	}
	if status := env.do(t, http.MethodPost, "/api/v1/execution/start", req, nil); status != http.StatusConflict {
		t.Errorf("second start status = %d, want 409", status)
	}
}

func TestExecutionStartValidation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name string
		req  ExecutionStartRequest
		want int
	}{
		{"missing task id", ExecutionStartRequest{}, http.StatusBadRequest},
		{"negative estimate", ExecutionStartRequest{TaskID: "x", EstimatedDurationMS: -1}, http.StatusBadRequest},
		{"unknown task", ExecutionStartRequest{TaskID: "ghost"}, http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if status := env.do(t, http.MethodPost, "/api/v1/execution/start", tc.req, nil); status != tc.want {
				t.Errorf("status = %d, want %d", status, tc.want)
			}
		})
	}
}

func TestExecutionStop(t *testing.T) {
	env := newTestEnv(t)
	created := createTask(t, env)

	env.do(t, http.MethodPost, "/api/v1/execution/start", ExecutionStartRequest{TaskID: created.ID}, nil)

	var got execution.Status
	if status := env.do(t, http.MethodPost, "/api/v1/execution/stop", nil, &got); status != http.StatusOK {
		t.Fatalf("stop status = %d, want 200", status)
	}
	if got.IsRunning {
		t.Error("scheduler still running after stop")
	}

	// Stopping an idle scheduler is not an error.
	if status := env.do(t, http.MethodPost, "/api/v1/execution/stop", nil, nil); status != http.StatusOK {
		t.Errorf("idle stop status = %d, want 200", status)
	}
}
