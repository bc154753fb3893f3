package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func statusServer(t *testing.T, status string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ControllerStatus{Status: status, Devices: 2})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSweepFindsFirstResponder(t *testing.T) {
	controller := statusServer(t, "online")

	candidates := []string{
		"http://127.0.0.1:1", // nothing listening
		controller.URL,
		"http://127.0.0.1:2", // never reached
	}

	got, err := sweep(context.Background(), candidates, 500*time.Millisecond, noopLogger{})
	if err != nil {
		t.Fatalf("sweep() error = %v", err)
	}
	if got != controller.URL {
		t.Errorf("sweep() = %s, want %s", got, controller.URL)
	}
}

func TestSweepSkipsNonControllerHosts(t *testing.T) {
	// A host that answers HTTP but does not declare itself online
	// should not terminate the sweep.
	imposter := statusServer(t, "booting")
	controller := statusServer(t, "online")

	got, err := sweep(context.Background(), []string{imposter.URL, controller.URL}, 500*time.Millisecond, noopLogger{})
	if err != nil {
		t.Fatalf("sweep() error = %v", err)
	}
	if got != controller.URL {
		t.Errorf("sweep() = %s, want %s", got, controller.URL)
	}
}

func TestSweepNoResponder(t *testing.T) {
	candidates := []string{"http://127.0.0.1:1", "http://127.0.0.1:2"}

	_, err := sweep(context.Background(), candidates, 200*time.Millisecond, noopLogger{})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("sweep() error = %v, want ErrNotFound", err)
	}
}

func TestSweepHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sweep(ctx, []string{"http://127.0.0.1:1"}, 200*time.Millisecond, noopLogger{})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("sweep() error = %v, want ErrNotFound", err)
	}
}

func TestDiscoverBuildsCandidateRange(t *testing.T) {
	// No controller on the loopback range; the sweep must complete
	// and report not found rather than hang.
	cfg := DiscoveryConfig{
		Subnet:       "127.0.0",
		FirstHost:    1,
		LastHost:     2,
		ProbeTimeout: 200 * time.Millisecond,
	}

	_, err := Discover(context.Background(), cfg, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Discover() error = %v, want ErrNotFound", err)
	}
}
