package device

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// recordingObserver captures state change notifications.
type recordingObserver struct {
	mu     sync.Mutex
	events []State
}

func (o *recordingObserver) DeviceStateChanged(st State) {
	o.mu.Lock()
	o.events = append(o.events, st)
	o.mu.Unlock()
}

func (o *recordingObserver) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.events)
}

func (o *recordingObserver) last() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.events[len(o.events)-1]
}

func testCatalog() []Actuator {
	return []Actuator{
		{ID: "pump1", Name: "Pump 1", Type: TypePump, Pin: 3, Mode: ModePWM, Enabled: true},
		{ID: "pump2", Name: "Pump 2", Type: TypePump, Pin: 5, Mode: ModePWM, Enabled: true},
		{ID: "valve1", Name: "Valve 1", Type: TypeValve, Pin: 7, Mode: ModeDigital, Enabled: true},
	}
}

func newTestStore(t *testing.T) *StateStore {
	t.Helper()
	store := NewStateStore(StateStoreConfig{LockTTL: 50 * time.Millisecond})
	store.Seed(testCatalog())
	return store
}

func TestStateStoreSeed(t *testing.T) {
	store := newTestStore(t)

	if store.Count() != 3 {
		t.Fatalf("Count = %d, want 3", store.Count())
	}

	st, err := store.Get("pump1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if st.Online {
		t.Error("freshly seeded device should be offline")
	}
	if st.CurrentValue != 0 {
		t.Errorf("CurrentValue = %v, want 0", st.CurrentValue)
	}

	if _, err := store.Get("unknown"); !errors.Is(err, ErrNotSeeded) {
		t.Errorf("Get(unknown): got %v, want ErrNotSeeded", err)
	}
}

func TestStateStoreReseedKeepsValues(t *testing.T) {
	store := newTestStore(t)

	if err := store.ApplyCommand("pump1", 60, 0); err != nil {
		t.Fatalf("ApplyCommand: %v", err)
	}

	// Re-seed with the same catalog minus valve1
	catalog := testCatalog()[:2]
	store.Seed(catalog)

	st, err := store.Get("pump1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if st.CurrentValue != 60 {
		t.Errorf("CurrentValue lost on re-seed: %v", st.CurrentValue)
	}
	if _, err := store.Get("valve1"); !errors.Is(err, ErrNotSeeded) {
		t.Error("valve1 should be dropped after re-seed without it")
	}
}

func TestStateStoreUpdate(t *testing.T) {
	store := newTestStore(t)
	obs := &recordingObserver{}
	store.SetObserver(obs)

	online := true
	value := 42.0
	if err := store.Update("pump1", StateUpdate{Online: &online, CurrentValue: &value}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	st, _ := store.Get("pump1")
	if !st.Online || st.CurrentValue != 42 {
		t.Errorf("update not applied: %+v", st)
	}
	if st.LastUpdate.IsZero() {
		t.Error("LastUpdate not stamped")
	}

	if obs.count() != 1 {
		t.Fatalf("observer called %d times, want 1", obs.count())
	}
	if obs.last().DeviceID != "pump1" {
		t.Errorf("observer got %q", obs.last().DeviceID)
	}

	if err := store.Update("unknown", StateUpdate{Online: &online}); !errors.Is(err, ErrNotSeeded) {
		t.Errorf("Update(unknown): got %v, want ErrNotSeeded", err)
	}
}

func TestStateStoreLockExpiry(t *testing.T) {
	store := newTestStore(t)

	if err := store.Lock("pump1", 30*time.Millisecond); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if !store.IsLocked("pump1") {
		t.Fatal("device should be locked immediately after Lock")
	}
	if store.IsLocked("pump2") {
		t.Fatal("pump2 should not be locked")
	}

	time.Sleep(50 * time.Millisecond)
	if store.IsLocked("pump1") {
		t.Error("lock did not expire after TTL")
	}
}

func TestStateStoreExplicitUnlock(t *testing.T) {
	store := newTestStore(t)

	if err := store.Lock("pump1", time.Second); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	store.Unlock("pump1")
	if store.IsLocked("pump1") {
		t.Error("device still locked after Unlock")
	}

	// Unlocking again, or an unknown device, is a no-op
	store.Unlock("pump1")
	store.Unlock("unknown")
}

func TestStateStoreRelockSurvivesOldTimer(t *testing.T) {
	store := newTestStore(t)

	if err := store.Lock("pump1", 20*time.Millisecond); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	// Re-lock with a longer TTL before the first expires
	if err := store.Lock("pump1", 200*time.Millisecond); err != nil {
		t.Fatalf("re-Lock: %v", err)
	}

	time.Sleep(50 * time.Millisecond) // first timer has fired by now
	if !store.IsLocked("pump1") {
		t.Error("re-lock was cleared by the stale expiry timer")
	}
}

func TestStateStoreApplyCommand(t *testing.T) {
	store := newTestStore(t)
	obs := &recordingObserver{}
	store.SetObserver(obs)

	if err := store.ApplyCommand("pump1", 75, 0); err != nil {
		t.Fatalf("ApplyCommand: %v", err)
	}
	st, _ := store.Get("pump1")
	if st.CurrentValue != 75 {
		t.Errorf("CurrentValue = %v, want 75", st.CurrentValue)
	}
	if obs.count() != 1 {
		t.Errorf("observer called %d times, want 1", obs.count())
	}

	if err := store.ApplyCommand("unknown", 1, 0); !errors.Is(err, ErrNotSeeded) {
		t.Errorf("ApplyCommand(unknown): got %v, want ErrNotSeeded", err)
	}
}

func TestStateStoreTimedActionReverts(t *testing.T) {
	store := newTestStore(t)

	if err := store.ApplyCommand("pump1", 50, 30*time.Millisecond); err != nil {
		t.Fatalf("ApplyCommand: %v", err)
	}

	st, _ := store.Get("pump1")
	if st.CurrentValue != 50 {
		t.Fatalf("CurrentValue = %v, want 50", st.CurrentValue)
	}

	// Wait past the duration; the device reverts to its default (0)
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		st, _ = store.Get("pump1")
		if st.CurrentValue == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Errorf("timed action did not revert: CurrentValue = %v", st.CurrentValue)
}

func TestStateStoreNewCommandCancelsRevert(t *testing.T) {
	store := newTestStore(t)

	if err := store.ApplyCommand("pump1", 50, 30*time.Millisecond); err != nil {
		t.Fatalf("ApplyCommand: %v", err)
	}
	// Second command without a duration supersedes the pending revert
	if err := store.ApplyCommand("pump1", 80, 0); err != nil {
		t.Fatalf("ApplyCommand: %v", err)
	}

	time.Sleep(60 * time.Millisecond)
	st, _ := store.Get("pump1")
	if st.CurrentValue != 80 {
		t.Errorf("stale revert fired: CurrentValue = %v, want 80", st.CurrentValue)
	}
}

func TestStateStoreSetAllOnline(t *testing.T) {
	store := newTestStore(t)
	obs := &recordingObserver{}
	store.SetObserver(obs)

	store.SetAllOnline(true)
	for _, st := range store.All() {
		if !st.Online {
			t.Errorf("%s still offline", st.DeviceID)
		}
	}
	if obs.count() != 3 {
		t.Errorf("observer called %d times, want 3", obs.count())
	}

	// No-op when nothing changes
	store.SetAllOnline(true)
	if obs.count() != 3 {
		t.Errorf("unchanged flags emitted events: %d", obs.count())
	}
}

func TestStateStoreSweepClearsExpiredLocks(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store.Start(ctx)
	defer store.Stop()

	if err := store.Lock("pump1", 10*time.Millisecond); err != nil {
		t.Fatalf("Lock: %v", err)
	}

	// The sweep (or the one-shot expiry) clears the lock well within 2s
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		st, _ := store.Get("pump1")
		if st.LockExpiry == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("expired lock never cleared")
}

func TestStateStoreActuatorLookup(t *testing.T) {
	store := newTestStore(t)

	a, ok := store.Actuator("valve1")
	if !ok {
		t.Fatal("Actuator(valve1) not found")
	}
	if a.Mode != ModeDigital {
		t.Errorf("Mode = %v, want digital", a.Mode)
	}

	if _, ok := store.Actuator("unknown"); ok {
		t.Error("Actuator(unknown) should not be found")
	}
}
