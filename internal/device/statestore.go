package device

import (
	"context"
	"sync"
	"time"
)

// Default timing constants for the state store.
const (
	// DefaultLockTTL is how long an advisory lock is held when no
	// explicit TTL is given.
	DefaultLockTTL = 50 * time.Millisecond

	// lockSweepInterval is the cadence of the background sweep that
	// proactively clears expired locks.
	lockSweepInterval = 1 * time.Second
)

// StateObserver receives state change notifications from the store.
// Implementations must not block; they are invoked synchronously on the
// mutating goroutine.
type StateObserver interface {
	DeviceStateChanged(st State)
}

// StateStoreConfig carries the store's tunables.
type StateStoreConfig struct {
	// LockTTL is how long Lock() holds a device when the caller passes
	// no explicit TTL. Zero means DefaultLockTTL.
	LockTTL time.Duration
}

// StateStore is the authoritative in-memory record of runtime device state.
//
// It holds one State per enabled catalog entry, created when the store is
// seeded and never deleted while the process runs. All device-state
// mutation in the process funnels through this store: the dispatcher
// writes, the scheduler and observers read.
//
// Locks held here are soft advisory locks with a bounded TTL. They enforce
// the conflict window on the command pipeline; they do not serialise
// memory access (the store's own mutex does that).
//
// All public methods are thread-safe.
type StateStore struct {
	mu        sync.RWMutex
	states    map[string]*State
	actuators map[string]*Actuator // catalog snapshot, keyed by device ID

	// reverts holds the pending auto-revert timer per device.
	// A newer command cancels the previous timer.
	reverts map[string]*time.Timer

	lockTTL  time.Duration
	observer StateObserver
	logger   Logger

	sweepCancel context.CancelFunc
	sweepDone   chan struct{}
}

// NewStateStore creates an empty state store. Call Seed before use.
func NewStateStore(cfg StateStoreConfig) *StateStore {
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &StateStore{
		states:    make(map[string]*State),
		actuators: make(map[string]*Actuator),
		reverts:   make(map[string]*time.Timer),
		lockTTL:   ttl,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the store.
func (s *StateStore) SetLogger(logger Logger) {
	s.logger = logger
}

// SetObserver registers the single observer notified on state changes.
// Pass nil to remove it.
func (s *StateStore) SetObserver(obs StateObserver) {
	s.mu.Lock()
	s.observer = obs
	s.mu.Unlock()
}

// Seed loads the catalog snapshot into the store, creating a runtime state
// for each actuator that does not yet have one. Existing states survive a
// re-seed so a catalog edit does not reset commanded values. States whose
// actuator has left the catalog are dropped.
func (s *StateStore) Seed(actuators []Actuator) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(actuators))
	now := time.Now().UTC()

	for i := range actuators {
		a := actuators[i]
		seen[a.ID] = struct{}{}
		s.actuators[a.ID] = a.DeepCopy()

		if _, ok := s.states[a.ID]; !ok {
			s.states[a.ID] = &State{
				DeviceID:     a.ID,
				Online:       false,
				CurrentValue: a.DefaultValue,
				LastUpdate:   now,
			}
		}
	}

	for id := range s.states {
		if _, ok := seen[id]; !ok {
			delete(s.states, id)
			delete(s.actuators, id)
			if t, ok := s.reverts[id]; ok {
				t.Stop()
				delete(s.reverts, id)
			}
		}
	}

	s.logger.Info("state store seeded", "devices", len(s.states))
}

// Get returns a snapshot of one device's state.
// Returns ErrNotSeeded if the device is unknown to the store.
func (s *StateStore) Get(deviceID string) (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[deviceID]
	if !ok {
		return nil, ErrNotSeeded
	}
	return st.DeepCopy(), nil
}

// All returns snapshots of every device state.
func (s *StateStore) All() []State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	states := make([]State, 0, len(s.states))
	for _, st := range s.states {
		states = append(states, *st.DeepCopy())
	}
	return states
}

// Actuator returns the catalog snapshot entry for a device.
func (s *StateStore) Actuator(deviceID string) (*Actuator, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.actuators[deviceID]
	if !ok {
		return nil, false
	}
	return a.DeepCopy(), true
}

// Count returns the number of seeded devices.
func (s *StateStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}

// Update merges the set fields of a partial update into a device's state,
// stamps LastUpdate, and notifies the observer.
// Returns ErrNotSeeded if the device is unknown.
func (s *StateStore) Update(deviceID string, upd StateUpdate) error {
	s.mu.Lock()

	st, ok := s.states[deviceID]
	if !ok {
		s.mu.Unlock()
		return ErrNotSeeded
	}

	if upd.Online != nil {
		st.Online = *upd.Online
	}
	if upd.CurrentValue != nil {
		st.CurrentValue = *upd.CurrentValue
	}
	st.LastUpdate = time.Now().UTC()

	snapshot := *st.DeepCopy()
	obs := s.observer
	s.mu.Unlock()

	if obs != nil {
		obs.DeviceStateChanged(snapshot)
	}
	return nil
}

// SetAllOnline flips the online flag on every seeded device.
// Used by the transport health monitor; unchanged flags emit no event.
func (s *StateStore) SetAllOnline(online bool) {
	s.mu.Lock()

	var changed []State
	now := time.Now().UTC()
	for _, st := range s.states {
		if st.Online == online {
			continue
		}
		st.Online = online
		st.LastUpdate = now
		changed = append(changed, *st.DeepCopy())
	}
	obs := s.observer
	s.mu.Unlock()

	if obs != nil {
		for _, st := range changed {
			obs.DeviceStateChanged(st)
		}
	}
}

// Lock places an advisory lock on a device for the given TTL
// (store default when ttl <= 0). The lock expires on its own: a one-shot
// timer clears it, and IsLocked and the background sweep both expire it
// lazily should the timer be late.
// Returns ErrNotSeeded if the device is unknown.
func (s *StateStore) Lock(deviceID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.lockTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[deviceID]
	if !ok {
		return ErrNotSeeded
	}

	expiry := time.Now().Add(ttl)
	st.LockExpiry = &expiry

	time.AfterFunc(ttl, func() {
		s.expireLock(deviceID, expiry)
	})
	return nil
}

// Unlock clears a device's advisory lock. Unlocking an unlocked or
// unknown device is a no-op.
func (s *StateStore) Unlock(deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.states[deviceID]; ok {
		st.LockExpiry = nil
	}
}

// IsLocked reports whether a device currently holds an unexpired lock.
// A lock past its expiry is cleared on the way through.
func (s *StateStore) IsLocked(deviceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[deviceID]
	if !ok || st.LockExpiry == nil {
		return false
	}
	if time.Now().After(*st.LockExpiry) {
		st.LockExpiry = nil
		return false
	}
	return true
}

// expireLock clears a lock only if it still carries the expiry the timer
// was armed for. A re-lock issued meanwhile stays in place.
func (s *StateStore) expireLock(deviceID string, expiry time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[deviceID]
	if !ok || st.LockExpiry == nil {
		return
	}
	if st.LockExpiry.Equal(expiry) {
		st.LockExpiry = nil
	}
}

// ApplyCommand maps an accepted command onto a state mutation: the device's
// current value becomes the commanded value. For timed actions
// (revertAfter > 0) a revert to the actuator's default value is scheduled;
// a newer command for the same device cancels the pending revert.
// Returns ErrNotSeeded if the device is unknown.
func (s *StateStore) ApplyCommand(deviceID string, value float64, revertAfter time.Duration) error {
	s.mu.Lock()

	st, ok := s.states[deviceID]
	if !ok {
		s.mu.Unlock()
		return ErrNotSeeded
	}

	// Cancel any pending revert; this command supersedes it.
	if t, ok := s.reverts[deviceID]; ok {
		t.Stop()
		delete(s.reverts, deviceID)
	}

	st.CurrentValue = value
	st.LastUpdate = time.Now().UTC()
	snapshot := *st.DeepCopy()
	obs := s.observer

	if revertAfter > 0 {
		defaultValue := 0.0
		if a, ok := s.actuators[deviceID]; ok {
			defaultValue = a.DefaultValue
		}
		s.reverts[deviceID] = time.AfterFunc(revertAfter, func() {
			s.revert(deviceID, defaultValue)
		})
	}
	s.mu.Unlock()

	if obs != nil {
		obs.DeviceStateChanged(snapshot)
	}
	return nil
}

// revert returns a device to its default value after a timed action expires.
func (s *StateStore) revert(deviceID string, defaultValue float64) {
	s.mu.Lock()
	delete(s.reverts, deviceID)

	st, ok := s.states[deviceID]
	if !ok {
		s.mu.Unlock()
		return
	}

	st.CurrentValue = defaultValue
	st.LastUpdate = time.Now().UTC()
	snapshot := *st.DeepCopy()
	obs := s.observer
	s.mu.Unlock()

	s.logger.Debug("timed action expired, reverted to default",
		"device_id", deviceID,
		"value", defaultValue,
	)

	if obs != nil {
		obs.DeviceStateChanged(snapshot)
	}
}

// Start launches the background lock sweep. It runs until the context is
// cancelled or Stop is called.
func (s *StateStore) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.sweepCancel = cancel
	s.sweepDone = make(chan struct{})
	done := s.sweepDone
	s.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(lockSweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweepLocks()
			}
		}
	}()
}

// Stop halts the background lock sweep. Idempotent.
func (s *StateStore) Stop() {
	s.mu.Lock()
	cancel := s.sweepCancel
	done := s.sweepDone
	s.sweepCancel = nil
	s.sweepDone = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// sweepLocks clears every expired lock in one pass.
func (s *StateStore) sweepLocks() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, st := range s.states {
		if st.LockExpiry != nil && now.After(*st.LockExpiry) {
			st.LockExpiry = nil
		}
	}
}
