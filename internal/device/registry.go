package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Logger defines the logging interface used by this package.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry provides actuator catalog management with caching and thread
// safety. It wraps a Repository and adds an in-memory cache for fast lookups.
//
// The cache is populated on startup via RefreshCache() and kept in sync
// by cache-updating CRUD operations.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]*Actuator // Cached actuators by ID
	cacheMu sync.RWMutex         // Protects cache
	logger  Logger
}

// NewRegistry creates a new actuator registry.
// The repository is used for persistence; the registry adds caching.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Actuator),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all actuators from the repository into the cache.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	actuators, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading actuators: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	// Clear and rebuild cache with deep copies
	r.cache = make(map[string]*Actuator, len(actuators))
	for i := range actuators {
		a := actuators[i]
		r.cache[a.ID] = a.DeepCopy()
	}

	r.logger.Info("actuator cache refreshed", "count", len(actuators))
	return nil
}

// GetActuator retrieves an actuator by ID.
// Returns ErrNotFound if the actuator does not exist.
// The returned actuator is a deep copy; callers can safely modify it.
func (r *Registry) GetActuator(ctx context.Context, id string) (*Actuator, error) {
	// Try cache first
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()

	if ok {
		// Return a deep copy to prevent external mutation of cache
		return cached.DeepCopy(), nil
	}

	// Fall back to repository (might be a new actuator not yet cached)
	a, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Cache for future lookups (store a deep copy)
	r.cacheMu.Lock()
	r.cache[a.ID] = a.DeepCopy()
	r.cacheMu.Unlock()

	return a, nil
}

// ListActuators retrieves all actuators.
// The returned actuators are deep copies; callers can safely modify them.
func (r *Registry) ListActuators(ctx context.Context) ([]Actuator, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	// Return from cache if populated
	if len(r.cache) > 0 {
		actuators := make([]Actuator, 0, len(r.cache))
		for _, a := range r.cache {
			// Deep copy to prevent external mutation of cache
			actuators = append(actuators, *a.DeepCopy())
		}
		return actuators, nil
	}

	// Fall back to repository
	return r.repo.List(ctx)
}

// ListEnabled retrieves all enabled actuators.
// These are the devices seeded into the state store.
func (r *Registry) ListEnabled(ctx context.Context) ([]Actuator, error) {
	actuators, err := r.ListActuators(ctx)
	if err != nil {
		return nil, err
	}

	enabled := actuators[:0]
	for _, a := range actuators {
		if a.Enabled {
			enabled = append(enabled, a)
		}
	}
	return enabled, nil
}

// CreateActuator creates a new actuator.
// It validates the actuator, generates an ID if needed, and persists it.
func (r *Registry) CreateActuator(ctx context.Context, a *Actuator) error {
	// Generate ID if not provided
	if a.ID == "" {
		a.ID = GenerateID()
	}

	// Validate
	if err := ValidateActuator(a); err != nil {
		return err
	}

	// Persist
	if err := r.repo.Create(ctx, a); err != nil {
		return err
	}

	// Update cache (store a deep copy to prevent external modification)
	r.cacheMu.Lock()
	r.cache[a.ID] = a.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("actuator created", "id", a.ID, "name", a.Name, "pin", a.Pin)
	return nil
}

// UpdateActuator updates an existing actuator.
// It validates the actuator and persists the changes.
func (r *Registry) UpdateActuator(ctx context.Context, a *Actuator) error {
	// Validate
	if err := ValidateActuator(a); err != nil {
		return err
	}

	// Persist
	if err := r.repo.Update(ctx, a); err != nil {
		return err
	}

	// Update cache (store a deep copy to prevent external modification)
	r.cacheMu.Lock()
	r.cache[a.ID] = a.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("actuator updated", "id", a.ID, "name", a.Name)
	return nil
}

// DeleteActuator removes an actuator.
func (r *Registry) DeleteActuator(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	// Update cache
	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("actuator deleted", "id", id)
	return nil
}

// ActuatorCount returns the number of cached actuators.
func (r *Registry) ActuatorCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// ImportCatalog replaces the entire catalog with the given actuators.
// Existing entries with matching IDs are updated; new ones are created.
// Entries absent from the import are left untouched.
func (r *Registry) ImportCatalog(ctx context.Context, actuators []Actuator) (int, error) {
	imported := 0
	for i := range actuators {
		a := actuators[i]
		if a.ID == "" {
			a.ID = GenerateID()
		}
		if err := ValidateActuator(&a); err != nil {
			return imported, fmt.Errorf("actuator %q: %w", a.Name, err)
		}

		err := r.repo.Update(ctx, &a)
		if errors.Is(err, ErrNotFound) {
			err = r.repo.Create(ctx, &a)
		}
		if err != nil {
			return imported, fmt.Errorf("actuator %q: %w", a.Name, err)
		}

		r.cacheMu.Lock()
		r.cache[a.ID] = a.DeepCopy()
		r.cacheMu.Unlock()
		imported++
	}

	r.logger.Info("catalog imported", "count", imported)
	return imported, nil
}
