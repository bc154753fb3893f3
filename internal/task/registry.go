package task

import (
	"context"
	"fmt"
	"sync"
)

// Logger defines the logging interface used by the Registry.
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

// Registry provides task management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache for fast lookups.
//
// The cache is populated on startup via RefreshCache() and kept in sync
// by cache-updating CRUD operations.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]*Task // Cached tasks by ID
	cacheMu sync.RWMutex     // Protects cache
	logger  Logger
}

// NewRegistry creates a new task registry.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Task),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all tasks from the repository into the cache.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	tasks, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading tasks: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	// Clear and rebuild cache with deep copies
	r.cache = make(map[string]*Task, len(tasks))
	for i := range tasks {
		t := tasks[i]
		r.cache[t.ID] = t.DeepCopy()
	}

	r.logger.Info("task cache refreshed", "count", len(tasks))
	return nil
}

// GetTask retrieves a task by ID.
// The returned task is a deep copy; callers can safely modify it.
func (r *Registry) GetTask(ctx context.Context, id string) (*Task, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()

	if ok {
		return cached.DeepCopy(), nil
	}

	t, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[t.ID] = t.DeepCopy()
	r.cacheMu.Unlock()

	return t, nil
}

// ListTasks retrieves all tasks.
// The returned tasks are deep copies; callers can safely modify them.
func (r *Registry) ListTasks(ctx context.Context) ([]Task, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	if len(r.cache) > 0 {
		tasks := make([]Task, 0, len(r.cache))
		for _, t := range r.cache {
			tasks = append(tasks, *t.DeepCopy())
		}
		return tasks, nil
	}

	return r.repo.List(ctx)
}

// CreateTask creates a new task.
// It validates the task, generates an ID if needed, and persists it.
func (r *Registry) CreateTask(ctx context.Context, t *Task) error {
	if t.ID == "" {
		t.ID = GenerateID()
	}

	if err := Validate(t); err != nil {
		return err
	}

	if err := r.repo.Create(ctx, t); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[t.ID] = t.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("task created", "id", t.ID, "name", t.Name, "steps", len(t.Steps))
	return nil
}

// UpdateTask updates an existing task.
func (r *Registry) UpdateTask(ctx context.Context, t *Task) error {
	if err := Validate(t); err != nil {
		return err
	}

	if err := r.repo.Update(ctx, t); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[t.ID] = t.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("task updated", "id", t.ID, "name", t.Name)
	return nil
}

// DeleteTask removes a task.
func (r *Registry) DeleteTask(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("task deleted", "id", id)
	return nil
}

// TaskCount returns the number of cached tasks.
func (r *Registry) TaskCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}
