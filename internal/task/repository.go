package task

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for task persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a task by its unique identifier.
	// Returns ErrNotFound if the task does not exist.
	GetByID(ctx context.Context, id string) (*Task, error)

	// List retrieves all tasks, ordered by name.
	List(ctx context.Context) ([]Task, error)

	// Create inserts a new task.
	// Returns ErrExists if a task with the same ID or name already exists.
	Create(ctx context.Context, t *Task) error

	// Update modifies an existing task.
	// Returns ErrNotFound if the task does not exist.
	Update(ctx context.Context, t *Task) error

	// Delete removes a task by ID.
	// Returns ErrNotFound if the task does not exist.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
// Steps are serialised as a JSON column; this package owns the shape of
// that payload.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a task by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Task, error) {
	query := `
		SELECT id, name, description, steps, created_at, updated_at
		FROM tasks
		WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying task by id: %w", err)
	}
	return t, nil
}

// List retrieves all tasks.
func (r *SQLiteRepository) List(ctx context.Context) ([]Task, error) {
	query := `
		SELECT id, name, description, steps, created_at, updated_at
		FROM tasks
		ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, scanErr := scanTask(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning task: %w", scanErr)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tasks: %w", err)
	}
	return tasks, nil
}

// Create inserts a new task.
func (r *SQLiteRepository) Create(ctx context.Context, t *Task) error {
	stepsJSON, err := json.Marshal(t.Steps)
	if err != nil {
		return fmt.Errorf("marshalling steps: %w", err)
	}

	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	query := `
		INSERT INTO tasks (id, name, description, steps, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		t.ID, t.Name, t.Description, string(stepsJSON),
		t.CreatedAt.Format(time.RFC3339Nano), t.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrExists
		}
		return fmt.Errorf("inserting task: %w", err)
	}
	return nil
}

// Update modifies an existing task.
func (r *SQLiteRepository) Update(ctx context.Context, t *Task) error {
	stepsJSON, err := json.Marshal(t.Steps)
	if err != nil {
		return fmt.Errorf("marshalling steps: %w", err)
	}

	t.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE tasks
		SET name = ?, description = ?, steps = ?, updated_at = ?
		WHERE id = ?`

	res, err := r.db.ExecContext(ctx, query,
		t.Name, t.Description, string(stepsJSON),
		t.UpdatedAt.Format(time.RFC3339Nano), t.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrExists
		}
		return fmt.Errorf("updating task: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a task by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// scanner abstracts sql.Row and sql.Rows for shared scanning logic.
type scanner interface {
	Scan(dest ...any) error
}

// scanTask scans a single task row, deserialising the steps payload.
func scanTask(s scanner) (*Task, error) {
	var (
		t         Task
		stepsJSON string
		createdAt string
		updatedAt string
	)

	err := s.Scan(&t.ID, &t.Name, &t.Description, &stepsJSON, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(stepsJSON), &t.Steps); err != nil {
		return nil, fmt.Errorf("unmarshalling steps: %w", err)
	}

	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &t, nil
}

// parseTime handles both RFC3339Nano and RFC3339 timestamps.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// isUniqueViolation reports whether err is a SQLite unique constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
