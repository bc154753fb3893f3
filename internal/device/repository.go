package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for actuator persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves an actuator by its unique identifier.
	// Returns ErrNotFound if the actuator does not exist.
	GetByID(ctx context.Context, id string) (*Actuator, error)

	// List retrieves all actuators, ordered by name.
	List(ctx context.Context) ([]Actuator, error)

	// Create inserts a new actuator.
	// Returns ErrExists if an actuator with the same ID already exists,
	// ErrPinInUse if another actuator occupies the pin.
	Create(ctx context.Context, a *Actuator) error

	// Update modifies an existing actuator.
	// Returns ErrNotFound if the actuator does not exist.
	Update(ctx context.Context, a *Actuator) error

	// Delete removes an actuator by ID.
	// Returns ErrNotFound if the actuator does not exist.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves an actuator by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Actuator, error) {
	query := `
		SELECT id, name, type, pin, mode, pwm_frequency, max_power,
			default_value, enabled, created_at, updated_at
		FROM devices
		WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	a, err := scanActuator(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return a, nil
}

// List retrieves all actuators.
func (r *SQLiteRepository) List(ctx context.Context) ([]Actuator, error) {
	query := `
		SELECT id, name, type, pin, mode, pwm_frequency, max_power,
			default_value, enabled, created_at, updated_at
		FROM devices
		ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var actuators []Actuator
	for rows.Next() {
		a, scanErr := scanActuator(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning device: %w", scanErr)
		}
		actuators = append(actuators, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return actuators, nil
}

// Create inserts a new actuator.
func (r *SQLiteRepository) Create(ctx context.Context, a *Actuator) error {
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	query := `
		INSERT INTO devices (id, name, type, pin, mode, pwm_frequency,
			max_power, default_value, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.Name, string(a.Type), a.Pin, string(a.Mode),
		a.PWMFrequency, a.MaxPower, a.DefaultValue, boolToInt(a.Enabled),
		a.CreatedAt.Format(time.RFC3339Nano), a.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			if strings.Contains(err.Error(), "devices.pin") {
				return ErrPinInUse
			}
			return ErrExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// Update modifies an existing actuator.
func (r *SQLiteRepository) Update(ctx context.Context, a *Actuator) error {
	a.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE devices
		SET name = ?, type = ?, pin = ?, mode = ?, pwm_frequency = ?,
			max_power = ?, default_value = ?, enabled = ?, updated_at = ?
		WHERE id = ?`

	res, err := r.db.ExecContext(ctx, query,
		a.Name, string(a.Type), a.Pin, string(a.Mode), a.PWMFrequency,
		a.MaxPower, a.DefaultValue, boolToInt(a.Enabled),
		a.UpdatedAt.Format(time.RFC3339Nano), a.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrPinInUse
		}
		return fmt.Errorf("updating device: %w", err)
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

// Delete removes an actuator by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
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

// scanActuator scans a single actuator row.
func scanActuator(s scanner) (*Actuator, error) {
	var (
		a         Actuator
		typ, mode string
		enabled   int
		createdAt string
		updatedAt string
	)

	err := s.Scan(&a.ID, &a.Name, &typ, &a.Pin, &mode, &a.PWMFrequency,
		&a.MaxPower, &a.DefaultValue, &enabled, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	a.Type = Type(typ)
	a.Mode = Mode(mode)
	a.Enabled = enabled != 0

	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &a, nil
}

// parseTime handles both RFC3339Nano and RFC3339 timestamps.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// isUniqueViolation reports whether err is a SQLite unique constraint failure.
// String matching avoids a hard dependency on the driver's error types here.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
