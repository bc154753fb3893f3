package device

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the devices table.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// Create devices table matching the schema
	schema := `
		CREATE TABLE devices (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			type          TEXT NOT NULL,
			pin           INTEGER NOT NULL,
			mode          TEXT NOT NULL,
			pwm_frequency INTEGER,
			max_power     INTEGER,
			default_value REAL NOT NULL DEFAULT 0,
			enabled       INTEGER NOT NULL DEFAULT 1,
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL
		);
		CREATE UNIQUE INDEX idx_devices_pin ON devices(pin);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func TestSQLiteRepositoryCRUD(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	pump := validActuator()
	if err := repo.Create(ctx, pump); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Read it back
	got, err := repo.GetByID(ctx, pump.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Name != pump.Name || got.Type != pump.Type || got.Pin != pump.Pin || got.Mode != pump.Mode {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, pump)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}

	// Update
	got.Name = "Renamed Pump"
	got.Pin = 5
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got2, err := repo.GetByID(ctx, pump.ID)
	if err != nil {
		t.Fatalf("GetByID after update: %v", err)
	}
	if got2.Name != "Renamed Pump" || got2.Pin != 5 {
		t.Errorf("update not persisted: %+v", got2)
	}

	// List
	valve := &Actuator{
		ID:      GenerateID(),
		Name:    "Valve 1",
		Type:    TypeValve,
		Pin:     7,
		Mode:    ModeDigital,
		Enabled: true,
	}
	if err := repo.Create(ctx, valve); err != nil {
		t.Fatalf("Create valve: %v", err)
	}
	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("List returned %d actuators, want 2", len(all))
	}

	// Delete
	if err := repo.Delete(ctx, valve.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, valve.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID after delete: got %v, want ErrNotFound", err)
	}
}

func TestSQLiteRepositoryNotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID: got %v, want ErrNotFound", err)
	}
	if err := repo.Update(ctx, validActuator()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update: got %v, want ErrNotFound", err)
	}
	if err := repo.Delete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete: got %v, want ErrNotFound", err)
	}
}

func TestSQLiteRepositoryDuplicateID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	pump := validActuator()
	if err := repo.Create(ctx, pump); err != nil {
		t.Fatalf("Create: %v", err)
	}

	dup := *pump
	dup.Pin = 9 // different pin, same ID
	if err := repo.Create(ctx, &dup); !errors.Is(err, ErrExists) {
		t.Errorf("duplicate ID: got %v, want ErrExists", err)
	}
}

func TestSQLiteRepositoryDuplicatePin(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	pump := validActuator()
	if err := repo.Create(ctx, pump); err != nil {
		t.Fatalf("Create: %v", err)
	}

	other := validActuator()
	other.ID = GenerateID()
	other.Name = "Second Pump"
	// Same pin as pump
	if err := repo.Create(ctx, other); !errors.Is(err, ErrPinInUse) {
		t.Errorf("duplicate pin: got %v, want ErrPinInUse", err)
	}
}

func TestSQLiteRepositoryOptionalFields(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	freq := 490
	power := 80
	pump := validActuator()
	pump.PWMFrequency = &freq
	pump.MaxPower = &power
	pump.DefaultValue = 10

	if err := repo.Create(ctx, pump); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByID(ctx, pump.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.PWMFrequency == nil || *got.PWMFrequency != freq {
		t.Errorf("PWMFrequency not round-tripped: %v", got.PWMFrequency)
	}
	if got.MaxPower == nil || *got.MaxPower != power {
		t.Errorf("MaxPower not round-tripped: %v", got.MaxPower)
	}
	if got.DefaultValue != 10 {
		t.Errorf("DefaultValue = %v, want 10", got.DefaultValue)
	}
}
