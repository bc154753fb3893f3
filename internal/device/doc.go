// Package device provides the actuator catalog and runtime state store for
// FishControl Core.
//
// The catalog is the static list of actuators wired to the embedded
// controller (pumps and valves, each with a pin and a drive mode). It is
// persisted in SQLite and cached in memory by the Registry. The running
// core treats the catalog as read-only: catalog writes arrive only through
// the control plane and re-seed the StateStore.
//
// The StateStore is the authoritative in-memory record of each actuator's
// last commanded value, online flag, and short-lived advisory lock. Every
// device-state mutation in the process funnels through it.
//
// # Key Types
//
//   - Actuator: A catalog entry describing one physical device
//   - Type: What the actuator is (pump, valve)
//   - Mode: How it is driven (pwm, digital)
//   - State: The runtime state of one actuator
//
// # Usage
//
//	// Create repository and registry
//	repo := device.NewSQLiteRepository(db)
//	registry := device.NewRegistry(repo)
//	registry.SetLogger(log)
//
//	// Load actuators into cache on startup
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	// Seed the runtime state store from the catalog
//	actuators, _ := registry.ListActuators(ctx)
//	store := device.NewStateStore(device.StateStoreConfig{LockTTL: 50 * time.Millisecond})
//	store.Seed(actuators)
//
//	// Apply an accepted command
//	store.ApplyCommand("pump1", 50, 2*time.Second)
//
// # Thread Safety
//
// The Registry and StateStore are safe for concurrent use. All operations
// are protected by read-write mutexes. The Repository implementation must
// also be thread-safe.
package device
