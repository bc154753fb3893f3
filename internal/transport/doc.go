// Package transport is the HTTP channel to the embedded controller.
//
// The controller runs a WiFi access point and a small HTTP server. The
// Client POSTs wire-format command batches to /api/commands and probes
// /api/status for liveness. The Monitor polls the status endpoint on a
// fixed cadence and flips device online flags through the state store.
// Discover sweeps the access point's subnet to locate a controller whose
// address is not known.
//
// Sends are fire-and-forget from the scheduler's point of view: failures
// are returned as errors to the dispatcher, never as faults that halt
// the caller.
package transport
