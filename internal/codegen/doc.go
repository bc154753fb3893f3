// Package codegen generates the embedded controller sketch from the
// device catalog.
//
// The sketch targets an Arduino UNO R4 WiFi running as an access
// point: it serves the command batch endpoint the dispatcher posts to,
// answers status probes, sweeps timed actions for auto-off, and
// forwards its own logs to the core. Output is deterministic for a
// given catalog and options, so the download can be diffed against a
// previously flashed build.
package codegen
