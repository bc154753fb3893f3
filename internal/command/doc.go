// Package command implements the conflict-aware command pipeline.
//
// Every abstract action headed for the hardware passes through the same
// gate: the Detector checks the device's advisory lock, the per-device
// conflict window, an ordered list of safety rules, and finally basic
// logic checks (unknown device, offline device, redundant value). The
// Dispatcher validates command shape, runs the Detector, locks the
// device, maps the command to wire form, forwards it to the transport,
// applies the outcome to the state store, and emits an event.
//
// Accepted commands are recorded into a bounded per-device history which
// backs the conflict window and keeps a short execution audit trail in
// memory. History is not persisted across restarts.
package command
