// Package execution runs tasks against the device fleet.
//
// The scheduler walks one task at a time on a fixed tick: direct
// actions fire when their step becomes current, delay subtrees fire
// when their end time passes, and parallel loops step through their
// sub-steps on their own cadence. Each tick's collected actions are
// coalesced per device and handed to the command dispatcher as a
// single batch; the scheduler itself never talks to the transport.
//
// A watchdog bounds every run: the caller's estimate, or a heuristic
// derived from the task's shape, plus a fixed grace period. When it
// fires the run is force-stopped and reported as timed out.
package execution
