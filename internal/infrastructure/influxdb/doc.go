// Package influxdb provides InfluxDB connectivity for FishControl.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, point writing, and health monitoring.
//
// # Purpose
//
// This package records tank telemetry for later analysis:
//   - device state changes (what each actuator was doing, and when)
//   - command outcomes (executed or failed, with value and duration)
//
// Telemetry is write-only and optional: the runtime never reads it
// back, and the conflict window works off the in-memory history.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteDeviceState("pump1", 75, true)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes; batch
// errors surface via the SetOnError callback.
package influxdb
