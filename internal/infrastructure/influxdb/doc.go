// Package influxdb records Synexa run telemetry in InfluxDB v2.
//
// Two measurements are written:
//   - routine_runs: one point per routine execution (status, step counts, duration)
//   - discovery_scans: one point per network discovery (device counts, duration)
//
// Writes are non-blocking and batched by the official client; asynchronous
// failures are delivered to the callback set with SetOnError.
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
package influxdb
