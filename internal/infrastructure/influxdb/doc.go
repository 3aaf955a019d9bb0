// Package influxdb provides time-series mirroring for Skywatch Core.
//
// It wraps the official influxdb-client-go v2 library with Skywatch-specific
// patterns for connection management, telemetry mirroring, and health
// monitoring.
//
// # Purpose
//
// SQLite is the source of truth for all telemetry; this package mirrors
// accepted readings and device status reports into InfluxDB for long-term
// retention and dashboarding. The mirror is strictly best-effort: a broken
// or disabled InfluxDB connection never blocks or fails ingest.
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "skywatch",
//	    Bucket: "telemetry",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteReading(reading)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a
// callback. Connection and health check errors are returned directly.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size,
// flush_interval). This reduces network overhead for high-frequency
// telemetry data.
package influxdb
