// Package ingest routes decoded device messages into storage,
// threshold evaluation and delivery.
//
// # Message Flow
//
// The transport layer delivers raw payloads to Handler.HandleMessage.
// Payloads that fail to parse as JSON are dropped with a debug log;
// field firmware produces enough malformed traffic that a parse
// failure is routine.
//
// Classification is field based. A payload containing any canonical
// measurement field takes the reading path: per-field calibration via
// the device's configured sensors, insertion into SQLite with the full
// raw and calibrated field map, a best-effort InfluxDB mirror write,
// and asynchronous threshold evaluation feeding the alert dispatcher.
// A payload containing health fields (status, battery, wifi_rssi,
// free_heap) takes the status path: a status record insert, placeholder
// device provisioning on first contact, a live feed broadcast and
// advisory alert checks. One payload may take both paths.
//
// # Blocking Guarantees
//
// Threshold evaluation and alert delivery run in detached goroutines
// with their own timeout. Ingest latency is bounded by the SQLite
// writes alone. Wait drains outstanding goroutines at shutdown.
package ingest
