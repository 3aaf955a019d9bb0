// Package mqtt supervises the broker connection that carries device
// telemetry into Skywatch Core.
//
// # Connection Supervision
//
// A single Connector owns the paho client for the process lifetime.
// Paho's built-in retry machinery is disabled; instead every failure
// path funnels into one cancelable reconnect timer, with the retry
// delay chosen by failure class:
//
//   - clean connection close: 10s
//   - connect or protocol error: 15s
//   - panic recovered during setup: 30s
//
// Scheduling a retry cancels any retry already pending, so at most one
// attempt is ever queued no matter how many failure signals arrive.
// Retries continue forever; Close cancels the pending timer.
//
// Broker settings are re-read from a SettingsSource before every
// attempt. The SQLite-backed source consults the persisted
// protocol_settings row and falls back to config.yaml, so broker
// changes made at runtime apply on the next reconnect.
//
// # Topics
//
// Device traffic uses the flat scheme {root}/devices/{deviceID}/{kind}
// with kind one of data, status or commands. The device ID segment
// must be a canonical RFC 4122 version 4 UUID; messages on malformed
// topics or from invalid IDs are dropped with a warning before any
// storage work. Validated messages are handed to the injected
// MessageSink.
package mqtt
