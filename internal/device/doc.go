// Package device provides the device registry for Skywatch Core.
//
// A device is a field station (weather node, environmental probe) that
// publishes telemetry over MQTT. The registry tracks identity, location,
// and liveness for every known device.
//
// # Key Types
//
//   - Device: identity, location, and liveness state of a station
//   - StatusReport: a health snapshot (battery, RSSI, heap) from a status message
//   - Repository: persistence interface with a SQLite implementation
//
// # Liveness
//
// Device status is written from two directions:
//
//   - The ingest path marks a device online (and bumps LastSeen) on
//     every accepted message.
//   - The liveness sweep marks devices offline once LastSeen falls
//     outside the staleness window.
//
// # Validation
//
// Device IDs arrive embedded in MQTT topics and are validated with
// ValidateID before any database access: only version 4 UUIDs are
// accepted, and the firmware placeholder ID is rejected outright.
package device
