package telemetry

import "time"

// Reading is one stored telemetry record from a device.
//
// The full calibrated field map is persisted as JSON; the measurements
// dashboards query most are additionally promoted to their own columns.
// This matches the database schema in migrations/20260301_110000_telemetry.up.sql.
type Reading struct {
	ID       int64  `json:"id"`
	DeviceID string `json:"device_id"`

	// Promoted columns.
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
	Pressure    *float64 `json:"pressure,omitempty"`
	Battery     *float64 `json:"battery,omitempty"`

	// Fields holds every calibrated measurement keyed by canonical kind,
	// including the promoted ones.
	Fields map[string]float64 `json:"fields"`

	// RecordedAt is the device-provided timestamp when the payload
	// carried one, otherwise ingest time. Always UTC.
	RecordedAt time.Time `json:"recorded_at"`
}
