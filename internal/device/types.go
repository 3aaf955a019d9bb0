package device

import "time"

// Status represents the liveness state of a device.
type Status string

// Device liveness states.
const (
	// StatusOnline indicates the device reported telemetry recently.
	StatusOnline Status = "online"

	// StatusOffline indicates the device has gone quiet past the
	// staleness window, or has never reported.
	StatusOffline Status = "offline"
)

// Device represents a field station publishing telemetry over MQTT.
// This matches the database schema in migrations/20260301_100000_devices_and_sensors.up.sql.
type Device struct {
	// ID is the device UUID, assigned at provisioning time and used
	// as the second segment of all MQTT topics the device publishes on.
	ID string `json:"id"`

	Name     string `json:"name"`
	Location string `json:"location"`

	// Status is maintained by the ingest path (online on every message)
	// and the liveness sweep (transitioned in both directions from
	// recent reading activity).
	Status Status `json:"status"`

	// Battery is the last battery level reported on the status path,
	// nil until the device has reported one.
	Battery *float64 `json:"battery,omitempty"`

	// LastSeen is the time of the most recent message from this device,
	// nil if the device has never reported.
	LastSeen *time.Time `json:"last_seen,omitempty"`

	FirmwareVersion string `json:"firmware_version,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusReport is a device health snapshot extracted from a status
// message (battery, signal strength, memory, update state).
type StatusReport struct {
	ID       int64  `json:"id"`
	DeviceID string `json:"device_id"`

	// Status is the state string the device reported, "online" when
	// the payload carried none.
	Status string `json:"status"`

	BatteryLevel *float64 `json:"battery_level,omitempty"`
	WiFiRSSI     *float64 `json:"wifi_rssi,omitempty"`
	FreeHeap     *float64 `json:"free_heap,omitempty"`
	Uptime       *float64 `json:"uptime,omitempty"`

	FirmwareVersion string `json:"firmware_version,omitempty"`

	// OTAUpdate marks a snapshot taken while the device was applying
	// a firmware update.
	OTAUpdate bool `json:"ota_update"`

	ReportedAt time.Time `json:"reported_at"`
}
