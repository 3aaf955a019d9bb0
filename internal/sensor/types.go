package sensor

import "time"

// Kind identifies a canonical measurement type.
type Kind string

// Canonical measurement kinds. Payload fields carrying any of these
// names classify a message onto the reading path.
const (
	KindTemperature   Kind = "temperature"
	KindHumidity      Kind = "humidity"
	KindPressure      Kind = "pressure"
	KindBattery       Kind = "battery"
	KindWaterLevel    Kind = "water_level"
	KindRainfall      Kind = "rainfall"
	KindLight         Kind = "light"
	KindO2            Kind = "o2"
	KindCO2           Kind = "co2"
	KindPH            Kind = "ph"
	KindWindSpeed     Kind = "wind_speed"
	KindWindDirection Kind = "wind_direction"
)

// Kinds lists every canonical measurement kind.
var Kinds = []Kind{
	KindTemperature,
	KindHumidity,
	KindPressure,
	KindBattery,
	KindWaterLevel,
	KindRainfall,
	KindLight,
	KindO2,
	KindCO2,
	KindPH,
	KindWindSpeed,
	KindWindDirection,
}

// Calibration is the linear correction applied to raw sensor values.
// Calibrated = A*raw + B. The identity calibration is {A: 1, B: 0}.
type Calibration struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

// DefaultCalibration returns the identity calibration applied when a
// sensor has no explicit correction configured.
func DefaultCalibration() Calibration {
	return Calibration{A: 1, B: 0}
}

// Apply returns the calibrated value for a raw measurement.
func (c Calibration) Apply(raw float64) float64 {
	return c.A*raw + c.B
}

// Sensor is a configured measurement channel on a device: its kind,
// unit, calibration, and optional alert thresholds.
// This matches the database schema in migrations/20260301_100000_devices_and_sensors.up.sql.
type Sensor struct {
	ID       int64  `json:"id"`
	DeviceID string `json:"device_id"`
	Kind     Kind   `json:"kind"`
	Unit     string `json:"unit,omitempty"`

	// MinThreshold and MaxThreshold bound the calibrated value.
	// nil disables the corresponding check.
	MinThreshold *float64 `json:"min_threshold,omitempty"`
	MaxThreshold *float64 `json:"max_threshold,omitempty"`

	Calibration Calibration `json:"calibration"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ViolationType distinguishes threshold breach directions.
type ViolationType string

// Threshold breach directions.
const (
	ViolationLow  ViolationType = "low"
	ViolationHigh ViolationType = "high"
)

// Violation records a single threshold breach for one measurement.
type Violation struct {
	Type       ViolationType `json:"type"`
	SensorID   int64         `json:"sensor_id"`
	DeviceID   string        `json:"device_id"`
	Kind       Kind          `json:"kind"`
	Value      float64       `json:"value"`
	Threshold  float64       `json:"threshold"`
	Unit       string        `json:"unit"`
	Message    string        `json:"message"`
	DeviceName string        `json:"device_name,omitempty"`
}
