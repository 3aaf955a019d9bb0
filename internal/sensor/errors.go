package sensor

import "errors"

// Domain errors for the sensor package.
var (
	// ErrSensorNotFound is returned when a sensor ID does not exist.
	ErrSensorNotFound = errors.New("sensor: not found")

	// ErrSensorExists is returned when creating a duplicate device/kind pair.
	ErrSensorExists = errors.New("sensor: already exists")

	// ErrUnknownKind is returned when a measurement kind is not canonical.
	ErrUnknownKind = errors.New("sensor: unknown measurement kind")
)
