package telemetry

import "errors"

// Domain errors for the telemetry package.
var (
	// ErrReadingNotFound is returned when no reading matches a query.
	ErrReadingNotFound = errors.New("telemetry: reading not found")
)
