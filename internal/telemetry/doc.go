// Package telemetry stores and queries device readings.
//
// A Reading keeps the full calibrated field map as JSON alongside
// promoted columns for the measurements queried most (temperature,
// humidity, pressure, battery). Timestamps are stored as RFC 3339 UTC
// strings, so lexical ordering in SQL matches chronological ordering.
package telemetry
