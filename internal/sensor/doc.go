// Package sensor models configured measurement channels and their
// threshold and calibration rules.
//
// # Key Types
//
//   - Sensor: a device's measurement channel (kind, unit, thresholds, calibration)
//   - Calibration: linear correction a*raw + b, identity by default
//   - FieldMap: payload field name to canonical kind resolution
//   - Violation: one threshold breach, ready for alert dispatch
//
// # Threshold Semantics
//
// Comparisons are strict. A calibrated value equal to a boundary never
// fires. Minimum and maximum checks are independent, so both can fire
// for a single value when a sensor is configured with min above max.
package sensor
