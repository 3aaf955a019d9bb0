package sensor

import "fmt"

// EvaluateThresholds checks a calibrated value against a sensor's
// configured thresholds.
//
// Comparisons are strict: a value exactly equal to a boundary does not
// fire. Both checks run independently, so a misconfigured sensor with
// min above max can produce a low and a high violation for the same
// value.
//
// Parameters:
//   - s: Sensor carrying the thresholds
//   - deviceName: Human-readable device name for alert messages
//   - value: Calibrated measurement value
//
// Returns:
//   - []Violation: Zero, one, or two violations
func EvaluateThresholds(s Sensor, deviceName string, value float64) []Violation {
	var violations []Violation

	if s.MinThreshold != nil && value < *s.MinThreshold {
		violations = append(violations, Violation{
			Type:       ViolationLow,
			SensorID:   s.ID,
			DeviceID:   s.DeviceID,
			Kind:       s.Kind,
			Value:      value,
			Threshold:  *s.MinThreshold,
			Unit:       s.Unit,
			DeviceName: deviceName,
			Message: fmt.Sprintf("%s %s below minimum: %.2f < %.2f %s",
				deviceName, s.Kind, value, *s.MinThreshold, s.Unit),
		})
	}

	if s.MaxThreshold != nil && value > *s.MaxThreshold {
		violations = append(violations, Violation{
			Type:       ViolationHigh,
			SensorID:   s.ID,
			DeviceID:   s.DeviceID,
			Kind:       s.Kind,
			Value:      value,
			Threshold:  *s.MaxThreshold,
			Unit:       s.Unit,
			DeviceName: deviceName,
			Message: fmt.Sprintf("%s %s above maximum: %.2f > %.2f %s",
				deviceName, s.Kind, value, *s.MaxThreshold, s.Unit),
		})
	}

	return violations
}
