package sensor

import "testing"

func f(v float64) *float64 { return &v }

func TestEvaluateThresholds(t *testing.T) {
	tests := []struct {
		name      string
		min       *float64
		max       *float64
		value     float64
		wantTypes []ViolationType
	}{
		{
			name:  "within range",
			min:   f(10),
			max:   f(30),
			value: 20,
		},
		{
			name:      "below minimum",
			min:       f(10),
			max:       f(30),
			value:     5,
			wantTypes: []ViolationType{ViolationLow},
		},
		{
			name:      "above maximum",
			min:       f(10),
			max:       f(30),
			value:     35,
			wantTypes: []ViolationType{ViolationHigh},
		},
		{
			name:  "equal to minimum does not fire",
			min:   f(10),
			max:   f(30),
			value: 10,
		},
		{
			name:  "equal to maximum does not fire",
			min:   f(10),
			max:   f(30),
			value: 30,
		},
		{
			name:  "no thresholds configured",
			value: -273.15,
		},
		{
			name:      "only min configured",
			min:       f(0),
			value:     -1,
			wantTypes: []ViolationType{ViolationLow},
		},
		{
			name:      "only max configured",
			max:       f(100),
			value:     101,
			wantTypes: []ViolationType{ViolationHigh},
		},
		{
			name:      "inverted thresholds fire both",
			min:       f(30),
			max:       f(10),
			value:     20,
			wantTypes: []ViolationType{ViolationLow, ViolationHigh},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Sensor{
				ID:           7,
				DeviceID:     "a4c9f0d2-1111-4222-8333-444455556666",
				Kind:         KindTemperature,
				Unit:         "C",
				MinThreshold: tt.min,
				MaxThreshold: tt.max,
			}

			got := EvaluateThresholds(s, "station-north", tt.value)
			if len(got) != len(tt.wantTypes) {
				t.Fatalf("got %d violations, want %d: %+v", len(got), len(tt.wantTypes), got)
			}
			for i, v := range got {
				if v.Type != tt.wantTypes[i] {
					t.Errorf("violation[%d].Type = %q, want %q", i, v.Type, tt.wantTypes[i])
				}
				if v.Value != tt.value {
					t.Errorf("violation[%d].Value = %v, want %v", i, v.Value, tt.value)
				}
				if v.Message == "" {
					t.Errorf("violation[%d] has empty message", i)
				}
			}
		})
	}
}

func TestCalibration(t *testing.T) {
	tests := []struct {
		name string
		c    Calibration
		raw  float64
		want float64
	}{
		{"identity", DefaultCalibration(), 21.5, 21.5},
		{"gain only", Calibration{A: 2, B: 0}, 10, 20},
		{"offset only", Calibration{A: 1, B: -0.5}, 10, 9.5},
		{"gain and offset", Calibration{A: 1.02, B: 0.3}, 25, 25.8},
		{"zero gain flattens", Calibration{A: 0, B: 4}, 99, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.c.Apply(tt.raw)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Apply(%v) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}
