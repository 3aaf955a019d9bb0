package sensor

import "strconv"

// FieldMap maps payload field names to canonical measurement kinds.
//
// Device firmware is not perfectly consistent about field naming, so
// the map carries the canonical names plus known aliases. Resolution
// happens once per message against this table rather than by substring
// matching on sensor names.
type FieldMap map[string]Kind

// DefaultFieldMap returns the built-in field name table: every
// canonical kind mapped to itself plus firmware aliases.
func DefaultFieldMap() FieldMap {
	fm := make(FieldMap, len(Kinds)+4)
	for _, k := range Kinds {
		fm[string(k)] = k
	}

	// Aliases observed in deployed firmware.
	fm["temp"] = KindTemperature
	fm["hum"] = KindHumidity
	fm["waterLevel"] = KindWaterLevel
	fm["windSpeed"] = KindWindSpeed
	fm["windDirection"] = KindWindDirection

	return fm
}

// Resolve returns the canonical kind for a payload field name.
func (fm FieldMap) Resolve(field string) (Kind, bool) {
	k, ok := fm[field]
	return k, ok
}

// Measurements extracts the measurement fields from a decoded payload,
// keyed by canonical kind. Non-numeric values and unrecognised fields
// are ignored. When a canonical name and an alias both appear, the
// canonical name wins.
func (fm FieldMap) Measurements(payload map[string]any) map[Kind]float64 {
	out := make(map[Kind]float64)
	for field, raw := range payload {
		kind, ok := fm[field]
		if !ok {
			continue
		}
		v, ok := toFloat(raw)
		if !ok {
			continue
		}
		if _, exists := out[kind]; exists && field != string(kind) {
			continue
		}
		out[kind] = v
	}
	return out
}

// toFloat coerces JSON numbers. encoding/json decodes all numbers to
// float64, but firmware occasionally quotes numeric fields.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// ByKind indexes a device's sensors by kind for per-message resolution.
func ByKind(sensors []Sensor) map[Kind]Sensor {
	idx := make(map[Kind]Sensor, len(sensors))
	for _, s := range sensors {
		idx[s.Kind] = s
	}
	return idx
}
