package alert

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/astromon/skywatch-core/internal/device"
	"github.com/astromon/skywatch-core/internal/sensor"
)

// EventType classifies an alert event.
type EventType string

// Alert event types.
const (
	// EventLow and EventHigh are threshold breaches.
	EventLow  EventType = "low"
	EventHigh EventType = "high"

	// EventAdvisory covers device health warnings (battery, signal, memory).
	EventAdvisory EventType = "advisory"
)

// Event is one persisted alert occurrence.
// This matches the database schema in migrations/20260301_120000_alerting.up.sql.
type Event struct {
	ID         string    `json:"id"`
	DeviceID   string    `json:"device_id"`
	SensorKind string    `json:"sensor_kind"`
	Type       EventType `json:"type"`
	Value      float64   `json:"value"`
	Threshold  *float64  `json:"threshold,omitempty"`
	Message    string    `json:"message"`

	// Delivered flips once at least one recipient accepted the message
	// (or there were no recipients to deliver to).
	Delivered bool `json:"delivered"`

	CreatedAt time.Time `json:"created_at"`
}

// Subscription is one Telegram chat receiving alert messages.
// A nil DeviceID subscribes the chat to every device.
type Subscription struct {
	ID        int64     `json:"id"`
	ChatID    string    `json:"chat_id"`
	DeviceID  *string   `json:"device_id,omitempty"`
	Label     string    `json:"label,omitempty"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

// FromViolation converts a threshold violation into a dispatchable event.
func FromViolation(v sensor.Violation) *Event {
	threshold := v.Threshold
	return &Event{
		ID:         uuid.NewString(),
		DeviceID:   v.DeviceID,
		SensorKind: string(v.Kind),
		Type:       EventType(v.Type),
		Value:      v.Value,
		Threshold:  &threshold,
		Message:    v.Message,
	}
}

// Advisory thresholds for device health reports.
const (
	batteryCritical = 10.0
	batteryWarning  = 20.0
	rssiWeak        = -80.0
	heapLow         = 10240.0
)

// Advisories derives health warnings from a device status report.
// A battery at or below 10% is critical; below 20% is a warning. Weak
// WiFi and low free heap each produce their own advisory.
func Advisories(deviceName string, report *device.StatusReport) []*Event {
	var events []*Event

	add := func(kind string, value float64, message string) {
		events = append(events, &Event{
			ID:         uuid.NewString(),
			DeviceID:   report.DeviceID,
			SensorKind: kind,
			Type:       EventAdvisory,
			Value:      value,
			Message:    message,
		})
	}

	if b := report.BatteryLevel; b != nil {
		switch {
		case *b <= batteryCritical:
			add("battery", *b, fmt.Sprintf("%s battery critical: %.0f%%", deviceName, *b))
		case *b < batteryWarning:
			add("battery", *b, fmt.Sprintf("%s battery low: %.0f%%", deviceName, *b))
		}
	}

	if r := report.WiFiRSSI; r != nil && *r < rssiWeak {
		add("wifi_rssi", *r, fmt.Sprintf("%s weak WiFi signal: %.0f dBm", deviceName, *r))
	}

	if h := report.FreeHeap; h != nil && *h < heapLow {
		add("free_heap", *h, fmt.Sprintf("%s low free memory: %.0f bytes", deviceName, *h))
	}

	return events
}
