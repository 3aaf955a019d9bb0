package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/astromon/skywatch-core/internal/alert"
	"github.com/astromon/skywatch-core/internal/device"
	"github.com/astromon/skywatch-core/internal/infrastructure/logging"
	"github.com/astromon/skywatch-core/internal/sensor"
	"github.com/astromon/skywatch-core/internal/telemetry"
)

// Message kinds as they appear in the last topic segment.
const (
	KindData     = "data"
	KindStatus   = "status"
	KindCommands = "commands"
)

// evaluateTimeout bounds the detached threshold evaluation goroutine.
const evaluateTimeout = 30 * time.Second

// ErrEmptyPayload indicates a message carried no recognisable
// measurement or status fields.
var ErrEmptyPayload = errors.New("ingest: no recognised fields in payload")

// Mirror receives best-effort copies of accepted telemetry.
// A nil Mirror disables mirroring.
type Mirror interface {
	WriteReading(reading *telemetry.Reading)
	WriteStatus(report *device.StatusReport)
}

// Broadcaster pushes live events to connected clients.
// A nil Broadcaster disables the live feed.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// StatusEvent is the payload broadcast on the device.status channel
// whenever a device reports health.
type StatusEvent struct {
	DeviceID     string   `json:"device_id"`
	Status       string   `json:"status"`
	BatteryLevel *float64 `json:"battery_level,omitempty"`
	WiFiRSSI     *float64 `json:"wifi_rssi,omitempty"`
	FreeHeap     *float64 `json:"free_heap,omitempty"`
	ReportedAt   string   `json:"reported_at"`
}

// Result describes what a processed message produced and where the
// data was forwarded.
type Result struct {
	Reading          *telemetry.Reading   `json:"reading,omitempty"`
	Status           *device.StatusReport `json:"status,omitempty"`
	RecognizedFields []string             `json:"recognized_fields"`
	ForwardedTo      []string             `json:"forwarded_to"`
}

// Handler routes decoded device messages into storage, evaluation and
// delivery. It implements the transport's MessageSink.
//
// Classification is field based, not topic based: a single payload may
// carry both measurements and health fields, in which case both paths
// run for the one message.
type Handler struct {
	devices    device.Repository
	sensors    sensor.Repository
	readings   telemetry.Repository
	dispatcher *alert.Dispatcher
	fields     sensor.FieldMap
	mirror     Mirror
	feed       Broadcaster
	logger     *logging.Logger

	// wg tracks detached evaluation goroutines so shutdown can drain them.
	wg sync.WaitGroup
}

// NewHandler creates a message handler.
//
// Parameters:
//   - devices, sensors, readings: backing repositories
//   - dispatcher: alert fan-out; may be nil to disable alerting
//   - mirror: time-series mirror; may be nil
//   - feed: live status broadcaster; may be nil
//   - logger: structured logger
func NewHandler(
	devices device.Repository,
	sensors sensor.Repository,
	readings telemetry.Repository,
	dispatcher *alert.Dispatcher,
	mirror Mirror,
	feed Broadcaster,
	logger *logging.Logger,
) *Handler {
	return &Handler{
		devices:    devices,
		sensors:    sensors,
		readings:   readings,
		dispatcher: dispatcher,
		fields:     sensor.DefaultFieldMap(),
		mirror:     mirror,
		feed:       feed,
		logger:     logger.With("component", "ingest"),
	}
}

// HandleMessage is the transport entry point.
//
// Malformed JSON is logged at debug level and dropped; device firmware
// produces enough noise that a parse failure is routine, not an error.
// Command acknowledgements are logged and otherwise ignored.
func (h *Handler) HandleMessage(ctx context.Context, deviceID, kind string, payload []byte) {
	if kind == KindCommands {
		h.logger.Debug("command message received", "device_id", deviceID, "bytes", len(payload))
		return
	}

	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		h.logger.Debug("dropping unparseable payload",
			"device_id", deviceID,
			"kind", kind,
			"error", err)
		return
	}

	if _, err := h.Process(ctx, deviceID, fields); err != nil && !errors.Is(err, ErrEmptyPayload) {
		h.logger.Error("message processing failed",
			"device_id", deviceID,
			"kind", kind,
			"error", err)
	}
}

// Process classifies a decoded payload and runs the reading and/or
// status paths. It is shared by the MQTT sink and the HTTP ingest
// endpoint.
//
// Returns:
//   - *Result: what was stored and where it was forwarded
//   - error: ErrEmptyPayload when nothing was recognised, or the first
//     storage failure
func (h *Handler) Process(ctx context.Context, deviceID string, fields map[string]any) (*Result, error) {
	measurements := h.fields.Measurements(fields)
	statusFields := hasStatusFields(fields)

	if len(measurements) == 0 && !statusFields {
		return nil, ErrEmptyPayload
	}

	result := &Result{
		RecognizedFields: recognizedNames(measurements),
		ForwardedTo:      []string{"sqlite"},
	}
	if h.mirror != nil {
		result.ForwardedTo = append(result.ForwardedTo, "influxdb")
	}
	if h.dispatcher != nil {
		result.ForwardedTo = append(result.ForwardedTo, "alerts")
	}

	if len(measurements) > 0 {
		reading, err := h.processReading(ctx, deviceID, fields, measurements)
		if err != nil {
			return nil, err
		}
		result.Reading = reading
	}

	if statusFields {
		report, err := h.processStatus(ctx, deviceID, fields)
		if err != nil {
			return nil, err
		}
		result.Status = report
	}

	return result, nil
}

// processReading calibrates, stores and forwards a measurement payload.
func (h *Handler) processReading(ctx context.Context, deviceID string, fields map[string]any, measurements map[sensor.Kind]float64) (*telemetry.Reading, error) {
	configured, err := h.sensors.ListByDevice(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("resolving sensors for %s: %w", deviceID, err)
	}
	byKind := sensor.ByKind(configured)

	reading := &telemetry.Reading{
		DeviceID:   deviceID,
		Fields:     make(map[string]float64, len(measurements)*2),
		RecordedAt: recordedAt(fields),
	}

	calibrated := make(map[sensor.Kind]float64, len(measurements))
	for kind, raw := range measurements {
		cal := sensor.DefaultCalibration()
		if s, ok := byKind[kind]; ok {
			cal = s.Calibration
		}
		value := cal.Apply(raw)
		calibrated[kind] = value

		reading.Fields[string(kind)] = value
		reading.Fields[string(kind)+"_raw"] = raw

		switch kind {
		case sensor.KindTemperature:
			reading.Temperature = &value
		case sensor.KindHumidity:
			reading.Humidity = &value
		case sensor.KindPressure:
			reading.Pressure = &value
		case sensor.KindBattery:
			reading.Battery = &value
		}
	}

	if err := h.readings.Insert(ctx, reading); err != nil {
		return nil, fmt.Errorf("storing reading for %s: %w", deviceID, err)
	}

	deviceName := deviceID
	if d, err := h.devices.GetByID(ctx, deviceID); err == nil {
		deviceName = d.Name
	}

	if err := h.devices.MarkSeen(ctx, deviceID, reading.RecordedAt); err != nil && !errors.Is(err, device.ErrDeviceNotFound) {
		h.logger.Warn("marking device seen failed", "device_id", deviceID, "error", err)
	}

	if h.mirror != nil {
		h.mirror.WriteReading(reading)
	}

	h.evaluateAsync(deviceName, byKind, calibrated)

	return reading, nil
}

// evaluateAsync runs threshold evaluation off the ingest path. Storage
// latency from alert persistence and Telegram delivery must never slow
// message intake.
func (h *Handler) evaluateAsync(deviceName string, byKind map[sensor.Kind]sensor.Sensor, calibrated map[sensor.Kind]float64) {
	if h.dispatcher == nil {
		return
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), evaluateTimeout)
		defer cancel()

		var events []*alert.Event
		for kind, value := range calibrated {
			s, ok := byKind[kind]
			if !ok {
				continue
			}
			for _, v := range sensor.EvaluateThresholds(s, deviceName, value) {
				events = append(events, alert.FromViolation(v))
			}
		}
		if len(events) > 0 {
			h.dispatcher.DispatchAll(ctx, events)
		}
	}()
}

// processStatus stores a health report, provisioning a placeholder
// device row on first contact.
func (h *Handler) processStatus(ctx context.Context, deviceID string, fields map[string]any) (*device.StatusReport, error) {
	report := &device.StatusReport{
		DeviceID:   deviceID,
		Status:     string(device.StatusOnline),
		ReportedAt: recordedAt(fields),
	}
	if s, ok := fields["status"].(string); ok && s != "" {
		report.Status = s
	}
	if v, ok := fields["ota_update"].(bool); ok {
		report.OTAUpdate = v
	}
	if v, ok := numericField(fields, "battery"); ok {
		report.BatteryLevel = &v
	}
	if v, ok := numericField(fields, "wifi_rssi"); ok {
		report.WiFiRSSI = &v
	}
	if v, ok := numericField(fields, "free_heap"); ok {
		report.FreeHeap = &v
	}
	if v, ok := numericField(fields, "uptime"); ok {
		report.Uptime = &v
	}
	if fw, ok := fields["firmware_version"].(string); ok {
		report.FirmwareVersion = fw
	}

	deviceName := deviceID
	d, err := h.devices.GetByID(ctx, deviceID)
	switch {
	case err == nil:
		deviceName = d.Name
	case errors.Is(err, device.ErrDeviceNotFound):
		placeholder := &device.Device{
			ID:              deviceID,
			Name:            "Unprovisioned station",
			Status:          device.StatusOnline,
			FirmwareVersion: report.FirmwareVersion,
		}
		if createErr := h.devices.Create(ctx, placeholder); createErr != nil && !errors.Is(createErr, device.ErrDeviceExists) {
			return nil, fmt.Errorf("provisioning placeholder device %s: %w", deviceID, createErr)
		}
		deviceName = placeholder.Name
		h.logger.Info("auto-provisioned device from status report", "device_id", deviceID)
	default:
		return nil, fmt.Errorf("loading device %s: %w", deviceID, err)
	}

	if err := h.devices.RecordStatus(ctx, report); err != nil {
		return nil, fmt.Errorf("storing status for %s: %w", deviceID, err)
	}

	// The registry row only distinguishes online and offline; richer
	// reported states ("updating" and the like) live in the snapshot.
	rowStatus := device.StatusOnline
	if report.Status == string(device.StatusOffline) {
		rowStatus = device.StatusOffline
	}
	if err := h.devices.MarkReported(ctx, deviceID, rowStatus, report.BatteryLevel, report.ReportedAt); err != nil {
		h.logger.Warn("updating device from status report failed", "device_id", deviceID, "error", err)
	}

	if h.mirror != nil {
		h.mirror.WriteStatus(report)
	}
	if h.feed != nil {
		h.feed.Broadcast("device.status", StatusEvent{
			DeviceID:     deviceID,
			Status:       report.Status,
			BatteryLevel: report.BatteryLevel,
			WiFiRSSI:     report.WiFiRSSI,
			FreeHeap:     report.FreeHeap,
			ReportedAt:   report.ReportedAt.UTC().Format(time.RFC3339),
		})
	}

	h.advisoriesAsync(deviceName, report)

	return report, nil
}

// advisoriesAsync delivers status-derived advisory alerts off the
// ingest path.
func (h *Handler) advisoriesAsync(deviceName string, report *device.StatusReport) {
	if h.dispatcher == nil {
		return
	}

	events := alert.Advisories(deviceName, report)
	if len(events) == 0 {
		return
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), evaluateTimeout)
		defer cancel()
		h.dispatcher.DispatchAll(ctx, events)
	}()
}

// Wait blocks until all detached evaluation goroutines have finished.
// Called during shutdown after the transport has stopped delivering.
func (h *Handler) Wait() {
	h.wg.Wait()
}

// hasStatusFields reports whether the payload carries device health
// fields. battery appears in both classifications: a battery-only
// payload is a measurement and a health signal at once.
func hasStatusFields(fields map[string]any) bool {
	for _, name := range []string{"status", "battery", "wifi_rssi", "free_heap"} {
		if _, ok := fields[name]; ok {
			return true
		}
	}
	return false
}

// numericField extracts a numeric payload field, tolerating quoted
// numbers from older firmware.
func numericField(fields map[string]any, name string) (float64, bool) {
	v, ok := fields[name]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// recordedAt honours a payload-provided RFC 3339 timestamp, falling
// back to the current time.
func recordedAt(fields map[string]any) time.Time {
	if raw, ok := fields["timestamp"].(string); ok {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}

// recognizedNames returns the canonical names of extracted
// measurements in stable order.
func recognizedNames(measurements map[sensor.Kind]float64) []string {
	names := make([]string, 0, len(measurements))
	for kind := range measurements {
		names = append(names, string(kind))
	}
	sort.Strings(names)
	return names
}
