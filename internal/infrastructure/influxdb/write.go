package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/astromon/skywatch-core/internal/device"
	"github.com/astromon/skywatch-core/internal/telemetry"
)

// WriteReading mirrors a sensor reading to InfluxDB.
//
// The write is non-blocking; data is batched and sent asynchronously.
// SQLite remains the source of truth, so a failed or dropped mirror
// write never affects ingest.
//
// Parameters:
//   - reading: The reading to mirror; promoted columns and extra fields
//     are flattened into a single "sensor_readings" point
func (c *Client) WriteReading(reading *telemetry.Reading) {
	if !c.IsConnected() || reading == nil {
		return
	}

	fields := map[string]interface{}{}
	if reading.Temperature != nil {
		fields["temperature"] = *reading.Temperature
	}
	if reading.Humidity != nil {
		fields["humidity"] = *reading.Humidity
	}
	if reading.Pressure != nil {
		fields["pressure"] = *reading.Pressure
	}
	if reading.Battery != nil {
		fields["battery"] = *reading.Battery
	}
	for name, value := range reading.Fields {
		fields[name] = value
	}
	if len(fields) == 0 {
		return
	}

	point := write.NewPoint(
		"sensor_readings",
		map[string]string{
			"device_id": reading.DeviceID,
		},
		fields,
		reading.RecordedAt,
	)

	c.writeAPI.WritePoint(point)
}

// WriteStatus mirrors a device health report to InfluxDB.
//
// Parameters:
//   - report: The status report; nil metrics are omitted from the point
func (c *Client) WriteStatus(report *device.StatusReport) {
	if !c.IsConnected() || report == nil {
		return
	}

	fields := map[string]interface{}{}
	if report.BatteryLevel != nil {
		fields["battery_level"] = *report.BatteryLevel
	}
	if report.WiFiRSSI != nil {
		fields["wifi_rssi"] = *report.WiFiRSSI
	}
	if report.FreeHeap != nil {
		fields["free_heap"] = *report.FreeHeap
	}
	if report.Uptime != nil {
		fields["uptime"] = *report.Uptime
	}
	if len(fields) == 0 {
		return
	}

	tags := map[string]string{
		"device_id": report.DeviceID,
	}
	if report.Status != "" {
		tags["status"] = report.Status
	}
	if report.FirmwareVersion != "" {
		tags["firmware"] = report.FirmwareVersion
	}

	point := write.NewPoint(
		"device_status",
		tags,
		fields,
		report.ReportedAt,
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
