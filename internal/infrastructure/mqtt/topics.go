package mqtt

import (
	"fmt"
	"strings"
)

// Topics builds and parses Skywatch MQTT topics for a configured root.
//
// Device topics use the flat scheme: {root}/devices/{deviceID}/{kind}
// where kind is one of data, status or commands. The root defaults to
// "iot" and is configurable per site.
type Topics struct {
	Root string
}

// NewTopics returns a topic builder for the given root, defaulting to
// "iot" when empty.
func NewTopics(root string) Topics {
	if root == "" {
		root = "iot"
	}
	return Topics{Root: root}
}

// DeviceData returns the telemetry topic for a device.
//
// Example: iot/devices/a4c9f0d2-.../data
func (t Topics) DeviceData(deviceID string) string {
	return fmt.Sprintf("%s/devices/%s/data", t.Root, deviceID)
}

// DeviceStatus returns the health report topic for a device.
func (t Topics) DeviceStatus(deviceID string) string {
	return fmt.Sprintf("%s/devices/%s/status", t.Root, deviceID)
}

// DeviceCommands returns the command topic for a device.
func (t Topics) DeviceCommands(deviceID string) string {
	return fmt.Sprintf("%s/devices/%s/commands", t.Root, deviceID)
}

// DeviceWildcard returns the single-level wildcard subscription for a
// message kind across all devices.
//
// Example: iot/devices/+/data
func (t Topics) DeviceWildcard(kind string) string {
	return fmt.Sprintf("%s/devices/+/%s", t.Root, kind)
}

// SystemStatus returns the topic carrying the service's own
// online/offline announcements and Last Will.
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/skywatch/status", t.Root)
}

// ParseDeviceTopic extracts the device ID and message kind from a
// received topic.
//
// Parameters:
//   - topic: The full topic as delivered by the broker
//
// Returns:
//   - deviceID: The third topic segment
//   - kind: The fourth topic segment (data, status or commands)
//   - error: ErrInvalidTopic when the shape does not match
func (t Topics) ParseDeviceTopic(topic string) (deviceID, kind string, err error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != t.Root || parts[1] != "devices" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	if parts[2] == "" || parts[3] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	return parts[2], parts[3], nil
}
