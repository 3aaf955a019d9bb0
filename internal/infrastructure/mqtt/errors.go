package mqtt

import "errors"

// Domain-specific errors for MQTT operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when attempting operations on a disconnected client.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed is returned when a connection attempt fails.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrClosed is returned when the connector has been shut down.
	ErrClosed = errors.New("mqtt: connector closed")

	// ErrInvalidTopic is returned when a device topic does not match the
	// expected {root}/devices/{deviceID}/{kind} shape.
	ErrInvalidTopic = errors.New("mqtt: invalid device topic")

	// ErrPublishFailed is returned when a publish operation fails.
	ErrPublishFailed = errors.New("mqtt: publish failed")
)
