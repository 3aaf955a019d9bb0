package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when creating a device with an ID that already exists.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrInvalidDeviceID is returned when a device ID is not a valid UUID.
	ErrInvalidDeviceID = errors.New("device: invalid device id")

	// ErrUnprovisionedDevice is returned when a device reports with the
	// placeholder ID used by firmware before provisioning completes.
	ErrUnprovisionedDevice = errors.New("device: unprovisioned device id")
)
