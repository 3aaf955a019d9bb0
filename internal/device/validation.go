package device

import (
	"strings"

	"github.com/google/uuid"
)

// canonicalIDLength is the dashed 8-4-4-4-12 hex form. uuid.Parse also
// accepts undashed, braced, and urn-prefixed inputs; those never appear
// in well-formed topics and are rejected.
const canonicalIDLength = 36

// UnprovisionedID is the placeholder device ID firmware publishes with
// before it has been assigned a real UUID. Messages carrying it are
// rejected rather than auto-provisioned.
const UnprovisionedID = "unknown-device"

// ValidateID checks that a device ID extracted from an MQTT topic is a
// canonical dashed version 4 UUID and not the unprovisioned placeholder.
//
// Returns:
//   - ErrUnprovisionedDevice: ID is the firmware placeholder
//   - ErrInvalidDeviceID: ID is not a canonical dashed v4 UUID
//   - nil: ID is acceptable
func ValidateID(id string) error {
	if id == UnprovisionedID {
		return ErrUnprovisionedDevice
	}
	if len(id) != canonicalIDLength {
		return ErrInvalidDeviceID
	}

	u, err := uuid.Parse(id)
	if err != nil || u.Version() != 4 || u.Variant() != uuid.RFC4122 {
		return ErrInvalidDeviceID
	}

	// Round-trip to pin dash positions. Parse tolerates braced and
	// urn-prefixed inputs, but those never survive the length check,
	// so this catches only misplaced dashes.
	if !strings.EqualFold(id, u.String()) {
		return ErrInvalidDeviceID
	}

	return nil
}
