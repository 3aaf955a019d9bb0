package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/astromon/skywatch-core/internal/device"
	"github.com/astromon/skywatch-core/internal/ingest"
)

// handleIngest accepts a telemetry payload over HTTP.
//
// The body is a flat JSON object carrying device_id plus measurement
// and/or health fields, the same shape devices publish over MQTT.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.ingest == nil {
		writeInternalError(w, "ingest pipeline not configured")
		return
	}

	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	deviceID, _ := fields["device_id"].(string) //nolint:errcheck // empty string rejected below
	if deviceID == "" {
		writeBadRequest(w, "device_id is required")
		return
	}
	if err := device.ValidateID(deviceID); err != nil {
		writeBadRequest(w, "device_id must be a canonical v4 UUID")
		return
	}
	delete(fields, "device_id")

	result, err := s.ingest.Process(r.Context(), deviceID, fields)
	if err != nil {
		if errors.Is(err, ingest.ErrEmptyPayload) {
			writeBadRequest(w, "payload contains no recognised measurement or status fields")
			return
		}
		s.logger.Error("http ingest failed", "device_id", deviceID, "error", err)
		writeInternalError(w, "failed to store telemetry")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
