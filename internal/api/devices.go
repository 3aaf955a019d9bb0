package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/astromon/skywatch-core/internal/device"
	"github.com/astromon/skywatch-core/internal/telemetry"
)

// Readings query defaults and caps.
const (
	defaultReadingsHours = 24
	maxReadingsHours     = 24 * 30
	maxReadingsLimit     = 1000
)

// handleListDevices returns all registered devices.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.devices.List(r.Context())
	if err != nil {
		s.logger.Error("listing devices failed", "error", err)
		writeInternalError(w, "failed to list devices")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	d, err := s.devices.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("loading device failed", "device_id", id, "error", err)
		writeInternalError(w, "failed to load device")
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// handleDeviceReadings returns a device's recent readings, newest
// first. The window defaults to 24 hours and is set with ?hours=.
func (s *Server) handleDeviceReadings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	hours := defaultReadingsHours
	if raw := r.URL.Query().Get("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeBadRequest(w, "hours must be a positive integer")
			return
		}
		hours = parsed
	}
	if hours > maxReadingsHours {
		hours = maxReadingsHours
	}

	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	readings, err := s.readings.ListByDevice(r.Context(), id, since, maxReadingsLimit)
	if err != nil {
		s.logger.Error("listing readings failed", "device_id", id, "error", err)
		writeInternalError(w, "failed to list readings")
		return
	}
	if readings == nil {
		readings = []telemetry.Reading{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": id,
		"hours":     hours,
		"readings":  readings,
		"count":     len(readings),
	})
}

// handleDeviceStatus returns a device's most recent health report.
func (s *Server) handleDeviceStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	report, err := s.devices.LatestStatus(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "no status reports for device")
			return
		}
		s.logger.Error("loading device status failed", "device_id", id, "error", err)
		writeInternalError(w, "failed to load device status")
		return
	}

	writeJSON(w, http.StatusOK, report)
}
