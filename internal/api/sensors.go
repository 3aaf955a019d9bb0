package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/astromon/skywatch-core/internal/alert"
	"github.com/astromon/skywatch-core/internal/sensor"
)

// thresholdCheckRequest is the body for POST /sensors/threshold-check.
type thresholdCheckRequest struct {
	SensorID int64   `json:"sensorId"`
	Value    float64 `json:"value"`
}

// thresholdCheckResponse reports the violations a value would raise.
type thresholdCheckResponse struct {
	Alerts     []sensor.Violation `json:"alerts"`
	AlertCount int                `json:"alertCount"`
	Status     string             `json:"status"`
}

// handleThresholdCheck evaluates a value against a sensor's configured
// thresholds without storing anything.
func (s *Server) handleThresholdCheck(w http.ResponseWriter, r *http.Request) {
	var req thresholdCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.SensorID == 0 {
		writeBadRequest(w, "sensorId is required")
		return
	}

	sn, err := s.sensors.GetByID(r.Context(), req.SensorID)
	if err != nil {
		if errors.Is(err, sensor.ErrSensorNotFound) {
			writeNotFound(w, fmt.Sprintf("sensor %d not found", req.SensorID))
			return
		}
		s.logger.Error("loading sensor failed", "sensor_id", req.SensorID, "error", err)
		writeInternalError(w, "failed to load sensor")
		return
	}

	deviceName := sn.DeviceID
	if d, derr := s.devices.GetByID(r.Context(), sn.DeviceID); derr == nil {
		deviceName = d.Name
	}

	violations := sensor.EvaluateThresholds(*sn, deviceName, req.Value)

	status := "normal"
	if len(violations) > 0 {
		status = "alert"

		// A breach found here is recorded and fanned out the same way
		// as one detected on the ingest path.
		if s.dispatcher != nil {
			events := make([]*alert.Event, 0, len(violations))
			for _, v := range violations {
				events = append(events, alert.FromViolation(v))
			}
			s.dispatcher.DispatchAll(r.Context(), events)
		}
	}
	if violations == nil {
		violations = []sensor.Violation{}
	}

	writeJSON(w, http.StatusOK, thresholdCheckResponse{
		Alerts:     violations,
		AlertCount: len(violations),
		Status:     status,
	})
}

// calibrateRequest is the body for POST /sensors/calibrate.
type calibrateRequest struct {
	SensorID int64   `json:"sensorId"`
	RawValue float64 `json:"rawValue"`
}

// calibrateResponse carries the calibrated value and the formula used.
type calibrateResponse struct {
	CalibratedValue float64            `json:"calibratedValue"`
	Calibration     calibrationDetails `json:"calibration"`
}

type calibrationDetails struct {
	A       float64 `json:"a"`
	B       float64 `json:"b"`
	Formula string  `json:"formula"`
}

// handleCalibrate applies a sensor's linear calibration to a raw value.
func (s *Server) handleCalibrate(w http.ResponseWriter, r *http.Request) {
	var req calibrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.SensorID == 0 {
		writeBadRequest(w, "sensorId is required")
		return
	}

	sn, err := s.sensors.GetByID(r.Context(), req.SensorID)
	if err != nil {
		if errors.Is(err, sensor.ErrSensorNotFound) {
			writeNotFound(w, fmt.Sprintf("sensor %d not found", req.SensorID))
			return
		}
		s.logger.Error("loading sensor failed", "sensor_id", req.SensorID, "error", err)
		writeInternalError(w, "failed to load sensor")
		return
	}

	cal := sn.Calibration
	writeJSON(w, http.StatusOK, calibrateResponse{
		CalibratedValue: cal.Apply(req.RawValue),
		Calibration: calibrationDetails{
			A:       cal.A,
			B:       cal.B,
			Formula: fmt.Sprintf("calibrated = %g * raw + %g", cal.A, cal.B),
		},
	})
}
