package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/astromon/skywatch-core/internal/forecast"
)

// forecastHistoryWindow is how far back temperature history is read
// for the regression input.
const forecastHistoryWindow = 24 * time.Hour

// forecastRequest is the body for POST /forecast.
type forecastRequest struct {
	DeviceID   string `json:"device_id"`
	HoursAhead int    `json:"hours_ahead"`
}

// forecastResponse carries the prediction and the model metadata.
type forecastResponse struct {
	Data      forecast.Prediction `json:"data"`
	ModelInfo forecast.ModelInfo  `json:"model_info"`
}

// handleForecast predicts temperature for a device from its recent
// reading history.
func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	var req forecastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.DeviceID == "" {
		writeBadRequest(w, "device_id is required")
		return
	}

	since := time.Now().UTC().Add(-forecastHistoryWindow)
	values, err := s.readings.TemperatureSeries(r.Context(), req.DeviceID, since)
	if err != nil {
		s.logger.Error("loading temperature series failed", "device_id", req.DeviceID, "error", err)
		writeInternalError(w, "failed to load reading history")
		return
	}

	prediction, modelInfo, err := forecast.Predict(values, req.HoursAhead, time.Now().UTC())
	if err != nil {
		if errors.Is(err, forecast.ErrInsufficientData) {
			writeBadRequest(w, err.Error())
			return
		}
		s.logger.Error("forecast failed", "device_id", req.DeviceID, "error", err)
		writeInternalError(w, "forecast failed")
		return
	}

	writeJSON(w, http.StatusOK, forecastResponse{
		Data:      prediction,
		ModelInfo: modelInfo,
	})
}
