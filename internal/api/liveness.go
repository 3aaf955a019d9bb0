package api

import (
	"errors"
	"net/http"

	"github.com/astromon/skywatch-core/internal/liveness"
)

// handleLivenessSweep triggers an immediate liveness sweep.
//
// The monitor is single-flight: a sweep already in progress yields a
// 409 rather than a second concurrent pass over the fleet.
func (s *Server) handleLivenessSweep(w http.ResponseWriter, r *http.Request) {
	if s.monitor == nil {
		writeInternalError(w, "liveness monitor not configured")
		return
	}

	result, err := s.monitor.Sweep(r.Context())
	if err != nil {
		if errors.Is(err, liveness.ErrSweepInProgress) {
			writeError(w, http.StatusConflict, "sweep_in_progress", "a liveness sweep is already running")
			return
		}
		s.logger.Error("liveness sweep failed", "error", err)
		writeInternalError(w, "liveness sweep failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
