package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Simodalstix/AWS-fargate-golden-path/app/failure"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// burn spins the CPU for roughly d and returns the time actually spent.
// A busy loop, not a sleep: the point is to move the CPUUtilization metric.
func burn(d time.Duration) time.Duration {
	start := time.Now()
	deadline := start.Add(d)
	sink := 0
	for time.Now().Before(deadline) {
		sink++
	}
	_ = sink
	return time.Since(start)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Golden Path Sample Application",
		"version":      Version,
		"timestamp":    time.Now().UTC().Format(time.RFC3339Nano),
		"region":       s.cfg.Region,
		"failure_mode": s.modes.Current(r.Context()),
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"checks": map[string]string{
			"database": "ok",
			"memory":   "ok",
			"disk":     "ok",
		},
	})
}

func (s *Server) handleWork(w http.ResponseWriter, r *http.Request) {
	ms := 100
	if raw := r.URL.Query().Get("ms"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "ms must be a non-negative integer")
			return
		}
		ms = parsed
	}
	if ms > s.cfg.WorkCapMillis {
		ms = s.cfg.WorkCapMillis
	}

	burned := burn(time.Duration(ms) * time.Millisecond)
	s.metrics.AddBurnedWork(burned)

	s.logger.Info("cpu work completed",
		zap.Int("requestedMs", ms),
		zap.Int64("actualMs", burned.Milliseconds()))

	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Work completed",
		"requested_ms": ms,
		"actual_ms":    burned.Milliseconds(),
		"timestamp":    time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleDB(w http.ResponseWriter, r *http.Request) {
	mode := s.modes.Current(r.Context())
	leak := mode == failure.ModeConnectionLeak

	result, err := s.db.ExecuteQuery(r.Context(), "SELECT 1 AS test_column", leak)
	if err != nil {
		s.logger.Error("database query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Database query successful",
		"result":       result,
		"timestamp":    time.Now().UTC().Format(time.RFC3339Nano),
		"failure_mode": mode,
	})
}

func (s *Server) handleFailureModeGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"failure_mode": s.modes.Current(r.Context()),
		"timestamp":    time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleFailureModeSet(w http.ResponseWriter, r *http.Request) {
	mode := failure.Mode(r.PathValue("mode"))
	if !mode.Valid() {
		writeError(w, http.StatusBadRequest, "unknown failure mode: "+string(mode))
		return
	}

	if err := s.modes.Set(r.Context(), mode); err != nil {
		s.logger.Error("failed to set failure mode",
			zap.String("mode", string(mode)),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to set failure mode")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Failure mode set to: " + string(mode),
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}
