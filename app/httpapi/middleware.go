package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Simodalstix/AWS-fargate-golden-path/app/failure"
)

const requestIDHeader = "X-Request-ID"

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// exemptFromInjection reports whether a path must keep working during
// drills. Admin endpoints are the operator's way out of a failure mode, and
// the Prometheus endpoint is how the drill is observed in the first place.
func exemptFromInjection(path string) bool {
	return path == "/metrics" || strings.HasPrefix(path, "/admin/")
}

// injectFailures is the failure-mode interception point. It consults the
// (cached) mode once per request and either fails the request outright
// (return_500) or taxes it with synthetic CPU work (cpu_spike) before
// passing it on.
func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mode := s.modes.Current(r.Context())
		s.metrics.SetFailureMode(mode)

		if !exemptFromInjection(r.URL.Path) {
			switch mode {
			case failure.ModeReturn500:
				s.logger.Error("failing request due to active failure mode",
					zap.String("failureMode", string(mode)),
					zap.String("path", r.URL.Path))
				writeError(w, http.StatusInternalServerError, "Simulated server error")
				return
			case failure.ModeCPUSpike:
				burned := burn(time.Duration(s.cfg.CPUSpikeMillis) * time.Millisecond)
				s.metrics.AddBurnedWork(burned)
			}
		}

		next.ServeHTTP(w, r)
	})
}

// accessLog assigns each request a UUID, emits the structured access-log
// line, and feeds the request metrics. The field names (requestId, status,
// latencyMs, errorType, ...) are contractual: the observability stack's
// CloudWatch metric filters match on them.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		start := time.Now()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		rec.Header().Set(requestIDHeader, requestID)

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		s.metrics.ObserveRequest(r.Method, r.URL.Path, rec.status, elapsed)

		fields := []zap.Field{
			zap.String("requestId", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Int64("latencyMs", elapsed.Milliseconds()),
			zap.String("userAgent", r.UserAgent()),
			zap.String("remoteAddr", r.RemoteAddr),
		}
		switch {
		case rec.status >= 500:
			fields = append(fields, zap.String("errorType", "server_error"))
		case rec.status >= 400:
			fields = append(fields, zap.String("errorType", "client_error"))
		}

		s.logger.Info("request processed", fields...)
	})
}
