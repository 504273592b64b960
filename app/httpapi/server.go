// Package httpapi exposes the sample application's HTTP surface: the
// endpoints the ALB health checks and the break/fix labs exercise, plus the
// admin and Prometheus endpoints.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Simodalstix/AWS-fargate-golden-path/app/config"
	"github.com/Simodalstix/AWS-fargate-golden-path/app/database"
	"github.com/Simodalstix/AWS-fargate-golden-path/app/failure"
	"github.com/Simodalstix/AWS-fargate-golden-path/app/metrics"
)

// Version is stamped into / responses. Overridden at build time via
// -ldflags "-X .../app/httpapi.Version=...".
var Version = "1.0.0"

// Server wires the handlers to their dependencies.
type Server struct {
	cfg     *config.Config
	logger  *zap.Logger
	modes   *failure.Store
	db      *database.Manager
	metrics *metrics.Metrics
}

// New builds a Server and registers the database pool gauges.
func New(cfg *config.Config, logger *zap.Logger, modes *failure.Store, db *database.Manager, m *metrics.Metrics) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		modes:   modes,
		db:      db,
		metrics: m,
	}
	m.RegisterPoolStats(func() (int64, int64) {
		stats := db.Stats()
		return stats.Open, stats.Leaked
	})
	return s
}

// Handler returns the full middleware-wrapped route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /work", s.handleWork)
	mux.HandleFunc("GET /db", s.handleDB)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /admin/failure-mode", s.handleFailureModeGet)
	mux.HandleFunc("POST /admin/failure-mode/{mode}", s.handleFailureModeSet)

	var h http.Handler = mux
	h = s.injectFailures(h)
	h = s.accessLog(h)
	return h
}

// Run serves until ctx is cancelled, then drains in-flight requests for the
// configured grace period. ECS sends SIGTERM before SIGKILL on task stop, so
// the grace period is what keeps blue/green cutovers free of connection
// resets.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.Int("port", s.cfg.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGrace)
	defer cancel()

	s.logger.Info("shutting down", zap.Duration("grace", s.cfg.ShutdownGrace))
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("draining connections: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
