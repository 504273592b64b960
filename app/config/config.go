package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Config holds the runtime settings of the sample application. Everything is
// sourced from the environment so the same container image works locally,
// in the ECS task definition, and in the break/fix labs.
type Config struct {
	// Port the HTTP server listens on. The ALB target groups and the
	// container health check both point at this port.
	Port int `env:"PORT" envDefault:"80" validate:"gt=0,lte=65535"`

	// Region is used for display only; SDK clients resolve their own region.
	Region string `env:"AWS_REGION" envDefault:"us-east-1"`

	// DBSecretARN points at the Secrets Manager secret holding database
	// credentials. Empty means "no real database": the manager falls back to
	// local test credentials.
	DBSecretARN string `env:"DB_SECRET_ARN"`

	// FailureModeParam is the SSM parameter driving the failure-mode state
	// machine. Empty disables failure injection entirely.
	FailureModeParam string `env:"PARAM_FAILURE_MODE" envDefault:"/golden/failure_mode"`

	// FailureModeTTL bounds how stale a cached failure-mode read may be.
	FailureModeTTL time.Duration `env:"FAILURE_MODE_TTL" envDefault:"5s" validate:"gt=0"`

	// WorkCapMillis clamps /work requests so a single caller cannot pin a
	// task for more than a few seconds.
	WorkCapMillis int `env:"WORK_CAP_MS" envDefault:"5000" validate:"gt=0"`

	// CPUSpikeMillis is the per-request burn applied while the cpu_spike
	// failure mode is active.
	CPUSpikeMillis int `env:"CPU_SPIKE_MS" envDefault:"200" validate:"gte=0"`

	// ShutdownGrace is how long in-flight requests get on SIGTERM before the
	// server is torn down. ECS sends SIGTERM ahead of SIGKILL on task stop.
	ShutdownGrace time.Duration `env:"SHUTDOWN_GRACE" envDefault:"20s"`
}

// Load parses and validates the configuration from the process environment.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return &cfg, nil
}
