package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simodalstix/AWS-fargate-golden-path/app/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 80, cfg.Port)
	assert.Equal(t, "/golden/failure_mode", cfg.FailureModeParam)
	assert.Equal(t, 5*time.Second, cfg.FailureModeTTL)
	assert.Equal(t, 5000, cfg.WorkCapMillis)
	assert.Empty(t, cfg.DBSecretARN)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("PARAM_FAILURE_MODE", "/custom/mode")
	t.Setenv("DB_SECRET_ARN", "arn:aws:secretsmanager:us-east-1:123456789012:secret:db")
	t.Setenv("FAILURE_MODE_TTL", "30s")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/custom/mode", cfg.FailureModeParam)
	assert.Equal(t, 30*time.Second, cfg.FailureModeTTL)
	assert.NotEmpty(t, cfg.DBSecretARN)
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	t.Setenv("PORT", "70000")

	_, err := config.Load()
	require.Error(t, err)
}
