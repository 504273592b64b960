package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appWithContext(ctx map[string]interface{}) awscdk.App {
	return awscdk.NewApp(&awscdk.AppProps{Context: &ctx})
}

func TestResolveDefaults(t *testing.T) {
	app := awscdk.NewApp(nil)

	s, err := Resolve(app, nil)
	require.NoError(t, err)

	assert.Equal(t, "dev", s.EnvName)
	assert.Equal(t, EngineAuroraPostgres, s.DBEngine)
	assert.True(t, s.UseOneNAT)
	assert.False(t, s.RotateSecrets)
	assert.Equal(t, 0.5, s.MinACU)
	assert.Equal(t, float64(1), s.MaxACU)
	assert.Equal(t, float64(2), s.DesiredCount)
	assert.True(t, s.EnableFIS)
}

func TestResolveContextWinsOverProfile(t *testing.T) {
	app := appWithContext(map[string]interface{}{
		"envName":      "prod",
		"dbEngine":     "mysql",
		"useOneNat":    false,
		"desiredCount": float64(4),
		"alarmEmail":   "ops@example.com",
	})
	profileEnv := "staging"
	profileEngine := "postgres"
	profile := &Profile{EnvName: &profileEnv, DBEngine: &profileEngine}

	s, err := Resolve(app, profile)
	require.NoError(t, err)

	assert.Equal(t, "prod", s.EnvName)
	assert.Equal(t, EngineMySQL, s.DBEngine)
	assert.False(t, s.UseOneNAT)
	assert.Equal(t, float64(4), s.DesiredCount)
	assert.Equal(t, "ops@example.com", s.AlarmEmail)
}

func TestResolveProfileWinsOverDefaults(t *testing.T) {
	app := awscdk.NewApp(nil)
	env := "staging"
	rotate := true
	min, max := 1.0, 4.0
	profile := &Profile{
		EnvName:       &env,
		RotateSecrets: &rotate,
		Scaling:       &Scaling{MinACU: &min, MaxACU: &max},
	}

	s, err := Resolve(app, profile)
	require.NoError(t, err)

	assert.Equal(t, "staging", s.EnvName)
	assert.True(t, s.RotateSecrets)
	assert.Equal(t, 1.0, s.MinACU)
	assert.Equal(t, 4.0, s.MaxACU)
}

func TestResolveBoolFromStringContext(t *testing.T) {
	// -c enableFIS=false arrives as a string, not a bool.
	app := appWithContext(map[string]interface{}{"enableFIS": "false"})

	s, err := Resolve(app, nil)
	require.NoError(t, err)
	assert.False(t, s.EnableFIS)
}

func TestResolveRejectsUnknownEngine(t *testing.T) {
	app := appWithContext(map[string]interface{}{"dbEngine": "oracle"})

	_, err := Resolve(app, nil)
	require.ErrorContains(t, err, "unsupported database engine")
}

func TestResolveRejectsBadACURange(t *testing.T) {
	app := appWithContext(map[string]interface{}{"minAcu": float64(2), "maxAcu": float64(1)})

	_, err := Resolve(app, nil)
	require.ErrorContains(t, err, "invalid ACU range")
}

func TestResolveRejectsZeroDesiredCount(t *testing.T) {
	app := appWithContext(map[string]interface{}{"desiredCount": float64(0)})

	_, err := Resolve(app, nil)
	require.ErrorContains(t, err, "desiredCount")
}

func TestQualifiedName(t *testing.T) {
	s := Settings{EnvName: "dev"}
	assert.Equal(t, "golden-path-alb-dev", s.QualifiedName("alb"))
	assert.Equal(t, "golden-path-app-logs-dev", s.QualifiedName("app", "logs"))
}

func TestLoadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
env_name = "staging"
db_engine = "postgres"
use_one_nat = false

[scaling]
desired_count = 3.0
cpu = 1024.0
`), 0o644))

	p, err := LoadProfile(path)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "staging", *p.EnvName)
	assert.Equal(t, "postgres", *p.DBEngine)
	assert.False(t, *p.UseOneNAT)
	require.NotNil(t, p.Scaling)
	assert.Equal(t, 3.0, *p.Scaling.DesiredCount)
	assert.Equal(t, 1024.0, *p.Scaling.CPU)
	assert.Nil(t, p.RotateSecrets)
}

func TestLoadProfileMissingFileIsNil(t *testing.T) {
	p, err := LoadProfile(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Nil(t, p)
}
