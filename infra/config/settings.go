package config

import (
	"fmt"

	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
)

// DBEngine selects the data stack's database flavor.
type DBEngine string

const (
	EngineAuroraPostgres DBEngine = "aurora-postgres"
	EnginePostgres       DBEngine = "postgres"
	EngineMySQL          DBEngine = "mysql"
)

// Valid reports whether the engine is one we know how to provision.
func (e DBEngine) Valid() bool {
	switch e {
	case EngineAuroraPostgres, EnginePostgres, EngineMySQL:
		return true
	}
	return false
}

// Settings is the resolved synth-time configuration for all stacks.
//
// Precedence per knob: CDK context (-c flags / cdk.json) wins over the
// optional TOML profile, which wins over the defaults below.
type Settings struct {
	EnvName       string
	DBEngine      DBEngine
	UseOneNAT     bool
	RotateSecrets bool
	MinACU        float64
	MaxACU        float64
	DesiredCount  float64
	CPU           float64
	MemoryMiB     float64
	EnableFIS     bool
	AlarmEmail    string
	WebhookURL    string
	// AlertRoutingPath points at an optional YAML file with additional
	// alarm subscriptions (see the alerting package).
	AlertRoutingPath string
}

func defaults() Settings {
	return Settings{
		EnvName:      "dev",
		DBEngine:     EngineAuroraPostgres,
		UseOneNAT:    true,
		MinACU:       0.5,
		MaxACU:       1,
		DesiredCount: 2,
		CPU:          512,
		MemoryMiB:    1024,
		EnableFIS:    true,
	}
}

func ctxString(scope constructs.Construct, key string, out *string) {
	if v, ok := scope.Node().TryGetContext(jsii.String(key)).(string); ok {
		*out = v
	}
}

func ctxBool(scope constructs.Construct, key string, out *bool) {
	switch v := scope.Node().TryGetContext(jsii.String(key)).(type) {
	case bool:
		*out = v
	case string:
		// `-c key=true` arrives as a string.
		*out = v == "true"
	}
}

func ctxNumber(scope constructs.Construct, key string, out *float64) {
	if v, ok := scope.Node().TryGetContext(jsii.String(key)).(float64); ok {
		*out = v
	}
}

// Resolve builds the Settings for a scope. Invalid combinations are a synth
// error: there is no point producing a template we know is wrong.
func Resolve(scope constructs.Construct, profile *Profile) (Settings, error) {
	s := defaults()
	profile.applyTo(&s)

	ctxString(scope, "envName", &s.EnvName)
	var engine = string(s.DBEngine)
	ctxString(scope, "dbEngine", &engine)
	s.DBEngine = DBEngine(engine)
	ctxBool(scope, "useOneNat", &s.UseOneNAT)
	ctxBool(scope, "rotateSecrets", &s.RotateSecrets)
	ctxNumber(scope, "minAcu", &s.MinACU)
	ctxNumber(scope, "maxAcu", &s.MaxACU)
	ctxNumber(scope, "desiredCount", &s.DesiredCount)
	ctxNumber(scope, "cpu", &s.CPU)
	ctxNumber(scope, "memoryMiB", &s.MemoryMiB)
	ctxBool(scope, "enableFIS", &s.EnableFIS)
	ctxString(scope, "alarmEmail", &s.AlarmEmail)
	ctxString(scope, "webhookUrl", &s.WebhookURL)
	ctxString(scope, "alertRouting", &s.AlertRoutingPath)

	if !s.DBEngine.Valid() {
		return s, fmt.Errorf("unsupported database engine %q", s.DBEngine)
	}
	if s.MinACU <= 0 || s.MaxACU < s.MinACU {
		return s, fmt.Errorf("invalid ACU range [%v, %v]", s.MinACU, s.MaxACU)
	}
	if s.DesiredCount < 1 {
		return s, fmt.Errorf("desiredCount must be at least 1, got %v", s.DesiredCount)
	}
	return s, nil
}

// QualifiedName joins the project prefix, the given parts, and the
// environment suffix: QualifiedName("alb") is "golden-path-alb-dev" when
// EnvName is "dev".
func (s Settings) QualifiedName(parts ...string) string {
	name := "golden-path"
	for _, p := range parts {
		name += "-" + p
	}
	return name + "-" + s.EnvName
}
