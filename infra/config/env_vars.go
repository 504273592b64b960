package config

import (
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/caarlos0/env/v11"
)

// SynthEnvironmentVariables are read from the process environment at synth
// time (usually via the .env file godotenv loads in the entrypoint).
type SynthEnvironmentVariables struct {
	// ProfilePath points at the optional TOML deployment profile.
	ProfilePath string `env:"GOLDEN_PROFILE"`
	// AlarmEmail and WebhookURL are fallbacks for the context values of the
	// same name; context wins when both are set.
	AlarmEmail string `env:"ALARM_EMAIL"`
	WebhookURL string `env:"WEBHOOK_URL"`
}

// GetEnvironmentVariables parses T from the environment. Outside of
// synthesis (e.g. `cdk destroy`, assertions that skip bundling) it returns
// the zero value so missing variables never block unrelated operations.
func GetEnvironmentVariables[T any](scope constructs.Construct) T {
	var envObj T

	if !IsStackInSynthesis(scope) {
		return envObj
	}

	if err := env.Parse(&envObj); err != nil {
		panic(err)
	}
	return envObj
}
