package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Profile is an optional TOML file capturing a deployment's settings so a
// lab environment can be reproduced without a wall of -c flags. All fields
// are pointers: only values present in the file override defaults.
//
// Example:
//
//	env_name = "staging"
//	db_engine = "aurora-postgres"
//	[scaling]
//	desired_count = 3
//	min_acu = 1.0
//	max_acu = 4.0
type Profile struct {
	EnvName       *string  `toml:"env_name"`
	DBEngine      *string  `toml:"db_engine"`
	UseOneNAT     *bool    `toml:"use_one_nat"`
	RotateSecrets *bool    `toml:"rotate_secrets"`
	EnableFIS     *bool    `toml:"enable_fis"`
	AlarmEmail    *string  `toml:"alarm_email"`
	WebhookURL    *string  `toml:"webhook_url"`
	Scaling       *Scaling `toml:"scaling"`
}

// Scaling groups the capacity knobs.
type Scaling struct {
	MinACU       *float64 `toml:"min_acu"`
	MaxACU       *float64 `toml:"max_acu"`
	DesiredCount *float64 `toml:"desired_count"`
	CPU          *float64 `toml:"cpu"`
	MemoryMiB    *float64 `toml:"memory_mib"`
}

// LoadProfile reads a TOML profile. A missing file is not an error: the
// profile is optional and absent in most dev workflows.
func LoadProfile(path string) (*Profile, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading profile %s: %w", path, err)
	}

	var p Profile
	if err := toml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parsing profile %s: %w", path, err)
	}
	return &p, nil
}

func (p *Profile) applyTo(s *Settings) {
	if p == nil {
		return
	}
	if p.EnvName != nil {
		s.EnvName = *p.EnvName
	}
	if p.DBEngine != nil {
		s.DBEngine = DBEngine(*p.DBEngine)
	}
	if p.UseOneNAT != nil {
		s.UseOneNAT = *p.UseOneNAT
	}
	if p.RotateSecrets != nil {
		s.RotateSecrets = *p.RotateSecrets
	}
	if p.EnableFIS != nil {
		s.EnableFIS = *p.EnableFIS
	}
	if p.AlarmEmail != nil {
		s.AlarmEmail = *p.AlarmEmail
	}
	if p.WebhookURL != nil {
		s.WebhookURL = *p.WebhookURL
	}
	if p.Scaling == nil {
		return
	}
	if p.Scaling.MinACU != nil {
		s.MinACU = *p.Scaling.MinACU
	}
	if p.Scaling.MaxACU != nil {
		s.MaxACU = *p.Scaling.MaxACU
	}
	if p.Scaling.DesiredCount != nil {
		s.DesiredCount = *p.Scaling.DesiredCount
	}
	if p.Scaling.CPU != nil {
		s.CPU = *p.Scaling.CPU
	}
	if p.Scaling.MemoryMiB != nil {
		s.MemoryMiB = *p.Scaling.MemoryMiB
	}
}
