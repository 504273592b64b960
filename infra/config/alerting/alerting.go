// Package alerting loads the optional alarm-routing file: extra SNS
// subscriptions beyond the single email/webhook pair the context knobs
// allow, e.g. a team inbox plus an on-call pager webhook.
package alerting

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Routing lists the subscription targets for the alarm topic.
//
// Example file:
//
//	emails:
//	  - platform-team@example.com
//	webhooks:
//	  - https://hooks.example.com/alerts
type Routing struct {
	Emails   []string `yaml:"emails"`
	Webhooks []string `yaml:"webhooks"`
}

// Load reads the routing file. A missing file returns nil without error —
// routing config is optional.
func Load(path string) (*Routing, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading alert routing file %s: %w", path, err)
	}

	var r Routing
	if err := yaml.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("parsing alert routing file %s: %w", path, err)
	}
	return &r, nil
}
