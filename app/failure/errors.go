package failure

import "errors"

// ErrNotConfigured is returned by Set when no SSM parameter name was
// configured, i.e. failure injection is disabled for this deployment.
var ErrNotConfigured = errors.New("failure mode parameter not configured")
