// Package failure implements the break/fix failure-mode state machine.
//
// The active mode lives outside the process, in an SSM String parameter, so
// operators (and FIS experiments) can flip it without redeploying. Reads go
// through a short TTL cache: request handling must never turn into an SSM
// call per request, and a broken parameter must degrade to normal operation.
package failure

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/ssm"
	"go.uber.org/zap"
)

// Mode is one of the four recognized failure modes.
type Mode string

const (
	ModeNone           Mode = "none"
	ModeReturn500      Mode = "return_500"
	ModeCPUSpike       Mode = "cpu_spike"
	ModeConnectionLeak Mode = "connection_leak"
)

// Modes lists every mode the admin endpoint accepts.
var Modes = []Mode{ModeNone, ModeReturn500, ModeCPUSpike, ModeConnectionLeak}

// ParseMode normalizes an arbitrary parameter value. Anything unrecognized
// (including garbage written directly to SSM) behaves as ModeNone.
func ParseMode(s string) Mode {
	switch Mode(s) {
	case ModeReturn500, ModeCPUSpike, ModeConnectionLeak:
		return Mode(s)
	default:
		return ModeNone
	}
}

// Valid reports whether m is one of the recognized modes.
func (m Mode) Valid() bool {
	for _, known := range Modes {
		if m == known {
			return true
		}
	}
	return false
}

// ParameterAPI is the slice of the SSM client the store needs.
type ParameterAPI interface {
	GetParameterWithContext(ctx aws.Context, input *ssm.GetParameterInput, opts ...request.Option) (*ssm.GetParameterOutput, error)
	PutParameterWithContext(ctx aws.Context, input *ssm.PutParameterInput, opts ...request.Option) (*ssm.PutParameterOutput, error)
}

// Store reads and writes the failure mode parameter with TTL caching.
type Store struct {
	api       ParameterAPI
	parameter string
	ttl       time.Duration
	logger    *zap.Logger

	mu        sync.Mutex
	cached    Mode
	fetchedAt time.Time
}

// NewStore builds a Store. An empty parameter name disables failure
// injection: Current always returns ModeNone and Set fails.
func NewStore(api ParameterAPI, parameter string, ttl time.Duration, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		api:       api,
		parameter: parameter,
		ttl:       ttl,
		logger:    logger,
	}
}

// Current returns the active failure mode. SSM failures are logged and
// reported as ModeNone so a broken parameter cannot take the service down
// harder than the operator asked for.
func (s *Store) Current(ctx context.Context) Mode {
	if s.parameter == "" {
		return ModeNone
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.fetchedAt.IsZero() && time.Since(s.fetchedAt) < s.ttl {
		return s.cached
	}

	out, err := s.api.GetParameterWithContext(ctx, &ssm.GetParameterInput{
		Name: aws.String(s.parameter),
	})
	if err != nil {
		s.logger.Warn("failed to read failure mode parameter, assuming none",
			zap.String("parameter", s.parameter),
			zap.Error(err))
		// Cache the fallback too, otherwise an SSM outage turns into a
		// per-request retry storm.
		s.cached = ModeNone
		s.fetchedAt = time.Now()
		return ModeNone
	}

	s.cached = ParseMode(aws.StringValue(out.Parameter.Value))
	s.fetchedAt = time.Now()
	return s.cached
}

// Set writes a new mode to the parameter and drops the cache so the change
// is visible on the next read.
func (s *Store) Set(ctx context.Context, mode Mode) error {
	if s.parameter == "" {
		return ErrNotConfigured
	}

	_, err := s.api.PutParameterWithContext(ctx, &ssm.PutParameterInput{
		Name:      aws.String(s.parameter),
		Value:     aws.String(string(mode)),
		Type:      aws.String(ssm.ParameterTypeString),
		Overwrite: aws.Bool(true),
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.cached = mode
	s.fetchedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("failure mode updated", zap.String("mode", string(mode)))
	return nil
}
