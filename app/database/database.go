// Package database manages the sample application's (simulated) database
// connections. Credentials are resolved from Secrets Manager exactly like a
// real service would, but no driver is wired up: queries are acknowledged,
// not executed. What matters for the golden-path labs is the connection
// accounting, which the connection_leak failure mode abuses on purpose.
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"go.uber.org/zap"
)

// Credentials is the JSON shape of the generated database secret.
type Credentials struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	Database string `json:"dbname"`
}

// SecretsAPI is the slice of the Secrets Manager client the manager needs.
type SecretsAPI interface {
	GetSecretValueWithContext(ctx aws.Context, input *secretsmanager.GetSecretValueInput, opts ...request.Option) (*secretsmanager.GetSecretValueOutput, error)
}

// ConnectionInfo describes the (simulated) connection handed to handlers.
// Password is deliberately absent.
type ConnectionInfo struct {
	Host        string    `json:"host"`
	Database    string    `json:"database"`
	Connected   bool      `json:"connected"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// QueryResult is what /db returns for a simulated query.
type QueryResult struct {
	Query      string          `json:"query"`
	Result     string          `json:"result"`
	Timestamp  time.Time       `json:"timestamp"`
	Connection *ConnectionInfo `json:"connectionInfo"`
}

// PoolStats exposes connection accounting for the metrics endpoint.
type PoolStats struct {
	Open   int64
	Leaked int64
}

// Manager resolves credentials once and tracks simulated connections.
type Manager struct {
	secrets   SecretsAPI
	secretARN string
	logger    *zap.Logger

	mu     sync.Mutex
	info   *ConnectionInfo
	open   int64
	leaked int64
}

// NewManager builds a Manager. An empty secret ARN switches the manager to
// local test credentials, which keeps the container runnable outside AWS.
func NewManager(secrets SecretsAPI, secretARN string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		secrets:   secrets,
		secretARN: secretARN,
		logger:    logger,
	}
}

func (m *Manager) credentials(ctx context.Context) (*Credentials, error) {
	if m.secretARN == "" {
		return &Credentials{
			Host:     "localhost",
			Port:     5432,
			Username: "test",
			Password: "test",
			Database: "test",
		}, nil
	}

	out, err := m.secrets.GetSecretValueWithContext(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(m.secretARN),
	})
	if err != nil {
		return nil, fmt.Errorf("fetching database secret: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal([]byte(aws.StringValue(out.SecretString)), &creds); err != nil {
		return nil, fmt.Errorf("decoding database secret: %w", err)
	}
	if creds.Host == "" {
		creds.Host = "localhost"
	}
	return &creds, nil
}

// Connection returns the shared connection info, resolving credentials on
// first use.
func (m *Manager) Connection(ctx context.Context) (*ConnectionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectionLocked(ctx)
}

func (m *Manager) connectionLocked(ctx context.Context) (*ConnectionInfo, error) {
	if m.info != nil {
		return m.info, nil
	}

	creds, err := m.credentials(ctx)
	if err != nil {
		return nil, err
	}

	m.info = &ConnectionInfo{
		Host:        creds.Host,
		Database:    creds.Database,
		Connected:   true,
		ConnectedAt: time.Now().UTC(),
	}
	m.logger.Info("database connection established",
		zap.String("host", creds.Host),
		zap.String("database", creds.Database))
	return m.info, nil
}

// ExecuteQuery runs a simulated query. Each call checks a connection out of
// the pool; with leak=true the connection is never checked back in, so the
// open count only grows until the task is recycled. That is the whole point
// of the connection_leak drill.
func (m *Manager) ExecuteQuery(ctx context.Context, query string, leak bool) (*QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, err := m.connectionLocked(ctx)
	if err != nil {
		return nil, err
	}

	m.open++
	if leak {
		m.leaked++
		m.logger.Warn("leaking database connection",
			zap.Int64("open", m.open),
			zap.Int64("leaked", m.leaked))
	} else {
		m.open--
	}

	return &QueryResult{
		Query:      query,
		Result:     "Query executed successfully",
		Timestamp:  time.Now().UTC(),
		Connection: info,
	}, nil
}

// Stats returns the current pool accounting.
func (m *Manager) Stats() PoolStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return PoolStats{Open: m.open, Leaked: m.leaked}
}
