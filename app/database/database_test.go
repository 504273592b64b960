package database_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simodalstix/AWS-fargate-golden-path/app/database"
)

type fakeSecrets struct {
	secret string
	err    error
	calls  int
}

func (f *fakeSecrets) GetSecretValueWithContext(_ aws.Context, _ *secretsmanager.GetSecretValueInput, _ ...request.Option) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(f.secret)}, nil
}

func TestConnectionWithoutSecretUsesLocalFallback(t *testing.T) {
	secrets := &fakeSecrets{}
	mgr := database.NewManager(secrets, "", nil)

	info, err := mgr.Connection(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "localhost", info.Host)
	assert.True(t, info.Connected)
	assert.Zero(t, secrets.calls)
}

func TestConnectionResolvesSecretOnce(t *testing.T) {
	secrets := &fakeSecrets{secret: `{"host":"db.internal","username":"dbadmin","password":"x","dbname":"goldenpath"}`}
	mgr := database.NewManager(secrets, "arn:aws:secretsmanager:us-east-1:123456789012:secret:db", nil)

	info, err := mgr.Connection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "db.internal", info.Host)
	assert.Equal(t, "goldenpath", info.Database)

	_, err = mgr.Connection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, secrets.calls, "credentials must be resolved once")
}

func TestConnectionSecretError(t *testing.T) {
	secrets := &fakeSecrets{err: errors.New("access denied")}
	mgr := database.NewManager(secrets, "arn:aws:secretsmanager:us-east-1:123456789012:secret:db", nil)

	_, err := mgr.Connection(context.Background())
	require.Error(t, err)
}

func TestExecuteQueryReleasesConnections(t *testing.T) {
	mgr := database.NewManager(&fakeSecrets{}, "", nil)

	for i := 0; i < 5; i++ {
		res, err := mgr.ExecuteQuery(context.Background(), "SELECT 1", false)
		require.NoError(t, err)
		assert.Equal(t, "SELECT 1", res.Query)
	}

	stats := mgr.Stats()
	assert.EqualValues(t, 0, stats.Open)
	assert.EqualValues(t, 0, stats.Leaked)
}

func TestExecuteQueryLeaksConnections(t *testing.T) {
	mgr := database.NewManager(&fakeSecrets{}, "", nil)

	for i := 0; i < 3; i++ {
		_, err := mgr.ExecuteQuery(context.Background(), "SELECT 1", true)
		require.NoError(t, err)
	}

	stats := mgr.Stats()
	assert.EqualValues(t, 3, stats.Open, "leaked connections stay open")
	assert.EqualValues(t, 3, stats.Leaked)
}
