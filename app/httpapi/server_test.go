package httpapi_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/aws/aws-sdk-go/service/ssm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simodalstix/AWS-fargate-golden-path/app/config"
	"github.com/Simodalstix/AWS-fargate-golden-path/app/database"
	"github.com/Simodalstix/AWS-fargate-golden-path/app/failure"
	"github.com/Simodalstix/AWS-fargate-golden-path/app/httpapi"
	"github.com/Simodalstix/AWS-fargate-golden-path/app/metrics"
)

type fakeSSM struct {
	value string
}

func (f *fakeSSM) GetParameterWithContext(_ aws.Context, input *ssm.GetParameterInput, _ ...request.Option) (*ssm.GetParameterOutput, error) {
	return &ssm.GetParameterOutput{
		Parameter: &ssm.Parameter{Name: input.Name, Value: aws.String(f.value)},
	}, nil
}

func (f *fakeSSM) PutParameterWithContext(_ aws.Context, input *ssm.PutParameterInput, _ ...request.Option) (*ssm.PutParameterOutput, error) {
	f.value = aws.StringValue(input.Value)
	return &ssm.PutParameterOutput{}, nil
}

type fakeSecrets struct{}

func (fakeSecrets) GetSecretValueWithContext(_ aws.Context, _ *secretsmanager.GetSecretValueInput, _ ...request.Option) (*secretsmanager.GetSecretValueOutput, error) {
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String("{}")}, nil
}

func newTestServer(t *testing.T, mode string) (http.Handler, *fakeSSM, *database.Manager) {
	t.Helper()

	cfg := &config.Config{
		Port:             80,
		Region:           "us-east-1",
		FailureModeParam: "/golden/failure_mode",
		// Zero TTL so every request observes mode changes immediately.
		FailureModeTTL: time.Nanosecond,
		WorkCapMillis:  50,
		CPUSpikeMillis: 1,
		ShutdownGrace:  time.Second,
	}

	api := &fakeSSM{value: mode}
	modes := failure.NewStore(api, cfg.FailureModeParam, cfg.FailureModeTTL, nil)
	db := database.NewManager(fakeSecrets{}, "", nil)
	srv := httpapi.New(cfg, nil, modes, db, metrics.New())
	return srv.Handler(), api, db
}

func decode(t *testing.T, res *http.Response) map[string]any {
	t.Helper()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func get(t *testing.T, h http.Handler, path string) *http.Response {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec.Result()
}

func TestRoot(t *testing.T) {
	h, _, _ := newTestServer(t, "none")

	res := get(t, h, "/")
	require.Equal(t, http.StatusOK, res.StatusCode)

	body := decode(t, res)
	assert.Equal(t, "Golden Path Sample Application", body["message"])
	assert.Equal(t, "none", body["failure_mode"])
	assert.Equal(t, "us-east-1", body["region"])
	assert.NotEmpty(t, res.Header.Get("X-Request-ID"))
}

func TestUnknownPathIs404(t *testing.T) {
	h, _, _ := newTestServer(t, "none")

	res := get(t, h, "/nope")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestHealthz(t *testing.T) {
	h, _, _ := newTestServer(t, "none")

	res := get(t, h, "/healthz")
	require.Equal(t, http.StatusOK, res.StatusCode)

	body := decode(t, res)
	assert.Equal(t, "healthy", body["status"])
}

func TestReturn500ModeFailsRequests(t *testing.T) {
	h, _, _ := newTestServer(t, "return_500")

	for _, path := range []string{"/", "/healthz", "/work", "/db"} {
		res := get(t, h, path)
		assert.Equal(t, http.StatusInternalServerError, res.StatusCode, path)
	}
}

func TestReturn500ModeSparesAdminAndMetrics(t *testing.T) {
	h, _, _ := newTestServer(t, "return_500")

	res := get(t, h, "/admin/failure-mode")
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res = get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestWorkClampsRequestedMillis(t *testing.T) {
	h, _, _ := newTestServer(t, "none")

	res := get(t, h, "/work?ms=100000")
	require.Equal(t, http.StatusOK, res.StatusCode)

	body := decode(t, res)
	assert.EqualValues(t, 50, body["requested_ms"], "must clamp to the configured cap")
	assert.GreaterOrEqual(t, body["actual_ms"].(float64), 50.0)
}

func TestWorkRejectsGarbage(t *testing.T) {
	h, _, _ := newTestServer(t, "none")

	res := get(t, h, "/work?ms=banana")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = get(t, h, "/work?ms=-5")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestDBQuery(t *testing.T) {
	h, _, db := newTestServer(t, "none")

	res := get(t, h, "/db")
	require.Equal(t, http.StatusOK, res.StatusCode)

	body := decode(t, res)
	assert.Equal(t, "Database query successful", body["message"])

	stats := db.Stats()
	assert.EqualValues(t, 0, stats.Leaked)
}

func TestConnectionLeakMode(t *testing.T) {
	h, _, db := newTestServer(t, "connection_leak")

	for i := 0; i < 4; i++ {
		res := get(t, h, "/db")
		require.Equal(t, http.StatusOK, res.StatusCode)
	}

	stats := db.Stats()
	assert.EqualValues(t, 4, stats.Leaked)
	assert.EqualValues(t, 4, stats.Open)
}

func TestCPUSpikeModeStillSucceeds(t *testing.T) {
	h, _, _ := newTestServer(t, "cpu_spike")

	res := get(t, h, "/")
	require.Equal(t, http.StatusOK, res.StatusCode)

	body := decode(t, res)
	assert.Equal(t, "cpu_spike", body["failure_mode"])
}

func TestAdminSetFailureMode(t *testing.T) {
	h, api, _ := newTestServer(t, "none")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/failure-mode/return_500", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "return_500", api.value)

	// Subsequent requests observe the new mode.
	res := get(t, h, "/")
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
}

func TestAdminRejectsUnknownMode(t *testing.T) {
	h, api, _ := newTestServer(t, "none")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/failure-mode/explode", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "none", api.value)
}

func TestMetricsExposition(t *testing.T) {
	h, _, _ := newTestServer(t, "none")

	// Generate some traffic first.
	get(t, h, "/")
	get(t, h, "/healthz")

	res := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, res.StatusCode)

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "golden_path_http_requests_total")
	assert.Contains(t, string(body), "golden_path_failure_mode")
	assert.Contains(t, string(body), "golden_path_db_connections_open")
}
