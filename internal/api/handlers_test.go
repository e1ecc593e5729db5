package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/leafsii/rediskit/pkg/kv"
	"github.com/leafsii/rediskit/pkg/lifetime"
	"github.com/leafsii/rediskit/pkg/partition"
	"github.com/leafsii/rediskit/pkg/rediskit"
)

// Mock metrics for testing
type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	m.Called(ctx, method, path, status, duration)
}

type mapSource map[string]string

func (m mapSource) GetString(key string) string { return m[key] }

func hourlyLifetimes() mapSource {
	src := mapSource{}
	for i := 0; i < partition.Count; i++ {
		src[lifetime.Key(lifetime.DefaultKeyPrefix, i)] = "00.01:00:00"
	}
	return src
}

func createTestServer(t *testing.T) (http.Handler, *rediskit.Client, *MockMetrics) {
	t.Helper()
	logger := zaptest.NewLogger(t).Sugar()

	client, err := rediskit.New(context.Background(), rediskit.Options{
		Conn:      kv.Config{Backend: kv.BackendMemory, AllowAdmin: true},
		Lifetimes: hourlyLifetimes(),
		Logger:    logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	mockMetrics := &MockMetrics{}
	mockMetrics.On("RecordHTTPRequest", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return()

	handler := NewHandler(client, logger)
	router := handler.Routes(NewMiddleware(logger, mockMetrics), []string{"*"}, 60000)
	return router, client, mockMetrics
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthEndpoints(t *testing.T) {
	router, client, _ := createTestServer(t)

	rec := do(t, router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, client.Close())
	rec = do(t, router, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStringEndpoints(t *testing.T) {
	router, _, _ := createTestServer(t)

	rec := do(t, router, http.MethodGet, "/v1/db/3/strings/greeting", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "KEY_NOT_FOUND", decodeJSON[ErrorResponse](t, rec).Code)

	rec = do(t, router, http.MethodPut, "/v1/db/3/strings/greeting", map[string]any{"value": "hello"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decodeJSON[StringSetResponse](t, rec).Written)

	rec = do(t, router, http.MethodGet, "/v1/db/db3/strings/greeting", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeJSON[StringValueDTO](t, rec)
	assert.Equal(t, "db3", got.DB)
	assert.Equal(t, "hello", got.Value)

	// Partitions are isolated
	rec = do(t, router, http.MethodGet, "/v1/db/4/strings/greeting", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodPut, "/v1/db/3/strings/greeting", map[string]any{"value": 42, "swap": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", decodeJSON[StringSetResponse](t, rec).Previous)

	rec = do(t, router, http.MethodGet, "/v1/db/3/strings/greeting", nil)
	assert.EqualValues(t, 42, decodeJSON[StringValueDTO](t, rec).Value)

	rec = do(t, router, http.MethodDelete, "/v1/db/3/strings/greeting", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeJSON[ResultDTO](t, rec).OK)

	rec = do(t, router, http.MethodDelete, "/v1/db/3/keys/greeting", nil)
	assert.False(t, decodeJSON[ResultDTO](t, rec).OK)
}

func TestDefaultPartitionFollowsDefaultDB(t *testing.T) {
	router, _, _ := createTestServer(t)

	rec := do(t, router, http.MethodPut, "/v1/default-db", DefaultDBRequest{DB: "db5"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "db5", decodeJSON[LifetimesDTO](t, rec).DefaultDB)

	rec = do(t, router, http.MethodPut, "/v1/db/default/strings/k", map[string]any{"value": "v"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/v1/db/5/strings/k", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodPut, "/v1/default-db", DefaultDBRequest{DB: "default"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTTLEndpoints(t *testing.T) {
	router, _, _ := createTestServer(t)

	rec := do(t, router, http.MethodGet, "/v1/db/0/keys/k/ttl", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	do(t, router, http.MethodPut, "/v1/db/0/strings/k", map[string]any{"value": "v"})

	rec = do(t, router, http.MethodGet, "/v1/db/0/keys/k/ttl", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ttl := decodeJSON[TTLDTO](t, rec)
	require.NotNil(t, ttl.TTLMillis)
	assert.LessOrEqual(t, *ttl.TTLMillis, time.Hour.Milliseconds())
	assert.Greater(t, *ttl.TTLMillis, int64(0))
	require.NotNil(t, ttl.ExpiresAt)

	rec = do(t, router, http.MethodPut, "/v1/db/0/keys/k/ttl", ExpireRequest{TTLMillis: 10000})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeJSON[ResultDTO](t, rec).OK)

	rec = do(t, router, http.MethodGet, "/v1/db/0/keys/k/ttl", nil)
	ttl = decodeJSON[TTLDTO](t, rec)
	require.NotNil(t, ttl.TTLMillis)
	assert.LessOrEqual(t, *ttl.TTLMillis, int64(10000))
}

func TestHashEndpoints(t *testing.T) {
	router, _, _ := createTestServer(t)

	rec := do(t, router, http.MethodPut, "/v1/db/1/hashes/acct", HashSetRequest{Fields: map[string]any{"owner": "ada", "balance": 120}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 2, decodeJSON[HashDTO](t, rec).Length)

	rec = do(t, router, http.MethodGet, "/v1/db/1/hashes/acct", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"owner": "ada", "balance": "120"}, decodeJSON[HashDTO](t, rec).Fields)

	rec = do(t, router, http.MethodPut, "/v1/db/1/hashes/acct", HashSetRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetEndpoints(t *testing.T) {
	router, _, _ := createTestServer(t)

	rec := do(t, router, http.MethodPost, "/v1/db/2/sets/tags", map[string]any{"member": "go"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decodeJSON[ResultDTO](t, rec).OK)

	rec = do(t, router, http.MethodPost, "/v1/db/2/sets/tags", map[string]any{"member": "go"})
	assert.False(t, decodeJSON[ResultDTO](t, rec).OK)

	rec = do(t, router, http.MethodGet, "/v1/db/2/sets/tags", nil)
	set := decodeJSON[SetDTO](t, rec)
	assert.Equal(t, []string{`"go"`}, set.Members)
	assert.EqualValues(t, 1, set.Length)

	rec = do(t, router, http.MethodPost, "/v1/db/2/sets/tags/pop", nil)
	popped := decodeJSON[SetPopDTO](t, rec)
	require.NotNil(t, popped.Member)
	assert.Equal(t, `"go"`, *popped.Member)

	rec = do(t, router, http.MethodPost, "/v1/db/2/sets/tags/pop", nil)
	assert.Nil(t, decodeJSON[SetPopDTO](t, rec).Member)

	rec = do(t, router, http.MethodPost, "/v1/db/2/sets/tags", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWrongTypeIsConflict(t *testing.T) {
	router, _, _ := createTestServer(t)

	do(t, router, http.MethodPut, "/v1/db/0/strings/k", map[string]any{"value": "v"})
	rec := do(t, router, http.MethodPost, "/v1/db/0/sets/k", map[string]any{"member": "m"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "WRONG_TYPE", decodeJSON[ErrorResponse](t, rec).Code)
}

func TestLifetimeEndpoints(t *testing.T) {
	router, client, _ := createTestServer(t)

	rec := do(t, router, http.MethodGet, "/v1/lifetimes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decodeJSON[LifetimesDTO](t, rec)
	require.Len(t, all.Lifetimes, partition.Count)
	assert.Equal(t, LifetimeDTO{DB: "db0", Lifetime: "00.01:00:00"}, all.Lifetimes[0])

	rec = do(t, router, http.MethodPut, "/v1/lifetimes/db3", LifetimeRequest{Lifetime: "00.00:00:30"})
	require.Equal(t, http.StatusOK, rec.Code)
	d, err := client.Lifetime(partition.DB3)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)

	rec = do(t, router, http.MethodPut, "/v1/lifetimes/db3", LifetimeRequest{Lifetime: "30s"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/v1/lifetimes/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	d, err = client.Lifetime(partition.DB3)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, d)
}

func TestInvalidPartition(t *testing.T) {
	router, _, _ := createTestServer(t)

	for _, db := range []string{"16", "db-1", "primary"} {
		rec := do(t, router, http.MethodGet, "/v1/db/"+db+"/strings/k", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, db)
		assert.Equal(t, "INVALID_DB", decodeJSON[ErrorResponse](t, rec).Code)
	}
}

func TestMiddleware(t *testing.T) {
	router, _, mockMetrics := createTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = do(t, router, http.MethodGet, "/healthz", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	mockMetrics.AssertCalled(t, "RecordHTTPRequest", mock.Anything, http.MethodGet, mock.Anything, http.StatusOK, mock.Anything)
}

func TestRequestLoggerRecordsPartition(t *testing.T) {
	_, client, mockMetrics := createTestServer(t)
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core).Sugar()

	router := NewHandler(client, logger).Routes(NewMiddleware(logger, mockMetrics), []string{"*"}, 60000)

	do(t, router, http.MethodPut, "/v1/db/3/strings/k", map[string]any{"value": "v"})
	do(t, router, http.MethodGet, "/healthz", nil)

	requests := logs.FilterMessage("HTTP request").All()
	require.Len(t, requests, 2)

	first := requests[0].ContextMap()
	assert.Equal(t, "db3", first["db"])
	assert.EqualValues(t, http.StatusOK, first["status"])

	_, ok := requests[1].ContextMap()["db"]
	assert.False(t, ok, "routes without a partition log none")
}

func TestRateLimit(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()
	m := NewMiddleware(logger, &MockMetrics{})
	h := m.RateLimit(6)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
