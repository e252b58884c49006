package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/bluesky-social/postwatch/riskmod/engine"
	"github.com/bluesky-social/postwatch/riskmod/kvstore"
	"github.com/bluesky-social/postwatch/riskmod/ratelimit"
	"github.com/bluesky-social/postwatch/riskmod/resultcache"
	"github.com/bluesky-social/postwatch/riskmod/rules"
	"github.com/bluesky-social/postwatch/riskmod/service"

	"github.com/stretchr/testify/assert"
	testifyassert "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T, src *engine.MemDataSource) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	kv := kvstore.NewMemStore(100)
	eng := engine.Engine{
		Logger:    logger,
		Source:    src,
		Analyzers: rules.DefaultAnalyzers(),
	}
	svc := &service.Service{
		Logger:    logger,
		Accounts:  service.NewMemAccounts(service.Account{ID: "user-1", Tier: "free"}),
		Limiter:   ratelimit.NewLimiter(kv, nil, logger),
		Cache:     resultcache.New(kv, logger),
		Evaluator: &eng,
	}
	srv, err := NewServer(svc, Config{Logger: logger, Bind: ":0"})
	require.NoError(t, err)
	return srv
}

func doRisk(srv *Server, userID, query string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/risk"+query, nil)
	if userID != "" {
		req.Header.Set(userIDHeader, userID)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHandleRisk(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	src := engine.NewMemDataSource()
	soon := time.Now().UTC().Add(time.Hour)
	src.Posts["user-1"] = []engine.ScheduledPost{
		{ID: "p1", Destination: "r/golang", ScheduledFor: soon, Title: "one"},
		{ID: "p2", Destination: "r/golang", ScheduledFor: soon.Add(2 * time.Hour), Title: "two"},
	}
	srv := testServer(t, src)

	rec := doRisk(srv, "user-1", "")
	require.Equal(http.StatusOK, rec.Code)
	var body struct {
		Success   bool                    `json:"success"`
		Cached    bool                    `json:"cached"`
		Data      engine.EvaluationResult `json:"data"`
		RateLimit service.RateLimitInfo   `json:"rateLimit"`
	}
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(body.Success)
	assert.False(body.Cached)
	require.Len(body.Data.Warnings, 1)
	assert.Equal(engine.SeverityHigh, body.Data.Warnings[0].Severity)
	assert.Equal(2, body.RateLimit.Limit)
	assert.Equal(1, body.RateLimit.Remaining)

	rec = doRisk(srv, "user-1", "?includeHistory=false")
	require.Equal(http.StatusOK, rec.Code)
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(body.Cached)

	rec = doRisk(srv, "user-1", "?refresh=1")
	assert.Equal(http.StatusTooManyRequests, rec.Code)
	retry, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(err)
	assert.Greater(retry, 0)
	assert.LessOrEqual(retry, 3600)
	var rejected RiskError
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &rejected))
	assert.False(rejected.Success)
	assert.Equal("RateLimitExceeded", rejected.Error)
	require.NotNil(rejected.RateLimit)
	assert.Equal(0, rejected.RateLimit.Remaining)
}

func TestHandleRiskRejections(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	src := engine.NewMemDataSource()
	srv := testServer(t, src)

	rec := doRisk(srv, "user-1", "?includeHistory=maybe")
	assert.Equal(http.StatusBadRequest, rec.Code)
	var body RiskError
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal("InvalidRequest", body.Error)
	require.Len(body.Fields, 1)
	assert.Equal("includeHistory", body.Fields[0].Field)

	rec = doRisk(srv, "", "")
	assert.Equal(http.StatusBadRequest, rec.Code)

	rec = doRisk(srv, "ghost", "")
	assert.Equal(http.StatusNotFound, rec.Code)
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal("AccountNotFound", body.Error)

	// validation and lookup failures never reach the data source
	assert.Equal(0, src.SnapshotWriteCount)

	src.OutcomesErr = testifyassert.AnError
	rec = doRisk(srv, "user-1", "")
	assert.Equal(http.StatusInternalServerError, rec.Code)
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal("InternalServerError", body.Error)
	assert.NotContains(rec.Body.String(), testifyassert.AnError.Error())
}

func TestHealthCheck(t *testing.T) {
	srv := testServer(t, engine.NewMemDataSource())
	req := httptest.NewRequest(http.MethodGet, "/_health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"daemon": "riskd", "status": "ok"}`, rec.Body.String())
}

func TestRetryAfterSeconds(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 1, retryAfterSeconds(now.Add(-time.Minute), now))
	assert.Equal(t, 2, retryAfterSeconds(now.Add(1500*time.Millisecond), now))
	assert.Equal(t, 3600, retryAfterSeconds(now.Add(time.Hour), now))
}
