package integration_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/localink/localink/internal/clock"
	"github.com/localink/localink/internal/config"
	"github.com/localink/localink/internal/model"
	"github.com/localink/localink/internal/server"
	"github.com/localink/localink/internal/service"
	"github.com/localink/localink/internal/shortcode"
	"github.com/localink/localink/internal/store"
)

type testEnv struct {
	router *gin.Engine
	clock  *clock.Fake
	store  *store.Memory
}

// setupTestServer assembles the full engine against an in-memory store and
// a fake clock so expiry is deterministic.
func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Server: config.ServerConfig{Port: "0"},
		Store:  config.StoreConfig{Backend: config.BackendMemory},
		App: config.AppConfig{
			BaseURL:          "http://localhost:8080",
			Environment:      "development",
			ShortCodeLen:     6,
			ShortCodeRetries: 10,
			DefaultTTL:       30 * time.Minute,
			LogMaxEntries:    1000,
		},
	}

	st := store.NewMemory()
	clk := clock.NewFake(time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	activity := service.NewActivityLog(st, clk, logger, cfg.App.LogMaxEntries)
	codes := shortcode.NewGenerator(cfg.App.ShortCodeLen, cfg.App.ShortCodeRetries)
	urls := service.NewURLManager(st, codes, clk, activity, logger)
	analytics := service.NewAnalytics(st, clk, activity, logger)

	return &testEnv{
		router: server.NewRouter(cfg, urls, analytics, activity, st, clk, logger),
		clock:  clk,
		store:  st,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestEndToEnd_CreateResolveClick(t *testing.T) {
	env := setupTestServer(t)

	// Create with default TTL
	w := env.do(t, http.MethodPost, "/api/v1/shorten", model.CreateURLRequest{URL: "https://example.com"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var created model.URLResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Len(t, created.ShortCode, 6)
	assert.True(t, created.IsActive)

	// Resolve returns the same record
	w = env.do(t, http.MethodGet, "/api/v1/urls/"+created.ShortCode, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resolved model.URLResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resolved))
	assert.Equal(t, created.ID, resolved.ID)
	assert.Equal(t, "https://example.com", resolved.OriginalURL)

	// A redirect records a click
	w = env.do(t, http.MethodGet, "/"+created.ShortCode, nil, map[string]string{
		"Referer":    "https://ref.example",
		"User-Agent": "UA/1.0",
	})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://example.com", w.Header().Get("Location"))

	w = env.do(t, http.MethodGet, "/api/v1/urls/"+created.ShortCode+"/analytics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var summary model.URLAnalytics
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, int64(1), summary.ClickCount)
	require.Len(t, summary.Clicks, 1)
	assert.Equal(t, "https://ref.example", summary.Clicks[0].Referrer)
	assert.Equal(t, "UA/1.0", summary.Clicks[0].UserAgent)
}

func TestEndToEnd_ExpiryLifecycle(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, http.MethodPost, "/api/v1/shorten", model.CreateURLRequest{URL: "https://example.com", TTLMinutes: 30}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var created model.URLResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	// Still resolvable just before expiry
	env.clock.Advance(29 * time.Minute)
	w = env.do(t, http.MethodGet, "/"+created.ShortCode, nil, nil)
	assert.Equal(t, http.StatusFound, w.Code)

	// Gone just after, distinct from not found
	env.clock.Advance(2 * time.Minute)
	w = env.do(t, http.MethodGet, "/"+created.ShortCode, nil, nil)
	assert.Equal(t, http.StatusGone, w.Code)

	w = env.do(t, http.MethodGet, "/never-existed", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Purge removes the expired record; a second purge is a no-op
	w = env.do(t, http.MethodPost, "/api/v1/purge", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"purged":1}`, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/v1/purge", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"purged":0}`, w.Body.String())

	// After the purge the code truly does not exist anymore
	w = env.do(t, http.MethodGet, "/"+created.ShortCode, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEndToEnd_CustomCodesAndStats(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, http.MethodPost, "/api/v1/shorten", model.CreateURLRequest{URL: "https://example.com/a", CustomCode: "launch"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	// Same custom code again conflicts while live
	w = env.do(t, http.MethodPost, "/api/v1/shorten", model.CreateURLRequest{URL: "https://example.com/b", CustomCode: "launch"}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Malformed custom code
	w = env.do(t, http.MethodPost, "/api/v1/shorten", model.CreateURLRequest{URL: "https://example.com/c", CustomCode: "ab"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Second record plus a couple of clicks for the dashboard
	w = env.do(t, http.MethodPost, "/api/v1/shorten", model.CreateURLRequest{URL: "https://example.com/d"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	env.do(t, http.MethodGet, "/launch", nil, nil)
	env.do(t, http.MethodGet, "/launch", nil, nil)

	w = env.do(t, http.MethodGet, "/api/v1/stats", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stats model.DashboardStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(2), stats.TotalClicks)
	assert.Equal(t, 2, stats.ActiveCount)
	assert.Zero(t, stats.ExpiredCount)
}

func TestEndToEnd_ActivityLog(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, http.MethodPost, "/api/v1/shorten", model.CreateURLRequest{URL: "https://example.com"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var created model.URLResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	env.do(t, http.MethodGet, "/"+created.ShortCode, nil, nil)

	// The create and the click both left activity entries behind
	w = env.do(t, http.MethodGet, "/api/v1/logs?q=url_created", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), created.ShortCode)

	w = env.do(t, http.MethodGet, "/api/v1/logs?level=info&q=click_recorded", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	// Export round-trips
	w = env.do(t, http.MethodGet, "/api/v1/logs/export", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var entries []model.LogEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	assert.NotEmpty(t, entries)
}

func TestEndToEnd_Health(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}
