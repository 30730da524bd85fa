package crawl

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-crawl/pkg/config"
	"rag-crawl/pkg/utils"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func newTestClient(baseURL string) *EngineClient {
	return NewEngineClient(config.EngineConfig{
		BaseURL:        baseURL,
		RequestTimeout: 5 * time.Second,
		StreamTimeout:  10 * time.Second,
	}, testLogger())
}

func TestEngineClient_OpenStream(t *testing.T) {
	var gotReq engineRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/crawl/stream", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_, _ = w.Write([]byte("data: {\"type\":\"crawl_started\",\"task_id\":\"t1\"}\n"))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	body, err := client.OpenStream(context.Background(), &config.CrawlConfig{
		URL:           "https://example.com",
		MaxDepth:      2,
		MaxPages:      10,
		BrowserType:   "chromium",
		WaitUntil:     "networkidle",
		PageTimeoutMs: 30000,
	})
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "crawl_started")

	// Request body forwards the crawl parameters and always asks to stream
	assert.Equal(t, "https://example.com", gotReq.URL)
	assert.Equal(t, 2, gotReq.MaxDepth)
	assert.Equal(t, 30000, gotReq.PageTimeout)
	assert.True(t, gotReq.Stream)
}

func TestEngineClient_OpenStream_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "engine overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.OpenStream(context.Background(), &config.CrawlConfig{URL: "https://example.com"})
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrEngineHTTP)
	assert.Contains(t, err.Error(), "engine overloaded")
}

func TestEngineClient_OpenStream_TransportError(t *testing.T) {
	client := newTestClient("http://127.0.0.1:1") // Nothing listens here
	_, err := client.OpenStream(context.Background(), &config.CrawlConfig{URL: "https://example.com"})
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrEngineTransport)
}

func TestEngineClient_ControlEndpoints(t *testing.T) {
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","task_id":"t1"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	ctx := context.Background()

	tests := []struct {
		name       string
		call       func() (map[string]any, error)
		wantMethod string
		wantPath   string
	}{
		{"stop", func() (map[string]any, error) { return client.Stop(ctx, "t1") }, http.MethodPost, "/crawl/stop/t1"},
		{"pause", func() (map[string]any, error) { return client.Pause(ctx, "t1") }, http.MethodPost, "/crawl/pause/t1"},
		{"resume", func() (map[string]any, error) { return client.Resume(ctx, "t1") }, http.MethodPost, "/crawl/resume/t1"},
		{"status", func() (map[string]any, error) { return client.Status(ctx, "t1") }, http.MethodGet, "/crawl/status/t1"},
		{"active", func() (map[string]any, error) { return client.Active(ctx) }, http.MethodGet, "/crawl/active"},
		{"stop all", func() (map[string]any, error) { return client.StopAll(ctx) }, http.MethodDelete, "/crawl/stop-all"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.call()
			require.NoError(t, err)
			assert.Equal(t, tt.wantMethod, gotMethod)
			assert.Equal(t, tt.wantPath, gotPath)
			assert.Equal(t, "ok", result["status"])
		})
	}
}

func TestEngineClient_ControlHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such task", http.StatusNotFound)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Stop(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrEngineHTTP)
}
