package crawl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"rag-crawl/pkg/config"
	"rag-crawl/pkg/utils"
)

// EngineClient talks to the external crawl engine: one streaming endpoint for
// running crawls and a set of JSON control endpoints forwarded verbatim.
type EngineClient struct {
	baseURL       string
	streamClient  *http.Client // Long overall timeout for event streams
	controlClient *http.Client // Short timeout for control requests
	log           *logrus.Entry
}

// NewEngineClient creates a client for the configured engine
func NewEngineClient(cfg config.EngineConfig, log *logrus.Entry) *EngineClient {
	return &EngineClient{
		baseURL:       strings.TrimSuffix(cfg.BaseURL, "/"),
		streamClient:  &http.Client{Timeout: cfg.StreamTimeout},
		controlClient: &http.Client{Timeout: cfg.RequestTimeout},
		log:           log,
	}
}

// OpenStream POSTs a crawl request to {base}/crawl/stream and returns the
// response body for line-by-line consumption. A non-success status is read,
// closed, and surfaced as ErrEngineHTTP carrying the engine's error body.
// The caller owns the returned body and must close it.
func (c *EngineClient) OpenStream(ctx context.Context, crawlCfg *config.CrawlConfig) (io.ReadCloser, error) {
	reqBody := engineRequest{
		URL:                   crawlCfg.URL,
		MaxDepth:              crawlCfg.MaxDepth,
		MaxPages:              crawlCfg.MaxPages,
		BrowserType:           crawlCfg.BrowserType,
		WaitUntil:             crawlCfg.WaitUntil,
		ExcludeExternalLinks:  crawlCfg.ExcludeExternalLinks,
		ExcludeExternalImages: crawlCfg.ExcludeExternalImages,
		WordCountThreshold:    crawlCfg.WordCountThreshold,
		PageTimeout:           crawlCfg.PageTimeoutMs,
		Stream:                true,
	}

	payload, err := json.Marshal(&reqBody)
	if err != nil {
		return nil, fmt.Errorf("encoding crawl request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/crawl/stream", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating crawl request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrEngineTransport, err)
	}

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d: %s", utils.ErrEngineHTTP, resp.StatusCode, string(errBody))
	}

	return resp.Body, nil
}

// control issues a JSON control request and decodes the engine's response
func (c *EngineClient) control(ctx context.Context, method, path string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating control request: %w", err)
	}

	resp, err := c.controlClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", utils.ErrEngineTransport, method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading control response: %w", utils.ErrEngineTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s %s: status %d: %s", utils.ErrEngineHTTP, method, path, resp.StatusCode, string(body))
	}

	result := map[string]any{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("%w: decoding control response: %w", utils.ErrEngineTransport, err)
		}
	}
	return result, nil
}

// Stop asks the engine to halt a crawl task. Advisory: the running stream
// keeps consuming until the engine reports a terminal record.
func (c *EngineClient) Stop(ctx context.Context, taskID string) (map[string]any, error) {
	return c.control(ctx, http.MethodPost, "/crawl/stop/"+taskID)
}

// Pause asks the engine to pause a crawl task
func (c *EngineClient) Pause(ctx context.Context, taskID string) (map[string]any, error) {
	return c.control(ctx, http.MethodPost, "/crawl/pause/"+taskID)
}

// Resume asks the engine to resume a paused crawl task
func (c *EngineClient) Resume(ctx context.Context, taskID string) (map[string]any, error) {
	return c.control(ctx, http.MethodPost, "/crawl/resume/"+taskID)
}

// Status fetches the engine's view of a single task
func (c *EngineClient) Status(ctx context.Context, taskID string) (map[string]any, error) {
	return c.control(ctx, http.MethodGet, "/crawl/status/"+taskID)
}

// Active fetches the engine's list of active tasks
func (c *EngineClient) Active(ctx context.Context) (map[string]any, error) {
	return c.control(ctx, http.MethodGet, "/crawl/active")
}

// StopAll asks the engine to halt every active task
func (c *EngineClient) StopAll(ctx context.Context) (map[string]any, error) {
	return c.control(ctx, http.MethodDelete, "/crawl/stop-all")
}
