package config

import (
	"fmt"
	"time"

	"rag-crawl/pkg/utils"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// Engine base URL is the one setting with no usable default
	if c.Engine.BaseURL == "" {
		return nil, fmt.Errorf("%w: engine.base_url is required", utils.ErrConfigValidation)
	}

	if c.Engine.RequestTimeout <= 0 {
		c.Engine.RequestTimeout = 30 * time.Second
	}

	if c.Engine.StreamTimeout <= 0 {
		c.Engine.StreamTimeout = 5 * time.Minute
	}

	// StateDir
	if c.StateDir == "" {
		warnings = append(warnings, "state_dir is empty, defaulting to './rag_crawl_state'")
		c.StateDir = "./rag_crawl_state"
	}

	// MaxConcurrentCrawls
	if c.MaxConcurrentCrawls <= 0 {
		warnings = append(warnings, "max_concurrent_crawls should be > 0, defaulting to 3")
		c.MaxConcurrentCrawls = 3
	}

	// Crawl defaults
	if c.DefaultCrawlDepth <= 0 {
		c.DefaultCrawlDepth = 3
	}
	if c.DefaultMaxPages <= 0 {
		c.DefaultMaxPages = 50
	}
	if c.DefaultNamespace == "" {
		c.DefaultNamespace = "default"
	}

	// Chunking defaults
	if c.Chunking.WebChunkSize <= 0 {
		c.Chunking.WebChunkSize = 1024
	}
	if c.Chunking.WebChunkOverlap < 0 {
		warnings = append(warnings, "chunking.web_chunk_overlap cannot be negative, setting to 0")
		c.Chunking.WebChunkOverlap = 0
	}
	if c.Chunking.WebChunkOverlap == 0 && c.Chunking.WebChunkSize >= 1024 {
		c.Chunking.WebChunkOverlap = 200
	}
	// A non-advancing chunk cursor is a hard error, not a warning
	if c.Chunking.WebChunkOverlap >= c.Chunking.WebChunkSize {
		return warnings, fmt.Errorf(
			"%w: chunking.web_chunk_overlap (%d) must be less than chunking.web_chunk_size (%d)",
			utils.ErrConfigValidation, c.Chunking.WebChunkOverlap, c.Chunking.WebChunkSize)
	}
	if c.Chunking.FileChunkSize <= 0 {
		c.Chunking.FileChunkSize = 512
	}
	if c.Chunking.FileChunkOverlap < 0 {
		warnings = append(warnings, "chunking.file_chunk_overlap cannot be negative, setting to 0")
		c.Chunking.FileChunkOverlap = 0
	}
	if c.Chunking.FileChunkOverlap == 0 && c.Chunking.FileChunkSize >= 512 {
		c.Chunking.FileChunkOverlap = 50
	}
	if c.Chunking.FileChunkOverlap >= c.Chunking.FileChunkSize {
		return warnings, fmt.Errorf(
			"%w: chunking.file_chunk_overlap (%d) must be less than chunking.file_chunk_size (%d)",
			utils.ErrConfigValidation, c.Chunking.FileChunkOverlap, c.Chunking.FileChunkSize)
	}

	// Server defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	return warnings, nil
}

// Validate checks CrawlConfig ranges. All violations are fatal: a crawl request
// is rejected before any network call is made.
func (c *CrawlConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("%w: url is required", utils.ErrConfigValidation)
	}
	if c.MaxDepth < 1 || c.MaxDepth > 10 {
		return fmt.Errorf("%w: max_depth must be in [1, 10], got %d", utils.ErrConfigValidation, c.MaxDepth)
	}
	if c.MaxPages < 1 || c.MaxPages > 5000 {
		return fmt.Errorf("%w: max_pages must be in [1, 5000], got %d", utils.ErrConfigValidation, c.MaxPages)
	}
	switch c.BrowserType {
	case "chromium", "firefox", "webkit":
	default:
		return fmt.Errorf("%w: browser_type must be chromium, firefox, or webkit, got %q", utils.ErrConfigValidation, c.BrowserType)
	}
	switch c.WaitUntil {
	case "networkidle", "domcontentloaded", "load":
	default:
		return fmt.Errorf("%w: wait_until must be networkidle, domcontentloaded, or load, got %q", utils.ErrConfigValidation, c.WaitUntil)
	}
	if c.WordCountThreshold < 1 {
		return fmt.Errorf("%w: word_count_threshold must be >= 1, got %d", utils.ErrConfigValidation, c.WordCountThreshold)
	}
	if c.PageTimeoutMs < 10000 || c.PageTimeoutMs > 300000 {
		return fmt.Errorf("%w: page_timeout must be in [10000, 300000] ms, got %d", utils.ErrConfigValidation, c.PageTimeoutMs)
	}
	if len(c.Namespace) < 1 || len(c.Namespace) > 50 {
		return fmt.Errorf("%w: namespace length must be in [1, 50], got %d", utils.ErrConfigValidation, len(c.Namespace))
	}
	return nil
}
