package config

import "time"

// CrawlConfig holds the parameters for a single crawl request.
// Immutable once a crawl starts; validated before any network call.
type CrawlConfig struct {
	URL                   string `json:"url" yaml:"url"`
	MaxDepth              int    `json:"max_depth" yaml:"max_depth"`
	MaxPages              int    `json:"max_pages" yaml:"max_pages"`
	BrowserType           string `json:"browser_type" yaml:"browser_type"` // chromium, firefox, webkit
	WaitUntil             string `json:"wait_until" yaml:"wait_until"`     // networkidle, domcontentloaded, load
	ExcludeExternalLinks  bool   `json:"exclude_external_links" yaml:"exclude_external_links"`
	ExcludeExternalImages bool   `json:"exclude_external_images" yaml:"exclude_external_images"`
	WordCountThreshold    int    `json:"word_count_threshold" yaml:"word_count_threshold"`
	PageTimeoutMs         int    `json:"page_timeout" yaml:"page_timeout"` // Milliseconds, forwarded to the engine
	Namespace             string `json:"namespace" yaml:"namespace"`
	Stream                bool   `json:"stream" yaml:"stream"`
}

// EngineConfig holds settings for the external crawl engine connection
type EngineConfig struct {
	BaseURL        string        `yaml:"base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty"` // Control requests (stop/pause/resume/status)
	StreamTimeout  time.Duration `yaml:"stream_timeout,omitempty"`  // Overall read timeout for a crawl stream
}

// ChunkingConfig holds chunk splitting parameters
type ChunkingConfig struct {
	WebChunkSize      int    `yaml:"web_chunk_size,omitempty"`    // Characters per web-content chunk
	WebChunkOverlap   int    `yaml:"web_chunk_overlap,omitempty"` // Overlap between consecutive web chunks
	FileChunkSize     int    `yaml:"file_chunk_size,omitempty"`   // Token budget per file-content chunk
	FileChunkOverlap  int    `yaml:"file_chunk_overlap,omitempty"`
	TokenizerEncoding string `yaml:"tokenizer_encoding,omitempty"` // cl100k_base, o200k_base, ...
}

// ServerConfig holds settings for the relay HTTP API
type ServerConfig struct {
	Addr            string        `yaml:"addr,omitempty"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`
}

// AppConfig holds the global application configuration
type AppConfig struct {
	Engine              EngineConfig   `yaml:"engine"`
	Chunking            ChunkingConfig `yaml:"chunking,omitempty"`
	Server              ServerConfig   `yaml:"server,omitempty"`
	StateDir            string         `yaml:"state_dir"`
	MaxConcurrentCrawls int            `yaml:"max_concurrent_crawls,omitempty"`
	DefaultCrawlDepth   int            `yaml:"default_crawl_depth,omitempty"`
	DefaultMaxPages     int            `yaml:"default_max_pages,omitempty"`
	DefaultNamespace    string         `yaml:"default_namespace,omitempty"`
}

// ApplyDefaults fills unset CrawlConfig fields from the application defaults.
// Called before Validate so operators can submit minimal requests.
func (c *CrawlConfig) ApplyDefaults(app *AppConfig) {
	if c.MaxDepth == 0 {
		c.MaxDepth = app.DefaultCrawlDepth
	}
	if c.MaxPages == 0 {
		c.MaxPages = app.DefaultMaxPages
	}
	if c.Namespace == "" {
		c.Namespace = app.DefaultNamespace
	}
	if c.BrowserType == "" {
		c.BrowserType = "chromium"
	}
	if c.WaitUntil == "" {
		c.WaitUntil = "networkidle"
	}
	if c.WordCountThreshold == 0 {
		c.WordCountThreshold = 5
	}
	if c.PageTimeoutMs == 0 {
		c.PageTimeoutMs = 60000
	}
}
