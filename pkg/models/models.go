package models

import "time"

// PageData is the payload of a page_complete event from the crawl engine
type PageData struct {
	URL            string   `json:"url"`
	Title          string   `json:"title"`
	Markdown       string   `json:"markdown"`
	Depth          int      `json:"depth"`
	CrawledAt      string   `json:"crawled_at,omitempty"`
	StatusCode     int      `json:"status_code,omitempty"`
	ProcessingTime float64  `json:"processing_time,omitempty"`
	InternalLinks  []string `json:"internal_links,omitempty"`
	ExternalLinks  []string `json:"external_links,omitempty"`
	Images         []string `json:"images,omitempty"`
}

// CrawlMetadata captures per-page crawl context persisted alongside a document
type CrawlMetadata struct {
	URL            string   `json:"url"`
	Title          string   `json:"title,omitempty"`
	Depth          int      `json:"depth"`
	CrawledAt      string   `json:"crawled_at,omitempty"`
	StatusCode     int      `json:"status_code,omitempty"`
	ProcessingTime float64  `json:"processing_time,omitempty"`
	InternalLinks  []string `json:"internal_links,omitempty"`
	ExternalLinks  []string `json:"external_links,omitempty"`
	Images         []string `json:"images,omitempty"`
}

// Document is a persisted content unit (one crawled page or one uploaded file)
type Document struct {
	ID            uint64         `json:"id"`
	Title         string         `json:"title"`
	SourceType    string         `json:"source_type"` // "web" or a file-extension tag (txt, md, html)
	Namespace     string         `json:"namespace"`
	SourceURL     string         `json:"source_url,omitempty"`
	ContentHash   string         `json:"content_hash"` // SHA-256 of cleaned text, dedup key within a namespace
	VectorID      string         `json:"vector_id,omitempty"`
	ChunksCount   int            `json:"chunks_count"`
	CrawlDepth    int            `json:"crawl_depth,omitempty"`
	CrawlTaskID   string         `json:"crawl_task_id,omitempty"`
	CrawlMetadata *CrawlMetadata `json:"crawl_metadata,omitempty"`
	IsActive      bool           `json:"is_active"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at,omitempty"`
}

// DocumentChunk is a contiguous slice of a document's cleaned text
// Chunk indices for a document are dense, zero-based, and in content order
type DocumentChunk struct {
	ID         uint64        `json:"id"`
	DocumentID uint64        `json:"document_id"`
	ChunkIndex int           `json:"chunk_index"`
	Content    string        `json:"content"`
	VectorID   string        `json:"vector_id"` // UUID handed to the indexing sink
	Metadata   ChunkMetadata `json:"metadata,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// ChunkMetadata inherits document-level crawl context plus chunk-specific fields
type ChunkMetadata struct {
	ChunkIndex int            `json:"chunk_index"`
	ChunkType  string         `json:"chunk_type"` // "web_content" or "file_content"
	DocumentID uint64         `json:"document_id"`
	TokenCount int            `json:"token_count,omitempty"` // -1 when the tokenizer is unavailable
	Headings   []string       `json:"headings,omitempty"`
	Crawl      *CrawlMetadata `json:"crawl,omitempty"`
}
