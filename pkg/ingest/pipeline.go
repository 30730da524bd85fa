package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"rag-crawl/pkg/config"
	"rag-crawl/pkg/models"
	"rag-crawl/pkg/parse"
	"rag-crawl/pkg/process"
	"rag-crawl/pkg/storage"
	"rag-crawl/pkg/utils"
)

// PageError is a page-scoped processing failure. It identifies the offending
// page's URL and the document id (0 if no document was created) so the
// orchestrator can log it without aborting the crawl.
type PageError struct {
	URL        string
	DocumentID uint64
	Err        error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("processing page %s (document %d): %v", e.URL, e.DocumentID, e.Err)
}

func (e *PageError) Unwrap() error {
	return e.Err
}

// Pipeline transforms crawled pages and uploaded files into cleaned, chunked,
// persisted documents keyed by content hash for dedup.
type Pipeline struct {
	store storage.DocumentStore
	cfg   config.ChunkingConfig
	log   *logrus.Entry
}

// NewPipeline creates a content pipeline backed by the given store
func NewPipeline(store storage.DocumentStore, cfg config.ChunkingConfig, log *logrus.Entry) *Pipeline {
	return &Pipeline{
		store: store,
		cfg:   cfg,
		log:   log,
	}
}

// IngestPage cleans, hashes, dedup-checks, chunks, and persists one crawled
// page. Idempotent per (namespace, content hash): re-crawling identical
// content resolves to the existing document without writing new rows.
//
// The context is accepted for interface symmetry; an ingestion once started
// runs to completion or failure before the stream proceeds.
func (p *Pipeline) IngestPage(_ context.Context, page *models.PageData, namespace, taskID string) (*models.Document, error) {
	cleaned := process.CleanWebContent(page.Markdown)
	contentHash := utils.ContentHash(cleaned)

	existing, err := p.store.FindActiveByHash(namespace, contentHash)
	if err != nil {
		return nil, &PageError{URL: page.URL, Err: err}
	}
	if existing != nil {
		p.log.Infof("Skipping %s (%s): document %d already active",
			page.URL, utils.CategorizeError(utils.ErrDuplicateContent), existing.ID)
		return existing, nil
	}

	title := page.Title
	if title == "" {
		title = "Untitled"
	}

	crawlMeta := &models.CrawlMetadata{
		URL:            page.URL,
		Title:          page.Title,
		Depth:          page.Depth,
		CrawledAt:      page.CrawledAt,
		StatusCode:     page.StatusCode,
		ProcessingTime: page.ProcessingTime,
		InternalLinks:  page.InternalLinks,
		ExternalLinks:  page.ExternalLinks,
		Images:         page.Images,
	}

	doc := &models.Document{
		Title:         title,
		SourceType:    "web",
		Namespace:     namespace,
		SourceURL:     parse.NormalizeURLString(page.URL),
		ContentHash:   contentHash,
		VectorID:      uuid.New().String(),
		CrawlDepth:    page.Depth,
		CrawlTaskID:   taskID,
		CrawlMetadata: crawlMeta,
	}

	parts, err := process.SplitChunks(cleaned, p.cfg.WebChunkSize, p.cfg.WebChunkOverlap)
	if err != nil {
		return nil, &PageError{URL: page.URL, Err: err}
	}

	headings := process.ExtractHeadings([]byte(cleaned))
	chunks := buildChunks(parts, "web_content", headings, crawlMeta)

	stored, created, err := p.store.CreateDocumentWithChunks(doc, chunks)
	if err != nil {
		return nil, &PageError{URL: page.URL, Err: err}
	}
	if !created {
		p.log.Infof("Concurrent ingest won for %s, reusing document %d", page.URL, stored.ID)
		return stored, nil
	}

	p.log.Debugf("Created document %d with %d chunks for %s", stored.ID, stored.ChunksCount, page.URL)
	return stored, nil
}

// buildChunks wraps raw chunk texts into DocumentChunk rows with dense,
// zero-based indices matching content order
func buildChunks(parts []string, chunkType string, headings []string, crawlMeta *models.CrawlMetadata) []models.DocumentChunk {
	chunks := make([]models.DocumentChunk, 0, len(parts))
	for i, part := range parts {
		chunks = append(chunks, models.DocumentChunk{
			ChunkIndex: i,
			Content:    part,
			VectorID:   uuid.New().String(),
			Metadata: models.ChunkMetadata{
				ChunkIndex: i,
				ChunkType:  chunkType,
				TokenCount: process.CountTokens(part),
				Headings:   headings,
				Crawl:      crawlMeta,
			},
		})
	}
	return chunks
}
