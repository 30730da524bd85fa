package ingest

import (
	"fmt"

	"github.com/google/uuid"

	"rag-crawl/pkg/models"
	"rag-crawl/pkg/process"
	"rag-crawl/pkg/utils"
)

// IngestFile ingests an uploaded file (txt, md, html) into a namespace.
// Markdown-bearing files are split along heading boundaries; plain text uses
// the same boundary-aware splitter as web content. Dedup semantics match
// IngestPage: identical content resolves to the existing active document.
func (p *Pipeline) IngestFile(filename string, content []byte, namespace string) (*models.Document, bool, error) {
	extracted, err := process.ExtractFileText(filename, content)
	if err != nil {
		return nil, false, err
	}

	cleaned := process.CleanWebContent(extracted.Text)
	if cleaned == "" {
		return nil, false, fmt.Errorf("%w: no text content in %q", utils.ErrUnsupportedFile, filename)
	}
	contentHash := utils.ContentHash(cleaned)

	existing, err := p.store.FindActiveByHash(namespace, contentHash)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		p.log.Infof("Skipping file %s (%s): document %d already active",
			filename, utils.CategorizeError(utils.ErrDuplicateContent), existing.ID)
		return existing, false, nil
	}

	var parts []string
	if extracted.Markdown {
		parts, err = process.SplitMarkdown(cleaned, process.MarkdownSplitConfig{
			MaxChunkSize: p.cfg.FileChunkSize,
			ChunkOverlap: p.cfg.FileChunkOverlap,
		})
	} else {
		parts, err = process.SplitChunks(cleaned, p.cfg.WebChunkSize, p.cfg.WebChunkOverlap)
	}
	if err != nil {
		return nil, false, fmt.Errorf("splitting %q: %w", filename, err)
	}

	var headings []string
	if extracted.Markdown {
		headings = process.ExtractHeadings([]byte(cleaned))
	}

	doc := &models.Document{
		Title:       utils.SanitizeFilename(filename),
		SourceType:  extracted.SourceType,
		Namespace:   namespace,
		ContentHash: contentHash,
		VectorID:    uuid.New().String(),
	}

	chunks := buildChunks(parts, "file_content", headings, nil)

	stored, created, err := p.store.CreateDocumentWithChunks(doc, chunks)
	if err != nil {
		return nil, false, err
	}
	p.log.Infof("Ingested file %s as document %d (%d chunks, created=%v)",
		filename, stored.ID, stored.ChunksCount, created)
	return stored, created, nil
}
