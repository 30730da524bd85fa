package storage

import (
	"context"
	"time"

	"rag-crawl/pkg/models"
)

// DocumentStore persists documents and their chunks.
//
// Implementations must enforce the dedup invariant: within a namespace, at
// most one active document may carry a given content hash. The check must be
// read-then-write consistent, so two concurrent inserts of identical content
// never both create a document.
type DocumentStore interface {
	// FindActiveByHash returns the active document with the given content hash
	// in the namespace, or nil if none exists
	FindActiveByHash(namespace, contentHash string) (*models.Document, error)

	// CreateDocumentWithChunks persists a document and all its chunks as a
	// single atomic unit: either every row commits or none do.
	// Assigns document and chunk IDs. If an active document with the same
	// (namespace, content hash) already exists (including one created by a
	// concurrent insert), it is returned with created == false and nothing is
	// written.
	CreateDocumentWithChunks(doc *models.Document, chunks []models.DocumentChunk) (stored *models.Document, created bool, err error)

	// GetDocument retrieves a document by ID, or nil if not found
	GetDocument(id uint64) (*models.Document, error)

	// ListDocuments returns documents, newest first. Empty namespace lists all.
	ListDocuments(namespace string) ([]*models.Document, error)

	// GetChunks returns a document's chunks ordered by chunk index
	GetChunks(documentID uint64) ([]*models.DocumentChunk, error)

	// DeleteDocument soft-deletes a document (clears the active flag, freeing
	// its content hash for re-ingestion). Returns false if the document does
	// not exist or is already inactive.
	DeleteDocument(id uint64) (bool, error)
}

// StoreAdmin handles lifecycle and administrative operations
type StoreAdmin interface {
	// CountDocuments returns the number of active documents across all namespaces
	CountDocuments() (int, error)

	// RunGC runs periodic garbage collection. Should be run in a goroutine
	RunGC(ctx context.Context, interval time.Duration)

	// Close cleanly closes the database
	Close() error
}

// Store combines all store interfaces for components that need full access
type Store interface {
	DocumentStore
	StoreAdmin
}
