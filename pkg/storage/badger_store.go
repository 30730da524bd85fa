package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"rag-crawl/pkg/log"
	"rag-crawl/pkg/models"
	"rag-crawl/pkg/utils"
)

const (
	docKeyPrefix   = "doc:"   // doc:<id> -> Document JSON
	chunkKeyPrefix = "chunk:" // chunk:<docID>:<index> -> DocumentChunk JSON
	hashKeyPrefix  = "hash:"  // hash:<namespace>:<contentHash> -> docID (active docs only)
	documentsDBDir = "documents_db"

	idSequenceKey   = "seq:id"
	idSequenceLease = 100
)

// BadgerStore implements the Store interface using BadgerDB
type BadgerStore struct {
	db       *badger.DB
	seq      *badger.Sequence
	log      *logrus.Entry
	docCount atomic.Int64 // Cached active document count for O(1) CountDocuments
}

// NewBadgerStore initializes and returns a new BadgerStore rooted at stateDir
func NewBadgerStore(stateDir string, logger *logrus.Entry) (*BadgerStore, error) {
	dbPath := filepath.Join(stateDir, documentsDBDir)
	logger.Infof("Initializing document database at: %s", dbPath)

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("cannot create state directory %s: %w", dbPath, err)
	}

	badgerLogger := log.NewBadgerLogrusAdapter(logger.WithField("component", "badgerdb"))
	opts := badger.DefaultOptions(dbPath).
		WithLogger(badgerLogger).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", dbPath, err)
	}

	seq, err := db.GetSequence([]byte(idSequenceKey), idSequenceLease)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open ID sequence: %w", err)
	}

	store := &BadgerStore{db: db, seq: seq, log: logger}

	count, err := store.countActiveDocuments()
	if err != nil {
		logger.Warnf("Failed to count existing documents: %v", err)
	} else {
		store.docCount.Store(int64(count))
		if count > 0 {
			logger.Infof("Loaded existing active document count: %d", count)
		}
	}

	logger.Info("Document database initialized successfully.")
	return store, nil
}

func docKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", docKeyPrefix, id))
}

func chunkKey(docID uint64, index int) []byte {
	return []byte(fmt.Sprintf("%s%020d:%06d", chunkKeyPrefix, docID, index))
}

func hashKey(namespace, contentHash string) []byte {
	return []byte(hashKeyPrefix + namespace + ":" + contentHash)
}

// countActiveDocuments performs a one-time full scan (used only during initialization)
func (s *BadgerStore) countActiveDocuments() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(hashKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction conflicts.
// Concurrent MVCC transactions on overlapping keys can return badger.ErrConflict;
// these resolve in microseconds, so a tight retry loop is sufficient.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// nextID reserves a fresh identifier from the shared sequence
func (s *BadgerStore) nextID() (uint64, error) {
	id, err := s.seq.Next()
	if err != nil {
		return 0, fmt.Errorf("%w: reserving ID: %w", utils.ErrDatabase, err)
	}
	// Sequence starts at 0; document and chunk IDs start at 1
	return id + 1, nil
}

// FindActiveByHash implements the DocumentStore interface
func (s *BadgerStore) FindActiveByHash(namespace, contentHash string) (*models.Document, error) {
	var doc *models.Document
	key := hashKey(namespace, contentHash)

	err := s.db.View(func(txn *badger.Txn) error {
		item, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil // No active document with this hash
		}
		if errGet != nil {
			return fmt.Errorf("%w: getting hash index '%s': %w", utils.ErrDatabase, string(key), errGet)
		}
		return item.Value(func(val []byte) error {
			var docID uint64
			if _, errScan := fmt.Sscanf(string(val), "%d", &docID); errScan != nil {
				return fmt.Errorf("%w: corrupt hash index value %q: %w", utils.ErrDatabase, string(val), errScan)
			}
			loaded, errLoad := getDocumentTxn(txn, docID)
			if errLoad != nil {
				return errLoad
			}
			doc = loaded
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// getDocumentTxn loads and decodes a document inside an open transaction
func getDocumentTxn(txn *badger.Txn, id uint64) (*models.Document, error) {
	item, err := txn.Get(docKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: getting document %d: %w", utils.ErrDatabase, id, err)
	}
	var doc models.Document
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &doc)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: decoding document %d: %w", utils.ErrDatabase, id, err)
	}
	return &doc, nil
}

// CreateDocumentWithChunks implements the DocumentStore interface.
// The dedup check and all writes happen inside one transaction, so concurrent
// ingestion of identical content in the same namespace resolves to a single
// active document.
func (s *BadgerStore) CreateDocumentWithChunks(doc *models.Document, chunks []models.DocumentChunk) (*models.Document, bool, error) {
	if doc.Namespace == "" || doc.ContentHash == "" {
		return nil, false, fmt.Errorf("%w: document requires namespace and content hash", utils.ErrDatabase)
	}

	docID, err := s.nextID()
	if err != nil {
		return nil, false, err
	}

	// Reserve chunk IDs up front; sequence gaps on a dedup hit are harmless
	chunkIDs := make([]uint64, len(chunks))
	for i := range chunks {
		chunkIDs[i], err = s.nextID()
		if err != nil {
			return nil, false, err
		}
	}

	now := time.Now().UTC()
	stored := *doc
	stored.ID = docID
	stored.ChunksCount = len(chunks)
	stored.IsActive = true
	stored.CreatedAt = now

	var existing *models.Document
	hKey := hashKey(doc.Namespace, doc.ContentHash)

	err = s.dbUpdate(func(txn *badger.Txn) error {
		existing = nil

		// Dedup check inside the write transaction
		item, errGet := txn.Get(hKey)
		if errGet == nil {
			return item.Value(func(val []byte) error {
				var existingID uint64
				if _, errScan := fmt.Sscanf(string(val), "%d", &existingID); errScan != nil {
					return fmt.Errorf("%w: corrupt hash index value %q: %w", utils.ErrDatabase, string(val), errScan)
				}
				loaded, errLoad := getDocumentTxn(txn, existingID)
				if errLoad != nil {
					return errLoad
				}
				existing = loaded
				return nil
			})
		}
		if !errors.Is(errGet, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: checking hash index: %w", utils.ErrDatabase, errGet)
		}

		docBytes, errEnc := json.Marshal(&stored)
		if errEnc != nil {
			return fmt.Errorf("%w: encoding document: %w", utils.ErrDatabase, errEnc)
		}
		if errSet := txn.Set(docKey(docID), docBytes); errSet != nil {
			return fmt.Errorf("%w: writing document %d: %w", utils.ErrDatabase, docID, errSet)
		}

		for i := range chunks {
			chunk := chunks[i]
			chunk.ID = chunkIDs[i]
			chunk.DocumentID = docID
			chunk.Metadata.DocumentID = docID
			chunk.CreatedAt = now
			chunkBytes, errEnc := json.Marshal(&chunk)
			if errEnc != nil {
				return fmt.Errorf("%w: encoding chunk %d: %w", utils.ErrDatabase, chunk.ChunkIndex, errEnc)
			}
			if errSet := txn.Set(chunkKey(docID, chunk.ChunkIndex), chunkBytes); errSet != nil {
				return fmt.Errorf("%w: writing chunk %d: %w", utils.ErrDatabase, chunk.ChunkIndex, errSet)
			}
		}

		return txn.Set(hKey, []byte(fmt.Sprintf("%d", docID)))
	})
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		s.log.Debugf("Document with hash %s already active in namespace %s (id=%d)",
			doc.ContentHash, doc.Namespace, existing.ID)
		return existing, false, nil
	}

	s.docCount.Add(1)
	return &stored, true, nil
}

// GetDocument implements the DocumentStore interface
func (s *BadgerStore) GetDocument(id uint64) (*models.Document, error) {
	var doc *models.Document
	err := s.db.View(func(txn *badger.Txn) error {
		loaded, errLoad := getDocumentTxn(txn, id)
		if errLoad != nil {
			return errLoad
		}
		doc = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ListDocuments implements the DocumentStore interface
func (s *BadgerStore) ListDocuments(namespace string) ([]*models.Document, error) {
	var docs []*models.Document
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(docKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			errVal := it.Item().Value(func(val []byte) error {
				var doc models.Document
				if errJSON := json.Unmarshal(val, &doc); errJSON != nil {
					s.log.Warnf("Skipping undecodable document at key '%s': %v", string(it.Item().Key()), errJSON)
					return nil
				}
				if namespace == "" || doc.Namespace == namespace {
					docs = append(docs, &doc)
				}
				return nil
			})
			if errVal != nil {
				return fmt.Errorf("%w: reading document value: %w", utils.ErrDatabase, errVal)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Keys iterate in ID order; newest first for callers
	for i, j := 0, len(docs)-1; i < j; i, j = i+1, j-1 {
		docs[i], docs[j] = docs[j], docs[i]
	}
	return docs, nil
}

// GetChunks implements the DocumentStore interface
func (s *BadgerStore) GetChunks(documentID uint64) ([]*models.DocumentChunk, error) {
	var chunks []*models.DocumentChunk
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(fmt.Sprintf("%s%020d:", chunkKeyPrefix, documentID))
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			errVal := it.Item().Value(func(val []byte) error {
				var chunk models.DocumentChunk
				if errJSON := json.Unmarshal(val, &chunk); errJSON != nil {
					return fmt.Errorf("%w: decoding chunk at key '%s': %w", utils.ErrDatabase, string(it.Item().Key()), errJSON)
				}
				chunks = append(chunks, &chunk)
				return nil
			})
			if errVal != nil {
				return errVal
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// DeleteDocument implements the DocumentStore interface.
// Soft delete: the row stays, the active flag clears, and the hash index entry
// is removed so identical content can be re-ingested.
func (s *BadgerStore) DeleteDocument(id uint64) (bool, error) {
	deleted := false
	err := s.dbUpdate(func(txn *badger.Txn) error {
		deleted = false
		doc, errLoad := getDocumentTxn(txn, id)
		if errLoad != nil {
			return errLoad
		}
		if doc == nil || !doc.IsActive {
			return nil
		}

		doc.IsActive = false
		doc.UpdatedAt = time.Now().UTC()
		docBytes, errEnc := json.Marshal(doc)
		if errEnc != nil {
			return fmt.Errorf("%w: encoding document %d: %w", utils.ErrDatabase, id, errEnc)
		}
		if errSet := txn.Set(docKey(id), docBytes); errSet != nil {
			return fmt.Errorf("%w: updating document %d: %w", utils.ErrDatabase, id, errSet)
		}
		if errDel := txn.Delete(hashKey(doc.Namespace, doc.ContentHash)); errDel != nil {
			return fmt.Errorf("%w: removing hash index for document %d: %w", utils.ErrDatabase, id, errDel)
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if deleted {
		s.docCount.Add(-1)
	}
	return deleted, nil
}

// CountDocuments implements the StoreAdmin interface.
// Returns the cached count (O(1)) maintained by atomic increments on writes.
func (s *BadgerStore) CountDocuments() (int, error) {
	return int(s.docCount.Load()), nil
}

// RunGC runs BadgerDB's garbage collection periodically
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute // Default interval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("BadgerDB GC goroutine started.")

	for {
		select {
		case <-ticker.C:
			if s.db == nil || s.db.IsClosed() {
				s.log.Info("DB GC: Database is nil or closed, skipping GC cycle.")
				continue
			}

			s.log.Debug("Running BadgerDB value log garbage collection...")
			var err error
			// Loop GC until it returns ErrNoRewrite or another error
			for {
				err = s.db.RunValueLogGC(0.5)
				if err != nil {
					break
				}
			}
			if !errors.Is(err, badger.ErrNoRewrite) {
				s.log.Errorf("BadgerDB GC error: %v", err)
			}

		case <-ctx.Done():
			s.log.Infof("Stopping BadgerDB garbage collection goroutine: %v", ctx.Err())
			return
		}
	}
}

// Close cleanly releases the ID sequence and closes the database
func (s *BadgerStore) Close() error {
	if s.db == nil || s.db.IsClosed() {
		return nil
	}
	if s.seq != nil {
		if err := s.seq.Release(); err != nil {
			s.log.Warnf("Failed to release ID sequence: %v", err)
		}
	}
	s.log.Info("Closing document database...")
	return s.db.Close()
}
