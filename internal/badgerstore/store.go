// Package badgerstore implements core.RecordStore on an embedded BadgerDB.
// It backs local runs of the CLI and every pipeline test.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/Lllllllleong/documentingest/internal/core"
	"github.com/Lllllllleong/documentingest/internal/models"
)

const (
	historySequenceBandwidth = 100
	maxConflictRetries       = 5
)

var _ core.RecordStore = (*Store)(nil)

// Store keeps documents, sections and status history in one BadgerDB.
type Store struct {
	db      *badger.DB
	histSeq *badger.Sequence
	logger  *slog.Logger
}

// badgerLogger routes badger's internal logging through slog.
type badgerLogger struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLogger)(nil)

func (l *badgerLogger) Errorf(msg string, items ...any)   { l.logger.Error(fmt.Sprintf(msg, items...)) }
func (l *badgerLogger) Warningf(msg string, items ...any) { l.logger.Warn(fmt.Sprintf(msg, items...)) }
func (l *badgerLogger) Infof(msg string, items ...any)    { l.logger.Debug(fmt.Sprintf(msg, items...)) }
func (l *badgerLogger) Debugf(msg string, items ...any)   { l.logger.Debug(fmt.Sprintf(msg, items...)) }

// Open opens (creating if needed) a store rooted at dir.
func Open(dir string) (*Store, error) {
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create badger dir %s: %w", dir, err)
		}
		info, err = os.Stat(dir)
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	return open(badger.DefaultOptions(dir))
}

// OpenInMemory opens a store that lives only as long as the process.
func OpenInMemory() (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true))
}

func open(opts badger.Options) (*Store, error) {
	logger := slog.Default().With("component", "badgerstore")
	opts.Logger = &badgerLogger{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger.Open: %w", err)
	}
	seq, err := db.GetSequence([]byte(historySeqKey), historySequenceBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("get history sequence: %w", err)
	}
	return &Store{db: db, histSeq: seq, logger: logger}, nil
}

// Close releases the history sequence and closes the database.
func (s *Store) Close() error {
	if err := s.histSeq.Release(); err != nil {
		s.logger.Warn("Failed to release history sequence.", "error", err)
	}
	return s.db.Close()
}

func (s *Store) GetDocument(ctx context.Context, documentKey string) (*models.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var doc models.Document
	err := s.db.View(func(tx *badger.Txn) error {
		return getJSON(tx, documentKeyBytes(documentKey), &doc)
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *Store) PutDocument(ctx context.Context, doc *models.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.update(func(tx *badger.Txn) error {
		return setJSON(tx, documentKeyBytes(doc.DocumentKey), doc)
	})
}

// UpdateDocumentStatus rewrites the status fields of an existing document.
// ErrorDetails is cleared unless the update carries one.
func (s *Store) UpdateDocumentStatus(ctx context.Context, documentKey string, update models.StatusUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := documentKeyBytes(documentKey)
	return s.update(func(tx *badger.Txn) error {
		var doc models.Document
		if err := getJSON(tx, key, &doc); err != nil {
			return err
		}
		doc.Status = update.Status
		doc.ErrorDetails = update.ErrorDetails
		doc.SectionCount = update.SectionCount
		doc.UpdatedAt = update.UpdatedAt
		return setJSON(tx, key, &doc)
	})
}

func (s *Store) PutSection(ctx context.Context, section *models.Section) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.update(func(tx *badger.Txn) error {
		return setJSON(tx, sectionKeyBytes(section.DocumentKey, section.SectionIndex), section)
	})
}

func (s *Store) ListSections(ctx context.Context, documentKey string) ([]models.Section, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sections := []models.Section{}
	err := s.db.View(func(tx *badger.Txn) error {
		return scanPrefix(tx, sectionPrefix(documentKey), func(item *badger.Item) error {
			var sec models.Section
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &sec) }); err != nil {
				return err
			}
			sections = append(sections, sec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return sections, nil
}

func (s *Store) DeleteSectionsAfter(ctx context.Context, documentKey string, n int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n < 0 {
		n = 0
	}
	var stale [][]byte
	err := s.db.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = sectionPrefix(documentKey)
		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Seek(sectionKeyBytes(documentKey, n+1)); it.Valid(); it.Next() {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil || len(stale) == 0 {
		return err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range stale {
		if err := wb.Delete(k); err != nil {
			return fmt.Errorf("delete stale section: %w", err)
		}
	}
	return wb.Flush()
}

func (s *Store) AppendStatusChange(ctx context.Context, change *models.StatusChange) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := s.histSeq.Next()
	if err != nil {
		return fmt.Errorf("next history id: %w", err)
	}
	return s.update(func(tx *badger.Txn) error {
		return setJSON(tx, historyKeyBytes(change.DocumentKey, n), change)
	})
}

func (s *Store) ListStatusChanges(ctx context.Context, documentKey string) ([]models.StatusChange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	changes := []models.StatusChange{}
	err := s.db.View(func(tx *badger.Txn) error {
		return scanPrefix(tx, historyPrefix(documentKey), func(item *badger.Item) error {
			var c models.StatusChange
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &c) }); err != nil {
				return err
			}
			changes = append(changes, c)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}

// update runs fn in a read-write transaction, retrying on write conflicts.
func (s *Store) update(fn func(tx *badger.Txn) error) error {
	var err error
	for range maxConflictRetries {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func getJSON(tx *badger.Txn, key []byte, v any) error {
	item, err := tx.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return core.ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error { return json.Unmarshal(val, v) })
}

func setJSON(tx *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}
	return tx.Set(key, data)
}

func scanPrefix(tx *badger.Txn, prefix []byte, fn func(item *badger.Item) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := tx.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		if err := fn(it.Item()); err != nil {
			return err
		}
	}
	return nil
}
