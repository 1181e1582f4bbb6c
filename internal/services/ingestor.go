package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/documentingest/internal/core"
	"github.com/Lllllllleong/documentingest/internal/models"
	"github.com/Lllllllleong/documentingest/internal/parser"
)

const (
	defaultDocumentType     = "Policy"
	defaultWriteConcurrency = 10
	unknownUploader         = "Unknown"
)

type IngestionConfig struct {
	DocumentType            string
	SectionWriteConcurrency int
	Timeout                 time.Duration
}

// IngestionFunction runs one end-to-end ingestion per arrival event.
type IngestionFunction struct {
	objects  core.ObjectStore
	records  core.RecordStore
	parser   *parser.Parser
	notifier core.Notifier
	dedup    *DedupGuard
	tracker  *StatusTracker
	config   IngestionConfig
}

// Option customizes an IngestionFunction.
type Option func(*IngestionFunction)

// WithParser replaces the default parser.
func WithParser(p *parser.Parser) Option {
	return func(f *IngestionFunction) { f.parser = p }
}

// WithNotifier hands every Completed document to n.
func WithNotifier(n core.Notifier) Option {
	return func(f *IngestionFunction) { f.notifier = n }
}

func NewIngestion(cfg IngestionConfig, objects core.ObjectStore, records core.RecordStore, opts ...Option) (*IngestionFunction, error) {
	if objects == nil {
		return nil, ErrObjectStoreRequired
	}
	if records == nil {
		return nil, ErrRecordStoreRequired
	}
	if cfg.DocumentType == "" {
		cfg.DocumentType = defaultDocumentType
	}
	if cfg.SectionWriteConcurrency <= 0 {
		cfg.SectionWriteConcurrency = defaultWriteConcurrency
	}

	f := &IngestionFunction{
		objects: objects,
		records: records,
		parser:  parser.New(),
		dedup:   NewDedupGuard(records),
		tracker: NewStatusTracker(records),
		config:  cfg,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.parser == nil {
		return nil, ErrParserRequired
	}
	return f, nil
}

// Tracker exposes the status tracker so read paths share its view of a document.
func (f *IngestionFunction) Tracker() *StatusTracker { return f.tracker }

// Process ingests the object named by e. A document that is already Completed
// is skipped with a nil error. Every other failure is returned so the caller's
// delivery mechanism can retry.
func (f *IngestionFunction) Process(ctx context.Context, e models.ArrivalEvent) (*models.IngestResult, error) {
	if f.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.config.Timeout)
		defer cancel()
	}

	loc := e.StorageLocation
	documentKey := e.DocumentKey()
	logCtx := slog.With("documentKey", documentKey)
	logCtx.Info("Processing new storage object.")

	format, err := parser.FormatFromKey(documentKey)
	if err != nil {
		logCtx.Warn("Rejected object with unsupported file type.", "error", err)
		return nil, err
	}

	meta, err := f.objects.HeadMetadata(ctx, loc.ContainerName, loc.ObjectKey)
	if err != nil {
		logCtx.Error("Failed to fetch object metadata", "error", err)
		return nil, &MetadataFetchError{DocumentKey: documentKey, Err: err}
	}

	done, existing, err := f.dedup.AlreadyProcessed(ctx, documentKey)
	if err != nil {
		logCtx.Error("Failed to check for an existing record", "error", err)
		return nil, err
	}
	if done {
		logCtx.Info("Document already completed. Skipping.", "attemptId", existing.AttemptID)
		return skipped(existing), nil
	}

	doc := &models.Document{
		DocumentKey: documentKey,
		Container:   loc.ContainerName,
		ObjectKey:   loc.ObjectKey,
		Format:      format,
		SizeBytes:   meta.SizeBytes,
		UploadedAt:  meta.LastModified,
		UploadedBy:  meta.UploaderTag,
	}
	if doc.UploadedBy == "" {
		doc.UploadedBy = unknownUploader
	}
	if err := f.tracker.Begin(ctx, doc); err != nil {
		var te *TransitionError
		if errors.As(err, &te) && te.From == models.StatusCompleted {
			// A concurrent delivery finished first.
			logCtx.Info("Document completed by a concurrent delivery. Skipping.")
			completed, getErr := f.records.GetDocument(ctx, documentKey)
			if getErr == nil {
				return skipped(completed), nil
			}
		}
		logCtx.Error("Failed to mark document as processing", "error", err)
		return nil, err
	}
	logCtx = logCtx.With("attemptId", doc.AttemptID, "attempt", doc.Attempts)
	logCtx.Info("Marked document as processing.", "format", format)

	content, err := f.fetchContent(ctx, loc)
	if err != nil {
		return nil, f.handleError(ctx, logCtx, documentKey, "failed to fetch content", &ContentFetchError{DocumentKey: documentKey, Err: err})
	}
	sum := sha256.Sum256(content)
	doc.ContentHash = hex.EncodeToString(sum[:])
	owned, err := f.tracker.RecordContentHash(ctx, doc)
	if err != nil {
		return nil, f.handleError(ctx, logCtx, documentKey, "failed to record content hash", err)
	}
	if !owned {
		logCtx.Warn("Record taken over by a concurrent delivery. Content hash not recorded.")
	}

	raw, err := f.parser.Parse(documentKey, format, content)
	if err != nil {
		return nil, f.handleError(ctx, logCtx, documentKey, "failed to parse content", err)
	}
	sections := NormalizeSections(doc, raw, ProvenanceFor(doc, f.config.DocumentType))
	logCtx.Info("Parsed document into sections.", "sectionCount", len(sections))

	if err := f.writeSections(ctx, logCtx, sections); err != nil {
		return nil, f.handleError(ctx, logCtx, documentKey, "one or more sections failed to write", err)
	}
	if err := f.records.DeleteSectionsAfter(ctx, documentKey, len(sections)); err != nil {
		return nil, f.handleError(ctx, logCtx, documentKey, "failed to prune stale sections", &PersistenceError{Op: "delete sections", DocumentKey: documentKey, Err: err})
	}

	if err := f.tracker.Complete(ctx, documentKey, len(sections)); err != nil {
		return nil, f.handleError(ctx, logCtx, documentKey, "failed to mark document as completed", err)
	}
	doc.Status = models.StatusCompleted
	doc.SectionCount = len(sections)
	logCtx.Info("Document ingestion completed.", "sectionCount", len(sections))

	if f.notifier != nil {
		if err := f.notifier.NotifyCompleted(ctx, doc); err != nil {
			logCtx.Error("Failed to notify downstream consumers", "error", err)
		} else {
			logCtx.Info("Hand-off to downstream workflow complete.")
		}
	}

	return &models.IngestResult{
		DocumentKey:  documentKey,
		Status:       models.StatusCompleted,
		SectionCount: len(sections),
		AttemptID:    doc.AttemptID,
	}, nil
}

func (f *IngestionFunction) fetchContent(ctx context.Context, loc models.StorageLocation) ([]byte, error) {
	rc, err := f.objects.GetContent(ctx, loc.ContainerName, loc.ObjectKey)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read object content: %w", err)
	}
	return content, nil
}

func (f *IngestionFunction) writeSections(ctx context.Context, logCtx *slog.Logger, sections []models.Section) error {
	logCtx.Info("Starting concurrent write of sections.", "sectionCount", len(sections))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(f.config.SectionWriteConcurrency)

	for i := range sections {
		section := &sections[i]
		eg.Go(func() error {
			if err := f.records.PutSection(gctx, section); err != nil {
				return &PersistenceError{
					Op:          fmt.Sprintf("put section %d", section.SectionIndex),
					DocumentKey: section.DocumentKey,
					Err:         err,
				}
			}
			return nil
		})
	}
	return eg.Wait()
}

// handleError records an attempt failure as Error status and returns the
// original error. When the status write itself fails the document is left
// Processing and retryable.
func (f *IngestionFunction) handleError(ctx context.Context, logCtx *slog.Logger, documentKey, message string, originalErr error) error {
	logCtx.Error(message, "error", originalErr)
	if err := f.tracker.Fail(ctx, documentKey, fmt.Errorf("%s: %w", message, originalErr)); err != nil {
		logCtx.Error("CRITICAL: Failed to update status to Error after a processing error.", "updateError", err)
	}
	return originalErr
}

func skipped(doc *models.Document) *models.IngestResult {
	return &models.IngestResult{
		DocumentKey:  doc.DocumentKey,
		Status:       doc.Status,
		SectionCount: doc.SectionCount,
		AttemptID:    doc.AttemptID,
		Skipped:      true,
	}
}
