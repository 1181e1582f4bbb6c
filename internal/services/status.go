package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Lllllllleong/documentingest/internal/core"
	"github.com/Lllllllleong/documentingest/internal/models"
)

// StatusTracker owns every status write. Each transition is validated against
// the current persisted status and recorded in the document's history.
type StatusTracker struct {
	records core.RecordStore
	now     func() time.Time
	newID   func() string
}

func NewStatusTracker(records core.RecordStore) *StatusTracker {
	return &StatusTracker{
		records: records,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

// CanTransition reports whether the state machine allows moving from one status
// to another. A document with no record is Pending. Completed is terminal.
func CanTransition(from, to models.Status) bool {
	switch from {
	case models.StatusPending:
		return to == models.StatusProcessing
	case models.StatusProcessing:
		return to == models.StatusProcessing || to == models.StatusCompleted || to == models.StatusError
	case models.StatusError:
		return to == models.StatusProcessing || to == models.StatusError
	case models.StatusCompleted:
		return to == models.StatusCompleted
	}
	return false
}

// GetStatus returns the persisted status of a document. found is false when
// no record exists.
func (t *StatusTracker) GetStatus(ctx context.Context, documentKey string) (models.Status, bool, error) {
	doc, err := t.current(ctx, documentKey)
	if err != nil {
		return "", false, err
	}
	if doc == nil {
		return models.StatusPending, false, nil
	}
	return doc.Status, true, nil
}

// SetStatus moves a document to the given status, creating its record when
// entering Processing for the first time. Rewriting the current status is a no-op
// for Completed and refreshes details otherwise.
func (t *StatusTracker) SetStatus(ctx context.Context, documentKey string, to models.Status, details string) error {
	doc, err := t.current(ctx, documentKey)
	if err != nil {
		return err
	}
	from := statusOf(doc)
	if !CanTransition(from, to) {
		return &TransitionError{DocumentKey: documentKey, From: from, To: to}
	}
	if from == models.StatusCompleted {
		return nil
	}

	now := t.now()
	if doc == nil {
		doc = &models.Document{DocumentKey: documentKey, Status: to, CreatedAt: now, UpdatedAt: now, Attempts: 1, AttemptID: t.newID()}
		if err := t.records.PutDocument(ctx, doc); err != nil {
			return &PersistenceError{Op: "put document", DocumentKey: documentKey, Err: err}
		}
	} else {
		update := models.StatusUpdate{Status: to, ErrorDetails: details, SectionCount: doc.SectionCount, UpdatedAt: now}
		if err := t.records.UpdateDocumentStatus(ctx, documentKey, update); err != nil {
			return &PersistenceError{Op: "update status", DocumentKey: documentKey, Err: err}
		}
	}
	t.record(ctx, documentKey, from, to, doc.AttemptID, details)
	return nil
}

// Begin starts a new attempt for doc: it stamps a fresh AttemptID, bumps the
// attempt count and writes the full record as Processing. Metadata from an
// earlier attempt is replaced, except for the creation time.
func (t *StatusTracker) Begin(ctx context.Context, doc *models.Document) error {
	prev, err := t.current(ctx, doc.DocumentKey)
	if err != nil {
		return err
	}
	from := statusOf(prev)
	if !CanTransition(from, models.StatusProcessing) {
		return &TransitionError{DocumentKey: doc.DocumentKey, From: from, To: models.StatusProcessing}
	}

	now := t.now()
	doc.Status = models.StatusProcessing
	doc.AttemptID = t.newID()
	doc.ErrorDetails = ""
	doc.SectionCount = 0
	doc.Attempts = 1
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if prev != nil {
		doc.Attempts = prev.Attempts + 1
		doc.CreatedAt = prev.CreatedAt
	}
	if err := t.records.PutDocument(ctx, doc); err != nil {
		return &PersistenceError{Op: "put document", DocumentKey: doc.DocumentKey, Err: err}
	}
	t.record(ctx, doc.DocumentKey, from, models.StatusProcessing, doc.AttemptID, "")
	return nil
}

// RecordContentHash rewrites doc, now carrying its content hash, as long as
// doc's attempt still owns a Processing record. It reports false without
// writing when another delivery has taken the record over. UpdatedAt is left
// at the attempt's start.
func (t *StatusTracker) RecordContentHash(ctx context.Context, doc *models.Document) (bool, error) {
	cur, err := t.current(ctx, doc.DocumentKey)
	if err != nil {
		return false, err
	}
	if cur == nil || cur.Status != models.StatusProcessing || cur.AttemptID != doc.AttemptID {
		return false, nil
	}
	if err := t.records.PutDocument(ctx, doc); err != nil {
		return false, &PersistenceError{Op: "put document", DocumentKey: doc.DocumentKey, Err: err}
	}
	return true, nil
}

// Complete certifies that sections 1..sectionCount are stored. Completing an
// already Completed document with the same count is a no-op.
func (t *StatusTracker) Complete(ctx context.Context, documentKey string, sectionCount int) error {
	doc, err := t.current(ctx, documentKey)
	if err != nil {
		return err
	}
	from := statusOf(doc)
	if from == models.StatusCompleted && doc.SectionCount == sectionCount {
		return nil
	}
	if from != models.StatusProcessing {
		return &TransitionError{DocumentKey: documentKey, From: from, To: models.StatusCompleted}
	}

	update := models.StatusUpdate{Status: models.StatusCompleted, SectionCount: sectionCount, UpdatedAt: t.now()}
	if err := t.records.UpdateDocumentStatus(ctx, documentKey, update); err != nil {
		return &PersistenceError{Op: "update status", DocumentKey: documentKey, Err: err}
	}
	t.record(ctx, documentKey, from, models.StatusCompleted, doc.AttemptID, "")
	return nil
}

// Fail records cause as the error details of a Processing document.
func (t *StatusTracker) Fail(ctx context.Context, documentKey string, cause error) error {
	details := ""
	if cause != nil {
		details = cause.Error()
	}
	doc, err := t.current(ctx, documentKey)
	if err != nil {
		return err
	}
	from := statusOf(doc)
	if from != models.StatusProcessing {
		return &TransitionError{DocumentKey: documentKey, From: from, To: models.StatusError}
	}

	update := models.StatusUpdate{Status: models.StatusError, ErrorDetails: details, UpdatedAt: t.now()}
	if err := t.records.UpdateDocumentStatus(ctx, documentKey, update); err != nil {
		return &PersistenceError{Op: "update status", DocumentKey: documentKey, Err: err}
	}
	t.record(ctx, documentKey, from, models.StatusError, doc.AttemptID, details)
	return nil
}

// History returns the recorded transitions of a document, oldest first.
func (t *StatusTracker) History(ctx context.Context, documentKey string) ([]models.StatusChange, error) {
	changes, err := t.records.ListStatusChanges(ctx, documentKey)
	if err != nil {
		return nil, &PersistenceError{Op: "list status changes", DocumentKey: documentKey, Err: err}
	}
	return changes, nil
}

func (t *StatusTracker) current(ctx context.Context, documentKey string) (*models.Document, error) {
	doc, err := t.records.GetDocument(ctx, documentKey)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "get document", DocumentKey: documentKey, Err: err}
	}
	return doc, nil
}

// record appends an audit row. The status field is authoritative, so a failed
// append is logged and not returned.
func (t *StatusTracker) record(ctx context.Context, documentKey string, from, to models.Status, attemptID, details string) {
	change := &models.StatusChange{
		DocumentKey: documentKey,
		From:        from,
		To:          to,
		AttemptID:   attemptID,
		Details:     details,
		At:          t.now(),
	}
	if err := t.records.AppendStatusChange(ctx, change); err != nil {
		slog.Warn("Failed to append status history.", "documentKey", documentKey, "to", to, "error", err)
	}
}

func statusOf(doc *models.Document) models.Status {
	if doc == nil {
		return models.StatusPending
	}
	return doc.Status
}
