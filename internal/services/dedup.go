package services

import (
	"context"
	"errors"

	"github.com/Lllllllleong/documentingest/internal/core"
	"github.com/Lllllllleong/documentingest/internal/models"
)

// DedupGuard decides whether a document key has already been ingested.
// It is a point read, not a lock: two concurrent first deliveries can both pass.
type DedupGuard struct {
	records core.RecordStore
}

func NewDedupGuard(records core.RecordStore) *DedupGuard {
	return &DedupGuard{records: records}
}

// AlreadyProcessed reports true only for a Completed record. A record left in
// Error or Processing is returned with false so the caller can retry it.
func (g *DedupGuard) AlreadyProcessed(ctx context.Context, documentKey string) (bool, *models.Document, error) {
	doc, err := g.records.GetDocument(ctx, documentKey)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, &PersistenceError{Op: "get document", DocumentKey: documentKey, Err: err}
	}
	return doc.Status == models.StatusCompleted, doc, nil
}
