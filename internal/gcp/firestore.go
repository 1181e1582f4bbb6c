package gcp

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Lllllllleong/documentingest/internal/core"
	"github.com/Lllllllleong/documentingest/internal/models"
)

const (
	sectionsCollection = "sections"
	historyCollection  = "history"
	// historyCounterID is the history document holding the next sequence
	// number. It has no seq field, so seq-ordered queries never return it.
	historyCounterID = "_counter"
)

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

var _ core.RecordStore = (*FirestoreRecordStore)(nil)

// FirestoreRecordStore keeps one master document per document key in a
// collection. Sections and status history live in subcollections of it.
type FirestoreRecordStore struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreRecordStore(client *firestore.Client, collection string) *FirestoreRecordStore {
	return &FirestoreRecordStore{client: client, collection: collection}
}

// docRef maps a document key to a Firestore ID. Keys contain slashes, which
// Firestore treats as path separators, so the key is escaped.
func (s *FirestoreRecordStore) docRef(documentKey string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(url.PathEscape(documentKey))
}

func sectionDocID(index int) string {
	return fmt.Sprintf("%05d", index)
}

func (s *FirestoreRecordStore) GetDocument(ctx context.Context, documentKey string) (*models.Document, error) {
	snap, err := s.docRef(documentKey).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	var doc models.Document
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return &doc, nil
}

func (s *FirestoreRecordStore) PutDocument(ctx context.Context, doc *models.Document) error {
	if _, err := s.docRef(doc.DocumentKey).Set(ctx, doc); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}

func (s *FirestoreRecordStore) UpdateDocumentStatus(ctx context.Context, documentKey string, u models.StatusUpdate) error {
	updates := []firestore.Update{
		{Path: "status", Value: u.Status},
		{Path: "sectionCount", Value: u.SectionCount},
		{Path: "updatedAt", Value: u.UpdatedAt},
	}
	if u.ErrorDetails != "" {
		updates = append(updates, firestore.Update{Path: "errorDetails", Value: u.ErrorDetails})
	} else {
		updates = append(updates, firestore.Update{Path: "errorDetails", Value: firestore.Delete})
	}
	_, err := s.docRef(documentKey).Update(ctx, updates)
	if status.Code(err) == codes.NotFound {
		return core.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	return nil
}

func (s *FirestoreRecordStore) PutSection(ctx context.Context, section *models.Section) error {
	ref := s.docRef(section.DocumentKey).Collection(sectionsCollection).Doc(sectionDocID(section.SectionIndex))
	if _, err := ref.Set(ctx, section); err != nil {
		return fmt.Errorf("failed to write section %d: %w", section.SectionIndex, err)
	}
	return nil
}

func (s *FirestoreRecordStore) ListSections(ctx context.Context, documentKey string) ([]models.Section, error) {
	iter := s.docRef(documentKey).Collection(sectionsCollection).OrderBy("sectionIndex", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	sections := []models.Section{}
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate sections: %w", err)
		}
		var sec models.Section
		if err := snap.DataTo(&sec); err != nil {
			return nil, fmt.Errorf("failed to decode section %s: %w", snap.Ref.ID, err)
		}
		sections = append(sections, sec)
	}
	return sections, nil
}

func (s *FirestoreRecordStore) DeleteSectionsAfter(ctx context.Context, documentKey string, n int) error {
	iter := s.docRef(documentKey).Collection(sectionsCollection).Where("sectionIndex", ">", n).Documents(ctx)
	defer iter.Stop()

	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to iterate stale sections: %w", err)
		}
		if _, err := snap.Ref.Delete(ctx); err != nil {
			return fmt.Errorf("failed to delete section %s: %w", snap.Ref.ID, err)
		}
	}
}

// AppendStatusChange stores change under the next per-document sequence
// number, assigned in a transaction so concurrent appends never share one.
func (s *FirestoreRecordStore) AppendStatusChange(ctx context.Context, change *models.StatusChange) error {
	history := s.docRef(change.DocumentKey).Collection(historyCollection)
	counter := history.Doc(historyCounterID)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		next := int64(1)
		snap, err := tx.Get(counter)
		switch {
		case err == nil:
			v, err := snap.DataAt("next")
			if err != nil {
				return err
			}
			if n, ok := v.(int64); ok {
				next = n
			}
		case status.Code(err) != codes.NotFound:
			return err
		}

		row := *change
		row.Seq = next
		if err := tx.Set(counter, map[string]any{"next": next + 1}); err != nil {
			return err
		}
		return tx.Create(history.Doc(historyDocID(next)), row)
	})
	if err != nil {
		return fmt.Errorf("failed to append status change: %w", err)
	}
	return nil
}

func historyDocID(seq int64) string {
	return fmt.Sprintf("%010d", seq)
}

func (s *FirestoreRecordStore) ListStatusChanges(ctx context.Context, documentKey string) ([]models.StatusChange, error) {
	snaps, err := s.docRef(documentKey).Collection(historyCollection).OrderBy("seq", firestore.Asc).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query status history: %w", err)
	}
	changes := make([]models.StatusChange, 0, len(snaps))
	for _, snap := range snaps {
		var c models.StatusChange
		if err := snap.DataTo(&c); err != nil {
			return nil, fmt.Errorf("failed to decode status change %s: %w", snap.Ref.ID, err)
		}
		changes = append(changes, c)
	}
	return changes, nil
}

func (s *FirestoreRecordStore) Close() error {
	return s.client.Close()
}
