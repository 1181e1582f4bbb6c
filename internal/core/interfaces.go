package core

import (
	"context"
	"io"

	"github.com/Lllllllleong/documentingest/internal/models"
)

// ObjectStore defines read access to the blob storage holding uploaded files.
type ObjectStore interface {
	HeadMetadata(ctx context.Context, container, key string) (*models.ObjectMetadata, error)
	GetContent(ctx context.Context, container, key string) (io.ReadCloser, error)
}

// RecordStore defines all persistence operations the ingestion pipeline needs.
// Documents are addressed by document key, sections by (document key, index).
type RecordStore interface {
	// GetDocument returns ErrNotFound when no record exists for the key.
	GetDocument(ctx context.Context, documentKey string) (*models.Document, error)
	PutDocument(ctx context.Context, doc *models.Document) error
	UpdateDocumentStatus(ctx context.Context, documentKey string, update models.StatusUpdate) error

	// PutSection overwrites any section already stored at the same index.
	PutSection(ctx context.Context, section *models.Section) error
	// ListSections returns sections ordered by index.
	ListSections(ctx context.Context, documentKey string) ([]models.Section, error)
	// DeleteSectionsAfter removes every section with an index greater than n.
	DeleteSectionsAfter(ctx context.Context, documentKey string, n int) error

	AppendStatusChange(ctx context.Context, change *models.StatusChange) error
	// ListStatusChanges returns the audit history of a document, oldest first.
	ListStatusChanges(ctx context.Context, documentKey string) ([]models.StatusChange, error)

	Close() error
}

// Notifier hands a completed document over to downstream consumers.
type Notifier interface {
	NotifyCompleted(ctx context.Context, doc *models.Document) error
}
