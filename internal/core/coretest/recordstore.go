// Package coretest holds behavior checks shared by every core.RecordStore
// implementation.
package coretest

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/documentingest/internal/core"
	"github.com/Lllllllleong/documentingest/internal/models"
)

// Timestamps are compared to this precision; postgres keeps microseconds.
const timePrecision = time.Millisecond

// RunRecordStore exercises store against the RecordStore contract. Keys are
// unique per run, so a shared database can be reused across runs.
func RunRecordStore(t *testing.T, store core.RecordStore) {
	t.Helper()
	run := time.Now().UnixNano()
	key := func(t *testing.T) string {
		return fmt.Sprintf("contract-%d/%s.txt", run, strings.ReplaceAll(t.Name(), "/", "_"))
	}

	t.Run("missing document", func(t *testing.T) {
		ctx := context.Background()
		k := key(t)

		_, err := store.GetDocument(ctx, k)
		assert.ErrorIs(t, err, core.ErrNotFound)

		err = store.UpdateDocumentStatus(ctx, k, models.StatusUpdate{Status: models.StatusError, UpdatedAt: time.Now()})
		assert.ErrorIs(t, err, core.ErrNotFound)

		sections, err := store.ListSections(ctx, k)
		require.NoError(t, err)
		assert.Empty(t, sections)

		changes, err := store.ListStatusChanges(ctx, k)
		require.NoError(t, err)
		assert.Empty(t, changes)
	})

	t.Run("document status updates", func(t *testing.T) {
		ctx := context.Background()
		doc := NewDocument(key(t))
		require.NoError(t, store.PutDocument(ctx, doc))

		got, err := store.GetDocument(ctx, doc.DocumentKey)
		require.NoError(t, err)
		assert.Equal(t, doc.Container, got.Container)
		assert.Equal(t, doc.ObjectKey, got.ObjectKey)
		assert.Equal(t, models.StatusProcessing, got.Status)
		assert.Equal(t, doc.AttemptID, got.AttemptID)
		assert.Equal(t, 2, got.Attempts)
		assert.Equal(t, doc.ContentHash, got.ContentHash)
		assert.WithinDuration(t, doc.CreatedAt, got.CreatedAt, timePrecision)
		assert.WithinDuration(t, doc.UploadedAt, got.UploadedAt, timePrecision)

		failedAt := doc.UpdatedAt.Add(time.Second)
		require.NoError(t, store.UpdateDocumentStatus(ctx, doc.DocumentKey, models.StatusUpdate{
			Status:       models.StatusError,
			ErrorDetails: "failed to parse content",
			UpdatedAt:    failedAt,
		}))
		got, err = store.GetDocument(ctx, doc.DocumentKey)
		require.NoError(t, err)
		assert.Equal(t, models.StatusError, got.Status)
		assert.Equal(t, "failed to parse content", got.ErrorDetails)
		assert.WithinDuration(t, failedAt, got.UpdatedAt, timePrecision)
		assert.Equal(t, doc.AttemptID, got.AttemptID)

		require.NoError(t, store.UpdateDocumentStatus(ctx, doc.DocumentKey, models.StatusUpdate{
			Status:       models.StatusCompleted,
			SectionCount: 4,
			UpdatedAt:    failedAt.Add(time.Second),
		}))
		got, err = store.GetDocument(ctx, doc.DocumentKey)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCompleted, got.Status)
		assert.Empty(t, got.ErrorDetails)
		assert.Equal(t, 4, got.SectionCount)
	})

	t.Run("sections upsert by index and prune", func(t *testing.T) {
		ctx := context.Background()
		doc := NewDocument(key(t))
		require.NoError(t, store.PutDocument(ctx, doc))

		for _, i := range []int{3, 1, 4, 2} {
			require.NoError(t, store.PutSection(ctx, NewSection(doc, i, fmt.Sprintf("first attempt %d", i))))
		}
		require.NoError(t, store.PutSection(ctx, NewSection(doc, 2, "second attempt 2")))

		sections, err := store.ListSections(ctx, doc.DocumentKey)
		require.NoError(t, err)
		require.Len(t, sections, 4)
		for i, s := range sections {
			assert.Equal(t, i+1, s.SectionIndex)
			assert.Equal(t, fmt.Sprintf("section_%d", i+1), s.SectionID)
		}
		assert.Equal(t, "second attempt 2", sections[1].Content)
		assert.Equal(t, doc.AttemptID, sections[0].Metadata.AttemptID)
		assert.Equal(t, "text/plain", sections[0].Metadata.ContentType)

		require.NoError(t, store.DeleteSectionsAfter(ctx, doc.DocumentKey, 2))
		sections, err = store.ListSections(ctx, doc.DocumentKey)
		require.NoError(t, err)
		require.Len(t, sections, 2)
		assert.Equal(t, 2, sections[1].SectionIndex)

		require.NoError(t, store.DeleteSectionsAfter(ctx, doc.DocumentKey, 2))
		require.NoError(t, store.DeleteSectionsAfter(ctx, doc.DocumentKey, 0))
		sections, err = store.ListSections(ctx, doc.DocumentKey)
		require.NoError(t, err)
		assert.Empty(t, sections)
	})

	t.Run("status changes keep append order", func(t *testing.T) {
		ctx := context.Background()
		doc := NewDocument(key(t))
		require.NoError(t, store.PutDocument(ctx, doc))

		at := time.Now().UTC().Truncate(time.Second)
		steps := []struct{ from, to models.Status }{
			{models.StatusPending, models.StatusProcessing},
			{models.StatusProcessing, models.StatusError},
			{models.StatusError, models.StatusProcessing},
			{models.StatusProcessing, models.StatusCompleted},
		}
		for _, s := range steps {
			require.NoError(t, store.AppendStatusChange(ctx, &models.StatusChange{
				DocumentKey: doc.DocumentKey,
				From:        s.from,
				To:          s.to,
				AttemptID:   doc.AttemptID,
				At:          at,
			}))
		}

		changes, err := store.ListStatusChanges(ctx, doc.DocumentKey)
		require.NoError(t, err)
		require.Len(t, changes, len(steps))
		for i, s := range steps {
			assert.Equal(t, s.from, changes[i].From, "change %d", i)
			assert.Equal(t, s.to, changes[i].To, "change %d", i)
			assert.WithinDuration(t, at, changes[i].At, timePrecision)
		}
	})
}

// NewDocument returns a Processing document on its second attempt.
func NewDocument(documentKey string) *models.Document {
	container, objectKey, _ := strings.Cut(documentKey, "/")
	now := time.Now().UTC()
	return &models.Document{
		DocumentKey: documentKey,
		Container:   container,
		ObjectKey:   objectKey,
		Format:      models.FormatTXT,
		SizeBytes:   128,
		UploadedAt:  now.Add(-time.Hour),
		UploadedBy:  "alice",
		Status:      models.StatusProcessing,
		ContentHash: strings.Repeat("ab", 32),
		AttemptID:   "attempt-2",
		Attempts:    2,
		CreatedAt:   now.Add(-time.Minute),
		UpdatedAt:   now,
	}
}

// NewSection returns section index of doc with the given content.
func NewSection(doc *models.Document, index int, content string) *models.Section {
	return &models.Section{
		DocumentKey:  doc.DocumentKey,
		SectionIndex: index,
		SectionID:    fmt.Sprintf("section_%d", index),
		Heading:      fmt.Sprintf("Section %d", index),
		Content:      content,
		Metadata: models.SectionMetadata{
			DocumentType: "Policy",
			ContentType:  doc.Format.ContentType(),
			CreatedOn:    doc.UpdatedAt,
			FileSize:     doc.SizeBytes,
			UploadedBy:   doc.UploadedBy,
			AttemptID:    doc.AttemptID,
		},
	}
}
