package badgerstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/documentingest/internal/core"
	"github.com/Lllllllleong/documentingest/internal/core/coretest"
	"github.com/Lllllllleong/documentingest/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordStoreContract(t *testing.T) {
	coretest.RunRecordStore(t, newTestStore(t))
}

func TestOpen_FileSystem(t *testing.T) {
	dir := t.TempDir() + "/records"
	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestDocumentRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetDocument(ctx, "uploads/a.txt")
	assert.ErrorIs(t, err, core.ErrNotFound)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.PutDocument(ctx, &models.Document{
		DocumentKey: "uploads/a.txt",
		Format:      models.FormatTXT,
		Status:      models.StatusProcessing,
		AttemptID:   "attempt-1",
		CreatedAt:   now,
	}))

	require.NoError(t, s.UpdateDocumentStatus(ctx, "uploads/a.txt", models.StatusUpdate{
		Status:       models.StatusCompleted,
		SectionCount: 3,
		UpdatedAt:    now,
	}))

	doc, err := s.GetDocument(ctx, "uploads/a.txt")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, doc.Status)
	assert.Equal(t, 3, doc.SectionCount)
	assert.Equal(t, "attempt-1", doc.AttemptID)
	assert.True(t, now.Equal(doc.CreatedAt))
}

func TestUpdateDocumentStatus_Missing(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateDocumentStatus(context.Background(), "nope", models.StatusUpdate{Status: models.StatusError})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSectionsOrderedAndPruned(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Indices above 255 make sure ordering is numeric, not lexical.
	for _, i := range []int{300, 2, 1, 10, 256} {
		require.NoError(t, s.PutSection(ctx, &models.Section{DocumentKey: "k", SectionIndex: i, Content: fmt.Sprint(i)}))
	}
	require.NoError(t, s.PutSection(ctx, &models.Section{DocumentKey: "k2", SectionIndex: 1}))

	sections, err := s.ListSections(ctx, "k")
	require.NoError(t, err)
	var got []int
	for _, sec := range sections {
		got = append(got, sec.SectionIndex)
	}
	assert.Equal(t, []int{1, 2, 10, 256, 300}, got)

	require.NoError(t, s.DeleteSectionsAfter(ctx, "k", 2))
	sections, err = s.ListSections(ctx, "k")
	require.NoError(t, err)
	assert.Len(t, sections, 2)

	other, err := s.ListSections(ctx, "k2")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestPutSection_OverwritesByIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutSection(ctx, &models.Section{DocumentKey: "k", SectionIndex: 1, Content: "old"}))
	require.NoError(t, s.PutSection(ctx, &models.Section{DocumentKey: "k", SectionIndex: 1, Content: "new"}))

	sections, err := s.ListSections(ctx, "k")
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Equal(t, "new", sections[0].Content)
}

func TestListSections_Empty(t *testing.T) {
	s := newTestStore(t)
	sections, err := s.ListSections(context.Background(), "missing")
	require.NoError(t, err)
	assert.NotNil(t, sections)
	assert.Empty(t, sections)
}

func TestStatusHistoryOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	steps := []models.Status{models.StatusProcessing, models.StatusError, models.StatusProcessing, models.StatusCompleted}
	from := models.StatusPending
	for _, to := range steps {
		require.NoError(t, s.AppendStatusChange(ctx, &models.StatusChange{DocumentKey: "k", From: from, To: to}))
		from = to
	}

	changes, err := s.ListStatusChanges(ctx, "k")
	require.NoError(t, err)
	require.Len(t, changes, len(steps))
	for i, c := range changes {
		assert.Equal(t, steps[i], c.To)
	}
}

func TestConcurrentSectionWrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.PutSection(ctx, &models.Section{DocumentKey: "k", SectionIndex: i}))
		}(i)
	}
	wg.Wait()

	sections, err := s.ListSections(ctx, "k")
	require.NoError(t, err)
	assert.Len(t, sections, 50)
}

func TestCancelledContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.PutDocument(ctx, &models.Document{DocumentKey: "k"})
	assert.ErrorIs(t, err, context.Canceled)
}
