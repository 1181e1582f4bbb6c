package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/documentingest/internal/models"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to models.Status
		want     bool
	}{
		{models.StatusPending, models.StatusProcessing, true},
		{models.StatusPending, models.StatusCompleted, false},
		{models.StatusPending, models.StatusError, false},
		{models.StatusProcessing, models.StatusProcessing, true},
		{models.StatusProcessing, models.StatusCompleted, true},
		{models.StatusProcessing, models.StatusError, true},
		{models.StatusError, models.StatusProcessing, true},
		{models.StatusError, models.StatusCompleted, false},
		{models.StatusCompleted, models.StatusProcessing, false},
		{models.StatusCompleted, models.StatusError, false},
		{models.StatusCompleted, models.StatusCompleted, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestStatusTracker_Lifecycle(t *testing.T) {
	records := newCountingStore(t)
	tracker := NewStatusTracker(records)
	ctx := context.Background()

	_, found, err := tracker.GetStatus(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	doc := &models.Document{DocumentKey: "k", Format: models.FormatTXT}
	require.NoError(t, tracker.Begin(ctx, doc))
	firstAttempt := doc.AttemptID
	assert.NotEmpty(t, firstAttempt)

	require.NoError(t, tracker.Fail(ctx, "k", errors.New("disk full")))
	status, found, err := tracker.GetStatus(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, models.StatusError, status)

	retry := &models.Document{DocumentKey: "k", Format: models.FormatTXT}
	require.NoError(t, tracker.Begin(ctx, retry))
	assert.NotEqual(t, firstAttempt, retry.AttemptID)
	assert.Equal(t, 2, retry.Attempts)

	require.NoError(t, tracker.Complete(ctx, "k", 4))
	// Same data is idempotent, different data is rejected.
	require.NoError(t, tracker.Complete(ctx, "k", 4))
	assert.ErrorIs(t, tracker.Complete(ctx, "k", 5), ErrInvalidTransition)

	stored, err := records.GetDocument(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 4, stored.SectionCount)
	assert.Empty(t, stored.ErrorDetails)

	history, err := tracker.History(ctx, "k")
	require.NoError(t, err)
	var path []models.Status
	for _, c := range history {
		path = append(path, c.To)
	}
	assert.Equal(t, []models.Status{models.StatusProcessing, models.StatusError, models.StatusProcessing, models.StatusCompleted}, path)
	assert.Equal(t, "disk full", history[1].Details)
	assert.Equal(t, models.StatusPending, history[0].From)
}

func TestStatusTracker_CompletedIsTerminal(t *testing.T) {
	tracker := NewStatusTracker(newCountingStore(t))
	ctx := context.Background()

	require.NoError(t, tracker.Begin(ctx, &models.Document{DocumentKey: "k"}))
	require.NoError(t, tracker.Complete(ctx, "k", 1))

	err := tracker.Begin(ctx, &models.Document{DocumentKey: "k"})
	var te *TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, models.StatusCompleted, te.From)
	assert.Equal(t, models.StatusProcessing, te.To)

	assert.ErrorIs(t, tracker.Fail(ctx, "k", errors.New("late")), ErrInvalidTransition)
	assert.ErrorIs(t, tracker.SetStatus(ctx, "k", models.StatusError, "late"), ErrInvalidTransition)
	assert.NoError(t, tracker.SetStatus(ctx, "k", models.StatusCompleted, ""))
}

func TestStatusTracker_SetStatus(t *testing.T) {
	records := newCountingStore(t)
	tracker := NewStatusTracker(records)
	ctx := context.Background()

	assert.ErrorIs(t, tracker.SetStatus(ctx, "k", models.StatusCompleted, ""), ErrInvalidTransition)

	require.NoError(t, tracker.SetStatus(ctx, "k", models.StatusProcessing, ""))
	require.NoError(t, tracker.SetStatus(ctx, "k", models.StatusError, "first"))
	require.NoError(t, tracker.SetStatus(ctx, "k", models.StatusError, "second"))

	doc, err := records.GetDocument(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, doc.Status)
	assert.Equal(t, "second", doc.ErrorDetails)
}

func TestStatusTracker_FailWithoutRecord(t *testing.T) {
	tracker := NewStatusTracker(newCountingStore(t))
	assert.ErrorIs(t, tracker.Fail(context.Background(), "missing", errors.New("x")), ErrInvalidTransition)
}

func TestDedupGuard(t *testing.T) {
	records := newCountingStore(t)
	tracker := NewStatusTracker(records)
	guard := NewDedupGuard(records)
	ctx := context.Background()

	done, doc, err := guard.AlreadyProcessed(ctx, "k")
	require.NoError(t, err)
	assert.False(t, done)
	assert.Nil(t, doc)

	require.NoError(t, tracker.Begin(ctx, &models.Document{DocumentKey: "k"}))
	done, doc, err = guard.AlreadyProcessed(ctx, "k")
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, models.StatusProcessing, doc.Status)

	require.NoError(t, tracker.Fail(ctx, "k", errors.New("x")))
	done, _, err = guard.AlreadyProcessed(ctx, "k")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, tracker.Begin(ctx, &models.Document{DocumentKey: "k"}))
	require.NoError(t, tracker.Complete(ctx, "k", 2))
	done, doc, err = guard.AlreadyProcessed(ctx, "k")
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, 2, doc.SectionCount)
}

func TestStatusTracker_RecordContentHash(t *testing.T) {
	records := newCountingStore(t)
	tracker := NewStatusTracker(records)
	ctx := context.Background()

	first := &models.Document{DocumentKey: "k", Format: models.FormatTXT}
	require.NoError(t, tracker.Begin(ctx, first))
	second := &models.Document{DocumentKey: "k", Format: models.FormatTXT}
	require.NoError(t, tracker.Begin(ctx, second))

	first.ContentHash = "stale"
	owned, err := tracker.RecordContentHash(ctx, first)
	require.NoError(t, err)
	assert.False(t, owned)

	second.ContentHash = "abc"
	owned, err = tracker.RecordContentHash(ctx, second)
	require.NoError(t, err)
	assert.True(t, owned)

	require.NoError(t, tracker.Complete(ctx, "k", 2))
	owned, err = tracker.RecordContentHash(ctx, second)
	require.NoError(t, err)
	assert.False(t, owned)

	doc, err := records.GetDocument(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, doc.Status)
	assert.Equal(t, "abc", doc.ContentHash)
	assert.Equal(t, 2, doc.SectionCount)
}
