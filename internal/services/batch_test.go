package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/documentingest/internal/models"
	"github.com/Lllllllleong/documentingest/internal/parser"
)

func TestRunBatch(t *testing.T) {
	f, objects, _ := newTestIngestion(t)
	objects.put("uploads", "a.txt", "a\n\nb", "")
	objects.put("uploads", "b.csv", "h\n1\n", "")
	objects.put("uploads", "c.txt", "c", "")

	events := []models.ArrivalEvent{
		event("uploads", "a.txt"),
		event("uploads", "b.csv"),
		event("uploads", "bad.gif"),
		event("uploads", "c.txt"),
	}

	results, err := RunBatch(context.Background(), f, events, 3)
	require.NoError(t, err)
	require.Len(t, results, 4)

	for i, r := range results {
		assert.Equal(t, events[i], r.Event)
	}
	require.NoError(t, results[0].Err)
	assert.Equal(t, 2, results[0].Result.SectionCount)
	require.NoError(t, results[1].Err)
	assert.Equal(t, 1, results[1].Result.SectionCount)
	assert.True(t, errors.Is(results[2].Err, parser.ErrUnsupportedFormat))
	require.NoError(t, results[3].Err)
	assert.Equal(t, "uploads/c.txt", results[3].Result.DocumentKey)
}

func TestRunBatch_Empty(t *testing.T) {
	f, _, _ := newTestIngestion(t)
	results, err := RunBatch(context.Background(), f, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}
