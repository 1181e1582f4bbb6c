package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/documentingest/internal/models"
	"github.com/Lllllllleong/documentingest/internal/services"
)

func TestCollectEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "event.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"bucket":"other","name":"b.csv"}`), 0o644))

	events, err := collectEvents("uploads", []string{"a.txt"}, []string{path})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "uploads/a.txt", events[0].DocumentKey())
	assert.Equal(t, "other/b.csv", events[1].DocumentKey())
}

func TestCollectEvents_KeyWithoutContainer(t *testing.T) {
	_, err := collectEvents("", []string{"a.txt"}, nil)
	assert.ErrorContains(t, err, "--container")
}

func TestReport(t *testing.T) {
	ev := models.ArrivalEvent{StorageLocation: models.StorageLocation{ContainerName: "uploads", ObjectKey: "a.txt"}}

	err := report([]services.BatchResult{{Event: ev, Result: &models.IngestResult{Status: models.StatusCompleted, SectionCount: 2}}})
	assert.NoError(t, err)

	err = report([]services.BatchResult{
		{Event: ev, Result: &models.IngestResult{Status: models.StatusCompleted, Skipped: true}},
		{Event: ev, Err: errors.New("boom")},
	})
	assert.ErrorIs(t, err, errBatchFailed)
}
