package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/documentingest/internal/config"
	"github.com/Lllllllleong/documentingest/internal/models"
)

func TestNew_LocalPipeline(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "files", "uploads"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "files", "uploads", "notes.txt"), []byte("Hello\n\nWorld"), 0o644))

	cfg := &config.Config{
		RecordStore:             config.RecordStoreBadger,
		RecordTable:             filepath.Join(dir, "records"),
		StorageBackend:          config.StorageLocal,
		StorageRoot:             filepath.Join(dir, "files"),
		SectionWriteConcurrency: 2,
	}
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	res, err := a.Ingestion.Process(context.Background(), models.ArrivalEvent{
		StorageLocation: models.StorageLocation{ContainerName: "uploads", ObjectKey: "notes.txt"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.SectionCount)

	sections, err := a.Records.ListSections(context.Background(), "uploads/notes.txt")
	require.NoError(t, err)
	assert.Len(t, sections, 2)
}

func TestNew_UnknownBackends(t *testing.T) {
	_, err := New(context.Background(), &config.Config{RecordStore: "dynamo"})
	assert.Error(t, err)

	_, err = New(context.Background(), &config.Config{
		RecordStore:    config.RecordStoreBadger,
		RecordTable:    t.TempDir(),
		StorageBackend: "ftp",
	})
	assert.ErrorContains(t, err, "unknown storage backend")
}
