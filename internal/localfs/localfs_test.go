package localfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectStore(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "uploads", "reports"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "uploads", "reports", "q1.txt"), []byte("a\n\nb"), 0o644))

	store := New(root)
	ctx := context.Background()

	meta, err := store.HeadMetadata(ctx, "uploads", "reports/q1.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(4), meta.SizeBytes)
	assert.Empty(t, meta.UploaderTag)

	rc, err := store.GetContent(ctx, "uploads", "reports/q1.txt")
	require.NoError(t, err)
	defer rc.Close()
	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "a\n\nb", string(content))
}

func TestObjectStore_Errors(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "uploads", "dir"), 0o755))
	store := New(root)
	ctx := context.Background()

	_, err := store.HeadMetadata(ctx, "uploads", "missing.txt")
	assert.Error(t, err)

	_, err = store.HeadMetadata(ctx, "uploads", "dir")
	assert.Error(t, err)

	_, err = store.HeadMetadata(ctx, "nope", "a.txt")
	assert.Error(t, err)

	_, err = store.GetContent(ctx, "uploads", "../../etc/passwd")
	assert.Error(t, err)
}
