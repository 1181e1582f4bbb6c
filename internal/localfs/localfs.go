// Package localfs serves uploaded files from a directory tree, one
// subdirectory per container. It backs local runs of the CLI.
package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Lllllllleong/documentingest/internal/core"
	"github.com/Lllllllleong/documentingest/internal/models"
)

var _ core.ObjectStore = (*ObjectStore)(nil)

type ObjectStore struct {
	root string
}

func New(root string) *ObjectStore {
	return &ObjectStore{root: root}
}

// open scopes access to the container directory, so keys cannot escape it.
func (s *ObjectStore) open(container string) (*os.Root, error) {
	r, err := os.OpenRoot(filepath.Join(s.root, container))
	if err != nil {
		return nil, fmt.Errorf("open container %s: %w", container, err)
	}
	return r, nil
}

func (s *ObjectStore) HeadMetadata(ctx context.Context, container, key string) (*models.ObjectMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, err := s.open(container)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	info, err := r.Stat(filepath.FromSlash(key))
	if err != nil {
		return nil, fmt.Errorf("stat %s/%s: %w", container, key, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s/%s is a directory", container, key)
	}
	return &models.ObjectMetadata{
		SizeBytes:    info.Size(),
		LastModified: info.ModTime().UTC(),
	}, nil
}

func (s *ObjectStore) GetContent(ctx context.Context, container, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, err := s.open(container)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	f, err := r.Open(filepath.FromSlash(key))
	if err != nil {
		return nil, fmt.Errorf("open %s/%s: %w", container, key, err)
	}
	return f, nil
}
