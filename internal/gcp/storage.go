package gcp

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/documentingest/internal/core"
	"github.com/Lllllllleong/documentingest/internal/models"
)

// uploaderMetadataKey is the custom object metadata key naming who uploaded a file.
const uploaderMetadataKey = "user"

var _ core.ObjectStore = (*GCSObjectStore)(nil)

// GCSObjectStore reads uploaded files from Cloud Storage buckets.
type GCSObjectStore struct {
	client *storage.Client
}

func NewGCSObjectStore(client *storage.Client) *GCSObjectStore {
	return &GCSObjectStore{client: client}
}

func (s *GCSObjectStore) HeadMetadata(ctx context.Context, bucket, object string) (*models.ObjectMetadata, error) {
	attrs, err := s.client.Bucket(bucket).Object(object).Attrs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get attributes for gs://%s/%s: %w", bucket, object, err)
	}
	return &models.ObjectMetadata{
		SizeBytes:    attrs.Size,
		LastModified: attrs.Updated,
		UploaderTag:  attrs.Metadata[uploaderMetadataKey],
	}, nil
}

func (s *GCSObjectStore) GetContent(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", bucket, object, err)
	}
	return r, nil
}
