// Package s3store reads uploaded files from Amazon S3.
package s3store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/Lllllllleong/documentingest/internal/core"
	"github.com/Lllllllleong/documentingest/internal/models"
)

// uploaderMetadataKey is the user-defined metadata key (x-amz-meta-user) naming the uploader.
const uploaderMetadataKey = "user"

// S3API is the subset of the S3 client the object store calls.
type S3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	manager.DownloadAPIClient
}

var _ core.ObjectStore = (*S3ObjectStore)(nil)

type S3ObjectStore struct {
	client     S3API
	downloader *manager.Downloader
}

// NewS3Client builds an S3 client for region. Static credentials are used when
// both keys are set, otherwise the default AWS credential chain applies.
func NewS3Client(ctx context.Context, region, accessKey, secretKey string) (*s3.Client, error) {
	if region == "" {
		return nil, fmt.Errorf("AWS_REGION not set")
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	slog.Info("AWS S3 client configured.", "region", region)
	return s3.NewFromConfig(awsCfg), nil
}

func NewS3ObjectStore(client S3API) *S3ObjectStore {
	return &S3ObjectStore{
		client:     client,
		downloader: manager.NewDownloader(client),
	}
}

func (s *S3ObjectStore) HeadMetadata(ctx context.Context, bucket, key string) (*models.ObjectMetadata, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 head failed for s3://%s/%s: %w", bucket, key, err)
	}
	return &models.ObjectMetadata{
		SizeBytes:    aws.ToInt64(out.ContentLength),
		LastModified: aws.ToTime(out.LastModified),
		UploaderTag:  out.Metadata[uploaderMetadataKey],
	}, nil
}

// GetContent downloads the whole object with concurrent ranged GETs.
func (s *S3ObjectStore) GetContent(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	buf := manager.NewWriteAtBuffer(nil)
	if _, err := s.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		return nil, fmt.Errorf("s3 download failed for s3://%s/%s: %w", bucket, key, err)
	}
	return io.NopCloser(bytes.NewReader(buf.Bytes())), nil
}
