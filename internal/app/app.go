// Package app wires configured backends into a runnable ingestion pipeline.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/storage"
	executions "cloud.google.com/go/workflows/executions/apiv1"

	"github.com/Lllllllleong/documentingest/internal/badgerstore"
	"github.com/Lllllllleong/documentingest/internal/config"
	"github.com/Lllllllleong/documentingest/internal/core"
	"github.com/Lllllllleong/documentingest/internal/gcp"
	"github.com/Lllllllleong/documentingest/internal/localfs"
	"github.com/Lllllllleong/documentingest/internal/parser"
	"github.com/Lllllllleong/documentingest/internal/postgres"
	"github.com/Lllllllleong/documentingest/internal/s3store"
	"github.com/Lllllllleong/documentingest/internal/services"
)

type App struct {
	Config    *config.Config
	Records   core.RecordStore
	Objects   core.ObjectStore
	Ingestion *services.IngestionFunction

	closers []func() error
}

// New opens every backend named by cfg. On failure, whatever was already
// opened is closed again.
func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if a.Records, err = OpenRecordStore(ctx, cfg); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.Records.Close)

	if a.Objects, err = a.openObjectStore(ctx); err != nil {
		return nil, err
	}

	var opts []services.Option
	if cfg.WorkflowID != "" {
		var executionsClient *executions.Client
		if executionsClient, err = executions.NewClient(ctx); err != nil {
			return nil, fmt.Errorf("failed to create Workflows Executions client: %w", err)
		}
		notifier := gcp.NewWorkflowNotifier(executionsClient, cfg.ProjectID, cfg.WorkflowLocation, cfg.WorkflowID)
		a.closers = append(a.closers, notifier.Close)
		opts = append(opts, services.WithNotifier(notifier))
	}

	a.Ingestion, err = services.NewIngestion(services.IngestionConfig{
		DocumentType:            cfg.DocumentType,
		SectionWriteConcurrency: cfg.SectionWriteConcurrency,
		Timeout:                 cfg.IngestTimeout,
	}, a.Objects, a.Records, opts...)
	if err != nil {
		return nil, err
	}

	pdfText := parser.PDFTextBackend()
	if pdfText != "pdftotext" {
		slog.Warn("pdftotext not found on PATH. PDF text is read from content streams without font decoding.")
	}
	slog.Info("Ingestion pipeline initialized.",
		"recordStore", cfg.RecordStore,
		"storageBackend", cfg.StorageBackend,
		"workflowId", cfg.WorkflowID,
		"pdfText", pdfText,
	)
	return a, nil
}

// OpenRecordStore opens only the record store, for read paths that never fetch content.
func OpenRecordStore(ctx context.Context, cfg *config.Config) (core.RecordStore, error) {
	switch cfg.RecordStore {
	case config.RecordStoreFirestore:
		client, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, err
		}
		return gcp.NewFirestoreRecordStore(client, cfg.RecordTable), nil
	case config.RecordStoreBadger:
		return badgerstore.Open(cfg.RecordTable)
	case config.RecordStorePostgres:
		return postgres.Open(ctx, cfg.DatabaseURL, cfg.RecordTable)
	default:
		return nil, fmt.Errorf("unknown record store %q", cfg.RecordStore)
	}
}

func (a *App) openObjectStore(ctx context.Context) (core.ObjectStore, error) {
	cfg := a.Config
	switch cfg.StorageBackend {
	case config.StorageGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create Storage client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		return gcp.NewGCSObjectStore(client), nil
	case config.StorageS3:
		client, err := s3store.NewS3Client(ctx, cfg.AwsRegion, cfg.AwsAccessKey, cfg.AwsSecretKey)
		if err != nil {
			return nil, err
		}
		return s3store.NewS3ObjectStore(client), nil
	case config.StorageLocal:
		return localfs.New(cfg.StorageRoot), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// Close releases backends in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
