package main

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/documentingest/internal/app"
	"github.com/Lllllllleong/documentingest/internal/config"
	"github.com/Lllllllleong/documentingest/internal/logging"
	"github.com/Lllllllleong/documentingest/internal/models"
)

var (
	pipeline *app.App
	once     sync.Once
	initErr  error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// "ParseFile" is the entry point name configured in GCP.
	functions.CloudEvent("ParseFile", parseFile)
}

// main is required by the Go Functions Framework.
func main() {}

// parseFile ingests the object named by a storage finalize event. Returning an
// error marks the invocation failed so the platform redelivers the event.
func parseFile(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		var cfg *config.Config
		if cfg, initErr = config.Load(); initErr != nil {
			return
		}
		logging.Setup(cfg.LogLevel, cfg.LogFormat)
		pipeline, initErr = app.New(context.Background(), cfg)
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	event, err := models.DecodeArrivalEvent(e.Data())
	if err != nil {
		slog.Error("Failed to decode event data", "error", err, "eventId", e.ID(), "data", string(e.Data()))
		return err
	}

	// The error is already logged with context within Process.
	if _, err := pipeline.Ingestion.Process(ctx, event); err != nil {
		return err
	}
	return nil
}
