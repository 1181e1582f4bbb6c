package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/documentingest/internal/app"
	"github.com/Lllllllleong/documentingest/internal/config"
	"github.com/Lllllllleong/documentingest/internal/models"
	"github.com/Lllllllleong/documentingest/internal/services"
)

var errBatchFailed = errors.New("one or more documents failed")

func newIngestCmd() *cobra.Command {
	var (
		container  string
		eventFiles []string
		workers    int
	)
	cmd := &cobra.Command{
		Use:   "ingest [object-key...]",
		Short: "Ingest objects by key or from event payload files",
		Long: `Ingest one or more stored objects. Objects are named either by key (in the
container given by --container or STORAGE_CONTAINER) or by event payload
files (--event), which may hold a native, GCS, S3 or CloudEvents payload.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if container == "" {
				container = cfg.StorageContainer
			}

			events, err := collectEvents(container, args, eventFiles)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				return errors.New("nothing to ingest: pass object keys or --event files")
			}

			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			results, err := services.RunBatch(cmd.Context(), a.Ingestion, events, workers)
			if err != nil {
				return err
			}
			return report(results)
		},
	}
	cmd.Flags().StringVarP(&container, "container", "c", "", "Container (bucket) holding the objects")
	cmd.Flags().StringArrayVarP(&eventFiles, "event", "e", nil, "Event payload file (repeatable, - for stdin)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 4, "Number of documents ingested concurrently")
	return cmd
}

func collectEvents(container string, keys, eventFiles []string) ([]models.ArrivalEvent, error) {
	var events []models.ArrivalEvent
	for _, key := range keys {
		if container == "" {
			return nil, fmt.Errorf("object key %q given without --container or STORAGE_CONTAINER", key)
		}
		events = append(events, models.ArrivalEvent{
			StorageLocation: models.StorageLocation{ContainerName: container, ObjectKey: key},
		})
	}
	for _, path := range eventFiles {
		data, err := readInput(path)
		if err != nil {
			return nil, err
		}
		e, err := models.DecodeArrivalEvent(data)
		if err != nil {
			return nil, fmt.Errorf("decode event %s: %w", path, err)
		}
		events = append(events, e)
	}
	return events, nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read event file: %w", err)
	}
	return data, nil
}

type ingestLine struct {
	DocumentKey  string `json:"documentKey"`
	Status       string `json:"status,omitempty"`
	SectionCount int    `json:"sectionCount"`
	Skipped      bool   `json:"skipped"`
	Error        string `json:"error,omitempty"`
}

func report(results []services.BatchResult) error {
	lines := make([]ingestLine, len(results))
	failed := 0
	for i, r := range results {
		lines[i].DocumentKey = r.Event.DocumentKey()
		if r.Err != nil {
			failed++
			lines[i].Error = r.Err.Error()
			continue
		}
		lines[i].Status = string(r.Result.Status)
		lines[i].SectionCount = r.Result.SectionCount
		lines[i].Skipped = r.Result.Skipped
	}

	if jsonOutput {
		printJSON(lines)
	} else {
		for _, l := range lines {
			switch {
			case l.Error != "":
				fmt.Fprintf(os.Stderr, "FAILED   %s: %s\n", l.DocumentKey, l.Error)
			case l.Skipped:
				fmt.Printf("SKIPPED  %s (already %s, %d sections)\n", l.DocumentKey, l.Status, l.SectionCount)
			default:
				fmt.Printf("%-8s %s (%d sections)\n", l.Status, l.DocumentKey, l.SectionCount)
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errBatchFailed, failed, len(results))
	}
	return nil
}
