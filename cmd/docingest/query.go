package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/documentingest/internal/api"
	"github.com/Lllllllleong/documentingest/internal/app"
	"github.com/Lllllllleong/documentingest/internal/config"
	"github.com/Lllllllleong/documentingest/internal/core"
	"github.com/Lllllllleong/documentingest/internal/models"
)

func withRecords(ctx context.Context, fn func(core.RecordStore) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	records, err := app.OpenRecordStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer records.Close()
	return fn(records)
}

func newStatusCmd() *cobra.Command {
	var history bool
	cmd := &cobra.Command{
		Use:   "status <document-key>",
		Short: "Show the processing status of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRecords(cmd.Context(), func(records core.RecordStore) error {
				doc, err := records.GetDocument(cmd.Context(), args[0])
				if errors.Is(err, core.ErrNotFound) {
					return fmt.Errorf("%s: no record (Pending)", args[0])
				}
				if err != nil {
					return err
				}

				var changes []models.StatusChange
				if history {
					if changes, err = records.ListStatusChanges(cmd.Context(), args[0]); err != nil {
						return err
					}
				}

				if jsonOutput {
					printJSON(struct {
						*models.Document
						History []models.StatusChange `json:"history,omitempty"`
					}{doc, changes})
					return nil
				}
				fmt.Printf("%s\n  status:   %s\n  sections: %d\n  attempts: %d (latest %s)\n",
					doc.DocumentKey, doc.Status, doc.SectionCount, doc.Attempts, doc.AttemptID)
				if doc.ErrorDetails != "" {
					fmt.Printf("  error:    %s\n", doc.ErrorDetails)
				}
				for _, c := range changes {
					fmt.Printf("  %s  %s -> %s %s\n", c.At.Format(time.RFC3339), c.From, c.To, c.Details)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&history, "history", false, "Include status transition history")
	return cmd
}

func newSectionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sections <document-key>",
		Short: "Print the sections of a completed document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRecords(cmd.Context(), func(records core.RecordStore) error {
				doc, err := records.GetDocument(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if doc.Status != models.StatusCompleted {
					return fmt.Errorf("%s is %s; sections are only readable once Completed", doc.DocumentKey, doc.Status)
				}
				sections, err := records.ListSections(cmd.Context(), doc.DocumentKey)
				if err != nil {
					return err
				}
				if jsonOutput {
					printJSON(sections)
					return nil
				}
				for _, s := range sections {
					fmt.Printf("--- %s (%s)\n%s\n", s.SectionID, s.Heading, s.Content)
				}
				return nil
			})
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only query API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			records, err := app.OpenRecordStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer records.Close()

			srv := api.NewServer(cfg.Port, records)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
