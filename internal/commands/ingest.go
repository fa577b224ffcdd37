package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/guppyfunds/guppy-consumer/internal/ingest"
	"github.com/guppyfunds/guppy-consumer/internal/model"
	"github.com/guppyfunds/guppy-consumer/internal/store"
)

func newIngestCommand() *cobra.Command {
	var (
		configPath string
		dryRun     bool
		encoding   string
	)

	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Ingest a single CSV export file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), cmd.OutOrStdout(), configPath, args[0], encoding, dryRun)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "guppy.yaml", "path to config file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and report without writing to the store")
	cmd.Flags().StringVar(&encoding, "encoding", "", "text encoding of the file (utf-8 or latin-1)")

	return cmd
}

func runIngest(ctx context.Context, out io.Writer, configPath, filePath, encoding string, dryRun bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", filePath, err)
	}

	var pipeline *ingest.Pipeline
	if dryRun {
		pipeline = ingest.New(nil, logger, ingest.WithDryRun())
	} else {
		if cfg.Database.URL == "" {
			return errors.New("database url is required (set database.url or DATABASE_URL)")
		}
		st, err := store.NewPostgres(ctx, store.Config{
			URL:        cfg.Database.URL,
			AmexTable:  cfg.Database.AmexCollection,
			WellsTable: cfg.Database.WellsCollection,
		}, logger)
		if err != nil {
			return fmt.Errorf("connecting store: %w", err)
		}
		defer st.Close()
		if err := st.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensuring schema: %w", err)
		}
		pipeline = ingest.New(st, logger)
	}

	report := pipeline.Ingest(ctx, model.RawUpload{Data: data, Encoding: encoding})

	enc, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	fmt.Fprintln(out, string(enc))

	if report.Rejected() {
		return fmt.Errorf("upload rejected: %s", report.Error)
	}
	return nil
}
