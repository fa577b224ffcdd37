package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/guppyfunds/guppy-consumer/internal/buildinfo"
	"github.com/guppyfunds/guppy-consumer/internal/config"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "guppyd",
		Short:   "Bank CSV export ingestion service",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newIngestCommand())

	return rootCmd
}

// loadConfig reads the config file when present, falls back to defaults
// otherwise, and applies environment overrides either way.
func loadConfig(path string) (*config.Config, error) {
	cfg := config.Default()
	if _, err := os.Stat(path); err == nil {
		cfg, err = config.Load(path)
		if err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))
}
