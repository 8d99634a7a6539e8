package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/civichall/event-importer/internal/config"
	"github.com/civichall/event-importer/internal/importer"
	"github.com/civichall/event-importer/internal/logger"
)

const (
	ExitSuccess = 0
	ExitError   = 1
)

var (
	flagConfigFile string
	flagStoreURL   string
	flagDelay      time.Duration
	flagFormat     string
	flagDryRun     bool
	flagVerbose    bool
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event-importer",
		Short: "Import community events from RSS feeds into the content store",
		Long: `Fetches the configured RSS feeds of community events, extracts structured
event data from each item, and upserts the results into the content store.
Re-runs are idempotent: existing events are matched by source link and only
their empty fields are back-filled.`,
		SilenceUsage: true,
		RunE:         runImport,
	}

	cmd.Flags().StringVar(&flagConfigFile, "config", "", "Path to a YAML config file with feed sources")
	cmd.Flags().StringVar(&flagStoreURL, "store-url", "", "Content store base URL (overrides config and STORE_URL)")
	cmd.Flags().DurationVar(&flagDelay, "delay", 0, "Delay between items within a feed (default 500ms)")
	cmd.Flags().StringVar(&flagFormat, "format", "text", "Summary output format: text or json")
	cmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Resolve and report without writing to the store")
	cmd.Flags().BoolVar(&flagVerbose, "verbose", false, "Enable debug logging")

	return cmd
}

// runImport is the main command logic
func runImport(cmd *cobra.Command, args []string) error {
	format := OutputFormat(strings.ToLower(flagFormat))
	if format != FormatText && format != FormatJSON {
		return fmt.Errorf("invalid format: %s (must be 'text' or 'json')", flagFormat)
	}

	level := logger.LevelInfo
	if flagVerbose {
		level = logger.LevelDebug
	}
	logger.SetDefault(logger.New(level, os.Stderr))

	cfg, err := config.Load(config.Options{
		ConfigFile: flagConfigFile,
		StoreURL:   flagStoreURL,
		Delay:      flagDelay,
		DryRun:     flagDryRun,
		Verbose:    flagVerbose,
	})
	if err != nil {
		if errors.Is(err, config.ErrNoCredential) {
			// Fail fast, before any network activity.
			return err
		}
		return fmt.Errorf("loading configuration: %w", err)
	}

	summary := importer.New(cfg).Run(cmd.Context())

	if err := WriteSummary(os.Stdout, &summary, format); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}

	// Aggregate per-item failures never fail the process.
	return nil
}

// Execute runs the CLI
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitError)
	}
	os.Exit(ExitSuccess)
}
