package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"notex/pkg/config"
	"notex/pkg/logger"
	"notex/pkg/ui"
)

var (
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	quiet      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "notex",
	Short: "Convert handwritten PDF notes to LaTeX, incrementally",
	Long: `notex converts handwritten or scanned PDF notes into LaTeX documents
using a vision language model, one page at a time.

Runs are incremental and resumable: every page's outcome is checkpointed
as soon as it is known, so an interrupted run picks up exactly where it
left off, and unchanged pages are never converted twice. Conversion calls
are rate limited and retried with exponential backoff.

Common usage:
  notex convert lecture.pdf            convert a PDF into ./output
  notex convert lecture.pdf --fresh    discard checkpoints and start over
  notex checkpoint status              inspect per-page progress
  notex auth set                       store an API key securely`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet || logLevel == "error" {
			ui.SetQuietMode(true)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./notex.yaml or ~/.config/notex/notex.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress informational output")
}

// loadConfig loads configuration and initializes the logger, applying
// global flag overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

// defaultWorkspaceBase returns the registry location for named workspaces
func defaultWorkspaceBase() (string, error) {
	if base := os.Getenv("NOTEX_WORKSPACE_DIR"); base != "" {
		return base, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "notex", "workspaces"), nil
}
