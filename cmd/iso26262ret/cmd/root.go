// Package cmd provides the CLI commands for the ISO 26262 retrieval engine.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/PLeVasseur/iso26262-retrieval/internal/logging"
	"github.com/PLeVasseur/iso26262-retrieval/pkg/version"
)

// Debug logging flag, wired through PersistentPreRunE/PersistentPostRunE.
var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the iso26262ret CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "iso26262ret",
		Short: "Offline hybrid retrieval over ISO 26262 standards documents",
		Long: `iso26262ret indexes a corpus of ISO 26262 chunk data and serves
hybrid lexical (BM25/FTS5) + semantic (vector) retrieval over it, fused
with reciprocal rank fusion and pinpointed down to the matching
sub-chunk unit where possible.

It runs entirely locally with no network access required once an
embedding model is available (static embeddings work fully offline).`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("iso26262ret version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.iso26262ret/logs/")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Directory holding the project config file .iso26262ret.yaml or .yml (default: discovered project root)")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newEmbedCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// configPath overrides config discovery when set via --config.
var configPath string

func startLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}
	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("debug logging enabled", slog.String("log_file", logging.DefaultLogPath()))
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		slog.Info("debug logging stopped")
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
