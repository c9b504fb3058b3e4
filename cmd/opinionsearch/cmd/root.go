// Package cmd provides the CLI commands for opinionsearch.
package cmd

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/fppclabs/opinionsearch/internal/config"
	"github.com/fppclabs/opinionsearch/internal/logging"
	"github.com/fppclabs/opinionsearch/pkg/version"
)

var (
	cfg            *config.Config
	debugMode      bool
	configDir      string
	loggingCleanup func()
)

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}

// NewRootCmd creates the root command for the opinionsearch CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "opinionsearch",
		Short: "Hybrid retrieval over FPPC advice opinions",
		Long: `opinionsearch indexes extracted FPPC advice opinions and ranks them
for natural-language and citation queries using hybrid lexical,
citation, and semantic fusion strategies.

Build the indexes once with 'opinionsearch index', then query with
'opinionsearch search' or benchmark with 'opinionsearch eval'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("opinionsearch version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "Directory containing opinionsearch.yaml")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = setupConfigAndLogging
	cmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newEvalCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func setupConfigAndLogging(_ *cobra.Command, _ []string) error {
	// .env supplies OPENAI_API_KEY and OPINIONSEARCH_* overrides; a
	// missing file is fine
	_ = godotenv.Load()

	loaded, err := config.Load(configDir)
	if err != nil {
		return err
	}
	cfg = loaded

	logCfg := logging.Config{
		Level:         cfg.Logging.Level,
		FilePath:      cfg.Logging.FilePath,
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: false,
	}
	if debugMode {
		logCfg.Level = "debug"
		if logCfg.FilePath == "" {
			logCfg.FilePath = logging.DefaultLogPath()
		}
	}

	cleanup, err := logging.SetupDefault(logCfg)
	if err != nil {
		return err
	}
	loggingCleanup = cleanup
	return nil
}
