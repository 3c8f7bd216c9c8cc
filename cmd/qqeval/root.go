package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ShayCichocki/qqeval/internal/config"
)

var (
	rootVerbose    bool
	rootConfigPath string

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "qqeval",
	Short: "Measure question-quality commenting in model responses",
	Long: `qqeval measures how often a language model opens its answer by
commenting on the quality of the user's question ("Great question!",
"That's not a dumb question at all") and how system-instruction variants
change that rate.

Each prompt is sent under every condition several times. Responses are
classified by a fast pattern detector and, when it abstains, by a
classification model. Results are appended to a resumable store and
summarized per condition against the baseline.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(rootVerbose)
		if err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&rootVerbose, "verbose", "v", false, "Log retries and per-cell detail to stderr")
	rootCmd.PersistentFlags().StringVar(&rootConfigPath, "config", "", "Config file (default: user and project config)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(promptsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// newLogger builds a development logger when verbose, and a quiet production
// logger otherwise.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// loadConfig loads the --config file when given, or the layered defaults.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if rootConfigPath != "" {
		if err := config.LoadDotEnv(".env"); err != nil {
			return nil, err
		}
		cfg, err = config.LoadFromPath(rootConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
