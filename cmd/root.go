package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"deepdefender/internal/acquire"
	"deepdefender/internal/classifier"
	"deepdefender/internal/config"
	"deepdefender/internal/logging"
	"deepdefender/internal/pipeline"
	"deepdefender/internal/preview"
)

var (
	configPath   string
	endpointFlag string
	timeoutFlag  time.Duration
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:           "deepdefender",
	Short:         "deepdefender - check images for deepfake manipulation",
	Long:          "deepdefender sends an image to a deepfake classification service and presents the verdict in the terminal or a local browser page.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "path to a YAML config file")
	flags.StringVar(&endpointFlag, "endpoint", "", "classification endpoint URL")
	flags.DurationVar(&timeoutFlag, "timeout", 0, "classification request timeout")
	flags.StringVar(&logLevelFlag, "log-level", "", "log level (debug, info, warn, error)")
}

// loadConfig merges config files, .env, environment and command-line flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.NewLoader().LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("endpoint") {
		cfg.Classifier.Endpoint = endpointFlag
	}
	if flags.Changed("timeout") {
		cfg.Classifier.Timeout = timeoutFlag
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevelFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger. Interactive commands log to the
// configured file so output does not interleave with the terminal UI.
func newLogger(cfg *config.Config, toFile bool) (*zap.Logger, error) {
	opts := logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format}
	if toFile {
		opts.File = cfg.Log.File
	}
	return logging.NewLogger(opts)
}

func limits(cfg *config.Config) acquire.Limits {
	return acquire.Limits{MaxFileSize: cfg.Input.MaxFileSize}
}

func newOrchestrator(cfg *config.Config, logger *zap.Logger) (*pipeline.Orchestrator, error) {
	client, err := classifier.New(cfg.Classifier.Endpoint, cfg.Classifier.Timeout, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("classifier configured",
		zap.String("endpoint", client.Endpoint()),
		zap.Duration("timeout", cfg.Classifier.Timeout),
	)
	return pipeline.New(client, preview.NewRegistry(), logger, pipeline.Options{}), nil
}
