package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/anamnesis-symptom-engine/internal/config"
	"github.com/anamnesis-symptom-engine/internal/domain"
	"github.com/anamnesis-symptom-engine/internal/service"
)

var (
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "anamnesis",
	Short:         "Symptom status extraction for patient messages",
	Long:          "Extract affirmed, denied and contradictory symptoms from Russian patient messages, accumulate them per patient and score the extractor against labelled cases.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: ./config.yaml, ./config/config.yaml or /etc/anamnesis/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
}

// loadConfig reads the configuration and builds the logger. CLI logs go to
// stderr so command output on stdout stays machine readable.
func loadConfig() (*domain.Config, *logrus.Logger, error) {
	manager, err := config.NewManagerWithFile(configFile)
	if err != nil {
		return nil, nil, err
	}
	cfg := manager.GetConfig()
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if cfg.Logging.Output == "" || cfg.Logging.Output == "stdout" {
		cfg.Logging.Output = "stderr"
	}
	logger, err := config.NewLoggerFromConfig(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// buildService assembles the service. Commands that do not touch patient
// records pass withStore=false so no database is opened. adjust, when set,
// may override configuration from command flags.
func buildService(ctx context.Context, withStore bool, adjust func(*domain.Config)) (*service.Components, *domain.Config, *logrus.Logger, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	if !withStore {
		cfg.Storage.Driver = "none"
	}
	if adjust != nil {
		adjust(cfg)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, nil, err
	}
	components, err := service.Build(ctx, cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return components, cfg, logger, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
