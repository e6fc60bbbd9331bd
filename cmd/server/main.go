package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/anamnesis-symptom-engine/internal/api"
	"github.com/anamnesis-symptom-engine/internal/config"
	"github.com/anamnesis-symptom-engine/internal/service"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger, err := config.NewLoggerFromConfig(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	components, err := service.Build(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to assemble service: %v", err)
	}
	defer components.Close()

	logger.WithField("config_file", configManager.ConfigFileUsed()).
		Infof("Starting anamnesis API on %s:%d", cfg.Server.Host, cfg.Server.Port)

	server := api.NewServer(cfg.Server, components.Service, logger)
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Error("Server failed")
		return
	}

	logger.Info("Server stopped")
}
