// Package main provides the standalone MCP entry point. It needs no external
// services: patient records live in SQLite under the data directory.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/anamnesis-symptom-engine/internal/config"
	"github.com/anamnesis-symptom-engine/internal/mcp"
	"github.com/anamnesis-symptom-engine/internal/service"
)

func main() {
	// Load lightweight configuration
	liteCfg := config.LoadLiteConfig()
	if err := liteCfg.EnsureDataDir(); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	cfg := liteCfg.ToConfig()
	logger, err := config.NewLoggerFromConfig(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	logger.WithFields(logrus.Fields{
		"transport": liteCfg.Transport,
		"data_dir":  liteCfg.DataDir,
	}).Info("Starting anamnesis MCP server")

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down MCP server...")
		cancel()
	}()

	components, err := service.Build(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to assemble service: %v", err)
	}
	defer components.Close()

	server := mcp.NewServer(cfg.MCP, components.Service, logger)

	switch liteCfg.Transport {
	case "http":
		err = server.RunHTTP(ctx, fmt.Sprintf("127.0.0.1:%d", liteCfg.HTTPPort))
	default:
		err = server.Run(ctx)
	}
	if err != nil {
		logger.WithError(err).Error("MCP server failed")
		return
	}

	logger.Info("Anamnesis MCP server stopped")
}
