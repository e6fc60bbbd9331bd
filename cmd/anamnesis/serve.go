package main

import (
	"github.com/spf13/cobra"

	"github.com/anamnesis-symptom-engine/internal/api"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Override the configured port")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	components, cfg, logger, err := buildService(ctx, true, nil)
	if err != nil {
		return err
	}
	defer components.Close()

	if servePort > 0 {
		cfg.Server.Port = servePort
	}
	logger.Infof("Starting anamnesis API on %s:%d", cfg.Server.Host, cfg.Server.Port)

	return api.NewServer(cfg.Server, components.Service, logger).Start(ctx)
}
