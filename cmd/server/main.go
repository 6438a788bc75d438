package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/medscan-resolver/internal/api"
	"github.com/medscan-resolver/internal/app"
	"github.com/medscan-resolver/internal/config"
	"github.com/medscan-resolver/internal/logging"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		// a malformed catalog is fatal
		logger.WithError(err).Fatal("Failed to start medication resolver")
	}
	defer application.Close()

	server := api.NewServer(cfg.Server, application.Pipeline, application.Metrics, logger)
	for name, check := range application.HealthChecks() {
		server.AddHealthCheck(name, check)
	}

	logger.WithFields(logrus.Fields{
		"host":           cfg.Server.Host,
		"port":           cfg.Server.Port,
		"catalog_source": cfg.Catalog.Source,
		"openfda":        cfg.OpenFDA.Enabled,
	}).Info("Starting medication resolver")

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Error("Server stopped with error")
		application.Close()
		os.Exit(1)
	}

	logger.Info("Server stopped")
}
