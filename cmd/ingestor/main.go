package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"thirdcoast.systems/scribe/internal/application"
	"thirdcoast.systems/scribe/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conf, err := config.LoadConfig(ctx)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := application.SetupLogging(*conf, "ingestor")
	log.Info("Starting ingestor service")

	if err := application.RequireShared(*conf); err != nil {
		log.Error("invalid backend configuration", "error", err)
		os.Exit(1)
	}
	if _, err := os.Stat(conf.WhisperModel); err != nil {
		log.Warn("whisper model not readable", "model", conf.WhisperModel, "error", err)
	}

	b, err := application.Open(ctx, *conf)
	if err != nil {
		log.Error("failed to open backends", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	b.StartQueueMaintenance(ctx, *conf)

	if err := application.NewIngestorConsumer(*conf, b, log).Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("ingestor stopped", "error", err)
		os.Exit(1)
	}
	log.Info("ingestor shut down")
}
