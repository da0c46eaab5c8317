package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

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
	log := application.SetupLogging(*conf, "processor")
	log.Info("Starting processor service")

	if err := application.RequireShared(*conf); err != nil {
		log.Error("invalid backend configuration", "error", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(conf.SpoolDir, 0o755); err != nil {
		log.Error("failed to create spool dir", "dir", conf.SpoolDir, "error", err)
		os.Exit(1)
	}

	yt := application.NewYtdlp(*conf)
	updateCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	if err := yt.Update(updateCtx); err != nil {
		log.Warn("failed to update yt-dlp", "error", err)
	}
	if v, err := yt.Version(updateCtx); err == nil {
		log.Info("yt-dlp ready", "version", v)
	}
	cancel()

	b, err := application.Open(ctx, *conf)
	if err != nil {
		log.Error("failed to open backends", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	b.StartQueueMaintenance(ctx, *conf)

	if err := application.NewProcessorConsumer(*conf, b, log).Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("processor stopped", "error", err)
		os.Exit(1)
	}
	log.Info("processor shut down")
}
