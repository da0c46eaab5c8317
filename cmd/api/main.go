package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"thirdcoast.systems/scribe/cmd/api/internal/api"
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
	log := application.SetupLogging(*conf, "api")
	log.Info("Starting api service")

	b, err := application.Open(ctx, *conf)
	if err != nil {
		log.Error("failed to open backends", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	// Memory backends cannot be shared with separate worker processes, so run the
	// stages here instead.
	if application.RequireShared(*conf) != nil {
		log.Warn("memory backends selected; running processor and ingestor in-process")
		if err := b.DB.Migrate(ctx); err != nil {
			log.Error("failed to run PostgreSQL migrations", "error", err)
			os.Exit(1)
		}
		for _, c := range []interface{ Run(context.Context) error }{
			application.NewProcessorConsumer(*conf, b, log.With("stage", "processor")),
			application.NewIngestorConsumer(*conf, b, log.With("stage", "ingestor")),
		} {
			go func() {
				if err := c.Run(ctx); err != nil && ctx.Err() == nil {
					log.Error("in-process consumer stopped", "error", err)
				}
			}()
		}
	}

	e := api.NewServer(api.Options{
		Submitter:    application.NewRouter(*conf, b, log),
		Units:        b.Units,
		Search:       b.Results,
		Health:       b.DB.Ping,
		MaxItems:     conf.MaxCollectionItems,
		PollTimeout:  conf.PollTimeout(),
		PollInterval: conf.PollInterval(),
	})

	addr := ":" + strconv.Itoa(conf.WebServerPort)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.Shutdown(shutdownCtx)
	}()

	log.Info("Listening", "addr", addr)
	if err := e.Start(addr); err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return
		}
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}
