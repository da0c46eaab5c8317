package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"thirdcoast.systems/scribe/internal/application"
	"thirdcoast.systems/scribe/internal/config"
	"thirdcoast.systems/scribe/internal/db"
)

func main() {
	startupCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	conf, err := config.LoadConfig(startupCtx)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := application.SetupLogging(*conf, "pg-migrator")
	log.Info("Starting database migrator")

	pool, err := application.OpenDBPoolWithRetry(startupCtx, *conf)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	dbc, err := db.NewDatabaseConnection(startupCtx, pool)
	if err != nil {
		log.Error("failed to create database connection", "error", err)
		os.Exit(1)
	}

	if err := dbc.Migrate(startupCtx); err != nil {
		log.Error("failed to run PostgreSQL migrations", "error", err)
		os.Exit(1)
	}
	log.Info("Database migrations completed successfully")
}
