package main

import (
	"log"

	"go.uber.org/zap"

	"ledger-service/internal/config"
	"ledger-service/internal/database"
	"ledger-service/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logr := logger.Must(cfg.Env)
	defer logr.Sync()

	db, err := database.Connect(cfg, logr)
	if err != nil {
		logr.Fatal("Failed to connect database", zap.Error(err))
	}

	logr.Info("Running database migrations...")
	if err := database.Migrate(db); err != nil {
		logr.Fatal("Migration failed", zap.Error(err))
	}
	logr.Info("Migrations completed successfully!")
}
