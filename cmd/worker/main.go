package main

import (
	"log"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"ledger-service/internal/app"
	"ledger-service/internal/config"
	"ledger-service/internal/consumers"
	"ledger-service/internal/database"
	"ledger-service/internal/lock"
	"ledger-service/internal/logger"
	"ledger-service/internal/worker"
)

func main() {
	cfg, err := config.Load(".env", "../../.env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logr := logger.Must(cfg.Env)
	defer logr.Sync()

	db, err := database.Connect(cfg, logr)
	if err != nil {
		logr.Fatal("Failed to connect database", zap.Error(err))
	}

	rdb := app.NewRedis(cfg)
	defer rdb.Close()
	redisOpt := app.AsynqRedisOpt(cfg)
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()
	publisher := app.NewPublisher(cfg, logr)
	defer publisher.Close()

	svc := app.New(app.Deps{
		DB:        db,
		Redis:     rdb,
		Config:    cfg,
		Log:       logr,
		Publisher: publisher,
		Enqueuer:  asynqClient,
		Locker:    lock.NewRedisLocker(rdb, logr),
	})

	processor := consumers.NewLedgerProcessor(db, logr, svc.Reconciliation, svc.Bonus, nil)

	logr.Info("Starting Asynq Worker...")
	if err := worker.StartWorker(redisOpt, processor, logr); err != nil {
		logr.Fatal("worker stopped", zap.Error(err))
	}
}
