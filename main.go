package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"ledger-service/internal/app"
	"ledger-service/internal/config"
	"ledger-service/internal/database"
	grpcServer "ledger-service/internal/grpc"
	"ledger-service/internal/handlers"
	"ledger-service/internal/lock"
	"ledger-service/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logr := logger.Must(cfg.Env)
	defer logr.Sync()

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	// Database
	db, err := database.Connect(cfg, logr)
	if err != nil {
		logr.Fatal("Failed to connect database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logr.Fatal("Failed to migrate database", zap.Error(err))
	}

	// Redis, Asynq and Kafka
	rdb := app.NewRedis(cfg)
	defer rdb.Close()
	asynqClient := asynq.NewClient(app.AsynqRedisOpt(cfg))
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

	// gRPC
	gs, err := grpcServer.StartGRPCServer(cfg.GRPCPort, &grpcServer.Server{
		Log:            logr,
		Wallets:        svc.Wallets,
		Transactions:   svc.Transactions,
		Reconciliation: svc.Reconciliation,
	})
	if err != nil {
		logr.Fatal("Failed to start gRPC server", zap.Error(err))
	}

	// Cron
	scheduler, err := svc.Sweep.StartScheduler()
	if err != nil {
		logr.Fatal("Failed to start scheduler", zap.Error(err))
	}

	// HTTP
	r := gin.New()
	r.Use(gin.Recovery(), handlers.RequestLogger(logr))
	h := &handlers.Handler{
		Config:         cfg,
		Log:            logr,
		Users:          svc.Users,
		Wallets:        svc.Wallets,
		Transactions:   svc.Transactions,
		Reconciliation: svc.Reconciliation,
		Membership:     svc.Membership,
		Deposits:       svc.Deposits,
		Withdrawals:    svc.Withdrawals,
		Investments:    svc.Investments,
		Savings:        svc.Savings,
		Bonus:          svc.Bonus,
		Banks:          svc.Banks,
		Webhooks:       svc.Gateway,
	}
	h.Register(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Info("HTTP server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logr.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("HTTP shutdown", zap.Error(err))
	}
	gs.GracefulStop()
	<-scheduler.Stop().Done()
}
