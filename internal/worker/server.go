package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"ledger-service/internal/consumers"
	"ledger-service/internal/tasks"
)

type Worker struct {
	Processor *consumers.LedgerProcessor
}

func NewWorker(processor *consumers.LedgerProcessor) *Worker {
	return &Worker{
		Processor: processor,
	}
}

func (w *Worker) HandleNotifyTransaction(ctx context.Context, t *asynq.Task) error {
	var p tasks.NotificationPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	return w.Processor.ProcessNotification(ctx, p)
}

func (w *Worker) HandleCreditReferral(ctx context.Context, t *asynq.Task) error {
	var p tasks.ReferralCreditPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	return w.Processor.ProcessReferralCredit(ctx, p)
}

func (w *Worker) HandleReverifyTransaction(ctx context.Context, t *asynq.Task) error {
	var p tasks.ReverifyPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	return w.Processor.ProcessReverify(ctx, p)
}

// Mux routes every ledger task type to its handler.
func (w *Worker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeNotifyTransaction, w.HandleNotifyTransaction)
	mux.HandleFunc(tasks.TypeCreditReferral, w.HandleCreditReferral)
	mux.HandleFunc(tasks.TypeReverifyTransaction, w.HandleReverifyTransaction)
	return mux
}

// StartWorker blocks until the server receives a shutdown signal.
func StartWorker(redisOpt asynq.RedisClientOpt, processor *consumers.LedgerProcessor, log *zap.Logger) error {
	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				tasks.QueueCritical: 6,
				tasks.QueueDefault:  3,
				tasks.QueueLow:      1,
			},
			Logger: log.Sugar(),
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Error("task failed", zap.String("type", task.Type()), zap.ByteString("payload", task.Payload()), zap.Error(err))
			}),
		},
	)

	if err := srv.Run(NewWorker(processor).Mux()); err != nil {
		return fmt.Errorf("could not run worker: %w", err)
	}
	return nil
}
