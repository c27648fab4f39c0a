package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"

	"ledger-service/internal/tasks"
)

func TestHandlersSkipRetryOnBadPayload(t *testing.T) {
	w := NewWorker(nil)
	handlers := map[string]asynq.HandlerFunc{
		tasks.TypeNotifyTransaction:   w.HandleNotifyTransaction,
		tasks.TypeCreditReferral:      w.HandleCreditReferral,
		tasks.TypeReverifyTransaction: w.HandleReverifyTransaction,
	}
	for typ, h := range handlers {
		err := h(context.Background(), asynq.NewTask(typ, []byte("{not json")))
		assert.True(t, errors.Is(err, asynq.SkipRetry), typ)
	}
}

func TestMuxRoutesEveryTaskType(t *testing.T) {
	mux := NewWorker(nil).Mux()
	for _, typ := range []string{tasks.TypeNotifyTransaction, tasks.TypeCreditReferral, tasks.TypeReverifyTransaction} {
		err := mux.ProcessTask(context.Background(), asynq.NewTask(typ, []byte("{")))
		assert.ErrorIs(t, err, asynq.SkipRetry, typ)
	}

	err := mux.ProcessTask(context.Background(), asynq.NewTask("unknown:type", nil))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}
