package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger-service/internal/models"
	"ledger-service/internal/tasks"
)

func TestSweepPendingQueuesStaleGatewayTransactions(t *testing.T) {
	env := newTestEnv(t)
	user, wallet := env.member(t, "1000")
	ctx := context.Background()

	stale := env.topUp(t, user, "100")
	env.backdate(t, stale, time.Hour)
	fresh := env.topUp(t, user, "100")

	done := env.topUp(t, user, "100")
	require.NoError(t, env.txs.Complete(ctx, done, "ext"))
	env.backdate(t, done, time.Hour)

	internal, err := env.txs.Create(env.db, CreateTransactionDTO{
		Initiator: user.ID, WalletID: wallet.ID, Amount: dec("10"),
		Direction: models.DirectionIncoming, Type: models.TxReferralBonusDeposit, FundSource: models.FundSourceNone,
	})
	require.NoError(t, err)
	env.backdate(t, internal, time.Hour)

	n, err := env.sweep.SweepPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	queued := env.tasks.OfType(tasks.TypeReverifyTransaction)
	require.Len(t, queued, 1)
	var payload tasks.ReverifyPayload
	require.NoError(t, json.Unmarshal(queued[0].Payload(), &payload))
	assert.Equal(t, stale.Reference, payload.Reference)
	assert.NotEqual(t, fresh.Reference, payload.Reference)
}

func TestSweepToleratesDuplicateTasks(t *testing.T) {
	env := newTestEnv(t)
	user, _ := env.member(t, "0")
	stale := env.topUp(t, user, "100")
	env.backdate(t, stale, time.Hour)
	env.tasks.Err = asynq.ErrTaskIDConflict

	n, err := env.sweep.SweepPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStartScheduler(t *testing.T) {
	env := newTestEnv(t)
	c, err := env.sweep.StartScheduler()
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 2)
	<-c.Stop().Done()

	env.cfg.Ledger.SweepSchedule = "not a schedule"
	_, err = env.sweep.StartScheduler()
	assert.Error(t, err)
}
