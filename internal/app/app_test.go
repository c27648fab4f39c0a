package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"ledger-service/internal/config"
	"ledger-service/internal/events"
	"ledger-service/internal/lock"
	"ledger-service/internal/tasks"
)

func TestNewWiresEveryService(t *testing.T) {
	cfg := config.Default()
	s := New(Deps{
		Config:    cfg,
		Log:       zap.NewNop(),
		Publisher: events.NopPublisher{},
		Enqueuer:  &tasks.Recorder{},
		Locker:    lock.NewLocalLocker(),
	})

	assert.NotNil(t, s.Gateway)
	assert.Same(t, s.Transactions, s.Reconciliation.Transactions)
	assert.Same(t, s.Wallets, s.Transactions.Wallets)
	assert.Same(t, s.Banks, s.Sweep.Banks)
	assert.Equal(t, "flutterwave", s.Reconciliation.Gateway.Name())
}

func TestNewPublisher(t *testing.T) {
	cfg := config.Default()
	cfg.Kafka.Brokers = ""
	_, ok := NewPublisher(cfg, zap.NewNop()).(events.NopPublisher)
	assert.True(t, ok)

	cfg.Kafka.Brokers = "localhost:9092"
	p := NewPublisher(cfg, zap.NewNop())
	_, ok = p.(*events.KafkaPublisher)
	assert.True(t, ok)
	assert.NoError(t, p.Close())
}

func TestAsynqRedisOpt(t *testing.T) {
	cfg := config.Default()
	cfg.Redis.Addr = "redis:6380"
	cfg.Redis.DB = 2
	opt := AsynqRedisOpt(cfg)
	assert.Equal(t, "redis:6380", opt.Addr)
	assert.Equal(t, 2, opt.DB)
}
