package events

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTransactionEventJSON(t *testing.T) {
	evt := TransactionEvent{
		Event:      TransactionCompleted,
		Reference:  "SFH01ABC",
		Type:       "topup",
		Status:     "successful",
		Amount:     "5000",
		WalletID:   7,
		OccurredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	raw, err := json.Marshal(evt)
	require.NoError(t, err)

	var back map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, "transaction.completed", back["event"])
	assert.Equal(t, "5000", back["amount"])
	assert.NotContains(t, back, "balance_after")
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	require.NoError(t, r.Publish(context.Background(), TransactionEvent{Reference: "a"}))
	require.NoError(t, r.Publish(context.Background(), TransactionEvent{Reference: "b"}))
	assert.Len(t, r.Events(), 2)
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), TransactionEvent{}))
}

func TestKafkaPublisher(t *testing.T) {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		t.Skip("Kafka not configured")
	}
	p := NewKafkaPublisher(strings.Split(brokers, ","), "ledger.transactions.test", zap.NewNop())
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	assert.NoError(t, p.Publish(ctx, TransactionEvent{Event: TransactionCompleted, Reference: "SFHTEST"}))
}
