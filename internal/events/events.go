// Package events publishes ledger transaction outcomes for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	TransactionCompleted = "transaction.completed"
	TransactionFailed    = "transaction.failed"
)

type TransactionEvent struct {
	Event        string    `json:"event"`
	Reference    string    `json:"reference"`
	Type         string    `json:"type"`
	Status       string    `json:"status"`
	Amount       string    `json:"amount"`
	Currency     string    `json:"currency"`
	WalletID     uint      `json:"wallet_id"`
	UserID       uint      `json:"user_id"`
	BalanceAfter string    `json:"balance_after,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, evt TransactionEvent) error
	Close() error
}

type KafkaPublisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

func NewKafkaPublisher(brokers []string, topic string, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			BatchTimeout:           50 * time.Millisecond,
		},
		log: log,
	}
}

// Publish keys messages by reference so all events for one transaction land on one partition.
func (p *KafkaPublisher) Publish(ctx context.Context, evt TransactionEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.Reference),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(evt.Event)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s %s: %w", evt.Event, evt.Reference, err)
	}
	p.log.Debug("event published", zap.String("event", evt.Event), zap.String("reference", evt.Reference))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops events. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, TransactionEvent) error { return nil }
func (NopPublisher) Close() error                                    { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []TransactionEvent
}

func (r *Recorder) Publish(_ context.Context, evt TransactionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *Recorder) Events() []TransactionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]TransactionEvent(nil), r.events...)
}

func (r *Recorder) Close() error { return nil }
