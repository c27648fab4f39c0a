// Package tasks defines the background task types shared by the API process
// (which enqueues) and the worker process (which consumes).
package tasks

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/hibiken/asynq"
)

// Task Types
const (
	TypeNotifyTransaction   = "notify:transaction"
	TypeCreditReferral      = "bonus:credit-referral"
	TypeReverifyTransaction = "transaction:reverify"
)

// Queues
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

type NotificationPayload struct {
	Reference string `json:"reference"`
	UserID    uint   `json:"user_id"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
}

type ReferralCreditPayload struct {
	RefereeID uint   `json:"referee_id"`
	Code      string `json:"code"`
	Reference string `json:"reference"` // membership fee transaction of the referee
}

type ReverifyPayload struct {
	Reference string `json:"reference"`
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

func NewNotifyTransactionTask(payload NotificationPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeNotifyTransaction, data, asynq.MaxRetry(10), asynq.Queue(QueueLow)), nil
}

func NewCreditReferralTask(payload ReferralCreditPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeCreditReferral, data, asynq.TaskID("referral:"+payload.Reference), asynq.Queue(QueueDefault)), nil
}

func NewReverifyTransactionTask(payload ReverifyPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeReverifyTransaction, data, asynq.TaskID("reverify:"+payload.Reference), asynq.Queue(QueueCritical), asynq.MaxRetry(3)), nil
}

// Recorder is an in-memory Enqueuer.
type Recorder struct {
	mu    sync.Mutex
	tasks []*asynq.Task
	Err   error
}

func (r *Recorder) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	r.tasks = append(r.tasks, task)
	return &asynq.TaskInfo{Type: task.Type(), Payload: task.Payload()}, nil
}

// OfType returns the recorded tasks with the given type.
func (r *Recorder) OfType(typ string) []*asynq.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*asynq.Task
	for _, t := range r.tasks {
		if t.Type() == typ {
			out = append(out, t)
		}
	}
	return out
}
