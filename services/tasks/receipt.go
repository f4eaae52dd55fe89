package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"pagoda/models"

	"github.com/hibiken/asynq"
)

const TypeSendReceipt = "receipt:send"

// NewReceiptTask builds the task that pushes a booking receipt to the devotee.
func NewReceiptTask(payload models.ReceiptPayload) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeSendReceipt, b)
	opts := []asynq.Option{
		asynq.MaxRetry(5),
		asynq.Queue("default"),
	}

	return task, opts, nil
}

// Enqueuer is the part of asynq.Client the queue needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ReceiptQueue schedules receipt pushes.
type ReceiptQueue struct {
	client Enqueuer
}

func NewReceiptQueue(client Enqueuer) *ReceiptQueue {
	return &ReceiptQueue{client: client}
}

func (q *ReceiptQueue) EnqueueReceipt(ctx context.Context, payload models.ReceiptPayload) error {
	task, opts, err := NewReceiptTask(payload)
	if err != nil {
		return fmt.Errorf("build receipt task: %w", err)
	}
	if _, err := q.client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("enqueue receipt task: %w", err)
	}
	return nil
}
