package queue

import (
	"context"

	"github.com/hibiken/asynq"
)

// Dispatcher hides the asynq client behind a small surface the upload handler
// can depend on.
type Dispatcher struct {
	client *asynq.Client
}

// NewDispatcher wraps an asynq client.
func NewDispatcher(client *asynq.Client) *Dispatcher {
	return &Dispatcher{client: client}
}

// Dispatch enqueues one processing job.
func (d *Dispatcher) Dispatch(ctx context.Context, payload ProcessPayload) error {
	return EnqueueProcess(ctx, d.client, payload)
}
