package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// ProcessLabResultTask is scheduled once per uploaded COA.
	ProcessLabResultTask = "labresult:process"
)

// ProcessPayload is serialized into the task payload so the worker knows which
// object to download and which row to drive to a terminal state.
type ProcessPayload struct {
	PDFStoragePath string `json:"pdf_storage_path"`
	LabResultID    int64  `json:"lab_result_id"`
}

// EnqueueProcess enqueues a processing job. MaxRetry is zero: the worker
// converts every failure into a terminal error row itself, and re-running a
// job would overwrite that terminal state.
func EnqueueProcess(ctx context.Context, client *asynq.Client, payload ProcessPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(ProcessLabResultTask, data)
	if _, err := client.EnqueueContext(ctx, task, asynq.MaxRetry(0)); err != nil {
		return fmt.Errorf("enqueue process task: %w", err)
	}
	return nil
}
