// Package worker drives uploaded lab results to a terminal state: it
// downloads the PDF, extracts its text, asks the model for a description and
// records the outcome. Every failure past the payload decode is converted
// into a terminal error row rather than rethrown, so a record the worker has
// touched never stays non-terminal.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/takshit12/headycoasaas/internal/model"
	"github.com/takshit12/headycoasaas/internal/pdfutil"
	"github.com/takshit12/headycoasaas/internal/queue"
)

// Repo is the slice of the repository the worker needs.
type Repo interface {
	MarkProcessing(ctx context.Context, id int64) (*model.LabResult, error)
	MarkCompleted(ctx context.Context, id int64, description string) (*model.LabResult, error)
	MarkError(ctx context.Context, id int64, details string) (*model.LabResult, error)
}

// ObjectStore fetches uploaded PDF bytes by key.
type ObjectStore interface {
	Download(ctx context.Context, objectKey string) ([]byte, error)
}

// Generator produces a product description from extracted text.
type Generator interface {
	Describe(ctx context.Context, extractedText string) (string, error)
}

// Publisher announces row changes on the live feed.
type Publisher interface {
	Updated(ctx context.Context, rec *model.LabResult)
}

// Processor is plugged into the asynq worker loop.
type Processor struct {
	repo   Repo
	store  ObjectStore
	gen    Generator
	events Publisher
}

// NewProcessor constructs a worker processor.
func NewProcessor(repo Repo, store ObjectStore, gen Generator, events Publisher) *Processor {
	return &Processor{repo: repo, store: store, gen: gen, events: events}
}

// Handler registers the process job handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.ProcessLabResultTask, p.HandleProcess)
	return mux
}

// HandleProcess runs one record through download, extraction and generation.
// It always returns nil once a record id is known: failures are persisted as
// the record's terminal error state instead of being surfaced to asynq, which
// would otherwise re-run the job and overwrite that state.
func (p *Processor) HandleProcess(ctx context.Context, task *asynq.Task) error {
	var payload queue.ProcessPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	failure := func(msg string, err error) error {
		details := msg
		if err != nil {
			details = fmt.Sprintf("%s: %v", msg, err)
		}
		log.Printf("processing failed for record %d: %s", payload.LabResultID, details)
		rec, markErr := p.repo.MarkError(ctx, payload.LabResultID, details)
		if markErr != nil {
			log.Printf("mark error for record %d: %v", payload.LabResultID, markErr)
			return nil
		}
		p.events.Updated(ctx, rec)
		return nil
	}

	data, err := p.store.Download(ctx, payload.PDFStoragePath)
	if err != nil {
		return failure("Storage download failed", err)
	}
	if len(data) == 0 {
		return failure("Downloaded PDF is empty", nil)
	}

	// Optimistic UI signal only; a failed write here understates progress but
	// does not gate the terminal outcome.
	if rec, err := p.repo.MarkProcessing(ctx, payload.LabResultID); err != nil {
		log.Printf("mark processing for record %d: %v", payload.LabResultID, err)
	} else {
		p.events.Updated(ctx, rec)
	}

	text, err := pdfutil.ExtractText(data)
	if err != nil {
		return failure("Failed to parse PDF content", err)
	}
	if text == "" {
		return failure("Failed to extract text from PDF or PDF appears empty.", nil)
	}

	description, err := p.gen.Describe(ctx, text)
	if err != nil {
		return failure("Failed to generate description", err)
	}

	rec, err := p.repo.MarkCompleted(ctx, payload.LabResultID, description)
	if err != nil {
		return failure("Failed to store generated description", err)
	}
	p.events.Updated(ctx, rec)
	log.Printf("record %d processed (%d chars of text)", payload.LabResultID, len(text))
	return nil
}
