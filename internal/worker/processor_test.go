package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/takshit12/headycoasaas/internal/memstore"
	"github.com/takshit12/headycoasaas/internal/model"
	"github.com/takshit12/headycoasaas/internal/pdftest"
	"github.com/takshit12/headycoasaas/internal/queue"
)

type fakeStore struct {
	objects map[string][]byte
}

func (f *fakeStore) Download(_ context.Context, objectKey string) ([]byte, error) {
	data, ok := f.objects[objectKey]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

type fakeGenerator struct {
	description string
	err         error
	sawText     string
}

func (f *fakeGenerator) Describe(_ context.Context, extractedText string) (string, error) {
	f.sawText = extractedText
	if f.err != nil {
		return "", f.err
	}
	return f.description, nil
}

type recordingPublisher struct {
	statuses []model.Status
}

func (p *recordingPublisher) Updated(_ context.Context, rec *model.LabResult) {
	p.statuses = append(p.statuses, rec.Status)
}

func newTask(t *testing.T, path string, id int64) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(queue.ProcessPayload{PDFStoragePath: path, LabResultID: id})
	require.NoError(t, err)
	return asynq.NewTask(queue.ProcessLabResultTask, data)
}

func seedRecord(t *testing.T, repo *memstore.Store, path string) *model.LabResult {
	t.Helper()
	rec := &model.LabResult{UserID: "user-1", FileName: "coa.pdf", StoragePath: path, PageCount: 2}
	require.NoError(t, repo.Create(context.Background(), rec))
	return rec
}

func TestHandleProcessCompletes(t *testing.T) {
	ctx := context.Background()
	repo := memstore.New()
	rec := seedRecord(t, repo, "user-1/1-coa.pdf")
	store := &fakeStore{objects: map[string][]byte{
		rec.StoragePath: pdftest.Document(t, 2, "Total THC: 21.4%  Total CBD: 0.3%"),
	}}
	gen := &fakeGenerator{description: "A potent flower with 21.4% THC."}
	pub := &recordingPublisher{}
	p := NewProcessor(repo, store, gen, pub)

	require.NoError(t, p.HandleProcess(ctx, newTask(t, rec.StoragePath, rec.ID)))

	got, err := repo.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	require.NotNil(t, got.Description)
	assert.Equal(t, gen.description, *got.Description)
	assert.Nil(t, got.ErrorDetails)
	assert.Contains(t, gen.sawText, "21.4%")
	// processing signal first, completed terminal state last
	assert.Equal(t, []model.Status{model.StatusProcessing, model.StatusCompleted}, pub.statuses)
}

func TestHandleProcessMissingObject(t *testing.T) {
	ctx := context.Background()
	repo := memstore.New()
	rec := seedRecord(t, repo, "user-1/2-coa.pdf")
	p := NewProcessor(repo, &fakeStore{objects: map[string][]byte{}}, &fakeGenerator{}, &recordingPublisher{})

	require.NoError(t, p.HandleProcess(ctx, newTask(t, rec.StoragePath, rec.ID)))

	got, err := repo.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, got.Status)
	require.NotNil(t, got.ErrorDetails)
	assert.Contains(t, *got.ErrorDetails, "Storage download failed")
	assert.Nil(t, got.Description)
}

func TestHandleProcessBlankPDF(t *testing.T) {
	ctx := context.Background()
	repo := memstore.New()
	rec := seedRecord(t, repo, "user-1/3-coa.pdf")
	store := &fakeStore{objects: map[string][]byte{
		rec.StoragePath: pdftest.Document(t, 1, ""),
	}}
	gen := &fakeGenerator{description: "should never be used"}
	p := NewProcessor(repo, store, gen, &recordingPublisher{})

	require.NoError(t, p.HandleProcess(ctx, newTask(t, rec.StoragePath, rec.ID)))

	got, err := repo.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, got.Status)
	require.NotNil(t, got.ErrorDetails)
	assert.Contains(t, *got.ErrorDetails, "Failed to extract text from PDF or PDF appears empty.")
	assert.Nil(t, got.Description)
	assert.Empty(t, gen.sawText)
}

func TestHandleProcessUnparseableBytes(t *testing.T) {
	ctx := context.Background()
	repo := memstore.New()
	rec := seedRecord(t, repo, "user-1/4-coa.pdf")
	store := &fakeStore{objects: map[string][]byte{
		rec.StoragePath: []byte("%PDF-mangled beyond repair"),
	}}
	p := NewProcessor(repo, store, &fakeGenerator{}, &recordingPublisher{})

	require.NoError(t, p.HandleProcess(ctx, newTask(t, rec.StoragePath, rec.ID)))

	got, err := repo.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, got.Status)
	require.NotNil(t, got.ErrorDetails)
	assert.Contains(t, *got.ErrorDetails, "Failed to parse PDF content")
}

func TestHandleProcessGeneratorFailure(t *testing.T) {
	ctx := context.Background()
	repo := memstore.New()
	rec := seedRecord(t, repo, "user-1/5-coa.pdf")
	store := &fakeStore{objects: map[string][]byte{
		rec.StoragePath: pdftest.Document(t, 1, "Total THC: 18.0%"),
	}}
	gen := &fakeGenerator{err: errors.New("model endpoint unavailable")}
	pub := &recordingPublisher{}
	p := NewProcessor(repo, store, gen, pub)

	require.NoError(t, p.HandleProcess(ctx, newTask(t, rec.StoragePath, rec.ID)))

	got, err := repo.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, got.Status)
	require.NotNil(t, got.ErrorDetails)
	assert.Contains(t, *got.ErrorDetails, "Failed to generate description")
	// The record still passed through the processing signal before failing.
	assert.Equal(t, []model.Status{model.StatusProcessing, model.StatusError}, pub.statuses)
}

func TestHandleProcessBadPayload(t *testing.T) {
	p := NewProcessor(memstore.New(), &fakeStore{}, &fakeGenerator{}, &recordingPublisher{})
	task := asynq.NewTask(queue.ProcessLabResultTask, []byte("not json"))
	assert.Error(t, p.HandleProcess(context.Background(), task))
}
