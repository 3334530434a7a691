package livefeed

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/takshit12/headycoasaas/internal/model"
)

func record(id int64, createdAt time.Time) model.LabResult {
	return model.LabResult{
		ID:        id,
		CreatedAt: createdAt,
		UserID:    "user-1",
		FileName:  "coa.pdf",
		Status:    model.StatusPending,
	}
}

func ids(records []model.LabResult) []int64 {
	out := make([]int64, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestInsertKeepsNewestFirst(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	feed := New([]model.LabResult{record(1, base)})

	// Events arrive out of order; the feed must re-derive ordering from the
	// creation timestamps.
	older := record(2, base.Add(-time.Hour))
	newer := record(3, base.Add(time.Hour))
	feed.Apply(model.Event{Type: model.EventInsert, New: &older})
	feed.Apply(model.Event{Type: model.EventInsert, New: &newer})

	assert.Equal(t, []int64{3, 1, 2}, ids(feed.Records()))
}

func TestUpdateIsIdempotent(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	feed := New([]model.LabResult{record(1, base), record(2, base.Add(time.Minute))})

	updated := record(1, base)
	updated.Status = model.StatusCompleted
	desc := "Bright citrus profile, 21.4% THC."
	updated.Description = &desc

	feed.Apply(model.Event{Type: model.EventUpdate, New: &updated})
	once := feed.Records()
	feed.Apply(model.Event{Type: model.EventUpdate, New: &updated})
	twice := feed.Records()

	assert.Equal(t, once, twice)
	require.Len(t, twice, 2)
	assert.Equal(t, model.StatusCompleted, twice[1].Status)
}

func TestDuplicateInsertDoesNotDouble(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := record(1, base)
	feed := New([]model.LabResult{rec})

	// Snapshot already contained the row the subscription replays.
	feed.Apply(model.Event{Type: model.EventInsert, New: &rec})

	assert.Equal(t, 1, feed.Len())
}

func TestDeleteRemovesRecord(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	feed := New([]model.LabResult{record(1, base), record(2, base.Add(time.Minute))})

	gone := record(1, base)
	feed.Apply(model.Event{Type: model.EventDelete, Old: &gone})

	assert.Equal(t, []int64{2}, ids(feed.Records()))
}

func TestOrderingAfterMixedEvents(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	feed := New(nil)
	for _, offset := range []time.Duration{3 * time.Minute, time.Minute, 4 * time.Minute, 2 * time.Minute} {
		rec := record(int64(offset/time.Minute), base.Add(offset))
		feed.Apply(model.Event{Type: model.EventInsert, New: &rec})
	}
	updated := record(2, base.Add(2*time.Minute))
	updated.Status = model.StatusProcessing
	feed.Apply(model.Event{Type: model.EventUpdate, New: &updated})

	assert.Equal(t, []int64{4, 3, 2, 1}, ids(feed.Records()))
}

func TestRenderEmptyState(t *testing.T) {
	out := Render(nil, time.Now())
	assert.Contains(t, out, "No lab results uploaded yet.")
}

func TestRenderCards(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	desc := "Earthy indica, 18% THC, myrcene dominant."
	diag := "Failed to extract text from PDF or PDF appears empty."
	completed := record(1, now.Add(-2*time.Hour))
	completed.Status = model.StatusCompleted
	completed.Description = &desc
	errored := record(2, now.Add(-time.Minute))
	errored.Status = model.StatusError
	errored.ErrorDetails = &diag

	out := Render([]model.LabResult{errored, completed}, now)

	assert.Contains(t, out, "coa.pdf")
	assert.Contains(t, out, desc)
	assert.Contains(t, out, diag)
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "error")
	// Error card is rendered before the completed one (newest first).
	assert.Less(t, strings.Index(out, diag), strings.Index(out, desc))
}
