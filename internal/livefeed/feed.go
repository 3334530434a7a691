// Package livefeed maintains a live-updated, newest-first view of a user's
// lab results. The change feed does not guarantee delivery order, so the feed
// re-derives ordering from creation time after every insert or update instead
// of trusting arrival order.
package livefeed

import (
	"sort"

	"github.com/takshit12/headycoasaas/internal/model"
)

// Feed reduces change events over an initial snapshot. It is not safe for
// concurrent use; callers apply events from a single goroutine.
type Feed struct {
	records []model.LabResult
}

// New seeds a feed from the initial snapshot, sorted newest first.
func New(initial []model.LabResult) *Feed {
	f := &Feed{records: append([]model.LabResult(nil), initial...)}
	f.sort()
	return f
}

// Apply folds one change event into the list. Applying the same UPDATE twice
// leaves the list unchanged after the first application.
func (f *Feed) Apply(ev model.Event) {
	switch ev.Type {
	case model.EventInsert:
		if ev.New == nil {
			return
		}
		// The record may already be present if the snapshot raced the
		// subscription; treat that as an update.
		if f.replace(*ev.New) {
			f.sort()
			return
		}
		f.records = append([]model.LabResult{*ev.New}, f.records...)
		f.sort()
	case model.EventUpdate:
		if ev.New == nil {
			return
		}
		f.replace(*ev.New)
		f.sort()
	case model.EventDelete:
		if ev.Old == nil {
			return
		}
		kept := f.records[:0]
		for _, rec := range f.records {
			if rec.ID != ev.Old.ID {
				kept = append(kept, rec)
			}
		}
		f.records = kept
	}
}

// Records returns a copy of the current list, newest first.
func (f *Feed) Records() []model.LabResult {
	return append([]model.LabResult(nil), f.records...)
}

// Len returns the number of records in view.
func (f *Feed) Len() int {
	return len(f.records)
}

func (f *Feed) replace(rec model.LabResult) bool {
	for i := range f.records {
		if f.records[i].ID == rec.ID {
			f.records[i] = rec
			return true
		}
	}
	return false
}

func (f *Feed) sort() {
	sort.SliceStable(f.records, func(i, j int) bool {
		return f.records[i].CreatedAt.After(f.records[j].CreatedAt)
	})
}
