// Package memstore provides an in-memory lab result store guarded by an
// RWMutex. It mirrors the repository surface so handler and worker logic can
// run against it without Postgres.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/takshit12/headycoasaas/internal/model"
)

// ErrNotFound mirrors the repository sentinel for missing records.
var ErrNotFound = errors.New("lab result not found")

// Store keeps lab results in a map keyed by id.
type Store struct {
	mu      sync.RWMutex
	nextID  int64
	records map[int64]*model.LabResult
}

// New constructs a Store.
func New() *Store {
	return &Store{nextID: 1, records: make(map[int64]*model.LabResult)}
}

// Create inserts a pending record and assigns the next id.
func (s *Store) Create(_ context.Context, rec *model.LabResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = s.nextID
	s.nextID++
	rec.Status = model.StatusPending
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	cp := *rec
	s.records[rec.ID] = &cp
	return nil
}

// Get returns a record copy.
func (s *Store) Get(_ context.Context, id int64) (*model.LabResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// ListByUser returns the newest records owned by userID, newest first.
func (s *Store) ListByUser(_ context.Context, userID string, limit int) ([]model.LabResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.LabResult, 0, limit)
	for _, rec := range s.records {
		if rec.UserID == userID {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MarkProcessing sets the status to processing.
func (s *Store) MarkProcessing(ctx context.Context, id int64) (*model.LabResult, error) {
	return s.update(id, model.StatusProcessing, nil, nil)
}

// MarkCompleted stores the description and flips to completed.
func (s *Store) MarkCompleted(ctx context.Context, id int64, description string) (*model.LabResult, error) {
	return s.update(id, model.StatusCompleted, &description, nil)
}

// MarkError flips to error with a diagnostic.
func (s *Store) MarkError(ctx context.Context, id int64, details string) (*model.LabResult, error) {
	return s.update(id, model.StatusError, nil, &details)
}

func (s *Store) update(id int64, status model.Status, description, details *string) (*model.LabResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	rec.Status = status
	if description != nil {
		v := *description
		rec.Description = &v
	}
	if details != nil {
		v := *details
		rec.ErrorDetails = &v
	}
	cp := *rec
	return &cp, nil
}
