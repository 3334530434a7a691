// Package model contains struct definitions shared across packages.
package model

import (
	"time"
)

// Status describes the lab result processing lifecycle. Transitions only move
// forward: pending -> processing -> completed|error. Nothing ever transitions
// out of a terminal state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Terminal reports whether no further transition occurs once s is reached.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// LabResult holds metadata about one uploaded Certificate of Analysis.
// Description is populated only on completed records, ErrorDetails only on
// errored ones.
type LabResult struct {
	ID           int64     `json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	UserID       string    `json:"userId"`
	FileName     string    `json:"fileName"`
	StoragePath  string    `json:"-"`
	PageCount    int       `json:"pageCount"`
	Status       Status    `json:"status"`
	Description  *string   `json:"description,omitempty"`
	ErrorDetails *string   `json:"errorDetails,omitempty"`
}

// Event types delivered over the live change feed.
const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
)

// Event is a single change notification for a lab result row. New carries the
// row after an insert/update, Old identifies the row on delete.
type Event struct {
	Type string     `json:"type"`
	New  *LabResult `json:"new,omitempty"`
	Old  *LabResult `json:"old,omitempty"`
}
