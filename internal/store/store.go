// Package store persists subject history and memory snapshots in SQLite.
package store

import (
	"context"
	"errors"

	"github.com/rcliao/turn-memory/internal/model"
)

// ErrNotFound is returned when a subject has no stored data.
var ErrNotFound = errors.New("store: not found")

// AppendParams holds parameters for storing a record.
type AppendParams struct {
	Subject string
	Record  model.Record
}

// HistoryParams holds parameters for reading a subject's history.
type HistoryParams struct {
	Subject string
	Limit   int // most recent N, 0 means all
}

// RmParams holds parameters for deleting a subject.
type RmParams struct {
	Subject string
	Hard    bool
}

// Store defines the persistence interface the memory collaborates with.
type Store interface {
	// AppendRecord adds a record to a subject's history.
	AppendRecord(ctx context.Context, p AppendParams) (*model.StoredRecord, error)

	// History returns a subject's records, oldest first.
	History(ctx context.Context, p HistoryParams) ([]model.StoredRecord, error)

	// SaveSnapshot replaces the stored snapshot of snap.Subject.
	SaveSnapshot(ctx context.Context, snap model.Snapshot) error

	// LoadSnapshot returns the stored snapshot of subject, or ErrNotFound.
	LoadSnapshot(ctx context.Context, subject string) (*model.Snapshot, error)

	// Subjects lists every subject with history or a snapshot.
	Subjects(ctx context.Context) ([]string, error)

	// DeleteSubject soft-deletes (or hard-deletes) a subject's history and
	// drops its snapshot.
	DeleteSubject(ctx context.Context, p RmParams) (int, error)

	// Close closes the store.
	Close() error
}
