// Package storage persists the notification log. The pipeline never reads
// it back; it exists for auditing and retention only, and a storage failure
// must never fail a notification.
package storage

import (
	"context"
	"errors"
	"time"

	"sift/internal/notify"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file
//   - "" or "none": storage disabled (Nop store)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // 0 means default
	Retention   time.Duration // rows older than this are pruned; 0 keeps forever
}

// Record is one finalized notification.
type Record struct {
	ID        int64
	At        time.Time
	Source    string
	Title     string
	Body      string
	Priority  notify.Priority
	ActionURL string
	Status    notify.Status
	Reason    string
}

// Store is the notification log.
type Store interface {
	Append(ctx context.Context, r Record) error
	// CountByStatusSince aggregates outcomes for operational stats.
	CountByStatusSince(ctx context.Context, since time.Time) (map[notify.Status]int64, error)
	// PruneOlderThan deletes rows before cutoff and reports how many.
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}
