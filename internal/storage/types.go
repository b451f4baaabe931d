package storage

import (
	"context"
	"errors"
	"time"

	"cronhub/internal/cron"
)

// ErrCorrupt reports a persisted state that cannot be decoded.
var ErrCorrupt = errors.New("store corrupt")

// Store is the persistence API used by the scheduler and the CLI.
//
// Not-found is never an error: Get and Update report it through ok=false,
// Remove through false.
type Store interface {
	Load(ctx context.Context) ([]cron.Job, error)
	// Add validates job.Schedule, assigns a fresh ID and appends the job.
	Add(ctx context.Context, job cron.Job) (cron.Job, error)
	Get(ctx context.Context, id string) (job cron.Job, ok bool, err error)
	// Update runs fn on a copy of the job inside one read-modify-write
	// transaction. If fn returns an error nothing is written.
	Update(ctx context.Context, id string, fn func(*cron.Job) error) (job cron.Job, ok bool, err error)
	Remove(ctx context.Context, id string) (bool, error)
	// List returns jobs in insertion order; disabled jobs only when asked.
	List(ctx context.Context, includeDisabled bool) ([]cron.Job, error)
	// Path is the backing file, used by watchers.
	Path() string
	Close() error
}

// Config configures storage.
//
// Driver values:
//   - "file" (default): JSON document at Path
//   - "sqlite": SQLite database file at Path
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means 5s
}
