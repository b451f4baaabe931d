package scheduler

import (
	"context"
	"errors"
	"time"

	"cronhub/internal/cron"
	"cronhub/internal/storage"
	logx "cronhub/pkg/logx"
)

var (
	ErrAlreadyRunning = errors.New("scheduler already running")
	ErrJobInFlight    = errors.New("job is already running")
)

// Handler runs a due job. It must be safe to call concurrently for distinct
// jobs. The context is not cancelled by Stop.
type Handler interface {
	Handle(ctx context.Context, job cron.Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job cron.Job) error

func (f HandlerFunc) Handle(ctx context.Context, job cron.Job) error { return f(ctx, job) }

// State is the polling loop state.
type State int

const (
	StateStopped State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "stopped"
}

const DefaultTick = 100 * time.Millisecond

// Config wires a Service.
type Config struct {
	Store storage.Store
	// Handler may be nil for CRUD-only instances; a running loop without a
	// handler still records runs.
	Handler Handler
	Tick    time.Duration // default 100ms
	// Watch enables an fsnotify watcher that wakes the loop on store changes.
	Watch   bool
	Log     logx.Logger
	Metrics *Metrics
	// Now overrides the clock; tests only.
	Now func() time.Time
}

// Status is a point-in-time summary of a Service and its store.
type Status struct {
	State        State         `json:"-"`
	Running      bool          `json:"running"`
	Jobs         int           `json:"jobs"`
	EnabledJobs  int           `json:"enabledJobs"`
	InFlight     int           `json:"inFlight"`
	NextWakeAtMs *int64        `json:"nextWakeAtMs,omitempty"`
	Tick         time.Duration `json:"tickNs"`
}
