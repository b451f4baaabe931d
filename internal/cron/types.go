package cron

// ScheduleKind selects how a Schedule computes its next firing time.
type ScheduleKind string

const (
	KindCron  ScheduleKind = "cron"  // 5-field cron expression + timezone
	KindEvery ScheduleKind = "every" // fixed interval in milliseconds
)

// Schedule describes when a job fires.
//
// Exactly one of (Expr, TZ) or EveryMs is populated, consistent with Kind.
type Schedule struct {
	Kind    ScheduleKind `json:"kind"`
	Expr    string       `json:"expr,omitempty"`
	TZ      string       `json:"tz,omitempty"`
	EveryMs int64        `json:"everyMs,omitempty"`
}

// Cron returns a cron schedule. Call Validate before persisting it.
func Cron(expr, tz string) Schedule {
	return Schedule{Kind: KindCron, Expr: expr, TZ: tz}
}

// Every returns a fixed-interval schedule.
func Every(ms int64) Schedule {
	return Schedule{Kind: KindEvery, EveryMs: ms}
}

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// JobState is the run-state of a job. Timestamps are epoch milliseconds;
// nil means "never" (LastRunAtMs) or "not scheduled" (NextRunAtMs).
type JobState struct {
	NextRunAtMs *int64 `json:"nextRunAtMs,omitempty"`
	LastRunAtMs *int64 `json:"lastRunAtMs,omitempty"`
	LastStatus  string `json:"lastStatus,omitempty"`
	LastError   string `json:"lastError,omitempty"`
}

// Job is a persisted unit of scheduled work.
type Job struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Enabled     bool     `json:"enabled"`
	Schedule    Schedule `json:"schedule"`
	Message     string   `json:"message"`
	State       JobState `json:"state"`
	CreatedAtMs int64    `json:"createdAtMs"`
	UpdatedAtMs int64    `json:"updatedAtMs"`
}
