package config

// Config is the cronhub configuration file (JSON or YAML).
//
// All durations are Go duration strings (e.g. "100ms", "5s", "1m").
type Config struct {
	Store     StoreConfig     `json:"store"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Logging   LoggingConfig   `json:"logging"`
	Admin     AdminConfig     `json:"admin,omitempty"`
	Handler   HandlerConfig   `json:"handler,omitempty"`
}

// StoreConfig selects the job store.
//
// Example:
//
//	"store": { "driver": "file", "path": "~/.cronhub/cron/jobs.json" }
type StoreConfig struct {
	Driver      string `json:"driver,omitempty"` // "file" (default) | "sqlite"
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// SchedulerConfig controls the polling loop.
//
// Defaults (when fields are omitted/zero):
//   - tick: "100ms"
//   - watch: true
type SchedulerConfig struct {
	Tick string `json:"tick,omitempty"`
	// Watch wakes the loop early on store changes (fsnotify). Pointer so an
	// explicit false can be told apart from "omitted".
	Watch *bool `json:"watch,omitempty"`
	// Timezone is the default tz used by `cronhub add` for cron schedules.
	// It is never applied to schedules already in the store.
	Timezone string `json:"timezone,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	JSON    bool        `json:"json,omitempty"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// AdminConfig controls the read-only HTTP surface (health, metrics, jobs).
//
// Prefer binding to localhost (e.g. "127.0.0.1:9464"). A non-loopback addr
// requires Token or AllowInsecure.
type AdminConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"` // default: "127.0.0.1:9464"
	Token         string `json:"token,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	// Pprof mounts net/http/pprof under /debug.
	Pprof bool `json:"pprof,omitempty"`
}

// HandlerConfig controls what `cronhub run` does with a due job.
//
// With an empty command the job is only logged. Otherwise the command runs
// with the job message on stdin and CRONHUB_JOB_ID / CRONHUB_JOB_NAME set.
type HandlerConfig struct {
	Command []string `json:"command,omitempty"`
	Timeout string   `json:"timeout,omitempty"` // "0s" or omitted: no timeout
}
