package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "file", cfg.Store.Driver)
	require.True(t, filepath.IsAbs(cfg.Store.Path), cfg.Store.Path)
	tick, err := cfg.TickInterval()
	require.NoError(t, err)
	require.Equal(t, DefaultTick, tick)
	require.True(t, cfg.WatchEnabled())
	require.Equal(t, DefaultAdminAddr, cfg.AdminAddr())
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "cronhub.json", `{
		"store": {"driver": "sqlite", "path": "/var/lib/cronhub/jobs.db", "busy_timeout": "2s"},
		"scheduler": {"tick": "250ms", "watch": false, "timezone": "Europe/Berlin"},
		"logging": {"level": "debug", "console": true},
		"admin": {"enabled": true, "addr": "127.0.0.1:9000", "pprof": true},
		"handler": {"command": ["/bin/cat"], "timeout": "30s"}
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.Store.Driver)
	require.Equal(t, "/var/lib/cronhub/jobs.db", cfg.Store.Path)
	tick, err := cfg.TickInterval()
	require.NoError(t, err)
	require.Equal(t, 250*time.Millisecond, tick)
	require.False(t, cfg.WatchEnabled())
	require.Equal(t, "Europe/Berlin", cfg.Scheduler.Timezone)
	require.Equal(t, "127.0.0.1:9000", cfg.AdminAddr())
	require.True(t, cfg.Admin.Pprof)
	require.Equal(t, []string{"/bin/cat"}, cfg.Handler.Command)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "cronhub.yaml", `
store:
  path: /tmp/cronhub/jobs.json
scheduler:
  tick: 50ms
logging:
  level: warn
  console: false
  file:
    enabled: true
    path: /tmp/cronhub/cronhub.log
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/cronhub/jobs.json", cfg.Store.Path)
	require.Equal(t, "file", cfg.Store.Driver, "defaults survive partial files")
	require.Equal(t, "warn", cfg.Logging.Level)
	require.True(t, cfg.Logging.File.Enabled)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name, file, content, want string
	}{
		{name: "unknown field", file: "c.json", content: `{"store": {"path": "x", "bogus": 1}}`, want: "unknown field"},
		{name: "unknown yaml field", file: "c.yml", content: "scheduler:\n  workers: 3\n", want: "unknown field"},
		{name: "trailing data", file: "c.json", content: `{"store": {"path": "x"}} {}`, want: "trailing data"},
		{name: "bad tick", file: "c.json", content: `{"scheduler": {"tick": "soon"}}`, want: "scheduler.tick"},
		{name: "huge tick", file: "c.json", content: `{"scheduler": {"tick": "1h"}}`, want: "exceeds"},
		{name: "bad driver", file: "c.json", content: `{"store": {"driver": "etcd", "path": "x"}}`, want: "unknown driver"},
		{name: "empty path", file: "c.json", content: `{"store": {"path": ""}}`, want: "store.path is required"},
		{name: "negative timeout", file: "c.json", content: `{"handler": {"timeout": "-1s"}}`, want: "handler.timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CRONHUB_STORE_PATH", "/srv/jobs.json")
	t.Setenv("CRONHUB_SCHEDULER_TICK", "200ms")
	t.Setenv("CRONHUB_ADMIN_ENABLED", "true")
	t.Setenv("CRONHUB_ADMIN_TOKEN", "s3cret")

	cfg, err := Load(writeFile(t, "c.json", `{"store": {"path": "/ignored.json"}}`))
	require.NoError(t, err)
	require.Equal(t, "/srv/jobs.json", cfg.Store.Path)
	tick, err := cfg.TickInterval()
	require.NoError(t, err)
	require.Equal(t, 200*time.Millisecond, tick)
	require.True(t, cfg.Admin.Enabled)
	require.Equal(t, "s3cret", cfg.Admin.Token)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	got, err := expandHome("~/cron/jobs.json")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, "cron", "jobs.json"), got)

	got, err = expandHome("/abs/jobs.json")
	require.NoError(t, err)
	require.Equal(t, "/abs/jobs.json", got)
}

func TestParseDuration(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationField("handler.timeout", " 90s ")
	require.NoError(t, err)
	require.Equal(t, 90*time.Second, d)

	d, err = ParseDurationField("handler.timeout", "")
	require.NoError(t, err)
	require.Zero(t, d)

	_, err = ParseDurationField("handler.timeout", "-1s")
	require.ErrorContains(t, err, "handler.timeout: -1s is negative")

	_, err = ParseDurationField("store.busy_timeout", "later")
	require.ErrorContains(t, err, `store.busy_timeout: invalid duration "later"`)

	d, err = ParseDurationOrDefault("scheduler.tick", "0s", DefaultTick)
	require.NoError(t, err)
	require.Equal(t, DefaultTick, d)

	d, err = ParseDurationOrDefault("scheduler.tick", "250ms", DefaultTick)
	require.NoError(t, err)
	require.Equal(t, 250*time.Millisecond, d)
}
