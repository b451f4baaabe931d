package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cronhub/internal/cron"
)

func execute(ctx context.Context, t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func listJSON(t *testing.T, store string) []cron.Job {
	t.Helper()
	out, err := execute(context.Background(), t, "--store", store, "list", "--all", "--json")
	require.NoError(t, err)
	var jobs []cron.Job
	require.NoError(t, json.Unmarshal([]byte(out), &jobs))
	return jobs
}

func TestJobLifecycle(t *testing.T) {
	ctx := context.Background()
	store := filepath.Join(t.TempDir(), "jobs.json")

	out, err := execute(ctx, t, "--store", store, "add", "heartbeat", "--every", "1h", "--message", "ping")
	require.NoError(t, err)
	id := strings.Fields(out)[0]
	require.Len(t, id, 36)

	out, err = execute(ctx, t, "--store", store, "list")
	require.NoError(t, err)
	require.Contains(t, out, "heartbeat")
	require.Contains(t, out, "every 1h0m0s")

	_, err = execute(ctx, t, "--store", store, "disable", id)
	require.NoError(t, err)
	out, err = execute(ctx, t, "--store", store, "list")
	require.NoError(t, err)
	require.NotContains(t, out, id)

	jobs := listJSON(t, store)
	require.Len(t, jobs, 1)
	require.False(t, jobs[0].Enabled)
	require.Nil(t, jobs[0].State.NextRunAtMs)

	_, err = execute(ctx, t, "--store", store, "trigger", id)
	require.ErrorContains(t, err, "disabled")

	out, err = execute(ctx, t, "--store", store, "trigger", "--force", id)
	require.NoError(t, err)
	require.Contains(t, out, "status=ok")

	_, err = execute(ctx, t, "--store", store, "enable", id)
	require.NoError(t, err)
	jobs = listJSON(t, store)
	require.True(t, jobs[0].Enabled)
	require.NotNil(t, jobs[0].State.NextRunAtMs)
	require.NotNil(t, jobs[0].State.LastRunAtMs)

	out, err = execute(ctx, t, "--store", store, "remove", id)
	require.NoError(t, err)
	require.Contains(t, out, "removed "+id)

	_, err = execute(ctx, t, "--store", store, "remove", id)
	require.ErrorContains(t, err, "not found")
	require.Empty(t, listJSON(t, store))
}

func TestAddValidation(t *testing.T) {
	ctx := context.Background()
	store := filepath.Join(t.TempDir(), "jobs.json")
	t.Setenv("CRONHUB_SCHEDULER_TIMEZONE", "")

	_, err := execute(ctx, t, "--store", store, "add", "x", "--cron", "0 9 * * *")
	require.ErrorContains(t, err, "--tz is required")

	_, err = execute(ctx, t, "--store", store, "add", "x", "--cron", "0 9 * * *", "--tz", "Nowhere/Special")
	require.ErrorIs(t, err, cron.ErrInvalidSchedule)
	require.ErrorContains(t, err, "unknown timezone 'Nowhere/Special'")

	_, err = execute(ctx, t, "--store", store, "add", "x", "--cron", "0 9 * * *", "--every", "1m")
	require.Error(t, err)

	_, err = execute(ctx, t, "--store", store, "add", "x")
	require.Error(t, err)

	_, err = execute(ctx, t, "--store", store, "add", "x", "--every", "0s")
	require.ErrorContains(t, err, "below 1ms")

	require.Empty(t, listJSON(t, store))
}

func TestAddUsesConfiguredTimezone(t *testing.T) {
	dir := t.TempDir()
	store := filepath.Join(dir, "jobs.json")
	cfgPath := filepath.Join(dir, "cronhub.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("store:\n  path: "+store+"\nscheduler:\n  timezone: Asia/Tokyo\n"), 0o644))

	_, err := execute(context.Background(), t, "--config", cfgPath, "add", "morning", "--cron", "0 9 * * *")
	require.NoError(t, err)
	jobs := listJSON(t, store)
	require.Len(t, jobs, 1)
	require.Equal(t, "Asia/Tokyo", jobs[0].Schedule.TZ)
}

func TestRunDispatchesToCommand(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	store := filepath.Join(dir, "jobs.json")
	outFile := filepath.Join(dir, "out.txt")
	cfg := map[string]any{
		"store":     map[string]any{"path": store},
		"scheduler": map[string]any{"tick": "20ms"},
		"logging":   map[string]any{"level": "warn", "console": true},
		"handler":   map[string]any{"command": []string{"sh", "-c", "cat >> " + outFile}, "timeout": "5s"},
	}
	b, err := json.Marshal(cfg)
	require.NoError(t, err)
	cfgPath := filepath.Join(dir, "cronhub.json")
	require.NoError(t, os.WriteFile(cfgPath, b, 0o644))

	_, err = execute(context.Background(), t, "--config", cfgPath, "add", "beat", "--every", "50ms", "--message", "tick\n")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 700*time.Millisecond)
	defer cancel()
	_, err = execute(ctx, t, "--config", cfgPath, "run")
	require.NoError(t, err)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	require.Contains(t, string(data), "tick")

	jobs := listJSON(t, store)
	require.Len(t, jobs, 1)
	require.Equal(t, cron.StatusOK, jobs[0].State.LastStatus)
	require.NotNil(t, jobs[0].State.LastRunAtMs)
}

func TestScheduleFromFlags(t *testing.T) {
	t.Parallel()
	s, err := scheduleFromFlags("", "", "90s", "")
	require.NoError(t, err)
	require.Equal(t, cron.Every(90_000), s)

	s, err = scheduleFromFlags("*/5 * * * *", "", "", "UTC")
	require.NoError(t, err)
	require.Equal(t, cron.Cron("*/5 * * * *", "UTC"), s)

	s, err = scheduleFromFlags("*/5 * * * *", "Europe/Paris", "", "UTC")
	require.NoError(t, err)
	require.Equal(t, "Europe/Paris", s.TZ)

	_, err = scheduleFromFlags("", "", "soon", "")
	require.Error(t, err)
}
