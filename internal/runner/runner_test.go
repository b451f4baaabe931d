package runner

import (
	"bytes"
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cronhub/internal/cron"
	logx "cronhub/pkg/logx"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestLogHandler(t *testing.T) {
	var buf bytes.Buffer
	h := Log(logx.NewWriter(&buf, "info"))
	require.NoError(t, h.Handle(context.Background(), cron.Job{ID: "j1", Name: "report", Message: "hi"}))
	require.Contains(t, buf.String(), `"job":"report"`)
	require.Contains(t, buf.String(), `"message":"hi"`)
}

func TestCommandReceivesMessageAndEnv(t *testing.T) {
	requireShell(t)
	want := "Hello from report"
	c := &Command{Argv: []string{"sh", "-c", `read line; test "$line" = "Hello from report" && test "$CRONHUB_JOB_NAME" = report && test "$CRONHUB_JOB_ID" = j1`}}
	require.NoError(t, c.Handle(context.Background(), cron.Job{ID: "j1", Name: "report", Message: want + "\n"}))
}

func TestCommandFailureIncludesOutput(t *testing.T) {
	requireShell(t)
	c := &Command{Argv: []string{"sh", "-c", "echo disk full >&2; exit 3"}}
	err := c.Handle(context.Background(), cron.Job{ID: "j1"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "exit status 3")
	require.Contains(t, err.Error(), "disk full")
}

func TestCommandTimeout(t *testing.T) {
	requireShell(t)
	c := &Command{Argv: []string{"sh", "-c", "exec sleep 5"}, Timeout: 50 * time.Millisecond}
	start := time.Now()
	err := c.Handle(context.Background(), cron.Job{ID: "j1"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 3*time.Second)
}

func TestCommandEmpty(t *testing.T) {
	t.Parallel()
	require.Error(t, (&Command{}).Handle(context.Background(), cron.Job{}))
}

func TestTail(t *testing.T) {
	t.Parallel()
	require.Equal(t, "world", tail([]byte("hello world\n"), 6))
	require.Equal(t, "short", tail([]byte(" short "), 100))
}
