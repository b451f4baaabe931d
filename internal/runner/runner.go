// Package runner provides the job handlers `cronhub run` can dispatch to.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"cronhub/internal/cron"
	"cronhub/internal/services/scheduler"
	logx "cronhub/pkg/logx"
)

// maxOutput caps how much command output is kept for logs and errors.
const maxOutput = 4 << 10

// Log returns a handler that only logs each due job.
func Log(log logx.Logger) scheduler.Handler {
	return scheduler.HandlerFunc(func(_ context.Context, job cron.Job) error {
		log.Info("job due",
			logx.String("job_id", job.ID),
			logx.String("job", job.Name),
			logx.String("message", job.Message),
		)
		return nil
	})
}

// Command runs an external program per due job. The job message is written
// to stdin; CRONHUB_JOB_ID and CRONHUB_JOB_NAME are added to the environment.
type Command struct {
	Argv    []string
	Timeout time.Duration // zero: no timeout
	Log     logx.Logger
}

func (c *Command) Handle(ctx context.Context, job cron.Job) error {
	if len(c.Argv) == 0 || strings.TrimSpace(c.Argv[0]) == "" {
		return errors.New("runner: empty command")
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Argv[0], c.Argv[1:]...)
	cmd.Stdin = strings.NewReader(job.Message)
	cmd.Env = append(os.Environ(),
		"CRONHUB_JOB_ID="+job.ID,
		"CRONHUB_JOB_NAME="+job.Name,
	)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	// Children holding the output pipe must not outlive a cancelled run.
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()
	output := tail(out.Bytes(), maxOutput)
	if !c.Log.IsZero() {
		c.Log.Debug("job command finished",
			logx.String("job_id", job.ID),
			logx.String("cmd", c.Argv[0]),
			logx.Duration("took", time.Since(start)),
			logx.String("output", output),
		)
	}
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", c.Argv[0], ctx.Err())
	}
	if output != "" {
		return fmt.Errorf("%s: %w: %s", c.Argv[0], err, output)
	}
	return fmt.Errorf("%s: %w", c.Argv[0], err)
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return strings.TrimSpace(string(b))
}
