package scheduler

import (
	"context"
	"strings"

	"cronhub/internal/cron"
	logx "cronhub/pkg/logx"
)

// AddJob validates schedule, computes the first run from now and persists the
// job. Validation failures wrap cron.ErrInvalidSchedule and leave the store
// untouched.
func (s *Service) AddJob(ctx context.Context, name string, schedule cron.Schedule, message string, enabled bool) (cron.Job, error) {
	if err := schedule.Validate(); err != nil {
		return cron.Job{}, err
	}
	nowMs := s.now().UnixMilli()
	job := cron.Job{
		Name:        strings.TrimSpace(name),
		Enabled:     enabled,
		Schedule:    schedule,
		Message:     message,
		CreatedAtMs: nowMs,
	}
	if err := job.Reschedule(nowMs); err != nil {
		return cron.Job{}, err
	}
	out, err := s.store.Add(ctx, job)
	if err != nil {
		return cron.Job{}, err
	}
	fields := []logx.Field{
		logx.String("job_id", out.ID),
		logx.String("job", out.Name),
		logx.String("schedule", out.Schedule.String()),
		logx.Bool("enabled", out.Enabled),
	}
	if out.State.NextRunAtMs != nil {
		fields = append(fields, logx.UnixMilli("next", *out.State.NextRunAtMs))
	}
	s.log.Info("job added", fields...)
	s.nudge()
	return out, nil
}

// EnableJob sets the enabled flag and recomputes the next run: cleared when
// disabling, computed from now when enabling. It returns nil for an unknown id.
func (s *Service) EnableJob(ctx context.Context, id string, enabled bool) (*cron.Job, error) {
	nowMs := s.now().UnixMilli()
	job, ok, err := s.store.Update(ctx, id, func(j *cron.Job) error {
		j.Enabled = enabled
		return j.Reschedule(nowMs)
	})
	if err != nil || !ok {
		return nil, err
	}
	s.log.Info("job enabled changed", logx.String("job_id", id), logx.Bool("enabled", enabled))
	s.nudge()
	return &job, nil
}

// GetJob returns nil for an unknown id.
func (s *Service) GetJob(ctx context.Context, id string) (*cron.Job, error) {
	job, ok, err := s.store.Get(ctx, id)
	if err != nil || !ok {
		return nil, err
	}
	return &job, nil
}

// ListJobs returns jobs in insertion order.
func (s *Service) ListJobs(ctx context.Context, includeDisabled bool) ([]cron.Job, error) {
	return s.store.List(ctx, includeDisabled)
}

// RemoveJob reports whether a job existed and was deleted.
func (s *Service) RemoveJob(ctx context.Context, id string) (bool, error) {
	removed, err := s.store.Remove(ctx, id)
	if err != nil {
		return false, err
	}
	if removed {
		s.failMu.Lock()
		delete(s.failWarn, id)
		s.failMu.Unlock()
		s.log.Info("job removed", logx.String("job_id", id))
	}
	return removed, nil
}

// RunJob runs a job's handler now, synchronously, and records the run like a
// tick would. Disabled jobs only run with force. It reports false for an
// unknown id or a disabled job without force.
func (s *Service) RunJob(ctx context.Context, id string, force bool) (bool, error) {
	job, ok, err := s.store.Get(ctx, id)
	if err != nil || !ok {
		return false, err
	}
	if !job.Enabled && !force {
		return false, nil
	}
	if !s.claim(job.ID) {
		return false, ErrJobInFlight
	}
	defer s.release(job.ID)
	s.execute(ctx, job, s.now().UnixMilli())
	return true, nil
}

// Status summarizes the service and the store.
func (s *Service) Status(ctx context.Context) (Status, error) {
	jobs, err := s.store.Load(ctx)
	if err != nil {
		return Status{}, err
	}
	st := s.State()
	out := Status{
		State:    st,
		Running:  st == StateRunning,
		Jobs:     len(jobs),
		InFlight: s.inFlightCount(),
		Tick:     s.tick,
	}
	for _, j := range jobs {
		if !j.Enabled {
			continue
		}
		out.EnabledJobs++
		if n := j.State.NextRunAtMs; n != nil && (out.NextWakeAtMs == nil || *n < *out.NextWakeAtMs) {
			out.NextWakeAtMs = cron.Ptr(*n)
		}
	}
	return out, nil
}
