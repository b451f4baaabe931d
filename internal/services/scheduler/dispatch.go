package scheduler

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"cronhub/internal/cron"
	logx "cronhub/pkg/logx"
)

const failureWarnEvery = 30 * time.Second

// runTick reloads the store and dispatches every due job that is not already
// in flight.
func (s *Service) runTick(ctx context.Context) {
	start := time.Now()
	jobs, err := s.store.Load(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.metrics.tickFailed()
			s.log.Error("tick: store reload failed", logx.String("store", s.store.Path()), logx.Err(err))
		}
		return
	}
	nowMs := s.now().UnixMilli()
	for _, j := range jobs {
		if ctx.Err() != nil {
			return
		}
		if j.Enabled && j.State.NextRunAtMs == nil {
			s.repair(ctx, j, nowMs)
			continue
		}
		if !j.Due(nowMs) || !s.claim(j.ID) {
			continue
		}
		s.runs.Add(1)
		go func(job cron.Job) {
			defer s.runs.Done()
			defer s.release(job.ID)
			// Stop must not cancel a run already under way.
			s.execute(context.WithoutCancel(ctx), job, nowMs)
		}(j)
	}
	s.metrics.tickDone(time.Since(start))
}

// execute invokes the handler and records the outcome as one store update.
func (s *Service) execute(ctx context.Context, job cron.Job, startedMs int64) {
	log := s.log.With(logx.String("job_id", job.ID), logx.String("job", job.Name))
	log.Debug("dispatching job", logx.String("schedule", job.Schedule.String()))

	start := time.Now()
	runErr := s.invoke(ctx, job)
	s.metrics.dispatched(runErr, time.Since(start))
	if runErr != nil {
		s.reportFailure(log, job.ID, runErr)
	}

	_, ok, err := s.store.Update(ctx, job.ID, func(j *cron.Job) error {
		if err := j.RecordRun(startedMs, runErr); err != nil {
			// A schedule that no longer computes cannot be kept enabled.
			j.Enabled = false
			j.State.NextRunAtMs = nil
			j.State.LastStatus = cron.StatusError
			j.State.LastError = err.Error()
		}
		return nil
	})
	switch {
	case err != nil:
		log.Error("job run-state not recorded", logx.Err(err))
	case !ok:
		log.Debug("job removed while running; run-state dropped")
	default:
		log.Debug("job finished", logx.Duration("took", time.Since(start)), logx.Bool("ok", runErr == nil))
	}
}

// invoke calls the handler, turning a panic into an error.
func (s *Service) invoke(ctx context.Context, job cron.Job) (err error) {
	if s.handler == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			s.metrics.panicked()
			s.log.Error("job handler panic",
				logx.String("job_id", job.ID),
				logx.Any("panic", r),
				logx.Stack(logx.StackTrace(3, 16)),
			)
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return s.handler.Handle(ctx, job)
}

// repair schedules an enabled job that has no next run (e.g. edited by hand).
func (s *Service) repair(ctx context.Context, job cron.Job, nowMs int64) {
	_, _, err := s.store.Update(ctx, job.ID, func(j *cron.Job) error {
		if !j.Enabled || j.State.NextRunAtMs != nil {
			return nil
		}
		if err := j.Reschedule(nowMs); err != nil {
			j.Enabled = false
			j.State.LastStatus = cron.StatusError
			j.State.LastError = err.Error()
		}
		return nil
	})
	if err != nil {
		s.log.Warn("job reschedule failed", logx.String("job_id", job.ID), logx.Err(err))
		return
	}
	s.log.Info("job rescheduled", logx.String("job_id", job.ID), logx.String("job", job.Name))
}

func (s *Service) claim(id string) bool {
	s.flightMu.Lock()
	defer s.flightMu.Unlock()
	if _, busy := s.inFlight[id]; busy {
		return false
	}
	s.inFlight[id] = struct{}{}
	s.metrics.setInFlight(len(s.inFlight))
	return true
}

func (s *Service) release(id string) {
	s.flightMu.Lock()
	delete(s.inFlight, id)
	s.metrics.setInFlight(len(s.inFlight))
	s.flightMu.Unlock()
}

func (s *Service) inFlightCount() int {
	s.flightMu.Lock()
	defer s.flightMu.Unlock()
	return len(s.inFlight)
}

// reportFailure logs handler errors, at most one warning per job per
// failureWarnEvery; the rest go to debug.
func (s *Service) reportFailure(log logx.Logger, id string, err error) {
	s.failMu.Lock()
	lim, ok := s.failWarn[id]
	if !ok {
		lim = rate.NewLimiter(rate.Every(failureWarnEvery), 1)
		s.failWarn[id] = lim
	}
	allow := lim.Allow()
	s.failMu.Unlock()

	if allow {
		log.Warn("job handler failed", logx.Err(err))
		return
	}
	log.Debug("job handler failed (throttled)", logx.Err(err))
}
