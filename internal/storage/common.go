package storage

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"cronhub/internal/cron"
)

// prepareNew validates job and fills the fields the store owns.
// exists reports IDs already present so a fresh ID is never reused; its error
// aborts the add.
func prepareNew(job cron.Job, now time.Time, exists func(id string) (bool, error)) (cron.Job, error) {
	if err := job.Schedule.Validate(); err != nil {
		return cron.Job{}, err
	}
	job = job.Clone()
	for {
		job.ID = uuid.NewString()
		if exists == nil {
			break
		}
		taken, err := exists(job.ID)
		if err != nil {
			return cron.Job{}, fmt.Errorf("check job id: %w", err)
		}
		if !taken {
			break
		}
	}
	ms := now.UnixMilli()
	if job.CreatedAtMs == 0 {
		job.CreatedAtMs = ms
	}
	job.UpdatedAtMs = ms
	return job, nil
}

// applyUpdate runs fn on a copy of cur and pins the identity fields.
func applyUpdate(cur cron.Job, now time.Time, fn func(*cron.Job) error) (cron.Job, error) {
	next := cur.Clone()
	if fn != nil {
		if err := fn(&next); err != nil {
			return cron.Job{}, err
		}
	}
	if next.ID != cur.ID {
		return cron.Job{}, fmt.Errorf("update %s: job id is immutable", cur.ID)
	}
	next.CreatedAtMs = cur.CreatedAtMs
	next.UpdatedAtMs = now.UnixMilli()
	return next, nil
}

func filterEnabled(jobs []cron.Job, includeDisabled bool) []cron.Job {
	if includeDisabled {
		return jobs
	}
	out := make([]cron.Job, 0, len(jobs))
	for _, j := range jobs {
		if j.Enabled {
			out = append(out, j)
		}
	}
	return out
}
