package cron

// Clone returns a deep copy of j.
func (j Job) Clone() Job {
	cp := j
	cp.State.NextRunAtMs = clonePtr(j.State.NextRunAtMs)
	cp.State.LastRunAtMs = clonePtr(j.State.LastRunAtMs)
	return cp
}

// Due reports whether j is enabled and its next run is at or before nowMs.
func (j Job) Due(nowMs int64) bool {
	return j.Enabled && j.State.NextRunAtMs != nil && *j.State.NextRunAtMs <= nowMs
}

// Reschedule recomputes NextRunAtMs from fromMs: nil when disabled, otherwise
// the schedule's next firing time after fromMs.
func (j *Job) Reschedule(fromMs int64) error {
	if !j.Enabled {
		j.State.NextRunAtMs = nil
		return nil
	}
	next, err := j.Schedule.NextAfter(fromMs)
	if err != nil {
		j.State.NextRunAtMs = nil
		return err
	}
	j.State.NextRunAtMs = &next
	return nil
}

// RecordRun stores the outcome of a dispatch that started at startedMs and
// reschedules from that instant. A nil runErr records success.
func (j *Job) RecordRun(startedMs int64, runErr error) error {
	j.State.LastRunAtMs = &startedMs
	if runErr != nil {
		j.State.LastStatus = StatusError
		j.State.LastError = runErr.Error()
	} else {
		j.State.LastStatus = StatusOK
		j.State.LastError = ""
	}
	return j.Reschedule(startedMs)
}

// Ptr returns a pointer to v.
func Ptr(v int64) *int64 { return &v }

func clonePtr(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
