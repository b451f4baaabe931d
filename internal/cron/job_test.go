package cron

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJobReschedule(t *testing.T) {
	t.Parallel()
	j := Job{ID: "a", Enabled: true, Schedule: Every(100)}
	require.NoError(t, j.Reschedule(1_000))
	require.Equal(t, int64(1_100), *j.State.NextRunAtMs)
	require.True(t, j.Due(1_100))
	require.False(t, j.Due(1_099))

	j.Enabled = false
	require.NoError(t, j.Reschedule(1_000))
	require.Nil(t, j.State.NextRunAtMs)
	require.False(t, j.Due(5_000))
}

func TestJobRecordRun(t *testing.T) {
	t.Parallel()
	j := Job{ID: "a", Enabled: true, Schedule: Every(100)}

	require.NoError(t, j.RecordRun(2_000, errors.New("boom")))
	require.Equal(t, int64(2_000), *j.State.LastRunAtMs)
	require.Equal(t, int64(2_100), *j.State.NextRunAtMs)
	require.Equal(t, StatusError, j.State.LastStatus)
	require.Equal(t, "boom", j.State.LastError)

	require.NoError(t, j.RecordRun(2_100, nil))
	require.Equal(t, StatusOK, j.State.LastStatus)
	require.Empty(t, j.State.LastError)
}

func TestJobCloneIsDeep(t *testing.T) {
	t.Parallel()
	j := Job{ID: "a", State: JobState{NextRunAtMs: Ptr(1), LastRunAtMs: Ptr(2)}}
	cp := j.Clone()
	*cp.State.NextRunAtMs = 10
	*cp.State.LastRunAtMs = 20
	require.Equal(t, int64(1), *j.State.NextRunAtMs)
	require.Equal(t, int64(2), *j.State.LastRunAtMs)
}
