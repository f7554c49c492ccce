package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidTimezone(t *testing.T) {
	_, err := New("Mars/Olympus_Mons")
	assert.Error(t, err)

	s, err := New("")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, s.timezone)
}

func TestScheduler_AddJob(t *testing.T) {
	s, err := New("UTC")
	require.NoError(t, err)
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.AddJob("b", "@every 1m", time.Second, noop))
	require.NoError(t, s.AddJob("a", "0 * * * *", 0, noop))
	assert.Error(t, s.AddJob("a", "@every 1m", 0, noop), "duplicate name")
	assert.Error(t, s.AddJob("c", "not a schedule", 0, noop))

	jobs := s.ListJobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "a", jobs[0].Name)
	assert.Equal(t, "0 * * * *", jobs[0].Schedule)
	assert.Equal(t, "b", jobs[1].Name)

	s.RemoveJob("a")
	assert.Len(t, s.ListJobs(), 1)
}

func TestScheduler_RunNow(t *testing.T) {
	s, err := New("UTC")
	require.NoError(t, err)

	var deadline time.Time
	require.NoError(t, s.AddJob("tick", "@every 1h", 2*time.Second, func(ctx context.Context) error {
		deadline, _ = ctx.Deadline()
		return nil
	}))
	require.NoError(t, s.RunNow(context.Background(), "tick"))
	assert.WithinDuration(t, time.Now().Add(2*time.Second), deadline, time.Second)

	boom := errors.New("boom")
	require.NoError(t, s.AddJob("fail", "@every 1h", 0, func(context.Context) error { return boom }))
	assert.ErrorIs(t, s.RunNow(context.Background(), "fail"), boom)

	assert.Error(t, s.RunNow(context.Background(), "missing"))
}

func TestScheduler_StartRunsJobs(t *testing.T) {
	s, err := New("UTC")
	require.NoError(t, err)

	var runs atomic.Int32
	require.NoError(t, s.AddJob("fast", "@every 1s", time.Second, func(context.Context) error {
		runs.Add(1)
		return nil
	}))

	s.Start()
	assert.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	<-s.Stop().Done()
}
