package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcJob struct {
	name string
	run  func(ctx context.Context) error
}

func (j *funcJob) Name() string                  { return j.name }
func (j *funcJob) Description() string           { return "test job " + j.name }
func (j *funcJob) Run(ctx context.Context) error { return j.run(ctx) }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestEvery_Next(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 2, 30, 0, time.UTC)

	plain := NewIntervalSchedule(5 * time.Minute)
	assert.Equal(t, base.Add(5*time.Minute), plain.Next(base))
	assert.Equal(t, "@every 5m0s", plain.String())

	aligned := &Every{Interval: 5 * time.Minute, Align: true}
	assert.Equal(t, time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC), aligned.Next(base))

	assert.Equal(t, time.Second, NewIntervalSchedule(0).Interval)
}

func TestScheduler_RegisterRejectsDuplicatesAndNil(t *testing.T) {
	s := New(Config{})
	job := &funcJob{name: "a", run: func(context.Context) error { return nil }}

	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Minute)))
	assert.ErrorIs(t, s.Register(job, NewIntervalSchedule(time.Minute)), ErrJobAlreadyExists)
	assert.ErrorIs(t, s.Register(nil, NewIntervalSchedule(time.Minute)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&funcJob{name: "b"}, nil), ErrNilSchedule)
}

func TestScheduler_ClaimDueAdvancesNextRun(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	s := New(Config{Now: clock.Now})

	job := &funcJob{name: "evict", run: func(context.Context) error { return nil }}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Minute)))

	assert.Empty(t, s.claimDue(clock.Now()))

	clock.Advance(time.Minute)
	due := s.claimDue(clock.Now())
	require.Len(t, due, 1)

	// Still in flight: a second claim at the next slot is skipped.
	clock.Advance(time.Minute)
	assert.Empty(t, s.claimDue(clock.Now()))

	s.execute(context.Background(), due[0], false)
	clock.Advance(time.Minute)
	assert.Len(t, s.claimDue(clock.Now()), 1)
}

func TestScheduler_RunNowRecordsResult(t *testing.T) {
	s := New(Config{})
	boom := errors.New("boom")

	require.NoError(t, s.Register(&funcJob{name: "ok", run: func(context.Context) error { return nil }}, NewIntervalSchedule(time.Hour)))
	require.NoError(t, s.Register(&funcJob{name: "bad", run: func(context.Context) error { return boom }}, NewIntervalSchedule(time.Hour)))

	res, err := s.RunNow(context.Background(), "ok")
	require.NoError(t, err)
	assert.True(t, res.Success())
	assert.True(t, res.Manual)

	_, err = s.RunNow(context.Background(), "bad")
	assert.ErrorIs(t, err, boom)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	infos := s.ListJobs()
	require.Len(t, infos, 2)
	assert.Equal(t, "bad", infos[0].Name)
	assert.Equal(t, int64(1), infos[0].FailCount)
	require.NotNil(t, infos[0].LastResult)
	assert.False(t, infos[0].LastResult.Success())
	assert.Equal(t, "ok", infos[1].Name)
	assert.Equal(t, int64(1), infos[1].RunCount)

	snap := s.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.TotalExecutions)
	assert.Equal(t, int64(1), snap.TotalFailures)
	assert.InDelta(t, 0.5, snap.SuccessRate, 1e-9)
}

func TestScheduler_StartRunsDueJobsUntilStopped(t *testing.T) {
	var runs atomic.Int32
	s := New(Config{Tick: 10 * time.Millisecond})
	require.NoError(t, s.Register(&funcJob{name: "tick", run: func(context.Context) error {
		runs.Add(1)
		return nil
	}}, &Every{Interval: 20 * time.Millisecond}))

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}
