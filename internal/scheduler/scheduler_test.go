package scheduler

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name string
	runs atomic.Int32
	err  error
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run() error {
	j.runs.Add(1)
	return j.err
}

// blockingJob runs until released and records how many runs overlap.
type blockingJob struct {
	name    string
	started chan struct{}
	release chan struct{}
	active  atomic.Int32
	peak    atomic.Int32
	runs    atomic.Int32
}

func newBlockingJob(name string) *blockingJob {
	return &blockingJob{name: name, started: make(chan struct{}, 16), release: make(chan struct{})}
}

func (j *blockingJob) Name() string { return j.name }

func (j *blockingJob) Run() error {
	n := j.active.Add(1)
	defer j.active.Add(-1)
	for {
		p := j.peak.Load()
		if n <= p || j.peak.CompareAndSwap(p, n) {
			break
		}
	}
	j.runs.Add(1)
	j.started <- struct{}{}
	<-j.release
	return nil
}

func TestScheduler_AddJob(t *testing.T) {
	s := New(zerolog.Nop())

	require.NoError(t, s.AddJob("@daily", &countingJob{name: "b"}))
	require.NoError(t, s.AddJob("*/5 * * * *", &countingJob{name: "a"}))
	require.NoError(t, s.Register(&countingJob{name: "c"}))

	assert.Equal(t, []string{"a", "b", "c"}, s.Jobs())
	assert.Error(t, s.Register(&countingJob{name: "a"}))
}

func TestScheduler_AddJob_InvalidSchedule(t *testing.T) {
	s := New(zerolog.Nop())

	err := s.AddJob("not a schedule", &countingJob{name: "bad"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	assert.Empty(t, s.Jobs())
}

func TestScheduler_AddJob_Duplicate(t *testing.T) {
	s := New(zerolog.Nop())

	require.NoError(t, s.AddJob("@daily", &countingJob{name: "dup"}))
	assert.Error(t, s.AddJob("@hourly", &countingJob{name: "dup"}))
}

func TestScheduler_RunsJobs(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "tick"}
	require.NoError(t, s.AddJob("@every 1s", job))

	s.Start()
	assert.Eventually(t, func() bool { return job.runs.Load() >= 1 }, 5*time.Second, 50*time.Millisecond)
	s.Stop()
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "now", err: errors.New("boom")}
	require.NoError(t, s.Register(job))

	done, err := s.RunNow("now")
	require.NoError(t, err)
	assert.EqualError(t, <-done, "boom")
	assert.Equal(t, int32(1), job.runs.Load())

	_, err = s.RunNow("missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestScheduler_RunNow_RejectsOverlap(t *testing.T) {
	s := New(zerolog.Nop())
	job := newBlockingJob("slow")
	require.NoError(t, s.Register(job))

	done, err := s.RunNow("slow")
	require.NoError(t, err)
	<-job.started
	assert.True(t, s.Running("slow"))

	_, err = s.RunNow("slow")
	assert.ErrorIs(t, err, ErrJobRunning)

	close(job.release)
	require.NoError(t, <-done)
	assert.False(t, s.Running("slow"))
	assert.Equal(t, int32(1), job.runs.Load())
}

func TestScheduler_ScheduledRunBlocksRunNow(t *testing.T) {
	s := New(zerolog.Nop())
	job := newBlockingJob("slow")
	require.NoError(t, s.AddJob("@every 1s", job))

	s.Start()
	select {
	case <-job.started:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled run did not start")
	}

	_, err := s.RunNow("slow")
	assert.ErrorIs(t, err, ErrJobRunning)

	// Further ticks while the run is in flight are skipped too.
	time.Sleep(1500 * time.Millisecond)
	close(job.release)
	s.Stop()

	assert.Equal(t, int32(1), job.peak.Load())
}
