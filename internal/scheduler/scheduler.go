// Package scheduler runs background jobs on cron schedules.
package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

var (
	// ErrJobNotFound is returned when no job with the given name is registered.
	ErrJobNotFound = errors.New("job not registered")
	// ErrJobRunning is returned when a run of the job is already in flight.
	ErrJobRunning = errors.New("job already running")
)

// registeredJob pairs a job with the guard shared by its scheduled and manual runs.
type registeredJob struct {
	job     Job
	running sync.Mutex
	entry   cron.EntryID // zero when the job only runs on demand
}

// Scheduler manages background jobs. A job never runs twice at the same time,
// whether started by cron or by RunNow.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	mu     sync.RWMutex
	jobs   map[string]*registeredJob
	manual sync.WaitGroup
}

// New creates a new scheduler. Schedules use the standard five-field cron format
// plus descriptors such as "@daily" and "@every 1h".
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		log:  log.With().Str("component", "scheduler").Logger(),
		jobs: make(map[string]*registeredJob),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.Jobs())).Msg("Scheduler started")
}

// Stop stops the scheduler and waits for scheduled and manual runs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.manual.Wait()
	s.log.Info().Msg("Scheduler stopped")
}

// Register makes a job available to RunNow without scheduling it.
func (s *Scheduler) Register(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.Name()]; exists {
		return fmt.Errorf("job %s already registered", job.Name())
	}
	s.jobs[job.Name()] = &registeredJob{job: job}
	return nil
}

// AddJob registers a job and runs it on the given schedule.
// Schedule examples:
//   - "*/5 * * * *"        - Every 5 minutes
//   - "@hourly"            - Every hour
//   - "0 18 * * MON-FRI"   - 6 PM weekdays
//   - "@every 30m"         - Every 30 minutes
func (s *Scheduler) AddJob(schedule string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.Name()]; exists {
		return fmt.Errorf("job %s already registered", job.Name())
	}

	rj := &registeredJob{job: job}
	id, err := s.cron.AddFunc(schedule, func() { s.runScheduled(rj) })
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", schedule, job.Name(), err)
	}
	rj.entry = id
	s.jobs[job.Name()] = rj

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// Jobs returns the sorted names of the registered jobs
func (s *Scheduler) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Running reports whether a run of the named job is in flight.
func (s *Scheduler) Running(name string) bool {
	rj := s.lookup(name)
	if rj == nil {
		return false
	}
	if rj.running.TryLock() {
		rj.running.Unlock()
		return false
	}
	return true
}

// RunNow starts the named job outside its schedule. It fails immediately with
// ErrJobNotFound or ErrJobRunning; otherwise the job runs in the background and
// its result is delivered on the returned channel.
func (s *Scheduler) RunNow(name string) (<-chan error, error) {
	rj := s.lookup(name)
	if rj == nil {
		return nil, fmt.Errorf("%s: %w", name, ErrJobNotFound)
	}
	if !rj.running.TryLock() {
		return nil, fmt.Errorf("%s: %w", name, ErrJobRunning)
	}

	s.log.Info().Str("job", name).Msg("Running job immediately")
	done := make(chan error, 1)
	s.manual.Add(1)
	go func() {
		defer s.manual.Done()
		defer rj.running.Unlock()
		done <- s.execute(rj.job)
	}()
	return done, nil
}

func (s *Scheduler) lookup(name string) *registeredJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobs[name]
}

func (s *Scheduler) runScheduled(rj *registeredJob) {
	if !rj.running.TryLock() {
		s.log.Info().Str("job", rj.job.Name()).Msg("Skipping scheduled run, job still running")
		return
	}
	defer rj.running.Unlock()
	_ = s.execute(rj.job)
}

func (s *Scheduler) execute(job Job) error {
	s.log.Debug().Str("job", job.Name()).Msg("Running job")

	if err := job.Run(); err != nil {
		s.log.Error().
			Err(err).
			Str("job", job.Name()).
			Msg("Job failed")
		return err
	}
	s.log.Debug().Str("job", job.Name()).Msg("Job completed")
	return nil
}
