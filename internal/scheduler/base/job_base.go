// Package base provides base implementation for scheduler jobs.
package base

import "sync"

// ProgressReporter receives the progress of a running job
type ProgressReporter func(done, total int)

// JobBase provides progress reporter access.
// Jobs can embed this to get progress reporting support.
type JobBase struct {
	mu       sync.RWMutex
	reporter ProgressReporter
}

// SetProgressReporter stores the reporter for subsequent runs
func (j *JobBase) SetProgressReporter(fn ProgressReporter) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.reporter = fn
}

// GetProgressReporter returns the progress reporter for this job (may be nil)
func (j *JobBase) GetProgressReporter() ProgressReporter {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.reporter
}
