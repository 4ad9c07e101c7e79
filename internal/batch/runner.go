// Package batch drives the recurring background jobs: the retry sweep,
// the due-check poll, hourly batch scheduling and record cleanup.
package batch

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

var errMissingName = errors.New("job name is required")

// Job is a named recurring unit of work.
type Job struct {
	Name string
	Cron string
	Run  func(ctx context.Context) error
}

// Validate checks the job definition.
func (j *Job) Validate() error {
	if j.Name == "" {
		return errMissingName
	}
	if _, err := ParseCron(j.Cron); err != nil {
		return err
	}
	return nil
}

// Runner fires jobs according to their cron schedules. A job never
// overlaps with itself; distinct jobs run concurrently.
type Runner struct {
	jobs     map[string]Job
	parser   cron.Parser
	lastRun  map[string]time.Time
	running  map[string]bool
	mu       sync.RWMutex
	stopChan chan struct{}
}

// NewRunner creates a runner for the given jobs.
func NewRunner(jobs []Job) (*Runner, error) {
	r := &Runner{
		jobs:     make(map[string]Job),
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		lastRun:  make(map[string]time.Time),
		running:  make(map[string]bool),
		stopChan: make(chan struct{}),
	}

	for _, j := range jobs {
		if err := j.Validate(); err != nil {
			return nil, err
		}
		r.jobs[j.Name] = j
	}

	return r, nil
}

// ParseCron parses a standard five-field cron expression.
func ParseCron(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(expr)
}

// NextRun returns the next scheduled run time for a job.
func (r *Runner) NextRun(name string) time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()

	j, ok := r.jobs[name]
	if !ok {
		return time.Time{}
	}

	sched, err := r.parser.Parse(j.Cron)
	if err != nil {
		return time.Time{}
	}

	return sched.Next(time.Now())
}

// ShouldRun returns true if a job is due and not already running.
func (r *Runner) ShouldRun(name string, now time.Time) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	j, ok := r.jobs[name]
	if !ok {
		return false
	}

	if r.running[name] {
		return false
	}

	sched, err := r.parser.Parse(j.Cron)
	if err != nil {
		return false
	}

	lastRun := r.lastRun[name]
	if lastRun.IsZero() {
		lastRun = now.Add(-24 * time.Hour)
	}

	return now.After(sched.Next(lastRun))
}

// MarkRunning marks a job as currently running.
func (r *Runner) MarkRunning(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running[name] = true
}

// MarkComplete marks a job as complete.
func (r *Runner) MarkComplete(name string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running[name] = false
	r.lastRun[name] = now
}

// ListJobs returns all job names.
func (r *Runner) ListJobs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		names = append(names, name)
	}
	return names
}

// Start begins the runner loop. It blocks until Stop is called or the
// context is cancelled.
func (r *Runner) Start(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		case now := <-ticker.C:
			for name, job := range r.snapshot() {
				if !r.ShouldRun(name, now) {
					continue
				}
				r.MarkRunning(name)
				go func(j Job) {
					if err := j.Run(ctx); err != nil {
						log.Printf("job %s failed: %v", j.Name, err)
					}
					r.MarkComplete(j.Name, time.Now())
				}(job)
			}
		}
	}
}

// Stop stops the runner.
func (r *Runner) Stop() {
	close(r.stopChan)
}

func (r *Runner) snapshot() map[string]Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	jobs := make(map[string]Job, len(r.jobs))
	for name, j := range r.jobs {
		jobs[name] = j
	}
	return jobs
}
