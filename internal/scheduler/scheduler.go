// Package scheduler creates deferred comment checks. It only writes
// ScheduledCheck rows; the batch runner polls for due checks and runs
// them.
package scheduler

import (
	"fmt"
	"log"
	"time"

	"github.com/julesqueue/julesq/internal/config"
	"github.com/julesqueue/julesq/internal/domain"
	"github.com/julesqueue/julesq/internal/taskstore"
)

// Scheduler creates scheduled comment checks for tasks.
type Scheduler struct {
	store *taskstore.Store
	cfg   config.ChecksConfig

	now func() time.Time
}

// New creates a Scheduler.
func New(store *taskstore.Store, cfg config.ChecksConfig) *Scheduler {
	return &Scheduler{
		store: store,
		cfg:   cfg,
		now:   time.Now,
	}
}

// DefaultDelay is the per-task check delay from config. It gives the
// agent time to post its initial working/limit comment before we look.
func (s *Scheduler) DefaultDelay() time.Duration {
	return time.Duration(s.cfg.DelaySeconds) * time.Second
}

// ScheduleCheck creates one deferred check for a task at now+delay.
func (s *Scheduler) ScheduleCheck(task *domain.Task, delay time.Duration) (*domain.ScheduledCheck, error) {
	now := s.now()
	check := &domain.ScheduledCheck{
		TaskID:      task.ID,
		RepoOwner:   task.RepoOwner,
		RepoName:    task.RepoName,
		IssueNumber: task.IssueNumber,
		ScheduledAt: now.Add(delay),
		CreatedAt:   now,
	}

	if err := s.store.CreateScheduledCheck(check); err != nil {
		return nil, fmt.Errorf("schedule check for %s: %w", task.Slug(), err)
	}

	log.Printf("scheduled comment check for %s at %s", task.Slug(), check.ScheduledAt.Format(time.RFC3339))
	return check, nil
}

// ScheduleBatch creates one future check for every task that has none,
// capped at the configured batch size per pass. Running it twice with
// no new tasks in between creates nothing the second time.
func (s *Scheduler) ScheduleBatch(now time.Time) (int, error) {
	tasks, err := s.store.TasksWithoutScheduledCheck(s.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("find tasks without checks: %w", err)
	}

	scheduledAt := now.Add(time.Duration(s.cfg.BatchOffsetMinutes) * time.Minute)

	created := 0
	for _, task := range tasks {
		check := &domain.ScheduledCheck{
			TaskID:      task.ID,
			RepoOwner:   task.RepoOwner,
			RepoName:    task.RepoName,
			IssueNumber: task.IssueNumber,
			ScheduledAt: scheduledAt,
			CreatedAt:   now,
		}
		if err := s.store.CreateScheduledCheck(check); err != nil {
			// Keep going; the next pass picks up whatever failed here.
			log.Printf("failed to schedule check for %s: %v", task.Slug(), err)
			continue
		}
		created++
	}

	return created, nil
}
