package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/julesqueue/julesq/internal/commentcheck"
	"github.com/julesqueue/julesq/internal/config"
	"github.com/julesqueue/julesq/internal/scheduler"
	"github.com/julesqueue/julesq/internal/sweep"
	"github.com/julesqueue/julesq/internal/taskstore"
	"github.com/julesqueue/julesq/internal/workflow"
)

// Deps are the components the standard jobs operate on.
type Deps struct {
	Store     *taskstore.Store
	Sweeper   *sweep.Runner
	Scheduler *scheduler.Scheduler
	Engine    *commentcheck.Engine
	Workflow  *workflow.Processor
	Config    *config.Live
}

// StandardJobs builds the four recurring jobs from the configured cron
// expressions: the retry sweep, the due-check poll, hourly batch
// scheduling, and old-record cleanup. Cron expressions are bound here;
// reloads only affect what each job reads when it fires.
func StandardJobs(d Deps) []Job {
	jobs := d.Config.Current().Jobs
	return []Job{
		{Name: "sweep", Cron: jobs.SweepCron, Run: d.runSweep},
		{Name: "check", Cron: jobs.CheckCron, Run: d.runDueChecks},
		{Name: "schedule", Cron: jobs.ScheduleCron, Run: d.runScheduleBatch},
		{Name: "cleanup", Cron: jobs.CleanupCron, Run: d.runCleanup},
	}
}

func (d Deps) runSweep(ctx context.Context) error {
	stats, err := d.Sweeper.Run(ctx)
	if err != nil {
		return fmt.Errorf("retry sweep: %w", err)
	}
	log.Printf("retry sweep finished: attempted=%d successful=%d failed=%d skipped=%d",
		stats.Attempted, stats.Successful, stats.Failed, stats.Skipped)
	return nil
}

// runDueChecks processes every scheduled comment check that has come
// due. Each check is deleted after processing regardless of outcome so
// a broken issue cannot wedge the poll loop; failed issues get a fresh
// check from the hourly batch pass.
func (d Deps) runDueChecks(ctx context.Context) error {
	due, err := d.Store.DueScheduledChecks(time.Now())
	if err != nil {
		return fmt.Errorf("listing due checks: %w", err)
	}

	var firstErr error
	for _, check := range due {
		if err := d.ProcessCheck(ctx, check.TaskID); err != nil {
			log.Printf("comment check for task %s failed: %v", check.TaskID, err)
			if firstErr == nil {
				firstErr = err
			}
		}
		if err := d.Store.DeleteScheduledCheck(check.ID); err != nil {
			log.Printf("failed to delete scheduled check %s: %v", check.ID, err)
		}
	}
	return firstErr
}

func (d Deps) ProcessCheck(ctx context.Context, taskID string) error {
	task, err := d.Store.GetTask(taskID)
	if errors.Is(err, taskstore.ErrNotFound) {
		// Task was cleaned up after the check was scheduled.
		return nil
	}
	if err != nil {
		return err
	}

	cls := d.Config.Current().Classifier
	result := d.Engine.Check(ctx, task.RepoOwner, task.RepoName, task.IssueNumber,
		cls.MaxFetchRetries, cls.MinConfidence)

	if err := d.Workflow.Decide(ctx, task.RepoOwner, task.RepoName, task.IssueNumber, task.ID, result); err != nil {
		return fmt.Errorf("processing %s: %w", task.Slug(), err)
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"task":   task.Slug(),
		"action": result.Action,
	})
	if err := d.Store.LogEvent("comment_check", string(payload), true, ""); err != nil {
		log.Printf("failed to log comment check: %v", err)
	}
	return nil
}

func (d Deps) runScheduleBatch(ctx context.Context) error {
	scheduled, err := d.Scheduler.ScheduleBatch(time.Now())
	if err != nil {
		return fmt.Errorf("batch scheduling: %w", err)
	}
	if scheduled > 0 {
		log.Printf("scheduled comment checks for %d tasks", scheduled)
	}
	return nil
}

func (d Deps) runCleanup(ctx context.Context) error {
	days := d.Config.Current().Jobs.CleanupAfterDays
	cutoff := time.Now().AddDate(0, 0, -days)
	deleted, err := d.Store.CleanupOldTasks(cutoff)
	if err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	if deleted > 0 {
		log.Printf("cleaned up %d task records older than %d days", deleted, days)
	}
	return nil
}
