// Package sweep promotes queued tasks back to active in a batch pass.
// Each task is handled in isolation: one bad task never aborts the rest.
package sweep

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/julesqueue/julesq/internal/config"
	"github.com/julesqueue/julesq/internal/domain"
	"github.com/julesqueue/julesq/internal/github"
	"github.com/julesqueue/julesq/internal/notify"
	"github.com/julesqueue/julesq/internal/taskstore"
)

// Runner executes retry sweeps over the flagged tasks.
type Runner struct {
	store    *taskstore.Store
	gh       github.Client
	labels   config.LabelsConfig
	notifier notify.Notifier

	now func() time.Time
}

// New creates a sweep Runner.
func New(store *taskstore.Store, gh github.Client, labels config.LabelsConfig, notifier notify.Notifier) *Runner {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Runner{
		store:    store,
		gh:       gh,
		labels:   labels,
		notifier: notifier,
		now:      time.Now,
	}
}

// Run retries every flagged task, oldest-queued first, and tallies
// outcomes. It returns an error only when the initial load fails.
func (r *Runner) Run(ctx context.Context) (domain.RetryStats, error) {
	flagged, err := r.store.FlaggedTasks()
	if err != nil {
		return domain.RetryStats{}, fmt.Errorf("load flagged tasks: %w", err)
	}

	stats := domain.RetryStats{Attempted: len(flagged)}

	for _, task := range flagged {
		outcome, err := r.retryOne(ctx, task.ID)
		switch {
		case err != nil:
			log.Printf("retry failed for %s: %v", task.Slug(), err)
			stats.Failed++
		case outcome == domain.RetryDone:
			stats.Successful++
		default:
			stats.Skipped++
		}
	}

	r.report(stats)
	return stats, nil
}

// retryOne attempts to restore a single task to active state. Skips are
// explicit outcomes, not errors: they mean someone else (a human, a
// concurrent run) already changed the state we were about to change.
func (r *Runner) retryOne(ctx context.Context, taskID string) (domain.RetryOutcome, error) {
	task, err := r.store.GetTask(taskID)
	if errors.Is(err, taskstore.ErrNotFound) {
		// Deleted since the batch was loaded.
		return domain.RetrySkipped, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load task: %w", err)
	}
	if !task.FlaggedForRetry {
		// Unflagged since the batch was loaded.
		return domain.RetrySkipped, nil
	}

	issue, err := r.gh.GetIssue(ctx, task.RepoOwner, task.RepoName, task.IssueNumber)
	if err != nil {
		return 0, fmt.Errorf("fetch issue: %w", err)
	}

	state := domain.DeriveState(issue, r.labels.Active, r.labels.Queued, r.labels.Human)

	// A human took over; the sweep must not interfere.
	if state == domain.StateHumanOverride {
		log.Printf("%s carries the %q label, skipping retry", task.Slug(), r.labels.Human)
		return domain.RetrySkipped, nil
	}

	// Queued label already gone: someone resolved it. Clear the flag
	// without charging a retry.
	if !issue.HasLabel(r.labels.Queued) {
		if err := r.store.SetFlagged(task.ID, false, r.now()); err != nil {
			return 0, fmt.Errorf("clear flag: %w", err)
		}
		return domain.RetrySkipped, nil
	}

	// Local write first: if the swap below fails or a concurrent sweep
	// starts, the task is no longer flagged and cannot be retried twice.
	if err := r.store.MarkRetried(task.ID, r.now()); err != nil {
		return 0, fmt.Errorf("mark retried: %w", err)
	}

	if err := r.gh.RemoveLabel(ctx, task.RepoOwner, task.RepoName, task.IssueNumber, r.labels.Queued); err != nil {
		return 0, fmt.Errorf("remove queued label: %w", err)
	}
	if err := r.gh.AddLabel(ctx, task.RepoOwner, task.RepoName, task.IssueNumber, r.labels.Active); err != nil {
		return 0, fmt.Errorf("add active label: %w", err)
	}

	log.Printf("retried %s (attempt %d)", task.Slug(), task.RetryCount+1)
	return domain.RetryDone, nil
}

func (r *Runner) report(stats domain.RetryStats) {
	payload, _ := json.Marshal(stats)
	if err := r.store.LogEvent("sweep", string(payload), stats.Failed == 0, ""); err != nil {
		log.Printf("failed to log sweep result: %v", err)
	}

	if stats.Attempted == 0 {
		return
	}
	if err := r.notifier.Send(notify.SweepSummary(stats)); err != nil {
		log.Printf("sweep notification failed: %v", err)
	}
}
