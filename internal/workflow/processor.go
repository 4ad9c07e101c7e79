// Package workflow maps a comment-check result onto task and label
// mutations. All writes re-validate live state first: concurrent label
// edits are a benign abort, never an error.
package workflow

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/julesqueue/julesq/internal/config"
	"github.com/julesqueue/julesq/internal/domain"
	"github.com/julesqueue/julesq/internal/github"
	"github.com/julesqueue/julesq/internal/taskstore"
)

// Processor turns check results into side effects.
type Processor struct {
	store  *taskstore.Store
	gh     github.Client
	labels config.LabelsConfig

	now func() time.Time
}

// New creates a Processor.
func New(store *taskstore.Store, gh github.Client, labels config.LabelsConfig) *Processor {
	return &Processor{
		store:  store,
		gh:     gh,
		labels: labels,
		now:    time.Now,
	}
}

// Decide dispatches on the check result's action.
func (p *Processor) Decide(ctx context.Context, owner, repo string, issueNumber int, taskID string, result domain.CheckResult) error {
	switch result.Action {
	case domain.ClassTaskLimit:
		return p.handleTaskLimit(ctx, owner, repo, issueNumber, taskID, result)
	case domain.ClassWorking:
		return p.handleWorking(ctx, owner, repo, issueNumber, taskID, result)
	case domain.ClassUnknown:
		return p.handleUnknown(ctx, owner, repo, issueNumber, result)
	default:
		return nil
	}
}

// handleTaskLimit queues the task: flag it, swap active -> queued.
func (p *Processor) handleTaskLimit(ctx context.Context, owner, repo string, issueNumber int, taskID string, result domain.CheckResult) error {
	task, err := p.store.GetTask(taskID)
	if err != nil {
		return fmt.Errorf("load task %s: %w", taskID, err)
	}

	// Duplicate trigger; first one already did the work.
	if task.FlaggedForRetry {
		log.Printf("task %s already flagged, skipping", task.Slug())
		return nil
	}

	issue, err := p.gh.GetIssue(ctx, owner, repo, issueNumber)
	if err != nil {
		return fmt.Errorf("fetch issue %s/%s#%d: %w", owner, repo, issueNumber, err)
	}

	// The decision was made against an older snapshot; if the active
	// label is gone the issue moved on without us.
	if state := domain.DeriveState(issue, p.labels.Active, p.labels.Queued, p.labels.Human); state != domain.StateActive {
		log.Printf("issue %s/%s#%d is %s, not active; dropping stale task-limit decision", owner, repo, issueNumber, state)
		return nil
	}

	if err := p.store.SetFlagged(taskID, true, p.now()); err != nil {
		return fmt.Errorf("flag task %s: %w", taskID, err)
	}

	if err := p.swapLabels(ctx, owner, repo, issueNumber, p.labels.Active, p.labels.Queued); err != nil {
		p.unflagBestEffort(taskID)
		return err
	}

	p.reactBestEffort(ctx, owner, repo, result.Comment, github.ReactionEyes)
	log.Printf("queued task for retry: %s/%s#%d", owner, repo, issueNumber)
	return nil
}

// handleWorking clears the retry flag; the issue already carries the
// active label, so no label change is needed.
func (p *Processor) handleWorking(ctx context.Context, owner, repo string, issueNumber int, taskID string, result domain.CheckResult) error {
	if _, err := p.store.GetTask(taskID); err != nil {
		return fmt.Errorf("load task %s: %w", taskID, err)
	}

	if err := p.store.SetFlagged(taskID, false, p.now()); err != nil {
		return fmt.Errorf("unflag task %s: %w", taskID, err)
	}

	p.reactBestEffort(ctx, owner, repo, result.Comment, github.ReactionThumbsUp)
	log.Printf("agent is working on %s/%s#%d", owner, repo, issueNumber)
	return nil
}

// handleUnknown flags the ambiguous comment for a human; no persistent
// state changes.
func (p *Processor) handleUnknown(ctx context.Context, owner, repo string, issueNumber int, result domain.CheckResult) error {
	if result.Comment == nil {
		return nil
	}

	p.reactBestEffort(ctx, owner, repo, result.Comment, github.ReactionConfused)

	reply := github.BuildQuotedReply(result.Comment.Body,
		"I couldn't tell what this comment means for the task queue. A human may want to take a look.",
		"")
	if err := p.gh.PostComment(ctx, owner, repo, issueNumber, reply); err != nil {
		log.Printf("failed to post ambiguity reply on %s/%s#%d: %v", owner, repo, issueNumber, err)
	}
	return nil
}

// swapLabels removes one label and adds another, one attempt each.
// Reconciliation of a half-applied swap is left to the next sweep.
func (p *Processor) swapLabels(ctx context.Context, owner, repo string, issueNumber int, remove, add string) error {
	if err := p.gh.RemoveLabel(ctx, owner, repo, issueNumber, remove); err != nil {
		return fmt.Errorf("swap labels on %s/%s#%d: %w", owner, repo, issueNumber, err)
	}
	if err := p.gh.AddLabel(ctx, owner, repo, issueNumber, add); err != nil {
		return fmt.Errorf("swap labels on %s/%s#%d: %w", owner, repo, issueNumber, err)
	}
	return nil
}

// unflagBestEffort is the compensating write after a failed label swap.
// If it fails too, the inconsistency is logged for manual reconciliation.
func (p *Processor) unflagBestEffort(taskID string) {
	if err := p.store.SetFlagged(taskID, false, p.now()); err != nil {
		log.Printf("rollback failed, task %s may be flagged without a queued label: %v", taskID, err)
	}
}

func (p *Processor) reactBestEffort(ctx context.Context, owner, repo string, comment *domain.Comment, content string) {
	if comment == nil {
		return
	}
	if err := p.gh.AddReaction(ctx, owner, repo, comment.ID, content); err != nil {
		log.Printf("failed to add %s reaction on %s/%s comment %d: %v", content, owner, repo, comment.ID, err)
	}
}
