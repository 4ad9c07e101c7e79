// Package webhook turns GitHub label events into task upserts and
// scheduled comment checks. Signature verification happens upstream;
// by the time an event reaches this processor it is trusted.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/julesqueue/julesq/internal/config"
	"github.com/julesqueue/julesq/internal/scheduler"
	"github.com/julesqueue/julesq/internal/taskstore"
)

// LabelEvent is the subset of a GitHub issues webhook payload the
// processor consumes.
type LabelEvent struct {
	Action string `json:"action"` // "labeled" or "unlabeled"
	Label  struct {
		Name string `json:"name"`
	} `json:"label"`
	Issue struct {
		ID     int64  `json:"id"`
		Number int    `json:"number"`
		Title  string `json:"title"`
		Labels []struct {
			Name string `json:"name"`
		} `json:"labels"`
	} `json:"issue"`
	Repository struct {
		ID       int64  `json:"id"`
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// Result reports what the processor did with an event.
type Result struct {
	Action  string `json:"action"`
	TaskID  string `json:"task_id,omitempty"`
	Message string `json:"message"`
}

const (
	ResultCheckScheduled = "comment_check_scheduled"
	ResultTaskUpdated    = "task_updated"
	ResultNoAction       = "no_action"
)

// Processor handles label webhook events.
type Processor struct {
	store  *taskstore.Store
	sched  *scheduler.Scheduler
	labels config.LabelsConfig

	now func() time.Time
}

// New creates a Processor.
func New(store *taskstore.Store, sched *scheduler.Scheduler, labels config.LabelsConfig) *Processor {
	return &Processor{
		store:  store,
		sched:  sched,
		labels: labels,
		now:    time.Now,
	}
}

// ProcessLabelEvent is the main workflow entry point for webhooks.
func (p *Processor) ProcessLabelEvent(ctx context.Context, event *LabelEvent) (Result, error) {
	owner, repo, err := splitFullName(event.Repository.FullName)
	if err != nil {
		return Result{}, err
	}

	labelName := strings.ToLower(event.Label.Name)

	switch {
	case strings.EqualFold(labelName, p.labels.Active) && event.Action == "labeled":
		return p.handleActiveLabeled(event, owner, repo)

	case strings.EqualFold(labelName, p.labels.Active) && event.Action == "unlabeled":
		return p.handleActiveUnlabeled(event, owner, repo)

	case strings.EqualFold(labelName, p.labels.Queued):
		// Queue label traffic is our own doing; log and move on.
		log.Printf("%q label %s on %s/%s#%d", event.Label.Name, event.Action, owner, repo, event.Issue.Number)
		return Result{Action: ResultNoAction, Message: "queue label event, no processing required"}, nil

	default:
		return Result{Action: ResultNoAction, Message: fmt.Sprintf("no processing required for %q %s", event.Label.Name, event.Action)}, nil
	}
}

func (p *Processor) handleActiveLabeled(event *LabelEvent, owner, repo string) (Result, error) {
	task, err := p.store.UpsertTask(taskstore.UpsertParams{
		GitHubRepoID:  event.Repository.ID,
		GitHubIssueID: event.Issue.ID,
		IssueNumber:   event.Issue.Number,
		RepoOwner:     owner,
		RepoName:      repo,
	}, p.now())
	if err != nil {
		return Result{}, fmt.Errorf("upsert task for %s/%s#%d: %w", owner, repo, event.Issue.Number, err)
	}

	// A human override on the issue disables automatic processing.
	for _, l := range event.Issue.Labels {
		if strings.EqualFold(l.Name, p.labels.Human) {
			log.Printf("%s/%s#%d carries the %q label, skipping automatic processing", owner, repo, event.Issue.Number, p.labels.Human)
			return Result{
				Action:  ResultNoAction,
				TaskID:  task.ID,
				Message: "issue has human-override label, skipping automatic processing",
			}, nil
		}
	}

	if _, err := p.sched.ScheduleCheck(task, p.sched.DefaultDelay()); err != nil {
		// The task exists; the hourly batch pass will pick it up.
		log.Printf("failed to schedule check for %s: %v", task.Slug(), err)
	}

	p.logEvent("label_added", event, true, "")
	return Result{
		Action:  ResultCheckScheduled,
		TaskID:  task.ID,
		Message: "task created and comment check scheduled",
	}, nil
}

func (p *Processor) handleActiveUnlabeled(event *LabelEvent, owner, repo string) (Result, error) {
	task, err := p.store.GetTaskByIssueID(event.Issue.ID)
	if errors.Is(err, taskstore.ErrNotFound) {
		return Result{Action: ResultNoAction, Message: "active label removed but no task found"}, nil
	}
	if err != nil {
		return Result{}, err
	}

	if err := p.store.SetFlagged(task.ID, false, p.now()); err != nil {
		return Result{}, fmt.Errorf("unflag task %s: %w", task.ID, err)
	}

	p.logEvent("label_removed", event, true, "")
	log.Printf("active label removed from %s/%s#%d, updated task %s", owner, repo, event.Issue.Number, task.ID)
	return Result{
		Action:  ResultTaskUpdated,
		TaskID:  task.ID,
		Message: "active label removed, task unflagged",
	}, nil
}

func (p *Processor) logEvent(eventType string, event *LabelEvent, success bool, errMsg string) {
	payload, _ := json.Marshal(map[string]interface{}{
		"repo":  event.Repository.FullName,
		"issue": event.Issue.Number,
		"label": event.Label.Name,
	})
	if err := p.store.LogEvent(eventType, string(payload), success, errMsg); err != nil {
		log.Printf("failed to log webhook event: %v", err)
	}
}

func splitFullName(fullName string) (owner, repo string, err error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("could not parse repository full name %q", fullName)
	}
	return parts[0], parts[1], nil
}
