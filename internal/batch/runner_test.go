package batch

import (
	"context"
	"testing"
	"time"

	"github.com/julesqueue/julesq/internal/commentcheck"
	"github.com/julesqueue/julesq/internal/config"
	"github.com/julesqueue/julesq/internal/domain"
	"github.com/julesqueue/julesq/internal/scheduler"
	"github.com/julesqueue/julesq/internal/taskstore"
	"github.com/julesqueue/julesq/internal/workflow"
)

func TestJobValidate(t *testing.T) {
	tests := []struct {
		name    string
		job     Job
		wantErr bool
	}{
		{"valid", Job{Name: "sweep", Cron: "*/30 * * * *"}, false},
		{"missing name", Job{Cron: "* * * * *"}, true},
		{"bad cron", Job{Name: "sweep", Cron: "not a cron"}, true},
		{"six fields", Job{Name: "sweep", Cron: "0 0 * * * *"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.job.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRunnerShouldRun(t *testing.T) {
	r, err := NewRunner([]Job{
		{Name: "sweep", Cron: "*/30 * * * *", Run: func(context.Context) error { return nil }},
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	now := time.Date(2024, 6, 1, 12, 31, 0, 0, time.UTC)

	// Never run before: due.
	if !r.ShouldRun("sweep", now) {
		t.Error("a job that has never run should be due")
	}

	// Just completed: next slot is 13:00, so not due at 12:31.
	r.MarkComplete("sweep", now)
	if r.ShouldRun("sweep", now) {
		t.Error("job should not be due immediately after completing")
	}
	if !r.ShouldRun("sweep", now.Add(31*time.Minute)) {
		t.Error("job should be due again after the next cron slot passes")
	}

	// Running jobs never overlap with themselves.
	r.MarkRunning("sweep")
	if r.ShouldRun("sweep", now.Add(2*time.Hour)) {
		t.Error("a running job should not be due")
	}
	r.MarkComplete("sweep", now.Add(2*time.Hour))

	if r.ShouldRun("unknown", now) {
		t.Error("unknown job names should never be due")
	}
}

func TestNewRunnerRejectsInvalidJob(t *testing.T) {
	_, err := NewRunner([]Job{{Name: "bad", Cron: "nope"}})
	if err == nil {
		t.Fatal("expected an error for an invalid cron expression")
	}
}

func TestRunnerNextRun(t *testing.T) {
	r, err := NewRunner([]Job{
		{Name: "cleanup", Cron: "0 4 * * *", Run: func(context.Context) error { return nil }},
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	next := r.NextRun("cleanup")
	if next.IsZero() {
		t.Fatal("expected a next run time")
	}
	if next.Hour() != 4 || next.Minute() != 0 {
		t.Errorf("next run = %v, want a 04:00 slot", next)
	}
	if !r.NextRun("unknown").IsZero() {
		t.Error("unknown job should have a zero next run time")
	}
}

// stubGitHub satisfies the GitHub client interface for job wiring tests.
type stubGitHub struct {
	issue    *domain.Issue
	comments []domain.Comment
}

func (s *stubGitHub) GetIssue(ctx context.Context, owner, repo string, number int) (*domain.Issue, error) {
	return s.issue, nil
}

func (s *stubGitHub) ListComments(ctx context.Context, owner, repo string, number int) ([]domain.Comment, error) {
	return s.comments, nil
}

func (s *stubGitHub) AddLabel(ctx context.Context, owner, repo string, number int, label string) error {
	return nil
}

func (s *stubGitHub) RemoveLabel(ctx context.Context, owner, repo string, number int, label string) error {
	return nil
}

func (s *stubGitHub) AddReaction(ctx context.Context, owner, repo string, commentID int64, content string) error {
	return nil
}

func (s *stubGitHub) PostComment(ctx context.Context, owner, repo string, number int, body string) error {
	return nil
}

func newTestDeps(t *testing.T, gh *stubGitHub) (Deps, *taskstore.Store) {
	t.Helper()
	store, err := taskstore.New(":memory:")
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := config.Default()
	return Deps{
		Store:     store,
		Scheduler: scheduler.New(store, cfg.Checks),
		Engine:    commentcheck.New(gh, cfg),
		Workflow:  workflow.New(store, gh, cfg.Labels),
		Config:    config.NewLive(cfg),
	}, store
}

func TestRunDueChecksFlagsTaskAtLimit(t *testing.T) {
	gh := &stubGitHub{
		issue: &domain.Issue{Number: 5, Labels: []string{"jules"}},
		comments: []domain.Comment{
			{
				ID:        1,
				Author:    "google-labs-jules[bot]",
				Body:      "You are currently at your concurrent task limit.",
				CreatedAt: time.Now().Add(-5 * time.Minute),
			},
		},
	}
	deps, store := newTestDeps(t, gh)

	task, err := store.UpsertTask(taskstore.UpsertParams{
		GitHubRepoID: 1, GitHubIssueID: 10, IssueNumber: 5,
		RepoOwner: "acme", RepoName: "widgets",
	}, time.Now())
	if err != nil {
		t.Fatalf("UpsertTask: %v", err)
	}
	check := &domain.ScheduledCheck{
		TaskID:      task.ID,
		RepoOwner:   task.RepoOwner,
		RepoName:    task.RepoName,
		IssueNumber: task.IssueNumber,
		ScheduledAt: time.Now().Add(-time.Minute),
	}
	if err := store.CreateScheduledCheck(check); err != nil {
		t.Fatalf("CreateScheduledCheck: %v", err)
	}

	if err := deps.runDueChecks(context.Background()); err != nil {
		t.Fatalf("runDueChecks: %v", err)
	}

	task, err = store.GetTask(task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if !task.FlaggedForRetry {
		t.Error("task should be flagged after a task-limit comment")
	}

	// The consumed check is gone.
	due, err := store.DueScheduledChecks(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("DueScheduledChecks: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("%d checks remain, want 0", len(due))
	}
}

func TestRunDueChecksSkipsDeletedTask(t *testing.T) {
	deps, store := newTestDeps(t, &stubGitHub{issue: &domain.Issue{Number: 1}})

	check := &domain.ScheduledCheck{
		TaskID:      "gone-task-id",
		RepoOwner:   "acme",
		RepoName:    "widgets",
		IssueNumber: 1,
		ScheduledAt: time.Now().Add(-time.Minute),
	}
	if err := store.CreateScheduledCheck(check); err != nil {
		t.Fatalf("CreateScheduledCheck: %v", err)
	}

	if err := deps.runDueChecks(context.Background()); err != nil {
		t.Fatalf("runDueChecks should tolerate a missing task: %v", err)
	}

	due, err := store.DueScheduledChecks(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("DueScheduledChecks: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("orphaned check should be deleted, %d remain", len(due))
	}
}

func TestRunCleanup(t *testing.T) {
	deps, store := newTestDeps(t, &stubGitHub{})

	old := time.Now().AddDate(0, 0, -30)
	if _, err := store.UpsertTask(taskstore.UpsertParams{
		GitHubRepoID: 1, GitHubIssueID: 20, IssueNumber: 2,
		RepoOwner: "acme", RepoName: "widgets",
	}, old); err != nil {
		t.Fatalf("UpsertTask: %v", err)
	}

	if err := deps.runCleanup(context.Background()); err != nil {
		t.Fatalf("runCleanup: %v", err)
	}

	tasks, err := store.ListTasks(10)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("%d tasks remain after cleanup, want 0", len(tasks))
	}
}

func TestStandardJobsWiring(t *testing.T) {
	deps, _ := newTestDeps(t, &stubGitHub{})

	jobs := StandardJobs(deps)
	if len(jobs) != 4 {
		t.Fatalf("got %d jobs, want 4", len(jobs))
	}
	for _, j := range jobs {
		if err := j.Validate(); err != nil {
			t.Errorf("job %s: %v", j.Name, err)
		}
	}
}
