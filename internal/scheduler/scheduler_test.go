package scheduler

import (
	"testing"
	"time"

	"github.com/julesqueue/julesq/internal/config"
	"github.com/julesqueue/julesq/internal/domain"
	"github.com/julesqueue/julesq/internal/taskstore"
)

func newTestScheduler(t *testing.T) (*Scheduler, *taskstore.Store) {
	t.Helper()
	store, err := taskstore.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	return New(store, config.Default().Checks), store
}

func addTask(t *testing.T, store *taskstore.Store, issueID int64) *domain.Task {
	t.Helper()
	task, err := store.UpsertTask(taskstore.UpsertParams{
		GitHubRepoID: 1, GitHubIssueID: issueID, IssueNumber: int(issueID),
		RepoOwner: "octocat", RepoName: "hello-world",
	}, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	return task
}

func TestScheduleCheck(t *testing.T) {
	sched, store := newTestScheduler(t)
	task := addTask(t, store, 1)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sched.now = func() time.Time { return now }

	check, err := sched.ScheduleCheck(task, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	if !check.ScheduledAt.Equal(now.Add(time.Minute)) {
		t.Errorf("ScheduledAt = %v, want now+1m", check.ScheduledAt)
	}
	if check.TaskID != task.ID || check.IssueNumber != task.IssueNumber {
		t.Errorf("check = %+v", check)
	}

	due, err := store.DueScheduledChecks(now.Add(2 * time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 1 {
		t.Errorf("due = %d, want 1", len(due))
	}
}

func TestScheduleBatch_ExactlyOncePerTask(t *testing.T) {
	sched, store := newTestScheduler(t)
	addTask(t, store, 1)
	addTask(t, store, 2)

	now := time.Now()

	created, err := sched.ScheduleBatch(now)
	if err != nil {
		t.Fatal(err)
	}
	if created != 2 {
		t.Errorf("first batch created = %d, want 2", created)
	}

	// Second run with no new tasks creates nothing
	created, err = sched.ScheduleBatch(now)
	if err != nil {
		t.Fatal(err)
	}
	if created != 0 {
		t.Errorf("second batch created = %d, want 0", created)
	}

	// A new task gets picked up by the next pass
	addTask(t, store, 3)
	created, _ = sched.ScheduleBatch(now)
	if created != 1 {
		t.Errorf("third batch created = %d, want 1", created)
	}
}

func TestScheduleBatch_RespectsBatchSize(t *testing.T) {
	sched, store := newTestScheduler(t)
	sched.cfg.BatchSize = 2

	for i := int64(1); i <= 5; i++ {
		addTask(t, store, i)
	}

	created, err := sched.ScheduleBatch(time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if created != 2 {
		t.Errorf("created = %d, want batch size cap of 2", created)
	}
}

func TestScheduleBatch_UsesOffset(t *testing.T) {
	sched, store := newTestScheduler(t)
	addTask(t, store, 1)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if _, err := sched.ScheduleBatch(now); err != nil {
		t.Fatal(err)
	}

	// Not due yet at now; due after the configured offset (1h default)
	due, _ := store.DueScheduledChecks(now)
	if len(due) != 0 {
		t.Errorf("checks due immediately = %d, want 0", len(due))
	}
	due, _ = store.DueScheduledChecks(now.Add(61 * time.Minute))
	if len(due) != 1 {
		t.Errorf("checks due after offset = %d, want 1", len(due))
	}
}
