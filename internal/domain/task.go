package domain

import (
	"fmt"
	"time"
)

// Task tracks one GitHub issue's position in the Jules queue.
// There is at most one Task per issue (GitHubIssueID is unique).
type Task struct {
	ID              string
	GitHubRepoID    int64
	GitHubIssueID   int64
	IssueNumber     int
	RepoOwner       string
	RepoName        string
	FlaggedForRetry bool
	RetryCount      int
	LastRetryAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Slug returns the owner/repo#number form used in logs.
func (t *Task) Slug() string {
	return fmt.Sprintf("%s/%s#%d", t.RepoOwner, t.RepoName, t.IssueNumber)
}

// ScheduledCheck is a deferred comment check for a task.
type ScheduledCheck struct {
	ID          string
	TaskID      string
	RepoOwner   string
	RepoName    string
	IssueNumber int
	ScheduledAt time.Time
	CreatedAt   time.Time
}

// RetryStats summarizes one sweep over the flagged tasks.
type RetryStats struct {
	Attempted  int `json:"attempted"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// RetryOutcome is the per-task result of a sweep pass. Skips are normal
// control flow (concurrent modification, human override), not errors.
type RetryOutcome int

const (
	RetryDone RetryOutcome = iota
	RetrySkipped
)
