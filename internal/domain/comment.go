package domain

import "time"

// Classification is what a Jules comment (or the lack of one) tells us
type Classification string

const (
	ClassTaskLimit Classification = "task_limit"
	ClassWorking   Classification = "working"
	ClassUnknown   Classification = "unknown"
	ClassNoAction  Classification = "no_action"
)

// Comment is an issue comment as returned by the GitHub API.
type Comment struct {
	ID        int64
	Author    string
	Body      string
	CreatedAt time.Time
}

// CommentAnalysis is the classifier's verdict on a single comment.
// It is produced fresh per call and never persisted.
type CommentAnalysis struct {
	Classification  Classification
	Confidence      float64
	PatternsMatched []string
	AgeMinutes      float64
	Comment         *Comment
}

// CheckResult is what the comment-check engine hands to the workflow
// processor. Comment and Analysis may be nil (no bot comments, or all
// fetch attempts failed). RetryCount is the number of failed fetch
// attempts before the result was produced.
type CheckResult struct {
	Action     Classification
	Comment    *Comment
	Analysis   *CommentAnalysis
	RetryCount int
}
