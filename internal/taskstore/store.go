package taskstore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/julesqueue/julesq/internal/domain"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a task or scheduled check does not exist.
var ErrNotFound = errors.New("not found")

// Store provides SQLite-backed task persistence
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}

	// Run migrations
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertParams identify the issue a task tracks.
type UpsertParams struct {
	GitHubRepoID  int64
	GitHubIssueID int64
	IssueNumber   int
	RepoOwner     string
	RepoName      string
}

// UpsertTask creates the task for an issue, or refreshes its coordinates
// if one already exists. Flag and retry state of an existing task are
// left untouched.
func (s *Store) UpsertTask(p UpsertParams, now time.Time) (*domain.Task, error) {
	existing, err := s.GetTaskByIssueID(p.GitHubIssueID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if existing != nil {
		_, err := s.db.Exec(`
			UPDATE tasks SET github_repo_id = ?, issue_number = ?, repo_owner = ?, repo_name = ?, updated_at = ?
			WHERE id = ?
		`, p.GitHubRepoID, p.IssueNumber, p.RepoOwner, p.RepoName, now, existing.ID)
		if err != nil {
			return nil, err
		}
		return s.GetTask(existing.ID)
	}

	task := &domain.Task{
		ID:            uuid.NewString(),
		GitHubRepoID:  p.GitHubRepoID,
		GitHubIssueID: p.GitHubIssueID,
		IssueNumber:   p.IssueNumber,
		RepoOwner:     p.RepoOwner,
		RepoName:      p.RepoName,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	_, err = s.db.Exec(`
		INSERT INTO tasks (id, github_repo_id, github_issue_id, issue_number, repo_owner, repo_name, flagged_for_retry, retry_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, FALSE, 0, ?, ?)
	`, task.ID, task.GitHubRepoID, task.GitHubIssueID, task.IssueNumber, task.RepoOwner, task.RepoName, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return task, nil
}

// GetTask retrieves a task by ID
func (s *Store) GetTask(id string) (*domain.Task, error) {
	row := s.db.QueryRow(taskSelect+` WHERE id = ?`, id)
	return scanTask(row)
}

// GetTaskByIssueID retrieves the task tracking the given GitHub issue
func (s *Store) GetTaskByIssueID(issueID int64) (*domain.Task, error) {
	row := s.db.QueryRow(taskSelect+` WHERE github_issue_id = ?`, issueID)
	return scanTask(row)
}

// GetTaskByIssue retrieves a task by repository coordinates and issue number
func (s *Store) GetTaskByIssue(owner, repo string, number int) (*domain.Task, error) {
	row := s.db.QueryRow(taskSelect+` WHERE repo_owner = ? AND repo_name = ? AND issue_number = ?`,
		owner, repo, number)
	return scanTask(row)
}

// SetFlagged updates a task's retry flag
func (s *Store) SetFlagged(id string, flagged bool, now time.Time) error {
	res, err := s.db.Exec(`UPDATE tasks SET flagged_for_retry = ?, updated_at = ? WHERE id = ?`,
		flagged, now, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// MarkRetried clears the flag, bumps the retry count and stamps the
// retry time in one write. Callers invoke this before the remote label
// swap so a slow or failed swap cannot lead to a double retry.
func (s *Store) MarkRetried(id string, now time.Time) error {
	res, err := s.db.Exec(`
		UPDATE tasks SET flagged_for_retry = FALSE, retry_count = retry_count + 1, last_retry_at = ?, updated_at = ?
		WHERE id = ?
	`, now, now, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// FlaggedTasks returns all tasks flagged for retry, oldest created first
func (s *Store) FlaggedTasks() ([]*domain.Task, error) {
	rows, err := s.db.Query(taskSelect + ` WHERE flagged_for_retry = TRUE ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTasks(rows)
}

// ListTasks returns all tasks, newest first, up to limit (0 = no limit)
func (s *Store) ListTasks(limit int) ([]*domain.Task, error) {
	query := taskSelect + ` ORDER BY created_at DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTasks(rows)
}

// CleanupOldTasks deletes unflagged tasks not touched since the cutoff.
// Housekeeping only; flagged tasks are never removed.
func (s *Store) CleanupOldTasks(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM tasks WHERE flagged_for_retry = FALSE AND updated_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CreateScheduledCheck records a deferred comment check
func (s *Store) CreateScheduledCheck(check *domain.ScheduledCheck) error {
	if check.ID == "" {
		check.ID = uuid.NewString()
	}
	_, err := s.db.Exec(`
		INSERT INTO scheduled_checks (id, task_id, repo_owner, repo_name, issue_number, scheduled_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, check.ID, check.TaskID, check.RepoOwner, check.RepoName, check.IssueNumber, check.ScheduledAt, check.CreatedAt)
	return err
}

// DueScheduledChecks returns checks whose scheduled time has passed
func (s *Store) DueScheduledChecks(now time.Time) ([]*domain.ScheduledCheck, error) {
	rows, err := s.db.Query(`
		SELECT id, task_id, repo_owner, repo_name, issue_number, scheduled_at, created_at
		FROM scheduled_checks WHERE scheduled_at <= ? ORDER BY scheduled_at ASC
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var checks []*domain.ScheduledCheck
	for rows.Next() {
		var c domain.ScheduledCheck
		if err := rows.Scan(&c.ID, &c.TaskID, &c.RepoOwner, &c.RepoName, &c.IssueNumber, &c.ScheduledAt, &c.CreatedAt); err != nil {
			return nil, err
		}
		checks = append(checks, &c)
	}
	return checks, rows.Err()
}

// DeleteScheduledCheck removes a consumed check
func (s *Store) DeleteScheduledCheck(id string) error {
	_, err := s.db.Exec(`DELETE FROM scheduled_checks WHERE id = ?`, id)
	return err
}

// TasksWithoutScheduledCheck returns up to limit tasks that have no
// pending check, oldest created first.
func (s *Store) TasksWithoutScheduledCheck(limit int) ([]*domain.Task, error) {
	rows, err := s.db.Query(taskSelect+`
		WHERE id NOT IN (SELECT task_id FROM scheduled_checks)
		ORDER BY created_at ASC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTasks(rows)
}

// QueueStats summarizes the queue for monitoring
type QueueStats struct {
	TotalTasks    int     `json:"total_tasks"`
	FlaggedTasks  int     `json:"flagged_tasks"`
	PendingChecks int     `json:"pending_checks"`
	MaxRetryCount int     `json:"max_retry_count"`
	AvgRetryCount float64 `json:"avg_retry_count"`
}

// Stats returns queue statistics
func (s *Store) Stats() (*QueueStats, error) {
	stats := &QueueStats{}

	err := s.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN flagged_for_retry THEN 1 ELSE 0 END), 0),
		       COALESCE(MAX(retry_count), 0),
		       COALESCE(AVG(retry_count), 0)
		FROM tasks
	`).Scan(&stats.TotalTasks, &stats.FlaggedTasks, &stats.MaxRetryCount, &stats.AvgRetryCount)
	if err != nil {
		return nil, err
	}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM scheduled_checks`).Scan(&stats.PendingChecks); err != nil {
		return nil, err
	}

	return stats, nil
}

// LogEvent appends a row to the event log. Logging failures are the
// caller's problem to ignore; the log is diagnostic only.
func (s *Store) LogEvent(eventType, payload string, success bool, errMsg string) error {
	_, err := s.db.Exec(`
		INSERT INTO event_log (event_type, payload, success, error) VALUES (?, ?, ?, ?)
	`, eventType, payload, success, nullable(errMsg))
	return err
}

// Event is one row of the diagnostic event log
type Event struct {
	ID        int64     `json:"id"`
	EventType string    `json:"event_type"`
	Payload   string    `json:"payload,omitempty"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RecentEvents returns the newest limit event-log rows
func (s *Store) RecentEvents(limit int) ([]Event, error) {
	rows, err := s.db.Query(`
		SELECT id, event_type, COALESCE(payload, ''), success, COALESCE(error, ''), created_at
		FROM event_log ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.EventType, &e.Payload, &e.Success, &e.Error, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

const taskSelect = `
	SELECT id, github_repo_id, github_issue_id, issue_number, repo_owner, repo_name,
	       flagged_for_retry, retry_count, last_retry_at, created_at, updated_at
	FROM tasks`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var lastRetry sql.NullTime

	err := row.Scan(&task.ID, &task.GitHubRepoID, &task.GitHubIssueID, &task.IssueNumber,
		&task.RepoOwner, &task.RepoName, &task.FlaggedForRetry, &task.RetryCount,
		&lastRetry, &task.CreatedAt, &task.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if lastRetry.Valid {
		t := lastRetry.Time
		task.LastRetryAt = &t
	}

	return &task, nil
}

func collectTasks(rows *sql.Rows) ([]*domain.Task, error) {
	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
