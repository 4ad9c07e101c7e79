package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/julesqueue/julesq/internal/batch"
	"github.com/julesqueue/julesq/internal/commentcheck"
	"github.com/julesqueue/julesq/internal/config"
	"github.com/julesqueue/julesq/internal/domain"
	"github.com/julesqueue/julesq/internal/scheduler"
	"github.com/julesqueue/julesq/internal/sweep"
	"github.com/julesqueue/julesq/internal/taskstore"
	"github.com/julesqueue/julesq/internal/webhook"
	"github.com/julesqueue/julesq/internal/workflow"
)

type stubGitHub struct{}

func (stubGitHub) GetIssue(ctx context.Context, owner, repo string, number int) (*domain.Issue, error) {
	return &domain.Issue{Number: number, Labels: []string{"jules"}}, nil
}

func (stubGitHub) ListComments(ctx context.Context, owner, repo string, number int) ([]domain.Comment, error) {
	return nil, nil
}

func (stubGitHub) AddLabel(ctx context.Context, owner, repo string, number int, label string) error {
	return nil
}

func (stubGitHub) RemoveLabel(ctx context.Context, owner, repo string, number int, label string) error {
	return nil
}

func (stubGitHub) AddReaction(ctx context.Context, owner, repo string, commentID int64, content string) error {
	return nil
}

func (stubGitHub) PostComment(ctx context.Context, owner, repo string, number int, body string) error {
	return nil
}

func newTestServer(t *testing.T, secret string) (*Server, *taskstore.Store) {
	t.Helper()
	store, err := taskstore.New(":memory:")
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := config.Default()
	cfg.Web.WebhookSecret = secret

	gh := stubGitHub{}
	sched := scheduler.New(store, cfg.Checks)
	deps := batch.Deps{
		Store:     store,
		Scheduler: sched,
		Engine:    commentcheck.New(gh, cfg),
		Workflow:  workflow.New(store, gh, cfg.Labels),
		Config:    config.NewLive(cfg),
	}
	sweeper := sweep.New(store, gh, cfg.Labels, nil)
	hook := webhook.New(store, sched, cfg.Labels)

	srv := NewServer(store, sweeper, hook, deps, cfg.Web)
	return srv, store
}

func seedTask(t *testing.T, store *taskstore.Store, issueID int64, number int) *domain.Task {
	t.Helper()
	task, err := store.UpsertTask(taskstore.UpsertParams{
		GitHubRepoID: 1, GitHubIssueID: issueID, IssueNumber: number,
		RepoOwner: "acme", RepoName: "widgets",
	}, time.Now())
	if err != nil {
		t.Fatalf("UpsertTask: %v", err)
	}
	return task
}

func TestStatusEndpoint(t *testing.T) {
	srv, store := newTestServer(t, "")
	seedTask(t, store, 10, 1)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var stats taskstore.QueueStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if stats.TotalTasks != 1 {
		t.Errorf("total tasks = %d, want 1", stats.TotalTasks)
	}
}

func TestListTasksFlaggedFilter(t *testing.T) {
	srv, store := newTestServer(t, "")
	seedTask(t, store, 10, 1)
	flagged := seedTask(t, store, 11, 2)
	if err := store.SetFlagged(flagged.ID, true, time.Now()); err != nil {
		t.Fatalf("SetFlagged: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tasks?flagged=true", nil))

	var tasks []TaskResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &tasks); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != flagged.ID {
		t.Errorf("flagged filter returned %d tasks, want just %s", len(tasks), flagged.ID)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	srv, _ := newTestServer(t, "")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tasks/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSweepEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, "")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sweep", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var stats domain.RetryStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if stats.Attempted != 0 {
		t.Errorf("attempted = %d, want 0 for an empty queue", stats.Attempted)
	}
}

func TestCheckEndpointRequiresTaskID(t *testing.T) {
	srv, _ := newTestServer(t, "")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/check", bytes.NewBufferString(`{}`))
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCheckEndpointResolvesByIssue(t *testing.T) {
	srv, store := newTestServer(t, "")
	task := seedTask(t, store, 30, 3)

	body := bytes.NewBufferString(`{"owner":"acme","repo":"widgets","issue_number":3}`)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/check", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp TaskResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.ID != task.ID {
		t.Errorf("resolved task %q, want %q", resp.ID, task.ID)
	}
}

func webhookPayload(action string) []byte {
	payload := map[string]interface{}{
		"action": action,
		"label":  map[string]string{"name": "jules"},
		"issue": map[string]interface{}{
			"id":     int64(77),
			"number": 5,
			"title":  "Fix the build",
			"labels": []map[string]string{{"name": "jules"}},
		},
		"repository": map[string]interface{}{
			"id":        int64(1),
			"full_name": "acme/widgets",
		},
	}
	body, _ := json.Marshal(payload)
	return body
}

func TestWebhookLabeledCreatesTask(t *testing.T) {
	srv, store := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", bytes.NewReader(webhookPayload("labeled")))
	req.Header.Set("X-GitHub-Event", "issues")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if _, err := store.GetTaskByIssueID(77); err != nil {
		t.Errorf("expected a task for issue 77: %v", err)
	}
}

func TestWebhookSignatureVerification(t *testing.T) {
	srv, _ := newTestServer(t, "s3cret")
	body := webhookPayload("labeled")

	// Missing signature is rejected.
	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", bytes.NewReader(body))
	req.Header.Set("X-GitHub-Event", "issues")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unsigned request: status = %d, want 401", rec.Code)
	}

	// A valid signature is accepted.
	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write(body)
	sig := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	req = httptest.NewRequest(http.MethodPost, "/webhooks/github", bytes.NewReader(body))
	req.Header.Set("X-GitHub-Event", "issues")
	req.Header.Set("X-Hub-Signature-256", sig)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("signed request: status = %d, want 200", rec.Code)
	}
}

func TestWebhookIgnoresOtherEvents(t *testing.T) {
	srv, store := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", bytes.NewReader(webhookPayload("labeled")))
	req.Header.Set("X-GitHub-Event", "push")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if _, err := store.GetTaskByIssueID(77); err == nil {
		t.Error("push events should not create tasks")
	}
}
