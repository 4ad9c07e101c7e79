package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/julesqueue/julesq/internal/domain"
	"github.com/julesqueue/julesq/internal/taskstore"
)

// TaskResponse is the API representation of a task.
type TaskResponse struct {
	ID              string  `json:"id"`
	Repo            string  `json:"repo"`
	IssueNumber     int     `json:"issue_number"`
	GitHubIssueID   int64   `json:"github_issue_id"`
	FlaggedForRetry bool    `json:"flagged_for_retry"`
	RetryCount      int     `json:"retry_count"`
	LastRetryAt     *string `json:"last_retry_at,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

func taskToResponse(t *domain.Task) TaskResponse {
	resp := TaskResponse{
		ID:              t.ID,
		Repo:            t.RepoOwner + "/" + t.RepoName,
		IssueNumber:     t.IssueNumber,
		GitHubIssueID:   t.GitHubIssueID,
		FlaggedForRetry: t.FlaggedForRetry,
		RetryCount:      t.RetryCount,
		CreatedAt:       t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       t.UpdatedAt.Format(time.RFC3339),
	}
	if t.LastRetryAt != nil {
		v := t.LastRetryAt.Format(time.RFC3339)
		resp.LastRetryAt = &v
	}
	return resp
}

func (s *Server) statusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		stats, err := s.store.Stats()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		writeJSON(w, stats)
	}
}

func (s *Server) listTasksHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var (
			tasks []*domain.Task
			err   error
		)
		if r.URL.Query().Get("flagged") == "true" {
			tasks, err = s.store.FlaggedTasks()
		} else {
			limit := 100
			if v := r.URL.Query().Get("limit"); v != "" {
				if n, perr := strconv.Atoi(v); perr == nil && n > 0 {
					limit = n
				}
			}
			tasks, err = s.store.ListTasks(limit)
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		responses := make([]TaskResponse, len(tasks))
		for i, t := range tasks {
			responses[i] = taskToResponse(t)
		}

		writeJSON(w, responses)
	}
}

func (s *Server) getTaskHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		id := strings.TrimPrefix(r.URL.Path, "/api/tasks/")
		if id == "" {
			writeError(w, http.StatusBadRequest, "task ID required")
			return
		}

		task, err := s.store.GetTask(id)
		if errors.Is(err, taskstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		writeJSON(w, taskToResponse(task))
	}
}

func (s *Server) eventLogHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
				limit = n
			}
		}

		events, err := s.store.RecentEvents(limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		writeJSON(w, events)
	}
}

// sweepHandler triggers an immediate retry sweep.
func (s *Server) sweepHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		stats, err := s.sweeper.Run(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		s.Broadcast(SweepEvent(stats))
		writeJSON(w, stats)
	}
}

// checkHandler triggers an immediate comment check for one task.
func (s *Server) checkHandler() http.HandlerFunc {
	type request struct {
		TaskID      string `json:"task_id"`
		Owner       string `json:"owner"`
		Repo        string `json:"repo"`
		IssueNumber int    `json:"issue_number"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		taskID := req.TaskID
		if taskID == "" {
			if req.Owner == "" || req.Repo == "" || req.IssueNumber == 0 {
				writeError(w, http.StatusBadRequest, "task_id or owner/repo/issue_number required")
				return
			}
			task, err := s.store.GetTaskByIssue(req.Owner, req.Repo, req.IssueNumber)
			if errors.Is(err, taskstore.ErrNotFound) {
				writeError(w, http.StatusNotFound, "task not found")
				return
			} else if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			taskID = task.ID
		} else if _, err := s.store.GetTask(taskID); errors.Is(err, taskstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		} else if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		if err := s.deps.ProcessCheck(r.Context(), taskID); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		task, err := s.store.GetTask(taskID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		resp := taskToResponse(task)
		s.Broadcast(TaskUpdateEvent(resp))
		writeJSON(w, resp)
	}
}
