package github

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/julesqueue/julesq/internal/domain"
)

// CLIClient talks to GitHub through the gh CLI, which carries auth and
// API version handling for us.
type CLIClient struct {
	ghPath string
}

// NewCLIClient creates a client that shells out to the given gh binary.
func NewCLIClient(ghPath string) *CLIClient {
	if ghPath == "" {
		ghPath = "gh"
	}
	return &CLIClient{ghPath: ghPath}
}

type ghIssue struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Labels []struct {
		Name string `json:"name"`
	} `json:"labels"`
}

type ghComment struct {
	ID   int64  `json:"id"`
	Body string `json:"body"`
	User *struct {
		Login string `json:"login"`
	} `json:"user"`
	CreatedAt time.Time `json:"created_at"`
}

// GetIssue fetches an issue with its current label set.
func (c *CLIClient) GetIssue(ctx context.Context, owner, repo string, number int) (*domain.Issue, error) {
	// gh api repos/{owner}/{repo}/issues/{number}
	cmd := exec.CommandContext(ctx, c.ghPath, "api",
		fmt.Sprintf("repos/%s/%s/issues/%d", owner, repo, number))

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("gh api issue %s/%s#%d: %w", owner, repo, number, err)
	}

	return parseIssue(output)
}

// ListComments fetches all comments on an issue, oldest first.
func (c *CLIClient) ListComments(ctx context.Context, owner, repo string, number int) ([]domain.Comment, error) {
	cmd := exec.CommandContext(ctx, c.ghPath, "api", "--paginate",
		fmt.Sprintf("repos/%s/%s/issues/%d/comments", owner, repo, number))

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("gh api comments %s/%s#%d: %w", owner, repo, number, err)
	}

	return parseComments(output)
}

// AddLabel adds a label to an issue. Adding an already-present label is
// a no-op on GitHub's side.
func (c *CLIClient) AddLabel(ctx context.Context, owner, repo string, number int, label string) error {
	cmd := exec.CommandContext(ctx, c.ghPath, "issue", "edit", fmt.Sprintf("%d", number),
		"--repo", fmt.Sprintf("%s/%s", owner, repo),
		"--add-label", label)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("add label %q to %s/%s#%d: %w: %s", label, owner, repo, number, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// RemoveLabel removes a label from an issue. Removing an absent label
// is not an error.
func (c *CLIClient) RemoveLabel(ctx context.Context, owner, repo string, number int, label string) error {
	cmd := exec.CommandContext(ctx, c.ghPath, "issue", "edit", fmt.Sprintf("%d", number),
		"--repo", fmt.Sprintf("%s/%s", owner, repo),
		"--remove-label", label)
	if output, err := cmd.CombinedOutput(); err != nil {
		msg := string(output)
		if strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist") {
			return nil
		}
		return fmt.Errorf("remove label %q from %s/%s#%d: %w: %s", label, owner, repo, number, err, strings.TrimSpace(msg))
	}
	return nil
}

// AddReaction attaches an emoji reaction to an issue comment.
func (c *CLIClient) AddReaction(ctx context.Context, owner, repo string, commentID int64, content string) error {
	cmd := exec.CommandContext(ctx, c.ghPath, "api", "-X", "POST",
		fmt.Sprintf("repos/%s/%s/issues/comments/%d/reactions", owner, repo, commentID),
		"-f", fmt.Sprintf("content=%s", content))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("add %s reaction to comment %d on %s/%s: %w", content, commentID, owner, repo, err)
	}
	return nil
}

// PostComment posts a comment on an issue.
func (c *CLIClient) PostComment(ctx context.Context, owner, repo string, number int, body string) error {
	cmd := exec.CommandContext(ctx, c.ghPath, "issue", "comment", fmt.Sprintf("%d", number),
		"--repo", fmt.Sprintf("%s/%s", owner, repo),
		"--body", body)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("comment on %s/%s#%d: %w", owner, repo, number, err)
	}
	return nil
}

func parseIssue(data []byte) (*domain.Issue, error) {
	var gh ghIssue
	if err := json.Unmarshal(data, &gh); err != nil {
		return nil, fmt.Errorf("parse gh issue output: %w", err)
	}

	labels := make([]string, len(gh.Labels))
	for i, l := range gh.Labels {
		labels[i] = l.Name
	}

	return &domain.Issue{
		Number: gh.Number,
		Title:  gh.Title,
		Labels: labels,
	}, nil
}

func parseComments(data []byte) ([]domain.Comment, error) {
	var ghComments []ghComment
	if err := json.Unmarshal(data, &ghComments); err != nil {
		return nil, fmt.Errorf("parse gh comments output: %w", err)
	}

	comments := make([]domain.Comment, 0, len(ghComments))
	for _, gc := range ghComments {
		c := domain.Comment{
			ID:        gc.ID,
			Body:      gc.Body,
			CreatedAt: gc.CreatedAt,
		}
		if gc.User != nil {
			c.Author = gc.User.Login
		}
		comments = append(comments, c)
	}
	return comments, nil
}
