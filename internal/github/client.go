// Package github provides the issue/label/comment operations the queue
// needs. The Client interface is injected into every consumer so tests
// can substitute a double without touching process-global state.
package github

import (
	"context"
	"fmt"
	"strings"

	"github.com/julesqueue/julesq/internal/domain"
)

// Reaction contents accepted by the GitHub reactions API.
const (
	ReactionThumbsUp = "+1"
	ReactionEyes     = "eyes"
	ReactionConfused = "confused"
)

// Client is the GitHub surface consumed by the queue core. Label
// mutations must tolerate already-present/already-absent labels.
type Client interface {
	GetIssue(ctx context.Context, owner, repo string, number int) (*domain.Issue, error)
	ListComments(ctx context.Context, owner, repo string, number int) ([]domain.Comment, error)
	AddLabel(ctx context.Context, owner, repo string, number int, label string) error
	RemoveLabel(ctx context.Context, owner, repo string, number int, label string) error
	AddReaction(ctx context.Context, owner, repo string, commentID int64, content string) error
	PostComment(ctx context.Context, owner, repo string, number int, body string) error
}

// BuildQuotedReply formats a reply that quotes the original comment,
// optionally @-mentioning its author.
func BuildQuotedReply(original, reply, author string) string {
	var sb strings.Builder

	if author != "" {
		sb.WriteString(fmt.Sprintf("@%s ", author))
	}
	for _, line := range strings.Split(original, "\n") {
		sb.WriteString("> ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(reply)

	return sb.String()
}

// IsBotUser reports whether a comment author matches one of the known
// agent aliases. Matching is case-insensitive and ignores the "[bot]"
// suffix GitHub appends to app accounts.
func IsBotUser(login string, aliases []string) bool {
	lower := strings.ToLower(login)
	for _, alias := range aliases {
		name := strings.ToLower(strings.ReplaceAll(alias, "[bot]", ""))
		if name != "" && strings.Contains(lower, name) {
			return true
		}
	}
	return false
}
