package domain

import "strings"

// IssueState is the queue state derived from an issue's label set.
// Precedence when several labels coexist: HumanOverride > Queued > Active.
type IssueState string

const (
	StateHumanOverride IssueState = "human_override"
	StateQueued        IssueState = "queued"
	StateActive        IssueState = "active"
	StateUntracked     IssueState = "untracked"
)

// Issue is the subset of a GitHub issue the core needs: its labels are
// the source of truth the local flag state is reconciled against.
type Issue struct {
	Number int
	Title  string
	Labels []string
}

// HasLabel reports whether the issue carries the label, case-insensitively.
func (i *Issue) HasLabel(name string) bool {
	for _, l := range i.Labels {
		if strings.EqualFold(l, name) {
			return true
		}
	}
	return false
}

// DeriveState maps an issue's labels onto the queue state machine.
func DeriveState(issue *Issue, active, queued, human string) IssueState {
	switch {
	case issue.HasLabel(human):
		return StateHumanOverride
	case issue.HasLabel(queued):
		return StateQueued
	case issue.HasLabel(active):
		return StateActive
	default:
		return StateUntracked
	}
}
