package domain

import "testing"

func TestDeriveState(t *testing.T) {
	tests := []struct {
		name   string
		labels []string
		want   IssueState
	}{
		{"active only", []string{"jules"}, StateActive},
		{"queued only", []string{"jules-queue"}, StateQueued},
		{"human wins over everything", []string{"jules", "jules-queue", "human"}, StateHumanOverride},
		{"queued wins over active", []string{"jules", "jules-queue"}, StateQueued},
		{"case insensitive", []string{"Human"}, StateHumanOverride},
		{"unrelated labels", []string{"bug", "enhancement"}, StateUntracked},
		{"no labels", nil, StateUntracked},
	}

	for _, tt := range tests {
		issue := &Issue{Number: 1, Labels: tt.labels}
		got := DeriveState(issue, "jules", "jules-queue", "human")
		if got != tt.want {
			t.Errorf("%s: DeriveState = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestIssue_HasLabel(t *testing.T) {
	issue := &Issue{Labels: []string{"Jules", "bug"}}

	if !issue.HasLabel("jules") {
		t.Error("HasLabel should match case-insensitively")
	}
	if issue.HasLabel("jules-queue") {
		t.Error("HasLabel should not match absent label")
	}
}

func TestTask_Slug(t *testing.T) {
	task := &Task{RepoOwner: "octocat", RepoName: "hello-world", IssueNumber: 42}
	if got := task.Slug(); got != "octocat/hello-world#42" {
		t.Errorf("Slug = %q", got)
	}
}
