package github

import (
	"strings"
	"testing"
)

func TestIsBotUser(t *testing.T) {
	aliases := []string{
		"google-labs-jules[bot]",
		"google-labs-jules",
		"jules[bot]",
		"jules-bot",
	}

	tests := []struct {
		login string
		want  bool
	}{
		{"google-labs-jules[bot]", true},
		{"google-labs-jules", true},
		{"Jules[bot]", true},
		{"JULES-BOT", true},
		{"some-other-user", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsBotUser(tt.login, aliases); got != tt.want {
			t.Errorf("IsBotUser(%q) = %v, want %v", tt.login, got, tt.want)
		}
	}
}

func TestBuildQuotedReply(t *testing.T) {
	got := BuildQuotedReply("line one\nline two", "Please take a look.", "google-labs-jules[bot]")

	if !strings.HasPrefix(got, "@google-labs-jules[bot] ") {
		t.Errorf("reply should mention the author: %q", got)
	}
	if !strings.Contains(got, "> line one\n> line two\n") {
		t.Errorf("reply should quote each line: %q", got)
	}
	if !strings.HasSuffix(got, "Please take a look.") {
		t.Errorf("reply should end with the reply text: %q", got)
	}

	// No author: no mention prefix
	got = BuildQuotedReply("hm", "reply", "")
	if strings.HasPrefix(got, "@") {
		t.Errorf("reply without author should not mention anyone: %q", got)
	}
}

func TestParseIssue(t *testing.T) {
	data := []byte(`{"number": 7, "title": "Fix the build", "labels": [{"name": "jules"}, {"name": "bug"}]}`)

	issue, err := parseIssue(data)
	if err != nil {
		t.Fatal(err)
	}
	if issue.Number != 7 {
		t.Errorf("Number = %d, want 7", issue.Number)
	}
	if len(issue.Labels) != 2 || issue.Labels[0] != "jules" {
		t.Errorf("Labels = %v", issue.Labels)
	}
}

func TestParseComments(t *testing.T) {
	data := []byte(`[
		{"id": 11, "body": "first", "user": {"login": "alice"}, "created_at": "2026-03-01T10:00:00Z"},
		{"id": 12, "body": "second", "user": null, "created_at": "2026-03-01T11:00:00Z"}
	]`)

	comments, err := parseComments(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(comments) != 2 {
		t.Fatalf("got %d comments, want 2", len(comments))
	}
	if comments[0].Author != "alice" {
		t.Errorf("Author = %q, want alice", comments[0].Author)
	}
	if comments[1].Author != "" {
		t.Errorf("deleted user should yield empty author, got %q", comments[1].Author)
	}
	if comments[1].CreatedAt.Hour() != 11 {
		t.Errorf("CreatedAt = %v", comments[1].CreatedAt)
	}
}
