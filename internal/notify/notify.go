// Package notify pushes queue activity to external channels. All
// senders are best-effort: callers log failures and move on.
package notify

import (
	"fmt"

	"github.com/julesqueue/julesq/internal/domain"
)

// Severity drives channel-specific styling.
type Severity int

const (
	SeverityInfo Severity = iota
	SeveritySuccess
	SeverityWarning
	SeverityError
)

// Notification is one message about queue activity.
type Notification struct {
	Title    string
	Message  string
	Severity Severity
	Issue    string // optional owner/repo#number reference
}

// SweepSummary formats a finished retry sweep. Any failure escalates
// the whole sweep to a warning.
func SweepSummary(stats domain.RetryStats) Notification {
	severity := SeveritySuccess
	if stats.Failed > 0 {
		severity = SeverityWarning
	}
	return Notification{
		Title: "Retry sweep complete",
		Message: fmt.Sprintf("attempted %d, successful %d, failed %d, skipped %d",
			stats.Attempted, stats.Successful, stats.Failed, stats.Skipped),
		Severity: severity,
	}
}

// Notifier sends a notification to one channel.
type Notifier interface {
	Send(n Notification) error
}

// Multi fans a notification out to every channel. All channels are
// attempted; the last error surfaces.
type Multi []Notifier

func (m Multi) Send(n Notification) error {
	var lastErr error
	for _, notifier := range m {
		if err := notifier.Send(n); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Noop discards notifications; used when no channel is configured.
type Noop struct{}

func (Noop) Send(n Notification) error { return nil }
