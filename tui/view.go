package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/julesqueue/julesq/internal/domain"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	flaggedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	trackedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("255"))

	tabActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Underline(true)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("244"))
)

// View renders the TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	total, flagged, pending := 0, 0, 0
	if m.stats != nil {
		total = m.stats.TotalTasks
		flagged = m.stats.FlaggedTasks
		pending = m.stats.PendingChecks
	}
	header := fmt.Sprintf(" Jules Queue │ Tracked: %d │ Flagged: %d │ Pending checks: %d ",
		total, flagged, pending)
	b.WriteString(headerStyle.Width(m.width).Render(header))
	b.WriteString("\n")

	b.WriteString(m.renderTabs())
	b.WriteString("\n")

	switch m.activeTab {
	case 0: // Dashboard
		b.WriteString(sectionStyle.Width(m.width - 2).Render(m.renderFlagged()))
		b.WriteString("\n")
		b.WriteString(sectionStyle.Width(m.width - 2).Render(m.renderRecentEvents(5)))
		b.WriteString("\n")
	case 1: // Tasks
		b.WriteString(sectionStyle.Width(m.width - 2).Render(m.renderTasks()))
		b.WriteString("\n")
	case 2: // Events
		b.WriteString(sectionStyle.Width(m.width - 2).Render(m.renderRecentEvents(20)))
		b.WriteString("\n")
	}

	if m.loadErr != nil {
		b.WriteString(errorStyle.Width(m.width).Render(fmt.Sprintf(" refresh failed: %v ", m.loadErr)))
		b.WriteString("\n")
	}

	statusBar := " [tab]switch [t]asks [e]vents [j/k]scroll [r]efresh [q]uit "
	if !m.lastRefresh.IsZero() {
		statusBar += fmt.Sprintf("│ updated %s ", m.lastRefresh.Format("15:04:05"))
	}
	b.WriteString(statusBarStyle.Width(m.width).Render(statusBar))

	return b.String()
}

func (m Model) renderTabs() string {
	tabs := []string{"Dashboard", "Tasks", "Events"}
	var parts []string

	for i, tab := range tabs {
		if i == m.activeTab {
			parts = append(parts, tabActiveStyle.Render(fmt.Sprintf(" %s ", tab)))
		} else {
			parts = append(parts, tabInactiveStyle.Render(fmt.Sprintf(" %s ", tab)))
		}
	}

	return strings.Join(parts, "│")
}

func (m Model) renderFlagged() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("FLAGGED FOR RETRY"))
	b.WriteString("\n")

	if len(m.flagged) == 0 {
		b.WriteString(trackedStyle.Render("  Nothing waiting for retry"))
		return b.String()
	}

	for _, task := range m.flagged {
		line := fmt.Sprintf("  ⚠ %-30s retries: %d  %s",
			truncate(task.Slug(), 30), task.RetryCount, lastRetry(task))
		b.WriteString(flaggedStyle.Render(line))
		b.WriteString("\n")
	}

	return strings.TrimSuffix(b.String(), "\n")
}

func (m Model) renderTasks() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("TRACKED TASKS"))
	b.WriteString("\n")

	if len(m.tasks) == 0 {
		b.WriteString(trackedStyle.Render("  No tasks tracked yet"))
		return b.String()
	}

	maxVisible := 15
	start := m.taskScroll
	if start >= len(m.tasks) {
		start = 0
	}
	end := start + maxVisible
	if end > len(m.tasks) {
		end = len(m.tasks)
	}

	for i := start; i < end; i++ {
		b.WriteString(formatTaskLine(m.tasks[i]))
		b.WriteString("\n")
	}

	if len(m.tasks) > maxVisible {
		b.WriteString(trackedStyle.Render(fmt.Sprintf("  ... showing %d-%d of %d (j/k to scroll)",
			start+1, end, len(m.tasks))))
		b.WriteString("\n")
	}

	return strings.TrimSuffix(b.String(), "\n")
}

func (m Model) renderRecentEvents(limit int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("RECENT EVENTS"))
	b.WriteString("\n")

	if len(m.events) == 0 {
		b.WriteString(trackedStyle.Render("  No events logged"))
		return b.String()
	}

	shown := 0
	start := 0
	if m.activeTab == 2 {
		start = m.taskScroll
		if start >= len(m.events) {
			start = 0
		}
	}
	for i := start; i < len(m.events) && shown < limit; i++ {
		e := m.events[i]
		style := okStyle
		icon := "✓"
		if !e.Success {
			style = errorStyle
			icon = "✗"
		}
		line := fmt.Sprintf("  %s %-18s %s  %s",
			icon, e.EventType, e.CreatedAt.Format("15:04:05"), truncate(e.Payload, 50))
		b.WriteString(style.Render(line))
		b.WriteString("\n")
		shown++
	}

	return strings.TrimSuffix(b.String(), "\n")
}

func formatTaskLine(task *domain.Task) string {
	icon := "○"
	style := trackedStyle
	if task.FlaggedForRetry {
		icon = "⚠"
		style = flaggedStyle
	}

	line := fmt.Sprintf("  %s %-30s retries: %d  %s",
		icon, truncate(task.Slug(), 30), task.RetryCount, lastRetry(task))
	return style.Render(line)
}

func lastRetry(task *domain.Task) string {
	if task.LastRetryAt == nil {
		return ""
	}
	ago := time.Since(*task.LastRetryAt).Round(time.Minute)
	return fmt.Sprintf("last retry %s ago", ago)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
