// Package tui is the terminal dashboard for the queue: stats, tracked
// tasks, and the recent event log, refreshed from the store.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/julesqueue/julesq/internal/domain"
	"github.com/julesqueue/julesq/internal/taskstore"
)

// Model is the TUI application model.
type Model struct {
	store *taskstore.Store

	// Data
	stats   *taskstore.QueueStats
	tasks   []*domain.Task
	flagged []*domain.Task
	events  []taskstore.Event

	loadErr error

	// UI state
	width      int
	height     int
	activeTab  int
	taskScroll int

	lastRefresh time.Time
}

// NewModel creates a TUI model backed by the store.
func NewModel(store *taskstore.Store) Model {
	return Model{store: store}
}

// Init loads initial data and starts the refresh tick.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		refreshCmd(m.store),
		tickCmd(),
	)
}

// TickMsg triggers a refresh.
type TickMsg time.Time

// RefreshMsg carries freshly loaded queue data.
type RefreshMsg struct {
	Stats   *taskstore.QueueStats
	Tasks   []*domain.Task
	Flagged []*domain.Task
	Events  []taskstore.Event
	Err     error
}

func tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func refreshCmd(store *taskstore.Store) tea.Cmd {
	return func() tea.Msg {
		msg := RefreshMsg{}

		stats, err := store.Stats()
		if err != nil {
			msg.Err = err
			return msg
		}
		msg.Stats = stats

		if msg.Tasks, err = store.ListTasks(200); err != nil {
			msg.Err = err
			return msg
		}
		if msg.Flagged, err = store.FlaggedTasks(); err != nil {
			msg.Err = err
			return msg
		}
		if msg.Events, err = store.RecentEvents(50); err != nil {
			msg.Err = err
			return msg
		}

		return msg
	}
}
