package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const tabCount = 3

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, refreshCmd(m.store)
		case "j", "down":
			m.taskScroll++
		case "k", "up":
			if m.taskScroll > 0 {
				m.taskScroll--
			}
		case "g":
			m.taskScroll = 0
		case "tab":
			m.activeTab = (m.activeTab + 1) % tabCount
			m.taskScroll = 0
		case "t":
			m.activeTab = 1
			m.taskScroll = 0
		case "e":
			m.activeTab = 2
			m.taskScroll = 0
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case TickMsg:
		return m, tea.Batch(refreshCmd(m.store), tickCmd())

	case RefreshMsg:
		if msg.Err != nil {
			m.loadErr = msg.Err
			return m, nil
		}
		m.loadErr = nil
		m.stats = msg.Stats
		m.tasks = msg.Tasks
		m.flagged = msg.Flagged
		m.events = msg.Events
		m.lastRefresh = time.Now()
	}

	return m, nil
}
