// Package toast shows transient notices in the corner of the screen. Each
// notice expires on its own timer; at most a few are stacked.
package toast

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/order-desk/console/internal/coordinator"
	"github.com/order-desk/console/internal/theme"
)

const (
	maxVisible = 4
	width      = 48
)

// Durations per level. Errors stay longer.
var lifetimes = map[coordinator.Level]time.Duration{
	coordinator.LevelInfo:    3 * time.Second,
	coordinator.LevelSuccess: 3 * time.Second,
	coordinator.LevelWarning: 5 * time.Second,
	coordinator.LevelError:   8 * time.Second,
}

// ExpireMsg removes one notice.
type ExpireMsg struct{ ID int }

// Item is one visible notice.
type Item struct {
	ID    int
	Level coordinator.Level
	Text  string
}

// Model is the notice stack.
type Model struct {
	items  []Item
	nextID int
}

// New creates an empty stack.
func New() Model { return Model{} }

// Items returns the visible notices, oldest first.
func (m Model) Items() []Item { return m.items }

// Push shows a notice and schedules its expiry. An identical notice
// already on screen is not repeated.
func (m *Model) Push(n coordinator.NoticeMsg) tea.Cmd {
	for _, it := range m.items {
		if it.Level == n.Level && it.Text == n.Text {
			return nil
		}
	}
	m.nextID++
	id := m.nextID
	m.items = append(m.items, Item{ID: id, Level: n.Level, Text: n.Text})
	if len(m.items) > maxVisible {
		m.items = m.items[len(m.items)-maxVisible:]
	}
	return tea.Tick(lifetimes[n.Level], func(time.Time) tea.Msg { return ExpireMsg{ID: id} })
}

// Expire removes the notice with the given id, if still shown.
func (m *Model) Expire(msg ExpireMsg) {
	for i, it := range m.items {
		if it.ID == msg.ID {
			m.items = append(m.items[:i:i], m.items[i+1:]...)
			return
		}
	}
}

// View renders the stack, newest at the bottom.
func (m Model) View() string {
	if len(m.items) == 0 {
		return ""
	}
	var boxes []string
	for _, it := range m.items {
		boxes = append(boxes, lipgloss.NewStyle().
			Width(width).
			Padding(0, 1).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(color(it.Level)).
			Render(lipgloss.NewStyle().Foreground(color(it.Level)).Render(glyph(it.Level))+" "+it.Text))
	}
	return lipgloss.JoinVertical(lipgloss.Right, boxes...)
}

func color(l coordinator.Level) lipgloss.Color {
	switch l {
	case coordinator.LevelSuccess:
		return theme.ColorHealthy
	case coordinator.LevelWarning:
		return theme.ColorWarning
	case coordinator.LevelError:
		return theme.ColorDanger
	}
	return theme.ColorInfo
}

func glyph(l coordinator.Level) string {
	switch l {
	case coordinator.LevelSuccess:
		return "✓"
	case coordinator.LevelWarning:
		return "!"
	case coordinator.LevelError:
		return "✗"
	}
	return "i"
}
