// Package loader is the global loading indicator: a spinner with a message
// and an optional second line.
package loader

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/order-desk/console/internal/theme"
)

// Model is the loading indicator.
type Model struct {
	spinner spinner.Model
	active  bool
	message string
	subtext string
}

// New creates a hidden indicator.
func New() Model {
	s := spinner.New(spinner.WithSpinner(spinner.Dot))
	s.Style = lipgloss.NewStyle().Foreground(theme.ColorAccent)
	return Model{spinner: s}
}

// Active reports whether the indicator is shown.
func (m Model) Active() bool { return m.active }

// Message returns the current message.
func (m Model) Message() string { return m.message }

// Show displays the indicator. The returned command starts the spinner
// when it was hidden.
func (m *Model) Show(message, subtext string) tea.Cmd {
	wasActive := m.active
	m.active = true
	m.message = message
	m.subtext = subtext
	if wasActive {
		return nil
	}
	return m.spinner.Tick
}

// Hide removes the indicator. Pending spinner ticks stop on their own.
func (m *Model) Hide() {
	m.active = false
}

// Update advances the spinner while shown.
func (m *Model) Update(msg spinner.TickMsg) tea.Cmd {
	if !m.active {
		return nil
	}
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return cmd
}

// View renders the indicator or nothing.
func (m Model) View() string {
	if !m.active {
		return ""
	}
	line := m.spinner.View() + " " + m.message
	if m.subtext != "" {
		line += "\n  " + theme.StyleDimmed.Render(m.subtext)
	}
	return line
}
