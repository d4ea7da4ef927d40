// Package note is the prompt for the text that accompanies an approval
// (the customer-facing correction note) or a rejection (the reason).
// Approval notes get a Markdown preview.
package note

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/order-desk/console/internal/coordinator"
	"github.com/order-desk/console/internal/theme"
)

const (
	inputWidth  = 70
	inputHeight = 6
)

// Style names accepted by the preview renderer.
const (
	StyleDark  = "dark"
	StyleNoTTY = "notty"
)

// Model holds the prompt state.
type Model struct {
	Action  coordinator.Action
	OrderID int64

	area    textarea.Model
	open    bool
	style   string
	preview string
}

// New creates a closed prompt. style selects the glamour preview style.
func New(style string) Model {
	if style == "" {
		style = StyleDark
	}
	a := textarea.New()
	a.SetWidth(inputWidth)
	a.SetHeight(inputHeight)
	a.ShowLineNumbers = false
	a.CharLimit = 2000
	return Model{area: a, style: style}
}

// Open shows the prompt for an order with the given initial text.
func (m *Model) Open(action coordinator.Action, orderID int64, initial string) tea.Cmd {
	m.Action = action
	m.OrderID = orderID
	m.open = true
	m.area.Reset()
	m.area.SetValue(initial)
	if action == coordinator.ActionReject {
		m.area.Placeholder = "Причина за отказа"
	} else {
		m.area.Placeholder = "Бележка към клиента"
	}
	m.renderPreview()
	return m.area.Focus()
}

// Close hides the prompt.
func (m *Model) Close() {
	m.open = false
	m.area.Blur()
}

// IsOpen reports whether the prompt is shown.
func (m Model) IsOpen() bool { return m.open }

// Value returns the entered text, trimmed.
func (m Model) Value() string { return strings.TrimSpace(m.area.Value()) }

// Update forwards input to the text area.
func (m *Model) Update(msg tea.Msg) tea.Cmd {
	if !m.open {
		return nil
	}
	before := m.area.Value()
	var cmd tea.Cmd
	m.area, cmd = m.area.Update(msg)
	if m.area.Value() != before {
		m.renderPreview()
	}
	return cmd
}

// Preview returns the rendered Markdown of the current approval note.
func (m Model) Preview() string { return m.preview }

func (m *Model) renderPreview() {
	m.preview = ""
	if m.Action != coordinator.ActionApprove || m.Value() == "" {
		return
	}
	out, err := RenderMarkdown(m.Value(), m.style, inputWidth)
	if err != nil {
		m.preview = m.Value()
		return
	}
	m.preview = strings.Trim(out, "\n")
}

// RenderMarkdown renders note text with glamour. Bullet lines written
// with "•" are turned into Markdown list items first.
func RenderMarkdown(text, style string, width int) (string, error) {
	var md strings.Builder
	for _, line := range strings.Split(text, "\n") {
		if rest, ok := strings.CutPrefix(strings.TrimSpace(line), "•"); ok {
			line = "-" + rest
		}
		md.WriteString(line + "\n")
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("note renderer: %w", err)
	}
	return r.Render(md.String())
}

// View renders the prompt.
func (m Model) View() string {
	if !m.open {
		return ""
	}
	title := fmt.Sprintf("Одобряване на поръчка #%d", m.OrderID)
	help := "ctrl+s: одобри  esc: отказ"
	if m.Action == coordinator.ActionReject {
		title = fmt.Sprintf("Отказ на поръчка #%d", m.OrderID)
		help = "ctrl+s: откажи  esc: отказ"
	}
	parts := []string{theme.StyleHeader.Render(title), m.area.View()}
	if m.preview != "" {
		parts = append(parts, theme.StyleDimmed.Render("Преглед:"), m.preview)
	}
	parts = append(parts, theme.StyleDimmed.Render(help))
	return lipgloss.NewStyle().
		Padding(0, 1).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorAccent).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}
