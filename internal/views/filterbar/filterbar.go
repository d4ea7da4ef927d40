// Package filterbar is the filter strip above the order table: text inputs
// for search and the amount bounds, and labels for the cycled settings
// (period, sort, location).
package filterbar

import (
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/order-desk/console/internal/filter"
	"github.com/order-desk/console/internal/theme"
)

// Field identifies one text input.
type Field int

const (
	FieldNone Field = iota
	FieldSearch
	FieldMin
	FieldMax
)

// DebounceKey groups inputs that share a debounce timer. Both amount
// bounds are applied together.
func (f Field) DebounceKey() string {
	switch f {
	case FieldSearch:
		return "search"
	case FieldMin, FieldMax:
		return "amount"
	}
	return ""
}

// Model holds the inputs.
type Model struct {
	search textinput.Model
	min    textinput.Model
	max    textinput.Model
	focus  Field
}

// New creates the filter bar.
func New() Model {
	mk := func(prompt, placeholder string, width int) textinput.Model {
		in := textinput.New()
		in.Prompt = prompt
		in.Placeholder = placeholder
		in.Width = width
		in.CharLimit = 64
		return in
	}
	return Model{
		search: mk("/ ", "търсене", 24),
		min:    mk("от ", "сума", 8),
		max:    mk("до ", "сума", 8),
	}
}

// Sync copies a filter state into the inputs, e.g. after loading
// persisted preferences or a reset.
func (m *Model) Sync(s filter.State) {
	m.search.SetValue(s.Search)
	m.min.SetValue(amountText(s.MinAmount))
	m.max.SetValue(amountText(s.MaxAmount))
}

func amountText(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

// Focus starts editing a field.
func (m *Model) Focus(f Field) tea.Cmd {
	m.Blur()
	m.focus = f
	if in := m.input(f); in != nil {
		return in.Focus()
	}
	return nil
}

// Blur stops editing.
func (m *Model) Blur() {
	m.search.Blur()
	m.min.Blur()
	m.max.Blur()
	m.focus = FieldNone
}

// Editing returns the focused field, FieldNone when not editing.
func (m Model) Editing() Field { return m.focus }

// NextField moves focus search → min → max → search.
func (m *Model) NextField() tea.Cmd {
	next := FieldSearch
	switch m.focus {
	case FieldSearch:
		next = FieldMin
	case FieldMin:
		next = FieldMax
	}
	return m.Focus(next)
}

// Search returns the search text.
func (m Model) Search() string { return m.search.Value() }

// Amounts returns the raw amount bound texts.
func (m Model) Amounts() (minText, maxText string) { return m.min.Value(), m.max.Value() }

// Update forwards a key to the focused input and reports which field
// changed, if any.
func (m *Model) Update(msg tea.Msg) (tea.Cmd, Field) {
	in := m.input(m.focus)
	if in == nil {
		return nil, FieldNone
	}
	before := in.Value()
	var cmd tea.Cmd
	*in, cmd = in.Update(msg)
	if in.Value() == before {
		return cmd, FieldNone
	}
	return cmd, m.focus
}

func (m *Model) input(f Field) *textinput.Model {
	switch f {
	case FieldSearch:
		return &m.search
	case FieldMin:
		return &m.min
	case FieldMax:
		return &m.max
	}
	return nil
}

// View renders the bar for the applied state.
func (m Model) View(s filter.State, width int) string {
	label := lipgloss.NewStyle().Foreground(theme.ColorDimmed)
	value := lipgloss.NewStyle().Foreground(theme.ColorBright)

	period := s.Period.Label()
	location := s.Location
	if location == "" {
		location = "Всички"
	}
	settings := fmt.Sprintf("%s %s  %s %s  %s %s",
		label.Render("[p] период:"), value.Render(period),
		label.Render("[s] ред:"), value.Render(s.Sort.Label()),
		label.Render("[l] град:"), value.Render(location),
	)
	inputs := m.search.View() + "  " + m.min.View() + " " + m.max.View()
	if !s.IsDefault() {
		settings += "  " + label.Render("[c] изчисти")
	}
	return lipgloss.NewStyle().Width(max(width, 40)).Padding(0, 1).
		Render(inputs + "\n" + settings)
}
