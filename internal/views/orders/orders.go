// Package orders renders the active tab's filtered order list as a table.
// The list is fully replaced on every update; only the selection carries
// over, by order id.
package orders

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/order-desk/console/internal/filter"
	"github.com/order-desk/console/internal/order"
	"github.com/order-desk/console/internal/theme"
)

// Placeholders for missing optional fields.
const (
	NoName     = "(без име)"
	NoCompany  = "–"
	NoLocation = "–"
	NoDate     = "(без дата)"
)

// Model holds the order table state.
type Model struct {
	Width   int
	Height  int
	Loading bool

	view       filter.View
	modified   map[int64]bool
	busy       map[int64]bool
	selected   int
	selectedID int64
}

// New creates an empty order table.
func New() Model {
	return Model{}
}

// SetView replaces the rows. The selection follows the previously
// selected order if it is still shown.
func (m *Model) SetView(v filter.View, modified, busy map[int64]bool) {
	m.view = v
	m.modified = modified
	m.busy = busy
	m.selected = 0
	for i, o := range v.Rows {
		if o.ID == m.selectedID {
			m.selected = i
			break
		}
	}
	m.syncSelection()
}

// Rows returns the displayed rows.
func (m Model) Rows() []order.OrderSummary { return m.view.Rows }

// Selected returns the highlighted order.
func (m Model) Selected() (order.OrderSummary, bool) {
	if m.selected < 0 || m.selected >= len(m.view.Rows) {
		return order.OrderSummary{}, false
	}
	return m.view.Rows[m.selected], true
}

// Up and Down move the selection, wrapping around.
func (m *Model) Up() {
	if n := len(m.view.Rows); n > 0 {
		m.selected = (m.selected - 1 + n) % n
		m.syncSelection()
	}
}

func (m *Model) Down() {
	if n := len(m.view.Rows); n > 0 {
		m.selected = (m.selected + 1) % n
		m.syncSelection()
	}
}

func (m *Model) syncSelection() {
	if o, ok := m.Selected(); ok {
		m.selectedID = o.ID
	}
}

// Column widths (fixed layout).
const (
	colID       = 7
	colDate     = 17
	colClient   = 22
	colCompany  = 20
	colLocation = 12
	colItems    = 5
	colTotal    = 13
)

// View renders the table for the given tab.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	b := m.view.Bucket
	header := lipgloss.NewStyle().Bold(true).Foreground(theme.BucketColor(b)).
		Render("  " + b.Title())
	if m.Loading {
		header += theme.StyleDimmed.Render("  зареждане...")
	}

	if len(m.view.Rows) == 0 {
		empty := "  Няма поръчки"
		if m.view.Total > 0 {
			empty = "  Няма поръчки, отговарящи на филтрите"
		}
		return lipgloss.JoinVertical(lipgloss.Left, header, theme.StyleDimmed.Render(empty))
	}

	dimStyle := lipgloss.NewStyle().Foreground(theme.ColorDimmed)
	tableHeader := fmt.Sprintf("    %-*s %-*s %-*s %-*s %-*s %*s %*s",
		colID, "№",
		colDate, "Подадена",
		colClient, "Клиент",
		colCompany, "Фирма",
		colLocation, "Град",
		colItems, "Арт.",
		colTotal, "Сума",
	)
	total := colID + colDate + colClient + colCompany + colLocation + colItems + colTotal + 6
	lines := []string{
		header,
		dimStyle.Render(tableHeader),
		dimStyle.Render("    " + strings.Repeat("─", min(width-6, total))),
	}

	for i, o := range m.view.Rows {
		prefix := "  "
		if i == m.selected {
			prefix = "> "
		}
		lines = append(lines, prefix+m.renderRow(o, i == m.selected))
	}

	footer := fmt.Sprintf("  Страница %d/%d  ·  %d от %d", m.view.Page+1, max(m.view.Pages, 1), m.view.Matched, m.view.Total)
	lines = append(lines, dimStyle.Render(footer))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) renderRow(o order.OrderSummary, selected bool) string {
	mark := " "
	switch {
	case m.busy[o.ID]:
		mark = lipgloss.NewStyle().Foreground(theme.ColorInfo).Render("…")
	case m.modified[o.ID]:
		mark = lipgloss.NewStyle().Foreground(theme.ColorModified).Render("✎")
	}
	glyph := lipgloss.NewStyle().Foreground(theme.StatusColor(o.Status)).Render(theme.StatusGlyph(o.Status))

	name := fallback(o.Client.Name, NoName)
	nameStyle := lipgloss.NewStyle().Width(colClient)
	if selected {
		nameStyle = nameStyle.Bold(true).Foreground(theme.ColorBright)
	}

	return fmt.Sprintf("%s%s %-*s %-*s %s %-*s %-*s %*d %*s",
		glyph, mark,
		colID, fmt.Sprintf("#%d", o.ID),
		colDate, FormatDate(o.SubmittedAt),
		nameStyle.Render(truncate(name, colClient-1)),
		colCompany, truncate(fallback(o.Client.Company, NoCompany), colCompany-1),
		colLocation, truncate(fallback(o.Client.Location, NoLocation), colLocation-1),
		colItems, o.ItemCount,
		colTotal, o.TotalGross.StringFixed(2)+" лв",
	)
}

// FormatDate renders a submission time or the placeholder.
func FormatDate(t order.Timestamp) string {
	if t.IsZero() {
		return NoDate
	}
	return t.Format("02.01.2006 15:04")
}

func fallback(s, placeholder string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
