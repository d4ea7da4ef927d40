// Package debug provides a scrollable overlay of push events, requests and
// errors seen during the session.
package debug

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/order-desk/console/internal/theme"
)

const maxEntries = 200

// Kind tags where a log line came from.
type Kind string

const (
	KindPush  Kind = "stmp"
	KindTab   Kind = "tab"
	KindOK    Kind = "ok"
	KindInfo  Kind = "info"
	KindWarn  Kind = "warn"
	KindError Kind = "err"
)

func (k Kind) color() lipgloss.Color {
	switch k {
	case KindPush:
		return theme.ColorInfo
	case KindTab:
		return theme.ColorAccent
	case KindOK:
		return theme.ColorHealthy
	case KindWarn:
		return theme.ColorWarning
	case KindError:
		return theme.ColorDanger
	}
	return theme.ColorDimmed
}

// Entry is one logged line.
type Entry struct {
	Time    time.Time
	Kind    Kind
	Message string
}

// Model is the session log. Offset counts lines scrolled up from the
// newest entry.
type Model struct {
	Entries []Entry
	Offset  int
	now     func() time.Time
}

// New returns an empty log stamped with the wall clock.
func New() Model {
	return Model{now: time.Now}
}

// Add appends an entry, keeps the newest maxEntries and jumps back to the
// bottom.
func (m *Model) Add(kind Kind, message string) {
	at := time.Now()
	if m.now != nil {
		at = m.now()
	}
	m.Entries = append(m.Entries, Entry{Time: at, Kind: kind, Message: message})
	if over := len(m.Entries) - maxEntries; over > 0 {
		m.Entries = m.Entries[over:]
	}
	m.Offset = 0
}

// Scroll moves the view by delta lines; positive scrolls towards older
// entries. The newest entry always stays reachable.
func (m *Model) Scroll(delta int) {
	m.Offset = max(0, min(m.Offset+delta, len(m.Entries)-1))
}

// View renders the log as an overlay panel.
func (m Model) View(width, height int) string {
	innerW := max(width-4, 20)
	rows := max(height-6, 3)

	title := theme.StyleHeader.Render(" ДНЕВНИК ")
	help := theme.StyleDimmed.Render(fmt.Sprintf("j/k: превъртане  esc: затвори  %d записа", len(m.Entries)))
	panel := lipgloss.NewStyle().
		Width(innerW).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder)

	if len(m.Entries) == 0 {
		empty := theme.StyleDimmed.Render("  Няма записани събития.")
		return panel.Render(lipgloss.JoinVertical(lipgloss.Left, title, "", empty, "", help))
	}

	end := max(len(m.Entries)-m.Offset, 0)
	start := max(end-rows, 0)
	lines := make([]string, 0, end-start)
	for _, e := range m.Entries[start:end] {
		lines = append(lines, fmt.Sprintf("%s %s %s",
			theme.StyleDimmed.Render(e.Time.Format("15:04:05.000")),
			lipgloss.NewStyle().Foreground(e.Kind.color()).Width(4).Render(string(e.Kind)),
			truncate(e.Message, innerW-20)))
	}

	more := ""
	if m.Offset > 0 {
		more = theme.StyleDimmed.Render(fmt.Sprintf(" ↓ още %d", m.Offset))
	}
	return panel.Render(lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n"), more, help))
}

// truncate shortens s to at most limit runes, ellipsis included.
func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit || limit < 4 {
		return s
	}
	return string(r[:limit-3]) + "..."
}
