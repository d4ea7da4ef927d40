// Package status renders the counters bar: one badge per bucket with a
// spring-driven pulse when a count rises, plus the push channel state.
package status

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"

	"github.com/order-desk/console/internal/order"
	"github.com/order-desk/console/internal/theme"
	"github.com/order-desk/console/internal/transport"
)

const (
	fps = 30
	// Pulses below this intensity are considered finished.
	pulseRest = 0.02
)

// FrameMsg advances the pulse animation.
type FrameMsg struct{}

type pulse struct {
	pos, vel float64
}

// Model holds the status bar state.
type Model struct {
	Width  int
	Active order.Bucket

	Conn      transport.ConnectionState
	Attempt   int
	NextRetry time.Duration
	GaveUp    bool
	Degraded  string

	counters  order.CounterSnapshot
	hasValues bool
	pulses    map[order.Bucket]*pulse
	spring    harmonica.Spring
	animating bool
}

// New creates a status bar model.
func New() Model {
	return Model{
		Conn:   transport.Connecting,
		pulses: make(map[order.Bucket]*pulse),
		spring: harmonica.NewSpring(harmonica.FPS(fps), 6.0, 0.6),
	}
}

// Counters returns the displayed counters.
func (m Model) Counters() order.CounterSnapshot { return m.counters }

// SetCounters displays a new snapshot. Re-displaying a value changes
// nothing; a strictly greater value pulses that badge. The first snapshot
// never pulses.
func (m *Model) SetCounters(cs order.CounterSnapshot) tea.Cmd {
	prev, had := m.counters, m.hasValues
	m.counters = cs
	m.hasValues = true
	if !had {
		return nil
	}
	var cmd tea.Cmd
	for _, b := range order.Buckets {
		if cs.Count(b) > prev.Count(b) {
			if c := m.Pulse(b); c != nil {
				cmd = c
			}
		}
	}
	return cmd
}

// Pulse highlights one badge. It returns the animation tick if the
// animation was idle.
func (m *Model) Pulse(b order.Bucket) tea.Cmd {
	m.pulses[b] = &pulse{pos: 1}
	if m.animating {
		return nil
	}
	m.animating = true
	return frame()
}

// Pulsing reports the current intensity of a badge's pulse, 0 when idle.
func (m Model) Pulsing(b order.Bucket) float64 {
	if p, ok := m.pulses[b]; ok {
		return p.pos
	}
	return 0
}

// Animate steps every pulse toward rest and keeps ticking while any
// pulse is visible.
func (m *Model) Animate(FrameMsg) tea.Cmd {
	for b, p := range m.pulses {
		p.pos, p.vel = m.spring.Update(p.pos, p.vel, 0)
		if p.pos < pulseRest && p.pos > -pulseRest && p.vel < pulseRest && p.vel > -pulseRest {
			delete(m.pulses, b)
		}
	}
	if len(m.pulses) == 0 {
		m.animating = false
		return nil
	}
	return frame()
}

func frame() tea.Cmd {
	return tea.Tick(time.Second/fps, func(time.Time) tea.Msg { return FrameMsg{} })
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var badges []string
	for _, b := range order.Buckets {
		badges = append(badges, m.badge(b))
	}
	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := m.connection() + sep + strings.Join(badges, "  ")
	if m.Degraded != "" {
		content += sep + lipgloss.NewStyle().Foreground(theme.ColorWarning).Render("ограничен режим")
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}

func (m Model) badge(b order.Bucket) string {
	label := fmt.Sprintf("%s %d", b.Title(), m.counters.Count(b))
	if !m.hasValues {
		label = b.Title() + " –"
	}
	style := lipgloss.NewStyle().Foreground(theme.BucketColor(b))
	if b == m.Active && b.Tracked() {
		style = style.Bold(true).Underline(true)
	}
	switch p := m.Pulsing(b); {
	case p > 0.5:
		style = style.Foreground(theme.ColorBg).Background(theme.ColorPulse).Bold(true)
	case p > 0.1:
		style = style.Foreground(theme.ColorPulse).Bold(true)
	}
	return style.Render(label)
}

func (m Model) connection() string {
	switch {
	case m.Conn == transport.Connected:
		return lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Свързан")
	case m.GaveUp:
		return lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("✗ Няма връзка (r: свържи отново)")
	case m.Attempt > 0:
		return lipgloss.NewStyle().Foreground(theme.ColorWarning).Render(
			fmt.Sprintf("○ Опит %d след %s", m.Attempt, m.NextRetry.Round(time.Second)))
	case m.Conn == transport.Connecting:
		return lipgloss.NewStyle().Foreground(theme.ColorWarning).Render("○ Свързване...")
	}
	return lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("○ Няма връзка")
}
