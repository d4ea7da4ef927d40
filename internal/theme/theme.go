// Package theme provides the Lip Gloss color palette and reusable styles
// for the order console. It only imports the order model so views can
// color by status without import cycles.
package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/order-desk/console/internal/order"
)

// Status colors.
var (
	ColorUrgent    = lipgloss.Color("#dc2626")
	ColorPending   = lipgloss.Color("#d97706")
	ColorConfirmed = lipgloss.Color("#16a34a")
	ColorShipped   = lipgloss.Color("#2563eb")
	ColorCancelled = lipgloss.Color("#6b7280")
	ColorDefault   = lipgloss.Color("#9ca3af")
)

// Change colors.
var (
	ColorModified = lipgloss.Color("#f59e0b")
	ColorRemoved  = lipgloss.Color("#ef4444")
	ColorApproved = lipgloss.Color("#22c55e")
)

// Pulse is the highlight a counter fades from when it increases.
var ColorPulse = lipgloss.Color("#fde047")

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorBg      = lipgloss.Color("#111827")
	ColorAccent  = lipgloss.Color("#7c3aed")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorInfo    = lipgloss.Color("#3b82f6")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// StatusColor returns the color of an order status.
func StatusColor(s order.Status) lipgloss.Color {
	switch s {
	case order.StatusUrgent:
		return ColorUrgent
	case order.StatusPending:
		return ColorPending
	case order.StatusConfirmed:
		return ColorConfirmed
	case order.StatusShipped:
		return ColorShipped
	case order.StatusCancelled:
		return ColorCancelled
	}
	return ColorDefault
}

// BucketColor returns the color of a bucket's tab and counter.
func BucketColor(b order.Bucket) lipgloss.Color {
	switch b {
	case order.BucketUrgent:
		return ColorUrgent
	case order.BucketPending:
		return ColorPending
	case order.BucketConfirmed:
		return ColorConfirmed
	case order.BucketCancelled:
		return ColorCancelled
	case order.BucketCompleted:
		return ColorShipped
	}
	return ColorDefault
}

// ChangeColor returns the color of a pending change type.
func ChangeColor(t order.ChangeType) lipgloss.Color {
	switch t {
	case order.ChangeModified:
		return ColorModified
	case order.ChangeRemoved:
		return ColorRemoved
	case order.ChangeApproved:
		return ColorApproved
	}
	return ColorDefault
}

// StatusGlyph returns a glyph for an order status.
func StatusGlyph(s order.Status) string {
	switch s {
	case order.StatusUrgent:
		return "!"
	case order.StatusPending:
		return "◌"
	case order.StatusConfirmed:
		return "✓"
	case order.StatusShipped:
		return "→"
	case order.StatusCancelled:
		return "✗"
	}
	return "·"
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleError = lipgloss.NewStyle().
			Foreground(ColorDanger)
)
