// Package detail renders the order review overlay: the order's client and
// totals, its line items with proposed quantities, and the pending changes.
package detail

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/order-desk/console/internal/order"
	"github.com/order-desk/console/internal/theme"
	"github.com/order-desk/console/internal/views/orders"
)

const (
	panelWidth = 84
	labelWidth = 12
	nameWidth  = 28
)

var (
	stylePanel = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.ColorBorder).
			Padding(0, 1)

	styleLabel = lipgloss.NewStyle().
			Foreground(theme.ColorDimmed).
			Width(labelWidth)

	styleValue = lipgloss.NewStyle().
			Foreground(theme.ColorBright)

	styleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorBright)

	styleFooter = lipgloss.NewStyle().
			Foreground(theme.ColorDimmed)

	styleSectionHeader = lipgloss.NewStyle().
				Bold(true).
				Foreground(theme.ColorDimmed)
)

// Model holds the state for the detail overlay.
type Model struct {
	Detail   order.Detail
	Changes  []order.PendingChange
	Loading  bool
	Busy     bool
	selected int
}

// New creates a detail model for the given order.
func New(d order.Detail) Model {
	return Model{Detail: d}
}

// Selected returns the highlighted line item.
func (m Model) Selected() (order.LineItem, bool) {
	if m.selected < 0 || m.selected >= len(m.Detail.Items) {
		return order.LineItem{}, false
	}
	return m.Detail.Items[m.selected], true
}

// Up and Down move the line selection, clamped to the list.
func (m *Model) Up() {
	if m.selected > 0 {
		m.selected--
	}
}

func (m *Model) Down() {
	if m.selected < len(m.Detail.Items)-1 {
		m.selected++
	}
}

func (m Model) change(productID int64) (order.PendingChange, bool) {
	for _, ch := range m.Changes {
		if ch.ProductID == productID {
			return ch, true
		}
	}
	return order.PendingChange{}, false
}

// Quantity is the line's effective quantity with pending changes applied.
func (m Model) Quantity(item order.LineItem) int {
	if ch, ok := m.change(item.ProductID); ok {
		return ch.NewQuantity
	}
	return item.Quantity
}

// Total is the gross value of the order with pending changes applied.
func (m Model) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range m.Detail.Items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(m.Quantity(it)))))
	}
	return total
}

// View renders the detail panel.
func (m Model) View() string {
	return stylePanel.Width(panelWidth).Render(m.renderInner())
}

func (m Model) renderInner() string {
	var b strings.Builder
	s := m.Detail.Summary

	title := fmt.Sprintf("Поръчка #%d", s.ID)
	status := lipgloss.NewStyle().Foreground(theme.StatusColor(s.Status)).Render(s.Status.Label())
	b.WriteString(styleTitle.Render(title) + "  " + status + "\n")
	b.WriteString(strings.Repeat("─", panelWidth-4) + "\n")

	if m.Loading {
		b.WriteString(styleFooter.Render("Зареждане на артикулите...") + "\n")
		return b.String()
	}

	writeRow(&b, "Клиент", orDash(s.Client.Name, orders.NoName))
	writeRow(&b, "Фирма", orDash(s.Client.Company, orders.NoCompany))
	writeRow(&b, "Телефон", orDash(s.Client.Phone, "–"))
	writeRow(&b, "Град", orDash(s.Client.Location, orders.NoLocation))
	writeRow(&b, "Подадена", orders.FormatDate(s.SubmittedAt))
	writeRow(&b, "Сума", fmt.Sprintf("%s лв (без ДДС %s лв)", s.TotalGross.StringFixed(2), s.TotalNet.StringFixed(2)))
	if m.Detail.Note != "" {
		writeRow(&b, "Бележка", m.Detail.Note)
	}

	b.WriteString("\n")
	b.WriteString(styleSectionHeader.Render(fmt.Sprintf("Артикули (%d)", len(m.Detail.Items))) + "\n")
	b.WriteString(styleFooter.Render(fmt.Sprintf("    %-*s %8s %8s %8s %12s", nameWidth, "Продукт", "Поръчано", "Ново", "Наличност", "Цена")) + "\n")
	for i, it := range m.Detail.Items {
		prefix := "  "
		if i == m.selected {
			prefix = "> "
		}
		b.WriteString(prefix + m.renderItem(it) + "\n")
	}

	if len(m.Changes) > 0 {
		b.WriteString("\n")
		b.WriteString(styleSectionHeader.Render(fmt.Sprintf("Промени (%d)", len(m.Changes))) + "\n")
		for _, ch := range m.Changes {
			b.WriteString("  " + renderChange(ch) + "\n")
		}
		writeRow(&b, "Нова сума", m.Total().StringFixed(2)+" лв")
	}

	b.WriteString("\n")
	footer := "[+/-] количество  [x] премахни  [o] одобри ред  [u] отмени промените  [a] одобри  [R] откажи  [esc] затвори"
	if m.Busy {
		footer = "Изпращане..."
	}
	b.WriteString(styleFooter.Render(footer))
	return b.String()
}

func (m Model) renderItem(it order.LineItem) string {
	qty := m.Quantity(it)
	name := it.ProductName
	if it.SKU != "" {
		name += " (" + it.SKU + ")"
	}
	line := fmt.Sprintf("  %-*s %8d %8d %8d %12s",
		nameWidth, truncate(name, nameWidth),
		it.Quantity, qty, it.AvailableStock,
		it.UnitPrice.StringFixed(2)+" лв",
	)
	ch, ok := m.change(it.ProductID)
	if !ok {
		return line
	}
	style := lipgloss.NewStyle().Foreground(theme.ChangeColor(ch.Type))
	if ch.Type == order.ChangeRemoved {
		style = style.Strikethrough(true)
	}
	return style.Render(line)
}

func renderChange(ch order.PendingChange) string {
	var text string
	switch ch.Type {
	case order.ChangeRemoved:
		text = ch.ProductName + ": премахнат"
	case order.ChangeApproved:
		text = ch.ProductName + ": одобрен"
	default:
		text = fmt.Sprintf("%s: %d → %d", ch.ProductName, ch.OriginalQuantity, ch.NewQuantity)
	}
	return lipgloss.NewStyle().Foreground(theme.ChangeColor(ch.Type)).Render("• " + text)
}

func writeRow(b *strings.Builder, label, value string) {
	b.WriteString(styleLabel.Render(label+":") + styleValue.Render(value) + "\n")
}

func orDash(s, placeholder string) string {
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
