package coordinator

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/order-desk/console/internal/api"
	"github.com/order-desk/console/internal/order"
)

// changeLog is the ordered set of pending changes of one order.
type changeLog struct {
	order []int64
	byID  map[int64]order.PendingChange
}

func (l *changeLog) put(ch order.PendingChange) {
	if _, ok := l.byID[ch.ProductID]; !ok {
		l.order = append(l.order, ch.ProductID)
	}
	l.byID[ch.ProductID] = ch
}

func (l *changeLog) drop(productID int64) {
	if _, ok := l.byID[productID]; !ok {
		return
	}
	delete(l.byID, productID)
	for i, id := range l.order {
		if id == productID {
			l.order = append(l.order[:i:i], l.order[i+1:]...)
			break
		}
	}
}

func (l *changeLog) list() []order.PendingChange {
	out := make([]order.PendingChange, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.byID[id])
	}
	return out
}

// LoadDetail fetches an order's line items for review.
func (c *Coordinator) LoadDetail(id int64) tea.Cmd {
	backend, timeout := c.api, c.opts.RequestTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		d, err := backend.OrderDetail(ctx, id)
		return DetailLoadedMsg{OrderID: id, Detail: d, Err: err}
	}
}

func (c *Coordinator) detailLoaded(msg DetailLoadedMsg) tea.Cmd {
	if msg.Err != nil {
		return notify(LevelError, api.Normalize(msg.Err, "зареждане на поръчката").Message)
	}
	if msg.Detail.Summary.ID == 0 {
		msg.Detail.Summary.ID = msg.OrderID
	}
	c.details[msg.OrderID] = msg.Detail
	return nil
}

// Detail returns the loaded detail of an order.
func (c *Coordinator) Detail(id int64) (order.Detail, bool) {
	d, ok := c.details[id]
	return d, ok
}

// TrackOrderChange records a change, replacing any earlier change to the
// same line. The order is marked as modified.
func (c *Coordinator) TrackOrderChange(orderID int64, ch order.PendingChange) {
	ch.OrderID = orderID
	l, ok := c.changes[orderID]
	if !ok {
		l = &changeLog{byID: make(map[int64]order.PendingChange)}
		c.changes[orderID] = l
	}
	l.put(ch)
	c.MarkOrderAsModified(orderID)
}

// MarkOrderAsModified flags an order for the modified indicator.
func (c *Coordinator) MarkOrderAsModified(orderID int64) {
	c.modified[orderID] = true
}

// IsModified reports whether an order carries unsent changes.
func (c *Coordinator) IsModified(orderID int64) bool {
	return c.modified[orderID]
}

// Changes returns an order's pending changes in the order they were made.
func (c *Coordinator) Changes(orderID int64) []order.PendingChange {
	l, ok := c.changes[orderID]
	if !ok {
		return nil
	}
	return l.list()
}

// ResetChanges discards an order's pending changes.
func (c *Coordinator) ResetChanges(orderID int64) {
	delete(c.changes, orderID)
	delete(c.modified, orderID)
}

// Quantity returns the effective quantity of a line: the pending value if
// one exists, otherwise the ordered quantity.
func (c *Coordinator) Quantity(orderID int64, item order.LineItem) int {
	if l, ok := c.changes[orderID]; ok {
		if ch, ok := l.byID[item.ProductID]; ok {
			return ch.NewQuantity
		}
	}
	return item.Quantity
}

// SetQuantity proposes a new quantity for a line of a loaded order. A
// quantity above the available stock is clamped to it and a warning is
// returned as a notice. Going back to the ordered quantity drops the
// change.
func (c *Coordinator) SetQuantity(orderID, productID int64, qty int) tea.Cmd {
	item, ok := c.lineItem(orderID, productID)
	if !ok {
		return nil
	}
	var warn tea.Cmd
	if qty < 0 {
		qty = 0
	}
	if item.AvailableStock >= 0 && qty > item.AvailableStock {
		qty = item.AvailableStock
		warn = notify(LevelWarning, fmt.Sprintf("Недостатъчна наличност за %s: налични %d бр.", item.ProductName, item.AvailableStock))
	}

	switch {
	case qty == item.Quantity:
		c.dropChange(orderID, productID)
	case qty == 0:
		c.TrackOrderChange(orderID, change(item, 0, order.ChangeRemoved))
	default:
		c.TrackOrderChange(orderID, change(item, qty, order.ChangeModified))
	}
	return warn
}

// AdjustQuantity changes a line's effective quantity by delta.
func (c *Coordinator) AdjustQuantity(orderID, productID int64, delta int) tea.Cmd {
	item, ok := c.lineItem(orderID, productID)
	if !ok {
		return nil
	}
	return c.SetQuantity(orderID, productID, c.Quantity(orderID, item)+delta)
}

// RemoveLine marks a line as removed from the order.
func (c *Coordinator) RemoveLine(orderID, productID int64) {
	if item, ok := c.lineItem(orderID, productID); ok {
		c.TrackOrderChange(orderID, change(item, 0, order.ChangeRemoved))
	}
}

// ApproveLine confirms a line as ordered.
func (c *Coordinator) ApproveLine(orderID, productID int64) {
	if item, ok := c.lineItem(orderID, productID); ok {
		c.TrackOrderChange(orderID, change(item, item.Quantity, order.ChangeApproved))
	}
}

func (c *Coordinator) dropChange(orderID, productID int64) {
	l, ok := c.changes[orderID]
	if !ok {
		return
	}
	l.drop(productID)
	if len(l.order) == 0 {
		c.ResetChanges(orderID)
	}
}

func (c *Coordinator) lineItem(orderID, productID int64) (order.LineItem, bool) {
	d, ok := c.details[orderID]
	if !ok {
		return order.LineItem{}, false
	}
	for _, it := range d.Items {
		if it.ProductID == productID {
			return it, true
		}
	}
	return order.LineItem{}, false
}

func change(item order.LineItem, qty int, t order.ChangeType) order.PendingChange {
	return order.PendingChange{
		ProductID:        item.ProductID,
		ProductName:      item.ProductName,
		OriginalQuantity: item.Quantity,
		NewQuantity:      qty,
		Type:             t,
	}
}

// CorrectionNote builds the customer-facing note for a batch of changes:
// a header line and one bullet line per change.
func CorrectionNote(orderID int64, changes []order.PendingChange) string {
	var b strings.Builder
	fmt.Fprintf(&b, "В поръчка #%d бяха направени следните корекции:\n", orderID)
	for _, ch := range changes {
		name := ch.ProductName
		if name == "" {
			name = fmt.Sprintf("Продукт %d", ch.ProductID)
		}
		switch ch.Type {
		case order.ChangeRemoved:
			fmt.Fprintf(&b, "• %s: премахнат от поръчката\n", name)
		case order.ChangeApproved:
			fmt.Fprintf(&b, "• %s: одобрен\n", name)
		default:
			fmt.Fprintf(&b, "• %s: количество %d → %d\n", name, ch.OriginalQuantity, ch.NewQuantity)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
