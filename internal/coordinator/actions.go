package coordinator

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/order-desk/console/internal/api"
	"github.com/order-desk/console/internal/order"
)

// ApproveOrder submits an approval with the order's pending changes. When
// there are changes and note is blank, nothing is sent and a NoteRequired
// with a suggested note is returned so the operator can write one.
func (c *Coordinator) ApproveOrder(id int64, note string) (tea.Cmd, *NoteRequired) {
	if c.Busy(id) {
		return nil, nil
	}
	changes := c.Changes(id)
	note = strings.TrimSpace(note)
	if len(changes) > 0 && note == "" {
		return nil, &NoteRequired{OrderID: id, Suggested: CorrectionNote(id, changes)}
	}

	c.inFlight[id] = ActionApprove
	backend, timeout := c.api, c.opts.RequestTimeout
	c.log.Info("approve", "id", id, "changes", len(changes))
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err := backend.Approve(ctx, id, note, changes)
		return ActionDoneMsg{Action: ActionApprove, OrderID: id, Result: api.Normalize(err, "одобряване на поръчката")}
	}, nil
}

// RejectOrder rejects an order. The reason is required.
func (c *Coordinator) RejectOrder(id int64, reason string) tea.Cmd {
	if c.Busy(id) {
		return nil
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return notify(LevelWarning, "Моля, въведете причина за отказа")
	}

	c.inFlight[id] = ActionReject
	backend, timeout := c.api, c.opts.RequestTimeout
	c.log.Info("reject", "id", id)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err := backend.Reject(ctx, id, reason)
		return ActionDoneMsg{Action: ActionReject, OrderID: id, Result: api.Normalize(err, "отказване на поръчката")}
	}
}

func (c *Coordinator) actionDone(msg ActionDoneMsg) tea.Cmd {
	delete(c.inFlight, msg.OrderID)
	if !msg.Result.Success {
		c.log.Warn("action failed", "action", msg.Action, "id", msg.OrderID, "msg", msg.Result.Message)
		return notify(LevelError, msg.Result.Message)
	}

	c.ResetChanges(msg.OrderID)
	delete(c.details, msg.OrderID)
	c.api.ClearCache()

	text := fmt.Sprintf("Поръчка #%d е одобрена", msg.OrderID)
	if msg.Action == ActionReject {
		text = fmt.Sprintf("Поръчка #%d е отказана", msg.OrderID)
	}
	return tea.Batch(notify(LevelSuccess, text), c.load(c.active), c.fetchCounters())
}

// Pending returns every order id with unsent changes.
func (c *Coordinator) Pending() []int64 {
	out := make([]int64, 0, len(c.changes))
	for _, b := range order.TrackedBuckets() {
		for _, o := range c.buckets[b] {
			if _, ok := c.changes[o.ID]; ok {
				out = append(out, o.ID)
			}
		}
	}
	return out
}
