package coordinator

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/order-desk/console/internal/order"
)

// HandleCounters replaces the counters wholesale. Any counters fetch
// already in flight is superseded.
func (c *Coordinator) HandleCounters(cs order.CounterSnapshot) {
	c.countersGen++
	c.counters = cs.Normalize()
	c.haveCounters = true
}

// HandleOrderUpdate moves an order between buckets after a status change:
// it leaves the previous bucket and goes to the head of the new one.
// Statuses without a tracked bucket drop out of bucket tracking. Cached
// lists of the buckets involved are dropped so a later tab load cannot
// undo the move.
func (c *Coordinator) HandleOrderUpdate(ev order.OrderEvent) tea.Cmd {
	o, ok := c.eventOrder(ev)
	if !ok {
		c.log.Warn("order update without id dropped", "event", ev.EventType)
		return nil
	}
	if ev.NewStatus != "" {
		o.Status = ev.NewStatus
	}

	touched := make(map[order.Bucket]bool)
	if prev, ok := ev.PreviousStatus.Bucket(); ok && prev.Tracked() {
		touched[prev] = c.remove(prev, o.ID)
	} else if !ev.PreviousStatus.Known() {
		for _, b := range order.TrackedBuckets() {
			touched[b] = c.remove(b, o.ID) || touched[b]
		}
	}
	if next, ok := o.Status.Bucket(); ok && next.Tracked() {
		c.remove(next, o.ID)
		c.buckets[next] = prepend(c.buckets[next], o)
		touched[next] = true
	}
	c.api.Invalidate(o.ID)
	for b, changed := range touched {
		c.api.InvalidateBucket(b)
		if changed {
			c.publish(b)
		}
	}
	c.log.Debug("order moved", "id", o.ID, "from", ev.PreviousStatus, "to", o.Status)
	return c.RefreshCounters()
}

// HandleNewOrder inserts a new order at the head of its bucket.
func (c *Coordinator) HandleNewOrder(ev order.OrderEvent) tea.Cmd {
	o, ok := c.eventOrder(ev)
	if !ok {
		return nil
	}
	if ev.NewStatus != "" && o.Status == "" {
		o.Status = ev.NewStatus
	}
	b, ok := o.Status.Bucket()
	if !ok || !b.Tracked() {
		return c.RefreshCounters()
	}
	c.remove(b, o.ID)
	c.buckets[b] = prepend(c.buckets[b], o)
	c.api.InvalidateBucket(b)
	c.publish(b)
	return c.RefreshCounters()
}

// HandleOrderModified replaces an order's data where it already is,
// without moving it between buckets.
func (c *Coordinator) HandleOrderModified(ev order.OrderEvent) tea.Cmd {
	id := ev.OrderID
	if id == 0 {
		id = ev.OrderData.ID
	}
	if id == 0 {
		return nil
	}
	delete(c.details, id)
	c.api.Invalidate(id)

	if ev.OrderData.ID != 0 {
		for _, b := range order.TrackedBuckets() {
			if i := indexOf(c.buckets[b], id); i >= 0 {
				rows := append([]order.OrderSummary(nil), c.buckets[b]...)
				rows[i] = mergeSummary(rows[i], ev.OrderData)
				c.buckets[b] = rows
				c.publish(b)
			}
		}
	}
	return c.RefreshCounters()
}

// SetConnected records the transport state. Losing the connection starts
// the polling fallback; regaining it stops polling and catches up once.
func (c *Coordinator) SetConnected(connected bool) tea.Cmd {
	if connected == c.connected {
		return nil
	}
	c.connected = connected
	c.pollGen++
	if connected {
		c.log.Info("push channel up, polling stopped")
		return c.Refresh()
	}
	c.log.Info("push channel down, polling", "interval", c.opts.AutoRefreshInterval)
	return c.PollTick()
}

// eventOrder resolves the order an event is about, falling back to the
// known row when the payload carries no order data.
func (c *Coordinator) eventOrder(ev order.OrderEvent) (order.OrderSummary, bool) {
	id := ev.OrderID
	if id == 0 {
		id = ev.OrderData.ID
	}
	if id == 0 {
		return order.OrderSummary{}, false
	}
	if ev.OrderData.ID != 0 {
		o := ev.OrderData
		o.ID = id
		return o, true
	}
	if known, _, ok := c.Find(id); ok {
		return known, true
	}
	return order.OrderSummary{ID: id, Status: ev.NewStatus}, true
}

// remove drops id from a bucket and reports whether it was there.
func (c *Coordinator) remove(b order.Bucket, id int64) bool {
	rows := c.buckets[b]
	i := indexOf(rows, id)
	if i < 0 {
		return false
	}
	out := make([]order.OrderSummary, 0, len(rows)-1)
	out = append(out, rows[:i]...)
	c.buckets[b] = append(out, rows[i+1:]...)
	return true
}

func prepend(rows []order.OrderSummary, o order.OrderSummary) []order.OrderSummary {
	out := make([]order.OrderSummary, 0, len(rows)+1)
	out = append(out, o)
	return append(out, rows...)
}

// mergeSummary overlays the non-empty fields of update on current.
func mergeSummary(current, update order.OrderSummary) order.OrderSummary {
	if update.Status != "" {
		current.Status = update.Status
	}
	if !update.SubmittedAt.IsZero() {
		current.SubmittedAt = update.SubmittedAt
	}
	if !update.TotalGross.IsZero() || !update.TotalNet.IsZero() {
		current.TotalGross = update.TotalGross
		current.TotalNet = update.TotalNet
	}
	if update.ItemCount != 0 {
		current.ItemCount = update.ItemCount
	}
	if update.Client != (order.Client{}) {
		current.Client = update.Client
	}
	return current
}
