// Package fakeportal is an in-memory stand-in for the warehouse portal: an
// order store, the JSON REST surface, a STOMP-over-WebSocket broker for the
// dashboard topics, the server-rendered dashboard page and a generator that
// creates orders and moves them through their lifecycle.
package fakeportal

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/order-desk/console/internal/order"
)

var (
	ErrNotFound = errors.New("order not found")
	// ErrConflict is returned when an order is not in a state that allows
	// the requested transition.
	ErrConflict = errors.New("order state does not allow this action")
	ErrInvalid  = errors.New("invalid request")
)

// vatRate converts gross to net totals.
var vatRate = decimal.RequireFromString("1.2")

// Store holds every order by id. Reads return copies.
type Store struct {
	mu     sync.RWMutex
	orders map[int64]*order.Detail
	nextID int64
	now    func() time.Time
}

// NewStore creates an empty store. Ids start at 1001.
func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		orders: make(map[int64]*order.Detail),
		nextID: 1001,
		now:    now,
	}
}

// Add stores d, assigning an id when it has none and a submission time
// when it is zero. Totals and item count are derived from the lines.
func (s *Store) Add(d order.Detail) order.Detail {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.Summary.ID == 0 {
		d.Summary.ID = s.nextID
	}
	if d.Summary.ID >= s.nextID {
		s.nextID = d.Summary.ID + 1
	}
	if d.Summary.SubmittedAt.IsZero() {
		d.Summary.SubmittedAt = order.Timestamp{Time: s.now().Truncate(time.Second)}
	}
	if d.Summary.Status == "" {
		d.Summary.Status = order.StatusPending
	}
	d.Items = append([]order.LineItem(nil), d.Items...)
	recompute(&d)
	s.orders[d.Summary.ID] = &d
	return cloneDetail(&d)
}

// Get returns one order with its lines.
func (s *Store) Get(id int64) (order.Detail, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.orders[id]
	if !ok {
		return order.Detail{}, false
	}
	return cloneDetail(d), true
}

// List returns the orders of one bucket, newest first.
func (s *Store) List(b order.Bucket) []order.OrderSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]order.OrderSummary, 0)
	for _, d := range s.orders {
		if got, ok := d.Summary.Status.Bucket(); ok && got == b {
			out = append(out, d.Summary)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt.Time) {
			return out[i].SubmittedAt.After(out[j].SubmittedAt.Time)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// Rows returns the lists of every tracked bucket, as rendered on the page.
func (s *Store) Rows() map[order.Bucket][]order.OrderSummary {
	rows := make(map[order.Bucket][]order.OrderSummary)
	for _, b := range order.TrackedBuckets() {
		rows[b] = s.List(b)
	}
	return rows
}

// IDs returns the ids of orders in status st, ascending.
func (s *Store) IDs(st order.Status) []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []int64
	for id, d := range s.orders {
		if d.Summary.Status == st {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Counters counts orders per bucket.
func (s *Store) Counters() order.CounterSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var cs order.CounterSnapshot
	for _, d := range s.orders {
		b, ok := d.Summary.Status.Bucket()
		if !ok {
			continue
		}
		switch b {
		case order.BucketUrgent:
			cs.Urgent++
		case order.BucketPending:
			cs.Pending++
		case order.BucketConfirmed:
			cs.Confirmed++
		case order.BucketCancelled:
			cs.Cancelled++
		case order.BucketCompleted:
			cs.Completed++
		}
	}
	return cs
}

// SetStatus moves an order to st and returns the STATUS_CHANGED event.
func (s *Store) SetStatus(id int64, st order.Status) (order.OrderEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.orders[id]
	if !ok {
		return order.OrderEvent{}, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	return s.transition(d, st), nil
}

// Approve applies the change batch and confirms the order. Only urgent
// and pending orders can be approved.
func (s *Store) Approve(id int64, note string, changes []order.PendingChange) (order.OrderEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.orders[id]
	if !ok {
		return order.OrderEvent{}, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	if !reviewable(d.Summary.Status) {
		return order.OrderEvent{}, fmt.Errorf("approve order %d in %s: %w", id, d.Summary.Status, ErrConflict)
	}
	items, err := applyChanges(d.Items, changes)
	if err != nil {
		return order.OrderEvent{}, fmt.Errorf("approve order %d: %w", id, err)
	}
	d.Items = items
	d.Note = note
	recompute(d)
	return s.transition(d, order.StatusConfirmed), nil
}

// Reject cancels an urgent or pending order. The reason is required.
func (s *Store) Reject(id int64, reason string) (order.OrderEvent, error) {
	if reason == "" {
		return order.OrderEvent{}, fmt.Errorf("reject order %d: empty reason: %w", id, ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.orders[id]
	if !ok {
		return order.OrderEvent{}, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	if !reviewable(d.Summary.Status) {
		return order.OrderEvent{}, fmt.Errorf("reject order %d in %s: %w", id, d.Summary.Status, ErrConflict)
	}
	d.Note = reason
	return s.transition(d, order.StatusCancelled), nil
}

// Modify sets one line's quantity and returns the ORDER_MODIFIED event.
func (s *Store) Modify(id, productID int64, qty int) (order.OrderEvent, error) {
	if qty <= 0 {
		return order.OrderEvent{}, fmt.Errorf("modify order %d: quantity %d: %w", id, qty, ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.orders[id]
	if !ok {
		return order.OrderEvent{}, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	found := false
	for i := range d.Items {
		if d.Items[i].ProductID == productID {
			d.Items[i].Quantity = qty
			found = true
		}
	}
	if !found {
		return order.OrderEvent{}, fmt.Errorf("modify order %d line %d: %w", id, productID, ErrInvalid)
	}
	recompute(d)
	return order.OrderEvent{
		EventType: order.EventOrderModified,
		OrderID:   id,
		NewStatus: d.Summary.Status,
		OrderData: d.Summary,
	}, nil
}

func (s *Store) transition(d *order.Detail, st order.Status) order.OrderEvent {
	prev := d.Summary.Status
	d.Summary.Status = st
	return order.OrderEvent{
		EventType:      order.EventStatusChanged,
		OrderID:        d.Summary.ID,
		PreviousStatus: prev,
		NewStatus:      st,
		OrderData:      d.Summary,
	}
}

func reviewable(st order.Status) bool {
	return st == order.StatusUrgent || st == order.StatusPending
}

func applyChanges(items []order.LineItem, changes []order.PendingChange) ([]order.LineItem, error) {
	byProduct := make(map[int64]order.PendingChange, len(changes))
	for _, c := range changes {
		byProduct[c.ProductID] = c
	}
	out := make([]order.LineItem, 0, len(items))
	for _, it := range items {
		c, ok := byProduct[it.ProductID]
		if !ok {
			out = append(out, it)
			continue
		}
		delete(byProduct, it.ProductID)
		switch c.Type {
		case order.ChangeRemoved:
			continue
		case order.ChangeModified:
			if c.NewQuantity <= 0 {
				return nil, fmt.Errorf("line %d: quantity %d: %w", it.ProductID, c.NewQuantity, ErrInvalid)
			}
			it.Quantity = c.NewQuantity
		case order.ChangeApproved:
		default:
			return nil, fmt.Errorf("line %d: change type %q: %w", it.ProductID, c.Type, ErrInvalid)
		}
		out = append(out, it)
	}
	for id := range byProduct {
		return nil, fmt.Errorf("line %d is not on the order: %w", id, ErrInvalid)
	}
	return out, nil
}

func recompute(d *order.Detail) {
	if len(d.Items) == 0 {
		return
	}
	gross := decimal.Zero
	for _, it := range d.Items {
		gross = gross.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	d.Summary.TotalGross = gross.Round(2)
	d.Summary.TotalNet = gross.Div(vatRate).Round(2)
	d.Summary.ItemCount = len(d.Items)
}

func cloneDetail(d *order.Detail) order.Detail {
	c := *d
	c.Items = append([]order.LineItem(nil), d.Items...)
	return c
}
