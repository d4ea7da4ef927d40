package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/order-desk/console/internal/order"
)

// Portal endpoints.
const (
	PathCounters = "/api/dashboard/counters"
	PathOrders   = "/api/dashboard/orders"
)

// OrderPath returns the resource path of one order.
func OrderPath(id int64) string {
	return fmt.Sprintf("%s/%d", PathOrders, id)
}

// Counters fetches fresh counters. Counters are never served from the
// cache since they are the cheapest signal of change.
func (c *Client) Counters(ctx context.Context) (order.CounterSnapshot, error) {
	var cs order.CounterSnapshot
	if err := c.Request(ctx, http.MethodGet, PathCounters, nil, &cs); err != nil {
		return order.CounterSnapshot{}, err
	}
	return cs.Normalize(), nil
}

// Orders fetches the order list of one bucket (cached).
func (c *Client) Orders(ctx context.Context, b order.Bucket) ([]order.OrderSummary, error) {
	var out []order.OrderSummary
	params := url.Values{"status": {b.Key()}}
	if err := c.Get(ctx, PathOrders, params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// OrderDetail fetches one order with its line items (cached).
func (c *Client) OrderDetail(ctx context.Context, id int64) (order.Detail, error) {
	var d order.Detail
	if err := c.Get(ctx, OrderPath(id), nil, &d); err != nil {
		return order.Detail{}, err
	}
	return d, nil
}

// ApproveRequest is the body of an approval. Changes are the complete
// batch of pending edits for the order.
type ApproveRequest struct {
	Note    string                `json:"note,omitempty"`
	Changes []order.PendingChange `json:"changes"`
}

// Approve submits an approval with its change batch and drops cached
// reads of the order.
func (c *Client) Approve(ctx context.Context, id int64, note string, changes []order.PendingChange) error {
	if changes == nil {
		changes = []order.PendingChange{}
	}
	err := c.Request(ctx, http.MethodPost, OrderPath(id)+"/approve", ApproveRequest{Note: note, Changes: changes}, nil)
	c.Invalidate(id)
	return err
}

// RejectRequest is the body of a rejection.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// Reject rejects an order and drops cached reads of it.
func (c *Client) Reject(ctx context.Context, id int64, reason string) error {
	err := c.Request(ctx, http.MethodPost, OrderPath(id)+"/reject", RejectRequest{Reason: reason}, nil)
	c.Invalidate(id)
	return err
}
