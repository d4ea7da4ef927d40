// Package order holds the dashboard data model shared by the transport,
// request client, coordinator, filter engine and views. Types mirror the
// portal's JSON wire format without importing any server packages.
package order

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an order as reported by the portal.
type Status string

const (
	StatusUrgent    Status = "URGENT"
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusShipped   Status = "SHIPPED"
	StatusCancelled Status = "CANCELLED"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusUrgent, StatusPending, StatusConfirmed, StatusShipped, StatusCancelled}

// ParseStatus accepts any casing and returns an error for unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusUrgent, StatusPending, StatusConfirmed, StatusShipped, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

// UnmarshalJSON keeps statuses outside the closed set as their upper-cased
// wire value. They map to no bucket, so the order drops out of tracking
// instead of failing the whole payload.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		*s = ""
		return nil
	}
	st, err := ParseStatus(raw)
	if err != nil {
		slog.Warn("unmapped order status", "status", raw)
		st = Status(strings.ToUpper(strings.TrimSpace(raw)))
	}
	*s = st
	return nil
}

// Known reports whether s is one of the portal's statuses.
func (s Status) Known() bool {
	_, err := ParseStatus(string(s))
	return err == nil
}

// Label returns the operator-facing name.
func (s Status) Label() string {
	switch s {
	case StatusUrgent:
		return "Спешна"
	case StatusPending:
		return "Чакаща"
	case StatusConfirmed:
		return "Потвърдена"
	case StatusShipped:
		return "Изпратена"
	case StatusCancelled:
		return "Отказана"
	}
	return "Неизвестен"
}

// Bucket returns the status partition an order with this status belongs to.
// The second result is false for the empty or unknown status.
func (s Status) Bucket() (Bucket, bool) {
	switch s {
	case StatusUrgent:
		return BucketUrgent, true
	case StatusPending:
		return BucketPending, true
	case StatusConfirmed:
		return BucketConfirmed, true
	case StatusShipped:
		return BucketCompleted, true
	case StatusCancelled:
		return BucketCancelled, true
	}
	return 0, false
}

// Bucket is a status-partitioned collection of orders.
type Bucket int

const (
	BucketUrgent Bucket = iota
	BucketPending
	BucketConfirmed
	BucketCancelled
	BucketCompleted
)

// Buckets lists every bucket in counter display order.
var Buckets = []Bucket{BucketUrgent, BucketPending, BucketConfirmed, BucketCancelled, BucketCompleted}

// TrackedBuckets are the buckets that have a tab with an in-memory order
// list. Completed orders are only counted.
func TrackedBuckets() []Bucket {
	return []Bucket{BucketUrgent, BucketPending, BucketConfirmed, BucketCancelled}
}

// Tracked reports whether the bucket keeps an order list.
func (b Bucket) Tracked() bool {
	switch b {
	case BucketUrgent, BucketPending, BucketConfirmed, BucketCancelled:
		return true
	case BucketCompleted:
		return false
	}
	return false
}

// Key is the identifier used in URLs, container ids and persisted state.
func (b Bucket) Key() string {
	switch b {
	case BucketUrgent:
		return "urgent"
	case BucketPending:
		return "pending"
	case BucketConfirmed:
		return "confirmed"
	case BucketCancelled:
		return "cancelled"
	case BucketCompleted:
		return "completed"
	}
	return ""
}

// Title is the tab heading.
func (b Bucket) Title() string {
	switch b {
	case BucketUrgent:
		return "Спешни"
	case BucketPending:
		return "Чакащи"
	case BucketConfirmed:
		return "Потвърдени"
	case BucketCancelled:
		return "Отказани"
	case BucketCompleted:
		return "Изпратени"
	}
	return "?"
}

// String implements fmt.Stringer.
func (b Bucket) String() string { return b.Key() }

// ParseBucket maps a bucket key back to its value.
func ParseBucket(key string) (Bucket, bool) {
	for _, b := range Buckets {
		if b.Key() == strings.ToLower(strings.TrimSpace(key)) {
			return b, true
		}
	}
	return 0, false
}

// Timestamp accepts both zoned (RFC 3339) and zone-less local date-times,
// which is what the portal emits for submission times. Null or empty
// values decode to the zero time.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", raw)
}

// MarshalJSON writes zone-less local time, matching the portal.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.In(time.Local).Format("2006-01-02T15:04:05"))
}

// Client is the ordering customer as shown on an order card.
type Client struct {
	Name     string `json:"name"`
	Company  string `json:"company"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
}

// OrderSummary is one row of order data as known to the console.
type OrderSummary struct {
	ID          int64           `json:"id"`
	Status      Status          `json:"status"`
	SubmittedAt Timestamp       `json:"submittedAt"`
	TotalGross  decimal.Decimal `json:"totalGross"`
	TotalNet    decimal.Decimal `json:"totalNet"`
	ItemCount   int             `json:"itemCount"`
	Client      Client          `json:"client"`
}

// CounterSnapshot holds aggregate counts per bucket. It is always replaced
// wholesale, never patched.
type CounterSnapshot struct {
	Urgent    int `json:"urgentCount"`
	Pending   int `json:"pendingCount"`
	Confirmed int `json:"confirmedCount"`
	Cancelled int `json:"cancelledCount"`
	Completed int `json:"completedCount"`
}

// Normalize clamps negative counts to zero.
func (c CounterSnapshot) Normalize() CounterSnapshot {
	c.Urgent = max(c.Urgent, 0)
	c.Pending = max(c.Pending, 0)
	c.Confirmed = max(c.Confirmed, 0)
	c.Cancelled = max(c.Cancelled, 0)
	c.Completed = max(c.Completed, 0)
	return c
}

// Count returns the value for a bucket.
func (c CounterSnapshot) Count(b Bucket) int {
	switch b {
	case BucketUrgent:
		return c.Urgent
	case BucketPending:
		return c.Pending
	case BucketConfirmed:
		return c.Confirmed
	case BucketCancelled:
		return c.Cancelled
	case BucketCompleted:
		return c.Completed
	}
	return 0
}

// LineItem is one product line of an order under review.
type LineItem struct {
	ProductID      int64           `json:"productId"`
	ProductName    string          `json:"productName"`
	SKU            string          `json:"sku,omitempty"`
	Quantity       int             `json:"quantity"`
	AvailableStock int             `json:"availableStock"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
}

// Detail is an order with its line items.
type Detail struct {
	Summary OrderSummary `json:"summary"`
	Items   []LineItem   `json:"items"`
	Note    string       `json:"note,omitempty"`
}
