package order

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestStatusBucket(t *testing.T) {
	tests := []struct {
		status  Status
		want    Bucket
		tracked bool
	}{
		{StatusUrgent, BucketUrgent, true},
		{StatusPending, BucketPending, true},
		{StatusConfirmed, BucketConfirmed, true},
		{StatusCancelled, BucketCancelled, true},
		{StatusShipped, BucketCompleted, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			got, ok := tt.status.Bucket()
			if !ok {
				t.Fatalf("Bucket() ok = false for %s", tt.status)
			}
			if got != tt.want {
				t.Errorf("Bucket() = %v, want %v", got, tt.want)
			}
			if got.Tracked() != tt.tracked {
				t.Errorf("Tracked() = %v, want %v", got.Tracked(), tt.tracked)
			}
		})
	}

	if _, ok := Status("").Bucket(); ok {
		t.Error("empty status should not map to a bucket")
	}
}

func TestParseStatus(t *testing.T) {
	if st, err := ParseStatus(" pending "); err != nil || st != StatusPending {
		t.Errorf("ParseStatus(pending) = %q, %v", st, err)
	}
	if _, err := ParseStatus("LOST"); err == nil {
		t.Error("ParseStatus(LOST) should fail")
	}

	var s Status
	if err := json.Unmarshal([]byte(`"archived"`), &s); err != nil {
		t.Fatalf("unmarshal of unknown status: %v", err)
	}
	if s != "ARCHIVED" || s.Known() {
		t.Errorf("unknown status decoded as %q, known=%v", s, s.Known())
	}
	if _, ok := s.Bucket(); ok {
		t.Error("unknown status mapped to a bucket")
	}
	if s.Label() != "Неизвестен" {
		t.Errorf("Label = %q", s.Label())
	}
}

func TestUnknownStatusDoesNotFailList(t *testing.T) {
	raw := `[{"id": 1, "status": "PENDING"}, {"id": 2, "status": "ON_HOLD"}]`
	var rows []OrderSummary
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(rows) != 2 || rows[0].Status != StatusPending || rows[1].Status.Known() {
		t.Errorf("rows = %+v", rows)
	}

	var ev OrderEvent
	if err := json.Unmarshal([]byte(`{"eventType": "STATUS_CHANGED", "orderId": 7, "previousStatus": "PENDING", "newStatus": "ON_HOLD"}`), &ev); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if ev.OrderID != 7 || ev.PreviousStatus != StatusPending || ev.NewStatus != "ON_HOLD" {
		t.Errorf("event = %+v", ev)
	}
}

func TestParseBucket(t *testing.T) {
	for _, b := range Buckets {
		got, ok := ParseBucket(b.Key())
		if !ok || got != b {
			t.Errorf("ParseBucket(%q) = %v, %v", b.Key(), got, ok)
		}
	}
	if _, ok := ParseBucket("archive"); ok {
		t.Error("ParseBucket(archive) should fail")
	}
}

func TestOrderSummaryDecode(t *testing.T) {
	raw := `{
		"id": 1042,
		"status": "PENDING",
		"submittedAt": "2025-06-15T10:30:00",
		"totalGross": 120.50,
		"totalNet": "100.42",
		"itemCount": 5,
		"client": {"name": "Иван Петров", "company": "Склад ООД", "phone": "0888123456", "location": "София"}
	}`
	var o OrderSummary
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if o.ID != 1042 || o.Status != StatusPending || o.ItemCount != 5 {
		t.Errorf("unexpected summary: %+v", o)
	}
	if !o.TotalGross.Equal(decimal.RequireFromString("120.5")) {
		t.Errorf("TotalGross = %s", o.TotalGross)
	}
	if !o.TotalNet.Equal(decimal.RequireFromString("100.42")) {
		t.Errorf("TotalNet = %s", o.TotalNet)
	}
	want := time.Date(2025, 6, 15, 10, 30, 0, 0, time.Local)
	if !o.SubmittedAt.Equal(want) {
		t.Errorf("SubmittedAt = %v, want %v", o.SubmittedAt.Time, want)
	}
	if o.Client.Location != "София" {
		t.Errorf("Client.Location = %q", o.Client.Location)
	}
}

func TestTimestampNullAndEmpty(t *testing.T) {
	for _, raw := range []string{`null`, `""`} {
		var ts Timestamp
		if err := json.Unmarshal([]byte(raw), &ts); err != nil {
			t.Fatalf("unmarshal %s: %v", raw, err)
		}
		if !ts.IsZero() {
			t.Errorf("%s should decode to zero time", raw)
		}
	}

	var ts Timestamp
	if err := json.Unmarshal([]byte(`"yesterday"`), &ts); err == nil {
		t.Error("garbage timestamp should fail")
	}
}

func TestCounterSnapshotNormalize(t *testing.T) {
	c := CounterSnapshot{Urgent: -1, Pending: 3, Confirmed: -7, Cancelled: 0, Completed: 2}.Normalize()
	if c.Urgent != 0 || c.Confirmed != 0 {
		t.Errorf("negatives not clamped: %+v", c)
	}
	if c.Count(BucketPending) != 3 || c.Count(BucketCompleted) != 2 {
		t.Errorf("positives changed: %+v", c)
	}
}

func TestBoardVersioning(t *testing.T) {
	b := NewBoard()
	if b.Version() != 0 {
		t.Fatalf("new board version = %d", b.Version())
	}

	rows := []OrderSummary{{ID: 1}, {ID: 2}}
	b.Publish(BucketPending, rows)
	rows[0].ID = 99 // caller mutation must not leak in

	snap := b.Snapshot()
	if snap.Version != 1 {
		t.Errorf("version = %d, want 1", snap.Version)
	}
	if snap.Rows[BucketPending][0].ID != 1 {
		t.Error("Publish should copy rows")
	}

	snap.Rows[BucketPending][1].ID = 77
	if b.Snapshot().Rows[BucketPending][1].ID != 2 {
		t.Error("Snapshot should copy rows")
	}

	b.Publish(BucketUrgent, nil)
	if got := b.Snapshot(); got.Version != 2 || got.Len() != 2 {
		t.Errorf("after second publish: version=%d len=%d", got.Version, got.Len())
	}
}
