package orders

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/order-desk/console/internal/filter"
	"github.com/order-desk/console/internal/order"
)

func view(rows ...order.OrderSummary) filter.View {
	return filter.View{Bucket: order.BucketPending, Rows: rows, Matched: len(rows), Total: len(rows), Pages: 1}
}

func TestMissingFieldsUsePlaceholders(t *testing.T) {
	m := New()
	m.Width = 160
	m.SetView(view(order.OrderSummary{ID: 5, Status: order.StatusPending}), nil, nil)

	v := m.View()
	for _, want := range []string{"#5", NoName, NoDate, "0.00 лв"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q:\n%s", want, v)
		}
	}
}

func TestSelectionFollowsID(t *testing.T) {
	m := New()
	a := order.OrderSummary{ID: 1, TotalGross: decimal.NewFromInt(1)}
	b := order.OrderSummary{ID: 2, TotalGross: decimal.NewFromInt(2)}
	c := order.OrderSummary{ID: 3, TotalGross: decimal.NewFromInt(3)}

	m.SetView(view(a, b, c), nil, nil)
	m.Down()
	if o, _ := m.Selected(); o.ID != 2 {
		t.Fatalf("selected %d", o.ID)
	}

	m.SetView(view(c, b, a), nil, nil)
	if o, _ := m.Selected(); o.ID != 2 {
		t.Errorf("selection lost after reorder: %d", o.ID)
	}

	m.SetView(view(a, c), nil, nil)
	if o, _ := m.Selected(); o.ID != 1 {
		t.Errorf("selection after removal = %d, want first row", o.ID)
	}

	m.Up()
	if o, _ := m.Selected(); o.ID != 3 {
		t.Errorf("Up did not wrap: %d", o.ID)
	}
}

func TestEmptyMessages(t *testing.T) {
	m := New()
	m.SetView(filter.View{Bucket: order.BucketUrgent}, nil, nil)
	if !strings.Contains(m.View(), "Няма поръчки") {
		t.Error("empty tab message missing")
	}
	m.SetView(filter.View{Bucket: order.BucketUrgent, Total: 4}, nil, nil)
	if !strings.Contains(m.View(), "отговарящи на филтрите") {
		t.Error("filtered-out message missing")
	}
	if _, ok := m.Selected(); ok {
		t.Error("selection on empty view")
	}
}

func TestModifiedMarker(t *testing.T) {
	m := New()
	m.Width = 160
	m.SetView(view(order.OrderSummary{ID: 9}), map[int64]bool{9: true}, nil)
	if !strings.Contains(m.View(), "✎") {
		t.Error("modified marker missing")
	}
}
