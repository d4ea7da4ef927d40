package fakeportal

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/order-desk/console/internal/api"
	"github.com/order-desk/console/internal/markup"
	"github.com/order-desk/console/internal/order"
	"github.com/order-desk/console/internal/transport"
)

const testToken = "tok-123"

var baseTime = time.Date(2026, 3, 10, 9, 0, 0, 0, time.Local)

func seededStore() *Store {
	s := NewStore(func() time.Time { return baseTime })
	s.Add(order.Detail{
		Summary: order.OrderSummary{
			ID:          11,
			Status:      order.StatusPending,
			SubmittedAt: order.Timestamp{Time: baseTime.Add(-2 * time.Hour)},
			Client:      order.Client{Name: "Иван Петров", Company: "Строй ООД", Phone: "0888 123 456", Location: "София"},
		},
		Items: []order.LineItem{
			{ProductID: 101, ProductName: "Болт М8", Quantity: 10, AvailableStock: 500, UnitPrice: decimal.RequireFromString("0.35")},
			{ProductID: 102, ProductName: "Гайка М8", Quantity: 5, AvailableStock: 800, UnitPrice: decimal.RequireFromString("0.12")},
		},
	})
	s.Add(order.Detail{
		Summary: order.OrderSummary{
			ID:          12,
			Status:      order.StatusPending,
			SubmittedAt: order.Timestamp{Time: baseTime.Add(-time.Hour)},
			Client:      order.Client{Name: "Мария Георгиева", Company: "Болт АД", Location: "Пловдив"},
		},
		Items: []order.LineItem{
			{ProductID: 107, ProductName: "Силиконов уплътнител", Quantity: 2, AvailableStock: 60, UnitPrice: decimal.RequireFromString("7.40")},
		},
	})
	s.Add(order.Detail{
		Summary: order.OrderSummary{ID: 13, Status: order.StatusUrgent, Client: order.Client{Name: "Георги Димитров"}},
		Items:   []order.LineItem{{ProductID: 110, ProductName: "Ръкавици работни", Quantity: 3, UnitPrice: decimal.RequireFromString("3.50")}},
	})
	s.Add(order.Detail{
		Summary: order.OrderSummary{ID: 14, Status: order.StatusShipped},
		Items:   []order.LineItem{{ProductID: 103, ProductName: "Шайба 8 мм", Quantity: 100, UnitPrice: decimal.RequireFromString("0.05")}},
	})
	return s
}

func newTestPortal(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	p := New(seededStore(), Options{CSRFToken: testToken})
	srv := httptest.NewServer(p.Handler())
	t.Cleanup(srv.Close)
	t.Cleanup(p.Close)
	return p, srv
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStoreApproveAppliesChanges(t *testing.T) {
	s := seededStore()
	changes := []order.PendingChange{
		{ProductID: 101, OriginalQuantity: 10, NewQuantity: 4, Type: order.ChangeModified},
		{ProductID: 102, OriginalQuantity: 5, NewQuantity: 0, Type: order.ChangeRemoved},
	}
	ev, err := s.Approve(11, "Коригирано количество", changes)
	if err != nil {
		t.Fatal(err)
	}
	if ev.EventType != order.EventStatusChanged || ev.PreviousStatus != order.StatusPending || ev.NewStatus != order.StatusConfirmed {
		t.Errorf("event = %+v", ev)
	}
	d, _ := s.Get(11)
	if len(d.Items) != 1 || d.Items[0].Quantity != 4 {
		t.Errorf("items = %+v", d.Items)
	}
	if !d.Summary.TotalGross.Equal(decimal.RequireFromString("1.40")) {
		t.Errorf("gross = %s, want 1.40", d.Summary.TotalGross)
	}
	if d.Summary.ItemCount != 1 || d.Note != "Коригирано количество" {
		t.Errorf("summary = %+v note %q", d.Summary, d.Note)
	}

	if _, err := s.Approve(11, "", nil); !errors.Is(err, ErrConflict) {
		t.Errorf("second approve err = %v, want ErrConflict", err)
	}
}

func TestStoreRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		run  func(s *Store) error
		want error
	}{
		{"empty reason", func(s *Store) error { _, err := s.Reject(11, ""); return err }, ErrInvalid},
		{"unknown order", func(s *Store) error { _, err := s.Reject(99, "x"); return err }, ErrNotFound},
		{"shipped order", func(s *Store) error { _, err := s.Reject(14, "x"); return err }, ErrConflict},
		{"foreign line", func(s *Store) error {
			_, err := s.Approve(12, "", []order.PendingChange{{ProductID: 999, Type: order.ChangeRemoved}})
			return err
		}, ErrInvalid},
		{"zero quantity", func(s *Store) error {
			_, err := s.Approve(12, "", []order.PendingChange{{ProductID: 107, NewQuantity: 0, Type: order.ChangeModified}})
			return err
		}, ErrInvalid},
		{"modify to zero", func(s *Store) error { _, err := s.Modify(12, 107, 0); return err }, ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := seededStore()
			if err := tt.run(s); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if d, _ := s.Get(12); d.Summary.Status != order.StatusPending || d.Items[0].Quantity != 2 {
				t.Errorf("order 12 changed: %+v", d)
			}
		})
	}
}

func TestStoreListAndCounters(t *testing.T) {
	s := seededStore()
	rows := s.List(order.BucketPending)
	if len(rows) != 2 || rows[0].ID != 12 || rows[1].ID != 11 {
		t.Errorf("pending list = %+v, want newest first", rows)
	}
	cs := s.Counters()
	want := order.CounterSnapshot{Urgent: 1, Pending: 2, Completed: 1}
	if cs != want {
		t.Errorf("counters = %+v, want %+v", cs, want)
	}
	if got := s.List(order.BucketCancelled); got == nil || len(got) != 0 {
		t.Errorf("empty bucket = %#v, want empty non-nil slice", got)
	}
}

func TestRESTSurfaceWithClient(t *testing.T) {
	p, srv := newTestPortal(t)
	c := api.New(srv.URL, api.Options{CSRFToken: testToken})
	ctx := context.Background()

	cs, err := c.Counters(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if cs.Pending != 2 || cs.Urgent != 1 {
		t.Errorf("counters = %+v", cs)
	}

	rows, err := c.Orders(ctx, order.BucketPending)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].Client.Name != "Мария Георгиева" {
		t.Errorf("rows = %+v", rows)
	}

	d, err := c.OrderDetail(ctx, 11)
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Items) != 2 || !d.Items[0].UnitPrice.Equal(decimal.RequireFromString("0.35")) {
		t.Errorf("detail = %+v", d)
	}

	err = c.Approve(ctx, 11, "", []order.PendingChange{{ProductID: 102, Type: order.ChangeRemoved}})
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := p.Store().Get(11); got.Summary.Status != order.StatusConfirmed || len(got.Items) != 1 {
		t.Errorf("after approve: %+v", got)
	}

	if err := c.Reject(ctx, 12, ""); api.StatusOf(err) != http.StatusBadRequest {
		t.Errorf("empty reason err = %v, want 400", err)
	}
	if err := c.Reject(ctx, 11, "късно"); api.StatusOf(err) != http.StatusConflict {
		t.Errorf("reject confirmed err = %v, want 409", err)
	}
	if _, err := c.OrderDetail(ctx, 404); api.StatusOf(err) != http.StatusNotFound {
		t.Errorf("missing order err = %v, want 404", err)
	}
}

func TestMutationsRequireCSRF(t *testing.T) {
	p, srv := newTestPortal(t)
	c := api.New(srv.URL, api.Options{})
	ctx := context.Background()

	if _, err := c.Counters(ctx); err != nil {
		t.Fatalf("reads need no token: %v", err)
	}
	err := c.Reject(ctx, 12, "няма наличност")
	if api.StatusOf(err) != http.StatusForbidden {
		t.Fatalf("err = %v, want 403", err)
	}
	if got := api.Normalize(err, "отказ").Message; !strings.Contains(got, "CSRF") {
		t.Errorf("normalized message = %q", got)
	}
	if d, _ := p.Store().Get(12); d.Summary.Status != order.StatusPending {
		t.Errorf("order changed without token: %s", d.Summary.Status)
	}
}

func TestDashboardPageRoundTrip(t *testing.T) {
	_, srv := newTestPortal(t)
	c := api.New(srv.URL, api.Options{})
	body, err := c.Page(context.Background(), "/admin/dashboard")
	if err != nil {
		t.Fatal(err)
	}
	page, err := markup.Parse(strings.NewReader(string(body)))
	if err != nil {
		t.Fatal(err)
	}
	if page.CSRFToken != testToken || page.CSRFHeader != "X-CSRF-TOKEN" {
		t.Errorf("csrf = %q %q", page.CSRFHeader, page.CSRFToken)
	}
	if !page.HasCounters || page.Counters.Pending != 2 || page.Counters.Completed != 1 {
		t.Errorf("counters = %+v", page.Counters)
	}
	pending := page.Rows[order.BucketPending]
	if len(pending) != 2 || pending[0].ID != 12 {
		t.Fatalf("pending rows = %+v", pending)
	}
	if pending[1].Client.Location != "София" || !pending[1].TotalGross.Equal(decimal.RequireFromString("4.10")) {
		t.Errorf("row 11 = %+v", pending[1])
	}
}

type pushRecorder struct {
	mu       sync.Mutex
	events   []order.OrderEvent
	counters []order.CounterSnapshot
	alerts   []order.AlertEvent
}

func (r *pushRecorder) handlers() transport.Handlers {
	return transport.Handlers{
		OnNewOrder: func(ev order.OrderEvent) {
			r.mu.Lock()
			r.events = append(r.events, ev)
			r.mu.Unlock()
		},
		OnOrderUpdate: func(ev order.OrderEvent) {
			r.mu.Lock()
			r.events = append(r.events, ev)
			r.mu.Unlock()
		},
		OnCounters: func(cs order.CounterSnapshot) {
			r.mu.Lock()
			r.counters = append(r.counters, cs)
			r.mu.Unlock()
		},
		OnAlert: func(a order.AlertEvent) {
			r.mu.Lock()
			r.alerts = append(r.alerts, a)
			r.mu.Unlock()
		},
	}
}

func (r *pushRecorder) sizes() (events, counters, alerts int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events), len(r.counters), len(r.alerts)
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestPushChannelDeliversEvents(t *testing.T) {
	p, srv := newTestPortal(t)
	rec := &pushRecorder{}
	c := transport.New(wsURL(srv), transport.Options{
		ConnectTimeout: 2 * time.Second,
		BaseDelay:      time.Second,
		MaxAttempts:    1,
		ConnectHeaders: map[string]string{"X-CSRF-TOKEN": testToken},
	}, rec.handlers())
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	for _, topic := range order.Topics {
		waitFor(t, "subscription to "+topic, func() bool { return p.Broker().Subscribers(topic) == 1 })
	}

	d := p.Store().Add(order.Detail{
		Summary: order.OrderSummary{Status: order.StatusUrgent, Client: order.Client{Name: "Елена Стоянова"}},
		Items:   []order.LineItem{{ProductID: 108, ProductName: "Монтажна пяна 750 мл", Quantity: 1, UnitPrice: decimal.RequireFromString("11.20")}},
	})
	p.Emit(order.OrderEvent{EventType: order.EventNewOrder, OrderID: d.Summary.ID, NewStatus: order.StatusUrgent, OrderData: d.Summary})

	waitFor(t, "pushes", func() bool {
		e, cs, a := rec.sizes()
		return e == 1 && cs == 1 && a == 1
	})
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if ev := rec.events[0]; ev.OrderID != d.Summary.ID || !ev.OrderData.TotalGross.Equal(decimal.RequireFromString("11.20")) {
		t.Errorf("event = %+v", ev)
	}
	if rec.counters[0].Urgent != 2 {
		t.Errorf("counters = %+v, want 2 urgent", rec.counters[0])
	}
	if rec.alerts[0].AlertType != order.AlertUrgentOrder {
		t.Errorf("alert = %+v", rec.alerts[0])
	}
}

func TestApprovalIsPushed(t *testing.T) {
	p, srv := newTestPortal(t)
	rec := &pushRecorder{}
	c := transport.New(wsURL(srv), transport.Options{
		ConnectTimeout: 2 * time.Second,
		ConnectHeaders: map[string]string{"X-CSRF-TOKEN": testToken},
	}, rec.handlers())
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	waitFor(t, "subscription", func() bool { return p.Broker().Subscribers(order.TopicOrders) == 1 })

	rest := api.New(srv.URL, api.Options{CSRFToken: testToken})
	if err := rest.Approve(context.Background(), 12, "", nil); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "status event", func() bool { e, _, _ := rec.sizes(); return e == 1 })
	rec.mu.Lock()
	defer rec.mu.Unlock()
	ev := rec.events[0]
	if ev.EventType != order.EventStatusChanged || ev.PreviousStatus != order.StatusPending || ev.NewStatus != order.StatusConfirmed {
		t.Errorf("event = %+v", ev)
	}
}

func TestBrokerRefusesBadToken(t *testing.T) {
	p, srv := newTestPortal(t)
	c := transport.New(wsURL(srv), transport.Options{
		ConnectTimeout: 2 * time.Second,
		BaseDelay:      time.Minute,
		ConnectHeaders: map[string]string{"X-CSRF-TOKEN": "wrong"},
	}, transport.Handlers{})
	defer c.Close()
	err := c.Connect(context.Background())
	if err == nil || !strings.Contains(err.Error(), "CSRF") {
		t.Fatalf("err = %v, want refusal mentioning CSRF", err)
	}
	if n := p.Broker().SessionCount(); n != 0 {
		t.Errorf("sessions = %d, want 0", n)
	}
}

type eventLog struct{ events []order.OrderEvent }

func (l *eventLog) Emit(ev order.OrderEvent) { l.events = append(l.events, ev) }

func TestGeneratorLifecycle(t *testing.T) {
	store := NewStore(func() time.Time { return baseTime })
	log := &eventLog{}
	g := NewGenerator(store, log, GeneratorOptions{Seed: 7, Now: func() time.Time { return baseTime }})

	g.Populate(10)
	if cs := store.Counters(); cs != (order.CounterSnapshot{Urgent: 2, Pending: 2, Confirmed: 2, Cancelled: 2, Completed: 2}) {
		t.Fatalf("populated counters = %+v", cs)
	}
	if len(log.events) != 0 {
		t.Fatalf("populate emitted %d events", len(log.events))
	}

	for i := 0; i < 60; i++ {
		g.Step()
	}
	if len(log.events) == 0 {
		t.Fatal("no events generated")
	}

	created := 0
	for _, ev := range log.events {
		if ev.OrderID == 0 || ev.OrderData.ID != ev.OrderID {
			t.Errorf("event without id: %+v", ev)
		}
		switch ev.EventType {
		case order.EventNewOrder:
			created++
			if ev.NewStatus != order.StatusPending && ev.NewStatus != order.StatusUrgent {
				t.Errorf("new order in %s", ev.NewStatus)
			}
		case order.EventStatusChanged:
			moved := ev.PreviousStatus == order.StatusPending && ev.NewStatus == order.StatusUrgent ||
				ev.PreviousStatus == order.StatusConfirmed && ev.NewStatus == order.StatusShipped
			if !moved {
				t.Errorf("unexpected transition %s -> %s", ev.PreviousStatus, ev.NewStatus)
			}
		case order.EventOrderModified:
			if ev.OrderData.ItemCount == 0 {
				t.Errorf("modified order without lines: %+v", ev)
			}
		default:
			t.Errorf("unknown event type %q", ev.EventType)
		}
	}

	cs := store.Counters()
	total := cs.Urgent + cs.Pending + cs.Confirmed + cs.Cancelled + cs.Completed
	if total != 10+created {
		t.Errorf("store holds %d orders, want %d", total, 10+created)
	}
}
