package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"

	"github.com/order-desk/console/internal/coordinator"
	"github.com/order-desk/console/internal/debounce"
	"github.com/order-desk/console/internal/filter"
	"github.com/order-desk/console/internal/order"
)

type fakeBackend struct {
	mu       sync.Mutex
	detail   order.Detail
	approved []string
	rejected []string
}

func (f *fakeBackend) Counters(context.Context) (order.CounterSnapshot, error) {
	return order.CounterSnapshot{}, nil
}

func (f *fakeBackend) Orders(context.Context, order.Bucket) ([]order.OrderSummary, error) {
	return nil, nil
}

func (f *fakeBackend) OrderDetail(context.Context, int64) (order.Detail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detail, nil
}

func (f *fakeBackend) Approve(_ context.Context, _ int64, note string, _ []order.PendingChange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.approved = append(f.approved, note)
	return nil
}

func (f *fakeBackend) Reject(_ context.Context, _ int64, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejected = append(f.rejected, reason)
	return nil
}

func (f *fakeBackend) Invalidate(int64)              {}
func (f *fakeBackend) InvalidateBucket(order.Bucket) {}
func (f *fakeBackend) ClearCache()                   {}

type filterRecorder struct {
	saved  []filter.State
	resets int
}

func (r *filterRecorder) SaveFilter(s filter.State) error {
	r.saved = append(r.saved, s)
	return nil
}

func (r *filterRecorder) ResetFilter() error {
	r.resets++
	return nil
}

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.Local)

func seedRows() []order.OrderSummary {
	return []order.OrderSummary{
		{ID: 11, Status: order.StatusPending, TotalGross: decimal.NewFromInt(40),
			Client: order.Client{Name: "Иван Петров", Company: "Строй ООД", Location: "София"}},
		{ID: 12, Status: order.StatusPending, TotalGross: decimal.NewFromInt(90),
			Client: order.Client{Name: "Мария Георгиева", Company: "Болт АД", Location: "Пловдив"}},
	}
}

func newTestModel(t *testing.T, degraded string) (Model, *fakeBackend, *filterRecorder) {
	t.Helper()
	f := &fakeBackend{}
	board := order.NewBoard()
	coord := coordinator.New(f, board, coordinator.Options{InitialTab: order.BucketPending})
	coord.Seed(map[order.Bucket][]order.OrderSummary{order.BucketPending: seedRows()}, nil)
	rec := &filterRecorder{}
	m := New(Options{
		Coordinator:    coord,
		Board:          board,
		Filters:        rec,
		InitialFilter:  filter.DefaultState(),
		PageSize:       20,
		SearchDebounce: time.Millisecond,
		AmountDebounce: time.Millisecond,
		Degraded:       degraded,
		NoteStyle:      "notty",
		Now:            func() time.Time { return fixedNow },
	})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 160, Height: 40})
	return next.(Model), f, rec
}

func press(t *testing.T, m Model, keys ...string) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "ctrl+s":
			msg = tea.KeyMsg{Type: tea.KeyCtrlS}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		next, c := m.Update(msg)
		m, cmd = next.(Model), c
	}
	return m, cmd
}

func send(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

// collect runs cmd and returns the messages it produces. Only use it on
// commands without long timers.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func TestSeededRowsShown(t *testing.T) {
	m, _, _ := newTestModel(t, "")
	v := m.View()
	for _, want := range []string{"#11", "#12", "Иван Петров", "Чакащи"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestDegradedModeOnlyQuits(t *testing.T) {
	m, _, _ := newTestModel(t, "липсва CSRF токен")
	m, cmd := press(t, m, "2", "enter", "/")
	if cmd != nil || m.overlay != OverlayNone || m.filters.Editing() != 0 {
		t.Error("degraded console reacted to interactive keys")
	}
	if v := m.View(); !strings.Contains(v, "ограничен режим") || !strings.Contains(v, "липсва CSRF токен") {
		t.Errorf("banner missing:\n%s", v)
	}
	_, cmd = press(t, m, "q")
	if cmd == nil {
		t.Fatal("q did not quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not return tea.Quit")
	}
}

func TestHandlersWrapEvents(t *testing.T) {
	var got []tea.Msg
	h := Handlers(func(msg tea.Msg) { got = append(got, msg) })
	h.OnCounters(order.CounterSnapshot{Urgent: 2})
	h.OnNewOrder(order.OrderEvent{OrderID: 5})
	h.OnOrderModified(order.OrderEvent{OrderID: 6})
	h.OnConnectionStatus(true)
	h.OnGiveUp(10)

	if len(got) != 5 {
		t.Fatalf("got %d messages", len(got))
	}
	if c, ok := got[0].(CountersMsg); !ok || c.Counters.Urgent != 2 {
		t.Errorf("counters msg = %#v", got[0])
	}
	if e, ok := got[1].(OrderEventMsg); !ok || e.Kind != EventNew || e.Event.OrderID != 5 {
		t.Errorf("new order msg = %#v", got[1])
	}
	if e, ok := got[2].(OrderEventMsg); !ok || e.Kind != EventModified {
		t.Errorf("modified msg = %#v", got[2])
	}
	if c, ok := got[3].(ConnStatusMsg); !ok || !c.Connected {
		t.Errorf("status msg = %#v", got[3])
	}
	if g, ok := got[4].(GiveUpMsg); !ok || g.Attempts != 10 {
		t.Errorf("give up msg = %#v", got[4])
	}
}

func TestNewOrderEventAppearsAtHead(t *testing.T) {
	m, _, _ := newTestModel(t, "")
	m = send(m, OrderEventMsg{Kind: EventNew, Event: order.OrderEvent{
		EventType: order.EventNewOrder,
		OrderID:   20,
		NewStatus: order.StatusPending,
		OrderData: order.OrderSummary{ID: 20, Status: order.StatusPending, Client: order.Client{Name: "Нов Клиент"}},
	}})
	rows := m.table.Rows()
	if len(rows) != 3 {
		t.Fatalf("rows = %d", len(rows))
	}
	if !strings.Contains(m.View(), "Нов Клиент") {
		t.Error("new order not rendered")
	}
}

func TestUrgentAlertPulsesCounter(t *testing.T) {
	m, _, _ := newTestModel(t, "")
	m = send(m, AlertMsg{Alert: order.AlertEvent{AlertType: order.AlertUrgentOrder, AlertMessage: "Нова спешна поръчка #77"}})
	if m.statusBar.Pulsing(order.BucketUrgent) == 0 {
		t.Error("urgent counter not pulsing")
	}
	if len(m.debug.Entries) == 0 {
		t.Error("alert not logged")
	}
}

func TestConnectionStatusReachesStatusBar(t *testing.T) {
	m, _, _ := newTestModel(t, "")
	m = send(m, ReconnectMsg{Attempt: 2, Delay: 6 * time.Second})
	if !strings.Contains(m.View(), "Опит 2") {
		t.Error("retry not shown")
	}
	m = send(m, GiveUpMsg{Attempts: 10})
	if !m.statusBar.GaveUp {
		t.Error("give up not recorded")
	}
	m = send(m, ConnStatusMsg{Connected: true})
	if m.statusBar.GaveUp || !m.coord.Connected() {
		t.Error("connected state not applied")
	}
}

func TestDebouncedSearchFiltersTable(t *testing.T) {
	m, _, rec := newTestModel(t, "")
	m, _ = press(t, m, "/", "пловдив")
	if m.filters.Search() != "пловдив" {
		t.Fatalf("search input = %q", m.filters.Search())
	}
	if len(m.table.Rows()) != 2 {
		t.Fatal("search applied before the debounce fired")
	}

	// Only the latest trigger for the key is honored.
	m = send(m, debounce.FiredMsg{Key: "search", Seq: 0})
	if len(m.table.Rows()) != 2 {
		t.Error("stale debounce applied")
	}
	m = send(m, debounce.FiredMsg{Key: "search", Seq: 1})
	rows := m.table.Rows()
	if len(rows) != 1 || rows[0].ID != 12 {
		t.Errorf("rows after search = %+v", rows)
	}
	if len(rec.saved) == 0 || rec.saved[len(rec.saved)-1].Search != "пловдив" {
		t.Error("filter state not persisted")
	}

	m, _ = press(t, m, "esc", "c")
	if len(m.table.Rows()) != 2 || rec.resets != 1 {
		t.Errorf("clear: rows=%d resets=%d", len(m.table.Rows()), rec.resets)
	}
}

func TestPeriodAndSortKeys(t *testing.T) {
	m, _, _ := newTestModel(t, "")
	m, _ = press(t, m, "p")
	if m.engine.State().Period != filter.PeriodToday {
		t.Errorf("period = %q", m.engine.State().Period)
	}
	// Seeded rows carry no timestamp and are excluded by any period.
	if len(m.table.Rows()) != 0 {
		t.Errorf("rows = %d, want 0", len(m.table.Rows()))
	}
	m, _ = press(t, m, "s")
	if m.engine.State().Sort == filter.DefaultState().Sort {
		t.Error("sort did not cycle")
	}
	m, _ = press(t, m, "l")
	if m.engine.State().Location != "Пловдив" {
		t.Errorf("location = %q", m.engine.State().Location)
	}
}

func TestApproveWithChangesAsksForNote(t *testing.T) {
	m, f, _ := newTestModel(t, "")
	sel, ok := m.table.Selected()
	if !ok {
		t.Fatal("no row selected")
	}
	id := sel.ID
	f.detail = order.Detail{
		Summary: sel,
		Items: []order.LineItem{
			{ProductID: 1, ProductName: "Болт М8", Quantity: 10, AvailableStock: 50, UnitPrice: decimal.NewFromInt(1)},
		},
	}

	m, cmd := press(t, m, "enter")
	if m.overlay != OverlayDetail || m.detailID != id {
		t.Fatalf("overlay=%v id=%d", m.overlay, m.detailID)
	}
	for _, msg := range collect(cmd) {
		m = send(m, msg)
	}
	if m.detail.Loading {
		t.Fatal("detail still loading")
	}

	m, _ = press(t, m, "-")
	if !m.coord.IsModified(id) {
		t.Fatal("quantity change not tracked")
	}

	m, _ = press(t, m, "a")
	if m.overlay != OverlayNote {
		t.Fatalf("overlay = %v, want note prompt", m.overlay)
	}
	if !strings.Contains(m.note.Value(), "• Болт М8: количество 10 → 9") {
		t.Errorf("suggested note = %q", m.note.Value())
	}

	m, cmd = press(t, m, "ctrl+s")
	if m.overlay != OverlayDetail || m.sending != id {
		t.Fatalf("after submit overlay=%v sending=%d", m.overlay, m.sending)
	}
	var done *coordinator.ActionDoneMsg
	for _, msg := range collect(cmd) {
		if d, ok := msg.(coordinator.ActionDoneMsg); ok {
			done = &d
		}
	}
	if done == nil || !done.Result.Success {
		t.Fatalf("approve result = %+v", done)
	}
	if len(f.approved) != 1 || !strings.HasPrefix(f.approved[0], fmt.Sprintf("В поръчка #%d", id)) {
		t.Errorf("approved notes = %q", f.approved)
	}

	m = send(m, *done)
	if m.overlay != OverlayNone || m.sending != 0 || m.coord.IsModified(id) {
		t.Errorf("after success overlay=%v sending=%d modified=%v", m.overlay, m.sending, m.coord.IsModified(id))
	}
}

func TestRejectRequiresReason(t *testing.T) {
	m, f, _ := newTestModel(t, "")
	m, _ = press(t, m, "R")
	if m.overlay != OverlayNote || m.note.Action != coordinator.ActionReject {
		t.Fatalf("overlay = %v", m.overlay)
	}

	m, cmd := press(t, m, "ctrl+s")
	if m.overlay != OverlayNote {
		t.Error("empty reason closed the prompt")
	}
	msgs := collect(cmd)
	if len(msgs) != 1 {
		t.Fatalf("msgs = %#v", msgs)
	}
	if n, ok := msgs[0].(coordinator.NoticeMsg); !ok || n.Level != coordinator.LevelWarning {
		t.Errorf("empty reason notice = %#v", msgs[0])
	}

	m, _ = press(t, m, "няма наличност")
	m, cmd = press(t, m, "ctrl+s")
	for _, msg := range collect(cmd) {
		if _, ok := msg.(coordinator.ActionDoneMsg); ok {
			m = send(m, msg)
		}
	}
	if len(f.rejected) != 1 || f.rejected[0] != "няма наличност" {
		t.Errorf("rejected = %q", f.rejected)
	}
	if m.overlay != OverlayNone {
		t.Errorf("overlay = %v", m.overlay)
	}
}

func TestQuitWithPendingChangesConfirms(t *testing.T) {
	m, _, _ := newTestModel(t, "")
	m.coord.TrackOrderChange(11, order.PendingChange{ProductID: 1, OriginalQuantity: 2, NewQuantity: 1, Type: order.ChangeModified})

	m, cmd := press(t, m, "q")
	if _, ok := cmd().(coordinator.NoticeMsg); !ok {
		t.Fatal("first q did not warn")
	}
	_, cmd = press(t, m, "q")
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("second q did not quit")
	}
}

func TestNextLocation(t *testing.T) {
	locs := []string{"Варна", "Пловдив", "София"}
	tests := []struct {
		current, want string
	}{
		{"", "Варна"},
		{"Варна", "Пловдив"},
		{"София", ""},
		{"Русе", ""},
	}
	for _, tt := range tests {
		if got := nextLocation(locs, tt.current); got != tt.want {
			t.Errorf("nextLocation(%q) = %q, want %q", tt.current, got, tt.want)
		}
	}
	if got := nextLocation(nil, ""); got != "" {
		t.Errorf("no locations: %q", got)
	}
}
