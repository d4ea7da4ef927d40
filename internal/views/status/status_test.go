package status

import (
	"strings"
	"testing"

	"github.com/order-desk/console/internal/order"
	"github.com/order-desk/console/internal/transport"
)

func TestFirstSnapshotDoesNotPulse(t *testing.T) {
	m := New()
	if cmd := m.SetCounters(order.CounterSnapshot{Urgent: 3}); cmd != nil {
		t.Error("first snapshot started a pulse")
	}
	if m.Pulsing(order.BucketUrgent) != 0 {
		t.Error("urgent pulsing after first snapshot")
	}
}

func TestIncreasePulsesOnlyThatBadge(t *testing.T) {
	m := New()
	m.SetCounters(order.CounterSnapshot{Urgent: 3, Pending: 5})

	if cmd := m.SetCounters(order.CounterSnapshot{Urgent: 3, Pending: 5}); cmd != nil {
		t.Error("same values pulsed")
	}
	if cmd := m.SetCounters(order.CounterSnapshot{Urgent: 2, Pending: 6}); cmd == nil {
		t.Fatal("increase did not start the animation")
	}
	if m.Pulsing(order.BucketPending) == 0 {
		t.Error("pending not pulsing")
	}
	if m.Pulsing(order.BucketUrgent) != 0 {
		t.Error("decrease pulsed")
	}
}

func TestPulseSettles(t *testing.T) {
	m := New()
	m.Pulse(order.BucketUrgent)
	if m.Pulse(order.BucketUrgent) != nil {
		t.Error("second pulse started another animation loop")
	}
	var frames int
	for cmd := m.Animate(FrameMsg{}); cmd != nil; cmd = m.Animate(FrameMsg{}) {
		frames++
		if frames > 300 {
			t.Fatal("pulse never settled")
		}
	}
	if m.Pulsing(order.BucketUrgent) != 0 {
		t.Error("pulse left after settling")
	}
}

func TestViewConnectionStates(t *testing.T) {
	tests := []struct {
		name string
		set  func(*Model)
		want string
	}{
		{"connected", func(m *Model) { m.Conn = transport.Connected }, "Свързан"},
		{"connecting", func(m *Model) { m.Conn = transport.Connecting }, "Свързване"},
		{"retrying", func(m *Model) { m.Conn = transport.Disconnected; m.Attempt = 2 }, "Опит 2"},
		{"gave up", func(m *Model) { m.Conn = transport.Disconnected; m.GaveUp = true }, "свържи отново"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			m.Width = 200
			tt.set(&m)
			if v := m.View(); !strings.Contains(v, tt.want) {
				t.Errorf("view missing %q:\n%s", tt.want, v)
			}
		})
	}
}

func TestViewShowsCounts(t *testing.T) {
	m := New()
	m.Width = 200
	m.SetCounters(order.CounterSnapshot{Urgent: 4, Completed: 12})
	v := m.View()
	if !strings.Contains(v, "Спешни 4") || !strings.Contains(v, "Изпратени 12") {
		t.Errorf("counts missing:\n%s", v)
	}
}
