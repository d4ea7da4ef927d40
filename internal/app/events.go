package app

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/order-desk/console/internal/order"
	"github.com/order-desk/console/internal/transport"
)

// Push channel events, delivered to the program by Handlers.
type (
	ConnStatusMsg struct{ Connected bool }

	ReconnectMsg struct {
		Attempt int
		Delay   time.Duration
	}

	GiveUpMsg struct{ Attempts int }

	CountersMsg struct{ Counters order.CounterSnapshot }

	OrderEventMsg struct {
		Kind  EventKind
		Event order.OrderEvent
	}

	AlertMsg struct{ Alert order.AlertEvent }
)

// EventKind is the topic an order event arrived on.
type EventKind int

const (
	EventUpdate EventKind = iota
	EventNew
	EventModified
)

// connectedMsg reports the outcome of a Connect or Reconnect command.
type connectedMsg struct{ err error }

// rescanMsg re-reads the board for the filter view.
type rescanMsg struct{}

// Handlers adapts transport callbacks to program messages. send is
// normally (*tea.Program).Send; it is called on the transport's read
// goroutine, so all state changes still happen in Update.
func Handlers(send func(tea.Msg)) transport.Handlers {
	return transport.Handlers{
		OnCounters: func(cs order.CounterSnapshot) { send(CountersMsg{Counters: cs}) },
		OnOrderUpdate: func(ev order.OrderEvent) {
			send(OrderEventMsg{Kind: EventUpdate, Event: ev})
		},
		OnNewOrder: func(ev order.OrderEvent) {
			send(OrderEventMsg{Kind: EventNew, Event: ev})
		},
		OnOrderModified: func(ev order.OrderEvent) {
			send(OrderEventMsg{Kind: EventModified, Event: ev})
		},
		OnAlert:            func(a order.AlertEvent) { send(AlertMsg{Alert: a}) },
		OnConnectionStatus: func(connected bool) { send(ConnStatusMsg{Connected: connected}) },
		OnReconnectScheduled: func(attempt int, delay time.Duration) {
			send(ReconnectMsg{Attempt: attempt, Delay: delay})
		},
		OnGiveUp: func(attempts int) { send(GiveUpMsg{Attempts: attempts}) },
	}
}
