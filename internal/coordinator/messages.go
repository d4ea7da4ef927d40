package coordinator

import (
	"github.com/order-desk/console/internal/api"
	"github.com/order-desk/console/internal/order"
)

// Level is the severity of a notice.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	}
	return "info"
}

// NoticeMsg asks the UI to show a toast.
type NoticeMsg struct {
	Level Level
	Text  string
}

// TabLoadedMsg carries the result of loading one bucket's order list.
type TabLoadedMsg struct {
	Bucket order.Bucket
	Gen    uint64
	Rows   []order.OrderSummary
	Err    error
}

// CountersLoadedMsg carries the result of a counters fetch.
type CountersLoadedMsg struct {
	Gen      uint64
	Counters order.CounterSnapshot
	Err      error
}

// DetailLoadedMsg carries one order's line items.
type DetailLoadedMsg struct {
	OrderID int64
	Detail  order.Detail
	Err     error
}

// Action names a mutating workflow.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// ActionDoneMsg carries the normalized outcome of approve or reject.
type ActionDoneMsg struct {
	Action  Action
	OrderID int64
	Result  api.Result
}

// PollMsg is one tick of the disconnected-mode refresh timer.
type PollMsg struct{ Gen uint64 }

// ReloadedMsg carries a full reload of every tracked bucket and the
// counters.
type ReloadedMsg struct {
	Gens        map[order.Bucket]uint64
	CountersGen uint64
	Rows        map[order.Bucket][]order.OrderSummary
	Counters    order.CounterSnapshot
	Err         error
}

// countersDueMsg fires after the counters refresh delay.
type countersDueMsg struct{ gen uint64 }

// NoteRequired is returned by ApproveOrder when the order carries changes
// but no correction note was given.
type NoteRequired struct {
	OrderID   int64
	Suggested string
}
