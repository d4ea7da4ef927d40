// Package coordinator is the single owner of dashboard state: per-bucket
// order lists, counters, the active tab, pending line-item changes and the
// connection-driven polling fallback. It is driven from the tea Update
// loop; all I/O runs in the tea.Cmds it returns and comes back as
// messages handled by Update.
package coordinator

import (
	"context"
	"io"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/order-desk/console/internal/api"
	"github.com/order-desk/console/internal/order"
)

// Backend is the portal surface the coordinator needs. *api.Client
// implements it.
type Backend interface {
	Counters(ctx context.Context) (order.CounterSnapshot, error)
	Orders(ctx context.Context, b order.Bucket) ([]order.OrderSummary, error)
	OrderDetail(ctx context.Context, id int64) (order.Detail, error)
	Approve(ctx context.Context, id int64, note string, changes []order.PendingChange) error
	Reject(ctx context.Context, id int64, reason string) error
	Invalidate(id int64)
	InvalidateBucket(b order.Bucket)
	ClearCache()
}

// TabStore persists the active tab across restarts.
type TabStore interface {
	SaveTab(b order.Bucket) error
}

// TabState is the lifecycle of a tab switch: idle, switching, then loaded,
// or back to idle with the previous tab restored when the load fails.
type TabState int

const (
	TabIdle TabState = iota
	TabSwitching
	TabLoaded
)

func (s TabState) String() string {
	switch s {
	case TabSwitching:
		return "switching"
	case TabLoaded:
		return "loaded"
	}
	return "idle"
}

// Options configures a Coordinator.
type Options struct {
	InitialTab           order.Bucket
	AutoRefreshInterval  time.Duration
	CountersRefreshDelay time.Duration
	RequestTimeout       time.Duration
	Tabs                 TabStore
	Logger               *slog.Logger
}

// Coordinator owns the dashboard state.
type Coordinator struct {
	api   Backend
	board *order.Board
	opts  Options
	log   *slog.Logger

	buckets      map[order.Bucket][]order.OrderSummary
	counters     order.CounterSnapshot
	haveCounters bool

	active   order.Bucket
	previous order.Bucket
	tabState TabState

	connected bool
	pollGen   uint64

	// Request generations; a result is applied only if no newer request
	// for the same resource has started since.
	gen         map[order.Bucket]uint64
	countersGen uint64

	changes  map[int64]*changeLog
	modified map[int64]bool
	details  map[int64]order.Detail
	inFlight map[int64]Action
}

// New creates a coordinator publishing to board.
func New(backend Backend, board *order.Board, opts Options) *Coordinator {
	if opts.AutoRefreshInterval <= 0 {
		opts.AutoRefreshInterval = 30 * time.Second
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	if !opts.InitialTab.Tracked() {
		opts.InitialTab = order.BucketUrgent
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Coordinator{
		api:      backend,
		board:    board,
		opts:     opts,
		log:      logger.With("component", "coordinator"),
		buckets:  make(map[order.Bucket][]order.OrderSummary),
		active:   opts.InitialTab,
		previous: opts.InitialTab,
		gen:      make(map[order.Bucket]uint64),
		changes:  make(map[int64]*changeLog),
		modified: make(map[int64]bool),
		details:  make(map[int64]order.Detail),
		inFlight: make(map[int64]Action),
	}
}

// Active returns the selected tab.
func (c *Coordinator) Active() order.Bucket { return c.active }

// TabState returns the lifecycle state of the last tab switch.
func (c *Coordinator) TabState() TabState { return c.tabState }

// Counters returns the last counter snapshot.
func (c *Coordinator) Counters() order.CounterSnapshot { return c.counters }

// HasCounters reports whether any counter snapshot has been received.
func (c *Coordinator) HasCounters() bool { return c.haveCounters }

// Connected reports the last connection status seen.
func (c *Coordinator) Connected() bool { return c.connected }

// Orders returns a copy of one bucket's list.
func (c *Coordinator) Orders(b order.Bucket) []order.OrderSummary {
	rows := c.buckets[b]
	out := make([]order.OrderSummary, len(rows))
	copy(out, rows)
	return out
}

// Find returns the order with id from any tracked bucket.
func (c *Coordinator) Find(id int64) (order.OrderSummary, order.Bucket, bool) {
	for _, b := range order.TrackedBuckets() {
		if i := indexOf(c.buckets[b], id); i >= 0 {
			return c.buckets[b][i], b, true
		}
	}
	return order.OrderSummary{}, 0, false
}

// Busy reports whether an approve or reject is in flight for id.
func (c *Coordinator) Busy(id int64) bool {
	_, ok := c.inFlight[id]
	return ok
}

// Init loads the active tab and the counters. Until the push channel
// reports connected, the polling fallback runs.
func (c *Coordinator) Init() tea.Cmd {
	c.tabState = TabSwitching
	return tea.Batch(c.load(c.active), c.fetchCounters(), c.PollTick())
}

// FetchCounters loads the counters once, without the refresh delay.
func (c *Coordinator) FetchCounters() tea.Cmd {
	return c.fetchCounters()
}

// Seed fills buckets that have not been loaded yet, e.g. from rows read
// off the rendered dashboard page.
func (c *Coordinator) Seed(rows map[order.Bucket][]order.OrderSummary, counters *order.CounterSnapshot) {
	for _, b := range order.TrackedBuckets() {
		if _, loaded := c.buckets[b]; loaded {
			continue
		}
		if r, ok := rows[b]; ok {
			c.buckets[b] = append([]order.OrderSummary(nil), r...)
			c.publish(b)
		}
	}
	if counters != nil {
		c.counters = counters.Normalize()
		c.haveCounters = true
	}
}

// Update handles the coordinator's own messages. The second result is
// false when msg is not one of them.
func (c *Coordinator) Update(msg tea.Msg) (tea.Cmd, bool) {
	switch msg := msg.(type) {
	case TabLoadedMsg:
		return c.tabLoaded(msg), true
	case CountersLoadedMsg:
		c.countersLoaded(msg)
		return nil, true
	case countersDueMsg:
		if msg.gen != c.countersGen {
			return nil, true
		}
		return c.fetchCounters(), true
	case DetailLoadedMsg:
		return c.detailLoaded(msg), true
	case ActionDoneMsg:
		return c.actionDone(msg), true
	case PollMsg:
		return c.poll(msg), true
	case ReloadedMsg:
		return c.reloaded(msg), true
	}
	return nil, false
}

// SwitchTab selects b immediately and loads its list. A failed load
// reverts the selection. Selecting the active tab is a no-op.
func (c *Coordinator) SwitchTab(b order.Bucket) tea.Cmd {
	if !b.Tracked() || b == c.active {
		return nil
	}
	c.previous = c.active
	c.active = b
	c.tabState = TabSwitching
	c.log.Debug("tab switch", "from", c.previous, "to", b)
	return c.load(b)
}

// Refresh reloads the active tab without changing the selection.
func (c *Coordinator) Refresh() tea.Cmd {
	return tea.Batch(c.load(c.active), c.fetchCounters())
}

func (c *Coordinator) load(b order.Bucket) tea.Cmd {
	c.gen[b]++
	gen := c.gen[b]
	backend, timeout := c.api, c.opts.RequestTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		rows, err := backend.Orders(ctx, b)
		return TabLoadedMsg{Bucket: b, Gen: gen, Rows: rows, Err: err}
	}
}

func (c *Coordinator) tabLoaded(msg TabLoadedMsg) tea.Cmd {
	if msg.Gen != c.gen[msg.Bucket] {
		c.log.Debug("stale tab load dropped", "bucket", msg.Bucket, "gen", msg.Gen)
		return nil
	}
	switching := c.tabState == TabSwitching && c.active == msg.Bucket

	if msg.Err != nil {
		c.log.Warn("tab load failed", "bucket", msg.Bucket, "err", msg.Err)
		if switching {
			c.revertSwitch()
		}
		return notify(LevelError, api.Normalize(msg.Err, "зареждане на поръчките").Message)
	}

	c.buckets[msg.Bucket] = msg.Rows
	c.publish(msg.Bucket)
	if switching {
		c.finishSwitch()
	}
	return nil
}

// finishSwitch commits the active tab once its list has arrived.
func (c *Coordinator) finishSwitch() {
	c.tabState = TabLoaded
	c.previous = c.active
	if c.opts.Tabs != nil {
		if err := c.opts.Tabs.SaveTab(c.active); err != nil {
			c.log.Warn("save tab", "err", err)
		}
	}
}

func (c *Coordinator) revertSwitch() {
	c.active = c.previous
	c.tabState = TabIdle
}

// RefreshCounters schedules a counters fetch after the configured delay.
// Calls within the delay collapse into one fetch.
func (c *Coordinator) RefreshCounters() tea.Cmd {
	c.countersGen++
	gen := c.countersGen
	if c.opts.CountersRefreshDelay <= 0 {
		return c.fetchCountersGen(gen)
	}
	return tea.Tick(c.opts.CountersRefreshDelay, func(time.Time) tea.Msg {
		return countersDueMsg{gen: gen}
	})
}

func (c *Coordinator) fetchCounters() tea.Cmd {
	c.countersGen++
	return c.fetchCountersGen(c.countersGen)
}

func (c *Coordinator) fetchCountersGen(gen uint64) tea.Cmd {
	backend, timeout := c.api, c.opts.RequestTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		cs, err := backend.Counters(ctx)
		return CountersLoadedMsg{Gen: gen, Counters: cs, Err: err}
	}
}

func (c *Coordinator) countersLoaded(msg CountersLoadedMsg) {
	if msg.Gen != c.countersGen {
		return
	}
	if msg.Err != nil {
		// Best effort; the next push or poll corrects it.
		c.log.Warn("counters refresh failed", "err", msg.Err)
		return
	}
	c.counters = msg.Counters.Normalize()
	c.haveCounters = true
}

func (c *Coordinator) publish(b order.Bucket) {
	if c.board != nil {
		c.board.Publish(b, c.buckets[b])
	}
}

func notify(level Level, text string) tea.Cmd {
	return func() tea.Msg { return NoticeMsg{Level: level, Text: text} }
}

func indexOf(rows []order.OrderSummary, id int64) int {
	for i, o := range rows {
		if o.ID == id {
			return i
		}
	}
	return -1
}
