package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/order-desk/console/internal/coordinator"
	"github.com/order-desk/console/internal/debounce"
	"github.com/order-desk/console/internal/filter"
	"github.com/order-desk/console/internal/order"
	"github.com/order-desk/console/internal/theme"
	"github.com/order-desk/console/internal/transport"
	"github.com/order-desk/console/internal/views/debug"
	"github.com/order-desk/console/internal/views/detail"
	"github.com/order-desk/console/internal/views/filterbar"
	"github.com/order-desk/console/internal/views/loader"
	"github.com/order-desk/console/internal/views/note"
	"github.com/order-desk/console/internal/views/orders"
	"github.com/order-desk/console/internal/views/status"
	"github.com/order-desk/console/internal/views/toast"
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayDetail
	OverlayNote
	OverlayDebug
)

const connectTimeout = 30 * time.Second

// Conn is the push channel. *transport.Client implements it.
type Conn interface {
	Connect(ctx context.Context) error
	Reconnect(ctx context.Context) error
	Close() error
}

// FilterStore persists the filter state between runs.
type FilterStore interface {
	SaveFilter(filter.State) error
	ResetFilter() error
}

// Options configures the root model.
type Options struct {
	Coordinator   *coordinator.Coordinator
	Board         *order.Board
	Conn          Conn
	Filters       FilterStore
	InitialFilter filter.State

	PageSize       int
	RescanInterval time.Duration
	SearchDebounce time.Duration
	AmountDebounce time.Duration

	// Degraded, when set, is the reason the console runs read-only.
	Degraded  string
	NoteStyle string
	Now       func() time.Time
	Logger    *slog.Logger
}

// Model is the root Bubble Tea model.
type Model struct {
	coord       *coordinator.Coordinator
	board       *order.Board
	conn        Conn
	store       FilterStore
	engine      *filter.Engine
	search      *debounce.Debouncer
	amount      *debounce.Debouncer
	rescanEvery time.Duration
	degraded    string
	log         *slog.Logger

	keys   KeyMap
	width  int
	height int

	// Navigation.
	overlay   Overlay
	noteFrom  Overlay
	detailID  int64
	sending   int64
	quitArmed bool

	// Sub-views.
	statusBar status.Model
	table     orders.Model
	filters   filterbar.Model
	detail    detail.Model
	note      note.Model
	toasts    toast.Model
	loader    loader.Model
	debug     debug.Model
}

// New creates the root model.
func New(opts Options) Model {
	if opts.RescanInterval <= 0 {
		opts.RescanInterval = time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	engine := filter.NewEngine(opts.PageSize, opts.Now)
	engine.SetState(opts.InitialFilter)

	m := Model{
		coord:       opts.Coordinator,
		board:       opts.Board,
		conn:        opts.Conn,
		store:       opts.Filters,
		engine:      engine,
		search:      debounce.New(opts.SearchDebounce),
		amount:      debounce.New(opts.AmountDebounce),
		rescanEvery: opts.RescanInterval,
		degraded:    opts.Degraded,
		log:         logger.With("component", "app"),
		keys:        DefaultKeyMap(),
		statusBar:   status.New(),
		table:       orders.New(),
		filters:     filterbar.New(),
		note:        note.New(opts.NoteStyle),
		toasts:      toast.New(),
		loader:      loader.New(),
		debug:       debug.New(),
	}
	m.statusBar.Degraded = opts.Degraded
	if opts.Conn == nil {
		m.statusBar.Conn = transport.Disconnected
	}
	m.filters.Sync(engine.State())
	m.sync()
	return m
}

// Init loads the first data and opens the push channel. A degraded
// console only fetches the counters.
func (m Model) Init() tea.Cmd {
	if m.degraded != "" {
		return m.coord.FetchCounters()
	}
	return tea.Batch(m.coord.Init(), m.connect(false), m.rescan())
}

func (m Model) connect(manual bool) tea.Cmd {
	conn := m.conn
	if conn == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		if manual {
			return connectedMsg{err: conn.Reconnect(ctx)}
		}
		return connectedMsg{err: conn.Connect(ctx)}
	}
}

func (m Model) rescan() tea.Cmd {
	return tea.Tick(m.rescanEvery, func(time.Time) tea.Msg { return rescanMsg{} })
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.table.Width = msg.Width
		m.table.Height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case coordinator.NoticeMsg:
		m.debug.Add(noticeKind(msg.Level), msg.Text)
		return m, m.toasts.Push(msg)

	case toast.ExpireMsg:
		m.toasts.Expire(msg)
		return m, nil

	case spinner.TickMsg:
		return m, m.loader.Update(msg)

	case status.FrameMsg:
		return m, m.statusBar.Animate(msg)

	case debounce.FiredMsg:
		cmds = append(cmds, m.applyDebounced(msg))

	case rescanMsg:
		cmds = append(cmds, m.rescan())

	case connectedMsg:
		if msg.err != nil {
			m.debug.Add(debug.KindError, "свързване: "+msg.err.Error())
		}

	case ConnStatusMsg:
		if msg.Connected {
			m.statusBar.Conn = transport.Connected
			m.statusBar.Attempt = 0
			m.statusBar.GaveUp = false
			m.debug.Add(debug.KindPush, "връзката е установена")
		} else {
			m.statusBar.Conn = transport.Disconnected
			m.debug.Add(debug.KindPush, "връзката е прекъсната")
		}
		cmds = append(cmds, m.coord.SetConnected(msg.Connected))

	case ReconnectMsg:
		m.statusBar.Conn = transport.Connecting
		m.statusBar.Attempt = msg.Attempt
		m.statusBar.NextRetry = msg.Delay
		m.debug.Add(debug.KindPush, fmt.Sprintf("нов опит %d след %s", msg.Attempt, msg.Delay))

	case GiveUpMsg:
		m.statusBar.Conn = transport.Disconnected
		m.statusBar.GaveUp = true
		cmds = append(cmds, notice(coordinator.LevelError,
			fmt.Sprintf("Няма връзка със сървъра след %d опита. Натиснете r за ново свързване.", msg.Attempts)))

	case CountersMsg:
		m.coord.HandleCounters(msg.Counters)

	case OrderEventMsg:
		m.debug.Add(debug.KindPush, fmt.Sprintf("%s #%d", msg.Event.EventType, msg.Event.OrderID))
		switch msg.Kind {
		case EventNew:
			cmds = append(cmds, m.coord.HandleNewOrder(msg.Event))
		case EventModified:
			cmds = append(cmds, m.coord.HandleOrderModified(msg.Event))
		default:
			cmds = append(cmds, m.coord.HandleOrderUpdate(msg.Event))
		}

	case AlertMsg:
		m.debug.Add(debug.KindWarn, msg.Alert.AlertType+": "+msg.Alert.AlertMessage)
		if msg.Alert.AlertMessage != "" {
			cmds = append(cmds, notice(coordinator.LevelWarning, msg.Alert.AlertMessage))
		}
		if msg.Alert.AlertType == order.AlertUrgentOrder {
			cmds = append(cmds, m.statusBar.Pulse(order.BucketUrgent))
		}

	case coordinator.TabLoadedMsg:
		if msg.Err != nil {
			m.debug.Add(debug.KindError, fmt.Sprintf("%s: %v", msg.Bucket.Title(), msg.Err))
		} else {
			m.debug.Add(debug.KindTab, fmt.Sprintf("%s: %d поръчки", msg.Bucket.Title(), len(msg.Rows)))
		}

	case coordinator.DetailLoadedMsg:
		if msg.Err != nil && m.overlay == OverlayDetail && msg.OrderID == m.detailID {
			m.overlay = OverlayNone
		}

	case coordinator.ActionDoneMsg:
		if msg.OrderID == m.sending {
			m.sending = 0
		}
		if msg.Result.Success {
			m.debug.Add(debug.KindOK, fmt.Sprintf("%s #%d", msg.Action, msg.OrderID))
			if m.overlay == OverlayDetail && m.detailID == msg.OrderID {
				m.overlay = OverlayNone
			}
		} else {
			m.debug.Add(debug.KindError, fmt.Sprintf("%s #%d: %s", msg.Action, msg.OrderID, msg.Result.Message))
		}
	}

	if cmd, ok := m.coord.Update(msg); ok {
		cmds = append(cmds, cmd)
	}
	cmds = append(cmds, m.sync())
	return m, tea.Batch(cmds...)
}

// sync pushes coordinator and filter state into the views.
func (m *Model) sync() tea.Cmd {
	var cmds []tea.Cmd
	active := m.coord.Active()
	m.statusBar.Active = active
	if m.coord.HasCounters() {
		cmds = append(cmds, m.statusBar.SetCounters(m.coord.Counters()))
	}

	v, _ := m.engine.Refresh(m.board.Snapshot(), active)
	modified := make(map[int64]bool)
	busy := make(map[int64]bool)
	for _, o := range v.Rows {
		if m.coord.IsModified(o.ID) {
			modified[o.ID] = true
		}
		if m.coord.Busy(o.ID) {
			busy[o.ID] = true
		}
	}
	m.table.SetView(v, modified, busy)
	m.table.Loading = m.coord.TabState() == coordinator.TabSwitching

	if m.overlay == OverlayDetail {
		if d, ok := m.coord.Detail(m.detailID); ok {
			m.detail.Detail = d
			m.detail.Loading = false
		}
		m.detail.Changes = m.coord.Changes(m.detailID)
		m.detail.Busy = m.coord.Busy(m.detailID)
	}

	switch {
	case m.sending != 0:
		cmds = append(cmds, m.loader.Show("Изпращане...", fmt.Sprintf("Поръчка #%d", m.sending)))
	case m.coord.TabState() == coordinator.TabSwitching:
		cmds = append(cmds, m.loader.Show("Зареждане на поръчките", active.Title()))
	default:
		m.loader.Hide()
	}
	return tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, m.shutdown()
	}
	if !key.Matches(msg, m.keys.Quit) {
		m.quitArmed = false
	}

	if m.degraded != "" {
		if key.Matches(msg, m.keys.Quit) {
			return m, m.shutdown()
		}
		return m, nil
	}

	switch m.overlay {
	case OverlayNote:
		return m.handleNoteKey(msg)
	case OverlayDebug:
		return m.handleDebugKey(msg)
	case OverlayDetail:
		return m.handleDetailKey(msg)
	}
	if m.filters.Editing() != filterbar.FieldNone {
		return m.handleFilterKey(msg)
	}
	return m.handleMainKey(msg)
}

func (m Model) handleMainKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, m.quit()

	case key.Matches(msg, m.keys.Down):
		m.table.Down()
		return m, nil

	case key.Matches(msg, m.keys.Up):
		m.table.Up()
		return m, nil

	case key.Matches(msg, m.keys.Tab1):
		return m.switchTab(order.BucketUrgent)
	case key.Matches(msg, m.keys.Tab2):
		return m.switchTab(order.BucketPending)
	case key.Matches(msg, m.keys.Tab3):
		return m.switchTab(order.BucketConfirmed)
	case key.Matches(msg, m.keys.Tab4):
		return m.switchTab(order.BucketCancelled)

	case key.Matches(msg, m.keys.Tab):
		return m.switchTab(cycleTab(m.coord.Active(), 1))
	case key.Matches(msg, m.keys.PrevTab):
		return m.switchTab(cycleTab(m.coord.Active(), -1))

	case key.Matches(msg, m.keys.Enter):
		return m.openDetail()

	case key.Matches(msg, m.keys.Approve):
		if o, ok := m.table.Selected(); ok {
			return m.approve(o.ID, "")
		}
		return m, nil

	case key.Matches(msg, m.keys.Reject):
		if o, ok := m.table.Selected(); ok {
			return m, m.openNote(coordinator.ActionReject, o.ID, "")
		}
		return m, nil

	case key.Matches(msg, m.keys.Search):
		return m, m.filters.Focus(filterbar.FieldSearch)

	case key.Matches(msg, m.keys.Amount):
		return m, m.filters.Focus(filterbar.FieldMin)

	case key.Matches(msg, m.keys.Period):
		m.updateFilter(func(s *filter.State) { s.Period = s.Period.Next() })
		return m, m.sync()

	case key.Matches(msg, m.keys.Sort):
		m.updateFilter(func(s *filter.State) { s.Sort = s.Sort.Next() })
		return m, m.sync()

	case key.Matches(msg, m.keys.Location):
		next := nextLocation(m.engine.Locations(m.coord.Orders(m.coord.Active())), m.engine.State().Location)
		m.updateFilter(func(s *filter.State) { s.Location = next })
		return m, m.sync()

	case key.Matches(msg, m.keys.NextPage):
		m.engine.NextPage()
		m.saveFilter()
		return m, m.sync()

	case key.Matches(msg, m.keys.PrevPage):
		m.engine.PrevPage()
		m.saveFilter()
		return m, m.sync()

	case key.Matches(msg, m.keys.Clear):
		m.search.Cancel(filterbar.FieldSearch.DebounceKey())
		m.amount.Cancel(filterbar.FieldMin.DebounceKey())
		m.engine.Reset()
		m.filters.Sync(m.engine.State())
		if m.store != nil {
			if err := m.store.ResetFilter(); err != nil {
				m.log.Warn("reset filter", "err", err)
			}
		}
		return m, m.sync()

	case key.Matches(msg, m.keys.Reconnect):
		if m.conn == nil {
			return m, nil
		}
		m.statusBar.GaveUp = false
		m.statusBar.Attempt = 0
		m.statusBar.Conn = transport.Connecting
		m.debug.Add(debug.KindPush, "ръчно свързване")
		return m, m.connect(true)

	case key.Matches(msg, m.keys.Debug):
		m.overlay = OverlayDebug
		return m, nil
	}
	return m, nil
}

func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	id := m.detailID
	item, haveItem := m.detail.Selected()

	switch {
	case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Quit):
		m.overlay = OverlayNone
		return m, nil
	case key.Matches(msg, m.keys.Up):
		m.detail.Up()
		return m, nil
	case key.Matches(msg, m.keys.Down):
		m.detail.Down()
		return m, nil
	case key.Matches(msg, m.keys.Approve):
		return m.approve(id, "")
	case key.Matches(msg, m.keys.Reject):
		return m, m.openNote(coordinator.ActionReject, id, "")
	case key.Matches(msg, m.keys.Reset):
		m.coord.ResetChanges(id)
		return m, m.sync()
	}

	if !haveItem || m.coord.Busy(id) {
		return m, nil
	}
	var cmd tea.Cmd
	switch {
	case key.Matches(msg, m.keys.Increase):
		cmd = m.coord.AdjustQuantity(id, item.ProductID, 1)
	case key.Matches(msg, m.keys.Decrease):
		cmd = m.coord.AdjustQuantity(id, item.ProductID, -1)
	case key.Matches(msg, m.keys.RemoveLine):
		m.coord.RemoveLine(id, item.ProductID)
	case key.Matches(msg, m.keys.OKLine):
		m.coord.ApproveLine(id, item.ProductID)
	default:
		return m, nil
	}
	return m, tea.Batch(cmd, m.sync())
}

func (m Model) handleNoteKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.note.Close()
		m.overlay = m.noteFrom
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		id, text := m.note.OrderID, m.note.Value()
		if m.note.Action == coordinator.ActionReject {
			if text == "" {
				return m, m.coord.RejectOrder(id, text)
			}
			m.note.Close()
			m.overlay = m.noteFrom
			m.sending = id
			return m, tea.Batch(m.coord.RejectOrder(id, text), m.sync())
		}
		if text == "" {
			return m, notice(coordinator.LevelWarning, "Моля, въведете бележка към клиента")
		}
		m.note.Close()
		m.overlay = m.noteFrom
		return m.approve(id, text)
	}
	return m, m.note.Update(msg)
}

func (m Model) handleDebugKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Debug):
		m.overlay = OverlayNone
	case key.Matches(msg, m.keys.Up):
		m.debug.Scroll(1)
	case key.Matches(msg, m.keys.Down):
		m.debug.Scroll(-1)
	}
	return m, nil
}

func (m Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc, tea.KeyEnter:
		m.filters.Blur()
		return m, nil
	case tea.KeyTab:
		return m, m.filters.NextField()
	}

	cmd, changed := m.filters.Update(msg)
	switch changed {
	case filterbar.FieldSearch:
		return m, tea.Batch(cmd, m.search.Trigger(changed.DebounceKey()))
	case filterbar.FieldMin, filterbar.FieldMax:
		return m, tea.Batch(cmd, m.amount.Trigger(changed.DebounceKey()))
	}
	return m, cmd
}

// applyDebounced copies the settled input into the query. Invalid amount
// bounds are dropped with a warning.
func (m *Model) applyDebounced(msg debounce.FiredMsg) tea.Cmd {
	switch msg.Key {
	case filterbar.FieldSearch.DebounceKey():
		if !m.search.Fired(msg) {
			return nil
		}
		text := m.filters.Search()
		m.updateFilter(func(s *filter.State) { s.Search = text })
	case filterbar.FieldMin.DebounceKey():
		if !m.amount.Fired(msg) {
			return nil
		}
		lo, hi := m.filters.Amounts()
		var bad error
		m.updateFilter(func(s *filter.State) { bad = s.SetAmount(lo, hi) })
		if bad != nil {
			return notice(coordinator.LevelWarning, "Филтър по сума: "+bad.Error())
		}
	}
	return nil
}

func (m *Model) updateFilter(fn func(*filter.State)) {
	m.engine.Update(fn)
	m.saveFilter()
}

func (m *Model) saveFilter() {
	if m.store == nil {
		return
	}
	if err := m.store.SaveFilter(m.engine.State()); err != nil {
		m.log.Warn("save filter", "err", err)
	}
}

func (m Model) switchTab(b order.Bucket) (tea.Model, tea.Cmd) {
	cmd := m.coord.SwitchTab(b)
	if cmd == nil {
		return m, nil
	}
	m.debug.Add(debug.KindTab, "→ "+b.Title())
	return m, tea.Batch(cmd, m.sync())
}

func (m Model) openDetail() (tea.Model, tea.Cmd) {
	o, ok := m.table.Selected()
	if !ok {
		return m, nil
	}
	m.detailID = o.ID
	m.detail = detail.New(order.Detail{Summary: o})
	m.detail.Loading = true
	m.overlay = OverlayDetail
	return m, m.coord.LoadDetail(o.ID)
}

func (m Model) approve(id int64, text string) (tea.Model, tea.Cmd) {
	cmd, req := m.coord.ApproveOrder(id, text)
	if req != nil {
		return m, m.openNote(coordinator.ActionApprove, req.OrderID, req.Suggested)
	}
	if cmd == nil {
		return m, nil
	}
	m.sending = id
	return m, tea.Batch(cmd, m.sync())
}

func (m *Model) openNote(action coordinator.Action, id int64, initial string) tea.Cmd {
	if m.coord.Busy(id) {
		return nil
	}
	m.noteFrom = m.overlay
	m.overlay = OverlayNote
	return m.note.Open(action, id, initial)
}

// quit asks for confirmation once when orders carry unsent changes.
func (m *Model) quit() tea.Cmd {
	if pending := m.coord.Pending(); len(pending) > 0 && !m.quitArmed {
		m.quitArmed = true
		return notice(coordinator.LevelWarning,
			fmt.Sprintf("Има неизпратени промени в %d поръчки. Натиснете q отново за изход.", len(pending)))
	}
	return m.shutdown()
}

func (m Model) shutdown() tea.Cmd {
	if m.conn != nil {
		if err := m.conn.Close(); err != nil {
			m.log.Debug("close push channel", "err", err)
		}
	}
	return tea.Quit
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Зареждане..."
	}

	if m.degraded != "" {
		banner := lipgloss.NewStyle().
			Foreground(theme.ColorWarning).
			Padding(1, 2).
			Render("Таблото работи в ограничен режим: " + m.degraded + "\nПоказват се само броячите. q: изход")
		return lipgloss.JoinVertical(lipgloss.Left, m.statusBar.View(), banner)
	}

	var body string
	switch m.overlay {
	case OverlayDetail:
		body = m.detail.View()
	case OverlayNote:
		body = m.note.View()
	case OverlayDebug:
		body = m.debug.View(m.width, m.height-4)
	default:
		body = lipgloss.JoinVertical(lipgloss.Left,
			m.filters.View(m.engine.State(), m.width),
			m.table.View(),
		)
	}

	sections := []string{m.statusBar.View(), body}
	if l := m.loader.View(); l != "" {
		sections = append(sections, "  "+l)
	}
	if t := m.toasts.View(); t != "" {
		sections = append(sections, lipgloss.PlaceHorizontal(max(m.width, 40), lipgloss.Right, t))
	}
	sections = append(sections,
		theme.StyleDimmed.Render("  1-4: раздел  j/k: избор  enter: детайли  a: одобри  R: откажи  /: търсене  f: сума  p: период  s: ред  l: град  c: изчисти  d: дневник  q: изход"))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func cycleTab(current order.Bucket, step int) order.Bucket {
	tabs := order.TrackedBuckets()
	for i, b := range tabs {
		if b == current {
			return tabs[(i+step+len(tabs))%len(tabs)]
		}
	}
	return tabs[0]
}

// nextLocation cycles through locations, then back to no location filter.
func nextLocation(locations []string, current string) string {
	if current == "" {
		if len(locations) == 0 {
			return ""
		}
		return locations[0]
	}
	for i, loc := range locations {
		if loc == current {
			if i+1 < len(locations) {
				return locations[i+1]
			}
			return ""
		}
	}
	return ""
}

func notice(level coordinator.Level, text string) tea.Cmd {
	return func() tea.Msg { return coordinator.NoticeMsg{Level: level, Text: text} }
}

func noticeKind(l coordinator.Level) debug.Kind {
	switch l {
	case coordinator.LevelError:
		return debug.KindError
	case coordinator.LevelWarning:
		return debug.KindWarn
	case coordinator.LevelSuccess:
		return debug.KindOK
	}
	return debug.KindInfo
}
