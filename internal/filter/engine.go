package filter

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/order-desk/console/internal/order"
)

// View is the derived, non-authoritative list shown for one tab.
type View struct {
	Bucket  order.Bucket
	Version uint64
	Rows    []order.OrderSummary // current page
	Matched int                  // rows passing all filters
	Total   int                  // rows in the bucket
	Page    int
	Pages   int
	Recon   Reconciliation
}

// Engine owns the filter state and the last derived view. It is driven
// from the tea Update loop and is not safe for concurrent use.
type Engine struct {
	state    State
	pageSize int
	now      func() time.Time
	coll     *collate.Collator

	dirty   bool
	version uint64
	bucket  order.Bucket
	shown   []int64
	view    View
}

// NewEngine creates an engine. pageSize <= 0 disables paging.
func NewEngine(pageSize int, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{
		state:    DefaultState(),
		pageSize: pageSize,
		now:      now,
		coll:     collate.New(language.Bulgarian, collate.IgnoreCase),
		dirty:    true,
	}
}

// State returns a copy of the active query.
func (e *Engine) State() State { return e.state }

// SetState replaces the query; the next Refresh recomputes.
func (e *Engine) SetState(s State) {
	e.state = s
	e.dirty = true
}

// Update applies fn to the query. A change to anything but the page
// resets paging to the first page.
func (e *Engine) Update(fn func(*State)) {
	before := e.state
	fn(&e.state)
	if !sameQuery(before, e.state) {
		e.state.Page = 0
	}
	e.dirty = true
}

// Reset restores the default query.
func (e *Engine) Reset() {
	e.state.Reset()
	e.dirty = true
}

// NextPage and PrevPage move within the last view; out-of-range moves are
// clamped on the next recompute.
func (e *Engine) NextPage() {
	if e.state.Page+1 < e.view.Pages {
		e.state.Page++
		e.dirty = true
	}
}

func (e *Engine) PrevPage() {
	if e.state.Page > 0 {
		e.state.Page--
		e.dirty = true
	}
}

// View returns the last derived view.
func (e *Engine) View() View { return e.view }

// Refresh recomputes only when the board version, the bucket or the query
// changed since the last computation. It reports whether it recomputed.
func (e *Engine) Refresh(snap order.BoardSnapshot, b order.Bucket) (View, bool) {
	if !e.dirty && snap.Version == e.version && b == e.bucket {
		return e.view, false
	}
	return e.Apply(snap, b), true
}

// Apply recomputes unconditionally.
func (e *Engine) Apply(snap order.BoardSnapshot, b order.Bucket) View {
	rows := snap.Rows[b]
	matched := Filter(rows, e.state, e.now(), e.coll)

	pages, page := 1, 0
	pageRows := matched
	if e.pageSize > 0 {
		pages = max(1, (len(matched)+e.pageSize-1)/e.pageSize)
		page = min(max(e.state.Page, 0), pages-1)
		start := page * e.pageSize
		end := min(start+e.pageSize, len(matched))
		pageRows = matched[start:end]
	}
	e.state.Page = page

	current := e.shown
	if b != e.bucket {
		current = nil
	}
	recon := Reconcile(current, pageRows)
	e.shown = recon.Order

	e.view = View{
		Bucket:  b,
		Version: snap.Version,
		Rows:    pageRows,
		Matched: len(matched),
		Total:   len(rows),
		Page:    page,
		Pages:   pages,
		Recon:   recon,
	}
	e.version = snap.Version
	e.bucket = b
	e.dirty = false
	return e.view
}

// Locations returns the distinct non-empty locations in rows, sorted.
func (e *Engine) Locations(rows []order.OrderSummary) []string {
	seen := make(map[string]bool)
	var out []string
	for _, o := range rows {
		loc := strings.TrimSpace(o.Client.Location)
		if loc == "" || seen[strings.ToLower(loc)] {
			continue
		}
		seen[strings.ToLower(loc)] = true
		out = append(out, loc)
	}
	slices.SortFunc(out, e.coll.CompareString)
	return out
}

// Filter applies the query to rows in fixed order: search, location,
// amount, period, then sort. rows is not modified. Paging is left to the
// caller.
func Filter(rows []order.OrderSummary, s State, now time.Time, coll *collate.Collator) []order.OrderSummary {
	words := strings.Fields(strings.ToLower(s.Search))
	loc := strings.TrimSpace(s.Location)
	lo, hi := s.MinAmount, s.MaxAmount
	if lo != nil && hi != nil && lo.GreaterThan(*hi) {
		lo, hi = nil, nil
	}
	period, hasPeriod := PeriodRange(s.Period, now)

	out := make([]order.OrderSummary, 0, len(rows))
	for _, o := range rows {
		if len(words) > 0 && !matchesAll(searchText(o), words) {
			continue
		}
		if loc != "" && !strings.EqualFold(strings.TrimSpace(o.Client.Location), loc) {
			continue
		}
		if lo != nil && o.TotalGross.LessThan(*lo) {
			continue
		}
		if hi != nil && o.TotalGross.GreaterThan(*hi) {
			continue
		}
		if hasPeriod && (o.SubmittedAt.IsZero() || !period.Contains(o.SubmittedAt.Time)) {
			continue
		}
		out = append(out, o)
	}

	if coll == nil {
		coll = collate.New(language.Bulgarian, collate.IgnoreCase)
	}
	slices.SortStableFunc(out, comparator(s.Sort, coll))
	return out
}

// searchText joins the searchable fields of a row, lowercased.
func searchText(o order.OrderSummary) string {
	return strings.ToLower(strings.Join([]string{
		strconv.FormatInt(o.ID, 10),
		"#" + strconv.FormatInt(o.ID, 10),
		o.Client.Name,
		o.Client.Company,
		o.Client.Phone,
		o.Client.Location,
		o.TotalGross.StringFixed(2),
	}, " "))
}

// matchesAll reports whether every word occurs somewhere in text.
func matchesAll(text string, words []string) bool {
	for _, w := range words {
		if !strings.Contains(text, w) {
			return false
		}
	}
	return true
}

func comparator(s Sort, coll *collate.Collator) func(a, b order.OrderSummary) int {
	var base func(a, b order.OrderSummary) int
	switch s.Field {
	case SortAmount:
		base = func(a, b order.OrderSummary) int { return a.TotalGross.Cmp(b.TotalGross) }
	case SortItems:
		base = func(a, b order.OrderSummary) int { return cmp.Compare(a.ItemCount, b.ItemCount) }
	case SortCompany:
		base = func(a, b order.OrderSummary) int { return coll.CompareString(a.Client.Company, b.Client.Company) }
	case SortClient:
		base = func(a, b order.OrderSummary) int { return coll.CompareString(a.Client.Name, b.Client.Name) }
	default:
		base = compareSubmitted
	}
	return func(a, b order.OrderSummary) int {
		c := base(a, b)
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if s.Desc {
			return -c
		}
		return c
	}
}

// compareSubmitted orders by timestamp, falling back to the id when either
// side has no timestamp.
func compareSubmitted(a, b order.OrderSummary) int {
	if a.SubmittedAt.IsZero() || b.SubmittedAt.IsZero() {
		return cmp.Compare(a.ID, b.ID)
	}
	return a.SubmittedAt.Compare(b.SubmittedAt.Time)
}

func sameQuery(a, b State) bool {
	a.Page, b.Page = 0, 0
	return a.Search == b.Search && a.Location == b.Location &&
		sameBound(a.MinAmount, b.MinAmount) && sameBound(a.MaxAmount, b.MaxAmount) &&
		a.Period == b.Period && a.Sort == b.Sort
}

func sameBound(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
