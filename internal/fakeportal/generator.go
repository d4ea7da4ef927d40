package fakeportal

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/order-desk/console/internal/order"
)

// Emitter receives the events the generator causes.
type Emitter interface {
	Emit(ev order.OrderEvent)
}

type product struct {
	id    int64
	name  string
	sku   string
	price string
	stock int
}

var catalog = []product{
	{101, "Болт М8", "BLT-M8", "0.35", 500},
	{102, "Гайка М8", "GKA-M8", "0.12", 800},
	{103, "Шайба 8 мм", "SHB-8", "0.05", 1200},
	{104, "Винт за дърво 4x40", "VNT-440", "0.08", 2000},
	{105, "Дюбел 8 мм", "DBL-8", "0.10", 1500},
	{106, "Анкерен болт М10", "ANK-M10", "1.90", 120},
	{107, "Силиконов уплътнител", "SIL-300", "7.40", 60},
	{108, "Монтажна пяна 750 мл", "PNA-750", "11.20", 40},
	{109, "Тиксо хартиено 48 мм", "TKS-48", "2.30", 300},
	{110, "Ръкавици работни", "RKV-10", "3.50", 200},
}

var customers = []order.Client{
	{Name: "Иван Петров", Company: "Строй ООД", Phone: "0888 123 456", Location: "София"},
	{Name: "Мария Георгиева", Company: "Болт АД", Phone: "0877 654 321", Location: "Пловдив"},
	{Name: "Георги Димитров", Company: "", Phone: "0899 111 222", Location: "Варна"},
	{Name: "Елена Стоянова", Company: "Ремонт 2000", Phone: "0886 333 444", Location: "Бургас"},
	{Name: "Николай Иванов", Company: "Метал Трейд ЕООД", Phone: "0878 555 666", Location: "Русе"},
	{Name: "Десислава Колева", Company: "Дом и Градина", Phone: "0887 777 888", Location: "Стара Загора"},
	{Name: "Петър Николов", Company: "", Phone: "", Location: "София"},
}

// GeneratorOptions configures a Generator.
type GeneratorOptions struct {
	Interval time.Duration
	Seed     int64
	Now      func() time.Time
	Logger   *slog.Logger
}

// Generator creates synthetic orders and moves them through statuses:
// new orders arrive pending or urgent, old pending orders escalate to
// urgent, confirmed orders ship, and open orders are sometimes edited by
// the customer.
type Generator struct {
	store *Store
	emit  Emitter
	opts  GeneratorOptions
	log   *slog.Logger
	rng   *rand.Rand
}

// NewGenerator creates a generator over store reporting to emit.
func NewGenerator(store *Store, emit Emitter, opts GeneratorOptions) *Generator {
	if opts.Interval <= 0 {
		opts.Interval = 4 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Generator{
		store: store,
		emit:  emit,
		opts:  opts,
		log:   logger.With("component", "generator"),
		rng:   rand.New(rand.NewSource(opts.Seed)),
	}
}

// Populate adds n orders spread over every status, submitted over the
// past days. No events are emitted.
func (g *Generator) Populate(n int) {
	now := g.opts.Now()
	for i := 0; i < n; i++ {
		d := g.newOrder()
		d.Summary.Status = order.Statuses[i%len(order.Statuses)]
		age := time.Duration(g.rng.Intn(10*24)) * time.Hour
		d.Summary.SubmittedAt = order.Timestamp{Time: now.Add(-age).Truncate(time.Minute)}
		g.store.Add(d)
	}
}

// Start runs Step on every interval until ctx is done.
func (g *Generator) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(g.opts.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				g.Step()
			}
		}
	}()
}

// Step performs one random lifecycle action and emits its event. It
// reports whether anything happened.
func (g *Generator) Step() bool {
	switch roll := g.rng.Intn(10); {
	case roll < 4:
		return g.arrive()
	case roll < 6:
		return g.escalate()
	case roll < 8:
		return g.ship()
	default:
		return g.modify()
	}
}

func (g *Generator) arrive() bool {
	d := g.newOrder()
	if g.rng.Intn(4) == 0 {
		d.Summary.Status = order.StatusUrgent
	}
	d.Summary.SubmittedAt = order.Timestamp{Time: g.opts.Now().Truncate(time.Second)}
	d = g.store.Add(d)
	g.log.Info("new order", "id", d.Summary.ID, "status", d.Summary.Status)
	g.emit.Emit(order.OrderEvent{
		EventType: order.EventNewOrder,
		OrderID:   d.Summary.ID,
		NewStatus: d.Summary.Status,
		OrderData: d.Summary,
	})
	return true
}

func (g *Generator) escalate() bool {
	return g.move(order.StatusPending, order.StatusUrgent)
}

func (g *Generator) ship() bool {
	return g.move(order.StatusConfirmed, order.StatusShipped)
}

func (g *Generator) move(from, to order.Status) bool {
	ids := g.store.IDs(from)
	if len(ids) == 0 {
		return g.arrive()
	}
	id := ids[g.rng.Intn(len(ids))]
	ev, err := g.store.SetStatus(id, to)
	if err != nil {
		g.log.Warn("move order", "id", id, "err", err)
		return false
	}
	g.log.Info("order moved", "id", id, "from", from, "to", to)
	g.emit.Emit(ev)
	return true
}

func (g *Generator) modify() bool {
	ids := append(g.store.IDs(order.StatusUrgent), g.store.IDs(order.StatusPending)...)
	if len(ids) == 0 {
		return g.arrive()
	}
	id := ids[g.rng.Intn(len(ids))]
	d, ok := g.store.Get(id)
	if !ok || len(d.Items) == 0 {
		return false
	}
	line := d.Items[g.rng.Intn(len(d.Items))]
	ev, err := g.store.Modify(id, line.ProductID, line.Quantity+1+g.rng.Intn(5))
	if err != nil {
		g.log.Warn("modify order", "id", id, "err", err)
		return false
	}
	g.log.Info("order modified", "id", id, "product", line.ProductID)
	g.emit.Emit(ev)
	return true
}

func (g *Generator) newOrder() order.Detail {
	c := customers[g.rng.Intn(len(customers))]
	lines := 1 + g.rng.Intn(4)
	picked := g.rng.Perm(len(catalog))[:lines]
	items := make([]order.LineItem, 0, lines)
	for _, i := range picked {
		p := catalog[i]
		items = append(items, order.LineItem{
			ProductID:      p.id,
			ProductName:    p.name,
			SKU:            p.sku,
			Quantity:       1 + g.rng.Intn(50),
			AvailableStock: p.stock,
			UnitPrice:      decimal.RequireFromString(p.price),
		})
	}
	return order.Detail{
		Summary: order.OrderSummary{Status: order.StatusPending, Client: c},
		Items:   items,
	}
}
