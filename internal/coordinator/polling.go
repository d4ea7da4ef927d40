package coordinator

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/order-desk/console/internal/api"
	"github.com/order-desk/console/internal/order"
)

// PollTick schedules the next disconnected-mode refresh. The tick is
// ignored if the connection came back or a newer poll loop started.
func (c *Coordinator) PollTick() tea.Cmd {
	gen := c.pollGen
	return tea.Tick(c.opts.AutoRefreshInterval, func(time.Time) tea.Msg {
		return PollMsg{Gen: gen}
	})
}

func (c *Coordinator) poll(msg PollMsg) tea.Cmd {
	if c.connected || msg.Gen != c.pollGen {
		return nil
	}
	return tea.Batch(c.ReloadAll(), c.PollTick())
}

// ReloadAll fetches every tracked bucket and the counters in parallel.
func (c *Coordinator) ReloadAll() tea.Cmd {
	gens := make(map[order.Bucket]uint64)
	for _, b := range order.TrackedBuckets() {
		c.gen[b]++
		gens[b] = c.gen[b]
	}
	c.countersGen++
	countersGen := c.countersGen
	backend, timeout := c.api, c.opts.RequestTimeout

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		g, ctx := errgroup.WithContext(ctx)

		var mu sync.Mutex
		msg := ReloadedMsg{Gens: gens, CountersGen: countersGen, Rows: make(map[order.Bucket][]order.OrderSummary)}
		for _, b := range order.TrackedBuckets() {
			g.Go(func() error {
				rows, err := backend.Orders(ctx, b)
				if err != nil {
					return err
				}
				mu.Lock()
				msg.Rows[b] = rows
				mu.Unlock()
				return nil
			})
		}
		g.Go(func() error {
			cs, err := backend.Counters(ctx)
			if err != nil {
				return err
			}
			mu.Lock()
			msg.Counters = cs
			mu.Unlock()
			return nil
		})
		msg.Err = g.Wait()
		return msg
	}
}

// reloaded applies a full reload. A reload bumps every bucket's request
// generation, so it also settles a tab switch whose own load it
// superseded.
func (c *Coordinator) reloaded(msg ReloadedMsg) tea.Cmd {
	switching := c.tabState == TabSwitching && msg.Gens[c.active] == c.gen[c.active]
	if msg.Err != nil {
		c.log.Warn("reload failed", "err", msg.Err)
		if switching {
			c.revertSwitch()
			return notify(LevelError, api.Normalize(msg.Err, "зареждане на поръчките").Message)
		}
		// Best effort; the next tick retries.
		return nil
	}
	for b, rows := range msg.Rows {
		if msg.Gens[b] != c.gen[b] {
			continue
		}
		c.buckets[b] = rows
		c.publish(b)
	}
	if switching {
		c.finishSwitch()
	}
	if msg.CountersGen == c.countersGen {
		c.counters = msg.Counters.Normalize()
		c.haveCounters = true
	}
	return nil
}
