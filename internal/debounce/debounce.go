// Package debounce delays keyed actions until input settles. Each Trigger
// returns a tea.Cmd that fires after the delay; only the most recent
// trigger for a key is honored when its FiredMsg arrives.
package debounce

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// FiredMsg is delivered when a trigger's delay elapses.
type FiredMsg struct {
	Key string
	Seq uint64
}

// Debouncer tracks the latest trigger per key. It is owned by the tea
// Update loop and is not safe for concurrent use.
type Debouncer struct {
	delay time.Duration
	seq   uint64
	last  map[string]uint64
}

// New returns a debouncer with a fixed delay.
func New(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay, last: make(map[string]uint64)}
}

// Trigger supersedes any pending trigger for key.
func (d *Debouncer) Trigger(key string) tea.Cmd {
	d.seq++
	seq := d.seq
	d.last[key] = seq
	return tea.Tick(d.delay, func(time.Time) tea.Msg {
		return FiredMsg{Key: key, Seq: seq}
	})
}

// Fired reports whether msg is the latest trigger for its key. A true
// result consumes the trigger.
func (d *Debouncer) Fired(msg FiredMsg) bool {
	if seq, ok := d.last[msg.Key]; !ok || seq != msg.Seq {
		return false
	}
	delete(d.last, msg.Key)
	return true
}

// Cancel drops a pending trigger.
func (d *Debouncer) Cancel(key string) {
	delete(d.last, key)
}

// Pending reports whether key has an unfired trigger.
func (d *Debouncer) Pending(key string) bool {
	_, ok := d.last[key]
	return ok
}
