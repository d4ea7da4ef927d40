package order

import "sync"

// BoardSnapshot is an immutable view of the board at one version.
type BoardSnapshot struct {
	Version uint64
	Rows    map[Bucket][]OrderSummary
}

// Len returns the number of rows across all buckets.
func (s BoardSnapshot) Len() int {
	n := 0
	for _, rows := range s.Rows {
		n += len(rows)
	}
	return n
}

// Board is the versioned store the coordinator publishes its rendered
// per-bucket order lists to and the filter engine reads from. Every
// Publish bumps the version.
type Board struct {
	mu      sync.RWMutex
	version uint64
	rows    map[Bucket][]OrderSummary
}

// NewBoard returns an empty board at version zero.
func NewBoard() *Board {
	return &Board{rows: make(map[Bucket][]OrderSummary)}
}

// Publish replaces the rows of one bucket.
func (b *Board) Publish(bucket Bucket, rows []OrderSummary) {
	cp := make([]OrderSummary, len(rows))
	copy(cp, rows)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.rows[bucket] = cp
	b.version++
}

// Version returns the current version without copying rows.
func (b *Board) Version() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.version
}

// Snapshot copies the current state.
func (b *Board) Snapshot() BoardSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rows := make(map[Bucket][]OrderSummary, len(b.rows))
	for k, v := range b.rows {
		cp := make([]OrderSummary, len(v))
		copy(cp, v)
		rows[k] = cp
	}
	return BoardSnapshot{Version: b.version, Rows: rows}
}
