package filter

import "github.com/order-desk/console/internal/order"

// Reconciliation describes how to move from the rows currently on screen
// to a newly filtered list in one pass.
type Reconciliation struct {
	Order  []int64        // ids to show, in display order
	Hidden map[int64]bool // ids on screen that are no longer shown
	Moved  int            // shown ids whose position changed
	Added  int            // ids not on screen before
}

// Reconcile compares the displayed ids with the next list. Applying it
// twice with the same input yields no moves.
func Reconcile(current []int64, next []order.OrderSummary) Reconciliation {
	r := Reconciliation{
		Order:  make([]int64, len(next)),
		Hidden: make(map[int64]bool),
	}
	keep := make(map[int64]bool, len(next))
	for i, o := range next {
		r.Order[i] = o.ID
		keep[o.ID] = true
	}

	// Relative order of ids present in both lists.
	var survivors []int64
	for _, id := range current {
		if keep[id] {
			survivors = append(survivors, id)
		} else {
			r.Hidden[id] = true
		}
	}
	before := make(map[int64]int, len(survivors))
	for i, id := range survivors {
		before[id] = i
	}
	pos := 0
	for _, id := range r.Order {
		i, ok := before[id]
		if !ok {
			r.Added++
			continue
		}
		if i != pos {
			r.Moved++
		}
		pos++
	}
	return r
}
