package order

import "fmt"

// ChangeType tags a pending line-item edit.
type ChangeType string

const (
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
	ChangeApproved ChangeType = "approved"
)

// ChangeKey identifies the line item a PendingChange applies to.
type ChangeKey struct {
	OrderID   int64
	ProductID int64
}

func (k ChangeKey) String() string {
	return fmt.Sprintf("%d/%d", k.OrderID, k.ProductID)
}

// PendingChange is an uncommitted edit to one line item. Changes are sent
// to the portal as one batch on approval and never partially applied.
type PendingChange struct {
	OrderID          int64      `json:"-"`
	ProductID        int64      `json:"productId"`
	ProductName      string     `json:"productName"`
	OriginalQuantity int        `json:"originalQuantity"`
	NewQuantity      int        `json:"newQuantity"`
	Type             ChangeType `json:"changeType"`
}

// Key returns the change's tracking key.
func (c PendingChange) Key() ChangeKey {
	return ChangeKey{OrderID: c.OrderID, ProductID: c.ProductID}
}
