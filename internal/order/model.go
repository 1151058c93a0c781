package order

import "time"

// Status of an order. PENDING is the initial state; no transition graph is
// enforced at this layer beyond rejecting no-op changes.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
	StatusDelivered Status = "DELIVERED"
)

// ParseStatus validates a client-supplied status string.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusPaid, StatusCancelled, StatusDelivered:
		return Status(s), true
	}
	return "", false
}

type Order struct {
	ID string `json:"id"`
	// NUMERIC -> string, fixed at creation time, never recomputed
	TotalAmount     string     `json:"total_amount"`
	TotalItems      int        `json:"total_items"`
	Status          Status     `json:"status"`
	Paid            bool       `json:"paid"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	PaymentChargeID string     `json:"payment_charge_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Items           []Item     `json:"items,omitempty"`
}

type Item struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	// NUMERIC -> string, point-in-time copy of the catalog price
	Price string `json:"price"`
	// Name is resolved from the catalog on every read and never persisted.
	Name string `json:"name,omitempty"`
}

type Receipt struct {
	ID         string    `json:"id"`
	OrderID    string    `json:"order_id"`
	ReceiptURL string    `json:"receipt_url"`
	CreatedAt  time.Time `json:"created_at"`
}
