package order

// CreateOrderItem is one cart line.
// swagger:model CreateOrderItem
type CreateOrderItem struct {
	ProductID int64 `json:"product_id" example:"1"`
	Quantity  int   `json:"quantity"   example:"2"`
}

// CreateOrderRequest is the order creation payload.
// swagger:model CreateOrderRequest
type CreateOrderRequest struct {
	Items []CreateOrderItem `json:"items"`
}

// ChangeStatusRequest asks for a status transition.
// swagger:model ChangeStatusRequest
type ChangeStatusRequest struct {
	Status string `json:"status" example:"CANCELLED"`
}

// PaidOrderRequest is the payment-confirmation webhook payload.
// swagger:model PaidOrderRequest
type PaidOrderRequest struct {
	OrderID         string `json:"order_id"`
	StripePaymentID string `json:"stripe_payment_id"`
	ReceiptURL      string `json:"receipt_url"`
}

// PageMeta describes a page of results.
// swagger:model PageMeta
type PageMeta struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	LastPage int   `json:"last_page"`
}

// OrderPage is a paginated order listing.
// swagger:model OrderPage
type OrderPage struct {
	Data []Order  `json:"data"`
	Meta PageMeta `json:"meta"`
}

// HTTPError represents a standard error in JSON.
// swagger:model
type HTTPError struct {
	// Error message
	// example: order not found
	Error string `json:"error"`
}
