package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Nest-Microservices-Edsanol/orders-microservice/internal/clock"
)

var (
	ErrNoItems          = errors.New("order needs at least one item")
	ErrInvalidItem      = errors.New("invalid order item")
	ErrUnknownProduct   = errors.New("some products were not found")
	ErrSameStatus       = errors.New("order already has the requested status")
	ErrPaymentsDisabled = errors.New("payments are not enabled")
)

// Catalog resolves product ids to current name and price. The whole call
// fails when any id is unknown.
type Catalog interface {
	ValidateProducts(ctx context.Context, ids []int64) ([]Product, error)
}

// Payments requests a hosted checkout session from the payment service.
type Payments interface {
	CreateSession(ctx context.Context, req PaymentSessionRequest) (*PaymentSession, error)
}

// Service coordinates the order lifecycle: creation against catalog data,
// status transitions, listing, and payment confirmation. All durable state
// lives in the Repository; the service keeps no per-order state in memory.
type Service struct {
	repo     Repository
	catalog  Catalog
	payments Payments // nil when the deployment runs without payments
	clock    clock.Clock
	currency string
}

func NewService(repo Repository, catalog Catalog, payments Payments, clk clock.Clock, currency string) *Service {
	if currency == "" {
		currency = "usd"
	}
	return &Service{repo: repo, catalog: catalog, payments: payments, clock: clk, currency: currency}
}

// Create validates the cart against the catalog, prices it, and persists the
// order with its items in one transaction. Item names on the result come from
// the catalog reply and are not persisted.
func (s *Service) Create(ctx context.Context, items []CreateOrderItem) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	for _, it := range items {
		if it.ProductID <= 0 {
			return nil, fmt.Errorf("%w: product_id must be positive", ErrInvalidItem)
		}
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidItem)
		}
	}

	ids := distinctProductIDs(items)
	products, err := s.catalog.ValidateProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("validate products: %w", err)
	}
	byID := make(map[int64]Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	now := s.clock.Now()
	o := &Order{
		ID:        uuid.NewString(),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	total := decimal.Zero
	rows := make([]Item, 0, len(items))
	for _, it := range items {
		p, ok := byID[it.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product %d", ErrUnknownProduct, it.ProductID)
		}
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return nil, fmt.Errorf("catalog price for product %d: %w", p.ID, err)
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		o.TotalItems += it.Quantity
		rows = append(rows, Item{
			ID:        uuid.NewString(),
			OrderID:   o.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     price.StringFixed(2),
			Name:      p.Name,
		})
	}
	o.TotalAmount = total.StringFixed(2)

	if err := s.repo.Create(ctx, o, rows); err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}
	o.Items = rows
	return o, nil
}

// FindOne loads an order and re-resolves item names from the catalog. Names
// reflect the catalog's current data, not the data at creation time; a
// catalog outage therefore fails the read.
func (s *Service) FindOne(ctx context.Context, id string) (*Order, error) {
	o, items, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(items))
	seen := make(map[int64]bool, len(items))
	for _, it := range items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}
	products, err := s.catalog.ValidateProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve product names: %w", err)
	}
	names := make(map[int64]string, len(products))
	for _, p := range products {
		names[p.ID] = p.Name
	}
	for i := range items {
		items[i].Name = names[items[i].ProductID]
	}
	o.Items = items
	return o, nil
}

// FindAll returns one page of orders without item enrichment.
func (s *Service) FindAll(ctx context.Context, f ListFilter) (*OrderPage, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = 10
	}
	orders, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	lastPage := int((total + int64(f.Limit) - 1) / int64(f.Limit))
	if orders == nil {
		orders = []Order{}
	}
	return &OrderPage{
		Data: orders,
		Meta: PageMeta{Total: total, Page: f.Page, LastPage: lastPage},
	}, nil
}

// ChangeStatus persists a status transition. Requesting the status the order
// already has is rejected so client bugs surface early.
func (s *Service) ChangeStatus(ctx context.Context, id string, status Status) (*Order, error) {
	o, _, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status == status {
		return nil, fmt.Errorf("%w: %s", ErrSameStatus, status)
	}
	return s.repo.UpdateStatus(ctx, id, status)
}

// CreatePaymentSession asks the payment service for a checkout session for an
// already-enriched order. No local state changes.
func (s *Service) CreatePaymentSession(ctx context.Context, o *Order) (*PaymentSession, error) {
	if s.payments == nil {
		return nil, ErrPaymentsDisabled
	}
	items := make([]PaymentSessionItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, PaymentSessionItem{Name: it.Name, Price: it.Price, Quantity: it.Quantity})
	}
	sess, err := s.payments.CreateSession(ctx, PaymentSessionRequest{
		OrderID:  o.ID,
		Currency: s.currency,
		Items:    items,
	})
	if err != nil {
		return nil, fmt.Errorf("create payment session: %w", err)
	}
	return sess, nil
}

// PaidOrder records a payment confirmation: status PAID, paid fields, and the
// receipt, all in one store write. Duplicate deliveries return the already
// paid order without writing a second receipt.
func (s *Service) PaidOrder(ctx context.Context, req PaidOrderRequest) (*Order, error) {
	if s.payments == nil {
		return nil, ErrPaymentsDisabled
	}
	return s.repo.MarkPaid(ctx, PaidUpdate{
		OrderID:    req.OrderID,
		ChargeID:   req.StripePaymentID,
		PaidAt:     s.clock.Now(),
		ReceiptID:  uuid.NewString(),
		ReceiptURL: req.ReceiptURL,
	})
}

func distinctProductIDs(items []CreateOrderItem) []int64 {
	seen := make(map[int64]bool, len(items))
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}
	return ids
}
