package order

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS subjects owned by the catalog and payment services.
const (
	SubjectValidateProducts = "catalog.products.validate"
	SubjectCreateSession    = "payment.sessions.create"
)

// Product as returned by the catalog service.
type Product struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	// NUMERIC -> string
	Price string `json:"price"`
}

// PaymentSessionItem is one priced line sent to the payment service.
type PaymentSessionItem struct {
	Name     string `json:"name"`
	Price    string `json:"price"`
	Quantity int    `json:"quantity"`
}

type PaymentSessionRequest struct {
	OrderID  string               `json:"order_id"`
	Currency string               `json:"currency"`
	Items    []PaymentSessionItem `json:"items"`
}

// PaymentSession references a hosted checkout session.
// swagger:model PaymentSession
type PaymentSession struct {
	SessionID  string `json:"session_id"`
	SessionURL string `json:"session_url"`
}

// CatalogClient calls the product catalog over NATS request/reply.
type CatalogClient struct {
	nc      *nats.Conn
	timeout time.Duration
}

func NewCatalogClient(nc *nats.Conn, timeout time.Duration) *CatalogClient {
	return &CatalogClient{nc: nc, timeout: timeout}
}

func (c *CatalogClient) ValidateProducts(ctx context.Context, ids []int64) ([]Product, error) {
	payload, err := json.Marshal(struct {
		IDs []int64 `json:"ids"`
	}{IDs: ids})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msg, err := c.nc.RequestWithContext(ctx, SubjectValidateProducts, payload)
	if err != nil {
		return nil, fmt.Errorf("catalog request: %w", err)
	}

	var reply struct {
		Products []Product `json:"products"`
		Error    string    `json:"error"`
	}
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return nil, fmt.Errorf("catalog reply: %w", err)
	}
	if reply.Error != "" {
		// The catalog rejects the whole batch when any id is unknown.
		return nil, fmt.Errorf("%w: %s", ErrUnknownProduct, reply.Error)
	}
	return reply.Products, nil
}

// PaymentClient calls the payment service over NATS request/reply.
type PaymentClient struct {
	nc      *nats.Conn
	timeout time.Duration
}

func NewPaymentClient(nc *nats.Conn, timeout time.Duration) *PaymentClient {
	return &PaymentClient{nc: nc, timeout: timeout}
}

func (c *PaymentClient) CreateSession(ctx context.Context, req PaymentSessionRequest) (*PaymentSession, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msg, err := c.nc.RequestWithContext(ctx, SubjectCreateSession, payload)
	if err != nil {
		return nil, fmt.Errorf("payment request: %w", err)
	}

	var reply struct {
		PaymentSession
		Error string `json:"error"`
	}
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return nil, fmt.Errorf("payment reply: %w", err)
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("payment session: %s", reply.Error)
	}
	return &reply.PaymentSession, nil
}
