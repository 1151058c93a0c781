package order

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("order not found")
)

// ListFilter selects a page of orders; empty Status means all statuses.
type ListFilter struct {
	Status Status
	Page   int
	Limit  int
}

// PaidUpdate carries everything MarkPaid writes in one transaction.
type PaidUpdate struct {
	OrderID    string
	ChargeID   string
	PaidAt     time.Time
	ReceiptID  string
	ReceiptURL string
}

type Repository interface {
	Create(ctx context.Context, o *Order, items []Item) error
	GetByID(ctx context.Context, id string) (*Order, []Item, error)
	List(ctx context.Context, f ListFilter) ([]Order, int64, error)
	UpdateStatus(ctx context.Context, id string, status Status) (*Order, error)
	MarkPaid(ctx context.Context, u PaidUpdate) (*Order, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

const orderCols = `id, total_amount::text, total_items, status,
       paid, paid_at, COALESCE(payment_charge_id,''), created_at, updated_at`

func scanOrder(row pgx.Row, o *Order) error {
	return row.Scan(&o.ID, &o.TotalAmount, &o.TotalItems, &o.Status,
		&o.Paid, &o.PaidAt, &o.PaymentChargeID, &o.CreatedAt, &o.UpdatedAt)
}

func (r *PGRepo) Create(ctx context.Context, o *Order, items []Item) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
    INSERT INTO orders (id, total_amount, total_items, status, paid, created_at, updated_at)
    VALUES ($1,$2,$3,$4,FALSE,$5,$6)
  `, o.ID, o.TotalAmount, o.TotalItems, o.Status, o.CreatedAt, o.UpdatedAt); err != nil {
		return err
	}

	for _, it := range items {
		if _, err := tx.Exec(ctx, `
      INSERT INTO order_items (id, order_id, product_id, quantity, price)
      VALUES ($1,$2,$3,$4,$5)
    `, it.ID, o.ID, it.ProductID, it.Quantity, it.Price); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (*Order, []Item, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var o Order
	if err := scanOrder(r.db.QueryRow(ctx, `
    SELECT `+orderCols+` FROM orders WHERE id=$1
  `, id), &o); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}

	rows, err := r.db.Query(ctx, `
    SELECT id, order_id, product_id, quantity, price::text
    FROM order_items WHERE order_id=$1
    ORDER BY product_id
  `, id)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Price); err != nil {
			return nil, nil, err
		}
		items = append(items, it)
	}
	return &o, items, rows.Err()
}

func (r *PGRepo) List(ctx context.Context, f ListFilter) ([]Order, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	var total int64
	if err := r.db.QueryRow(ctx, `
    SELECT COUNT(*) FROM orders WHERE ($1 = '' OR status = $1)
  `, string(f.Status)).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, `
    SELECT `+orderCols+`
    FROM orders WHERE ($1 = '' OR status = $1)
    ORDER BY created_at DESC LIMIT $2 OFFSET $3
  `, string(f.Status), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		var o Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

func (r *PGRepo) UpdateStatus(ctx context.Context, id string, status Status) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var o Order
	err := scanOrder(r.db.QueryRow(ctx, `
    UPDATE orders
    SET status = $2, updated_at = NOW()
    WHERE id = $1
    RETURNING `+orderCols+`
  `, id, status), &o)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

// MarkPaid flips the order to PAID and writes the receipt in one transaction.
// The paid=FALSE guard makes duplicate webhook deliveries a no-op: the
// already-paid order is returned and no second receipt is inserted.
func (r *PGRepo) MarkPaid(ctx context.Context, u PaidUpdate) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var o Order
	err = scanOrder(tx.QueryRow(ctx, `
    UPDATE orders
    SET status = $2, paid = TRUE, paid_at = $3, payment_charge_id = $4, updated_at = NOW()
    WHERE id = $1 AND paid = FALSE
    RETURNING `+orderCols+`
  `, u.OrderID, StatusPaid, u.PaidAt, u.ChargeID), &o)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		// Missing order or duplicate delivery; no rows were written either way.
		var cur Order
		if err := scanOrder(r.db.QueryRow(ctx, `
      SELECT `+orderCols+` FROM orders WHERE id=$1
    `, u.OrderID), &cur); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		return &cur, nil
	}

	if _, err := tx.Exec(ctx, `
    INSERT INTO order_receipts (id, order_id, receipt_url, created_at)
    VALUES ($1,$2,$3,$4)
  `, u.ReceiptID, u.OrderID, u.ReceiptURL, u.PaidAt); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &o, nil
}
