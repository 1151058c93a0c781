package order

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nest-Microservices-Edsanol/orders-microservice/internal/clock"
)

//
// ---------- STUBS & FAKES ----------
//

// stubRepo implements Repository in memory, in insertion order.
type stubRepo struct {
	ids       []string
	orders    map[string]*Order
	items     map[string][]Item
	receipts  map[string][]Receipt
	createErr error
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		orders:   make(map[string]*Order),
		items:    make(map[string][]Item),
		receipts: make(map[string][]Receipt),
	}
}

func (s *stubRepo) Create(ctx context.Context, o *Order, items []Item) error {
	if s.createErr != nil {
		return s.createErr
	}
	cp := *o
	cp.Items = nil
	s.ids = append(s.ids, o.ID)
	s.orders[o.ID] = &cp
	rows := make([]Item, len(items))
	for i, it := range items {
		it.Name = "" // names are never persisted
		rows[i] = it
	}
	s.items[o.ID] = rows
	return nil
}

func (s *stubRepo) GetByID(ctx context.Context, id string) (*Order, []Item, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, nil, ErrNotFound
	}
	cp := *o
	return &cp, append([]Item(nil), s.items[id]...), nil
}

func (s *stubRepo) List(ctx context.Context, f ListFilter) ([]Order, int64, error) {
	var all []Order
	for _, id := range s.ids {
		o := s.orders[id]
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		all = append(all, *o)
	}
	total := int64(len(all))
	start := (f.Page - 1) * f.Limit
	if start > len(all) {
		return []Order{}, total, nil
	}
	end := start + f.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (s *stubRepo) UpdateStatus(ctx context.Context, id string, status Status) (*Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	o.Status = status
	cp := *o
	return &cp, nil
}

func (s *stubRepo) MarkPaid(ctx context.Context, u PaidUpdate) (*Order, error) {
	o, ok := s.orders[u.OrderID]
	if !ok {
		return nil, ErrNotFound
	}
	if o.Paid {
		cp := *o
		return &cp, nil
	}
	o.Status = StatusPaid
	o.Paid = true
	paidAt := u.PaidAt
	o.PaidAt = &paidAt
	o.PaymentChargeID = u.ChargeID
	s.receipts[u.OrderID] = append(s.receipts[u.OrderID], Receipt{
		ID: u.ReceiptID, OrderID: u.OrderID, ReceiptURL: u.ReceiptURL, CreatedAt: u.PaidAt,
	})
	cp := *o
	return &cp, nil
}

// fakeCatalog rejects the whole batch when any id is unknown, like the real
// catalog service.
type fakeCatalog struct {
	products map[int64]Product
	calls    int
	err      error
}

func (f *fakeCatalog) ValidateProducts(ctx context.Context, ids []int64) ([]Product, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]Product, 0, len(ids))
	for _, id := range ids {
		p, ok := f.products[id]
		if !ok {
			return nil, fmt.Errorf("%w: product %d", ErrUnknownProduct, id)
		}
		out = append(out, p)
	}
	return out, nil
}

type fakePayments struct {
	lastReq PaymentSessionRequest
	session PaymentSession
	err     error
}

func (f *fakePayments) CreateSession(ctx context.Context, req PaymentSessionRequest) (*PaymentSession, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	cp := f.session
	return &cp, nil
}

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestService() (*Service, *stubRepo, *fakeCatalog, *fakePayments) {
	repo := newStubRepo()
	catalog := &fakeCatalog{products: map[int64]Product{
		1: {ID: 1, Name: "A", Price: "10"},
		2: {ID: 2, Name: "B", Price: "5"},
	}}
	payments := &fakePayments{session: PaymentSession{SessionID: "cs_123", SessionURL: "https://pay.example/cs_123"}}
	svc := NewService(repo, catalog, payments, clock.NewFixed(testNow), "usd")
	return svc, repo, catalog, payments
}

//
// ---------- TESTS ----------
//

func TestCreate_ComputesTotals(t *testing.T) {
	t.Parallel()
	svc, repo, _, _ := newTestService()

	o, err := svc.Create(context.Background(), []CreateOrderItem{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Quantity: 1},
	})
	require.NoError(t, err)

	assert.Equal(t, "25.00", o.TotalAmount)
	assert.Equal(t, 3, o.TotalItems)
	assert.Equal(t, StatusPending, o.Status)
	assert.False(t, o.Paid)
	require.Len(t, o.Items, 2)
	assert.Equal(t, "A", o.Items[0].Name)
	assert.Equal(t, "10.00", o.Items[0].Price)
	assert.Equal(t, "B", o.Items[1].Name)

	stored, items, err := repo.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, "25.00", stored.TotalAmount)
	require.Len(t, items, 2)
	assert.Empty(t, items[0].Name, "name must not be persisted")
}

func TestCreate_UnknownProduct_NoPersist(t *testing.T) {
	t.Parallel()
	svc, repo, _, _ := newTestService()

	_, err := svc.Create(context.Background(), []CreateOrderItem{
		{ProductID: 1, Quantity: 1},
		{ProductID: 99, Quantity: 1},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownProduct)
	assert.Empty(t, repo.orders, "no order row may survive a failed create")
}

func TestCreate_CatalogUnavailable(t *testing.T) {
	t.Parallel()
	svc, repo, catalog, _ := newTestService()
	catalog.err = errors.New("nats: timeout")

	_, err := svc.Create(context.Background(), []CreateOrderItem{{ProductID: 1, Quantity: 1}})
	require.Error(t, err)
	assert.Empty(t, repo.orders)
}

func TestCreate_InvalidInput(t *testing.T) {
	t.Parallel()
	svc, _, catalog, _ := newTestService()

	_, err := svc.Create(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoItems)

	_, err = svc.Create(context.Background(), []CreateOrderItem{{ProductID: 1, Quantity: 0}})
	assert.ErrorIs(t, err, ErrInvalidItem)

	_, err = svc.Create(context.Background(), []CreateOrderItem{{ProductID: -1, Quantity: 1}})
	assert.ErrorIs(t, err, ErrInvalidItem)

	assert.Equal(t, 0, catalog.calls, "invalid input must not reach the catalog")
}

func TestCreate_PersistFailure(t *testing.T) {
	t.Parallel()
	svc, repo, _, _ := newTestService()
	repo.createErr = errors.New("pq: connection reset")

	_, err := svc.Create(context.Background(), []CreateOrderItem{{ProductID: 1, Quantity: 1}})
	require.Error(t, err)
}

func TestFindOne_NotFound_NoCatalogCall(t *testing.T) {
	t.Parallel()
	svc, _, catalog, _ := newTestService()

	_, err := svc.FindOne(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, catalog.calls)
}

func TestFindOne_RefreshesNames(t *testing.T) {
	t.Parallel()
	svc, _, catalog, _ := newTestService()

	o, err := svc.Create(context.Background(), []CreateOrderItem{{ProductID: 1, Quantity: 2}})
	require.NoError(t, err)

	// The catalog renames the product after the order exists.
	catalog.products[1] = Product{ID: 1, Name: "A (renamed)", Price: "99"}

	got, err := svc.FindOne(context.Background(), o.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "A (renamed)", got.Items[0].Name)
	assert.Equal(t, "10.00", got.Items[0].Price, "stored price is a point-in-time copy")
	assert.Equal(t, "20.00", got.TotalAmount, "totals are never recomputed")
}

func TestFindOne_CatalogOutageFailsRead(t *testing.T) {
	t.Parallel()
	svc, _, catalog, _ := newTestService()

	o, err := svc.Create(context.Background(), []CreateOrderItem{{ProductID: 1, Quantity: 1}})
	require.NoError(t, err)

	catalog.err = errors.New("nats: no responders")
	_, err = svc.FindOne(context.Background(), o.ID)
	require.Error(t, err)
}

func TestChangeStatus_SameStatusRejected(t *testing.T) {
	t.Parallel()
	svc, repo, _, _ := newTestService()

	o, err := svc.Create(context.Background(), []CreateOrderItem{{ProductID: 1, Quantity: 1}})
	require.NoError(t, err)

	_, err = svc.ChangeStatus(context.Background(), o.ID, StatusPending)
	assert.ErrorIs(t, err, ErrSameStatus)
	assert.Equal(t, StatusPending, repo.orders[o.ID].Status)
}

func TestChangeStatus_Updates(t *testing.T) {
	t.Parallel()
	svc, _, _, _ := newTestService()

	o, err := svc.Create(context.Background(), []CreateOrderItem{{ProductID: 1, Quantity: 1}})
	require.NoError(t, err)

	got, err := svc.ChangeStatus(context.Background(), o.ID, StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)

	found, err := svc.FindOne(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, found.Status)
}

func TestChangeStatus_NotFound(t *testing.T) {
	t.Parallel()
	svc, _, _, _ := newTestService()

	_, err := svc.ChangeStatus(context.Background(), "missing", StatusPaid)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindAll_Pagination(t *testing.T) {
	t.Parallel()
	svc, _, _, _ := newTestService()

	for i := 0; i < 5; i++ {
		_, err := svc.Create(context.Background(), []CreateOrderItem{{ProductID: 1, Quantity: 1}})
		require.NoError(t, err)
	}

	for page, wantLen := range map[int]int{1: 2, 2: 2, 3: 1} {
		got, err := svc.FindAll(context.Background(), ListFilter{Page: page, Limit: 2})
		require.NoError(t, err)
		assert.Len(t, got.Data, wantLen, "page %d", page)
		assert.Equal(t, int64(5), got.Meta.Total, "page %d", page)
		assert.Equal(t, page, got.Meta.Page)
		assert.Equal(t, 3, got.Meta.LastPage)
	}

	// Past the end: empty page, same meta.
	got, err := svc.FindAll(context.Background(), ListFilter{Page: 4, Limit: 2})
	require.NoError(t, err)
	assert.Empty(t, got.Data)
	assert.Equal(t, int64(5), got.Meta.Total)
}

func TestFindAll_StatusFilter(t *testing.T) {
	t.Parallel()
	svc, _, _, _ := newTestService()

	a, err := svc.Create(context.Background(), []CreateOrderItem{{ProductID: 1, Quantity: 1}})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), []CreateOrderItem{{ProductID: 2, Quantity: 1}})
	require.NoError(t, err)
	_, err = svc.ChangeStatus(context.Background(), a.ID, StatusDelivered)
	require.NoError(t, err)

	got, err := svc.FindAll(context.Background(), ListFilter{Status: StatusDelivered, Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, got.Data, 1)
	assert.Equal(t, a.ID, got.Data[0].ID)
	assert.Equal(t, int64(1), got.Meta.Total)

	all, err := svc.FindAll(context.Background(), ListFilter{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), all.Meta.Total)
}

func TestPaidOrder(t *testing.T) {
	t.Parallel()
	svc, repo, _, _ := newTestService()

	o, err := svc.Create(context.Background(), []CreateOrderItem{{ProductID: 1, Quantity: 1}})
	require.NoError(t, err)

	got, err := svc.PaidOrder(context.Background(), PaidOrderRequest{
		OrderID:         o.ID,
		StripePaymentID: "ch_abc",
		ReceiptURL:      "https://receipts.example/r1",
	})
	require.NoError(t, err)

	assert.True(t, got.Paid)
	assert.Equal(t, StatusPaid, got.Status)
	require.NotNil(t, got.PaidAt)
	assert.Equal(t, testNow, *got.PaidAt)
	assert.Equal(t, "ch_abc", got.PaymentChargeID)

	require.Len(t, repo.receipts[o.ID], 1)
	assert.Equal(t, "https://receipts.example/r1", repo.receipts[o.ID][0].ReceiptURL)
}

func TestPaidOrder_DuplicateWebhook(t *testing.T) {
	t.Parallel()
	svc, repo, _, _ := newTestService()

	o, err := svc.Create(context.Background(), []CreateOrderItem{{ProductID: 1, Quantity: 1}})
	require.NoError(t, err)

	req := PaidOrderRequest{OrderID: o.ID, StripePaymentID: "ch_abc", ReceiptURL: "https://receipts.example/r1"}
	_, err = svc.PaidOrder(context.Background(), req)
	require.NoError(t, err)

	got, err := svc.PaidOrder(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, got.Paid)
	assert.Len(t, repo.receipts[o.ID], 1, "duplicate delivery must not create a second receipt")
}

func TestPaidOrder_NotFound(t *testing.T) {
	t.Parallel()
	svc, _, _, _ := newTestService()

	_, err := svc.PaidOrder(context.Background(), PaidOrderRequest{OrderID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreatePaymentSession(t *testing.T) {
	t.Parallel()
	svc, _, _, payments := newTestService()

	o, err := svc.Create(context.Background(), []CreateOrderItem{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Quantity: 1},
	})
	require.NoError(t, err)

	sess, err := svc.CreatePaymentSession(context.Background(), o)
	require.NoError(t, err)
	assert.Equal(t, "cs_123", sess.SessionID)

	assert.Equal(t, o.ID, payments.lastReq.OrderID)
	assert.Equal(t, "usd", payments.lastReq.Currency)
	require.Len(t, payments.lastReq.Items, 2)
	assert.Equal(t, PaymentSessionItem{Name: "A", Price: "10.00", Quantity: 2}, payments.lastReq.Items[0])
}

func TestPayments_Optional(t *testing.T) {
	t.Parallel()
	repo := newStubRepo()
	catalog := &fakeCatalog{products: map[int64]Product{1: {ID: 1, Name: "A", Price: "10"}}}
	svc := NewService(repo, catalog, nil, clock.NewFixed(testNow), "")

	o, err := svc.Create(context.Background(), []CreateOrderItem{{ProductID: 1, Quantity: 1}})
	require.NoError(t, err)

	_, err = svc.CreatePaymentSession(context.Background(), o)
	assert.ErrorIs(t, err, ErrPaymentsDisabled)

	_, err = svc.PaidOrder(context.Background(), PaidOrderRequest{OrderID: o.ID})
	assert.ErrorIs(t, err, ErrPaymentsDisabled)
}
