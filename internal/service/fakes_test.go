package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/RishiVykunta/e-commerce/internal/models"
	"github.com/RishiVykunta/e-commerce/internal/payment"
	"github.com/RishiVykunta/e-commerce/internal/store"

	"github.com/shopspring/decimal"
)

// memRepo is an in-memory OrderRepository whose transactions only apply
// their writes when fn succeeds.
type memRepo struct {
	mu           sync.Mutex
	products     map[int64]models.Product
	orders       []models.OrderDetail
	nextOrderID  int64
	failItemAt   int
	lockedIDs    [][]int64
	transactions int
}

func newMemRepo(products ...models.Product) *memRepo {
	r := &memRepo{products: map[int64]models.Product{}, nextOrderID: 100}
	for _, p := range products {
		r.products[p.ID] = p
	}
	return r
}

func product(id int64, name, price string, stock int) models.Product {
	return models.Product{ID: id, Name: name, Price: decimal.RequireFromString(price), Stock: stock}
}

type memTx struct {
	repo     *memRepo
	products map[int64]models.Product
	orders   []models.OrderDetail
	nextID   int64
	items    int
}

func (r *memRepo) WithTx(ctx context.Context, fn func(tx store.OrderTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transactions++

	staged := make(map[int64]models.Product, len(r.products))
	for id, p := range r.products {
		staged[id] = p
	}
	tx := &memTx{repo: r, products: staged, nextID: r.nextOrderID}
	if err := fn(tx); err != nil {
		return err
	}

	r.products = tx.products
	r.orders = append(r.orders, tx.orders...)
	r.nextOrderID = tx.nextID
	return nil
}

func (t *memTx) LockProducts(_ context.Context, ids []int64) ([]models.Product, error) {
	t.repo.lockedIDs = append(t.repo.lockedIDs, append([]int64(nil), ids...))
	var out []models.Product
	for _, id := range ids {
		if p, ok := t.products[id]; ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) InsertOrder(_ context.Context, order *models.Order) error {
	if order.IdempotencyKey != "" {
		for _, set := range [][]models.OrderDetail{t.repo.orders, t.orders} {
			for _, o := range set {
				if o.IdempotencyKey == order.IdempotencyKey {
					return fmt.Errorf("order with idempotency key %q: %w", order.IdempotencyKey, store.ErrDuplicate)
				}
			}
		}
	}
	if order.PaymentIntentID != "" {
		for _, set := range [][]models.OrderDetail{t.repo.orders, t.orders} {
			for _, o := range set {
				if o.PaymentIntentID == order.PaymentIntentID {
					return fmt.Errorf("order with payment intent %q: %w", order.PaymentIntentID, store.ErrPaymentIntentUsed)
				}
			}
		}
	}
	t.nextID++
	order.ID = t.nextID
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	t.orders = append(t.orders, models.OrderDetail{Order: *order, Items: []models.OrderItemDetail{}})
	return nil
}

func (t *memTx) InsertOrderItem(_ context.Context, item *models.OrderItem) error {
	t.items++
	if t.repo.failItemAt > 0 && t.items == t.repo.failItemAt {
		return fmt.Errorf("failed to insert order item: connection reset")
	}
	item.ID = int64(t.items)
	last := &t.orders[len(t.orders)-1]
	last.Items = append(last.Items, models.OrderItemDetail{OrderItem: *item, ProductName: t.products[item.ProductID].Name})
	return nil
}

func (t *memTx) DecrementStock(_ context.Context, productID int64, quantity int) error {
	p := t.products[productID]
	if p.Stock < quantity {
		return fmt.Errorf("product %d: %w", productID, store.ErrInsufficientStock)
	}
	p.Stock -= quantity
	t.products[productID] = p
	return nil
}

func (r *memRepo) GetOrderByIdempotencyKey(_ context.Context, key string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.IdempotencyKey == key {
			order := o.Order
			return &order, nil
		}
	}
	return nil, nil
}

func (r *memRepo) GetOrderDetail(_ context.Context, id int64) (*models.OrderDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.ID == id {
			detail := o
			return &detail, nil
		}
	}
	return nil, fmt.Errorf("order %d: %w", id, store.ErrNotFound)
}

func (r *memRepo) ListOrdersByUser(_ context.Context, userID int64) ([]models.OrderDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.OrderDetail{}
	for i := len(r.orders) - 1; i >= 0; i-- {
		if r.orders[i].UserID == userID {
			out = append(out, r.orders[i])
		}
	}
	return out, nil
}

func (r *memRepo) ListOrders(_ context.Context) ([]models.OrderDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.OrderDetail{}
	for i := len(r.orders) - 1; i >= 0; i-- {
		out = append(out, r.orders[i])
	}
	return out, nil
}

func (r *memRepo) UpdateOrderStatus(_ context.Context, orderID int64, status string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.orders {
		if r.orders[i].ID == orderID {
			r.orders[i].Status = status
			order := r.orders[i].Order
			return &order, nil
		}
	}
	return nil, fmt.Errorf("order %d: %w", orderID, store.ErrNotFound)
}

func (r *memRepo) stock(id int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.products[id].Stock
}

type fakeRegistry struct {
	mu       sync.Mutex
	intents  map[string]models.PaymentIntent
	locks    map[string]string
	lockErr  error
	released []string
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{intents: map[string]models.PaymentIntent{}, locks: map[string]string{}}
}

func (f *fakeRegistry) SaveIntent(_ context.Context, intent *models.PaymentIntent, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intents[intent.IntentID] = *intent
	return nil
}

func (f *fakeRegistry) GetIntent(_ context.Context, intentID string) (*models.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	intent, ok := f.intents[intentID]
	if !ok {
		return nil, fmt.Errorf("intent %s not found", intentID)
	}
	return &intent, nil
}

func (f *fakeRegistry) MarkIntentVerified(_ context.Context, intentID, paymentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	intent, ok := f.intents[intentID]
	if !ok {
		return fmt.Errorf("intent %s not found", intentID)
	}
	intent.Verified = true
	intent.PaymentID = paymentID
	f.intents[intentID] = intent
	return nil
}

func (f *fakeRegistry) AcquireLock(_ context.Context, key, token string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lockErr != nil {
		return false, f.lockErr
	}
	if _, held := f.locks[key]; held {
		return false, nil
	}
	f.locks[key] = token
	return true, nil
}

func (f *fakeRegistry) ReleaseLock(_ context.Context, key, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locks[key] == token {
		delete(f.locks, key)
	}
	f.released = append(f.released, key)
	return nil
}

type fakePublisher struct {
	mu       sync.Mutex
	err      error
	placed   []*models.OrderPlacedEvent
	changed  []*models.OrderStatusChangedEvent
	verified []*models.PaymentVerifiedEvent
	contexts []context.Context
	ctxErrs  []error
}

func (f *fakePublisher) PublishOrderPlaced(ctx context.Context, e *models.OrderPlacedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placed = append(f.placed, e)
	f.contexts = append(f.contexts, ctx)
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	return f.err
}

func (f *fakePublisher) PublishOrderStatusChanged(ctx context.Context, e *models.OrderStatusChangedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changed = append(f.changed, e)
	f.contexts = append(f.contexts, ctx)
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	return f.err
}

func (f *fakePublisher) PublishPaymentVerified(ctx context.Context, e *models.PaymentVerifiedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verified = append(f.verified, e)
	f.contexts = append(f.contexts, ctx)
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	return f.err
}

type fakeGateway struct {
	secret    string
	createErr error
	payment   *payment.Payment
	fetchErr  error
	amounts   []decimal.Decimal
}

func (f *fakeGateway) CreateIntent(_ context.Context, userID int64, amount decimal.Decimal) (*payment.Intent, error) {
	f.amounts = append(f.amounts, amount)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &payment.Intent{
		ID:       fmt.Sprintf("order_%d", len(f.amounts)),
		Amount:   payment.ToMinorUnits(amount),
		Currency: "INR",
		Receipt:  fmt.Sprintf("receipt_1_%d", userID),
	}, nil
}

func (f *fakeGateway) VerifyCallback(intentID, paymentID, signature string) bool {
	return payment.Sign(f.secret, intentID, paymentID) == signature
}

func (f *fakeGateway) FetchPayment(_ context.Context, paymentID string) (*payment.Payment, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.payment, nil
}

func (f *fakeGateway) KeyID() string { return "rzp_test_key" }
