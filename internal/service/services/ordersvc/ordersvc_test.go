package ordersvc

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/localmart/order/internal/dal/interfaces/iorderitemrepo"
	"github.com/localmart/order/internal/dal/interfaces/iorderrepo"
	"github.com/localmart/order/internal/dal/interfaces/ioutboxrepo"
	"github.com/localmart/order/internal/service/models/actor"
	"github.com/localmart/order/internal/service/models/currency"
	"github.com/localmart/order/internal/service/models/events"
	"github.com/localmart/order/internal/service/models/order"
	"github.com/localmart/order/internal/service/models/orderitem"
	"github.com/localmart/order/internal/service/models/outbox"
	"github.com/localmart/order/internal/service/models/product"
	"github.com/localmart/order/internal/service/models/shop"
)

// memStore backs all the fake repositories of one test.
type memStore struct {
	mu        sync.Mutex
	orders    map[int64]order.Order
	items     map[int64]orderitem.OrderItem
	outbox    []outbox.OutboxMessage
	rowLocks  map[int64]*sync.Mutex
	nextOrder int64
	nextItem  int64
}

func newMemStore() *memStore {
	return &memStore{
		orders:   make(map[int64]order.Order),
		items:    make(map[int64]orderitem.OrderItem),
		rowLocks: make(map[int64]*sync.Mutex),
	}
}

// rowLock mimics a row-level lock on one order, held until the unit of work
// ends.
func (s *memStore) rowLock(orderID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rowLocks[orderID] == nil {
		s.rowLocks[orderID] = &sync.Mutex{}
	}
	return s.rowLocks[orderID]
}

func (s *memStore) eventNames(t *testing.T) []string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.outbox))
	for _, msg := range s.outbox {
		var envelope events.Envelope
		if err := json.Unmarshal(msg.Payload, &envelope); err != nil {
			t.Fatalf("bad outbox payload: %v", err)
		}
		names = append(names, envelope.Name)
	}
	return names
}

func (s *memStore) storedOrder(t *testing.T, id int64) order.Order {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		t.Fatalf("order %d not stored", id)
	}
	return o
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

type memOrderRepo struct {
	store *memStore
	uow   *memUOW
}

func (r *memOrderRepo) Insert(_ context.Context, o order.Order) (*order.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.nextOrder++
	o.ID = r.store.nextOrder
	o.OrderItems = nil
	r.store.orders[o.ID] = o
	stored := o
	return &stored, nil
}

func (r *memOrderRepo) GetByID(_ context.Context, id int64) (*order.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	o, ok := r.store.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return &o, nil
}

func (r *memOrderRepo) GetByIDForUpdate(ctx context.Context, id int64) (*order.Order, error) {
	lock := r.store.rowLock(id)
	lock.Lock()
	r.uow.held = append(r.uow.held, lock)
	return r.GetByID(ctx, id)
}

func (r *memOrderRepo) Query(_ context.Context, filter *order.QueryOrdersModel) ([]order.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []order.Order
	for _, o := range r.store.orders {
		if len(filter.CustomerIds) > 0 && !containsID(filter.CustomerIds, o.CustomerID) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (r *memOrderRepo) UpdateStatusIf(_ context.Context, o *order.Order, expected order.Status) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored, ok := r.store.orders[o.ID]
	if !ok || stored.Status != expected {
		return false, nil
	}
	updated := *o
	updated.OrderItems = nil
	r.store.orders[o.ID] = updated
	return true, nil
}

type memOrderItemRepo struct{ store *memStore }

func (r *memOrderItemRepo) BulkInsert(_ context.Context, items []orderitem.OrderItem) ([]orderitem.OrderItem, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]orderitem.OrderItem, 0, len(items))
	for _, item := range items {
		r.store.nextItem++
		item.ID = r.store.nextItem
		r.store.items[item.ID] = item
		out = append(out, item)
	}
	return out, nil
}

func (r *memOrderItemRepo) Query(_ context.Context, filter *orderitem.QueryOrderItemsModel) ([]orderitem.OrderItem, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []orderitem.OrderItem
	for _, item := range r.store.items {
		if len(filter.OrderIds) > 0 && !containsID(filter.OrderIds, item.OrderID) {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (r *memOrderItemRepo) UpdateDecision(_ context.Context, item *orderitem.OrderItem) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored, ok := r.store.items[item.ID]
	if !ok || stored.ApprovalStatus != orderitem.ApprovalPending {
		return false, nil
	}
	r.store.items[item.ID] = *item
	return true, nil
}

type memOutboxRepo struct{ store *memStore }

func (r *memOutboxRepo) Insert(_ context.Context, msg outbox.OutboxMessage) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.outbox = append(r.store.outbox, msg)
	return nil
}

func (r *memOutboxRepo) GetPendingMessages(context.Context, int) ([]outbox.OutboxMessage, error) {
	return nil, nil
}

func (r *memOutboxRepo) Delete(context.Context, int64) error { return nil }

func (r *memOutboxRepo) UpdateRetry(context.Context, int64, int, string, time.Time) error {
	return nil
}

type memUOW struct {
	orders *memOrderRepo
	items  *memOrderItemRepo
	outbox *memOutboxRepo
	held   []*sync.Mutex
}

func newMemUOW(store *memStore) *memUOW {
	u := &memUOW{
		items:  &memOrderItemRepo{store},
		outbox: &memOutboxRepo{store},
	}
	u.orders = &memOrderRepo{store: store, uow: u}
	return u
}

func (u *memUOW) Begin(context.Context) error { return nil }

func (u *memUOW) Commit(context.Context) error {
	u.releaseLocks()
	return nil
}

func (u *memUOW) Rollback(context.Context) error {
	u.releaseLocks()
	return nil
}

func (u *memUOW) releaseLocks() {
	for _, lock := range u.held {
		lock.Unlock()
	}
	u.held = nil
}

func (u *memUOW) OrderRepository() iorderrepo.IOrderRepository {
	return u.orders
}

func (u *memUOW) OrderItemRepository() iorderitemrepo.IOrderItemRepository {
	return u.items
}

func (u *memUOW) OutboxRepository() ioutboxrepo.IOutboxRepository {
	return u.outbox
}

type fakeShopRepo struct {
	shops map[int64]shop.Shop
}

func (r *fakeShopRepo) GetByID(_ context.Context, id int64) (*shop.Shop, error) {
	sh, ok := r.shops[id]
	if !ok {
		return nil, shop.ErrShopNotFound
	}
	return &sh, nil
}

func (r *fakeShopRepo) UpdateCoordinates(context.Context, int64, float64, float64) error {
	return nil
}

type fakeProductRepo struct {
	products map[int64]product.Product
}

func (r *fakeProductRepo) GetByID(_ context.Context, id int64) (*product.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, product.ErrProductNotFound
	}
	return &p, nil
}

func (r *fakeProductRepo) GetByIDs(_ context.Context, ids []int64) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeProductRepo) UpdateQuantityCAS(context.Context, int64, int, int) (bool, error) {
	return true, nil
}

func (r *fakeProductRepo) AddQuantity(context.Context, int64, int) error { return nil }

type ledgerCall struct {
	productID int64
	quantity  int
}

// fakeLedger records consumption and can be told to fail.
type fakeLedger struct {
	mu          sync.Mutex
	shortfalls  []product.Shortfall
	failOnCall  int // 1-based consume call that fails, 0 = never
	failErr     error
	consumeSeen int
	consumed    []ledgerCall
	released    []ledgerCall
}

func (l *fakeLedger) ValidateAvailability(_ context.Context, _ []orderitem.OrderItem) ([]product.Shortfall, error) {
	return l.shortfalls, nil
}

func (l *fakeLedger) Consume(_ context.Context, productID int64, quantity int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.consumeSeen++
	if l.failOnCall != 0 && l.consumeSeen == l.failOnCall {
		return l.failErr
	}
	l.consumed = append(l.consumed, ledgerCall{productID, quantity})
	return nil
}

func (l *fakeLedger) Release(_ context.Context, productID int64, quantity int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released = append(l.released, ledgerCall{productID, quantity})
	return nil
}

type fakeDispatcher struct {
	calls int
	err   error
}

func (d *fakeDispatcher) PrepareDelivery(context.Context, *order.Order) error {
	d.calls++
	return d.err
}

type fixture struct {
	svc        *OrderService
	store      *memStore
	ledger     *fakeLedger
	dispatcher *fakeDispatcher
}

var (
	customer    = actor.Actor{UserID: 7, Role: actor.RoleCustomer}
	shopOwner   = actor.Actor{UserID: 100, Role: actor.RoleShop}
	courier     = actor.Actor{UserID: 200, Role: actor.RoleAgent}
	testShop    = shop.Shop{ID: 1, OwnerUserID: 100, Name: "Sharma General Store", Address: "12 MG Road", DeliveryFeeCents: 50}
	riceProduct = product.Product{ID: 10, ShopID: 1, Title: "Basmati Rice 1kg", PriceCents: 1000, PriceCurrency: currency.CurrencyINR, AvailableQuantity: 50}
	gheeProduct = product.Product{ID: 11, ShopID: 1, Title: "Ghee 500ml", PriceCents: 500, PriceCurrency: currency.CurrencyINR, AvailableQuantity: 20}
)

func newFixture() *fixture {
	store := newMemStore()
	ledger := &fakeLedger{}
	dispatcher := &fakeDispatcher{}

	svc := MustNewOrderService(
		WithUnitOfWorkFactory(func() unitOfWork {
			return newMemUOW(store)
		}),
		WithShopRepository(&fakeShopRepo{shops: map[int64]shop.Shop{1: testShop}}),
		WithProductRepository(&fakeProductRepo{products: map[int64]product.Product{
			10: riceProduct,
			11: gheeProduct,
		}}),
		WithStockLedger(ledger),
		WithDispatcher(dispatcher),
	)

	return &fixture{svc: svc, store: store, ledger: ledger, dispatcher: dispatcher}
}

func (f *fixture) submit(t *testing.T) *order.Order {
	t.Helper()
	o, err := f.svc.Submit(context.Background(), customer, SubmitOrderModel{
		ShopID: 1,
		Items: []SubmitItemModel{
			{ProductID: 10, Quantity: 3},
			{ProductID: 11, Quantity: 2},
		},
		DeliveryAddress: "44 Brigade Road",
		DeliveryPhone:   "+91 98765 43210",
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	return o
}

// decideAll approves the rice item and rejects the ghee item, pushing the
// order into PAYMENT_PENDING.
func (f *fixture) decideAll(t *testing.T, o *order.Order) *order.Order {
	t.Helper()
	var riceItem, gheeItem int64
	for _, item := range o.OrderItems {
		switch item.ProductID {
		case 10:
			riceItem = item.ID
		case 11:
			gheeItem = item.ID
		}
	}

	if _, err := f.svc.DecideItem(context.Background(), shopOwner, o.ID, riceItem, orderitem.ApprovalApproved, ""); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	decided, err := f.svc.DecideItem(context.Background(), shopOwner, o.ID, gheeItem, orderitem.ApprovalRejected, "out of stock till Friday")
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	return decided
}

func (f *fixture) paidOrder(t *testing.T) *order.Order {
	t.Helper()
	o := f.decideAll(t, f.submit(t))
	result, err := f.svc.Pay(context.Background(), customer, o.ID, "upi")
	if err != nil {
		t.Fatalf("pay failed: %v", err)
	}
	return result.Order
}

func TestSubmit(t *testing.T) {
	t.Run("creates a pending order with snapshot prices", func(t *testing.T) {
		f := newFixture()
		o := f.submit(t)

		if o.Status != order.StatusPendingApproval {
			t.Errorf("expected PENDING_APPROVAL, got %s", o.Status)
		}
		if o.SubtotalCents != 4000 {
			t.Errorf("expected subtotal 4000, got %d", o.SubtotalCents)
		}
		if o.TotalCents != 4050 {
			t.Errorf("expected total 4050 with delivery fee, got %d", o.TotalCents)
		}
		if len(o.OrderItems) != 2 {
			t.Fatalf("expected 2 items, got %d", len(o.OrderItems))
		}
		for _, item := range o.OrderItems {
			if item.ApprovalStatus != orderitem.ApprovalPending {
				t.Errorf("expected item %d pending, got %s", item.ID, item.ApprovalStatus)
			}
			if item.ProductTitle == "" || item.UnitPriceCents == 0 {
				t.Errorf("expected snapshot fields on item %d", item.ID)
			}
		}

		names := f.store.eventNames(t)
		if len(names) != 1 || names[0] != events.OrderPlaced {
			t.Errorf("expected one order.placed event, got %v", names)
		}
	})

	t.Run("rejects an empty cart", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.Submit(context.Background(), customer, SubmitOrderModel{ShopID: 1})
		if !errors.Is(err, order.ErrEmptyCart) {
			t.Errorf("expected ErrEmptyCart, got %v", err)
		}
	})

	t.Run("unknown shop", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.Submit(context.Background(), customer, SubmitOrderModel{
			ShopID: 9,
			Items:  []SubmitItemModel{{ProductID: 10, Quantity: 1}},
		})
		if !errors.Is(err, shop.ErrShopNotFound) {
			t.Errorf("expected ErrShopNotFound, got %v", err)
		}
	})

	t.Run("unknown product", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.Submit(context.Background(), customer, SubmitOrderModel{
			ShopID:          1,
			Items:           []SubmitItemModel{{ProductID: 999, Quantity: 1}},
			DeliveryAddress: "44 Brigade Road",
		})
		if !errors.Is(err, product.ErrProductNotFound) {
			t.Errorf("expected ErrProductNotFound, got %v", err)
		}
	})

	t.Run("shop owner cannot submit as customer", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.Submit(context.Background(), shopOwner, SubmitOrderModel{
			ShopID: 1,
			Items:  []SubmitItemModel{{ProductID: 10, Quantity: 1}},
		})
		if !errors.Is(err, actor.ErrNotAllowed) {
			t.Errorf("expected ErrNotAllowed, got %v", err)
		}
	})

	t.Run("surfaces shortfalls before approval starts", func(t *testing.T) {
		f := newFixture()
		f.ledger.shortfalls = []product.Shortfall{{ProductID: 10, Requested: 3, Available: 1}}

		_, err := f.svc.Submit(context.Background(), customer, SubmitOrderModel{
			ShopID:          1,
			Items:           []SubmitItemModel{{ProductID: 10, Quantity: 3}},
			DeliveryAddress: "44 Brigade Road",
			DeliveryPhone:   "+91 98765 43210",
		})
		if !errors.Is(err, product.ErrInsufficientStock) {
			t.Errorf("expected ErrInsufficientStock, got %v", err)
		}
	})
}

func TestDecideItem(t *testing.T) {
	t.Run("order waits until every item is decided", func(t *testing.T) {
		f := newFixture()
		o := f.submit(t)

		updated, err := f.svc.DecideItem(context.Background(), shopOwner, o.ID, o.OrderItems[0].ID, orderitem.ApprovalApproved, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if updated.Status != order.StatusPendingApproval {
			t.Errorf("expected order still PENDING_APPROVAL, got %s", updated.Status)
		}
	})

	t.Run("recomputes amounts over approved items only", func(t *testing.T) {
		f := newFixture()
		o := f.decideAll(t, f.submit(t))

		if o.Status != order.StatusPaymentPending {
			t.Errorf("expected PAYMENT_PENDING, got %s", o.Status)
		}
		if o.SubtotalCents != 3000 {
			t.Errorf("expected subtotal 3000 after rejecting the ghee, got %d", o.SubtotalCents)
		}
		if o.TotalCents != 3050 {
			t.Errorf("expected total 3050, got %d", o.TotalCents)
		}

		names := f.store.eventNames(t)
		if names[len(names)-1] != events.OrderApproved {
			t.Errorf("expected order.approved last, got %v", names)
		}
	})

	t.Run("all rejected means the order is rejected", func(t *testing.T) {
		f := newFixture()
		o := f.submit(t)

		for _, item := range o.OrderItems {
			if _, err := f.svc.DecideItem(context.Background(), shopOwner, o.ID, item.ID, orderitem.ApprovalRejected, "closing early"); err != nil {
				t.Fatalf("reject failed: %v", err)
			}
		}

		stored := f.store.storedOrder(t, o.ID)
		if stored.Status != order.StatusRejected {
			t.Errorf("expected REJECTED, got %s", stored.Status)
		}
		if stored.RejectionReason == "" {
			t.Error("expected a rejection reason on the order")
		}

		names := f.store.eventNames(t)
		if names[len(names)-1] != events.OrderRejected {
			t.Errorf("expected order.rejected last, got %v", names)
		}
	})

	t.Run("concurrent decisions on different items still aggregate", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			f := newFixture()
			o := f.submit(t)

			var riceItem, gheeItem int64
			for _, item := range o.OrderItems {
				switch item.ProductID {
				case 10:
					riceItem = item.ID
				case 11:
					gheeItem = item.ID
				}
			}

			var wg sync.WaitGroup
			errs := make([]error, 2)
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, errs[0] = f.svc.DecideItem(context.Background(), shopOwner, o.ID, riceItem, orderitem.ApprovalApproved, "")
			}()
			go func() {
				defer wg.Done()
				_, errs[1] = f.svc.DecideItem(context.Background(), shopOwner, o.ID, gheeItem, orderitem.ApprovalRejected, "out of stock")
			}()
			wg.Wait()

			for n, err := range errs {
				if err != nil {
					t.Fatalf("decision %d failed: %v", n, err)
				}
			}

			stored := f.store.storedOrder(t, o.ID)
			if stored.Status != order.StatusPaymentPending {
				t.Fatalf("expected PAYMENT_PENDING after both decisions, got %s", stored.Status)
			}
			if stored.SubtotalCents != 3000 {
				t.Errorf("expected subtotal 3000 over the approved item, got %d", stored.SubtotalCents)
			}

			names := f.store.eventNames(t)
			if names[len(names)-1] != events.OrderApproved {
				t.Errorf("expected aggregation to emit order.approved, got %v", names)
			}
		}
	})

	t.Run("decisions are final", func(t *testing.T) {
		f := newFixture()
		o := f.submit(t)
		itemID := o.OrderItems[0].ID

		if _, err := f.svc.DecideItem(context.Background(), shopOwner, o.ID, itemID, orderitem.ApprovalApproved, ""); err != nil {
			t.Fatalf("first decision failed: %v", err)
		}
		_, err := f.svc.DecideItem(context.Background(), shopOwner, o.ID, itemID, orderitem.ApprovalRejected, "changed mind")
		if !errors.Is(err, orderitem.ErrItemAlreadyDecided) {
			t.Errorf("expected ErrItemAlreadyDecided, got %v", err)
		}
	})

	t.Run("customer cannot decide items", func(t *testing.T) {
		f := newFixture()
		o := f.submit(t)

		_, err := f.svc.DecideItem(context.Background(), customer, o.ID, o.OrderItems[0].ID, orderitem.ApprovalApproved, "")
		if !errors.Is(err, actor.ErrNotAllowed) {
			t.Errorf("expected ErrNotAllowed, got %v", err)
		}
	})

	t.Run("no decisions after approval closed", func(t *testing.T) {
		f := newFixture()
		o := f.decideAll(t, f.submit(t))

		_, err := f.svc.DecideItem(context.Background(), shopOwner, o.ID, o.OrderItems[0].ID, orderitem.ApprovalApproved, "")
		if !errors.Is(err, order.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
	})
}

func TestPay(t *testing.T) {
	t.Run("settles the order and prepares delivery", func(t *testing.T) {
		f := newFixture()
		o := f.decideAll(t, f.submit(t))

		result, err := f.svc.Pay(context.Background(), customer, o.ID, "upi")
		if err != nil {
			t.Fatalf("pay failed: %v", err)
		}

		if result.Order.Status != order.StatusPaid {
			t.Errorf("expected PAID, got %s", result.Order.Status)
		}
		if !result.DeliveryPrepared {
			t.Error("expected delivery prepared")
		}
		if result.AlreadyPaid {
			t.Error("first payment should not report AlreadyPaid")
		}
		if f.dispatcher.calls != 1 {
			t.Errorf("expected one dispatch, got %d", f.dispatcher.calls)
		}

		// Only the approved rice line is consumed.
		if len(f.ledger.consumed) != 1 {
			t.Fatalf("expected 1 consume, got %d", len(f.ledger.consumed))
		}
		if f.ledger.consumed[0] != (ledgerCall{productID: 10, quantity: 3}) {
			t.Errorf("unexpected consume: %+v", f.ledger.consumed[0])
		}

		names := f.store.eventNames(t)
		if names[len(names)-1] != events.OrderPaid {
			t.Errorf("expected order.paid last, got %v", names)
		}
	})

	t.Run("delivery failure degrades but does not fail payment", func(t *testing.T) {
		f := newFixture()
		f.dispatcher.err = errors.New("no agent in range")
		o := f.decideAll(t, f.submit(t))

		result, err := f.svc.Pay(context.Background(), customer, o.ID, "upi")
		if err != nil {
			t.Fatalf("pay failed: %v", err)
		}
		if result.Order.Status != order.StatusPaid {
			t.Errorf("expected PAID despite dispatch failure, got %s", result.Order.Status)
		}
		if result.DeliveryPrepared {
			t.Error("expected DeliveryPrepared false")
		}
	})

	t.Run("repeat payment is a no-op success", func(t *testing.T) {
		f := newFixture()
		o := f.paidOrder(t)
		consumesAfterFirst := len(f.ledger.consumed)

		result, err := f.svc.Pay(context.Background(), customer, o.ID, "upi")
		if err != nil {
			t.Fatalf("repeat pay failed: %v", err)
		}
		if !result.AlreadyPaid {
			t.Error("expected AlreadyPaid")
		}
		if len(f.ledger.consumed) != consumesAfterFirst {
			t.Errorf("repeat payment consumed stock: %d -> %d", consumesAfterFirst, len(f.ledger.consumed))
		}
	})

	t.Run("cannot pay before approval completes", func(t *testing.T) {
		f := newFixture()
		o := f.submit(t)

		_, err := f.svc.Pay(context.Background(), customer, o.ID, "upi")
		if !errors.Is(err, order.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("payment method is required", func(t *testing.T) {
		f := newFixture()
		o := f.decideAll(t, f.submit(t))

		_, err := f.svc.Pay(context.Background(), customer, o.ID, "")
		if !errors.Is(err, order.ErrPaymentMethodRequired) {
			t.Errorf("expected ErrPaymentMethodRequired, got %v", err)
		}
	})

	t.Run("shortfall at payment leaves the order payable", func(t *testing.T) {
		f := newFixture()
		o := f.decideAll(t, f.submit(t))
		f.ledger.shortfalls = []product.Shortfall{{ProductID: 10, Requested: 3, Available: 1}}

		_, err := f.svc.Pay(context.Background(), customer, o.ID, "upi")
		if !errors.Is(err, product.ErrInsufficientStock) {
			t.Fatalf("expected ErrInsufficientStock, got %v", err)
		}
		if got := f.store.storedOrder(t, o.ID).Status; got != order.StatusPaymentPending {
			t.Errorf("expected order still PAYMENT_PENDING, got %s", got)
		}
	})

	t.Run("partial consumption is released on failure", func(t *testing.T) {
		f := newFixture()
		o := f.submit(t)

		// Approve both lines so payment consumes two products.
		for _, item := range o.OrderItems {
			if _, err := f.svc.DecideItem(context.Background(), shopOwner, o.ID, item.ID, orderitem.ApprovalApproved, ""); err != nil {
				t.Fatalf("approve failed: %v", err)
			}
		}

		f.ledger.failOnCall = 2
		f.ledger.failErr = product.ErrConcurrentModification

		_, err := f.svc.Pay(context.Background(), customer, o.ID, "upi")
		if !errors.Is(err, product.ErrConcurrentModification) {
			t.Fatalf("expected ErrConcurrentModification, got %v", err)
		}

		if len(f.ledger.consumed) != 1 {
			t.Fatalf("expected 1 successful consume, got %d", len(f.ledger.consumed))
		}
		if len(f.ledger.released) != 1 || f.ledger.released[0] != f.ledger.consumed[0] {
			t.Errorf("expected the consumed line released, got %+v", f.ledger.released)
		}
		if got := f.store.storedOrder(t, o.ID).Status; got != order.StatusPaymentPending {
			t.Errorf("expected order still PAYMENT_PENDING, got %s", got)
		}
	})

	t.Run("another customer cannot pay", func(t *testing.T) {
		f := newFixture()
		o := f.decideAll(t, f.submit(t))

		stranger := actor.Actor{UserID: 8, Role: actor.RoleCustomer}
		_, err := f.svc.Pay(context.Background(), stranger, o.ID, "upi")
		if !errors.Is(err, actor.ErrNotAllowed) {
			t.Errorf("expected ErrNotAllowed, got %v", err)
		}
	})
}

func TestCancel(t *testing.T) {
	t.Run("requires a reason", func(t *testing.T) {
		f := newFixture()
		o := f.submit(t)

		_, err := f.svc.Cancel(context.Background(), customer, o.ID, "")
		if !errors.Is(err, order.ErrCancelReasonRequired) {
			t.Errorf("expected ErrCancelReasonRequired, got %v", err)
		}
	})

	t.Run("cancels before payment", func(t *testing.T) {
		f := newFixture()
		o := f.submit(t)

		cancelled, err := f.svc.Cancel(context.Background(), customer, o.ID, "ordered twice by mistake")
		if err != nil {
			t.Fatalf("cancel failed: %v", err)
		}
		if cancelled.Status != order.StatusCancelled {
			t.Errorf("expected CANCELLED, got %s", cancelled.Status)
		}
		if cancelled.CancellationReason != "ordered twice by mistake" {
			t.Errorf("unexpected reason: %q", cancelled.CancellationReason)
		}

		names := f.store.eventNames(t)
		if names[len(names)-1] != events.OrderCancelled {
			t.Errorf("expected order.cancelled last, got %v", names)
		}
	})

	t.Run("paid orders cannot be cancelled", func(t *testing.T) {
		f := newFixture()
		o := f.paidOrder(t)

		_, err := f.svc.Cancel(context.Background(), customer, o.ID, "too slow")
		if !errors.Is(err, order.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
		if got := f.store.storedOrder(t, o.ID).Status; got != order.StatusPaid {
			t.Errorf("expected order still PAID, got %s", got)
		}
	})
}

func TestAdvanceFulfillment(t *testing.T) {
	t.Run("walks the fulfillment steps in order", func(t *testing.T) {
		f := newFixture()
		o := f.paidOrder(t)
		ctx := context.Background()

		if _, err := f.svc.AdvanceFulfillment(ctx, shopOwner, o.ID, order.StatusPreparing); err != nil {
			t.Fatalf("PREPARING failed: %v", err)
		}
		if _, err := f.svc.AdvanceFulfillment(ctx, shopOwner, o.ID, order.StatusReady); err != nil {
			t.Fatalf("READY failed: %v", err)
		}
		delivered, err := f.svc.AdvanceFulfillment(ctx, courier, o.ID, order.StatusDelivered)
		if err != nil {
			t.Fatalf("DELIVERED failed: %v", err)
		}
		if delivered.Status != order.StatusDelivered {
			t.Errorf("expected DELIVERED, got %s", delivered.Status)
		}

		names := f.store.eventNames(t)
		if names[len(names)-1] != events.OrderDelivered {
			t.Errorf("expected order.delivered last, got %v", names)
		}
	})

	t.Run("steps never skip", func(t *testing.T) {
		f := newFixture()
		o := f.paidOrder(t)

		_, err := f.svc.AdvanceFulfillment(context.Background(), shopOwner, o.ID, order.StatusReady)
		if !errors.Is(err, order.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("steps never go back", func(t *testing.T) {
		f := newFixture()
		o := f.paidOrder(t)
		ctx := context.Background()

		if _, err := f.svc.AdvanceFulfillment(ctx, shopOwner, o.ID, order.StatusPreparing); err != nil {
			t.Fatalf("PREPARING failed: %v", err)
		}
		if _, err := f.svc.AdvanceFulfillment(ctx, shopOwner, o.ID, order.StatusReady); err != nil {
			t.Fatalf("READY failed: %v", err)
		}
		_, err := f.svc.AdvanceFulfillment(ctx, shopOwner, o.ID, order.StatusPreparing)
		if !errors.Is(err, order.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("only a courier confirms the handoff", func(t *testing.T) {
		f := newFixture()
		o := f.paidOrder(t)
		ctx := context.Background()

		if _, err := f.svc.AdvanceFulfillment(ctx, shopOwner, o.ID, order.StatusPreparing); err != nil {
			t.Fatalf("PREPARING failed: %v", err)
		}
		if _, err := f.svc.AdvanceFulfillment(ctx, shopOwner, o.ID, order.StatusReady); err != nil {
			t.Fatalf("READY failed: %v", err)
		}
		_, err := f.svc.AdvanceFulfillment(ctx, shopOwner, o.ID, order.StatusDelivered)
		if !errors.Is(err, actor.ErrNotAllowed) {
			t.Errorf("expected ErrNotAllowed, got %v", err)
		}
	})

	t.Run("cancellation is not a fulfillment step", func(t *testing.T) {
		f := newFixture()
		o := f.paidOrder(t)

		_, err := f.svc.AdvanceFulfillment(context.Background(), shopOwner, o.ID, order.StatusCancelled)
		if !errors.Is(err, order.ErrInvalidStatus) {
			t.Errorf("expected ErrInvalidStatus, got %v", err)
		}
	})
}

func TestGetOrders(t *testing.T) {
	f := newFixture()
	first := f.submit(t)
	f.submit(t)

	orders, err := f.svc.GetOrders(context.Background(), &order.QueryOrdersModel{
		CustomerIds: []int64{customer.UserID},
	})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}
	for _, o := range orders {
		if len(o.OrderItems) != len(first.OrderItems) {
			t.Errorf("expected items stitched onto order %d, got %d", o.ID, len(o.OrderItems))
		}
	}
}
