package order

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/ordermart-system/internal/model"
	"github.com/mmeshcher/ordermart-system/internal/query"
	"github.com/mmeshcher/ordermart-system/internal/repository"
	"github.com/mmeshcher/ordermart-system/internal/userclient"
)

type stubRepo struct {
	items  map[int64]model.Item
	orders map[int64]*model.Order
	nextID int64

	createdOrders  []*model.Order
	statusUpdates  []model.OrderStatus
	statusUpdateID int64
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		items:  make(map[int64]model.Item),
		orders: make(map[int64]*model.Order),
		nextID: 1,
	}
}

func (r *stubRepo) Close() error { return nil }

func (r *stubRepo) CreateOrder(_ context.Context, order *model.Order) error {
	order.ID = r.nextID
	r.nextID++
	copied := *order
	r.orders[order.ID] = &copied
	r.createdOrders = append(r.createdOrders, &copied)
	return nil
}

func (r *stubRepo) GetOrderByID(_ context.Context, id int64) (*model.Order, error) {
	order, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	copied := *order
	return &copied, nil
}

func (r *stubRepo) ReplaceOrder(_ context.Context, order *model.Order) error {
	if _, ok := r.orders[order.ID]; !ok {
		return repository.ErrOrderNotFound
	}
	copied := *order
	r.orders[order.ID] = &copied
	return nil
}

func (r *stubRepo) SoftDeleteOrder(_ context.Context, id int64) (*model.Order, error) {
	order, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	if order.Deleted {
		return nil, repository.ErrOrderDeleted
	}
	order.Deleted = true
	copied := *order
	return &copied, nil
}

func (r *stubRepo) ListOrders(_ context.Context, filter query.OrderFilter, _ query.Page) ([]model.Order, int64, error) {
	var result []model.Order
	for _, order := range r.orders {
		if filter.Matches(*order) {
			result = append(result, *order)
		}
	}
	return result, int64(len(result)), nil
}

func (r *stubRepo) ListOrdersByUser(_ context.Context, userID int64) ([]model.Order, error) {
	var result []model.Order
	for _, order := range r.orders {
		if order.UserID == userID && !order.Deleted {
			result = append(result, *order)
		}
	}
	return result, nil
}

func (r *stubRepo) UpdateOrderStatus(_ context.Context, id int64, status model.OrderStatus) error {
	order, ok := r.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	order.Status = status
	r.statusUpdateID = id
	r.statusUpdates = append(r.statusUpdates, status)
	return nil
}

func (r *stubRepo) CreateItem(_ context.Context, item *model.Item) error {
	item.ID = r.nextID
	r.nextID++
	r.items[item.ID] = *item
	return nil
}

func (r *stubRepo) GetItemByID(_ context.Context, id int64) (*model.Item, error) {
	item, ok := r.items[id]
	if !ok {
		return nil, repository.ErrItemNotFound
	}
	return &item, nil
}

func (r *stubRepo) GetItemsByIDs(_ context.Context, ids []int64) (map[int64]model.Item, error) {
	result := make(map[int64]model.Item)
	for _, id := range ids {
		if item, ok := r.items[id]; ok {
			result[id] = item
		}
	}
	return result, nil
}

func (r *stubRepo) ListItems(_ context.Context) ([]model.Item, error) {
	var result []model.Item
	for _, item := range r.items {
		result = append(result, item)
	}
	return result, nil
}

type stubUsers struct {
	calls atomic.Int64
	user  *userclient.User
	err   error
}

func (s *stubUsers) GetUserByID(_ context.Context, id int64) (*userclient.User, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	if s.user != nil {
		return s.user, nil
	}
	return &userclient.User{ID: id, Name: "Иван", Surname: "Петров", Email: "ivan@example.com"}, nil
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func newTestService(t *testing.T, repo *stubRepo, users UserProvider) *Service {
	t.Helper()
	return NewService(repo, users, zap.NewNop())
}

func seedItems(t *testing.T, repo *stubRepo) {
	t.Helper()
	ctx := context.Background()
	if err := repo.CreateItem(ctx, &model.Item{Name: "клавиатура", Price: mustDecimal(t, "100.00")}); err != nil {
		t.Fatal(err)
	}
	if err := repo.CreateItem(ctx, &model.Item{Name: "коврик", Price: mustDecimal(t, "50.50")}); err != nil {
		t.Fatal(err)
	}
}

func TestCreateOrderComputesTotal(t *testing.T) {
	repo := newStubRepo()
	seedItems(t, repo)
	svc := newTestService(t, repo, &stubUsers{})

	enriched, err := svc.Create(context.Background(), 7, []LineRequest{
		{ItemID: 1, Quantity: 2},
		{ItemID: 2, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if got, want := enriched.Order.TotalPrice.String(), "250.50"; got != want {
		t.Errorf("total = %s, want %s", got, want)
	}
	if enriched.Order.Status != model.OrderStatusPending {
		t.Errorf("status = %s, want %s", enriched.Order.Status, model.OrderStatusPending)
	}
	if got := enriched.Order.Lines[0].UnitPrice.String(); got != "100.00" && got != "100" {
		t.Errorf("unit price snapshot = %s", got)
	}
	if enriched.User == nil || enriched.User.Name != "Иван" {
		t.Errorf("enriched user = %+v", enriched.User)
	}
}

func TestCreateOrderEmptyLines(t *testing.T) {
	svc := newTestService(t, newStubRepo(), &stubUsers{})

	_, err := svc.Create(context.Background(), 1, nil)
	if !errors.Is(err, ErrEmptyLines) {
		t.Fatalf("err = %v, want ErrEmptyLines", err)
	}
}

func TestCreateOrderUnknownItemRejectsWhole(t *testing.T) {
	repo := newStubRepo()
	seedItems(t, repo)
	svc := newTestService(t, repo, &stubUsers{})

	_, err := svc.Create(context.Background(), 1, []LineRequest{
		{ItemID: 1, Quantity: 1},
		{ItemID: 999, Quantity: 1},
	})
	if !errors.Is(err, repository.ErrItemNotFound) {
		t.Fatalf("err = %v, want ErrItemNotFound", err)
	}
	if len(repo.createdOrders) != 0 {
		t.Errorf("partial order was persisted: %d", len(repo.createdOrders))
	}
}

func TestCreateOrderDegradesWhenUserServiceFails(t *testing.T) {
	repo := newStubRepo()
	seedItems(t, repo)
	users := &stubUsers{err: userclient.ErrUnavailable}
	svc := newTestService(t, repo, users)

	enriched, err := svc.Create(context.Background(), 7, []LineRequest{{ItemID: 1, Quantity: 1}})
	if err != nil {
		t.Fatalf("create must not fail on enrichment: %v", err)
	}

	if len(repo.createdOrders) != 1 {
		t.Fatalf("order was not persisted")
	}
	if enriched.User.Name != "unknown" || enriched.User.Email != "unavailable" {
		t.Errorf("degraded user = %+v", enriched.User)
	}
}

func TestUpdateDeletedOrderRejected(t *testing.T) {
	repo := newStubRepo()
	seedItems(t, repo)
	svc := newTestService(t, repo, &stubUsers{})

	enriched, err := svc.Create(context.Background(), 1, []LineRequest{{ItemID: 1, Quantity: 1}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Delete(context.Background(), enriched.Order.ID); err != nil {
		t.Fatal(err)
	}

	_, err = svc.Update(context.Background(), enriched.Order.ID, []LineRequest{{ItemID: 2, Quantity: 1}}, nil)
	if !errors.Is(err, repository.ErrOrderDeleted) {
		t.Fatalf("err = %v, want ErrOrderDeleted", err)
	}
}

func TestUpdateReplacesLinesAndRecomputesTotal(t *testing.T) {
	repo := newStubRepo()
	seedItems(t, repo)
	svc := newTestService(t, repo, &stubUsers{})

	created, err := svc.Create(context.Background(), 1, []LineRequest{{ItemID: 1, Quantity: 2}})
	if err != nil {
		t.Fatal(err)
	}

	status := model.OrderStatusConfirmed
	updated, err := svc.Update(context.Background(), created.Order.ID, []LineRequest{{ItemID: 2, Quantity: 3}}, &status)
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if got, want := updated.Order.TotalPrice.String(), "151.50"; got != want {
		t.Errorf("total = %s, want %s", got, want)
	}
	if len(updated.Order.Lines) != 1 || updated.Order.Lines[0].ItemID != 2 {
		t.Errorf("lines were not replaced: %+v", updated.Order.Lines)
	}
	if updated.Order.Status != model.OrderStatusConfirmed {
		t.Errorf("status = %s", updated.Order.Status)
	}
}

func TestDeleteTwiceConflicts(t *testing.T) {
	repo := newStubRepo()
	seedItems(t, repo)
	svc := newTestService(t, repo, &stubUsers{})

	created, err := svc.Create(context.Background(), 1, []LineRequest{{ItemID: 1, Quantity: 1}})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Delete(context.Background(), created.Order.ID); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	_, err = svc.Delete(context.Background(), created.Order.ID)
	if !errors.Is(err, repository.ErrOrderDeleted) {
		t.Fatalf("second delete err = %v, want ErrOrderDeleted", err)
	}
}

func TestFindByUserIDSingleLookup(t *testing.T) {
	repo := newStubRepo()
	seedItems(t, repo)
	users := &stubUsers{}
	svc := newTestService(t, repo, users)

	for range 3 {
		if _, err := svc.Create(context.Background(), 42, []LineRequest{{ItemID: 1, Quantity: 1}}); err != nil {
			t.Fatal(err)
		}
	}
	users.calls.Store(0)

	orders, err := svc.FindByUserID(context.Background(), 42)
	if err != nil {
		t.Fatalf("find: %v", err)
	}

	if len(orders) != 3 {
		t.Fatalf("orders = %d, want 3", len(orders))
	}
	if got := users.calls.Load(); got != 1 {
		t.Errorf("user lookups = %d, want 1", got)
	}
	for _, o := range orders {
		if o.User == nil || o.User.ID != 42 {
			t.Errorf("order %d has user %+v", o.Order.ID, o.User)
		}
	}
}

func TestFindByUserIDSurfacesNotFound(t *testing.T) {
	repo := newStubRepo()
	users := &stubUsers{err: userclient.ErrUserNotFound}
	svc := newTestService(t, repo, users)

	_, err := svc.FindByUserID(context.Background(), 42)
	if !errors.Is(err, userclient.ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

func TestFindAllDistinctUserLookups(t *testing.T) {
	repo := newStubRepo()
	seedItems(t, repo)
	users := &stubUsers{}
	svc := newTestService(t, repo, users)

	for _, userID := range []int64{1, 1, 2, 2, 2, 3} {
		if _, err := svc.Create(context.Background(), userID, []LineRequest{{ItemID: 1, Quantity: 1}}); err != nil {
			t.Fatal(err)
		}
	}
	users.calls.Store(0)

	orders, _, err := svc.FindAll(context.Background(), query.OrderFilter{}, query.Page{}.Normalize())
	if err != nil {
		t.Fatalf("find all: %v", err)
	}

	if len(orders) != 6 {
		t.Fatalf("orders = %d, want 6", len(orders))
	}
	if got := users.calls.Load(); got != 3 {
		t.Errorf("user lookups = %d, want 3 (distinct users)", got)
	}
}

func TestApplyPaymentOutcomeIdempotent(t *testing.T) {
	repo := newStubRepo()
	seedItems(t, repo)
	svc := newTestService(t, repo, &stubUsers{})

	created, err := svc.Create(context.Background(), 1, []LineRequest{{ItemID: 1, Quantity: 1}})
	if err != nil {
		t.Fatal(err)
	}

	for range 2 {
		if err := svc.ApplyPaymentOutcome(context.Background(), created.Order.ID, "SUCCESS"); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}

	order, err := repo.GetOrderByID(context.Background(), created.Order.ID)
	if err != nil {
		t.Fatal(err)
	}
	if order.Status != model.OrderStatusConfirmed {
		t.Errorf("status = %s, want CONFIRMED", order.Status)
	}
	for _, s := range repo.statusUpdates {
		if s != model.OrderStatusConfirmed {
			t.Errorf("non-absolute status assignment: %s", s)
		}
	}
}

func TestApplyPaymentOutcomeFailedCancels(t *testing.T) {
	repo := newStubRepo()
	seedItems(t, repo)
	svc := newTestService(t, repo, &stubUsers{})

	created, err := svc.Create(context.Background(), 1, []LineRequest{{ItemID: 1, Quantity: 1}})
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.ApplyPaymentOutcome(context.Background(), created.Order.ID, "FAILED"); err != nil {
		t.Fatalf("apply: %v", err)
	}

	order, err := repo.GetOrderByID(context.Background(), created.Order.ID)
	if err != nil {
		t.Fatal(err)
	}
	if order.Status != model.OrderStatusCanceled {
		t.Errorf("status = %s, want CANCELED", order.Status)
	}
}
