// Package order реализует сборку заказов: позиции и цены принадлежат сервису,
// данные пользователя запрашиваются у user-service через устойчивый клиент.
package order

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/ordermart-system/internal/model"
	"github.com/mmeshcher/ordermart-system/internal/pricing"
	"github.com/mmeshcher/ordermart-system/internal/query"
	"github.com/mmeshcher/ordermart-system/internal/repository"
	"github.com/mmeshcher/ordermart-system/internal/userclient"
)

// ErrEmptyLines возвращается на попытку создать заказ без позиций.
var (
	ErrEmptyLines = errors.New("order must contain at least one line")
	// ErrInvalidQuantity возвращается при количестве меньше единицы.
	ErrInvalidQuantity = errors.New("line quantity must be positive")
)

// Ограничение на параллельные обращения к user-service при обогащении
// страницы: без него страница заказов может залить breaker запросами.
const enrichConcurrency = 4

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateOrder(ctx context.Context, order *model.Order) error
	GetOrderByID(ctx context.Context, id int64) (*model.Order, error)
	ReplaceOrder(ctx context.Context, order *model.Order) error
	SoftDeleteOrder(ctx context.Context, id int64) (*model.Order, error)
	ListOrders(ctx context.Context, filter query.OrderFilter, page query.Page) ([]model.Order, int64, error)
	ListOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status model.OrderStatus) error
	CreateItem(ctx context.Context, item *model.Item) error
	GetItemByID(ctx context.Context, id int64) (*model.Item, error)
	GetItemsByIDs(ctx context.Context, ids []int64) (map[int64]model.Item, error)
	ListItems(ctx context.Context) ([]model.Item, error)
}

// UserProvider описывает контракт получения данных пользователя.
type UserProvider interface {
	GetUserByID(ctx context.Context, id int64) (*userclient.User, error)
}

// LineRequest описывает запрошенную позицию заказа.
type LineRequest struct {
	ItemID   int64
	Quantity int32
}

// EnrichedOrder объединяет заказ с данными его владельца.
type EnrichedOrder struct {
	Order model.Order
	User  *userclient.User
}

// Service содержит бизнес-логику order-service.
type Service struct {
	repo   Repository
	users  UserProvider
	logger *zap.Logger
}

// NewService создаёт сервис заказов.
func NewService(repo Repository, users UserProvider, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		users:  users,
		logger: logger,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Create создаёт заказ. Все позиции резолвятся до записи: отсутствие любого
// товара отклоняет операцию целиком, частичный заказ не сохраняется.
// Обогащение данными пользователя выполняется после фиксации транзакции
// и не влияет на успех создания.
func (s *Service) Create(ctx context.Context, userID int64, lines []LineRequest) (*EnrichedOrder, error) {
	modelLines, total, err := s.buildLines(ctx, lines)
	if err != nil {
		return nil, err
	}

	order := &model.Order{
		UserID:     userID,
		Status:     model.OrderStatusPending,
		TotalPrice: total,
		Lines:      modelLines,
	}

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	s.logger.Info("order created",
		zap.Int64("orderID", order.ID),
		zap.Int64("userID", userID),
		zap.String("total", total.String()),
	)

	return &EnrichedOrder{Order: *order, User: s.enrichOwner(ctx, userID)}, nil
}

// Update заменяет список позиций целиком и пересчитывает итог. Статус
// перезаписывается, только если передан. Удалённый заказ менять нельзя.
func (s *Service) Update(ctx context.Context, id int64, lines []LineRequest, status *model.OrderStatus) (*EnrichedOrder, error) {
	order, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if order.Deleted {
		return nil, repository.ErrOrderDeleted
	}

	modelLines, total, err := s.buildLines(ctx, lines)
	if err != nil {
		return nil, err
	}

	for i := range modelLines {
		modelLines[i].OrderID = order.ID
	}

	order.Lines = modelLines
	order.TotalPrice = total
	if status != nil {
		order.Status = *status
	}

	if err := s.repo.ReplaceOrder(ctx, order); err != nil {
		return nil, err
	}

	s.logger.Info("order updated", zap.Int64("orderID", id))

	return &EnrichedOrder{Order: *order, User: s.enrichOwner(ctx, order.UserID)}, nil
}

// Delete помечает заказ удалённым, сохраняя его и позиции для выборок.
func (s *Service) Delete(ctx context.Context, id int64) (*model.Order, error) {
	order, err := s.repo.SoftDeleteOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info("order soft deleted", zap.Int64("orderID", id))
	return order, nil
}

// GetByID возвращает заказ с данными владельца. Доменное отсутствие
// пользователя не маскируется.
func (s *Service) GetByID(ctx context.Context, id int64) (*EnrichedOrder, error) {
	order, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, order.UserID)
	if err != nil {
		return nil, err
	}

	return &EnrichedOrder{Order: *order, User: user}, nil
}

// FindAll возвращает страницу заказов по фильтру. Пользователи запрашиваются
// по одному разу на уникальный идентификатор, параллельно и с ограничением,
// чтобы не перегружать учёт отказов breaker.
func (s *Service) FindAll(ctx context.Context, filter query.OrderFilter, page query.Page) ([]EnrichedOrder, int64, error) {
	orders, total, err := s.repo.ListOrders(ctx, filter, page)
	if err != nil {
		return nil, 0, err
	}

	users := s.enrichMany(ctx, distinctUserIDs(orders))

	result := make([]EnrichedOrder, 0, len(orders))
	for _, o := range orders {
		result = append(result, EnrichedOrder{Order: o, User: users[o.UserID]})
	}

	return result, total, nil
}

// FindByUserID возвращает заказы пользователя. Пользователь запрашивается
// один раз и переиспользуется для всех заказов — это основная точка,
// ограничивающая поток запросов через breaker.
func (s *Service) FindByUserID(ctx context.Context, userID int64) ([]EnrichedOrder, error) {
	orders, err := s.repo.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := make([]EnrichedOrder, 0, len(orders))
	for _, o := range orders {
		result = append(result, EnrichedOrder{Order: o, User: user})
	}

	return result, nil
}

// ApplyPaymentOutcome применяет исход платежа к заказу. Присваивание
// абсолютное, поэтому повторная доставка события оставляет тот же статус.
func (s *Service) ApplyPaymentOutcome(ctx context.Context, orderID int64, paymentStatus string) error {
	status := model.OrderStatusCanceled
	if paymentStatus == string(model.PaymentStatusSuccess) {
		status = model.OrderStatusConfirmed
	}

	if err := s.repo.UpdateOrderStatus(ctx, orderID, status); err != nil {
		return err
	}

	s.logger.Info("order status updated from payment",
		zap.Int64("orderID", orderID),
		zap.String("status", string(status)),
	)
	return nil
}

// CreateItem создаёт товар каталога.
func (s *Service) CreateItem(ctx context.Context, item *model.Item) error {
	return s.repo.CreateItem(ctx, item)
}

// GetItem возвращает товар по идентификатору.
func (s *Service) GetItem(ctx context.Context, id int64) (*model.Item, error) {
	return s.repo.GetItemByID(ctx, id)
}

// ListItems возвращает каталог целиком.
func (s *Service) ListItems(ctx context.Context) ([]model.Item, error) {
	return s.repo.ListItems(ctx)
}

// buildLines резолвит товары и считает итог. Цена фиксируется из каталога
// на момент вызова.
func (s *Service) buildLines(ctx context.Context, lines []LineRequest) ([]model.OrderLine, decimal.Decimal, error) {
	if len(lines) == 0 {
		return nil, decimal.Zero, ErrEmptyLines
	}

	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		if line.Quantity < 1 {
			return nil, decimal.Zero, fmt.Errorf("%w: item %d", ErrInvalidQuantity, line.ItemID)
		}
		ids = append(ids, line.ItemID)
	}

	items, err := s.repo.GetItemsByIDs(ctx, ids)
	if err != nil {
		return nil, decimal.Zero, err
	}

	modelLines := make([]model.OrderLine, 0, len(lines))
	priceLines := make([]pricing.Line, 0, len(lines))
	for _, line := range lines {
		item, ok := items[line.ItemID]
		if !ok {
			return nil, decimal.Zero, fmt.Errorf("%w: id %d", repository.ErrItemNotFound, line.ItemID)
		}

		modelLines = append(modelLines, model.OrderLine{
			ItemID:    item.ID,
			Quantity:  line.Quantity,
			UnitPrice: item.Price,
		})
		priceLines = append(priceLines, pricing.Line{UnitPrice: item.Price, Quantity: line.Quantity})
	}

	return modelLines, pricing.ComputeTotal(priceLines), nil
}

// enrichOwner возвращает данные владельца заказа для ответа, который обязан
// состояться: заказ уже зафиксирован, поэтому и доменное отсутствие
// пользователя деградирует до заглушки.
func (s *Service) enrichOwner(ctx context.Context, userID int64) *userclient.User {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		s.logger.Warn("owner enrichment degraded",
			zap.Int64("userID", userID),
			zap.Error(err),
		)
		return userclient.FallbackUser(userID)
	}
	return user
}

func (s *Service) enrichMany(ctx context.Context, userIDs []int64) map[int64]*userclient.User {
	users := make(map[int64]*userclient.User, len(userIDs))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichConcurrency)

	for _, id := range userIDs {
		g.Go(func() error {
			user := s.enrichOwner(gctx, id)
			mu.Lock()
			users[id] = user
			mu.Unlock()
			return nil
		})
	}

	// Горутины ошибок не возвращают: деградация уже учтена в enrichOwner.
	_ = g.Wait()

	return users
}

func distinctUserIDs(orders []model.Order) []int64 {
	seen := make(map[int64]struct{}, len(orders))
	var ids []int64
	for _, o := range orders {
		if _, ok := seen[o.UserID]; !ok {
			seen[o.UserID] = struct{}{}
			ids = append(ids, o.UserID)
		}
	}
	return ids
}
