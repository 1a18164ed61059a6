// Package user реализует профили пользователей и их платёжные карты.
// Чтение по идентификатору идёт через кэш: профиль запрашивает каждый
// заказ при обогащении, и без кэша user-service становится узким местом.
package user

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/ordermart-system/internal/cache"
	"github.com/mmeshcher/ordermart-system/internal/model"
	"github.com/mmeshcher/ordermart-system/internal/query"
	"github.com/mmeshcher/ordermart-system/internal/validation"
)

// ErrInvalidCard возвращается на карту с номером, не проходящим проверку Луна.
var ErrInvalidCard = errors.New("invalid card number")

// Repository описывает хранилище профилей и карт.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
	DeleteUser(ctx context.Context, id int64) error
	SetUserActive(ctx context.Context, id int64, active bool) (*model.User, error)
	ListUsers(ctx context.Context, filter query.UserFilter, page query.Page) ([]model.User, int64, error)
	CreateCard(ctx context.Context, card *model.PaymentCard) error
	ListCardsByUser(ctx context.Context, userID int64) ([]model.PaymentCard, error)
	DeleteCard(ctx context.Context, id int64) error
}

// Service содержит бизнес-логику user-service.
type Service struct {
	repo   Repository
	cache  *cache.Cache[int64, model.User]
	logger *zap.Logger
}

// NewService создаёт сервис пользователей. При нулевом TTL кэш живёт
// 30 секунд: устаревание терпимо, запись всё равно вытесняет ключ.
func NewService(repo Repository, cacheTTL time.Duration, logger *zap.Logger) *Service {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &Service{
		repo:   repo,
		cache:  cache.New[int64, model.User](cacheTTL),
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

// Create создаёт профиль. Новый пользователь сразу активен.
func (s *Service) Create(ctx context.Context, user *model.User) error {
	user.Active = true
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return err
	}

	s.logger.Info("user created", zap.Int64("userID", user.ID), zap.String("email", user.Email))
	return nil
}

// GetByID возвращает профиль, при попадании — из кэша.
func (s *Service) GetByID(ctx context.Context, id int64) (*model.User, error) {
	if cached, ok := s.cache.Get(id); ok {
		return &cached, nil
	}

	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cache.Put(id, *user)
	return user, nil
}

// Update обновляет профиль и вытесняет его из кэша, чтобы следующее чтение
// увидело свежую запись, а не пережиток TTL.
func (s *Service) Update(ctx context.Context, user *model.User) error {
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return err
	}

	s.cache.Evict(user.ID)
	s.logger.Info("user updated", zap.Int64("userID", user.ID))
	return nil
}

// Delete удаляет профиль.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return err
	}

	s.cache.Evict(id)
	s.logger.Info("user deleted", zap.Int64("userID", id))
	return nil
}

// SetActive включает или выключает профиль. Перевод в то же состояние —
// конфликт, его репортит репозиторий.
func (s *Service) SetActive(ctx context.Context, id int64, active bool) (*model.User, error) {
	user, err := s.repo.SetUserActive(ctx, id, active)
	if err != nil {
		return nil, err
	}

	s.cache.Evict(id)
	s.logger.Info("user activity changed", zap.Int64("userID", id), zap.Bool("active", active))
	return user, nil
}

// List возвращает страницу профилей по фильтру.
func (s *Service) List(ctx context.Context, filter query.UserFilter, page query.Page) ([]model.User, int64, error) {
	return s.repo.ListUsers(ctx, filter, page)
}

// AddCard привязывает карту к пользователю после проверки номера.
func (s *Service) AddCard(ctx context.Context, card *model.PaymentCard) error {
	if !validation.IsValidCardNumber(card.Number) {
		return ErrInvalidCard
	}

	if _, err := s.repo.GetUserByID(ctx, card.UserID); err != nil {
		return err
	}

	if err := s.repo.CreateCard(ctx, card); err != nil {
		return err
	}

	s.logger.Info("card added", zap.Int64("userID", card.UserID), zap.Int64("cardID", card.ID))
	return nil
}

// ListCards возвращает карты пользователя.
func (s *Service) ListCards(ctx context.Context, userID int64) ([]model.PaymentCard, error) {
	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.ListCardsByUser(ctx, userID)
}

// DeleteCard удаляет карту.
func (s *Service) DeleteCard(ctx context.Context, id int64) error {
	return s.repo.DeleteCard(ctx, id)
}
