// Package auth реализует регистрацию и вход: учётные данные хранятся локально,
// профиль пользователя создаётся в user-service сагой с компенсацией.
package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/ordermart-system/internal/model"
	"github.com/mmeshcher/ordermart-system/internal/repository"
	"github.com/mmeshcher/ordermart-system/internal/userclient"
)

// ErrInvalidCredentials возвращается при неверной паре логин/пароль.
var ErrInvalidCredentials = errors.New("invalid login or password")

// Repository описывает хранилище учётных данных.
type Repository interface {
	Close() error
	CreateCredential(ctx context.Context, cred *model.Credential) error
	GetCredentialByLogin(ctx context.Context, login string) (*model.Credential, error)
}

// RemoteUsers описывает операции user-service, участвующие в саге.
type RemoteUsers interface {
	CreateUser(ctx context.Context, req userclient.CreateUserRequest) (*userclient.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

// RegisterRequest — входные данные регистрации.
type RegisterRequest struct {
	Login    string
	Password string
	Name     string
	Surname  string
	Email    string
}

// Service содержит бизнес-логику auth-service.
type Service struct {
	repo   Repository
	users  RemoteUsers
	tokens *TokenManager
	logger *zap.Logger
}

// NewService создаёт сервис аутентификации.
func NewService(repo Repository, users RemoteUsers, tokens *TokenManager, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		users:  users,
		tokens: tokens,
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

// Register проводит регистрацию в два шага: профиль в user-service, затем
// учётные данные локально. При сбое второго шага удалённый профиль удаляется
// компенсацией, сбой самой компенсации логируется и не подменяет исходную
// ошибку — осиротевший профиль чинится вручную или повторной регистрацией.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*model.Credential, error) {
	if req.Login == "" || req.Password == "" {
		return nil, ErrInvalidCredentials
	}

	// Ранний выход по занятому логину, чтобы не создавать удалённый профиль,
	// который заведомо придётся компенсировать. Гонку двух регистраций
	// всё равно ловит уникальный индекс.
	if _, err := s.repo.GetCredentialByLogin(ctx, req.Login); err == nil {
		return nil, repository.ErrCredentialExists
	} else if !errors.Is(err, repository.ErrCredentialNotFound) {
		return nil, err
	}

	user, err := s.users.CreateUser(ctx, userclient.CreateUserRequest{
		Name:    req.Name,
		Surname: req.Surname,
		Email:   req.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("create remote user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.compensate(ctx, user.ID)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	cred := &model.Credential{
		UserID:       user.ID,
		Login:        req.Login,
		PasswordHash: string(hash),
		Role:         model.RoleUser,
	}
	if err := s.repo.CreateCredential(ctx, cred); err != nil {
		s.compensate(ctx, user.ID)
		return nil, err
	}

	s.logger.Info("user registered",
		zap.String("login", req.Login),
		zap.Int64("userID", user.ID),
	)
	return cred, nil
}

// compensate удаляет удалённый профиль по принципу best-effort.
func (s *Service) compensate(ctx context.Context, userID int64) {
	if err := s.users.DeleteUser(ctx, userID); err != nil {
		s.logger.Error("registration compensation failed, remote user orphaned",
			zap.Int64("userID", userID),
			zap.Error(err),
		)
	}
}

// Login проверяет пару логин/пароль и выдаёт пару токенов. Отсутствие логина
// и неверный пароль неразличимы для вызывающего.
func (s *Service) Login(ctx context.Context, login, password string) (TokenPair, error) {
	cred, err := s.repo.GetCredentialByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, repository.ErrCredentialNotFound) {
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return TokenPair{}, ErrInvalidCredentials
	}

	return s.tokens.Issue(cred.UserID, cred.Role)
}

// Refresh выдаёт новую пару токенов по валидному refresh-токену.
func (s *Service) Refresh(_ context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.tokens.Parse(refreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	return s.tokens.Issue(claims.UserID, claims.Role)
}

// Validate проверяет токен доступа. Используется шлюзом, который после
// проверки пробрасывает идентичность заголовками нижестоящим сервисам.
func (s *Service) Validate(_ context.Context, accessToken string) (*Claims, error) {
	return s.tokens.Parse(accessToken)
}
