// Package userclient предоставляет устойчивый клиент user-service.
//
// Клиент различает доменное отсутствие (404, ErrUserNotFound) и отказ
// доступности (таймаут, обрыв соединения, 5xx, открытый breaker). Первое
// никогда не маскируется; второе на пути чтения подменяется деградационным
// пользователем, чтобы вызывающий сервис мог ответить по принципу best effort.
package userclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/mmeshcher/ordermart-system/internal/metrics"
)

// ErrUserNotFound возвращается, когда user-service отвечает 404.
var (
	ErrUserNotFound = errors.New("remote user not found")
	// ErrUserExists возвращается, когда user-service отвечает 409 на создание.
	ErrUserExists = errors.New("remote user already exists")
	// ErrUnavailable возвращается на пути записи, когда user-service недоступен.
	ErrUnavailable = errors.New("user service unavailable")
)

// User описывает ответ user-service по одному пользователю.
type User struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Email   string `json:"email"`
}

// CreateUserRequest описывает тело запроса на создание пользователя.
type CreateUserRequest struct {
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Email   string `json:"email"`
}

// FallbackUser возвращает деградационного пользователя для отказов доступности.
func FallbackUser(id int64) *User {
	return &User{
		ID:      id,
		Name:    "unknown",
		Surname: "Unknown",
		Email:   "unavailable",
	}
}

// Config содержит настройки клиента user-service.
type Config struct {
	BaseURL string
	Token   string

	Timeout  time.Duration
	RetryMax int

	// Параметры circuit breaker: скользящее окно подсчёта отказов в закрытом
	// состоянии, порог доли отказов, пауза до полуоткрытого состояния и число
	// пробных вызовов в нём.
	BreakerInterval    time.Duration
	BreakerCooldown    time.Duration
	BreakerMinRequests uint32
	BreakerFailureRate float64
	BreakerHalfOpenMax uint32
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.RetryMax < 0 {
		c.RetryMax = 0
	}
	if c.BreakerInterval <= 0 {
		c.BreakerInterval = 60 * time.Second
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = 30 * time.Second
	}
	if c.BreakerMinRequests == 0 {
		c.BreakerMinRequests = 5
	}
	if c.BreakerFailureRate <= 0 || c.BreakerFailureRate > 1 {
		c.BreakerFailureRate = 0.5
	}
	if c.BreakerHalfOpenMax == 0 {
		c.BreakerHalfOpenMax = 1
	}
	return c
}

// Client инкапсулирует HTTP-взаимодействие с user-service.
type Client struct {
	baseURL string
	token   string

	readClient  *retryablehttp.Client
	writeClient *http.Client
	breaker     *gobreaker.CircuitBreaker[*User]

	logger *zap.Logger
}

const breakerTarget = "user-service"

// NewClient создаёт клиент user-service с таймаутом, ретраями чтения
// и circuit breaker, привязанным к логическому имени цели.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	cfg = cfg.withDefaults()

	readClient := retryablehttp.NewClient()
	readClient.RetryMax = cfg.RetryMax
	readClient.RetryWaitMin = 100 * time.Millisecond
	readClient.RetryWaitMax = 500 * time.Millisecond
	readClient.Logger = nil
	readClient.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	settings := gobreaker.Settings{
		Name:        breakerTarget,
		MaxRequests: cfg.BreakerHalfOpenMax,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.BreakerMinRequests {
				return false
			}
			rate := float64(counts.TotalFailures) / float64(counts.Requests)
			return rate >= cfg.BreakerFailureRate
		},
		// Доменные ответы не считаются отказом доступности и не влияют
		// на состояние breaker.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrUserExists)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			logger.Info("breaker state changed",
				zap.String("target", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &Client{
		baseURL:     normalizeBaseURL(cfg.BaseURL),
		token:       cfg.Token,
		readClient:  readClient,
		writeClient: &http.Client{Timeout: cfg.Timeout},
		breaker:     gobreaker.NewCircuitBreaker[*User](settings),
		logger:      logger,
	}
}

func normalizeBaseURL(base string) string {
	base = strings.TrimRight(base, "/")
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return base
}

// GetUserByID запрашивает пользователя по идентификатору.
//
// 404 всегда возвращается как ErrUserNotFound. Любой отказ доступности,
// включая открытый breaker, подменяется деградационным пользователем,
// поэтому ошибка в этом случае не возвращается.
func (c *Client) GetUserByID(ctx context.Context, id int64) (*User, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("user client not configured")
	}

	user, err := c.breaker.Execute(func() (*User, error) {
		return c.fetchUser(ctx, id)
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}

		metrics.RemoteFallbacks.WithLabelValues(breakerTarget).Inc()
		c.logger.Warn("user lookup degraded to fallback",
			zap.Int64("userID", id),
			zap.Error(err),
		)
		return FallbackUser(id), nil
	}

	return user, nil
}

func (c *Client) fetchUser(ctx context.Context, id int64) (*User, error) {
	url := fmt.Sprintf("%s/api/users/%d", c.baseURL, id)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.authorize(req.Header)

	resp, err := c.readClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrUserNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &user, nil
}

// CreateUser создаёт пользователя в user-service. Путь записи проходит через
// тот же breaker, но без fallback: деградационная идентичность недопустима,
// пока локально ничего не зафиксировано.
func (c *Client) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("user client not configured")
	}

	user, err := c.breaker.Execute(func() (*User, error) {
		return c.postUser(ctx, req)
	})
	if err != nil {
		if errors.Is(err, ErrUserExists) || errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, err)
	}

	return user, nil
}

func (c *Client) postUser(ctx context.Context, reqBody CreateUserRequest) (*User, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	// Создание не ретраится, чтобы не породить дубликат пользователя.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/users", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req.Header)

	resp, err := c.writeClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
	case http.StatusConflict:
		return nil, ErrUserExists
	default:
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &user, nil
}

// DeleteUser удаляет пользователя в user-service. Используется компенсацией
// саги регистрации; 404 считается успехом, повторная компенсация безопасна.
func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("user client not configured")
	}

	url := fmt.Sprintf("%s/api/users/%d", c.baseURL, id)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.authorize(req.Header)

	resp, err := c.readClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK &&
		resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return nil
}

func (c *Client) authorize(h http.Header) {
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
}
