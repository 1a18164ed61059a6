// Package payment реализует платежи: исход определяется внешним генератором
// случайных чисел, результат доставляется в order-service через Kafka.
package payment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/mmeshcher/ordermart-system/internal/model"
)

// ErrRandomUnavailable возвращается, когда генератор случайных чисел
// недоступен: без исхода платёж не создаётся.
var ErrRandomUnavailable = errors.New("random source unavailable")

// OutcomeSource решает исход платежа.
type OutcomeSource interface {
	Outcome(ctx context.Context) (model.PaymentStatus, error)
}

// RandomAPISource запрашивает случайное целое у внешнего API. Чётное число —
// успех, нечётное — отказ. Запрос идемпотентен и ретраится.
type RandomAPISource struct {
	client  *retryablehttp.Client
	baseURL string
}

// NewRandomAPISource создаёт источник поверх внешнего API, отдающего
// целое число телом ответа в текстовом виде.
func NewRandomAPISource(baseURL string, timeout time.Duration) *RandomAPISource {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = 500 * time.Millisecond
	client.Logger = nil
	client.HTTPClient = &http.Client{Timeout: timeout}

	return &RandomAPISource{client: client, baseURL: baseURL}
}

// Outcome запрашивает число и возвращает исход по его чётности.
func (s *RandomAPISource) Outcome(ctx context.Context) (model.PaymentStatus, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, s.baseURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRandomUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrRandomUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRandomUnavailable, err)
	}

	value, err := strconv.Atoi(strings.TrimSpace(string(body)))
	if err != nil {
		return "", fmt.Errorf("%w: unparseable body %q", ErrRandomUnavailable, string(body))
	}

	return parityOutcome(value), nil
}

// LocalSource — локальный генератор для окружений без внешнего API.
type LocalSource struct{}

// Outcome возвращает случайный исход с равными шансами.
func (LocalSource) Outcome(_ context.Context) (model.PaymentStatus, error) {
	return parityOutcome(rand.IntN(2)), nil
}

func parityOutcome(value int) model.PaymentStatus {
	if value%2 == 0 {
		return model.PaymentStatusSuccess
	}
	return model.PaymentStatusFailed
}
