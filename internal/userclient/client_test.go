package userclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	return NewClient(Config{
		BaseURL:            baseURL,
		Token:              "test-token",
		Timeout:            time.Second,
		RetryMax:           0,
		BreakerMinRequests: 3,
		BreakerFailureRate: 0.5,
		BreakerCooldown:    time.Minute,
	}, zap.NewNop())
}

func TestGetUserByID_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/api/users/7" {
			t.Fatalf("path = %s, want /api/users/7", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Fatalf("authorization = %q, want bearer token", got)
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(User{ID: 7, Name: "Ivan", Surname: "Petrov", Email: "ivan@example.com"}); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}))
	defer ts.Close()

	client := newTestClient(t, ts.URL)

	user, err := client.GetUserByID(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetUserByID error: %v", err)
	}
	if user.ID != 7 || user.Name != "Ivan" || user.Email != "ivan@example.com" {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestGetUserByID_NotFoundIsNeverMasked(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	client := newTestClient(t, ts.URL)

	user, err := client.GetUserByID(context.Background(), 404)
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
	if user != nil {
		t.Fatalf("expected nil user for 404, got %+v", user)
	}
}

func TestGetUserByID_FallbackOnServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	client := newTestClient(t, ts.URL)

	user, err := client.GetUserByID(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetUserByID error: %v", err)
	}
	if user.ID != 7 || user.Name != "unknown" || user.Surname != "Unknown" || user.Email != "unavailable" {
		t.Fatalf("expected fallback user, got %+v", user)
	}
}

func TestBreakerShortCircuitsAfterFailures(t *testing.T) {
	var hits atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	client := newTestClient(t, ts.URL)

	// Три подряд отказа доступности достигают порога и открывают breaker.
	for i := 0; i < 3; i++ {
		user, err := client.GetUserByID(context.Background(), 7)
		if err != nil {
			t.Fatalf("call %d: unexpected error %v", i, err)
		}
		if user.Name != "unknown" {
			t.Fatalf("call %d: expected fallback user, got %+v", i, user)
		}
	}

	before := hits.Load()

	// При открытом breaker вызовы замыкаются на fallback без похода в сеть.
	for i := 0; i < 5; i++ {
		user, err := client.GetUserByID(context.Background(), 7)
		if err != nil {
			t.Fatalf("short-circuit call: unexpected error %v", err)
		}
		if user.Name != "unknown" {
			t.Fatalf("short-circuit call: expected fallback user, got %+v", user)
		}
	}

	if hits.Load() != before {
		t.Fatalf("open breaker must not call the network: hits %d -> %d", before, hits.Load())
	}
}

func TestBreakerRecoversAfterCooldown(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(User{ID: 7, Name: "Ivan", Surname: "Petrov", Email: "ivan@example.com"})
	}))
	defer ts.Close()

	client := NewClient(Config{
		BaseURL:            ts.URL,
		Timeout:            time.Second,
		RetryMax:           0,
		BreakerMinRequests: 2,
		BreakerFailureRate: 0.5,
		BreakerCooldown:    50 * time.Millisecond,
	}, zap.NewNop())

	for i := 0; i < 2; i++ {
		_, _ = client.GetUserByID(context.Background(), 7)
	}

	fail.Store(false)
	time.Sleep(100 * time.Millisecond)

	// Полуоткрытое состояние: пробный вызов проходит и закрывает breaker.
	user, err := client.GetUserByID(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetUserByID error: %v", err)
	}
	if user.Name != "Ivan" {
		t.Fatalf("expected live response after recovery, got %+v", user)
	}
}

func TestCreateUser_Conflict(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer ts.Close()

	client := newTestClient(t, ts.URL)

	_, err := client.CreateUser(context.Background(), CreateUserRequest{Name: "Ivan", Email: "ivan@example.com"})
	if !errors.Is(err, ErrUserExists) {
		t.Fatalf("err = %v, want ErrUserExists", err)
	}
}

func TestCreateUser_NoFallbackOnUnavailability(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	client := newTestClient(t, ts.URL)

	user, err := client.CreateUser(context.Background(), CreateUserRequest{Name: "Ivan", Email: "ivan@example.com"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if user != nil {
		t.Fatalf("write path must not degrade to fallback, got %+v", user)
	}
}

func TestCreateUser_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}

		var req CreateUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(User{ID: 11, Name: req.Name, Surname: req.Surname, Email: req.Email})
	}))
	defer ts.Close()

	client := newTestClient(t, ts.URL)

	user, err := client.CreateUser(context.Background(), CreateUserRequest{Name: "Ivan", Surname: "Petrov", Email: "ivan@example.com"})
	if err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}
	if user.ID != 11 {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestDeleteUser_NotFoundIsSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	client := newTestClient(t, ts.URL)

	if err := client.DeleteUser(context.Background(), 11); err != nil {
		t.Fatalf("DeleteUser error: %v", err)
	}
}
