package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mmeshcher/ordermart-system/internal/middleware"
	"github.com/mmeshcher/ordermart-system/internal/repository"
	"github.com/mmeshcher/ordermart-system/internal/userclient"
)

// Handler обрабатывает HTTP-запросы auth-service.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler создаёт обработчик аутентификации.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type registerRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	Email    string `json:"email"`
}

type registerResponse struct {
	UserID int64  `json:"user_id"`
	Login  string `json:"login"`
	Role   string `json:"role"`
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Register обрабатывает POST /api/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	cred, err := h.service.Register(r.Context(), RegisterRequest{
		Login:    req.Login,
		Password: req.Password,
		Name:     req.Name,
		Surname:  req.Surname,
		Email:    req.Email,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, registerResponse{
		UserID: cred.UserID,
		Login:  cred.Login,
		Role:   string(cred.Role),
	})
}

// Login обрабатывает POST /api/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	pair, err := h.service.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, pair)
}

// Refresh обрабатывает POST /api/auth/refresh.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	pair, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, pair)
}

// Validate обрабатывает GET /api/auth/validate: шлюз проверяет токен из
// заголовка Authorization и получает идентичность для проброса.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		http.Error(w, "authorization token is required", http.StatusUnauthorized)
		return
	}

	claims, err := h.service.Validate(r.Context(), token)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set(middleware.HeaderUserID, strconv.FormatInt(claims.UserID, 10))
	w.Header().Set(middleware.HeaderRole, string(claims.Role))
	w.WriteHeader(http.StatusOK)
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("response encoding failed", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidToken):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, repository.ErrCredentialExists), errors.Is(err, userclient.ErrUserExists):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, userclient.ErrUnavailable):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		h.logger.Error("internal error", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// NewRouter собирает маршрутизатор auth-service.
func NewRouter(handler *Handler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.GzipMiddleware)
	r.Use(middleware.Logger(logger, "auth-service"))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", handler.Register)
		r.Post("/login", handler.Login)
		r.Post("/refresh", handler.Refresh)
		r.Get("/validate", handler.Validate)
	})

	return r
}
