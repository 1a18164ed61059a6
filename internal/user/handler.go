package user

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mmeshcher/ordermart-system/internal/middleware"
	"github.com/mmeshcher/ordermart-system/internal/model"
	"github.com/mmeshcher/ordermart-system/internal/query"
	"github.com/mmeshcher/ordermart-system/internal/repository"
)

// Handler обрабатывает HTTP-запросы user-service.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler создаёт обработчик пользователей.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type userRequest struct {
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Email   string `json:"email"`
}

type userResponse struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Email   string `json:"email"`
	Active  bool   `json:"active"`
}

type userPageResponse struct {
	Users []userResponse `json:"users"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Size  int            `json:"size"`
}

type activeRequest struct {
	Active bool `json:"active"`
}

type cardRequest struct {
	Number     string `json:"number"`
	Holder     string `json:"holder"`
	ExpiryDate string `json:"expiry_date"`
}

type cardResponse struct {
	ID         int64  `json:"id"`
	UserID     int64  `json:"user_id"`
	Number     string `json:"number"`
	Holder     string `json:"holder"`
	ExpiryDate string `json:"expiry_date"`
}

func toUserResponse(u model.User) userResponse {
	return userResponse{
		ID:      u.ID,
		Name:    u.Name,
		Surname: u.Surname,
		Email:   u.Email,
		Active:  u.Active,
	}
}

// CreateUser обрабатывает POST /api/users.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" {
		http.Error(w, "email is required", http.StatusBadRequest)
		return
	}

	user := &model.User{Name: req.Name, Surname: req.Surname, Email: req.Email}
	if err := h.service.Create(r.Context(), user); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toUserResponse(*user))
}

// GetUser обрабатывает GET /api/users/{id}.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	user, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toUserResponse(*user))
}

// UpdateUser обрабатывает PUT /api/users/{id}.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user := &model.User{ID: id, Name: req.Name, Surname: req.Surname, Email: req.Email}
	if err := h.service.Update(r.Context(), user); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toUserResponse(*user))
}

// DeleteUser обрабатывает DELETE /api/users/{id}.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetActive обрабатывает PATCH /api/users/{id}/active.
func (h *Handler) SetActive(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	var req activeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.service.SetActive(r.Context(), id, req.Active)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toUserResponse(*user))
}

// ListUsers обрабатывает GET /api/users с фильтрами и пагинацией.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	filter, page, err := parseUserFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	users, total, err := h.service.List(r.Context(), filter, page)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := userPageResponse{
		Users: make([]userResponse, 0, len(users)),
		Total: total,
		Page:  page.Number,
		Size:  page.Size,
	}
	for _, u := range users {
		resp.Users = append(resp.Users, toUserResponse(u))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// AddCard обрабатывает POST /api/users/{id}/cards.
func (h *Handler) AddCard(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	var req cardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	card := &model.PaymentCard{
		UserID:     userID,
		Number:     req.Number,
		Holder:     req.Holder,
		ExpiryDate: req.ExpiryDate,
	}
	if err := h.service.AddCard(r.Context(), card); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, cardResponse{
		ID:         card.ID,
		UserID:     card.UserID,
		Number:     card.Number,
		Holder:     card.Holder,
		ExpiryDate: card.ExpiryDate,
	})
}

// ListCards обрабатывает GET /api/users/{id}/cards.
func (h *Handler) ListCards(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	cards, err := h.service.ListCards(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := make([]cardResponse, 0, len(cards))
	for _, card := range cards {
		resp = append(resp, cardResponse{
			ID:         card.ID,
			UserID:     card.UserID,
			Number:     card.Number,
			Holder:     card.Holder,
			ExpiryDate: card.ExpiryDate,
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// DeleteCard обрабатывает DELETE /api/cards/{id}.
func (h *Handler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "invalid card id", http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteCard(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
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
	case errors.Is(err, ErrInvalidCard):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, repository.ErrUserNotFound), errors.Is(err, repository.ErrCardNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, repository.ErrUserExists), errors.Is(err, repository.ErrUserStatusUnchanged):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.logger.Error("internal error", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func parseUserFilter(r *http.Request) (query.UserFilter, query.Page, error) {
	var filter query.UserFilter
	values := r.URL.Query()

	if raw := values.Get("name"); raw != "" {
		filter.Name = &raw
	}
	if raw := values.Get("surname"); raw != "" {
		filter.Surname = &raw
	}
	if raw := values.Get("email"); raw != "" {
		filter.Email = &raw
	}
	if raw := values.Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, query.Page{}, errors.New("invalid active filter")
		}
		filter.Active = &active
	}

	page := query.Page{}
	if raw := values.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return filter, query.Page{}, errors.New("invalid page")
		}
		page.Number = n
	}
	if raw := values.Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return filter, query.Page{}, errors.New("invalid size")
		}
		page.Size = n
	}

	return filter, page.Normalize(), nil
}

// NewRouter собирает маршрутизатор user-service. CRUD открыт для внутренней
// сети: им пользуются auth-service и order-service без пользовательской
// идентичности. Переключение активности — администраторская операция.
func NewRouter(handler *Handler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.GzipMiddleware)
	r.Use(middleware.Logger(logger, "user-service"))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Post("/", handler.CreateUser)
			r.Get("/", handler.ListUsers)
			r.Get("/{id}", handler.GetUser)
			r.Put("/{id}", handler.UpdateUser)
			r.Delete("/{id}", handler.DeleteUser)

			r.With(middleware.Identity, middleware.RequireRole(model.RoleAdmin)).
				Patch("/{id}/active", handler.SetActive)

			r.Post("/{id}/cards", handler.AddCard)
			r.Get("/{id}/cards", handler.ListCards)
		})

		r.Delete("/cards/{id}", handler.DeleteCard)
	})

	return r
}
