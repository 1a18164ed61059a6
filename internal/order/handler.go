package order

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/ordermart-system/internal/model"
	"github.com/mmeshcher/ordermart-system/internal/query"
	"github.com/mmeshcher/ordermart-system/internal/repository"
	"github.com/mmeshcher/ordermart-system/internal/userclient"
)

// Handler обрабатывает HTTP-запросы order-service.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler создаёт обработчик заказов.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type orderLineRequest struct {
	ItemID   int64 `json:"item_id"`
	Quantity int32 `json:"quantity"`
}

type orderCreateRequest struct {
	Lines []orderLineRequest `json:"lines"`
}

type orderUpdateRequest struct {
	Status *string            `json:"status,omitempty"`
	Lines  []orderLineRequest `json:"lines"`
}

type userResponse struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Email   string `json:"email"`
}

type orderLineResponse struct {
	ItemID    int64           `json:"item_id"`
	Quantity  int32           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type orderResponse struct {
	ID         int64               `json:"id"`
	UserID     int64               `json:"user_id"`
	Status     string              `json:"status"`
	TotalPrice decimal.Decimal     `json:"total_price"`
	Deleted    bool                `json:"deleted"`
	Lines      []orderLineResponse `json:"lines"`
	CreatedAt  time.Time           `json:"created_at"`
	User       *userResponse       `json:"user,omitempty"`
}

type orderPageResponse struct {
	Orders []orderResponse `json:"orders"`
	Total  int64           `json:"total"`
	Page   int             `json:"page"`
	Size   int             `json:"size"`
}

type itemRequest struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type itemResponse struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

func toOrderResponse(order model.Order, user *userclient.User) orderResponse {
	lines := make([]orderLineResponse, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, orderLineResponse{
			ItemID:    line.ItemID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}

	resp := orderResponse{
		ID:         order.ID,
		UserID:     order.UserID,
		Status:     string(order.Status),
		TotalPrice: order.TotalPrice,
		Deleted:    order.Deleted,
		Lines:      lines,
		CreatedAt:  order.CreatedAt,
	}
	if user != nil {
		resp.User = &userResponse{
			ID:      user.ID,
			Name:    user.Name,
			Surname: user.Surname,
			Email:   user.Email,
		}
	}
	return resp
}

func toLineRequests(lines []orderLineRequest) []LineRequest {
	result := make([]LineRequest, 0, len(lines))
	for _, line := range lines {
		result = append(result, LineRequest{ItemID: line.ItemID, Quantity: line.Quantity})
	}
	return result
}

// CreateOrder обрабатывает POST /api/orders.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middlewareUserID(r)
	if !ok {
		http.Error(w, "user identity is required", http.StatusUnauthorized)
		return
	}

	var req orderCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	enriched, err := h.service.Create(r.Context(), userID, toLineRequests(req.Lines))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toOrderResponse(enriched.Order, enriched.User))
}

// GetOrder обрабатывает GET /api/orders/{id}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return
	}

	enriched, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toOrderResponse(enriched.Order, enriched.User))
}

// ListOrders обрабатывает GET /api/orders с фильтрами и пагинацией.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	filter, page, err := parseOrderFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	orders, total, err := h.service.FindAll(r.Context(), filter, page)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := orderPageResponse{
		Orders: make([]orderResponse, 0, len(orders)),
		Total:  total,
		Page:   page.Number,
		Size:   page.Size,
	}
	for _, o := range orders {
		resp.Orders = append(resp.Orders, toOrderResponse(o.Order, o.User))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// ListOrdersByUser обрабатывает GET /api/orders/user/{userId}.
func (h *Handler) ListOrdersByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	orders, err := h.service.FindByUserID(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toOrderResponse(o.Order, o.User))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// UpdateOrder обрабатывает PUT /api/orders/{id}.
func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return
	}

	var req orderUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var status *model.OrderStatus
	if req.Status != nil {
		if !model.IsValidOrderStatus(*req.Status) {
			http.Error(w, "invalid order status", http.StatusBadRequest)
			return
		}
		parsed := model.OrderStatus(*req.Status)
		status = &parsed
	}

	enriched, err := h.service.Update(r.Context(), id, toLineRequests(req.Lines), status)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toOrderResponse(enriched.Order, enriched.User))
}

// DeleteOrder обрабатывает DELETE /api/orders/{id}.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return
	}

	order, err := h.service.Delete(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toOrderResponse(*order, nil))
}

// CreateItem обрабатывает POST /api/items.
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Name == "" || req.Price.IsNegative() {
		http.Error(w, "item name and non-negative price are required", http.StatusBadRequest)
		return
	}

	item := &model.Item{Name: req.Name, Price: req.Price}
	if err := h.service.CreateItem(r.Context(), item); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, itemResponse{ID: item.ID, Name: item.Name, Price: item.Price})
}

// GetItem обрабатывает GET /api/items/{id}.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "invalid item id", http.StatusBadRequest)
		return
	}

	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, itemResponse{ID: item.ID, Name: item.Name, Price: item.Price})
}

// ListItems обрабатывает GET /api/items.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListItems(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := make([]itemResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, itemResponse{ID: item.ID, Name: item.Name, Price: item.Price})
	}

	h.writeJSON(w, http.StatusOK, resp)
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
	case errors.Is(err, ErrEmptyLines), errors.Is(err, ErrInvalidQuantity):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrItemNotFound),
		errors.Is(err, userclient.ErrUserNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, repository.ErrOrderDeleted), errors.Is(err, repository.ErrItemExists):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, userclient.ErrUnavailable):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		h.logger.Error("internal error", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func parseOrderFilter(r *http.Request) (query.OrderFilter, query.Page, error) {
	var filter query.OrderFilter
	values := r.URL.Query()

	if raw := values.Get("status"); raw != "" {
		if !model.IsValidOrderStatus(raw) {
			return filter, query.Page{}, errors.New("invalid status filter")
		}
		status := model.OrderStatus(raw)
		filter.Status = &status
	}

	if raw := values.Get("deleted"); raw != "" {
		deleted, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, query.Page{}, errors.New("invalid deleted filter")
		}
		filter.Deleted = &deleted
	}

	if raw := values.Get("created_after"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, query.Page{}, errors.New("invalid created_after filter")
		}
		filter.CreatedAfter = &ts
	}

	if raw := values.Get("created_before"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, query.Page{}, errors.New("invalid created_before filter")
		}
		filter.CreatedBefore = &ts
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
	page = page.Normalize()

	return filter, page, nil
}
