package payment

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/ordermart-system/internal/middleware"
	"github.com/mmeshcher/ordermart-system/internal/model"
	"github.com/mmeshcher/ordermart-system/internal/query"
)

// Handler обрабатывает HTTP-запросы payment-service.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler создаёт обработчик платежей.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type paymentRequest struct {
	OrderID int64           `json:"order_id"`
	Amount  decimal.Decimal `json:"amount"`
}

type paymentResponse struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	UserID    int64           `json:"user_id"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

type paymentPageResponse struct {
	Payments []paymentResponse `json:"payments"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	Size     int               `json:"size"`
}

type totalResponse struct {
	Total decimal.Decimal `json:"total"`
	Start time.Time       `json:"start"`
	End   time.Time       `json:"end"`
}

func toPaymentResponse(p model.Payment) paymentResponse {
	return paymentResponse{
		ID:        p.ID,
		OrderID:   p.OrderID,
		UserID:    p.UserID,
		Status:    string(p.Status),
		Amount:    p.Amount,
		CreatedAt: p.CreatedAt,
	}
}

// CreatePayment обрабатывает POST /api/payments.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "user identity is required", http.StatusUnauthorized)
		return
	}

	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.OrderID <= 0 {
		http.Error(w, "order_id is required", http.StatusBadRequest)
		return
	}

	payment, err := h.service.Create(r.Context(), req.OrderID, userID, req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toPaymentResponse(*payment))
}

// ListPayments обрабатывает GET /api/payments.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	filter, page, err := parsePaymentFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	payments, total, err := h.service.List(r.Context(), filter, page)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := paymentPageResponse{
		Payments: make([]paymentResponse, 0, len(payments)),
		Total:    total,
		Page:     page.Number,
		Size:     page.Size,
	}
	for _, p := range payments {
		resp.Payments = append(resp.Payments, toPaymentResponse(p))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// TotalAmount обрабатывает GET /api/payments/total. Только для администраторов.
func (h *Handler) TotalAmount(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()

	start, err := time.Parse(time.RFC3339, values.Get("start"))
	if err != nil {
		http.Error(w, "invalid start", http.StatusBadRequest)
		return
	}
	end, err := time.Parse(time.RFC3339, values.Get("end"))
	if err != nil {
		http.Error(w, "invalid end", http.StatusBadRequest)
		return
	}

	var userID *int64
	if raw := values.Get("user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid user_id", http.StatusBadRequest)
			return
		}
		userID = &id
	}

	total, err := h.service.Total(r.Context(), start, end, userID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, totalResponse{Total: total, Start: start, End: end})
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
	case errors.Is(err, ErrInvalidAmount):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrRandomUnavailable):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		h.logger.Error("internal error", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func parsePaymentFilter(r *http.Request) (query.PaymentFilter, query.Page, error) {
	var filter query.PaymentFilter
	values := r.URL.Query()

	if raw := values.Get("user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, query.Page{}, errors.New("invalid user_id filter")
		}
		filter.UserID = &id
	}
	if raw := values.Get("order_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, query.Page{}, errors.New("invalid order_id filter")
		}
		filter.OrderID = &id
	}
	if raw := values.Get("status"); raw != "" {
		status := model.PaymentStatus(raw)
		if status != model.PaymentStatusSuccess && status != model.PaymentStatusFailed {
			return filter, query.Page{}, errors.New("invalid status filter")
		}
		filter.Status = &status
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

// NewRouter собирает маршрутизатор payment-service.
func NewRouter(handler *Handler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.GzipMiddleware)
	r.Use(middleware.Logger(logger, "payment-service"))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/payments", func(r chi.Router) {
		r.Use(middleware.Identity)

		r.Post("/", handler.CreatePayment)
		r.Get("/", handler.ListPayments)

		r.With(middleware.RequireRole(model.RoleAdmin)).Get("/total", handler.TotalAmount)
	})

	return r
}
