package order

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mmeshcher/ordermart-system/internal/middleware"
)

// NewRouter собирает маршрутизатор order-service.
func NewRouter(handler *Handler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.GzipMiddleware)
	r.Use(middleware.Logger(logger, "order-service"))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Identity)

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", handler.CreateOrder)
			r.Get("/", handler.ListOrders)
			r.Get("/{id}", handler.GetOrder)
			r.Put("/{id}", handler.UpdateOrder)
			r.Delete("/{id}", handler.DeleteOrder)
			r.Get("/user/{userId}", handler.ListOrdersByUser)
		})

		r.Route("/items", func(r chi.Router) {
			r.Post("/", handler.CreateItem)
			r.Get("/", handler.ListItems)
			r.Get("/{id}", handler.GetItem)
		})
	})

	return r
}

func middlewareUserID(r *http.Request) (int64, bool) {
	return middleware.GetUserIDFromContext(r.Context())
}
