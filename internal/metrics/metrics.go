// Package metrics содержит метрики Prometheus, общие для сервисов ordermart.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration измеряет длительность обработки HTTP-запросов.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ordermart_http_request_duration_seconds",
		Help:    "Длительность обработки HTTP-запросов.",
		Buckets: prometheus.DefBuckets,
	}, []string{"service", "method", "status"})

	// BreakerTransitions считает переходы состояний circuit breaker по целям.
	BreakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ordermart_breaker_transitions_total",
		Help: "Переходы состояний circuit breaker.",
	}, []string{"target", "from", "to"})

	// RemoteFallbacks считает срабатывания деградационного ответа удалённого клиента.
	RemoteFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ordermart_remote_fallbacks_total",
		Help: "Возвраты fallback-значения вместо ответа удалённого сервиса.",
	}, []string{"target"})

	// PaymentEventsProcessed считает обработанные события платежей по результату.
	PaymentEventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ordermart_payment_events_processed_total",
		Help: "Обработанные события исхода платежа.",
	}, []string{"result"})
)
