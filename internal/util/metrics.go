package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	})

	OrderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_transitions_total",
		Help: "Total number of order status transitions",
	}, []string{"from", "to"})

	OrderTransitionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_transitions_rejected_total",
		Help: "Total number of rejected order status transitions",
	}, []string{"from", "to"})

	OrdersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Total number of cancelled orders",
	})

	OrdersConfirmedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_seller_confirmed_total",
		Help: "Total number of seller confirmations by trigger",
	}, []string{"trigger"})

	SoldUnitsCreditedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sold_units_credited_total",
		Help: "Total number of product units credited to sold counters",
	})

	AutoConfirmSweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "auto_confirm_sweep_duration_seconds",
		Help:    "Duration of auto-confirm sweeps",
		Buckets: prometheus.DefBuckets,
	})

	AutoConfirmFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auto_confirm_failures_total",
		Help: "Total number of auto-confirm jobs that failed and were postponed",
	})

	AutoConfirmJobsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "auto_confirm_jobs_pending",
		Help: "Number of scheduled auto-confirm jobs",
	})

	NotificationsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_failed_total",
		Help: "Total number of notifications that could not be emitted or stored",
	}, []string{"stage"})

	EventsPublishFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_events_publish_failed_total",
		Help: "Total number of order events that could not be published",
	}, []string{"event_type"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
