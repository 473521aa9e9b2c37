package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orders_created_total",
		Help: "Total number of orders placed",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_orders_failed_total",
		Help: "Total number of rejected order placements",
	}, []string{"reason"})

	OrderStatusChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_order_status_changes_total",
		Help: "Total number of administrative order status changes",
	}, []string{"status"})

	OrderCreateLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "storefront_order_create_latency_seconds",
		Help:    "Latency of the order creation transaction",
		Buckets: prometheus.DefBuckets,
	})

	PaymentIntentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_payment_intents_total",
		Help: "Total number of gateway payment intents requested",
	}, []string{"result"})

	PaymentVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_payment_verifications_total",
		Help: "Total number of payment callback verifications",
	}, []string{"result"})

	GatewayLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_payment_gateway_latency_seconds",
		Help:    "Latency of calls to the payment gateway",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	ReviewsWrittenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_reviews_written_total",
		Help: "Total number of review upserts and deletions",
	}, []string{"action"})

	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_notifications_total",
		Help: "Total number of order notifications handled by the notifier",
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
