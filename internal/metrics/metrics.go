package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTP
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds",
		},
		[]string{"method", "path"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests in flight",
		},
	)

	// M-Pesa gateway
	GatewayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mpesa_api_requests_total",
			Help: "Total number of M-Pesa API requests",
		},
		[]string{"endpoint", "status"},
	)
	GatewayRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "mpesa_api_request_duration_seconds",
			Help: "Duration of M-Pesa API requests in seconds",
		},
		[]string{"endpoint"},
	)

	// Payments
	PaymentsInitiatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_initiated_total",
			Help: "STK push attempts by plan kind and result",
		},
		[]string{"plan_kind", "result"},
	)
	PaymentResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_resolutions_total",
			Help: "Callback, timeout and sweep resolutions by source and outcome",
		},
		[]string{"source", "outcome"},
	)
	PendingPayments = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pending_payments",
			Help: "Pending payments seen by the last sweep",
		},
	)
)

func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestsInFlight)

	prometheus.MustRegister(GatewayRequestsTotal)
	prometheus.MustRegister(GatewayRequestDuration)

	prometheus.MustRegister(PaymentsInitiatedTotal)
	prometheus.MustRegister(PaymentResolutionsTotal)
	prometheus.MustRegister(PendingPayments)
}
