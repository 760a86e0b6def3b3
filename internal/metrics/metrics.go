// Package metrics provides Prometheus instrumentation for the generator.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// OrdersTotal counts synthesized orders, partitioned by outcome
	// (settled, failed, skipped).
	OrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "posgen_orders_total",
		Help: "Total synthesized orders by outcome",
	}, []string{"outcome"})

	// PaymentsTotal counts submitted payments by derived payment type.
	PaymentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "posgen_payments_total",
		Help: "Total submitted payments by payment type",
	}, []string{"type"})

	// SplitPaymentsTotal counts orders settled across multiple tenders.
	SplitPaymentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "posgen_split_payments_total",
		Help: "Orders settled across multiple tenders",
	})

	// RefundsTotal counts issued refunds by kind (full, partial).
	RefundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "posgen_refunds_total",
		Help: "Total issued refunds by kind",
	}, []string{"kind"})

	// DiscountsTotal counts applied discounts.
	DiscountsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "posgen_discounts_total",
		Help: "Total discounts applied to synthesized orders",
	})

	// APILatency tracks commerce API call latency per operation.
	APILatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "posgen_api_latency_seconds",
		Help:    "Commerce API call latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	// AggregationsTotal counts daily summary recomputations.
	AggregationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "posgen_aggregations_total",
		Help: "Daily summary aggregation runs",
	})

	// HTTPRequestsTotal counts status-server requests by method, path, status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "posgen_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(wrapped.status)).Inc()
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
