package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "earnx",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "earnx",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "path"},
	)

	ledgerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "earnx",
			Subsystem: "ledger",
			Name:      "transitions_total",
			Help:      "Ledger transitions by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	conflictRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "earnx",
			Subsystem: "ledger",
			Name:      "conflict_retries_total",
			Help:      "Optimistic write conflicts that triggered a retry.",
		},
		[]string{"operation"},
	)

	withdrawalAmount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "earnx",
			Subsystem: "ledger",
			Name:      "withdrawal_amount_inr_total",
			Help:      "Sum of withdrawal amounts by lifecycle step.",
		},
		[]string{"step"},
	)

	wsClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "earnx",
			Subsystem: "ws",
			Name:      "clients",
			Help:      "Connected websocket clients.",
		},
	)

	priceFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "earnx",
			Subsystem: "price_feed",
			Name:      "fetches_total",
			Help:      "Price feed polls by result.",
		},
		[]string{"result"},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		ledgerTransitions,
		conflictRetries,
		withdrawalAmount,
		wsClients,
		priceFetches,
	)
}

// Handler exposes the registry for scraping.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordTransition counts one ledger operation. outcome is "ok", a rejection
// code, or "error".
func RecordTransition(operation, outcome string) {
	ledgerTransitions.WithLabelValues(operation, outcome).Inc()
}

func RecordConflictRetry(operation string) {
	conflictRetries.WithLabelValues(operation).Inc()
}

func RecordWithdrawalAmount(step string, amount float64) {
	withdrawalAmount.WithLabelValues(step).Add(amount)
}

func SetWebsocketClients(n int) {
	wsClients.Set(float64(n))
}

func RecordPriceFetch(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	priceFetches.WithLabelValues(result).Inc()
}
