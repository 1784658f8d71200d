package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks the number of outbound API calls to Beeswax.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beeswax_api_requests_total",
			Help: "Total number of Beeswax API requests made (by endpoint, method, and status).",
		},
		[]string{"endpoint", "method", "status"},
	)

	// RequestDuration measures the duration of outbound Beeswax API calls.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "beeswax_api_request_duration_seconds",
			Help:    "Duration of Beeswax API requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms → ~16s
		},
		[]string{"endpoint", "method"},
	)

	// Reauthentications counts session renewals triggered by a 401 response.
	Reauthentications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beeswax_reauthentications_total",
			Help: "Number of re-authentications triggered by 401 responses (by outcome).",
		},
		[]string{"outcome"},
	)

	// PagesFetched counts pages pulled by the pagination driver.
	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beeswax_pages_fetched_total",
			Help: "Number of result pages fetched while paginating queries.",
		},
		[]string{"endpoint"},
	)
)

// IncRequest increments the Beeswax API request counter.
func IncRequest(endpoint, method string, status int) {
	RequestsTotal.WithLabelValues(endpoint, method, strconv.Itoa(status)).Inc()
}

// IncReauth records the outcome ("success" or "failure") of a 401-triggered login.
func IncReauth(outcome string) {
	Reauthentications.WithLabelValues(outcome).Inc()
}

// IncPage records one fetched page for endpoint.
func IncPage(endpoint string) {
	PagesFetched.WithLabelValues(endpoint).Inc()
}

// ObserveDuration records elapsed time since start into a HistogramVec or SummaryVec.
func ObserveDuration(v any, start time.Time, labels ...string) {
	duration := time.Since(start).Seconds()
	switch metric := v.(type) {
	case *prometheus.HistogramVec:
		metric.WithLabelValues(labels...).Observe(duration)
	case *prometheus.SummaryVec:
		metric.WithLabelValues(labels...).Observe(duration)
	}
}

// EndpointLabel collapses numeric path segments so per-entity URLs such as
// /rest/creative_asset/upload/42 share one label.
func EndpointLabel(path string) string {
	if path == "" {
		return "/"
	}
	segs := strings.Split(path, "/")
	for i, s := range segs {
		if s == "" {
			continue
		}
		if _, err := strconv.ParseInt(s, 10, 64); err == nil {
			segs[i] = ":id"
		}
	}
	return strings.Join(segs, "/")
}
