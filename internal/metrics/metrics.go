package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/ErlanBelekov/tourbook/internal/health"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tourbook"

var (
	// Auth metrics

	AuthRejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_rejections_total",
		Help:      "Requests rejected by the auth chain, by reason.",
	}, []string{"reason"})

	LoginsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Login attempts, by outcome.",
	}, []string{"outcome"})

	PasswordResetsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "password_resets_total",
		Help:      "Password reset requests and consumptions, by outcome.",
	}, []string{"stage", "outcome"})

	EmailsSentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "emails_sent_total",
		Help:      "Transactional emails, by template and outcome.",
	}, []string{"template", "outcome"})

	RateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the API rate limiter.",
	})

	// Reaper metrics

	ResetTokensClearedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reset_tokens_cleared_total",
		Help:      "Expired password reset tokens cleared by the reaper.",
	})

	ReaperCycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "reaper_cycle_duration_seconds",
		Help:      "Time taken for one reaper cycle.",
		Buckets:   prometheus.DefBuckets,
	})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		AuthRejectionsTotal,
		LoginsTotal,
		PasswordResetsTotal,
		EmailsSentTotal,
		RateLimitedTotal,
		ResetTokensClearedTotal,
		ReaperCycleDuration,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

// NewServer serves /metrics plus liveness and readiness probes. It listens
// separately from the public API.
func NewServer(addr string, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, checker.Liveness(r.Context()))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, checker.Readiness(r.Context()))
	})
	return &http.Server{Addr: addr, Handler: mux}
}

func writeHealth(w http.ResponseWriter, result health.HealthResult) {
	w.Header().Set("Content-Type", "application/json")
	if result.Status != "up" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(result)
}
