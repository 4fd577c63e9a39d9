package health

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pinger is satisfied by *pgxpool.Pool and *ratelimit.Limiter.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CheckResult represents the health of a single dependency.
type CheckResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthResult is the top-level health response.
type HealthResult struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

type dependency struct {
	name   string
	pinger Pinger
}

type Option func(*Checker)

// WithDependency adds a named dependency to the readiness check.
func WithDependency(name string, p Pinger) Option {
	return func(c *Checker) {
		c.deps = append(c.deps, dependency{name: name, pinger: p})
	}
}

// Checker verifies that all dependencies are reachable.
type Checker struct {
	deps   []dependency
	logger *slog.Logger
	gauge  *prometheus.GaugeVec
}

// NewChecker creates a health checker for postgres plus any extra
// dependencies and registers its Prometheus gauge.
func NewChecker(db Pinger, logger *slog.Logger, reg prometheus.Registerer, opts ...Option) *Checker {
	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tourbook",
		Name:      "health_check_up",
		Help:      "Whether a dependency is reachable. 1 = up, 0 = down.",
	}, []string{"dependency"})
	reg.MustRegister(gauge)

	c := &Checker{
		deps:   []dependency{{name: "postgres", pinger: db}},
		logger: logger.With("component", "health"),
		gauge:  gauge,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Liveness returns a simple "up" response if the process is running.
func (c *Checker) Liveness(_ context.Context) HealthResult {
	return HealthResult{Status: "up"}
}

// Readiness pings every dependency and reports per-check status.
func (c *Checker) Readiness(ctx context.Context) HealthResult {
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	result := HealthResult{
		Status: "up",
		Checks: make(map[string]CheckResult, len(c.deps)),
	}

	for _, dep := range c.deps {
		if err := dep.pinger.Ping(checkCtx); err != nil {
			c.logger.Warn("health check failed", "dependency", dep.name, "error", err)
			result.Status = "down"
			result.Checks[dep.name] = CheckResult{Status: "down", Error: err.Error()}
			c.gauge.WithLabelValues(dep.name).Set(0)
			continue
		}
		result.Checks[dep.name] = CheckResult{Status: "up"}
		c.gauge.WithLabelValues(dep.name).Set(1)
	}

	return result
}
