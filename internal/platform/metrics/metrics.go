// Package metrics exposes Prometheus counters for HTTP traffic and record
// status changes.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telehealth/clinic/pkg/lifecycle"
)

const namespace = "clinic"

// Collector owns a private registry so several collectors can coexist in
// one process (tests build one per case).
type Collector struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	transitions  *prometheus.CounterVec
	dbPoolConns  *prometheus.GaugeVec
}

// NewCollector registers the clinic metrics plus the Go runtime and process
// collectors on a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "status_transitions_total",
				Help:      "Status changes attempted on clinic records",
			},
			[]string{"kind", "from", "to", "outcome"},
		),
		dbPoolConns: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections",
				Help:      "Database pool connections by state",
			},
			[]string{"state"},
		),
	}
	reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.transitions,
		c.dbPoolConns,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the registry the collector writes to.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Middleware records one request count and latency sample per request,
// labelled by the matched route rather than the raw path.
func (c *Collector) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ec echo.Context) error {
			start := time.Now()
			err := next(ec)

			status := ec.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := ec.Path()
			if route == "" {
				route = "unmatched"
			}
			method := ec.Request().Method
			c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			c.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// ObserveTransition counts a status change. The outcome is "applied",
// "refused" when the lifecycle forbids the move, or "error" when the change
// was allowed but could not be saved.
func (c *Collector) ObserveTransition(kind, from, to string, err error) {
	outcome := "applied"
	switch {
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		outcome = "refused"
	case err != nil:
		outcome = "error"
	}
	c.transitions.WithLabelValues(kind, from, to, outcome).Inc()
}

// SetPoolConnections publishes the current pool sizes.
func (c *Collector) SetPoolConnections(open, idle int) {
	c.dbPoolConns.WithLabelValues("open").Set(float64(open))
	c.dbPoolConns.WithLabelValues("idle").Set(float64(idle))
}
