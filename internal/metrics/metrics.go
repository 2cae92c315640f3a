// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"carteira/internal/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "carteira"

// Outcome labels. Failed operations are labelled with their error kind.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics groups the collectors of one process on a private registry, so
// tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
	LedgerOperations   *prometheus.CounterVec
	RateLimited        prometheus.Counter
	SuspiciousRequests prometheus.Counter
	EventsHandled      *prometheus.CounterVec
	AutoContributions  prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"method", "route"}),
		LedgerOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_operations_total",
			Help:      "Ledger operations by name and outcome (ok or error kind).",
		}, []string{"operation", "outcome"}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
		SuspiciousRequests: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suspicious_requests_total",
			Help:      "Requests flagged by the security detector.",
		}),
		EventsHandled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "change_events_handled_total",
			Help:      "Change events consumed by the worker by table and outcome.",
		}, []string{"table", "outcome"}),
		AutoContributions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auto_contributions_total",
			Help:      "Scheduled goal contributions applied.",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordOperation counts one ledger operation, labelled by the error kind
// when it failed.
func (m *Metrics) RecordOperation(operation string, err error) {
	if m == nil {
		return
	}
	m.LedgerOperations.WithLabelValues(operation, Outcome(err)).Inc()
}

func (m *Metrics) RecordEvent(table string, err error) {
	if m == nil {
		return
	}
	m.EventsHandled.WithLabelValues(table, Outcome(err)).Inc()
}

func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	if kind := core.KindOf(err); kind != "" {
		return string(kind)
	}
	return OutcomeError
}
