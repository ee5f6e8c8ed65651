// Package metrics exposes service counters in the Prometheus text format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"guardians/internal/domain"
	"guardians/internal/usecase"
)

const namespace = "guardians"

type Registry struct {
	reg *prometheus.Registry

	writes       *prometheus.CounterVec
	writeTries   *prometheus.HistogramVec
	retries      *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

// New builds a registry with the process and Go runtime collectors attached.
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_writes_total",
			Help:      "Attestation writes by action and outcome.",
		}, []string{"action", "outcome"}),
		writeTries: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "registry_write_attempts",
			Help:      "Attempts used per attestation write.",
			Buckets:   []float64{1, 2, 3, 5, 8},
		}, []string{"action"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_retries_total",
			Help:      "Retried ledger operations.",
		}, []string{"operation"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.writes, r.writeTries, r.retries, r.httpRequests, r.httpLatency,
	)
	return r
}

func (r *Registry) ObserveWrite(action domain.SubmissionAction, kind domain.ErrorKind, attempts int) {
	if r == nil {
		return
	}
	outcome := "success"
	if kind != "" {
		outcome = string(kind)
	}
	r.writes.WithLabelValues(string(action), outcome).Inc()
	if attempts > 0 {
		r.writeTries.WithLabelValues(string(action)).Observe(float64(attempts))
	}
}

func (r *Registry) ObserveRetry(operation string) {
	if r == nil {
		return
	}
	r.retries.WithLabelValues(operation).Inc()
}

// ObserveHTTP records one served request. route is the matched route
// pattern, not the raw path, to keep label cardinality bounded.
func (r *Registry) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

var _ usecase.RegistryMetrics = (*Registry)(nil)
