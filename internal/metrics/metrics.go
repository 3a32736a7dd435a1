// Package metrics exposes Prometheus metrics for the HTTP server and the
// todo search.
//
// Every Metrics value owns its own registry instead of using the global
// default one, so tests can build as many as they like without
// "duplicate metrics collector registration" panics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tagged_todos"

// Metrics holds the registry and the collectors the application updates.
type Metrics struct {
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	searches      *prometheus.CounterVec
	searchResults prometheus.Histogram
}

// New builds a registry with Go runtime and process collectors plus the
// application metrics.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m.requests = m.newCounter("http_requests_total",
		"HTTP requests by method, route and status code.",
		[]string{"method", "route", "status"})
	m.duration = m.newHistogram("http_request_duration_seconds",
		"HTTP request latency by method and route.",
		[]string{"method", "route"}, prometheus.DefBuckets)
	m.searches = m.newCounter("todo_searches_total",
		"Todo searches by match mode (strict or any).",
		[]string{"mode"})

	m.searchResults = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "todo_search_results",
		Help:      "Number of todos returned per search.",
		Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
	})
	m.registry.MustRegister(m.searchResults)

	return m
}

func (m *Metrics) newCounter(name, help string, labels []string) *prometheus.CounterVec {
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, labels)
	m.registry.MustRegister(cv)
	return cv
}

func (m *Metrics) newHistogram(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labels)
	m.registry.MustRegister(hv)
	return hv
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordSearch counts one todo search and how many todos it returned.
func (m *Metrics) RecordSearch(mode string, results int) {
	m.searches.WithLabelValues(mode).Inc()
	m.searchResults.Observe(float64(results))
}

// Middleware records request count and latency.
//
// The route label is chi's matched pattern ("/api/todos/{id}"), read after
// the handler ran because chi fills it in while routing. Using r.URL.Path
// instead would create one time series per todo ID.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
