package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warp/actus-engine/actus"
	"github.com/warp/actus-engine/generic"
)

// =============================================================================
// METRICS - Prometheus collectors for the scheduler and the HTTP API
// =============================================================================

// Metrics implements actus.Metrics and instruments HTTP requests. Each
// instance owns its registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	eventsApplied *prometheus.CounterVec
	eventsFailed  *prometheus.CounterVec
	tickDuration  prometheus.Histogram
	liveContracts prometheus.Gauge

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		eventsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "actus_events_applied_total",
			Help: "Contract events applied, by contract type and event type",
		}, []string{"contract_type", "event_type"}),
		eventsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "actus_events_failed_total",
			Help: "Contract events that failed and were left pending",
		}, []string{"contract_type", "event_type"}),
		tickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "actus_tick_duration_seconds",
			Help:    "Wall time of one scheduler tick",
			Buckets: prometheus.DefBuckets,
		}),
		liveContracts: factory.NewGauge(prometheus.GaugeOpts{
			Name: "actus_live_contracts",
			Help: "Contracts with pending events after the last tick",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "actus_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "actus_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (m *Metrics) EventApplied(ct actus.ContractTypeCode, typ generic.EventType) {
	m.eventsApplied.WithLabelValues(string(ct), typ.String()).Inc()
}

func (m *Metrics) EventFailed(ct actus.ContractTypeCode, typ generic.EventType) {
	m.eventsFailed.WithLabelValues(string(ct), typ.String()).Inc()
}

func (m *Metrics) TickCompleted(d time.Duration, live int) {
	m.tickDuration.Observe(d.Seconds())
	m.liveContracts.Set(float64(live))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Middleware counts requests by their chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
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
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

var _ actus.Metrics = (*Metrics)(nil)
