package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "techmap"

// PromHooks records every hook event as Prometheus metrics on its own
// registry.
type PromHooks struct {
	registry *prometheus.Registry

	layouts         *prometheus.CounterVec
	layoutDuration  *prometheus.HistogramVec
	layoutSteps     *prometheus.HistogramVec
	layoutFallbacks *prometheus.CounterVec
	layoutOverlaps  *prometheus.GaugeVec

	relayouts *prometheus.CounterVec
	coalesced *prometheus.CounterVec
	frames    *prometheus.CounterVec

	cacheOps   *prometheus.CounterVec
	cacheBytes *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpErrors   *prometheus.CounterVec

	serverRequests *prometheus.CounterVec
	serverDuration *prometheus.HistogramVec
}

// NewPromHooks creates the metrics and registers them, together with the
// Go runtime and process collectors, on a fresh registry.
func NewPromHooks() *PromHooks {
	h := &PromHooks{
		registry: prometheus.NewRegistry(),
		layouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "layout", Name: "runs_total",
			Help: "Plane layouts by plane, algorithm and outcome.",
		}, []string{"plane", "algorithm", "outcome"}),
		layoutDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "layout", Name: "duration_seconds",
			Help:    "Plane layout duration.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"plane", "algorithm"}),
		layoutSteps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "layout", Name: "steps",
			Help:    "Engine main loop iterations per layout.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"algorithm"}),
		layoutFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "layout", Name: "fallback_items_total",
			Help: "Items placed by the raster fallback.",
		}, []string{"plane"}),
		layoutOverlaps: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "layout", Name: "overlaps",
			Help: "Overlapping pairs in the most recent layout of each plane.",
		}, []string{"plane"}),
		relayouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scheduler", Name: "relayouts_total",
			Help: "Re-layouts by plane and trigger.",
		}, []string{"plane", "reason"}),
		coalesced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scheduler", Name: "resizes_coalesced_total",
			Help: "Resize events absorbed into a pending frame.",
		}, []string{"plane"}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scheduler", Name: "frames_total",
			Help: "Animation frames published.",
		}, []string{"plane"}),
		cacheOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "operations_total",
			Help: "Cache lookups and writes.",
		}, []string{"key_type", "op"}),
		cacheBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "written_bytes_total",
			Help: "Bytes written to the cache.",
		}, []string{"key_type"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http_client", Name: "requests_total",
			Help: "Outgoing HTTP requests by host and status code.",
		}, []string{"method", "host", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http_client", Name: "duration_seconds",
			Help:    "Outgoing HTTP request duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "host"}),
		httpErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http_client", Name: "errors_total",
			Help: "Outgoing HTTP requests that failed without a response.",
		}, []string{"method", "host"}),
		serverRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http_server", Name: "requests_total",
			Help: "Served requests by route and status code.",
		}, []string{"method", "route", "code"}),
		serverDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http_server", Name: "duration_seconds",
			Help:    "Time to serve a request.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	h.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}),
		h.layouts, h.layoutDuration, h.layoutSteps, h.layoutFallbacks, h.layoutOverlaps,
		h.relayouts, h.coalesced, h.frames,
		h.cacheOps, h.cacheBytes,
		h.httpRequests, h.httpDuration, h.httpErrors,
		h.serverRequests, h.serverDuration,
	)
	return h
}

// Registry returns the registry the metrics live on, for registering
// additional collectors.
func (h *PromHooks) Registry() *prometheus.Registry { return h.registry }

// Handler serves the registry in the Prometheus exposition format.
func (h *PromHooks) Handler() http.Handler {
	return promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{Registry: h.registry})
}

// Install registers h for every hook category.
func (h *PromHooks) Install() {
	SetLayoutHooks(h)
	SetSchedulerHooks(h)
	SetCacheHooks(h)
	SetHTTPHooks(h)
}

func (h *PromHooks) OnLayoutStart(context.Context, string, string, int) {}

func (h *PromHooks) OnLayoutComplete(_ context.Context, ev LayoutEvent) {
	outcome := "ok"
	switch {
	case ev.Err != nil:
		outcome = "error"
	case ev.Fallbacks > 0:
		outcome = "fallback"
	}
	h.layouts.WithLabelValues(ev.Plane, ev.Algorithm, outcome).Inc()
	if ev.Err != nil {
		return
	}
	h.layoutDuration.WithLabelValues(ev.Plane, ev.Algorithm).Observe(ev.Duration.Seconds())
	h.layoutSteps.WithLabelValues(ev.Algorithm).Observe(float64(ev.Steps))
	h.layoutFallbacks.WithLabelValues(ev.Plane).Add(float64(ev.Fallbacks))
	h.layoutOverlaps.WithLabelValues(ev.Plane).Set(float64(ev.Overlaps))
}

func (h *PromHooks) OnRelayout(_ context.Context, plane, reason string) {
	h.relayouts.WithLabelValues(plane, reason).Inc()
}

func (h *PromHooks) OnResizeCoalesced(_ context.Context, plane string) {
	h.coalesced.WithLabelValues(plane).Inc()
}

func (h *PromHooks) OnFrame(_ context.Context, plane string) {
	h.frames.WithLabelValues(plane).Inc()
}

func (h *PromHooks) OnCacheHit(_ context.Context, keyType string) {
	h.cacheOps.WithLabelValues(keyType, "hit").Inc()
}

func (h *PromHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.cacheOps.WithLabelValues(keyType, "miss").Inc()
}

func (h *PromHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.cacheOps.WithLabelValues(keyType, "set").Inc()
	h.cacheBytes.WithLabelValues(keyType).Add(float64(size))
}

func (h *PromHooks) OnRequest(context.Context, string, string, string) {}

func (h *PromHooks) OnResponse(_ context.Context, method, host, _ string, statusCode int, d time.Duration) {
	h.httpRequests.WithLabelValues(method, host, strconv.Itoa(statusCode)).Inc()
	h.httpDuration.WithLabelValues(method, host).Observe(d.Seconds())
}

func (h *PromHooks) OnError(_ context.Context, method, host, _ string, _ error) {
	h.httpErrors.WithLabelValues(method, host).Inc()
}

// ObserveRequest records a served request. route is the matched pattern,
// not the raw path, to bound label cardinality.
func (h *PromHooks) ObserveRequest(method, route string, statusCode int, d time.Duration) {
	h.serverRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	h.serverDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

var (
	_ LayoutHooks    = (*PromHooks)(nil)
	_ SchedulerHooks = (*PromHooks)(nil)
	_ CacheHooks     = (*PromHooks)(nil)
	_ HTTPHooks      = (*PromHooks)(nil)
)
