// Package observability holds the Prometheus collectors of the catalog builder.
package observability

import (
	"errors"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var variantLabel atomic.Value

func init() {
	variantLabel.Store("glacier")
}

func SetVariant(s string) {
	if s == "" {
		s = "glacier"
	}
	variantLabel.Store(s)
}

func getVariant() string {
	if v := variantLabel.Load(); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "glacier"
}

// File outcomes reported by the crawler.
const (
	OutcomeWritten   = "written"
	OutcomeFiltered  = "filtered"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

type collectors struct {
	files            *prometheus.CounterVec
	placeholders     *prometheus.CounterVec
	storeOps         *prometheus.CounterVec
	storeOpDuration  *prometheus.HistogramVec
	crawlDuration    *prometheus.HistogramVec
	eventsPublished  *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDurationSecs *prometheus.HistogramVec
}

var (
	mu  sync.RWMutex
	cur *collectors
)

func newCollectors() *collectors {
	return &collectors{
		files: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_files_total",
				Help: "Candidate dataset files by kind and outcome.",
			},
			[]string{"kind", "outcome", "variant"},
		),
		placeholders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_placeholder_extents_total",
				Help: "Point clouds whose extent was forced to the placeholder box.",
			},
			[]string{"variant"},
		),
		storeOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_store_op_total",
				Help: "Catalog backend operations by result.",
			},
			[]string{"op", "result", "variant"},
		),
		storeOpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "catalog_store_op_duration_seconds",
				Help:    "Latency of catalog backend operations.",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
			},
			[]string{"op"},
		),
		crawlDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "catalog_crawl_duration_seconds",
				Help:    "Wall time of complete crawl runs.",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
			},
			[]string{"variant"},
		),
		eventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_events_published_total",
				Help: "Catalog entry events sent to Kafka by result.",
			},
			[]string{"result"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		httpDurationSecs: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
			},
			[]string{"method", "route", "status"},
		),
	}
}

// Init creates the collectors and registers them with reg, reusing any that
// are already registered there. When enabled is false the helpers below are no-ops.
func Init(reg prometheus.Registerer, enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	if !enabled || reg == nil {
		cur = nil
		return
	}
	c := newCollectors()
	c.files = register(reg, c.files)
	c.placeholders = register(reg, c.placeholders)
	c.storeOps = register(reg, c.storeOps)
	c.storeOpDuration = register(reg, c.storeOpDuration)
	c.crawlDuration = register(reg, c.crawlDuration)
	c.eventsPublished = register(reg, c.eventsPublished)
	c.httpRequests = register(reg, c.httpRequests)
	c.httpDurationSecs = register(reg, c.httpDurationSecs)
	cur = c
}

func register[T prometheus.Collector](reg prometheus.Registerer, col T) T {
	if err := reg.Register(col); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return col
}

func get() *collectors {
	mu.RLock()
	defer mu.RUnlock()
	return cur
}

func ObserveFile(kind, outcome string) {
	if c := get(); c != nil {
		c.files.WithLabelValues(kind, outcome, getVariant()).Inc()
	}
}

func IncPlaceholderExtent() {
	if c := get(); c != nil {
		c.placeholders.WithLabelValues(getVariant()).Inc()
	}
}

func ObserveStoreOp(op string, err error, durationSeconds float64) {
	c := get()
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.storeOps.WithLabelValues(op, result, getVariant()).Inc()
	c.storeOpDuration.WithLabelValues(op).Observe(durationSeconds)
}

func ObserveCrawl(durationSeconds float64) {
	if c := get(); c != nil {
		c.crawlDuration.WithLabelValues(getVariant()).Observe(durationSeconds)
	}
}

func ObserveEventPublish(err error) {
	c := get()
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.eventsPublished.WithLabelValues(result).Inc()
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	c := get()
	if c == nil {
		return
	}
	st := strconv.Itoa(status)
	c.httpRequests.WithLabelValues(method, route, st).Inc()
	c.httpDurationSecs.WithLabelValues(method, route, st).Observe(durationSeconds)
}
