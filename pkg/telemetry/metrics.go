package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Load outcome labels for the loads_total counter.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeNotFound  = "not_found"
	OutcomeMalformed = "malformed_plugin"
)

// Metrics provides Prometheus metrics for the datasource service.
type Metrics struct {
	config MetricsConfig

	// Cache metrics
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
	cacheSize   prometheus.Gauge

	// Load metrics
	loadsTotal   *prometheus.CounterVec
	loadDuration *prometheus.HistogramVec

	// Plugin metrics
	pluginsRegistered prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
// A disabled configuration yields a no-op collector.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.LoadDurationBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datasource_cache_hits_total",
			Help:      "Total number of datasource lookups served from the cache",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datasource_cache_misses_total",
			Help:      "Total number of datasource lookups that required a load",
		}),
		cacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "datasource_cache_size",
			Help:      "Current number of cached datasource instances",
		}),

		loadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "datasource_loads_total",
				Help:      "Total number of datasource plugin loads by outcome",
			},
			[]string{"outcome"},
		),
		loadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "datasource_load_duration_seconds",
				Help:      "Duration of datasource plugin loads in seconds",
				Buckets:   buckets,
			},
			[]string{"outcome"},
		),

		pluginsRegistered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "plugins_registered",
			Help:      "Current number of registered plugin modules",
		}),
	}

	registry.MustRegister(
		m.cacheHits,
		m.cacheMisses,
		m.cacheSize,
		m.loadsTotal,
		m.loadDuration,
		m.pluginsRegistered,
	)

	return m, nil
}

// ObserveCacheHit records a lookup served from the cache.
func (m *Metrics) ObserveCacheHit() {
	if !m.config.Enabled {
		return
	}
	m.cacheHits.Inc()
}

// ObserveCacheMiss records a lookup that missed the cache.
func (m *Metrics) ObserveCacheMiss() {
	if !m.config.Enabled {
		return
	}
	m.cacheMisses.Inc()
}

// SetCacheSize records the current number of cached instances.
func (m *Metrics) SetCacheSize(n float64) {
	if !m.config.Enabled {
		return
	}
	m.cacheSize.Set(n)
}

// ObserveLoad records a completed load attempt with its outcome.
func (m *Metrics) ObserveLoad(outcome string, duration time.Duration) {
	if !m.config.Enabled {
		return
	}
	m.loadsTotal.WithLabelValues(outcome).Inc()
	m.loadDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// SetPluginsRegistered records the current number of registered plugins.
func (m *Metrics) SetPluginsRegistered(n float64) {
	if !m.config.Enabled {
		return
	}
	m.pluginsRegistered.Set(n)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if !m.config.Enabled {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartServer starts the metrics HTTP server when a listen address is
// configured. It returns immediately; serving happens in the background.
func (m *Metrics) StartServer() error {
	if !m.config.Enabled || m.config.ListenAddress == "" {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:    m.config.ListenAddress,
		Handler: mux,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
