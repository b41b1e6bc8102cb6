package telemetry

import (
	"context"
	"fmt"
)

// Telemetry bundles the logger, tracer, metrics and event publisher built
// from one Config. The composition root creates one bundle and wires its
// pieces into the datasource service.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher

	config *Config
}

// telemetryContextKey is the context key for the telemetry bundle.
type telemetryContextKey struct{}

// NewTelemetry creates all telemetry components from the configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	events, err := NewEventPublisher(cfg.Events)
	if err != nil {
		return nil, fmt.Errorf("failed to create event publisher: %w", err)
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Events:  events,
		config:  cfg,
	}, nil
}

// WithContext adds the telemetry bundle to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, telemetryContextKey{}, t)
}

// FromTelemetryContext retrieves the telemetry bundle from the context, or
// nil when none is attached.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown flushes and stops all telemetry components.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var firstErr error

	if err := t.Events.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := t.Tracer.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}

// StartMetricsServer starts the metrics HTTP endpoint, if configured.
func (t *Telemetry) StartMetricsServer() error {
	return t.Metrics.StartServer()
}
