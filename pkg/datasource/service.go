package datasource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/pulseboard/pulseboard/pkg/telemetry"
)

// Service resolves datasource names, loads plugin modules lazily and caches
// the constructed instances for the process lifetime.
type Service struct {
	store  Store
	loader Loader
	vars   VariableIndex

	log     *telemetry.Logger
	events  *telemetry.EventPublisher
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer

	// mu guards cache. The cache is append-only: entries are inserted once
	// and never replaced or removed.
	mu    sync.RWMutex
	cache map[string]*Instance

	// flight collapses concurrent loads for the same resolved name into a
	// single loader invocation.
	flight singleflight.Group
}

// ServiceOptions configures a Service. Store, Loader and Variables are
// required; the telemetry collaborators default to no-op implementations.
type ServiceOptions struct {
	Store     Store
	Loader    Loader
	Variables VariableIndex

	Logger  *telemetry.Logger
	Events  *telemetry.EventPublisher
	Metrics *telemetry.Metrics
	Tracer  *telemetry.Tracer
}

// NewService creates a datasource service. It is intended to be constructed
// once by the composition root and shared by reference.
func NewService(opts ServiceOptions) (*Service, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("datasource: store is required")
	}
	if opts.Loader == nil {
		return nil, fmt.Errorf("datasource: loader is required")
	}
	if opts.Variables == nil {
		return nil, fmt.Errorf("datasource: variable index is required")
	}

	log := opts.Logger
	if log == nil {
		log = telemetry.NopLogger()
	}
	events := opts.Events
	if events == nil {
		events, _ = telemetry.NewEventPublisher(telemetry.EventsConfig{})
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics, _ = telemetry.NewMetrics(telemetry.MetricsConfig{})
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer, _ = telemetry.NewTracer(telemetry.TracingConfig{}, "datasource", "dev", "test")
	}

	return &Service{
		store:   opts.Store,
		loader:  opts.Loader,
		vars:    opts.Variables,
		log:     log.NewComponentLogger("datasource"),
		events:  events,
		metrics: metrics,
		tracer:  tracer,
		cache:   make(map[string]*Instance),
	}, nil
}

// Get resolves name and returns the cached instance, loading it on first
// access. An empty name resolves to the configured default datasource.
func (s *Service) Get(ctx context.Context, name string) (*Instance, error) {
	return s.GetScoped(ctx, name, nil)
}

// GetScoped is Get with per-request variable bindings applied during name
// resolution.
func (s *Service) GetScoped(ctx context.Context, name string, scoped ScopedVars) (*Instance, error) {
	ctx, span := s.tracer.Start(ctx, "datasource.get")
	defer span.End()

	resolved := s.ResolveName(name, scoped)
	span.SetAttributes(
		attribute.String("datasource.name", name),
		attribute.String("datasource.resolved", resolved),
	)

	s.mu.RLock()
	inst, ok := s.cache[resolved]
	s.mu.RUnlock()
	if ok {
		s.metrics.ObserveCacheHit()
		return inst, nil
	}
	s.metrics.ObserveCacheMiss()

	v, err, _ := s.flight.Do(resolved, func() (interface{}, error) {
		return s.load(ctx, resolved)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return v.(*Instance), nil
}

// load performs a cache miss: store lookup, plugin load, instantiation and
// cache insert. Failures are reported to the caller and published to the
// alert channel; they are never cached, so the next Get retries.
func (s *Service) load(ctx context.Context, resolved string) (*Instance, error) {
	ctx, span := s.tracer.Start(ctx, "datasource.load")
	defer span.End()

	started := time.Now()
	log := s.log.WithDatasource(resolved)

	cfg, ok := s.store.Lookup(resolved)
	if !ok {
		s.metrics.ObserveLoad(telemetry.OutcomeNotFound, time.Since(started))
		log.Warn("datasource not found in configuration")
		return nil, NewNotFoundError(resolved)
	}

	log = log.WithModule(cfg.Meta.Module)
	log.Debug("loading datasource plugin")

	mod, err := s.loader.Load(ctx, cfg.Meta.Module)
	if err != nil {
		s.metrics.ObserveLoad(telemetry.OutcomeFailure, time.Since(started))
		s.events.PublishLoadFailed(resolved, cfg.Meta.Module, err)
		log.WithError(err).Error("plugin module load failed")
		return nil, NewLoaderFailureError(resolved, cfg.Meta.Module, err)
	}

	// Another concurrent Get for the same name may have completed while the
	// loader was in flight. Keep the cached instance and discard this load.
	s.mu.RLock()
	inst, ok := s.cache[resolved]
	s.mu.RUnlock()
	if ok {
		return inst, nil
	}

	factory, ok := mod.(Factory)
	if !ok {
		s.metrics.ObserveLoad(telemetry.OutcomeMalformed, time.Since(started))
		s.events.PublishLoadFailed(resolved, cfg.Meta.Module,
			NewMalformedPluginError(resolved, cfg.Meta.Module))
		log.Error("plugin module does not implement the client factory")
		return nil, NewMalformedPluginError(resolved, cfg.Meta.Module)
	}

	client, err := factory.NewClient(ctx, cfg)
	if err != nil {
		s.metrics.ObserveLoad(telemetry.OutcomeFailure, time.Since(started))
		s.events.PublishLoadFailed(resolved, cfg.Meta.Module, err)
		log.WithError(err).Error("plugin client construction failed")
		return nil, NewLoaderFailureError(resolved, cfg.Meta.Module, err)
	}

	inst = &Instance{
		Name:   resolved,
		Meta:   cfg.Meta,
		Client: client,
		Module: mod,
	}

	s.mu.Lock()
	if cached, ok := s.cache[resolved]; ok {
		// Lost the race after construction: keep the first instance.
		s.mu.Unlock()
		_ = client.Close(ctx)
		return cached, nil
	}
	s.cache[resolved] = inst
	s.mu.Unlock()

	s.metrics.ObserveLoad(telemetry.OutcomeSuccess, time.Since(started))
	s.events.PublishLoaded(resolved, cfg.Meta.Module, time.Since(started))
	log.Info("datasource loaded")

	return inst, nil
}

// Cached returns the cached instance for an already-resolved name without
// triggering a load.
func (s *Service) Cached(resolved string) (*Instance, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.cache[resolved]
	return inst, ok
}
