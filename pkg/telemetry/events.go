package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a user-facing notification emitted by the datasource service.
// The alert channel is fire-and-forget: publishers never wait for delivery
// and no acknowledgment flows back.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	// Datasource is the resolved datasource name, if applicable.
	Datasource string `json:"datasource,omitempty"`

	// Module is the plugin module reference, if applicable.
	Module string `json:"module,omitempty"`

	// Title is the short user-facing headline.
	Title string `json:"title"`

	// Body is the user-facing detail text.
	Body string `json:"body"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// EventType constants for the events the service emits.
const (
	EventTypeLoadFailed       = "datasource.load_failed"
	EventTypeLoaded           = "datasource.loaded"
	EventTypePluginRegistered = "plugin.registered"
)

// EventLevel constants for event severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be delivered.
type EventFilter func(event Event) bool

// EventPublisher manages event publishing and subscriptions.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given
// configuration. A disabled configuration yields a no-op publisher.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	ep := &EventPublisher{
		config:      cfg,
		buffer:      make(chan Event, cfg.BufferSize),
		subscribers: make([]subscriberEntry, 0),
		ctx:         ctx,
		cancel:      cancel,
	}

	if cfg.EnableAsync {
		ep.wg.Add(1)
		go ep.processEvents()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if ep.config.EnableAsync {
		select {
		case ep.buffer <- event:
			return nil
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	ep.deliverEvent(event)
	return nil
}

// PublishLoadFailed publishes the alert raised when a plugin load or
// instantiation fails. Delivery failures are ignored on purpose: the alert
// channel must never fail a resolution request.
func (ep *EventPublisher) PublishLoadFailed(name, moduleRef string, cause error) {
	_ = ep.Publish(Event{
		Type:       EventTypeLoadFailed,
		Source:     "datasource",
		Datasource: name,
		Module:     moduleRef,
		Title:      fmt.Sprintf("Datasource %s failed to load", name),
		Body:       cause.Error(),
		Level:      EventLevelError,
	})
}

// PublishLoaded publishes a successful first load of a datasource.
func (ep *EventPublisher) PublishLoaded(name, moduleRef string, duration time.Duration) {
	_ = ep.Publish(Event{
		Type:       EventTypeLoaded,
		Source:     "datasource",
		Datasource: name,
		Module:     moduleRef,
		Title:      fmt.Sprintf("Datasource %s loaded", name),
		Body:       fmt.Sprintf("Plugin module %s loaded and instantiated", moduleRef),
		Level:      EventLevelInfo,
		Data: map[string]interface{}{
			"duration": duration.Seconds(),
		},
	})
}

// PublishPluginRegistered publishes the registration of a plugin module.
func (ep *EventPublisher) PublishPluginRegistered(moduleRef string) {
	_ = ep.Publish(Event{
		Type:   EventTypePluginRegistered,
		Source: "plugins",
		Module: moduleRef,
		Title:  fmt.Sprintf("Plugin %s registered", moduleRef),
		Body:   fmt.Sprintf("Plugin module %s is now available to datasources", moduleRef),
		Level:  EventLevelInfo,
	})
}

// Subscribe adds a new event subscriber. A nil filter receives every event.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// processEvents delivers events from the buffer asynchronously.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	batch := make([]Event, 0, ep.config.MaxBatchSize)

	for {
		select {
		case event := <-ep.buffer:
			batch = append(batch, event)

			if len(batch) >= ep.config.MaxBatchSize {
				ep.flushBatch(batch)
				batch = make([]Event, 0, ep.config.MaxBatchSize)
			}

			// Drain whatever is immediately available before blocking again.
			for len(batch) > 0 && len(ep.buffer) == 0 {
				ep.flushBatch(batch)
				batch = batch[:0]
			}

		case <-ep.ctx.Done():
			if len(batch) > 0 {
				ep.flushBatch(batch)
			}
			return
		}
	}
}

// flushBatch delivers a batch of events to subscribers.
func (ep *EventPublisher) flushBatch(events []Event) {
	for _, event := range events {
		ep.deliverEvent(event)
	}
}

// deliverEvent delivers an event to all subscribers.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown gracefully shuts down the event publisher.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled {
		return nil
	}

	ep.cancel()

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// FilterByLevel creates a filter that only allows events of a specific level
// or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByDatasource creates a filter that only allows events for a specific
// datasource.
func FilterByDatasource(name string) EventFilter {
	return func(event Event) bool {
		return event.Datasource == name
	}
}
