package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestEventPublisherSync(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{
		Enabled:      true,
		BufferSize:   8,
		EnableAsync:  false,
		MaxBatchSize: 4,
	})
	if err != nil {
		t.Fatalf("NewEventPublisher: %v", err)
	}

	var got []Event
	ep.Subscribe(func(e Event) { got = append(got, e) }, nil)

	ep.PublishLoadFailed("graphite", "plugins/graphite", errors.New("boom"))

	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	e := got[0]
	if e.Type != EventTypeLoadFailed {
		t.Errorf("Type = %q, want %q", e.Type, EventTypeLoadFailed)
	}
	if e.Datasource != "graphite" || e.Module != "plugins/graphite" {
		t.Errorf("unexpected event subject: %+v", e)
	}
	if e.Title == "" || e.Body != "boom" {
		t.Errorf("expected user-facing title and body, got title=%q body=%q", e.Title, e.Body)
	}
	if e.ID == "" || e.Timestamp.IsZero() {
		t.Error("expected event id and timestamp to be stamped")
	}
}

func TestEventPublisherAsyncDelivery(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{
		Enabled:      true,
		BufferSize:   8,
		EnableAsync:  true,
		MaxBatchSize: 2,
	})
	if err != nil {
		t.Fatalf("NewEventPublisher: %v", err)
	}

	var mu sync.Mutex
	var count int
	ep.Subscribe(func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
	}, FilterByType(EventTypeLoaded))

	ep.PublishLoaded("prometheus", "plugins/prometheus", 5*time.Millisecond)
	ep.PublishPluginRegistered("plugins/elastic") // filtered out

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ep.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("expected exactly the loaded event after filtering, got %d", count)
	}
}

func TestEventPublisherDisabled(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewEventPublisher: %v", err)
	}

	// Must be safe to publish and shut down without any setup.
	ep.PublishLoadFailed("x", "y", errors.New("z"))
	if err := ep.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestFilterByLevel(t *testing.T) {
	f := FilterByLevel(EventLevelWarning)

	if f(Event{Level: EventLevelInfo}) {
		t.Error("info should be filtered below warning")
	}
	if !f(Event{Level: EventLevelError}) {
		t.Error("error should pass a warning filter")
	}
}
