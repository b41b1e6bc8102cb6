package datasource

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pulseboard/pulseboard/pkg/telemetry"
	"github.com/pulseboard/pulseboard/pkg/variables"
)

// fakeStore is an in-memory Store for tests.
type fakeStore struct {
	configs     []*Config
	defaultName string
}

func newFakeStore(defaultName string, configs ...Config) *fakeStore {
	s := &fakeStore{defaultName: defaultName}
	for i := range configs {
		s.configs = append(s.configs, &configs[i])
	}
	return s
}

func (s *fakeStore) Lookup(name string) (*Config, bool) {
	for _, cfg := range s.configs {
		if cfg.Name == name {
			return cfg, true
		}
	}
	return nil, false
}

func (s *fakeStore) All() []*Config {
	out := make([]*Config, len(s.configs))
	copy(out, s.configs)
	return out
}

func (s *fakeStore) DefaultName() string { return s.defaultName }

// fakeClient is a no-op Client.
type fakeClient struct {
	closed atomic.Bool
}

func (c *fakeClient) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	return &QueryResponse{RefID: req.RefID}, nil
}

func (c *fakeClient) Close(ctx context.Context) error {
	c.closed.Store(true)
	return nil
}

// fakeModule implements Factory.
type fakeModule struct {
	constructErr error
}

func (m *fakeModule) NewClient(ctx context.Context, cfg *Config) (Client, error) {
	if m.constructErr != nil {
		return nil, m.constructErr
	}
	return &fakeClient{}, nil
}

// bareModule implements Module but not Factory.
type bareModule struct{}

// fakeLoader counts invocations per module ref.
type fakeLoader struct {
	mu      sync.Mutex
	calls   map[string]int
	modules map[string]Module
	err     error
	block   chan struct{} // when set, Load waits until closed
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{
		calls:   make(map[string]int),
		modules: make(map[string]Module),
	}
}

func (l *fakeLoader) Load(ctx context.Context, moduleRef string) (Module, error) {
	l.mu.Lock()
	l.calls[moduleRef]++
	block := l.block
	l.mu.Unlock()

	if block != nil {
		<-block
	}
	if l.err != nil {
		return nil, l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	mod, ok := l.modules[moduleRef]
	if !ok {
		return nil, errors.New("module not found")
	}
	return mod, nil
}

func (l *fakeLoader) callCount(moduleRef string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[moduleRef]
}

func newTestService(t *testing.T, store Store, loader Loader, vars ...*variables.Variable) *Service {
	t.Helper()
	svc, err := NewService(ServiceOptions{
		Store:     store,
		Loader:    loader,
		Variables: variables.NewIndex(vars...),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestGetCachesInstance(t *testing.T) {
	store := newFakeStore("", Config{Name: "prometheus", Meta: Meta{ID: "prometheus", Module: "plugins/prometheus"}})
	loader := newFakeLoader()
	loader.modules["plugins/prometheus"] = &fakeModule{}
	svc := newTestService(t, store, loader)

	first, err := svc.Get(context.Background(), "prometheus")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if first.Name != "prometheus" || first.Meta.ID != "prometheus" {
		t.Errorf("unexpected instance: %+v", first)
	}

	second, err := svc.Get(context.Background(), "prometheus")
	if err != nil {
		t.Fatalf("Get (cached): %v", err)
	}
	if first != second {
		t.Error("repeated Get must return the same instance")
	}
	if got := loader.callCount("plugins/prometheus"); got != 1 {
		t.Errorf("loader invoked %d times, want 1", got)
	}
}

func TestGetNotFound(t *testing.T) {
	store := newFakeStore("")
	svc := newTestService(t, store, newFakeLoader())

	_, err := svc.Get(context.Background(), "missing")
	if !IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
	var e *Error
	if !errors.As(err, &e) || e.Name != "missing" {
		t.Errorf("error must carry the offending name, got %v", err)
	}
}

func TestGetMalformedPlugin(t *testing.T) {
	store := newFakeStore("", Config{Name: "bad", Meta: Meta{Module: "plugins/bad"}})
	loader := newFakeLoader()
	loader.modules["plugins/bad"] = bareModule{}
	svc := newTestService(t, store, loader)

	_, err := svc.Get(context.Background(), "bad")
	if !IsMalformedPlugin(err) {
		t.Fatalf("expected malformed-plugin error, got %v", err)
	}
}

func TestGetLoaderFailureIsReportedAndRetried(t *testing.T) {
	store := newFakeStore("", Config{Name: "flaky", Meta: Meta{Module: "plugins/flaky"}})
	loader := newFakeLoader()
	loader.err = errors.New("fetch failed")

	events, err := telemetry.NewEventPublisher(telemetry.EventsConfig{
		Enabled:    true,
		BufferSize: 8,
	})
	if err != nil {
		t.Fatal(err)
	}
	var mu sync.Mutex
	var alerts []telemetry.Event
	events.Subscribe(func(e telemetry.Event) {
		mu.Lock()
		alerts = append(alerts, e)
		mu.Unlock()
	}, telemetry.FilterByType(telemetry.EventTypeLoadFailed))

	svc, err := NewService(ServiceOptions{
		Store:     store,
		Loader:    loader,
		Variables: variables.NewIndex(),
		Events:    events,
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Get(context.Background(), "flaky"); !IsLoaderFailure(err) {
		t.Fatalf("expected loader-failure error, got %v", err)
	}

	// Failures are not cached: the next Get pays the full load again.
	loader.err = nil
	loader.modules["plugins/flaky"] = &fakeModule{}
	if _, err := svc.Get(context.Background(), "flaky"); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if got := loader.callCount("plugins/flaky"); got != 2 {
		t.Errorf("loader invoked %d times, want 2 (failure then retry)", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(alerts) != 1 {
		t.Fatalf("expected 1 load-failed alert, got %d", len(alerts))
	}
	if alerts[0].Datasource != "flaky" || alerts[0].Title == "" || alerts[0].Body == "" {
		t.Errorf("alert must carry datasource, title and body: %+v", alerts[0])
	}
}

func TestGetConstructorFailureIsLoaderFailure(t *testing.T) {
	store := newFakeStore("", Config{Name: "broken", Meta: Meta{Module: "plugins/broken"}})
	loader := newFakeLoader()
	loader.modules["plugins/broken"] = &fakeModule{constructErr: errors.New("bad settings")}
	svc := newTestService(t, store, loader)

	if _, err := svc.Get(context.Background(), "broken"); !IsLoaderFailure(err) {
		t.Fatalf("expected loader-failure error, got %v", err)
	}
}

func TestConcurrentGetsShareOneLoad(t *testing.T) {
	store := newFakeStore("", Config{Name: "prometheus", Meta: Meta{Module: "plugins/prometheus"}})
	loader := newFakeLoader()
	loader.modules["plugins/prometheus"] = &fakeModule{}
	loader.block = make(chan struct{})
	svc := newTestService(t, store, loader)

	const callers = 8
	results := make([]*Instance, callers)
	errs := make([]error, callers)
	var started, done sync.WaitGroup
	started.Add(callers)
	done.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			started.Done()
			defer done.Done()
			results[i], errs[i] = svc.Get(context.Background(), "prometheus")
		}(i)
	}

	started.Wait()
	close(loader.block)
	done.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if results[i] != results[0] {
			t.Fatal("all concurrent callers must receive the same instance")
		}
	}
	if got := loader.callCount("plugins/prometheus"); got != 1 {
		t.Errorf("loader invoked %d times under concurrency, want 1", got)
	}
}

func TestGetEmptyNameUsesDefault(t *testing.T) {
	store := newFakeStore("graphite",
		Config{Name: "graphite", Meta: Meta{Module: "plugins/graphite"}})
	loader := newFakeLoader()
	loader.modules["plugins/graphite"] = &fakeModule{}
	svc := newTestService(t, store, loader)

	inst, err := svc.Get(context.Background(), "")
	if err != nil {
		t.Fatalf("Get(\"\"): %v", err)
	}
	if inst.Name != "graphite" {
		t.Errorf("resolved %q, want graphite", inst.Name)
	}

	// The literal alias resolves to the same cached instance.
	viaAlias, err := svc.Get(context.Background(), "default")
	if err != nil {
		t.Fatalf("Get(default): %v", err)
	}
	if viaAlias != inst {
		t.Error("default alias must hit the same cache entry")
	}
	if got := loader.callCount("plugins/graphite"); got != 1 {
		t.Errorf("loader invoked %d times, want 1", got)
	}
}

func TestCached(t *testing.T) {
	store := newFakeStore("", Config{Name: "a", Meta: Meta{Module: "m"}})
	loader := newFakeLoader()
	loader.modules["m"] = &fakeModule{}
	svc := newTestService(t, store, loader)

	if _, ok := svc.Cached("a"); ok {
		t.Fatal("nothing should be cached before the first Get")
	}
	inst, err := svc.Get(context.Background(), "a")
	if err != nil {
		t.Fatal(err)
	}
	cached, ok := svc.Cached("a")
	if !ok || cached != inst {
		t.Error("Cached must return the loaded instance")
	}
}
