package plugins

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pulseboard/pulseboard/pkg/datasource"
	"github.com/pulseboard/pulseboard/pkg/telemetry"
)

// Registry maps module references to plugin modules and implements
// datasource.Loader. Built-in modules are registered directly; WASM modules
// are registered from manifests and compiled lazily on first load.
type Registry struct {
	// mu protects the registry state.
	mu sync.RWMutex

	// builtin maps module ref to modules registered at composition time.
	builtin map[string]datasource.Module

	// pending maps module ref to WASM sources discovered but not yet
	// compiled.
	pending map[string]*wasmSource

	// loaded maps module ref to compiled WASM-backed modules.
	loaded map[string]datasource.Module

	// manifests is the manifest loader.
	manifests *ManifestLoader

	// wasmConfig is the WASM host configuration.
	wasmConfig *WASMConfig

	log     *telemetry.Logger
	events  *telemetry.EventPublisher
	metrics *telemetry.Metrics
}

// wasmSource is a discovered-but-uncompiled WASM plugin.
type wasmSource struct {
	manifest *Manifest
	wasmPath string
}

// RegistryOptions configures a Registry. All fields are optional.
type RegistryOptions struct {
	WASMConfig *WASMConfig
	Logger     *telemetry.Logger
	Events     *telemetry.EventPublisher
	Metrics    *telemetry.Metrics
}

// NewRegistry creates a new plugin registry.
func NewRegistry(opts RegistryOptions) *Registry {
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

	return &Registry{
		builtin:    make(map[string]datasource.Module),
		pending:    make(map[string]*wasmSource),
		loaded:     make(map[string]datasource.Module),
		manifests:  NewManifestLoader(),
		wasmConfig: opts.WASMConfig,
		log:        log.NewComponentLogger("plugins"),
		events:     events,
		metrics:    metrics,
	}
}

// Register registers a built-in plugin module under a module reference.
func (r *Registry) Register(moduleRef string, mod datasource.Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.builtin[moduleRef]; exists {
		return fmt.Errorf("plugin module %q already registered", moduleRef)
	}
	r.builtin[moduleRef] = mod

	r.metrics.SetPluginsRegistered(float64(r.countLocked()))
	r.events.PublishPluginRegistered(moduleRef)
	r.log.WithModule(moduleRef).Debug("built-in plugin registered")
	return nil
}

// RegisterFromManifest registers a WASM plugin from a manifest file. The
// module is compiled on first load, not here.
func (r *Registry) RegisterFromManifest(path string) error {
	manifest, wasmPath, err := r.manifests.LoadFromFile(path)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.builtin[manifest.Module]; exists {
		return fmt.Errorf("plugin module %q already registered", manifest.Module)
	}
	if _, exists := r.pending[manifest.Module]; exists {
		return fmt.Errorf("plugin module %q already registered", manifest.Module)
	}
	if _, exists := r.loaded[manifest.Module]; exists {
		return fmt.Errorf("plugin module %q already registered", manifest.Module)
	}

	r.pending[manifest.Module] = &wasmSource{manifest: manifest, wasmPath: wasmPath}

	r.metrics.SetPluginsRegistered(float64(r.countLocked()))
	r.events.PublishPluginRegistered(manifest.Module)
	r.log.WithModule(manifest.Module).Info("plugin manifest registered")
	return nil
}

// ScanDirectory scans a directory for plugin manifests and registers them.
// Subdirectories each carry one manifest.yaml; broken manifests are logged
// and skipped.
func (r *Registry) ScanDirectory(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read plugin directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		manifestPath := filepath.Join(dir, entry.Name(), "manifest.yaml")
		if _, err := os.Stat(manifestPath); err != nil {
			continue
		}
		if err := r.RegisterFromManifest(manifestPath); err != nil {
			r.log.WithError(err).Warnf("failed to register plugin from %s", manifestPath)
		}
	}

	return nil
}

// Load returns the plugin module for a module reference, compiling a WASM
// module on first use. It implements datasource.Loader.
func (r *Registry) Load(ctx context.Context, moduleRef string) (datasource.Module, error) {
	r.mu.RLock()
	if mod, ok := r.builtin[moduleRef]; ok {
		r.mu.RUnlock()
		return mod, nil
	}
	if mod, ok := r.loaded[moduleRef]; ok {
		r.mu.RUnlock()
		return mod, nil
	}
	src, pending := r.pending[moduleRef]
	r.mu.RUnlock()

	if !pending {
		return nil, fmt.Errorf("plugin module %q is not registered", moduleRef)
	}

	mod, err := r.compile(ctx, src)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Another load for the same ref may have won; keep the first module.
	if existing, ok := r.loaded[moduleRef]; ok {
		return existing, nil
	}
	r.loaded[moduleRef] = mod
	delete(r.pending, moduleRef)
	return mod, nil
}

// compile reads, verifies and compiles a WASM plugin.
func (r *Registry) compile(ctx context.Context, src *wasmSource) (datasource.Module, error) {
	wasmBytes, err := os.ReadFile(src.wasmPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read WASM module: %w", err)
	}

	if err := src.manifest.VerifyChecksum(wasmBytes); err != nil {
		return nil, err
	}

	mod, err := newWASMModule(ctx, src.manifest, wasmBytes, r.wasmConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to compile WASM module %q: %w", src.manifest.Module, err)
	}

	r.log.WithModule(src.manifest.Module).Info("WASM plugin compiled")
	return mod, nil
}

// Modules returns the registered module references.
func (r *Registry) Modules() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	refs := make([]string, 0, r.countLocked())
	for ref := range r.builtin {
		refs = append(refs, ref)
	}
	for ref := range r.pending {
		refs = append(refs, ref)
	}
	for ref := range r.loaded {
		refs = append(refs, ref)
	}
	return refs
}

// Close releases all compiled WASM modules.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for ref, mod := range r.loaded {
		if closer, ok := mod.(interface{ Close(context.Context) error }); ok {
			if err := closer.Close(ctx); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("failed to close plugin %s: %w", ref, err)
			}
		}
	}
	r.loaded = make(map[string]datasource.Module)
	return firstErr
}

// countLocked returns the number of registered modules. Callers hold mu.
func (r *Registry) countLocked() int {
	return len(r.builtin) + len(r.pending) + len(r.loaded)
}
