package plugins

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/pulseboard/pulseboard/pkg/datasource"
)

// WASMConfig contains configuration for the WASM plugin host.
type WASMConfig struct {
	// Timeout is the default timeout for WASM calls.
	Timeout time.Duration

	// MemoryLimitPages is the maximum memory limit in pages (64KB each).
	// Default is 256 pages (16MB).
	MemoryLimitPages uint32
}

// wasmModule is a compiled WASM plugin. It implements datasource.Factory:
// every client gets its own module instance so plugin state is never shared
// between datasources.
type wasmModule struct {
	manifest *Manifest
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	config   *WASMConfig
}

// newWASMModule creates a runtime and compiles the plugin module.
func newWASMModule(ctx context.Context, manifest *Manifest, wasmBytes []byte, cfg *WASMConfig) (*wasmModule, error) {
	if cfg == nil {
		cfg = &WASMConfig{}
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MemoryLimitPages == 0 {
		cfg.MemoryLimitPages = 256 // 16MB
	}

	runtimeConfig := wazero.NewRuntimeConfig().
		WithMemoryLimitPages(cfg.MemoryLimitPages).
		WithCloseOnContextDone(true)

	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeConfig)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
	}

	compiled, err := runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("failed to compile WASM module: %w", err)
	}

	return &wasmModule{
		manifest: manifest,
		runtime:  runtime,
		compiled: compiled,
		config:   cfg,
	}, nil
}

// NewClient instantiates the plugin module and wires the exported functions
// into a datasource client. A module missing the required exports cannot
// serve as a datasource plugin.
func (m *wasmModule) NewClient(ctx context.Context, cfg *datasource.Config) (datasource.Client, error) {
	moduleConfig := wazero.NewModuleConfig().
		WithName(cfg.Name).
		WithStartFunctions("_initialize")

	instance, err := m.runtime.InstantiateModule(ctx, m.compiled, moduleConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate WASM module: %w", err)
	}

	client, err := newWASMClient(instance, m.config.Timeout)
	if err != nil {
		instance.Close(ctx)
		return nil, err
	}

	// Hand the datasource settings to the plugin, when it accepts them.
	if client.configure != nil && len(cfg.Settings) > 0 {
		if err := client.callConfigure(ctx, cfg.Settings); err != nil {
			instance.Close(ctx)
			return nil, fmt.Errorf("plugin rejected settings: %w", err)
		}
	}

	return client, nil
}

// Close releases the runtime and everything instantiated from it.
func (m *wasmModule) Close(ctx context.Context) error {
	return m.runtime.Close(ctx)
}

// wasmClient is one instantiated plugin module serving queries. JSON request
// and response bodies are exchanged through the module's linear memory using
// its exported malloc/free.
type wasmClient struct {
	module    api.Module
	memory    api.Memory
	malloc    api.Function
	free      api.Function
	query     api.Function
	configure api.Function
	timeout   time.Duration
}

// newWASMClient resolves the exports the client needs. query, malloc and
// free are required; configure is optional.
func newWASMClient(module api.Module, timeout time.Duration) (*wasmClient, error) {
	c := &wasmClient{
		module:  module,
		timeout: timeout,
	}

	c.memory = module.Memory()
	if c.memory == nil {
		return nil, fmt.Errorf("WASM module does not export memory")
	}

	c.malloc = module.ExportedFunction("malloc")
	if c.malloc == nil {
		return nil, fmt.Errorf("WASM module does not export malloc function")
	}

	c.free = module.ExportedFunction("free")
	if c.free == nil {
		return nil, fmt.Errorf("WASM module does not export free function")
	}

	c.query = module.ExportedFunction("query")
	if c.query == nil {
		return nil, fmt.Errorf("WASM module does not export query function")
	}

	// Optional export.
	c.configure = module.ExportedFunction("configure")

	return c, nil
}

// Query executes a datasource query inside the plugin.
func (c *wasmClient) Query(ctx context.Context, req datasource.QueryRequest) (*datasource.QueryResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query request: %w", err)
	}

	resultBytes, err := c.call(ctx, c.query, payload)
	if err != nil {
		return nil, err
	}

	var resp datasource.QueryResponse
	if err := json.Unmarshal(resultBytes, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal query response: %w", err)
	}
	return &resp, nil
}

// Close closes the module instance.
func (c *wasmClient) Close(ctx context.Context) error {
	return c.module.Close(ctx)
}

// callConfigure passes the datasource settings into the plugin.
func (c *wasmClient) callConfigure(ctx context.Context, settings []byte) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.call(ctx, c.configure, settings)
	return err
}

// call writes payload into plugin memory, invokes fn(ptr, len) and reads the
// packed (ptr<<32|len) result back out of memory.
func (c *wasmClient) call(ctx context.Context, fn api.Function, payload []byte) ([]byte, error) {
	size := uint64(len(payload))

	allocated, err := c.malloc.Call(ctx, size)
	if err != nil {
		return nil, fmt.Errorf("malloc failed: %w", err)
	}
	ptr := allocated[0]
	defer c.free.Call(ctx, ptr)

	if !c.memory.Write(uint32(ptr), payload) {
		return nil, fmt.Errorf("failed to write payload to WASM memory")
	}

	results, err := fn.Call(ctx, ptr, size)
	if err != nil {
		return nil, fmt.Errorf("WASM call failed: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	packed := results[0]
	resultPtr := uint32(packed >> 32)
	resultLen := uint32(packed)
	if resultLen == 0 {
		return nil, nil
	}

	out, ok := c.memory.Read(resultPtr, resultLen)
	if !ok {
		return nil, fmt.Errorf("failed to read result from WASM memory")
	}

	// Copy before the plugin reuses the memory.
	result := make([]byte, len(out))
	copy(result, out)

	defer c.free.Call(ctx, uint64(resultPtr))
	return result, nil
}
