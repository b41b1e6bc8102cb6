package datasource

import (
	"context"
	"encoding/json"

	"gopkg.in/yaml.v3"

	"github.com/pulseboard/pulseboard/pkg/variables"
)

// DefaultAlias is the literal name that always resolves to the configured
// default datasource.
const DefaultAlias = "default"

// Well-known plugin ids with special list ordering. The dashboard source is
// the application's own built-in datasource; the mixed source fans a panel
// out to several datasources at query time. Both always sort at the bottom
// of metric source pickers, dashboard before mixed.
const (
	DashboardSourceID = "pulseboard"
	MixedSourceID     = "mixed"
)

// Meta is the capability descriptor of a configured datasource. It is
// supplied by the configuration store and copied onto instances at load time.
type Meta struct {
	// ID identifies the plugin type (e.g. "prometheus").
	ID string `json:"id" yaml:"id"`

	// Module is the loader reference for the plugin implementation.
	Module string `json:"module" yaml:"module"`

	// BuiltIn marks datasources shipped with the application rather than
	// installed as plugins.
	BuiltIn bool `json:"builtIn" yaml:"builtIn"`

	// Annotations marks datasources that can serve annotation queries.
	Annotations bool `json:"annotations" yaml:"annotations"`

	// Metrics marks datasources that can serve metric queries.
	Metrics bool `json:"metrics" yaml:"metrics"`
}

// Config is the externally supplied configuration of one datasource. The
// service never mutates it.
type Config struct {
	// Name is the unique key into the configuration store.
	Name string `json:"name" yaml:"name"`

	// Meta is the capability descriptor.
	Meta Meta `json:"meta" yaml:"meta"`

	// Settings is the plugin-specific configuration, passed through to the
	// plugin constructor.
	Settings json.RawMessage `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// UnmarshalYAML decodes a config entry, re-encoding the free-form settings
// mapping as JSON so plugins receive it in the wire format they expect.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Name     string                 `yaml:"name"`
		Meta     Meta                   `yaml:"meta"`
		Settings map[string]interface{} `yaml:"settings"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	c.Name = raw.Name
	c.Meta = raw.Meta
	c.Settings = nil
	if len(raw.Settings) > 0 {
		settings, err := json.Marshal(raw.Settings)
		if err != nil {
			return err
		}
		c.Settings = settings
	}
	return nil
}

// Store is the read-only configuration store the service resolves names
// against. Implementations must be safe for concurrent readers.
type Store interface {
	// Lookup returns the configuration for name.
	Lookup(name string) (*Config, bool)

	// All returns every configured datasource. The returned slice is owned
	// by the caller.
	All() []*Config

	// DefaultName returns the name of the configured default datasource.
	DefaultName() string
}

// VariableIndex is the slice of the template-variable service the resolver
// consumes: text substitution plus lookup of declared variables.
type VariableIndex interface {
	Substitute(text string) string
	ByName(name string) (*variables.Variable, bool)
	Datasources() []*variables.Variable
}

// Module is the exported surface of a loaded plugin module. It is opaque to
// the service except for the Factory capability, which is checked at load
// time.
type Module interface{}

// Factory is the instantiation capability a plugin module must implement.
// A loaded module that does not implement Factory fails the load with a
// malformed-plugin error.
type Factory interface {
	// NewClient constructs a datasource client from its configuration.
	NewClient(ctx context.Context, cfg *Config) (Client, error)
}

// Client is a constructed datasource ready to serve queries.
type Client interface {
	// Query executes a datasource query.
	Query(ctx context.Context, req QueryRequest) (*QueryResponse, error)

	// Close releases resources held by the client.
	Close(ctx context.Context) error
}

// QueryRequest carries one query to a datasource client.
type QueryRequest struct {
	// RefID correlates the request with its response.
	RefID string `json:"refId"`

	// Query is the plugin-specific query body.
	Query json.RawMessage `json:"query"`
}

// QueryResponse is the result of a datasource query.
type QueryResponse struct {
	// RefID echoes the request RefID.
	RefID string `json:"refId"`

	// Data is the plugin-specific result body.
	Data json.RawMessage `json:"data"`
}

// Loader asynchronously turns a module reference into the plugin's exported
// module. Implementations live in the plugins package; the service only
// depends on this interface.
type Loader interface {
	Load(ctx context.Context, moduleRef string) (Module, error)
}

// Instance is the service's product: a loaded, constructed datasource. At
// most one Instance per resolved name exists in the cache at any time.
type Instance struct {
	// Name is the resolved name the instance is cached under.
	Name string

	// Meta is a copy of the configuration's Meta at load time.
	Meta Meta

	// Client is the constructed datasource client.
	Client Client

	// Module is the plugin's exported module, kept opaque.
	Module Module
}

// ScopedValue is a per-request variable binding.
type ScopedValue struct {
	Value string
}

// ScopedVars maps variable names to per-request bindings that take
// precedence over the variable's globally current value. Panels use this to
// override a dashboard variable locally during drill-down.
type ScopedVars map[string]ScopedValue

// Entry is one row of a datasource picker list.
type Entry struct {
	// Name is the display name; for variable-backed entries it is the $var
	// reference itself.
	Name string `json:"name"`

	// Value is the selectable value. It is nil for the synthetic default
	// entry, which stands for "whatever the default datasource is".
	Value *string `json:"value"`

	// Meta is the capability descriptor of the underlying datasource.
	Meta Meta `json:"meta"`

	// sortKey orders the entry in sorted lists.
	sortKey string
}

// MetricSourcesOptions controls ListMetricSources.
type MetricSourcesOptions struct {
	// SkipVariables leaves variable-backed entries out of the list.
	SkipVariables bool
}
