package config

import (
	"github.com/pulseboard/pulseboard/pkg/datasource"
	"github.com/pulseboard/pulseboard/pkg/variables"
)

// File is the on-disk application configuration.
type File struct {
	// Default is the name of the default datasource. It must name an entry
	// in Datasources when set.
	Default string `yaml:"default" json:"default"`

	// Datasources are the configured datasources.
	Datasources []datasource.Config `yaml:"datasources" json:"datasources" validate:"required,min=1"`

	// Variables are the declared template variables.
	Variables []*variables.Variable `yaml:"variables,omitempty" json:"variables,omitempty"`

	// PluginDir is an optional directory scanned for WASM plugin manifests.
	PluginDir string `yaml:"pluginDir,omitempty" json:"pluginDir,omitempty"`
}

// VariableIndex builds the template-variable index from the declared
// variables.
func (f *File) VariableIndex() *variables.Index {
	return variables.NewIndex(f.Variables...)
}
