package plugins

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Manifest describes one WASM plugin module on disk.
type Manifest struct {
	// Name is the human-readable plugin name.
	Name string `yaml:"name" validate:"required"`

	// Module is the loader reference datasource configurations use to point
	// at this plugin.
	Module string `yaml:"module" validate:"required"`

	// Entrypoint is the WASM module file, relative to the manifest.
	Entrypoint string `yaml:"entrypoint" validate:"required"`

	// Checksum is the optional SHA256 checksum of the WASM module.
	Checksum string `yaml:"checksum,omitempty"`

	// Description describes what this plugin provides.
	Description string `yaml:"description,omitempty"`
}

// ManifestLoader loads and validates plugin manifests.
type ManifestLoader struct {
	validate *validator.Validate
}

// NewManifestLoader creates a new manifest loader.
func NewManifestLoader() *ManifestLoader {
	return &ManifestLoader{
		validate: validator.New(),
	}
}

// LoadFromFile loads a manifest from a YAML file and returns it together
// with the resolved path of its WASM entrypoint.
func (m *ManifestLoader) LoadFromFile(path string) (*Manifest, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read manifest file: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, "", fmt.Errorf("failed to parse manifest YAML: %w", err)
	}

	if err := m.validate.Struct(&manifest); err != nil {
		return nil, "", fmt.Errorf("invalid manifest %s: %w", path, err)
	}

	wasmPath := manifest.Entrypoint
	if !filepath.IsAbs(wasmPath) {
		wasmPath = filepath.Join(filepath.Dir(path), wasmPath)
	}

	return &manifest, wasmPath, nil
}

// VerifyChecksum checks the WASM module bytes against the manifest checksum.
// An empty checksum skips verification.
func (m *Manifest) VerifyChecksum(wasmModule []byte) error {
	if m.Checksum == "" {
		return nil
	}

	sum := sha256.Sum256(wasmModule)
	actual := hex.EncodeToString(sum[:])
	if actual != m.Checksum {
		return fmt.Errorf("checksum mismatch for module %s: expected %s, got %s",
			m.Module, m.Checksum, actual)
	}
	return nil
}
