package config

import (
	"fmt"

	"github.com/pulseboard/pulseboard/pkg/datasource"
)

// Store is the immutable datasource configuration store. It implements
// datasource.Store.
type Store struct {
	ordered     []*datasource.Config
	byName      map[string]*datasource.Config
	defaultName string
}

// NewStore builds a store from datasource configurations. Names must be
// unique and non-empty; defaultName, when set, must name one of them.
func NewStore(configs []datasource.Config, defaultName string) (*Store, error) {
	s := &Store{
		ordered: make([]*datasource.Config, 0, len(configs)),
		byName:  make(map[string]*datasource.Config, len(configs)),
	}

	for i := range configs {
		cfg := configs[i]
		if cfg.Name == "" {
			return nil, fmt.Errorf("datasource at index %d has no name", i)
		}
		if cfg.Name == datasource.DefaultAlias {
			return nil, fmt.Errorf("datasource name %q is reserved", datasource.DefaultAlias)
		}
		if _, exists := s.byName[cfg.Name]; exists {
			return nil, fmt.Errorf("duplicate datasource name %q", cfg.Name)
		}
		s.ordered = append(s.ordered, &cfg)
		s.byName[cfg.Name] = &cfg
	}

	if defaultName != "" {
		if _, ok := s.byName[defaultName]; !ok {
			return nil, fmt.Errorf("default datasource %q is not configured", defaultName)
		}
	}
	s.defaultName = defaultName

	return s, nil
}

// Lookup returns the configuration for name.
func (s *Store) Lookup(name string) (*datasource.Config, bool) {
	cfg, ok := s.byName[name]
	return cfg, ok
}

// All returns every configured datasource in declaration order. The slice is
// built fresh on every call.
func (s *Store) All() []*datasource.Config {
	out := make([]*datasource.Config, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// DefaultName returns the configured default datasource name.
func (s *Store) DefaultName() string {
	return s.defaultName
}
