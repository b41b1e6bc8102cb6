package datasource

import (
	"sort"
	"strings"
)

// Sort keys forcing the dashboard and mixed sources to the bottom of metric
// source lists. The two highest-order printable characters keep dashboard
// last-but-one and mixed absolute last under the case-insensitive sort.
const (
	sortKeyDashboard = "ý"
	sortKeyMixed     = "þ"
)

// ListAll returns every configured datasource. The list is built fresh on
// every call; nothing here is cached.
func (s *Service) ListAll() []*Config {
	return s.store.All()
}

// ListExternal returns the configured datasources that are not built into
// the application, sorted ascending by name (case-sensitive).
func (s *Service) ListExternal() []*Config {
	var out []*Config
	for _, cfg := range s.store.All() {
		if cfg.Meta.BuiltIn {
			continue
		}
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListAnnotationSources returns the datasources that can serve annotation
// queries, with variable-backed entries prepended.
func (s *Service) ListAnnotationSources() []Entry {
	entries := s.variableEntries()
	for _, cfg := range s.store.All() {
		if !cfg.Meta.Annotations {
			continue
		}
		name := cfg.Name
		entries = append(entries, Entry{
			Name:    cfg.Name,
			Value:   &name,
			Meta:    cfg.Meta,
			sortKey: strings.ToLower(cfg.Name),
		})
	}
	return entries
}

// ListMetricSources returns the datasources that can serve metric queries,
// ordered for picker display: case-insensitive by name, with the dashboard
// source last-but-one and the mixed source last. A synthetic "default" entry
// (nil value) follows the configured default datasource, and variable-backed
// entries are included unless opts.SkipVariables is set.
func (s *Service) ListMetricSources(opts *MetricSourcesOptions) []Entry {
	var entries []Entry
	defaultName := s.store.DefaultName()

	for _, cfg := range s.store.All() {
		if !cfg.Meta.Metrics {
			continue
		}
		key := strings.ToLower(cfg.Name)
		switch cfg.Meta.ID {
		case DashboardSourceID:
			key = sortKeyDashboard
		case MixedSourceID:
			key = sortKeyMixed
		}
		name := cfg.Name
		entries = append(entries, Entry{
			Name:    cfg.Name,
			Value:   &name,
			Meta:    cfg.Meta,
			sortKey: key,
		})
		if cfg.Name == defaultName {
			// The synthetic default entry borrows the default source's sort
			// key so the stable sort keeps it immediately after it.
			entries = append(entries, Entry{
				Name:    DefaultAlias,
				Value:   nil,
				Meta:    cfg.Meta,
				sortKey: key,
			})
		}
	}

	if opts == nil || !opts.SkipVariables {
		entries = append(entries, s.variableEntries()...)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].sortKey < entries[j].sortKey
	})
	return entries
}

// variableEntries builds one picker entry per declared datasource-kind
// variable whose current value resolves to a known datasource. Variables
// pointing at unknown datasources are silently omitted.
func (s *Service) variableEntries() []Entry {
	var entries []Entry
	for _, v := range s.vars.Datasources() {
		current := v.Current.First()
		if current == DefaultAlias {
			current = s.store.DefaultName()
		}
		cfg, ok := s.store.Lookup(current)
		if !ok {
			continue
		}
		ref := "$" + v.Name
		value := ref
		entries = append(entries, Entry{
			Name:    ref,
			Value:   &value,
			Meta:    cfg.Meta,
			sortKey: strings.ToLower(ref),
		})
	}
	return entries
}
