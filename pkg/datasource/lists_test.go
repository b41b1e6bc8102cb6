package datasource

import (
	"testing"

	"github.com/pulseboard/pulseboard/pkg/variables"
)

func entryNames(entries []Entry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

func equalNames(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestListMetricSourcesOrdering(t *testing.T) {
	store := newFakeStore("prometheus",
		Config{Name: "Elastic", Meta: Meta{ID: "elasticsearch", Module: "m", Metrics: true}},
		Config{Name: "dashboard", Meta: Meta{ID: DashboardSourceID, Module: "m", Metrics: true, BuiltIn: true}},
		Config{Name: "Mixed", Meta: Meta{ID: MixedSourceID, Module: "m", Metrics: true, BuiltIn: true}},
		Config{Name: "prometheus", Meta: Meta{ID: "prometheus", Module: "m", Metrics: true}},
		Config{Name: "logs", Meta: Meta{ID: "loki", Module: "m", Annotations: true}},
	)
	vars := []*variables.Variable{
		{Name: "source", Kind: variables.KindDatasource, Current: variables.Value{"prometheus"}},
	}
	svc := newTestService(t, store, newFakeLoader(), vars...)

	got := entryNames(svc.ListMetricSources(nil))
	want := []string{"$source", "Elastic", "prometheus", "default", "dashboard", "Mixed"}
	if !equalNames(got, want) {
		t.Errorf("ListMetricSources() order = %v, want %v", got, want)
	}

	entries := svc.ListMetricSources(nil)
	for _, e := range entries {
		switch e.Name {
		case "default":
			if e.Value != nil {
				t.Error("synthetic default entry must have a nil value")
			}
			if e.Meta.ID != "prometheus" {
				t.Errorf("default entry borrows the default source meta, got id %q", e.Meta.ID)
			}
		case "$source":
			if e.Value == nil || *e.Value != "$source" {
				t.Errorf("variable entry value = %v, want $source", e.Value)
			}
			if e.Meta.ID != "prometheus" {
				t.Errorf("variable entry meta id = %q, want prometheus", e.Meta.ID)
			}
		}
	}
}

func TestListMetricSourcesSkipVariables(t *testing.T) {
	store := newFakeStore("",
		Config{Name: "prometheus", Meta: Meta{ID: "prometheus", Module: "m", Metrics: true}},
	)
	vars := []*variables.Variable{
		{Name: "source", Kind: variables.KindDatasource, Current: variables.Value{"prometheus"}},
	}
	svc := newTestService(t, store, newFakeLoader(), vars...)

	got := entryNames(svc.ListMetricSources(&MetricSourcesOptions{SkipVariables: true}))
	if !equalNames(got, []string{"prometheus"}) {
		t.Errorf("SkipVariables order = %v, want [prometheus]", got)
	}
}

func TestListMetricSourcesDefaultFollowsDefaultSource(t *testing.T) {
	// The worked example: two metric sources, one of them the dashboard
	// source, default pointing at the other.
	store := newFakeStore("A",
		Config{Name: "A", Meta: Meta{ID: "a", Module: "m", Metrics: true}},
		Config{Name: "dash", Meta: Meta{ID: DashboardSourceID, Module: "m", Metrics: true}},
	)
	svc := newTestService(t, store, newFakeLoader())

	got := entryNames(svc.ListMetricSources(nil))
	want := []string{"A", "default", "dash"}
	if !equalNames(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestListMetricSourcesOmitsUnresolvedVariables(t *testing.T) {
	store := newFakeStore("",
		Config{Name: "prometheus", Meta: Meta{ID: "prometheus", Module: "m", Metrics: true}},
	)
	vars := []*variables.Variable{
		{Name: "gone", Kind: variables.KindDatasource, Current: variables.Value{"deleted-source"}},
		{Name: "other", Kind: variables.KindQuery, Current: variables.Value{"prometheus"}},
	}
	svc := newTestService(t, store, newFakeLoader(), vars...)

	got := entryNames(svc.ListMetricSources(nil))
	if !equalNames(got, []string{"prometheus"}) {
		t.Errorf("order = %v, want [prometheus]; unresolved and non-datasource variables are omitted", got)
	}
}

func TestListAnnotationSources(t *testing.T) {
	store := newFakeStore("graphite",
		Config{Name: "graphite", Meta: Meta{ID: "graphite", Module: "m", Annotations: true, Metrics: true}},
		Config{Name: "prometheus", Meta: Meta{ID: "prometheus", Module: "m", Metrics: true}},
		Config{Name: "logs", Meta: Meta{ID: "loki", Module: "m", Annotations: true}},
	)
	vars := []*variables.Variable{
		{Name: "anno", Kind: variables.KindDatasource, Current: variables.Value{"logs"}},
	}
	svc := newTestService(t, store, newFakeLoader(), vars...)

	got := entryNames(svc.ListAnnotationSources())
	// Variable entries come first, then annotation-capable sources in store
	// order.
	want := []string{"$anno", "graphite", "logs"}
	if !equalNames(got, want) {
		t.Errorf("ListAnnotationSources() = %v, want %v", got, want)
	}
}

func TestListExternal(t *testing.T) {
	store := newFakeStore("",
		Config{Name: "zeta", Meta: Meta{Module: "m"}},
		Config{Name: "dash", Meta: Meta{Module: "m", BuiltIn: true}},
		Config{Name: "Beta", Meta: Meta{Module: "m"}},
		Config{Name: "alpha", Meta: Meta{Module: "m"}},
	)
	svc := newTestService(t, store, newFakeLoader())

	got := svc.ListExternal()
	// Case-sensitive ascending: uppercase sorts before lowercase.
	want := []string{"Beta", "alpha", "zeta"}
	if len(got) != len(want) {
		t.Fatalf("ListExternal() returned %d entries, want %d", len(got), len(want))
	}
	for i, cfg := range got {
		if cfg.Name != want[i] {
			t.Errorf("ListExternal()[%d] = %q, want %q", i, cfg.Name, want[i])
		}
	}
}

func TestListAll(t *testing.T) {
	store := newFakeStore("",
		Config{Name: "a", Meta: Meta{Module: "m"}},
		Config{Name: "b", Meta: Meta{Module: "m", BuiltIn: true}},
	)
	svc := newTestService(t, store, newFakeLoader())

	if got := len(svc.ListAll()); got != 2 {
		t.Errorf("ListAll() returned %d entries, want 2", got)
	}
}
