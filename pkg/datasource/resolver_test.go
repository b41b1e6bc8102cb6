package datasource

import (
	"testing"

	"github.com/pulseboard/pulseboard/pkg/variables"
)

func TestResolveName(t *testing.T) {
	store := newFakeStore("graphite",
		Config{Name: "graphite", Meta: Meta{Module: "plugins/graphite"}},
		Config{Name: "prometheus", Meta: Meta{Module: "plugins/prometheus"}},
		Config{Name: "influx", Meta: Meta{Module: "plugins/influx"}},
	)
	vars := []*variables.Variable{
		{Name: "source", Kind: variables.KindDatasource, Current: variables.Value{"prometheus"}},
		{Name: "multi", Kind: variables.KindDatasource, Current: variables.Value{"influx", "prometheus", "graphite"}},
		{Name: "defvar", Kind: variables.KindDatasource, Current: variables.Value{"default"}},
		{Name: "env", Kind: variables.KindCustom, Current: variables.Value{"prometheus"}},
	}
	svc := newTestService(t, store, newFakeLoader(), vars...)

	tests := []struct {
		name   string
		raw    string
		scoped ScopedVars
		want   string
	}{
		{name: "Plain name", raw: "prometheus", want: "prometheus"},
		{name: "Empty resolves default", raw: "", want: "graphite"},
		{name: "Literal default alias", raw: "default", want: "graphite"},
		{name: "Variable reference", raw: "$source", want: "prometheus"},
		{name: "Braced variable reference", raw: "${source}", want: "prometheus"},
		{name: "Multi-value takes first", raw: "$multi", want: "influx"},
		{name: "Variable holding default alias", raw: "$defvar", want: "graphite"},
		{
			name:   "Scoped override wins for datasource variable",
			raw:    "$source",
			scoped: ScopedVars{"source": {Value: "influx"}},
			want:   "influx",
		},
		{
			name:   "Scoped override ignored for non-datasource variable",
			raw:    "$env",
			scoped: ScopedVars{"env": {Value: "influx"}},
			want:   "prometheus",
		},
		{
			name:   "Scoped binding without declaration is ignored",
			raw:    "$multi",
			scoped: ScopedVars{"other": {Value: "influx"}},
			want:   "influx",
		},
		// An undeclared reference is not substituted and falls through
		// unchanged; Get reports it as not found later.
		{name: "Undeclared variable", raw: "$ghost", want: "$ghost"},
		// A name the store does not know still resolves; the error surfaces
		// at load time, not here.
		{name: "Unknown plain name", raw: "unknown", want: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := svc.ResolveName(tt.raw, tt.scoped); got != tt.want {
				t.Errorf("ResolveName(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestResolveNameEmptyDefault(t *testing.T) {
	store := newFakeStore("") // no default configured
	svc := newTestService(t, store, newFakeLoader())

	if got := svc.ResolveName("", nil); got != "" {
		t.Errorf("ResolveName(\"\") with no default = %q, want \"\"", got)
	}
	if got := svc.ResolveName("default", nil); got != "" {
		t.Errorf("ResolveName(default) with no default = %q, want \"\"", got)
	}
}

func TestFirstBraceElement(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "{a,b,c}", want: "a"},
		{in: "{a}", want: "a"},
		{in: "{}", want: ""},
		{in: "plain", want: "plain"},
		{in: "{unclosed", want: "{unclosed"},
	}

	for _, tt := range tests {
		if got := firstBraceElement(tt.in); got != tt.want {
			t.Errorf("firstBraceElement(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
