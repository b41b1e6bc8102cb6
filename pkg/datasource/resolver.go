package datasource

import (
	"strings"

	"github.com/pulseboard/pulseboard/pkg/variables"
)

// ResolveName turns a raw datasource name into the final cache key. It is
// pure with respect to the cache; it only reads the variable index and the
// configuration store.
//
// Resolution rules, in order:
//
//  1. An absent name stands for the configured default datasource.
//  2. $var / ${var} references are substituted with the variable's current
//     value. A scoped binding wins over the current value, but only when the
//     variable is declared with the datasource kind.
//  3. A multi-value substitution renders as {a,b,c}; only the first element
//     is used. Multi-select datasource variables are not fanned out here.
//  4. The literal "default" stands for the configured default datasource.
//
// A name that resolves to something absent from the store is not an error at
// this stage; Get reports it as not found.
func (s *Service) ResolveName(raw string, scoped ScopedVars) string {
	if raw == "" {
		return s.resolveDefault(scoped)
	}

	resolved := s.vars.Substitute(raw)
	if resolved != raw {
		// The raw name referenced a variable.
		ident := variables.RefName(raw)
		overridden := false
		if sv, ok := scoped[ident]; ok {
			if v, declared := s.vars.ByName(ident); declared && v.Kind == variables.KindDatasource {
				resolved = sv.Value
				overridden = true
			}
		}
		if !overridden {
			resolved = firstBraceElement(resolved)
		}
	}

	if resolved == DefaultAlias {
		return s.resolveDefault(scoped)
	}
	return resolved
}

// resolveDefault resolves the configured default name, guarding against a
// store whose default is empty or the literal alias itself.
func (s *Service) resolveDefault(scoped ScopedVars) string {
	def := s.store.DefaultName()
	if def == "" || def == DefaultAlias {
		return def
	}
	return s.ResolveName(def, scoped)
}

// firstBraceElement unwraps a brace-delimited comma list ({a,b,c}) produced
// by a multi-value variable, returning the first element. Any other text is
// returned unchanged.
func firstBraceElement(name string) string {
	if len(name) < 2 || name[0] != '{' || name[len(name)-1] != '}' {
		return name
	}
	inner := name[1 : len(name)-1]
	if i := strings.IndexByte(inner, ','); i >= 0 {
		return inner[:i]
	}
	return inner
}
