// Package variables implements the template-variable index consumed by the
// datasource service. Dashboards declare variables such as $source; the index
// keeps them in declaration order, answers lookups by name, and performs the
// text substitution pass that replaces $var and ${var} references with the
// variable's current value.
package variables

import (
	"regexp"
	"strings"
)

// Kind classifies a variable by the kind of value it selects.
type Kind string

const (
	// KindDatasource selects a configured datasource by name.
	KindDatasource Kind = "datasource"

	// KindQuery is populated from a datasource query.
	KindQuery Kind = "query"

	// KindCustom is a user-defined list of options.
	KindCustom Kind = "custom"

	// KindConstant holds a single fixed value.
	KindConstant Kind = "constant"
)

// Value is the current selection of a variable: one value or, for
// multi-select variables, several.
type Value []string

// First returns the first selected value, or "" when nothing is selected.
func (v Value) First() string {
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

// Multi reports whether more than one value is selected.
func (v Value) Multi() bool {
	return len(v) > 1
}

// Text renders the selection the way it appears after substitution: a single
// value verbatim, a multi-value selection as a brace-delimited comma list.
func (v Value) Text() string {
	switch len(v) {
	case 0:
		return ""
	case 1:
		return v[0]
	default:
		return "{" + strings.Join(v, ",") + "}"
	}
}

// Variable is a declared template variable. The index only reads it; the
// owning dashboard layer is responsible for updating Current.
type Variable struct {
	// Name is the identifier referenced as $name in text.
	Name string `json:"name" yaml:"name"`

	// Kind is the variable kind. Only KindDatasource is meaningful to the
	// datasource service.
	Kind Kind `json:"kind" yaml:"kind"`

	// Current is the current selection.
	Current Value `json:"current" yaml:"current"`
}

// Index holds the declared variables in declaration order and provides
// lookup and substitution over them.
type Index struct {
	ordered []*Variable
	byName  map[string]*Variable
}

// NewIndex builds an index over the given variables, preserving order.
// A later declaration with a duplicate name shadows the earlier one for
// lookups but both remain in the ordered list.
func NewIndex(vars ...*Variable) *Index {
	ix := &Index{
		ordered: make([]*Variable, 0, len(vars)),
		byName:  make(map[string]*Variable, len(vars)),
	}
	for _, v := range vars {
		if v == nil {
			continue
		}
		ix.ordered = append(ix.ordered, v)
		ix.byName[v.Name] = v
	}
	return ix
}

// All returns the declared variables in declaration order.
func (ix *Index) All() []*Variable {
	out := make([]*Variable, len(ix.ordered))
	copy(out, ix.ordered)
	return out
}

// ByName looks up a declared variable.
func (ix *Index) ByName(name string) (*Variable, bool) {
	v, ok := ix.byName[name]
	return v, ok
}

// Datasources returns the declared datasource-kind variables in declaration
// order.
func (ix *Index) Datasources() []*Variable {
	var out []*Variable
	for _, v := range ix.ordered {
		if v.Kind == KindDatasource {
			out = append(out, v)
		}
	}
	return out
}

// refPattern matches $name and ${name} references.
var refPattern = regexp.MustCompile(`\$\{(\w+)\}|\$(\w+)`)

// Substitute replaces every $var and ${var} occurrence in text with the
// variable's current value. References to undeclared variables are left
// untouched, which lets callers detect an inactive reference by comparing
// input and output.
func (ix *Index) Substitute(text string) string {
	if !strings.Contains(text, "$") {
		return text
	}
	return refPattern.ReplaceAllStringFunc(text, func(ref string) string {
		name := RefName(ref)
		v, ok := ix.byName[name]
		if !ok {
			return ref
		}
		return v.Current.Text()
	})
}

// RefName extracts the variable identifier from a $var or ${var} reference.
// It returns "" when the text is not a reference.
func RefName(ref string) string {
	m := refPattern.FindStringSubmatch(ref)
	if m == nil {
		return ""
	}
	if m[1] != "" {
		return m[1]
	}
	return m[2]
}
