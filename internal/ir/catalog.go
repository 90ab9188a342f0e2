package ir

import (
	"fmt"
	"slices"
)

// Catalog is the frozen set of type declarations loaded at startup.
//
// A Catalog is built once and never mutated; it is safe for concurrent reads.
// Pointers returned by Type reference catalog-owned data and must be treated
// as read-only.
type Catalog struct {
	types []TypeSpec
	index map[string]int
}

// NewCatalog validates specs and freezes them into a Catalog.
//
// Defaults applied per type:
//   - IDField defaults to "id"
//   - Column defaults to the field name
//   - an undeclared id field is added as an int column
//
// Structural problems (duplicate names, dangling relations) are returned as
// *ConfigurationError.
func NewCatalog(specs ...TypeSpec) (*Catalog, error) {
	c := &Catalog{
		types: make([]TypeSpec, 0, len(specs)),
		index: make(map[string]int, len(specs)),
	}

	for _, spec := range specs {
		spec = cloneTypeSpec(spec)
		if spec.Name == "" {
			return nil, &ConfigurationError{Message: "type name is required"}
		}
		if _, dup := c.index[spec.Name]; dup {
			return nil, &ConfigurationError{Type: spec.Name, Message: "duplicate type"}
		}
		if spec.Table == "" {
			return nil, &ConfigurationError{Type: spec.Name, Message: "table is required"}
		}
		if spec.IDField == "" {
			spec.IDField = "id"
		}
		for i := range spec.Fields {
			if spec.Fields[i].Column == "" {
				spec.Fields[i].Column = spec.Fields[i].Name
			}
		}
		if _, ok := spec.Field(spec.IDField); !ok {
			spec.Fields = append([]FieldSpec{{Name: spec.IDField, Column: spec.IDField, Type: FieldInt}}, spec.Fields...)
		}
		if err := checkNames(&spec); err != nil {
			return nil, err
		}
		c.index[spec.Name] = len(c.types)
		c.types = append(c.types, spec)
	}

	// Relations may reference types declared later, so check them last.
	for i := range c.types {
		spec := &c.types[i]
		for _, rel := range spec.Relations {
			if _, ok := c.index[rel.Target]; !ok {
				return nil, &ConfigurationError{
					Type:    spec.Name,
					Message: fmt.Sprintf("relation %q targets unknown type %q", rel.Name, rel.Target),
				}
			}
			if !hasColumn(spec, rel.Column) {
				return nil, &ConfigurationError{
					Type:    spec.Name,
					Message: fmt.Sprintf("relation %q uses undeclared column %q", rel.Name, rel.Column),
				}
			}
		}
	}

	return c, nil
}

// checkNames rejects duplicate field and relation names within one type.
func checkNames(spec *TypeSpec) error {
	seen := make(map[string]bool, len(spec.Fields)+len(spec.Relations))
	for _, f := range spec.Fields {
		if f.Name == "" {
			return &ConfigurationError{Type: spec.Name, Message: "field name is required"}
		}
		if seen[f.Name] {
			return &ConfigurationError{Type: spec.Name, Message: fmt.Sprintf("duplicate property %q", f.Name)}
		}
		seen[f.Name] = true
	}
	for _, r := range spec.Relations {
		if seen[r.Name] {
			return &ConfigurationError{Type: spec.Name, Message: fmt.Sprintf("duplicate property %q", r.Name)}
		}
		seen[r.Name] = true
	}
	return nil
}

func hasColumn(spec *TypeSpec, column string) bool {
	for _, f := range spec.Fields {
		if f.Column == column {
			return true
		}
	}
	return false
}

// Type returns the spec registered under name.
func (c *Catalog) Type(name string) (*TypeSpec, bool) {
	i, ok := c.index[name]
	if !ok {
		return nil, false
	}
	return &c.types[i], true
}

// Types returns all specs in declaration order.
func (c *Catalog) Types() []TypeSpec {
	return slices.Clone(c.types)
}

// Names returns all type names in declaration order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.types))
	for i, t := range c.types {
		names[i] = t.Name
	}
	return names
}

func cloneTypeSpec(spec TypeSpec) TypeSpec {
	out := spec
	out.Fields = make([]FieldSpec, len(spec.Fields))
	for i, f := range spec.Fields {
		f.Constraints = slices.Clone(f.Constraints)
		out.Fields[i] = f
	}
	out.Relations = slices.Clone(spec.Relations)
	out.Rules = make([]ConstraintDeclaration, len(spec.Rules))
	for i, r := range spec.Rules {
		r.Modes = slices.Clone(r.Modes)
		r.Phases = slices.Clone(r.Phases)
		r.MessageParams = slices.Clone(r.MessageParams)
		out.Rules[i] = r
	}
	return out
}
