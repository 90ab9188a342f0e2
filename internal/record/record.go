// Package record provides a map-backed entity for types declared only in
// configuration. A Record satisfies the resolver capability, so validators,
// rules, and repositories treat it like any typed entity.
package record

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/warden/internal/ir"
	"github.com/roach88/warden/internal/store"
)

// Record is a dynamic entity of a catalog type.
type Record struct {
	Type   string
	Values map[string]any
}

// New creates a Record of typeName holding a copy of values.
func New(typeName string, values map[string]any) *Record {
	v := make(map[string]any, len(values))
	maps.Copy(v, values)
	return &Record{Type: typeName, Values: v}
}

// EntityName implements expr.Named.
func (r *Record) EntityName() string { return r.Type }

// Resolve implements expr.Resolver. Present keys resolve even when nil.
func (r *Record) Resolve(name string) (any, bool) {
	v, ok := r.Values[name]
	return v, ok
}

// Get returns the value of a field, or nil.
func (r *Record) Get(name string) any {
	return r.Values[name]
}

// Set assigns a field value.
func (r *Record) Set(name string, value any) {
	if r.Values == nil {
		r.Values = make(map[string]any)
	}
	r.Values[name] = value
}

// ID returns the id value as an int64 when it is one.
func (r *Record) ID(spec *ir.TypeSpec) (int64, bool) {
	switch v := r.Values[spec.IDField].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}

// Mapper converts Records of one type to and from store rows.
type Mapper struct {
	spec *ir.TypeSpec
}

// NewMapper creates a Mapper for spec.
func NewMapper(spec *ir.TypeSpec) Mapper {
	return Mapper{spec: spec}
}

// ToRow copies the declared fields of r. A nil or zero id is left out so
// the store assigns one.
func (m Mapper) ToRow(r *Record) (store.Row, error) {
	if r.Type != m.spec.Name {
		return nil, fmt.Errorf("record of type %q mapped as %q", r.Type, m.spec.Name)
	}
	row := make(store.Row, len(m.spec.Fields))
	for _, f := range m.spec.Fields {
		v, ok := r.Values[f.Name]
		if !ok {
			continue
		}
		if f.Name == m.spec.IDField && isZeroID(v) {
			continue
		}
		row[f.Name] = v
	}
	return row, nil
}

// FromRow builds a Record holding exactly the columns of row.
func (m Mapper) FromRow(row store.Row) (*Record, error) {
	return New(m.spec.Name, row), nil
}

// WithID sets the id field.
func (m Mapper) WithID(r *Record, id int64) *Record {
	r.Set(m.spec.IDField, id)
	return r
}

func isZeroID(v any) bool {
	switch id := v.(type) {
	case nil:
		return true
	case int64:
		return id == 0
	case int:
		return id == 0
	}
	return false
}

// Parse builds a Record from textual field values, converting each to the
// declared field type. Declared fields missing from values are set to nil.
// The literal "null" is nil for every type.
func Parse(spec *ir.TypeSpec, values map[string]string) (*Record, error) {
	r := &Record{Type: spec.Name, Values: make(map[string]any, len(spec.Fields))}
	for name := range values {
		if _, ok := spec.Field(name); !ok {
			return nil, &ir.PathResolutionError{Type: spec.Name, Path: name, Segment: name}
		}
	}
	for _, f := range spec.Fields {
		raw, ok := values[f.Name]
		if !ok {
			r.Values[f.Name] = nil
			continue
		}
		v, err := ParseValue(f.Type, raw)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", spec.Name, f.Name, err)
		}
		r.Values[f.Name] = v
	}
	return r, nil
}

// ParseValue converts raw to the Go representation of typ.
func ParseValue(typ ir.FieldType, raw string) (any, error) {
	if raw == "null" {
		return nil, nil
	}
	switch typ {
	case ir.FieldText, "":
		return raw, nil
	case ir.FieldInt:
		return strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	case ir.FieldReal:
		return strconv.ParseFloat(strings.TrimSpace(raw), 64)
	case ir.FieldBool:
		return strconv.ParseBool(strings.TrimSpace(raw))
	case ir.FieldTime:
		return time.Parse(time.RFC3339, strings.TrimSpace(raw))
	case ir.FieldBytes:
		return []byte(raw), nil
	default:
		return nil, fmt.Errorf("unsupported field type %q", typ)
	}
}
