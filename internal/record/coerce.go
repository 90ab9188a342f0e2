package record

import (
	"fmt"
	"math"
	"time"

	"github.com/roach88/warden/internal/ir"
)

// FromValues builds a Record from loosely typed values, such as those
// decoded from YAML or JSON, converting each to its declared field type.
// Only the keys present in values are set; unknown keys are a
// *ir.PathResolutionError.
func FromValues(spec *ir.TypeSpec, values map[string]any) (*Record, error) {
	r := &Record{Type: spec.Name, Values: make(map[string]any, len(values))}
	for name, raw := range values {
		f, ok := spec.Field(name)
		if !ok {
			return nil, &ir.PathResolutionError{Type: spec.Name, Path: name, Segment: name}
		}
		v, err := Coerce(f.Type, raw)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", spec.Name, name, err)
		}
		r.Values[name] = v
	}
	return r, nil
}

// Coerce converts v to the Go representation of typ: string, int64,
// float64, bool, time.Time or []byte. Strings are parsed the way
// ParseValue does; nil stays nil.
func Coerce(typ ir.FieldType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if s, ok := v.(string); ok && typ != ir.FieldText && typ != "" {
		return ParseValue(typ, s)
	}

	switch typ {
	case ir.FieldText, "":
		switch s := v.(type) {
		case string:
			return s, nil
		case []byte:
			return string(s), nil
		}
	case ir.FieldInt:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case int64:
			return n, nil
		case uint64:
			if n <= math.MaxInt64 {
				return int64(n), nil
			}
		case float64:
			if n == math.Trunc(n) && math.Abs(n) <= 1<<53 {
				return int64(n), nil
			}
		}
	case ir.FieldReal:
		switch n := v.(type) {
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case float32:
			return float64(n), nil
		case float64:
			return n, nil
		}
	case ir.FieldBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case ir.FieldTime:
		if t, ok := v.(time.Time); ok {
			return t, nil
		}
	case ir.FieldBytes:
		if b, ok := v.([]byte); ok {
			return b, nil
		}
	}
	return nil, fmt.Errorf("cannot use %v (%T) as %s", v, v, typ)
}
