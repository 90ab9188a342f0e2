package expr

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/warden/internal/ir"
)

// Resolver is the capability "has a readable property of a given name".
// The boolean reports whether the property exists, independent of its value.
type Resolver interface {
	Resolve(name string) (any, bool)
}

// Named is implemented by instances that know their declared type name.
type Named interface {
	EntityName() string
}

// EntityName returns the declared type name of instance, falling back to
// its Go type for values that do not implement Named.
func EntityName(instance any) string {
	if n, ok := instance.(Named); ok && !isNil(instance) {
		return n.EntityName()
	}
	if instance == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%T", instance)
}

// Resolve walks a dotted path starting at instance.
//
// Each segment is looked up on the current value, which must implement
// Resolver or be a map[string]any. A nil value before the last segment
// fails the walk.
func Resolve(instance any, path string) (any, error) {
	entity := EntityName(instance)
	if isNil(instance) {
		return nil, &ir.PropertyResolutionError{Entity: entity, Path: path}
	}

	current := instance
	segments := strings.Split(path, ".")
	for i, seg := range segments {
		if i > 0 && isNil(current) {
			return nil, &ir.PropertyResolutionError{Entity: entity, Path: path, Segment: seg}
		}
		v, ok := lookup(current, seg)
		if !ok {
			return nil, &ir.PropertyResolutionError{Entity: entity, Path: path, Segment: seg}
		}
		current = v
	}
	return current, nil
}

func lookup(v any, name string) (any, bool) {
	switch node := v.(type) {
	case Resolver:
		return node.Resolve(name)
	case map[string]any:
		val, ok := node[name]
		return val, ok
	default:
		return nil, false
	}
}

// isNil reports whether v is nil or a typed nil pointer, map, or slice.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// IsNil reports whether v is nil or wraps a nil reference.
func IsNil(v any) bool {
	return isNil(v)
}
