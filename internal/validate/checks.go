package validate

import (
	"fmt"
	"math"
	"reflect"
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/warden/internal/ir"
)

// lener is satisfied by countable collections that are not built-in kinds.
type lener interface {
	Len() int
}

// check evaluates one constraint. It returns ok=false with the message
// template and parameters on violation.
func check(c ir.FieldConstraint, value any) (msg string, params []any, ok bool, err error) {
	switch c := c.(type) {
	case ir.Required:
		return c.MessageTemplate(), nil, !isEmpty(value, c.Trim), nil
	case ir.Length:
		return checkLength(c, value)
	case ir.Interval:
		return checkInterval(c, value)
	case ir.Pattern:
		return checkPattern(c, value)
	case ir.Enumerated:
		return checkEnumerated(c, value)
	default:
		return "", nil, false, fmt.Errorf("unsupported constraint %T", c)
	}
}

func isEmpty(value any, trim bool) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		if trim {
			v = strings.TrimSpace(v)
		}
		return v == ""
	case []byte:
		return len(v) == 0
	case lener:
		return v.Len() == 0
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	case reflect.Slice, reflect.Map, reflect.Array, reflect.Chan:
		return rv.Len() == 0
	}
	return false
}

func checkLength(c ir.Length, value any) (string, []any, bool, error) {
	params := []any{intOrNil(c.Min), intOrNil(c.Max)}
	if value == nil {
		return c.MessageTemplate(), params, true, nil
	}

	n, supported := size(value, c.Trim)
	if !supported {
		msg := c.Message
		if msg == "" {
			msg = ir.MsgLengthType
		}
		return msg, params, false, nil
	}
	inBounds := (c.Min == nil || n >= *c.Min) && (c.Max == nil || n <= *c.Max)
	return c.MessageTemplate(), params, inBounds, nil
}

// size counts runes of NFC-normalized text, or elements of a collection.
func size(value any, trim bool) (int, bool) {
	switch v := value.(type) {
	case string:
		if trim {
			v = strings.TrimSpace(v)
		}
		return utf8.RuneCountInString(norm.NFC.String(v)), true
	case []byte:
		return len(v), true
	case lener:
		return v.Len(), true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len(), true
	}
	return 0, false
}

func checkInterval(c ir.Interval, value any) (string, []any, bool, error) {
	params := []any{floatOrNil(c.Min), floatOrNil(c.Max)}
	f, numeric := toFloat(value)
	if !numeric || math.IsNaN(f) {
		return ir.MsgIntervalNaN, params, false, nil
	}
	inBounds := (c.Min == nil || f >= *c.Min) && (c.Max == nil || f <= *c.Max)
	return c.MessageTemplate(), params, inBounds, nil
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	}
	return 0, false
}

func checkPattern(c ir.Pattern, value any) (string, []any, bool, error) {
	params := []any{c.Expr}
	if value == nil {
		return c.MessageTemplate(), params, true, nil
	}
	re := c.Regexp
	if re == nil {
		compiled, err := ir.NewPattern(c.Expr, c.Message)
		if err != nil {
			return "", nil, false, err
		}
		re = compiled.Regexp
	}
	s, isText := text(value)
	return c.MessageTemplate(), params, isText && re.MatchString(s), nil
}

func checkEnumerated(c ir.Enumerated, value any) (string, []any, bool, error) {
	params := []any{slices.Clone(c.Values)}
	if value == nil {
		return c.MessageTemplate(), params, true, nil
	}
	s, isText := text(value)
	if !isText {
		s = fmt.Sprint(value)
	}

	if c.CaseSensitive {
		return c.MessageTemplate(), params, slices.Contains(c.Values, s), nil
	}
	fold := cases.Fold()
	want := fold.String(s)
	for _, allowed := range c.Values {
		if fold.String(allowed) == want {
			return c.MessageTemplate(), params, true, nil
		}
	}
	return c.MessageTemplate(), params, false, nil
}

func text(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	case fmt.Stringer:
		return v.String(), true
	}
	return "", false
}

func intOrNil(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func floatOrNil(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
