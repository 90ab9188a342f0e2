package harness

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/roach88/warden/internal/engine"
	"github.com/roach88/warden/internal/ir"
	"github.com/roach88/warden/internal/record"
	"github.com/roach88/warden/internal/restrict"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			if event.Type == EventCompletion {
				fmt.Fprintf(&buf, "  [%d] %s -> %s\n", i+1, event.ActionURI, event.Outcome)
			}
		}
	}
	return buf.String()
}

// assertTraceContains checks for a completed call to the action, optionally
// with the given outcome and invocation args (subset match).
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for i, event := range trace {
		if event.Type != EventCompletion || event.ActionURI != assertion.Action {
			continue
		}
		if assertion.Outcome != "" && event.Outcome != assertion.Outcome {
			continue
		}
		if i > 0 && matchArgs(trace[i-1].Args, assertion.Args) {
			return nil
		}
	}

	expected := "action " + assertion.Action
	if assertion.Outcome != "" {
		expected += " with outcome " + string(assertion.Outcome)
	}
	if len(assertion.Args) > 0 {
		expected += fmt.Sprintf(" with args %v", assertion.Args)
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks if actions appear in the specified order.
// Actions don't need to be consecutive (intervening actions are allowed).
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if event.Type != EventInvocation {
			continue
		}
		for _, expectedAction := range assertion.Actions {
			if event.ActionURI == expectedAction && positions[expectedAction] == 0 {
				positions[expectedAction] = i + 1 // 1-indexed for readability
			}
		}
	}

	for _, action := range assertion.Actions {
		if positions[action] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all actions present: %v", assertion.Actions),
				Actual:   fmt.Sprintf("missing action: %s", action),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Actions); i++ {
		prev := assertion.Actions[i-1]
		curr := assertion.Actions[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", assertion.Actions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks if the action completed exactly Count times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == EventCompletion && event.ActionURI == assertion.Action &&
			(assertion.Outcome == "" || event.Outcome == assertion.Outcome) {
			count++
		}
	}

	if count != assertion.Count {
		subject := assertion.Action
		if assertion.Outcome != "" {
			subject += " with outcome " + string(assertion.Outcome)
		}
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, subject),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertRowCount counts the rows of an entity matching Where.
func assertRowCount(ctx context.Context, eng *engine.Engine, assertion Assertion) error {
	restrictions, err := buildRestrictions(eng, assertion.Entity, assertion.Where)
	if err != nil {
		return err
	}
	n, err := eng.Count(ctx, assertion.Entity, restrictions)
	if err != nil {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("count rows of %s", assertion.Entity),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	if n != int64(assertion.Count) {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("%d rows of %s where %s", assertion.Count, assertion.Entity, formatWhereClause(assertion.Where)),
			Actual:   fmt.Sprintf("%d rows", n),
		}
	}
	return nil
}

// assertFinalState checks that exactly one row of the entity matches
// Where and that it holds the expected values (subset semantics).
func assertFinalState(ctx context.Context, eng *engine.Engine, assertion Assertion) error {
	restrictions, err := buildRestrictions(eng, assertion.Entity, assertion.Where)
	if err != nil {
		return err
	}
	rows, err := eng.Filter(ctx, assertion.Entity, engine.Query{Restrictions: restrictions, Max: 2})
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("query %s", assertion.Entity),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}

	whereDesc := formatWhereClause(assertion.Where)
	switch len(rows) {
	case 0:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", assertion.Entity, whereDesc),
			Actual:   "row not found",
		}
	case 1:
	default:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Entity, whereDesc),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}

	spec, _ := eng.Catalog().Type(assertion.Entity)
	actual := rows[0]
	for _, key := range sortedKeys(assertion.Expect) {
		f, ok := spec.Field(key)
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("%s has no field %q", assertion.Entity, key),
			}
		}
		expected := assertion.Expect[key]
		if !stateValuesEqual(f.Type, expected, actual.Get(key)) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, expected, expected),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, actual.Get(key), actual.Get(key)),
			}
		}
	}
	return nil
}

// buildRestrictions turns where into equality predicates. Values of
// direct fields are coerced to the field type; a nil value matches NULL.
func buildRestrictions(eng *engine.Engine, entity string, where map[string]any) (*restrict.Restrictions, error) {
	spec, ok := eng.Catalog().Type(entity)
	if !ok {
		return nil, fmt.Errorf("unknown entity %q", entity)
	}
	r := restrict.NewRestrictions()
	for _, path := range sortedKeys(where) {
		v := where[path]
		if v == nil {
			r.AddIsNull(path)
			continue
		}
		if f, ok := spec.Field(path); ok {
			cv, err := record.Coerce(f.Type, v)
			if err != nil {
				return nil, fmt.Errorf("where %s: %w", path, err)
			}
			v = cv
		}
		r.AddEq(path, v)
	}
	return r, nil
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}
	keys := sortedKeys(where)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// stateValuesEqual compares a YAML-decoded expected value with a stored
// value after coercing expected to the field type.
func stateValuesEqual(typ ir.FieldType, expected, actual any) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}
	want, err := record.Coerce(typ, expected)
	if err != nil {
		return false
	}
	if wt, ok := want.(time.Time); ok {
		at, ok := actual.(time.Time)
		return ok && wt.Equal(at)
	}
	return reflect.DeepEqual(want, actual)
}

// matchArgs checks if actual args contain all expected args (subset match).
// Extra keys in actual are ignored.
func matchArgs(actual, expected map[string]any) bool {
	for key, expectedVal := range expected {
		actualVal, exists := actual[key]
		if !exists || !reflect.DeepEqual(actualVal, expectedVal) {
			return false
		}
	}
	return true
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Engine *engine.Engine
	Ctx    context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for row_count and final_state.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertRowCount, AssertFinalState:
			if actx == nil || actx.Engine == nil {
				err = fmt.Errorf("assertion[%d]: %s requires database context", i, assertion.Type)
			} else if assertion.Type == AssertRowCount {
				err = assertRowCount(actx.Ctx, actx.Engine, assertion)
			} else {
				err = assertFinalState(actx.Ctx, actx.Engine, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}
