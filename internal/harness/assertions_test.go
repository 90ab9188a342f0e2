package harness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/warden/internal/engine"
	"github.com/roach88/warden/internal/ir"
)

func sampleTrace() []TraceEvent {
	r := NewResult()
	r.AddInvocationTrace("Category.create", 0, map[string]any{"name": "Tools"}, 1)
	r.AddCompletionTrace("Category.create", "call-1", 1, engine.Detail{Outcome: engine.OutcomeOK}, 2)
	r.AddInvocationTrace("Product.create", 0, map[string]any{"code": "P-1"}, 3)
	r.AddCompletionTrace("Product.create", "call-2", 1, engine.Detail{Outcome: engine.OutcomeOK}, 4)
	r.AddInvocationTrace("Product.create", 0, map[string]any{"code": "P-1"}, 5)
	r.AddCompletionTrace("Product.create", "call-3", 0, engine.Detail{Outcome: engine.OutcomeReferential, Rule: "code_unique_create"}, 6)
	return r.Trace
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	tests := []struct {
		name      string
		assertion Assertion
		wantErr   bool
	}{
		{"action only", Assertion{Action: "Product.create"}, false},
		{"with outcome", Assertion{Action: "Product.create", Outcome: engine.OutcomeReferential}, false},
		{"with args", Assertion{Action: "Category.create", Args: map[string]any{"name": "Tools"}}, false},
		{"args mismatch", Assertion{Action: "Category.create", Args: map[string]any{"name": "Garden"}}, true},
		{"outcome mismatch", Assertion{Action: "Category.create", Outcome: engine.OutcomeValidation}, true},
		{"absent action", Assertion{Action: "Product.delete"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertTraceContains(trace, tt.assertion)
			if tt.wantErr {
				var ae *AssertionError
				require.ErrorAs(t, err, &ae)
				assert.Equal(t, AssertTraceContains, ae.Type)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Actions: []string{"Category.create", "Product.create"}}))

	err := assertTraceOrder(trace, Assertion{Actions: []string{"Product.create", "Category.create"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Product.create (pos 3) should be before Category.create (pos 1)")

	err = assertTraceOrder(trace, Assertion{Actions: []string{"Category.create", "Category.delete"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing action: Category.delete")
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Action: "Product.create", Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Action: "Product.create", Outcome: engine.OutcomeOK, Count: 1}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Action: "Product.delete", Count: 0}))

	err := assertTraceCount(trace, Assertion{Action: "Product.create", Count: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 occurrences of Product.create")
	assert.Contains(t, err.Error(), "Actual: 2 occurrences")
}

func TestAssertionError_IncludesCompletions(t *testing.T) {
	err := &AssertionError{Type: AssertTraceCount, Expected: "x", Actual: "y", Trace: sampleTrace()}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_count")
	assert.Contains(t, msg, "[6] Product.create -> referential")
	assert.NotContains(t, msg, "[5]")
}

func TestMatchArgs(t *testing.T) {
	actual := map[string]any{"code": "P-1", "price": 10}
	assert.True(t, matchArgs(actual, nil))
	assert.True(t, matchArgs(actual, map[string]any{"code": "P-1"}))
	assert.False(t, matchArgs(actual, map[string]any{"code": "P-2"}))
	assert.False(t, matchArgs(actual, map[string]any{"name": "Hammer"}))
}

func TestEvaluateAssertions_RequiresEngineForRows(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{
		{Type: AssertRowCount, Entity: "Product"},
		{Type: "vibes"},
	}, nil)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "row_count requires database context")
	assert.Contains(t, errs[1], `unknown assertion type "vibes"`)
}

func TestStateValuesEqual(t *testing.T) {
	stored := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.True(t, stateValuesEqual(ir.FieldTime, "2026-01-02T04:04:05+01:00", stored))
	assert.False(t, stateValuesEqual(ir.FieldTime, "2026-01-02T03:04:06Z", stored))
	assert.True(t, stateValuesEqual(ir.FieldInt, 3, int64(3)))
	assert.True(t, stateValuesEqual(ir.FieldReal, 3, 3.0))
	assert.False(t, stateValuesEqual(ir.FieldText, "a", "b"))
	assert.True(t, stateValuesEqual(ir.FieldText, nil, nil))
	assert.False(t, stateValuesEqual(ir.FieldText, nil, "a"))
}

func TestStep_Target(t *testing.T) {
	typeName, mode := Step{Invoke: "Product.update"}.Target()
	assert.Equal(t, "Product", typeName)
	assert.Equal(t, "update", string(mode))

	typeName, mode = Step{Invoke: "Product"}.Target()
	assert.Equal(t, "Product", typeName)
	assert.Empty(t, mode)
}
