package harness

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/warden/internal/compiler"
	"github.com/roach88/warden/internal/engine"
	"github.com/roach88/warden/internal/ir"
	"github.com/roach88/warden/internal/record"
	"github.com/roach88/warden/internal/repository"
	"github.com/roach88/warden/internal/testutil"
)

// Harness executes scenario steps against one engine.
type Harness struct {
	engine *engine.Engine
	ids    *testutil.SequentialIDs
	logger *slog.Logger
	seq    int64
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
//  1. Load and freeze the CUE type declarations from scenario.Specs
//  2. Create a fresh in-memory database with matching tables
//  3. Execute setup steps, each of which must succeed
//  4. Execute flow steps, checking expect clauses
//  5. Evaluate assertions against the trace and final rows
//
// A returned error means the scenario could not be executed; failed
// expectations are reported through Result.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	catalog, err := compiler.LoadCatalog(scenario.Specs)
	if err != nil {
		return nil, fmt.Errorf("failed to load specs: %w", err)
	}
	policy, err := repository.ParsePostPhasePolicy(scenario.PostPhase)
	if err != nil {
		return nil, err
	}

	logger := testutil.DiscardLogger()
	ids := testutil.NewSequentialIDs("")
	eng, err := engine.Open(ctx, ":memory:", catalog,
		engine.WithLogger(logger),
		engine.WithIDGenerator(ids),
		engine.WithPostPhase(policy),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer eng.Close()

	h := &Harness{engine: eng, ids: ids, logger: logger}
	result := NewResult()

	for i, step := range scenario.Setup {
		detail := h.execute(ctx, step, result)
		if detail.Outcome != engine.OutcomeOK {
			return nil, fmt.Errorf("setup step %d (%s): %s", i, step.Invoke, describe(detail))
		}
	}

	for i, step := range scenario.Flow {
		detail := h.execute(ctx, step, result)
		if step.Expect == nil {
			continue
		}
		for _, msg := range checkExpect(step.Expect, detail) {
			result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Invoke, msg))
		}
		h.logger.Info("flow step validated",
			"step", i,
			"action", step.Invoke,
			"expected", step.Expect.Outcome,
			"actual", detail.Outcome,
		)
	}

	actx := &AssertionContext{Engine: eng, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// RunFile loads the scenario at path and runs it.
func RunFile(path string) (*Scenario, *Result, error) {
	scenario, err := LoadScenario(path)
	if err != nil {
		return nil, nil, err
	}
	result, err := Run(scenario)
	return scenario, result, err
}

// execute performs one step and appends its invocation and completion to
// the trace.
func (h *Harness) execute(ctx context.Context, step Step, result *Result) engine.Detail {
	typeName, mode := step.Target()
	h.seq++
	result.AddInvocationTrace(step.Invoke, step.ID, step.Values, h.seq)

	before := h.ids.Last()
	id := step.ID
	var err error
	switch mode {
	case ir.ModeCreate:
		var rec *record.Record
		rec, err = h.engine.Create(ctx, typeName, step.Values)
		id = h.recordID(typeName, rec)
	case ir.ModeUpdate:
		_, err = h.engine.Update(ctx, typeName, step.ID, step.Values)
	case ir.ModeDelete:
		err = h.engine.Delete(ctx, typeName, step.ID)
	default:
		err = fmt.Errorf("unsupported mode %q", mode)
	}

	callID := h.ids.Last()
	if callID == before {
		callID = ""
	}

	detail := engine.Describe(err)
	h.seq++
	result.AddCompletionTrace(step.Invoke, callID, id, detail, h.seq)

	h.logger.Info("step completed",
		"action", step.Invoke,
		"call_id", callID,
		"id", id,
		"outcome", detail.Outcome,
	)
	return detail
}

func (h *Harness) recordID(typeName string, rec *record.Record) int64 {
	spec, ok := h.engine.Catalog().Type(typeName)
	if rec == nil || !ok {
		return 0
	}
	id, _ := rec.ID(spec)
	return id
}

// checkExpect compares detail with want and returns one message per
// mismatch.
func checkExpect(want *ExpectClause, got engine.Detail) []string {
	var errs []string
	if want.Outcome != got.Outcome {
		errs = append(errs, fmt.Sprintf("expected outcome %s, got %s", want.Outcome, describe(got)))
		return errs
	}
	if want.Rule != "" && want.Rule != got.Rule {
		errs = append(errs, fmt.Sprintf("expected rule %q, got %q", want.Rule, got.Rule))
	}
	if want.Property != "" && want.Property != got.Property {
		errs = append(errs, fmt.Sprintf("expected property %q, got %q", want.Property, got.Property))
	}
	if want.Message != "" && want.Message != got.Message {
		errs = append(errs, fmt.Sprintf("expected message %q, got %q", want.Message, got.Message))
	}
	if want.Committed != nil && *want.Committed != got.Committed {
		errs = append(errs, fmt.Sprintf("expected committed=%t, got %t", *want.Committed, got.Committed))
	}
	return errs
}

func describe(d engine.Detail) string {
	switch {
	case d.Rule != "":
		return fmt.Sprintf("%s (rule %s)", d.Outcome, d.Rule)
	case d.Property != "":
		return fmt.Sprintf("%s (%s on %s)", d.Outcome, d.Constraint, d.Property)
	case d.Error != "":
		return fmt.Sprintf("%s (%s)", d.Outcome, d.Error)
	default:
		return string(d.Outcome)
	}
}
