package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/warden/internal/engine"
	"github.com/roach88/warden/internal/ir"
	"github.com/roach88/warden/internal/repository"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs is the directory of CUE type declarations to load.
	// Relative paths are resolved against the scenario file location.
	Specs string `yaml:"specs"`

	// PostPhase is the post-phase policy: rollback (default) or advisory.
	PostPhase string `yaml:"post_phase,omitempty"`

	// Setup contains calls run before the flow. Each must succeed.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow contains the calls under test.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final trace and rows.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one repository call.
type Step struct {
	// Invoke is "<Type>.<mode>", e.g. "Product.create".
	Invoke string `yaml:"invoke"`

	// ID selects the entity for update and delete.
	ID int64 `yaml:"id,omitempty"`

	// Values are the field values for create and update.
	Values map[string]any `yaml:"values,omitempty"`

	// Expect specifies the expected outcome. If nil, no check is made.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// Target splits Invoke into type name and mode.
func (s Step) Target() (string, ir.Mode) {
	i := strings.LastIndexByte(s.Invoke, '.')
	if i < 0 {
		return s.Invoke, ""
	}
	return s.Invoke[:i], ir.Mode(s.Invoke[i+1:])
}

// ExpectClause specifies expected call behavior. Empty fields are not
// checked.
type ExpectClause struct {
	Outcome   engine.Outcome `yaml:"outcome"`
	Rule      string         `yaml:"rule,omitempty"`
	Property  string         `yaml:"property,omitempty"`
	Message   string         `yaml:"message,omitempty"`
	Committed *bool          `yaml:"committed,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Action is "<Type>.<mode>" (trace_contains, trace_count).
	Action string `yaml:"action,omitempty"`

	// Outcome narrows trace_contains and trace_count to completions with
	// this outcome.
	Outcome engine.Outcome `yaml:"outcome,omitempty"`

	// Args are expected invocation values (trace_contains, subset match).
	Args map[string]any `yaml:"args,omitempty"`

	// Actions is the expected invocation order (trace_order).
	Actions []string `yaml:"actions,omitempty"`

	// Entity is the type name (row_count, final_state).
	Entity string `yaml:"entity,omitempty"`

	// Where holds equality filters by property path (row_count, final_state).
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected field values (final_state, subset match).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number of matches (trace_count, row_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertRowCount      = "row_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Specs != "" && !filepath.IsAbs(scenario.Specs) {
		scenario.Specs = filepath.Join(filepath.Dir(path), scenario.Specs)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Specs == "" {
		return fmt.Errorf("specs directory is required")
	}
	if info, err := os.Stat(s.Specs); err != nil || !info.IsDir() {
		return fmt.Errorf("specs directory not found: %s", s.Specs)
	}
	if _, err := repository.ParsePostPhasePolicy(s.PostPhase); err != nil {
		return err
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if err := validateStep(fmt.Sprintf("setup[%d]", i), step); err != nil {
			return err
		}
		if step.Expect != nil {
			return fmt.Errorf("setup[%d]: expect is not allowed, setup steps must succeed", i)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(fmt.Sprintf("flow[%d]", i), step); err != nil {
			return err
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(where string, step Step) error {
	if step.Invoke == "" {
		return fmt.Errorf("%s: invoke is required", where)
	}
	typeName, mode := step.Target()
	if typeName == "" || !slices.Contains(ir.ValidModes, mode) {
		return fmt.Errorf("%s: invoke %q must be <Type>.create, <Type>.update or <Type>.delete", where, step.Invoke)
	}
	switch mode {
	case ir.ModeCreate:
		if step.ID != 0 {
			return fmt.Errorf("%s: id is not allowed for create", where)
		}
	case ir.ModeUpdate:
		if step.ID <= 0 {
			return fmt.Errorf("%s: id is required for update", where)
		}
	case ir.ModeDelete:
		if step.ID <= 0 {
			return fmt.Errorf("%s: id is required for delete", where)
		}
		if len(step.Values) > 0 {
			return fmt.Errorf("%s: values are not allowed for delete", where)
		}
	}
	if step.Expect != nil && !slices.Contains(engine.ValidOutcomes, step.Expect.Outcome) {
		return fmt.Errorf("%s.expect: unknown outcome %q", where, step.Expect.Outcome)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Outcome != "" && !slices.Contains(engine.ValidOutcomes, a.Outcome) {
		return fmt.Errorf("assertions[%d]: unknown outcome %q", index, a.Outcome)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertRowCount:
		if a.Entity == "" {
			return fmt.Errorf("assertions[%d]: entity is required for row_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	case AssertFinalState:
		if a.Entity == "" {
			return fmt.Errorf("assertions[%d]: entity is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
