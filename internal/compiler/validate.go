package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/warden/internal/expr"
	"github.com/roach88/warden/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation

	// TypeSpec errors (E101-E109)
	ErrTableEmpty        = "E101" // table is required
	ErrNoFields          = "E102" // at least one field required
	ErrInvalidFieldType  = "E103" // invalid field type string
	ErrDuplicateName     = "E104" // duplicate field/relation/rule name
	ErrInvalidConstraint = "E105" // inconsistent constraint bounds
	ErrInvalidRelation   = "E106" // relation column not declared

	// Rule errors (E110-E119)
	ErrRuleKindEmpty     = "E110" // rule kind missing
	ErrInvalidMode       = "E111" // unknown mode
	ErrInvalidPhase      = "E112" // unknown phase
	ErrInvalidLanguage   = "E113" // unknown expression language
	ErrInvalidExpression = "E114" // expression does not parse
	ErrInvalidBounds     = "E115" // min greater than max
	ErrRuleNeverApplies  = "E116" // empty mode or phase set
	ErrUndefinedProperty = "E117" // param or expression names an unknown property
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates a compiled TypeSpec against schema rules.
// Returns all errors found (does not fail-fast).
func Validate(v any) []ValidationError {
	switch spec := v.(type) {
	case *ir.TypeSpec:
		return validateTypeSpec(spec)
	case ir.TypeSpec:
		return validateTypeSpec(&spec)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

func validateTypeSpec(spec *ir.TypeSpec) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(spec.Table) == "" {
		errs = append(errs, ValidationError{
			Field:   "table",
			Message: "table is required and must be non-empty",
			Code:    ErrTableEmpty,
		})
	}
	if len(spec.Fields) == 0 {
		errs = append(errs, ValidationError{
			Field:   "fields",
			Message: "at least one field is required",
			Code:    ErrNoFields,
		})
	}

	names := make(map[string]bool)
	columns := map[string]bool{"id": true}
	if spec.IDField != "" {
		columns[spec.IDField] = true
	}
	for i, f := range spec.Fields {
		path := fmt.Sprintf("fields[%d]", i)
		if names[f.Name] {
			errs = append(errs, ValidationError{
				Field:   path + ".name",
				Message: fmt.Sprintf("duplicate property name: %q", f.Name),
				Code:    ErrDuplicateName,
			})
		}
		names[f.Name] = true
		columns[columnOf(f)] = true

		if !slices.Contains(ir.ValidFieldTypes, f.Type) {
			errs = append(errs, ValidationError{
				Field:   path + ".type",
				Message: fmt.Sprintf("invalid type %q for field %q", f.Type, f.Name),
				Code:    ErrInvalidFieldType,
			})
		}
		for j, c := range f.Constraints {
			if msg := checkConstraint(c); msg != "" {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.constraints[%d]", path, j),
					Message: msg,
					Code:    ErrInvalidConstraint,
				})
			}
		}
	}

	for i, r := range spec.Relations {
		path := fmt.Sprintf("relations[%d]", i)
		if names[r.Name] {
			errs = append(errs, ValidationError{
				Field:   path + ".name",
				Message: fmt.Sprintf("duplicate property name: %q", r.Name),
				Code:    ErrDuplicateName,
			})
		}
		names[r.Name] = true
		if !columns[r.Column] {
			errs = append(errs, ValidationError{
				Field:   path + ".column",
				Message: fmt.Sprintf("relation %q uses undeclared column %q", r.Name, r.Column),
				Code:    ErrInvalidRelation,
			})
		}
	}

	ruleNames := make(map[string]bool)
	for i, rule := range spec.Rules {
		errs = append(errs, validateRule(spec, names, ruleNames, i, rule)...)
	}
	return errs
}

func validateRule(spec *ir.TypeSpec, props, seen map[string]bool, i int, rule ir.ConstraintDeclaration) []ValidationError {
	var errs []ValidationError
	path := fmt.Sprintf("rules[%d]", i)
	add := func(field, code, msg string) {
		errs = append(errs, ValidationError{Field: path + field, Message: msg, Code: code})
	}

	if rule.Name != "" {
		if seen[rule.Name] {
			add(".name", ErrDuplicateName, fmt.Sprintf("duplicate rule name: %q", rule.Name))
		}
		seen[rule.Name] = true
	}
	if strings.TrimSpace(rule.Kind) == "" {
		add(".kind", ErrRuleKindEmpty, "rule kind is required")
	}
	for _, m := range rule.Modes {
		if !slices.Contains(ir.ValidModes, m) {
			add(".mode", ErrInvalidMode, fmt.Sprintf("invalid mode %q, must be \"create\", \"update\", or \"delete\"", m))
		}
	}
	for _, p := range rule.Phases {
		if !slices.Contains(ir.ValidPhases, p) {
			add(".phase", ErrInvalidPhase, fmt.Sprintf("invalid phase %q, must be \"pre\" or \"post\"", p))
		}
	}
	if len(rule.Modes) == 0 || len(rule.Phases) == 0 {
		add("", ErrRuleNeverApplies, fmt.Sprintf("rule %q has no mode or no phase and never runs", rule.Name))
	}
	if rule.Language != "" && !slices.Contains(ir.ValidLanguages, rule.Language) {
		add(".language", ErrInvalidLanguage, fmt.Sprintf("invalid language %q, must be \"where\" or \"sql\"", rule.Language))
	}
	if rule.Min != nil && rule.Max != nil && *rule.Min > *rule.Max {
		add(".max", ErrInvalidBounds, fmt.Sprintf("min %d exceeds max %d", *rule.Min, *rule.Max))
	}

	if rule.Expression != "" {
		model, err := expr.Parse(rule.Expression)
		if err != nil {
			add(".expression", ErrInvalidExpression, err.Error())
		} else {
			for _, p := range model.Params {
				if !rootDeclared(spec, props, p.Path) {
					add(".expression", ErrUndefinedProperty, fmt.Sprintf("undefined property %q in expression", p.Path))
				}
			}
		}
	} else if rule.Kind == ir.KindCount && rule.Language == ir.LanguageSQL {
		add(".expression", ErrInvalidExpression, "sql rule requires an expression")
	}

	for j, p := range rule.MessageParams {
		if !rootDeclared(spec, props, p) {
			add(fmt.Sprintf(".params[%d]", j), ErrUndefinedProperty, fmt.Sprintf("undefined property %q in message params", p))
		}
	}
	return errs
}

// rootDeclared reports whether the first segment of path is a property of
// spec. Deeper segments cross relations into other types and are checked
// when the catalog is frozen.
func rootDeclared(spec *ir.TypeSpec, props map[string]bool, path string) bool {
	root, _, _ := strings.Cut(path, ".")
	if props[root] {
		return true
	}
	id := spec.IDField
	if id == "" {
		id = "id"
	}
	return root == id
}

func checkConstraint(c ir.FieldConstraint) string {
	switch c := c.(type) {
	case ir.Length:
		if c.Min != nil && *c.Min < 0 {
			return "length min must not be negative"
		}
		if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
			return fmt.Sprintf("length min %d exceeds max %d", *c.Min, *c.Max)
		}
	case ir.Interval:
		if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
			return fmt.Sprintf("interval min %g exceeds max %g", *c.Min, *c.Max)
		}
	case ir.Enumerated:
		if len(c.Values) == 0 {
			return "enumerated constraint requires at least one value"
		}
	}
	return ""
}

func columnOf(f ir.FieldSpec) string {
	if f.Column != "" {
		return f.Column
	}
	return f.Name
}
