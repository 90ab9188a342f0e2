package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/warden/internal/ir"
)

func validSpec() *ir.TypeSpec {
	return &ir.TypeSpec{
		Name:  "Product",
		Table: "products",
		Fields: []ir.FieldSpec{
			{Name: "code", Type: ir.FieldText},
			{Name: "categoryId", Column: "category_id", Type: ir.FieldInt},
		},
		Relations: []ir.RelationSpec{{Name: "category", Target: "Category", Column: "category_id"}},
		Rules: []ir.ConstraintDeclaration{{
			Name:          "code_unique",
			Kind:          ir.KindCount,
			Modes:         []ir.Mode{ir.ModeCreate},
			Phases:        []ir.Phase{ir.PhasePre},
			Expression:    "code = ${code} AND id <> ${id}",
			Max:           ir.Int64(0),
			MessageParams: []string{"code", "category.name"},
		}},
	}
}

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateValidSpec(t *testing.T) {
	assert.Empty(t, Validate(validSpec()))
	assert.Empty(t, Validate(*validSpec()), "value form is accepted")
}

func TestValidateUnsupportedType(t *testing.T) {
	errs := Validate("not a spec")
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnsupportedIRType, errs[0].Code)
}

func TestValidateTypeErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ir.TypeSpec)
		code   string
		field  string
	}{
		{"empty table", func(s *ir.TypeSpec) { s.Table = " " }, ErrTableEmpty, "table"},
		{"no fields", func(s *ir.TypeSpec) { s.Fields = nil; s.Relations = nil; s.Rules = nil }, ErrNoFields, "fields"},
		{"bad field type", func(s *ir.TypeSpec) { s.Fields[0].Type = "float" }, ErrInvalidFieldType, "fields[0].type"},
		{"duplicate field", func(s *ir.TypeSpec) { s.Fields[1].Name = "code"; s.Fields[1].Column = "category_id" }, ErrDuplicateName, "fields[1].name"},
		{"relation shadows field", func(s *ir.TypeSpec) { s.Relations[0].Name = "code" }, ErrDuplicateName, "relations[0].name"},
		{"relation column", func(s *ir.TypeSpec) { s.Relations[0].Column = "cat" }, ErrInvalidRelation, "relations[0].column"},
		{"length bounds", func(s *ir.TypeSpec) {
			s.Fields[0].Constraints = []ir.FieldConstraint{ir.Length{Min: ir.Int(5), Max: ir.Int(2)}}
		}, ErrInvalidConstraint, "fields[0].constraints[0]"},
		{"negative length", func(s *ir.TypeSpec) {
			s.Fields[0].Constraints = []ir.FieldConstraint{ir.Length{Min: ir.Int(-1)}}
		}, ErrInvalidConstraint, "fields[0].constraints[0]"},
		{"interval bounds", func(s *ir.TypeSpec) {
			s.Fields[0].Constraints = []ir.FieldConstraint{ir.Interval{Min: ir.Float64(1), Max: ir.Float64(0)}}
		}, ErrInvalidConstraint, "fields[0].constraints[0]"},
		{"empty enumeration", func(s *ir.TypeSpec) {
			s.Fields[0].Constraints = []ir.FieldConstraint{ir.Enumerated{}}
		}, ErrInvalidConstraint, "fields[0].constraints[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := validSpec()
			tt.mutate(spec)
			errs := Validate(spec)
			require.NotEmpty(t, errs)
			assert.Contains(t, codes(errs), tt.code)
			found := false
			for _, e := range errs {
				if e.Code == tt.code && e.Field == tt.field {
					found = true
				}
			}
			assert.True(t, found, "expected %s at %s, got %v", tt.code, tt.field, errs)
		})
	}
}

func TestValidateRuleErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ir.ConstraintDeclaration)
		code   string
	}{
		{"empty kind", func(d *ir.ConstraintDeclaration) { d.Kind = "" }, ErrRuleKindEmpty},
		{"bad mode", func(d *ir.ConstraintDeclaration) { d.Modes = []ir.Mode{"upsert"} }, ErrInvalidMode},
		{"bad phase", func(d *ir.ConstraintDeclaration) { d.Phases = []ir.Phase{"during"} }, ErrInvalidPhase},
		{"no modes", func(d *ir.ConstraintDeclaration) { d.Modes = nil }, ErrRuleNeverApplies},
		{"no phases", func(d *ir.ConstraintDeclaration) { d.Phases = nil }, ErrRuleNeverApplies},
		{"bad language", func(d *ir.ConstraintDeclaration) { d.Language = "jpql" }, ErrInvalidLanguage},
		{"inverted bounds", func(d *ir.ConstraintDeclaration) { d.Min = ir.Int64(3); d.Max = ir.Int64(1) }, ErrInvalidBounds},
		{"unterminated token", func(d *ir.ConstraintDeclaration) { d.Expression = "code = ${code" }, ErrInvalidExpression},
		{"sql without expression", func(d *ir.ConstraintDeclaration) { d.Language = ir.LanguageSQL; d.Expression = "" }, ErrInvalidExpression},
		{"unknown expression property", func(d *ir.ConstraintDeclaration) { d.Expression = "sku = ${sku}" }, ErrUndefinedProperty},
		{"unknown message param", func(d *ir.ConstraintDeclaration) { d.MessageParams = []string{"colour"} }, ErrUndefinedProperty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := validSpec()
			tt.mutate(&spec.Rules[0])
			errs := Validate(spec)
			assert.Contains(t, codes(errs), tt.code)
		})
	}
}

func TestValidateDuplicateRuleName(t *testing.T) {
	spec := validSpec()
	spec.Rules = append(spec.Rules, spec.Rules[0])
	errs := Validate(spec)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrDuplicateName, errs[0].Code)
	assert.Equal(t, "rules[1].name", errs[0].Field)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	spec := validSpec()
	spec.Table = ""
	spec.Fields[0].Type = "decimal"
	spec.Rules[0].Modes = []ir.Mode{"merge"}
	errs := Validate(spec)
	assert.Equal(t, []string{ErrTableEmpty, ErrInvalidFieldType, ErrInvalidMode}, codes(errs))
}

func TestValidationErrorFormat(t *testing.T) {
	e := ValidationError{Field: "table", Message: "required", Code: ErrTableEmpty}
	assert.Equal(t, "[E101] table: required", e.Error())
	e.Line = 4
	assert.Equal(t, "[E101] line 4: table: required", e.Error())
}
