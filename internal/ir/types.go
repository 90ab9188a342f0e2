package ir

import "slices"

// Mode is the lifecycle operation a rule applies to.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeUpdate Mode = "update"
	ModeDelete Mode = "delete"
)

// Phase is the evaluation point of a rule relative to the write.
type Phase string

const (
	PhasePre  Phase = "pre"
	PhasePost Phase = "post"
)

// Language selects how a rule expression is turned into a native query.
type Language string

const (
	// LanguageWhere is a WHERE fragment evaluated against the declaring
	// type's table, e.g. "code = ${code} AND id != ${id}".
	LanguageWhere Language = "where"

	// LanguageSQL is a complete count query returning a single integer,
	// e.g. "SELECT COUNT(*) FROM orders WHERE product_id = ${id}".
	LanguageSQL Language = "sql"
)

// ValidModes lists the accepted Mode values.
var ValidModes = []Mode{ModeCreate, ModeUpdate, ModeDelete}

// ValidPhases lists the accepted Phase values.
var ValidPhases = []Phase{PhasePre, PhasePost}

// ValidLanguages lists the accepted Language values.
var ValidLanguages = []Language{LanguageWhere, LanguageSQL}

// Built-in rule kinds resolved by the rules registry.
const (
	KindCount     = "count"
	KindIntegrity = "integrity"
)

// ConstraintDeclaration is static configuration attaching a rule to a type.
//
// Example (conceptual):
//
//	ConstraintDeclaration{
//	  Name:       "code_unique",
//	  Kind:       "count",
//	  Modes:      []Mode{ModeCreate},
//	  Phases:     []Phase{PhasePre},
//	  Language:   LanguageWhere,
//	  Expression: "code = ${code}",
//	  Max:        Int64(0),
//	  Message:    "product.code.duplicate",
//	  MessageParams: []string{"code"},
//	}
//
// Min and Max bound the count returned by the expression; nil means unbounded.
type ConstraintDeclaration struct {
	Name          string   `json:"name"`
	Kind          string   `json:"kind"`
	Modes         []Mode   `json:"modes"`
	Phases        []Phase  `json:"phases"`
	Expression    string   `json:"expression,omitempty"`
	Language      Language `json:"language,omitempty"`
	Min           *int64   `json:"min,omitempty"`
	Max           *int64   `json:"max,omitempty"`
	Message       string   `json:"message,omitempty"`
	MessageParams []string `json:"message_params,omitempty"`
}

// AppliesTo reports whether the declaration runs for mode at phase.
// Both sets must contain the value; an empty set never matches.
func (d ConstraintDeclaration) AppliesTo(mode Mode, phase Phase) bool {
	return slices.Contains(d.Modes, mode) && slices.Contains(d.Phases, phase)
}

// InBounds reports whether count lies inside [Min, Max].
func (d ConstraintDeclaration) InBounds(count int64) bool {
	if d.Min != nil && count < *d.Min {
		return false
	}
	if d.Max != nil && count > *d.Max {
		return false
	}
	return true
}

// FieldType is the storage type of a scalar field.
type FieldType string

const (
	FieldText  FieldType = "text"
	FieldInt   FieldType = "int"
	FieldReal  FieldType = "real"
	FieldBool  FieldType = "bool"
	FieldTime  FieldType = "time"
	FieldBytes FieldType = "bytes"
)

// ValidFieldTypes lists the accepted FieldType values.
var ValidFieldTypes = []FieldType{FieldText, FieldInt, FieldReal, FieldBool, FieldTime, FieldBytes}

// FieldSpec describes one scalar property of a type.
// Constraints run in slice order.
type FieldSpec struct {
	Name        string            `json:"name"`
	Column      string            `json:"column"`
	Type        FieldType         `json:"type"`
	Constraints []FieldConstraint `json:"constraints,omitempty"`
}

// RelationSpec describes a navigable to-one relation.
//
// Column is the foreign key column on the declaring table; it references
// the id column of Target.
type RelationSpec struct {
	Name   string `json:"name"`
	Target string `json:"target"`
	Column string `json:"column"`
}

// TypeSpec is the complete static configuration of one data type.
type TypeSpec struct {
	Name      string                  `json:"name"`
	Table     string                  `json:"table"`
	IDField   string                  `json:"id"`
	Fields    []FieldSpec             `json:"fields"`
	Relations []RelationSpec          `json:"relations,omitempty"`
	Rules     []ConstraintDeclaration `json:"rules,omitempty"`
}

// Field returns the field named name.
func (t *TypeSpec) Field(name string) (*FieldSpec, bool) {
	for i := range t.Fields {
		if t.Fields[i].Name == name {
			return &t.Fields[i], true
		}
	}
	return nil, false
}

// Relation returns the relation named name.
func (t *TypeSpec) Relation(name string) (*RelationSpec, bool) {
	for i := range t.Relations {
		if t.Relations[i].Name == name {
			return &t.Relations[i], true
		}
	}
	return nil, false
}

// IDColumn returns the column backing the id field.
func (t *TypeSpec) IDColumn() string {
	if f, ok := t.Field(t.IDField); ok {
		return f.Column
	}
	return t.IDField
}

// Int64 returns a pointer to n. Handy for Min/Max literals.
func Int64(n int64) *int64 {
	return &n
}

// Float64 returns a pointer to f.
func Float64(f float64) *float64 {
	return &f
}

// Int returns a pointer to n.
func Int(n int) *int {
	return &n
}
