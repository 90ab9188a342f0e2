package ir

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// FieldConstraint is a structural rule attached to one field.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern enables exhaustive type switches in the
// validator.
//
// Constraint types:
//   - Required: value present and non-empty
//   - Length: rune/element count within bounds
//   - Interval: numeric value within bounds
//   - Pattern: text matches a regular expression
//   - Enumerated: value is one of an authorized set
type FieldConstraint interface {
	fieldConstraint() // Marker method - seals interface to this package

	// Kind returns the constraint name used in configuration files.
	Kind() string

	// MessageTemplate returns the message key reported on violation.
	MessageTemplate() string
}

// Default message templates. Declarations may override them.
const (
	MsgRequired         = "validation.required"
	MsgLength           = "validation.length"
	MsgLengthType       = "validation.length.unsupported"
	MsgIntervalNaN      = "validation.interval.nan"
	MsgIntervalRange    = "validation.interval.range"
	MsgPattern          = "validation.pattern"
	MsgEnumerated       = "validation.enumerated"
	MsgReferentialCount = "validation.referential.count"
)

// Required fails on nil, empty text, and empty collections.
// With Trim, whitespace-only text counts as empty.
type Required struct {
	Trim    bool   `json:"trim,omitempty"`
	Message string `json:"message,omitempty"`
}

func (Required) fieldConstraint() {}

func (Required) Kind() string { return "required" }

func (r Required) MessageTemplate() string { return orDefault(r.Message, MsgRequired) }

// Length bounds the size of text (in runes, NFC normalized), arrays,
// slices, maps, and anything exposing Len() int. Nil values pass.
type Length struct {
	Min     *int   `json:"min,omitempty"`
	Max     *int   `json:"max,omitempty"`
	Trim    bool   `json:"trim,omitempty"`
	Message string `json:"message,omitempty"`
}

func (Length) fieldConstraint() {}

func (Length) Kind() string { return "length" }

func (l Length) MessageTemplate() string { return orDefault(l.Message, MsgLength) }

// Interval bounds a numeric value, compared as float64.
// A nil or non-numeric value reports MsgIntervalNaN, not the range message.
type Interval struct {
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Message string   `json:"message,omitempty"`
}

func (Interval) fieldConstraint() {}

func (Interval) Kind() string { return "interval" }

func (i Interval) MessageTemplate() string { return orDefault(i.Message, MsgIntervalRange) }

// Pattern requires text to match Regexp in full. Nil values pass.
type Pattern struct {
	Expr    string         `json:"expr"`
	Regexp  *regexp.Regexp `json:"-"`
	Message string         `json:"message,omitempty"`
}

// NewPattern compiles expr anchored at both ends.
func NewPattern(expr, message string) (Pattern, error) {
	re, err := regexp.Compile(`^(?:` + expr + `)$`)
	if err != nil {
		return Pattern{}, fmt.Errorf("compile pattern %q: %w", expr, err)
	}
	return Pattern{Expr: expr, Regexp: re, Message: message}, nil
}

func (Pattern) fieldConstraint() {}

func (Pattern) Kind() string { return "pattern" }

func (p Pattern) MessageTemplate() string { return orDefault(p.Message, MsgPattern) }

// Enumerated requires the value to be one of Values. Nil values pass.
type Enumerated struct {
	Values        []string `json:"values"`
	CaseSensitive bool     `json:"case_sensitive,omitempty"`
	Message       string   `json:"message,omitempty"`
}

func (Enumerated) fieldConstraint() {}

func (Enumerated) Kind() string { return "enumerated" }

func (e Enumerated) MessageTemplate() string { return orDefault(e.Message, MsgEnumerated) }

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// MarshalJSON adds the constraint kind so catalog dumps are self-describing.
func (r Required) MarshalJSON() ([]byte, error) {
	type alias Required
	return marshalWithKind(r.Kind(), alias(r))
}

// MarshalJSON adds the constraint kind.
func (l Length) MarshalJSON() ([]byte, error) {
	type alias Length
	return marshalWithKind(l.Kind(), alias(l))
}

// MarshalJSON adds the constraint kind.
func (i Interval) MarshalJSON() ([]byte, error) {
	type alias Interval
	return marshalWithKind(i.Kind(), alias(i))
}

// MarshalJSON adds the constraint kind.
func (p Pattern) MarshalJSON() ([]byte, error) {
	type alias Pattern
	return marshalWithKind(p.Kind(), alias(p))
}

// MarshalJSON adds the constraint kind.
func (e Enumerated) MarshalJSON() ([]byte, error) {
	type alias Enumerated
	return marshalWithKind(e.Kind(), alias(e))
}

func marshalWithKind(kind string, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	kindJSON, err := json.Marshal(kind)
	if err != nil {
		return nil, err
	}
	fields["kind"] = kindJSON
	return json.Marshal(fields)
}
