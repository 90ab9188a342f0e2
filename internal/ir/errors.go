package ir

import (
	"errors"
	"fmt"
)

// ValidationFailure reports the first violated field-level constraint.
//
// Message is a template key, not rendered text. Params carry the structured
// values a presentation layer needs to render it (bounds, authorized values).
type ValidationFailure struct {
	// Entity is the type name of the validated instance.
	Entity string

	// Property is the field name, or a dotted path for nested values.
	Property string

	// Constraint is the kind of the violated constraint (e.g. "length").
	Constraint string

	// Message is the message template.
	Message string

	// Params are the ordered message parameters.
	Params []any
}

// Error implements the error interface.
func (e *ValidationFailure) Error() string {
	if len(e.Params) > 0 {
		return fmt.Sprintf("validation failed: %s.%s: %s %v", e.Entity, e.Property, e.Message, e.Params)
	}
	return fmt.Sprintf("validation failed: %s.%s: %s", e.Entity, e.Property, e.Message)
}

// ReferentialViolation reports an expression rule whose count fell outside [Min, Max].
type ReferentialViolation struct {
	Entity string
	Rule   string
	Mode   Mode
	Phase  Phase

	// Count is the value returned by the bound query.
	Count int64
	Min   *int64
	Max   *int64

	Message string
	Params  []any
}

// Error implements the error interface.
func (e *ReferentialViolation) Error() string {
	return fmt.Sprintf("referential constraint %s.%s violated at %s/%s: count %d outside %s",
		e.Entity, e.Rule, e.Mode, e.Phase, e.Count, formatBounds(e.Min, e.Max))
}

func formatBounds(min, max *int64) string {
	lo, hi := "-inf", "+inf"
	if min != nil {
		lo = fmt.Sprintf("%d", *min)
	}
	if max != nil {
		hi = fmt.Sprintf("%d", *max)
	}
	return "[" + lo + ", " + hi + "]"
}

// PropertyResolutionError reports a template or constraint path that could
// not be resolved against a live instance.
type PropertyResolutionError struct {
	Entity string
	Path   string

	// Segment is the first segment that failed to resolve.
	Segment string
}

// Error implements the error interface.
func (e *PropertyResolutionError) Error() string {
	if e.Segment != "" && e.Segment != e.Path {
		return fmt.Sprintf("cannot resolve property %q on %s (at segment %q)", e.Path, e.Entity, e.Segment)
	}
	return fmt.Sprintf("cannot resolve property %q on %s", e.Path, e.Entity)
}

// PathResolutionError reports a predicate path that does not navigate the
// declared property graph of a type.
type PathResolutionError struct {
	Type    string
	Path    string
	Segment string
}

// Error implements the error interface.
func (e *PathResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve path %q on type %s: unknown segment %q", e.Path, e.Type, e.Segment)
}

// ExpressionSyntaxError reports a malformed expression template.
type ExpressionSyntaxError struct {
	Template string

	// Offset is the byte offset of the offending token.
	Offset  int
	Message string
}

// Error implements the error interface.
func (e *ExpressionSyntaxError) Error() string {
	return fmt.Sprintf("expression syntax error at offset %d: %s (template %q)", e.Offset, e.Message, e.Template)
}

// ConfigurationError reports static configuration that cannot be loaded.
// It is raised while building a catalog or registry, never at call time.
type ConfigurationError struct {
	Type    string
	Rule    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	where := e.Type
	if e.Rule != "" {
		where += "." + e.Rule
	}
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if where == "" {
		return "configuration error: " + msg
	}
	return fmt.Sprintf("configuration error in %s: %s", where, msg)
}

// Unwrap returns the underlying cause.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// IsValidationFailure returns true if err is or wraps a ValidationFailure.
func IsValidationFailure(err error) bool {
	var vf *ValidationFailure
	return errors.As(err, &vf)
}

// IsReferentialViolation returns true if err is or wraps a ReferentialViolation.
func IsReferentialViolation(err error) bool {
	var rv *ReferentialViolation
	return errors.As(err, &rv)
}

// IsResolutionError returns true if err is a property or path resolution error.
// These indicate configuration or data-shape bugs, not business-rule violations.
func IsResolutionError(err error) bool {
	var pe *PropertyResolutionError
	if errors.As(err, &pe) {
		return true
	}
	var pathErr *PathResolutionError
	return errors.As(err, &pathErr)
}

// IsConfigurationError returns true if err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsConstraintViolation returns true for the business-rule failures a caller
// is expected to handle: ValidationFailure and ReferentialViolation.
func IsConstraintViolation(err error) bool {
	return IsValidationFailure(err) || IsReferentialViolation(err)
}
