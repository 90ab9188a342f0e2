// Package validate runs field-level structural constraints against entity
// instances.
//
// A Validator is built once from a catalog and is safe for concurrent use.
// Field values are read through the expr resolver capability, so any type
// implementing expr.Resolver (or a plain map) can be validated.
package validate

import (
	"fmt"

	"github.com/roach88/warden/internal/expr"
	"github.com/roach88/warden/internal/ir"
)

// Validator checks instances against the field constraints of a catalog.
type Validator struct {
	catalog *ir.Catalog
}

// New creates a Validator for catalog. A nil catalog validates nothing and
// rejects every instance as an unknown type.
func New(catalog *ir.Catalog) *Validator {
	return &Validator{catalog: catalog}
}

// Validate checks instance against the constraints of its type and returns
// the first violation as *ir.ValidationFailure. Fields are visited in
// declaration order and constraints in slice order.
//
// The type is looked up by expr.EntityName(instance).
func (v *Validator) Validate(instance any) error {
	spec, err := v.typeOf(instance)
	if err != nil {
		return err
	}
	return v.ValidateType(spec, instance)
}

// ValidateType is Validate with an explicit type.
func (v *Validator) ValidateType(spec *ir.TypeSpec, instance any) error {
	var first error
	err := walk(spec, instance, func(f *ir.ValidationFailure) bool {
		first = f
		return false
	})
	if err != nil {
		return err
	}
	return first
}

// ValidateAll checks every constraint and returns all violations in
// evaluation order. The error is non-nil only for resolution or lookup
// problems, never for violations.
func (v *Validator) ValidateAll(instance any) ([]*ir.ValidationFailure, error) {
	spec, err := v.typeOf(instance)
	if err != nil {
		return nil, err
	}

	var failures []*ir.ValidationFailure
	err = walk(spec, instance, func(f *ir.ValidationFailure) bool {
		failures = append(failures, f)
		return true
	})
	if err != nil {
		return nil, err
	}
	return failures, nil
}

func (v *Validator) typeOf(instance any) (*ir.TypeSpec, error) {
	if expr.IsNil(instance) {
		return nil, &ir.PropertyResolutionError{Entity: expr.EntityName(instance)}
	}
	name := expr.EntityName(instance)
	if v.catalog != nil {
		if spec, ok := v.catalog.Type(name); ok {
			return spec, nil
		}
	}
	return nil, &ir.ConfigurationError{Type: name, Message: "type not in catalog"}
}

// walk evaluates each constraint and hands violations to report until it
// returns false.
func walk(spec *ir.TypeSpec, instance any, report func(*ir.ValidationFailure) bool) error {
	for i := range spec.Fields {
		field := &spec.Fields[i]
		if len(field.Constraints) == 0 {
			continue
		}

		value, err := expr.Resolve(instance, field.Name)
		if err != nil {
			return err
		}

		for _, c := range field.Constraints {
			msg, params, ok, err := check(c, value)
			if err != nil {
				return fmt.Errorf("%s.%s: %w", spec.Name, field.Name, err)
			}
			if ok {
				continue
			}
			failure := &ir.ValidationFailure{
				Entity:     spec.Name,
				Property:   field.Name,
				Constraint: c.Kind(),
				Message:    msg,
				Params:     params,
			}
			if !report(failure) {
				return nil
			}
		}
	}
	return nil
}
