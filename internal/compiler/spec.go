// Package compiler turns CUE type declarations into ir.TypeSpec values and
// checks them against the schema rules of the engine.
//
// A declaration file looks like:
//
//	type: Product: {
//		table: "products"
//		fields: [
//			{name: "code", type: "text", constraints: [
//				{kind: "required", trim: true},
//				{kind: "length", min: 1, max: 16},
//				{kind: "pattern", expr: "[A-Z0-9-]+"},
//			]},
//			{name: "categoryId", type: "int", column: "category_id"},
//		]
//		relations: [{name: "category", target: "Category", column: "category_id"}]
//		rules: [{
//			name:       "code_unique"
//			kind:       "count"
//			mode:       ["create"]
//			phase:      ["pre"]
//			expression: "code = ${code}"
//			max:        0
//			message:    "product.code.duplicate"
//			params:     ["code"]
//		}]
//	}
package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/warden/internal/ir"
)

// CompileType parses a CUE value into a TypeSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the type struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`type: Product: { ... }`)
//	spec, err := CompileType(v.LookupPath(cue.ParsePath("type.Product")))
func CompileType(v cue.Value) (*ir.TypeSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.TypeSpec{}

	// Type name from struct label (the path selector)
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].String()
	}

	table, ok, err := optString(v, "table")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &CompileError{Field: "table", Message: "table is required", Pos: v.Pos()}
	}
	spec.Table = table

	if spec.IDField, _, err = optString(v, "id"); err != nil {
		return nil, err
	}

	if spec.Fields, err = parseFields(v); err != nil {
		return nil, err
	}
	if spec.Relations, err = parseRelations(v); err != nil {
		return nil, err
	}
	if spec.Rules, err = parseRules(v); err != nil {
		return nil, err
	}
	return spec, nil
}

func parseFields(v cue.Value) ([]ir.FieldSpec, error) {
	var fields []ir.FieldSpec
	err := eachListItem(v, "fields", func(item cue.Value, i int) error {
		name, ok, err := optString(item, "name")
		if err != nil {
			return err
		}
		if !ok {
			return &CompileError{Field: fmt.Sprintf("fields[%d].name", i), Message: "field name is required", Pos: item.Pos()}
		}
		f := ir.FieldSpec{Name: name, Type: ir.FieldText}

		if typ, ok, err := optString(item, "type"); err != nil {
			return err
		} else if ok {
			f.Type = ir.FieldType(typ)
		}
		if f.Column, _, err = optString(item, "column"); err != nil {
			return err
		}

		f.Constraints, err = parseConstraints(item, name)
		if err != nil {
			return err
		}
		fields = append(fields, f)
		return nil
	})
	return fields, err
}

func parseConstraints(field cue.Value, fieldName string) ([]ir.FieldConstraint, error) {
	var out []ir.FieldConstraint
	err := eachListItem(field, "constraints", func(item cue.Value, i int) error {
		path := fmt.Sprintf("fields.%s.constraints[%d]", fieldName, i)
		kind, ok, err := optString(item, "kind")
		if err != nil {
			return err
		}
		if !ok {
			return &CompileError{Field: path + ".kind", Message: "constraint kind is required", Pos: item.Pos()}
		}
		msg, _, err := optString(item, "message")
		if err != nil {
			return err
		}

		var c ir.FieldConstraint
		switch kind {
		case "required":
			trim, _, err := optBool(item, "trim")
			if err != nil {
				return err
			}
			c = ir.Required{Trim: trim, Message: msg}
		case "length":
			l := ir.Length{Message: msg}
			if l.Min, err = optIntPtr(item, "min"); err != nil {
				return err
			}
			if l.Max, err = optIntPtr(item, "max"); err != nil {
				return err
			}
			if l.Trim, _, err = optBool(item, "trim"); err != nil {
				return err
			}
			c = l
		case "interval":
			iv := ir.Interval{Message: msg}
			if iv.Min, err = optFloatPtr(item, "min"); err != nil {
				return err
			}
			if iv.Max, err = optFloatPtr(item, "max"); err != nil {
				return err
			}
			c = iv
		case "pattern":
			expr, ok, err := optString(item, "expr")
			if err != nil {
				return err
			}
			if !ok {
				return &CompileError{Field: path + ".expr", Message: "pattern expr is required", Pos: item.Pos()}
			}
			p, err := ir.NewPattern(expr, msg)
			if err != nil {
				return &CompileError{Field: path + ".expr", Message: err.Error(), Pos: item.Pos()}
			}
			c = p
		case "enumerated":
			values, err := stringList(item, "values")
			if err != nil {
				return err
			}
			cs, _, err := optBool(item, "case_sensitive")
			if err != nil {
				return err
			}
			c = ir.Enumerated{Values: values, CaseSensitive: cs, Message: msg}
		default:
			return &CompileError{Field: path + ".kind", Message: fmt.Sprintf("unknown constraint kind %q", kind), Pos: item.Pos()}
		}
		out = append(out, c)
		return nil
	})
	return out, err
}

func parseRelations(v cue.Value) ([]ir.RelationSpec, error) {
	var rels []ir.RelationSpec
	err := eachListItem(v, "relations", func(item cue.Value, i int) error {
		var r ir.RelationSpec
		for _, f := range []struct {
			key string
			dst *string
		}{{"name", &r.Name}, {"target", &r.Target}, {"column", &r.Column}} {
			s, ok, err := optString(item, f.key)
			if err != nil {
				return err
			}
			if !ok {
				return &CompileError{Field: fmt.Sprintf("relations[%d].%s", i, f.key), Message: f.key + " is required", Pos: item.Pos()}
			}
			*f.dst = s
		}
		rels = append(rels, r)
		return nil
	})
	return rels, err
}

func parseRules(v cue.Value) ([]ir.ConstraintDeclaration, error) {
	var decls []ir.ConstraintDeclaration
	err := eachListItem(v, "rules", func(item cue.Value, i int) error {
		var d ir.ConstraintDeclaration
		var err error
		if d.Name, _, err = optString(item, "name"); err != nil {
			return err
		}
		kind, ok, err := optString(item, "kind")
		if err != nil {
			return err
		}
		if !ok {
			kind = ir.KindCount
		}
		d.Kind = kind

		modes, err := stringList(item, "mode")
		if err != nil {
			return err
		}
		for _, m := range modes {
			d.Modes = append(d.Modes, ir.Mode(m))
		}
		phases, err := stringList(item, "phase")
		if err != nil {
			return err
		}
		for _, p := range phases {
			d.Phases = append(d.Phases, ir.Phase(p))
		}

		if d.Expression, _, err = optString(item, "expression"); err != nil {
			return err
		}
		lang, _, err := optString(item, "language")
		if err != nil {
			return err
		}
		d.Language = ir.Language(lang)
		if d.Min, err = optInt64Ptr(item, "min"); err != nil {
			return err
		}
		if d.Max, err = optInt64Ptr(item, "max"); err != nil {
			return err
		}
		if d.Message, _, err = optString(item, "message"); err != nil {
			return err
		}
		if d.MessageParams, err = stringList(item, "params"); err != nil {
			return err
		}
		decls = append(decls, d)
		return nil
	})
	return decls, err
}

// eachListItem calls fn for every element of the optional list at key.
func eachListItem(v cue.Value, key string, fn func(item cue.Value, i int) error) error {
	list := v.LookupPath(cue.ParsePath(key))
	if !list.Exists() {
		return nil
	}
	iter, err := list.List()
	if err != nil {
		return formatCUEError(err)
	}
	for i := 0; iter.Next(); i++ {
		if err := fn(iter.Value(), i); err != nil {
			return err
		}
	}
	return nil
}

func optString(v cue.Value, key string) (string, bool, error) {
	f := v.LookupPath(cue.ParsePath(key))
	if !f.Exists() {
		return "", false, nil
	}
	s, err := f.String()
	if err != nil {
		return "", false, formatCUEError(err)
	}
	return s, true, nil
}

func optBool(v cue.Value, key string) (bool, bool, error) {
	f := v.LookupPath(cue.ParsePath(key))
	if !f.Exists() {
		return false, false, nil
	}
	b, err := f.Bool()
	if err != nil {
		return false, false, formatCUEError(err)
	}
	return b, true, nil
}

func optInt64Ptr(v cue.Value, key string) (*int64, error) {
	f := v.LookupPath(cue.ParsePath(key))
	if !f.Exists() {
		return nil, nil
	}
	n, err := f.Int64()
	if err != nil {
		return nil, formatCUEError(err)
	}
	return &n, nil
}

func optIntPtr(v cue.Value, key string) (*int, error) {
	n, err := optInt64Ptr(v, key)
	if n == nil || err != nil {
		return nil, err
	}
	return ir.Int(int(*n)), nil
}

func optFloatPtr(v cue.Value, key string) (*float64, error) {
	f := v.LookupPath(cue.ParsePath(key))
	if !f.Exists() {
		return nil, nil
	}
	n, err := f.Float64()
	if err != nil {
		return nil, formatCUEError(err)
	}
	return &n, nil
}

func stringList(v cue.Value, key string) ([]string, error) {
	var out []string
	err := eachListItem(v, key, func(item cue.Value, _ int) error {
		s, err := item.String()
		if err != nil {
			return formatCUEError(err)
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
