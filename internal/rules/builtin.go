package rules

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/warden/internal/expr"
	"github.com/roach88/warden/internal/ir"
	"github.com/roach88/warden/internal/querysql"
	"github.com/roach88/warden/internal/store"
	"github.com/roach88/warden/internal/validate"
)

var errNoSession = errors.New("rule needs a session")

// CountRule binds the expression to instance, runs it as a count query,
// and compares the result against the declaration bounds.
//
// Violation parameters are the resolved message parameters followed by
// the observed count, min, and max (nil when unbounded).
func CountRule(ctx context.Context, rc *Context, instance any) error {
	if rc.Session == nil {
		return fmt.Errorf("%s.%s: %w", rc.Type.Name, rc.Declaration.Name, errNoSession)
	}

	bound, err := rc.Expression.Bind(instance)
	if err != nil {
		return err
	}
	q, err := querysql.RuleCount(rc.Type, rc.Declaration.Language, rc.Expression, bound)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", rc.Type.Name, rc.Declaration.Name, err)
	}
	n, err := store.Count(ctx, rc.Session, q.SQL, q.Args...)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", rc.Type.Name, rc.Declaration.Name, err)
	}
	if rc.Declaration.InBounds(n) {
		return nil
	}

	params, err := MessageParams(rc.Declaration, instance)
	if err != nil {
		return err
	}
	params = append(params, n, int64OrNil(rc.Declaration.Min), int64OrNil(rc.Declaration.Max))

	msg := rc.Declaration.Message
	if msg == "" {
		msg = ir.MsgReferentialCount
	}
	return &ir.ReferentialViolation{
		Entity:  rc.Type.Name,
		Rule:    rc.Declaration.Name,
		Mode:    rc.Mode,
		Phase:   rc.Phase,
		Count:   n,
		Min:     rc.Declaration.Min,
		Max:     rc.Declaration.Max,
		Message: msg,
		Params:  params,
	}
}

// IntegrityRule runs the field-level constraints of the rule's type.
// It falls back to validate.Default when the context carries no Validator.
func IntegrityRule(_ context.Context, rc *Context, instance any) error {
	v := rc.Validator
	if v == nil {
		v = validate.Default()
	}
	return v.ValidateType(rc.Type, instance)
}

// MessageParams resolves the declaration's message parameter paths against
// instance, in order.
func MessageParams(decl *ir.ConstraintDeclaration, instance any) ([]any, error) {
	params := make([]any, 0, len(decl.MessageParams)+3)
	for _, path := range decl.MessageParams {
		v, err := expr.Resolve(instance, path)
		if err != nil {
			return nil, err
		}
		params = append(params, v)
	}
	return params, nil
}

func int64OrNil(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}
