package rules

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/warden/internal/expr"
	"github.com/roach88/warden/internal/ir"
	"github.com/roach88/warden/internal/store"
	"github.com/roach88/warden/internal/validate"
)

// RuleFunc evaluates one declaration against instance. It returns nil when
// the rule holds, and a typed violation otherwise.
type RuleFunc func(ctx context.Context, rc *Context, instance any) error

// Context is the per-invocation state handed to a RuleFunc.
type Context struct {
	Mode        ir.Mode
	Phase       ir.Phase
	Declaration *ir.ConstraintDeclaration
	Type        *ir.TypeSpec

	// Expression is the declaration's template, parsed at load time.
	Expression *expr.Model

	// Session runs queries inside the caller's transaction.
	Session store.Session

	Validator *validate.Validator

	// CallID correlates log lines of one repository call.
	CallID string
}

// Option configures a Registry.
type Option func(*Registry)

// WithRule registers fn for kind, replacing any built-in of that name.
func WithRule(kind string, fn RuleFunc) Option {
	return func(r *Registry) {
		r.impls[kind] = fn
	}
}

// WithLogger sets the logger used for dispatch tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

type boundRule struct {
	decl  ir.ConstraintDeclaration
	fn    RuleFunc
	model *expr.Model
}

// Registry maps each catalog type to its resolved, ordered rules.
// It is immutable after NewRegistry and safe for concurrent use.
type Registry struct {
	catalog   *ir.Catalog
	validator *validate.Validator
	impls     map[string]RuleFunc
	rules     map[string][]boundRule
	logger    *slog.Logger
}

// NewRegistry resolves the rules of every type in catalog.
//
// Returns *ir.ConfigurationError for an unknown kind, an invalid mode,
// phase, or language, or an expression that does not parse.
func NewRegistry(catalog *ir.Catalog, validator *validate.Validator, opts ...Option) (*Registry, error) {
	r := &Registry{
		catalog:   catalog,
		validator: validator,
		impls: map[string]RuleFunc{
			ir.KindCount:     CountRule,
			ir.KindIntegrity: IntegrityRule,
		},
		rules:  make(map[string][]boundRule),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, spec := range catalog.Types() {
		bound := make([]boundRule, 0, len(spec.Rules))
		for _, decl := range spec.Rules {
			br, err := r.bind(&spec, decl)
			if err != nil {
				return nil, err
			}
			bound = append(bound, br)
		}
		r.rules[spec.Name] = bound
	}
	return r, nil
}

func (r *Registry) bind(spec *ir.TypeSpec, decl ir.ConstraintDeclaration) (boundRule, error) {
	fail := func(msg string, err error) (boundRule, error) {
		return boundRule{}, &ir.ConfigurationError{Type: spec.Name, Rule: decl.Name, Message: msg, Err: err}
	}

	if decl.Name == "" {
		return fail("rule name is required", nil)
	}
	fn, ok := r.impls[decl.Kind]
	if !ok {
		return fail(fmt.Sprintf("unknown rule kind %q", decl.Kind), nil)
	}
	for _, m := range decl.Modes {
		if !slices.Contains(ir.ValidModes, m) {
			return fail(fmt.Sprintf("invalid mode %q", m), nil)
		}
	}
	for _, p := range decl.Phases {
		if !slices.Contains(ir.ValidPhases, p) {
			return fail(fmt.Sprintf("invalid phase %q", p), nil)
		}
	}
	if decl.Language != "" && !slices.Contains(ir.ValidLanguages, decl.Language) {
		return fail(fmt.Sprintf("invalid expression language %q", decl.Language), nil)
	}
	if decl.Kind == ir.KindCount && decl.Language == ir.LanguageSQL && decl.Expression == "" {
		return fail("sql count rule needs an expression", nil)
	}
	if decl.Min != nil && decl.Max != nil && *decl.Min > *decl.Max {
		return fail(fmt.Sprintf("min %d exceeds max %d", *decl.Min, *decl.Max), nil)
	}

	model, err := expr.Parse(decl.Expression)
	if err != nil {
		return fail("invalid expression", err)
	}
	for _, p := range decl.MessageParams {
		if _, err := expr.Parse("${" + p + "}"); err != nil {
			return fail(fmt.Sprintf("invalid message parameter %q", p), err)
		}
	}

	if len(decl.Modes) == 0 || len(decl.Phases) == 0 {
		r.logger.Warn("rule never applies", "type", spec.Name, "rule", decl.Name)
	}
	return boundRule{decl: decl, fn: fn, model: model}, nil
}

// RulesFor returns the declarations of typeName applicable to mode at
// phase, in declaration order.
func (r *Registry) RulesFor(typeName string, mode ir.Mode, phase ir.Phase) []ir.ConstraintDeclaration {
	var out []ir.ConstraintDeclaration
	for _, br := range r.rules[typeName] {
		if br.decl.AppliesTo(mode, phase) {
			out = append(out, br.decl)
		}
	}
	return out
}

// Dispatch is the call-scoped input of a dispatch run.
type Dispatch struct {
	Type    string
	Mode    ir.Mode
	Phase   ir.Phase
	Session store.Session
	CallID  string
}

// Run evaluates the applicable rules in order and stops at the first
// failure. It returns the names of the rules evaluated.
func (r *Registry) Run(ctx context.Context, d Dispatch, instance any) ([]string, error) {
	spec, ok := r.catalog.Type(d.Type)
	if !ok {
		return nil, &ir.ConfigurationError{Type: d.Type, Message: "type not in catalog"}
	}

	var ran []string
	for i := range r.rules[d.Type] {
		br := &r.rules[d.Type][i]
		if !br.decl.AppliesTo(d.Mode, d.Phase) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return ran, err
		}

		rc := &Context{
			Mode:        d.Mode,
			Phase:       d.Phase,
			Declaration: &br.decl,
			Type:        spec,
			Expression:  br.model,
			Session:     d.Session,
			Validator:   r.validator,
			CallID:      d.CallID,
		}
		ran = append(ran, br.decl.Name)

		if err := br.fn(ctx, rc, instance); err != nil {
			r.logger.Debug("rule failed",
				"call_id", d.CallID, "type", d.Type, "rule", br.decl.Name,
				"mode", d.Mode, "phase", d.Phase, "error", err)
			return ran, err
		}
		r.logger.Debug("rule passed",
			"call_id", d.CallID, "type", d.Type, "rule", br.decl.Name,
			"mode", d.Mode, "phase", d.Phase)
	}
	return ran, nil
}
