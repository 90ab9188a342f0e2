package rules

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/warden/internal/ir"
	"github.com/roach88/warden/internal/store"
	"github.com/roach88/warden/internal/testutil"
	"github.com/roach88/warden/internal/validate"
)

func newRegistry(t *testing.T, catalog *ir.Catalog, opts ...Option) *Registry {
	t.Helper()
	opts = append([]Option{WithLogger(testutil.DiscardLogger())}, opts...)
	r, err := NewRegistry(catalog, validate.New(catalog), opts...)
	require.NoError(t, err)
	return r
}

func gadgetCatalog(t *testing.T, rules ...ir.ConstraintDeclaration) *ir.Catalog {
	t.Helper()
	c, err := ir.NewCatalog(ir.TypeSpec{
		Name:  "Gadget",
		Table: "gadgets",
		Fields: []ir.FieldSpec{
			{Name: "code", Type: ir.FieldText, Constraints: []ir.FieldConstraint{ir.Required{}}},
		},
		Rules: rules,
	})
	require.NoError(t, err)
	return c
}

func rule(name, kind string) ir.ConstraintDeclaration {
	return ir.ConstraintDeclaration{
		Name:   name,
		Kind:   kind,
		Modes:  []ir.Mode{ir.ModeCreate},
		Phases: []ir.Phase{ir.PhasePre},
	}
}

func names(decls []ir.ConstraintDeclaration) []string {
	var out []string
	for _, d := range decls {
		out = append(out, d.Name)
	}
	return out
}

func TestRulesFor_FiltersByModeAndPhase(t *testing.T) {
	r := newRegistry(t, testutil.Catalog(t))

	tests := []struct {
		typ   string
		mode  ir.Mode
		phase ir.Phase
		want  []string
	}{
		{"Product", ir.ModeCreate, ir.PhasePre, []string{"code_unique_create", "category_exists"}},
		{"Product", ir.ModeUpdate, ir.PhasePre, []string{"code_unique_update", "category_exists"}},
		{"Product", ir.ModeCreate, ir.PhasePost, nil},
		{"Product", ir.ModeDelete, ir.PhasePre, nil},
		{"Category", ir.ModeDelete, ir.PhasePre, []string{"category_in_use"}},
		{"Order", ir.ModeCreate, ir.PhasePre, nil},
	}
	for _, tt := range tests {
		t.Run(tt.typ+"/"+string(tt.mode)+"/"+string(tt.phase), func(t *testing.T) {
			assert.Equal(t, tt.want, names(r.RulesFor(tt.typ, tt.mode, tt.phase)))
		})
	}
}

func TestRulesFor_EmptySetsNeverApply(t *testing.T) {
	noModes := rule("no_modes", ir.KindIntegrity)
	noModes.Modes = nil
	noPhases := rule("no_phases", ir.KindIntegrity)
	noPhases.Phases = nil

	r := newRegistry(t, gadgetCatalog(t, noModes, noPhases))
	for _, mode := range ir.ValidModes {
		for _, phase := range ir.ValidPhases {
			assert.Empty(t, r.RulesFor("Gadget", mode, phase))
		}
	}
}

func TestNewRegistry_ConfigurationErrors(t *testing.T) {
	mutate := func(f func(*ir.ConstraintDeclaration)) ir.ConstraintDeclaration {
		d := rule("r", ir.KindCount)
		f(&d)
		return d
	}

	tests := []struct {
		name string
		decl ir.ConstraintDeclaration
		want string
	}{
		{"unknown kind", rule("r", "regex"), `unknown rule kind "regex"`},
		{"missing name", rule("", ir.KindCount), "rule name is required"},
		{"bad mode", mutate(func(d *ir.ConstraintDeclaration) { d.Modes = []ir.Mode{"upsert"} }), `invalid mode "upsert"`},
		{"bad phase", mutate(func(d *ir.ConstraintDeclaration) { d.Phases = []ir.Phase{"during"} }), `invalid phase "during"`},
		{"bad language", mutate(func(d *ir.ConstraintDeclaration) { d.Language = "jpql" }), `invalid expression language "jpql"`},
		{"empty sql", mutate(func(d *ir.ConstraintDeclaration) { d.Language = ir.LanguageSQL }), "needs an expression"},
		{"inverted bounds", mutate(func(d *ir.ConstraintDeclaration) { d.Min = ir.Int64(2); d.Max = ir.Int64(1) }), "min 2 exceeds max 1"},
		{"unterminated token", mutate(func(d *ir.ConstraintDeclaration) { d.Expression = "code = ${code" }), "invalid expression"},
		{"bad message param", mutate(func(d *ir.ConstraintDeclaration) { d.MessageParams = []string{"a b"} }), `invalid message parameter "a b"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := gadgetCatalog(t, tt.decl)
			_, err := NewRegistry(c, validate.New(c), WithLogger(testutil.DiscardLogger()))
			require.Error(t, err)
			assert.True(t, ir.IsConfigurationError(err))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestNewRegistry_ExpressionErrorUnwraps(t *testing.T) {
	d := rule("r", ir.KindCount)
	d.Expression = "code = ${}"
	c := gadgetCatalog(t, d)

	_, err := NewRegistry(c, nil, WithLogger(testutil.DiscardLogger()))
	var syntax *ir.ExpressionSyntaxError
	assert.ErrorAs(t, err, &syntax)
}

func TestRun_CountUniqueness(t *testing.T) {
	catalog := testutil.Catalog(t)
	s := testutil.OpenStore(t, catalog)
	r := newRegistry(t, catalog)
	ctx := context.Background()

	products, _ := catalog.Type("Product")
	_, err := store.Insert(ctx, s.DB(), products, store.Row{"code": "A-1", "name": "Hammer"})
	require.NoError(t, err)

	d := Dispatch{Type: "Product", Mode: ir.ModeCreate, Phase: ir.PhasePre, Session: s.DB(), CallID: "call-1"}

	ran, err := r.Run(ctx, d, testutil.NewProduct("B-2", "Wrench"))
	require.NoError(t, err)
	assert.Equal(t, []string{"code_unique_create", "category_exists"}, ran)

	ran, err = r.Run(ctx, d, testutil.NewProduct("A-1", "Another"))
	require.Error(t, err)
	assert.Equal(t, []string{"code_unique_create"}, ran)

	var rv *ir.ReferentialViolation
	require.ErrorAs(t, err, &rv)
	assert.Equal(t, "Product", rv.Entity)
	assert.Equal(t, "code_unique_create", rv.Rule)
	assert.Equal(t, ir.ModeCreate, rv.Mode)
	assert.Equal(t, ir.PhasePre, rv.Phase)
	assert.Equal(t, int64(1), rv.Count)
	assert.Equal(t, testutil.MsgCodeDuplicate, rv.Message)
	assert.Equal(t, []any{"A-1", int64(1), nil, int64(0)}, rv.Params)
}

func TestRun_SQLDialectExistence(t *testing.T) {
	catalog := testutil.Catalog(t)
	s := testutil.OpenStore(t, catalog)
	r := newRegistry(t, catalog)
	ctx := context.Background()

	categories, _ := catalog.Type("Category")
	toolsID, err := store.Insert(ctx, s.DB(), categories, store.Row{"name": "Tools"})
	require.NoError(t, err)

	d := Dispatch{Type: "Product", Mode: ir.ModeUpdate, Phase: ir.PhasePre, Session: s.DB()}

	p := testutil.NewProduct("A-1", "Hammer")
	p.CategoryID = &toolsID
	_, err = r.Run(ctx, d, p)
	require.NoError(t, err)

	missing := int64(99)
	p.CategoryID = &missing
	_, err = r.Run(ctx, d, p)

	var rv *ir.ReferentialViolation
	require.ErrorAs(t, err, &rv)
	assert.Equal(t, "category_exists", rv.Rule)
	assert.Equal(t, []any{int64(99), int64(0), int64(1), nil}, rv.Params)
}

func TestRun_FailFastInDeclarationOrder(t *testing.T) {
	errFirst := errors.New("first")
	var calls []string
	record := func(name string, err error) RuleFunc {
		return func(context.Context, *Context, any) error {
			calls = append(calls, name)
			return err
		}
	}

	c := gadgetCatalog(t, rule("a", "ok"), rule("b", "boom"), rule("c", "ok"))
	r := newRegistry(t, c, WithRule("ok", record("ok", nil)), WithRule("boom", record("boom", errFirst)))

	ran, err := r.Run(context.Background(), Dispatch{Type: "Gadget", Mode: ir.ModeCreate, Phase: ir.PhasePre}, map[string]any{})
	assert.ErrorIs(t, err, errFirst)
	assert.Equal(t, []string{"a", "b"}, ran)
	assert.Equal(t, []string{"ok", "boom"}, calls)
}

func TestRun_ContextCarriesCallState(t *testing.T) {
	var got *Context
	capture := func(_ context.Context, rc *Context, _ any) error {
		got = rc
		return nil
	}
	d := rule("peek", "peek")
	d.Expression = "code = ${code}"
	c := gadgetCatalog(t, d)
	r := newRegistry(t, c, WithRule("peek", capture))

	_, err := r.Run(context.Background(), Dispatch{Type: "Gadget", Mode: ir.ModeCreate, Phase: ir.PhasePre, CallID: "call-9"}, map[string]any{})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ir.ModeCreate, got.Mode)
	assert.Equal(t, ir.PhasePre, got.Phase)
	assert.Equal(t, "peek", got.Declaration.Name)
	assert.Equal(t, "Gadget", got.Type.Name)
	assert.Equal(t, "code = :p0", got.Expression.Query)
	assert.Equal(t, "call-9", got.CallID)
	assert.NotNil(t, got.Validator)
}

func TestRun_IntegrityKind(t *testing.T) {
	c := gadgetCatalog(t, rule("shape", ir.KindIntegrity))
	r := newRegistry(t, c)
	d := Dispatch{Type: "Gadget", Mode: ir.ModeCreate, Phase: ir.PhasePre}

	_, err := r.Run(context.Background(), d, map[string]any{"code": ""})
	assert.True(t, ir.IsValidationFailure(err))

	_, err = r.Run(context.Background(), d, map[string]any{"code": "x"})
	assert.NoError(t, err)
}

func TestRun_Errors(t *testing.T) {
	d := rule("unique", ir.KindCount)
	d.Expression = "code = ${code}"
	c := gadgetCatalog(t, d)
	r := newRegistry(t, c)
	create := Dispatch{Type: "Gadget", Mode: ir.ModeCreate, Phase: ir.PhasePre}

	t.Run("no session", func(t *testing.T) {
		_, err := r.Run(context.Background(), create, map[string]any{"code": "x"})
		assert.ErrorIs(t, err, errNoSession)
	})

	t.Run("unresolvable property", func(t *testing.T) {
		s := testutil.OpenStore(t, c)
		withSession := create
		withSession.Session = s.DB()

		_, err := r.Run(context.Background(), withSession, map[string]any{})
		assert.True(t, ir.IsResolutionError(err))
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := r.Run(context.Background(), Dispatch{Type: "Order"}, nil)
		assert.True(t, ir.IsConfigurationError(err))
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := r.Run(ctx, create, map[string]any{"code": "x"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
