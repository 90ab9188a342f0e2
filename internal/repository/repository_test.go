package repository

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/warden/internal/ir"
	"github.com/roach88/warden/internal/record"
	"github.com/roach88/warden/internal/restrict"
	"github.com/roach88/warden/internal/rules"
	"github.com/roach88/warden/internal/testutil"
	"github.com/roach88/warden/internal/validate"
)

type fixture struct {
	deps       Deps
	products   *Repository[*testutil.Product]
	categories *Repository[*testutil.Category]
}

func newDeps(t *testing.T, catalog *ir.Catalog) Deps {
	t.Helper()
	v := validate.New(catalog)
	reg, err := rules.NewRegistry(catalog, v, rules.WithLogger(testutil.DiscardLogger()))
	require.NoError(t, err)
	return Deps{
		Store:     testutil.OpenStore(t, catalog),
		Catalog:   catalog,
		Rules:     reg,
		Validator: v,
	}
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	deps := newDeps(t, testutil.Catalog(t))
	opts = append([]Option{WithLogger(testutil.DiscardLogger())}, opts...)

	products, err := New[*testutil.Product](deps, "Product", testutil.ProductMapper{}, opts...)
	require.NoError(t, err)
	categories, err := New[*testutil.Category](deps, "Category", testutil.CategoryMapper{}, opts...)
	require.NoError(t, err)
	return &fixture{deps: deps, products: products, categories: categories}
}

func (f *fixture) count(t *testing.T) int64 {
	t.Helper()
	n, err := f.products.Count(context.Background(), nil)
	require.NoError(t, err)
	return n
}

func (f *fixture) create(t *testing.T, p *testutil.Product) *testutil.Product {
	t.Helper()
	created, err := f.products.Create(context.Background(), p)
	require.NoError(t, err)
	return created
}

func TestCreate_AssignsIdentity(t *testing.T) {
	f := newFixture(t)

	created := f.create(t, testutil.NewProduct("A-1", "Hammer"))
	assert.Equal(t, int64(1), created.ID)

	found, err := f.products.FindByPrimaryKey(context.Background(), "id", created.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, created, found)
}

func TestCreate_UniquenessEnforced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.create(t, testutil.NewProduct("A-1", "Hammer"))
	assert.Equal(t, int64(1), f.count(t))

	got, err := f.products.Create(ctx, testutil.NewProduct("A-1", "Other"))
	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, ir.IsReferentialViolation(err))
	assert.Equal(t, int64(1), f.count(t))

	f.create(t, testutil.NewProduct("B-2", "Wrench"))
	assert.Equal(t, int64(2), f.count(t))
}

func TestCreate_IntegrityFailureWritesNothing(t *testing.T) {
	f := newFixture(t)

	got, err := f.products.Create(context.Background(), testutil.NewProduct("lower case", "Hammer"))
	require.Error(t, err)
	assert.Nil(t, got)

	var vf *ir.ValidationFailure
	require.ErrorAs(t, err, &vf)
	assert.Equal(t, "code", vf.Property)
	assert.Equal(t, "pattern", vf.Constraint)
	assert.Zero(t, f.count(t))
}

func TestCreateWith_FlagsSkipStages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.products.CreateWith(ctx, testutil.NewProduct("lower case", "Hammer"), Flags{PreValidate: true, PostValidate: true})
	require.NoError(t, err)

	f.create(t, testutil.NewProduct("A-1", "Hammer"))
	_, err = f.products.CreateWith(ctx, testutil.NewProduct("A-1", "Again"), Flags{ValidateIntegrity: true})
	require.NoError(t, err)

	assert.Equal(t, int64(3), f.count(t))
}

func TestCreate_ReferencedCategoryMustExist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tools, err := f.categories.Create(ctx, &testutil.Category{Name: "Tools", Active: true})
	require.NoError(t, err)

	p := testutil.NewProduct("A-1", "Hammer")
	p.CategoryID = &tools.ID
	f.create(t, p)

	missing := int64(42)
	q := testutil.NewProduct("B-2", "Wrench")
	q.CategoryID = &missing
	_, err = f.products.Create(ctx, q)

	var rv *ir.ReferentialViolation
	require.ErrorAs(t, err, &rv)
	assert.Equal(t, testutil.MsgCategoryMissing, rv.Message)
}

func TestUpdate_SelfExclusion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.create(t, testutil.NewProduct("A-1", "Hammer"))
	f.create(t, testutil.NewProduct("B-2", "Wrench"))

	renamed := testutil.NewProduct("A-1", "Claw hammer")
	updated, err := f.products.Update(ctx, a.ID, renamed)
	require.NoError(t, err)
	assert.Equal(t, a.ID, updated.ID)

	found, err := f.products.FindByPrimaryKey(ctx, "", a.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "Claw hammer", found.Name)

	_, err = f.products.Update(ctx, a.ID, testutil.NewProduct("B-2", "Clash"))
	assert.True(t, ir.IsReferentialViolation(err))

	found, err = f.products.FindByPrimaryKey(ctx, "", a.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "A-1", found.Code)
}

func TestUpdate_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.products.Update(context.Background(), 99, testutil.NewProduct("Z-9", "Ghost"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate_IntegrityFailure(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, testutil.NewProduct("A-1", "Hammer"))

	bad := testutil.NewProduct("A-1", "Hammer")
	bad.Price = -1
	_, err := f.products.Update(context.Background(), a.ID, bad)

	var vf *ir.ValidationFailure
	require.ErrorAs(t, err, &vf)
	assert.Equal(t, "price", vf.Property)
}

func TestDelete_OrphanCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tools, err := f.categories.Create(ctx, &testutil.Category{Name: "Tools"})
	require.NoError(t, err)
	p := testutil.NewProduct("A-1", "Hammer")
	p.CategoryID = &tools.ID
	p = f.create(t, p)

	err = f.categories.Delete(ctx, tools.ID)
	var rv *ir.ReferentialViolation
	require.ErrorAs(t, err, &rv)
	assert.Equal(t, "category_in_use", rv.Rule)
	assert.Equal(t, ir.ModeDelete, rv.Mode)
	assert.Equal(t, []any{"Tools", int64(1), nil, int64(0)}, rv.Params)

	_, err = f.categories.FindByPrimaryKey(ctx, "id", tools.ID, nil)
	require.NoError(t, err)

	require.NoError(t, f.products.Delete(ctx, p.ID))
	require.NoError(t, f.categories.Delete(ctx, tools.ID))

	_, err = f.categories.FindByPrimaryKey(ctx, "id", tools.ID, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete_NotFoundAndFlags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.products.Delete(ctx, 7), ErrNotFound)

	tools, err := f.categories.Create(ctx, &testutil.Category{Name: "Tools"})
	require.NoError(t, err)
	p := testutil.NewProduct("A-1", "Hammer")
	p.CategoryID = &tools.ID
	f.create(t, p)

	require.NoError(t, f.categories.DeleteWith(ctx, tools.ID, Flags{}))
}

// gadgetDeps builds a catalog whose only rule fails after every create.
func gadgetDeps(t *testing.T) (Deps, *ir.TypeSpec) {
	t.Helper()
	catalog, err := ir.NewCatalog(ir.TypeSpec{
		Name:   "Gadget",
		Table:  "gadgets",
		Fields: []ir.FieldSpec{{Name: "code", Type: ir.FieldText}},
		Rules: []ir.ConstraintDeclaration{{
			Name:       "never_stored",
			Kind:       ir.KindCount,
			Modes:      []ir.Mode{ir.ModeCreate},
			Phases:     []ir.Phase{ir.PhasePost},
			Expression: "code = ${code}",
			Max:        ir.Int64(0),
		}},
	})
	require.NoError(t, err)
	spec, _ := catalog.Type("Gadget")
	return newDeps(t, catalog), spec
}

func TestPostPhase_RollbackPolicy(t *testing.T) {
	deps, spec := gadgetDeps(t)
	repo, err := New[*record.Record](deps, "Gadget", record.NewMapper(spec), WithLogger(testutil.DiscardLogger()))
	require.NoError(t, err)
	ctx := context.Background()

	got, err := repo.Create(ctx, record.New("Gadget", map[string]any{"code": "x"}))
	require.Error(t, err)
	assert.Nil(t, got)
	assert.False(t, IsCommitted(err))

	var rv *ir.ReferentialViolation
	require.ErrorAs(t, err, &rv)
	assert.Equal(t, ir.PhasePost, rv.Phase)
	assert.Equal(t, ir.MsgReferentialCount, rv.Message)

	n, err := repo.Count(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = repo.CreateWith(ctx, record.New("Gadget", map[string]any{"code": "x"}), Flags{PostValidate: false})
	require.NoError(t, err)
	n, err = repo.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestPostPhase_AdvisoryPolicy(t *testing.T) {
	deps, spec := gadgetDeps(t)
	repo, err := New[*record.Record](deps, "Gadget", record.NewMapper(spec),
		WithLogger(testutil.DiscardLogger()), WithPostPhase(PostAdvisory))
	require.NoError(t, err)
	ctx := context.Background()

	got, err := repo.Create(ctx, record.New("Gadget", map[string]any{"code": "x"}))
	require.Error(t, err)
	assert.True(t, IsCommitted(err))
	assert.True(t, ir.IsReferentialViolation(err))

	var ce *CommittedError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, int64(1), ce.ID)
	assert.Equal(t, ir.ModeCreate, ce.Mode)

	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.Get("id"))

	n, err := repo.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func seedProducts(t *testing.T, f *fixture, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		p := testutil.NewProduct(fmt.Sprintf("P-%02d", i), fmt.Sprintf("Product %d", n-i))
		p.Price = float64(i)
		f.create(t, p)
	}
}

func codes(products []*testutil.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.Code
	}
	return out
}

func TestFilter_Pagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedProducts(t, f, 10)

	byCode := restrict.NewOrders().Add("code", restrict.Ascending)

	page, err := f.products.Filter(ctx, nil, byCode, nil, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"P-03", "P-04", "P-05"}, codes(page))

	rest, err := f.products.Filter(ctx, nil, byCode, nil, 2, -1)
	require.NoError(t, err)
	assert.Len(t, rest, 8)
	assert.Equal(t, "P-03", rest[0].Code)
	assert.Equal(t, "P-10", rest[7].Code)

	desc := restrict.NewOrders().Add("code", restrict.Ascending).Add("code", restrict.Descending)
	top, err := f.products.Filter(ctx, nil, desc, nil, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"P-10", "P-09"}, codes(top))

	none, err := f.products.Filter(ctx, nil, nil, nil, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFilter_Conjunction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, p := range []struct {
		code, status string
		price        float64
	}{{"A", "active", 0}, {"B", "draft", 5}, {"C", "active", 5}} {
		prod := testutil.NewProduct(p.code, p.code)
		prod.Status = p.status
		prod.Price = p.price
		f.create(t, prod)
	}

	where := restrict.NewRestrictions().AddEq("status", "active").AddGt("price", 0)
	got, err := f.products.Filter(ctx, where, nil, nil, 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, codes(got))

	n, err := f.products.Count(ctx, where)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	either := restrict.NewRestrictions().Add(restrict.AnyOf(restrict.Eq("code", "A"), restrict.Eq("code", "B")))
	got, err = f.products.Filter(ctx, either, restrict.NewOrders().Add("code", restrict.Descending), nil, 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, codes(got))
}

func TestFilter_NestedPathAndProjection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tools, err := f.categories.Create(ctx, &testutil.Category{Name: "Tools"})
	require.NoError(t, err)
	p := testutil.NewProduct("A-1", "Hammer")
	p.CategoryID = &tools.ID
	f.create(t, p)
	f.create(t, testutil.NewProduct("B-2", "Kite"))

	where := restrict.NewRestrictions().AddLikeIgnoreCase("category.name", "tool%")
	got, err := f.products.Filter(ctx, where, nil, []string{"code"}, 0, -1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A-1", got[0].Code)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Empty(t, got[0].Name)
	assert.Nil(t, got[0].CategoryID)

	orphans, err := f.products.Filter(ctx, restrict.NewRestrictions().AddIsNull("categoryId"), nil, nil, 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"B-2"}, codes(orphans))

	_, err = f.products.Filter(ctx, restrict.NewRestrictions().AddEq("category.colour", "red"), nil, nil, 0, -1)
	assert.True(t, ir.IsResolutionError(err))
}

func TestFindByPrimaryKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, testutil.NewProduct("A-1", "Hammer"))
	b := f.create(t, testutil.NewProduct("B-2", "Wrench"))

	found, err := f.products.FindByPrimaryKey(ctx, "code", "B-2", []string{"name"})
	require.NoError(t, err)
	assert.Equal(t, b.ID, found.ID)
	assert.Equal(t, "Wrench", found.Name)
	assert.Empty(t, found.Code)

	_, err = f.products.FindByPrimaryKey(ctx, "id", int64(99), nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNew_Errors(t *testing.T) {
	deps := newDeps(t, testutil.Catalog(t))

	_, err := New[*testutil.Product](deps, "Order", testutil.ProductMapper{})
	assert.True(t, ir.IsConfigurationError(err))

	_, err = New[*testutil.Product](Deps{}, "Product", testutil.ProductMapper{})
	assert.ErrorContains(t, err, "required")

	_, err = New[*testutil.Product](deps, "Product", testutil.ProductMapper{}, WithPostPhase("maybe"))
	assert.ErrorContains(t, err, `invalid post phase policy "maybe"`)
}

func TestParsePostPhasePolicy(t *testing.T) {
	for in, want := range map[string]PostPhasePolicy{"": PostRollback, "rollback": PostRollback, "advisory": PostAdvisory} {
		got, err := ParsePostPhasePolicy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParsePostPhasePolicy("log")
	assert.Error(t, err)
}

func TestLogging_CorrelatesCalls(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	f := newFixture(t, WithLogger(logger), WithIDGenerator(testutil.NewSequentialIDs("")))

	f.create(t, testutil.NewProduct("A-1", "Hammer"))
	_, err := f.products.Create(context.Background(), testutil.NewProduct("A-1", "Again"))
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, "msg=\"entity created\" call_id=call-1 type=Product mode=create id=1")
	assert.Contains(t, out, "msg=\"call rejected\" call_id=call-2")
	assert.Contains(t, out, "stage=pre")
	assert.Contains(t, out, "level=INFO")
}

func TestUUIDv7Generator(t *testing.T) {
	a := UUIDv7Generator{}.Next()
	b := UUIDv7Generator{}.Next()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
