package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/warden/internal/ir"
)

func testCatalog(t *testing.T) *ir.Catalog {
	t.Helper()
	c, err := ir.NewCatalog(ir.TypeSpec{
		Name:  "Item",
		Table: "items",
		Fields: []ir.FieldSpec{
			{Name: "label", Type: ir.FieldText},
			{Name: "qty", Type: ir.FieldInt},
			{Name: "weight", Type: ir.FieldReal},
			{Name: "done", Type: ir.FieldBool},
			{Name: "ownerId", Column: "owner_id", Type: ir.FieldInt},
		},
	})
	require.NoError(t, err)
	return c
}

func openTestStore(t *testing.T) (*Store, *ir.TypeSpec) {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	c := testCatalog(t)
	require.NoError(t, s.EnsureSchema(context.Background(), c))
	spec, _ := c.Type("Item")
	return s, spec
}

func TestOpen_CreatesDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	require.NotNil(t, s.DB())
	assert.NoError(t, s.DB().Ping())
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.EnsureSchema(context.Background(), testCatalog(t)))
	n, err := Count(context.Background(), s.DB(), `SELECT COUNT(*) FROM "items"`)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestClose_Nil(t *testing.T) {
	s := &Store{}
	assert.NoError(t, s.Close())
}

func TestPragmas(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer s.Close()

	tests := []struct {
		name     string
		expected string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, s.verifyPragma(tt.name, tt.expected))
		})
	}
}

func TestLike_IsCaseSensitive(t *testing.T) {
	s, spec := openTestStore(t)
	ctx := context.Background()

	_, err := Insert(ctx, s.DB(), spec, Row{"label": "Widget"})
	require.NoError(t, err)

	n, err := Count(ctx, s.DB(), `SELECT COUNT(*) FROM "items" WHERE "label" LIKE ?`, "widget")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = Count(ctx, s.DB(), `SELECT COUNT(*) FROM "items" WHERE "label" LIKE ?`, "Wid%")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestFold_UnicodeCaseInsensitive(t *testing.T) {
	s, spec := openTestStore(t)
	ctx := context.Background()

	_, err := Insert(ctx, s.DB(), spec, Row{"label": "ÉCOLE Straße"})
	require.NoError(t, err)
	_, err = Insert(ctx, s.DB(), spec, Row{"label": nil})
	require.NoError(t, err)

	n, err := Count(ctx, s.DB(), `SELECT COUNT(*) FROM "items" WHERE lower("label") LIKE lower(?)`, "école%")
	require.NoError(t, err)
	assert.Zero(t, n, "LOWER folds ASCII only")

	n, err = Count(ctx, s.DB(), `SELECT COUNT(*) FROM "items" WHERE fold("label") LIKE fold(?)`, "école%")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = Count(ctx, s.DB(), `SELECT COUNT(*) FROM "items" WHERE fold("label") LIKE fold(?)`, "%STRASSE")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = Count(ctx, s.DB(), `SELECT COUNT(*) FROM "items" WHERE fold("label") IS NULL`)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestFold(t *testing.T) {
	assert.Equal(t, "école", fold("ÉCOLE"))
	assert.Equal(t, "école", fold([]byte("École")))
	assert.Nil(t, fold(nil))
	assert.Equal(t, int64(7), fold(int64(7)))
}

func TestOpen_PathWithURIDelimiters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a#b?c d%.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.EnsureSchema(context.Background(), testCatalog(t)))

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file is created at the literal path")
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "file::memory:?_cslike=1", dsn(":memory:"))
	assert.Equal(t, "file:/tmp/warden.db?_cslike=1", dsn("/tmp/warden.db"))
	assert.Equal(t, "file:/tmp/a%23b%3Fc.db?_cslike=1", dsn("/tmp/a#b?c.db"))
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	s, _ := openTestStore(t)
	assert.NoError(t, s.EnsureSchema(context.Background(), testCatalog(t)))
}

func TestEnsureSchema_AddsNewColumns(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	c, err := ir.NewCatalog(ir.TypeSpec{
		Name:  "Item",
		Table: "items",
		Fields: []ir.FieldSpec{
			{Name: "label", Type: ir.FieldText},
			{Name: "note", Type: ir.FieldText},
		},
	})
	require.NoError(t, err)
	require.NoError(t, s.EnsureSchema(ctx, c))

	cols, err := s.columns(ctx, "items")
	require.NoError(t, err)
	assert.True(t, cols["note"])
	assert.True(t, cols["owner_id"])
}

func TestInsertGet_RoundTrip(t *testing.T) {
	s, spec := openTestStore(t)
	ctx := context.Background()

	id, err := Insert(ctx, s.DB(), spec, Row{"label": "a", "qty": int64(3), "weight": 1.5, "done": true, "ownerId": nil})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	row, ok, err := Get(ctx, s.DB(), spec, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Row{"id": int64(1), "label": "a", "qty": int64(3), "weight": 1.5, "done": true, "ownerId": nil}, row)
}

func TestInsert_UnknownField(t *testing.T) {
	s, spec := openTestStore(t)

	_, err := Insert(context.Background(), s.DB(), spec, Row{"colour": "red"})
	assert.ErrorContains(t, err, `no field "colour"`)
}

func TestInsert_DefaultValues(t *testing.T) {
	s, spec := openTestStore(t)

	id, err := Insert(context.Background(), s.DB(), spec, Row{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestUpdateDelete(t *testing.T) {
	s, spec := openTestStore(t)
	ctx := context.Background()

	id, err := Insert(ctx, s.DB(), spec, Row{"label": "a"})
	require.NoError(t, err)

	n, err := Update(ctx, s.DB(), spec, id, Row{"id": id, "label": "b"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	row, _, err := Get(ctx, s.DB(), spec, id)
	require.NoError(t, err)
	assert.Equal(t, "b", row["label"])

	n, err = Update(ctx, s.DB(), spec, int64(99), Row{"label": "c"})
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = Update(ctx, s.DB(), spec, id, Row{"id": id})
	assert.ErrorContains(t, err, "no fields")

	n, err = Delete(ctx, s.DB(), spec, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, ok, err := Get(ctx, s.DB(), spec, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTransaction_Rollback(t *testing.T) {
	s, spec := openTestStore(t)
	ctx := context.Background()

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	_, err = Insert(ctx, tx, spec, Row{"label": "a"})
	require.NoError(t, err)

	n, err := Count(ctx, tx, `SELECT COUNT(*) FROM "items"`)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, tx.Rollback())

	n, err = Count(ctx, s.DB(), `SELECT COUNT(*) FROM "items"`)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestQueryRows_OrderAndNormalization(t *testing.T) {
	s, spec := openTestStore(t)
	ctx := context.Background()

	for _, label := range []string{"b", "a"} {
		_, err := Insert(ctx, s.DB(), spec, Row{"label": label, "done": false})
		require.NoError(t, err)
	}

	rows, err := QueryRows(ctx, s.DB(), spec,
		`SELECT "id" AS "id", CAST("label" AS BLOB) AS "label", "done" AS "done" FROM "items" ORDER BY "label" ASC, "id" ASC`,
		nil, []string{"id", "label", "done"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0]["label"])
	assert.Equal(t, false, rows[0]["done"])
	assert.Equal(t, int64(2), rows[0]["id"])
}
