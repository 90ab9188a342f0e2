// Package testutil provides shared fixtures for package tests: a small
// Product/Category catalog, typed entities with mappers, and a temporary
// store.
package testutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/warden/internal/ir"
	"github.com/roach88/warden/internal/store"
)

// Rule messages used by the fixture catalog.
const (
	MsgCodeDuplicate   = "product.code.duplicate"
	MsgCategoryMissing = "product.category.missing"
	MsgCategoryInUse   = "category.in_use"
)

// Specs returns the fixture type specifications.
//
// Category rejects deletion while products reference it. Product codes
// are unique on create and update, and a non-null category must exist.
func Specs() []ir.TypeSpec {
	return []ir.TypeSpec{
		{
			Name:  "Category",
			Table: "categories",
			Fields: []ir.FieldSpec{
				{Name: "id", Type: ir.FieldInt},
				{Name: "name", Type: ir.FieldText, Constraints: []ir.FieldConstraint{
					ir.Required{Trim: true},
					ir.Length{Max: ir.Int(32)},
				}},
				{Name: "active", Type: ir.FieldBool},
			},
			Rules: []ir.ConstraintDeclaration{
				{
					Name:          "category_in_use",
					Kind:          ir.KindCount,
					Modes:         []ir.Mode{ir.ModeDelete},
					Phases:        []ir.Phase{ir.PhasePre},
					Language:      ir.LanguageSQL,
					Expression:    "SELECT COUNT(*) FROM products WHERE category_id = ${id}",
					Max:           ir.Int64(0),
					Message:       MsgCategoryInUse,
					MessageParams: []string{"name"},
				},
			},
		},
		{
			Name:  "Product",
			Table: "products",
			Fields: []ir.FieldSpec{
				{Name: "id", Type: ir.FieldInt},
				{Name: "code", Type: ir.FieldText, Constraints: []ir.FieldConstraint{
					ir.Required{Trim: true},
					ir.Length{Min: ir.Int(1), Max: ir.Int(16), Trim: true},
					mustPattern(`[A-Z0-9-]+`),
				}},
				{Name: "name", Type: ir.FieldText, Constraints: []ir.FieldConstraint{
					ir.Required{},
					ir.Length{Max: ir.Int(64)},
				}},
				{Name: "status", Type: ir.FieldText, Constraints: []ir.FieldConstraint{
					ir.Enumerated{Values: []string{"draft", "active", "retired"}},
				}},
				{Name: "price", Type: ir.FieldReal, Constraints: []ir.FieldConstraint{
					ir.Interval{Min: ir.Float64(0), Max: ir.Float64(100000)},
				}},
				{Name: "active", Type: ir.FieldBool},
				{Name: "categoryId", Column: "category_id", Type: ir.FieldInt},
			},
			Relations: []ir.RelationSpec{
				{Name: "category", Target: "Category", Column: "category_id"},
			},
			Rules: []ir.ConstraintDeclaration{
				{
					Name:          "code_unique_create",
					Kind:          ir.KindCount,
					Modes:         []ir.Mode{ir.ModeCreate},
					Phases:        []ir.Phase{ir.PhasePre},
					Language:      ir.LanguageWhere,
					Expression:    "code = ${code}",
					Max:           ir.Int64(0),
					Message:       MsgCodeDuplicate,
					MessageParams: []string{"code"},
				},
				{
					Name:          "code_unique_update",
					Kind:          ir.KindCount,
					Modes:         []ir.Mode{ir.ModeUpdate},
					Phases:        []ir.Phase{ir.PhasePre},
					Language:      ir.LanguageWhere,
					Expression:    "code = ${code} AND id <> ${id}",
					Max:           ir.Int64(0),
					Message:       MsgCodeDuplicate,
					MessageParams: []string{"code"},
				},
				{
					Name:          "category_exists",
					Kind:          ir.KindCount,
					Modes:         []ir.Mode{ir.ModeCreate, ir.ModeUpdate},
					Phases:        []ir.Phase{ir.PhasePre},
					Language:      ir.LanguageSQL,
					Expression:    "SELECT CASE WHEN ${categoryId} IS NULL THEN 1 ELSE (SELECT COUNT(*) FROM categories WHERE id = ${categoryId}) END",
					Min:           ir.Int64(1),
					Message:       MsgCategoryMissing,
					MessageParams: []string{"categoryId"},
				},
			},
		},
	}
}

func mustPattern(expr string) ir.Pattern {
	p, err := ir.NewPattern(expr, "")
	if err != nil {
		panic(err)
	}
	return p
}

// Catalog builds the fixture catalog.
func Catalog(t testing.TB) *ir.Catalog {
	t.Helper()
	c, err := ir.NewCatalog(Specs()...)
	require.NoError(t, err)
	return c
}

// OpenStore opens a store in a temporary directory and creates the tables
// of catalog. The store is closed when the test ends.
func OpenStore(t testing.TB, catalog *ir.Catalog) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.EnsureSchema(ctx, catalog))
	return s
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Category is a typed fixture entity.
type Category struct {
	ID     int64
	Name   string
	Active bool
}

func (c *Category) EntityName() string { return "Category" }

func (c *Category) Resolve(name string) (any, bool) {
	switch name {
	case "id":
		return c.ID, true
	case "name":
		return c.Name, true
	case "active":
		return c.Active, true
	}
	return nil, false
}

// Product is a typed fixture entity. The category relation is never
// loaded; only its foreign key is resolvable.
type Product struct {
	ID         int64
	Code       string
	Name       string
	Status     string
	Price      float64
	Active     bool
	CategoryID *int64
}

// NewProduct returns a draft product that passes every fixture constraint.
func NewProduct(code, name string) *Product {
	return &Product{Code: code, Name: name, Status: "draft", Price: 10, Active: true}
}

func (p *Product) EntityName() string { return "Product" }

func (p *Product) Resolve(name string) (any, bool) {
	switch name {
	case "id":
		return p.ID, true
	case "code":
		return p.Code, true
	case "name":
		return p.Name, true
	case "status":
		return p.Status, true
	case "price":
		return p.Price, true
	case "active":
		return p.Active, true
	case "categoryId":
		if p.CategoryID == nil {
			return nil, true
		}
		return *p.CategoryID, true
	}
	return nil, false
}

// CategoryMapper maps Category values to and from store rows.
type CategoryMapper struct{}

func (CategoryMapper) ToRow(c *Category) (store.Row, error) {
	row := store.Row{"name": c.Name, "active": c.Active}
	if c.ID != 0 {
		row["id"] = c.ID
	}
	return row, nil
}

func (CategoryMapper) FromRow(row store.Row) (*Category, error) {
	c := &Category{}
	var err error
	if c.ID, err = asInt64(row["id"]); err != nil {
		return nil, err
	}
	c.Name, _ = row["name"].(string)
	c.Active, _ = row["active"].(bool)
	return c, nil
}

func (CategoryMapper) WithID(c *Category, id int64) *Category {
	c.ID = id
	return c
}

// ProductMapper maps Product values to and from store rows.
type ProductMapper struct{}

func (ProductMapper) ToRow(p *Product) (store.Row, error) {
	row := store.Row{
		"code":   p.Code,
		"name":   p.Name,
		"status": p.Status,
		"price":  p.Price,
		"active": p.Active,
	}
	if p.ID != 0 {
		row["id"] = p.ID
	}
	if p.CategoryID != nil {
		row["categoryId"] = *p.CategoryID
	} else {
		row["categoryId"] = nil
	}
	return row, nil
}

// FromRow tolerates projected rows: absent fields keep their zero value.
func (ProductMapper) FromRow(row store.Row) (*Product, error) {
	p := &Product{}
	var err error
	if p.ID, err = asInt64(row["id"]); err != nil {
		return nil, err
	}
	p.Code, _ = row["code"].(string)
	p.Name, _ = row["name"].(string)
	p.Status, _ = row["status"].(string)
	p.Active, _ = row["active"].(bool)
	switch v := row["price"].(type) {
	case float64:
		p.Price = v
	case int64:
		p.Price = float64(v)
	}
	if v, ok := row["categoryId"]; ok && v != nil {
		id, err := asInt64(v)
		if err != nil {
			return nil, err
		}
		p.CategoryID = &id
	}
	return p, nil
}

func (ProductMapper) WithID(p *Product, id int64) *Product {
	p.ID = id
	return p
}

func asInt64(v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	}
	return 0, fmt.Errorf("expected integer, got %T", v)
}
