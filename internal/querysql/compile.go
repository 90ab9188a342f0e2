package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/warden/internal/ir"
	"github.com/roach88/warden/internal/restrict"
)

// SelectQuery describes a filtered, sorted, paginated read of one type.
type SelectQuery struct {
	// Type is the catalog name of the root type.
	Type string

	// Filter restricts rows (nil = all rows).
	Filter restrict.Predicate

	// Orders maps property paths to directions. Keys are emitted in
	// lexical order, then the root id ascending.
	Orders map[string]restrict.Direction

	// Fields projects root-level field names. Empty selects every field.
	// The id field is always included.
	Fields []string

	// Offset skips rows; values <= 0 skip nothing.
	Offset int

	// Limit caps the row count; negative means unbounded.
	Limit int
}

// Compiled is a ready-to-run statement.
type Compiled struct {
	SQL  string
	Args []any

	// Fields lists the result column labels in select order.
	Fields []string
}

// Compiler compiles queries against a catalog.
type Compiler struct {
	catalog *ir.Catalog
}

// NewCompiler creates a Compiler for catalog.
func NewCompiler(catalog *ir.Catalog) *Compiler {
	return &Compiler{catalog: catalog}
}

// Select compiles q to a SELECT statement.
func (c *Compiler) Select(q SelectQuery) (Compiled, error) {
	root, err := c.rootType(q.Type)
	if err != nil {
		return Compiled{}, err
	}
	p := newPlanner(c.catalog, root)

	fields, err := projection(root, q.Fields)
	if err != nil {
		return Compiled{}, err
	}
	cols := make([]string, len(fields))
	for i, name := range fields {
		f, _ := root.Field(name)
		cols[i] = fmt.Sprintf("t0.%s AS %s", quoteIdent(f.Column), quoteIdent(name))
	}

	var where string
	var args []any
	if q.Filter != nil {
		where, args, err = p.predicate(q.Filter)
		if err != nil {
			return Compiled{}, fmt.Errorf("compile filter: %w", err)
		}
	}

	orderBy, err := p.orderBy(q.Orders)
	if err != nil {
		return Compiled{}, fmt.Errorf("compile order: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(p.from())
	if where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}
	sb.WriteString(" ORDER BY ")
	sb.WriteString(orderBy)

	switch {
	case q.Limit >= 0:
		sb.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	case q.Offset > 0:
		// SQLite requires a LIMIT before OFFSET; -1 is unbounded.
		sb.WriteString(" LIMIT -1")
	}
	if q.Offset > 0 {
		sb.WriteString(" OFFSET ?")
		args = append(args, q.Offset)
	}

	return Compiled{SQL: sb.String(), Args: args, Fields: fields}, nil
}

// Count compiles a COUNT(*) over typeName restricted by filter.
func (c *Compiler) Count(typeName string, filter restrict.Predicate) (Compiled, error) {
	root, err := c.rootType(typeName)
	if err != nil {
		return Compiled{}, err
	}
	p := newPlanner(c.catalog, root)

	var where string
	var args []any
	if filter != nil {
		where, args, err = p.predicate(filter)
		if err != nil {
			return Compiled{}, fmt.Errorf("compile filter: %w", err)
		}
	}

	sql := "SELECT COUNT(*) FROM " + p.from()
	if where != "" {
		sql += " WHERE " + where
	}
	return Compiled{SQL: sql, Args: args}, nil
}

func (c *Compiler) rootType(name string) (*ir.TypeSpec, error) {
	spec, ok := c.catalog.Type(name)
	if !ok {
		return nil, fmt.Errorf("unknown type %q", name)
	}
	return spec, nil
}

// projection resolves the selected field names, id first.
func projection(root *ir.TypeSpec, requested []string) ([]string, error) {
	if len(requested) == 0 {
		names := make([]string, len(root.Fields))
		for i, f := range root.Fields {
			names[i] = f.Name
		}
		return names, nil
	}

	names := []string{root.IDField}
	seen := map[string]bool{root.IDField: true}
	for _, name := range requested {
		if seen[name] {
			continue
		}
		if _, ok := root.Field(name); !ok {
			return nil, &ir.PathResolutionError{Type: root.Name, Path: name, Segment: name}
		}
		seen[name] = true
		names = append(names, name)
	}
	return names, nil
}

// quoteIdent quotes a SQL identifier.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
