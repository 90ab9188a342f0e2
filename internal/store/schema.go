package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/warden/internal/ir"
)

var columnTypes = map[ir.FieldType]string{
	ir.FieldText:  "TEXT",
	ir.FieldInt:   "INTEGER",
	ir.FieldReal:  "REAL",
	ir.FieldBool:  "BOOLEAN",
	ir.FieldTime:  "TIMESTAMP",
	ir.FieldBytes: "BLOB",
}

// EnsureSchema creates a table for every catalog type and adds columns for
// fields declared after the table was first created. Existing columns are
// never altered or dropped.
//
// This function is idempotent.
func (s *Store) EnsureSchema(ctx context.Context, catalog *ir.Catalog) error {
	for _, spec := range catalog.Types() {
		if _, err := s.db.ExecContext(ctx, createTableSQL(&spec)); err != nil {
			return fmt.Errorf("create table %q: %w", spec.Table, err)
		}
		if err := s.addMissingColumns(ctx, &spec); err != nil {
			return err
		}
	}
	return nil
}

func createTableSQL(spec *ir.TypeSpec) string {
	defs := make([]string, 0, len(spec.Fields))
	for _, f := range spec.Fields {
		defs = append(defs, columnDef(spec, f))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)",
		quoteIdent(spec.Table), strings.Join(defs, ",\n\t"))
}

func columnDef(spec *ir.TypeSpec, f ir.FieldSpec) string {
	if f.Name == spec.IDField {
		return quoteIdent(f.Column) + " INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	return quoteIdent(f.Column) + " " + columnTypes[f.Type]
}

func (s *Store) addMissingColumns(ctx context.Context, spec *ir.TypeSpec) error {
	existing, err := s.columns(ctx, spec.Table)
	if err != nil {
		return err
	}
	for _, f := range spec.Fields {
		if existing[f.Column] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
			quoteIdent(spec.Table), quoteIdent(f.Column), columnTypes[f.Type])
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("add column %s.%s: %w", spec.Table, f.Column, err)
		}
	}
	return nil
}

func (s *Store) columns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, fmt.Errorf("inspect table %q: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column name: %w", err)
		}
		cols[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return cols, nil
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
