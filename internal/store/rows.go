package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/warden/internal/ir"
)

// Row is one stored entity keyed by field name.
type Row map[string]any

// Insert writes row into the table of spec and returns the new id.
// A nil or absent id lets SQLite assign one.
func Insert(ctx context.Context, s Session, spec *ir.TypeSpec, row Row) (int64, error) {
	if err := checkKeys(spec, row); err != nil {
		return 0, err
	}

	var cols, marks []string
	var args []any
	for _, f := range spec.Fields {
		v, ok := row[f.Name]
		if !ok || (f.Name == spec.IDField && v == nil) {
			continue
		}
		cols = append(cols, quoteIdent(f.Column))
		marks = append(marks, "?")
		args = append(args, v)
	}

	var query string
	if len(cols) == 0 {
		query = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", quoteIdent(spec.Table))
	} else {
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			quoteIdent(spec.Table), strings.Join(cols, ", "), strings.Join(marks, ", "))
	}

	res, err := s.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", spec.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert %s: last insert id: %w", spec.Name, err)
	}
	return id, nil
}

// Update overwrites the non-id fields present in row for the entity with
// the given id and returns the number of rows affected.
func Update(ctx context.Context, s Session, spec *ir.TypeSpec, id any, row Row) (int64, error) {
	if err := checkKeys(spec, row); err != nil {
		return 0, err
	}

	var sets []string
	var args []any
	for _, f := range spec.Fields {
		v, ok := row[f.Name]
		if !ok || f.Name == spec.IDField {
			continue
		}
		sets = append(sets, quoteIdent(f.Column)+" = ?")
		args = append(args, v)
	}
	if len(sets) == 0 {
		return 0, fmt.Errorf("update %s: no fields to write", spec.Name)
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		quoteIdent(spec.Table), strings.Join(sets, ", "), quoteIdent(spec.IDColumn()))
	res, err := s.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", spec.Name, err)
	}
	return res.RowsAffected()
}

// Delete removes the entity with the given id and returns the number of
// rows affected.
func Delete(ctx context.Context, s Session, spec *ir.TypeSpec, id any) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", quoteIdent(spec.Table), quoteIdent(spec.IDColumn()))
	res, err := s.ExecContext(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", spec.Name, err)
	}
	return res.RowsAffected()
}

// Get loads every field of the entity with the given id.
// The boolean is false when no row matches.
func Get(ctx context.Context, s Session, spec *ir.TypeSpec, id any) (Row, bool, error) {
	fields := make([]string, len(spec.Fields))
	cols := make([]string, len(spec.Fields))
	for i, f := range spec.Fields {
		fields[i] = f.Name
		cols[i] = quoteIdent(f.Column) + " AS " + quoteIdent(f.Name)
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?",
		strings.Join(cols, ", "), quoteIdent(spec.Table), quoteIdent(spec.IDColumn()))

	rows, err := QueryRows(ctx, s, spec, query, []any{id}, fields)
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0], true, nil
}

// QueryRows runs query and scans each result row into a Row keyed by
// fields, in column order.
func QueryRows(ctx context.Context, s Session, spec *ir.TypeSpec, query string, args []any, fields []string) ([]Row, error) {
	rows, err := s.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", spec.Name, err)
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		values := make([]any, len(fields))
		ptrs := make([]any, len(fields))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", spec.Name, err)
		}

		row := make(Row, len(fields))
		for i, name := range fields {
			row[name] = normalize(spec, name, values[i])
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", spec.Name, err)
	}
	return result, nil
}

// Count runs a query returning a single integer.
func Count(ctx context.Context, s Session, query string, args ...any) (int64, error) {
	var n sql.NullInt64
	if err := s.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("count: %w", err)
	}
	return n.Int64, nil
}

func checkKeys(spec *ir.TypeSpec, row Row) error {
	for name := range row {
		if _, ok := spec.Field(name); !ok {
			return fmt.Errorf("%s has no field %q", spec.Name, name)
		}
	}
	return nil
}

// normalize converts driver values onto the field's Go representation.
func normalize(spec *ir.TypeSpec, name string, v any) any {
	f, ok := spec.Field(name)
	if !ok {
		return v
	}
	switch f.Type {
	case ir.FieldText:
		if b, ok := v.([]byte); ok {
			return string(b)
		}
	case ir.FieldBool:
		if n, ok := v.(int64); ok {
			return n != 0
		}
	}
	return v
}
