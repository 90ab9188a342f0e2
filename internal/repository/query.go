package repository

import (
	"context"
	"fmt"

	"github.com/roach88/warden/internal/querysql"
	"github.com/roach88/warden/internal/restrict"
	"github.com/roach88/warden/internal/store"
)

// Filter returns the entities matching every predicate in restrictions,
// sorted by orders, skipping first rows and returning at most max
// (max < 0 is unbounded). When projected is non-empty only those fields
// (plus the id) are loaded. Nil restrictions or orders mean none.
func (r *Repository[T]) Filter(ctx context.Context, restrictions *restrict.Restrictions, orders *restrict.Orders, projected []string, first, max int) ([]T, error) {
	q, err := r.compiler.Select(querysql.SelectQuery{
		Type:   r.spec.Name,
		Filter: restrictions.Predicate(),
		Orders: orders.Orders(),
		Fields: projected,
		Offset: first,
		Limit:  max,
	})
	if err != nil {
		return nil, err
	}

	rows, err := store.QueryRows(ctx, r.store.DB(), r.spec, q.SQL, q.Args, q.Fields)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(rows))
	for _, row := range rows {
		entity, err := r.mapper.FromRow(row)
		if err != nil {
			return nil, fmt.Errorf("map %s: %w", r.spec.Name, err)
		}
		out = append(out, entity)
	}
	return out, nil
}

// FindByPrimaryKey returns the first entity whose idField equals idValue.
// Returns ErrNotFound when none matches.
func (r *Repository[T]) FindByPrimaryKey(ctx context.Context, idField string, idValue any, projected []string) (T, error) {
	var zero T
	if idField == "" {
		idField = r.spec.IDField
	}

	found, err := r.Filter(ctx, restrict.NewRestrictions().Add(restrict.Eq(idField, idValue)), nil, projected, 0, 1)
	if err != nil {
		return zero, err
	}
	if len(found) == 0 {
		return zero, fmt.Errorf("%s %s=%v: %w", r.spec.Name, idField, idValue, ErrNotFound)
	}
	return found[0], nil
}

// Count returns the number of entities matching restrictions.
func (r *Repository[T]) Count(ctx context.Context, restrictions *restrict.Restrictions) (int64, error) {
	q, err := r.compiler.Count(r.spec.Name, restrictions.Predicate())
	if err != nil {
		return 0, err
	}
	return store.Count(ctx, r.store.DB(), q.SQL, q.Args...)
}
