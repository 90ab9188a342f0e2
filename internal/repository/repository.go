package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/warden/internal/ir"
	"github.com/roach88/warden/internal/querysql"
	"github.com/roach88/warden/internal/rules"
	"github.com/roach88/warden/internal/store"
	"github.com/roach88/warden/internal/validate"
)

// Mapper converts entities of type T to and from store rows.
type Mapper[T any] interface {
	ToRow(entity T) (store.Row, error)
	FromRow(row store.Row) (T, error)

	// WithID returns entity with its identity set to id.
	WithID(entity T, id int64) T
}

// Deps are the collaborators shared by every repository of a catalog.
type Deps struct {
	Store     *store.Store
	Catalog   *ir.Catalog
	Rules     *rules.Registry
	Validator *validate.Validator
}

// Repository validates and persists entities of one catalog type.
// It is safe for concurrent use; each call runs in its own transaction.
type Repository[T any] struct {
	spec      *ir.TypeSpec
	store     *store.Store
	rules     *rules.Registry
	validator *validate.Validator
	compiler  *querysql.Compiler
	mapper    Mapper[T]
	opts      options
}

// New creates a Repository for typeName.
func New[T any](deps Deps, typeName string, mapper Mapper[T], opts ...Option) (*Repository[T], error) {
	if deps.Store == nil || deps.Catalog == nil || deps.Rules == nil {
		return nil, errors.New("repository: store, catalog and rules are required")
	}
	spec, ok := deps.Catalog.Type(typeName)
	if !ok {
		return nil, &ir.ConfigurationError{Type: typeName, Message: "type not in catalog"}
	}

	o := options{policy: PostRollback, ids: UUIDv7Generator{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.policy != PostRollback && o.policy != PostAdvisory {
		return nil, fmt.Errorf("repository: invalid post phase policy %q", o.policy)
	}

	v := deps.Validator
	if v == nil {
		v = validate.New(deps.Catalog)
	}

	return &Repository[T]{
		spec:      spec,
		store:     deps.Store,
		rules:     deps.Rules,
		validator: v,
		compiler:  querysql.NewCompiler(deps.Catalog),
		mapper:    mapper,
		opts:      o,
	}, nil
}

// Type returns the managed type.
func (r *Repository[T]) Type() *ir.TypeSpec {
	return r.spec
}

// Create validates and inserts entity with every stage enabled.
func (r *Repository[T]) Create(ctx context.Context, entity T) (T, error) {
	return r.CreateWith(ctx, entity, DefaultFlags())
}

// CreateWith validates and inserts entity. The returned entity carries the
// generated id. On a pre-phase failure nothing is written and the zero T
// is returned.
func (r *Repository[T]) CreateWith(ctx context.Context, entity T, flags Flags) (T, error) {
	var zero T
	call := r.begin(ir.ModeCreate)

	if flags.ValidateIntegrity {
		if err := r.validator.ValidateType(r.spec, entity); err != nil {
			call.fail("integrity", err)
			return zero, err
		}
	}

	var id int64
	err := r.write(ctx, call, flags, entity, func(tx *sql.Tx) (any, int64, error) {
		row, err := r.mapper.ToRow(entity)
		if err != nil {
			return nil, 0, fmt.Errorf("map %s: %w", r.spec.Name, err)
		}
		id, err = store.Insert(ctx, tx, r.spec, row)
		if err != nil {
			return nil, 0, err
		}
		entity = r.mapper.WithID(entity, id)
		return entity, id, nil
	})
	if err != nil {
		if IsCommitted(err) {
			return entity, err
		}
		return zero, err
	}

	call.done("entity created", id)
	return entity, nil
}

// Update validates and overwrites the entity with the given id, with every
// stage enabled.
func (r *Repository[T]) Update(ctx context.Context, id int64, entity T) (T, error) {
	return r.UpdateWith(ctx, id, entity, DefaultFlags())
}

// UpdateWith validates and overwrites the entity with the given id. The id
// is set on entity before any rule runs, so rules may exclude the entity
// itself (e.g. "code = ${code} AND id <> ${id}"). Returns ErrNotFound when
// no row has the id.
func (r *Repository[T]) UpdateWith(ctx context.Context, id int64, entity T, flags Flags) (T, error) {
	var zero T
	call := r.begin(ir.ModeUpdate)
	entity = r.mapper.WithID(entity, id)

	if flags.ValidateIntegrity {
		if err := r.validator.ValidateType(r.spec, entity); err != nil {
			call.fail("integrity", err)
			return zero, err
		}
	}

	err := r.write(ctx, call, flags, entity, func(tx *sql.Tx) (any, int64, error) {
		row, err := r.mapper.ToRow(entity)
		if err != nil {
			return nil, 0, fmt.Errorf("map %s: %w", r.spec.Name, err)
		}
		n, err := store.Update(ctx, tx, r.spec, id, row)
		if err != nil {
			return nil, 0, err
		}
		if n == 0 {
			return nil, 0, fmt.Errorf("update %s %d: %w", r.spec.Name, id, ErrNotFound)
		}
		return entity, id, nil
	})
	if err != nil {
		if IsCommitted(err) {
			return entity, err
		}
		return zero, err
	}

	call.done("entity updated", id)
	return entity, nil
}

// Delete removes the entity with the given id, with every stage enabled.
func (r *Repository[T]) Delete(ctx context.Context, id int64) error {
	return r.DeleteWith(ctx, id, DefaultFlags())
}

// DeleteWith removes the entity with the given id. Delete rules bind
// against the stored row, loaded inside the transaction. ValidateIntegrity
// is ignored. Returns ErrNotFound when no row has the id.
func (r *Repository[T]) DeleteWith(ctx context.Context, id int64, flags Flags) error {
	call := r.begin(ir.ModeDelete)

	tx, err := r.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	row, ok, err := store.Get(ctx, tx, r.spec, id)
	if err != nil {
		return err
	}
	if !ok {
		err := fmt.Errorf("delete %s %d: %w", r.spec.Name, id, ErrNotFound)
		call.fail("load", err)
		return err
	}
	entity, err := r.mapper.FromRow(row)
	if err != nil {
		return fmt.Errorf("map %s: %w", r.spec.Name, err)
	}

	if flags.PreValidate {
		if err := r.dispatch(ctx, call, ir.PhasePre, tx, entity); err != nil {
			return err
		}
	}
	if _, err := store.Delete(ctx, tx, r.spec, id); err != nil {
		return err
	}

	if err := r.finish(ctx, call, flags, tx, &committed, entity, id); err != nil {
		return err
	}
	call.done("entity deleted", id)
	return nil
}

// write runs pre rules, the write itself, post rules, and the commit.
// apply returns the instance post rules bind against and its id.
func (r *Repository[T]) write(ctx context.Context, call *callLog, flags Flags, entity T, apply func(*sql.Tx) (any, int64, error)) error {
	tx, err := r.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if flags.PreValidate {
		if err := r.dispatch(ctx, call, ir.PhasePre, tx, entity); err != nil {
			return err
		}
	}

	written, id, err := apply(tx)
	if err != nil {
		call.fail("write", err)
		return err
	}

	return r.finish(ctx, call, flags, tx, &committed, written, id)
}

// finish applies the post-phase policy and commits.
func (r *Repository[T]) finish(ctx context.Context, call *callLog, flags Flags, tx *sql.Tx, committed *bool, instance any, id int64) error {
	if !flags.PostValidate || r.opts.policy == PostRollback {
		if flags.PostValidate {
			if err := r.dispatch(ctx, call, ir.PhasePost, tx, instance); err != nil {
				return err
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		*committed = true
		return nil
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	*committed = true

	if err := r.dispatch(ctx, call, ir.PhasePost, r.store.DB(), instance); err != nil {
		return &CommittedError{Entity: r.spec.Name, Mode: call.mode, ID: id, Err: err}
	}
	return nil
}

func (r *Repository[T]) dispatch(ctx context.Context, call *callLog, phase ir.Phase, session store.Session, instance any) error {
	ran, err := r.rules.Run(ctx, rules.Dispatch{
		Type:    r.spec.Name,
		Mode:    call.mode,
		Phase:   phase,
		Session: session,
		CallID:  call.id,
	}, instance)
	call.ran = append(call.ran, ran...)
	if err != nil {
		call.fail(string(phase), err)
	}
	return err
}
