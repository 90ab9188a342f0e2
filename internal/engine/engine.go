package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/warden/internal/ir"
	"github.com/roach88/warden/internal/record"
	"github.com/roach88/warden/internal/repository"
	"github.com/roach88/warden/internal/restrict"
	"github.com/roach88/warden/internal/rules"
	"github.com/roach88/warden/internal/store"
	"github.com/roach88/warden/internal/validate"
)

// Repo is the repository type the engine builds for each catalog type.
type Repo = repository.Repository[*record.Record]

// Engine serves create, update, delete and query calls for every type of
// a catalog. It is safe for concurrent use.
type Engine struct {
	store   *store.Store
	catalog *ir.Catalog
	repos   map[string]*Repo
	owned   bool
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	repo   []repository.Option
	rules  []rules.Option
	logger *slog.Logger
}

// WithPostPhase sets the post-phase policy of every repository.
func WithPostPhase(p repository.PostPhasePolicy) Option {
	return func(o *options) {
		o.repo = append(o.repo, repository.WithPostPhase(p))
	}
}

// WithIDGenerator sets the call id source of every repository.
func WithIDGenerator(g repository.IDGenerator) Option {
	return func(o *options) {
		o.repo = append(o.repo, repository.WithIDGenerator(g))
	}
}

// WithRule registers a custom rule kind.
func WithRule(kind string, fn rules.RuleFunc) Option {
	return func(o *options) {
		o.rules = append(o.rules, rules.WithRule(kind, fn))
	}
}

// WithLogger sets the logger for the registry and repositories.
// Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// New builds an Engine over an open store. The store's schema must
// already match the catalog; see Open.
func New(st *store.Store, catalog *ir.Catalog, opts ...Option) (*Engine, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	validator := validate.New(catalog)
	registry, err := rules.NewRegistry(catalog, validator, append(o.rules, rules.WithLogger(o.logger))...)
	if err != nil {
		return nil, err
	}

	deps := repository.Deps{Store: st, Catalog: catalog, Rules: registry, Validator: validator}
	repoOpts := append(o.repo, repository.WithLogger(o.logger))

	e := &Engine{store: st, catalog: catalog, repos: make(map[string]*Repo)}
	for _, name := range catalog.Names() {
		spec, _ := catalog.Type(name)
		repo, err := repository.New[*record.Record](deps, name, record.NewMapper(spec), repoOpts...)
		if err != nil {
			return nil, err
		}
		e.repos[name] = repo
	}
	return e, nil
}

// Open opens the database at path, creates or extends the tables for
// catalog, and builds an Engine that closes the store on Close.
func Open(ctx context.Context, path string, catalog *ir.Catalog, opts ...Option) (*Engine, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	if err := st.EnsureSchema(ctx, catalog); err != nil {
		st.Close()
		return nil, err
	}
	e, err := New(st, catalog, opts...)
	if err != nil {
		st.Close()
		return nil, err
	}
	e.owned = true
	return e, nil
}

// Close releases the store when the Engine opened it.
func (e *Engine) Close() error {
	if e.owned {
		return e.store.Close()
	}
	return nil
}

// Catalog returns the catalog the engine serves.
func (e *Engine) Catalog() *ir.Catalog {
	return e.catalog
}

// Store returns the underlying store.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Repository returns the repository of typeName.
func (e *Engine) Repository(typeName string) (*Repo, error) {
	repo, ok := e.repos[typeName]
	if !ok {
		return nil, &ir.ConfigurationError{Type: typeName, Message: "type not in catalog"}
	}
	return repo, nil
}

// Create coerces values and inserts a new entity of typeName. Declared
// fields missing from values are nil.
func (e *Engine) Create(ctx context.Context, typeName string, values map[string]any) (*record.Record, error) {
	repo, err := e.Repository(typeName)
	if err != nil {
		return nil, err
	}
	spec := repo.Type()
	rec, err := record.FromValues(spec, values)
	if err != nil {
		return nil, err
	}
	for _, f := range spec.Fields {
		if _, ok := rec.Values[f.Name]; !ok && f.Name != spec.IDField {
			rec.Values[f.Name] = nil
		}
	}
	return repo.Create(ctx, rec)
}

// Update loads the entity with id, overlays values and writes it back.
// Returns repository.ErrNotFound when no row has the id.
func (e *Engine) Update(ctx context.Context, typeName string, id int64, values map[string]any) (*record.Record, error) {
	repo, err := e.Repository(typeName)
	if err != nil {
		return nil, err
	}
	changes, err := record.FromValues(repo.Type(), values)
	if err != nil {
		return nil, err
	}
	current, err := repo.FindByPrimaryKey(ctx, "", id, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range changes.Values {
		current.Set(k, v)
	}
	return repo.Update(ctx, id, current)
}

// Delete removes the entity with id.
func (e *Engine) Delete(ctx context.Context, typeName string, id int64) error {
	repo, err := e.Repository(typeName)
	if err != nil {
		return err
	}
	return repo.Delete(ctx, id)
}

// Get loads the entity with id.
func (e *Engine) Get(ctx context.Context, typeName string, id int64) (*record.Record, error) {
	repo, err := e.Repository(typeName)
	if err != nil {
		return nil, err
	}
	return repo.FindByPrimaryKey(ctx, "", id, nil)
}

// Query selects entities for Filter. A negative Max is unbounded, and so is
// zero, the unset value.
type Query struct {
	Restrictions *restrict.Restrictions
	Orders       *restrict.Orders
	Fields       []string
	First        int
	Max          int
}

// Filter runs q against typeName.
func (e *Engine) Filter(ctx context.Context, typeName string, q Query) ([]*record.Record, error) {
	repo, err := e.Repository(typeName)
	if err != nil {
		return nil, err
	}
	limit := q.Max
	if limit <= 0 {
		limit = -1
	}
	return repo.Filter(ctx, q.Restrictions, q.Orders, q.Fields, q.First, limit)
}

// Count returns the number of typeName entities matching restrictions.
func (e *Engine) Count(ctx context.Context, typeName string, restrictions *restrict.Restrictions) (int64, error) {
	repo, err := e.Repository(typeName)
	if err != nil {
		return 0, err
	}
	return repo.Count(ctx, restrictions)
}

// Rows returns every row of typeName ordered by id.
func (e *Engine) Rows(ctx context.Context, typeName string) ([]*record.Record, error) {
	recs, err := e.Filter(ctx, typeName, Query{})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", typeName, err)
	}
	return recs, nil
}
