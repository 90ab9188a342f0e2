package querysql

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/warden/internal/ir"
	"github.com/roach88/warden/internal/restrict"
)

type join struct {
	table string
	alias string
	on    string
}

// planner resolves property paths to aliased columns, adding one LEFT JOIN
// per distinct relation prefix.
type planner struct {
	catalog *ir.Catalog
	root    *ir.TypeSpec
	joins   []join
	aliases map[string]string // relation path prefix -> alias
}

func newPlanner(catalog *ir.Catalog, root *ir.TypeSpec) *planner {
	return &planner{
		catalog: catalog,
		root:    root,
		aliases: make(map[string]string),
	}
}

// from returns the FROM clause including joins planned so far.
func (p *planner) from() string {
	var sb strings.Builder
	sb.WriteString(quoteIdent(p.root.Table))
	sb.WriteString(" AS t0")
	for _, j := range p.joins {
		fmt.Fprintf(&sb, " LEFT JOIN %s AS %s ON %s", quoteIdent(j.table), j.alias, j.on)
	}
	return sb.String()
}

// column resolves a dotted path to "alias"."column".
//
// Every segment but the last must be a relation. The last segment may be a
// field or a relation; a relation resolves to its foreign key column.
func (p *planner) column(path string) (string, error) {
	if path == "" {
		return "", &ir.PathResolutionError{Type: p.root.Name, Path: path}
	}
	segments := strings.Split(path, ".")
	current := p.root
	alias := "t0"

	for i, seg := range segments {
		last := i == len(segments)-1
		if last {
			if f, ok := current.Field(seg); ok {
				return alias + "." + quoteIdent(f.Column), nil
			}
		}
		rel, ok := current.Relation(seg)
		if !ok {
			return "", &ir.PathResolutionError{Type: p.root.Name, Path: path, Segment: seg}
		}
		if last {
			return alias + "." + quoteIdent(rel.Column), nil
		}

		target, ok := p.catalog.Type(rel.Target)
		if !ok {
			return "", &ir.PathResolutionError{Type: p.root.Name, Path: path, Segment: seg}
		}
		prefix := strings.Join(segments[:i+1], ".")
		next, planned := p.aliases[prefix]
		if !planned {
			next = fmt.Sprintf("t%d", len(p.joins)+1)
			p.aliases[prefix] = next
			p.joins = append(p.joins, join{
				table: target.Table,
				alias: next,
				on:    fmt.Sprintf("%s.%s = %s.%s", alias, quoteIdent(rel.Column), next, quoteIdent(target.IDColumn())),
			})
		}
		current = target
		alias = next
	}

	// Unreachable: the loop returns on the last segment.
	return "", &ir.PathResolutionError{Type: p.root.Name, Path: path}
}

// predicate compiles a predicate to a WHERE fragment and its parameters.
// CRITICAL: Values NEVER interpolated - always ? placeholders.
func (p *planner) predicate(pred restrict.Predicate) (string, []any, error) {
	switch pr := pred.(type) {
	case nil:
		return "1 = 1", nil, nil
	case restrict.Comparison:
		return p.comparison(pr)
	case *restrict.Comparison:
		return p.comparison(*pr)
	case restrict.Like:
		return p.like(pr)
	case *restrict.Like:
		return p.like(*pr)
	case restrict.Null:
		return p.null(pr)
	case *restrict.Null:
		return p.null(*pr)
	case restrict.Truth:
		return p.truth(pr)
	case *restrict.Truth:
		return p.truth(*pr)
	case restrict.And:
		return p.junction(pr.Predicates, " AND ", "1 = 1")
	case *restrict.And:
		return p.junction(pr.Predicates, " AND ", "1 = 1")
	case restrict.Or:
		return p.junction(pr.Predicates, " OR ", "1 = 0")
	case *restrict.Or:
		return p.junction(pr.Predicates, " OR ", "1 = 0")
	case restrict.Not:
		return p.not(pr)
	case *restrict.Not:
		return p.not(*pr)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", pred)
	}
}

func (p *planner) comparison(c restrict.Comparison) (string, []any, error) {
	col, err := p.column(c.Path)
	if err != nil {
		return "", nil, err
	}
	switch c.Op {
	case restrict.OpEq, restrict.OpNotEq, restrict.OpGe, restrict.OpGt, restrict.OpLe, restrict.OpLt:
	default:
		return "", nil, fmt.Errorf("unsupported operator %q on %s", c.Op, c.Path)
	}
	return fmt.Sprintf("%s %s ?", col, c.Op), []any{c.Value}, nil
}

// like compiles a LIKE. The store enables case_sensitive_like, so the plain
// form compares raw text; FoldCase wraps both sides in the store's fold
// function.
func (p *planner) like(l restrict.Like) (string, []any, error) {
	col, err := p.column(l.Path)
	if err != nil {
		return "", nil, err
	}
	op := "LIKE"
	if l.Negate {
		op = "NOT LIKE"
	}
	if l.FoldCase {
		return fmt.Sprintf("fold(%s) %s fold(?)", col, op), []any{l.Pattern}, nil
	}
	return fmt.Sprintf("%s %s ?", col, op), []any{l.Pattern}, nil
}

func (p *planner) null(n restrict.Null) (string, []any, error) {
	col, err := p.column(n.Path)
	if err != nil {
		return "", nil, err
	}
	if n.Negate {
		return col + " IS NOT NULL", nil, nil
	}
	return col + " IS NULL", nil, nil
}

func (p *planner) truth(t restrict.Truth) (string, []any, error) {
	col, err := p.column(t.Path)
	if err != nil {
		return "", nil, err
	}
	if t.Want {
		return col + " = 1", nil, nil
	}
	return col + " = 0", nil, nil
}

func (p *planner) junction(preds []restrict.Predicate, sep, empty string) (string, []any, error) {
	if len(preds) == 0 {
		return empty, nil, nil
	}

	parts := make([]string, 0, len(preds))
	var args []any
	for _, sub := range preds {
		sql, subArgs, err := p.predicate(sub)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		args = append(args, subArgs...)
	}
	if len(parts) == 1 {
		return parts[0], args, nil
	}
	return "(" + strings.Join(parts, sep) + ")", args, nil
}

func (p *planner) not(n restrict.Not) (string, []any, error) {
	sql, args, err := p.predicate(n.Predicate)
	if err != nil {
		return "", nil, err
	}
	return "NOT (" + sql + ")", args, nil
}

// orderBy emits requested orders in lexical key order, then the root id.
func (p *planner) orderBy(orders map[string]restrict.Direction) (string, error) {
	paths := slices.Sorted(maps.Keys(orders))
	parts := make([]string, 0, len(paths)+1)
	idCol := "t0." + quoteIdent(p.root.IDColumn())
	idOrdered := false

	for _, path := range paths {
		col, err := p.column(path)
		if err != nil {
			return "", err
		}
		dir := "ASC"
		if orders[path] == restrict.Descending {
			dir = "DESC"
		}
		if col == idCol {
			idOrdered = true
		}
		parts = append(parts, col+" "+dir)
	}
	if !idOrdered {
		parts = append(parts, idCol+" ASC")
	}
	return strings.Join(parts, ", "), nil
}

