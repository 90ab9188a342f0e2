package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/warden/internal/engine"
	"github.com/roach88/warden/internal/ir"
	"github.com/roach88/warden/internal/record"
	"github.com/roach88/warden/internal/restrict"
)

// FilterOptions holds flags for the filter command.
type FilterOptions struct {
	*RootOptions
	Type   string
	Where  []string // path=op:value
	Order  []string // path[:asc|desc]
	Fields []string
	First  int
	Max    int
	Count  bool
}

// FilterResult is the JSON payload of the filter command.
type FilterResult struct {
	Type  string       `json:"type"`
	Count int64        `json:"count"`
	Rows  []RecordView `json:"rows,omitempty"`
}

// whereOps lists the operators accepted in --where, in help order.
var whereOps = []string{"eq", "ne", "lt", "le", "gt", "ge", "like", "notlike", "ilike", "null", "notnull", "true", "false"}

// NewFilterCommand creates the filter command.
func NewFilterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FilterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "filter --type <Type> [--where path=op:value]... [--order path:dir]...",
		Short: "Query entities with restrictions, ordering and pagination",
		Long: `Query entities of a catalog type.

Conditions are ANDed. A path may cross relations, e.g. category.name.
Operators: ` + strings.Join(whereOps, ", ") + `. Without an operator
the condition is an equality. null, notnull, true and false take no value.

Examples:
  warden filter --type Product --where price=gt:10 --order name
  warden filter --type Product --where category.name=Tools --fields code,name
  warden filter --type Product --where categoryId=null: --count`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFilter(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Type, "type", "t", "", "entity type name (required)")
	_ = cmd.MarkFlagRequired("type")
	cmd.Flags().StringArrayVar(&opts.Where, "where", nil, "condition as path=op:value (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Order, "order", nil, "sort key as path[:asc|desc] (repeatable)")
	cmd.Flags().StringSliceVar(&opts.Fields, "fields", nil, "fields to load (default all)")
	cmd.Flags().IntVar(&opts.First, "first", 0, "offset of the first row")
	cmd.Flags().IntVar(&opts.Max, "max", 0, "maximum rows (0 or negative for all)")
	cmd.Flags().BoolVar(&opts.Count, "count", false, "print only the number of matching rows")

	return cmd
}

func runFilter(cmd *cobra.Command, opts *FilterOptions) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if opts.First < 0 {
		return usageError(formatter, fmt.Errorf("--first must be non-negative"))
	}

	ctx := cmd.Context()
	eng, err := openEngine(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer eng.Close()

	spec, ok := eng.Catalog().Type(opts.Type)
	if !ok {
		return usageError(formatter, fmt.Errorf("unknown type %q", opts.Type))
	}
	restrictions, err := parseWhere(eng.Catalog(), spec, opts.Where)
	if err != nil {
		return usageError(formatter, err)
	}
	orders, err := parseOrders(opts.Order)
	if err != nil {
		return usageError(formatter, err)
	}

	count, err := eng.Count(ctx, opts.Type, restrictions)
	if err != nil {
		return formatter.Rejection(opts.Type+".filter", engine.Describe(err))
	}
	result := FilterResult{Type: opts.Type, Count: count}

	if !opts.Count {
		recs, err := eng.Filter(ctx, opts.Type, engine.Query{
			Restrictions: restrictions,
			Orders:       orders,
			Fields:       opts.Fields,
			First:        opts.First,
			Max:          opts.Max,
		})
		if err != nil {
			return formatter.Rejection(opts.Type+".filter", engine.Describe(err))
		}
		for _, rec := range recs {
			result.Rows = append(result.Rows, viewOf(eng, rec))
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	if opts.Count {
		fmt.Fprintln(formatter.Writer, count)
		return nil
	}
	fmt.Fprintf(formatter.Writer, "%d of %d %s row(s)\n", len(result.Rows), count, opts.Type)
	for _, row := range result.Rows {
		fmt.Fprintf(formatter.Writer, "- id=%d\n", row.ID)
		printValues(formatter, row.Values, "    ")
	}
	return nil
}

// parseWhere builds restrictions from path=op:value conditions. Values are
// converted to the type of the field the path ends at.
func parseWhere(catalog *ir.Catalog, root *ir.TypeSpec, conds []string) (*restrict.Restrictions, error) {
	r := restrict.NewRestrictions()
	for _, cond := range conds {
		path, rest, ok := strings.Cut(cond, "=")
		path = strings.TrimSpace(path)
		if !ok || path == "" {
			return nil, fmt.Errorf("invalid --where %q: expected path=op:value", cond)
		}
		op, raw := "eq", rest
		if prefix, value, found := strings.Cut(rest, ":"); found && slices.Contains(whereOps, prefix) {
			op, raw = prefix, value
		}

		switch op {
		case "null":
			r.AddIsNull(path)
			continue
		case "notnull":
			r.AddIsNotNull(path)
			continue
		case "true":
			r.AddIsTrue(path)
			continue
		case "false":
			r.AddIsFalse(path)
			continue
		case "like":
			r.AddLike(path, raw)
			continue
		case "notlike":
			r.AddNotLike(path, raw)
			continue
		case "ilike":
			r.AddLikeIgnoreCase(path, raw)
			continue
		}

		var value any = raw
		if f, ok := fieldAt(catalog, root, path); ok {
			v, err := record.Coerce(f.Type, raw)
			if err != nil {
				return nil, fmt.Errorf("--where %s: %w", path, err)
			}
			value = v
		}
		switch op {
		case "eq":
			r.AddEq(path, value)
		case "ne":
			r.AddNotEq(path, value)
		case "lt":
			r.AddLt(path, value)
		case "le":
			r.AddLe(path, value)
		case "gt":
			r.AddGt(path, value)
		case "ge":
			r.AddGe(path, value)
		}
	}
	return r, nil
}

// fieldAt follows relations along a dotted path and returns the final field.
func fieldAt(catalog *ir.Catalog, root *ir.TypeSpec, path string) (*ir.FieldSpec, bool) {
	spec := root
	segments := strings.Split(path, ".")
	for _, seg := range segments[:len(segments)-1] {
		rel, ok := spec.Relation(seg)
		if !ok {
			return nil, false
		}
		if spec, ok = catalog.Type(rel.Target); !ok {
			return nil, false
		}
	}
	return spec.Field(segments[len(segments)-1])
}

// parseOrders builds orders from path[:asc|desc] keys.
func parseOrders(keys []string) (*restrict.Orders, error) {
	orders := restrict.NewOrders()
	for _, key := range keys {
		path, dir, _ := strings.Cut(key, ":")
		path = strings.TrimSpace(path)
		if path == "" {
			return nil, fmt.Errorf("invalid --order %q: expected path[:asc|desc]", key)
		}
		d, err := restrict.ParseDirection(dir)
		if err != nil {
			return nil, fmt.Errorf("--order %s: %w", path, err)
		}
		orders.Add(path, d)
	}
	return orders, nil
}
