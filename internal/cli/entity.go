package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/warden/internal/compiler"
	"github.com/roach88/warden/internal/engine"
	"github.com/roach88/warden/internal/ir"
	"github.com/roach88/warden/internal/record"
)

// EntityOptions holds flags shared by the create, update, delete and get
// commands.
type EntityOptions struct {
	*RootOptions
	Type  string
	ID    int64
	Set   []string // k=v pairs
	Unset []string // fields set to null
}

// RecordView is the output form of a stored entity.
type RecordView struct {
	Type   string         `json:"type"`
	ID     int64          `json:"id"`
	Values map[string]any `json:"values"`
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EntityOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "create --type <Type> [--set field=value]...",
		Short: "Create an entity, enforcing its constraints and rules",
		Long: `Create an entity of a catalog type.

Field constraints are validated first, then pre rules run; the row is
inserted and post rules run. Fields not given are stored as null.

Example:
  warden create --type Product --set code=P-1 --set name=Hammer --set price=12.5`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(cmd, opts, ir.ModeCreate)
		},
	}
	bindEntityFlags(cmd, opts, false, true)
	return cmd
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EntityOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "update --type <Type> --id <id> [--set field=value]... [--unset field]...",
		Short: "Update an entity, enforcing its constraints and rules",
		Long: `Load an entity, overlay the given values and write it back.

Example:
  warden update --type Product --id 1 --set name=Mallet --unset categoryId`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(cmd, opts, ir.ModeUpdate)
		},
	}
	bindEntityFlags(cmd, opts, true, true)
	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EntityOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "delete --type <Type> --id <id>",
		Short: "Delete an entity, enforcing its delete rules",
		Long: `Delete an entity. Delete rules are evaluated against the stored row.

Example:
  warden delete --type Category --id 1`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(cmd, opts, ir.ModeDelete)
		},
	}
	bindEntityFlags(cmd, opts, true, false)
	return cmd
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EntityOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:           "get --type <Type> --id <id>",
		Short:         "Show one entity by id",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, opts)
		},
	}
	bindEntityFlags(cmd, opts, true, false)
	return cmd
}

func bindEntityFlags(cmd *cobra.Command, opts *EntityOptions, withID, withValues bool) {
	cmd.Flags().StringVarP(&opts.Type, "type", "t", "", "entity type name (required)")
	_ = cmd.MarkFlagRequired("type")
	if withID {
		cmd.Flags().Int64Var(&opts.ID, "id", 0, "entity id (required)")
		_ = cmd.MarkFlagRequired("id")
	}
	if withValues {
		cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "field value as name=value (repeatable)")
		cmd.Flags().StringArrayVar(&opts.Unset, "unset", nil, "field to set to null (repeatable)")
	}
}

func runWrite(cmd *cobra.Command, opts *EntityOptions, mode ir.Mode) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	action := opts.Type + "." + string(mode)

	values, err := parseAssignments(opts.Set, opts.Unset)
	if err != nil {
		return usageError(formatter, err)
	}

	ctx := cmd.Context()
	eng, err := openEngine(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer eng.Close()

	var rec *record.Record
	switch mode {
	case ir.ModeCreate:
		rec, err = eng.Create(ctx, opts.Type, values)
	case ir.ModeUpdate:
		rec, err = eng.Update(ctx, opts.Type, opts.ID, values)
	case ir.ModeDelete:
		err = eng.Delete(ctx, opts.Type, opts.ID)
	}
	if err != nil {
		return formatter.Rejection(action, engine.Describe(err))
	}

	if mode == ir.ModeDelete {
		if formatter.Format == "json" {
			return formatter.Success(map[string]any{"type": opts.Type, "id": opts.ID, "deleted": true})
		}
		fmt.Fprintf(formatter.Writer, "✓ %s id=%d\n", action, opts.ID)
		return nil
	}
	return outputRecord(formatter, eng, action, rec)
}

func runGet(cmd *cobra.Command, opts *EntityOptions) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	ctx := cmd.Context()
	eng, err := openEngine(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer eng.Close()

	rec, err := eng.Get(ctx, opts.Type, opts.ID)
	if err != nil {
		return formatter.Rejection(opts.Type+".get", engine.Describe(err))
	}
	return outputRecord(formatter, eng, opts.Type, rec)
}

// openEngine loads the configured specs and opens the configured database.
func openEngine(ctx context.Context, opts *RootOptions) (*engine.Engine, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := opts.Settings()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	logger := opts.Logger()

	logger.Debug("loading specs", "dir", cfg.Specs)
	catalog, err := compiler.LoadCatalog(cfg.Specs)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load specs", err)
	}

	logger.Debug("opening database", "path", cfg.Database, "post_phase", cfg.PostPhase)
	eng, err := engine.Open(ctx, cfg.Database, catalog,
		engine.WithPostPhase(cfg.Policy()),
		engine.WithLogger(logger),
	)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return eng, nil
}

// parseAssignments turns name=value flags into a value map. Values stay
// strings and are converted to the field type by the record layer.
func parseAssignments(set, unset []string) (map[string]any, error) {
	values := make(map[string]any, len(set)+len(unset))
	for _, kv := range set {
		name, value, ok := strings.Cut(kv, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --set %q: expected name=value", kv)
		}
		values[name] = value
	}
	for _, name := range unset {
		name = strings.TrimSpace(name)
		if _, dup := values[name]; dup {
			return nil, fmt.Errorf("field %q is both set and unset", name)
		}
		values[name] = nil
	}
	return values, nil
}

func usageError(formatter *OutputFormatter, err error) error {
	_ = formatter.Error("E_USAGE", err.Error(), nil)
	return WrapExitError(ExitCommandError, "invalid arguments", err)
}

func viewOf(eng *engine.Engine, rec *record.Record) RecordView {
	view := RecordView{Type: rec.Type, Values: rec.Values}
	if spec, ok := eng.Catalog().Type(rec.Type); ok {
		view.ID, _ = rec.ID(spec)
	}
	return view
}

func outputRecord(formatter *OutputFormatter, eng *engine.Engine, action string, rec *record.Record) error {
	view := viewOf(eng, rec)
	if formatter.Format == "json" {
		return formatter.Success(view)
	}
	fmt.Fprintf(formatter.Writer, "✓ %s id=%d\n", action, view.ID)
	printValues(formatter, view.Values, "  ")
	return nil
}

func printValues(formatter *OutputFormatter, values map[string]any, indent string) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		v := values[name]
		if v == nil {
			v = "null"
		}
		fmt.Fprintf(formatter.Writer, "%s%s: %v\n", indent, name, v)
	}
}
