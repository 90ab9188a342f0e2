package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/warden/internal/compiler"
	"github.com/roach88/warden/internal/ir"
)

// ValidationIssue is one problem found in the specs.
type ValidationIssue struct {
	Code    string `json:"code"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Types  []string          `json:"types,omitempty"`
	Errors []ValidationIssue `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [specs-dir]",
		Short: "Validate type declarations without touching a database",
		Long: `Validate the CUE type declarations in a directory.

Checks syntax, field types, constraint bounds, rule kinds, modes, phases,
expression templates, message parameters and cross-type relations. All
problems are reported, not only the first. The directory defaults to the
specs entry of warden.yaml.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := specsDirArg(rootOpts, args)
			if err != nil {
				return err
			}
			return runValidate(rootOpts, dir, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	loaded, err := loadSpecs(specsDir, compiler.LoadModeCollectAll)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loaded.FileCount, specsDir)
	for _, name := range loaded.TypeNames() {
		formatter.VerboseLog("Validated type: %s", name)
	}

	if len(loaded.Issues) > 0 {
		return outputValidationIssues(formatter, loaded.Issues)
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Types: loaded.TypeNames()})
	}
	fmt.Fprintf(formatter.Writer, "✓ All specs valid (%d types)\n", len(loaded.Types))
	return nil
}

// loadedSpecs is a load result with every problem flattened to an issue.
type loadedSpecs struct {
	*compiler.LoadResult
	Catalog *ir.Catalog
	Issues  []ValidationIssue
}

// TypeNames lists the types that compiled and validated.
func (l *loadedSpecs) TypeNames() []string {
	names := make([]string, 0, len(l.Types))
	for _, t := range l.Types {
		names = append(names, t.Name)
	}
	return names
}

// loadSpecs loads dir and, when every type is valid, freezes the catalog.
// The returned error is set only when nothing could be loaded.
func loadSpecs(dir string, mode compiler.LoadMode) (*loadedSpecs, error) {
	result, errs := compiler.LoadSpecs(dir, mode)
	if result == nil {
		return nil, errs[0]
	}

	loaded := &loadedSpecs{LoadResult: result}
	for _, err := range errs {
		loaded.Issues = append(loaded.Issues, toIssue(err))
	}
	if len(loaded.Issues) > 0 {
		return loaded, nil
	}

	catalog, err := ir.NewCatalog(result.Types...)
	if err != nil {
		loaded.Issues = append(loaded.Issues, ValidationIssue{Code: compiler.ErrCodeCatalog, Message: err.Error()})
		return loaded, nil
	}
	loaded.Catalog = catalog
	return loaded, nil
}

func toIssue(err error) ValidationIssue {
	var loadErr *compiler.LoadError
	if !errors.As(err, &loadErr) {
		return ValidationIssue{Code: compiler.ErrCodeGeneric, Message: err.Error()}
	}
	issue := ValidationIssue{Code: loadErr.Code, Type: loadErr.Type, Message: loadErr.Message}
	if loadErr.Pos.IsValid() {
		issue.File = loadErr.Pos.Filename()
		issue.Line = loadErr.Pos.Line()
	}
	return issue
}

// outputLoadError reports a specs directory that could not be loaded at all.
func outputLoadError(formatter *OutputFormatter, err error) error {
	issue := toIssue(err)
	_ = formatter.Error(issue.Code, issue.Message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", issue.Code, issue.Message))
}

// outputValidationIssues reports invalid specs.
func outputValidationIssues(formatter *OutputFormatter, issues []ValidationIssue) error {
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(issues)))

	if formatter.Format == "json" {
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: issues},
			Error:  &CLIError{Code: issues[0].Code, Message: issues[0].Message},
		}); err != nil {
			return err
		}
		return exitErr
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, issue := range issues {
		if issue.Line > 0 {
			fmt.Fprintf(formatter.Writer, "%s:%d\n", issue.File, issue.Line)
		}
		subject := issue.Message
		if issue.Type != "" {
			subject = issue.Type + ": " + issue.Message
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", issue.Code, subject)
	}
	return exitErr
}

// specsDirArg returns the directory argument, or the configured specs
// directory when none was given.
func specsDirArg(opts *RootOptions, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	cfg, err := opts.Settings()
	if err != nil {
		return "", WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg.Specs, nil
}
