package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/warden/internal/compiler"
	"github.com/roach88/warden/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult is the frozen catalog as JSON.
type CompilationResult struct {
	Types []ir.TypeSpec `json:"types"`
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	TypeCount       int
	FieldCount      int
	ConstraintCount int
	RuleCount       int
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile [specs-dir]",
		Short: "Compile CUE type declarations to a JSON catalog",
		Long: `Compile CUE type declarations into the frozen catalog the repositories use.

The catalog adds the implicit id field, resolves column names and
checks relations between types. With --output the catalog is written as
JSON; --format json prints it.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := specsDirArg(rootOpts, args)
			if err != nil {
				return err
			}
			return runCompile(opts, dir, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	loaded, err := loadSpecs(specsDir, compiler.LoadModeCollectAll)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loaded.FileCount, specsDir)
	if len(loaded.Issues) > 0 {
		return outputValidationIssues(formatter, loaded.Issues)
	}

	result := &CompilationResult{Types: loaded.Catalog.Types()}
	stats := calculateStats(result)

	if opts.Output != "" {
		if err := writeCatalogFile(result, opts.Output); err != nil {
			_ = formatter.Error(compiler.ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitCommandError, "writing output file", err)
		}
		formatter.VerboseLog("Wrote catalog to %s", opts.Output)
	}

	return outputCompileSuccess(formatter, result, stats, opts.Output)
}

// calculateStats computes summary statistics from compilation result.
func calculateStats(result *CompilationResult) CompilationStats {
	stats := CompilationStats{TypeCount: len(result.Types)}
	for _, t := range result.Types {
		stats.FieldCount += len(t.Fields)
		stats.RuleCount += len(t.Rules)
		for _, f := range t.Fields {
			stats.ConstraintCount += len(f.Constraints)
		}
	}
	return stats
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, stats CompilationStats, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Compiled %d type(s): %d field(s), %d constraint(s), %d rule(s)\n\n",
		stats.TypeCount, stats.FieldCount, stats.ConstraintCount, stats.RuleCount)

	for _, t := range result.Types {
		fmt.Fprintf(formatter.Writer, "  %s (table %s): %d field(s), %d relation(s), %d rule(s)\n",
			t.Name, t.Table, len(t.Fields), len(t.Relations), len(t.Rules))
	}

	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "\nWrote catalog to %s\n", outputFile)
	}
	return nil
}

// writeCatalogFile writes the compilation result as indented JSON.
func writeCatalogFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling catalog: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
