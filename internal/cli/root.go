package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/warden/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// ConfigPath is an explicit warden.yaml. Empty searches upward from
	// the working directory.
	ConfigPath string

	// Overrides for values read from the config file.
	Database  string
	Specs     string
	PostPhase string

	config *config.Config
	logger *slog.Logger
	logOut io.Writer
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the warden CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "warden",
		Short: "warden - declarative constraint validation",
		Long: `Validate entities against field constraints and count rules declared in CUE,
and persist them through repositories that enforce those rules on every write.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			opts.logOut = cmd.ErrOrStderr()
			if opts.Verbose {
				opts.setupLogging(slog.LevelDebug)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to "+config.FileName)
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "SQLite database path (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.Specs, "specs", "", "CUE specs directory (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.PostPhase, "post-phase", "", "post-phase policy: rollback or advisory (overrides config)")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewFilterCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// Settings returns the effective configuration: defaults, then the config
// file, then command-line overrides. The result is cached.
func (o *RootOptions) Settings() (*config.Config, error) {
	if o.config != nil {
		return o.config, nil
	}
	cfg, err := config.NewLoader(o.Logger(), "").Load(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	cfg.Merge(&config.Config{
		Database:  o.Database,
		Specs:     o.Specs,
		PostPhase: o.PostPhase,
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o.setupLogging(cfg.Level())
	o.config = cfg
	return cfg, nil
}

// Logger returns the CLI logger. Before logging is set up, and for
// commands run outside the root command, logs are discarded.
func (o *RootOptions) Logger() *slog.Logger {
	if o.logger != nil {
		return o.logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupLogging installs a text handler on stderr at level. The first call
// wins, so --verbose keeps debug output after the config is read.
func (o *RootOptions) setupLogging(level slog.Level) {
	if o.logger != nil || o.logOut == nil {
		return
	}
	o.logger = slog.New(slog.NewTextHandler(o.logOut, &slog.HandlerOptions{
		Level: level,
	}))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
