// Package cli implements the tumorml-validate command.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	tumorml "github.com/agentflare-ai/go-tumorml"
	"github.com/agentflare-ai/go-tumorml/internal/config"
	"github.com/agentflare-ai/go-tumorml/schema"
)

// Options holds the parsed command line.
type Options struct {
	Help       bool
	Verbose    bool
	Jobs       int
	Color      string
	LogLevel   string
	SchemaPath string
	ConfigPath string
	Files      []string
}

// Execute runs tumorml-validate with args and returns the process exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	return ExecuteContext(context.Background(), args, stdout, stderr)
}

// ExecuteContext is Execute with a caller supplied context.
func ExecuteContext(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	code := tumorml.ExitOK
	cmd := newRootCmd(stdout, stderr, &code)
	cmd.SetArgs(args)

	badFlags := false
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		badFlags = true
		return tumorml.WrapArgumentError(err)
	})

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", tumorml.Detail(err))
		if badFlags {
			fmt.Fprint(stderr, cmd.UsageString())
		}
		if errors.Is(err, tumorml.ErrMalformedArguments) {
			return tumorml.ExitUsage
		}
		return tumorml.ExitFailure
	}
	return code
}

func newRootCmd(stdout, stderr io.Writer, code *int) *cobra.Command {
	opts := &Options{}

	cmd := &cobra.Command{
		Use:           "tumorml-validate [flags] <file>...",
		Short:         "Provide a file to check agains the TumorML schema",
		Example:       "  tumorml-validate testdata/egfr-erk_pathway.xml -v",
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Files = args
			cfg, err := resolveConfig(cmd.Flags(), opts)
			if err != nil {
				return tumorml.WrapArgumentError(err)
			}
			*code = run(cmd.Context(), cfg, opts.Files, stdout, stderr)
			return nil
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	defaults := config.DefaultConfig()
	flags := cmd.Flags()
	flags.BoolVarP(&opts.Help, "help", "h", false, "print this help and exit")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", defaults.Verbose, "also report the schema and every file that validates")
	flags.StringVarP(&opts.SchemaPath, "schema", "s", defaults.Schema, "validate against this XSD file instead of the bundled TumorML schema")
	flags.IntVarP(&opts.Jobs, "jobs", "j", defaults.Jobs, "number of files validated in parallel")
	flags.StringVar(&opts.Color, "color", defaults.Color, "colorize diagnostics: auto, always or never")
	flags.StringVar(&opts.LogLevel, "log-level", defaults.LogLevel, "log level: debug, info, warn or error")
	flags.StringVar(&opts.ConfigPath, "config", "", "read settings from this YAML file")

	return cmd
}

func run(ctx context.Context, cfg *config.Config, files []string, stdout, stderr io.Writer) int {
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.Level()}))

	engine := &tumorml.XSDEngine{
		Color:        useColor(cfg.Color, stderr),
		ContextLines: 2,
		Logger:       logger,
	}
	fsys, name, label := schemaSource(cfg.Schema)
	reporter := tumorml.NewReporter(stdout, stderr, label, cfg.Verbose)

	s, err := tumorml.Load(engine, fsys, name, logger)
	if err != nil {
		var loadErr *tumorml.LoadError
		if !errors.As(err, &loadErr) {
			loadErr = &tumorml.LoadError{Name: name, Detail: err.Error(), Err: err}
		}
		reporter.SchemaFailed(loadErr)
	} else {
		reporter.SchemaCompiled(name)
	}

	runner := &tumorml.Runner{Jobs: cfg.Jobs, Logger: logger}
	if err := runner.Run(ctx, s, files, reporter.Outcome); err != nil {
		logger.Error("validation interrupted", "error", err)
		return tumorml.ExitFailure
	}

	logger.Debug("run finished", "files", len(files), "failed", reporter.Failed())
	return reporter.ExitCode()
}

// resolveConfig layers explicitly set flags over the config file, or over
// the defaults when no config file was given.
func resolveConfig(flags *pflag.FlagSet, opts *Options) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if opts.ConfigPath != "" {
		loaded, err := config.LoadConfigFromFile(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if flags.Changed("verbose") {
		cfg.Verbose = opts.Verbose
	}
	if flags.Changed("jobs") {
		cfg.Jobs = opts.Jobs
	}
	if flags.Changed("color") {
		cfg.Color = opts.Color
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.LogLevel
	}
	if flags.Changed("schema") {
		cfg.Schema = opts.SchemaPath
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// schemaSource returns the file system, resource name and label of the
// schema to compile.
func schemaSource(path string) (fs.FS, string, string) {
	if path == "" {
		return schema.FS, schema.Name, schema.Label
	}
	base := filepath.Base(path)
	return os.DirFS(filepath.Dir(path)), base, base
}

func useColor(mode string, w io.Writer) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
