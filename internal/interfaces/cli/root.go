// Package cli builds the cobra commands behind the pattern-filter,
// interaction-filter and rmsd-filter binaries.  Every tool is its own root
// command sharing one set of global flags and one initialisation chain:
// configuration, logger, object storage.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/turtacn/molfilter/internal/config"
	"github.com/turtacn/molfilter/internal/infrastructure/chemio"
	"github.com/turtacn/molfilter/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molfilter/internal/infrastructure/storage/minio"
	"github.com/turtacn/molfilter/pkg/errors"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// cliContextKey is the context key for CLIContext.
type cliContextKey struct{}

// RootOptions holds the global flags shared by all tools.
type RootOptions struct {
	ConfigPath  string
	LogLevel    string
	LogFormat   string
	Verbose     bool
	NoColor     bool
	MetricsFile string
}

// CLIContext carries initialised dependencies into a tool's RunE.
type CLIContext struct {
	Config *config.Config
	Logger logging.Logger
	// Store serves s3:// paths.  Nil when storage.s3.endpoint is unset.
	Store   chemio.ObjectStore
	Tool    string
	RunID   string
	NoColor bool
	Stderr  io.Writer
}

// newToolCommand creates a root command for one tool with the global flags
// and the initialisation chain attached.
func newToolCommand(tool, short, long string) (*cobra.Command, *RootOptions) {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     tool,
		Short:   short,
		Long:    long,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		Args:    noArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPreRun(cmd, tool, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return errors.Wrap(err, errors.CodeInvalidParam, "invalid flags")
	})

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.ConfigPath, "config", "", "config file path (default: ./molfilter.yaml)")
	pf.StringVar(&opts.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&opts.LogFormat, "log-format", "", "log format (console, json)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "log every record decision")
	pf.BoolVar(&opts.NoColor, "no-color", false, "disable colored output")
	pf.StringVar(&opts.MetricsFile, "metrics-file", "", "write run metrics to this node-exporter textfile")

	return cmd, opts
}

func noArgs(_ *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errors.InvalidParam(fmt.Sprintf("unexpected argument %q", args[0]))
	}
	return nil
}

// persistentPreRun initialises config, logger and storage, then stores the
// CLIContext on the command.
func persistentPreRun(cmd *cobra.Command, tool string, opts *RootOptions) error {
	cfg, err := initConfig(cmd, opts)
	if err != nil {
		return err
	}

	logger, err := initLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return errors.Wrap(err, errors.CodeInvalidParam, "logger initialization failed")
	}
	runID := uuid.NewString()
	logger = logger.With(logging.String("tool", tool), logging.String("run_id", runID))

	store, err := initStore(cfg, logger)
	if err != nil {
		return err
	}

	cliCtx := &CLIContext{
		Config:  cfg,
		Logger:  logger,
		Store:   store,
		Tool:    tool,
		RunID:   runID,
		NoColor: cfg.Log.NoColor,
		Stderr:  cmd.ErrOrStderr(),
	}
	cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cliCtx))
	return nil
}

// initConfig loads configuration with priority: flags > env > file > defaults.
func initConfig(cmd *cobra.Command, opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	fs := cmd.Flags()
	if flagChanged(fs, "log-level") {
		cfg.Log.Level = opts.LogLevel
	}
	if flagChanged(fs, "log-format") {
		cfg.Log.Format = opts.LogFormat
	}
	if opts.Verbose {
		cfg.Log.Level = logging.LevelDebug
	}
	if opts.NoColor {
		cfg.Log.NoColor = true
	}
	if opts.MetricsFile != "" {
		cfg.Metrics.Textfile = opts.MetricsFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// initLogger creates a logger for CLI usage; entries go to w, normally stderr.
func initLogger(cfg *config.Config, w io.Writer) (logging.Logger, error) {
	return logging.NewLogger(logging.LogConfig{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		NoColor: cfg.Log.NoColor,
		Writer:  w,
	})
}

// initStore connects s3:// paths to object storage when an endpoint is
// configured.
func initStore(cfg *config.Config, logger logging.Logger) (chemio.ObjectStore, error) {
	if cfg.Storage.S3.Endpoint == "" {
		return nil, nil
	}
	client, err := minio.NewClient(minio.ConfigFromS3(cfg.Storage.S3), logger)
	if err != nil {
		return nil, err
	}
	return minio.NewObjectStore(client), nil
}

// GetCLIContext extracts CLIContext from a cobra command's context.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.Internal("command context is nil")
	}
	cliCtx, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, errors.Internal("CLIContext not found in command context")
	}
	return cliCtx, nil
}

// Execute runs cmd with args and returns the process exit status.  Errors
// are printed to the command's stderr.
func Execute(ctx context.Context, cmd *cobra.Command, args []string) int {
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		PrintError(cmd, err)
	}
	return errors.ExitStatus(err)
}

// PrintError writes a formatted error message to stderr.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	label := color.New(color.FgRed, color.Bold)
	if cc, cerr := GetCLIContext(cmd); cerr == nil && cc.NoColor {
		label.DisableColor()
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", label.Sprint("Error:"), err.Error())
}

// flagChanged reports whether the user set a flag on the command line.
func flagChanged(fs *pflag.FlagSet, name string) bool {
	f := fs.Lookup(name)
	return f != nil && f.Changed
}
