package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/murka/selectel-storage-client/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd(). Binding resets them to
// their defaults, so tests set them after building the command or pass
// them as arguments.
var (
	flagConfigPath  string
	flagUser        string
	flagAuthVersion int
	flagInsecure    bool
	flagJSON        bool
	flagVerbose     bool
	flagQuiet       bool
)

// CLIContext carries what every subcommand needs once the root pre-run has
// resolved the configuration.
type CLIContext struct {
	Cfg    *config.Resolved
	Logger *slog.Logger
	Out    io.Writer
	Err    io.Writer
	Flags  CLIFlags
}

// CLIFlags is a snapshot of the output-related persistent flags.
type CLIFlags struct {
	JSON    bool
	Quiet   bool
	Verbose bool
}

type cliContextKey struct{}

func withCLIContext(ctx context.Context, cc *CLIContext) context.Context {
	return context.WithValue(ctx, cliContextKey{}, cc)
}

// mustCLIContext returns the CLIContext stored by the root pre-run. Every
// subcommand runs after it, so a missing value is a programming error.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok {
		panic("selstorage: command run without CLI context")
	}

	return cc
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "selstorage",
		Short:   "Selectel Cloud Storage CLI",
		Long:    "Manage containers and objects in Selectel Cloud Storage.",
		Version: version,
		// Errors are printed by exitOnError.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(cmd)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flagConfigPath, "config", "", "config file path")
	pf.StringVarP(&flagUser, "user", "u", "", "storage user (e.g. 123456_backup)")
	pf.IntVar(&flagAuthVersion, "auth-version", 0, "auth protocol version (1, 2 or 3)")
	pf.BoolVar(&flagInsecure, "insecure", false, "use plain http instead of https")
	pf.BoolVar(&flagJSON, "json", false, "output in JSON format")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(
		newLoginCmd(),
		newLogoutCmd(),
		newStatusCmd(),
		newInfoCmd(),
		newContainersCmd(),
		newMkcontainerCmd(),
		newRmcontainerCmd(),
		newStatCmd(),
		newLsCmd(),
		newPutCmd(),
		newRmCmd(),
		newExtractCmd(),
	)

	return cmd
}

// loadConfig resolves the effective configuration and stores a CLIContext
// in the command's context. Only flags the user actually passed override
// the file and environment.
func loadConfig(cmd *cobra.Command) error {
	cli := config.CLIOverrides{ConfigPath: flagConfigPath}

	flags := cmd.Flags()
	if flags.Changed("user") {
		cli.User = &flagUser
	}

	if flags.Changed("auth-version") {
		cli.AuthVersion = &flagAuthVersion
	}

	if flags.Changed("insecure") {
		cli.Insecure = &flagInsecure
	}

	resolved, err := config.Resolve(config.ReadEnvOverrides(), cli)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cc := &CLIContext{
		Cfg:    resolved,
		Logger: buildLogger(resolved, cmd.ErrOrStderr()),
		Out:    cmd.OutOrStdout(),
		Err:    cmd.ErrOrStderr(),
		Flags: CLIFlags{
			JSON:    flagJSON,
			Quiet:   flagQuiet,
			Verbose: flagVerbose,
		},
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cmd.SetContext(withCLIContext(ctx, cc))

	return nil
}

// buildLogger creates a text logger on w. The config file's log level is
// the baseline; --verbose and --quiet override it.
func buildLogger(cfg *config.Resolved, w io.Writer) *slog.Logger {
	level := slog.LevelWarn

	if cfg != nil {
		switch cfg.Logging.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "error":
			level = slog.LevelError
		}
	}

	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
