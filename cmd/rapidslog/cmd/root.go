package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	rapidslogger "github.com/ttnghia/rapids-logger"
	"github.com/ttnghia/rapids-logger/feeders"
)

// Version information
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// PrintVersion returns the version line.
func PrintVersion() string {
	return fmt.Sprintf("rapidslog v%s (commit: %s, built on: %s)", Version, Commit, Date)
}

// globalOptions are shared by every subcommand.
type globalOptions struct {
	configFile   string
	configKey    string
	envFile      string
	searchRoots  []string
	overridePath string
	verbose      bool
}

// NewRootCommand creates the root command for the rapidslog application
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "rapidslog",
		Short: "rapidslog - inspect and serve rapids-logger backends",
		Long: `rapidslog shows where logging backends are searched for, probes them
with the same loader applications use, and serves a diagnostics API.`,
		Version:       PrintVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "config file (.yaml, .toml, .json or .env)")
	flags.StringVar(&opts.configKey, "config-key", "", "read settings from this top-level section of the config file")
	flags.StringVar(&opts.envFile, "env-file", "", "dotenv file with RAPIDS_LOGGER_ variables")
	flags.StringSliceVar(&opts.searchRoots, "search-root", nil, "search root, repeatable; replaces configured roots")
	flags.StringVar(&opts.overridePath, "override-path", "", "library path tried first for every backend")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log loader diagnostics to stderr")

	cmd.AddCommand(newCandidatesCommand(opts))
	cmd.AddCommand(newProbeCommand(opts))
	cmd.AddCommand(newServeCommand(opts))

	return cmd
}

// loadConfig merges the config file, the dotenv file, the process
// environment and finally flags, in that order of increasing precedence.
func (o *globalOptions) loadConfig() (*rapidslogger.Config, error) {
	var sources []feeders.Feeder
	if o.configFile != "" {
		f, err := rapidslogger.SectionFeeder(o.configFile, o.configKey)
		if err != nil {
			return nil, err
		}
		sources = append(sources, f)
	}
	if o.envFile != "" {
		sources = append(sources, feeders.NewDotEnvFeeder(o.envFile, rapidslogger.EnvPrefix))
	}
	sources = append(sources, feeders.NewAffixedEnvFeeder(rapidslogger.EnvPrefix, ""))

	cfg, err := rapidslogger.LoadConfig(sources...)
	if err != nil {
		return nil, err
	}
	if len(o.searchRoots) > 0 {
		cfg.SearchRoots = o.searchRoots
	}
	if o.overridePath != "" {
		cfg.OverridePath = o.overridePath
	}
	if o.configFile != "" && cfg.ConfigFile == "" {
		cfg.ConfigFile = o.configFile
		cfg.ConfigKey = o.configKey
	}
	return cfg, nil
}

func (o *globalOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// newRuntime builds a runtime from the merged config plus any options
// carried by the command context, then extra.
func (o *globalOptions) newRuntime(cmd *cobra.Command, extra ...rapidslogger.Option) (*rapidslogger.Runtime, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	opts := []rapidslogger.Option{rapidslogger.WithLogger(o.logger(cmd.ErrOrStderr()))}
	if ctx := cmd.Context(); ctx != nil {
		if fromCtx, ok := ctx.Value(runtimeOptionsKey{}).([]rapidslogger.Option); ok {
			opts = append(opts, fromCtx...)
		}
	}
	return rapidslogger.NewRuntime(cfg, append(opts, extra...)...)
}

type runtimeOptionsKey struct{}

// WithRuntimeOptions returns a context that makes every subcommand build its
// runtime with opts, e.g. a StaticOpener serving embedded backends.
//
//	err := cmd.NewRootCommand().ExecuteContext(cmd.WithRuntimeOptions(ctx, rapidslogger.WithOpener(o)))
func WithRuntimeOptions(ctx context.Context, opts ...rapidslogger.Option) context.Context {
	return context.WithValue(ctx, runtimeOptionsKey{}, opts)
}
