package cmd

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/ttnghia/rapids-logger/diaghttp"
)

func newServeCommand(opts *globalOptions) *cobra.Command {
	var (
		addr  string
		loads []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the diagnostics API",
		Long: `Start a runtime, preload the backends given with --load NAME@VERSION and
serve the diagnostics API until interrupted. Periodic flushing and config
watching run when configured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.newRuntime(cmd)
			if err != nil {
				return err
			}
			logger := opts.logger(cmd.ErrOrStderr())

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := rt.Start(ctx); err != nil {
				return err
			}
			defer func() { _ = rt.Stop(context.Background()) }()

			for _, spec := range loads {
				name, version, ok := strings.Cut(spec, "@")
				if !ok {
					return fmt.Errorf("invalid --load %q: expected NAME@VERSION", spec)
				}
				if _, err := rt.LoadLibrary(name, version); err != nil {
					logger.Warn("Preload failed", "backend", name, "error", err)
				}
			}

			if addr == "" {
				addr = rt.Config().DiagnosticsAddr
			}
			return diaghttp.Serve(ctx, addr, diaghttp.NewHandler(rt.Cache(), logger), logger, func(a net.Addr) {
				fmt.Fprintf(cmd.OutOrStdout(), "serving diagnostics on http://%s\n", a)
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringSliceVar(&loads, "load", nil, "backend to preload as NAME@VERSION, repeatable")
	return cmd
}
