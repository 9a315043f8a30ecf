package cmd

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	rapidslogger "github.com/ttnghia/rapids-logger"
)

func newProbeCommand(opts *globalOptions) *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "probe NAME VERSION",
		Short: "Load a backend and report every candidate's outcome",
		Long: `Load NAME requiring interface VERSION exactly as an application would,
then print each rejected candidate and the backend that was bound.
Exits non-zero when no candidate could be loaded.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.newRuntime(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = rt.Stop(cmd.Context()) }()

			log, loadErr := rt.LoadLibrary(args[0], args[1])
			snap, ok := rt.Cache().SnapshotOf(args[0])
			if !ok {
				return loadErr
			}
			renderProbe(cmd, snap)

			if loadErr != nil {
				return loadErr
			}
			if message != "" {
				log.Emit(rapidslogger.LevelInfo, message, rapidslogger.Fields{"source": "rapidslog"})
				log.Flush()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "bound %s %s from %s\n", log.Name(), snap.Version, log.Path())
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "emit this message at INFO through the bound backend")
	return cmd
}

func renderProbe(cmd *cobra.Command, snap rapidslogger.EntrySnapshot) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetTitle(fmt.Sprintf("%s >= %s", snap.Name, snap.Required))
	t.AppendHeader(table.Row{"Path", "Result", "Detail"})
	for _, f := range snap.Rejected {
		t.AppendRow(table.Row{f.Path, "rejected", f.Kind + ": " + f.Reason})
	}
	if snap.State == rapidslogger.EntryLoaded {
		t.AppendRow(table.Row{snap.Path, "loaded", "version " + snap.Version + ", symbols " + strings.Join(snap.Symbols, ",")})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignCenter},
		{Number: 3, WidthMax: 80},
	})
	t.Render()
}
