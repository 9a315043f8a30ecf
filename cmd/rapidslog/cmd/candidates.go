package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	rapidslogger "github.com/ttnghia/rapids-logger"
)

func newCandidatesCommand(opts *globalOptions) *cobra.Command {
	var platform string

	cmd := &cobra.Command{
		Use:   "candidates NAME",
		Short: "List the paths tried for a backend, in order",
		Long: `List the library paths the loader would try for NAME, in the order it
would try them. Nothing is opened.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var extra []rapidslogger.Option
			if platform != "" {
				tag, err := rapidslogger.ParsePlatformTag(platform)
				if err != nil {
					return err
				}
				extra = append(extra, rapidslogger.WithPlatform(tag))
			}

			rt, err := opts.newRuntime(cmd, extra...)
			if err != nil {
				return err
			}
			defer func() { _ = rt.Stop(cmd.Context()) }()

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetTitle(fmt.Sprintf("%s (%s)", args[0], rt.Platform()))
			t.AppendHeader(table.Row{"#", "Path"})
			for i, c := range rt.Candidates(args[0]) {
				t.AppendRow(table.Row{i + 1, c.ResolvedPath})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&platform, "platform", "", "platform tag: posix_shared_object, windows_dll or macos_dylib")
	return cmd
}
