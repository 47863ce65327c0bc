package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var mode string
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "run <channel>",
		Short: "Run the pipeline for a channel via the daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			request := map[string]any{
				"channel_id": args[0],
				"mode":       mode,
				"limit":      limit,
			}
			var summary runSummaryView
			if err := ctx.client().post("/api/pipeline/run", request, &summary); err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, summary)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run finished (%s mode)\n", summary.Mode)
			fmt.Fprintln(out, renderTable(
				[]string{"Discovered", "Processed", "Succeeded", "Failed"},
				[][]string{{
					fmt.Sprint(summary.Discovered),
					fmt.Sprint(summary.Processed),
					fmt.Sprint(summary.Succeeded),
					fmt.Sprint(summary.Failed),
				}},
				[]columnAlignment{alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "full", "Phases to run: ingest, publish, or full")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum items to process per phase (0 uses the configured batch size)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	return cmd
}
