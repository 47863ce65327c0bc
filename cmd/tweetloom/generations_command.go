package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tweetloom/internal/store"
)

func newGenerationsCommand(ctx *commandContext) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "generations <channel>",
		Short: "List tweet generations for a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			channel, err := st.ChannelByExternalID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if channel == nil {
				return fmt.Errorf("channel %s is not tracked", args[0])
			}

			var statuses []store.GenerationStatus
			if status != "" {
				parsed, ok := store.ParseGenerationStatus(status)
				if !ok {
					return fmt.Errorf("unknown status %q (want pending, generated, or failed)", status)
				}
				statuses = append(statuses, parsed)
			}

			generations, err := st.ListGenerations(cmd.Context(), channel.ID, statuses...)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(generations))
			for _, g := range generations {
				model := g.Model
				if model == "" {
					model = "-"
				}
				detail := g.ErrorMessage
				if detail == "" {
					detail = "-"
				}
				rows = append(rows, []string{
					fmt.Sprint(g.ID), g.VideoExternalID, g.VideoTitle,
					string(g.Status), fmt.Sprint(g.AttemptCount), model, detail,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Video", "Title", "Status", "Attempts", "Model", "Error"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", "", "Filter by status: pending, generated, or failed")
	return cmd
}
