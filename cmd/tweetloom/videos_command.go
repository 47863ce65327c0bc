package main

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"
)

func newVideosCommand(ctx *commandContext) *cobra.Command {
	var status string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "videos <channel>",
		Short: "List discovered videos for a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			query.Set("channel", args[0])
			if status != "" {
				query.Set("status", status)
			}

			var videos []videoView
			if err := ctx.client().get("/api/videos?"+query.Encode(), &videos); err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, videos)
			}
			rows := make([][]string, 0, len(videos))
			for _, v := range videos {
				published := "-"
				if v.PublishedAt != nil {
					published = v.PublishedAt.Local().Format(time.RFC3339)
				}
				transcribed := "-"
				if v.TranscribedAt != nil {
					transcribed = v.TranscribedAt.Local().Format(time.RFC3339)
				}
				detail := v.ErrorMessage
				if detail == "" {
					detail = "-"
				}
				rows = append(rows, []string{
					v.VideoID, v.Title, v.Status,
					fmt.Sprint(v.Attempts), published, transcribed, detail,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Video", "Title", "Status", "Attempts", "Published", "Transcribed", "Error"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", "", "Filter by status: discovered, transcribing, transcribed, or failed")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	return cmd
}
