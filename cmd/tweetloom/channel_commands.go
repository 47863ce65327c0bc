package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newChannelCommand(ctx *commandContext) *cobra.Command {
	channelCmd := &cobra.Command{
		Use:   "channel",
		Short: "Manage tracked channels",
	}

	channelCmd.AddCommand(newChannelAddCommand(ctx))
	channelCmd.AddCommand(newChannelListCommand(ctx))
	channelCmd.AddCommand(newChannelToggleCommand(ctx, "enable", true))
	channelCmd.AddCommand(newChannelToggleCommand(ctx, "disable", false))

	return channelCmd
}

func newChannelAddCommand(ctx *commandContext) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "add <channel-id>",
		Short: "Track a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			request := map[string]string{"channel_id": args[0], "title": title}
			var view channelView
			if err := ctx.client().post("/api/channels", request, &view); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tracking %s\n", view.ChannelID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Display title for the channel")
	return cmd
}

func newChannelListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked channels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var channels []channelView
			if err := ctx.client().get("/api/channels", &channels); err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, channels)
			}
			rows := make([][]string, 0, len(channels))
			for _, ch := range channels {
				watermark := "-"
				if ch.Watermark != nil {
					watermark = ch.Watermark.Local().Format(time.RFC3339)
				}
				rows = append(rows, []string{ch.ChannelID, ch.Title, yesNo(ch.Active), watermark})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Channel", "Title", "Active", "Watermark"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newChannelToggleCommand(ctx *commandContext, verb string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <channel-id>",
		Short: capitalize(verb) + " scheduled runs for a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			request := map[string]bool{"active": active}
			if err := ctx.client().post("/api/channels/"+args[0], request, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Channel %s %sd\n", args[0], verb)
			return nil
		},
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
