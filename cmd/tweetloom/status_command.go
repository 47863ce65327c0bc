package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and pipeline health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var status statusView
			if err := ctx.client().get("/api/status", &status); err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, status)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(out, line)
			}
			runningKind := statusError
			runningMsg := "stopped"
			if status.Running {
				runningKind = statusOK
				runningMsg = "running"
			}
			fmt.Fprintln(out, renderStatusLine("Daemon", runningKind, runningMsg, colorize))
			fmt.Fprintln(out, renderStatusLine("Database", statusInfo, status.DBPath, colorize))
			fmt.Fprintln(out, renderStatusLine("Lock file", statusInfo, status.LockFilePath, colorize))
			fmt.Fprintln(out)

			h := status.Health
			for _, line := range renderSectionHeader("Pipeline", colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, renderStatusLine("Channels", statusInfo,
				fmt.Sprintf("%d tracked, %d active", h.TrackedChans, h.ActiveChans), colorize))
			fmt.Fprintln(out, renderStatusLine("Videos", videoKind(h),
				fmt.Sprintf("%d total: %d discovered, %d transcribing, %d transcribed, %d failed",
					h.Videos, h.Discovered, h.Transcribing, h.Transcribed, h.VideosFailed), colorize))
			fmt.Fprintln(out, renderStatusLine("Generations", generationKind(h),
				fmt.Sprintf("%d total: %d pending, %d generated, %d failed",
					h.Generations, h.Pending, h.Generated, h.GensFailed), colorize))
			fmt.Fprintln(out, renderStatusLine("Tweets", tweetKind(h),
				fmt.Sprintf("%d total: %d drafts, %d published, %d failed",
					h.Tweets, h.Drafts, h.Published, h.TweetsFailed), colorize))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of formatted status")
	return cmd
}

func videoKind(h healthView) statusKind {
	if h.VideosFailed > 0 {
		return statusWarn
	}
	return statusOK
}

func generationKind(h healthView) statusKind {
	if h.GensFailed > 0 {
		return statusWarn
	}
	return statusOK
}

func tweetKind(h healthView) statusKind {
	if h.TweetsFailed > 0 {
		return statusWarn
	}
	return statusOK
}
