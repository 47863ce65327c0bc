package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tweetloom/internal/logging"
	"tweetloom/internal/pipeline"
)

func newRetryCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry <channel>",
		Short: "Re-arm failed videos and generations for another attempt",
		Long: "Resets failed videos and tweet generations for the channel so the " +
			"next pipeline run picks them up again. The attempt budget is reset, " +
			"so items that exhausted their retries become eligible too.",
		Args: cobra.ExactArgs(1),
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

			videos, err := st.RetryFailedVideos(cmd.Context(), channel.ID)
			if err != nil {
				return err
			}
			generations, err := st.RetryFailedGenerations(cmd.Context(), channel.ID)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Re-armed %d videos and %d generations for %s\n",
				videos, generations, channel.ExternalID)
			return nil
		},
	}
	return cmd
}

func newRecoverCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Reclaim items whose claims went stale",
		Long: "Returns videos and generations stuck mid-flight, usually after a " +
			"crash, to a state the next run can pick up. Uses the configured " +
			"heartbeat timeout as the staleness cutoff.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			timeout := time.Duration(cfg.Scheduler.HeartbeatTimeout) * time.Second
			recovery := pipeline.NewRecovery(st, timeout, logging.NewNop())
			videos, generations, err := recovery.Sweep(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Reclaimed %d stale videos and %d stale generations\n",
				videos, generations)
			return nil
		},
	}
	return cmd
}
