package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tweetloom/internal/secrets"
)

func newUserCommand(ctx *commandContext) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage stored publishing credentials",
	}

	userCmd.AddCommand(newUserSetCredentialsCommand(ctx))
	userCmd.AddCommand(newUserListCommand(ctx))
	userCmd.AddCommand(newUserRemoveCommand(ctx))

	return userCmd
}

func newUserSetCredentialsCommand(ctx *commandContext) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "set-credentials <handle>",
		Short: "Seal and store a publishing access token for a handle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				return fmt.Errorf("an access token is required (use --token)")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Secrets.Passphrase == "" {
				return fmt.Errorf("set secrets passphrase in the config (or export TWEETLOOM_SECRETS_PASSPHRASE) before storing credentials")
			}

			box, err := secrets.NewBox(cfg.Secrets.Passphrase)
			if err != nil {
				return err
			}
			sealed, err := box.Seal([]byte(token))
			if err != nil {
				return err
			}

			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			user, err := st.UpsertUser(cmd.Context(), args[0], sealed)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored credentials for %s\n", user.Handle)
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Publishing access token to seal and store")
	return cmd
}

func newUserListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List handles with stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			handles, err := st.Users(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(handles) == 0 {
				fmt.Fprintln(out, "No stored credentials")
				return nil
			}
			for _, handle := range handles {
				fmt.Fprintln(out, handle)
			}
			return nil
		},
	}
}

func newUserRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <handle>",
		Short: "Delete stored credentials for a handle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			removed, err := st.RemoveUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("no credentials stored for %s", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed credentials for %s\n", args[0])
			return nil
		},
	}
}
