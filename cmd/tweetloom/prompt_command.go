package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tweetloom/internal/prompt"
)

func newPromptCommand(ctx *commandContext) *cobra.Command {
	promptCmd := &cobra.Command{
		Use:   "prompt",
		Short: "Manage generation prompt templates",
	}

	var name string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the built-in template into the prompts directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			loader := prompt.NewLoader(cfg.Paths.PromptsDir)
			path, err := loader.WriteDefault(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Template available at %s\n", path)
			return nil
		},
	}
	initCmd.Flags().StringVarP(&name, "name", "n", "default", "Template name to materialize")

	promptCmd.AddCommand(initCmd)
	return promptCmd
}
