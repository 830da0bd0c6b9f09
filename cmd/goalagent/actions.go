package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func actionsCmd(load configLoader) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "actions",
		Short: "Print the action schemas the agent would expose",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			registry, err := buildRegistry(cfg)
			if err != nil {
				return err
			}
			tags := cfg.Agent.ActionTags
			if all {
				tags = nil
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(registry.Schemas(tags...))
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "ignore agent.action_tags")
	return cmd
}
