package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/martinemde/goalagent/agent"
	"github.com/martinemde/goalagent/config"
	"github.com/martinemde/goalagent/tools"
)

func newRootCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:          "goalagent",
		Short:        "Run a goal-directed, tool-using agent",
		Version:      version,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		return cfg, nil
	}

	cmd.AddCommand(runCmd(load))
	cmd.AddCommand(actionsCmd(load))
	cmd.AddCommand(historyCmd(load))
	return cmd
}

type configLoader func() (*config.Config, error)

// buildRegistry registers the project file actions for the configured
// workspace.
func buildRegistry(cfg *config.Config) (*agent.Registry, error) {
	ws, err := tools.NewWorkspace(cfg.Workspace.Root, cfg.Workspace.Extensions...)
	if err != nil {
		return nil, err
	}
	registry, err := agent.NewRegistryFrom(tools.Entries(ws)...)
	if err != nil {
		return nil, fmt.Errorf("register actions: %w", err)
	}
	return registry, nil
}
