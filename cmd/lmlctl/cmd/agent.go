package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Manage persisted agent identities (spec.md §6 Agent lifecycle)",
}

var agentRegisterCmd = &cobra.Command{
	Use:   "register [display-name]",
	Short: "Register a new persisted agent identity",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		cfg, err := eng.RegisterAgent(args[0])
		if err != nil {
			return err
		}
		return printJSON(cfg)
	},
}

var agentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every registered agent",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		agents, err := eng.ListAgents()
		if err != nil {
			return err
		}
		return printJSON(agents)
	},
}

var agentDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a registered agent's identity",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		return eng.DeleteAgent(args[0])
	},
}

var agentSetVar []string

var agentConfigSetCmd = &cobra.Command{
	Use:   "set-config [id]",
	Short: "Merge key=value settings into an agent's persisted configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		settings := map[string]string{}
		for _, kv := range agentSetVar {
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				return fmt.Errorf("invalid --set value %q, want key=value", kv)
			}
			settings[k] = v
		}
		cfg, err := eng.UpdateAgentConfig(args[0], settings)
		if err != nil {
			return err
		}
		return printJSON(cfg)
	},
}

func init() {
	rootCmd.AddCommand(agentCmd)
	agentCmd.AddCommand(agentRegisterCmd, agentListCmd, agentDeleteCmd, agentConfigSetCmd)
	agentConfigSetCmd.Flags().StringArrayVar(&agentSetVar, "set", nil, "key=value setting to merge (repeatable)")
}
