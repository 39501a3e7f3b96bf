package cmd

import (
	"github.com/spf13/cobra"
)

var programCmd = &cobra.Command{
	Use:   "program",
	Short: "Manage programs (spec.md §6 Program lifecycle)",
}

var programCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a new, empty program",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		p, err := eng.CreateProgram(args[0])
		if err != nil {
			return err
		}
		return printJSON(map[string]any{"name": p.Name})
	},
}

var programListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every persisted program",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		names, err := eng.ListPrograms()
		if err != nil {
			return err
		}
		return printJSON(names)
	},
}

var programDeleteCmd = &cobra.Command{
	Use:   "delete [name]",
	Short: "Delete a persisted program",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		return eng.DeleteProgram(args[0])
	},
}

var programOverviewCmd = &cobra.Command{
	Use:   "overview [name]",
	Short: "Show aggregate counts and last-compiled hashes for a program",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		ov, err := eng.Overview(args[0])
		if err != nil {
			return err
		}
		return printJSON(ov)
	},
}

func init() {
	rootCmd.AddCommand(programCmd)
	programCmd.AddCommand(programCreateCmd, programListCmd, programDeleteCmd, programOverviewCmd)
}
