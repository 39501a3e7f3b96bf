package cmd

import (
	"strconv"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and rewind a program's edit log (spec.md §4.5/§6 history)",
}

var historyListCmd = &cobra.Command{
	Use:   "list [program]",
	Short: "List the in-session edit log",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		records, err := eng.History(args[0])
		if err != nil {
			return err
		}
		return printJSON(records)
	},
}

var historyUndoCmd = &cobra.Command{
	Use:   "undo [program]",
	Short: "Revert the most recently committed batch",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		return eng.Undo(args[0])
	},
}

var historyRedoCmd = &cobra.Command{
	Use:   "redo [program]",
	Short: "Reapply the most recently undone batch",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		return eng.Redo(args[0])
	},
}

var historyCheckpointCmd = &cobra.Command{
	Use:   "checkpoint [program] [name]",
	Short: "Name the current log index for later reference",
	Args:  cobra.ExactArgs(2),
	RunE: func(c *cobra.Command, args []string) error {
		return eng.Checkpoint(args[0], args[1])
	},
}

var historyCheckpointsCmd = &cobra.Command{
	Use:   "checkpoints [program]",
	Short: "List named checkpoints and their log indices",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		cps, err := eng.ListCheckpoints(args[0])
		if err != nil {
			return err
		}
		return printJSON(cps)
	},
}

var historyDiffCmd = &cobra.Command{
	Use:   "diff [program] [from] [to]",
	Short: "Show edit-log records committed between two log indices",
	Args:  cobra.ExactArgs(3),
	RunE: func(c *cobra.Command, args []string) error {
		from, err := strconv.Atoi(args[1])
		if err != nil {
			return err
		}
		to, err := strconv.Atoi(args[2])
		if err != nil {
			return err
		}
		records, err := eng.Diff(args[0], from, to)
		if err != nil {
			return err
		}
		return printJSON(records)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyUndoCmd, historyRedoCmd, historyCheckpointCmd, historyCheckpointsCmd, historyDiffCmd)
}
