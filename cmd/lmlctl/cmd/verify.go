package cmd

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/snowdamiz/lmlang/engine"
	"github.com/snowdamiz/lmlang/graph"
)

var (
	verifyFull  bool
	verifyNodes string
)

var verifyCmd = &cobra.Command{
	Use:   "verify [program]",
	Short: "Re-run the type checker against a program (spec.md §6 verify/verify_flush)",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		scope := engine.VerifyLocal
		var nodes []graph.NodeId
		if verifyFull {
			scope = engine.VerifyFull
		} else if verifyNodes != "" {
			for _, s := range strings.Split(verifyNodes, ",") {
				n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
				if err != nil {
					return err
				}
				nodes = append(nodes, graph.NodeId(n))
			}
		}
		errs, err := eng.Verify(args[0], scope, nodes)
		if err != nil {
			return err
		}
		return printJSON(errs)
	},
}

var verifyFlushCmd = &cobra.Command{
	Use:   "flush [program]",
	Short: "Discard any cached verification bookkeeping for a program",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		return eng.VerifyFlush(args[0])
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.AddCommand(verifyFlushCmd)
	verifyCmd.Flags().BoolVar(&verifyFull, "full", false, "check the whole graph instead of just --nodes")
	verifyCmd.Flags().StringVar(&verifyNodes, "nodes", "", "comma-separated node ids to re-check (local scope)")
}
