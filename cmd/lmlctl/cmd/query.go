package cmd

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/snowdamiz/lmlang/graph"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Read-only graph inspection (spec.md §6 Queries)",
}

var queryFunctionCmd = &cobra.Command{
	Use:   "function [program] [function-id]",
	Short: "Show a function's definition and owned node ids",
	Args:  cobra.ExactArgs(2),
	RunE: func(c *cobra.Command, args []string) error {
		fn, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return err
		}
		v, err := eng.FunctionQuery(args[0], graph.FunctionId(fn))
		if err != nil {
			return err
		}
		return printJSON(v)
	},
}

var queryNodeCmd = &cobra.Command{
	Use:   "node [program] [node-id]",
	Short: "Show a node and its live data/control edges",
	Args:  cobra.ExactArgs(2),
	RunE: func(c *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return err
		}
		v, err := eng.NodeQuery(args[0], graph.NodeId(id))
		if err != nil {
			return err
		}
		return printJSON(v)
	},
}

var queryNeighborhoodDepth int

var queryNeighborhoodCmd = &cobra.Command{
	Use:   "neighborhood [program] [node-id]",
	Short: "Walk outward from a node up to --depth hops",
	Args:  cobra.ExactArgs(2),
	RunE: func(c *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return err
		}
		ids, err := eng.Neighborhood(args[0], graph.NodeId(id), queryNeighborhoodDepth)
		if err != nil {
			return err
		}
		return printJSON(ids)
	},
}

var querySearchCmd = &cobra.Command{
	Use:   "search [program] [text]",
	Short: "Case-insensitive substring search over function and semantic names",
	Args:  cobra.ExactArgs(2),
	RunE: func(c *cobra.Command, args []string) error {
		results, err := eng.Search(args[0], args[1])
		if err != nil {
			return err
		}
		return printJSON(results)
	},
}

var querySemanticCmd = &cobra.Command{
	Use:   "semantic [program] [function-id]",
	Short: "Show a function's semantic-layer projection and its edges",
	Args:  cobra.ExactArgs(2),
	RunE: func(c *cobra.Command, args []string) error {
		fn, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return err
		}
		sem, edges, err := eng.SemanticQuery(args[0], graph.FunctionId(fn))
		if err != nil {
			return err
		}
		return printJSON(map[string]any{"semantic": sem, "edges": edges})
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.AddCommand(queryFunctionCmd, queryNodeCmd, queryNeighborhoodCmd, querySearchCmd, querySemanticCmd)
	queryNeighborhoodCmd.Flags().IntVar(&queryNeighborhoodDepth, "depth", 1, "number of hops to walk outward")
}
