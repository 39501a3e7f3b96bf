package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/snowdamiz/lmlang/graph"
	"github.com/snowdamiz/lmlang/interp"
	"github.com/snowdamiz/lmlang/propcheck"
)

var (
	propTestFn         string
	propTestIterations uint32
	propTestSeed       uint64
	propTestTrace      bool
	propTestSeedsFile  string
)

var propertyTestCmd = &cobra.Command{
	Use:   "property-test [program]",
	Short: "Run randomized property testing against a function (spec.md §4.6/§6 property_test)",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		if propTestFn == "" {
			return fmt.Errorf("--fn is required")
		}
		fn, err := strconv.ParseUint(propTestFn, 10, 32)
		if err != nil {
			return err
		}

		var seeds [][]interp.Value
		if propTestSeedsFile != "" {
			raw, err := os.ReadFile(propTestSeedsFile)
			if err != nil {
				return fmt.Errorf("read seeds file: %w", err)
			}
			if err := json.Unmarshal(raw, &seeds); err != nil {
				return fmt.Errorf("parse seeds file as a JSON array of argument arrays: %w", err)
			}
		}

		report, err := eng.PropertyTest(args[0], propcheck.Config{
			Function:      graph.FunctionId(fn),
			Seeds:         seeds,
			Iterations:    propTestIterations,
			RandomSeed:    propTestSeed,
			TraceFailures: propTestTrace,
		})
		if err != nil {
			return err
		}
		return printJSON(report)
	},
}

func init() {
	rootCmd.AddCommand(propertyTestCmd)
	propertyTestCmd.Flags().StringVar(&propTestFn, "fn", "", "function id to test (required)")
	propertyTestCmd.Flags().Uint32Var(&propTestIterations, "iterations", 100, "number of randomly generated cases to run")
	propertyTestCmd.Flags().Uint64Var(&propTestSeed, "seed", 1, "random seed for generated cases")
	propertyTestCmd.Flags().BoolVar(&propTestTrace, "trace-failures", false, "record an execution trace for each failing case")
	propertyTestCmd.Flags().StringVar(&propTestSeedsFile, "seeds-file", "", "path to a JSON array of explicit seed argument arrays")
}
