package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/snowdamiz/lmlang/graph"
	"github.com/snowdamiz/lmlang/interp"
)

var (
	simulateFn        string
	simulateInput     string
	simulateInputFile string
	simulateTrace     bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate [program]",
	Short: "Run a function to completion against the interpreter (spec.md §4.10/§6 simulate)",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		if simulateFn == "" {
			return fmt.Errorf("--fn is required")
		}
		fn, err := strconv.ParseUint(simulateFn, 10, 32)
		if err != nil {
			return err
		}

		raw := simulateInput
		if simulateInputFile != "" {
			b, err := os.ReadFile(simulateInputFile)
			if err != nil {
				return fmt.Errorf("read input file: %w", err)
			}
			raw = string(b)
		}
		var inputs []interp.Value
		if raw != "" {
			if err := json.Unmarshal([]byte(raw), &inputs); err != nil {
				return fmt.Errorf("parse --input as a JSON array of values: %w", err)
			}
		}

		result, err := eng.Simulate(args[0], graph.FunctionId(fn), inputs, simulateTrace)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringVar(&simulateFn, "fn", "", "function id to run (required)")
	simulateCmd.Flags().StringVar(&simulateInput, "input", "", "JSON array of interp.Value arguments")
	simulateCmd.Flags().StringVar(&simulateInputFile, "input-file", "", "path to a JSON array of interp.Value arguments")
	simulateCmd.Flags().BoolVar(&simulateTrace, "trace", false, "record a step-by-step execution trace")
}
