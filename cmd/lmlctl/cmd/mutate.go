package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/snowdamiz/lmlang/compile"
	"github.com/snowdamiz/lmlang/graph"
	"github.com/snowdamiz/lmlang/mutation"
)

var (
	mutateFile    string
	mutateDryRun  bool
	mutateAgentID string
)

// batchFile is the on-disk shape `mutate apply` reads: the batch
// itself plus the optional optimistic-concurrency expected hashes,
// keyed by function id as a decimal string (JSON object keys are
// always strings).
type batchFile struct {
	Mutations    []mutation.Mutation `json:"mutations"`
	ExpectedHash map[string]string   `json:"expected_hash,omitempty"`
}

var mutateCmd = &cobra.Command{
	Use:   "mutate [program]",
	Short: "Apply a batch of mutations from a JSON file (spec.md §6 apply_mutations)",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		if mutateFile == "" {
			return fmt.Errorf("--file is required")
		}
		raw, err := os.ReadFile(mutateFile)
		if err != nil {
			return fmt.Errorf("read batch file: %w", err)
		}
		var bf batchFile
		if err := json.Unmarshal(raw, &bf); err != nil {
			return fmt.Errorf("parse batch file: %w", err)
		}

		expected := map[graph.FunctionId]compile.Hash{}
		for k, v := range bf.ExpectedHash {
			var fn uint32
			if _, err := fmt.Sscanf(k, "%d", &fn); err != nil {
				return fmt.Errorf("invalid expected_hash key %q: %w", k, err)
			}
			var h compile.Hash
			if err := h.UnmarshalJSON([]byte(`"` + v + `"`)); err != nil {
				return fmt.Errorf("invalid expected_hash value for %q: %w", k, err)
			}
			expected[graph.FunctionId(fn)] = h
		}

		result, err := eng.ApplyMutations(args[0], bf.Mutations, mutation.Options{
			DryRun:       mutateDryRun,
			ExpectedHash: expected,
			AgentId:      mutateAgentID,
		})
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

func init() {
	rootCmd.AddCommand(mutateCmd)
	mutateCmd.Flags().StringVar(&mutateFile, "file", "", "path to a JSON mutation batch file (required)")
	mutateCmd.Flags().BoolVar(&mutateDryRun, "dry-run", false, "stage and type-check without committing")
	mutateCmd.Flags().StringVar(&mutateAgentID, "agent", "", "agent id applying this batch")
}
