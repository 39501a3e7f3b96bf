package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/snowdamiz/lmlang/engine"
	"github.com/snowdamiz/lmlang/graph"
)

var (
	compileEntry      string
	compileOptLevel   int
	compileTarget     string
	compileDebugSyms  bool
	compileLink       bool
	compileExecutable string
	compileObjectPath string
	compileIncOnly    bool
)

func buildCompileOptions() (engine.CompileOptions, error) {
	if compileEntry == "" {
		return engine.CompileOptions{}, fmt.Errorf("--entry is required")
	}
	entry, err := strconv.ParseUint(compileEntry, 10, 32)
	if err != nil {
		return engine.CompileOptions{}, err
	}
	return engine.CompileOptions{
		OptLevel:     compileOptLevel,
		TargetTriple: compileTarget,
		DebugSymbols: compileDebugSyms,
		Entry:        graph.FunctionId(entry),
		Link:         compileLink,
		Executable:   compileExecutable,
		ObjectPath:   compileObjectPath,
	}, nil
}

var compileCmd = &cobra.Command{
	Use:   "compile [program]",
	Short: "Lower a program to LLVM IR and emit an object (spec.md §4.8/§6 compile)",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		opts, err := buildCompileOptions()
		if err != nil {
			return err
		}
		var result engine.CompileResult
		if compileIncOnly {
			result, err = eng.CompileIncremental(args[0], opts)
		} else {
			result, err = eng.Compile(args[0], opts)
		}
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var compileDirtyCmd = &cobra.Command{
	Use:   "dirty-status [program]",
	Short: "Show which functions are dirty relative to the last successful compile",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		status, err := eng.DirtyStatus(args[0])
		if err != nil {
			return err
		}
		return printJSON(status)
	},
}

func init() {
	rootCmd.AddCommand(compileCmd)
	compileCmd.AddCommand(compileDirtyCmd)
	compileCmd.Flags().StringVar(&compileEntry, "entry", "", "entry function id (required)")
	compileCmd.Flags().IntVar(&compileOptLevel, "opt-level", 0, "optimization level (0 = use engine default)")
	compileCmd.Flags().StringVar(&compileTarget, "target", "", "LLVM target triple (empty = use engine default)")
	compileCmd.Flags().BoolVar(&compileDebugSyms, "debug-symbols", false, "emit debug symbols")
	compileCmd.Flags().BoolVar(&compileLink, "link", false, "also link an executable from the emitted object")
	compileCmd.Flags().StringVar(&compileExecutable, "executable", "", "executable output path (with --link)")
	compileCmd.Flags().StringVar(&compileObjectPath, "object", "", "object file output path (default: lmlang_out.o in the working directory)")
	compileCmd.Flags().BoolVar(&compileIncOnly, "incremental-only", false, "fail instead of rebuilding if nothing is cached")
}
