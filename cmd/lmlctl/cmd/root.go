package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/snowdamiz/lmlang/engine"
)

var (
	storageDSN string
	cacheDir   string
	verbose    bool

	eng *engine.Engine
)

var rootCmd = &cobra.Command{
	Use:   "lmlctl",
	Short: "Operator CLI for the lmlang Program Graph engine",
	Long: `lmlctl drives an embedded lmlang engine: create programs, apply
mutation batches, simulate and compile functions, and inspect
verification/dirty status, all from the command line.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(c *cobra.Command, args []string) error {
		cfg := engine.DefaultConfig()
		cfg.StorageDSN = storageDSN
		if cacheDir != "" {
			cfg.CacheDir = cacheDir
		}

		var logger *zap.Logger
		var err error
		if verbose {
			logger, err = zap.NewDevelopment()
		} else {
			logger = zap.NewNop()
		}
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}

		eng, err = engine.New(cfg, logger)
		return err
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storageDSN, "storage", "", "storage DSN (empty = in-memory, file path or libsql:// URL otherwise)")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "incremental compile object cache directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable development-mode structured logging")
}

// printJSON writes v to stdout as indented JSON, the uniform output
// shape every subcommand below uses.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
