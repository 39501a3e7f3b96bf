// Command lmlctl is the operator CLI over lmlang's engine: the one
// concrete transport kept in-tree per SPEC_FULL.md §2 item 13 (HTTP,
// the dashboard UI, and a full argument surface beyond this stay out
// of scope). It is a thin front-end — every subcommand calls a single
// engine.Engine method and marshals the result to JSON/stdout,
// mirroring the way the teacher's own cmd/morfx wraps its core
// library rather than reimplementing logic in the CLI layer.
package main

import (
	"fmt"
	"os"

	"github.com/snowdamiz/lmlang/cmd/lmlctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
