package cmd

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/snowdamiz/lmlang/concurrency"
	"github.com/snowdamiz/lmlang/graph"
)

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Acquire, release, and inspect function locks (spec.md §4.9 Concurrency Manager)",
}

func parseFunctionIds(raw []string) ([]graph.FunctionId, error) {
	out := make([]graph.FunctionId, 0, len(raw))
	for _, s := range raw {
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return nil, err
		}
		out = append(out, graph.FunctionId(n))
	}
	return out, nil
}

var (
	lockAgent string
	lockWrite bool
	lockTTL   time.Duration
)

var lockAcquireCmd = &cobra.Command{
	Use:   "acquire [program] [function-id...]",
	Short: "Acquire locks on one or more functions on behalf of an agent",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(c *cobra.Command, args []string) error {
		ids, err := parseFunctionIds(args[1:])
		if err != nil {
			return err
		}
		mode := concurrency.Read
		if lockWrite {
			mode = concurrency.Write
		}
		if err := eng.AcquireLock(args[0], concurrency.AgentId(lockAgent), ids, mode, lockTTL); err != nil {
			return err
		}
		return printJSON(map[string]any{"acquired": ids, "mode": mode.String()})
	},
}

var lockReleaseCmd = &cobra.Command{
	Use:   "release [program] [function-id...]",
	Short: "Release an agent's locks on one or more functions",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(c *cobra.Command, args []string) error {
		ids, err := parseFunctionIds(args[1:])
		if err != nil {
			return err
		}
		return eng.ReleaseLock(args[0], concurrency.AgentId(lockAgent), ids)
	},
}

var lockListCmd = &cobra.Command{
	Use:   "list [program]",
	Short: "List every currently live lock on a program",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		locks, err := eng.ListLocks(args[0])
		if err != nil {
			return err
		}
		return printJSON(locks)
	},
}

var lockRegisterCmd = &cobra.Command{
	Use:   "register-agent [program]",
	Short: "Mint a fresh agent id scoped to a program's lock table",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		id, err := eng.RegisterLockAgent(args[0])
		if err != nil {
			return err
		}
		return printJSON(map[string]string{"agent": string(id)})
	},
}

var lockSweepCmd = &cobra.Command{
	Use:   "sweep [program]",
	Short: "Force an immediate TTL sweep of a program's lock table",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		n, err := eng.SweepLocks(args[0], time.Now())
		if err != nil {
			return err
		}
		return printJSON(map[string]int{"swept": n})
	},
}

func init() {
	rootCmd.AddCommand(lockCmd)
	lockCmd.AddCommand(lockAcquireCmd, lockReleaseCmd, lockListCmd, lockRegisterCmd, lockSweepCmd)

	for _, c := range []*cobra.Command{lockAcquireCmd, lockReleaseCmd} {
		c.Flags().StringVar(&lockAgent, "agent", "", "agent id requesting/releasing the lock (required)")
	}
	lockAcquireCmd.Flags().BoolVar(&lockWrite, "write", false, "request write mode instead of read")
	lockAcquireCmd.Flags().DurationVar(&lockTTL, "ttl", 0, "lock lease duration (0 = engine default)")
}
