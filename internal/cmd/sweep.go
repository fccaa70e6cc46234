// internal/cmd/sweep.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove expired locks once and exit",
	Long: `Sweep deletes every lock older than locks.timeout from the configured
store. It does nothing when the timeout is 0.`,
	Args: cobra.NoArgs,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	rt, err := newRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	if rt.coord.LockTimeout() <= 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "lock timeout is 0, nothing expires")
		return nil
	}

	removed, err := rt.coord.PurgeExpired(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired lock(s)\n", removed)
	return nil
}
