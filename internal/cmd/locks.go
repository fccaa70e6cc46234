// internal/cmd/locks.go
package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var locksCmd = &cobra.Command{
	Use:   "locks",
	Short: "Inspect and release edit locks",
}

var locksShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current locks of a document as JSON",
	Args:  cobra.NoArgs,
	RunE:  runLocksShow,
}

var locksReleaseUserCmd = &cobra.Command{
	Use:   "release-user",
	Short: "Release every lock a user holds, as a logout would",
	Args:  cobra.NoArgs,
	RunE:  runLocksReleaseUser,
}

var (
	locksDocument int64
	locksUser     int64
)

func init() {
	rootCmd.AddCommand(locksCmd)
	locksCmd.AddCommand(locksShowCmd, locksReleaseUserCmd)

	locksShowCmd.Flags().Int64VarP(&locksDocument, "document", "d", 0, "document id")
	_ = locksShowCmd.MarkFlagRequired("document")

	locksReleaseUserCmd.Flags().Int64VarP(&locksUser, "user", "u", 0, "user id")
	_ = locksReleaseUserCmd.MarkFlagRequired("user")
}

func runLocksShow(cmd *cobra.Command, _ []string) error {
	rt, err := newRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	set, err := rt.coord.Locks(cmd.Context(), locksDocument)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(set)
}

func runLocksReleaseUser(cmd *cobra.Command, _ []string) error {
	if locksUser <= 0 {
		return fmt.Errorf("user id must be positive, got %d", locksUser)
	}

	rt, err := newRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.coord.Logout(cmd.Context(), locksUser); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "released all locks of user %d\n", locksUser)
	return nil
}
