package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List operations waiting in the offline queue",
	Long: `List the operations queued while the remote store was unreachable.

Example usage:
  fy pending
  fy pending --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		logger := newLogger("[fy] ")

		local, queue, err := openLocal(logger)
		if err != nil {
			return err
		}
		defer local.Close()

		ops := queue.List()
		if asJSON {
			out, err := json.MarshalIndent(ops, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		}

		if len(ops) == 0 {
			fmt.Println("Nothing queued")
			return nil
		}

		now := time.Now()
		fmt.Printf("%d operation(s) queued:\n\n", len(ops))
		for _, op := range ops {
			period := ""
			switch {
			case op.Daily != nil:
				period = op.Daily.Date
			case op.Weekly != nil:
				period = "week of " + op.Weekly.WeekStart
			}
			fmt.Printf("  %-12s %-20s queued %s", op.Type, period, op.Timestamp.Local().Format("2006-01-02 15:04"))
			if op.Attempts > 0 {
				if op.Ready(now) {
					fmt.Printf("  (%d failed attempt(s), ready to retry)", op.Attempts)
				} else {
					fmt.Printf("  (%d failed attempt(s), retry after %s)", op.Attempts, op.NextAttemptAt.Local().Format("15:04:05"))
				}
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	pendingCmd.Flags().Bool("json", false, "Output as JSON")
	rootCmd.AddCommand(pendingCmd)
}
