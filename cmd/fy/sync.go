package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/faceyourself/faceyourself/internal/connectivity"
	"github.com/faceyourself/faceyourself/internal/engine"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Drain the offline queue once",
	Long: `Run one drain pass against the remote store and exit.

Operations still inside their retry backoff are skipped unless --force
is given.

Example usage:
  fy sync             # drain ready operations
  fy sync --force     # attempt everything, ignoring backoff`,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		logger := newLogger("[fy] ")

		local, queue, err := openLocal(logger)
		if err != nil {
			return err
		}
		defer local.Close()

		before := queue.Count()
		if before == 0 {
			fmt.Println("Nothing queued")
			return nil
		}

		store, err := openRemote(logger)
		if err != nil {
			return err
		}
		defer store.Close()

		moncfg := connectivity.DefaultConfig()
		moncfg.Logger = logger
		moncfg.Probe = store.Ping
		monitor := connectivity.New(moncfg)

		ecfg := engine.DefaultConfig()
		ecfg.Logger = logger
		eng := engine.New(queue, store, monitor, ecfg)

		if force {
			err = eng.ForceSync(cmd.Context())
		} else {
			err = eng.Sync(cmd.Context())
		}
		if err != nil {
			return err
		}

		after := queue.Count()
		fmt.Printf("Synced %d operation(s), %d remaining\n", before-after, after)
		if after > 0 && eng.Status() == engine.StatusError {
			return fmt.Errorf("%d operation(s) failed to sync", after)
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolP("force", "f", false, "Ignore retry backoff")
	rootCmd.AddCommand(syncCmd)
}
