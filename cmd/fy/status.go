package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running daemon's sync status",
	Long: `Query the status API of a running fy serve daemon.

Example usage:
  fy status
  fy status --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		client := &http.Client{Timeout: 5 * time.Second}
		resp, err := client.Get(fmt.Sprintf("http://%s/api/status", cfg.StatusAddr))
		if err != nil {
			return fmt.Errorf("daemon not reachable at %s (is fy serve running?): %w", cfg.StatusAddr, err)
		}
		defer resp.Body.Close()

		var msg struct {
			Status  string `json:"status"`
			Online  bool   `json:"online"`
			Pending int    `json:"pending"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
			return fmt.Errorf("failed to decode status response: %w", err)
		}

		if asJSON {
			out, _ := json.MarshalIndent(msg, "", "  ")
			fmt.Println(string(out))
			return nil
		}

		fmt.Printf("Status:  %s\n", msg.Status)
		if msg.Online {
			fmt.Println("Remote:  online")
		} else {
			fmt.Println("Remote:  offline")
		}
		fmt.Printf("Pending: %d operation(s)\n", msg.Pending)
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("json", false, "Output as JSON")
	rootCmd.AddCommand(statusCmd)
}
