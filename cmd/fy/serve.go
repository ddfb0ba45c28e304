package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/faceyourself/faceyourself/internal/auth"
	"github.com/faceyourself/faceyourself/internal/connectivity"
	"github.com/faceyourself/faceyourself/internal/engine"
	"github.com/faceyourself/faceyourself/internal/logs"
	"github.com/faceyourself/faceyourself/internal/statusd"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync daemon with its status API",
	Long: `Run the sync daemon.

The daemon watches connectivity to the remote store, drains the offline
queue whenever the remote is reachable, and serves the local status API:

  GET  /api/status        current sync status
  POST /api/sync          trigger a drain pass (?force=1 ignores backoff)
  GET  /api/logs/daily    list daily logs
  POST /api/logs/daily    save a daily log
  GET  /api/logs/weekly   list weekly logs
  POST /api/logs/weekly   save a weekly log
  /ws                     WebSocket status stream

With firebase_credentials configured, log routes require a Firebase
bearer token. Without it, requests run as the configured user_id.

Example usage:
  fy serve                            # listen on localhost:7450
  FY_STATUS_ADDR=:9000 fy serve       # custom listen address`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger("[fy] ")

		local, queue, err := openLocal(logger)
		if err != nil {
			return err
		}
		defer local.Close()

		store, err := openRemote(logger)
		if err != nil {
			return err
		}
		defer store.Close()

		moncfg := connectivity.DefaultConfig()
		moncfg.Logger = logger
		moncfg.Probe = store.Ping
		moncfg.ProbeInterval = cfg.ProbeInterval
		monitor := connectivity.New(moncfg)
		monitor.Start()
		defer monitor.Stop()

		ecfg := engine.DefaultConfig()
		ecfg.Logger = logger
		if cfg.QuiescentDelay > 0 {
			ecfg.QuiescentDelay = cfg.QuiescentDelay
		}
		eng := engine.New(queue, store, monitor, ecfg)
		eng.Start()
		defer eng.Stop()

		scfg := &statusd.Config{
			Addr:   cfg.StatusAddr,
			Logger: logger,
		}
		if cfg.FirebaseCredentials != "" {
			verifier, err := auth.NewFirebaseVerifier(cmd.Context(), cfg.FirebaseCredentials)
			if err != nil {
				return err
			}
			scfg.Verifier = verifier
		} else if cfg.UserID != "" {
			scfg.DefaultUser = &auth.User{ID: cfg.UserID}
		}

		repo := logs.NewRepository(store, queue, monitor, auth.ContextProvider{}, eng, &logs.Config{Logger: logger})

		server := statusd.NewServer(eng, monitor, repo, scfg)
		if err := server.Start(); err != nil {
			return err
		}

		fmt.Printf("Sync daemon started on http://%s\n", server.Addr())
		fmt.Printf("WebSocket endpoint: ws://%s/ws\n", server.Addr())
		fmt.Println("\nPress Ctrl+C to stop...")

		// Drain anything queued from previous offline sessions.
		eng.TriggerAsync()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		<-ctx.Done()

		fmt.Println("\nShutting down sync daemon...")
		if err := server.Stop(); err != nil {
			return err
		}

		fmt.Println("Sync daemon stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
