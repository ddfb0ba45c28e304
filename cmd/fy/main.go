// Command fy runs the Face Yourself sync daemon and its companion
// commands for inspecting and draining the offline queue.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/faceyourself/faceyourself/internal/config"
	"github.com/faceyourself/faceyourself/internal/kvstore"
	"github.com/faceyourself/faceyourself/internal/pending"
	"github.com/faceyourself/faceyourself/internal/remote"

	// Registered remote store drivers.
	_ "github.com/faceyourself/faceyourself/internal/remote/mongo"
	_ "github.com/faceyourself/faceyourself/internal/remote/postgres"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "fy",
	Short: "Offline-first sync engine for Face Yourself logs",
	Long: `fy keeps daily and weekly productivity logs in sync with a remote store.

Writes made while the remote is unreachable land in a local queue and are
drained automatically once connectivity returns. The serve command runs the
sync daemon with its status API; sync, status, and pending operate on the
same local state from the command line.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the daemon logger, rotating through lumberjack when
// a log file is configured.
func newLogger(prefix string) *log.Logger {
	var out io.Writer = os.Stderr
	if cfg.LogFile != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     30, // days
			Compress:   true,
		}
	}
	return log.New(out, prefix, log.LstdFlags)
}

// openLocal opens the local sqlite store and its pending queue.
func openLocal(logger *log.Logger) (*kvstore.Store, *pending.Queue, error) {
	store, err := kvstore.Open(cfg.LocalStorePath(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open local store: %w", err)
	}
	return store, pending.NewQueue(store, logger), nil
}

// openRemote opens the configured remote store driver.
func openRemote(logger *log.Logger) (remote.Store, error) {
	if cfg.RemoteDSN == "" {
		return nil, fmt.Errorf("remote_dsn is not configured (set FY_REMOTE_DSN or the config file)")
	}
	return remote.Open(&remote.Config{
		Driver:   cfg.RemoteDriver,
		DSN:      cfg.RemoteDSN,
		Database: cfg.RemoteDatabase,
		Logger:   logger,
	})
}
