// Package config loads daemon and CLI configuration from a config
// file, environment variables, or defaults, in that order of
// precedence (highest last: explicit flags override everything).
//
// Environment variables use the FY_ prefix with underscores:
// FY_REMOTE_DSN, FY_STATUS_ADDR, and so on.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the resolved runtime configuration.
type Config struct {
	// DataDir holds the local sqlite store and logs.
	DataDir string `mapstructure:"data_dir"`

	// RemoteDriver names the remote store driver ("postgres", "mongo").
	RemoteDriver string `mapstructure:"remote_driver"`

	// RemoteDSN is the remote store connection string.
	RemoteDSN string `mapstructure:"remote_dsn"`

	// RemoteDatabase is the database name for drivers that need one.
	RemoteDatabase string `mapstructure:"remote_database"`

	// StatusAddr is the listen address of the status server.
	StatusAddr string `mapstructure:"status_addr"`

	// UserID identifies the CLI user when no per-request auth applies.
	UserID string `mapstructure:"user_id"`

	// FirebaseCredentials is the path to a Firebase service account
	// file. Empty disables token verification on the status server.
	FirebaseCredentials string `mapstructure:"firebase_credentials"`

	// ProbeInterval is the connectivity polling interval. Zero
	// disables polling.
	ProbeInterval time.Duration `mapstructure:"probe_interval"`

	// QuiescentDelay is how long synced/error status lingers before
	// decaying to idle.
	QuiescentDelay time.Duration `mapstructure:"quiescent_delay"`

	// LogFile receives daemon logs. Empty logs to stderr.
	LogFile string `mapstructure:"log_file"`
}

// Load reads configuration from the optional file at path (or the
// default locations when path is empty), the FY_* environment, and
// built-in defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("remote_driver", "postgres")
	v.SetDefault("remote_dsn", "")
	v.SetDefault("remote_database", "")
	v.SetDefault("status_addr", "localhost:7450")
	v.SetDefault("user_id", "")
	v.SetDefault("firebase_credentials", "")
	v.SetDefault("probe_interval", 30*time.Second)
	v.SetDefault("quiescent_delay", 3*time.Second)
	v.SetDefault("log_file", "")

	v.SetEnvPrefix("FY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(defaultDataDir())
	}

	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file in the default location is fine.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// LocalStorePath is where the offline sqlite store lives.
func (c *Config) LocalStorePath() string {
	return filepath.Join(c.DataDir, "local.db")
}

// defaultDataDir is ~/.faceyourself, falling back to the working
// directory when the home directory cannot be determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".faceyourself"
	}
	return filepath.Join(home, ".faceyourself")
}
