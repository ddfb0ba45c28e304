package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.RemoteDriver != "postgres" {
		t.Errorf("expected postgres default driver, got %s", cfg.RemoteDriver)
	}
	if cfg.StatusAddr != "localhost:7450" {
		t.Errorf("unexpected default status addr: %s", cfg.StatusAddr)
	}
	if cfg.QuiescentDelay != 3*time.Second {
		t.Errorf("unexpected default quiescent delay: %s", cfg.QuiescentDelay)
	}
	if cfg.DataDir == "" {
		t.Error("expected a default data dir")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
remote_driver: mongo
remote_dsn: mongodb://localhost:27017
status_addr: localhost:9999
quiescent_delay: 5s
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.RemoteDriver != "mongo" {
		t.Errorf("expected mongo, got %s", cfg.RemoteDriver)
	}
	if cfg.RemoteDSN != "mongodb://localhost:27017" {
		t.Errorf("dsn not loaded: %s", cfg.RemoteDSN)
	}
	if cfg.QuiescentDelay != 5*time.Second {
		t.Errorf("expected 5s, got %s", cfg.QuiescentDelay)
	}
	// Defaults still apply for unset keys.
	if cfg.ProbeInterval != 30*time.Second {
		t.Errorf("expected default probe interval, got %s", cfg.ProbeInterval)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FY_REMOTE_DSN", "postgres://env-host/db")
	t.Setenv("FY_USER_ID", "env-user")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.RemoteDSN != "postgres://env-host/db" {
		t.Errorf("env dsn not applied: %s", cfg.RemoteDSN)
	}
	if cfg.UserID != "env-user" {
		t.Errorf("env user not applied: %s", cfg.UserID)
	}
}

func TestLocalStorePath(t *testing.T) {
	cfg := &Config{DataDir: "/tmp/fy"}
	if got := cfg.LocalStorePath(); got != filepath.Join("/tmp/fy", "local.db") {
		t.Errorf("unexpected store path: %s", got)
	}
}
