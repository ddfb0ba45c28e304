package connectivity

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"
)

func quietConfig() *Config {
	cfg := DefaultConfig()
	cfg.Logger = log.New(io.Discard, "", 0)
	return cfg
}

func TestMonitorInitialState(t *testing.T) {
	cfg := quietConfig()
	cfg.AssumeOnline = true
	if m := New(cfg); !m.Online() {
		t.Error("expected monitor to start online")
	}

	cfg = quietConfig()
	cfg.AssumeOnline = false
	if m := New(cfg); m.Online() {
		t.Error("expected monitor to start offline")
	}
}

func TestMonitorInitialProbe(t *testing.T) {
	cfg := quietConfig()
	cfg.AssumeOnline = true
	cfg.Probe = func(ctx context.Context) error {
		return errors.New("unreachable")
	}

	m := New(cfg)
	if m.Online() {
		t.Error("expected failing probe to override AssumeOnline")
	}
}

func TestMonitorTransitions(t *testing.T) {
	m := New(quietConfig())

	var mu sync.Mutex
	var events []bool
	cancel := m.Notify(func(online bool) {
		mu.Lock()
		events = append(events, online)
		mu.Unlock()
	})
	defer cancel()

	m.SetOnline(true) // already online, no event
	m.SetOnline(false)
	m.SetOnline(false) // duplicate, no event
	m.SetOnline(true)

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 {
		t.Fatalf("expected 2 transition events, got %d: %v", len(events), events)
	}
	if events[0] != false || events[1] != true {
		t.Errorf("expected [false true], got %v", events)
	}
}

func TestMonitorNotifyCancel(t *testing.T) {
	m := New(quietConfig())

	var mu sync.Mutex
	count := 0
	cancel := m.Notify(func(online bool) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	m.SetOnline(false)
	cancel()
	m.SetOnline(true)

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("expected 1 event after cancel, got %d", count)
	}
}

func TestMonitorProbeLoop(t *testing.T) {
	var mu sync.Mutex
	fail := true

	cfg := quietConfig()
	cfg.ProbeInterval = 10 * time.Millisecond
	cfg.Probe = func(ctx context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		if fail {
			return errors.New("unreachable")
		}
		return nil
	}

	m := New(cfg)
	if m.Online() {
		t.Fatal("expected initial probe to report offline")
	}

	m.Start()
	defer m.Stop()

	mu.Lock()
	fail = false
	mu.Unlock()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.Online() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("probe loop did not detect recovery")
}

func TestMonitorStopIdempotent(t *testing.T) {
	m := New(quietConfig())
	m.Start() // polling disabled, no-op
	m.Stop()
	m.Stop()
}
