// Package connectivity tracks whether the remote store is reachable.
//
// The monitor is event-driven: transports report the outcome of their
// remote calls through SetOnline, and interested components subscribe to
// transitions. An optional probe ticker provides a polling fallback for
// deployments where no traffic would otherwise notice a recovery.
package connectivity

import (
	"context"
	"log"
	"os"
	"sync"
	"time"
)

// Probe checks remote reachability, returning nil when the remote
// answers. Typically this is the remote store's Ping.
type Probe func(ctx context.Context) error

// Listener is invoked on every online/offline transition. Listeners are
// called from the reporting goroutine and must not block.
type Listener func(online bool)

// Config holds monitor configuration.
type Config struct {
	// Probe used for the initial sample and the polling fallback.
	// Optional; without it the monitor is purely event-driven.
	Probe Probe

	// ProbeInterval is how often to run the polling fallback.
	// Zero disables polling; transitions then come only from SetOnline.
	ProbeInterval time.Duration

	// ProbeTimeout bounds a single probe attempt (default: 5s).
	ProbeTimeout time.Duration

	// AssumeOnline is the initial state when no Probe is configured.
	AssumeOnline bool

	// Logger for monitor activity (default: stderr logger).
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults: event-driven only, assumed
// online at startup, matching the browser's initial navigator.onLine.
func DefaultConfig() *Config {
	return &Config{
		ProbeTimeout: 5 * time.Second,
		AssumeOnline: true,
		Logger:       log.New(os.Stderr, "[connectivity] ", log.LstdFlags),
	}
}

// Monitor holds the process-wide connectivity state.
type Monitor struct {
	cfg *Config

	mu        sync.Mutex
	online    bool
	listeners map[int]Listener
	nextID    int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a monitor and samples connectivity once: via the probe if
// one is configured, otherwise from cfg.AssumeOnline.
func New(cfg *Config) *Monitor {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[connectivity] ", log.LstdFlags)
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}

	m := &Monitor{
		cfg:       cfg,
		online:    cfg.AssumeOnline,
		listeners: make(map[int]Listener),
	}

	if cfg.Probe != nil {
		m.online = m.probeOnce() == nil
	}
	return m
}

// Online returns the current connectivity state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// SetOnline reports an observed connectivity state. Repeated reports of
// the current state are ignored; transitions notify all listeners.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	listeners := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()

	if online {
		m.cfg.Logger.Println("Connectivity restored")
	} else {
		m.cfg.Logger.Println("Connectivity lost")
	}

	for _, l := range listeners {
		l(online)
	}
}

// Notify registers a listener for transitions and returns a function
// that unregisters it.
func (m *Monitor) Notify(l Listener) (cancel func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.listeners[id] = l

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// Start launches the polling fallback if both a probe and an interval
// are configured. Safe to call when polling is disabled.
func (m *Monitor) Start() {
	if m.cfg.Probe == nil || m.cfg.ProbeInterval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.cfg.ProbeInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.SetOnline(m.probeOnce() == nil)
			}
		}
	}()
}

// Stop halts the polling fallback and waits for it to exit.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	m.wg.Wait()
	m.cancel = nil
}

// probeOnce runs a single bounded probe attempt.
func (m *Monitor) probeOnce() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ProbeTimeout)
	defer cancel()
	return m.cfg.Probe(ctx)
}
