// Package engine drains the pending-operation queue to the remote
// store and tracks the externally visible sync status.
//
// The engine runs one drain pass at a time. A pass attempts every
// queued operation whose backoff has elapsed, removes the ones that
// succeed, and leaves failures queued for the next pass. Status moves
// through syncing to synced or error, then decays back to idle after a
// short quiet period. While the connectivity monitor reports offline,
// the engine refuses to start a pass and reports offline.
package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/faceyourself/faceyourself/internal/connectivity"
	"github.com/faceyourself/faceyourself/internal/pending"
	"github.com/faceyourself/faceyourself/internal/remote"
	"github.com/faceyourself/faceyourself/internal/schema"
)

// Status is the externally visible sync state.
type Status string

const (
	// StatusIdle means no sync activity and nothing to report.
	StatusIdle Status = "idle"

	// StatusSyncing means a drain pass is in progress.
	StatusSyncing Status = "syncing"

	// StatusSynced means the last pass completed with nothing left
	// queued. Decays to idle after the quiescent delay.
	StatusSynced Status = "synced"

	// StatusError means the last pass left operations queued.
	// Decays to idle after the quiescent delay.
	StatusError Status = "error"

	// StatusOffline means the remote is unreachable.
	StatusOffline Status = "offline"
)

// Config holds engine configuration.
type Config struct {
	// QuiescentDelay is how long synced or error is shown before
	// decaying to idle (default: 3s).
	QuiescentDelay time.Duration

	// AttemptTimeout bounds a single operation's remote call
	// (default: 10s).
	AttemptTimeout time.Duration

	// Logger for engine activity (default: stderr logger).
	Logger *log.Logger
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		QuiescentDelay: 3 * time.Second,
		AttemptTimeout: 10 * time.Second,
		Logger:         log.New(os.Stderr, "[sync] ", log.LstdFlags),
	}
}

// Engine coordinates drain passes between the queue and the remote store.
type Engine struct {
	queue   *pending.Queue
	store   remote.Store
	monitor *connectivity.Monitor
	cfg     *Config

	mu       sync.Mutex
	status   Status
	inFlight bool
	decayGen int
	subs     map[int]chan Status
	nextSub  int

	unnotify func()
}

// New creates an engine. The initial status is idle, or offline when
// the monitor already reports the remote unreachable.
func New(queue *pending.Queue, store remote.Store, monitor *connectivity.Monitor, cfg *Config) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.QuiescentDelay == 0 {
		cfg.QuiescentDelay = 3 * time.Second
	}
	if cfg.AttemptTimeout == 0 {
		cfg.AttemptTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}

	status := StatusIdle
	if !monitor.Online() {
		status = StatusOffline
	}

	return &Engine{
		queue:   queue,
		store:   store,
		monitor: monitor,
		cfg:     cfg,
		status:  status,
		subs:    make(map[int]chan Status),
	}
}

// Start subscribes the engine to connectivity transitions. Going
// offline switches the status immediately; coming back online resets
// backoff and kicks off a drain pass.
func (e *Engine) Start() {
	e.unnotify = e.monitor.Notify(func(online bool) {
		if !online {
			e.mu.Lock()
			e.decayGen++
			e.setStatusLocked(StatusOffline)
			e.mu.Unlock()
			return
		}

		e.mu.Lock()
		e.setStatusLocked(StatusIdle)
		e.mu.Unlock()

		if err := e.queue.ResetBackoff(); err != nil {
			e.cfg.Logger.Printf("Failed to reset backoff on reconnect: %v", err)
		}
		e.TriggerAsync()
	})
}

// Stop unsubscribes from connectivity transitions.
func (e *Engine) Stop() {
	if e.unnotify != nil {
		e.unnotify()
		e.unnotify = nil
	}
}

// Status returns the current sync status.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Pending returns the number of queued operations.
func (e *Engine) Pending() int {
	return e.queue.Count()
}

// Subscribe returns a channel of status transitions and a cancel
// function. Slow consumers miss updates rather than blocking the
// engine.
func (e *Engine) Subscribe() (<-chan Status, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextSub
	e.nextSub++
	ch := make(chan Status, 16)
	e.subs[id] = ch

	return ch, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.subs, id)
	}
}

// TriggerAsync starts a drain pass in the background. If a pass is
// already running the call is a no-op.
func (e *Engine) TriggerAsync() {
	e.triggerAsync(false)
}

// ForceAsync starts a background drain pass that ignores backoff.
func (e *Engine) ForceAsync() {
	e.triggerAsync(true)
}

func (e *Engine) triggerAsync(force bool) {
	go func() {
		if err := e.sync(context.Background(), force); err != nil {
			e.cfg.Logger.Printf("Background sync failed: %v", err)
		}
	}()
}

// Sync runs one drain pass, honoring per-operation backoff.
func (e *Engine) Sync(ctx context.Context) error {
	return e.sync(ctx, false)
}

// ForceSync runs one drain pass attempting every queued operation
// regardless of backoff.
func (e *Engine) ForceSync(ctx context.Context) error {
	return e.sync(ctx, true)
}

func (e *Engine) sync(ctx context.Context, force bool) error {
	if !e.monitor.Online() {
		e.mu.Lock()
		e.setStatusLocked(StatusOffline)
		e.mu.Unlock()
		return nil
	}

	e.mu.Lock()
	if e.inFlight {
		e.mu.Unlock()
		return nil
	}
	e.inFlight = true
	e.decayGen++
	e.setStatusLocked(StatusSyncing)
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.inFlight = false
		e.mu.Unlock()
	}()

	ops := e.queue.List()
	if len(ops) == 0 {
		e.finish(StatusSynced)
		return nil
	}

	e.cfg.Logger.Printf("Draining %d pending operation(s)", len(ops))

	now := time.Now()
	var syncedIDs, failedIDs []string
	for _, op := range ops {
		if !force && !op.Ready(now) {
			continue
		}
		if !e.monitor.Online() {
			break
		}

		if err := e.apply(ctx, op); err != nil {
			e.cfg.Logger.Printf("Operation %s (%s) failed: %v", op.ID, op.Type, err)
			failedIDs = append(failedIDs, op.ID)
			if remote.IsUnavailable(err) {
				e.monitor.SetOnline(false)
				break
			}
			continue
		}
		syncedIDs = append(syncedIDs, op.ID)
	}

	if err := e.queue.Remove(syncedIDs); err != nil {
		e.finish(StatusError)
		return fmt.Errorf("failed to remove synced operations: %w", err)
	}
	if err := e.queue.MarkFailed(failedIDs, now); err != nil {
		e.finish(StatusError)
		return fmt.Errorf("failed to record failed operations: %w", err)
	}

	if len(syncedIDs) > 0 {
		e.cfg.Logger.Printf("Synced %d operation(s), %d failed", len(syncedIDs), len(failedIDs))
	}

	switch {
	case !e.monitor.Online():
		e.mu.Lock()
		e.setStatusLocked(StatusOffline)
		e.mu.Unlock()
	case e.queue.Count() > 0:
		// Failed or still backed off, either way the queue is not drained.
		e.finish(StatusError)
	default:
		e.finish(StatusSynced)
	}
	return nil
}

// apply sends one queued operation to the remote store. Operation
// types the engine does not recognize are logged and treated as
// applied, so a stale queue entry cannot wedge the drain forever.
func (e *Engine) apply(ctx context.Context, op pending.Op) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.AttemptTimeout)
	defer cancel()

	switch op.Type {
	case pending.TypeDailyLog:
		if op.Daily == nil {
			return fmt.Errorf("daily log operation %s has no payload", op.ID)
		}
		return e.store.UpsertDailyLog(ctx, schema.DailyLog{
			UserID:    op.UserID,
			Date:      op.Daily.Date,
			Tasks:     op.Daily.Tasks,
			CreatedAt: op.Timestamp,
		})
	case pending.TypeWeeklyLog:
		if op.Weekly == nil {
			return fmt.Errorf("weekly log operation %s has no payload", op.ID)
		}
		return e.store.UpsertWeeklyLog(ctx, schema.WeeklyLog{
			UserID:    op.UserID,
			WeekStart: op.Weekly.WeekStart,
			Tasks:     op.Weekly.Tasks,
			CreatedAt: op.Timestamp,
		})
	default:
		e.cfg.Logger.Printf("Skipping unrecognized operation type %q (id %s)", op.Type, op.ID)
		return nil
	}
}

// finish publishes the pass outcome and arms the decay back to idle.
func (e *Engine) finish(status Status) {
	e.mu.Lock()
	e.setStatusLocked(status)
	e.decayGen++
	gen := e.decayGen
	e.mu.Unlock()

	time.AfterFunc(e.cfg.QuiescentDelay, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if gen != e.decayGen || e.inFlight {
			return
		}
		if e.status == StatusSynced || e.status == StatusError {
			e.setStatusLocked(StatusIdle)
		}
	})
}

// setStatusLocked updates the status and notifies subscribers.
// Callers must hold e.mu.
func (e *Engine) setStatusLocked(status Status) {
	if e.status == status {
		return
	}
	e.status = status
	for _, ch := range e.subs {
		select {
		case ch <- status:
		default:
		}
	}
}
