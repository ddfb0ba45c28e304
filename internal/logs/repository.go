// Package logs is the application-facing surface for daily and weekly
// logs. Reads go straight to the remote store; writes fall back to the
// pending-operation queue when the remote is offline or the write
// fails, so a save never blocks on connectivity.
package logs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/faceyourself/faceyourself/internal/auth"
	"github.com/faceyourself/faceyourself/internal/connectivity"
	"github.com/faceyourself/faceyourself/internal/pending"
	"github.com/faceyourself/faceyourself/internal/remote"
	"github.com/faceyourself/faceyourself/internal/schema"
)

const (
	// DefaultDailyLimit is how many daily logs a list returns when the
	// caller does not specify a limit.
	DefaultDailyLimit = 30

	// DefaultWeeklyLimit is the weekly equivalent.
	DefaultWeeklyLimit = 12
)

// Trigger kicks a background drain pass. Satisfied by the sync engine.
type Trigger interface {
	TriggerAsync()
}

// Config holds repository configuration.
type Config struct {
	// RemoteTimeout bounds a direct remote write or read (default: 10s).
	RemoteTimeout time.Duration

	// Logger for repository activity (default: stderr logger).
	Logger *log.Logger
}

// Repository mediates between callers, the remote store, and the
// offline queue.
type Repository struct {
	store   remote.Store
	queue   *pending.Queue
	monitor *connectivity.Monitor
	auth    auth.Provider
	trigger Trigger
	timeout time.Duration
	logger  *log.Logger
}

// NewRepository creates a repository. trigger may be nil when no sync
// engine is running (one-shot CLI commands).
func NewRepository(store remote.Store, queue *pending.Queue, monitor *connectivity.Monitor, provider auth.Provider, trigger Trigger, cfg *Config) *Repository {
	if cfg == nil {
		cfg = &Config{}
	}
	timeout := cfg.RemoteTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[logs] ", log.LstdFlags)
	}

	return &Repository{
		store:   store,
		queue:   queue,
		monitor: monitor,
		auth:    provider,
		trigger: trigger,
		timeout: timeout,
		logger:  logger,
	}
}

// SaveDailyLog persists the day's tasks for the current user. Offline
// or failed writes are queued for later sync; either way the save
// reports success once the operation is durably recorded somewhere.
func (r *Repository) SaveDailyLog(ctx context.Context, date string, tasks []schema.TaskLog) error {
	user, err := r.auth.CurrentUser(ctx)
	if err != nil {
		return err
	}

	payload := schema.DailyLogPayload{Date: date, Tasks: tasks}
	op, err := pending.NewDailyLogOp(user.ID, payload)
	if err != nil {
		return err
	}

	if !r.monitor.Online() {
		return r.queue.Enqueue(op)
	}

	wctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	err = r.store.UpsertDailyLog(wctx, schema.DailyLog{
		UserID:    user.ID,
		Date:      date,
		Tasks:     tasks,
		CreatedAt: op.Timestamp,
	})
	if err != nil {
		return r.fallback(op, err)
	}
	return nil
}

// SaveWeeklyLog persists the week's goal and focus tasks for the
// current user, with the same offline fallback as SaveDailyLog.
func (r *Repository) SaveWeeklyLog(ctx context.Context, weekStart, goal string, focusTasks []schema.TaskLog) error {
	user, err := r.auth.CurrentUser(ctx)
	if err != nil {
		return err
	}

	payload := schema.WeeklyLogPayload{
		WeekStart: weekStart,
		Tasks:     schema.WeeklyTasks{Goal: goal, FocusTasks: focusTasks},
	}
	op, err := pending.NewWeeklyLogOp(user.ID, payload)
	if err != nil {
		return err
	}

	if !r.monitor.Online() {
		return r.queue.Enqueue(op)
	}

	wctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	err = r.store.UpsertWeeklyLog(wctx, schema.WeeklyLog{
		UserID:    user.ID,
		WeekStart: payload.WeekStart,
		Tasks:     payload.Tasks,
		CreatedAt: op.Timestamp,
	})
	if err != nil {
		return r.fallback(op, err)
	}
	return nil
}

// fallback queues an operation whose direct write failed and kicks the
// engine so it retries once conditions improve.
func (r *Repository) fallback(op pending.Op, cause error) error {
	r.logger.Printf("Direct write failed, queueing %s operation: %v", op.Type, cause)
	if remote.IsUnavailable(cause) {
		r.monitor.SetOnline(false)
	}
	if err := r.queue.Enqueue(op); err != nil {
		return fmt.Errorf("write failed (%v) and could not be queued: %w", cause, err)
	}
	if r.trigger != nil {
		r.trigger.TriggerAsync()
	}
	return nil
}

// DailyLogs returns the current user's daily logs, most recent first.
// limit <= 0 applies DefaultDailyLimit. Unauthenticated callers get an
// empty list, matching a signed-out dashboard.
func (r *Repository) DailyLogs(ctx context.Context, limit int) ([]schema.DailyLog, error) {
	user, err := r.auth.CurrentUser(ctx)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			return nil, nil
		}
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultDailyLimit
	}

	rctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.store.DailyLogs(rctx, user.ID, limit)
}

// WeeklyLogs returns the current user's weekly logs, most recent first.
// limit <= 0 applies DefaultWeeklyLimit.
func (r *Repository) WeeklyLogs(ctx context.Context, limit int) ([]schema.WeeklyLog, error) {
	user, err := r.auth.CurrentUser(ctx)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			return nil, nil
		}
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultWeeklyLimit
	}

	rctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.store.WeeklyLogs(rctx, user.ID, limit)
}

// UpdateDailyLog replaces the task list of an existing log. Updates
// have no offline fallback; failures surface to the caller.
func (r *Repository) UpdateDailyLog(ctx context.Context, logID int64, tasks []schema.TaskLog) error {
	user, err := r.auth.CurrentUser(ctx)
	if err != nil {
		return err
	}

	wctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.store.UpdateDailyLog(wctx, logID, user.ID, tasks)
}

// UpdateWeeklyLog replaces the tasks of an existing log.
func (r *Repository) UpdateWeeklyLog(ctx context.Context, logID int64, tasks schema.WeeklyTasks) error {
	user, err := r.auth.CurrentUser(ctx)
	if err != nil {
		return err
	}

	wctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.store.UpdateWeeklyLog(wctx, logID, user.ID, tasks)
}

// DeleteDailyLog removes a log owned by the current user.
func (r *Repository) DeleteDailyLog(ctx context.Context, logID int64) error {
	user, err := r.auth.CurrentUser(ctx)
	if err != nil {
		return err
	}

	wctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.store.DeleteDailyLog(wctx, logID, user.ID)
}

// DeleteWeeklyLog removes a log owned by the current user.
func (r *Repository) DeleteWeeklyLog(ctx context.Context, logID int64) error {
	user, err := r.auth.CurrentUser(ctx)
	if err != nil {
		return err
	}

	wctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.store.DeleteWeeklyLog(wctx, logID, user.ID)
}
