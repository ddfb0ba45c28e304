// Package remote defines the interface to the authoritative log store
// and a registry of pluggable database drivers.
//
// The local process writes through this interface when connectivity
// allows and falls back to the pending-operation queue when it does not.
// Drivers register themselves from init() in their own packages
// (postgres, mongo), so importing a driver package makes it available:
//
//	import (
//	    "github.com/faceyourself/faceyourself/internal/remote"
//	    _ "github.com/faceyourself/faceyourself/internal/remote/postgres"
//	)
//
//	store, err := remote.Open(&remote.Config{Driver: "postgres", DSN: dsn})
package remote

import (
	"context"

	"github.com/faceyourself/faceyourself/internal/schema"
)

// Store is the interface all remote log stores implement.
//
// All methods take a context for cancellation and deadlines. Transient
// failures (network down, server unreachable) are reported wrapped in
// ErrUnavailable so callers can distinguish them from permanent errors.
type Store interface {
	// UpsertDailyLog inserts or replaces the daily log for the
	// log's (user, date) pair.
	UpsertDailyLog(ctx context.Context, dl schema.DailyLog) error

	// UpsertWeeklyLog inserts or replaces the weekly log for the
	// log's (user, week start) pair.
	UpsertWeeklyLog(ctx context.Context, wl schema.WeeklyLog) error

	// DailyLogs returns up to limit daily logs for the user, most
	// recent date first.
	DailyLogs(ctx context.Context, userID string, limit int) ([]schema.DailyLog, error)

	// WeeklyLogs returns up to limit weekly logs for the user, most
	// recent week first.
	WeeklyLogs(ctx context.Context, userID string, limit int) ([]schema.WeeklyLog, error)

	// UpdateDailyLog replaces the task list of an existing daily log.
	// Returns ErrNotFound if no log matches the id for this user.
	UpdateDailyLog(ctx context.Context, logID int64, userID string, tasks []schema.TaskLog) error

	// UpdateWeeklyLog replaces the tasks of an existing weekly log.
	// Returns ErrNotFound if no log matches the id for this user.
	UpdateWeeklyLog(ctx context.Context, logID int64, userID string, tasks schema.WeeklyTasks) error

	// DeleteDailyLog removes a daily log owned by the user.
	// Returns ErrNotFound if no log matches.
	DeleteDailyLog(ctx context.Context, logID int64, userID string) error

	// DeleteWeeklyLog removes a weekly log owned by the user.
	// Returns ErrNotFound if no log matches.
	DeleteWeeklyLog(ctx context.Context, logID int64, userID string) error

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the store's resources.
	Close() error
}
