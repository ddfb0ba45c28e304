// Package postgres implements the remote log store on PostgreSQL
// using lib/pq. It registers itself as the "postgres" driver.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"time"

	"github.com/lib/pq"

	"github.com/faceyourself/faceyourself/internal/remote"
	"github.com/faceyourself/faceyourself/internal/schema"
)

func init() {
	remote.Register("postgres", Open)
}

// Store implements remote.Store backed by PostgreSQL.
type Store struct {
	conn   *sql.DB
	logger *log.Logger
}

// Open connects to PostgreSQL using cfg.DSN and creates the log tables
// if they do not exist.
func Open(cfg *remote.Config) (remote.Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	conn, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, remote.Unavailable(fmt.Errorf("failed to reach postgres: %w", err))
	}

	s := &Store{conn: conn, logger: logger}
	if err := s.initSchema(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	logger.Println("Connected to postgres")
	return s, nil
}

// initSchema creates the log tables and their uniqueness constraints.
func (s *Store) initSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS daily_logs (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			date TEXT NOT NULL,
			tasks JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (user_id, date)
		)`,
		`CREATE TABLE IF NOT EXISTS weekly_logs (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			week_start TEXT NOT NULL,
			tasks JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (user_id, week_start)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", wrapErr(err))
		}
	}
	return nil
}

// UpsertDailyLog inserts or replaces the log for (user, date).
func (s *Store) UpsertDailyLog(ctx context.Context, dl schema.DailyLog) error {
	tasks, err := json.Marshal(dl.Tasks)
	if err != nil {
		return fmt.Errorf("failed to encode tasks: %w", err)
	}

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO daily_logs (user_id, date, tasks, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (user_id, date)
		DO UPDATE SET tasks = EXCLUDED.tasks, updated_at = now()
	`, dl.UserID, dl.Date, tasks, createdAt(dl.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert daily log: %w", wrapErr(err))
	}
	return nil
}

// UpsertWeeklyLog inserts or replaces the log for (user, week start).
func (s *Store) UpsertWeeklyLog(ctx context.Context, wl schema.WeeklyLog) error {
	tasks, err := json.Marshal(wl.Tasks)
	if err != nil {
		return fmt.Errorf("failed to encode tasks: %w", err)
	}

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO weekly_logs (user_id, week_start, tasks, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (user_id, week_start)
		DO UPDATE SET tasks = EXCLUDED.tasks, updated_at = now()
	`, wl.UserID, wl.WeekStart, tasks, createdAt(wl.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert weekly log: %w", wrapErr(err))
	}
	return nil
}

// DailyLogs returns up to limit logs for the user, most recent first.
func (s *Store) DailyLogs(ctx context.Context, userID string, limit int) ([]schema.DailyLog, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, user_id, date, tasks, created_at, updated_at
		FROM daily_logs
		WHERE user_id = $1
		ORDER BY date DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily logs: %w", wrapErr(err))
	}
	defer rows.Close()

	var logs []schema.DailyLog
	for rows.Next() {
		var dl schema.DailyLog
		var tasks []byte
		if err := rows.Scan(&dl.ID, &dl.UserID, &dl.Date, &tasks, &dl.CreatedAt, &dl.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan daily log: %w", err)
		}
		if err := json.Unmarshal(tasks, &dl.Tasks); err != nil {
			return nil, fmt.Errorf("failed to decode tasks for log %d: %w", dl.ID, err)
		}
		logs = append(logs, dl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read daily logs: %w", wrapErr(err))
	}
	return logs, nil
}

// WeeklyLogs returns up to limit logs for the user, most recent first.
func (s *Store) WeeklyLogs(ctx context.Context, userID string, limit int) ([]schema.WeeklyLog, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, user_id, week_start, tasks, created_at, updated_at
		FROM weekly_logs
		WHERE user_id = $1
		ORDER BY week_start DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query weekly logs: %w", wrapErr(err))
	}
	defer rows.Close()

	var logs []schema.WeeklyLog
	for rows.Next() {
		var wl schema.WeeklyLog
		var tasks []byte
		if err := rows.Scan(&wl.ID, &wl.UserID, &wl.WeekStart, &tasks, &wl.CreatedAt, &wl.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan weekly log: %w", err)
		}
		if err := json.Unmarshal(tasks, &wl.Tasks); err != nil {
			return nil, fmt.Errorf("failed to decode tasks for log %d: %w", wl.ID, err)
		}
		logs = append(logs, wl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read weekly logs: %w", wrapErr(err))
	}
	return logs, nil
}

// UpdateDailyLog replaces the task list of an existing log.
func (s *Store) UpdateDailyLog(ctx context.Context, logID int64, userID string, tasks []schema.TaskLog) error {
	encoded, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("failed to encode tasks: %w", err)
	}

	res, err := s.conn.ExecContext(ctx, `
		UPDATE daily_logs SET tasks = $1, updated_at = now()
		WHERE id = $2 AND user_id = $3
	`, encoded, logID, userID)
	if err != nil {
		return fmt.Errorf("failed to update daily log: %w", wrapErr(err))
	}
	return checkAffected(res)
}

// UpdateWeeklyLog replaces the tasks of an existing log.
func (s *Store) UpdateWeeklyLog(ctx context.Context, logID int64, userID string, tasks schema.WeeklyTasks) error {
	encoded, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("failed to encode tasks: %w", err)
	}

	res, err := s.conn.ExecContext(ctx, `
		UPDATE weekly_logs SET tasks = $1, updated_at = now()
		WHERE id = $2 AND user_id = $3
	`, encoded, logID, userID)
	if err != nil {
		return fmt.Errorf("failed to update weekly log: %w", wrapErr(err))
	}
	return checkAffected(res)
}

// DeleteDailyLog removes a log owned by the user.
func (s *Store) DeleteDailyLog(ctx context.Context, logID int64, userID string) error {
	res, err := s.conn.ExecContext(ctx, `
		DELETE FROM daily_logs WHERE id = $1 AND user_id = $2
	`, logID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete daily log: %w", wrapErr(err))
	}
	return checkAffected(res)
}

// DeleteWeeklyLog removes a log owned by the user.
func (s *Store) DeleteWeeklyLog(ctx context.Context, logID int64, userID string) error {
	res, err := s.conn.ExecContext(ctx, `
		DELETE FROM weekly_logs WHERE id = $1 AND user_id = $2
	`, logID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete weekly log: %w", wrapErr(err))
	}
	return checkAffected(res)
}

// Ping checks that postgres is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.conn.PingContext(ctx); err != nil {
		return remote.Unavailable(err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.conn.Close()
}

// checkAffected maps a zero-row result to ErrNotFound.
func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return remote.ErrNotFound
	}
	return nil
}

// createdAt defaults a zero creation time to now, for queued operations
// that predate the column.
func createdAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

// wrapErr tags connection-level failures as transient so callers can
// retry them. SQLSTATE class 08 is "connection exception", class 57
// covers server shutdowns.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) {
		return remote.Unavailable(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return remote.Unavailable(err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "57":
			return remote.Unavailable(err)
		}
	}
	return err
}
