// Package schema defines the log records shared between the offline queue,
// the sync engine, and the remote store.
//
// Daily logs are keyed on (user_id, date) and weekly logs on
// (user_id, week_start), where week_start is the ISO Monday of the week.
// Remote writes are upserts on those natural keys, so records carry the
// key fields directly rather than relying on surrogate IDs.
package schema

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalid tags validation failures so transport layers can map them
// to client errors.
var ErrInvalid = errors.New("invalid log")

// DateLayout is the wire format for daily dates and weekly start dates.
const DateLayout = "2006-01-02"

// TaskLog is a single checklist entry inside a daily or weekly log.
type TaskLog struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// WeeklyTasks is the task block of a weekly log: one goal for the week
// plus the focus tasks working toward it.
type WeeklyTasks struct {
	Goal       string    `json:"goal"`
	FocusTasks []TaskLog `json:"focusTasks"`
}

// DailyLog is the remote representation of one user-day of tasks.
// Unique per (UserID, Date).
type DailyLog struct {
	ID        int64     `json:"id,omitempty"`
	UserID    string    `json:"user_id"`
	Date      string    `json:"date"`
	Tasks     []TaskLog `json:"tasks"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Validate checks that the DailyLog carries its natural key.
func (d *DailyLog) Validate() error {
	if d.UserID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalid)
	}
	if err := ValidateDate(d.Date); err != nil {
		return fmt.Errorf("date: %w", err)
	}
	return nil
}

// WeeklyLog is the remote representation of one user-week.
// Unique per (UserID, WeekStart).
type WeeklyLog struct {
	ID        int64       `json:"id,omitempty"`
	UserID    string      `json:"user_id"`
	WeekStart string      `json:"week_start"`
	Tasks     WeeklyTasks `json:"tasks"`
	CreatedAt time.Time   `json:"created_at,omitempty"`
	UpdatedAt time.Time   `json:"updated_at,omitempty"`
}

// Validate checks that the WeeklyLog carries its natural key.
func (w *WeeklyLog) Validate() error {
	if w.UserID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalid)
	}
	if err := ValidateWeekStart(w.WeekStart); err != nil {
		return fmt.Errorf("week_start: %w", err)
	}
	return nil
}

// DailyLogPayload is the queued form of a daily log write: everything
// except the owning user, which lives on the queue entry itself.
type DailyLogPayload struct {
	Date  string    `json:"date"`
	Tasks []TaskLog `json:"tasks"`
}

// Validate checks the payload's date.
func (p *DailyLogPayload) Validate() error {
	if err := ValidateDate(p.Date); err != nil {
		return fmt.Errorf("date: %w", err)
	}
	return nil
}

// WeeklyLogPayload is the queued form of a weekly log write.
type WeeklyLogPayload struct {
	WeekStart string      `json:"week_start"`
	Tasks     WeeklyTasks `json:"tasks"`
}

// Validate checks the payload's week start.
func (p *WeeklyLogPayload) Validate() error {
	if err := ValidateWeekStart(p.WeekStart); err != nil {
		return fmt.Errorf("week_start: %w", err)
	}
	return nil
}

// ValidateDate checks that s is an ISO calendar day (YYYY-MM-DD).
func ValidateDate(s string) error {
	if s == "" {
		return fmt.Errorf("%w: date is required", ErrInvalid)
	}
	if _, err := time.Parse(DateLayout, s); err != nil {
		return fmt.Errorf("%w: invalid date %q (want YYYY-MM-DD)", ErrInvalid, s)
	}
	return nil
}

// ValidateWeekStart checks that s is an ISO calendar day falling on a
// Monday. The app keys weeks on their Monday, so anything else indicates
// a caller bug rather than a recoverable condition.
func ValidateWeekStart(s string) error {
	if s == "" {
		return fmt.Errorf("%w: week start is required", ErrInvalid)
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return fmt.Errorf("%w: invalid week start %q (want YYYY-MM-DD)", ErrInvalid, s)
	}
	if t.Weekday() != time.Monday {
		return fmt.Errorf("%w: week start %q is a %s, not a Monday", ErrInvalid, s, t.Weekday())
	}
	return nil
}

// WeekStartOf returns the ISO Monday of the week containing t.
func WeekStartOf(t time.Time) string {
	offset := (int(t.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
	return t.AddDate(0, 0, -offset).Format(DateLayout)
}
