// Package pending provides the durable queue of not-yet-synchronized
// mutations.
//
// Every write that could not be confirmed against the remote store is
// recorded here as an Op and replayed by the sync engine. The queue is
// the single source of truth for unconfirmed data: once an Op is removed,
// the corresponding remote write is assumed durable.
//
// Ops are stored as a JSON array under a fixed key in the local key-value
// store, matching the layout UI collaborators already read for the
// pending badge.
package pending

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/faceyourself/faceyourself/internal/schema"
)

// OpType identifies the kind of queued mutation.
type OpType string

const (
	// TypeDailyLog is an upsert of one user-day of tasks.
	TypeDailyLog OpType = "daily_log"

	// TypeWeeklyLog is an upsert of one user-week.
	TypeWeeklyLog OpType = "weekly_log"

	// TypeTask is accepted into the queue but has no sync behavior yet;
	// the engine drains it as an immediate success so it cannot block
	// the queue.
	TypeTask OpType = "task"

	// TypeGoal is accepted into the queue but has no sync behavior yet.
	TypeGoal OpType = "goal"
)

// maxBackoff caps the retry delay for a repeatedly failing operation.
const maxBackoff = time.Hour

// Op is a single queued mutation.
//
// Exactly one typed payload pointer is set, matching Type. Types without
// defined sync behavior carry their payload in Raw. Timestamp is
// diagnostic only and plays no part in conflict resolution.
type Op struct {
	ID        string    `json:"id"`
	Type      OpType    `json:"type"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`

	Daily  *schema.DailyLogPayload  `json:"daily_log,omitempty"`
	Weekly *schema.WeeklyLogPayload `json:"weekly_log,omitempty"`
	Raw    json.RawMessage          `json:"data,omitempty"`

	// Retry bookkeeping for automatic drain passes. Zero values mean
	// the op has never failed and is always eligible.
	Attempts      int       `json:"attempts,omitempty"`
	NextAttemptAt time.Time `json:"next_attempt_at,omitempty"`
}

// NewDailyLogOp creates a queued daily-log upsert owned by userID.
func NewDailyLogOp(userID string, payload schema.DailyLogPayload) (Op, error) {
	if userID == "" {
		return Op{}, fmt.Errorf("daily log op requires an owning user")
	}
	if err := payload.Validate(); err != nil {
		return Op{}, fmt.Errorf("invalid daily log payload: %w", err)
	}
	return Op{
		ID:        uuid.NewString(),
		Type:      TypeDailyLog,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Daily:     &payload,
	}, nil
}

// NewWeeklyLogOp creates a queued weekly-log upsert owned by userID.
func NewWeeklyLogOp(userID string, payload schema.WeeklyLogPayload) (Op, error) {
	if userID == "" {
		return Op{}, fmt.Errorf("weekly log op requires an owning user")
	}
	if err := payload.Validate(); err != nil {
		return Op{}, fmt.Errorf("invalid weekly log payload: %w", err)
	}
	return Op{
		ID:        uuid.NewString(),
		Type:      TypeWeeklyLog,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Weekly:    &payload,
	}, nil
}

// NewRawOp creates a queued op of a type without defined sync behavior.
func NewRawOp(typ OpType, userID string, data json.RawMessage) (Op, error) {
	if typ == TypeDailyLog || typ == TypeWeeklyLog {
		return Op{}, fmt.Errorf("type %s requires a typed payload", typ)
	}
	if userID == "" {
		return Op{}, fmt.Errorf("%s op requires an owning user", typ)
	}
	return Op{
		ID:        uuid.NewString(),
		Type:      typ,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Raw:       data,
	}, nil
}

// Validate checks structural invariants: identity, ownership, and that
// the payload matches the declared type.
func (o *Op) Validate() error {
	if o.ID == "" {
		return fmt.Errorf("id is required")
	}
	if o.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	switch o.Type {
	case TypeDailyLog:
		if o.Daily == nil {
			return fmt.Errorf("daily_log op is missing its payload")
		}
		return o.Daily.Validate()
	case TypeWeeklyLog:
		if o.Weekly == nil {
			return fmt.Errorf("weekly_log op is missing its payload")
		}
		return o.Weekly.Validate()
	case TypeTask, TypeGoal:
		return nil
	default:
		return fmt.Errorf("unknown op type %q", o.Type)
	}
}

// Ready reports whether the op is eligible for an automatic drain attempt
// at time now. Forced syncs ignore readiness.
func (o *Op) Ready(now time.Time) bool {
	return o.NextAttemptAt.IsZero() || !o.NextAttemptAt.After(now)
}

// MarkFailed records a failed attempt and schedules the next one with
// capped exponential backoff.
func (o *Op) MarkFailed(now time.Time) {
	o.Attempts++
	o.NextAttemptAt = now.Add(Backoff(o.Attempts))
}

// ResetBackoff clears retry bookkeeping so the op is retried immediately.
// Called on reconnect: backoff guards against hammering a struggling
// remote within one connectivity session, not across sessions.
func (o *Op) ResetBackoff() {
	o.Attempts = 0
	o.NextAttemptAt = time.Time{}
}

// Backoff returns the delay before retry number attempts: 2^(attempts-1)
// minutes, capped at one hour.
func Backoff(attempts int) time.Duration {
	if attempts < 1 {
		return 0
	}
	if attempts > 10 {
		return maxBackoff
	}
	d := time.Duration(1<<uint(attempts-1)) * time.Minute
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
