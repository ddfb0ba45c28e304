package pending

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/faceyourself/faceyourself/internal/kvstore"
)

// StorageKey is the fixed key under which the queue is persisted in the
// local key-value store.
const StorageKey = "offline_pending_data"

// Queue is the ordered, durable list of pending operations.
//
// Every call reads the queue fresh from durable storage, so there is no
// in-memory cache to drift from what a UI collaborator sees. The mutex
// serializes read-modify-write cycles against the stored array.
type Queue struct {
	store  *kvstore.Store
	logger *log.Logger
	mu     sync.Mutex
}

// NewQueue creates a queue persisted in the given store.
//
// If logger is nil, a default logger writing to stderr is used.
func NewQueue(store *kvstore.Store, logger *log.Logger) *Queue {
	if logger == nil {
		logger = log.New(os.Stderr, "[queue] ", log.LstdFlags)
	}
	return &Queue{store: store, logger: logger}
}

// Enqueue validates op and appends it to the stored queue.
func (q *Queue) Enqueue(op Op) error {
	if err := op.Validate(); err != nil {
		return fmt.Errorf("refusing to enqueue invalid op: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	ops := q.load()
	ops = append(ops, op)
	if err := q.save(ops); err != nil {
		return err
	}

	q.logger.Printf("Enqueued %s op %s (pending: %d)", op.Type, op.ID, len(ops))
	return nil
}

// List returns the current pending operations in insertion order,
// read fresh from durable storage.
func (q *Queue) List() []Op {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.load()
}

// Remove atomically rewrites the stored queue to exclude the given ids.
// Unknown ids are ignored; an empty set is a no-op.
func (q *Queue) Remove(ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	ops := q.load()
	kept := ops[:0]
	for _, op := range ops {
		if !drop[op.ID] {
			kept = append(kept, op)
		}
	}
	if len(kept) == len(ops) {
		return nil
	}

	if err := q.save(kept); err != nil {
		return err
	}

	q.logger.Printf("Removed %d synced ops (pending: %d)", len(ops)-len(kept), len(kept))
	return nil
}

// Count returns the number of pending operations.
func (q *Queue) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.load())
}

// MarkFailed records a failed drain attempt for each of the given ids,
// scheduling their next retry with capped exponential backoff.
func (q *Queue) MarkFailed(ids []string, now time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	failed := make(map[string]bool, len(ids))
	for _, id := range ids {
		failed[id] = true
	}

	ops := q.load()
	changed := false
	for i := range ops {
		if failed[ops[i].ID] {
			ops[i].MarkFailed(now)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return q.save(ops)
}

// ResetBackoff clears retry bookkeeping on every queued op so the next
// drain pass retries everything immediately. Called on reconnect.
func (q *Queue) ResetBackoff() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	ops := q.load()
	changed := false
	for i := range ops {
		if ops[i].Attempts != 0 || !ops[i].NextAttemptAt.IsZero() {
			ops[i].ResetBackoff()
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return q.save(ops)
}

// load reads the stored queue. A missing or corrupt value yields an
// empty queue; the kvstore logs the diagnostic.
func (q *Queue) load() []Op {
	return kvstore.Get(q.store, StorageKey, []Op(nil))
}

// save rewrites the stored queue in full.
func (q *Queue) save(ops []Op) error {
	if err := q.store.Set(StorageKey, ops); err != nil {
		return fmt.Errorf("failed to persist pending queue: %w", err)
	}
	return nil
}
