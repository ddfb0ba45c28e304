package engine

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/faceyourself/faceyourself/internal/connectivity"
	"github.com/faceyourself/faceyourself/internal/kvstore"
	"github.com/faceyourself/faceyourself/internal/pending"
	"github.com/faceyourself/faceyourself/internal/remote"
	"github.com/faceyourself/faceyourself/internal/schema"
)

// fakeStore records upserts and fails specific dates on demand.
type fakeStore struct {
	mu      sync.Mutex
	daily   []schema.DailyLog
	weekly  []schema.WeeklyLog
	fail    map[string]error // keyed by date or week start
	gate    chan struct{}    // when set, upserts block until closed
	upserts int
}

func (f *fakeStore) UpsertDailyLog(ctx context.Context, dl schema.DailyLog) error {
	return f.record(dl.Date, func() { f.daily = append(f.daily, dl) })
}

func (f *fakeStore) UpsertWeeklyLog(ctx context.Context, wl schema.WeeklyLog) error {
	return f.record(wl.WeekStart, func() { f.weekly = append(f.weekly, wl) })
}

func (f *fakeStore) record(key string, commit func()) error {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	if err := f.fail[key]; err != nil {
		return err
	}
	commit()
	return nil
}

func (f *fakeStore) DailyLogs(ctx context.Context, userID string, limit int) ([]schema.DailyLog, error) {
	return nil, nil
}

func (f *fakeStore) WeeklyLogs(ctx context.Context, userID string, limit int) ([]schema.WeeklyLog, error) {
	return nil, nil
}

func (f *fakeStore) UpdateDailyLog(ctx context.Context, logID int64, userID string, tasks []schema.TaskLog) error {
	return nil
}

func (f *fakeStore) UpdateWeeklyLog(ctx context.Context, logID int64, userID string, tasks schema.WeeklyTasks) error {
	return nil
}

func (f *fakeStore) DeleteDailyLog(ctx context.Context, logID int64, userID string) error {
	return nil
}

func (f *fakeStore) DeleteWeeklyLog(ctx context.Context, logID int64, userID string) error {
	return nil
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                   { return nil }

func (f *fakeStore) upsertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upserts
}

func (f *fakeStore) dailyDates() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	dates := make([]string, 0, len(f.daily))
	for _, dl := range f.daily {
		dates = append(dates, dl.Date)
	}
	return dates
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func setupTestEngine(t *testing.T, store *fakeStore, online bool) (*Engine, *pending.Queue, *connectivity.Monitor) {
	t.Helper()

	kv, err := kvstore.Open(filepath.Join(t.TempDir(), "local.db"), quietLogger())
	if err != nil {
		t.Fatalf("failed to open kv store: %v", err)
	}
	t.Cleanup(func() { kv.Close() })

	queue := pending.NewQueue(kv, quietLogger())

	moncfg := connectivity.DefaultConfig()
	moncfg.Logger = quietLogger()
	moncfg.AssumeOnline = online
	monitor := connectivity.New(moncfg)

	cfg := DefaultConfig()
	cfg.Logger = quietLogger()
	cfg.QuiescentDelay = 25 * time.Millisecond
	e := New(queue, store, monitor, cfg)
	t.Cleanup(e.Stop)
	return e, queue, monitor
}

func enqueueDaily(t *testing.T, q *pending.Queue, date string) pending.Op {
	t.Helper()
	op, err := pending.NewDailyLogOp("user-1", schema.DailyLogPayload{
		Date:  date,
		Tasks: []schema.TaskLog{{ID: 1, Text: "write tests", Completed: false}},
	})
	if err != nil {
		t.Fatalf("failed to build op: %v", err)
	}
	if err := q.Enqueue(op); err != nil {
		t.Fatalf("failed to enqueue: %v", err)
	}
	return op
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSyncDrainsQueue(t *testing.T) {
	store := &fakeStore{}
	e, q, _ := setupTestEngine(t, store, true)

	enqueueDaily(t, q, "2025-06-02")
	enqueueDaily(t, q, "2025-06-03")

	if err := e.Sync(context.Background()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if n := q.Count(); n != 0 {
		t.Errorf("expected empty queue, got %d", n)
	}
	if got := store.dailyDates(); len(got) != 2 || got[0] != "2025-06-02" || got[1] != "2025-06-03" {
		t.Errorf("unexpected upserts: %v", got)
	}
	if e.Status() != StatusSynced {
		t.Errorf("expected synced, got %s", e.Status())
	}
}

func TestSyncPartialFailure(t *testing.T) {
	store := &fakeStore{fail: map[string]error{"2025-06-03": errors.New("constraint violation")}}
	e, q, _ := setupTestEngine(t, store, true)

	enqueueDaily(t, q, "2025-06-02")
	failing := enqueueDaily(t, q, "2025-06-03")
	enqueueDaily(t, q, "2025-06-04")

	if err := e.Sync(context.Background()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	ops := q.List()
	if len(ops) != 1 || ops[0].ID != failing.ID {
		t.Fatalf("expected only the failing op to remain, got %v", ops)
	}
	if ops[0].Attempts != 1 {
		t.Errorf("expected 1 attempt recorded, got %d", ops[0].Attempts)
	}
	if e.Status() != StatusError {
		t.Errorf("expected error status, got %s", e.Status())
	}
}

func TestSyncWhileOffline(t *testing.T) {
	store := &fakeStore{}
	e, q, _ := setupTestEngine(t, store, false)

	enqueueDaily(t, q, "2025-06-02")

	if err := e.Sync(context.Background()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if e.Status() != StatusOffline {
		t.Errorf("expected offline, got %s", e.Status())
	}
	if store.upsertCount() != 0 {
		t.Error("expected no remote calls while offline")
	}
	if n := q.Count(); n != 1 {
		t.Errorf("expected operation kept queued, got %d", n)
	}
}

func TestSyncEmptyQueue(t *testing.T) {
	store := &fakeStore{}
	e, _, _ := setupTestEngine(t, store, true)

	if err := e.Sync(context.Background()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if e.Status() != StatusSynced {
		t.Errorf("expected synced, got %s", e.Status())
	}
}

func TestStatusDecaysToIdle(t *testing.T) {
	store := &fakeStore{}
	e, _, _ := setupTestEngine(t, store, true)

	if err := e.Sync(context.Background()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	waitFor(t, "decay to idle", func() bool { return e.Status() == StatusIdle })
}

func TestReconnectTriggersDrain(t *testing.T) {
	store := &fakeStore{}
	e, q, monitor := setupTestEngine(t, store, true)
	e.Start()

	monitor.SetOnline(false)
	if e.Status() != StatusOffline {
		t.Fatalf("expected offline, got %s", e.Status())
	}

	enqueueDaily(t, q, "2025-06-02")
	monitor.SetOnline(true)

	waitFor(t, "queue drain after reconnect", func() bool {
		n := q.Count()
		return n == 0
	})
	if store.upsertCount() != 1 {
		t.Errorf("expected exactly one upsert, got %d", store.upsertCount())
	}
}

func TestSyncCoalesces(t *testing.T) {
	gate := make(chan struct{})
	store := &fakeStore{gate: gate}
	e, q, _ := setupTestEngine(t, store, true)

	enqueueDaily(t, q, "2025-06-02")

	done := make(chan struct{})
	go func() {
		e.Sync(context.Background())
		close(done)
	}()

	waitFor(t, "sync to start", func() bool { return e.Status() == StatusSyncing })

	// Second call must return without starting another pass.
	if err := e.Sync(context.Background()); err != nil {
		t.Fatalf("coalesced Sync failed: %v", err)
	}
	if e.Status() != StatusSyncing {
		t.Errorf("expected syncing during in-flight pass, got %s", e.Status())
	}

	close(gate)
	<-done

	if store.upsertCount() != 1 {
		t.Errorf("expected 1 upsert, got %d", store.upsertCount())
	}
}

func TestUnavailableFlipsOffline(t *testing.T) {
	store := &fakeStore{fail: map[string]error{
		"2025-06-02": remote.Unavailable(errors.New("connection refused")),
	}}
	e, q, monitor := setupTestEngine(t, store, true)

	enqueueDaily(t, q, "2025-06-02")
	enqueueDaily(t, q, "2025-06-03")

	if err := e.Sync(context.Background()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if monitor.Online() {
		t.Error("expected monitor flipped offline")
	}
	if e.Status() != StatusOffline {
		t.Errorf("expected offline, got %s", e.Status())
	}
	// The pass stopped at the unavailable op; both remain queued.
	if n := q.Count(); n != 2 {
		t.Errorf("expected 2 queued, got %d", n)
	}
}

func TestBackoffSkipsUntilForced(t *testing.T) {
	store := &fakeStore{}
	e, q, _ := setupTestEngine(t, store, true)

	op := enqueueDaily(t, q, "2025-06-02")
	if err := q.MarkFailed([]string{op.ID}, time.Now()); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}

	if err := e.Sync(context.Background()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if store.upsertCount() != 0 {
		t.Error("expected backed-off op to be skipped")
	}
	// Nothing was attempted, but the queue is still non-empty.
	if e.Status() != StatusError {
		t.Errorf("expected error status after all-skipped pass, got %s", e.Status())
	}

	if err := e.ForceSync(context.Background()); err != nil {
		t.Fatalf("ForceSync failed: %v", err)
	}
	if store.upsertCount() != 1 {
		t.Errorf("expected forced attempt, got %d upserts", store.upsertCount())
	}
	if n := q.Count(); n != 0 {
		t.Errorf("expected queue drained, got %d", n)
	}
}

func TestSubscribeSeesTransitions(t *testing.T) {
	store := &fakeStore{}
	e, _, _ := setupTestEngine(t, store, true)

	ch, cancel := e.Subscribe()
	defer cancel()

	if err := e.Sync(context.Background()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	var seen []Status
	timeout := time.After(2 * time.Second)
	for len(seen) < 3 {
		select {
		case s := <-ch:
			seen = append(seen, s)
		case <-timeout:
			t.Fatalf("timed out, saw %v", seen)
		}
	}
	if seen[0] != StatusSyncing || seen[1] != StatusSynced || seen[2] != StatusIdle {
		t.Errorf("expected syncing/synced/idle, got %v", seen)
	}
}
