package remote

import (
	"context"
	"errors"
	"testing"

	"github.com/faceyourself/faceyourself/internal/schema"
)

// fakeStore is a minimal Store for registry tests.
type fakeStore struct {
	cfg *Config
}

func (f *fakeStore) UpsertDailyLog(ctx context.Context, dl schema.DailyLog) error   { return nil }
func (f *fakeStore) UpsertWeeklyLog(ctx context.Context, wl schema.WeeklyLog) error { return nil }
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
func (f *fakeStore) DeleteDailyLog(ctx context.Context, logID int64, userID string) error  { return nil }
func (f *fakeStore) DeleteWeeklyLog(ctx context.Context, logID int64, userID string) error { return nil }
func (f *fakeStore) Ping(ctx context.Context) error                                        { return nil }
func (f *fakeStore) Close() error                                                          { return nil }

func TestRegisterAndOpen(t *testing.T) {
	Register("fake-open", func(cfg *Config) (Store, error) {
		return &fakeStore{cfg: cfg}, nil
	})

	store, err := Open(&Config{Driver: "fake-open", DSN: "fake://dsn"})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	fs, ok := store.(*fakeStore)
	if !ok {
		t.Fatalf("expected *fakeStore, got %T", store)
	}
	if fs.cfg.DSN != "fake://dsn" {
		t.Errorf("config not passed through: %q", fs.cfg.DSN)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(&Config{Driver: "no-such-driver"})
	if !errors.Is(err, ErrUnknownDriver) {
		t.Errorf("expected ErrUnknownDriver, got %v", err)
	}
}

func TestRegisterNilPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for nil constructor")
		}
	}()
	Register("fake-nil", nil)
}

func TestRegisterTwicePanics(t *testing.T) {
	Register("fake-twice", func(cfg *Config) (Store, error) {
		return &fakeStore{}, nil
	})

	defer func() {
		if recover() == nil {
			t.Error("expected panic for duplicate registration")
		}
	}()
	Register("fake-twice", func(cfg *Config) (Store, error) {
		return &fakeStore{}, nil
	})
}

func TestDriversSorted(t *testing.T) {
	Register("fake-zz", func(cfg *Config) (Store, error) { return &fakeStore{}, nil })
	Register("fake-aa", func(cfg *Config) (Store, error) { return &fakeStore{}, nil })

	names := Drivers()
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Errorf("Drivers not sorted: %v", names)
		}
	}
}

func TestUnavailableWrapping(t *testing.T) {
	base := errors.New("connection refused")
	err := Unavailable(base)

	if !IsUnavailable(err) {
		t.Error("expected IsUnavailable to report true")
	}
	if !errors.Is(err, base) {
		t.Error("expected wrapped error to survive")
	}
	if IsUnavailable(base) {
		t.Error("bare error should not be unavailable")
	}
	if Unavailable(nil) != nil {
		t.Error("Unavailable(nil) should be nil")
	}
}
