package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeCompactor struct {
	before time.Time
	calls  int
	err    error
}

func (f *fakeCompactor) Compact(ctx context.Context, before time.Time) (int64, error) {
	f.calls++
	f.before = before
	return 3, f.err
}

func TestRunOnce(t *testing.T) {
	store := &fakeCompactor{}
	s := New(store, "0 3 * * *", 48*time.Hour)
	now := time.Date(2024, 5, 10, 3, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	n, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 || store.calls != 1 {
		t.Fatalf("unexpected result n=%d calls=%d", n, store.calls)
	}
	if !store.before.Equal(now.Add(-48 * time.Hour)) {
		t.Fatalf("unexpected cutoff %v", store.before)
	}

	store.err = errors.New("locked")
	if _, err := s.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestStartStop(t *testing.T) {
	s := New(&fakeCompactor{}, "0 3 * * *", time.Hour)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if !s.IsRunning() {
		t.Fatal("scheduler should have a compaction entry")
	}
	s.Stop()
}

func TestStartInvalidSchedule(t *testing.T) {
	s := New(&fakeCompactor{}, "not a schedule", time.Hour)
	if err := s.Start(); err == nil {
		t.Fatal("expected schedule error")
	}
}

func TestStartDisabled(t *testing.T) {
	s := New(&fakeCompactor{}, "0 3 * * *", 0)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if s.IsRunning() {
		t.Fatal("compaction must be disabled without retention")
	}
}
