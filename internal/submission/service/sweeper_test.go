package service

import (
	"context"
	"testing"
	"time"

	"codearena/internal/judge"
	"codearena/internal/submission/repository"
)

type fakeLocker struct {
	held     bool
	acquired int
	released int
}

func (l *fakeLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if l.held {
		return false, nil
	}
	l.held = true
	l.acquired++
	return true, nil
}

func (l *fakeLocker) Unlock(ctx context.Context, key string) error {
	l.held = false
	l.released++
	return nil
}

func TestSweepReapsStalePending(t *testing.T) {
	subs := newFakeSubmissionRepo()
	stale := &repository.Submission{ID: "stale", Status: judge.StatusPending}
	fresh := &repository.Submission{ID: "fresh", Status: judge.StatusPending}
	_ = subs.Create(context.Background(), nil, stale)
	_ = subs.Create(context.Background(), nil, fresh)
	subs.records["stale"].CreatedAt = time.Now().Add(-time.Hour)

	locker := &fakeLocker{}
	sweeper := NewSweeper(SweeperOptions{Submissions: subs, Locker: locker})
	sweeper.Sweep(context.Background())

	if got := subs.records["stale"].Status; got != judge.StatusError {
		t.Fatalf("stale record status = %q, want error", got)
	}
	if subs.records["stale"].ErrorMessage == "" {
		t.Fatal("stale record has no error message")
	}
	if got := subs.records["fresh"].Status; got != judge.StatusPending {
		t.Fatalf("fresh record status = %q, want pending", got)
	}
	if locker.acquired != 1 || locker.released != 1 {
		t.Fatalf("lock acquired/released = %d/%d, want 1/1", locker.acquired, locker.released)
	}
}

func TestSweepSkipsWhenLockHeld(t *testing.T) {
	subs := newFakeSubmissionRepo()
	stale := &repository.Submission{ID: "stale", Status: judge.StatusPending}
	_ = subs.Create(context.Background(), nil, stale)
	subs.records["stale"].CreatedAt = time.Now().Add(-time.Hour)

	locker := &fakeLocker{held: true}
	sweeper := NewSweeper(SweeperOptions{Submissions: subs, Locker: locker})
	sweeper.Sweep(context.Background())

	if got := subs.records["stale"].Status; got != judge.StatusPending {
		t.Fatalf("record status = %q, want untouched pending", got)
	}
}
