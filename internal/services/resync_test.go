package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeTarget struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeTarget) ResyncAll(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

type fakeHealth bool

func (f fakeHealth) IsOnline() bool { return bool(f) }

type fakeJanitor struct {
	cutoff time.Time
}

func (f *fakeJanitor) Cleanup(olderThan time.Time) (int, error) {
	f.cutoff = olderThan
	return 1, nil
}

func TestResyncer_RunOnce(t *testing.T) {
	t.Run("reconciles while online", func(t *testing.T) {
		target := &fakeTarget{err: errors.New("fetch failed")}
		r := NewResyncer(target, fakeHealth(true), nil, nil, ResyncConfig{Interval: time.Minute})

		if err := r.RunOnce(context.Background()); err == nil {
			t.Error("RunOnce() swallowed the resync error")
		}
		if target.calls != 1 {
			t.Errorf("ResyncAll calls = %d, want 1", target.calls)
		}
	})

	t.Run("skips while offline", func(t *testing.T) {
		target := &fakeTarget{}
		r := NewResyncer(target, fakeHealth(false), nil, nil, ResyncConfig{})

		if err := r.RunOnce(context.Background()); err != nil {
			t.Errorf("RunOnce() error = %v", err)
		}
		if target.calls != 0 {
			t.Errorf("ResyncAll calls = %d, want 0", target.calls)
		}
	})

	t.Run("nil resyncer is a no-op", func(t *testing.T) {
		var r *Resyncer
		if err := r.RunOnce(context.Background()); err != nil {
			t.Errorf("RunOnce() error = %v", err)
		}
		r.Start()
		r.Stop(context.Background())
	})
}

func TestResyncer_Prune(t *testing.T) {
	janitor := &fakeJanitor{}
	r := NewResyncer(&fakeTarget{}, nil, janitor, nil, ResyncConfig{Retention: 48 * time.Hour})
	now := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	r.prune(now)
	if want := now.Add(-48 * time.Hour); !janitor.cutoff.Equal(want) {
		t.Errorf("cutoff = %v, want %v", janitor.cutoff, want)
	}
}

func TestResyncer_StartStop(t *testing.T) {
	r := NewResyncer(&fakeTarget{}, fakeHealth(true), nil, nil, ResyncConfig{Interval: time.Hour})
	r.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Stop(ctx)
	if ctx.Err() != nil {
		t.Error("Stop() waited for the timeout with no job running")
	}
}
