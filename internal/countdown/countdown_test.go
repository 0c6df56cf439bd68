package countdown

import (
	"context"
	"errors"
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func TestRemainingAndExpiry(t *testing.T) {
	c := New()
	c.Start(PhaseFocus, 25*time.Minute, t0)
	if got := c.Remaining(t0.Add(10 * time.Minute)); got != 15*time.Minute {
		t.Fatalf("expected 15m remaining, got %v", got)
	}
	if c.Expired(t0.Add(24 * time.Minute)) {
		t.Fatalf("expired too early")
	}
	if !c.Expired(t0.Add(25 * time.Minute)) {
		t.Fatalf("expected expiry at deadline")
	}
	if c.Active(t0.Add(26 * time.Minute)) {
		t.Fatalf("expired countdown must not be active")
	}
}

func TestPauseResume(t *testing.T) {
	c := New()
	c.Start(PhaseShortBreak, 5*time.Minute, t0)
	if err := c.Pause(t0.Add(2 * time.Minute)); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if got := c.Remaining(t0.Add(30 * time.Minute)); got != 3*time.Minute {
		t.Fatalf("paused countdown must freeze, got %v", got)
	}
	if err := c.Pause(t0.Add(31 * time.Minute)); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
	if err := c.Resume(t0.Add(30 * time.Minute)); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if got := c.Remaining(t0.Add(31 * time.Minute)); got != 2*time.Minute {
		t.Fatalf("expected 2m after resume, got %v", got)
	}
	if err := c.Resume(t0.Add(31 * time.Minute)); !errors.Is(err, ErrNotPaused) {
		t.Fatalf("expected ErrNotPaused, got %v", err)
	}
}

func TestResetAndCancel(t *testing.T) {
	c := New()
	c.Start(PhaseLongBreak, 15*time.Minute, t0)
	c.Reset(t0.Add(10 * time.Minute))
	snap := c.Snapshot(t0.Add(10 * time.Minute))
	if snap.Remaining != 15*time.Minute || snap.Phase != PhaseLongBreak {
		t.Fatalf("expected full long break after reset, got %+v", snap)
	}
	c.Cancel()
	snap = c.Snapshot(t0.Add(11 * time.Minute))
	if snap.Status != StatusCanceled || snap.Remaining != 0 {
		t.Fatalf("expected canceled with nothing remaining, got %+v", snap)
	}
}

func TestWaitReturnsOnExpiry(t *testing.T) {
	c := New()
	c.Start(PhaseFocus, 20*time.Millisecond, time.Now())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Wait(ctx); err != nil {
		t.Fatalf("expected nil on expiry, got %v", err)
	}
}

func TestWaitReturnsOnCancel(t *testing.T) {
	c := New()
	c.Start(PhaseFocus, time.Hour, time.Now())
	go func() {
		time.Sleep(10 * time.Millisecond)
		c.Cancel()
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Wait(ctx); !errors.Is(err, ErrCanceled) {
		t.Fatalf("expected ErrCanceled, got %v", err)
	}
}

func TestWaitHonorsContext(t *testing.T) {
	c := New()
	c.Start(PhaseFocus, time.Hour, time.Now())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := c.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
