// Package countdown provides a single cancellable, resettable countdown.
//
// The countdown does not tick on its own: Remaining and Expired are
// computed from the instant passed in, and Wait suspends the caller until
// expiry or cancellation. Cancelling a countdown has no effect on anything
// it was started for.
package countdown

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Status is the lifecycle state of a countdown.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusRunning  Status = "running"
	StatusPaused   Status = "paused"
	StatusExpired  Status = "expired"
	StatusCanceled Status = "canceled"
)

// Phase labels what the countdown is timing.
type Phase string

const (
	PhaseFocus      Phase = "focus"
	PhaseShortBreak Phase = "short_break"
	PhaseLongBreak  Phase = "long_break"
)

var (
	// ErrNotRunning is returned when pausing a countdown that is not running.
	ErrNotRunning = errors.New("countdown is not running")
	// ErrNotPaused is returned when resuming a countdown that is not paused.
	ErrNotPaused = errors.New("countdown is not paused")
	// ErrCanceled is returned by Wait when the countdown is canceled.
	ErrCanceled = errors.New("countdown canceled")
)

// Snapshot is a point-in-time view of the countdown.
type Snapshot struct {
	Phase     Phase
	Status    Status
	Duration  time.Duration
	Remaining time.Duration
}

// Countdown is safe for concurrent use; at most one countdown is active.
type Countdown struct {
	mu        sync.Mutex
	phase     Phase
	status    Status
	duration  time.Duration
	deadline  time.Time
	remaining time.Duration
	done      chan struct{}
	canceled  bool
}

// New returns an idle countdown.
func New() *Countdown {
	return &Countdown{status: StatusIdle}
}

// Start begins a countdown, replacing any active one.
func (c *Countdown) Start(phase Phase, d time.Duration, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.release(true)
	if d < 0 {
		d = 0
	}
	c.phase = phase
	c.duration = d
	c.deadline = now.Add(d)
	c.remaining = d
	c.status = StatusRunning
	c.done = make(chan struct{})
	c.canceled = false
}

// Pause freezes the remaining time.
func (c *Countdown) Pause(now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refresh(now)
	if c.status != StatusRunning {
		return ErrNotRunning
	}
	c.remaining = c.deadline.Sub(now)
	c.status = StatusPaused
	return nil
}

// Resume continues a paused countdown.
func (c *Countdown) Resume(now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusPaused {
		return ErrNotPaused
	}
	c.deadline = now.Add(c.remaining)
	c.status = StatusRunning
	// Wake waiters so they re-arm against the new deadline.
	c.release(false)
	c.done = make(chan struct{})
	return nil
}

// Reset restarts the current phase from its full duration.
func (c *Countdown) Reset(now time.Time) {
	c.mu.Lock()
	phase, d := c.phase, c.duration
	c.mu.Unlock()
	c.Start(phase, d, now)
}

// Cancel stops the countdown. Waiters receive ErrCanceled.
func (c *Countdown) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == StatusRunning || c.status == StatusPaused {
		c.release(true)
		c.status = StatusCanceled
	}
}

// Snapshot returns the state as of now.
func (c *Countdown) Snapshot(now time.Time) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refresh(now)
	snap := Snapshot{Phase: c.phase, Status: c.status, Duration: c.duration}
	switch c.status {
	case StatusRunning:
		snap.Remaining = c.deadline.Sub(now)
	case StatusPaused:
		snap.Remaining = c.remaining
	}
	return snap
}

// Remaining returns the time left as of now.
func (c *Countdown) Remaining(now time.Time) time.Duration {
	return c.Snapshot(now).Remaining
}

// Expired reports whether the countdown ran out as of now.
func (c *Countdown) Expired(now time.Time) bool {
	return c.Snapshot(now).Status == StatusExpired
}

// Active reports whether a countdown is running or paused.
func (c *Countdown) Active(now time.Time) bool {
	s := c.Snapshot(now).Status
	return s == StatusRunning || s == StatusPaused
}

// Wait blocks until the running countdown expires, is canceled, or ctx is done.
func (c *Countdown) Wait(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.status != StatusRunning && c.status != StatusPaused {
			status := c.status
			c.mu.Unlock()
			if status == StatusCanceled {
				return ErrCanceled
			}
			return nil
		}
		done := c.done
		wait := time.Until(c.deadline)
		if c.status == StatusPaused {
			wait = time.Hour
		}
		c.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-done:
			timer.Stop()
			c.mu.Lock()
			canceled := c.canceled
			c.mu.Unlock()
			if canceled {
				return ErrCanceled
			}
			// Restarted: wait for the new countdown.
		case <-timer.C:
			c.mu.Lock()
			c.refresh(time.Now())
			c.mu.Unlock()
		}
	}
}

func (c *Countdown) refresh(now time.Time) {
	if c.status == StatusRunning && !now.Before(c.deadline) {
		c.status = StatusExpired
		c.release(false)
	}
}

func (c *Countdown) release(canceled bool) {
	if c.done != nil {
		c.canceled = canceled && (c.status == StatusRunning || c.status == StatusPaused)
		close(c.done)
		c.done = nil
	}
}
