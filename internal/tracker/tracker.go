// Package tracker assembles deep-work sessions from classified activity.
package tracker

import (
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/deepwork/internal/model"
)

const (
	DefaultMinimumMinutes      = 60
	DefaultAllowedBreakMinutes = 5
	DefaultPersistMinutes      = 15
)

// DefaultConfig returns the default deep-work thresholds.
func DefaultConfig() model.TrackerConfig {
	return model.TrackerConfig{
		MinimumMinutes:      DefaultMinimumMinutes,
		AllowedBreakMinutes: DefaultAllowedBreakMinutes,
		PersistMinutes:      DefaultPersistMinutes,
	}
}

// Transition describes what a single observation did to the tracker.
type Transition struct {
	Opened        bool
	Qualified     bool
	ContextSwitch bool
	// Closed is set when a session ended; Persist reports whether it is
	// long enough to be stored.
	Closed  *model.WorkSession
	Persist bool
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithOnQualified registers the achievement callback. It fires once per session.
func WithOnQualified(fn func(model.WorkSession)) Option {
	return func(t *Tracker) { t.onQualified = fn }
}

// WithIDFunc overrides session ID generation.
func WithIDFunc(fn func() string) Option {
	return func(t *Tracker) { t.newID = fn }
}

// Tracker is the deep-work state machine. It is not safe for concurrent use;
// one tracker consumes one ordered event stream.
type Tracker struct {
	cfg         model.TrackerConfig
	onQualified func(model.WorkSession)
	newID       func() string

	session        *model.WorkSession
	lastEvent      time.Time
	lastProductive time.Time
	graceStart     time.Time
	distracted     time.Duration
	lastBreak      time.Time
	lastApp        string
}

// New returns an idle tracker.
func New(cfg model.TrackerConfig, opts ...Option) *Tracker {
	t := &Tracker{cfg: normalize(cfg), newID: uuid.NewString}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetConfig replaces the thresholds; callers apply it between events.
func (t *Tracker) SetConfig(cfg model.TrackerConfig) {
	t.cfg = normalize(cfg)
}

// Config returns the active thresholds.
func (t *Tracker) Config() model.TrackerConfig {
	return t.cfg
}

// State returns the state of the live session, or Idle.
func (t *Tracker) State() model.SessionState {
	if t.session == nil {
		return model.StateIdle
	}
	return t.session.State
}

// Observe feeds one classified event.
func (t *Tracker) Observe(ev model.ActivityEvent, cat model.Category) Transition {
	ts := t.clamp(ev.Timestamp)
	t.lastEvent = ts

	var tr Transition
	if t.session != nil && t.lastApp != "" && ev.AppName != "" && ev.AppName != t.lastApp {
		t.session.ContextSwitches++
		tr.ContextSwitch = true
	}
	if ev.AppName != "" {
		t.lastApp = ev.AppName
	}

	if cat == model.Distraction {
		if t.session == nil {
			return tr
		}
		if t.graceStart.IsZero() {
			t.graceStart = ts
			t.session.DistractionsCount++
		}
		if t.graceExpired(ts) {
			t.closeInto(&tr)
		}
		return tr
	}

	if t.session != nil && !t.graceStart.IsZero() {
		if t.graceExpired(ts) {
			t.closeInto(&tr)
		} else {
			t.distracted += ts.Sub(t.graceStart)
			t.graceStart = time.Time{}
		}
	}

	if t.session == nil {
		t.open(ts, ev.AppName)
		tr.Opened = true
		tr.ContextSwitch = false
	} else {
		t.session.AppsTouched[ev.AppName] = struct{}{}
	}
	t.lastProductive = ts
	t.session.ContinuousMinutes = minutesBetween(t.session.StartTime, ts)
	t.qualify(&tr)
	return tr
}

// End closes the live session because the caller stopped tracking. The
// session ends at its last productive event: a stalled stream adds no time.
func (t *Tracker) End() Transition {
	var tr Transition
	if t.session == nil {
		return tr
	}
	t.session.ContinuousMinutes = minutesBetween(t.session.StartTime, t.lastProductive)
	t.qualify(&tr)
	t.closeInto(&tr)
	return tr
}

// Current returns a snapshot of the live session with its duration
// recomputed against now, or nil when idle. It does not mutate the tracker.
func (t *Tracker) Current(now time.Time) *model.WorkSession {
	if t.session == nil {
		return nil
	}
	snap := t.session.Clone()
	snap.ContinuousMinutes = minutesBetween(snap.StartTime, t.reference(now))
	if !snap.Qualified && snap.ContinuousMinutes >= t.cfg.MinimumMinutes {
		snap.Qualified = true
		snap.State = model.StateQualified
	}
	snap.QualityScore = t.quality(snap.ContinuousMinutes)
	return &snap
}

// MinutesSinceBreak is the continuous work time the break advisor sees:
// time since the session start or the last taken break, whichever is later.
func (t *Tracker) MinutesSinceBreak(now time.Time) float64 {
	if t.session == nil {
		return 0
	}
	anchor := t.session.StartTime
	if t.lastBreak.After(anchor) {
		anchor = t.lastBreak
	}
	return minutesBetween(anchor, t.reference(now))
}

// MarkBreak restarts the continuous work counter at the given time.
func (t *Tracker) MarkBreak(at time.Time) {
	if at.Before(t.lastEvent) {
		at = t.lastEvent
	}
	t.lastBreak = at
	t.lastApp = ""
}

// InGrace reports whether a distraction is currently being tolerated.
func (t *Tracker) InGrace() bool {
	return t.session != nil && !t.graceStart.IsZero()
}

func (t *Tracker) open(ts time.Time, app string) {
	t.session = &model.WorkSession{
		ID:          t.newID(),
		StartTime:   ts,
		AppsTouched: map[string]struct{}{},
		State:       model.StateAccumulating,
	}
	if app != "" {
		t.session.AppsTouched[app] = struct{}{}
	}
	t.graceStart = time.Time{}
	t.distracted = 0
}

// qualify marks the live session qualified once it reaches the minimum and
// fires the achievement callback. It fires at most once per session.
func (t *Tracker) qualify(tr *Transition) {
	s := t.session
	if s.Qualified || s.ContinuousMinutes < t.cfg.MinimumMinutes {
		return
	}
	s.Qualified = true
	s.State = model.StateQualified
	tr.Qualified = true
	if t.onQualified != nil {
		t.onQualified(s.Clone())
	}
}

func (t *Tracker) closeInto(tr *Transition) {
	s := t.session
	end := t.lastProductive
	if end.Before(s.StartTime) {
		end = s.StartTime
	}
	s.EndTime = &end
	s.State = model.StateClosed
	s.QualityScore = t.quality(s.ContinuousMinutes)
	closed := s.Clone()
	tr.Closed = &closed
	tr.Persist = closed.ContinuousMinutes >= t.cfg.PersistMinutes

	t.session = nil
	t.graceStart = time.Time{}
	t.distracted = 0
}

func (t *Tracker) graceExpired(ts time.Time) bool {
	gap := ts.Sub(t.lastProductive).Minutes()
	return gap > t.cfg.AllowedBreakMinutes
}

// reference is the instant durations are measured to: frozen at the last
// productive event while a distraction is in grace.
func (t *Tracker) reference(now time.Time) time.Time {
	if !t.graceStart.IsZero() {
		return t.lastProductive
	}
	if now.Before(t.lastEvent) {
		return t.lastEvent
	}
	return now
}

func (t *Tracker) quality(minutes float64) float64 {
	if minutes <= 0 {
		return 100
	}
	lost := t.distracted.Minutes()
	score := 100 * (minutes - lost) / minutes
	if score < 0 {
		return 0
	}
	return score
}

func (t *Tracker) clamp(ts time.Time) time.Time {
	if ts.IsZero() || ts.Before(t.lastEvent) {
		return t.lastEvent
	}
	return ts
}

func minutesBetween(from, to time.Time) float64 {
	d := to.Sub(from).Minutes()
	if d < 0 {
		return 0
	}
	return d
}

func normalize(cfg model.TrackerConfig) model.TrackerConfig {
	def := DefaultConfig()
	if cfg.MinimumMinutes <= 0 {
		cfg.MinimumMinutes = def.MinimumMinutes
	}
	if cfg.AllowedBreakMinutes <= 0 {
		cfg.AllowedBreakMinutes = def.AllowedBreakMinutes
	}
	if cfg.PersistMinutes <= 0 {
		cfg.PersistMinutes = def.PersistMinutes
	}
	return cfg
}
