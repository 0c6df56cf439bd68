// Package engine wires the classifier, session tracker, break advisor,
// burnout assessor and store into one productivity signal engine.
//
// An Engine consumes one ordered activity stream. Its methods must be
// called from a single goroutine, except UpdateConfig which may be called
// from anywhere and takes effect at the next processed event.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/verte-zerg/deepwork/internal/advisor"
	"github.com/verte-zerg/deepwork/internal/burnout"
	"github.com/verte-zerg/deepwork/internal/classifier"
	"github.com/verte-zerg/deepwork/internal/countdown"
	"github.com/verte-zerg/deepwork/internal/logging"
	"github.com/verte-zerg/deepwork/internal/model"
	"github.com/verte-zerg/deepwork/internal/stats"
	"github.com/verte-zerg/deepwork/internal/store"
	"github.com/verte-zerg/deepwork/internal/tracker"
)

const (
	// DefaultFocusWindowMinutes is the trailing window for focus samples.
	DefaultFocusWindowMinutes = 10
	maxFocusSamples           = 64
)

// DefaultMaxPendingActivities caps activity rows queued while the store is
// failing.
const DefaultMaxPendingActivities = 5000

// Repository is the durable storage the engine writes through.
type Repository interface {
	InsertActivity(ctx context.Context, rec model.ActivityRecord) (int64, error)
	InsertSession(ctx context.Context, ws model.WorkSession) error
	UpsertDailyPattern(ctx context.Context, p model.DailyWorkPattern) error
	RecentDailyPatterns(ctx context.Context, n int) ([]model.DailyWorkPattern, error)
	InsertBreak(ctx context.Context, rec model.BreakRecord) (int64, error)
	ListBreaks(ctx context.Context, start, end time.Time) ([]model.BreakRecord, error)
	ListSessions(ctx context.Context, start, end time.Time) ([]model.WorkSession, error)
}

// PersistStatus reports the outcome of a write cycle. Failed writes stay
// queued and are retried on the next cycle.
type PersistStatus struct {
	Written int
	Pending int
	// Dropped counts activity rows discarded because the queue was full.
	Dropped int
	Err     error
}

// OK reports whether every queued write reached the store.
func (p PersistStatus) OK() bool {
	return p.Err == nil && p.Pending == 0
}

// Result describes what processing one activity event did.
type Result struct {
	Category       model.Category
	Session        *model.WorkSession
	Closed         *model.WorkSession
	Qualified      bool
	Recommendation *model.BreakRecommendation
	Persist        PersistStatus
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithPicker sets the break activity picker.
func WithPicker(p advisor.Picker) Option {
	return func(e *Engine) { e.picker = p }
}

// WithConfig sets the initial configuration.
func WithConfig(cfg model.EngineConfig) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithMaxPendingActivities caps the activity rows queued while the store is
// failing. Values below 1 keep the default.
func WithMaxPendingActivities(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxPendingActivities = n
		}
	}
}

// WithOnAchievement registers a callback fired once per session when it
// qualifies as deep work.
func WithOnAchievement(fn func(model.WorkSession)) Option {
	return func(e *Engine) { e.onAchievement = fn }
}

type span struct {
	start      time.Time
	end        time.Time
	productive bool
}

type lastActivity struct {
	event    model.ActivityEvent
	category model.Category
}

type writeKind int

const (
	writeActivity writeKind = iota
	writeSession
	writeBreak
	writePattern
)

type pendingWrite struct {
	kind     writeKind
	activity model.ActivityRecord
	session  model.WorkSession
	brk      model.BreakRecord
	pattern  model.DailyWorkPattern
}

// Engine is an explicit productivity engine instance.
type Engine struct {
	repo          Repository
	logger        *slog.Logger
	now           func() time.Time
	picker        advisor.Picker
	onAchievement func(model.WorkSession)

	cfg         model.EngineConfig
	classifier  *classifier.Classifier
	tracker     *tracker.Tracker
	advisor     *advisor.Advisor
	timer       *countdown.Countdown
	focusWindow time.Duration

	cfgMu  sync.Mutex
	staged *model.EngineConfig

	contextSwitches int
	samples         []float64
	spans           []span
	last            *lastActivity
	pending         []pendingWrite
	dropped         int
	lastAssessment  *model.BurnoutAssessment

	maxPendingActivities int
}

// New returns an engine writing through repo.
func New(repo Repository, opts ...Option) *Engine {
	e := &Engine{
		repo:   repo,
		logger: slog.Default(),
		now:    time.Now,
		timer:  countdown.New(),
		cfg:    DefaultConfig(),

		maxPendingActivities: DefaultMaxPendingActivities,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.picker == nil {
		e.picker = advisor.NewTimeSeededPicker()
	}
	e.advisor = advisor.New(e.picker)
	e.tracker = tracker.New(e.cfg.Tracker, tracker.WithOnQualified(e.qualified))
	e.apply(e.cfg)
	return e
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() model.EngineConfig {
	return model.EngineConfig{
		DistractionKeywords: append([]string(nil), classifier.DefaultDistractions...),
		Tracker:             tracker.DefaultConfig(),
		FocusWindowMinutes:  DefaultFocusWindowMinutes,
	}
}

// UpdateConfig stages cfg; it is applied atomically before the next event.
func (e *Engine) UpdateConfig(cfg model.EngineConfig) {
	e.cfgMu.Lock()
	defer e.cfgMu.Unlock()
	staged := cfg
	staged.DistractionKeywords = append([]string(nil), cfg.DistractionKeywords...)
	e.staged = &staged
}

// Config returns the configuration currently in effect.
func (e *Engine) Config() model.EngineConfig {
	cfg := e.cfg
	cfg.DistractionKeywords = e.classifier.Signatures()
	cfg.Tracker = e.tracker.Config()
	return cfg
}

func (e *Engine) applyStaged() {
	e.cfgMu.Lock()
	staged := e.staged
	e.staged = nil
	e.cfgMu.Unlock()
	if staged != nil {
		e.apply(*staged)
		e.logger.Debug("applied configuration", "keywords", len(staged.DistractionKeywords))
	}
}

func (e *Engine) apply(cfg model.EngineConfig) {
	e.cfg = cfg
	if len(cfg.DistractionKeywords) == 0 {
		e.classifier = classifier.Default()
	} else {
		e.classifier = classifier.New(cfg.DistractionKeywords)
	}
	e.tracker.SetConfig(cfg.Tracker)
	window := cfg.FocusWindowMinutes
	if window <= 0 {
		window = DefaultFocusWindowMinutes
	}
	e.focusWindow = time.Duration(window * float64(time.Minute))
}

// ProcessActivity classifies ev, advances the session tracker and asks the
// break advisor for a recommendation. Storage failures never fail the call;
// they are reported in Result.Persist and retried on the next write.
func (e *Engine) ProcessActivity(ctx context.Context, ev model.ActivityEvent) Result {
	e.applyStaged()
	logger := logging.FromContext(ctx, e.logger)
	if ev.Timestamp.IsZero() {
		ev.Timestamp = e.now()
	}
	if e.last != nil && ev.Timestamp.Before(e.last.event.Timestamp) {
		logger.Debug("clamping out-of-order activity", "ts", ev.Timestamp, "last", e.last.event.Timestamp)
		ev.Timestamp = e.last.event.Timestamp
	}

	cat := e.classifier.ClassifyEvent(ev)
	e.closeLastActivity(ev.Timestamp)

	tr := e.tracker.Observe(ev, cat)
	res := Result{Category: cat, Qualified: tr.Qualified}
	if tr.Closed != nil {
		res.Closed = tr.Closed
		e.sessionClosed(logger, *tr.Closed, tr.Persist)
	}
	if tr.Opened {
		e.samples = nil
		logger.Debug("session opened", "app", ev.AppName)
	}
	if tr.ContextSwitch {
		e.contextSwitches++
	}

	e.last = &lastActivity{event: ev, category: cat}
	if e.tracker.State() != model.StateIdle {
		e.sampleFocus(ev.Timestamp)
	}

	res.Session = e.tracker.Current(ev.Timestamp)
	res.Recommendation = e.advisor.Advise(advisor.Input{
		ContinuousMinutes: e.tracker.MinutesSinceBreak(ev.Timestamp),
		ContextSwitches:   e.contextSwitches,
		FocusSamples:      e.FocusSamples(),
	})
	if res.Recommendation != nil {
		logger.Debug("break recommended", "type", res.Recommendation.Type, "urgency", res.Recommendation.Urgency)
	}
	res.Persist = e.flush(ctx)
	return res
}

// EndTracking closes the live session, if any, and flushes pending writes.
func (e *Engine) EndTracking(ctx context.Context) Result {
	logger := logging.FromContext(ctx, e.logger)
	e.closeLastActivity(e.trailingEnd(e.now()))
	e.last = nil

	var res Result
	tr := e.tracker.End()
	if tr.Closed != nil {
		res.Closed = tr.Closed
		e.sessionClosed(logger, *tr.Closed, tr.Persist)
	}
	res.Persist = e.flush(ctx)
	return res
}

// CurrentSession returns the live session recomputed against now, or nil.
func (e *Engine) CurrentSession() *model.WorkSession {
	return e.tracker.Current(e.now())
}

// ContextSwitches returns the number of app switches since the last break.
func (e *Engine) ContextSwitches() int {
	return e.contextSwitches
}

// FocusSamples returns a copy of the live session's focus score samples.
func (e *Engine) FocusSamples() []float64 {
	return append([]float64(nil), e.samples...)
}

// RecordBreak records a break outcome at the stream's current time: the
// last observed event while tracking, otherwise the clock.
func (e *Engine) RecordBreak(ctx context.Context, kind model.BreakType, taken bool) (PersistStatus, error) {
	return e.RecordBreakAt(ctx, kind, taken, time.Time{})
}

// RecordBreakAt records a break outcome at the given instant; a zero time
// means the stream's current time. A taken break resets the context switch
// count, clears focus samples and restarts continuous work time.
func (e *Engine) RecordBreakAt(ctx context.Context, kind model.BreakType, taken bool, at time.Time) (PersistStatus, error) {
	if !kind.Valid() {
		return PersistStatus{Pending: len(e.pending)}, fmt.Errorf("unknown break type %q", kind)
	}
	if at.IsZero() {
		at = e.StreamTime()
	}
	if taken {
		e.contextSwitches = 0
		e.samples = nil
		e.tracker.MarkBreak(at)
	}
	e.enqueue(pendingWrite{kind: writeBreak, brk: model.BreakRecord{Type: kind, Taken: taken, At: at}})
	logging.FromContext(ctx, e.logger).Debug("break recorded", "type", kind, "taken", taken)
	return e.flush(ctx), nil
}

// BreakStats summarizes the breaks of the stream's current day, including
// ones not yet stored.
func (e *Engine) BreakStats(ctx context.Context) (model.BreakStats, error) {
	return e.BreakStatsOn(ctx, e.StreamTime())
}

// BreakStatsOn summarizes the breaks of the calendar day containing day.
func (e *Engine) BreakStatsOn(ctx context.Context, day time.Time) (model.BreakStats, error) {
	start, end := store.DayRange(day)
	records, err := e.repo.ListBreaks(ctx, start, end)
	if err != nil {
		return model.BreakStats{Date: start.Format(model.DateLayout), ByType: map[model.BreakType]int{}}, fmt.Errorf("failed to list breaks: %w", err)
	}
	for _, p := range e.pending {
		if p.kind == writeBreak {
			records = append(records, p.brk)
		}
	}
	return stats.BreakStatsFor(records, day), nil
}

// RecordDailyPattern upserts one day's aggregate. Invalid patterns are
// rejected; storage failures are queued and reported in the status.
func (e *Engine) RecordDailyPattern(ctx context.Context, p model.DailyWorkPattern) (PersistStatus, error) {
	if err := store.ValidatePattern(p); err != nil {
		return PersistStatus{Pending: len(e.pending)}, err
	}
	e.enqueue(pendingWrite{kind: writePattern, pattern: p})
	return e.flush(ctx), nil
}

// AssessBurnoutRisk recomputes the burnout assessment from the last 14
// daily patterns. It never fails: unreadable history degrades to what is
// held in memory.
func (e *Engine) AssessBurnoutRisk(ctx context.Context) model.BurnoutAssessment {
	logger := logging.FromContext(ctx, e.logger)
	e.flush(ctx)
	rows, err := e.repo.RecentDailyPatterns(ctx, burnout.WindowDays)
	if err != nil {
		logger.Warn("failed to load daily patterns; assessing pending rows only", "err", err)
		rows = nil
	}
	rows = e.mergePendingPatterns(rows)
	assessment := burnout.Assess(rows, e.now())
	e.lastAssessment = &assessment
	return assessment
}

// LastAssessment returns the most recent assessment, or nil.
func (e *Engine) LastAssessment() *model.BurnoutAssessment {
	if e.lastAssessment == nil {
		return nil
	}
	a := *e.lastAssessment
	return &a
}

// TodaySessions returns today's completed sessions.
func (e *Engine) TodaySessions(ctx context.Context) ([]model.WorkSession, error) {
	start, end := store.DayRange(e.now())
	return e.sessionsBetween(ctx, start, end)
}

// CompletedSessions returns completed sessions from the last days calendar days.
func (e *Engine) CompletedSessions(ctx context.Context, days int) ([]model.WorkSession, error) {
	start, end := store.DaysRange(e.now(), days)
	return e.sessionsBetween(ctx, start, end)
}

// Flush retries queued writes.
func (e *Engine) Flush(ctx context.Context) PersistStatus {
	return e.flush(ctx)
}

// Pending returns the number of queued writes.
func (e *Engine) Pending() int {
	return len(e.pending)
}

// StartTimer starts the engine's countdown, replacing any active one.
func (e *Engine) StartTimer(phase countdown.Phase, d time.Duration) {
	e.timer.Start(phase, d, e.now())
}

// PauseTimer pauses a running countdown.
func (e *Engine) PauseTimer() error {
	return e.timer.Pause(e.now())
}

// ResumeTimer resumes a paused countdown.
func (e *Engine) ResumeTimer() error {
	return e.timer.Resume(e.now())
}

// ResetTimer restarts the current countdown phase from its full duration.
func (e *Engine) ResetTimer() {
	e.timer.Reset(e.now())
}

// CancelTimer cancels the countdown without touching recorded data.
func (e *Engine) CancelTimer() {
	e.timer.Cancel()
}

// Timer returns the countdown state as of now.
func (e *Engine) Timer() countdown.Snapshot {
	return e.timer.Snapshot(e.now())
}

// WaitTimer blocks until the countdown expires or is canceled.
func (e *Engine) WaitTimer(ctx context.Context) error {
	return e.timer.Wait(ctx)
}

// StreamTime is the time of the last observed event while tracking, or the
// clock before any event. Replayed or delayed streams stay on their own
// timeline.
func (e *Engine) StreamTime() time.Time {
	if e.last != nil {
		return e.last.event.Timestamp
	}
	return e.now()
}

// trailingEnd bounds how long the last observation is assumed to have
// lasted when tracking stops: at most the allowed break after it.
func (e *Engine) trailingEnd(now time.Time) time.Time {
	if e.last == nil {
		return now
	}
	limit := e.last.event.Timestamp.Add(time.Duration(e.tracker.Config().AllowedBreakMinutes * float64(time.Minute)))
	if now.After(limit) {
		return limit
	}
	return now
}

func (e *Engine) qualified(ws model.WorkSession) {
	e.logger.Info("deep work session qualified", "session", ws.ID, "minutes", int(ws.ContinuousMinutes))
	if e.onAchievement != nil {
		e.onAchievement(ws)
	}
}

func (e *Engine) sessionClosed(logger *slog.Logger, ws model.WorkSession, persist bool) {
	e.samples = nil
	logger.Info("session closed",
		"session", ws.ID,
		"minutes", fmt.Sprintf("%.1f", ws.ContinuousMinutes),
		"qualified", ws.Qualified,
		"persist", persist,
	)
	if persist {
		e.enqueue(pendingWrite{kind: writeSession, session: ws})
	}
}

// closeLastActivity turns the previous observation into a log record
// lasting until at, and into a span for focus sampling.
func (e *Engine) closeLastActivity(at time.Time) {
	if e.last == nil {
		return
	}
	prev := e.last
	d := at.Sub(prev.event.Timestamp)
	if d < 0 {
		d = 0
	}
	productive := prev.category == model.Productive
	e.spans = append(e.spans, span{start: prev.event.Timestamp, end: prev.event.Timestamp.Add(d), productive: productive})
	e.pruneSpans(at)
	e.enqueue(pendingWrite{kind: writeActivity, activity: model.ActivityRecord{
		AppName:         prev.event.AppName,
		WindowTitle:     prev.event.WindowTitle,
		URL:             prev.event.URL,
		Category:        prev.category,
		DurationSeconds: int64(d.Seconds()),
		IsDistraction:   !productive,
		CreatedAt:       prev.event.Timestamp,
	}})
}

// pruneSpans drops spans that ended before the focus window preceding now.
func (e *Engine) pruneSpans(now time.Time) {
	from := now.Add(-e.focusWindow)
	kept := e.spans[:0]
	for _, s := range e.spans {
		if s.end.After(from) {
			kept = append(kept, s)
		}
	}
	e.spans = kept
}

// sampleFocus appends the productive share of the trailing window.
func (e *Engine) sampleFocus(now time.Time) {
	e.pruneSpans(now)
	from := now.Add(-e.focusWindow)
	var total, productive time.Duration
	for _, s := range e.spans {
		start := s.start
		if start.Before(from) {
			start = from
		}
		d := s.end.Sub(start)
		total += d
		if s.productive {
			productive += d
		}
	}
	if total <= 0 {
		return
	}
	e.samples = append(e.samples, 100*productive.Seconds()/total.Seconds())
	if len(e.samples) > maxFocusSamples {
		e.samples = append([]float64(nil), e.samples[len(e.samples)-maxFocusSamples:]...)
	}
}

func (e *Engine) sessionsBetween(ctx context.Context, start, end time.Time) ([]model.WorkSession, error) {
	sessions, err := e.repo.ListSessions(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	for _, p := range e.pending {
		if p.kind == writeSession && !p.session.StartTime.Before(start) && p.session.StartTime.Before(end) {
			sessions = append(sessions, p.session)
		}
	}
	return sessions, nil
}

func (e *Engine) mergePendingPatterns(rows []model.DailyWorkPattern) []model.DailyWorkPattern {
	byDate := make(map[string]int, len(rows))
	for i, r := range rows {
		byDate[r.Date] = i
	}
	for _, p := range e.pending {
		if p.kind != writePattern {
			continue
		}
		if i, ok := byDate[p.pattern.Date]; ok {
			rows[i] = p.pattern
			continue
		}
		byDate[p.pattern.Date] = len(rows)
		rows = append(rows, p.pattern)
	}
	return rows
}

// enqueue queues a write. Activity rows are capped: when the store stays
// down the oldest queued activity is dropped; sessions, breaks and patterns
// are always kept.
func (e *Engine) enqueue(w pendingWrite) {
	if w.kind == writeActivity && e.queuedActivities() >= e.maxPendingActivities {
		e.dropOldestActivity()
	}
	e.pending = append(e.pending, w)
}

func (e *Engine) queuedActivities() int {
	n := 0
	for _, p := range e.pending {
		if p.kind == writeActivity {
			n++
		}
	}
	return n
}

func (e *Engine) dropOldestActivity() {
	for i, p := range e.pending {
		if p.kind != writeActivity {
			continue
		}
		e.pending = append(e.pending[:i], e.pending[i+1:]...)
		e.dropped++
		if e.dropped == 1 {
			e.logger.Warn("activity queue full; dropping oldest activity rows", "limit", e.maxPendingActivities)
		}
		return
	}
}

// flush writes queued records in order, stopping at the first failure so
// the rest are retried on the next cycle.
func (e *Engine) flush(ctx context.Context) PersistStatus {
	var status PersistStatus
	for len(e.pending) > 0 {
		if err := e.write(ctx, e.pending[0]); err != nil {
			status.Err = err
			logging.FromContext(ctx, e.logger).Warn("store write failed; will retry", "pending", len(e.pending), "err", err)
			break
		}
		e.pending = e.pending[1:]
		status.Written++
	}
	if len(e.pending) == 0 {
		e.pending = nil
	}
	status.Pending = len(e.pending)
	status.Dropped = e.dropped
	return status
}

func (e *Engine) write(ctx context.Context, w pendingWrite) error {
	switch w.kind {
	case writeActivity:
		_, err := e.repo.InsertActivity(ctx, w.activity)
		return err
	case writeSession:
		return e.repo.InsertSession(ctx, w.session)
	case writeBreak:
		_, err := e.repo.InsertBreak(ctx, w.brk)
		return err
	case writePattern:
		return e.repo.UpsertDailyPattern(ctx, w.pattern)
	default:
		return fmt.Errorf("unknown write kind %d", w.kind)
	}
}
