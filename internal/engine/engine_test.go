package engine

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/deepwork/internal/advisor"
	"github.com/verte-zerg/deepwork/internal/countdown"
	"github.com/verte-zerg/deepwork/internal/logging"
	"github.com/verte-zerg/deepwork/internal/model"
	"github.com/verte-zerg/deepwork/internal/store"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) set(t time.Time) { c.t = t }

var errDiskFull = errors.New("disk full")

// flakyRepo fails every write while fail is set.
type flakyRepo struct {
	*store.Store
	fail bool
}

func (r *flakyRepo) InsertActivity(ctx context.Context, rec model.ActivityRecord) (int64, error) {
	if r.fail {
		return 0, errDiskFull
	}
	return r.Store.InsertActivity(ctx, rec)
}

func (r *flakyRepo) InsertSession(ctx context.Context, ws model.WorkSession) error {
	if r.fail {
		return errDiskFull
	}
	return r.Store.InsertSession(ctx, ws)
}

func (r *flakyRepo) InsertBreak(ctx context.Context, rec model.BreakRecord) (int64, error) {
	if r.fail {
		return 0, errDiskFull
	}
	return r.Store.InsertBreak(ctx, rec)
}

func (r *flakyRepo) UpsertDailyPattern(ctx context.Context, p model.DailyWorkPattern) error {
	if r.fail {
		return errDiskFull
	}
	return r.Store.UpsertDailyPattern(ctx, p)
}

var base = time.Date(2026, 3, 2, 9, 0, 0, 0, time.Local)

func at(minutes float64) time.Time {
	return base.Add(time.Duration(minutes * float64(time.Minute)))
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *flakyRepo, *fakeClock) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "deepwork.db"), store.WithCompactEvery(0))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	repo := &flakyRepo{Store: st}
	clock := &fakeClock{t: base}
	opts = append([]Option{
		WithClock(clock.now),
		WithLogger(logging.Discard()),
		WithPicker(advisor.IndexPicker(0)),
		WithConfig(DefaultConfig()),
	}, opts...)
	return New(repo, opts...), repo, clock
}

func feed(e *Engine, clock *fakeClock, app string, minutes float64) Result {
	clock.set(at(minutes))
	return e.ProcessActivity(context.Background(), model.ActivityEvent{AppName: app, WindowTitle: app, Timestamp: at(minutes)})
}

func TestScenarioAQualifiesAndRecommendsLongBreak(t *testing.T) {
	achievements := 0
	e, _, clock := newTestEngine(t, WithOnAchievement(func(model.WorkSession) { achievements++ }))

	var at60, at90 Result
	for i := 0; i <= 95; i++ {
		res := feed(e, clock, "Code", float64(i))
		switch i {
		case 60:
			at60 = res
		case 90:
			at90 = res
		}
	}
	if at60.Session == nil || at60.Session.State != model.StateQualified || !at60.Qualified {
		t.Fatalf("expected qualified at minute 60, got %+v", at60.Session)
	}
	rec := at90.Recommendation
	if rec == nil || rec.Type != model.BreakLong || rec.Urgency != model.UrgencyHigh {
		t.Fatalf("expected long/high at minute 90, got %+v", rec)
	}
	if achievements != 1 {
		t.Fatalf("expected one achievement, got %d", achievements)
	}
	if cur := e.CurrentSession(); cur == nil || math.Abs(cur.ContinuousMinutes-95) > 1e-9 {
		t.Fatalf("expected 95 minute live session, got %+v", cur)
	}
}

func TestScenarioCPersistsInterruptedSession(t *testing.T) {
	e, _, clock := newTestEngine(t)
	for i := 0; i <= 40; i += 2 {
		feed(e, clock, "Code", float64(i))
	}
	feed(e, clock, "YouTube", 41)
	res := feed(e, clock, "YouTube", 46)
	if res.Closed == nil || res.Closed.State != model.StateClosed {
		t.Fatalf("expected session closed, got %+v", res.Closed)
	}
	if !res.Persist.OK() {
		t.Fatalf("expected writes to succeed, got %+v", res.Persist)
	}
	sessions, err := e.TodaySessions(context.Background())
	if err != nil {
		t.Fatalf("today sessions: %v", err)
	}
	if len(sessions) != 1 || math.Abs(sessions[0].ContinuousMinutes-40) > 0.01 {
		t.Fatalf("expected one ~40 minute session, got %+v", sessions)
	}
	if e.CurrentSession() != nil {
		t.Fatalf("expected no live session")
	}
}

func TestGraceDoesNotClose(t *testing.T) {
	e, _, clock := newTestEngine(t)
	feed(e, clock, "Code", 0)
	feed(e, clock, "Code", 10)
	res := feed(e, clock, "Discord", 13)
	if res.Closed != nil || res.Category != model.Distraction {
		t.Fatalf("expected tolerated distraction, got %+v", res)
	}
	res = feed(e, clock, "Code", 14)
	if res.Closed != nil || res.Session == nil {
		t.Fatalf("expected session to continue")
	}
}

func TestRecordBreakResetsCounters(t *testing.T) {
	e, _, clock := newTestEngine(t)
	apps := []string{"Code", "Terminal"}
	for i := 0; i <= 40; i++ {
		feed(e, clock, apps[i%2], float64(i))
	}
	if e.ContextSwitches() == 0 || len(e.FocusSamples()) == 0 {
		t.Fatalf("expected counters to accumulate, switches=%d samples=%d", e.ContextSwitches(), len(e.FocusSamples()))
	}
	status, err := e.RecordBreak(context.Background(), model.BreakShort, true)
	if err != nil {
		t.Fatalf("record break: %v", err)
	}
	if !status.OK() {
		t.Fatalf("expected break stored, got %+v", status)
	}
	if e.ContextSwitches() != 0 || len(e.FocusSamples()) != 0 {
		t.Fatalf("expected reset, switches=%d samples=%d", e.ContextSwitches(), len(e.FocusSamples()))
	}
	var res Result
	for i := 41; i <= 90; i++ {
		res = feed(e, clock, "Code", float64(i))
	}
	if res.Recommendation != nil && res.Recommendation.Type == model.BreakLong {
		t.Fatalf("continuous time must restart after a break, got %+v", res.Recommendation)
	}
	if res.Session == nil || res.Session.ContinuousMinutes < 90 {
		t.Fatalf("session duration is not affected by breaks, got %+v", res.Session)
	}
}

func TestRecordBreakRejectsUnknownType(t *testing.T) {
	e, _, _ := newTestEngine(t)
	if _, err := e.RecordBreak(context.Background(), model.BreakType("nap"), true); err == nil {
		t.Fatalf("expected error for unknown break type")
	}
}

func TestBreakStatsAcrossMidnight(t *testing.T) {
	e, _, clock := newTestEngine(t)
	ctx := context.Background()
	clock.set(time.Date(2026, 3, 2, 23, 50, 0, 0, time.Local))
	if _, err := e.RecordBreak(ctx, model.BreakShort, true); err != nil {
		t.Fatalf("record break: %v", err)
	}
	if _, err := e.RecordBreak(ctx, model.BreakEye, false); err != nil {
		t.Fatalf("record break: %v", err)
	}
	clock.set(time.Date(2026, 3, 3, 0, 10, 0, 0, time.Local))
	if _, err := e.RecordBreak(ctx, model.BreakLong, true); err != nil {
		t.Fatalf("record break: %v", err)
	}
	stats, err := e.BreakStats(ctx)
	if err != nil {
		t.Fatalf("break stats: %v", err)
	}
	if stats.Date != "2026-03-03" || stats.Taken != 1 || stats.Skipped != 0 || stats.ByType[model.BreakLong] != 1 {
		t.Fatalf("expected only today's long break, got %+v", stats)
	}
}

func TestStoreFailureQueuesAndRetries(t *testing.T) {
	e, repo, clock := newTestEngine(t)
	ctx := context.Background()
	feed(e, clock, "Code", 0)
	feed(e, clock, "Code", 20)

	repo.fail = true
	res := feed(e, clock, "Netflix", 27)
	if res.Closed == nil {
		t.Fatalf("expected session closed")
	}
	if res.Persist.OK() || !errors.Is(res.Persist.Err, errDiskFull) || res.Persist.Pending == 0 {
		t.Fatalf("expected queued writes with error, got %+v", res.Persist)
	}
	sessions, err := e.TodaySessions(ctx)
	if err != nil {
		t.Fatalf("today sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("pending session must stay visible, got %d", len(sessions))
	}

	repo.fail = false
	res = feed(e, clock, "Code", 30)
	if !res.Persist.OK() || res.Persist.Written == 0 {
		t.Fatalf("expected queued writes to flush, got %+v", res.Persist)
	}
	if e.Pending() != 0 {
		t.Fatalf("expected empty queue, got %d", e.Pending())
	}
	start, end := store.DayRange(base)
	stored, err := repo.Store.ListSessions(ctx, start, end)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected retried session in store, got %d", len(stored))
	}
}

func TestConfigUpdateAppliesToNextEvent(t *testing.T) {
	e, _, clock := newTestEngine(t)
	first := feed(e, clock, "Terminal", 0)
	if first.Category != model.Productive {
		t.Fatalf("expected terminal productive by default")
	}
	cfg := DefaultConfig()
	cfg.DistractionKeywords = []string{"terminal"}
	e.UpdateConfig(cfg)
	if first.Category != model.Productive {
		t.Fatalf("config change must not be retroactive")
	}
	if got := feed(e, clock, "Terminal", 1).Category; got != model.Distraction {
		t.Fatalf("expected new keywords at next event, got %s", got)
	}
	if sigs := e.Config().DistractionKeywords; len(sigs) != 1 || sigs[0] != "terminal" {
		t.Fatalf("unexpected active keywords %v", sigs)
	}
}

func TestAssessBurnoutRisk(t *testing.T) {
	e, repo, clock := newTestEngine(t)
	ctx := context.Background()

	empty := e.AssessBurnoutRisk(ctx)
	if empty.RiskLevel != model.RiskLow || empty.Score != 0 || len(empty.Recommendations) != 1 {
		t.Fatalf("expected neutral assessment, got %+v", empty)
	}

	clock.set(time.Date(2026, 3, 20, 20, 0, 0, 0, time.Local))
	for i := 0; i < 14; i++ {
		day := time.Date(2026, 3, 6+i, 0, 0, 0, 0, time.Local)
		p := model.DailyWorkPattern{Date: day.Format(model.DateLayout), WorkMinutes: 600, FocusScore: 75, BreaksTaken: 1}
		if i == 13 {
			repo.fail = true
		}
		if _, err := e.RecordDailyPattern(ctx, p); err != nil {
			t.Fatalf("record pattern: %v", err)
		}
	}
	a := e.AssessBurnoutRisk(ctx)
	if a.Days != 14 {
		t.Fatalf("expected pending row to be assessed, got %d days", a.Days)
	}
	if a.Score < 40 || (a.RiskLevel != model.RiskModerate && a.RiskLevel != model.RiskHigh) {
		t.Fatalf("expected score >= 40 and moderate/high, got %d %s", a.Score, a.RiskLevel)
	}
	last := e.LastAssessment()
	if last == nil || last.Score != a.Score {
		t.Fatalf("expected cached assessment, got %+v", last)
	}
	if _, err := e.RecordDailyPattern(ctx, model.DailyWorkPattern{Date: "yesterday"}); !errors.Is(err, store.ErrInvalidPattern) {
		t.Fatalf("expected ErrInvalidPattern, got %v", err)
	}
}

func TestEndTrackingPersistsLongSession(t *testing.T) {
	e, _, clock := newTestEngine(t)
	feed(e, clock, "Code", 0)
	feed(e, clock, "Code", 10)
	feed(e, clock, "Code", 18)
	clock.set(at(40))
	res := e.EndTracking(context.Background())
	if res.Closed == nil || math.Abs(res.Closed.ContinuousMinutes-18) > 1e-9 {
		t.Fatalf("expected 18 minute session closed, got %+v", res.Closed)
	}
	sessions, err := e.CompletedSessions(context.Background(), 1)
	if err != nil {
		t.Fatalf("completed sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected stored session, got %d", len(sessions))
	}
}

func TestEndTrackingAfterStallUsesLastEvent(t *testing.T) {
	e, repo, clock := newTestEngine(t)
	ctx := context.Background()
	for i := 0; i <= 20; i++ {
		feed(e, clock, "Code", float64(i))
	}
	clock.set(at(360))
	res := e.EndTracking(ctx)
	if res.Closed == nil || math.Abs(res.Closed.ContinuousMinutes-20) > 1e-9 {
		t.Fatalf("expected 20 minute session, got %+v", res.Closed)
	}
	if res.Closed.Qualified || !res.Closed.EndTime.Equal(at(20)) {
		t.Fatalf("expected unqualified session ending at minute 20, got %+v", res.Closed)
	}

	start, end := store.DayRange(base)
	stored, err := repo.Store.ListSessions(ctx, start, end)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(stored) != 1 || math.Abs(stored[0].ContinuousMinutes-20) > 1e-9 {
		t.Fatalf("expected stored 20 minute session, got %+v", stored)
	}
	activities, err := repo.Store.ListActivities(ctx, start, end)
	if err != nil {
		t.Fatalf("list activities: %v", err)
	}
	var last *model.ActivityRecord
	for i := range activities {
		if activities[i].CreatedAt.Equal(at(20)) {
			last = &activities[i]
		}
	}
	if last == nil || last.DurationSeconds != 300 {
		t.Fatalf("expected trailing activity capped at the allowed break, got %+v", last)
	}
}

// replay feeds an event without moving the clock, like a delayed stream.
func replay(e *Engine, app string, minutes float64) Result {
	return e.ProcessActivity(context.Background(), model.ActivityEvent{AppName: app, WindowTitle: app, Timestamp: at(minutes)})
}

func TestBreakFollowsStreamTime(t *testing.T) {
	e, _, clock := newTestEngine(t)
	ctx := context.Background()
	clock.set(base.Add(24 * time.Hour))
	for i := 0; i <= 10; i++ {
		replay(e, "Code", float64(i))
	}
	if _, err := e.RecordBreak(ctx, model.BreakShort, true); err != nil {
		t.Fatalf("record break: %v", err)
	}
	var res Result
	for i := 11; i <= 100; i++ {
		res = replay(e, "Code", float64(i))
	}
	rec := res.Recommendation
	if rec == nil || rec.Type != model.BreakLong || rec.Urgency != model.UrgencyHigh {
		t.Fatalf("expected long break 90 minutes after the break, got %+v", rec)
	}
	bs, err := e.BreakStats(ctx)
	if err != nil {
		t.Fatalf("break stats: %v", err)
	}
	if bs.Date != "2026-03-02" || bs.Taken != 1 {
		t.Fatalf("expected the break on the stream's day, got %+v", bs)
	}
}

func TestRecordBreakAtExplicitTime(t *testing.T) {
	e, _, clock := newTestEngine(t)
	ctx := context.Background()
	clock.set(base.Add(24 * time.Hour))
	for i := 0; i <= 30; i++ {
		replay(e, "Code", float64(i))
	}
	if _, err := e.RecordBreakAt(ctx, model.BreakEye, true, at(20)); err != nil {
		t.Fatalf("record break: %v", err)
	}
	res := replay(e, "Code", 40)
	if res.Recommendation != nil && res.Recommendation.Type == model.BreakLong {
		t.Fatalf("unexpected long break %+v", res.Recommendation)
	}
	if got := e.tracker.MinutesSinceBreak(at(40)); math.Abs(got-10) > 1e-9 {
		t.Fatalf("a break before the last event counts from the last event, got %.2f", got)
	}
	bs, err := e.BreakStatsOn(ctx, at(0))
	if err != nil {
		t.Fatalf("break stats: %v", err)
	}
	if bs.Taken != 1 || bs.ByType[model.BreakEye] != 1 {
		t.Fatalf("expected eye break on the stream's day, got %+v", bs)
	}
}

func TestSpansStayBoundedWhileIdle(t *testing.T) {
	e, _, clock := newTestEngine(t)
	for i := 0; i <= 500; i++ {
		feed(e, clock, "Reddit", float64(i))
	}
	if e.tracker.State() != model.StateIdle {
		t.Fatalf("distractions must not open a session")
	}
	if len(e.spans) > DefaultFocusWindowMinutes+1 {
		t.Fatalf("expected spans limited to the focus window, got %d", len(e.spans))
	}
}

func TestActivityQueueIsCapped(t *testing.T) {
	e, repo, clock := newTestEngine(t, WithMaxPendingActivities(3))
	ctx := context.Background()
	repo.fail = true
	for i := 0; i <= 9; i++ {
		feed(e, clock, "Reddit", float64(i))
	}
	status, err := e.RecordBreak(ctx, model.BreakEye, true)
	if err != nil {
		t.Fatalf("record break: %v", err)
	}
	if status.Pending != 4 || status.Dropped != 6 {
		t.Fatalf("expected 3 activities and 1 break queued with 6 dropped, got %+v", status)
	}
	feed(e, clock, "Reddit", 10)
	if e.Pending() != 4 {
		t.Fatalf("break must survive the cap, pending %d", e.Pending())
	}

	repo.fail = false
	res := feed(e, clock, "Reddit", 11)
	if !res.Persist.OK() {
		t.Fatalf("expected queue to drain, got %+v", res.Persist)
	}
	start, end := store.DayRange(base)
	breaks, err := repo.Store.ListBreaks(ctx, start, end)
	if err != nil {
		t.Fatalf("list breaks: %v", err)
	}
	if len(breaks) != 1 {
		t.Fatalf("expected queued break stored, got %d", len(breaks))
	}
}

func TestTimerCancelLeavesSessionsAlone(t *testing.T) {
	e, _, clock := newTestEngine(t)
	feed(e, clock, "Code", 0)
	e.StartTimer(countdown.PhaseFocus, 25*time.Minute)
	clock.set(at(5))
	if snap := e.Timer(); snap.Status != countdown.StatusRunning || snap.Remaining != 20*time.Minute {
		t.Fatalf("unexpected timer snapshot %+v", snap)
	}
	e.CancelTimer()
	if e.Timer().Status != countdown.StatusCanceled {
		t.Fatalf("expected canceled timer")
	}
	if cur := e.CurrentSession(); cur == nil || math.Abs(cur.ContinuousMinutes-5) > 1e-9 {
		t.Fatalf("timer must not affect the session, got %+v", cur)
	}
}

func TestWaitTimerReturnsOnCancel(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.StartTimer(countdown.PhaseShortBreak, time.Hour)
	errc := make(chan error, 1)
	go func() {
		errc <- e.WaitTimer(context.Background())
	}()
	e.CancelTimer()
	select {
	case err := <-errc:
		if !errors.Is(err, countdown.ErrCanceled) {
			t.Fatalf("expected ErrCanceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("WaitTimer did not return after cancel")
	}
}

func TestFocusSamplesTrackDistraction(t *testing.T) {
	e, _, clock := newTestEngine(t)
	for i := 0; i <= 10; i++ {
		feed(e, clock, "Code", float64(i))
	}
	feed(e, clock, "Reddit", 11)
	feed(e, clock, "Code", 14)
	samples := e.FocusSamples()
	if len(samples) == 0 {
		t.Fatalf("expected samples")
	}
	lastSample := samples[len(samples)-1]
	if lastSample >= 100 || lastSample <= 0 {
		t.Fatalf("expected partial focus after distraction, got %.2f", lastSample)
	}
}
