package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/deepwork/internal/model"
)

func openTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "deepwork.db"), opts...)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func TestDailyPatternUpsertByDate(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	p := model.DailyWorkPattern{Date: "2026-03-01", WorkMinutes: 300, FocusScore: 70, BreaksTaken: 3}
	if err := st.UpsertDailyPattern(ctx, p); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	p.WorkMinutes = 480
	p.WeekendWork = true
	if err := st.UpsertDailyPattern(ctx, p); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if err := st.UpsertDailyPattern(ctx, model.DailyWorkPattern{Date: "2026-02-28", WorkMinutes: 100}); err != nil {
		t.Fatalf("upsert earlier day: %v", err)
	}

	rows, err := st.RecentDailyPatterns(ctx, 14)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Date != "2026-02-28" || rows[1].Date != "2026-03-01" {
		t.Fatalf("expected ascending dates, got %s, %s", rows[0].Date, rows[1].Date)
	}
	if rows[1].WorkMinutes != 480 || !rows[1].WeekendWork {
		t.Fatalf("expected upserted values, got %+v", rows[1])
	}

	rows, err = st.RecentDailyPatterns(ctx, 1)
	if err != nil {
		t.Fatalf("recent 1: %v", err)
	}
	if len(rows) != 1 || rows[0].Date != "2026-03-01" {
		t.Fatalf("expected most recent row only, got %+v", rows)
	}
}

func TestInvalidPattern(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	for _, p := range []model.DailyWorkPattern{
		{Date: "03/01/2026"},
		{Date: "2026-03-01", FocusScore: 120},
		{Date: "2026-03-01", WorkMinutes: -1},
	} {
		if err := st.UpsertDailyPattern(ctx, p); !errors.Is(err, ErrInvalidPattern) {
			t.Fatalf("expected ErrInvalidPattern for %+v, got %v", p, err)
		}
	}
}

func TestSessionRoundTripAndReplace(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.Local)
	end := start.Add(75 * time.Minute)
	ws := model.WorkSession{
		ID:                "abc",
		StartTime:         start,
		EndTime:           &end,
		ContinuousMinutes: 75,
		AppsTouched:       map[string]struct{}{"Code": {}, "Terminal": {}},
		State:             model.StateClosed,
		Qualified:         true,
		DistractionsCount: 2,
		ContextSwitches:   9,
		QualityScore:      93.5,
	}
	if err := st.InsertSession(ctx, ws); err != nil {
		t.Fatalf("insert session: %v", err)
	}
	if err := st.InsertSession(ctx, ws); err != nil {
		t.Fatalf("re-insert session: %v", err)
	}

	dayStart, dayEnd := DayRange(start)
	got, err := st.ListSessions(ctx, dayStart, dayEnd)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 session, got %d", len(got))
	}
	s := got[0]
	if s.ID != "abc" || !s.Qualified || s.ContextSwitches != 9 || len(s.AppsTouched) != 2 {
		t.Fatalf("unexpected session: %+v", s)
	}
	if !s.StartTime.Equal(start) || s.EndTime == nil || !s.EndTime.Equal(end) {
		t.Fatalf("unexpected times: %v - %v", s.StartTime, s.EndTime)
	}

	open := ws
	open.ID = "open"
	open.EndTime = nil
	if err := st.InsertSession(ctx, open); err == nil {
		t.Fatalf("expected error for open session")
	}
}

func TestListBreaksFiltersByLocalDay(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	late := time.Date(2026, 3, 2, 23, 59, 0, 0, time.Local)
	early := time.Date(2026, 3, 3, 0, 1, 0, 0, time.Local)
	for _, rec := range []model.BreakRecord{
		{Type: model.BreakShort, Taken: true, At: late},
		{Type: model.BreakEye, Taken: false, At: early},
		{Type: model.BreakLong, Taken: true, At: early.Add(time.Hour)},
	} {
		if _, err := st.InsertBreak(ctx, rec); err != nil {
			t.Fatalf("insert break: %v", err)
		}
	}
	start, end := DayRange(early)
	got, err := st.ListBreaks(ctx, start, end)
	if err != nil {
		t.Fatalf("list breaks: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 breaks on the second day, got %d", len(got))
	}
	if got[0].Type != model.BreakEye || got[0].Taken {
		t.Fatalf("unexpected first break: %+v", got[0])
	}
}

func TestActivitiesRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.Local)
	rec := model.ActivityRecord{
		AppName:         "Firefox",
		WindowTitle:     "r/golang",
		URL:             "https://reddit.com/r/golang",
		Category:        model.Distraction,
		DurationSeconds: 42,
		IsDistraction:   true,
		CreatedAt:       at,
	}
	if _, err := st.InsertActivity(ctx, rec); err != nil {
		t.Fatalf("insert activity: %v", err)
	}
	start, end := DayRange(at)
	got, err := st.ListActivities(ctx, start, end)
	if err != nil {
		t.Fatalf("list activities: %v", err)
	}
	if len(got) != 1 || got[0].URL != rec.URL || !got[0].IsDistraction || got[0].DurationSeconds != 42 {
		t.Fatalf("unexpected activities: %+v", got)
	}
}

func TestCompactDropsRowsPastHorizon(t *testing.T) {
	st := openTestStore(t, WithCompactEvery(0))
	ctx := context.Background()
	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.Local)

	old := now.AddDate(0, 0, -45)
	recent := now.AddDate(0, 0, -2)
	for _, at := range []time.Time{old, recent} {
		if _, err := st.InsertActivity(ctx, model.ActivityRecord{AppName: "Code", Category: model.Productive, CreatedAt: at}); err != nil {
			t.Fatalf("insert activity: %v", err)
		}
		if _, err := st.InsertBreak(ctx, model.BreakRecord{Type: model.BreakShort, Taken: true, At: at}); err != nil {
			t.Fatalf("insert break: %v", err)
		}
		if err := st.UpsertDailyPattern(ctx, model.DailyWorkPattern{Date: at.Format(model.DateLayout), WorkMinutes: 60}); err != nil {
			t.Fatalf("upsert pattern: %v", err)
		}
		end := at.Add(20 * time.Minute)
		if err := st.InsertSession(ctx, model.WorkSession{ID: at.String(), StartTime: at, EndTime: &end, ContinuousMinutes: 20}); err != nil {
			t.Fatalf("insert session: %v", err)
		}
	}

	res, err := st.Compact(ctx, now)
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	if res.Activities != 1 || res.Breaks != 1 || res.Patterns != 1 {
		t.Fatalf("expected one old row per 30 day table, got %+v", res)
	}
	if res.Sessions != 0 {
		t.Fatalf("sessions are kept for 90 days, got %d removed", res.Sessions)
	}
	rows, err := st.RecentDailyPatterns(ctx, 30)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(rows) != 1 || rows[0].Date != recent.Format(model.DateLayout) {
		t.Fatalf("expected only the recent pattern, got %+v", rows)
	}
}

func TestAutomaticCompaction(t *testing.T) {
	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.Local)
	st := openTestStore(t, WithCompactEvery(2), WithClock(func() time.Time { return now }))
	ctx := context.Background()
	if _, err := st.InsertBreak(ctx, model.BreakRecord{Type: model.BreakShort, At: now.AddDate(0, 0, -60)}); err != nil {
		t.Fatalf("insert break: %v", err)
	}
	if _, err := st.InsertBreak(ctx, model.BreakRecord{Type: model.BreakShort, At: now}); err != nil {
		t.Fatalf("insert break: %v", err)
	}
	got, err := st.ListBreaks(ctx, now.AddDate(0, 0, -90), now.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("list breaks: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected the second write to compact the old break, got %d rows", len(got))
	}
}
