package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/verte-zerg/deepwork/internal/burnout"
	"github.com/verte-zerg/deepwork/internal/model"
	"github.com/verte-zerg/deepwork/internal/store"
)

// Source is the read side of the store used for reports.
type Source interface {
	ListSessions(ctx context.Context, start, end time.Time) ([]model.WorkSession, error)
	RecentDailyPatterns(ctx context.Context, n int) ([]model.DailyWorkPattern, error)
	ListBreaks(ctx context.Context, start, end time.Time) ([]model.BreakRecord, error)
}

// Report contains precomputed data for stats rendering.
type Report struct {
	Days       int
	Sessions   []model.WorkSession
	Patterns   []model.DailyWorkPattern
	Breaks     []model.BreakRecord
	Assessment model.BurnoutAssessment
}

// BuildReport loads the last days calendar days of history.
func BuildReport(ctx context.Context, src Source, now time.Time, days int) (Report, error) {
	if days < 1 {
		days = 1
	}
	start, end := store.DaysRange(now, days)
	sessions, err := src.ListSessions(ctx, start, end)
	if err != nil {
		return Report{}, fmt.Errorf("failed to load sessions: %w", err)
	}
	breaks, err := src.ListBreaks(ctx, start, end)
	if err != nil {
		return Report{}, fmt.Errorf("failed to load breaks: %w", err)
	}
	n := days
	if n < burnout.WindowDays {
		n = burnout.WindowDays
	}
	patterns, err := src.RecentDailyPatterns(ctx, n)
	if err != nil {
		return Report{}, fmt.Errorf("failed to load patterns: %w", err)
	}
	return Report{
		Days:       days,
		Sessions:   sessions,
		Patterns:   patterns,
		Breaks:     breaks,
		Assessment: burnout.Assess(patterns, now),
	}, nil
}

// BreakStatsFor summarizes breaks falling on the calendar day of day.
func BreakStatsFor(breaks []model.BreakRecord, day time.Time) model.BreakStats {
	start, end := store.DayRange(day)
	stats := model.BreakStats{Date: start.Format(model.DateLayout), ByType: map[model.BreakType]int{}}
	for _, rec := range breaks {
		if rec.At.Before(start) || !rec.At.Before(end) {
			continue
		}
		if rec.Taken {
			stats.Taken++
			stats.ByType[rec.Type]++
		} else {
			stats.Skipped++
		}
		if stats.LastAt == nil || rec.At.After(*stats.LastAt) {
			at := rec.At
			stats.LastAt = &at
		}
	}
	return stats
}
