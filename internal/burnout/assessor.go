// Package burnout scores burnout risk from daily work patterns.
package burnout

import (
	"fmt"
	"sort"
	"time"

	"github.com/verte-zerg/deepwork/internal/model"
)

// WindowDays is the number of most recent daily patterns assessed.
const WindowDays = 14

// Indicator types.
const (
	ExcessiveHours = "excessive_hours"
	FocusDecline   = "focus_decline"
	SkippingBreaks = "skipping_breaks"
	LateNights     = "late_nights"
	WeekendWork    = "weekend_work"
)

const (
	minFocusDeclineDays  = 7
	lateNightThreshold   = 60
	maxRecommendations   = 5
	startTrackingMessage = "Start tracking your work days to get a burnout assessment."
)

// tier is one threshold band of an indicator.
type tier struct {
	severity model.Severity
	score    int
}

var none = tier{severity: model.SeverityInfo}

func danger(score int) tier { return tier{severity: model.SeverityDanger, score: score} }

func warn(score int) tier { return tier{severity: model.SeverityWarning, score: score} }

var advice = map[string][]string{
	ExcessiveHours: {
		"Set a hard stop time for your work day.",
		"Block out non-negotiable personal time in your calendar.",
	},
	FocusDecline: {
		"Schedule deep work for the hours you focus best.",
		"Reduce meetings and notifications during focus blocks.",
	},
	SkippingBreaks: {
		"Take a short break at least every 90 minutes.",
	},
	LateNights: {
		"Wind down screens an hour before bed.",
		"Move late tasks to the next morning when possible.",
	},
	WeekendWork: {
		"Protect at least one full day off each weekend.",
	},
}

var preamble = map[model.RiskLevel]string{
	model.RiskHigh:     "Your workload shows several burnout warning signs; plan recovery time this week.",
	model.RiskCritical: "Your burnout risk is critical; consider talking to your manager or a professional and reduce load now.",
}

// Assess scores the most recent WindowDays patterns. Fewer rows degrade
// gracefully; no rows yields a low risk with a single recommendation.
func Assess(patterns []model.DailyWorkPattern, now time.Time) model.BurnoutAssessment {
	rows := recent(patterns, WindowDays)
	if len(rows) == 0 {
		return model.BurnoutAssessment{
			RiskLevel:       model.RiskLow,
			Score:           0,
			Indicators:      []model.Indicator{},
			Recommendations: []string{startTrackingMessage},
			AssessedAt:      now,
		}
	}

	indicators := []model.Indicator{
		excessiveHours(rows),
		focusDecline(rows),
		skippingBreaks(rows),
		lateNights(rows),
		weekendWork(rows),
	}
	score := 0
	for _, ind := range indicators {
		score += ind.Score
	}
	if score > 100 {
		score = 100
	}
	level := RiskLevelFor(score)
	return model.BurnoutAssessment{
		RiskLevel:       level,
		Score:           score,
		Indicators:      indicators,
		Recommendations: recommendations(level, indicators),
		Days:            len(rows),
		AssessedAt:      now,
	}
}

// RiskLevelFor maps a 0-100 score to a risk level.
func RiskLevelFor(score int) model.RiskLevel {
	switch {
	case score >= 70:
		return model.RiskCritical
	case score >= 45:
		return model.RiskHigh
	case score >= 25:
		return model.RiskModerate
	default:
		return model.RiskLow
	}
}

func excessiveHours(rows []model.DailyWorkPattern) model.Indicator {
	var sum, days int
	for _, r := range rows {
		if r.WorkMinutes > 0 {
			sum += r.WorkMinutes
			days++
		}
	}
	avg := 0.0
	if days > 0 {
		avg = float64(sum) / float64(days)
	}
	t := none
	switch {
	case avg > 540:
		t = danger(25)
	case avg > 480:
		t = warn(15)
	}
	return indicator(ExcessiveHours, t, fmt.Sprintf("Averaging %.1f hours on working days", avg/60))
}

func focusDecline(rows []model.DailyWorkPattern) model.Indicator {
	if len(rows) < minFocusDeclineDays {
		return indicator(FocusDecline, none, fmt.Sprintf("Needs %d days of history", minFocusDeclineDays))
	}
	first, last := rows[:len(rows)/2], rows[len(rows)/2:]
	if len(rows) >= 2*minFocusDeclineDays {
		first, last = rows[:minFocusDeclineDays], rows[len(rows)-minFocusDeclineDays:]
	}
	drop := avgFocus(first) - avgFocus(last)
	t := none
	switch {
	case drop > 15:
		t = danger(20)
	case drop > 8:
		t = warn(10)
	}
	return indicator(FocusDecline, t, fmt.Sprintf("Focus score changed by %+.1f points", -drop))
}

func skippingBreaks(rows []model.DailyWorkPattern) model.Indicator {
	var sum int
	for _, r := range rows {
		sum += r.BreaksTaken
	}
	avg := float64(sum) / float64(len(rows))
	t := none
	switch {
	case avg < 2:
		t = danger(20)
	case avg < 4:
		t = warn(10)
	}
	return indicator(SkippingBreaks, t, fmt.Sprintf("Averaging %.1f breaks per day", avg))
}

func lateNights(rows []model.DailyWorkPattern) model.Indicator {
	count := 0
	for _, r := range rows {
		if r.LateNightMinutes > lateNightThreshold {
			count++
		}
	}
	t := none
	switch {
	case count >= 5:
		t = danger(20)
	case count >= 3:
		t = warn(10)
	}
	return indicator(LateNights, t, fmt.Sprintf("%d late nights in the last %d days", count, len(rows)))
}

func weekendWork(rows []model.DailyWorkPattern) model.Indicator {
	count := 0
	for _, r := range rows {
		if r.WeekendWork {
			count++
		}
	}
	t := none
	switch {
	case count >= 4:
		t = danger(15)
	case count >= 2:
		t = warn(8)
	}
	return indicator(WeekendWork, t, fmt.Sprintf("Worked on %d weekend days", count))
}

func indicator(kind string, t tier, description string) model.Indicator {
	return model.Indicator{
		Type:        kind,
		Description: description,
		Severity:    t.severity,
		Triggered:   t.score > 0,
		Score:       t.score,
	}
}

func recommendations(level model.RiskLevel, indicators []model.Indicator) []string {
	var out []string
	if p, ok := preamble[level]; ok {
		out = append(out, p)
	}
	for _, ind := range indicators {
		if !ind.Triggered {
			continue
		}
		for _, rec := range advice[ind.Type] {
			if len(out) >= maxRecommendations {
				return out
			}
			out = append(out, rec)
		}
	}
	if len(out) == 0 {
		out = append(out, "Your work patterns look sustainable. Keep it up.")
	}
	return out
}

// recent returns the last n patterns ordered by date ascending.
func recent(patterns []model.DailyWorkPattern, n int) []model.DailyWorkPattern {
	rows := make([]model.DailyWorkPattern, len(patterns))
	copy(rows, patterns)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date < rows[j].Date })
	if len(rows) > n {
		rows = rows[len(rows)-n:]
	}
	return rows
}

func avgFocus(rows []model.DailyWorkPattern) float64 {
	if len(rows) == 0 {
		return 0
	}
	var sum float64
	for _, r := range rows {
		sum += r.FocusScore
	}
	return sum / float64(len(rows))
}
