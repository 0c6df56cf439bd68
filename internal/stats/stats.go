// Package stats contains statistics calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/verte-zerg/deepwork/internal/model"
)

const sparkChars = " .:-=+*#%@"

// Summary aggregates a set of completed sessions.
type Summary struct {
	Sessions     int
	DeepSessions int
	TotalMinutes float64
	Longest      float64
	AvgQuality   float64
	Distractions int
}

// Summarize computes totals over completed sessions.
func Summarize(sessions []model.WorkSession) Summary {
	var s Summary
	if len(sessions) == 0 {
		return s
	}
	var quality float64
	for _, ws := range sessions {
		s.Sessions++
		if ws.Qualified {
			s.DeepSessions++
		}
		s.TotalMinutes += ws.ContinuousMinutes
		if ws.ContinuousMinutes > s.Longest {
			s.Longest = ws.ContinuousMinutes
		}
		quality += ws.QualityScore
		s.Distractions += ws.DistractionsCount
	}
	s.AvgQuality = quality / float64(s.Sessions)
	return s
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal, maxVal := seriesMinMaxSingle(values)
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// RenderSummary prints a summary block for sessions.
func RenderSummary(w io.Writer, sessions []model.WorkSession) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions found.")
		return err
	}
	s := Summarize(sessions)
	lines := []string{
		"Summary",
		fmt.Sprintf("Sessions: %d", s.Sessions),
		fmt.Sprintf("Deep work sessions: %d", s.DeepSessions),
		fmt.Sprintf("Focused time: %s", FormatMinutes(s.TotalMinutes)),
		fmt.Sprintf("Longest session: %s", FormatMinutes(s.Longest)),
		fmt.Sprintf("Avg quality: %.1f%%", s.AvgQuality),
		fmt.Sprintf("Distractions: %d", s.Distractions),
	}
	if apps := TopApps(sessions, 3); len(apps) > 0 {
		lines = append(lines, "Top apps: "+strings.Join(apps, ", "))
	}
	lines = append(lines, "")
	return writeLines(w, lines)
}

// RenderSessionTable prints one row per session, oldest first.
func RenderSessionTable(w io.Writer, sessions []model.WorkSession) error {
	if len(sessions) == 0 {
		return nil
	}
	headers := []string{"Start", "Minutes", "Deep", "Quality", "Switches", "Apps"}
	rows := SessionRows(sessions)
	rightAlign := map[int]bool{1: true, 3: true, 4: true}
	if err := writeLines(w, formatTable(headers, rows, rightAlign)); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// SessionRows formats sessions as table cells.
func SessionRows(sessions []model.WorkSession) [][]string {
	rows := make([][]string, 0, len(sessions))
	for _, ws := range sessions {
		deep := ""
		if ws.Qualified {
			deep = "yes"
		}
		rows = append(rows, []string{
			ws.StartTime.Format("2006-01-02 15:04"),
			fmt.Sprintf("%.1f", ws.ContinuousMinutes),
			deep,
			fmt.Sprintf("%.0f%%", ws.QualityScore),
			fmt.Sprintf("%d", ws.ContextSwitches),
			truncateCell(strings.Join(ws.Apps(), ","), 32),
		})
	}
	return rows
}

// RenderPatternTable prints daily work patterns with a focus sparkline.
func RenderPatternTable(w io.Writer, patterns []model.DailyWorkPattern) error {
	if len(patterns) == 0 {
		_, err := fmt.Fprintln(w, "No daily patterns recorded.")
		return err
	}
	if _, err := fmt.Fprintln(w, "Daily Patterns"); err != nil {
		return err
	}
	headers := []string{"Date", "Work", "Focus", "Breaks", "Late", "Early", "Weekend"}
	rows := make([][]string, 0, len(patterns))
	focus := make([]float64, 0, len(patterns))
	for _, p := range patterns {
		weekend := ""
		if p.WeekendWork {
			weekend = "yes"
		}
		rows = append(rows, []string{
			p.Date,
			FormatMinutes(float64(p.WorkMinutes)),
			fmt.Sprintf("%.0f", p.FocusScore),
			fmt.Sprintf("%d", p.BreaksTaken),
			fmt.Sprintf("%d", p.LateNightMinutes),
			fmt.Sprintf("%d", p.EarlyMorningMinutes),
			weekend,
		})
		focus = append(focus, p.FocusScore)
	}
	rightAlign := map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true}
	lines := formatTable(headers, rows, rightAlign)
	lines = append(lines, "Focus trend: "+Sparkline(focus))
	if low := LowFocusDays(patterns, 3); len(low) > 0 {
		lines = append(lines, "Lowest focus: "+strings.Join(low, ", "))
	}
	lines = append(lines, "")
	return writeLines(w, lines)
}

// RenderAssessment prints a burnout assessment.
func RenderAssessment(w io.Writer, a model.BurnoutAssessment) error {
	lines := []string{
		"Burnout Risk",
		fmt.Sprintf("Level: %s (score %d/100, %d days)", a.RiskLevel, a.Score, a.Days),
	}
	if len(a.Indicators) > 0 {
		headers := []string{"Indicator", "Severity", "Score", "Detail"}
		rows := make([][]string, 0, len(a.Indicators))
		for _, ind := range a.Indicators {
			rows = append(rows, []string{
				ind.Type,
				string(ind.Severity),
				fmt.Sprintf("%d", ind.Score),
				ind.Description,
			})
		}
		lines = append(lines, formatTable(headers, rows, map[int]bool{2: true})...)
	}
	if len(a.Recommendations) > 0 {
		lines = append(lines, "Recommendations:")
		for _, rec := range a.Recommendations {
			lines = append(lines, "  - "+rec)
		}
	}
	lines = append(lines, "")
	return writeLines(w, lines)
}

// RenderBreakStats prints today's break counts.
func RenderBreakStats(w io.Writer, s model.BreakStats) error {
	lines := []string{
		fmt.Sprintf("Breaks on %s", s.Date),
		fmt.Sprintf("Taken: %d  Skipped: %d", s.Taken, s.Skipped),
	}
	for _, bt := range model.BreakTypes {
		if n := s.ByType[bt]; n > 0 {
			lines = append(lines, fmt.Sprintf("  %-8s %d", bt, n))
		}
	}
	if s.LastAt != nil {
		lines = append(lines, "Last break: "+s.LastAt.Format(time.Kitchen))
	}
	return writeLines(w, lines)
}

// RenderCurvesWithSize plots work hours and focus score per day.
func RenderCurvesWithSize(w io.Writer, patterns []model.DailyWorkPattern, window, totalWidth, height int, useColor bool) error {
	if len(patterns) == 0 {
		return nil
	}
	hours := make([]float64, len(patterns))
	focus := make([]float64, len(patterns))
	for i, p := range patterns {
		hours[i] = float64(p.WorkMinutes) / 60
		focus[i] = p.FocusScore
	}
	width := 0
	if totalWidth > 0 {
		width = PlotWidthFor(totalWidth)
	}
	return PlotSeriesWithColor(w, "Daily Trends", []Series{
		{Name: "Focus", Values: MovingAverage(focus, window), Min: 0, Max: 100},
		{Name: "Hours", Values: MovingAverage(hours, window)},
	}, width, height, useColor)
}

// FormatMinutes renders minutes as "1h05m" or "42m".
func FormatMinutes(minutes float64) string {
	total := int(math.Round(minutes))
	if total < 60 {
		return fmt.Sprintf("%dm", total)
	}
	return fmt.Sprintf("%dh%02dm", total/60, total%60)
}

func writeLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
