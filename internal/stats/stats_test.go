package stats

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/deepwork/internal/model"
)

func TestSummarize(t *testing.T) {
	a := session(70, "Code")
	a.Qualified = true
	a.QualityScore = 90
	a.DistractionsCount = 2
	b := session(20, "Terminal")
	b.QualityScore = 70
	s := Summarize([]model.WorkSession{a, b})
	if s.Sessions != 2 || s.DeepSessions != 1 || s.Distractions != 2 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if s.TotalMinutes != 90 || s.Longest != 70 || math.Abs(s.AvgQuality-80) > 1e-9 {
		t.Fatalf("unexpected totals %+v", s)
	}
}

func TestMovingAverage(t *testing.T) {
	got := MovingAverage([]float64{2, 4, 6, 8}, 2)
	want := []float64{2, 3, 5, 7}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: expected %.1f, got %.1f", i, want[i], got[i])
		}
	}
}

func TestSparkline(t *testing.T) {
	if got := Sparkline([]float64{0, 50, 100}); got != " +@" {
		t.Fatalf("unexpected sparkline %q", got)
	}
	if got := Sparkline([]float64{5, 5}); got != "++" {
		t.Fatalf("flat series should render mid glyphs, got %q", got)
	}
	if Sparkline(nil) != "" {
		t.Fatalf("expected empty sparkline")
	}
}

func TestFormatMinutes(t *testing.T) {
	cases := map[float64]string{0: "0m", 42.4: "42m", 60: "1h00m", 125: "2h05m"}
	for in, want := range cases {
		if got := FormatMinutes(in); got != want {
			t.Fatalf("FormatMinutes(%.1f) = %q, want %q", in, got, want)
		}
	}
}

func TestRenderSummaryEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderSummary(&buf, nil); err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "No sessions found." {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestRenderAssessment(t *testing.T) {
	var buf bytes.Buffer
	a := model.BurnoutAssessment{
		RiskLevel: model.RiskHigh,
		Score:     45,
		Days:      14,
		Indicators: []model.Indicator{
			{Type: "excessive_hours", Severity: model.SeverityDanger, Score: 25, Triggered: true, Description: "Averaging 10.0 hours on working days"},
		},
		Recommendations: []string{"Set a hard stop time for your work day."},
	}
	if err := RenderAssessment(&buf, a); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Level: high (score 45/100, 14 days)", "excessive_hours", "  - Set a hard stop"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestRenderBreakStats(t *testing.T) {
	var buf bytes.Buffer
	last := time.Date(2026, 3, 2, 15, 4, 0, 0, time.UTC)
	s := model.BreakStats{Date: "2026-03-02", Taken: 2, Skipped: 1, ByType: map[model.BreakType]int{model.BreakEye: 2}, LastAt: &last}
	if err := RenderBreakStats(&buf, s); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Taken: 2  Skipped: 1") || !strings.Contains(out, "eye") || !strings.Contains(out, "3:04PM") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}
