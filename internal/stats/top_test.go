package stats

import (
	"testing"

	"github.com/verte-zerg/deepwork/internal/model"
)

func session(minutes float64, apps ...string) model.WorkSession {
	touched := map[string]struct{}{}
	for _, app := range apps {
		touched[app] = struct{}{}
	}
	return model.WorkSession{ContinuousMinutes: minutes, AppsTouched: touched, State: model.StateClosed}
}

func TestTopApps(t *testing.T) {
	sessions := []model.WorkSession{
		session(20, "Code", "Terminal"),
		session(30, "Terminal"),
		session(40, "Browser", "Code"),
	}
	top := TopApps(sessions, 2)
	if len(top) != 2 {
		t.Fatalf("expected 2 apps, got %d", len(top))
	}
	if top[0] != "Code" || top[1] != "Terminal" {
		t.Fatalf("unexpected order: %v", top)
	}
}

func TestLowFocusDays(t *testing.T) {
	patterns := []model.DailyWorkPattern{
		{Date: "2026-03-01", WorkMinutes: 300, FocusScore: 80},
		{Date: "2026-03-02", WorkMinutes: 0, FocusScore: 0},
		{Date: "2026-03-03", WorkMinutes: 400, FocusScore: 55},
		{Date: "2026-03-04", WorkMinutes: 420, FocusScore: 55},
	}
	low := LowFocusDays(patterns, 2)
	if len(low) != 2 || low[0] != "2026-03-03" || low[1] != "2026-03-04" {
		t.Fatalf("unexpected low focus days: %v", low)
	}
}
