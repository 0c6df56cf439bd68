package stats

import (
	"sort"

	"github.com/verte-zerg/deepwork/internal/model"
)

// LowFocusDays returns the dates of the lowest focus days that had work.
func LowFocusDays(patterns []model.DailyWorkPattern, top int) []string {
	candidates := make([]model.DailyWorkPattern, 0, len(patterns))
	for _, p := range patterns {
		if p.WorkMinutes > 0 {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].FocusScore == candidates[j].FocusScore {
			return candidates[i].Date < candidates[j].Date
		}
		return candidates[i].FocusScore < candidates[j].FocusScore
	})
	if top <= 0 || top > len(candidates) {
		top = len(candidates)
	}
	out := make([]string, 0, top)
	for _, p := range candidates[:top] {
		out = append(out, p.Date)
	}
	return out
}
