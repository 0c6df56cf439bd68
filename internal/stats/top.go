package stats

import (
	"sort"

	"github.com/verte-zerg/deepwork/internal/model"
)

// TopApps returns the n apps touched by the most sessions.
func TopApps(sessions []model.WorkSession, n int) []string {
	if n <= 0 || len(sessions) == 0 {
		return nil
	}
	counts := map[string]int{}
	for _, ws := range sessions {
		for app := range ws.AppsTouched {
			counts[app]++
		}
	}
	type item struct {
		app   string
		total int
	}
	items := make([]item, 0, len(counts))
	for app, total := range counts {
		items = append(items, item{app: app, total: total})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].total == items[j].total {
			return items[i].app < items[j].app
		}
		return items[i].total > items[j].total
	})
	if n > len(items) {
		n = len(items)
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, items[i].app)
	}
	return out
}
