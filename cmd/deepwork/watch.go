package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/deepwork/internal/config"
	"github.com/verte-zerg/deepwork/internal/engine"
	"github.com/verte-zerg/deepwork/internal/logging"
	"github.com/verte-zerg/deepwork/internal/model"
	"github.com/verte-zerg/deepwork/internal/stats"
)

const maxLineBytes = 1 << 20

// streamLine is one JSON line on the watch input: either an activity
// observation or a break outcome.
type streamLine struct {
	model.ActivityEvent
	Break *model.BreakType `json:"break,omitempty"`
	Taken *bool            `json:"taken,omitempty"`
}

type sessionOut struct {
	ID              string   `json:"id"`
	State           string   `json:"state"`
	Start           string   `json:"start"`
	End             string   `json:"end,omitempty"`
	Minutes         float64  `json:"minutes"`
	Qualified       bool     `json:"qualified"`
	Quality         float64  `json:"quality"`
	Distractions    int      `json:"distractions"`
	ContextSwitches int      `json:"context_switches"`
	Apps            []string `json:"apps"`
}

type recommendationOut struct {
	Type     model.BreakType `json:"type"`
	Minutes  int             `json:"minutes"`
	Urgency  model.Urgency   `json:"urgency"`
	Reason   string          `json:"reason"`
	Activity string          `json:"activity"`
	Decline  model.Decline   `json:"decline,omitempty"`
}

type breaksOut struct {
	Date    string                  `json:"date"`
	Taken   int                     `json:"taken"`
	Skipped int                     `json:"skipped"`
	ByType  map[model.BreakType]int `json:"by_type"`
}

type resultOut struct {
	Category       model.Category     `json:"category,omitempty"`
	Session        *sessionOut        `json:"session,omitempty"`
	Closed         *sessionOut        `json:"closed,omitempty"`
	Achievement    bool               `json:"achievement,omitempty"`
	Recommendation *recommendationOut `json:"recommendation,omitempty"`
	Breaks         *breaksOut         `json:"breaks,omitempty"`
	Pending        int                `json:"pending,omitempty"`
	Error          string             `json:"error,omitempty"`
}

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Process a JSON-lines activity stream from stdin",
		Long: `Reads one JSON object per line from stdin and writes one result per line.

Activity:  {"app": "Code", "title": "main.go", "url": "", "ts": "2026-03-02T09:00:00Z"}
Break:     {"break": "short", "taken": true, "ts": "2026-03-02T10:30:00Z"}

A missing "ts" on an activity uses the current time; on a break it uses the
time of the last activity, or the current time before any activity.`,
		Args: cobra.NoArgs,
		RunE: runWatchCmd,
	}
	addTrackerFlags(cmd)
	return cmd
}

func runWatchCmd(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notify := cmd.ErrOrStderr()
	a, err := openApp(cmd, engine.WithOnAchievement(func(ws model.WorkSession) {
		_, _ = fmt.Fprintf(notify, "Deep work reached: %s of focus since %s\n",
			stats.FormatMinutes(ws.ContinuousMinutes), ws.StartTime.Format(time.Kitchen))
	}))
	if err != nil {
		return err
	}
	defer a.close(context.Background())
	ctx = logging.ContextWithLogger(ctx, a.logger)
	go reloadOnHangup(ctx, cmd, a)

	w := &watcher{eng: a.engine, out: cmd.OutOrStdout(), logger: a.logger}
	return w.run(ctx, cmd.InOrStdin())
}

// reloadOnHangup re-reads the config file on SIGHUP and stages it on the
// engine; it takes effect before the next event.
func reloadOnHangup(ctx context.Context, cmd *cobra.Command, a *app) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
			if err != nil {
				a.logger.Warn("config reload failed", "err", err)
				continue
			}
			cfg, err := engineConfig(cmd, fileCfg)
			if err != nil {
				a.logger.Warn("config reload rejected", "err", err)
				continue
			}
			a.engine.UpdateConfig(cfg)
			a.logger.Info("config reloaded", "keywords", len(cfg.DistractionKeywords))
		}
	}
}

type watcher struct {
	eng    *engine.Engine
	out    io.Writer
	logger *slog.Logger
}

func (w *watcher) run(ctx context.Context, in io.Reader) error {
	enc := json.NewEncoder(w.out)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		lineNo++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		out := w.handle(ctx, text)
		if out.Error != "" {
			w.logger.Warn("input line reported an error", "line", lineNo, "err", out.Error)
		}
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	final := w.eng.EndTracking(ctx)
	if final.Closed != nil {
		out := resultOut{Closed: toSessionOut(final.Closed), Pending: final.Persist.Pending}
		if final.Persist.Err != nil {
			out.Error = final.Persist.Err.Error()
		}
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func (w *watcher) handle(ctx context.Context, text string) resultOut {
	var line streamLine
	if err := json.Unmarshal([]byte(text), &line); err != nil {
		return resultOut{Error: fmt.Sprintf("invalid json: %v", err)}
	}
	if line.Break != nil {
		taken := line.Taken == nil || *line.Taken
		status, err := w.eng.RecordBreakAt(ctx, *line.Break, taken, line.Timestamp)
		if err != nil {
			return resultOut{Error: err.Error()}
		}
		out := resultOut{Pending: status.Pending}
		if status.Err != nil {
			out.Error = status.Err.Error()
		}
		day := line.Timestamp
		if day.IsZero() {
			day = w.eng.StreamTime()
		}
		if bs, err := w.eng.BreakStatsOn(ctx, day); err == nil {
			out.Breaks = &breaksOut{Date: bs.Date, Taken: bs.Taken, Skipped: bs.Skipped, ByType: bs.ByType}
		}
		return out
	}
	if line.AppName == "" && line.WindowTitle == "" && line.URL == "" {
		return resultOut{Error: "activity needs app, title or url"}
	}

	res := w.eng.ProcessActivity(ctx, line.ActivityEvent)
	out := resultOut{
		Category:    res.Category,
		Session:     toSessionOut(res.Session),
		Closed:      toSessionOut(res.Closed),
		Achievement: res.Qualified,
		Pending:     res.Persist.Pending,
	}
	if rec := res.Recommendation; rec != nil {
		out.Recommendation = &recommendationOut{
			Type:     rec.Type,
			Minutes:  rec.DurationMinutes,
			Urgency:  rec.Urgency,
			Reason:   rec.Reason,
			Activity: rec.Activity,
			Decline:  rec.Decline,
		}
	}
	if res.Persist.Err != nil {
		out.Error = "storage: " + res.Persist.Err.Error()
	}
	return out
}

func toSessionOut(ws *model.WorkSession) *sessionOut {
	if ws == nil {
		return nil
	}
	out := &sessionOut{
		ID:              ws.ID,
		State:           string(ws.State),
		Start:           ws.StartTime.Format(time.RFC3339),
		Minutes:         ws.ContinuousMinutes,
		Qualified:       ws.Qualified,
		Quality:         ws.QualityScore,
		Distractions:    ws.DistractionsCount,
		ContextSwitches: ws.ContextSwitches,
		Apps:            ws.Apps(),
	}
	if ws.EndTime != nil {
		out.End = ws.EndTime.Format(time.RFC3339)
	}
	return out
}
