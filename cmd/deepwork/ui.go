package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/deepwork/internal/countdown"
	"github.com/verte-zerg/deepwork/internal/model"
	"github.com/verte-zerg/deepwork/internal/stats"
	"github.com/verte-zerg/deepwork/internal/statsui"
	"github.com/verte-zerg/deepwork/internal/tui"
)

const (
	defaultStatsDays   = 7
	defaultCurveWindow = 3
)

var (
	statsDays  int
	statsPlain bool

	focusWork   int
	focusShort  int
	focusLong   int
	focusRounds int
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show sessions, daily trends and burnout risk",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().IntVar(&statsDays, "days", defaultStatsDays, "calendar days to include")
	cmd.Flags().BoolVar(&statsPlain, "plain", false, "print a text report instead of the TUI")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	if statsDays <= 0 {
		return fmt.Errorf("--days must be > 0")
	}
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	defer a.close(ctx)

	if statsPlain || !term.IsTerminal(int(os.Stdout.Fd())) {
		report, err := stats.BuildReport(ctx, a.store, time.Now(), statsDays)
		if err != nil {
			return err
		}
		return renderPlainReport(cmd.OutOrStdout(), report)
	}

	program := tea.NewProgram(statsui.NewModel(a.store, statsDays, time.Now), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run stats TUI: %w", err)
	}
	return nil
}

func renderPlainReport(w io.Writer, r stats.Report) error {
	if err := stats.RenderSummary(w, r.Sessions); err != nil {
		return err
	}
	if err := stats.RenderSessionTable(w, r.Sessions); err != nil {
		return err
	}
	if err := stats.RenderBreakStats(w, stats.BreakStatsFor(r.Breaks, time.Now())); err != nil {
		return err
	}
	if err := stats.RenderPatternTable(w, r.Patterns); err != nil {
		return err
	}
	if err := stats.RenderCurvesWithSize(w, r.Patterns, defaultCurveWindow, 0, 0, false); err != nil {
		return err
	}
	return stats.RenderAssessment(w, r.Assessment)
}

func newFocusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "focus",
		Short: "Run a focus/break countdown cycle",
		Args:  cobra.NoArgs,
		RunE:  runFocusCmd,
	}
	def := tui.DefaultConfig()
	cmd.Flags().IntVar(&focusWork, "work", int(def.Work/time.Minute), "focus minutes per round")
	cmd.Flags().IntVar(&focusShort, "short", int(def.ShortBreak/time.Minute), "short break minutes")
	cmd.Flags().IntVar(&focusLong, "long", int(def.LongBreak/time.Minute), "long break minutes")
	cmd.Flags().IntVar(&focusRounds, "rounds", def.RoundsPerLong, "rounds before a long break")
	return cmd
}

func runFocusCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.close(cmd.Context())

	applyIntConfig(cmd, "work", &focusWork, a.file.Focus.WorkMinutes)
	applyIntConfig(cmd, "short", &focusShort, a.file.Focus.ShortBreakMinutes)
	applyIntConfig(cmd, "long", &focusLong, a.file.Focus.LongBreakMinutes)
	applyIntConfig(cmd, "rounds", &focusRounds, a.file.Focus.RoundsPerLong)
	if focusWork <= 0 || focusShort <= 0 || focusLong <= 0 {
		return fmt.Errorf("focus and break durations must be > 0")
	}
	if focusRounds <= 0 {
		return fmt.Errorf("--rounds must be > 0")
	}

	cfg := tui.Config{
		Work:          time.Duration(focusWork) * time.Minute,
		ShortBreak:    time.Duration(focusShort) * time.Minute,
		LongBreak:     time.Duration(focusLong) * time.Minute,
		RoundsPerLong: focusRounds,
	}
	program := tea.NewProgram(tui.NewModel(cfg, a.engine, a.logger), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run focus TUI: %w", err)
	}
	return nil
}

var timerBreak string

func newTimerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timer <minutes>",
		Short: "Block until a countdown ends; record it as a break when --break is set",
		Args:  cobra.ExactArgs(1),
		RunE:  runTimerCmd,
	}
	cmd.Flags().StringVar(&timerBreak, "break", "", "break type to record when the countdown ends")
	return cmd
}

func runTimerCmd(cmd *cobra.Command, args []string) error {
	minutes, err := strconv.ParseFloat(args[0], 64)
	if err != nil || minutes <= 0 {
		return fmt.Errorf("invalid minutes %q", args[0])
	}
	phase := countdown.PhaseFocus
	kind := model.BreakType(timerBreak)
	if timerBreak != "" {
		if !kind.Valid() {
			return fmt.Errorf("unknown break type %q", timerBreak)
		}
		phase = countdown.PhaseShortBreak
		if kind == model.BreakLong {
			phase = countdown.PhaseLongBreak
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	a.engine.StartTimer(phase, time.Duration(minutes*float64(time.Minute)))
	out := cmd.OutOrStdout()
	if err := a.engine.WaitTimer(ctx); err != nil {
		a.engine.CancelTimer()
		_, werr := fmt.Fprintln(out, "Timer canceled.")
		return werr
	}
	if timerBreak != "" {
		status, err := a.engine.RecordBreak(context.Background(), kind, true)
		if err != nil {
			return err
		}
		reportPersist(a, status)
	}
	_, err = fmt.Fprintf(out, "%s finished after %s.\n", phase, stats.FormatMinutes(minutes))
	return err
}
