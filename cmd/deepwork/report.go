package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/deepwork/internal/engine"
	"github.com/verte-zerg/deepwork/internal/model"
	"github.com/verte-zerg/deepwork/internal/stats"
)

var (
	breakSkipped bool

	patternDate    string
	patternWork    int
	patternFocus   float64
	patternBreaks  int
	patternLate    int
	patternEarly   int
	patternWeekend bool

	sessionsDays int
)

func newBreakCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "break <type>",
		Short:     "Record a break outcome (micro, eye, short, movement, long)",
		Args:      cobra.ExactArgs(1),
		ValidArgs: breakTypeNames(),
		RunE:      runBreakCmd,
	}
	cmd.Flags().BoolVar(&breakSkipped, "skipped", false, "record the break as skipped")
	return cmd
}

func runBreakCmd(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	defer a.close(ctx)

	status, err := a.engine.RecordBreak(ctx, model.BreakType(args[0]), !breakSkipped)
	if err != nil {
		return err
	}
	reportPersist(a, status)
	bs, err := a.engine.BreakStats(ctx)
	if err != nil {
		return err
	}
	return stats.RenderBreakStats(cmd.OutOrStdout(), bs)
}

func newBreaksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "breaks",
		Short: "Show today's taken and skipped breaks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			defer a.close(ctx)
			bs, err := a.engine.BreakStats(ctx)
			if err != nil {
				return err
			}
			return stats.RenderBreakStats(cmd.OutOrStdout(), bs)
		},
	}
}

func newPatternCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pattern",
		Short: "Record one day's work aggregate",
		Args:  cobra.NoArgs,
		RunE:  runPatternCmd,
	}
	cmd.Flags().StringVar(&patternDate, "date", "", "day (YYYY-MM-DD, default: today)")
	cmd.Flags().IntVar(&patternWork, "work-minutes", 0, "minutes worked")
	cmd.Flags().Float64Var(&patternFocus, "focus", 0, "focus score 0-100")
	cmd.Flags().IntVar(&patternBreaks, "breaks", 0, "breaks taken")
	cmd.Flags().IntVar(&patternLate, "late", 0, "minutes worked after 22:00")
	cmd.Flags().IntVar(&patternEarly, "early", 0, "minutes worked before 06:00")
	cmd.Flags().BoolVar(&patternWeekend, "weekend", false, "day included weekend work (default: from date)")
	return cmd
}

func runPatternCmd(cmd *cobra.Command, _ []string) error {
	day := time.Now()
	if patternDate != "" {
		parsed, err := time.ParseInLocation(model.DateLayout, patternDate, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --date value: %w", err)
		}
		day = parsed
	}
	weekend := patternWeekend
	if !cmd.Flags().Changed("weekend") {
		weekend = (day.Weekday() == time.Saturday || day.Weekday() == time.Sunday) && patternWork > 0
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	defer a.close(ctx)

	status, err := a.engine.RecordDailyPattern(ctx, model.DailyWorkPattern{
		Date:                day.Format(model.DateLayout),
		WorkMinutes:         patternWork,
		FocusScore:          patternFocus,
		BreaksTaken:         patternBreaks,
		LateNightMinutes:    patternLate,
		EarlyMorningMinutes: patternEarly,
		WeekendWork:         weekend,
	})
	if err != nil {
		return err
	}
	reportPersist(a, status)
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s: %s worked, focus %.0f\n",
		day.Format(model.DateLayout), stats.FormatMinutes(float64(patternWork)), patternFocus)
	return err
}

func newBurnoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "burnout",
		Short: "Assess burnout risk from the last 14 days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			defer a.close(ctx)
			return stats.RenderAssessment(cmd.OutOrStdout(), a.engine.AssessBurnoutRisk(ctx))
		},
	}
}

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List completed work sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if sessionsDays <= 0 {
				return fmt.Errorf("--days must be > 0")
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			defer a.close(ctx)
			sessions, err := a.engine.CompletedSessions(ctx, sessionsDays)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if err := stats.RenderSummary(out, sessions); err != nil {
				return err
			}
			return stats.RenderSessionTable(out, sessions)
		},
	}
	cmd.Flags().IntVar(&sessionsDays, "days", defaultSessionsDays, "calendar days to include")
	return cmd
}

func reportPersist(a *app, status engine.PersistStatus) {
	if status.Err != nil {
		a.logger.Warn("record queued; storage unavailable", "pending", status.Pending, "err", status.Err)
	}
}

func breakTypeNames() []string {
	names := make([]string, 0, len(model.BreakTypes))
	for _, bt := range model.BreakTypes {
		names = append(names, string(bt))
	}
	return names
}
