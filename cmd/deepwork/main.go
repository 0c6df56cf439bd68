// Package main provides the CLI entrypoint for deepwork.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/deepwork/internal/advisor"
	"github.com/verte-zerg/deepwork/internal/classifier"
	"github.com/verte-zerg/deepwork/internal/config"
	"github.com/verte-zerg/deepwork/internal/engine"
	"github.com/verte-zerg/deepwork/internal/keywords"
	"github.com/verte-zerg/deepwork/internal/logging"
	"github.com/verte-zerg/deepwork/internal/model"
	"github.com/verte-zerg/deepwork/internal/store"
	"github.com/verte-zerg/deepwork/internal/tracker"
)

const (
	defaultFocusWindow  = engine.DefaultFocusWindowMinutes
	defaultSessionsDays = 7
)

var (
	dbPath  string
	verbose bool

	minimumMinutes float64
	allowedBreak   float64
	persistMinutes float64
	focusWindow    float64
	advisorSeed    int64
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "deepwork",
		Short:         "Local deep-work tracker, break advisor and burnout monitor",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default: XDG data dir)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newBreakCmd())
	rootCmd.AddCommand(newBreaksCmd())
	rootCmd.AddCommand(newPatternCmd())
	rootCmd.AddCommand(newBurnoutCmd())
	rootCmd.AddCommand(newSessionsCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newFocusCmd())
	rootCmd.AddCommand(newTimerCmd())
	rootCmd.AddCommand(newCompactCmd())
	rootCmd.AddCommand(newConfigCmd())
	return rootCmd
}

// addTrackerFlags registers the engine tuning flags shared by commands that
// process activity.
func addTrackerFlags(cmd *cobra.Command) {
	def := tracker.DefaultConfig()
	cmd.Flags().Float64Var(&minimumMinutes, "minimum-minutes", def.MinimumMinutes, "minutes of continuous work that qualify as deep work")
	cmd.Flags().Float64Var(&allowedBreak, "allowed-break", def.AllowedBreakMinutes, "minutes of distraction tolerated inside a session")
	cmd.Flags().Float64Var(&persistMinutes, "persist-minutes", def.PersistMinutes, "minimum session length that is stored")
	cmd.Flags().Float64Var(&focusWindow, "focus-window", defaultFocusWindow, "trailing window in minutes for focus samples")
	cmd.Flags().Int64Var(&advisorSeed, "seed", 0, "seed for break activity suggestions (0: time based)")
}

// app bundles what a command needs: config, logger, store and engine.
type app struct {
	file   config.FileConfig
	logger *slog.Logger
	store  *store.Store
	engine *engine.Engine
}

func openApp(cmd *cobra.Command, opts ...engine.Option) (*app, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.New(os.Stderr, verbose)

	applyStringConfig(cmd, "db", &dbPath, fileCfg.Store.Path)
	path := dbPath
	if path == "" {
		path = config.DefaultDBPath()
	}
	storeOpts := []store.Option{
		store.WithLogger(logger),
		store.WithRetention(retentionFrom(fileCfg.Retention)),
	}
	if fileCfg.Store.CompactEvery != nil {
		storeOpts = append(storeOpts, store.WithCompactEvery(*fileCfg.Store.CompactEvery))
	}
	st, err := store.Open(path, storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	engCfg, err := engineConfig(cmd, fileCfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	seed := advisorSeed
	if cmd.Flags().Lookup("seed") == nil || !cmd.Flags().Changed("seed") {
		if fileCfg.Advisor.Seed != nil {
			seed = *fileCfg.Advisor.Seed
		}
	}
	picker := advisor.Picker(advisor.NewTimeSeededPicker())
	if seed != 0 {
		picker = advisor.NewRandPicker(seed)
	}
	opts = append([]engine.Option{
		engine.WithLogger(logger),
		engine.WithConfig(engCfg),
		engine.WithPicker(picker),
	}, opts...)
	return &app{
		file:   fileCfg,
		logger: logger,
		store:  st,
		engine: engine.New(st, opts...),
	}, nil
}

func (a *app) close(ctx context.Context) {
	if status := a.engine.Flush(ctx); status.Err != nil {
		a.logger.Warn("unsaved records dropped on exit", "pending", status.Pending, "err", status.Err)
	}
	if err := a.store.Close(); err != nil {
		logErrf("failed to close db: %v\n", err)
	}
}

// engineConfig merges defaults, the config file, the keywords file and flags.
func engineConfig(cmd *cobra.Command, fileCfg config.FileConfig) (model.EngineConfig, error) {
	cfg := engine.DefaultConfig()
	if cmd.Flags().Lookup("minimum-minutes") != nil {
		applyFloatConfig(cmd, "minimum-minutes", &minimumMinutes, fileCfg.Tracker.MinimumMinutes)
		applyFloatConfig(cmd, "allowed-break", &allowedBreak, fileCfg.Tracker.AllowedBreakMinutes)
		applyFloatConfig(cmd, "persist-minutes", &persistMinutes, fileCfg.Tracker.PersistMinutes)
		applyFloatConfig(cmd, "focus-window", &focusWindow, fileCfg.Advisor.FocusWindowMinutes)
		cfg.Tracker = model.TrackerConfig{
			MinimumMinutes:      minimumMinutes,
			AllowedBreakMinutes: allowedBreak,
			PersistMinutes:      persistMinutes,
		}
		cfg.FocusWindowMinutes = focusWindow
		if err := validateEngineConfig(cfg); err != nil {
			return cfg, err
		}
	}

	var sigs []string
	if fileCfg.Classifier.ReplaceDefaults == nil || !*fileCfg.Classifier.ReplaceDefaults {
		sigs = append(sigs, classifier.DefaultDistractions...)
	}
	sigs = append(sigs, fileCfg.Classifier.Distractions...)
	kwPath := config.DefaultKeywordsPath()
	if fileCfg.Classifier.KeywordsFile != nil {
		kwPath = *fileCfg.Classifier.KeywordsFile
	}
	extra, err := keywords.Load(kwPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to load keywords %s: %w", kwPath, err)
	}
	cfg.DistractionKeywords = keywords.Normalize(append(sigs, extra...))
	return cfg, nil
}

func validateEngineConfig(cfg model.EngineConfig) error {
	if cfg.Tracker.MinimumMinutes <= 0 {
		return fmt.Errorf("--minimum-minutes must be > 0")
	}
	if cfg.Tracker.AllowedBreakMinutes <= 0 {
		return fmt.Errorf("--allowed-break must be > 0")
	}
	if cfg.Tracker.PersistMinutes < 0 {
		return fmt.Errorf("--persist-minutes must be >= 0")
	}
	if cfg.FocusWindowMinutes <= 0 {
		return fmt.Errorf("--focus-window must be > 0")
	}
	return nil
}

func retentionFrom(rc config.RetentionConfig) model.Retention {
	r := store.DefaultRetention()
	setInt(&r.ActivityDays, rc.ActivityDays)
	setInt(&r.PatternDays, rc.PatternDays)
	setInt(&r.BreakDays, rc.BreakDays)
	setInt(&r.SessionDays, rc.SessionDays)
	return r
}

func setInt(target, value *int) {
	if value != nil && *value > 0 {
		*target = *value
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func newCompactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Delete records older than the retention horizons",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			defer a.close(ctx)
			res, err := a.store.Compact(ctx, time.Now())
			if err != nil {
				return fmt.Errorf("failed to compact db: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Removed %d activities, %d sessions, %d patterns, %d breaks\n",
				res.Activities, res.Sessions, res.Patterns, res.Breaks)
			return err
		},
	}
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	def := tracker.DefaultConfig()
	ret := store.DefaultRetention()
	return fmt.Sprintf(`# deepwork configuration
# Uncomment a value to enable it. CLI flags override config values.

[classifier]
# distractions = ["hacker news"]  # Extra distraction signatures
# keywords-file = "%s"            # One signature per line
# replace-defaults = false         # Drop the built-in signatures

[tracker]
# minimum-minutes = %.0f        # Continuous minutes that qualify as deep work
# allowed-break-minutes = %.0f  # Distraction tolerated inside a session
# persist-minutes = %.0f        # Minimum session length that is stored

[advisor]
# seed = 0                   # Seed for break activity suggestions
# focus-window-minutes = %d  # Trailing window for focus samples

[focus]
# work-minutes = 25
# short-break-minutes = 5
# long-break-minutes = 15
# rounds-per-long = 4

[retention]
# activity-days = %d
# pattern-days = %d
# break-days = %d
# session-days = %d

[store]
# path = "%s"
# compact-every = %d
`,
		config.DefaultKeywordsPath(),
		def.MinimumMinutes,
		def.AllowedBreakMinutes,
		def.PersistMinutes,
		defaultFocusWindow,
		ret.ActivityDays,
		ret.PatternDays,
		ret.BreakDays,
		ret.SessionDays,
		config.DefaultDBPath(),
		store.DefaultCompactEvery,
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
