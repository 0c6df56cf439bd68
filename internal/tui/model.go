// Package tui provides the Bubble Tea focus timer.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/deepwork/internal/countdown"
	"github.com/verte-zerg/deepwork/internal/engine"
	"github.com/verte-zerg/deepwork/internal/model"
)

const tickInterval = time.Second

// Engine is the part of the engine the focus timer drives.
type Engine interface {
	StartTimer(phase countdown.Phase, d time.Duration)
	PauseTimer() error
	ResumeTimer() error
	ResetTimer()
	CancelTimer()
	Timer() countdown.Snapshot
	RecordBreak(ctx context.Context, kind model.BreakType, taken bool) (engine.PersistStatus, error)
	BreakStats(ctx context.Context) (model.BreakStats, error)
}

// Config holds the focus cycle durations.
type Config struct {
	Work          time.Duration
	ShortBreak    time.Duration
	LongBreak     time.Duration
	RoundsPerLong int
}

// DefaultConfig returns a 25/5/15 cycle with a long break every 4 rounds.
func DefaultConfig() Config {
	return Config{
		Work:          25 * time.Minute,
		ShortBreak:    5 * time.Minute,
		LongBreak:     15 * time.Minute,
		RoundsPerLong: 4,
	}
}

type tickMsg time.Time

// Model implements the Bubble Tea focus timer UI.
type Model struct {
	cfg    Config
	eng    Engine
	logger *slog.Logger

	round    int
	bar      progress.Model
	breaks   model.BreakStats
	notice   string
	errMsg   string
	finished bool

	width  int
	height int
}

var (
	phaseStyles = map[countdown.Phase]lipgloss.Style{
		countdown.PhaseFocus:      lipgloss.NewStyle().Foreground(lipgloss.Color("#3A9AC8")).Bold(true),
		countdown.PhaseShortBreak: lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A")).Bold(true),
		countdown.PhaseLongBreak:  lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true),
	}
	clockStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	pausedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

var phaseTitles = map[countdown.Phase]string{
	countdown.PhaseFocus:      "Focus",
	countdown.PhaseShortBreak: "Short break",
	countdown.PhaseLongBreak:  "Long break",
}

// NewModel constructs a focus timer and starts the first focus round.
func NewModel(cfg Config, eng Engine, logger *slog.Logger) *Model {
	def := DefaultConfig()
	if cfg.Work <= 0 {
		cfg.Work = def.Work
	}
	if cfg.ShortBreak <= 0 {
		cfg.ShortBreak = def.ShortBreak
	}
	if cfg.LongBreak <= 0 {
		cfg.LongBreak = def.LongBreak
	}
	if cfg.RoundsPerLong <= 0 {
		cfg.RoundsPerLong = def.RoundsPerLong
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Model{
		cfg:    cfg,
		eng:    eng,
		logger: logger,
		round:  1,
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
	}
	m.eng.StartTimer(countdown.PhaseFocus, cfg.Work)
	m.loadBreakStats()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tick()
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = clampInt(msg.Width*6/10, 10, 80)
		return m, nil
	case tickMsg:
		if m.finished {
			return m, nil
		}
		if m.eng.Timer().Status == countdown.StatusExpired {
			m.advance(true)
		}
		return m, tick()
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.eng.CancelTimer()
			m.finished = true
			return m, tea.Quit
		case " ", "space", "p":
			m.togglePause()
		case "s":
			m.advance(false)
		case "r":
			m.eng.ResetTimer()
			m.notice = "Phase restarted."
		}
		return m, nil
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	snap := m.eng.Timer()
	title := phaseStyles[snap.Phase].Render(phaseTitles[snap.Phase])
	if snap.Phase == countdown.PhaseFocus {
		title += footerStyle.Render(fmt.Sprintf("  round %d/%d", m.round, m.cfg.RoundsPerLong))
	}
	clock := clockStyle.Render(formatClock(snap.Remaining))
	if snap.Status == countdown.StatusPaused {
		clock += pausedStyle.Render("  paused")
	}
	lines := []string{title, "", clock, "", m.bar.ViewAs(elapsedFraction(snap))}
	if m.notice != "" {
		lines = append(lines, "", footerStyle.Render(m.notice))
	}
	if m.errMsg != "" {
		lines = append(lines, errorStyle.Render(m.errMsg))
	}
	content := lipgloss.JoinVertical(lipgloss.Center, lines...)
	footer := m.renderFooter()
	if m.width == 0 || m.height < 3 {
		return content + "\n" + footer
	}
	body := lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + footerLine
}

func (m *Model) togglePause() {
	switch m.eng.Timer().Status {
	case countdown.StatusRunning:
		if err := m.eng.PauseTimer(); err != nil {
			m.errMsg = err.Error()
		}
	case countdown.StatusPaused:
		if err := m.eng.ResumeTimer(); err != nil {
			m.errMsg = err.Error()
		}
	}
}

// advance moves to the next phase. A finished break phase is recorded as
// taken; a skipped one as not taken.
func (m *Model) advance(completed bool) {
	phase := m.eng.Timer().Phase
	switch phase {
	case countdown.PhaseFocus:
		if m.round%m.cfg.RoundsPerLong == 0 {
			m.eng.StartTimer(countdown.PhaseLongBreak, m.cfg.LongBreak)
			m.notice = "Round done. Time for a long break."
		} else {
			m.eng.StartTimer(countdown.PhaseShortBreak, m.cfg.ShortBreak)
			m.notice = "Round done. Take a short break."
		}
	default:
		kind := model.BreakShort
		if phase == countdown.PhaseLongBreak {
			kind = model.BreakLong
		}
		m.recordBreak(kind, completed)
		m.round++
		m.eng.StartTimer(countdown.PhaseFocus, m.cfg.Work)
		m.notice = "Back to focus."
		if !completed {
			m.notice = "Break skipped."
		}
	}
}

func (m *Model) recordBreak(kind model.BreakType, taken bool) {
	status, err := m.eng.RecordBreak(context.Background(), kind, taken)
	switch {
	case err != nil:
		m.errMsg = err.Error()
	case status.Err != nil:
		m.logger.Warn("break not stored yet", "pending", status.Pending, "err", status.Err)
		m.errMsg = fmt.Sprintf("break queued: %v", status.Err)
	default:
		m.errMsg = ""
	}
	m.loadBreakStats()
}

func (m *Model) loadBreakStats() {
	bs, err := m.eng.BreakStats(context.Background())
	if err != nil {
		m.logger.Warn("failed to load break stats", "err", err)
		return
	}
	m.breaks = bs
}

func (m *Model) renderFooter() string {
	segments := []string{
		fmt.Sprintf("Completed rounds %d", m.round-1),
		fmt.Sprintf("Breaks today %d taken · %d skipped", m.breaks.Taken, m.breaks.Skipped),
		"space: pause  s: skip  r: restart  q: quit",
	}
	return footerStyle.Render(strings.Join(segments, "  "))
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func elapsedFraction(s countdown.Snapshot) float64 {
	if s.Duration <= 0 {
		return 0
	}
	if s.Status == countdown.StatusExpired {
		return 1
	}
	f := 1 - float64(s.Remaining)/float64(s.Duration)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int((d + time.Second - 1) / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
