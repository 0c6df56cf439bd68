// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/verte-zerg/deepwork/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// DefaultCompactEvery is the number of writes between compaction passes.
const DefaultCompactEvery = 200

// ErrInvalidPattern is returned for daily patterns that cannot be stored.
var ErrInvalidPattern = errors.New("invalid daily work pattern")

// DefaultRetention returns the per-table retention horizons.
func DefaultRetention() model.Retention {
	return model.Retention{
		ActivityDays: 30,
		PatternDays:  30,
		BreakDays:    30,
		SessionDays:  90,
	}
}

// Option configures a Store.
type Option func(*Store)

// WithRetention overrides the retention horizons. Zero fields keep defaults.
func WithRetention(r model.Retention) Option {
	return func(s *Store) {
		def := DefaultRetention()
		if r.ActivityDays <= 0 {
			r.ActivityDays = def.ActivityDays
		}
		if r.PatternDays <= 0 {
			r.PatternDays = def.PatternDays
		}
		if r.BreakDays <= 0 {
			r.BreakDays = def.BreakDays
		}
		if r.SessionDays <= 0 {
			r.SessionDays = def.SessionDays
		}
		s.retention = r
	}
}

// WithCompactEvery sets how many writes trigger a compaction pass. Zero or
// less disables automatic compaction.
func WithCompactEvery(n int) Option {
	return func(s *Store) { s.compactEvery = n }
}

// WithClock overrides the time source used for automatic compaction.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger used for background compaction failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store wraps SQLite access. All methods are serialized on one mutex.
type Store struct {
	mu           sync.Mutex
	db           *sql.DB
	logger       *slog.Logger
	retention    model.Retention
	compactEvery int
	writes       int
	now          func() time.Time
}

// CompactResult counts rows removed per table.
type CompactResult struct {
	Activities int64
	Sessions   int64
	Patterns   int64
	Breaks     int64
}

// Total returns the number of removed rows.
func (r CompactResult) Total() int64 {
	return r.Activities + r.Sessions + r.Patterns + r.Breaks
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string, opts ...Option) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	store := &Store{
		db:           db,
		retention:    DefaultRetention(),
		compactEvery: DefaultCompactEvery,
		now:          time.Now,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(store)
	}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA synchronous = FULL;`,
		`CREATE TABLE IF NOT EXISTS activities (
			id INTEGER PRIMARY KEY,
			app_name TEXT NOT NULL,
			window_title TEXT NOT NULL,
			url TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL,
			duration_seconds INTEGER NOT NULL DEFAULT 0,
			is_distraction INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS focus_sessions (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			duration_minutes REAL NOT NULL,
			quality_score REAL NOT NULL,
			distractions_count INTEGER NOT NULL,
			context_switches INTEGER NOT NULL,
			qualified INTEGER NOT NULL,
			apps TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			ended_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS daily_work_pattern (
			date TEXT PRIMARY KEY,
			work_minutes INTEGER NOT NULL,
			focus_score REAL NOT NULL,
			breaks_taken INTEGER NOT NULL,
			late_night_minutes INTEGER NOT NULL,
			early_morning_minutes INTEGER NOT NULL,
			weekend_work INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS breaks (
			id INTEGER PRIMARY KEY,
			type TEXT NOT NULL,
			taken INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_activities_created_at ON activities(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_focus_sessions_started_at ON focus_sessions(started_at);`,
		`CREATE INDEX IF NOT EXISTS idx_breaks_created_at ON breaks(created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertActivity appends a classified activity to the log.
func (s *Store) InsertActivity(ctx context.Context, rec model.ActivityRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO activities (app_name, window_title, url, category, duration_seconds, is_distraction, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.AppName,
		rec.WindowTitle,
		rec.URL,
		string(rec.Category),
		rec.DurationSeconds,
		boolInt(rec.IsDistraction),
		toMillis(rec.CreatedAt),
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	s.afterWrite(ctx)
	return id, nil
}

// InsertSession stores a closed work session. Re-inserting the same ID
// replaces the row, so retries are safe.
func (s *Store) InsertSession(ctx context.Context, ws model.WorkSession) error {
	if ws.EndTime == nil {
		return fmt.Errorf("session %s is still open", ws.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	kind := "focus"
	if ws.Qualified {
		kind = "deep_work"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO focus_sessions (id, type, duration_minutes, quality_score, distractions_count, context_switches, qualified, apps, started_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ws.ID,
		kind,
		ws.ContinuousMinutes,
		ws.QualityScore,
		ws.DistractionsCount,
		ws.ContextSwitches,
		boolInt(ws.Qualified),
		strings.Join(ws.Apps(), ","),
		toMillis(ws.StartTime),
		toMillis(*ws.EndTime),
	)
	if err != nil {
		return err
	}
	s.afterWrite(ctx)
	return nil
}

// UpsertDailyPattern writes the pattern for its date, replacing any existing row.
func (s *Store) UpsertDailyPattern(ctx context.Context, p model.DailyWorkPattern) error {
	if err := ValidatePattern(p); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO daily_work_pattern (date, work_minutes, focus_score, breaks_taken, late_night_minutes, early_morning_minutes, weekend_work)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(date) DO UPDATE SET
			work_minutes = excluded.work_minutes,
			focus_score = excluded.focus_score,
			breaks_taken = excluded.breaks_taken,
			late_night_minutes = excluded.late_night_minutes,
			early_morning_minutes = excluded.early_morning_minutes,
			weekend_work = excluded.weekend_work`,
		p.Date,
		p.WorkMinutes,
		p.FocusScore,
		p.BreaksTaken,
		p.LateNightMinutes,
		p.EarlyMorningMinutes,
		boolInt(p.WeekendWork),
	)
	if err != nil {
		return err
	}
	s.afterWrite(ctx)
	return nil
}

// ValidatePattern checks the date format and value ranges of a pattern.
func ValidatePattern(p model.DailyWorkPattern) error {
	if _, err := time.Parse(model.DateLayout, p.Date); err != nil {
		return fmt.Errorf("%w: date %q: %v", ErrInvalidPattern, p.Date, err)
	}
	if p.FocusScore < 0 || p.FocusScore > 100 {
		return fmt.Errorf("%w: focus score %.1f out of range", ErrInvalidPattern, p.FocusScore)
	}
	if p.WorkMinutes < 0 || p.BreaksTaken < 0 || p.LateNightMinutes < 0 || p.EarlyMorningMinutes < 0 {
		return fmt.Errorf("%w: negative counts", ErrInvalidPattern)
	}
	return nil
}

// RecentDailyPatterns returns the last n patterns ordered by date ascending.
func (s *Store) RecentDailyPatterns(ctx context.Context, n int) ([]model.DailyWorkPattern, error) {
	if n <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT date, work_minutes, focus_score, breaks_taken, late_night_minutes, early_morning_minutes, weekend_work
		 FROM daily_work_pattern
		 ORDER BY date DESC
		 LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.DailyWorkPattern
	for rows.Next() {
		var p model.DailyWorkPattern
		var weekend int
		if err := rows.Scan(&p.Date, &p.WorkMinutes, &p.FocusScore, &p.BreaksTaken, &p.LateNightMinutes, &p.EarlyMorningMinutes, &weekend); err != nil {
			return nil, err
		}
		p.WeekendWork = weekend != 0
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date < result[j].Date })
	return result, nil
}

// InsertBreak records a break outcome.
func (s *Store) InsertBreak(ctx context.Context, rec model.BreakRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO breaks (type, taken, created_at) VALUES (?, ?, ?)`,
		string(rec.Type), boolInt(rec.Taken), toMillis(rec.At))
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	s.afterWrite(ctx)
	return id, nil
}

// ListBreaks returns breaks recorded in [start, end) ordered by time.
func (s *Store) ListBreaks(ctx context.Context, start, end time.Time) ([]model.BreakRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, taken, created_at FROM breaks
		 WHERE created_at >= ? AND created_at < ?
		 ORDER BY created_at ASC, id ASC`, toMillis(start), toMillis(end))
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.BreakRecord
	for rows.Next() {
		var rec model.BreakRecord
		var kind string
		var taken int
		var at int64
		if err := rows.Scan(&rec.ID, &kind, &taken, &at); err != nil {
			return nil, err
		}
		rec.Type = model.BreakType(kind)
		rec.Taken = taken != 0
		rec.At = fromMillis(at, start.Location())
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListSessions returns sessions started in [start, end) ordered by start time.
func (s *Store) ListSessions(ctx context.Context, start, end time.Time) ([]model.WorkSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, duration_minutes, quality_score, distractions_count, context_switches, qualified, apps, started_at, ended_at
		 FROM focus_sessions
		 WHERE started_at >= ? AND started_at < ?
		 ORDER BY started_at ASC`, toMillis(start), toMillis(end))
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.WorkSession
	for rows.Next() {
		var ws model.WorkSession
		var qualified int
		var apps string
		var startedAt, endedAt int64
		if err := rows.Scan(&ws.ID, &ws.ContinuousMinutes, &ws.QualityScore, &ws.DistractionsCount, &ws.ContextSwitches, &qualified, &apps, &startedAt, &endedAt); err != nil {
			return nil, err
		}
		ws.Qualified = qualified != 0
		ws.State = model.StateClosed
		ws.StartTime = fromMillis(startedAt, start.Location())
		ended := fromMillis(endedAt, start.Location())
		ws.EndTime = &ended
		ws.AppsTouched = map[string]struct{}{}
		for _, app := range strings.Split(apps, ",") {
			if app != "" {
				ws.AppsTouched[app] = struct{}{}
			}
		}
		result = append(result, ws)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListActivities returns activity records created in [start, end).
func (s *Store) ListActivities(ctx context.Context, start, end time.Time) ([]model.ActivityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, app_name, window_title, url, category, duration_seconds, is_distraction, created_at
		 FROM activities
		 WHERE created_at >= ? AND created_at < ?
		 ORDER BY created_at ASC, id ASC`, toMillis(start), toMillis(end))
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.ActivityRecord
	for rows.Next() {
		var rec model.ActivityRecord
		var category string
		var distraction int
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.AppName, &rec.WindowTitle, &rec.URL, &category, &rec.DurationSeconds, &distraction, &createdAt); err != nil {
			return nil, err
		}
		rec.Category = model.Category(category)
		rec.IsDistraction = distraction != 0
		rec.CreatedAt = fromMillis(createdAt, start.Location())
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Compact drops rows older than each table's retention horizon.
func (s *Store) Compact(ctx context.Context, now time.Time) (CompactResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compactLocked(ctx, now)
}

func (s *Store) compactLocked(ctx context.Context, now time.Time) (CompactResult, error) {
	var res CompactResult
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	horizon := func(days int) time.Time {
		start, _ := DayRange(now)
		return start.AddDate(0, 0, -days)
	}
	deletes := []struct {
		query string
		arg   any
		count *int64
	}{
		{`DELETE FROM activities WHERE created_at < ?`, toMillis(horizon(s.retention.ActivityDays)), &res.Activities},
		{`DELETE FROM focus_sessions WHERE started_at < ?`, toMillis(horizon(s.retention.SessionDays)), &res.Sessions},
		{`DELETE FROM breaks WHERE created_at < ?`, toMillis(horizon(s.retention.BreakDays)), &res.Breaks},
		{`DELETE FROM daily_work_pattern WHERE date < ?`, horizon(s.retention.PatternDays).Format(model.DateLayout), &res.Patterns},
	}
	for _, d := range deletes {
		var r sql.Result
		r, err = tx.ExecContext(ctx, d.query, d.arg)
		if err != nil {
			return res, err
		}
		*d.count, err = r.RowsAffected()
		if err != nil {
			return res, err
		}
	}
	if err = tx.Commit(); err != nil {
		return res, err
	}
	s.writes = 0
	return res, nil
}

// afterWrite runs a compaction pass once enough writes have accumulated.
// Compaction failures are retried on a later write.
func (s *Store) afterWrite(ctx context.Context) {
	s.writes++
	if s.compactEvery <= 0 || s.writes < s.compactEvery {
		return
	}
	res, err := s.compactLocked(ctx, s.now())
	if err != nil {
		s.logger.Warn("compaction failed; retrying after next write", "err", err)
		return
	}
	if res.Total() > 0 {
		s.logger.Debug("compacted store", "activities", res.Activities, "sessions", res.Sessions, "patterns", res.Patterns, "breaks", res.Breaks)
	}
}

// DayRange returns the local calendar day [start, end) containing t.
func DayRange(t time.Time) (time.Time, time.Time) {
	y, m, d := t.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}

// DaysRange returns [start of the day n-1 days before t, end of t's day).
func DaysRange(t time.Time, n int) (time.Time, time.Time) {
	if n < 1 {
		n = 1
	}
	start, end := DayRange(t)
	return start.AddDate(0, 0, -(n - 1)), end
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.UnixMilli(ms).In(loc)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
