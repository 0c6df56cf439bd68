// Package model defines shared data structures.
package model

import (
	"sort"
	"time"
)

// Category is the classifier verdict for an activity observation.
type Category string

const (
	Productive  Category = "productive"
	Distraction Category = "distraction"
)

// ActivityEvent is a raw "what is active now" observation.
type ActivityEvent struct {
	AppName     string    `json:"app"`
	WindowTitle string    `json:"title"`
	URL         string    `json:"url,omitempty"`
	Timestamp   time.Time `json:"ts"`
}

// ActivityRecord is a classified observation stored in the activity log.
type ActivityRecord struct {
	ID              int64
	AppName         string
	WindowTitle     string
	URL             string
	Category        Category
	DurationSeconds int64
	IsDistraction   bool
	CreatedAt       time.Time
}

// SessionState is the deep-work tracker state.
type SessionState string

const (
	StateIdle         SessionState = "idle"
	StateAccumulating SessionState = "accumulating"
	StateQualified    SessionState = "qualified"
	StateClosed       SessionState = "closed"
)

// WorkSession is a contiguous span of productive activity.
type WorkSession struct {
	ID                string
	StartTime         time.Time
	EndTime           *time.Time
	ContinuousMinutes float64
	AppsTouched       map[string]struct{}
	State             SessionState
	// Qualified stays true once set, including after the session closes.
	Qualified         bool
	DistractionsCount int
	ContextSwitches   int
	QualityScore      float64
}

// Open reports whether the session is still accumulating time.
func (s WorkSession) Open() bool {
	return s.State == StateAccumulating || s.State == StateQualified
}

// Apps returns the touched apps sorted by name.
func (s WorkSession) Apps() []string {
	apps := make([]string, 0, len(s.AppsTouched))
	for app := range s.AppsTouched {
		apps = append(apps, app)
	}
	sort.Strings(apps)
	return apps
}

// Clone returns a deep copy safe to hand to callers.
func (s WorkSession) Clone() WorkSession {
	out := s
	out.AppsTouched = make(map[string]struct{}, len(s.AppsTouched))
	for app := range s.AppsTouched {
		out.AppsTouched[app] = struct{}{}
	}
	if s.EndTime != nil {
		end := *s.EndTime
		out.EndTime = &end
	}
	return out
}

// DailyWorkPattern aggregates one calendar day of work.
type DailyWorkPattern struct {
	Date                string
	WorkMinutes         int
	FocusScore          float64
	BreaksTaken         int
	LateNightMinutes    int
	EarlyMorningMinutes int
	WeekendWork         bool
}

// DateLayout is the calendar date format used for DailyWorkPattern.Date.
const DateLayout = "2006-01-02"

// BreakType identifies a kind of break.
type BreakType string

const (
	BreakMicro    BreakType = "micro"
	BreakShort    BreakType = "short"
	BreakLong     BreakType = "long"
	BreakMovement BreakType = "movement"
	BreakEye      BreakType = "eye"
)

// BreakTypes lists every break type in display order.
var BreakTypes = []BreakType{BreakMicro, BreakEye, BreakShort, BreakMovement, BreakLong}

// Valid reports whether t is a known break type.
func (t BreakType) Valid() bool {
	for _, bt := range BreakTypes {
		if bt == t {
			return true
		}
	}
	return false
}

// Urgency ranks how strongly a break is recommended.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Decline grades a drop in focus score between sample windows.
type Decline string

const (
	DeclineNone     Decline = ""
	DeclineModerate Decline = "moderate"
	DeclineLarge    Decline = "large"
)

// BreakRecommendation is a transient advice returned after an event.
type BreakRecommendation struct {
	Type            BreakType
	DurationMinutes int
	Reason          string
	Urgency         Urgency
	Activity        string
	Decline         Decline
}

// BreakRecord is a persisted break outcome.
type BreakRecord struct {
	ID    int64
	Type  BreakType
	Taken bool
	At    time.Time
}

// BreakStats summarizes the breaks of one day.
type BreakStats struct {
	Date    string
	Taken   int
	Skipped int
	ByType  map[BreakType]int
	LastAt  *time.Time
}

// RiskLevel is the burnout risk bucket.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Severity mirrors the trigger tier of an indicator.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityDanger  Severity = "danger"
)

// Indicator is one behavioral burnout signal.
type Indicator struct {
	Type        string
	Description string
	Severity    Severity
	Triggered   bool
	Score       int
}

// BurnoutAssessment is recomputed on demand from daily patterns.
type BurnoutAssessment struct {
	RiskLevel       RiskLevel
	Score           int
	Indicators      []Indicator
	Recommendations []string
	Days            int
	AssessedAt      time.Time
}

// TrackerConfig holds the deep-work thresholds.
type TrackerConfig struct {
	MinimumMinutes      float64
	AllowedBreakMinutes float64
	PersistMinutes      float64
}

// EngineConfig is applied atomically at the next processed event.
type EngineConfig struct {
	DistractionKeywords []string
	Tracker             TrackerConfig
	FocusWindowMinutes  float64
}

// Retention holds per-table horizons in days.
type Retention struct {
	ActivityDays int
	PatternDays  int
	BreakDays    int
	SessionDays  int
}
