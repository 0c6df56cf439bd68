// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Classifier ClassifierConfig `toml:"classifier"`
	Tracker    TrackerConfig    `toml:"tracker"`
	Advisor    AdvisorConfig    `toml:"advisor"`
	Focus      FocusConfig      `toml:"focus"`
	Retention  RetentionConfig  `toml:"retention"`
	Store      StoreConfig      `toml:"store"`
}

// ClassifierConfig maps distraction signature settings.
type ClassifierConfig struct {
	Distractions    []string `toml:"distractions"`
	KeywordsFile    *string  `toml:"keywords-file"`
	ReplaceDefaults *bool    `toml:"replace-defaults"`
}

// TrackerConfig maps deep-work thresholds.
type TrackerConfig struct {
	MinimumMinutes      *float64 `toml:"minimum-minutes"`
	AllowedBreakMinutes *float64 `toml:"allowed-break-minutes"`
	PersistMinutes      *float64 `toml:"persist-minutes"`
}

// AdvisorConfig maps break advisor settings.
type AdvisorConfig struct {
	Seed               *int64   `toml:"seed"`
	FocusWindowMinutes *float64 `toml:"focus-window-minutes"`
}

// FocusConfig maps focus timer durations in minutes.
type FocusConfig struct {
	WorkMinutes       *int `toml:"work-minutes"`
	ShortBreakMinutes *int `toml:"short-break-minutes"`
	LongBreakMinutes  *int `toml:"long-break-minutes"`
	RoundsPerLong     *int `toml:"rounds-per-long"`
}

// RetentionConfig maps per-table retention horizons in days.
type RetentionConfig struct {
	ActivityDays *int `toml:"activity-days"`
	PatternDays  *int `toml:"pattern-days"`
	BreakDays    *int `toml:"break-days"`
	SessionDays  *int `toml:"session-days"`
}

// StoreConfig maps storage settings.
type StoreConfig struct {
	Path         *string `toml:"path"`
	CompactEvery *int    `toml:"compact-every"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}
