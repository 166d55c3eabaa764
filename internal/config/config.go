// Package config holds every tunable the pipeline consumes: vocabularies,
// confidence thresholds, gating keywords and patterns, the oracle endpoint,
// and store paths. A Config is built once at process start and passed into
// each component's constructor; nothing reads ambient globals.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// OracleConfig configures the external extraction service.
type OracleConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	TimeoutSecs int     `yaml:"timeout_secs"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// Config is the full configuration surface of the pipeline.
type Config struct {
	Categories []string `yaml:"categories"`
	Cuisines   []string `yaml:"cuisines"`

	MinCategoryConfidence    float64 `yaml:"min_category_confidence"`
	MinCuisineConfidence     float64 `yaml:"min_cuisine_confidence"`
	AliasConfidenceThreshold float64 `yaml:"alias_confidence_threshold"`
	RollingAverageAlpha      float64 `yaml:"rolling_average_alpha"`

	MaxOracleCallsPerRun int `yaml:"max_oracle_calls_per_run"`
	CacheExpiryHours     int `yaml:"cache_expiry_hours"`

	MinBodyLength   int `yaml:"min_body_length"`
	ShortBodyLength int `yaml:"short_body_length"`

	EventKeywords    []string `yaml:"event_keywords"`
	LocationKeywords []string `yaml:"location_keywords"`
	TimePatterns     []string `yaml:"time_patterns"`

	DefaultTimezone string `yaml:"default_timezone"`
	EventWindowDays int    `yaml:"event_window_days"`

	StorePath   string `yaml:"store_path"`
	ArchivePath string `yaml:"archive_path"`

	Oracle OracleConfig `yaml:"oracle"`
}

// Default returns the built-in configuration, mirroring the reference
// deployment's vocabularies and thresholds.
func Default() Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".picnic")
	return Config{
		Categories: []string{
			"workshop", "lecture", "meeting", "concert", "social", "seminar",
			"talk", "presentation", "conference", "gathering", "session",
			"party", "celebration", "dinner", "lunch", "breakfast",
			"reception", "ceremony", "festival", "fair", "exhibition",
			"audition", "tryout", "info_session", "kickoff", "launch",
			"orientation",
		},
		Cuisines: []string{
			"American", "Chinese", "Indian", "Italian", "Japanese", "Korean",
			"Mexican", "Thai", "Taiwanese", "Mediterranean", "Middle Eastern",
			"African", "Latin American", "European", "Other",
		},
		MinCategoryConfidence:    0.6,
		MinCuisineConfidence:     0.6,
		AliasConfidenceThreshold: 0.7,
		RollingAverageAlpha:      0.3,
		MaxOracleCallsPerRun:     10,
		CacheExpiryHours:         24,
		MinBodyLength:            100,
		ShortBodyLength:          200,
		EventKeywords: []string{
			"event", "meeting", "workshop", "seminar", "talk", "lecture",
			"conference", "gathering", "session", "presentation", "party",
			"celebration", "dinner", "lunch", "breakfast", "reception",
			"ceremony", "festival", "fair", "exhibition", "audition",
			"tryout", "info session", "kickoff", "launch", "orientation",
			"show", "comedy", "performance", "concert", "theater", "theatre",
			"movie", "film", "screening", "demo", "demonstration", "tour",
			"visit", "open house", "mixer", "networking", "social",
			"hangout", "get together",
			"bread", "food", "snack", "treat", "refreshments", "catering",
			"pizza", "cookies", "cake", "coffee", "tea", "drinks",
			"community", "join", "please join", "come", "everyone",
		},
		LocationKeywords: []string{
			"location", "where", "room", "hall", "building", "address",
			"venue", "place", "site", "campus", "center", "centre",
		},
		TimePatterns: []string{
			`\b\d{1,2}:\d{2}\s*(am|pm)\b`,
			`\b\d{1,2}/\d{1,2}/\d{2,4}\b`,
			`\b\d{4}-\d{2}-\d{2}\b`,
			`\b(mon|tue|wed|thu|fri|sat|sun)day\b`,
			`\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)\w*\b`,
			`\b(today|tomorrow|tonight|this week|next week)\b`,
			`\b(morning|afternoon|evening|night)\b`,
		},
		DefaultTimezone: "America/New_York",
		EventWindowDays: 14,
		StorePath:       filepath.Join(base, "store.json"),
		ArchivePath:     filepath.Join(base, "events.db"),
		Oracle: OracleConfig{
			Endpoint:    "https://api.openai.com/v1/chat/completions",
			Model:       "gpt-4o-mini",
			TimeoutSecs: 60,
			MaxTokens:   1500,
			Temperature: 0.1,
		},
	}
}

// Load builds the effective config: defaults, overlaid by the yaml file at
// path (missing file is fine), overlaid by environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("reading %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	applyEnv(&cfg.StorePath, "PICNIC_STORE")
	applyEnv(&cfg.ArchivePath, "PICNIC_ARCHIVE")
	applyEnv(&cfg.Oracle.Endpoint, "PICNIC_ORACLE_ENDPOINT")
	applyEnv(&cfg.Oracle.Model, "PICNIC_ORACLE_MODEL")
	applyEnv(&cfg.Oracle.APIKey, "PICNIC_ORACLE_API_KEY")
	applyEnv(&cfg.Oracle.APIKey, "OPENAI_API_KEY")
	if v := strings.TrimSpace(os.Getenv("PICNIC_MAX_ORACLE_CALLS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.MaxOracleCallsPerRun = n
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	for name, v := range map[string]float64{
		"min_category_confidence":    c.MinCategoryConfidence,
		"min_cuisine_confidence":     c.MinCuisineConfidence,
		"alias_confidence_threshold": c.AliasConfidenceThreshold,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be in [0,1], got %v", name, v)
		}
	}
	if c.RollingAverageAlpha <= 0 || c.RollingAverageAlpha >= 1 {
		return fmt.Errorf("rolling_average_alpha must be in (0,1), got %v", c.RollingAverageAlpha)
	}
	if c.MaxOracleCallsPerRun < 0 {
		return fmt.Errorf("max_oracle_calls_per_run must be >= 0, got %d", c.MaxOracleCallsPerRun)
	}
	if c.MinBodyLength < 0 || c.ShortBodyLength < c.MinBodyLength {
		return fmt.Errorf("short_body_length (%d) must be >= min_body_length (%d)", c.ShortBodyLength, c.MinBodyLength)
	}
	if c.CacheExpiryHours <= 0 {
		return fmt.Errorf("cache_expiry_hours must be positive, got %d", c.CacheExpiryHours)
	}
	return nil
}

// CacheTTL returns the cache expiry window as a duration.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheExpiryHours) * time.Hour
}

// HasCategory reports whether v is in the configured category vocabulary.
func (c Config) HasCategory(v string) bool { return contains(c.Categories, v) }

// HasCuisine reports whether v is in the configured cuisine vocabulary.
func (c Config) HasCuisine(v string) bool { return contains(c.Cuisines, v) }

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func applyEnv(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}
