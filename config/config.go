// Package config loads the process configuration for the discovery
// pipeline from an optional YAML file layered under environment
// variables. Every setting is optional; absence of a credential disables
// the feature that needs it.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the flat settings struct handed to the orchestrator and the
// collaborator constructors at startup.
type Config struct {
	// Credentials. Empty disables the corresponding enrichment source.
	SpotifyClientID     string `yaml:"spotify_client_id"`
	SpotifyClientSecret string `yaml:"spotify_client_secret"`
	AnalyzerAPIKey      string `yaml:"analyzer_api_key"`
	YouTubeAPIKey       string `yaml:"youtube_api_key"`

	// Storage. Empty selects the in-memory store.
	StoreURL string `yaml:"store_url"`

	// Session limits.
	MaxConcurrentSessions int `yaml:"max_concurrent_sessions"`
	DailyCostBudget       int `yaml:"daily_cost_budget"`

	// Pipeline tuning.
	EnrichWorkers   int           `yaml:"enrich_workers"`
	OverFetchFactor int           `yaml:"over_fetch_factor"`
	HarvestCeiling  int           `yaml:"harvest_ceiling"`
	NoProgressLimit int           `yaml:"no_progress_limit"`
	ScrollSettle    time.Duration `yaml:"scroll_settle"`

	// Fetch concurrency gates, shared process-wide.
	HeadlessFetchLimit int `yaml:"headless_fetch_limit"`
	PlainFetchLimit    int `yaml:"plain_fetch_limit"`

	// Search surface host, overridable for tests.
	SearchHost string `yaml:"search_host"`
}

// Defaults returns a Config populated with the documented default values.
func Defaults() Config {
	return Config{
		MaxConcurrentSessions: 4,
		EnrichWorkers:         8,
		OverFetchFactor:       2,
		HarvestCeiling:        1000,
		NoProgressLimit:       3,
		ScrollSettle:          500 * time.Millisecond,
		HeadlessFetchLimit:    4,
		PlainFetchLimit:       32,
		SearchHost:            "www.youtube.com",
	}
}

// Load builds a Config from defaults, then the YAML file at path (if path
// is non-empty and the file exists), then environment variables. The
// environment always wins.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	for _, key := range []string{
		"SPOTIFY_CLIENT_ID", "SPOTIFY_CLIENT_SECRET", "ANALYZER_API_KEY",
		"YOUTUBE_API_KEY", "STORE_URL", "MAX_CONCURRENT_SESSIONS",
		"DAILY_COST_BUDGET",
	} {
		if err := v.BindEnv(key); err != nil {
			return cfg, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if s := v.GetString("SPOTIFY_CLIENT_ID"); s != "" {
		cfg.SpotifyClientID = s
	}
	if s := v.GetString("SPOTIFY_CLIENT_SECRET"); s != "" {
		cfg.SpotifyClientSecret = s
	}
	if s := v.GetString("ANALYZER_API_KEY"); s != "" {
		cfg.AnalyzerAPIKey = s
	}
	if s := v.GetString("YOUTUBE_API_KEY"); s != "" {
		cfg.YouTubeAPIKey = s
	}
	if s := v.GetString("STORE_URL"); s != "" {
		cfg.StoreURL = s
	}
	if n := v.GetInt("MAX_CONCURRENT_SESSIONS"); n > 0 {
		cfg.MaxConcurrentSessions = n
	}
	if n := v.GetInt("DAILY_COST_BUDGET"); n > 0 {
		cfg.DailyCostBudget = n
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.MaxConcurrentSessions <= 0 {
		return fmt.Errorf("max_concurrent_sessions must be positive")
	}
	if c.EnrichWorkers <= 0 {
		return fmt.Errorf("enrich_workers must be positive")
	}
	if c.OverFetchFactor <= 0 {
		return fmt.Errorf("over_fetch_factor must be positive")
	}
	return nil
}
