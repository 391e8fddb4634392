// Package config loads and validates runtime configuration from flags and
// environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration for the tracker.
type Config struct {
	DatabaseURL string

	// eBay API credentials. All empty is a valid state: the eBay scraper
	// then runs purely on its HTML fallback.
	EbayClientID     string
	EbayClientSecret string
	EbayStaticToken  string

	FetchTimeout time.Duration

	// Scheduler settings.
	ScrapeIntervalHours   int
	PriorityIntervalHours int
	PriorityRetailers     []string

	MetricsAddr string
	Verbose     bool
}

// DefaultConfig returns the tracker defaults; the scheduler cadence
// mirrors the production dashboard's expectations.
func DefaultConfig() *Config {
	return &Config{
		FetchTimeout:          15 * time.Second,
		ScrapeIntervalHours:   6,
		PriorityIntervalHours: 2,
		PriorityRetailers:     []string{"tcgrepublic", "ebay"},
	}
}

// FromEnv builds a config from the environment on top of the defaults.
// DATABASE_URL is required; everything else falls back.
func FromEnv() (*Config, error) {
	cfg := DefaultConfig()

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg.EbayClientID = os.Getenv("EBAY_CLIENT_ID")
	cfg.EbayClientSecret = os.Getenv("EBAY_CLIENT_SECRET")
	cfg.EbayStaticToken = os.Getenv("EBAY_OAUTH_TOKEN")

	if v, ok, err := EnvInt("SCRAPE_INTERVAL_HOURS"); err != nil {
		return nil, err
	} else if ok {
		cfg.ScrapeIntervalHours = v
	}
	if v, ok, err := EnvInt("PRIORITY_INTERVAL_HOURS"); err != nil {
		return nil, err
	} else if ok {
		cfg.PriorityIntervalHours = v
	}
	if v, ok := EnvString("PRIORITY_RETAILERS"); ok {
		cfg.PriorityRetailers = splitList(v)
	}
	if v, ok, err := EnvInt("FETCH_TIMEOUT_SECONDS"); err != nil {
		return nil, err
	} else if ok {
		cfg.FetchTimeout = time.Duration(v) * time.Second
	}
	if v, ok := EnvString("METRICS_ADDR"); ok {
		cfg.MetricsAddr = v
	}

	return cfg, nil
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("database URL cannot be empty")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive")
	}
	if c.ScrapeIntervalHours < 1 {
		return fmt.Errorf("scrape interval must be at least one hour")
	}
	if c.PriorityIntervalHours < 1 {
		return fmt.Errorf("priority interval must be at least one hour")
	}
	if (c.EbayClientID == "") != (c.EbayClientSecret == "") {
		return fmt.Errorf("EBAY_CLIENT_ID and EBAY_CLIENT_SECRET must be set together")
	}
	return nil
}

// HasEbayCredentials reports whether any token source is configured.
func (c *Config) HasEbayCredentials() bool {
	return c.EbayStaticToken != "" || (c.EbayClientID != "" && c.EbayClientSecret != "")
}

// EnvInt reads an integer environment variable. The second return reports
// whether the variable was set.
func EnvInt(key string) (int, bool, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be an integer, got %q", key, raw)
	}
	return value, true, nil
}

// EnvString reads a string environment variable, reporting whether it was
// set to a non-empty value.
func EnvString(key string) (string, bool) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return "", false
	}
	return raw, true
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
