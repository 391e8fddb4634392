package config

import (
	"testing"
	"time"
)

func TestValidateDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DatabaseURL = "postgres://localhost/cardwatch"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "empty database url", mutate: func(c *Config) { c.DatabaseURL = "" }},
		{name: "zero timeout", mutate: func(c *Config) { c.FetchTimeout = 0 }},
		{name: "zero interval", mutate: func(c *Config) { c.ScrapeIntervalHours = 0 }},
		{name: "zero priority interval", mutate: func(c *Config) { c.PriorityIntervalHours = 0 }},
		{name: "id without secret", mutate: func(c *Config) { c.EbayClientID = "app-id" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.DatabaseURL = "postgres://localhost/cardwatch"
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/cardwatch")
	t.Setenv("SCRAPE_INTERVAL_HOURS", "12")
	t.Setenv("PRIORITY_RETAILERS", "ebay, japantcg")
	t.Setenv("FETCH_TIMEOUT_SECONDS", "30")
	t.Setenv("EBAY_CLIENT_ID", "app-id")
	t.Setenv("EBAY_CLIENT_SECRET", "app-secret")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.ScrapeIntervalHours != 12 {
		t.Fatalf("ScrapeIntervalHours = %d, want 12", cfg.ScrapeIntervalHours)
	}
	if len(cfg.PriorityRetailers) != 2 || cfg.PriorityRetailers[1] != "japantcg" {
		t.Fatalf("PriorityRetailers = %v", cfg.PriorityRetailers)
	}
	if cfg.FetchTimeout != 30*time.Second {
		t.Fatalf("FetchTimeout = %v, want 30s", cfg.FetchTimeout)
	}
	if !cfg.HasEbayCredentials() {
		t.Fatal("credentials not detected")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestFromEnvRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error without DATABASE_URL")
	}
}

func TestFromEnvRejectsBadInt(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/cardwatch")
	t.Setenv("SCRAPE_INTERVAL_HOURS", "soon")
	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error for non-integer interval")
	}
}
