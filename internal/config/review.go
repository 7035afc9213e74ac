package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvReviewDefaultReviewer   = "CREDITDESK_REVIEW_DEFAULT_REVIEWER"
	EnvReviewPollInterval      = "CREDITDESK_REVIEW_POLL_INTERVAL"
	EnvReviewDashboardInterval = "CREDITDESK_REVIEW_DASHBOARD_INTERVAL"
	EnvReviewNoticeTTL         = "CREDITDESK_REVIEW_NOTICE_TTL"
	EnvReviewViewIdleTimeout   = "CREDITDESK_REVIEW_VIEW_IDLE_TIMEOUT"
	EnvReviewDashboardLimit    = "CREDITDESK_REVIEW_DASHBOARD_LIMIT"
)

// ReviewConfig holds review console timing and identity settings.
type ReviewConfig struct {
	DefaultReviewer   string `toml:"default_reviewer"`
	PollInterval      string `toml:"poll_interval"`
	DashboardInterval string `toml:"dashboard_interval"`
	NoticeTTL         string `toml:"notice_ttl"`
	ViewIdleTimeout   string `toml:"view_idle_timeout"`
	DashboardLimit    int    `toml:"dashboard_limit"`
}

// PollIntervalDuration returns PollInterval as a time.Duration.
func (c *ReviewConfig) PollIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.PollInterval)
	return d
}

// DashboardIntervalDuration returns DashboardInterval as a time.Duration.
func (c *ReviewConfig) DashboardIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.DashboardInterval)
	return d
}

// NoticeTTLDuration returns NoticeTTL as a time.Duration.
func (c *ReviewConfig) NoticeTTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.NoticeTTL)
	return d
}

// ViewIdleTimeoutDuration returns ViewIdleTimeout as a time.Duration.
func (c *ReviewConfig) ViewIdleTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ViewIdleTimeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *ReviewConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *ReviewConfig) Merge(overlay *ReviewConfig) {
	if overlay.DefaultReviewer != "" {
		c.DefaultReviewer = overlay.DefaultReviewer
	}
	if overlay.PollInterval != "" {
		c.PollInterval = overlay.PollInterval
	}
	if overlay.DashboardInterval != "" {
		c.DashboardInterval = overlay.DashboardInterval
	}
	if overlay.NoticeTTL != "" {
		c.NoticeTTL = overlay.NoticeTTL
	}
	if overlay.ViewIdleTimeout != "" {
		c.ViewIdleTimeout = overlay.ViewIdleTimeout
	}
	if overlay.DashboardLimit != 0 {
		c.DashboardLimit = overlay.DashboardLimit
	}
}

func (c *ReviewConfig) loadDefaults() {
	if c.DefaultReviewer == "" {
		c.DefaultReviewer = "Credit Officer"
	}
	if c.PollInterval == "" {
		c.PollInterval = "3s"
	}
	if c.DashboardInterval == "" {
		c.DashboardInterval = "5s"
	}
	if c.NoticeTTL == "" {
		c.NoticeTTL = "5s"
	}
	if c.ViewIdleTimeout == "" {
		c.ViewIdleTimeout = "15m"
	}
	if c.DashboardLimit == 0 {
		c.DashboardLimit = 50
	}
}

func (c *ReviewConfig) loadEnv() {
	if v := os.Getenv(EnvReviewDefaultReviewer); v != "" {
		c.DefaultReviewer = v
	}
	if v := os.Getenv(EnvReviewPollInterval); v != "" {
		c.PollInterval = v
	}
	if v := os.Getenv(EnvReviewDashboardInterval); v != "" {
		c.DashboardInterval = v
	}
	if v := os.Getenv(EnvReviewNoticeTTL); v != "" {
		c.NoticeTTL = v
	}
	if v := os.Getenv(EnvReviewViewIdleTimeout); v != "" {
		c.ViewIdleTimeout = v
	}
	if v := os.Getenv(EnvReviewDashboardLimit); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.DashboardLimit = n
		}
	}
}

func (c *ReviewConfig) validate() error {
	durations := []struct {
		name  string
		value string
	}{
		{"poll_interval", c.PollInterval},
		{"dashboard_interval", c.DashboardInterval},
		{"notice_ttl", c.NoticeTTL},
		{"view_idle_timeout", c.ViewIdleTimeout},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.name, err)
		}
		if v <= 0 {
			return fmt.Errorf("%s must be positive", d.name)
		}
	}
	if c.DashboardLimit < 1 {
		return fmt.Errorf("dashboard_limit must be positive")
	}
	return nil
}
