// Package config handles application configuration from flags and
// environment variables.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jessevdk/go-flags"

	"feedpush/internal/model"
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string `long:"telegram-token" env:"TELEGRAM_BOT_TOKEN" description:"Telegram bot token"`
	DatabasePath     string `long:"db" env:"DATABASE_PATH" default:"./data/feedpush.db" description:"Path to the SQLite database"`
	LogLevel         string `long:"log-level" env:"LOG_LEVEL" default:"info" description:"Log level: debug, info, warn, error"`

	FeedURL         string `long:"feed-url" env:"FEED_URL" description:"Feed URL to poll"`
	ProxyURL        string `long:"proxy-url" env:"PROXY_URL" description:"Optional proxy URL for feed requests"`
	PollIntervalSec int    `long:"poll-interval" env:"POLL_INTERVAL" default:"300" description:"Feed poll interval in seconds (1-3600)"`
	NoAutoUpdate    bool   `long:"no-auto-update" env:"NO_AUTO_UPDATE" description:"Disable the periodic feed poll"`

	GlobalCap       int    `long:"global-cap" env:"GLOBAL_CAP" default:"500" description:"Total cached post cap (100-1000)"`
	CategoryCap     int    `long:"category-cap" env:"CATEGORY_CAP" default:"50" description:"Default per-category cached post cap (10-100)"`
	CategoryCapsRaw string `long:"category-caps" env:"CATEGORY_CAPS" description:"Per-category cap overrides, e.g. daily=80,trade=40"`

	NoPush        bool `long:"no-push" env:"NO_PUSH" description:"Disable push delivery"`
	MaxKeywords   int  `long:"max-keywords" env:"MAX_KEYWORDS" default:"10" description:"Max keywords per subscriber (1-50)"`
	PushDelayMs   int  `long:"push-delay-ms" env:"PUSH_DELAY_MS" default:"1000" description:"Delay between recipients during a push pass in ms (500-5000)"`
	PushBatchSize int  `long:"push-batch-size" env:"PUSH_BATCH_SIZE" default:"5" description:"Max posts per push batch (1-20)"`
	RetentionDays int  `long:"retention-days" env:"RETENTION_DAYS" default:"30" description:"Days to keep push records (1-365)"`

	AllowedUsersRaw string `long:"allowed-users" env:"ALLOWED_USERS" description:"Comma-separated Telegram user IDs allowed to issue commands"`

	// Derived, populated by Load.
	AllowedUsers []int64                `no-flag:"true"`
	CategoryCaps map[model.Category]int `no-flag:"true"`
}

// Load parses configuration from the given arguments and the environment.
func Load(args []string) (*Config, error) {
	cfg := &Config{}

	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, fmt.Errorf("parse configuration: %w", err)
	}

	if cfg.TelegramBotToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if cfg.FeedURL == "" {
		return nil, fmt.Errorf("FEED_URL is required")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	users, err := parseAllowedUsers(cfg.AllowedUsersRaw)
	if err != nil {
		return nil, err
	}
	cfg.AllowedUsers = users

	caps, err := parseCategoryCaps(cfg.CategoryCap, cfg.CategoryCapsRaw)
	if err != nil {
		return nil, err
	}
	cfg.CategoryCaps = caps

	return cfg, nil
}

func (c *Config) validate() error {
	checks := []struct {
		name     string
		value    int
		min, max int
	}{
		{"poll interval", c.PollIntervalSec, 1, 3600},
		{"global cap", c.GlobalCap, 100, 1000},
		{"category cap", c.CategoryCap, 10, 100},
		{"max keywords", c.MaxKeywords, 1, 50},
		{"push delay", c.PushDelayMs, 500, 5000},
		{"push batch size", c.PushBatchSize, 1, 20},
		{"retention days", c.RetentionDays, 1, 365},
	}
	for _, ch := range checks {
		if ch.value < ch.min || ch.value > ch.max {
			return fmt.Errorf("%s must be between %d and %d, got %d", ch.name, ch.min, ch.max, ch.value)
		}
	}
	return nil
}

// AutoUpdate reports whether the periodic feed poll is enabled.
func (c *Config) AutoUpdate() bool { return !c.NoAutoUpdate }

// PushEnabled reports whether push delivery is enabled.
func (c *Config) PushEnabled() bool { return !c.NoPush }

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

func parseAllowedUsers(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	var users []int64
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		uid, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
		}
		users = append(users, uid)
	}
	return users, nil
}

// parseCategoryCaps builds the per-category cap table from the default cap
// and the comma-separated "name=cap" override list.
func parseCategoryCaps(defaultCap int, raw string) (map[model.Category]int, error) {
	caps := make(map[model.Category]int, len(model.Categories()))
	for _, c := range model.Categories() {
		caps[c] = defaultCap
	}

	if raw == "" {
		return caps, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid category cap %q, expected name=cap", pair)
		}
		cat, known := model.ParseCategory(strings.TrimSpace(name))
		if !known {
			return nil, fmt.Errorf("unknown category %q in CATEGORY_CAPS", name)
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 10 || n > 100 {
			return nil, fmt.Errorf("category cap for %q must be between 10 and 100", name)
		}
		caps[cat] = n
	}
	return caps, nil
}
