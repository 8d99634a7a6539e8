// Package config builds the importer's run configuration: feed sources, tag
// keyword rules, the content store endpoint, and the bearer credential
// resolved from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultStoreURL is the content store consumed by the importer.
	DefaultStoreURL = "https://store.civichall.org"

	// DefaultDelay throttles outbound requests between items within a feed.
	DefaultDelay = 500 * time.Millisecond

	// DefaultHTTPTimeout bounds every individual network call so a single
	// unresponsive source cannot stall the whole run.
	DefaultHTTPTimeout = 15 * time.Second
)

// Credential environment variables, checked in priority order.
// The first non-empty value wins.
var tokenEnvVars = []string{
	"EVENT_IMPORT_TOKEN",
	"STORE_STATIC_TOKEN",
	"STORE_ADMIN_TOKEN",
}

// ErrNoCredential is returned when no store credential is configured.
// The run must abort before any network activity.
var ErrNoCredential = errors.New("no content store credential configured (set EVENT_IMPORT_TOKEN, STORE_STATIC_TOKEN, or STORE_ADMIN_TOKEN)")

// FeedSource identifies one RSS feed to import from.
type FeedSource struct {
	URL         string `yaml:"url"`
	Label       string `yaml:"source_label"`
	DisplayName string `yaml:"display_name"`
}

// TagRule maps a case-insensitive keyword found in an event title to a tag name.
type TagRule struct {
	Keyword string `yaml:"keyword"`
	TagName string `yaml:"tag"`
}

// Config holds everything the importer needs for one run. It is built once at
// startup and passed by parameter; there is no ambient global state.
type Config struct {
	StoreURL    string
	Token       string
	Feeds       []FeedSource
	TagRules    []TagRule
	Delay       time.Duration
	HTTPTimeout time.Duration
	DryRun      bool
	Verbose     bool
}

// Options carries CLI-level overrides into Load.
type Options struct {
	ConfigFile string
	StoreURL   string
	Delay      time.Duration
	DryRun     bool
	Verbose    bool
}

// defaultFeeds are the sources imported when no config file is supplied.
var defaultFeeds = []FeedSource{
	{
		URL:         "https://civichall.org/events/feed/",
		Label:       "civichall",
		DisplayName: "Civic Hall Events",
	},
}

// defaultTagRules tag community-run events.
var defaultTagRules = []TagRule{
	{Keyword: "community", TagName: "community"},
}

// fileConfig is the YAML shape of an importer config file.
type fileConfig struct {
	StoreURL string       `yaml:"store_url"`
	DelayMS  int          `yaml:"delay_ms"`
	Feeds    []FeedSource `yaml:"feeds"`
	TagRules []TagRule    `yaml:"tag_rules"`
}

// Load builds the run configuration from defaults, an optional YAML config
// file, environment variables, and CLI overrides (highest precedence).
// It fails fast with ErrNoCredential when no store token is configured.
func Load(opts Options) (*Config, error) {
	// A .env file is optional; a missing one is not an error.
	_ = godotenv.Load()

	cfg := &Config{
		StoreURL:    DefaultStoreURL,
		Feeds:       defaultFeeds,
		TagRules:    defaultTagRules,
		Delay:       DefaultDelay,
		HTTPTimeout: DefaultHTTPTimeout,
		DryRun:      opts.DryRun,
		Verbose:     opts.Verbose,
	}

	if url := os.Getenv("STORE_URL"); url != "" {
		cfg.StoreURL = url
	}

	if opts.ConfigFile != "" {
		if err := applyFile(cfg, opts.ConfigFile); err != nil {
			return nil, err
		}
	}

	if opts.StoreURL != "" {
		cfg.StoreURL = opts.StoreURL
	}
	if opts.Delay > 0 {
		cfg.Delay = opts.Delay
	}

	cfg.Token = ResolveToken()
	if cfg.Token == "" {
		return nil, ErrNoCredential
	}

	if len(cfg.Feeds) == 0 {
		return nil, fmt.Errorf("no feed sources configured")
	}

	return cfg, nil
}

// applyFile overlays a YAML config file onto cfg.
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if fc.StoreURL != "" {
		cfg.StoreURL = fc.StoreURL
	}
	if fc.DelayMS > 0 {
		cfg.Delay = time.Duration(fc.DelayMS) * time.Millisecond
	}
	if len(fc.Feeds) > 0 {
		cfg.Feeds = fc.Feeds
	}
	if len(fc.TagRules) > 0 {
		cfg.TagRules = fc.TagRules
	}

	return nil
}

// ResolveToken returns the store credential, checking the dedicated import
// token first, then the general static token, then the admin token.
func ResolveToken() string {
	for _, name := range tokenEnvVars {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
