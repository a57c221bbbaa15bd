// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Proxy    ProxyConfig    `mapstructure:"proxy"`
	Scrape   ScrapeConfig   `mapstructure:"scrape"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Batch    BatchConfig    `mapstructure:"batch"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ProxyConfig controls the candidate feed and the liveness probe.
type ProxyConfig struct {
	FeedURL             string `mapstructure:"feed_url"`
	FeedTimeoutSeconds  int    `mapstructure:"feed_timeout_seconds"`
	ProbeURL            string `mapstructure:"probe_url"`
	ProbeTimeoutSeconds int    `mapstructure:"probe_timeout_seconds"`
	ProbeConcurrency    int    `mapstructure:"probe_concurrency"`
	UserAgent           string `mapstructure:"user_agent"`
}

// ScrapeConfig governs retry-with-rotation.
type ScrapeConfig struct {
	ExtractionTimeoutSeconds int     `mapstructure:"extraction_timeout_seconds"`
	MaxAttempts              int     `mapstructure:"max_attempts"`
	TargetQPS                float64 `mapstructure:"target_qps"`
}

// BrowserConfig configures headless Chrome and the page selectors.
type BrowserConfig struct {
	Headless         bool        `mapstructure:"headless"`
	ExecPath         string      `mapstructure:"exec_path"`
	NoSandbox        bool        `mapstructure:"no_sandbox"`
	UserAgent        string      `mapstructure:"user_agent"`
	NameSelector     string      `mapstructure:"name_selector"`
	LocationSelector string      `mapstructure:"location_selector"`
	DismissSelector  string      `mapstructure:"dismiss_selector"`
	Login            LoginConfig `mapstructure:"login"`
}

// LoginConfig enables authenticated page views.
type LoginConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	URL           string `mapstructure:"url"`
	Email         string `mapstructure:"email"`
	Password      string `mapstructure:"password"`
	ReadySelector string `mapstructure:"ready_selector"`
}

// BatchConfig names the spreadsheet columns.
type BatchConfig struct {
	URLColumn       string `mapstructure:"url_column"`
	FirstNameColumn string `mapstructure:"first_name_column"`
	LastNameColumn  string `mapstructure:"last_name_column"`
	LocationColumn  string `mapstructure:"location_column"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int    `mapstructure:"port"`
	APIKey                string `mapstructure:"api_key"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds"`
}

// DatabaseConfig controls the optional Postgres profile store.
type DatabaseConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Keys without a default must still be known for env overrides to unmarshal.
	v.SetDefault("proxy.feed_url", "")
	v.SetDefault("proxy.feed_timeout_seconds", 30)
	v.SetDefault("proxy.probe_url", "https://www.linkedin.com")
	v.SetDefault("proxy.probe_timeout_seconds", 2)
	v.SetDefault("proxy.probe_concurrency", 50)
	v.SetDefault("proxy.user_agent", "")
	v.SetDefault("scrape.extraction_timeout_seconds", 60)
	v.SetDefault("scrape.max_attempts", 0)
	v.SetDefault("scrape.target_qps", 0)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.no_sandbox", false)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.name_selector", "h1.top-card-layout__title")
	v.SetDefault("browser.location_selector", "div.not-first-middot > span:first-child")
	v.SetDefault("browser.dismiss_selector", "button.modal__dismiss")
	v.SetDefault("browser.login.enabled", false)
	v.SetDefault("browser.login.url", "https://www.linkedin.com/login")
	v.SetDefault("browser.login.email", "")
	v.SetDefault("browser.login.password", "")
	v.SetDefault("browser.login.ready_selector", "img.feed-identity-module__member-bg-image")
	v.SetDefault("batch.url_column", "prooflink")
	v.SetDefault("batch.first_name_column", "first_name")
	v.SetDefault("batch.last_name_column", "last_name")
	v.SetDefault("batch.location_column", "geo")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.api_key", "")
	v.SetDefault("server.request_timeout_seconds", 300)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.table", "profiles")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Proxy.FeedURL != "" {
		if err := requireHTTPURL("proxy.feed_url", c.Proxy.FeedURL); err != nil {
			return err
		}
	}
	if err := requireHTTPURL("proxy.probe_url", c.Proxy.ProbeURL); err != nil {
		return err
	}
	if c.Proxy.FeedTimeoutSeconds <= 0 {
		return fmt.Errorf("proxy.feed_timeout_seconds must be > 0")
	}
	if c.Proxy.ProbeTimeoutSeconds <= 0 {
		return fmt.Errorf("proxy.probe_timeout_seconds must be > 0")
	}
	if c.Proxy.ProbeConcurrency <= 0 {
		return fmt.Errorf("proxy.probe_concurrency must be > 0")
	}
	if c.Scrape.ExtractionTimeoutSeconds <= 0 {
		return fmt.Errorf("scrape.extraction_timeout_seconds must be > 0")
	}
	if c.Scrape.MaxAttempts < 0 {
		return fmt.Errorf("scrape.max_attempts must be >= 0")
	}
	if c.Scrape.TargetQPS < 0 {
		return fmt.Errorf("scrape.target_qps must be >= 0")
	}
	if c.Browser.Login.Enabled && (c.Browser.Login.Email == "" || c.Browser.Login.Password == "") {
		return fmt.Errorf("browser.login.email and browser.login.password must be set when login is enabled")
	}
	if c.Batch.URLColumn == "" {
		return fmt.Errorf("batch.url_column must not be empty")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	return nil
}

// RequireFeed reports an error when no proxy feed is configured.
func (c Config) RequireFeed() error {
	if c.Proxy.FeedURL == "" {
		return fmt.Errorf("proxy.feed_url is required (set SCRAPER_PROXY_FEED_URL)")
	}
	return nil
}

// FeedTimeout returns the feed download budget.
func (c Config) FeedTimeout() time.Duration {
	return time.Duration(c.Proxy.FeedTimeoutSeconds) * time.Second
}

// ProbeTimeout returns the per-proxy liveness deadline.
func (c Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Proxy.ProbeTimeoutSeconds) * time.Second
}

// RequestTimeout bounds a single API request.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// ExtractionTimeout returns the per-attempt page budget.
func (c Config) ExtractionTimeout() time.Duration {
	return time.Duration(c.Scrape.ExtractionTimeoutSeconds) * time.Second
}

func requireHTTPURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) url", key)
	}
	return nil
}
