// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Scraper   ScraperConfig   `mapstructure:"scraper"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Detector  DetectorConfig  `mapstructure:"detector"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Bootstrap BootstrapConfig `mapstructure:"bootstrap"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Progress  ProgressConfig  `mapstructure:"progress"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior. The port is taken verbatim from
// the PORT environment variable when the platform provides one.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// ScraperConfig governs the listings scrape pipeline.
type ScraperConfig struct {
	TargetURL        string   `mapstructure:"target_url"`
	UserAgent        string   `mapstructure:"user_agent"`
	AcceptLanguage   string   `mapstructure:"accept_language"`
	TimeoutSeconds   int      `mapstructure:"timeout_seconds"`
	MaxListings      int      `mapstructure:"max_listings"`
	Regions          []string `mapstructure:"regions"`
	IndustryKeywords []string `mapstructure:"industry_keywords"`
	RespectRobots    bool     `mapstructure:"respect_robots"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Backend       string `mapstructure:"backend"`
	MaxParallel   int    `mapstructure:"max_parallel"`
	NavTimeoutSec int    `mapstructure:"nav_timeout_seconds"`
}

// DetectorConfig tunes the JS-shell heuristic that promotes probe fetches to
// headless renders. RequireSelectors lists CSS selectors the server-rendered
// page must contain; a miss on any of them promotes.
type DetectorConfig struct {
	MinHTMLBytes     int      `mapstructure:"min_html_bytes"`
	ScriptDensityPct int      `mapstructure:"script_density_pct"`
	Keywords         []string `mapstructure:"keywords"`
	RequireSelectors []string `mapstructure:"require_selectors"`
}

// BrowserConfig scopes browser-runtime provisioning.
type BrowserConfig struct {
	Engines   []string `mapstructure:"engines"`
	CacheDirs []string `mapstructure:"cache_dirs"`
	Verbose   bool     `mapstructure:"verbose"`
}

// BootstrapConfig declares the dependency manifest and provisioning knobs.
// Requires lists binaries that must resolve on PATH; Install lists commands
// run in order before browser provisioning. SkipProvision drops the whole
// provisioning pass; SkipBrowsers keeps the manifest but leaves the browser
// runtime untouched.
type BootstrapConfig struct {
	SkipProvision         bool       `mapstructure:"skip_provision"`
	SkipBrowsers          bool       `mapstructure:"skip_browsers"`
	InstallTimeoutSeconds int        `mapstructure:"install_timeout_seconds"`
	Requires              []string   `mapstructure:"requires"`
	Install               [][]string `mapstructure:"install"`
}

// RateLimitConfig bounds outbound fetches per target host.
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

// ProgressConfig controls run/step progress reporting.
type ProgressConfig struct {
	Enabled       bool                `mapstructure:"enabled"`
	LogEnabled    bool                `mapstructure:"log_enabled"`
	BufferSize    int                 `mapstructure:"buffer_size"`
	Batch         ProgressBatchConfig `mapstructure:"batch"`
	SinkTimeoutMs int                 `mapstructure:"sink_timeout_ms"`
	HistoryLimit  int                 `mapstructure:"history_limit"`
}

// ProgressBatchConfig tunes hub batching.
type ProgressBatchConfig struct {
	MaxEvents int `mapstructure:"max_events"`
	MaxWaitMs int `mapstructure:"max_wait_ms"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment. A .env file in the working
// directory fills in unset variables; platform-provided values such as PORT
// always win.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("SCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The deployment platform hands the bind port over as plain PORT.
	if err := v.BindEnv("server.port", "SCRAPER_SERVER_PORT", "PORT"); err != nil {
		return Config{}, fmt.Errorf("bind port env: %w", err)
	}

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
	v.SetDefault("server.port", 8000)
	v.SetDefault("scraper.target_url", "https://www.bolagsplatsen.se/foretag-till-salu")
	v.SetDefault("scraper.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	v.SetDefault("scraper.accept_language", "sv-SE,sv;q=0.8,en-US;q=0.5,en;q=0.3")
	v.SetDefault("scraper.timeout_seconds", 60)
	v.SetDefault("scraper.max_listings", 20)
	v.SetDefault("scraper.regions", []string{
		"Stockholm", "Göteborg", "Malmö", "Västra Götaland", "Skåne", "Jämtland",
		"Örebro", "Kronoberg", "Södermanland", "Västerås", "Eskilstuna", "Sverige",
	})
	v.SetDefault("scraper.industry_keywords", []string{
		"e-handel", "tillverkning", "handel", "bygg", "restaurang", "konditori", "bageri",
	})
	v.SetDefault("scraper.respect_robots", false)
	v.SetDefault("headless.enabled", true)
	v.SetDefault("headless.backend", "playwright")
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 45)
	v.SetDefault("detector.min_html_bytes", 2000)
	v.SetDefault("detector.script_density_pct", 60)
	v.SetDefault("detector.keywords", []string{
		"__NEXT_DATA__",
		"data-reactroot",
		"ng-app",
		"window.__APOLLO_STATE__",
	})
	v.SetDefault("detector.require_selectors", []string{`a[href*="/foretag-till-salu/"]`})
	v.SetDefault("browser.engines", []string{"chromium"})
	v.SetDefault("browser.cache_dirs", defaultCacheDirs())
	v.SetDefault("browser.verbose", true)
	v.SetDefault("bootstrap.skip_provision", false)
	v.SetDefault("bootstrap.skip_browsers", false)
	v.SetDefault("bootstrap.install_timeout_seconds", 600)
	v.SetDefault("bootstrap.requires", []string{})
	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.rps", 1.0)
	v.SetDefault("ratelimit.burst", 1)
	v.SetDefault("progress.enabled", true)
	v.SetDefault("progress.log_enabled", false)
	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.batch.max_events", 64)
	v.SetDefault("progress.batch.max_wait_ms", 500)
	v.SetDefault("progress.sink_timeout_ms", 5000)
	v.SetDefault("progress.history_limit", 100)
	v.SetDefault("logging.development", true)
}

// defaultCacheDirs returns the candidate ms-playwright cache locations: the
// Render platform path plus the invoking user's home cache.
func defaultCacheDirs() []string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "/root"
	}
	return []string{
		"/opt/render/.cache/ms-playwright",
		filepath.Join(home, ".cache", "ms-playwright"),
	}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scraper.TargetURL == "" {
		return fmt.Errorf("scraper.target_url must be set")
	}
	if _, err := url.Parse(c.Scraper.TargetURL); err != nil {
		return fmt.Errorf("scraper.target_url is invalid: %w", err)
	}
	if c.Scraper.TimeoutSeconds <= 0 {
		return fmt.Errorf("scraper.timeout_seconds must be > 0")
	}
	if c.Scraper.MaxListings <= 0 {
		return fmt.Errorf("scraper.max_listings must be > 0")
	}
	if c.Headless.Enabled {
		if c.Headless.Backend != "playwright" && c.Headless.Backend != "chromedp" {
			return fmt.Errorf("headless.backend must be playwright or chromedp")
		}
		if c.Headless.MaxParallel <= 0 {
			return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
		}
	}
	if len(c.Browser.CacheDirs) == 0 {
		return fmt.Errorf("browser.cache_dirs must list at least one path")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.RateLimit.Enabled && c.RateLimit.RPS <= 0 {
		return fmt.Errorf("ratelimit.rps must be > 0 when rate limiting is enabled")
	}
	return nil
}

// ScrapeBudget converts the scrape timeout into a duration.
func (c Config) ScrapeBudget() time.Duration {
	return time.Duration(c.Scraper.TimeoutSeconds) * time.Second
}

// InstallBudget converts the provisioning timeout into a duration.
func (c Config) InstallBudget() time.Duration {
	return time.Duration(c.Bootstrap.InstallTimeoutSeconds) * time.Second
}
