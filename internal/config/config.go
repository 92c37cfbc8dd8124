// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/listing-host-crawler/internal/extract"
)

// Default file names used when no path is configured.
const (
	DefaultTargetsFile = "search_urls.txt"
	DefaultOutputFile  = "airbnb_hosts_data.csv"
)

// Config captures all knobs of a crawl run.
type Config struct {
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Extract   ExtractConfig   `mapstructure:"extract"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Output    OutputConfig    `mapstructure:"output"`
	DB        DBConfig        `mapstructure:"db"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// CrawlerConfig sizes the run.
type CrawlerConfig struct {
	Workers     int    `mapstructure:"workers"`
	MaxListings int    `mapstructure:"max_listings"`
	Targets     string `mapstructure:"targets"`
}

// BrowserConfig configures every browsing session.
type BrowserConfig struct {
	Headless       bool          `mapstructure:"headless"`
	ExecPath       string        `mapstructure:"exec_path"`
	NavTimeout     time.Duration `mapstructure:"nav_timeout"`
	SettleTimeout  time.Duration `mapstructure:"settle_timeout"`
	IdleWindow     time.Duration `mapstructure:"idle_window"`
	ActionTimeout  time.Duration `mapstructure:"action_timeout"`
	Locale         string        `mapstructure:"locale"`
	Timezone       string        `mapstructure:"timezone"`
	AcceptLanguage string        `mapstructure:"accept_language"`
	UserAgents     []string      `mapstructure:"user_agents"`
	// HostQPS caps navigations per host across sessions; 0 disables it.
	HostQPS float64 `mapstructure:"host_qps"`
}

// DiscoveryConfig bounds the search-page scroll loop.
type DiscoveryConfig struct {
	MaxScrolls  int           `mapstructure:"max_scrolls"`
	ScrollStep  int           `mapstructure:"scroll_step"`
	ScrollPause time.Duration `mapstructure:"scroll_pause"`
	SettleDelay time.Duration `mapstructure:"settle_delay"`
}

// ExtractConfig selects locales and bounds strategy runtime.
type ExtractConfig struct {
	Locales         []string      `mapstructure:"locales"`
	StrategyTimeout time.Duration `mapstructure:"strategy_timeout"`
}

// WorkerConfig paces listing visits.
type WorkerConfig struct {
	RequestDelay time.Duration `mapstructure:"request_delay"`
	SettleDelay  time.Duration `mapstructure:"settle_delay"`
	ScrollStep   int           `mapstructure:"scroll_step"`
	ScrollPause  time.Duration `mapstructure:"scroll_pause"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	BackoffBase  time.Duration `mapstructure:"backoff_base"`
	BackoffMax   time.Duration `mapstructure:"backoff_max"`
}

// OutputConfig controls where records go.
type OutputConfig struct {
	Path          string `mapstructure:"path"`
	IncludeStatus bool   `mapstructure:"include_status"`
	GCSBucket     string `mapstructure:"gcs_bucket"`
	GCSPrefix     string `mapstructure:"gcs_prefix"`
}

// DBConfig enables the optional Postgres record store.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// MetricsConfig enables the metrics HTTP server when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from defaults, an optional file and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HOSTCRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindCompatEnv(v); err != nil {
		return Config{}, err
	}

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

// bindCompatEnv keeps the unprefixed variables of earlier releases working.
// The prefixed variable wins when both are set.
func bindCompatEnv(v *viper.Viper) error {
	compat := map[string]string{
		"crawler.workers":      "MAX_WORKERS",
		"crawler.max_listings": "MAX_LISTINGS",
	}
	for key, legacy := range compat {
		prefixed := "HOSTCRAWLER_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.workers", 4)
	v.SetDefault("crawler.max_listings", 50)
	v.SetDefault("crawler.targets", DefaultTargetsFile)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.nav_timeout", "60s")
	v.SetDefault("browser.settle_timeout", "15s")
	v.SetDefault("browser.idle_window", "500ms")
	v.SetDefault("browser.action_timeout", "3s")
	v.SetDefault("browser.locale", "fr-FR")
	v.SetDefault("browser.timezone", "America/New_York")
	v.SetDefault("browser.host_qps", 0)
	v.SetDefault("discovery.max_scrolls", 5)
	v.SetDefault("discovery.scroll_step", 2000)
	v.SetDefault("discovery.scroll_pause", "1s")
	v.SetDefault("discovery.settle_delay", "3s")
	v.SetDefault("extract.locales", extract.DefaultLocaleOrder)
	v.SetDefault("extract.strategy_timeout", "3s")
	v.SetDefault("worker.request_delay", "2s")
	v.SetDefault("worker.settle_delay", "5s")
	v.SetDefault("worker.scroll_step", 2000)
	v.SetDefault("worker.scroll_pause", "2s")
	v.SetDefault("worker.max_attempts", 2)
	v.SetDefault("worker.backoff_base", "1s")
	v.SetDefault("worker.backoff_max", "10s")
	v.SetDefault("output.path", DefaultOutputFile)
	v.SetDefault("output.include_status", false)
	v.SetDefault("output.gcs_prefix", "runs")
	v.SetDefault("db.table", "listing_hosts")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawler.Workers <= 0 {
		return errors.New("crawler.workers must be > 0")
	}
	if c.Crawler.MaxListings < 0 {
		return errors.New("crawler.max_listings must be >= 0")
	}
	if c.Browser.NavTimeout <= 0 {
		return errors.New("browser.nav_timeout must be > 0")
	}
	if c.Browser.HostQPS < 0 {
		return errors.New("browser.host_qps must be >= 0")
	}
	if c.Worker.RequestDelay < 0 || c.Worker.SettleDelay < 0 || c.Worker.ScrollPause < 0 {
		return errors.New("worker delays must be >= 0")
	}
	if c.Worker.MaxAttempts <= 0 {
		return errors.New("worker.max_attempts must be > 0")
	}
	if _, err := extract.Locales(c.Extract.Locales); err != nil {
		return fmt.Errorf("extract.locales: %w", err)
	}
	if c.Output.Path == "" {
		return errors.New("output.path must be set")
	}
	if c.DB.DSN != "" && c.DB.Table == "" {
		return errors.New("db.table must be set when db.dsn is set")
	}
	return nil
}
