// Package config loads and validates websearch configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/websearch/internal/politeness"
	"github.com/JakeFAU/websearch/internal/schedule"
)

// Storage providers.
const (
	ProviderSQLite   = "sqlite"
	ProviderPostgres = "postgres"
	ProviderMemory   = "memory"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Crawler    CrawlerConfig    `mapstructure:"crawler"`
	Politeness PolitenessConfig `mapstructure:"politeness"`
	Indexer    IndexerConfig    `mapstructure:"indexer"`
	Search     SearchConfig     `mapstructure:"search"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Schedule   ScheduleConfig   `mapstructure:"schedule"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// StorageConfig selects and configures the backend holding the frontier and index.
type StorageConfig struct {
	Provider string         `mapstructure:"provider"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// SQLiteConfig locates the database file.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// PostgresConfig controls the pgx pool.
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// CrawlerConfig governs crawl runs and the HTTP fetcher.
type CrawlerConfig struct {
	UserAgent       string        `mapstructure:"user_agent"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	MaxBodyBytes    int           `mapstructure:"max_body_bytes"`
	MaxPages        int           `mapstructure:"max_pages"`
	MinDelay        time.Duration `mapstructure:"min_delay"`
	MaxDelay        time.Duration `mapstructure:"max_delay"`
	MaxRPSPerDomain float64       `mapstructure:"max_rps_per_domain"`
}

// PolitenessConfig configures robots.txt handling and per-domain delays.
type PolitenessConfig struct {
	RobotsTimeout   time.Duration `mapstructure:"robots_timeout"`
	HonorCrawlDelay bool          `mapstructure:"honor_crawl_delay"`
	// DomainDelays holds "host=min-max" entries such as "slow.example=2s-5s".
	DomainDelays []string `mapstructure:"domain_delays"`
}

// IndexerConfig governs index batches.
type IndexerConfig struct {
	MaxPages      int           `mapstructure:"max_pages"`
	MinDelay      time.Duration `mapstructure:"min_delay"`
	MaxDelay      time.Duration `mapstructure:"max_delay"`
	SnippetLength int           `mapstructure:"snippet_length"`
}

// SearchConfig governs queries.
type SearchConfig struct {
	MaxResults int `mapstructure:"max_results"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// ScheduleConfig holds cron expressions for `websearch serve`; empty disables a job.
type ScheduleConfig struct {
	Crawl string `mapstructure:"crawl"`
	Index string `mapstructure:"index"`
}

// Load builds a Config from defaults, an optional file and the environment.
// A .env file in the working directory is exported first; it never overrides
// variables that are already set.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("WEBSEARCH")
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
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("storage.provider", ProviderSQLite)
	v.SetDefault("storage.sqlite.path", "websearch.db")
	v.SetDefault("storage.postgres.dsn", "")
	v.SetDefault("storage.postgres.max_conns", 4)
	v.SetDefault("storage.postgres.min_conns", 0)
	v.SetDefault("storage.postgres.max_conn_lifetime", "30m")
	v.SetDefault("crawler.user_agent", "WebsearchBot/1.0")
	v.SetDefault("crawler.request_timeout", "15s")
	v.SetDefault("crawler.max_body_bytes", 10*1024*1024)
	v.SetDefault("crawler.max_pages", 10)
	v.SetDefault("crawler.min_delay", "1s")
	v.SetDefault("crawler.max_delay", "3s")
	v.SetDefault("crawler.max_rps_per_domain", 0)
	v.SetDefault("politeness.robots_timeout", "10s")
	v.SetDefault("politeness.honor_crawl_delay", true)
	v.SetDefault("politeness.domain_delays", []string{})
	v.SetDefault("indexer.max_pages", 10)
	v.SetDefault("indexer.min_delay", "1s")
	v.SetDefault("indexer.max_delay", "3s")
	v.SetDefault("indexer.snippet_length", 250)
	v.SetDefault("search.max_results", 10)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("schedule.crawl", "")
	v.SetDefault("schedule.index", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	switch c.Storage.Provider {
	case ProviderSQLite:
		if c.Storage.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path must be set when provider is %q", ProviderSQLite)
		}
	case ProviderPostgres:
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn must be set when provider is %q", ProviderPostgres)
		}
		if c.Storage.Postgres.MaxConns < 0 || c.Storage.Postgres.MinConns < 0 {
			return fmt.Errorf("storage.postgres.max_conns and min_conns must be >= 0")
		}
	case ProviderMemory:
	default:
		return fmt.Errorf("storage.provider must be one of sqlite, postgres, memory; got %q", c.Storage.Provider)
	}
	if c.Crawler.RequestTimeout <= 0 {
		return fmt.Errorf("crawler.request_timeout must be > 0")
	}
	if c.Crawler.MaxPages <= 0 {
		return fmt.Errorf("crawler.max_pages must be > 0")
	}
	if err := validateDelays("crawler", c.Crawler.MinDelay, c.Crawler.MaxDelay); err != nil {
		return err
	}
	if c.Crawler.MaxRPSPerDomain < 0 {
		return fmt.Errorf("crawler.max_rps_per_domain must be >= 0")
	}
	if c.Politeness.RobotsTimeout <= 0 {
		return fmt.Errorf("politeness.robots_timeout must be > 0")
	}
	if _, err := politeness.ParseDomainDelays(c.Politeness.DomainDelays); err != nil {
		return fmt.Errorf("politeness.domain_delays: %w", err)
	}
	if c.Indexer.MaxPages <= 0 {
		return fmt.Errorf("indexer.max_pages must be > 0")
	}
	if err := validateDelays("indexer", c.Indexer.MinDelay, c.Indexer.MaxDelay); err != nil {
		return err
	}
	if c.Indexer.SnippetLength <= 3 {
		return fmt.Errorf("indexer.snippet_length must be > 3")
	}
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("search.max_results must be > 0")
	}
	if c.Schedule.Crawl != "" {
		if err := schedule.Validate(c.Schedule.Crawl); err != nil {
			return fmt.Errorf("schedule.crawl: %w", err)
		}
	}
	if c.Schedule.Index != "" {
		if err := schedule.Validate(c.Schedule.Index); err != nil {
			return fmt.Errorf("schedule.index: %w", err)
		}
	}
	return nil
}

func validateDelays(section string, lo, hi time.Duration) error {
	if lo < 0 {
		return fmt.Errorf("%s.min_delay must be >= 0", section)
	}
	if hi < lo {
		return fmt.Errorf("%s.max_delay must be >= %s.min_delay", section, section)
	}
	return nil
}
