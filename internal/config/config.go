// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/form4-crawler/internal/filing"
	"github.com/JakeFAU/form4-crawler/internal/pipeline"
)

// EnvPrefix prefixes every environment override, e.g. FORM4_DB_DSN.
const EnvPrefix = "FORM4"

// Config captures all knobs loaded via Viper.
type Config struct {
	Crawler    CrawlerConfig    `mapstructure:"crawler"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	DB         DBConfig         `mapstructure:"db"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Server     ServerConfig     `mapstructure:"server"`
	Progress   ProgressConfig   `mapstructure:"progress"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Report     ReportConfig     `mapstructure:"report"`
}

// CrawlerConfig governs the day loop and the fetch pipeline.
type CrawlerConfig struct {
	// StartDate is YYYY-MM-DD; empty starts from yesterday.
	StartDate string `mapstructure:"start_date"`
	// StopDate is YYYY-MM-DD; the crawl ends once it reaches this day. Empty never stops.
	StopDate          string `mapstructure:"stop_date"`
	BatchSize         int    `mapstructure:"batch_size"`
	Unattended        bool   `mapstructure:"unattended"`
	WaitSeconds       int    `mapstructure:"wait_seconds"`
	PauseMs           int    `mapstructure:"pause_ms"`
	Timezone          string `mapstructure:"timezone"`
	FormType          string `mapstructure:"form_type"`
	UserAgent         string `mapstructure:"user_agent"`
	IndexBaseURL      string `mapstructure:"index_base_url"`
	ArchiveBaseURL    string `mapstructure:"archive_base_url"`
	IngestConcurrency int    `mapstructure:"ingest_concurrency"`
}

// HTTPConfig configures the fetcher.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// CheckpointConfig selects where day checkpoints live.
type CheckpointConfig struct {
	// Backend is "local" or "gcs".
	Backend   string `mapstructure:"backend"`
	Dir       string `mapstructure:"dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	GCSPrefix string `mapstructure:"gcs_prefix"`
}

// DBConfig controls access to Postgres. An empty DSN selects the in-memory store.
type DBConfig struct {
	DSN                    string `mapstructure:"dsn"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MinConns               int32  `mapstructure:"min_conns"`
	MaxConnLifetimeSeconds int    `mapstructure:"max_conn_lifetime_seconds"`
}

// PubSubConfig holds the day-completion topic. Empty values disable publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ServerConfig controls the status HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// ProgressConfig tunes the progress hub.
type ProgressConfig struct {
	BufferSize     int `mapstructure:"buffer_size"`
	MaxBatchEvents int `mapstructure:"max_batch_events"`
	MaxBatchWaitMs int `mapstructure:"max_batch_wait_ms"`
}

// LoggingConfig toggles zap development features and the minimum level.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
	// Level is a zap level name; empty keeps the preset's default.
	Level string `mapstructure:"level"`
}

// ReportConfig drives the insider summary report.
type ReportConfig struct {
	LookbackDays int `mapstructure:"lookback_days"`
	// Output is a file path; empty writes to stdout.
	Output string `mapstructure:"output"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
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

// Every key gets a default so AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.start_date", "")
	v.SetDefault("crawler.stop_date", "")
	v.SetDefault("crawler.batch_size", pipeline.MaxBatchSize)
	v.SetDefault("crawler.unattended", false)
	v.SetDefault("crawler.wait_seconds", 60)
	v.SetDefault("crawler.pause_ms", 1000)
	v.SetDefault("crawler.timezone", "America/New_York")
	v.SetDefault("crawler.form_type", "4")
	v.SetDefault("crawler.user_agent", "form4-crawler/0.1 (ops@example.com)")
	v.SetDefault("crawler.index_base_url", "https://www.sec.gov/Archives/")
	v.SetDefault("crawler.archive_base_url", "https://www.sec.gov/Archives/")
	v.SetDefault("crawler.ingest_concurrency", 10)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("checkpoint.backend", "local")
	v.SetDefault("checkpoint.dir", "filings")
	v.SetDefault("checkpoint.gcs_bucket", "")
	v.SetDefault("checkpoint.gcs_prefix", "filings")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime_seconds", 1800)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.max_batch_events", 256)
	v.SetDefault("progress.max_batch_wait_ms", 500)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("report.lookback_days", 14)
	v.SetDefault("report.output", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if err := pipeline.ValidateBatchSize(c.Crawler.BatchSize); err != nil {
		return fmt.Errorf("crawler.batch_size: %w", err)
	}
	if _, err := c.StartDate(); err != nil {
		return err
	}
	if _, err := c.StopDate(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Crawler.UserAgent) == "" {
		return fmt.Errorf("crawler.user_agent is required")
	}
	if c.Crawler.WaitSeconds <= 0 {
		return fmt.Errorf("crawler.wait_seconds must be > 0")
	}
	if c.Crawler.PauseMs <= 0 {
		return fmt.Errorf("crawler.pause_ms must be > 0")
	}
	if c.Crawler.IngestConcurrency <= 0 {
		return fmt.Errorf("crawler.ingest_concurrency must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	switch c.Checkpoint.Backend {
	case "local":
		if strings.TrimSpace(c.Checkpoint.Dir) == "" {
			return fmt.Errorf("checkpoint.dir is required")
		}
	case "gcs":
		if strings.TrimSpace(c.Checkpoint.GCSBucket) == "" {
			return fmt.Errorf("checkpoint.gcs_bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("checkpoint.backend must be local or gcs, got %q", c.Checkpoint.Backend)
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Report.LookbackDays <= 0 {
		return fmt.Errorf("report.lookback_days must be > 0")
	}
	return nil
}

// StartDate parses crawler.start_date; the zero Date means "not set".
func (c Config) StartDate() (filing.Date, error) {
	return parseOptionalDate("crawler.start_date", c.Crawler.StartDate)
}

// StopDate parses crawler.stop_date; the zero Date means "never stop".
func (c Config) StopDate() (filing.Date, error) {
	return parseOptionalDate("crawler.stop_date", c.Crawler.StopDate)
}

// Location loads crawler.timezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Crawler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("crawler.timezone: %w", err)
	}
	return loc, nil
}

// WaitInterval is the deferral wait for a day that is not yet eligible.
func (c Config) WaitInterval() time.Duration {
	return time.Duration(c.Crawler.WaitSeconds) * time.Second
}

// Pause is the fixed wait after every fetch batch.
func (c Config) Pause() time.Duration {
	return time.Duration(c.Crawler.PauseMs) * time.Millisecond
}

// HTTPTimeout is the per-request fetch timeout.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// MaxBatchWait is the progress hub flush interval.
func (c Config) MaxBatchWait() time.Duration {
	return time.Duration(c.Progress.MaxBatchWaitMs) * time.Millisecond
}

// MaxConnLifetime is the pool connection lifetime.
func (c Config) MaxConnLifetime() time.Duration {
	return time.Duration(c.DB.MaxConnLifetimeSeconds) * time.Second
}

func parseOptionalDate(key, raw string) (filing.Date, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return filing.Date{}, nil
	}
	d, err := filing.ParseDate(raw)
	if err != nil {
		return filing.Date{}, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
