// Package config loads and validates screener configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/JakeFAU/batch-screener/internal/screener"
)

// Checkpoint backends.
const (
	BackendLocal    = "local"
	BackendGCS      = "gcs"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// flagKeys maps CLI flag names to configuration keys.
var flagKeys = map[string]string{
	"universe": "screen.universe_file",
	"resume":   "screen.resume",
	"workers":  "screen.workers",
	"delay":    "screen.per_worker_delay",
}

// Config captures all screener configuration knobs loaded via Viper.
type Config struct {
	Screen     ScreenConfig     `mapstructure:"screen"`
	Fetcher    FetcherConfig    `mapstructure:"fetcher"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	Server     ServerConfig     `mapstructure:"server"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// ScreenConfig governs the batch run.
type ScreenConfig struct {
	Workers           int           `mapstructure:"workers"`
	PerWorkerDelay    time.Duration `mapstructure:"per_worker_delay"`
	GlobalRPS         float64       `mapstructure:"global_rps"`
	GlobalBurst       int           `mapstructure:"global_burst"`
	CheckpointCadence int           `mapstructure:"checkpoint_cadence"`
	Resume            bool          `mapstructure:"resume"`
	BaselineTicker    string        `mapstructure:"baseline_ticker"`
	Range             string        `mapstructure:"range"`
	Interval          string        `mapstructure:"interval"`
	MinPrice          float64       `mapstructure:"min_price"`
	MaxPrice          float64       `mapstructure:"max_price"`
	MinVolume         int64         `mapstructure:"min_volume"`
	ProgressLogEvery  int           `mapstructure:"progress_log_every"`
	UniverseFile      string        `mapstructure:"universe_file"`
	Tickers           []string      `mapstructure:"tickers"`
	EnrichPhases      []int         `mapstructure:"enrich_phases"`
}

// FetcherConfig configures the market data client.
type FetcherConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// CheckpointConfig selects and configures the checkpoint backend.
type CheckpointConfig struct {
	Backend       string `mapstructure:"backend"`
	Name          string `mapstructure:"name"`
	LocalDir      string `mapstructure:"local_dir"`
	GCSBucket     string `mapstructure:"gcs_bucket"`
	GCSPrefix     string `mapstructure:"gcs_prefix"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	PostgresTable string `mapstructure:"postgres_table"`
}

// ServerConfig controls the optional status server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// PubSubConfig holds metadata for run summary notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// TelemetryConfig controls OpenTelemetry tracing of runs.
type TelemetryConfig struct {
	TracingEnabled bool    `mapstructure:"tracing_enabled"`
	ServiceName    string  `mapstructure:"service_name"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}

// Load builds a Config from defaults, an optional file, SCREENER_* env vars
// and any changed flags in flags, in increasing priority.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCREENER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
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
	v.SetDefault("screen.workers", 5)
	v.SetDefault("screen.per_worker_delay", 200*time.Millisecond)
	v.SetDefault("screen.global_rps", 0)
	v.SetDefault("screen.global_burst", 1)
	v.SetDefault("screen.checkpoint_cadence", 100)
	v.SetDefault("screen.resume", true)
	v.SetDefault("screen.baseline_ticker", "SPY")
	v.SetDefault("screen.range", screener.DefaultWindow.Range)
	v.SetDefault("screen.interval", screener.DefaultWindow.Interval)
	v.SetDefault("screen.min_price", 5.0)
	v.SetDefault("screen.max_price", 10000.0)
	v.SetDefault("screen.min_volume", 100000)
	v.SetDefault("screen.progress_log_every", 50)
	v.SetDefault("screen.enrich_phases", []int{1, 2})
	v.SetDefault("fetcher.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("fetcher.user_agent", "Mozilla/5.0 (compatible; batch-screener/1.0)")
	v.SetDefault("fetcher.timeout", 15*time.Second)
	v.SetDefault("checkpoint.backend", BackendLocal)
	v.SetDefault("checkpoint.name", "batch_progress.json")
	v.SetDefault("checkpoint.local_dir", "data/batch_results")
	v.SetDefault("checkpoint.gcs_prefix", "checkpoints")
	v.SetDefault("checkpoint.postgres_table", "screener_checkpoints")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("telemetry.tracing_enabled", false)
	v.SetDefault("telemetry.service_name", "batch-screener")
	v.SetDefault("telemetry.sample_ratio", 1.0)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	s := c.Screen
	switch {
	case s.Workers < 1:
		return errors.New("screen.workers must be >= 1")
	case s.PerWorkerDelay < 0:
		return errors.New("screen.per_worker_delay must be >= 0")
	case s.GlobalRPS < 0:
		return errors.New("screen.global_rps must be >= 0")
	case s.CheckpointCadence < 1:
		return errors.New("screen.checkpoint_cadence must be >= 1")
	case s.MinPrice < 0:
		return errors.New("screen.min_price must be >= 0")
	case s.MaxPrice < s.MinPrice:
		return errors.New("screen.min_price must be <= screen.max_price")
	case s.MinVolume < 0:
		return errors.New("screen.min_volume must be >= 0")
	case strings.TrimSpace(s.BaselineTicker) == "":
		return errors.New("screen.baseline_ticker is required")
	}
	for _, p := range s.EnrichPhases {
		if p < 1 || p > 4 {
			return fmt.Errorf("screen.enrich_phases: phase %d out of range 1-4", p)
		}
	}
	if c.Fetcher.Timeout <= 0 {
		return errors.New("fetcher.timeout must be > 0")
	}
	if err := c.Checkpoint.validate(); err != nil {
		return err
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return errors.New("server.port must be > 0 when the server is enabled")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return errors.New("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	if t := c.Telemetry; t.TracingEnabled && (t.SampleRatio < 0 || t.SampleRatio > 1) {
		return errors.New("telemetry.sample_ratio must be within [0, 1]")
	}
	return nil
}

func (c CheckpointConfig) validate() error {
	if c.Name == "" {
		return errors.New("checkpoint.name is required")
	}
	switch c.Backend {
	case BackendLocal:
		if c.LocalDir == "" {
			return errors.New("checkpoint.local_dir is required for the local backend")
		}
	case BackendGCS:
		if c.GCSBucket == "" {
			return errors.New("checkpoint.gcs_bucket is required for the gcs backend")
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return errors.New("checkpoint.postgres_dsn is required for the postgres backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("checkpoint.backend %q is not supported", c.Backend)
	}
	return nil
}

// Window returns the history window requested per ticker.
func (s ScreenConfig) Window() screener.Window {
	return screener.Window{Range: s.Range, Interval: s.Interval}
}

// Thresholds returns the analyzer filter knobs.
func (s ScreenConfig) Thresholds() screener.Thresholds {
	return screener.Thresholds{MinPrice: s.MinPrice, MaxPrice: s.MaxPrice, MinVolume: s.MinVolume}
}
