package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Screen.Workers != 5 || cfg.Screen.PerWorkerDelay != 200*time.Millisecond {
		t.Fatalf("unexpected pool defaults: %+v", cfg.Screen)
	}
	if cfg.Screen.CheckpointCadence != 100 || !cfg.Screen.Resume {
		t.Fatalf("unexpected checkpoint defaults: %+v", cfg.Screen)
	}
	if cfg.Checkpoint.Backend != BackendLocal || cfg.Checkpoint.Name != "batch_progress.json" {
		t.Fatalf("unexpected checkpoint config: %+v", cfg.Checkpoint)
	}
	if got := cfg.Screen.Window(); got.Range != "2y" || got.Interval != "1d" {
		t.Fatalf("unexpected window: %+v", got)
	}
	if len(cfg.Screen.EnrichPhases) != 2 {
		t.Fatalf("expected default enrich phases, got %v", cfg.Screen.EnrichPhases)
	}
	if cfg.Telemetry.TracingEnabled || cfg.Telemetry.ServiceName != "batch-screener" {
		t.Fatalf("unexpected telemetry defaults: %+v", cfg.Telemetry)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
screen:
  workers: 8
  per_worker_delay: 350ms
  checkpoint_cadence: 25
  resume: false
  min_price: 10
  max_price: 500
  min_volume: 250000
  tickers: ["AAPL", "MSFT"]
  enrich_phases: [2]
fetcher:
  timeout: 30s
checkpoint:
  backend: gcs
  gcs_bucket: screener-state
server:
  enabled: true
  port: 9090
pubsub:
  project_id: proj
  topic_name: runs
logging:
  development: false
  level: debug
`)

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Screen.Workers != 8 || cfg.Screen.PerWorkerDelay != 350*time.Millisecond {
		t.Fatalf("expected pool overrides to apply: %+v", cfg.Screen)
	}
	if cfg.Screen.Resume {
		t.Fatal("expected resume to be disabled")
	}
	th := cfg.Screen.Thresholds()
	if th.MinPrice != 10 || th.MaxPrice != 500 || th.MinVolume != 250000 {
		t.Fatalf("unexpected thresholds: %+v", th)
	}
	if len(cfg.Screen.Tickers) != 2 || cfg.Screen.EnrichPhases[0] != 2 {
		t.Fatalf("expected list overrides: %+v", cfg.Screen)
	}
	if cfg.Checkpoint.Backend != BackendGCS || cfg.Checkpoint.GCSBucket != "screener-state" {
		t.Fatalf("unexpected checkpoint config: %+v", cfg.Checkpoint)
	}
	if cfg.Fetcher.Timeout != 30*time.Second || cfg.Server.Port != 9090 {
		t.Fatalf("unexpected fetcher/server config: %+v %+v", cfg.Fetcher, cfg.Server)
	}
	if cfg.Logging.Development || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestLoadFlagsOverrideFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "screen:\n  workers: 3\n  per_worker_delay: 1s\n")
	flags := pflag.NewFlagSet("screen", pflag.ContinueOnError)
	flags.Int("workers", 5, "")
	flags.Duration("delay", 200*time.Millisecond, "")
	flags.Bool("resume", true, "")
	flags.String("universe", "", "")
	if err := flags.Parse([]string{"--workers=12", "--universe=tickers.txt"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load(path, flags)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Screen.Workers != 12 {
		t.Fatalf("expected flag to win, got %d workers", cfg.Screen.Workers)
	}
	if cfg.Screen.PerWorkerDelay != time.Second {
		t.Fatalf("expected unchanged flag to defer to file, got %v", cfg.Screen.PerWorkerDelay)
	}
	if cfg.Screen.UniverseFile != "tickers.txt" {
		t.Fatalf("expected universe flag, got %q", cfg.Screen.UniverseFile)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"workers", func(c *Config) { c.Screen.Workers = 0 }, "screen.workers"},
		{"delay", func(c *Config) { c.Screen.PerWorkerDelay = -time.Second }, "per_worker_delay"},
		{"cadence", func(c *Config) { c.Screen.CheckpointCadence = 0 }, "checkpoint_cadence"},
		{"price range", func(c *Config) { c.Screen.MaxPrice = 1 }, "max_price"},
		{"volume", func(c *Config) { c.Screen.MinVolume = -1 }, "min_volume"},
		{"global rps", func(c *Config) { c.Screen.GlobalRPS = -1 }, "global_rps"},
		{"enrich phase", func(c *Config) { c.Screen.EnrichPhases = []int{5} }, "enrich_phases"},
		{"backend", func(c *Config) { c.Checkpoint.Backend = "s3" }, "not supported"},
		{"gcs bucket", func(c *Config) { c.Checkpoint.Backend = BackendGCS }, "gcs_bucket"},
		{"postgres dsn", func(c *Config) { c.Checkpoint.Backend = BackendPostgres }, "postgres_dsn"},
		{"server port", func(c *Config) { c.Server = ServerConfig{Enabled: true} }, "server.port"},
		{"pubsub project", func(c *Config) { c.PubSub.TopicName = "runs" }, "pubsub.project_id"},
		{"sample ratio", func(c *Config) { c.Telemetry = TelemetryConfig{TracingEnabled: true, SampleRatio: 2} }, "sample_ratio"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			cfg.Screen.EnrichPhases = append([]int(nil), base.Screen.EnrichPhases...)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.want)
			}
		})
	}

	mem := base
	mem.Checkpoint.Backend = BackendMemory
	if err := mem.Validate(); err != nil {
		t.Fatalf("memory backend should validate: %v", err)
	}
}
