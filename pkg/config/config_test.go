package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `environment: test
mode: serve
server:
  port: 8080
  shutdown_timeout: 5000000000
data:
  source: csv
  symbol: SPY
  vix_symbol: "^VIX"
  from: "2015-01-01"
  csv:
    equity_path: testdata/spy.csv
    vix_path: testdata/vix.csv
artifacts:
  backend: csv
  output_dir: out
regime:
  confidence_threshold: 0.6
  min_regime_length: 10
  min_components: 2
  max_components: 4
  families: [EEE, VEE]
features:
  window: 20
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	c, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Mode != "serve" {
		t.Errorf("Mode = %q, want serve", c.Mode)
	}
	if c.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", c.Server.Port)
	}
	if c.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v, want 5s", c.Server.ShutdownTimeout)
	}
	if c.Data.Symbol != "SPY" || c.Data.VIXSymbol != "^VIX" {
		t.Errorf("symbols = %q, %q", c.Data.Symbol, c.Data.VIXSymbol)
	}
	if c.Data.From != "2015-01-01" {
		t.Errorf("Data.From = %q", c.Data.From)
	}
	if c.Regime.ConfidenceThreshold != 0.6 {
		t.Errorf("ConfidenceThreshold = %g", c.Regime.ConfidenceThreshold)
	}
	if len(c.Regime.Families) != 2 || c.Regime.Families[0] != "EEE" || c.Regime.Families[1] != "VEE" {
		t.Errorf("Families = %v", c.Regime.Families)
	}
	if c.Features.Window != 20 {
		t.Errorf("Features.Window = %d", c.Features.Window)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "read config") {
		t.Errorf("err = %v, want read config error", err)
	}
}

func TestLoadBadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "mode: [unclosed"))
	if err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Errorf("err = %v, want parse config error", err)
	}
}

func validConfig() *Config {
	c := &Config{}
	c.Environment = "test"
	c.Mode = "batch"
	c.Data.Source = "stooq"
	c.Data.Symbol = "SPY"
	c.Artifacts.Backend = "clickhouse"
	return c
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing environment", func(c *Config) { c.Environment = "" }, "environment is required"},
		{"bad mode", func(c *Config) { c.Mode = "daemon" }, "mode must be"},
		{"missing symbol", func(c *Config) { c.Data.Symbol = "" }, "data.symbol is required"},
		{"missing source", func(c *Config) { c.Data.Source = "" }, "data.source is required"},
		{"bad source", func(c *Config) { c.Data.Source = "ftp" }, "data.source must be"},
		{"csv source without paths", func(c *Config) { c.Data.Source = "csv" }, "equity_path"},
		{"missing backend", func(c *Config) { c.Artifacts.Backend = "" }, "artifacts.backend is required"},
		{"bad backend", func(c *Config) { c.Artifacts.Backend = "s3" }, "artifacts.backend must be"},
		{"csv backend without dir", func(c *Config) { c.Artifacts.Backend = "csv" }, "output_dir"},
		{"kafka backend without brokers", func(c *Config) { c.Artifacts.Backend = "kafka" }, "kafka.brokers"},
		{"bad from", func(c *Config) { c.Data.From = "01/01/2015" }, "data.from must be YYYY-MM-DD"},
		{"bad to", func(c *Config) { c.Data.To = "2015-1" }, "data.to must be YYYY-MM-DD"},
		{"bad train fraction", func(c *Config) {
			c.Strategy.Enabled = true
			c.Strategy.TrainFraction = 1.5
		}, "train_fraction must be in (0, 1)"},
	}
	for _, tc := range cases {
		c := validConfig()
		tc.mutate(c)
		err := c.Validate()
		if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
			t.Errorf("%s: err = %v, want %q", tc.name, err, tc.wantErr)
		}
	}
}

func TestValidateAccepts(t *testing.T) {
	c := validConfig()
	c.Artifacts.Backend = "kafka"
	c.Kafka.Brokers = []string{"localhost:9092"}
	c.Kafka.Topic = "regimes"
	if err := c.Validate(); err != nil {
		t.Errorf("kafka backend: %v", err)
	}

	c = validConfig()
	c.Strategy.Enabled = true // unset fraction falls back to the default
	if err := c.Validate(); err != nil {
		t.Errorf("strategy enabled without fraction: %v", err)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, validYAML)
	t.Setenv("SYMBOL", "QQQ")
	t.Setenv("VIX_SYMBOL", "^vixy")
	t.Setenv("DATA_SOURCE", "stooq")
	t.Setenv("BACKEND", "kafka")
	t.Setenv("KAFKA_BROKERS", "b1:9092,b2:9092")
	t.Setenv("KAFKA_TOPIC", "regime-changes")

	c, err := LoadWithEnv(path)
	if err != nil {
		t.Fatalf("LoadWithEnv: %v", err)
	}
	if c.Data.Symbol != "QQQ" {
		t.Errorf("Symbol = %q, want QQQ", c.Data.Symbol)
	}
	if c.Data.VIXSymbol != "^vixy" {
		t.Errorf("VIXSymbol = %q", c.Data.VIXSymbol)
	}
	if c.Data.Source != "stooq" {
		t.Errorf("Source = %q, want stooq", c.Data.Source)
	}
	if c.Artifacts.Backend != "kafka" {
		t.Errorf("Backend = %q, want kafka", c.Artifacts.Backend)
	}
	if len(c.Kafka.Brokers) != 2 || c.Kafka.Brokers[0] != "b1:9092" {
		t.Errorf("Brokers = %v", c.Kafka.Brokers)
	}
	if c.Kafka.Topic != "regime-changes" {
		t.Errorf("Topic = %q", c.Kafka.Topic)
	}
}
