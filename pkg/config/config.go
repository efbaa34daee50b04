package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Mode        string `yaml:"mode"` // batch or serve
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Data struct {
		Source    string `yaml:"source"` // csv, clickhouse or stooq
		Symbol    string `yaml:"symbol"`
		VIXSymbol string `yaml:"vix_symbol"`
		From      string `yaml:"from"` // YYYY-MM-DD, empty means full history
		To        string `yaml:"to"`
		CSV       struct {
			EquityPath string `yaml:"equity_path"`
			VIXPath    string `yaml:"vix_path"`
		} `yaml:"csv"`
		Stooq struct {
			BaseURL        string        `yaml:"base_url"`
			Timeout        time.Duration `yaml:"timeout"`
			RequestsPerSec float64       `yaml:"requests_per_sec"`
		} `yaml:"stooq"`
	} `yaml:"data"`
	Artifacts struct {
		Backend   string `yaml:"backend"` // csv, clickhouse or kafka
		OutputDir string `yaml:"output_dir"`
	} `yaml:"artifacts"`
	Regime struct {
		ConfidenceThreshold float64  `yaml:"confidence_threshold"`
		MinRegimeLength     int      `yaml:"min_regime_length"`
		MinComponents       int      `yaml:"min_components"`
		MaxComponents       int      `yaml:"max_components"`
		Families            []string `yaml:"families"`
		Seed                int64    `yaml:"seed"`
		MaxIterations       int      `yaml:"max_iterations"`
		Tolerance           float64  `yaml:"tolerance"`
		Restarts            int      `yaml:"restarts"`
	} `yaml:"regime"`
	Features struct {
		Window int `yaml:"window"`
	} `yaml:"features"`
	Strategy struct {
		Enabled       bool     `yaml:"enabled"`
		TrainFraction float64  `yaml:"train_fraction"`
		LongLabels    []string `yaml:"long_labels"`
	} `yaml:"strategy"`
	Runs struct {
		MinInterval time.Duration `yaml:"min_interval"`
		MaxPending  int           `yaml:"max_pending"`
	} `yaml:"runs"`
	Cache struct {
		ModelTTL time.Duration `yaml:"model_ttl"`
		Redis    struct {
			Enabled  bool   `yaml:"enabled"`
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Queue struct {
		Workers    int           `yaml:"workers"`
		QueueSize  int           `yaml:"queue_size"`
		RetryLimit int           `yaml:"retry_limit"`
		RetryDelay time.Duration `yaml:"retry_delay"`
	} `yaml:"queue"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("SYMBOL"); v != "" {
		c.Data.Symbol = v
	}
	if v := os.Getenv("VIX_SYMBOL"); v != "" {
		c.Data.VIXSymbol = v
	}
	if v := os.Getenv("DATA_SOURCE"); v != "" {
		c.Data.Source = v
	}
	if v := os.Getenv("BACKEND"); v != "" {
		c.Artifacts.Backend = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Mode != "batch" && c.Mode != "serve" {
		return fmt.Errorf("mode must be 'batch' or 'serve', got '%s'", c.Mode)
	}
	if c.Data.Symbol == "" {
		return fmt.Errorf("data.symbol is required")
	}
	switch c.Data.Source {
	case "csv":
		if c.Data.CSV.EquityPath == "" || c.Data.CSV.VIXPath == "" {
			return fmt.Errorf("data.csv.equity_path and data.csv.vix_path are required for the csv source")
		}
	case "clickhouse", "stooq":
	case "":
		return fmt.Errorf("data.source is required")
	default:
		return fmt.Errorf("data.source must be 'csv', 'clickhouse' or 'stooq', got '%s'", c.Data.Source)
	}
	switch c.Artifacts.Backend {
	case "csv":
		if c.Artifacts.OutputDir == "" {
			return fmt.Errorf("artifacts.output_dir is required for the csv backend")
		}
	case "clickhouse":
	case "kafka":
		if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" {
			return fmt.Errorf("kafka.brokers and kafka.topic are required for the kafka backend")
		}
	case "":
		return fmt.Errorf("artifacts.backend is required")
	default:
		return fmt.Errorf("artifacts.backend must be 'csv', 'clickhouse' or 'kafka', got '%s'", c.Artifacts.Backend)
	}
	if f := c.Data.From; f != "" {
		if _, err := time.Parse("2006-01-02", f); err != nil {
			return fmt.Errorf("data.from must be YYYY-MM-DD: %w", err)
		}
	}
	if t := c.Data.To; t != "" {
		if _, err := time.Parse("2006-01-02", t); err != nil {
			return fmt.Errorf("data.to must be YYYY-MM-DD: %w", err)
		}
	}
	if c.Strategy.Enabled {
		if c.Strategy.TrainFraction != 0 && (c.Strategy.TrainFraction <= 0 || c.Strategy.TrainFraction >= 1) {
			return fmt.Errorf("strategy.train_fraction must be in (0, 1), got %g", c.Strategy.TrainFraction)
		}
	}
	return nil
}
