package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"120s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Logger struct {
		Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn error fatal panic"`
		Format     string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output     string `yaml:"output" default:"stdout"`
		TimeFormat string `yaml:"time_format"`
		Collector  struct {
			Enabled        bool          `yaml:"enabled"`
			Interval       time.Duration `yaml:"interval" default:"30s"`
			CountThreshold int           `yaml:"count_threshold" default:"100"`
			Topic          string        `yaml:"topic" default:"wattwise.logs"`
		} `yaml:"collector"`
	} `yaml:"logger"`
	Tracing struct {
		Enabled      bool    `yaml:"enabled"`
		ServiceName  string  `yaml:"service_name" default:"wattwise"`
		Endpoint     string  `yaml:"endpoint" default:"localhost:4317"`
		SamplingRate float64 `yaml:"sampling_rate" default:"1" validate:"gte=0,lte=1"`
	} `yaml:"tracing"`
	// Output lists where completed forecast runs are delivered.
	Output struct {
		Backends []string `yaml:"backends" default:"[\"clickhouse\",\"cache\"]" validate:"dive,oneof=clickhouse kafka cache"`
	} `yaml:"output"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Topics       struct {
			Requests  string `yaml:"requests" default:"wattwise.forecast.requests"`
			Completed string `yaml:"completed" default:"wattwise.forecast.completed"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"wattwise-forecaster"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"16"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"wattwise.forecast.requests.dlq"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"wattwise"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Addr     string        `yaml:"addr" default:"localhost:6379"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		TTL      time.Duration `yaml:"ttl" default:"30m"`
		Memory   struct {
			Size int           `yaml:"size" default:"512"`
			TTL  time.Duration `yaml:"ttl" default:"5m"`
		} `yaml:"memory"`
	} `yaml:"redis"`
	Queue struct {
		Enabled    bool          `yaml:"enabled"`
		Workers    int           `yaml:"workers" default:"2" validate:"gte=1"`
		RetryLimit int           `yaml:"retry_limit" default:"3" validate:"gte=0"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"10s"`
		Prefix     string        `yaml:"prefix" default:"wattwise:queue"`
	} `yaml:"queue"`
	Models struct {
		BaseURL    string        `yaml:"base_url" default:"http://localhost:8000" validate:"required,url"`
		Timeout    time.Duration `yaml:"timeout" default:"5s"`
		MaxRetries int           `yaml:"max_retries" default:"2"`
		// Static lists the exogenous feature names in the order the models were trained on.
		Static []string `yaml:"static_features" default:"[\"season\",\"temperature\",\"humidity\",\"hour\",\"weekday\",\"month\",\"public_holiday\",\"wind_speed\",\"precipitation\"]" validate:"min=1,dive,required"`
		ANN    struct {
			Path   string `yaml:"path" default:"/ann/predict"`
			Scaler struct {
				Min []float64 `yaml:"min"`
				Max []float64 `yaml:"max"`
			} `yaml:"scaler"`
		} `yaml:"ann"`
		LightGBM struct {
			Path string `yaml:"path" default:"/lgb/predict"`
		} `yaml:"lightgbm"`
	} `yaml:"models"`
	Forecast struct {
		LagHours     int     `yaml:"lag_hours" default:"24" validate:"gte=1"`
		HistoryHours int     `yaml:"history_hours" default:"24" validate:"gte=1"`
		Alpha        float64 `yaml:"alpha" default:"0.6" validate:"gte=0,lte=1"`
		// PlausibleMax flags estimates above it as range anomalies; 0 disables the upper bound.
		PlausibleMax float64 `yaml:"plausible_max" validate:"gte=0"`
		DefaultModel string  `yaml:"default_model" default:"hybrid" validate:"oneof=fast hybrid"`
		BatchWorkers int     `yaml:"batch_workers" default:"4" validate:"gte=1"`
	} `yaml:"forecast"`
	Summary struct {
		FastConfidence   float64 `yaml:"fast_confidence" default:"93"`
		HybridConfidence float64 `yaml:"hybrid_confidence" default:"91"`
		CostPerUnit      float64 `yaml:"cost_per_unit" default:"0.16"`
		ToleranceMax     int     `yaml:"tolerance_max" default:"20" validate:"gte=0,lte=100"`
	} `yaml:"summary"`
	RateLimit struct {
		Enabled bool    `yaml:"enabled" default:"true"`
		RPS     float64 `yaml:"rps" default:"2"`
		Burst   int     `yaml:"burst" default:"5"`
	} `yaml:"ratelimit"`
}

var validate = validator.New()

// Default returns a configuration with every default applied.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes on top of the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("WATTWISE_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("WATTWISE_MODELS_URL"); v != "" {
		c.Models.BaseURL = v
	}
	if v := getenv("WATTWISE_OUTPUT_BACKENDS"); v != "" {
		c.Output.Backends = strings.Split(v, ",")
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("WATTWISE_ALPHA"); v != "" {
		if a, err := strconv.ParseFloat(v, 64); err == nil {
			c.Forecast.Alpha = a
		}
	}
}

// HasBackend reports whether completed runs are delivered to the named backend.
func (c *Config) HasBackend(name string) bool {
	for _, b := range c.Output.Backends {
		if b == name {
			return true
		}
	}
	return false
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.HasBackend("kafka") && !c.Kafka.Enabled {
		return fmt.Errorf("output.backends includes 'kafka' but kafka.enabled is false")
	}
	if c.Queue.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("queue.enabled requires redis.enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Forecast.HistoryHours < c.Forecast.LagHours {
		return fmt.Errorf("forecast.history_hours (%d) must be >= forecast.lag_hours (%d)", c.Forecast.HistoryHours, c.Forecast.LagHours)
	}
	s := c.Models.ANN.Scaler
	if len(s.Min) != len(s.Max) {
		return fmt.Errorf("models.ann.scaler: min and max must have the same length")
	}
	if n := len(s.Min); n != 0 && n != len(c.Models.Static)+2 {
		return fmt.Errorf("models.ann.scaler: expected %d columns, got %d", len(c.Models.Static)+2, n)
	}
	return nil
}
