package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		CORS            bool          `yaml:"cors" default:"true"`
		AllowOrigins    []string      `yaml:"allow_origins"`
		BodyLimit       string        `yaml:"body_limit" default:"1M"`
		// RunRateLimit is the sustained synchronous runs per second per client.
		RunRateLimit float64 `yaml:"run_rate_limit" default:"1"`
		RunBurst     int     `yaml:"run_burst" default:"5"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Storage struct {
		Driver   string `yaml:"driver" default:"postgres"`
		Postgres struct {
			URL             string        `yaml:"url"`
			MaxConns        int32         `yaml:"max_conns" default:"10"`
			MinConns        int32         `yaml:"min_conns" default:"1"`
			ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" default:"30m"`
			Migrate         bool          `yaml:"migrate" default:"true"`
		} `yaml:"postgres"`
		ClickHouse struct {
			Host             string        `yaml:"host" default:"localhost"`
			Port             int           `yaml:"port" default:"9000"`
			Database         string        `yaml:"database" default:"demandcast"`
			User             string        `yaml:"user" default:"default"`
			Password         string        `yaml:"password"`
			UseHTTP          bool          `yaml:"use_http"`
			AsyncInsert      bool          `yaml:"async_insert"`
			WaitForAsync     bool          `yaml:"wait_for_async_insert"`
			Compress         bool          `yaml:"compress" default:"true"`
			MaxOpenConns     int           `yaml:"max_open_conns" default:"10"`
			DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
			ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
			MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
		} `yaml:"clickhouse"`
	} `yaml:"storage"`
	Redis struct {
		Enabled  bool          `yaml:"enabled" default:"true"`
		Host     string        `yaml:"host" default:"localhost"`
		Port     int           `yaml:"port" default:"6379"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		Prefix   string        `yaml:"prefix" default:"demandcast"`
		CacheTTL time.Duration `yaml:"cache_ttl" default:"10m"`
		L1Size   int           `yaml:"l1_size" default:"512"`
		// Pool is shared by the cache, the run locks and the job queue.
		PoolSize     int `yaml:"pool_size" default:"10"`
		MinIdleConns int `yaml:"min_idle_conns" default:"2"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		RunsTopic    string   `yaml:"runs_topic" default:"demandcast.forecast-runs"`
		AlertsTopic  string   `yaml:"alerts_topic" default:"demandcast.risk-alerts"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	Alerts struct {
		WebhookURL string `yaml:"webhook_url"`
		// WebhookToken is sent as X-Webhook-Token when set.
		WebhookToken string        `yaml:"webhook_token"`
		Timeout      time.Duration `yaml:"timeout" default:"10s"`
		Breaker      struct {
			MaxRequests      uint32        `yaml:"max_requests" default:"1"`
			Interval         time.Duration `yaml:"interval" default:"1m"`
			Timeout          time.Duration `yaml:"timeout" default:"30s"`
			FailureThreshold uint32        `yaml:"failure_threshold" default:"5"`
		} `yaml:"breaker"`
	} `yaml:"alerts"`
	Queue struct {
		Enabled    bool          `yaml:"enabled" default:"true"`
		Workers    int           `yaml:"workers" default:"2"`
		RetryLimit int           `yaml:"retry_limit" default:"3"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"30s"`
		LockTTL    time.Duration `yaml:"lock_ttl" default:"5m"`
	} `yaml:"queue"`
	Scheduler struct {
		Enabled  bool          `yaml:"enabled" default:"true"`
		Interval time.Duration `yaml:"interval" default:"6h"`
		Horizon  int           `yaml:"horizon" default:"14"`
	} `yaml:"scheduler"`
	Forecast struct {
		MinDays         int      `yaml:"min_days" default:"14"`
		FallbackMinDays int      `yaml:"fallback_min_days" default:"7"`
		EnsembleEnabled bool     `yaml:"ensemble_enabled" default:"true"`
		BandPolicy      string   `yaml:"band_policy" default:"fixed"`
		DefaultHorizon  int      `yaml:"default_horizon" default:"14"`
		MaxHorizon      int      `yaml:"max_horizon" default:"90"`
		TopFeatures     int      `yaml:"top_features" default:"10"`
		TrainFraction   float64  `yaml:"train_fraction" default:"0.7"`
		Locale          string   `yaml:"locale" default:"kenya"`
		ExtraHolidays   []string `yaml:"extra_holidays"`
		Boosting        struct {
			Rounds         int     `yaml:"rounds" default:"100"`
			LearningRate   float64 `yaml:"learning_rate" default:"0.1"`
			MaxDepth       int     `yaml:"max_depth" default:"4"`
			MinSamplesLeaf int     `yaml:"min_samples_leaf" default:"1"`
		} `yaml:"boosting"`
		Forest struct {
			Trees          int   `yaml:"trees" default:"100"`
			MaxDepth       int   `yaml:"max_depth" default:"10"`
			MinSamplesLeaf int   `yaml:"min_samples_leaf" default:"1"`
			Seed           int64 `yaml:"seed" default:"42"`
		} `yaml:"forest"`
		ValidationFraction float64 `yaml:"validation_fraction" default:"0.3"`
	} `yaml:"forecast"`
	Tracing struct {
		Enabled      bool    `yaml:"enabled"`
		Endpoint     string  `yaml:"endpoint" default:"localhost:4317"`
		ServiceName  string  `yaml:"service_name" default:"demandcast"`
		SamplingRate float64 `yaml:"sampling_rate" default:"1"`
	} `yaml:"tracing"`
}

// Load reads and parses a YAML configuration file. Unset fields take their
// struct-tag defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, applies defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
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
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("ENVIRONMENT"); v != "" {
		c.Environment = v
	}
	if v := getenv("STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := getenv("DATABASE_URL"); v != "" {
		c.Storage.Postgres.URL = v
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.Storage.ClickHouse.Host = v
	}
	if v := getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := getenv("REDIS_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Redis.Port = p
		}
	}
	if v := getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := getenv("ALERT_WEBHOOK_URL"); v != "" {
		c.Alerts.WebhookURL = v
	}
	if v := getenv("ALERT_WEBHOOK_TOKEN"); v != "" {
		c.Alerts.WebhookToken = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("OTEL_ENDPOINT"); v != "" {
		c.Tracing.Endpoint = v
		c.Tracing.Enabled = true
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.Storage.Driver {
	case "postgres":
		if c.Storage.Postgres.URL == "" {
			return fmt.Errorf("storage.postgres.url is required for the postgres driver")
		}
	case "clickhouse":
		if c.Storage.ClickHouse.Host == "" {
			return fmt.Errorf("storage.clickhouse.host is required for the clickhouse driver")
		}
	default:
		return fmt.Errorf("storage.driver must be 'postgres' or 'clickhouse', got '%s'", c.Storage.Driver)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}

	f := c.Forecast
	if f.MinDays < 2 || f.FallbackMinDays < 1 {
		return fmt.Errorf("forecast.min_days must be >= 2 and fallback_min_days >= 1")
	}
	if f.MaxHorizon < 1 || f.DefaultHorizon < 1 || f.DefaultHorizon > f.MaxHorizon {
		return fmt.Errorf("forecast.default_horizon must be between 1 and max_horizon (%d)", f.MaxHorizon)
	}
	if f.BandPolicy != "fixed" && f.BandPolicy != "residual" {
		return fmt.Errorf("forecast.band_policy must be 'fixed' or 'residual', got '%s'", f.BandPolicy)
	}
	if f.TrainFraction <= 0 || f.TrainFraction >= 1 {
		return fmt.Errorf("forecast.train_fraction must be in (0, 1)")
	}
	if f.ValidationFraction <= 0 || f.ValidationFraction >= 1 {
		return fmt.Errorf("forecast.validation_fraction must be in (0, 1)")
	}
	if f.Boosting.Rounds < 1 || f.Boosting.LearningRate <= 0 || f.Forest.Trees < 1 {
		return fmt.Errorf("forecast.boosting and forecast.forest need positive sizes")
	}
	if c.Scheduler.Enabled && (c.Scheduler.Interval <= 0 || c.Scheduler.Horizon < 1 || c.Scheduler.Horizon > f.MaxHorizon) {
		return fmt.Errorf("scheduler.interval must be positive and horizon within 1..%d", f.MaxHorizon)
	}
	if c.Scheduler.Enabled && !c.Queue.Enabled {
		return fmt.Errorf("scheduler requires queue.enabled")
	}
	return nil
}
