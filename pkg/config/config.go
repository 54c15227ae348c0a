package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"SearchInsight/pkg/util"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment   string              `yaml:"environment" default:"development"`
	Server        ServerConfig        `yaml:"server"`
	Log           LogConfig           `yaml:"log"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Backend       BackendConfig       `yaml:"backend"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	ClickHouse    ClickHouseConfig    `yaml:"clickhouse"`
	SearchConsole SearchConsoleConfig `yaml:"searchconsole"`
	Cache         CacheConfig         `yaml:"cache"`
	RateLimit     RateLimitConfig     `yaml:"ratelimit"`
	Analysis      AnalysisConfig      `yaml:"analysis"`
	Collector     CollectorConfig     `yaml:"collector"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	DisableCORS     bool          `yaml:"disable_cors"`
	Port            int           `yaml:"port" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"json"`
	Output string `yaml:"output" default:"stdout"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

// BackendConfig selects where collected snapshots go: kafka, clickhouse or none.
type BackendConfig struct {
	Type         string        `yaml:"type" default:"none"`
	BatchSize    int           `yaml:"batch_size" default:"500"`
	BatchTimeout time.Duration `yaml:"batch_timeout" default:"1s"`
}

type KafkaConfig struct {
	Brokers      []string `yaml:"brokers"`
	Topic        string   `yaml:"topic" default:"search.performance.snapshots"`
	ReportTopic  string   `yaml:"report_topic" default:"search.insight.reports"`
	RequiredAcks int      `yaml:"required_acks" default:"-1"`
	Compression  string   `yaml:"compression" default:"snappy"`
	Producer     struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		Linger       time.Duration `yaml:"linger" default:"50ms"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		Async        bool          `yaml:"async"`
	} `yaml:"producer"`
}

type ClickHouseConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"searchinsight"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert" default:"true"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
	WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
}

type SearchConsoleConfig struct {
	BaseURL         string        `yaml:"base_url" default:"https://www.googleapis.com"`
	CredentialsFile string        `yaml:"credentials_file"`
	Sites           []string      `yaml:"sites"`
	Timeout         time.Duration `yaml:"timeout" default:"30s"`
	MaxRetries      int           `yaml:"max_retries" default:"3"`
	RowLimit        int           `yaml:"row_limit" default:"25000"`
	SearchType      string        `yaml:"search_type" default:"web"`
	CacheTTL        time.Duration `yaml:"cache_ttl" default:"1h"`
}

type CacheConfig struct {
	Type          string        `yaml:"type" default:"memory"`
	MemoryMaxSize int           `yaml:"memory_max_size" default:"2000"`
	MemoryTTL     time.Duration `yaml:"memory_ttl" default:"1m"`
	Redis         struct {
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size" default:"10"`
		Prefix   string `yaml:"prefix" default:"searchinsight"`
	} `yaml:"redis"`
}

// RateLimitConfig holds token bucket settings. Upstream throttles calls to
// Search Console; API throttles inbound requests per client address.
type RateLimitConfig struct {
	UpstreamCapacity  float64 `yaml:"upstream_capacity" default:"10"`
	UpstreamPerSecond float64 `yaml:"upstream_per_second" default:"5"`
	APICapacity       float64 `yaml:"api_capacity" default:"30"`
	APIPerSecond      float64 `yaml:"api_per_second" default:"10"`
}

type AnalysisConfig struct {
	LookbackDays int `yaml:"lookback_days" default:"28"`
	LagDays      int `yaml:"lag_days" default:"3"`
	TrendKeys    int `yaml:"trend_keys" default:"10"`
	Workers      int `yaml:"workers" default:"4"`
}

// CollectorConfig controls the periodic snapshot collector. Dispatch
// "direct" collects inline; "queue" enqueues one Redis job per site.
type CollectorConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval" default:"6h"`
	LagDays  int           `yaml:"lag_days" default:"3"`
	Dispatch string        `yaml:"dispatch" default:"direct"`
	Queue    struct {
		Workers    int           `yaml:"workers" default:"2"`
		RetryLimit int           `yaml:"retry_limit" default:"3"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"1m"`
		Prefix     string        `yaml:"prefix" default:"searchinsight:queue"`
	} `yaml:"queue"`
}

// Load reads a YAML configuration file and fills defaults. It does not
// validate; call Validate once overrides are applied.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes and fills defaults.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML, applies an optional .env file and
// environment overrides, then validates.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv(os.LookupEnv)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides fields from environment variables read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	get := func(k string) (string, bool) {
		v, ok := lookup(k)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}

	if v, ok := get("ENVIRONMENT"); ok {
		c.Environment = v
	}
	if v, ok := get("GSC_CREDENTIALS_FILE"); ok {
		c.SearchConsole.CredentialsFile = v
	}
	if v, ok := get("GSC_SITES"); ok {
		c.SearchConsole.Sites = util.SplitCSV(v)
	}
	if v, ok := get("BACKEND"); ok {
		c.Backend.Type = v
	}
	if v, ok := get("KAFKA_BROKERS"); ok {
		c.Kafka.Brokers = util.SplitCSV(v)
	}
	if v, ok := get("KAFKA_TOPIC"); ok {
		c.Kafka.Topic = v
	}
	if v, ok := get("CACHE_TYPE"); ok {
		c.Cache.Type = v
	}
	if v, ok := get("REDIS_ADDR"); ok {
		host, port, found := strings.Cut(v, ":")
		c.Cache.Redis.Host = host
		if found {
			if p, err := strconv.Atoi(port); err == nil {
				c.Cache.Redis.Port = p
			}
		}
	}
	if v, ok := get("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := get("CLICKHOUSE_PASSWORD"); ok {
		c.ClickHouse.Password = v
	}
	if v, ok := get("HTTP_PORT"); ok {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Environment {
	case "development", "staging", "production", "test":
	default:
		return fmt.Errorf("environment must be development, staging, production or test, got '%s'", c.Environment)
	}
	switch c.Backend.Type {
	case "none":
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty when backend.type is kafka")
		}
	case "clickhouse":
		if !c.ClickHouse.Enabled {
			return fmt.Errorf("clickhouse.enabled must be true when backend.type is clickhouse")
		}
	default:
		return fmt.Errorf("backend.type must be 'kafka', 'clickhouse' or 'none', got '%s'", c.Backend.Type)
	}
	switch c.Cache.Type {
	case "memory", "redis", "layered":
	default:
		return fmt.Errorf("cache.type must be 'memory', 'redis' or 'layered', got '%s'", c.Cache.Type)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.RateLimit.UpstreamCapacity < 1 || c.RateLimit.UpstreamPerSecond <= 0 {
		return fmt.Errorf("ratelimit upstream capacity must be >= 1 and rate > 0")
	}
	if c.RateLimit.APICapacity < 1 || c.RateLimit.APIPerSecond <= 0 {
		return fmt.Errorf("ratelimit api capacity must be >= 1 and rate > 0")
	}
	if c.SearchConsole.RowLimit < 1 || c.SearchConsole.RowLimit > 25000 {
		return fmt.Errorf("searchconsole.row_limit must be within 1..25000, got %d", c.SearchConsole.RowLimit)
	}
	if c.Analysis.LookbackDays < 1 {
		return fmt.Errorf("analysis.lookback_days must be positive")
	}
	if c.Collector.Enabled && c.Collector.Interval <= 0 {
		return fmt.Errorf("collector.interval must be positive")
	}
	switch c.Collector.Dispatch {
	case "direct", "queue":
	default:
		return fmt.Errorf("collector.dispatch must be 'direct' or 'queue', got '%s'", c.Collector.Dispatch)
	}
	return nil
}
