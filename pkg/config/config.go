// Package config loads and validates pipeline configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Store, Codec, Pipeline, Kafka, Redis, Postgres, etc.).
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Codec    CodecConfig    `yaml:"codec"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// StoreConfig selects and configures the record store backend. Credentials
// are passed explicitly to the backend at construction time.
type StoreConfig struct {
	Driver            string  `yaml:"driver"`
	Endpoint          string  `yaml:"endpoint"`
	Region            string  `yaml:"region"`
	Bucket            string  `yaml:"bucket"`
	AccessKey         string  `yaml:"accessKey"`
	SecretKey         string  `yaml:"secretKey"`
	UseSSL            bool    `yaml:"useSSL"`
	Root              string  `yaml:"root"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
}

// CodecConfig controls how record batches are compressed on write. Readers
// detect the compression from the batch header.
type CodecConfig struct {
	Compression string `yaml:"compression"`
}

// PipelineConfig controls parallelism, partitioning and batch-id issuance.
type PipelineConfig struct {
	Workers      int            `yaml:"workers"`
	Partitions   int            `yaml:"partitions"`
	StoreTimeout time.Duration  `yaml:"storeTimeout"`
	Retry        RetryConfig    `yaml:"retry"`
	BatchIDs     BatchIDsConfig `yaml:"batchIds"`
	ReportDir    string         `yaml:"reportDir"`
}

// RetryConfig controls the backoff applied to transient store failures.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"maxAttempts"`
	InitialDelay time.Duration `yaml:"initialDelay"`
	MaxDelay     time.Duration `yaml:"maxDelay"`
}

// BatchIDsConfig selects the shard batch-id issuer: "sequence", "redis" or
// "random". RandomMax bounds the legacy random draw.
type BatchIDsConfig struct {
	Mode      string `yaml:"mode"`
	RandomMax int64  `yaml:"randomMax"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	HaulJoin      string `yaml:"haulJoin"`
	IndexComplete string `yaml:"indexComplete"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	PoolSize  int    `yaml:"poolSize"`
	KeyPrefix string `yaml:"keyPrefix"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "local", "s3", "minio":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.Codec.Compression {
	case "none", "zstd", "lz4":
	default:
		return fmt.Errorf("unknown codec compression %q", c.Codec.Compression)
	}
	switch c.Pipeline.BatchIDs.Mode {
	case "sequence", "redis", "random":
	default:
		return fmt.Errorf("unknown batch id mode %q", c.Pipeline.BatchIDs.Mode)
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be positive, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.Partitions <= 0 {
		return fmt.Errorf("pipeline.partitions must be positive, got %d", c.Pipeline.Partitions)
	}
	if c.Pipeline.BatchIDs.Mode == "random" && c.Pipeline.BatchIDs.RandomMax < int64(c.Pipeline.Partitions) {
		return fmt.Errorf("pipeline.batchIds.randomMax %d is smaller than partition count %d",
			c.Pipeline.BatchIDs.RandomMax, c.Pipeline.Partitions)
	}
	return nil
}

// defaultConfig returns a Config with defaults for local development.
func defaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Driver: "local",
			Root:   "data",
			Region: "us-west-2",
			UseSSL: true,
		},
		Codec: CodecConfig{
			Compression: "zstd",
		},
		Pipeline: PipelineConfig{
			Workers:      runtime.NumCPU(),
			Partitions:   20,
			StoreTimeout: 60 * time.Second,
			Retry: RetryConfig{
				MaxAttempts:  3,
				InitialDelay: 200 * time.Millisecond,
				MaxDelay:     5 * time.Second,
			},
			BatchIDs: BatchIDsConfig{
				Mode:      "sequence",
				RandomMax: 1000000,
			},
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "flatindex-join",
			Topics: KafkaTopics{
				HaulJoin:      "haul-join",
				IndexComplete: "index.complete",
			},
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			PoolSize:  10,
			KeyPrefix: "flatindex",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "flatindex",
			User:            "flatindex",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads FI_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FI_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("FI_STORE_ENDPOINT"); v != "" {
		cfg.Store.Endpoint = v
	}
	if v := os.Getenv("FI_STORE_REGION"); v != "" {
		cfg.Store.Region = v
	}
	if v := os.Getenv("FI_STORE_BUCKET"); v != "" {
		cfg.Store.Bucket = v
	}
	if v := os.Getenv("FI_STORE_ACCESS_KEY"); v != "" {
		cfg.Store.AccessKey = v
	}
	if v := os.Getenv("FI_STORE_SECRET_KEY"); v != "" {
		cfg.Store.SecretKey = v
	}
	if v := os.Getenv("FI_STORE_ROOT"); v != "" {
		cfg.Store.Root = v
	}
	if v := os.Getenv("FI_CODEC_COMPRESSION"); v != "" {
		cfg.Codec.Compression = v
	}
	if v := os.Getenv("FI_PIPELINE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.Workers = n
		}
	}
	if v := os.Getenv("FI_PIPELINE_PARTITIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.Partitions = n
		}
	}
	if v := os.Getenv("FI_BATCH_ID_MODE"); v != "" {
		cfg.Pipeline.BatchIDs.Mode = v
	}
	if v := os.Getenv("FI_KAFKA_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Kafka.Enabled = b
		}
	}
	if v := os.Getenv("FI_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("FI_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("FI_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("FI_POSTGRES_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Postgres.Enabled = b
		}
	}
	if v := os.Getenv("FI_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("FI_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("FI_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FI_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("FI_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
			cfg.Metrics.Enabled = true
		}
	}
}
