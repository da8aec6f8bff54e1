package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	pstrings "panval/pkg/platform/strings"
)

// Source kinds.
const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
	SourceSQLite   = "sqlite"
)

// Sink names.
const (
	SinkReport   = "report"
	SinkPostgres = "postgres"
	SinkSQLite   = "sqlite"
	SinkKafka    = "kafka"
)

// Config is the full runtime configuration of the pipeline.
type Config struct {
	LogLevel  string         `yaml:"log_level"`
	LogFormat string         `yaml:"log_format"`
	Workers   int            `yaml:"workers"`
	Source    SourceConfig   `yaml:"source"`
	Sinks     []string       `yaml:"sinks"`
	Postgres  PostgresConfig `yaml:"postgres"`
	SQLite    SQLiteConfig   `yaml:"sqlite"`
	Redis     RedisConfig    `yaml:"redis"`
	Kafka     KafkaConfig    `yaml:"kafka"`
	Metrics   MetricsConfig  `yaml:"metrics"`
	Report    ReportConfig   `yaml:"report"`
}

// SourceConfig selects where raw records come from.
type SourceConfig struct {
	Kind   string `yaml:"kind"`
	Path   string `yaml:"path"`
	Format string `yaml:"format"`
	Column string `yaml:"column"`
}

type PostgresConfig struct {
	DSN          string `yaml:"dsn"`
	InputTable   string `yaml:"input_table"`
	InputColumn  string `yaml:"input_column"`
	BatchSize    int    `yaml:"batch_size"`
	EnsureSchema bool   `yaml:"ensure_schema"`
}

type SQLiteConfig struct {
	Path        string `yaml:"path"`
	InputTable  string `yaml:"input_table"`
	InputColumn string `yaml:"input_column"`
}

// RedisConfig configures the optional classification cache. An empty URL
// disables it.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
	KeyPrefix    string        `yaml:"key_prefix"`
}

type KafkaConfig struct {
	Brokers           []string `yaml:"brokers"`
	Topic             string   `yaml:"topic"`
	Partitions        int32    `yaml:"partitions"`
	ReplicationFactor int16    `yaml:"replication_factor"`
}

// MetricsConfig controls how metrics leave the process. Addr serves
// /metrics while the job runs; TextfilePath writes a node-exporter textfile
// when it finishes. Both may be empty.
type MetricsConfig struct {
	Addr         string `yaml:"addr"`
	TextfilePath string `yaml:"textfile_path"`
}

type ReportConfig struct {
	Details bool `yaml:"details"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		Source: SourceConfig{
			Kind:   SourceFile,
			Format: "lines",
		},
		Sinks: []string{SinkReport},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 1,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			CacheTTL:     24 * time.Hour,
		},
		Kafka: KafkaConfig{
			Topic:             "pan-classifications",
			Partitions:        1,
			ReplicationFactor: 1,
		},
		Postgres: PostgresConfig{
			EnsureSchema: true,
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty), then environment variables. It does not
// validate: callers apply their own overrides first and then call Validate.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	cfg.Sinks = pstrings.DedupeAndTrimLower(cfg.Sinks)
	cfg.Kafka.Brokers, _ = pstrings.DedupeAndTrimFunc(cfg.Kafka.Brokers, nil)
	return cfg, nil
}

// FromEnv builds a Config from defaults and environment variables only.
func FromEnv() (Config, error) {
	return Load("")
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = strings.Split(v, ",")
		}
	}
	var errs []error
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("PANVAL_LOG_LEVEL", &cfg.LogLevel)
	str("PANVAL_LOG_FORMAT", &cfg.LogFormat)
	integer("PANVAL_WORKERS", &cfg.Workers)
	str("PANVAL_SOURCE", &cfg.Source.Kind)
	str("PANVAL_INPUT_PATH", &cfg.Source.Path)
	str("PANVAL_INPUT_FORMAT", &cfg.Source.Format)
	str("PANVAL_INPUT_COLUMN", &cfg.Source.Column)
	list("PANVAL_SINKS", &cfg.Sinks)
	str("DATABASE_URL", &cfg.Postgres.DSN)
	str("PANVAL_INPUT_TABLE", &cfg.Postgres.InputTable)
	integer("PANVAL_PG_BATCH_SIZE", &cfg.Postgres.BatchSize)
	boolean("PANVAL_ENSURE_SCHEMA", &cfg.Postgres.EnsureSchema)
	str("PANVAL_SQLITE_PATH", &cfg.SQLite.Path)
	str("REDIS_URL", &cfg.Redis.URL)
	duration("PANVAL_CACHE_TTL", &cfg.Redis.CacheTTL)
	list("KAFKA_BROKERS", &cfg.Kafka.Brokers)
	str("PANVAL_KAFKA_TOPIC", &cfg.Kafka.Topic)
	str("PANVAL_METRICS_ADDR", &cfg.Metrics.Addr)
	str("PANVAL_METRICS_TEXTFILE", &cfg.Metrics.TextfilePath)
	boolean("PANVAL_REPORT_DETAILS", &cfg.Report.Details)

	return errors.Join(errs...)
}

// Validate checks that every selected source and sink has what it needs.
func (c Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.LogLevel))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative"))
	}

	switch c.Source.Kind {
	case SourceFile:
		if c.Source.Path == "" {
			errs = append(errs, fmt.Errorf("file source requires an input path"))
		}
	case SourcePostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, fmt.Errorf("postgres source requires DATABASE_URL"))
		}
	case SourceSQLite:
		if c.SQLite.Path == "" {
			errs = append(errs, fmt.Errorf("sqlite source requires a database path"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source %q", c.Source.Kind))
	}

	if len(c.Sinks) == 0 {
		errs = append(errs, fmt.Errorf("at least one sink is required"))
	}
	for _, sink := range c.Sinks {
		switch sink {
		case SinkReport:
		case SinkPostgres:
			if c.Postgres.DSN == "" {
				errs = append(errs, fmt.Errorf("postgres sink requires DATABASE_URL"))
			}
		case SinkSQLite:
			if c.SQLite.Path == "" {
				errs = append(errs, fmt.Errorf("sqlite sink requires a database path"))
			}
		case SinkKafka:
			if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" {
				errs = append(errs, fmt.Errorf("kafka sink requires brokers and a topic"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown sink %q", sink))
		}
	}

	return errors.Join(errs...)
}

// HasSink reports whether name is among the configured sinks.
func (c Config) HasSink(name string) bool {
	return slices.Contains(c.Sinks, name)
}
