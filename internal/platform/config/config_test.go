package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "panval.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
workers: 8
source:
  kind: sqlite
sinks: [" Report", "sqlite", "report"]
sqlite:
  path: /var/lib/panval.db
redis:
  cache_ttl: 1h
kafka:
  brokers: ["localhost:9092", " localhost:9092 "]
`), 0o600))

	for _, key := range []string{"PANVAL_LOG_LEVEL", "PANVAL_WORKERS", "PANVAL_SOURCE", "PANVAL_SINKS", "PANVAL_SQLITE_PATH", "PANVAL_CACHE_TTL", "KAFKA_BROKERS"} {
		t.Setenv(key, "")
	}

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, SourceSQLite, cfg.Source.Kind)
	assert.Equal(t, []string{"report", "sqlite"}, cfg.Sinks)
	assert.Equal(t, "/var/lib/panval.db", cfg.SQLite.Path)
	assert.Equal(t, time.Hour, cfg.Redis.CacheTTL)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.HasSink(SinkSQLite))
	assert.False(t, cfg.HasSink(SinkKafka))
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "panval.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\nsource:\n  path: from-file.txt\n"), 0o600))

	t.Setenv("PANVAL_LOG_LEVEL", "warn")
	t.Setenv("PANVAL_INPUT_PATH", "from-env.txt")
	t.Setenv("PANVAL_SINKS", "report,KAFKA")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "from-env.txt", cfg.Source.Path)
	assert.Equal(t, []string{"report", "kafka"}, cfg.Sinks)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorContains(t, err, "read config file")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("workers: ["), 0o600))
		_, err := Load(path)
		assert.ErrorContains(t, err, "parse config file")
	})
}

func TestApplyEnv(t *testing.T) {
	t.Run("parses typed values", func(t *testing.T) {
		cfg := Defaults()
		err := applyEnv(&cfg, mapLookup(map[string]string{
			"PANVAL_WORKERS":        "4",
			"PANVAL_ENSURE_SCHEMA":  "false",
			"PANVAL_CACHE_TTL":      "90m",
			"PANVAL_REPORT_DETAILS": "true",
			"DATABASE_URL":          "postgres://localhost/panval",
			"PANVAL_SOURCE":         "",
		}))
		require.NoError(t, err)
		assert.Equal(t, 4, cfg.Workers)
		assert.False(t, cfg.Postgres.EnsureSchema)
		assert.Equal(t, 90*time.Minute, cfg.Redis.CacheTTL)
		assert.True(t, cfg.Report.Details)
		assert.Equal(t, "postgres://localhost/panval", cfg.Postgres.DSN)
		assert.Equal(t, SourceFile, cfg.Source.Kind, "empty values are ignored")
	})

	t.Run("reports every malformed value", func(t *testing.T) {
		cfg := Defaults()
		err := applyEnv(&cfg, mapLookup(map[string]string{
			"PANVAL_WORKERS":   "many",
			"PANVAL_CACHE_TTL": "forever",
		}))
		require.Error(t, err)
		assert.ErrorContains(t, err, "PANVAL_WORKERS")
		assert.ErrorContains(t, err, "PANVAL_CACHE_TTL")
	})
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Defaults()
		cfg.Source.Path = "pans.txt"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults with a path", mutate: func(*Config) {}},
		{name: "unknown log level", mutate: func(c *Config) { c.LogLevel = "trace" }, wantErr: `unknown log level "trace"`},
		{name: "unknown log format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantErr: `unknown log format "xml"`},
		{name: "negative workers", mutate: func(c *Config) { c.Workers = -1 }, wantErr: "workers must not be negative"},
		{name: "file source without path", mutate: func(c *Config) { c.Source.Path = "" }, wantErr: "file source requires an input path"},
		{name: "postgres source without dsn", mutate: func(c *Config) { c.Source.Kind = SourcePostgres }, wantErr: "postgres source requires DATABASE_URL"},
		{name: "sqlite sink without path", mutate: func(c *Config) { c.Sinks = []string{SinkSQLite} }, wantErr: "sqlite sink requires a database path"},
		{name: "kafka sink without brokers", mutate: func(c *Config) { c.Sinks = []string{SinkKafka} }, wantErr: "kafka sink requires brokers and a topic"},
		{name: "no sinks", mutate: func(c *Config) { c.Sinks = nil }, wantErr: "at least one sink is required"},
		{name: "unknown sink", mutate: func(c *Config) { c.Sinks = []string{"s3"} }, wantErr: `unknown sink "s3"`},
		{name: "unknown source", mutate: func(c *Config) { c.Source.Kind = "ftp" }, wantErr: `unknown source "ftp"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
