// Package config loads and validates engine configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Storage, Index, Ingest, Search, Kafka, Redis, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level engine configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Index   IndexConfig   `yaml:"index"`
	Ingest  IngestConfig  `yaml:"ingest"`
	Search  SearchConfig  `yaml:"search"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	Redis   RedisConfig   `yaml:"redis"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// StorageConfig holds the embedded SQLite store settings.
type StorageConfig struct {
	Path        string        `yaml:"path"`
	BusyTimeout time.Duration `yaml:"busyTimeout"`
	MaxRetries  int           `yaml:"maxRetries"`
	RetryDelay  time.Duration `yaml:"retryDelay"`
}

// IndexConfig holds the BM25 parameters and the tokeniser settings applied
// identically to documents and queries.
type IndexConfig struct {
	K1           float64  `yaml:"k1"`
	B            float64  `yaml:"b"`
	Stemmer      string   `yaml:"stemmer"`
	Stopwords    []string `yaml:"stopwords"`
	StopwordLang string   `yaml:"stopwordLang"`
	Ignore       string   `yaml:"ignore"`
	StripAccents bool     `yaml:"stripAccents"`
	Lower        bool     `yaml:"lower"`
}

// IngestConfig controls document ingestion batching and parallelism.
type IngestConfig struct {
	BatchSize int `yaml:"batchSize"`
	NJobs     int `yaml:"nJobs"`
}

// SearchConfig controls query execution limits.
type SearchConfig struct {
	BatchSize      int           `yaml:"batchSize"`
	TopK           int           `yaml:"topK"`
	TopKToken      int           `yaml:"topKToken"`
	GraphTopKToken int           `yaml:"graphTopKToken"`
	Timeout        time.Duration `yaml:"timeout"`
	NJobs          int           `yaml:"nJobs"`
}

// KafkaConfig holds broker and topic settings for the streaming ingest
// pipeline. Only the publish and consume commands consult it.
type KafkaConfig struct {
	Brokers       []string `yaml:"brokers"`
	ConsumerGroup string   `yaml:"consumerGroup"`
	Topic         string   `yaml:"topic"`
}

// RedisConfig holds the optional query-result cache settings. The cache is
// disabled when Addr is empty.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
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
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configuration values the engine cannot operate with.
func (c *Config) Validate() error {
	if c.Index.K1 <= 0 {
		return fmt.Errorf("index.k1 must be positive, got %g", c.Index.K1)
	}
	if c.Index.B < 0 || c.Index.B > 1 {
		return fmt.Errorf("index.b must be in [0, 1], got %g", c.Index.B)
	}
	if c.Ingest.BatchSize <= 0 {
		return fmt.Errorf("ingest.batchSize must be positive, got %d", c.Ingest.BatchSize)
	}
	if c.Search.BatchSize <= 0 {
		return fmt.Errorf("search.batchSize must be positive, got %d", c.Search.BatchSize)
	}
	if c.Search.TopK <= 0 {
		return fmt.Errorf("search.topK must be positive, got %d", c.Search.TopK)
	}
	if c.Search.TopKToken <= 0 {
		return fmt.Errorf("search.topKToken must be positive, got %d", c.Search.TopKToken)
	}
	return nil
}

// defaultConfig returns a Config with the engine defaults.
func defaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Path:        "okapi.db",
			BusyTimeout: 5 * time.Second,
			MaxRetries:  20,
			RetryDelay:  100 * time.Millisecond,
		},
		Index: IndexConfig{
			K1:           1.5,
			B:            0.75,
			Stemmer:      "porter",
			StopwordLang: "english",
			Ignore:       `(\.|[^a-z])+`,
			StripAccents: true,
			Lower:        true,
		},
		Ingest: IngestConfig{
			BatchSize: 30000,
			NJobs:     -1,
		},
		Search: SearchConfig{
			BatchSize:      32,
			TopK:           10,
			TopKToken:      30000,
			GraphTopKToken: 10000,
			NJobs:          -1,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "okapi-ingest",
			Topic:         "okapi-documents",
		},
		Redis: RedisConfig{
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
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

// applyEnvOverrides reads OKAPI_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OKAPI_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("OKAPI_INDEX_K1"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Index.K1 = f
		}
	}
	if v := os.Getenv("OKAPI_INDEX_B"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Index.B = f
		}
	}
	if v := os.Getenv("OKAPI_INDEX_STEMMER"); v != "" {
		cfg.Index.Stemmer = v
	}
	if v := os.Getenv("OKAPI_INGEST_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Ingest.BatchSize = n
		}
	}
	if v := os.Getenv("OKAPI_INGEST_N_JOBS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Ingest.NJobs = n
		}
	}
	if v := os.Getenv("OKAPI_SEARCH_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.TopK = n
		}
	}
	if v := os.Getenv("OKAPI_SEARCH_TOP_K_TOKEN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.TopKToken = n
		}
	}
	if v := os.Getenv("OKAPI_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("OKAPI_KAFKA_TOPIC"); v != "" {
		cfg.Kafka.Topic = v
	}
	if v := os.Getenv("OKAPI_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("OKAPI_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("OKAPI_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("OKAPI_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("OKAPI_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
