package config

import (
	"time"

	"github.com/daimoniac/swaudit/internal/inventory"
	"github.com/daimoniac/swaudit/internal/policy"
)

// Config represents the complete application configuration
type Config struct {
	ConfigPath    string
	Corpus        CorpusConfig
	Cache         CacheConfig
	Sessions      SessionConfig
	Worker        WorkerConfig
	Report        ReportConfig
	Stopwords     []string
	Ignore        []inventory.IgnoreRule
	Policy        policy.Config
	Tolerations   []policy.Toleration
	API           APIConfig
	Observability ObservabilityConfig
}

// CorpusConfig configures the vulnerability corpus connection
type CorpusConfig struct {
	MongoURI       string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
	// SeedFile, when set, serves the corpus from a JSON file in memory
	// instead of MongoDB.
	SeedFile string
}

// CacheConfig configures the match cache
type CacheConfig struct {
	Type            string // sqlite, mongo or memory
	SQLitePath      string
	MongoCollection string
}

// SessionConfig configures the audit session store
type SessionConfig struct {
	Type          string // memory or redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Lifetime      time.Duration
	SweepInterval time.Duration
}

// WorkerConfig configures the batch workers
type WorkerConfig struct {
	Parallelism   int
	Timeout       time.Duration
	RetryAttempts int
	RetryBackoff  time.Duration
	FailFast      bool
}

// ReportConfig configures report assembly
type ReportConfig struct {
	PageSize int
}

// APIConfig configures the HTTP API server
type APIConfig struct {
	Enabled  bool
	Port     int
	APIKey   string
	ReadOnly bool
}

// ObservabilityConfig configures logging and metrics
type ObservabilityConfig struct {
	LogLevel            string
	LogFile             string
	MetricsPort         int
	HealthCheckPort     int
	HealthCheckInterval time.Duration
}

// FileConfig is the layout of swaudit.yml
type FileConfig struct {
	Defaults Defaults               `yaml:"defaults"`
	Ignore   []inventory.IgnoreRule `yaml:"ignore,omitempty"`
	Policy   *policy.Config         `yaml:"x-policy,omitempty"`
	Tolerate []policy.Toleration    `yaml:"x-tolerate,omitempty"`
}

// Defaults contains default configuration values
type Defaults struct {
	MaxWorkers          int      `yaml:"x-max-workers,omitempty"`
	WorkerTimeout       string   `yaml:"x-worker-timeout,omitempty"`
	WorkerRetryAttempts int      `yaml:"x-worker-retry-attempts,omitempty"`
	WorkerRetryBackoff  string   `yaml:"x-worker-retry-backoff,omitempty"`
	SessionLifetime     string   `yaml:"x-session-lifetime,omitempty"`
	PageSize            int      `yaml:"x-page-size,omitempty"`
	Stopwords           []string `yaml:"stopwords,omitempty"`
}
