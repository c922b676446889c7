package config

import (
	stderrors "errors"
	"os"
	"strconv"
	"time"

	"github.com/spf13/afero"

	"github.com/daimoniac/swaudit/internal/errors"
	"github.com/daimoniac/swaudit/internal/inventory"
	"github.com/daimoniac/swaudit/internal/session"
	"github.com/daimoniac/swaudit/internal/worker"
)

// Load loads configuration from environment variables and swaudit.yml defaults
func Load() (*Config, error) {
	return LoadFrom(afero.NewOsFs())
}

// LoadFrom is Load with the config file read from fs. A missing file is not
// an error; an unreadable or malformed one is.
func LoadFrom(fs afero.Fs) (*Config, error) {
	configPath := getEnv("SWAUDIT_CONFIG", "swaudit.yml")

	file, err := ParseFile(fs, configPath)
	if err != nil {
		if !stderrors.Is(err, errors.ErrNotFound) {
			return nil, err
		}
		file = &FileConfig{}
	}
	d := file.Defaults

	// Use defaults from swaudit.yml, or fall back to hardcoded defaults
	workerDefaults := worker.DefaultConfig()
	workerTimeout, err := intervalOr(d.WorkerTimeout, workerDefaults.BatchTimeout)
	if err != nil {
		return nil, errors.NewPermanentf("x-worker-timeout: %w", err)
	}
	retryBackoff, err := intervalOr(d.WorkerRetryBackoff, workerDefaults.RetryBackoff)
	if err != nil {
		return nil, errors.NewPermanentf("x-worker-retry-backoff: %w", err)
	}
	sessionLifetime, err := intervalOr(d.SessionLifetime, session.DefaultLifetime)
	if err != nil {
		return nil, errors.NewPermanentf("x-session-lifetime: %w", err)
	}
	retryAttempts := d.WorkerRetryAttempts
	if retryAttempts == 0 {
		retryAttempts = workerDefaults.RetryAttempts
	}
	pageSize := d.PageSize
	if pageSize == 0 {
		pageSize = 10
	}

	cfg := &Config{
		ConfigPath: configPath,
		Corpus: CorpusConfig{
			MongoURI:       getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database:       getEnv("MONGO_DATABASE", "swaudit"),
			Collection:     getEnv("MONGO_COLLECTION", "cves"),
			ConnectTimeout: getEnvDuration("MONGO_CONNECT_TIMEOUT", 10*time.Second),
			SeedFile:       getEnv("CORPUS_FILE", ""),
		},
		Cache: CacheConfig{
			Type:            getEnv("CACHE_TYPE", "sqlite"),
			SQLitePath:      getEnv("SQLITE_PATH", "swaudit.db"),
			MongoCollection: getEnv("CACHE_COLLECTION", "match_cache"),
		},
		Sessions: SessionConfig{
			Type:          getEnv("SESSION_STORE", "memory"),
			RedisAddr:     getEnv("REDIS_ADDR", ""),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
			Lifetime:      getEnvDuration("SESSION_LIFETIME", sessionLifetime),
			SweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", time.Minute),
		},
		Worker: WorkerConfig{
			Parallelism:   getEnvInt("WORKER_PARALLELISM", d.MaxWorkers),
			Timeout:       getEnvDuration("WORKER_TIMEOUT", workerTimeout),
			RetryAttempts: getEnvInt("WORKER_RETRY_ATTEMPTS", retryAttempts),
			RetryBackoff:  getEnvDuration("WORKER_RETRY_BACKOFF", retryBackoff),
			FailFast:      getEnvBool("WORKER_FAIL_FAST", false),
		},
		Report: ReportConfig{
			PageSize: getEnvInt("REPORT_PAGE_SIZE", pageSize),
		},
		Stopwords:   d.Stopwords,
		Ignore:      file.Ignore,
		Tolerations: file.Tolerate,
		API: APIConfig{
			Enabled:  getEnvBool("API_ENABLED", true),
			Port:     getEnvInt("API_PORT", 8080),
			APIKey:   getEnv("SWAUDIT_API_KEY", ""),
			ReadOnly: getEnvBool("API_READ_ONLY", false),
		},
		Observability: ObservabilityConfig{
			LogLevel:            getEnv("LOG_LEVEL", "info"),
			LogFile:             getEnv("LOG_FILE", ""),
			MetricsPort:         getEnvInt("METRICS_PORT", 9090),
			HealthCheckPort:     getEnvInt("HEALTH_CHECK_PORT", 8081),
			HealthCheckInterval: getEnvDuration("HEALTH_CHECK_INTERVAL", 30*time.Second),
		},
	}
	if file.Policy != nil {
		cfg.Policy = *file.Policy
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Corpus.SeedFile == "" && c.Corpus.MongoURI == "" {
		return errors.NewPermanentf("MONGO_URI is required unless CORPUS_FILE is set")
	}
	if c.Corpus.SeedFile == "" && (c.Corpus.Database == "" || c.Corpus.Collection == "") {
		return errors.NewPermanentf("MONGO_DATABASE and MONGO_COLLECTION are required")
	}

	switch c.Cache.Type {
	case "sqlite":
		if c.Cache.SQLitePath == "" {
			return errors.NewPermanentf("sqlite path is required when using sqlite match cache")
		}
	case "mongo":
		if c.Corpus.MongoURI == "" || c.Cache.MongoCollection == "" {
			return errors.NewPermanentf("MONGO_URI and CACHE_COLLECTION are required when using mongo match cache")
		}
	case "memory":
	default:
		return errors.NewPermanentf("invalid cache type: %s (must be sqlite, mongo, or memory)", c.Cache.Type)
	}

	switch c.Sessions.Type {
	case "memory":
	case "redis":
		if c.Sessions.RedisAddr == "" {
			return errors.NewPermanentf("REDIS_ADDR is required when using redis session store")
		}
	default:
		return errors.NewPermanentf("invalid session store: %s (must be memory or redis)", c.Sessions.Type)
	}

	if c.Sessions.Lifetime <= 0 {
		return errors.NewPermanentf("session lifetime must be positive")
	}
	if c.Worker.Parallelism < 0 {
		return errors.NewPermanentf("worker parallelism must not be negative: %d", c.Worker.Parallelism)
	}
	if c.Worker.Timeout <= 0 {
		return errors.NewPermanentf("worker timeout must be positive")
	}
	if c.Worker.RetryAttempts < 1 {
		return errors.NewPermanentf("worker retry attempts must be at least 1")
	}
	if c.Report.PageSize < 1 {
		return errors.NewPermanentf("report page size must be at least 1")
	}

	for name, port := range map[string]int{
		"API_PORT":          c.API.Port,
		"METRICS_PORT":      c.Observability.MetricsPort,
		"HEALTH_CHECK_PORT": c.Observability.HealthCheckPort,
	} {
		if port < 1 || port > 65535 {
			return errors.NewPermanentf("%s out of range: %d", name, port)
		}
	}

	if _, err := inventory.NewFilter(c.Ignore, nil); err != nil {
		return errors.NewPermanent(err)
	}

	return nil
}

// WorkerSettings converts the worker section into coordinator settings
func (c *Config) WorkerSettings() worker.Config {
	return worker.Config{
		Parallelism:   c.Worker.Parallelism,
		BatchTimeout:  c.Worker.Timeout,
		RetryAttempts: c.Worker.RetryAttempts,
		RetryBackoff:  c.Worker.RetryBackoff,
		FailFast:      c.Worker.FailFast,
	}
}

func intervalOr(value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	return parseInterval(value)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		if duration, err := parseInterval(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
