package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml on top, and applies
// environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")
	bindEnv(v)

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return finalize(v)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finalize(v)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

func finalize(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env", "../../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnvVars replaces ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

func overrideEmptyConfig(cfg *Config) {
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
	if cfg.Description.APIKey == "" {
		if val := os.Getenv("DESCRIPTION_API_KEY"); val != "" {
			cfg.Description.APIKey = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "museum-tour-workers"
	}
	if cfg.App.HTTPPort == 0 {
		cfg.App.HTTPPort = 8080
	}
	if cfg.App.RegistryPath == "" {
		cfg.App.RegistryPath = "configs/activity-registry.json"
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}

	applyTourDefaults(&cfg.Tour)

	if cfg.Corpus.Backend == "" {
		cfg.Corpus.Backend = "postgres"
	}
	if cfg.Corpus.Index == "" {
		cfg.Corpus.Index = "artworks"
	}
	if cfg.Corpus.Table == "" {
		cfg.Corpus.Table = "artworks"
	}
	if cfg.Corpus.Timeout == 0 {
		cfg.Corpus.Timeout = 5000
	}
	if cfg.Corpus.Breaker.MaxRequests == 0 {
		cfg.Corpus.Breaker.MaxRequests = 1
	}
	if cfg.Corpus.Breaker.Interval == 0 {
		cfg.Corpus.Breaker.Interval = 60000
	}
	if cfg.Corpus.Breaker.Timeout == 0 {
		cfg.Corpus.Breaker.Timeout = 30000
	}
	if cfg.Corpus.Breaker.ConsecutiveFailures == 0 {
		cfg.Corpus.Breaker.ConsecutiveFailures = 5
	}

	if cfg.Description.Timeout == 0 {
		cfg.Description.Timeout = 10000
	}
	if cfg.Description.MaxRetries == 0 {
		cfg.Description.MaxRetries = 3
	}
	if cfg.Description.MaxTokens == 0 {
		cfg.Description.MaxTokens = 600
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = cfg.App.Name
	}
}

func applyTourDefaults(t *TourConfig) {
	if t.DefaultMinStops == 0 {
		t.DefaultMinStops = 3
	}
	if t.DefaultMaxStops == 0 {
		t.DefaultMaxStops = 10
	}
	if t.CandidateLimit == 0 {
		t.CandidateLimit = 200
	}
	if t.ScoringParallelism == 0 {
		t.ScoringParallelism = 8
	}
	if t.DescriptionParallelism == 0 {
		t.DescriptionParallelism = 4
	}
	if t.Progress.Store == "" {
		t.Progress.Store = "memory"
	}
	if t.Progress.EntryTTL == 0 {
		t.Progress.EntryTTL = 600000
	}
	if t.Progress.JanitorInterval == 0 {
		t.Progress.JanitorInterval = 30000
	}
	if t.Cache.DescriptionTTL == 0 {
		t.Cache.DescriptionTTL = 3600000
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}

	switch cfg.Corpus.Backend {
	case "postgres":
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required")
		}
	case "elasticsearch":
		if cfg.Database.Elasticsearch.GetURL() == "" {
			return fmt.Errorf("database.elasticsearch.addresses or url is required")
		}
	case "memory":
	default:
		return fmt.Errorf("corpus.backend must be postgres, elasticsearch or memory, got %q", cfg.Corpus.Backend)
	}

	if cfg.RequiresRedis() && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}

	switch cfg.Tour.Progress.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("tour.progress.store must be memory or redis, got %q", cfg.Tour.Progress.Store)
	}

	if cfg.Tour.DefaultMinStops < 3 {
		return fmt.Errorf("tour.default_min_stops must be at least 3")
	}
	if cfg.Tour.DefaultMaxStops < cfg.Tour.DefaultMinStops {
		return fmt.Errorf("tour.default_max_stops must be >= tour.default_min_stops")
	}
	if cfg.Tour.DailyLimit < 0 {
		return fmt.Errorf("tour.daily_limit must not be negative")
	}

	return nil
}

// RequiresRedis reports whether any configured component is backed by Redis.
func (c *Config) RequiresRedis() bool {
	return c.Tour.Progress.Store == "redis" || c.Tour.DailyLimit > 0 || c.Tour.Cache.Enabled
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
