package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Tour          TourConfig              `mapstructure:"tour"`
	Corpus        CorpusConfig            `mapstructure:"corpus"`
	Description   DescriptionConfig       `mapstructure:"description"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	HTTPPort    int    `mapstructure:"http_port"`

	RegistryPath string `mapstructure:"registry_path"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"`
}

// GetURL returns the URL field or the first address.
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// --- Tour Engine Configuration ---

// TourConfig holds the generation engine settings.
type TourConfig struct {
	DefaultMinStops    int  `mapstructure:"default_min_stops"`
	DefaultMaxStops    int  `mapstructure:"default_max_stops"`
	CandidateLimit     int  `mapstructure:"candidate_limit"`
	RequireImage       bool `mapstructure:"require_image"`
	AllowShortTours    bool `mapstructure:"allow_short_tours"`
	ScoringParallelism int  `mapstructure:"scoring_parallelism"`
	DailyLimit         int  `mapstructure:"daily_limit"` // 0 disables the limit

	DescriptionParallelism int `mapstructure:"description_parallelism"`

	Progress ProgressConfig `mapstructure:"progress"`
	Cache    CacheConfig    `mapstructure:"cache"`
}

// ProgressConfig selects the progress store. Durations are milliseconds.
type ProgressConfig struct {
	Store           string `mapstructure:"store"` // memory | redis
	EntryTTL        int    `mapstructure:"entry_ttl"`
	CompletedTTL    int    `mapstructure:"completed_ttl"`
	JanitorInterval int    `mapstructure:"janitor_interval"`
}

// CacheConfig holds get-or-compute cache TTLs in milliseconds.
type CacheConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	DescriptionTTL int  `mapstructure:"description_ttl"`
}

// CorpusConfig selects and protects the artwork corpus backend.
type CorpusConfig struct {
	Backend  string        `mapstructure:"backend"` // postgres | elasticsearch | memory
	Index    string        `mapstructure:"index"`
	Table    string        `mapstructure:"table"`
	SeedFile string        `mapstructure:"seed_file"` // JSON artworks for the memory backend
	Timeout  int           `mapstructure:"timeout"`   // milliseconds
	Breaker  BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig configures the corpus circuit breaker.
type BreakerConfig struct {
	MaxRequests         uint32 `mapstructure:"max_requests"`
	Interval            int    `mapstructure:"interval"` // milliseconds
	Timeout             int    `mapstructure:"timeout"`  // milliseconds
	ConsecutiveFailures uint32 `mapstructure:"consecutive_failures"`
}

// DescriptionConfig points at the description service. An empty BaseURL selects the
// built-in template describer.
type DescriptionConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	Timeout    int    `mapstructure:"timeout"` // milliseconds
	MaxRetries int    `mapstructure:"max_retries"`
	MaxTokens  int    `mapstructure:"max_tokens"`
}

// ObservabilityConfig configures tracing and the otel meter provider.
type ObservabilityConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	TracingEnabled bool   `mapstructure:"tracing_enabled"`
}
