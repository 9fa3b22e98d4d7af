// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Redis, Kafka, Postgres, Scraper, Scheduler, REPL, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Scraper   ScraperConfig   `yaml:"scraper"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Search    SearchConfig    `yaml:"search"`
	REPL      REPLConfig      `yaml:"repl"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP query API settings. The API is only started when
// Enabled is true.
type ServerConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`

	// RateLimit is the per-client request budget per minute; 0 disables it.
	RateLimit   int      `yaml:"rateLimit"`
	CORSOrigins []string `yaml:"corsOrigins"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
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

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
	// PublishAnalytics sends one event per query to Topics.AnalyticsEvents.
	PublishAnalytics bool `yaml:"publishAnalytics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	JobPostings     string `yaml:"jobPostings"`
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// SourceKind names a record source implementation.
type SourceKind string

const (
	SourceHTTP     SourceKind = "http"
	SourceFile     SourceKind = "file"
	SourcePostgres SourceKind = "postgres"
	SourceKafka    SourceKind = "kafka"
)

// SourceConfig describes one job-record source.
type SourceConfig struct {
	Name string     `yaml:"name"`
	Kind SourceKind `yaml:"kind"`
	// URL is the JSON endpoint for http sources.
	URL string `yaml:"url"`
	// Path is the YAML/JSON file for file sources.
	Path string `yaml:"path"`
	// Query overrides the default SELECT for postgres sources.
	Query string `yaml:"query"`
	// IdleTimeout ends a kafka drain once no message arrived for this long.
	IdleTimeout time.Duration `yaml:"idleTimeout"`
}

// ScraperConfig controls how sources are fetched before a rebuild.
type ScraperConfig struct {
	Timeout         time.Duration  `yaml:"timeout"`
	RetryAttempts   int            `yaml:"retryAttempts"`
	RetryDelay      time.Duration  `yaml:"retryDelay"`
	MaxConcurrent   int            `yaml:"maxConcurrent"`
	UserAgent       string         `yaml:"userAgent"`
	BreakerFailures int            `yaml:"breakerFailures"`
	BreakerReset    time.Duration  `yaml:"breakerReset"`
	Sources         []SourceConfig `yaml:"sources"`
}

// SchedulerConfig controls background refreshes. An empty Spec disables
// the scheduler.
type SchedulerConfig struct {
	Spec string `yaml:"spec"`
}

// SearchConfig controls query execution limits. MaxResults caps HTTP
// responses only; the REPL prints every match.
type SearchConfig struct {
	MaxResults int `yaml:"maxResults"`
}

// REPLConfig controls the interactive read loop.
type REPLConfig struct {
	Prompt string `yaml:"prompt"`
	Color  bool   `yaml:"color"`
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

// Validate checks source definitions for missing required settings.
func (c *Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Scraper.Sources))
	for i, src := range c.Scraper.Sources {
		if src.Name == "" {
			return fmt.Errorf("scraper.sources[%d]: name is required", i)
		}
		if _, dup := seen[src.Name]; dup {
			return fmt.Errorf("scraper.sources[%d]: duplicate source name %q", i, src.Name)
		}
		seen[src.Name] = struct{}{}
		switch src.Kind {
		case SourceHTTP:
			if src.URL == "" {
				return fmt.Errorf("source %q: url is required for http sources", src.Name)
			}
		case SourceFile:
			if src.Path == "" {
				return fmt.Errorf("source %q: path is required for file sources", src.Name)
			}
		case SourcePostgres, SourceKafka:
		default:
			return fmt.Errorf("source %q: unknown kind %q", src.Name, src.Kind)
		}
	}
	return nil
}

// defaultConfig returns a Config with defaults suitable for local use.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Enabled:         false,
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "jobhunt",
			User:            "jobhunt",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "jobhunt",
			Topics: KafkaTopics{
				JobPostings:     "job-postings",
				AnalyticsEvents: "jobhunt-analytics",
			},
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 5 * time.Minute,
		},
		Scraper: ScraperConfig{
			Timeout:         20 * time.Second,
			RetryAttempts:   3,
			RetryDelay:      500 * time.Millisecond,
			MaxConcurrent:   6,
			UserAgent:       "jobhunt/1.0",
			BreakerFailures: 3,
			BreakerReset:    5 * time.Minute,
		},
		Search: SearchConfig{
			MaxResults: 1000,
		},
		REPL: REPLConfig{
			Prompt: ">> ",
			Color:  true,
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

// applyEnvOverrides reads JH_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("JH_SERVER_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Server.Enabled = b
		}
	}
	if v := os.Getenv("JH_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("JH_SERVER_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateLimit = n
		}
	}
	if v := os.Getenv("JH_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("JH_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("JH_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("JH_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("JH_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("JH_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("JH_KAFKA_PUBLISH_ANALYTICS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Kafka.PublishAnalytics = b
		}
	}
	if v := os.Getenv("JH_REDIS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Redis.Enabled = b
		}
	}
	if v := os.Getenv("JH_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("JH_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("JH_SCHEDULER_SPEC"); v != "" {
		cfg.Scheduler.Spec = v
	}
	if v := os.Getenv("JH_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("JH_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("JH_METRICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	if v := os.Getenv("JH_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
