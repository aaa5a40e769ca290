package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Agency   AgencyConfig   `mapstructure:"agency"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Search   SearchConfig   `mapstructure:"search"`
	Session  SessionConfig  `mapstructure:"session"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type UpstreamConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	// Requests per second and burst for each endpoint.
	RateLimit float64 `mapstructure:"rate_limit"`
	Burst     int     `mapstructure:"burst"`
}

type AgencyConfig struct {
	ID       string `mapstructure:"id"`
	Timezone string `mapstructure:"timezone"`
}

type StorageConfig struct {
	// Driver is "redis" or "memory".
	Driver string        `mapstructure:"driver"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type SearchConfig struct {
	PageSize       int           `mapstructure:"page_size"`
	LookupDebounce time.Duration `mapstructure:"lookup_debounce"`
	LookupTimeout  time.Duration `mapstructure:"lookup_timeout"`
	FilterDebounce time.Duration `mapstructure:"filter_debounce"`
}

type SessionConfig struct {
	IdleTTL       time.Duration `mapstructure:"idle_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// env names predate the config file and stay supported as they are.
var envNames = map[string]string{
	"server.port":             "PORT",
	"server.shutdown_timeout": "SHUTDOWN_TIMEOUT",
	"upstream.base_url":       "UPSTREAM_BASE_URL",
	"upstream.timeout":        "UPSTREAM_TIMEOUT",
	"upstream.max_retries":    "UPSTREAM_MAX_RETRIES",
	"upstream.rate_limit":     "UPSTREAM_RATE_LIMIT",
	"upstream.burst":          "UPSTREAM_BURST",
	"agency.id":               "AGENCY_ID",
	"agency.timezone":         "AGENCY_TIMEZONE",
	"storage.driver":          "STORAGE_DRIVER",
	"storage.ttl":             "STORAGE_TTL",
	"redis.host":              "REDIS_HOST",
	"redis.port":              "REDIS_PORT",
	"redis.password":          "REDIS_PASSWORD",
	"redis.db":                "REDIS_DB",
	"cache.enabled":           "CACHE_ENABLED",
	"cache.ttl":               "REDIS_TTL",
	"search.page_size":        "SEARCH_PAGE_SIZE",
	"search.lookup_debounce":  "LOOKUP_DEBOUNCE",
	"search.lookup_timeout":   "LOOKUP_TIMEOUT",
	"search.filter_debounce":  "FILTER_DEBOUNCE",
	"session.idle_ttl":        "SESSION_IDLE_TTL",
	"session.sweep_interval":  "SESSION_SWEEP_INTERVAL",
	"logging.level":           "LOG_LEVEL",
	"logging.format":          "LOG_FORMAT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("upstream.base_url", "http://localhost:8000")
	v.SetDefault("upstream.timeout", 10*time.Second)
	v.SetDefault("upstream.max_retries", 2)
	v.SetDefault("upstream.rate_limit", 20.0)
	v.SetDefault("upstream.burst", 40)
	v.SetDefault("agency.timezone", "ART")
	v.SetDefault("storage.driver", "redis")
	v.SetDefault("storage.ttl", time.Duration(0))
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("search.page_size", 12)
	v.SetDefault("search.lookup_debounce", 250*time.Millisecond)
	v.SetDefault("search.lookup_timeout", 5*time.Second)
	v.SetDefault("search.filter_debounce", 250*time.Millisecond)
	v.SetDefault("session.idle_ttl", 30*time.Minute)
	v.SetDefault("session.sweep_interval", time.Minute)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Load reads, in increasing priority: defaults, an optional config.yaml, the .env files
// and the process environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, path := range envFiles {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envNames {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Upstream.BaseURL) == "" {
		return errors.New("upstream.base_url is required")
	}
	if c.Search.PageSize < 1 || c.Search.PageSize > 100 {
		return fmt.Errorf("search.page_size must be between 1 and 100, got %d", c.Search.PageSize)
	}
	switch c.Storage.Driver {
	case "redis", "memory":
	default:
		return fmt.Errorf("storage.driver must be redis or memory, got %q", c.Storage.Driver)
	}
	if c.Upstream.MaxRetries < 0 {
		return errors.New("upstream.max_retries must not be negative")
	}
	if c.Storage.TTL < 0 {
		return errors.New("storage.ttl must not be negative")
	}
	if c.Session.SweepInterval <= 0 {
		return fmt.Errorf("session.sweep_interval must be positive, got %s", c.Session.SweepInterval)
	}
	return nil
}

// NeedsRedis reports whether any component is configured to use Redis.
func (c *Config) NeedsRedis() bool {
	return c.Storage.Driver == "redis" || c.Cache.Enabled
}
