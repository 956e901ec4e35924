package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Analytics AnalyticsConfig
	JWT       JWTConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Scheduler SchedulerConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds settings of the transactional PostgreSQL database
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int `mapstructure:"max_open_conns"`
	MaxIdleConns    int `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int `mapstructure:"conn_max_lifetime"`  // in minutes
	ConnMaxIdleTime int `mapstructure:"conn_max_idle_time"` // in minutes
}

// MongoConfig holds settings of the aggregate document store
type MongoConfig struct {
	URI                    string
	Database               string
	AggregatesCollection   string        `mapstructure:"aggregates_collection"`
	CatalogCollection      string        `mapstructure:"catalog_collection"`
	MaxPoolSize            uint64        `mapstructure:"max_pool_size"`
	MinPoolSize            uint64        `mapstructure:"min_pool_size"`
	ConnectTimeout         time.Duration `mapstructure:"connect_timeout"`
	ServerSelectionTimeout time.Duration `mapstructure:"server_selection_timeout"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig controls the analytics cache backend
type CacheConfig struct {
	// Backend is "redis" or "memory"
	Backend string
	// FallbackToMemory switches to the in-memory cache when Redis is unreachable at startup
	FallbackToMemory bool   `mapstructure:"fallback_to_memory"`
	KeyPrefix        string `mapstructure:"key_prefix"`
	ScanCount        int64  `mapstructure:"scan_count"`
}

// AnalyticsConfig holds the cache lifetimes of analytics results
type AnalyticsConfig struct {
	OverviewTTL    time.Duration `mapstructure:"overview_ttl"`
	TrendTTL       time.Duration `mapstructure:"trend_ttl"`
	TopProductsTTL time.Duration `mapstructure:"top_products_ttl"`
	PresetTTL      time.Duration `mapstructure:"preset_ttl"`
	JobTimeout     time.Duration `mapstructure:"job_timeout"`
	// TriggerRateLimit caps manual rebuilds per user within TriggerRateWindow
	TriggerRateLimit  int           `mapstructure:"trigger_rate_limit"`
	TriggerRateWindow time.Duration `mapstructure:"trigger_rate_window"`
}

// JWTConfig holds JWT settings
type JWTConfig struct {
	Secret                string
	AccessTokenExpiration time.Duration `mapstructure:"access_token_expiration"`
	Issuer                string
	AdminRole             string `mapstructure:"admin_role"`
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	IdleTimeout      time.Duration `mapstructure:"idle_timeout"`
	MaxHeaderBytes   int           `mapstructure:"max_header_bytes"`
	CORSAllowOrigins []string      `mapstructure:"cors_allow_origins"`
	CORSAllowMethods []string      `mapstructure:"cors_allow_methods"`
	CORSAllowHeaders []string      `mapstructure:"cors_allow_headers"`
	TrustedProxies   []string      `mapstructure:"trusted_proxies"`
}

// SchedulerConfig holds daily aggregation scheduler configuration
type SchedulerConfig struct {
	Enabled           bool
	DailyCronSchedule string        `mapstructure:"daily_cron_schedule"`
	JobTimeout        time.Duration `mapstructure:"job_timeout"`
}

// TelemetryConfig controls OpenTelemetry export. Traces, metrics and logs are
// sent to one OTLP gRPC collector.
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string  `mapstructure:"collector_endpoint"`
	SamplingRatio     float64 `mapstructure:"sampling_ratio"` // 0.0 to 1.0
	ServiceName       string  `mapstructure:"service_name"`
	// Insecure disables TLS to the collector
	Insecure        bool
	MetricsEnabled  bool          `mapstructure:"metrics_enabled"`
	MetricsInterval time.Duration `mapstructure:"metrics_interval"`
	LogsEnabled     bool          `mapstructure:"logs_enabled"`

	DBTraceEnabled bool `mapstructure:"db_trace_enabled"`
	// DBLogFullSQL records statements with their arguments; rejected in production
	DBLogFullSQL      bool          `mapstructure:"db_log_full_sql"`
	DBSlowQueryThresh time.Duration `mapstructure:"db_slow_query_threshold"`
}

// defaults are the built-in values of every configuration key. Keys absent
// here are invisible to environment overrides, so secrets default to "".
var defaults = map[string]any{
	"app.name": "erp-analytics",
	"app.env":  "development",
	"app.port": "8080",

	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.password":           "",
	"database.dbname":             "erp",
	"database.sslmode":            "disable",
	"database.max_open_conns":     25,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  60,
	"database.conn_max_idle_time": 30,

	"mongo.uri":                      "mongodb://localhost:27017",
	"mongo.database":                 "erp_analytics",
	"mongo.aggregates_collection":    "sales_aggregates",
	"mongo.catalog_collection":       "product_catalog",
	"mongo.max_pool_size":            50,
	"mongo.min_pool_size":            5,
	"mongo.connect_timeout":          10 * time.Second,
	"mongo.server_selection_timeout": 5 * time.Second,

	"redis.host":     "localhost",
	"redis.port":     6379,
	"redis.password": "",
	"redis.db":       0,

	"cache.backend":            "redis",
	"cache.fallback_to_memory": false,
	"cache.key_prefix":         "",
	"cache.scan_count":         500,

	"analytics.overview_ttl":        12 * time.Hour,
	"analytics.trend_ttl":           24 * time.Hour,
	"analytics.top_products_ttl":    12 * time.Hour,
	"analytics.preset_ttl":          24 * time.Hour,
	"analytics.job_timeout":         30 * time.Minute,
	"analytics.trigger_rate_limit":  5,
	"analytics.trigger_rate_window": time.Minute,

	"jwt.secret":                  "",
	"jwt.access_token_expiration": 15 * time.Minute,
	"jwt.issuer":                  "erp-backend",
	"jwt.admin_role":              "admin",

	"log.level":  "info",
	"log.format": "console",
	"log.output": "stdout",

	"http.read_timeout": 15 * time.Second,
	// etl/run blocks until the rebuild finishes
	"http.write_timeout":      5 * time.Minute,
	"http.idle_timeout":       60 * time.Second,
	"http.max_header_bytes":   1 << 20,
	"http.cors_allow_origins": []string{},
	"http.cors_allow_methods": []string{"GET", "POST", "OPTIONS"},
	"http.cors_allow_headers": []string{"Content-Type", "Authorization", "X-Request-ID"},
	"http.trusted_proxies":    []string{},

	"scheduler.enabled":             true,
	"scheduler.daily_cron_schedule": "0 1 * * *",
	// zero inherits analytics.job_timeout
	"scheduler.job_timeout": time.Duration(0),

	"telemetry.enabled":                 false,
	"telemetry.collector_endpoint":      "localhost:4317",
	"telemetry.sampling_ratio":          1.0,
	"telemetry.service_name":            "erp-analytics",
	"telemetry.insecure":                false,
	"telemetry.metrics_enabled":         false,
	"telemetry.metrics_interval":        60 * time.Second,
	"telemetry.logs_enabled":            false,
	"telemetry.db_trace_enabled":        false,
	"telemetry.db_log_full_sql":         false,
	"telemetry.db_slow_query_threshold": 200 * time.Millisecond,
}

// Load reads configuration with the following precedence, highest first:
//  1. environment variables prefixed ANALYTICS_ (e.g. ANALYTICS_MONGO_URI)
//  2. config.toml in ., ./config or /app
//  3. built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("ANALYTICS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = cfg.Analytics.JobTimeout
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Mongo.MinPoolSize > c.Mongo.MaxPoolSize {
		return fmt.Errorf("mongo.min_pool_size (%d) cannot exceed mongo.max_pool_size (%d)",
			c.Mongo.MinPoolSize, c.Mongo.MaxPoolSize)
	}

	switch c.Cache.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("cache.backend must be \"redis\" or \"memory\", got %q", c.Cache.Backend)
	}

	if c.App.Env == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the host:port of the Redis server
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
