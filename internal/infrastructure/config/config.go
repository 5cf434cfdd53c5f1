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
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Scheduler SchedulerConfig
	Supplier  SupplierConfig
	Sync      SyncConfig
	Reviews   ReviewsConfig
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

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int  // in minutes
	ConnMaxIdleTime int  // in minutes
	AutoMigrate     bool // apply pending migrations when the server starts
}

// RedisConfig holds Redis connection settings. An empty Host disables
// Redis and sync locks fall back to an in-process mutex.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	AdminToken       string // shared secret for /api/v1/admin; empty disables the check
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
	// StorefrontRPM limits public requests per client per minute; 0 disables
	StorefrontRPM   int
	StorefrontBurst int
}

// SchedulerConfig holds the cron schedules of background jobs. An empty
// schedule disables that job.
type SchedulerConfig struct {
	Enabled       bool
	SyncCron      string
	StockCron     string
	TrackingCron  string
	ReviewsCron   string
	JobTimeout    time.Duration
	ShutdownGrace time.Duration
}

// SupplierConfig holds supplier API credentials and client tuning
type SupplierConfig struct {
	BaseURL          string
	Email            string
	APIKey           string
	Timeout          time.Duration
	MinInterval      time.Duration // minimum spacing between outbound calls
	RateLimitBackoff time.Duration // wait before the single retry after a rate-limit response
	RefreshSkew      time.Duration // refresh the token this long before it expires
	MaxResponseSize  int64
}

// SyncConfig holds catalog sync and fulfillment policy
type SyncConfig struct {
	AutoActivate        bool // new sellable products go straight to active
	Warehouse           string
	CountryCode         string
	PageSize            int
	MaxPages            int
	LockTTL             time.Duration
	DeliveredIndicators []string
	PollBatchSize       int
}

// ReviewsConfig holds review mirroring policy
type ReviewsConfig struct {
	MinRating     int
	MaxPerProduct int
	MinBodyLength int
	PageSize      int
	Delay         time.Duration // pause between products in a bulk run
}

// TelemetryConfig holds OpenTelemetry export configuration. Enabled turns on
// metrics and traces; logs and database spans have their own switches.
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string // OTLP gRPC endpoint, e.g. "localhost:4317"
	ServiceName       string
	Insecure          bool // plaintext gRPC, development only
	ExportInterval    time.Duration
	SamplingRatio     float64 // 0.0-1.0
	LogsEnabled       bool    // bridge zap records to the collector
	// Database tracing options
	DBTraceEnabled    bool
	DBLogFullSQL      bool // include query variables, never in production
	DBSlowQueryThresh time.Duration
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with DROPSHIP_ prefix (e.g., DROPSHIP_SUPPLIER_API_KEY)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file path. An empty path
// searches the working directory and /app for config.toml.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("/app")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("DROPSHIP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			AutoMigrate:     v.GetBool("database.auto_migrate"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			AdminToken:       v.GetString("http.admin_token"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
			StorefrontRPM:    v.GetInt("http.storefront_rpm"),
			StorefrontBurst:  v.GetInt("http.storefront_burst"),
		},
		Scheduler: SchedulerConfig{
			Enabled:       v.GetBool("scheduler.enabled"),
			SyncCron:      v.GetString("scheduler.sync_cron"),
			StockCron:     v.GetString("scheduler.stock_cron"),
			TrackingCron:  v.GetString("scheduler.tracking_cron"),
			ReviewsCron:   v.GetString("scheduler.reviews_cron"),
			JobTimeout:    v.GetDuration("scheduler.job_timeout"),
			ShutdownGrace: v.GetDuration("scheduler.shutdown_grace"),
		},
		Supplier: SupplierConfig{
			BaseURL:          v.GetString("supplier.base_url"),
			Email:            v.GetString("supplier.email"),
			APIKey:           v.GetString("supplier.api_key"),
			Timeout:          v.GetDuration("supplier.timeout"),
			MinInterval:      v.GetDuration("supplier.min_interval"),
			RateLimitBackoff: v.GetDuration("supplier.rate_limit_backoff"),
			RefreshSkew:      v.GetDuration("supplier.refresh_skew"),
			MaxResponseSize:  v.GetInt64("supplier.max_response_size"),
		},
		Sync: SyncConfig{
			AutoActivate:        v.GetBool("sync.auto_activate"),
			Warehouse:           v.GetString("sync.warehouse"),
			CountryCode:         v.GetString("sync.country_code"),
			PageSize:            v.GetInt("sync.page_size"),
			MaxPages:            v.GetInt("sync.max_pages"),
			LockTTL:             v.GetDuration("sync.lock_ttl"),
			DeliveredIndicators: v.GetStringSlice("sync.delivered_indicators"),
			PollBatchSize:       v.GetInt("sync.poll_batch_size"),
		},
		Reviews: ReviewsConfig{
			MinRating:     v.GetInt("reviews.min_rating"),
			MaxPerProduct: v.GetInt("reviews.max_per_product"),
			MinBodyLength: v.GetInt("reviews.min_body_length"),
			PageSize:      v.GetInt("reviews.page_size"),
			Delay:         v.GetDuration("reviews.delay"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			ExportInterval:    v.GetDuration("telemetry.export_interval"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "dropship-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "dropship"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host != "" && cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		// sync and reprice run inside the request
		cfg.HTTP.WriteTimeout = 10 * time.Minute
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20
	}
	if cfg.HTTP.StorefrontRPM > 0 && cfg.HTTP.StorefrontBurst == 0 {
		cfg.HTTP.StorefrontBurst = max(cfg.HTTP.StorefrontRPM/6, 1)
	}
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "X-Request-ID", "X-Admin-Token"}
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 30 * time.Minute
	}
	if cfg.Scheduler.ShutdownGrace == 0 {
		cfg.Scheduler.ShutdownGrace = 30 * time.Second
	}
	if cfg.Supplier.BaseURL == "" {
		cfg.Supplier.BaseURL = "https://developers.cjdropshipping.com/api2.0/v1"
	}
	if cfg.Supplier.Timeout == 0 {
		cfg.Supplier.Timeout = 30 * time.Second
	}
	if cfg.Supplier.MinInterval == 0 {
		cfg.Supplier.MinInterval = time.Second
	}
	if cfg.Supplier.RateLimitBackoff == 0 {
		cfg.Supplier.RateLimitBackoff = 2 * time.Second
	}
	if cfg.Supplier.RefreshSkew == 0 {
		cfg.Supplier.RefreshSkew = 10 * time.Minute
	}
	if cfg.Supplier.MaxResponseSize == 0 {
		cfg.Supplier.MaxResponseSize = 10 << 20
	}
	if cfg.Sync.PageSize == 0 {
		cfg.Sync.PageSize = 50
	}
	if cfg.Sync.LockTTL == 0 {
		cfg.Sync.LockTTL = time.Hour
	}
	if len(cfg.Sync.DeliveredIndicators) == 0 {
		cfg.Sync.DeliveredIndicators = []string{"delivered"}
	}
	if cfg.Sync.PollBatchSize == 0 {
		cfg.Sync.PollBatchSize = 200
	}
	if cfg.Reviews.MinRating == 0 {
		cfg.Reviews.MinRating = 4
	}
	if cfg.Reviews.MaxPerProduct == 0 {
		cfg.Reviews.MaxPerProduct = 20
	}
	if cfg.Reviews.MinBodyLength == 0 {
		cfg.Reviews.MinBodyLength = 10
	}
	if cfg.Reviews.PageSize == 0 {
		cfg.Reviews.PageSize = 50
	}
	if cfg.Reviews.Delay == 0 {
		cfg.Reviews.Delay = 2 * time.Second
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = 30 * time.Second
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
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
	if c.Sync.PageSize < 1 || c.Sync.PageSize > 200 {
		return fmt.Errorf("sync.page_size must be between 1 and 200, got %d", c.Sync.PageSize)
	}
	if c.Sync.MaxPages < 0 {
		return fmt.Errorf("sync.max_pages cannot be negative")
	}
	if c.Reviews.MinRating < 1 || c.Reviews.MinRating > 5 {
		return fmt.Errorf("reviews.min_rating must be between 1 and 5, got %d", c.Reviews.MinRating)
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if len(c.HTTP.AdminToken) < 32 {
			return fmt.Errorf("http.admin_token must be at least 32 characters in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Telemetry.Enabled && c.Telemetry.Insecure {
			return fmt.Errorf("telemetry.insecure must be false in production")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production")
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

// Addr returns the Redis address, or "" when Redis is not configured
func (r *RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// IsProduction reports whether the app runs in production
func (a *AppConfig) IsProduction() bool {
	return a.Env == "production"
}
