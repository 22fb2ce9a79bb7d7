package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Payout    PayoutConfig
	Scheduler SchedulerConfig
	Outbox    OutboxConfig
	Storage   StorageConfig
	Mail      MailConfig
	Telemetry TelemetryConfig
	Profiling ProfilingConfig
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
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
	AutoMigrate     bool
}

// RedisConfig holds Redis connection settings. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	Output     string // stdout, stderr, or file path
	MaxSizeMB  int    // rotation size for file output
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	RequestTimeout    time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	CORSAllowOrigins  []string
	CORSAllowMethods  []string
	CORSAllowHeaders  []string
	TrustedProxies    []string
}

// PayoutConfig holds commission and payout policy settings
type PayoutConfig struct {
	Currency        string
	FeeRate         decimal.Decimal
	FeeFlat         int64 // minor units per payout
	WithholdingRate decimal.Decimal
	ReturnWindow    time.Duration
	CarryOver       bool
	MaxRetries      int
	RetryBackoff    time.Duration
	ExecutorTimeout time.Duration
	ExecutorRPS     float64
	ExecutorBurst   int
	ReconcileAfter  time.Duration
	CallbackSecret  string
}

// SchedulerConfig holds payout job scheduling configuration
type SchedulerConfig struct {
	Enabled           bool
	Workers           int
	BatchHour         int
	BatchMinute       int
	AgingInterval     time.Duration
	RetryInterval     time.Duration
	ReconcileInterval time.Duration
	JobTimeout        time.Duration
	RetryAttempts     int
	RetryDelay        time.Duration
}

// OutboxConfig holds outbox processing configuration
type OutboxConfig struct {
	Enabled       bool
	BatchSize     int
	PollInterval  time.Duration
	MaxRetries    int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	// CleanupRetention keeps relayed entries this long; zero keeps them forever
	CleanupRetention time.Duration
	StaleAfter       time.Duration
}

// StorageConfig holds S3-compatible statement archive settings.
// An empty Bucket selects the no-op archive.
type StorageConfig struct {
	Endpoint        string
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	Prefix          string
}

// MailConfig holds SMTP settings of the operator queue.
// An empty Host selects the log-only queue.
type MailConfig struct {
	Host       string
	Port       int
	User       string
	Password   string
	From       string
	Recipients []string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	MetricsEnabled    bool
	MetricsInterval   time.Duration
	// Database tracing options
	DBTraceEnabled    bool          // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool          // Log full SQL statements (dev only)
	DBSlowQueryThresh time.Duration // Slow query threshold for warnings
}

// ProfilingConfig holds continuous profiling configuration
type ProfilingConfig struct {
	Enabled       bool
	ServerAddress string
	AuthUser      string
	AuthPassword  string
}

// Load loads configuration from .env, TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with PAYOUTS_ prefix (e.g., PAYOUTS_DATABASE_PASSWORD)
// 2. .env entries (exported into the environment, never overriding it)
// 3. config.toml
// 4. Built-in defaults
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/payouts")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("PAYOUTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	feeRate, err := parseDecimal(v, "payout.fee_rate")
	if err != nil {
		return nil, err
	}
	withholdingRate, err := parseDecimal(v, "payout.withholding_rate")
	if err != nil {
		return nil, err
	}

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
			DBName:          v.GetString("database.name"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			AutoMigrate:     v.GetBool("database.auto_migrate"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			Output:     v.GetString("log.output"),
			MaxSizeMB:  v.GetInt("log.max_size_mb"),
			MaxBackups: v.GetInt("log.max_backups"),
			MaxAgeDays: v.GetInt("log.max_age_days"),
			Compress:   v.GetBool("log.compress"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			RequestTimeout:    v.GetDuration("http.request_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:  v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:  v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
		},
		Payout: PayoutConfig{
			Currency:        v.GetString("payout.currency"),
			FeeRate:         feeRate,
			FeeFlat:         v.GetInt64("payout.fee_flat"),
			WithholdingRate: withholdingRate,
			ReturnWindow:    v.GetDuration("payout.return_window"),
			CarryOver:       v.GetBool("payout.carry_over"),
			MaxRetries:      v.GetInt("payout.max_retries"),
			RetryBackoff:    v.GetDuration("payout.retry_backoff"),
			ExecutorTimeout: v.GetDuration("payout.executor_timeout"),
			ExecutorRPS:     v.GetFloat64("payout.executor_rps"),
			ExecutorBurst:   v.GetInt("payout.executor_burst"),
			ReconcileAfter:  v.GetDuration("payout.reconcile_after"),
			CallbackSecret:  v.GetString("payout.callback_secret"),
		},
		Scheduler: SchedulerConfig{
			Enabled:           v.GetBool("scheduler.enabled"),
			Workers:           v.GetInt("scheduler.workers"),
			BatchHour:         v.GetInt("scheduler.batch_hour"),
			BatchMinute:       v.GetInt("scheduler.batch_minute"),
			AgingInterval:     v.GetDuration("scheduler.aging_interval"),
			RetryInterval:     v.GetDuration("scheduler.retry_interval"),
			ReconcileInterval: v.GetDuration("scheduler.reconcile_interval"),
			JobTimeout:        v.GetDuration("scheduler.job_timeout"),
			RetryAttempts:     v.GetInt("scheduler.retry_attempts"),
			RetryDelay:        v.GetDuration("scheduler.retry_delay"),
		},
		Outbox: OutboxConfig{
			Enabled:          v.GetBool("outbox.enabled"),
			BatchSize:        v.GetInt("outbox.batch_size"),
			PollInterval:     v.GetDuration("outbox.poll_interval"),
			MaxRetries:       v.GetInt("outbox.max_retries"),
			RetryBase:        v.GetDuration("outbox.retry_base"),
			RetryMaxDelay:    v.GetDuration("outbox.retry_max_delay"),
			CleanupRetention: v.GetDuration("outbox.cleanup_retention"),
			StaleAfter:       v.GetDuration("outbox.stale_after"),
		},
		Storage: StorageConfig{
			Endpoint:        v.GetString("storage.endpoint"),
			Bucket:          v.GetString("storage.bucket"),
			Region:          v.GetString("storage.region"),
			AccessKeyID:     v.GetString("storage.access_key_id"),
			SecretAccessKey: v.GetString("storage.secret_access_key"),
			UsePathStyle:    v.GetBool("storage.use_path_style"),
			Prefix:          v.GetString("storage.prefix"),
		},
		Mail: MailConfig{
			Host:       v.GetString("mail.host"),
			Port:       v.GetInt("mail.port"),
			User:       v.GetString("mail.user"),
			Password:   v.GetString("mail.password"),
			From:       v.GetString("mail.from"),
			Recipients: v.GetStringSlice("mail.recipients"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
		Profiling: ProfilingConfig{
			Enabled:       v.GetBool("profiling.enabled"),
			ServerAddress: v.GetString("profiling.server_address"),
			AuthUser:      v.GetString("profiling.auth_user"),
			AuthPassword:  v.GetString("profiling.auth_password"),
		},
	}

	applyDefaults(cfg, v)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseDecimal(v *viper.Viper, key string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s must be a decimal number: %w", key, err)
	}
	return d, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config, v *viper.Viper) {
	if cfg.App.Name == "" {
		cfg.App.Name = "payouts"
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
		cfg.Database.DBName = "payouts"
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
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 100
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 7
	}
	if cfg.Log.MaxAgeDays == 0 {
		cfg.Log.MaxAgeDays = 28
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.RequestTimeout == 0 {
		cfg.HTTP.RequestTimeout = 30 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 600
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	// An empty origin list allows no cross-origin requests.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "X-Request-ID", "X-Signature"}
	}
	if cfg.Payout.Currency == "" {
		cfg.Payout.Currency = "USD"
	}
	if !v.IsSet("payout.return_window") {
		cfg.Payout.ReturnWindow = 14 * 24 * time.Hour
	}
	if !v.IsSet("payout.carry_over") {
		cfg.Payout.CarryOver = true
	}
	if cfg.Payout.MaxRetries == 0 {
		cfg.Payout.MaxRetries = 5
	}
	if cfg.Payout.RetryBackoff == 0 {
		cfg.Payout.RetryBackoff = 5 * time.Minute
	}
	if cfg.Payout.ExecutorTimeout == 0 {
		cfg.Payout.ExecutorTimeout = 30 * time.Second
	}
	if cfg.Payout.ExecutorRPS == 0 {
		cfg.Payout.ExecutorRPS = 10
	}
	if cfg.Payout.ExecutorBurst == 0 {
		cfg.Payout.ExecutorBurst = 5
	}
	if cfg.Payout.ReconcileAfter == 0 {
		cfg.Payout.ReconcileAfter = time.Hour
	}
	if cfg.Scheduler.Workers == 0 {
		cfg.Scheduler.Workers = 4
	}
	if !v.IsSet("scheduler.batch_hour") {
		cfg.Scheduler.BatchHour = 2
	}
	if cfg.Scheduler.AgingInterval == 0 {
		cfg.Scheduler.AgingInterval = time.Hour
	}
	if cfg.Scheduler.RetryInterval == 0 {
		cfg.Scheduler.RetryInterval = 10 * time.Minute
	}
	if cfg.Scheduler.ReconcileInterval == 0 {
		cfg.Scheduler.ReconcileInterval = 15 * time.Minute
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 10 * time.Minute
	}
	if cfg.Scheduler.RetryAttempts == 0 {
		cfg.Scheduler.RetryAttempts = 3
	}
	if cfg.Scheduler.RetryDelay == 0 {
		cfg.Scheduler.RetryDelay = time.Minute
	}
	if cfg.Outbox.BatchSize == 0 {
		cfg.Outbox.BatchSize = 100
	}
	if cfg.Outbox.PollInterval == 0 {
		cfg.Outbox.PollInterval = 5 * time.Second
	}
	if cfg.Outbox.MaxRetries == 0 {
		cfg.Outbox.MaxRetries = 5
	}
	if cfg.Outbox.RetryBase == 0 {
		cfg.Outbox.RetryBase = time.Second
	}
	if cfg.Outbox.RetryMaxDelay == 0 {
		cfg.Outbox.RetryMaxDelay = 5 * time.Minute
	}
	if !v.IsSet("outbox.cleanup_retention") {
		cfg.Outbox.CleanupRetention = 168 * time.Hour
	}
	if cfg.Outbox.StaleAfter == 0 {
		cfg.Outbox.StaleAfter = 10 * time.Minute
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.Prefix == "" {
		cfg.Storage.Prefix = "statements"
	}
	if cfg.Mail.Port == 0 {
		cfg.Mail.Port = 587
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 30 * time.Second
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.Profiling.ServerAddress == "" {
		cfg.Profiling.ServerAddress = "http://localhost:4040"
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

	if len(c.Payout.Currency) != 3 {
		return fmt.Errorf("payout.currency must be a 3-letter ISO-4217 code, got %q", c.Payout.Currency)
	}
	one := decimal.NewFromInt(1)
	if c.Payout.FeeRate.IsNegative() || c.Payout.FeeRate.GreaterThan(one) {
		return fmt.Errorf("payout.fee_rate must be between 0 and 1, got %s", c.Payout.FeeRate)
	}
	if c.Payout.FeeFlat < 0 {
		return fmt.Errorf("payout.fee_flat cannot be negative")
	}
	if c.Payout.WithholdingRate.IsNegative() || c.Payout.WithholdingRate.GreaterThan(one) {
		return fmt.Errorf("payout.withholding_rate must be between 0 and 1, got %s", c.Payout.WithholdingRate)
	}
	if c.Payout.ReturnWindow < 0 {
		return fmt.Errorf("payout.return_window cannot be negative")
	}
	if c.Payout.ExecutorRPS < 0 {
		return fmt.Errorf("payout.executor_rps cannot be negative")
	}

	if c.Scheduler.BatchHour < 0 || c.Scheduler.BatchHour > 23 {
		return fmt.Errorf("scheduler.batch_hour must be between 0 and 23, got %d", c.Scheduler.BatchHour)
	}
	if c.Scheduler.BatchMinute < 0 || c.Scheduler.BatchMinute > 59 {
		return fmt.Errorf("scheduler.batch_minute must be between 0 and 59, got %d", c.Scheduler.BatchMinute)
	}

	if c.Mail.Host != "" && len(c.Mail.Recipients) == 0 {
		return fmt.Errorf("mail.recipients is required when mail.host is set")
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if len(c.Payout.CallbackSecret) < 32 {
			return fmt.Errorf("payout.callback_secret must be at least 32 characters in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		// Full SQL in traces would expose bank details
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

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
