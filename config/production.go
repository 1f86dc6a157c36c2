// Package config provides configuration management and environment variable handling for the application
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database   DatabaseConfig   `json:"database"`
	Server     ServerConfig     `json:"server"`
	Security   SecurityConfig   `json:"security"`
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
	Cache      CacheConfig      `json:"cache"`
	Deployment DeploymentConfig `json:"deployment"`
	Gateway    GatewayConfig    `json:"gateway"`
	Scheduler  SchedulerConfig  `json:"scheduler"`
	ShortLink  ShortLinkConfig  `json:"short_link"`
	Media      MediaConfig      `json:"media"`
	Webhook    WebhookConfig    `json:"webhook"`
	NATS       NATSConfig       `json:"nats"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	SlowQueryLog    bool          `json:"slow_query_log"`
	SlowQueryTime   time.Duration `json:"slow_query_time"`
}

type ServerConfig struct {
	Host              string        `json:"host"`
	Port              int           `json:"port"`
	ReadTimeout       time.Duration `json:"read_timeout"`
	WriteTimeout      time.Duration `json:"write_timeout"`
	IdleTimeout       time.Duration `json:"idle_timeout"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout"`
	BodyLimit         int           `json:"body_limit"`
	TrustedProxies    []string      `json:"trusted_proxies"`
	ProxyHeader       string        `json:"proxy_header"`
	EnableCompression bool          `json:"enable_compression"`
	CompressionLevel  int           `json:"compression_level"` // 1 fastest, 9 smallest
}

type SecurityConfig struct {
	// TLS
	TLSEnabled         bool   `json:"tls_enabled"`
	TLSCertFile        string `json:"tls_cert_file"`
	TLSKeyFile         string `json:"tls_key_file"`
	HSTSMaxAge         int    `json:"hsts_max_age"`
	HSTSIncludeSubDoms bool   `json:"hsts_include_subdomains"`
	HSTSPreload        bool   `json:"hsts_preload"`

	// CORS
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	CORSMaxAge       int      `json:"cors_max_age"`

	GlobalRateLimit int           `json:"global_rate_limit"` // requests per window
	RateLimitWindow time.Duration `json:"rate_limit_window"`

	// Response headers
	CSPPolicy           string `json:"csp_policy"`
	XFrameOptions       string `json:"x_frame_options"`
	XContentTypeOptions string `json:"x_content_type_options"`
	XSSProtection       string `json:"xss_protection"`
	ReferrerPolicy      string `json:"referrer_policy"`

	// Access control for /api/v1
	RequireAPIKey  bool     `json:"require_api_key"`
	APIKeyHeader   string   `json:"api_key_header"`
	AllowedAPIKeys []string `json:"allowed_api_keys"`
	IPWhitelist    []string `json:"ip_whitelist"`
	IPBlacklist    []string `json:"ip_blacklist"`
}

type LoggingConfig struct {
	Level    string      `json:"level"` // debug, info, warn, error
	Rotation LogRotation `json:"rotation"`
}

// LogRotation bounds the scheduler log files.
type LogRotation struct {
	MaxSize    int  `json:"max_size"` // MB
	MaxBackups int  `json:"max_backups"`
	MaxAge     int  `json:"max_age"` // days
	Compress   bool `json:"compress"`
}

type MetricsConfig struct {
	Enabled        bool   `json:"enabled"`
	PrometheusPath string `json:"prometheus_path"`
}

type CacheConfig struct {
	Enabled         bool          `json:"enabled"`
	RedisURL        string        `json:"redis_url"`
	RedisDB         int           `json:"redis_db"`
	RedisPrefix     string        `json:"redis_prefix"`
	VisitorTTL      time.Duration `json:"visitor_ttl"`
	CleanupInterval time.Duration `json:"cleanup_interval"` // health ping period
}

type DeploymentConfig struct {
	Environment string `json:"environment"`
	Version     string `json:"version"`
}

// GatewayConfig configures the HTTP channel gateway (SMS, MMS and Kakao relay)
type GatewayConfig struct {
	Provider        string        `json:"provider"` // http, mock
	BaseURL         string        `json:"base_url"`
	TokenURL        string        `json:"token_url"`
	SystemName      string        `json:"system_name"`
	Username        string        `json:"username"`
	Password        string        `json:"password"`
	Scope           string        `json:"scope"`
	GrantType       string        `json:"grant_type"`
	RootAccessToken string        `json:"root_access_token"`
	SenderNumber    string        `json:"sender_number"`
	KakaoSenderKey  string        `json:"kakao_sender_key"`
	Timeout         time.Duration `json:"timeout"`
	RatePerSecond   float64       `json:"rate_per_second"`
	Burst           int           `json:"burst"`
	TokenTTL        time.Duration `json:"token_ttl"`
}

// SchedulerConfig configures the dispatch poll loop and delivery reconciliation
type SchedulerConfig struct {
	Enabled             bool            `json:"enabled"`
	PollInterval        time.Duration   `json:"poll_interval"`
	BatchLimit          int             `json:"batch_limit"`
	Concurrency         int             `json:"concurrency"`
	SendTimeout         time.Duration   `json:"send_timeout"`
	ReconcileCron       string          `json:"reconcile_cron"`
	StatusCheckOffsets  []time.Duration `json:"status_check_offsets"`
	StatusJobMaxRetries int             `json:"status_job_max_retries"`
	LogFilePath         string          `json:"log_file_path"`
	LogRotation         LogRotation     `json:"-"`
}

// ShortLinkConfig configures short code generation
type ShortLinkConfig struct {
	BaseURL           string  `json:"base_url"`
	CodeLength        int     `json:"code_length"`
	MaxAttempts       int     `json:"max_attempts"`
	BloomCapacity     uint    `json:"bloom_capacity"`
	BloomFalsePosRate float64 `json:"bloom_false_positive_rate"`
}

// MediaConfig configures local asset storage and image preparation
type MediaConfig struct {
	StorageDir   string        `json:"storage_dir"`
	MaxDimension int           `json:"max_dimension"`
	JPEGQuality  int           `json:"jpeg_quality"`
	FetchTimeout time.Duration `json:"fetch_timeout"`
	MaxBytes     int64         `json:"max_bytes"`
	CacheTTL     time.Duration `json:"cache_ttl"`
}

// WebhookConfig configures the terminal-outcome notification sink
type WebhookConfig struct {
	URL     string        `json:"url"`
	Secret  string        `json:"secret"`
	Timeout time.Duration `json:"timeout"`
}

// NATSConfig configures the engagement event stream
type NATSConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
	Stream  string `json:"stream"`
	Subject string `json:"subject"`
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "campaign_hub"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 100),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			SlowQueryLog:    getEnvBool("DB_SLOW_QUERY_LOG", true),
			SlowQueryTime:   getEnvDuration("DB_SLOW_QUERY_TIME", 1*time.Second),
		},
		Server: ServerConfig{
			Host:              getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:              getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:       getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:      getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:       getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout:   getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:         getEnvInt("SERVER_BODY_LIMIT", 4*1024*1024), // 4MB
			TrustedProxies:    getEnvStringSlice("SERVER_TRUSTED_PROXIES", []string{"127.0.0.1"}),
			ProxyHeader:       getEnvString("SERVER_PROXY_HEADER", "X-Real-IP"),
			EnableCompression: getEnvBool("SERVER_ENABLE_COMPRESSION", true),
			CompressionLevel:  getEnvInt("SERVER_COMPRESSION_LEVEL", 6),
		},
		Security: SecurityConfig{
			TLSEnabled:          getEnvBool("TLS_ENABLED", false),
			TLSCertFile:         getEnvString("TLS_CERT_FILE", ""),
			TLSKeyFile:          getEnvString("TLS_KEY_FILE", ""),
			HSTSMaxAge:          getEnvInt("HSTS_MAX_AGE", 31536000), // 1 year
			HSTSIncludeSubDoms:  getEnvBool("HSTS_INCLUDE_SUBDOMAINS", true),
			HSTSPreload:         getEnvBool("HSTS_PRELOAD", false),
			AllowedOrigins:      getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods:      getEnvStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders:      getEnvStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "X-Request-ID", "X-API-Key"}),
			AllowCredentials:    getEnvBool("CORS_ALLOW_CREDENTIALS", false),
			CORSMaxAge:          getEnvInt("CORS_MAX_AGE", 86400),
			GlobalRateLimit:     getEnvInt("GLOBAL_RATE_LIMIT", 2000),
			RateLimitWindow:     getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
			CSPPolicy:           getEnvString("CSP_POLICY", "default-src 'self'"),
			XFrameOptions:       getEnvString("X_FRAME_OPTIONS", "DENY"),
			XContentTypeOptions: getEnvString("X_CONTENT_TYPE_OPTIONS", "nosniff"),
			XSSProtection:       getEnvString("XSS_PROTECTION", "0"),
			ReferrerPolicy:      getEnvString("REFERRER_POLICY", "strict-origin-when-cross-origin"),
			RequireAPIKey:       getEnvBool("REQUIRE_API_KEY", false),
			APIKeyHeader:        getEnvString("API_KEY_HEADER", "X-API-Key"),
			AllowedAPIKeys:      getEnvStringSlice("ALLOWED_API_KEYS", nil),
			IPWhitelist:         getEnvStringSlice("IP_WHITELIST", nil),
			IPBlacklist:         getEnvStringSlice("IP_BLACKLIST", nil),
		},
		Logging: LoggingConfig{
			Level: getEnvString("LOG_LEVEL", "info"),
			Rotation: LogRotation{
				MaxSize:    getEnvInt("LOG_MAX_SIZE", 50),
				MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
				MaxAge:     getEnvInt("LOG_MAX_AGE", 30),
				Compress:   getEnvBool("LOG_COMPRESS", true),
			},
		},
		Metrics: MetricsConfig{
			Enabled:        getEnvBool("METRICS_ENABLED", true),
			PrometheusPath: getEnvString("METRICS_PROMETHEUS_PATH", "/metrics"),
		},
		Cache: CacheConfig{
			Enabled:         getEnvBool("CACHE_ENABLED", true),
			RedisURL:        getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:         getEnvInt("CACHE_REDIS_DB", 0),
			RedisPrefix:     getEnvString("CACHE_REDIS_PREFIX", "campaign-hub:"),
			VisitorTTL:      getEnvDuration("CACHE_VISITOR_TTL", 30*24*time.Hour),
			CleanupInterval: getEnvDuration("CACHE_CLEANUP_INTERVAL", 10*time.Minute),
		},
		Deployment: DeploymentConfig{
			Environment: getEnvString("APP_ENV", "production"),
			Version:     getEnvString("VERSION", "1.0.0"),
		},
		Gateway: GatewayConfig{
			Provider:        getEnvString("GATEWAY_PROVIDER", "mock"),
			BaseURL:         getEnvString("GATEWAY_BASE_URL", "https://www.payamsms.com"),
			TokenURL:        getEnvString("GATEWAY_TOKEN_URL", "https://www.payamsms.com/auth/oauth/token"),
			SystemName:      getEnvString("GATEWAY_SYSTEM_NAME", ""),
			Username:        getEnvString("GATEWAY_USERNAME", ""),
			Password:        getEnvString("GATEWAY_PASSWORD", ""),
			Scope:           getEnvString("GATEWAY_SCOPE", "webservice"),
			GrantType:       getEnvString("GATEWAY_GRANT_TYPE", "password"),
			RootAccessToken: getEnvString("GATEWAY_ROOT_ACCESS_TOKEN", ""),
			SenderNumber:    getEnvString("GATEWAY_SENDER_NUMBER", ""),
			KakaoSenderKey:  getEnvString("GATEWAY_KAKAO_SENDER_KEY", ""),
			Timeout:         getEnvDuration("GATEWAY_TIMEOUT", 30*time.Second),
			RatePerSecond:   getEnvFloat("GATEWAY_RATE_PER_SECOND", 5),
			Burst:           getEnvInt("GATEWAY_BURST", 5),
			TokenTTL:        getEnvDuration("GATEWAY_TOKEN_TTL", 30*time.Minute),
		},
		Scheduler: SchedulerConfig{
			Enabled:             getEnvBool("SCHEDULER_ENABLED", true),
			PollInterval:        getEnvDuration("SCHEDULER_POLL_INTERVAL", 1*time.Minute),
			BatchLimit:          getEnvInt("SCHEDULER_BATCH_LIMIT", 100),
			Concurrency:         getEnvInt("SCHEDULER_CONCURRENCY", 4),
			SendTimeout:         getEnvDuration("SCHEDULER_SEND_TIMEOUT", 30*time.Second),
			ReconcileCron:       getEnvString("SCHEDULER_RECONCILE_CRON", "@every 10m"),
			StatusCheckOffsets:  getEnvDurationSlice("SCHEDULER_STATUS_CHECK_OFFSETS", []time.Duration{5 * time.Minute, time.Hour, 3 * time.Hour}),
			StatusJobMaxRetries: getEnvInt("SCHEDULER_STATUS_JOB_MAX_RETRIES", 3),
			LogFilePath:         getEnvString("SCHEDULER_LOG_FILE_PATH", "logs/scheduler.log"),
		},
		ShortLink: ShortLinkConfig{
			BaseURL:           getEnvString("SHORT_LINK_BASE_URL", "https://j.your-domain.com"),
			CodeLength:        getEnvInt("SHORT_LINK_CODE_LENGTH", 6),
			MaxAttempts:       getEnvInt("SHORT_LINK_MAX_ATTEMPTS", 5),
			BloomCapacity:     uint(getEnvInt("SHORT_LINK_BLOOM_CAPACITY", 1_000_000)),
			BloomFalsePosRate: getEnvFloat("SHORT_LINK_BLOOM_FP_RATE", 0.001),
		},
		Media: MediaConfig{
			StorageDir:   getEnvString("MEDIA_STORAGE_DIR", "data/media"),
			MaxDimension: getEnvInt("MEDIA_MAX_DIMENSION", 1280),
			JPEGQuality:  getEnvInt("MEDIA_JPEG_QUALITY", 85),
			FetchTimeout: getEnvDuration("MEDIA_FETCH_TIMEOUT", 20*time.Second),
			MaxBytes:     int64(getEnvInt("MEDIA_MAX_BYTES", 10*1024*1024)),
			CacheTTL:     getEnvDuration("MEDIA_CACHE_TTL", 24*time.Hour),
		},
		Webhook: WebhookConfig{
			URL:     getEnvString("WEBHOOK_URL", ""),
			Secret:  getEnvString("WEBHOOK_SECRET", ""),
			Timeout: getEnvDuration("WEBHOOK_TIMEOUT", 10*time.Second),
		},
		NATS: NATSConfig{
			Enabled: getEnvBool("NATS_ENABLED", false),
			URL:     getEnvString("NATS_URL", "nats://localhost:4222"),
			Stream:  getEnvString("NATS_STREAM", "ENGAGEMENT"),
			Subject: getEnvString("NATS_SUBJECT", "engagement.events"),
		},
	}

	cfg.Scheduler.LogRotation = cfg.Logging.Rotation

	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile loads .env when present. Variables already set in the environment win.
func loadEnvFile() error {
	envFile := getEnvString("ENV_FILE", ".env")
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(envFile)
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDurationSlice(key string, defaultValue []time.Duration) []time.Duration {
	items := getEnvStringSlice(key, nil)
	if len(items) == 0 {
		return defaultValue
	}
	out := make([]time.Duration, 0, len(items))
	for _, item := range items {
		d, err := time.ParseDuration(item)
		if err != nil {
			return defaultValue
		}
		out = append(out, d)
	}
	return out
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errors []string

	// Validate database configuration
	if cfg.Database.Host == "" {
		errors = append(errors, "DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		errors = append(errors, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		errors = append(errors, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		errors = append(errors, "DB_USER is required")
	}
	if cfg.Database.Password == "" {
		errors = append(errors, "DB_PASSWORD is required")
	}

	// Validate server configuration
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errors = append(errors, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errors = append(errors, "SERVER_WRITE_TIMEOUT must be positive")
	}
	if cfg.Server.IdleTimeout <= 0 {
		errors = append(errors, "SERVER_IDLE_TIMEOUT must be positive")
	}

	// Validate gateway configuration
	switch cfg.Gateway.Provider {
	case "mock":
	case "http":
		if cfg.Gateway.BaseURL == "" {
			errors = append(errors, "GATEWAY_BASE_URL is required for the http gateway")
		}
		if cfg.Gateway.Username == "" || cfg.Gateway.Password == "" {
			errors = append(errors, "GATEWAY_USERNAME and GATEWAY_PASSWORD are required for the http gateway")
		}
		if cfg.Gateway.SenderNumber == "" {
			errors = append(errors, "GATEWAY_SENDER_NUMBER is required for the http gateway")
		}
	default:
		errors = append(errors, "GATEWAY_PROVIDER must be one of: [http mock]")
	}
	if cfg.Gateway.RatePerSecond <= 0 {
		errors = append(errors, "GATEWAY_RATE_PER_SECOND must be positive")
	}

	// Validate scheduler configuration
	if cfg.Scheduler.PollInterval <= 0 {
		errors = append(errors, "SCHEDULER_POLL_INTERVAL must be positive")
	}
	if cfg.Scheduler.SendTimeout <= 0 {
		errors = append(errors, "SCHEDULER_SEND_TIMEOUT must be positive")
	}
	if cfg.Scheduler.Concurrency <= 0 {
		errors = append(errors, "SCHEDULER_CONCURRENCY must be positive")
	}

	// Validate short link configuration
	if cfg.ShortLink.CodeLength < 4 || cfg.ShortLink.CodeLength > 32 {
		errors = append(errors, "SHORT_LINK_CODE_LENGTH must be between 4 and 32")
	}
	if cfg.ShortLink.MaxAttempts <= 0 {
		errors = append(errors, "SHORT_LINK_MAX_ATTEMPTS must be positive")
	}
	if cfg.ShortLink.BloomFalsePosRate <= 0 || cfg.ShortLink.BloomFalsePosRate >= 1 {
		errors = append(errors, "SHORT_LINK_BLOOM_FP_RATE must be between 0 and 1")
	}

	// Validate media configuration
	if cfg.Media.JPEGQuality < 1 || cfg.Media.JPEGQuality > 100 {
		errors = append(errors, "MEDIA_JPEG_QUALITY must be between 1 and 100")
	}

	if cfg.NATS.Enabled && cfg.NATS.URL == "" {
		errors = append(errors, "NATS_URL is required when NATS is enabled")
	}

	// Validate TLS configuration if enabled
	if cfg.Security.TLSEnabled {
		if cfg.Security.TLSCertFile == "" {
			errors = append(errors, "TLS_CERT_FILE is required when TLS is enabled")
		}
		if cfg.Security.TLSKeyFile == "" {
			errors = append(errors, "TLS_KEY_FILE is required when TLS is enabled")
		}
	}

	// Validate logging configuration
	if cfg.Logging.Level != "" {
		validLevels := []string{"debug", "info", "warn", "error"}
		valid := false
		for _, level := range validLevels {
			if cfg.Logging.Level == level {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
		}
	}

	if cfg.Cache.Enabled && cfg.Cache.RedisURL == "" {
		errors = append(errors, "CACHE_REDIS_URL is required when cache is enabled")
	}
	if cfg.Server.EnableCompression && (cfg.Server.CompressionLevel < 1 || cfg.Server.CompressionLevel > 9) {
		errors = append(errors, "SERVER_COMPRESSION_LEVEL must be between 1 and 9")
	}

	// Return validation errors if any
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}
