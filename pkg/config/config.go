package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/permitdesk/permitdesk/pkg/observability"
	"github.com/permitdesk/permitdesk/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage configuration
	Storage storage.Config

	// Observability configuration
	Observability ObservabilityConfig

	// Notification dispatcher configuration
	Notifications NotificationsConfig

	// Rate limiting configuration
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// NotificationsConfig holds notification dispatcher settings
type NotificationsConfig struct {
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
	MaxAttempts int
}

// RateLimitConfig holds request rate limiting settings
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Observability: loadObservabilityConfig(),
		Notifications: loadNotificationsConfig(),
		RateLimit:     loadRateLimitConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("PERMITDESK_HOST", "0.0.0.0"),
		Port:            getEnv("PERMITDESK_PORT", "8080"),
		ReadTimeout:     getEnvDuration("PERMITDESK_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("PERMITDESK_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("PERMITDESK_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("PERMITDESK_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("PERMITDESK_HEALTH_PORT", "9090"),
	}
}

func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	cfg.PostgresURL = getEnv("PERMITDESK_POSTGRES_URL", "")
	if replicaURLs := getEnv("PERMITDESK_POSTGRES_REPLICA_URLS", ""); replicaURLs != "" {
		cfg.PostgresReplicaURLs = strings.Split(replicaURLs, ",")
	}
	if maxConns := getEnvInt("PERMITDESK_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("PERMITDESK_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.PostgresMinConns = minConns
	}
	if timeout := getEnvDuration("PERMITDESK_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.PostgresTimeout = timeout
	}

	cfg.RedisURL = getEnv("PERMITDESK_REDIS_URL", "")
	cfg.RedisPassword = getEnv("PERMITDESK_REDIS_PASSWORD", "")
	if redisDB := getEnvInt("PERMITDESK_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if poolSize := getEnvInt("PERMITDESK_REDIS_POOL_SIZE", 0); poolSize > 0 {
		cfg.RedisPoolSize = poolSize
	}

	cfg.S3Endpoint = getEnv("PERMITDESK_S3_ENDPOINT", "")
	if region := getEnv("PERMITDESK_S3_REGION", ""); region != "" {
		cfg.S3Region = region
	}
	cfg.S3Bucket = getEnv("PERMITDESK_S3_BUCKET", "")
	cfg.S3AccessKey = getEnv("PERMITDESK_S3_ACCESS_KEY", "")
	cfg.S3SecretKey = getEnv("PERMITDESK_S3_SECRET_KEY", "")
	cfg.S3UsePathStyle = getEnvBool("PERMITDESK_S3_USE_PATH_STYLE", false)

	return cfg
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("PERMITDESK_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("PERMITDESK_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("PERMITDESK_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("PERMITDESK_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("PERMITDESK_OTEL_SERVICE_NAME", "permitdesk"),
		OTelServiceVersion: getEnv("PERMITDESK_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("PERMITDESK_OTEL_INSECURE", true),
	}
}

func loadNotificationsConfig() NotificationsConfig {
	return NotificationsConfig{
		Workers:     getEnvInt("PERMITDESK_NOTIFICATION_WORKERS", 4),
		QueueSize:   getEnvInt("PERMITDESK_NOTIFICATION_QUEUE_SIZE", 1024),
		SendTimeout: getEnvDuration("PERMITDESK_NOTIFICATION_SEND_TIMEOUT", 10*time.Second),
		MaxAttempts: getEnvInt("PERMITDESK_NOTIFICATION_MAX_ATTEMPTS", 5),
	}
}

func loadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:           getEnvBool("PERMITDESK_RATELIMIT_ENABLED", true),
		RequestsPerWindow: getEnvInt("PERMITDESK_RATELIMIT_REQUESTS", 300),
		WindowDuration:    getEnvDuration("PERMITDESK_RATELIMIT_WINDOW", time.Minute),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Storage.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.Notifications.Workers <= 0 {
		return fmt.Errorf("notification workers must be positive")
	}
	if c.Notifications.QueueSize <= 0 {
		return fmt.Errorf("notification queue size must be positive")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerWindow <= 0 {
			return fmt.Errorf("rate limit requests per window must be positive")
		}
		if c.RateLimit.WindowDuration <= 0 {
			return fmt.Errorf("rate limit window must be positive")
		}
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
