package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	SLA          SLAConfig
	Health       HealthConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// KeyPrefix namespaces every key this service writes.
	KeyPrefix string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines bearer token parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// NotificationConfig controls the external event fan-out.
type NotificationConfig struct {
	RedisChannel string
	WebhookURL   string
}

// SLAConfig drives deadline computation and the breach sweep.
type SLAConfig struct {
	// PolicyFile is an optional YAML file with SLA policies and business-hours schedules.
	PolicyFile          string
	SweepSchedule       string
	SweepWorkers        int
	SweepTimeoutSeconds int
	SweepLockKey        int64
}

// HealthConfig tunes the tenant support health score.
type HealthConfig struct {
	WindowDays            int
	ResponseTargetMinutes int
	CacheTTLSeconds       int
	BreachWeight          float64
	ResponseWeight        float64
	ResolutionWeight      float64
	NegativeEventWeight   float64
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	lockKey, err := strconv.ParseInt(getEnv("SLA_SWEEP_LOCK_KEY", "7311"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid SLA_SWEEP_LOCK_KEY: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "support-sla-engine"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        redisDB,
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "support"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Notification: NotificationConfig{
			RedisChannel: getEnv("NOTIFY_REDIS_CHANNEL", "support.ticket.events"),
			WebhookURL:   getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
		SLA: SLAConfig{
			PolicyFile:          os.Getenv("SLA_CONFIG_FILE"),
			SweepSchedule:       getEnv("SLA_SWEEP_SCHEDULE", "@every 5m"),
			SweepWorkers:        getEnvAsInt("SLA_SWEEP_WORKERS", 8),
			SweepTimeoutSeconds: getEnvAsInt("SLA_SWEEP_TIMEOUT_SECONDS", 120),
			SweepLockKey:        lockKey,
		},
		Health: HealthConfig{
			WindowDays:            getEnvAsInt("HEALTH_WINDOW_DAYS", 30),
			ResponseTargetMinutes: getEnvAsInt("HEALTH_RESPONSE_TARGET_MINUTES", 240),
			CacheTTLSeconds:       getEnvAsInt("HEALTH_CACHE_TTL_SECONDS", 300),
			BreachWeight:          getEnvAsFloat("HEALTH_WEIGHT_BREACH", 0.40),
			ResponseWeight:        getEnvAsFloat("HEALTH_WEIGHT_RESPONSE", 0.25),
			ResolutionWeight:      getEnvAsFloat("HEALTH_WEIGHT_RESOLUTION", 0.15),
			NegativeEventWeight:   getEnvAsFloat("HEALTH_WEIGHT_NEGATIVE_EVENTS", 0.20),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// SweepTimeout bounds a single sweep run.
func (s SLAConfig) SweepTimeout() time.Duration {
	if s.SweepTimeoutSeconds <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(s.SweepTimeoutSeconds) * time.Second
}

// Window returns the rolling aggregation window.
func (h HealthConfig) Window() time.Duration {
	days := h.WindowDays
	if days <= 0 {
		days = 30
	}
	return time.Duration(days) * 24 * time.Hour
}

// ResponseTarget is the first-response p90 that still earns a full component score.
func (h HealthConfig) ResponseTarget() time.Duration {
	if h.ResponseTargetMinutes <= 0 {
		return 4 * time.Hour
	}
	return time.Duration(h.ResponseTargetMinutes) * time.Minute
}

// CacheTTL returns zero when caching is disabled.
func (h HealthConfig) CacheTTL() time.Duration {
	if h.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(h.CacheTTLSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
