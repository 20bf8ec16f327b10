package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	AuthJWTSecret   string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Worker WorkerConfig

	LogLevel  string
	LogFormat string

	SeedDemoData bool
}

// WorkerConfig holds queue worker knobs shared by the API and worker processes.
type WorkerConfig struct {
	Concurrency     int
	PollInterval    time.Duration
	ShutdownGrace   time.Duration
	DequeueTimeout  time.Duration
	HeartbeatPeriod time.Duration
	MaxTaskAttempts int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "campledger"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		AuthJWTSecret:   strings.TrimSpace(getenv("AUTH_JWT_SECRET", "dev-secret-change-me")),
		AccessTokenTTL:  getenvDuration("AUTH_ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL: getenvDuration("AUTH_REFRESH_TOKEN_TTL", 7*24*time.Hour),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "campledger"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 5)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 25)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 1800)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 300)),

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       int(getenvInt64("REDIS_DB", 0)),

		Worker: WorkerConfig{
			Concurrency:     int(getenvInt64("WORKER_CONCURRENCY", 5)),
			PollInterval:    getenvDuration("WORKER_POLL_INTERVAL", time.Second),
			ShutdownGrace:   getenvDuration("WORKER_SHUTDOWN_GRACE", 30*time.Second),
			DequeueTimeout:  getenvDuration("WORKER_DEQUEUE_TIMEOUT", 5*time.Second),
			HeartbeatPeriod: getenvDuration("SSE_HEARTBEAT_PERIOD", 30*time.Second),
			MaxTaskAttempts: int(getenvInt64("WORKER_MAX_TASK_ATTEMPTS", 3)),
		},

		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "json"),

		SeedDemoData: getenvBool("SEED_DEMO_DATA", false),
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
