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

	LogLevel  string
	LogFormat string

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

	Pool PoolConfig
}

// PoolConfig carries the allocation engine knobs.
type PoolConfig struct {
	// MaxClaimBatch caps max_count on a single pull call.
	MaxClaimBatch int
	// AllocationTTL is how long an unconfirmed lease survives.
	AllocationTTL time.Duration
	// ReclaimInterval is the period of the background sweep.
	ReclaimInterval time.Duration
	// LockWait bounds claim/report transactions so callers fail fast with a
	// retryable error instead of queueing behind row locks.
	LockWait time.Duration
	// ClampByteRegression accepts byte reports lower than the stored value
	// by clamping to the stored value instead of rejecting the report.
	ClampByteRegression bool
	// ResetBytesOnReclaim zeroes partial progress when a stale lease is
	// returned to the pool.
	ResetBytesOnReclaim bool
	// RequeueFailed returns failed packages to the available pool during
	// the sweep. Off by default: failed packages stay retired.
	RequeueFailed bool
	// ClaimRatePerMinute limits pull calls per buyer when Redis is
	// configured. Zero disables the limiter.
	ClaimRatePerMinute int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "packetpool"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "json"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "packetpool"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),

		Pool: PoolConfig{
			MaxClaimBatch:       getenvInt("POOL_MAX_CLAIM_BATCH", 10),
			AllocationTTL:       getenvDuration("POOL_ALLOCATION_TTL", time.Minute),
			ReclaimInterval:     getenvDuration("POOL_RECLAIM_INTERVAL", 30*time.Second),
			LockWait:            getenvDuration("POOL_LOCK_WAIT", 2*time.Second),
			ClampByteRegression: getenvBool("POOL_CLAMP_BYTE_REGRESSION", false),
			ResetBytesOnReclaim: getenvBool("POOL_RESET_BYTES_ON_RECLAIM", true),
			RequeueFailed:       getenvBool("POOL_REQUEUE_FAILED", false),
			ClaimRatePerMinute:  getenvInt("POOL_CLAIM_RATE_PER_MINUTE", 0),
		},
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
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
