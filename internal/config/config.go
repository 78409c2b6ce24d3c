package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	HTTPAddr string

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

	Scheduler SchedulerConfig
	Queue     QueueConfig
	Inventory InventoryConfig
	RateLimit RateLimitConfig
}

// SchedulerConfig controls the lifecycle scheduler tick.
type SchedulerConfig struct {
	TickInterval time.Duration
	LockTTL      time.Duration
}

// QueueConfig carries admission-queue defaults applied when a queue is
// configured without explicit values.
type QueueConfig struct {
	DefaultMaxCapacity int
	DefaultBatchSize   int
	DefaultInterval    time.Duration
	EntryTTL           time.Duration
}

// InventoryConfig bounds how long a mutation may wait on a row lock.
type InventoryConfig struct {
	LockTimeout time.Duration
}

// RateLimitConfig throttles per-user claim attempts on the hot path.
type RateLimitConfig struct {
	Enabled   bool
	UserRate  float64
	UserBurst int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "flashsale"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),

		HTTPAddr: getenv("HTTP_ADDR", ":8080"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "flashsale"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),

		Scheduler: SchedulerConfig{
			TickInterval: getenvDuration("SCHEDULER_TICK_INTERVAL", time.Minute),
			LockTTL:      getenvDuration("SCHEDULER_LOCK_TTL", 45*time.Second),
		},
		Queue: QueueConfig{
			DefaultMaxCapacity: getenvInt("QUEUE_DEFAULT_MAX_CAPACITY", 100),
			DefaultBatchSize:   getenvInt("QUEUE_DEFAULT_BATCH_SIZE", 10),
			DefaultInterval:    getenvDuration("QUEUE_DEFAULT_INTERVAL", 5*time.Second),
			EntryTTL:           getenvDuration("QUEUE_ENTRY_TTL", 10*time.Minute),
		},
		Inventory: InventoryConfig{
			LockTimeout: getenvDuration("INVENTORY_LOCK_TIMEOUT", 3*time.Second),
		},
		RateLimit: RateLimitConfig{
			Enabled:   getenvBool("RATE_LIMIT_ENABLED", false),
			UserRate:  getenvFloat("RATE_LIMIT_USER_RATE", 5),
			UserBurst: getenvInt("RATE_LIMIT_USER_BURST", 10),
		},
	}

	return cfg
}

var Module = fx.Module("config",
	fx.Provide(Load),
)

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
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
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
