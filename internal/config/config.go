package config

import (
	"os"
	"strconv"
	"time"

	"github.com/distnet/coordinator/internal/database"
)

type Config struct {
	Port        string
	Environment string

	HeartbeatTimeout time.Duration
	ReaperInterval   time.Duration

	// FailOnWorkerFailure marks a task failed instead of completed when
	// any of its workers ended in failure.
	FailOnWorkerFailure bool

	RateLimitPerSecond int
	RateLimitBurst     int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Database database.Config
}

func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "5050"),
		Environment: getEnv("ENVIRONMENT", "development"),

		HeartbeatTimeout: getEnvAsDuration("WORKER_HEARTBEAT_TIMEOUT", 120*time.Second),
		ReaperInterval:   getEnvAsDuration("REAPER_INTERVAL", 30*time.Second),

		FailOnWorkerFailure: getEnvAsBool("FAIL_ON_WORKER_FAILURE", false),

		RateLimitPerSecond: getEnvAsInt("RATE_LIMIT_PER_SECOND", 50),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 100),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		Database: database.Config{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "password"),
			DBName:          getEnv("DB_NAME", "nettest"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
