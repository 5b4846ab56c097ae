// Package config loads gateway settings from the environment.
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds every tunable of the gateway.
type Config struct {
	HTTPPort        int
	ShutdownTimeout time.Duration

	DBDriver    string
	DBPath      string
	DatabaseURL string
	DBDebug     bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CachePrefix   string

	RelayIdleTimeout   time.Duration
	RelayWriteTimeout  time.Duration
	RelayRateLimit     float64
	RelayRateBurst     int
	RelayPruneSchedule string

	ModelServerURL     string
	ModelClassesPath   string
	CropClassesPath    string
	ModelNumClasses    int
	ModelArchitecture  string
	ModelDevice        string
	ModelMinConfidence float64
	ModelTimeout       time.Duration

	GeminiAPIKey     string
	GeminiModel      string
	GeminiURL        string
	GeminiTimeout    time.Duration
	AdvisoryCacheTTL time.Duration

	WeatherAPIURL   string
	WeatherAPIKey   string
	WeatherCacheTTL time.Duration
	WeatherTimeout  time.Duration

	RateLimitMax    int
	RateLimitWindow time.Duration
}

// Load reads the configuration from environment variables.
func Load() Config {
	return Config{
		HTTPPort:        getEnvInt("HTTP_PORT", 3000),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DBDriver:    getEnv("DB_DRIVER", "sqlite"),
		DBPath:      getEnv("DB_PATH", "cropcare.db"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		DBDebug:     getEnvBool("DB_DEBUG", false),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		CachePrefix:   getEnv("CACHE_PREFIX", "cropcare:"),

		RelayIdleTimeout:   getEnvDuration("RELAY_IDLE_TIMEOUT", 0),
		RelayWriteTimeout:  getEnvDuration("RELAY_WRITE_TIMEOUT", 10*time.Second),
		RelayRateLimit:     getEnvFloat("RELAY_RATE_LIMIT", 10),
		RelayRateBurst:     getEnvInt("RELAY_RATE_BURST", 20),
		RelayPruneSchedule: getEnv("RELAY_PRUNE_SCHEDULE", "@every 5m"),

		ModelServerURL:     getEnv("MODEL_SERVER_URL", ""),
		ModelClassesPath:   getEnv("MODEL_CLASSES_PATH", "model/classes.json"),
		CropClassesPath:    getEnv("CROP_CLASSES_PATH", "model/crop_classes.json"),
		ModelNumClasses:    getEnvInt("MODEL_NUM_CLASSES", 38),
		ModelArchitecture:  getEnv("MODEL_ARCHITECTURE", "ResNet18"),
		ModelDevice:        getEnv("MODEL_DEVICE", "cpu"),
		ModelMinConfidence: getEnvFloat("MODEL_MIN_CONFIDENCE", 0.5),
		ModelTimeout:       getEnvDuration("MODEL_TIMEOUT", 15*time.Second),

		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiURL:        getEnv("GEMINI_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiTimeout:    getEnvDuration("GEMINI_TIMEOUT", 30*time.Second),
		AdvisoryCacheTTL: getEnvDuration("ADVISORY_CACHE_TTL", 24*time.Hour),

		WeatherAPIURL:   getEnv("WEATHER_API_URL", "https://api.openweathermap.org"),
		WeatherAPIKey:   getEnv("WEATHER_API_KEY", ""),
		WeatherCacheTTL: getEnvDuration("WEATHER_CACHE_TTL", 10*time.Minute),
		WeatherTimeout:  getEnvDuration("WEATHER_TIMEOUT", 10*time.Second),

		RateLimitMax:    getEnvInt("RATE_LIMIT_MAX", 30),
		RateLimitWindow: getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
	}
}

// CacheEnabled reports whether a Redis address was configured.
func (c Config) CacheEnabled() bool {
	return c.RedisAddr != ""
}

// getEnv returns environment variable value or default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns environment variable as int or default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: invalid int value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvFloat returns environment variable as float64 or default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
		log.Printf("Warning: invalid float value for %s: %s, using default: %g", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvBool returns environment variable as bool or default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
		log.Printf("Warning: invalid bool value for %s: %s, using default: %t", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvDuration returns environment variable as duration or default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		log.Printf("Warning: invalid duration value for %s: %s, using default: %s", key, value, defaultValue)
	}
	return defaultValue
}
