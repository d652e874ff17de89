// Package config provides configuration for the coach service.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/xiaot623/gogo/coach/internal/domain"
	"github.com/xiaot623/gogo/coach/internal/retry"
)

// Config holds the coach service configuration.
type Config struct {
	// Server settings
	HTTPPort    int
	Env         string
	LogLevel    string
	BodyLimit   string
	CORSOrigins []string

	// Database
	DatabaseURL string

	// Downstream generators
	WorkoutURL string
	MealURL    string

	// Timeouts
	RequestTimeout   time.Duration
	GeneratorTimeout time.Duration
	StorageTimeout   time.Duration

	// Per-service retry policies
	Retry map[domain.ServiceID]retry.Config

	// Per-service retryable error lexicon
	RetryablePatterns map[domain.ServiceID][]string

	// Meal optimizer
	MealPlanCacheTTL   time.Duration
	SuggestionCacheTTL time.Duration
	DefaultPlanDays    int
}

// DefaultRetry returns the built-in retry policy per service.
func DefaultRetry() map[domain.ServiceID]retry.Config {
	return map[domain.ServiceID]retry.Config{
		domain.ServiceWorkout: {MaxRetries: 3, BaseDelay: time.Second, MaxDelay: 8 * time.Second, Multiplier: 2},
		domain.ServiceMeal:    {MaxRetries: 2, BaseDelay: 500 * time.Millisecond, MaxDelay: 2 * time.Second, Multiplier: 2},
		domain.ServiceStorage: {MaxRetries: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2},
	}
}

// DefaultRetryablePatterns returns the built-in retryable error lexicon.
func DefaultRetryablePatterns() map[domain.ServiceID][]string {
	return map[domain.ServiceID][]string{
		domain.ServiceWorkout: {
			"throttling", "rate limit", "service unavailable", "internal error",
			"timeout", "connection", "bedrock.*unavailable", "model.*unavailable",
		},
		domain.ServiceMeal: {
			"rate limit", "quota exceeded", "service unavailable", "internal server error",
			"timeout", "connection", "spoonacular.*unavailable", "api.*unavailable",
			"429", "502", "503", "504",
		},
		domain.ServiceStorage: {
			"throttling", "provisioned throughput", "service unavailable",
			"internal server error", "timeout", "connection",
			"database is locked", "busy",
		},
	}
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first when present.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPPort:           getEnvInt("HTTP_PORT", 8080),
		Env:                getEnv("APP_ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		BodyLimit:          getEnv("BODY_LIMIT", "1M"),
		CORSOrigins:        getEnvList("CORS_ORIGINS", []string{"*"}),
		DatabaseURL:        getEnv("DATABASE_URL", "file:coach.db?cache=shared&mode=rwc"),
		WorkoutURL:         getEnv("WORKOUT_GENERATOR_URL", "http://localhost:8091"),
		MealURL:            getEnv("MEAL_PLANNER_URL", "http://localhost:8080/v1/meal-plans"),
		RequestTimeout:     getEnvDuration("REQUEST_TIMEOUT_MS", 30*time.Second),
		GeneratorTimeout:   getEnvDuration("GENERATOR_TIMEOUT_MS", 15*time.Second),
		StorageTimeout:     getEnvDuration("STORAGE_TIMEOUT_MS", 5*time.Second),
		Retry:              DefaultRetry(),
		RetryablePatterns:  DefaultRetryablePatterns(),
		MealPlanCacheTTL:   getEnvDuration("MEAL_PLAN_CACHE_TTL_MS", 2*time.Hour),
		SuggestionCacheTTL: getEnvDuration("SUGGESTION_CACHE_TTL_MS", 30*time.Minute),
		DefaultPlanDays:    getEnvInt("DEFAULT_PLAN_DAYS", 7),
	}

	for service, rc := range cfg.Retry {
		cfg.Retry[service] = loadRetry(service, rc)
	}
	for service, patterns := range cfg.RetryablePatterns {
		key := "RETRYABLE_PATTERNS_" + strings.ToUpper(string(service))
		cfg.RetryablePatterns[service] = getEnvList(key, patterns)
	}

	return cfg
}

// RetryFor returns the retry policy for service, falling back to the workout policy.
func (c *Config) RetryFor(service domain.ServiceID) retry.Config {
	if rc, ok := c.Retry[service]; ok {
		return rc
	}
	return c.Retry[domain.ServiceWorkout]
}

// loadRetry overrides a retry policy from <SERVICE>_MAX_RETRIES,
// <SERVICE>_BASE_DELAY_MS, <SERVICE>_MAX_DELAY_MS and <SERVICE>_BACKOFF_MULTIPLIER.
func loadRetry(service domain.ServiceID, rc retry.Config) retry.Config {
	prefix := strings.ToUpper(string(service)) + "_"
	rc.MaxRetries = getEnvInt(prefix+"MAX_RETRIES", rc.MaxRetries)
	rc.BaseDelay = getEnvDuration(prefix+"BASE_DELAY_MS", rc.BaseDelay)
	rc.MaxDelay = getEnvDuration(prefix+"MAX_DELAY_MS", rc.MaxDelay)
	rc.Multiplier = getEnvFloat(prefix+"BACKOFF_MULTIPLIER", rc.Multiplier)
	return rc
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// getEnvDuration reads a millisecond count.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if ms, err := strconv.Atoi(val); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
