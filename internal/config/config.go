package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application's configuration values.
type Config struct {
	DatabaseDriver string
	DatabaseURL    string

	// CheckTick is how often the monitor loop wakes up and looks for due
	// sites; each site's own interval decides whether it is actually checked.
	CheckTick      time.Duration
	MaxConcurrency int
	HTTPTimeout    time.Duration
	ProbeDeadline  time.Duration // hard per-site ceiling covering HTTP, DNS and screenshot

	MinInterval      int // minutes, caller-facing floor for add requests
	DefaultInterval  int // minutes, used when an add request carries no interval
	FailureThreshold int

	ScreenshotsEnabled bool
	ScreenshotDir      string
	ScreenshotTimeout  time.Duration

	HTTPPort      string
	ShutdownGrace time.Duration
}

// Load loads configuration from a .env file (if present) and the
// environment, with sane defaults.
func Load() *Config {
	// Missing .env is fine; the environment still wins.
	_ = godotenv.Load()

	return &Config{
		DatabaseDriver: getEnv("DATABASE_DRIVER", "sqlite"),
		DatabaseURL:    getEnv("DATABASE_URL", "sitewatch.db"),

		CheckTick:      getEnvDuration("CHECK_TICK", time.Minute),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 8),
		HTTPTimeout:    getEnvDuration("HTTP_TIMEOUT", 30*time.Second),
		ProbeDeadline:  getEnvDuration("PROBE_DEADLINE", 60*time.Second),

		MinInterval:      getEnvInt("MIN_INTERVAL_MINUTES", 5),
		DefaultInterval:  getEnvInt("DEFAULT_INTERVAL_MINUTES", 30),
		FailureThreshold: getEnvInt("FAILURE_THRESHOLD", 3),

		ScreenshotsEnabled: getEnvBool("SCREENSHOTS_ENABLED", false),
		ScreenshotDir:      getEnv("SCREENSHOT_DIR", "screenshots"),
		ScreenshotTimeout:  getEnvDuration("SCREENSHOT_TIMEOUT", 20*time.Second),

		HTTPPort:      getEnv("HTTP_PORT", "8080"),
		ShutdownGrace: getEnvDuration("SHUTDOWN_GRACE", 10*time.Second),
	}
}

// Helper function to get an environment variable or return a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// Helper function to get an environment variable as an integer.
func getEnvInt(key string, fallback int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return fallback
}

// Helper function to get an environment variable as a boolean.
func getEnvBool(key string, fallback bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return fallback
}

// Helper function to get an environment variable as a time.Duration.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return fallback
}
