// Package config handles process configuration and runtime settings
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the process configuration read from the environment once at startup.
type Config struct {
	HTTPAddr          string
	EstimatorAddr     string
	EstimatorTimeout  time.Duration
	RedisAddr         string // empty selects the in-memory store
	RedisPassword     string
	RedisDB           int
	RetentionHours    float64 // 0 disables trimming
	SettingsPath      string
	WatchSettings     bool
	SkipSimilarFrames bool
	LogLevel          string
	Production        bool
	AllowedOrigins    []string
}

func Load() *Config {
	return &Config{
		HTTPAddr:          getEnv("HTTP_ADDR", ":8000"),
		EstimatorAddr:     getEnv("ESTIMATOR_ADDR", "localhost:50051"),
		EstimatorTimeout:  time.Duration(getEnvInt("ESTIMATOR_TIMEOUT_MS", 500)) * time.Millisecond,
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		RetentionHours:    getEnvFloat("RETENTION_HOURS", 24),
		SettingsPath:      getEnv("SETTINGS_PATH", "config.yaml"),
		WatchSettings:     getEnvBool("WATCH_SETTINGS", true),
		SkipSimilarFrames: getEnvBool("SKIP_SIMILAR_FRAMES", false),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		Production:        getEnv("GO_ENV", "") == "production",
		AllowedOrigins:    getEnvList("ALLOWED_ORIGINS", []string{"*"}),
	}
}

// Retention returns the history retention as a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionHours * float64(time.Hour))
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		return result
	}
	return def
}
