// Package config loads the process's environment-variable
// configuration. The process boundary here is a database
// connection string, the Queue Processor's poll intervals, the HTTP
// and metrics listen addresses, and the log level.
package config

import (
	"fmt"
	"os"
	"time"
)

// Config is the full set of environment-derived settings this
// repository reads at startup.
type Config struct {
	DatabaseURL    string
	ServerAddress  string
	MetricsAddress string
	IdleInterval   time.Duration
	ErrorInterval  time.Duration
	LogLevel       string
}

// Load reads Config from the environment, applying the same defaults
// the Queue Processor uses for its poll intervals.
func Load() (*Config, error) {
	databaseURL := getEnv("DATABASE_URL", "")
	if databaseURL == "" {
		return nil, fmt.Errorf("config: DATABASE_URL is required")
	}
	return &Config{
		DatabaseURL:    databaseURL,
		ServerAddress:  getEnv("SERVER_ADDRESS", ":8080"),
		MetricsAddress: getEnv("METRICS_ADDRESS", ":9090"),
		IdleInterval:   getEnvAsDuration("QUEUE_IDLE_INTERVAL", time.Second),
		ErrorInterval:  getEnvAsDuration("QUEUE_ERROR_INTERVAL", 5*time.Second),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultValue
	}
	return d
}
