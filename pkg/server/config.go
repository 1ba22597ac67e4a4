package server

import (
	"os"
	"strconv"
	"time"
)

// DefaultPort is the dashboard port.
const DefaultPort = 8049

// DefaultConfig returns sensible defaults, with PORT taken from the
// environment when set.
func DefaultConfig() *Config {
	cfg := &Config{
		Address:         "0.0.0.0",
		Port:            DefaultPort,
		RateLimit:       100,
		RateLimitBurst:  200,
		CacheMaxAge:     60,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}

	if portStr := os.Getenv("PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			cfg.Port = port
		}
	}

	return cfg
}
