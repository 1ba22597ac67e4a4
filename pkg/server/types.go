package server

import (
	"net"
	"strconv"
	"time"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Code      string         `json:"code" yaml:"code"`
	Message   string         `json:"message" yaml:"message"`
	Details   map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
	RequestID string         `json:"requestId" yaml:"requestId"`
	Timestamp time.Time      `json:"timestamp" yaml:"timestamp"`
	Retryable bool           `json:"retryable" yaml:"retryable"`
}

// HealthResponse is the body of /health and /ready.
type HealthResponse struct {
	Status    string    `json:"status" yaml:"status"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Reason    string    `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Config holds server configuration
type Config struct {
	Address string `json:"address" yaml:"address" koanf:"address"`
	Port    int    `json:"port" yaml:"port" koanf:"port" validate:"min=1,max=65535"`

	// RateLimit is requests per second for rate limited routes; 0 disables.
	RateLimit      float64 `json:"rateLimit" yaml:"rateLimit" koanf:"ratelimit" validate:"gte=0"`
	RateLimitBurst int     `json:"rateLimitBurst" yaml:"rateLimitBurst" koanf:"ratelimitburst" validate:"gte=0"`

	// CacheMaxAge is the Cache-Control max-age of chart responses, in seconds.
	CacheMaxAge int `json:"cacheMaxAge" yaml:"cacheMaxAge" koanf:"cachemaxage" validate:"gte=0"`

	ReadTimeout     time.Duration `json:"readTimeout" yaml:"readTimeout" koanf:"readtimeout"`
	WriteTimeout    time.Duration `json:"writeTimeout" yaml:"writeTimeout" koanf:"writetimeout"`
	IdleTimeout     time.Duration `json:"idleTimeout" yaml:"idleTimeout" koanf:"idletimeout"`
	ShutdownTimeout time.Duration `json:"shutdownTimeout" yaml:"shutdownTimeout" koanf:"shutdowntimeout"`
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}
