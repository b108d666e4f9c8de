package http

import (
	"time"

	"interview-analyzer/pkg/ratelimit"
)

// Config holds the HTTP server configuration
type Config struct {
	// Port is the HTTP server port
	Port int `json:"port"`

	// EnableMetrics determines if the Prometheus endpoint is mounted
	EnableMetrics bool `json:"enable_metrics"`

	// MetricsPath is the path for metrics endpoint
	MetricsPath string `json:"metrics_path"`

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration `json:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. Streaming endpoints clear it per request.
	WriteTimeout time.Duration `json:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	IdleTimeout time.Duration `json:"idle_timeout"`

	// MaxBodyBytes caps request bodies on the API routes
	MaxBodyBytes int64 `json:"max_body_bytes"`

	// EventBuffer is the per-client buffer for SSE and websocket streams
	EventBuffer int `json:"event_buffer"`

	// PingInterval is how often websocket clients are pinged
	PingInterval time.Duration `json:"ping_interval"`

	// RateLimit throttles API clients; nil disables it
	RateLimit *ratelimit.Config `json:"rate_limit,omitempty"`
}

// NewDefaultConfig returns a new default configuration
func NewDefaultConfig() *Config {
	return &Config{
		Port:          8080,
		EnableMetrics: true,
		MetricsPath:   "/metrics",
		ReadTimeout:   10 * time.Second,
		WriteTimeout:  30 * time.Second,
		IdleTimeout:   60 * time.Second,
		MaxBodyBytes:  1 << 20,
		EventBuffer:   64,
		PingInterval:  54 * time.Second,
	}
}

func (c *Config) withDefaults() *Config {
	d := NewDefaultConfig()
	if c == nil {
		return d
	}
	out := *c
	if out.Port <= 0 {
		out.Port = d.Port
	}
	if out.MetricsPath == "" {
		out.MetricsPath = d.MetricsPath
	}
	if out.MaxBodyBytes <= 0 {
		out.MaxBodyBytes = d.MaxBodyBytes
	}
	if out.EventBuffer <= 0 {
		out.EventBuffer = d.EventBuffer
	}
	if out.PingInterval <= 0 {
		out.PingInterval = d.PingInterval
	}
	return &out
}
