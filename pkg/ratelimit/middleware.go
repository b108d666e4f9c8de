package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"interview-analyzer/pkg/correlation"
	"interview-analyzer/pkg/errors"
	"interview-analyzer/pkg/metrics"
)

// Config holds the API rate limiter configuration
type Config struct {
	Enabled           bool
	RequestsPerSecond float64
	BurstSize         int

	// BlockDuration is how long a client is refused after exhausting its burst
	BlockDuration time.Duration

	// WhitelistedIPs bypass the limiter. Entries may be CIDR ranges.
	WhitelistedIPs []string

	// WhitelistedPaths bypass the limiter. A trailing * matches a prefix.
	WhitelistedPaths []string
}

// DefaultConfig returns sensible defaults for rate limiting
func DefaultConfig() *Config {
	return &Config{
		Enabled:           false,
		RequestsPerSecond: 20,
		BurstSize:         40,
		BlockDuration:     time.Minute,
		WhitelistedIPs:    []string{"127.0.0.1", "::1"},
		WhitelistedPaths:  []string{"/health*", "/metrics"},
	}
}

// HTTPMiddleware throttles API requests per client address
type HTTPMiddleware struct {
	limiter          *Limiter
	config           *Config
	logger           *logrus.Logger
	whitelistedIPs   map[string]bool
	whitelistedNets  []*net.IPNet
	whitelistedPaths []string
}

// NewHTTPMiddleware creates the middleware. A disabled config yields a
// pass-through middleware with no limiter.
func NewHTTPMiddleware(config *Config, logger *logrus.Logger) *HTTPMiddleware {
	if config == nil {
		config = DefaultConfig()
	}
	m := &HTTPMiddleware{
		config:           config,
		logger:           logger,
		whitelistedIPs:   make(map[string]bool),
		whitelistedPaths: config.WhitelistedPaths,
	}
	if !config.Enabled {
		return m
	}
	m.limiter = NewLimiter(config.RequestsPerSecond, config.BurstSize, logger)

	for _, ip := range config.WhitelistedIPs {
		ip = strings.TrimSpace(ip)
		switch {
		case ip == "":
		case strings.Contains(ip, "/"):
			if _, ipNet, err := net.ParseCIDR(ip); err == nil {
				m.whitelistedNets = append(m.whitelistedNets, ipNet)
			} else {
				logger.WithError(err).Warnf("Invalid CIDR in rate limit whitelist: %s", ip)
			}
		default:
			m.whitelistedIPs[ip] = true
		}
	}

	logger.WithFields(logrus.Fields{
		"rps":             config.RequestsPerSecond,
		"burst":           config.BurstSize,
		"whitelisted_ips": len(m.whitelistedIPs) + len(m.whitelistedNets),
	}).Info("HTTP rate limiting enabled")

	return m
}

// Middleware wraps next with rate limiting
func (m *HTTPMiddleware) Middleware(next http.Handler) http.Handler {
	if m.limiter == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := correlation.ClientIP(r)
		if m.isPathWhitelisted(r.URL.Path) || m.isIPWhitelisted(clientIP) {
			next.ServeHTTP(w, r)
			return
		}

		if !m.limiter.Allow(clientIP) {
			if m.config.BlockDuration > 0 {
				m.limiter.Block(clientIP, m.config.BlockDuration)
			}
			retry := m.limiter.RetryAfter(clientIP)
			metrics.RecordRateLimited(r.URL.Path)
			correlation.LoggerFromContext(r.Context(), m.logger).Warn("Rate limit exceeded")

			w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds()+0.999)))
			w.Header().Set("X-RateLimit-Limit", formatFloat(m.config.RequestsPerSecond))
			w.Header().Set("X-RateLimit-Remaining", "0")
			errors.WriteError(w, errors.NewRateLimited(clientIP, retry))
			return
		}

		w.Header().Set("X-RateLimit-Limit", formatFloat(m.config.RequestsPerSecond))
		w.Header().Set("X-RateLimit-Remaining", formatFloat(m.limiter.Tokens(clientIP)))
		next.ServeHTTP(w, r)
	})
}

// Close stops the limiter's sweeper
func (m *HTTPMiddleware) Close() {
	if m.limiter != nil {
		m.limiter.Close()
	}
}

// Limiter returns the underlying limiter, nil when disabled
func (m *HTTPMiddleware) Limiter() *Limiter {
	return m.limiter
}

func (m *HTTPMiddleware) isIPWhitelisted(ip string) bool {
	if m.whitelistedIPs[ip] {
		return true
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, ipNet := range m.whitelistedNets {
		if ipNet.Contains(parsed) {
			return true
		}
	}
	return false
}

func (m *HTTPMiddleware) isPathWhitelisted(path string) bool {
	for _, p := range m.whitelistedPaths {
		if prefix, ok := strings.CutSuffix(p, "*"); ok {
			if strings.HasPrefix(path, prefix) {
				return true
			}
		} else if p == path {
			return true
		}
	}
	return false
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 0, 64)
}
