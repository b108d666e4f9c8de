package correlation

import (
	"bufio"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// MiddlewareConfig configures the HTTP correlation middleware
type MiddlewareConfig struct {
	// LogRequests logs each completed request with its correlation ID
	LogRequests bool

	// QuietPaths are logged at trace level only. Probes and scrapes hit
	// these every few seconds.
	QuietPaths []string
}

// DefaultMiddlewareConfig returns sensible defaults
func DefaultMiddlewareConfig() *MiddlewareConfig {
	return &MiddlewareConfig{
		LogRequests: true,
		QuietPaths:  []string{"/health", "/health/live", "/health/ready", "/metrics"},
	}
}

// Middleware tags every request with a correlation ID, echoes it in the
// response headers and logs the request outcome
type Middleware struct {
	logger *logrus.Logger
	config *MiddlewareConfig
	quiet  map[string]bool
}

// NewMiddleware creates the correlation middleware
func NewMiddleware(logger *logrus.Logger, config *MiddlewareConfig) *Middleware {
	if config == nil {
		config = DefaultMiddlewareConfig()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	m := &Middleware{logger: logger, config: config, quiet: make(map[string]bool)}
	for _, p := range config.QuietPaths {
		m.quiet[p] = true
	}
	return m
}

// Wrap returns next decorated with correlation tracking
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := Parse(r.Header.Get(HTTPHeader))
		if id.IsEmpty() {
			id = Parse(r.Header.Get(HTTPRequestIDHeader))
		}
		if id.IsEmpty() {
			id = New()
		}

		info := &RequestInfo{
			CorrelationID: id,
			StartTime:     time.Now(),
			ClientIP:      ClientIP(r),
			Method:        r.Method,
			Path:          r.URL.Path,
		}
		r = r.WithContext(info.ToContext(r.Context()))

		w.Header().Set(HTTPHeader, id.String())
		w.Header().Set(HTTPRequestIDHeader, id.String())

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		if m.config.LogRequests {
			m.logCompletion(r, info, rec.status())
		}
	})
}

func (m *Middleware) logCompletion(r *http.Request, info *RequestInfo, status int) {
	entry := LoggerFromContext(r.Context(), m.logger).WithFields(logrus.Fields{
		"status":      status,
		"duration_ms": info.Duration().Milliseconds(),
	})

	switch {
	case status >= 500:
		entry.Error("HTTP request completed with server error")
	case status >= 400:
		entry.Warn("HTTP request completed with client error")
	case m.quiet[info.Path]:
		entry.Trace("HTTP request completed")
	default:
		entry.Debug("HTTP request completed")
	}
}

// ClientIP returns the originating client address, preferring proxy headers
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ip := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(ip) != nil {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" && net.ParseIP(xri) != nil {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// statusRecorder captures the response status. It forwards Flush and Hijack
// so event streams and websocket upgrades keep working behind it.
type statusRecorder struct {
	http.ResponseWriter
	code     int
	hijacked bool
}

func (w *statusRecorder) WriteHeader(code int) {
	if w.code == 0 {
		w.code = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if w.code == 0 {
		w.code = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusRecorder) Flush() {
	if w.code == 0 {
		w.code = http.StatusOK
	}
	_ = http.NewResponseController(w.ResponseWriter).Flush()
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	conn, rw, err := http.NewResponseController(w.ResponseWriter).Hijack()
	if err == nil {
		w.hijacked = true
	}
	return conn, rw, err
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *statusRecorder) status() int {
	switch {
	case w.hijacked:
		return http.StatusSwitchingProtocols
	case w.code == 0:
		return http.StatusOK
	}
	return w.code
}
