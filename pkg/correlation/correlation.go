package correlation

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// HTTPHeader carries the correlation ID on requests and responses
	HTTPHeader = "X-Correlation-ID"

	// HTTPRequestIDHeader is accepted on requests and echoed on responses
	HTTPRequestIDHeader = "X-Request-ID"

	maxIDLength = 128
)

type contextKey int

const (
	correlationIDKey contextKey = iota
	requestInfoKey
)

// ID identifies one API request across log lines
type ID string

// String returns the string representation of the correlation ID
func (id ID) String() string {
	return string(id)
}

// IsEmpty returns true if the correlation ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// New generates a new random correlation ID
func New() ID {
	return ID(uuid.NewString())
}

// Parse accepts a client supplied ID. Empty, oversized or non-printable
// values yield an empty ID.
func Parse(s string) ID {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxIDLength {
		return ""
	}
	for _, r := range s {
		if r < 0x21 || r > 0x7e {
			return ""
		}
	}
	return ID(s)
}

// WithCorrelationID returns a copy of ctx carrying id
func WithCorrelationID(ctx context.Context, id ID) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// FromContext returns the correlation ID in ctx, or an empty ID
func FromContext(ctx context.Context) ID {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(correlationIDKey).(ID); ok {
		return id
	}
	return ""
}

// RequestInfo describes the request a correlation ID was issued for
type RequestInfo struct {
	CorrelationID ID
	StartTime     time.Time
	ClientIP      string
	Method        string
	Path          string
}

// ToContext stores the request info and its correlation ID in ctx
func (r *RequestInfo) ToContext(ctx context.Context) context.Context {
	ctx = WithCorrelationID(ctx, r.CorrelationID)
	return context.WithValue(ctx, requestInfoKey, r)
}

// Duration returns the time elapsed since the request started
func (r *RequestInfo) Duration() time.Duration {
	return time.Since(r.StartTime)
}

// RequestInfoFromContext returns the request info stored by the middleware
func RequestInfoFromContext(ctx context.Context) (*RequestInfo, bool) {
	if ctx == nil {
		return nil, false
	}
	info, ok := ctx.Value(requestInfoKey).(*RequestInfo)
	return info, ok
}

// ContextFields returns the log fields for the request in ctx
func ContextFields(ctx context.Context) logrus.Fields {
	fields := logrus.Fields{}
	if id := FromContext(ctx); !id.IsEmpty() {
		fields["correlation_id"] = id.String()
	}
	if info, ok := RequestInfoFromContext(ctx); ok {
		if info.ClientIP != "" {
			fields["client_ip"] = info.ClientIP
		}
		fields["method"] = info.Method
		fields["path"] = info.Path
	}
	return fields
}

// LoggerFromContext returns an entry of logger tagged with the request's
// correlation fields
func LoggerFromContext(ctx context.Context, logger *logrus.Logger) *logrus.Entry {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return logger.WithFields(ContextFields(ctx))
}
