package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Sentinel values shared by every analysis component
var (
	ErrNotFound      = errors.New("resource not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInternalError = errors.New("internal error")
	ErrTimeout       = errors.New("operation timed out")
	ErrUnavailable   = errors.New("service unavailable")
	ErrCanceled      = errors.New("operation canceled")
	ErrRateLimited   = errors.New("rate limit exceeded")

	// Analysis pipeline
	ErrEmptyInput            = errors.New("empty response")
	ErrScoringFailure        = errors.New("scoring pass failed")
	ErrCacheKeyCollision     = errors.New("analysis cache key collision")
	ErrQueueFull             = errors.New("analysis queue full")
	ErrSessionAnalysisFailed = errors.New("session analysis failed")

	// Live transcription
	ErrRecognitionFailed   = errors.New("speech recognition failed")
	ErrProviderUnavailable = errors.New("transcription provider unavailable")
)

// Error is a structured error carrying context fields, a code and the caller location
type Error struct {
	original error
	message  string
	fields   map[string]interface{}
	file     string
	line     int

	// Code categorizes the error for API consumers
	Code string
}

func newError(original error, message, code string, skip int, fields []map[string]interface{}) *Error {
	_, file, line, _ := runtime.Caller(skip)

	fieldMap := make(map[string]interface{})
	if len(fields) > 0 && fields[0] != nil {
		for k, v := range fields[0] {
			fieldMap[k] = v
		}
	}

	return &Error{
		original: original,
		message:  message,
		fields:   fieldMap,
		file:     file,
		line:     line,
		Code:     code,
	}
}

// New creates a structured error with the given message
func New(message string, fields ...map[string]interface{}) *Error {
	return newError(errors.New(message), message, "", 2, fields)
}

// Wrap wraps err with a message. It returns nil when err is nil.
func Wrap(err error, message string, fields ...map[string]interface{}) *Error {
	if err == nil {
		return nil
	}
	return newError(err, message, "", 2, fields)
}

func (e *Error) clone(extra int) *Error {
	result := &Error{
		original: e.original,
		message:  e.message,
		fields:   make(map[string]interface{}, len(e.fields)+extra),
		file:     e.file,
		line:     e.line,
		Code:     e.Code,
	}
	for k, v := range e.fields {
		result.fields[k] = v
	}
	return result
}

// WithField returns a copy of the error with one more context field
func (e *Error) WithField(key string, value interface{}) *Error {
	if e == nil {
		return nil
	}
	result := e.clone(1)
	result.fields[key] = value
	return result
}

// WithFields returns a copy of the error with the given context fields added
func (e *Error) WithFields(fields map[string]interface{}) *Error {
	if e == nil {
		return nil
	}
	result := e.clone(len(fields))
	for k, v := range fields {
		result.fields[k] = v
	}
	return result
}

// WithCode returns a copy of the error carrying code
func (e *Error) WithCode(code string) *Error {
	if e == nil {
		return nil
	}
	result := e.clone(0)
	result.Code = code
	return result
}

func (e *Error) Error() string {
	if e == nil || e.original == nil {
		return ""
	}
	if e.message == "" || e.message == e.original.Error() {
		return e.original.Error()
	}
	return fmt.Sprintf("%s: %v", e.message, e.original)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.original
}

// Is reports whether target matches the wrapped cause
func (e *Error) Is(target error) bool {
	if e == nil || target == nil {
		return false
	}
	if errors.Is(e.original, target) {
		return true
	}
	return e == target
}

// Location returns file:line of the call that created the error
func (e *Error) Location() string {
	if e == nil {
		return ""
	}
	parts := strings.Split(e.file, "/")
	return fmt.Sprintf("%s:%d", parts[len(parts)-1], e.line)
}

func (e *Error) GetFields() map[string]interface{} {
	if e == nil {
		return nil
	}
	return e.fields
}

func (e *Error) GetCode() string {
	if e == nil {
		return ""
	}
	return e.Code
}

// AsJSON returns the error in a JSON-friendly map
func (e *Error) AsJSON() map[string]interface{} {
	if e == nil {
		return nil
	}

	result := map[string]interface{}{
		"error":    e.Error(),
		"location": e.Location(),
	}
	if e.Code != "" {
		result["code"] = e.Code
	}
	if len(e.fields) > 0 {
		result["context"] = e.fields
	}
	return result
}

// NewInvalidInput creates an ErrInvalidInput error
func NewInvalidInput(message string, fields ...map[string]interface{}) *Error {
	return newError(ErrInvalidInput, message, "INVALID_INPUT", 2, fields)
}

// NewNotFound creates an ErrNotFound error
func NewNotFound(message string, fields ...map[string]interface{}) *Error {
	return newError(ErrNotFound, message, "NOT_FOUND", 2, fields)
}

// NewInternalError creates an ErrInternalError error
func NewInternalError(message string, fields ...map[string]interface{}) *Error {
	return newError(ErrInternalError, message, "INTERNAL_ERROR", 2, fields)
}

// NewScoringFailure records a failed scoring pass for the given stage
func NewScoringFailure(stage string, cause interface{}, fields ...map[string]interface{}) *Error {
	err := newError(ErrScoringFailure, fmt.Sprintf("%s scoring failed: %v", stage, cause), "SCORING_FAILURE", 2, fields)
	err.fields["stage"] = stage
	return err
}

// NewQueueFull reports a task dropped from the analysis queue
func NewQueueFull(responseID string, capacity int) *Error {
	err := newError(ErrQueueFull, fmt.Sprintf("analysis task for %s dropped, queue capacity %d", responseID, capacity), "QUEUE_FULL", 2, nil)
	err.fields["response_id"] = responseID
	return err
}

// NewRecognitionFailed reports a recognizer that exhausted its retries
func NewRecognitionFailed(provider string, retries int, cause error) *Error {
	err := newError(ErrRecognitionFailed, fmt.Sprintf("%s recognition failed after %d retries: %v", provider, retries, cause), "RECOGNITION_FAILED", 2, nil)
	err.fields["provider"] = provider
	err.fields["retries"] = retries
	return err
}

// NewRateLimited reports a client that exceeded its request budget
func NewRateLimited(client string, retryAfter time.Duration) *Error {
	err := newError(ErrRateLimited, fmt.Sprintf("rate limit exceeded, retry in %s", retryAfter), "RATE_LIMITED", 2, nil)
	err.fields["client"] = client
	err.fields["retry_after_seconds"] = int(retryAfter.Seconds())
	return err
}

// IsErrorType checks whether err matches target anywhere in its chain
func IsErrorType(err, target error) bool {
	return errors.Is(err, target)
}

// GetErrorCode extracts the code from a structured error
func GetErrorCode(err error) string {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.GetCode()
	}
	return ""
}

// GetErrorFields extracts context fields from a structured error
func GetErrorFields(err error) map[string]interface{} {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.GetFields()
	}
	return nil
}
