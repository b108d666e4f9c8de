package errors

import (
	"encoding/json"
	"errors"
	"net/http"
)

var errorStatusCodes = map[error]int{
	ErrNotFound:              http.StatusNotFound,
	ErrInvalidInput:          http.StatusBadRequest,
	ErrInternalError:         http.StatusInternalServerError,
	ErrTimeout:               http.StatusGatewayTimeout,
	ErrUnavailable:           http.StatusServiceUnavailable,
	ErrCanceled:              http.StatusRequestTimeout,
	ErrRateLimited:           http.StatusTooManyRequests,
	ErrEmptyInput:            http.StatusBadRequest,
	ErrScoringFailure:        http.StatusInternalServerError,
	ErrCacheKeyCollision:     http.StatusConflict,
	ErrQueueFull:             http.StatusTooManyRequests,
	ErrSessionAnalysisFailed: http.StatusInternalServerError,
	ErrRecognitionFailed:     http.StatusBadGateway,
	ErrProviderUnavailable:   http.StatusServiceUnavailable,
}

// WriteError writes a JSON error body with the status mapped from err
func WriteError(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	var response map[string]interface{}

	var serr *Error
	switch {
	case err == nil:
		response = map[string]interface{}{"error": "unknown error"}
	case errors.As(err, &serr):
		statusCode = HTTPStatusFromError(serr.original)
		response = serr.AsJSON()
	default:
		statusCode = HTTPStatusFromError(err)
		response = map[string]interface{}{"error": err.Error()}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

// HTTPStatusFromError walks the error chain looking for a mapped sentinel
func HTTPStatusFromError(err error) int {
	for err != nil {
		if code, ok := errorStatusCodes[err]; ok {
			return code
		}
		unwrapped := errors.Unwrap(err)
		if unwrapped == nil || unwrapped == err {
			break
		}
		err = unwrapped
	}
	return http.StatusInternalServerError
}
