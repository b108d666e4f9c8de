package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"interview-analyzer/pkg/analysis"
	"interview-analyzer/pkg/correlation"
	"interview-analyzer/pkg/errors"
)

const sseKeepAlive = 15 * time.Second

// SSEWriter helps write Server-Sent Events
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter creates a new SSE writer
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent sends an SSE event
func (s *SSEWriter) WriteEvent(id, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if id != "" {
		if _, err := fmt.Fprintf(s.w, "id: %s\n", id); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\n", event); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", jsonData); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteComment sends a comment line, used as a keep-alive
func (s *SSEWriter) WriteComment(text string) error {
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", text); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// handleEventStream streams lifecycle events for ?key= (every key when
// empty). With until_complete=true the stream ends after the key's
// complete or error event.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	untilComplete := r.URL.Query().Get("until_complete") == "true"
	if untilComplete && key == "" {
		s.ErrorResponse(w, r, errors.NewInvalidInput("until_complete requires a key"))
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.ErrorResponse(w, r, errors.Wrap(errors.ErrInternalError, err.Error()))
		return
	}
	// the server write timeout would cut long streams
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	sub := s.orchestrator.Events().Subscribe(key, s.config.EventBuffer)
	defer sub.Close()

	log := correlation.LoggerFromContext(r.Context(), s.logger).WithField("key", key)
	log.Debug("Event stream opened")
	defer log.Debug("Event stream closed")

	w.WriteHeader(http.StatusOK)
	if err := sse.WriteComment("connected"); err != nil {
		return
	}

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			if err := sse.WriteComment("ping"); err != nil {
				return
			}
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := sse.WriteEvent(event.ID, string(event.Type), event); err != nil {
				log.WithError(err).Debug("Event stream write failed")
				return
			}
			if untilComplete && (event.Type == analysis.EventComplete || event.Type == analysis.EventError) {
				return
			}
		}
	}
}
