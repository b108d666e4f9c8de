package http

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"interview-analyzer/pkg/version"
)

// HealthStatus represents the health status of the service
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Uptime    string                 `json:"uptime"`
	Version   string                 `json:"version"`
	Checks    map[string]CheckResult `json:"checks"`
	System    SystemInfo             `json:"system"`
}

// CheckResult represents an individual health check result
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// SystemInfo contains system resource information
type SystemInfo struct {
	GoRoutines int    `json:"goroutines"`
	MemoryMB   uint64 `json:"memory_mb"`
	CPUCount   int    `json:"cpu_count"`
	QueueDepth int    `json:"queue_depth"`
}

// BrokerStatus is the part of a message broker client health checks need
type BrokerStatus interface {
	IsConnected() bool
}

// SetBroker adds the event broker to the health checks
func (s *Server) SetBroker(broker BrokerStatus) {
	s.broker = broker
}

// HealthHandler handles health check requests
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	health := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Version:   version.Version,
		Checks:    make(map[string]CheckResult),
	}

	stats := s.orchestrator.Stats()
	health.System.QueueDepth = stats.QueueDepth
	switch {
	case !s.orchestrator.Accepting():
		health.Checks["analysis"] = CheckResult{
			Status:  "unhealthy",
			Message: "Analysis orchestrator is shut down",
		}
		health.Status = "unhealthy"
	case stats.QueueDepth >= stats.QueueCapacity:
		health.Checks["analysis"] = CheckResult{
			Status:  "degraded",
			Message: fmt.Sprintf("Analysis queue full (%d/%d)", stats.QueueDepth, stats.QueueCapacity),
		}
		health.Status = "degraded"
	default:
		health.Checks["analysis"] = CheckResult{
			Status:  "healthy",
			Message: "Analysis orchestrator accepting responses",
		}
	}

	if s.hub.IsRunning() {
		health.Checks["websocket"] = CheckResult{
			Status:  "healthy",
			Message: fmt.Sprintf("WebSocket hub serving %d clients", s.hub.ClientCount()),
		}
	} else {
		health.Checks["websocket"] = CheckResult{
			Status:  "degraded",
			Message: "WebSocket hub not running",
		}
	}

	if s.broker != nil {
		if s.broker.IsConnected() {
			health.Checks["amqp"] = CheckResult{
				Status:  "healthy",
				Message: "AMQP connected",
			}
		} else {
			health.Checks["amqp"] = CheckResult{
				Status:  "degraded",
				Message: "AMQP disconnected",
			}
			if health.Status == "healthy" {
				health.Status = "degraded"
			}
		}
	}

	if s.bank != nil {
		health.Checks["question_bank"] = CheckResult{
			Status:  "healthy",
			Message: fmt.Sprintf("%d questions loaded", len(s.bank.Questions)),
		}
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	health.System.GoRoutines = runtime.NumGoroutine()
	health.System.MemoryMB = m.Alloc / 1024 / 1024
	health.System.CPUCount = runtime.NumCPU()

	if r.URL.Query().Get("detailed") == "true" {
		s.logger.WithFields(logrus.Fields{
			"status":   health.Status,
			"checks":   health.Checks,
			"system":   health.System,
			"duration": time.Since(startTime),
		}).Debug("Health check performed")
	}

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, health)
}

// LivenessHandler handles kubernetes liveness probe
func (s *Server) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// ReadinessHandler handles kubernetes readiness probe
func (s *Server) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	if s.orchestrator.Accepting() {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	w.Write([]byte("not ready"))
}
