package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"interview-analyzer/pkg/analysis"
	"interview-analyzer/pkg/correlation"
	"interview-analyzer/pkg/errors"
	"interview-analyzer/pkg/interview"
	"interview-analyzer/pkg/metrics"
	"interview-analyzer/pkg/ratelimit"
	"interview-analyzer/pkg/scoring"
	"interview-analyzer/pkg/speech"
	"interview-analyzer/pkg/version"
)

// Services are the analysis components exposed over HTTP. Orchestrator is
// required; missing scorers are created and a nil Bank means every request
// must carry its question inline.
type Services struct {
	Orchestrator *analysis.Orchestrator
	TextScorer   *scoring.TextScorer
	SpeechScorer *speech.Scorer
	Bank         *interview.QuestionBank
}

// Server serves the analysis API, the event streams, health checks and metrics
type Server struct {
	config     *Config
	logger     *logrus.Logger
	httpServer *http.Server
	mux        *http.ServeMux
	handler    http.Handler
	limiter    *ratelimit.HTTPMiddleware
	startTime  time.Time

	orchestrator *analysis.Orchestrator
	text         *scoring.TextScorer
	speech       *speech.Scorer
	bank         *interview.QuestionBank
	hub          *EventHub
	broker       BrokerStatus
}

// NewServer creates a new HTTP server instance and subscribes its websocket
// hub to the orchestrator's event bus
func NewServer(logger *logrus.Logger, config *Config, services Services) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	config = config.withDefaults()
	if services.TextScorer == nil {
		services.TextScorer = scoring.NewTextScorer(logger)
	}
	if services.SpeechScorer == nil {
		services.SpeechScorer = speech.NewScorer(logger)
	}

	server := &Server{
		config:       config,
		logger:       logger,
		mux:          http.NewServeMux(),
		startTime:    time.Now(),
		orchestrator: services.Orchestrator,
		text:         services.TextScorer,
		speech:       services.SpeechScorer,
		bank:         services.Bank,
	}
	server.hub = NewEventHub(logger, services.Orchestrator.Events(), config.EventBuffer, config.PingInterval)
	server.hub.Start()

	// Wrap handlers with middleware that adds Server header
	addServerHeader := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Server", version.ServerHeader())
			next(w, r)
		}
	}

	mux := server.mux
	mux.HandleFunc("/health", addServerHeader(server.HealthHandler))
	mux.HandleFunc("/health/live", addServerHeader(server.LivenessHandler))
	mux.HandleFunc("/health/ready", addServerHeader(server.ReadinessHandler))
	mux.HandleFunc("/status", addServerHeader(server.statusHandler))

	if config.EnableMetrics {
		if registry := metrics.GetRegistry(); registry != nil {
			promHandler := promhttp.HandlerFor(
				registry,
				promhttp.HandlerOpts{
					EnableOpenMetrics: true,
					Registry:          registry,
				},
			)
			mux.HandleFunc(config.MetricsPath, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Server", version.ServerHeader())
				promHandler.ServeHTTP(w, r)
			})
			logger.WithField("path", config.MetricsPath).Info("Prometheus metrics endpoint enabled")
		} else {
			logger.Warn("Metrics registry not initialized, metrics endpoint disabled")
		}
	} else {
		logger.Info("Metrics endpoints disabled")
	}

	mux.HandleFunc("POST /api/v1/score/text", addServerHeader(server.handleScoreText))
	mux.HandleFunc("POST /api/v1/score/speech", addServerHeader(server.handleScoreSpeech))
	mux.HandleFunc("POST /api/v1/responses", addServerHeader(server.handleSubmitResponse))
	mux.HandleFunc("GET /api/v1/responses/{id}/state", addServerHeader(server.handleResponseState))
	mux.HandleFunc("POST /api/v1/sessions/analyze", addServerHeader(server.handleAnalyzeSession))
	mux.HandleFunc("GET /api/v1/events", addServerHeader(server.handleEventStream))
	mux.HandleFunc("GET /ws/events", server.hub.ServeHTTP)

	rateConfig := config.RateLimit
	if rateConfig == nil {
		rateConfig = &ratelimit.Config{Enabled: false}
	}
	server.limiter = ratelimit.NewHTTPMiddleware(rateConfig, logger)
	server.handler = correlation.NewMiddleware(logger, &correlation.MiddlewareConfig{
		LogRequests: true,
		QuietPaths:  []string{"/health", "/health/live", "/health/ready", config.MetricsPath},
	}).Wrap(server.limiter.Middleware(mux))

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      server.handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return server
}

// Handler returns the root handler with middleware applied, for embedding and tests
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Hub returns the websocket event hub
func (s *Server) Hub() *EventHub {
	return s.hub
}

// ListenAndServe serves until Shutdown is called. A clean shutdown returns nil.
func (s *Server) ListenAndServe() error {
	s.logger.WithField("port", s.config.Port).Info("Starting HTTP server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "HTTP server failed").WithField("port", s.config.Port)
	}
	return nil
}

// Shutdown disconnects websocket clients and gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server...")
	s.hub.Close()
	defer s.limiter.Close()
	return s.httpServer.Shutdown(ctx)
}

// statusHandler handles the /status endpoint
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	s.logger.WithField("endpoint", "/status").Debug("Status endpoint accessed")

	status := map[string]interface{}{
		"status":            "ok",
		"uptime":            time.Since(s.startTime).String(),
		"version":           version.Version,
		"started_at":        s.startTime.Format(time.RFC3339),
		"analysis":          s.orchestrator.Stats(),
		"websocket_clients": s.hub.ClientCount(),
	}
	if s.bank != nil {
		status["question_bank"] = map[string]interface{}{
			"name":      s.bank.Name,
			"questions": len(s.bank.Questions),
		}
	}

	writeJSON(w, http.StatusOK, status)
}

// ErrorResponse sends a standardized error response
func (s *Server) ErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	errors.WriteError(w, err)
	correlation.LoggerFromContext(r.Context(), s.logger).WithError(err).Debug("HTTP error response sent")
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
