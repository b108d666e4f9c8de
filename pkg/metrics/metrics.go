package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	registry           *prometheus.Registry
	registryOnce       sync.Once
	defaultMetricsPath = "/metrics"

	// set once Init has built every collector
	initialized    atomic.Bool
	metricsEnabled atomic.Bool

	// Analysis pipeline metrics
	SubmissionsTotal      *prometheus.CounterVec
	CacheLookupsTotal     *prometheus.CounterVec
	CacheEntries          prometheus.Gauge
	QueueDepth            prometheus.Gauge
	QueueDropsTotal       prometheus.Counter
	ScoringDuration       *prometheus.HistogramVec
	ScoringFailuresTotal  *prometheus.CounterVec
	SessionAnalysesTotal  *prometheus.CounterVec
	ProgressMessagesTotal prometheus.Counter

	// Event delivery metrics
	EventsPublishedTotal *prometheus.CounterVec
	EventsDroppedTotal   *prometheus.CounterVec
	EventSubscribers     prometheus.Gauge

	// Transcription metrics
	TranscriptionRestartsTotal *prometheus.CounterVec
	TranscriptionFragments     *prometheus.CounterVec

	// AMQP metrics
	AMQPPublishedMessages *prometheus.CounterVec
	AMQPConnectionStatus  prometheus.Gauge
	CircuitBreakerState   *prometheus.GaugeVec

	// API metrics
	RateLimitedTotal *prometheus.CounterVec
)

func init() {
	metricsEnabled.Store(true)
}

// Init initializes all metrics and registers them with a private registry
func Init(logger *logrus.Logger) {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()

		SubmissionsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analyzer_submissions_total",
				Help: "Responses submitted for analysis",
			},
			[]string{"priority"},
		)

		CacheLookupsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analyzer_cache_lookups_total",
				Help: "Analysis cache lookups by result",
			},
			[]string{"result"},
		)

		CacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "analyzer_cache_entries",
			Help: "Entries currently held in the analysis cache",
		})

		QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "analyzer_queue_depth",
			Help: "Comprehensive analysis tasks waiting in the queue",
		})

		QueueDropsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analyzer_queue_drops_total",
			Help: "Tasks dropped because the queue was full",
		})

		ScoringDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analyzer_scoring_duration_seconds",
				Help:    "Time spent in a scoring pass",
				Buckets: prometheus.ExponentialBuckets(0.00005, 2, 14), // 50us to ~400ms
			},
			[]string{"stage"},
		)

		ScoringFailuresTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analyzer_scoring_failures_total",
				Help: "Scoring passes that failed",
			},
			[]string{"stage"},
		)

		SessionAnalysesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analyzer_session_analyses_total",
				Help: "Session aggregations by outcome",
			},
			[]string{"status"},
		)

		ProgressMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analyzer_progress_messages_total",
			Help: "Progress messages emitted",
		})

		EventsPublishedTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analyzer_events_published_total",
				Help: "Lifecycle events published by type",
			},
			[]string{"type"},
		)

		EventsDroppedTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analyzer_events_dropped_total",
				Help: "Events dropped because a subscriber buffer was full",
			},
			[]string{"type"},
		)

		EventSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "analyzer_event_subscribers",
			Help: "Active event subscriptions",
		})

		TranscriptionRestartsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analyzer_transcription_restarts_total",
				Help: "Recognition streams restarted after an interruption",
			},
			[]string{"provider"},
		)

		TranscriptionFragments = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analyzer_transcription_fragments_total",
				Help: "Transcript fragments received",
			},
			[]string{"provider", "kind"},
		)

		AMQPPublishedMessages = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analyzer_amqp_published_messages_total",
				Help: "Events published to AMQP",
			},
			[]string{"queue", "status"},
		)

		AMQPConnectionStatus = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "analyzer_amqp_connection_status",
			Help: "AMQP connection status (1 connected, 0 disconnected)",
		})

		CircuitBreakerState = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "analyzer_circuit_breaker_state",
				Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"name"},
		)

		RateLimitedTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analyzer_http_rate_limited_total",
				Help: "API requests rejected by the rate limiter",
			},
			[]string{"path"},
		)

		registry.MustRegister(
			SubmissionsTotal,
			CacheLookupsTotal,
			CacheEntries,
			QueueDepth,
			QueueDropsTotal,
			ScoringDuration,
			ScoringFailuresTotal,
			SessionAnalysesTotal,
			ProgressMessagesTotal,

			EventsPublishedTotal,
			EventsDroppedTotal,
			EventSubscribers,

			TranscriptionRestartsTotal,
			TranscriptionFragments,

			AMQPPublishedMessages,
			AMQPConnectionStatus,
			CircuitBreakerState,

			RateLimitedTotal,
		)
		initialized.Store(true)

		if logger != nil {
			logger.Info("Prometheus metrics initialized")
		}
	})
}

// GetRegistry returns the prometheus registry, nil before Init
func GetRegistry() *prometheus.Registry {
	if !initialized.Load() {
		return nil
	}
	return registry
}

// SetMetricsPath sets the HTTP path for the metrics endpoint
func SetMetricsPath(path string) {
	defaultMetricsPath = path
}

// EnableMetrics enables or disables metrics collection
func EnableMetrics(enabled bool) {
	metricsEnabled.Store(enabled)
}

// IsMetricsEnabled returns whether metrics are being recorded
func IsMetricsEnabled() bool {
	return metricsEnabled.Load() && initialized.Load()
}

// RegisterHandler registers the metrics HTTP handler
func RegisterHandler(mux *http.ServeMux) {
	if !IsMetricsEnabled() {
		return
	}
	handler := promhttp.HandlerFor(
		registry,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			Registry:          registry,
		},
	)
	mux.Handle(defaultMetricsPath, handler)
}

// StartMetrics initializes collection, or disables it
func StartMetrics(logger *logrus.Logger, enabled bool) {
	if !enabled {
		EnableMetrics(false)
		logger.Info("Metrics collection is disabled")
		return
	}

	Init(logger)
	EnableMetrics(true)
	logger.WithField("metrics_path", defaultMetricsPath).Info("Metrics endpoint initialized")
}

// RecordSubmission counts a response submitted with the given priority
func RecordSubmission(priority string) {
	if IsMetricsEnabled() {
		SubmissionsTotal.WithLabelValues(priority).Inc()
	}
}

// RecordCacheLookup counts a cache lookup; result is hit, miss or collision
func RecordCacheLookup(result string) {
	if IsMetricsEnabled() {
		CacheLookupsTotal.WithLabelValues(result).Inc()
	}
}

func SetCacheEntries(n int) {
	if IsMetricsEnabled() {
		CacheEntries.Set(float64(n))
	}
}

func SetQueueDepth(n int) {
	if IsMetricsEnabled() {
		QueueDepth.Set(float64(n))
	}
}

func RecordQueueDrop() {
	if IsMetricsEnabled() {
		QueueDropsTotal.Inc()
	}
}

// ObserveScoring times a scoring pass. Call the returned function when the pass ends.
func ObserveScoring(stage string) func() {
	if !IsMetricsEnabled() {
		return func() {}
	}

	start := time.Now()
	return func() {
		ScoringDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

func RecordScoringFailure(stage string) {
	if IsMetricsEnabled() {
		ScoringFailuresTotal.WithLabelValues(stage).Inc()
	}
}

func RecordSessionAnalysis(status string) {
	if IsMetricsEnabled() {
		SessionAnalysesTotal.WithLabelValues(status).Inc()
	}
}

func RecordProgressMessage() {
	if IsMetricsEnabled() {
		ProgressMessagesTotal.Inc()
	}
}

func RecordEventPublished(eventType string) {
	if IsMetricsEnabled() {
		EventsPublishedTotal.WithLabelValues(eventType).Inc()
	}
}

func RecordEventDropped(eventType string) {
	if IsMetricsEnabled() {
		EventsDroppedTotal.WithLabelValues(eventType).Inc()
	}
}

func SetEventSubscribers(n int) {
	if IsMetricsEnabled() {
		EventSubscribers.Set(float64(n))
	}
}

func RecordTranscriptionRestart(provider string) {
	if IsMetricsEnabled() {
		TranscriptionRestartsTotal.WithLabelValues(provider).Inc()
	}
}

// RecordTranscriptionFragment counts a fragment; kind is interim or final
func RecordTranscriptionFragment(provider, kind string) {
	if IsMetricsEnabled() {
		TranscriptionFragments.WithLabelValues(provider, kind).Inc()
	}
}

// RecordAMQPPublish records the outcome of an AMQP publish
func RecordAMQPPublish(queue, status string) {
	if IsMetricsEnabled() {
		AMQPPublishedMessages.WithLabelValues(queue, status).Inc()
	}
}

// SetAMQPConnectionStatus sets the AMQP connection status
func SetAMQPConnectionStatus(connected bool) {
	if !IsMetricsEnabled() {
		return
	}
	if connected {
		AMQPConnectionStatus.Set(1)
	} else {
		AMQPConnectionStatus.Set(0)
	}
}

// SetCircuitBreakerState records the numeric state of a named breaker
func SetCircuitBreakerState(name string, state int) {
	if IsMetricsEnabled() {
		CircuitBreakerState.WithLabelValues(name).Set(float64(state))
	}
}

// RecordRateLimited counts an API request rejected for path
func RecordRateLimited(path string) {
	if IsMetricsEnabled() {
		RateLimitedTotal.WithLabelValues(path).Inc()
	}
}
