package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs first: Init is process-wide and cannot be undone.
func TestHelpersAreNoOpsBeforeInit(t *testing.T) {
	assert.Nil(t, GetRegistry())
	assert.False(t, IsMetricsEnabled())

	assert.NotPanics(t, func() {
		RecordSubmission("high")
		RecordCacheLookup("hit")
		SetQueueDepth(3)
		ObserveScoring("preliminary")()
		RecordEventDropped("complete")
		SetAMQPConnectionStatus(true)
	})

	mux := http.NewServeMux()
	RegisterHandler(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecordAfterInit(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	Init(logger)
	require.NotNil(t, GetRegistry())

	RecordSubmission("normal")
	RecordSubmission("normal")
	RecordCacheLookup("collision")
	RecordQueueDrop()
	SetQueueDepth(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(SubmissionsTotal.WithLabelValues("normal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(CacheLookupsTotal.WithLabelValues("collision")))
	assert.Equal(t, 1.0, testutil.ToFloat64(QueueDropsTotal))
	assert.Equal(t, 4.0, testutil.ToFloat64(QueueDepth))

	EnableMetrics(false)
	RecordQueueDrop()
	assert.Equal(t, 1.0, testutil.ToFloat64(QueueDropsTotal), "disabled metrics are not recorded")
	EnableMetrics(true)
}

func TestMetricsHandler(t *testing.T) {
	Init(logrus.New())
	RecordEventPublished("preliminary")

	mux := http.NewServeMux()
	RegisterHandler(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "analyzer_events_published_total"))
}
