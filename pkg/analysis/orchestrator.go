package analysis

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"interview-analyzer/pkg/errors"
	"interview-analyzer/pkg/interview"
	"interview-analyzer/pkg/metrics"
	"interview-analyzer/pkg/scoring"
	"interview-analyzer/pkg/util"
)

const (
	DefaultCacheCapacity = 100
	DefaultQueueCapacity = 10
	DefaultDrainDelay    = 10 * time.Millisecond

	// bookkeeping for response ids outlives the analysis cache
	recordCapacityFactor = 20
)

// Options configures an Orchestrator
type Options struct {
	CacheCapacity   int
	QueueCapacity   int
	DrainDelay      time.Duration
	ProgressEnabled bool
}

func (o Options) withDefaults() Options {
	if o.CacheCapacity <= 0 {
		o.CacheCapacity = DefaultCacheCapacity
	}
	if o.QueueCapacity <= 0 {
		o.QueueCapacity = DefaultQueueCapacity
	}
	if o.DrainDelay < 0 {
		o.DrainDelay = 0
	}
	return o
}

type cachedAnalysis struct {
	inputs   DigestInputs
	analysis interview.ResponseAnalysis
}

// Orchestrator runs the preliminary and comprehensive analysis passes for
// submitted responses. It owns the analysis cache, the task queue and the
// per-response state; all of them are mutated under mu only. A single drain
// goroutine works through the queue and exits once it is empty.
type Orchestrator struct {
	logger      *logrus.Entry
	scorer      Scorer
	performance PerformanceScorer
	bus         *EventBus
	panics      *util.PanicHandler
	opts        Options
	now         func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	cache    *Cache[cachedAnalysis]
	queue    *TaskQueue
	records  *Cache[*responseRecord]
	progress map[string]*progressRun
	draining bool
	closed   bool
}

// NewOrchestrator creates an orchestrator. A nil scorer selects the text and
// speech pipeline; a nil performance scorer aggregates per-response analyses.
func NewOrchestrator(logger *logrus.Logger, bus *EventBus, scorer Scorer, performance PerformanceScorer, opts Options) *Orchestrator {
	if logger == nil {
		logger = logrus.New()
	}
	if bus == nil {
		bus = NewEventBus(logger)
	}
	if scorer == nil {
		scorer = NewPipelineScorer(logger)
	}
	if performance == nil {
		performance = NewResponsePerformanceScorer(scorer)
	}
	opts = opts.withDefaults()

	records := NewCache[*responseRecord](opts.CacheCapacity * recordCapacityFactor)
	// a record still waiting on a pass must survive until that pass reports back
	records.SetEvictable(func(rec *responseRecord) bool { return rec.state.Terminal() })

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		logger:      logger.WithField("component", "analysis_orchestrator"),
		scorer:      scorer,
		performance: performance,
		bus:         bus,
		panics:      util.NewPanicHandler(logger),
		opts:        opts,
		now:         time.Now,
		ctx:         ctx,
		cancel:      cancel,
		cache:       NewCache[cachedAnalysis](opts.CacheCapacity),
		queue:       NewTaskQueue(opts.QueueCapacity),
		records:     records,
		progress:    make(map[string]*progressRun),
	}
}

// Events returns the bus lifecycle events are published on
func (o *Orchestrator) Events() *EventBus {
	return o.bus
}

// Submit analyses a response. A cached analysis is returned and announced
// as complete straight away. Otherwise a preliminary analysis is returned and
// announced, and a comprehensive pass is queued. Scoring failures never
// surface here; the only error is a shut down orchestrator.
func (o *Orchestrator) Submit(ctx context.Context, response interview.Response, question interview.Question, priority Priority) (interview.ResponseAnalysis, error) {
	if response.ID == "" {
		response.ID = uuid.NewString()
	}
	if response.SubmittedAt.IsZero() {
		response.SubmittedAt = o.now()
	}
	if priority != PriorityHigh {
		priority = PriorityNormal
	}
	metrics.RecordSubmission(string(priority))

	log := o.logger.WithFields(logrus.Fields{
		"response_id": response.ID,
		"question_id": question.ID,
		"session_id":  response.SessionID,
		"priority":    priority,
	})

	inputs := InputsFor(response, question)
	key := Digest(inputs)

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return interview.ResponseAnalysis{}, errors.Wrap(errors.ErrUnavailable, "analysis orchestrator is shut down")
	}

	rec := o.record(response.ID)
	rec.generation++
	generation := rec.generation
	o.stopProgressLocked(response.ID)

	if cached, ok := o.lookupLocked(key, inputs); ok {
		o.queue.Remove(response.ID)
		metrics.SetQueueDepth(o.queue.Len())
		// a completed response served again from cache is not announced twice
		announce := !rec.completed
		rec.state = StateDelivered
		rec.completed = true
		o.mu.Unlock()

		analysis := cached.analysis
		analysis.ResponseID = response.ID
		if announce {
			o.publish(EventComplete, response, &analysis, "")
		}
		log.Debug("Served analysis from cache")
		return analysis, nil
	}

	rec.state = StateSubmitted
	rec.completed = false
	o.mu.Unlock()

	o.publish(EventStart, response, nil, "")

	preliminary := o.preliminary(ctx, response, question, log)
	o.publish(EventPreliminary, response, &preliminary, "")

	o.mu.Lock()
	if rec.generation == generation {
		rec.state = StatePreliminaryDelivered
	}
	if o.closed {
		o.mu.Unlock()
		return preliminary, nil
	}

	dropped := o.queue.Push(Task{
		Response:   response,
		Question:   question,
		Priority:   priority,
		EnqueuedAt: o.now(),
		key:        key,
		inputs:     inputs,
		generation: generation,
	})
	if rec.generation == generation && o.queue.Contains(response.ID) {
		rec.state = StateQueued
	}
	for _, task := range dropped {
		if r, ok := o.currentRecord(task); ok {
			r.state = StateFailed
		}
	}
	metrics.SetQueueDepth(o.queue.Len())
	o.startDrainLocked()
	o.mu.Unlock()

	for _, task := range dropped {
		metrics.RecordQueueDrop()
		err := errors.NewQueueFull(task.ResponseID(), o.opts.QueueCapacity)
		o.logger.WithError(err).WithField("response_id", task.ResponseID()).Warn("Analysis queue full, dropped task")
		o.publish(EventError, task.Response, nil, err.Error())
	}

	if o.opts.ProgressEnabled {
		o.startProgress(response)
	}

	log.Debug("Preliminary analysis delivered, comprehensive pass queued")
	return preliminary, nil
}

// lookupLocked reads the cache and rejects an entry whose stored inputs
// differ from the request
func (o *Orchestrator) lookupLocked(key string, inputs DigestInputs) (cachedAnalysis, bool) {
	cached, ok := o.cache.Get(key)
	if !ok {
		metrics.RecordCacheLookup("miss")
		return cachedAnalysis{}, false
	}
	if cached.inputs != inputs {
		metrics.RecordCacheLookup("collision")
		o.logger.WithError(errors.ErrCacheKeyCollision).WithField("key", key).Warn("Cache key collision, treating as miss")
		return cachedAnalysis{}, false
	}
	metrics.RecordCacheLookup("hit")
	return cached, true
}

// preliminary runs the fast pass. Any failure falls back to the length estimate.
func (o *Orchestrator) preliminary(ctx context.Context, response interview.Response, question interview.Question, log *logrus.Entry) interview.ResponseAnalysis {
	var analysis interview.ResponseAnalysis
	stop := metrics.ObserveScoring(string(interview.StagePreliminary))
	err := o.panics.Guard("preliminary_scoring", func() error {
		var err error
		analysis, err = o.scorer.Preliminary(ctx, response, question)
		return err
	})
	stop()

	if err != nil {
		metrics.RecordScoringFailure(string(interview.StagePreliminary))
		log.WithError(errors.NewScoringFailure(string(interview.StagePreliminary), err)).Warn("Preliminary scoring failed, using length estimate")
		analysis = scoring.EstimateFromLength(response, question, o.now())
	}
	analysis.ResponseID = response.ID
	analysis.Stage = interview.StagePreliminary
	return analysis
}

func (o *Orchestrator) startDrainLocked() {
	if o.draining || o.closed || o.queue.Len() == 0 {
		return
	}
	o.draining = true
	o.wg.Add(1)
	o.panics.SafeGo("analysis_drain", o.drain)
}

func (o *Orchestrator) drain() {
	defer o.wg.Done()
	defer func() {
		// a panic escaping process must not leave the loop marked as running
		o.mu.Lock()
		o.draining = false
		o.startDrainLocked()
		o.mu.Unlock()
	}()

	delay := time.NewTimer(0)
	if !delay.Stop() {
		<-delay.C
	}
	defer delay.Stop()

	for {
		o.mu.Lock()
		if o.closed {
			o.mu.Unlock()
			return
		}
		task, ok := o.queue.Pop()
		if !ok {
			o.draining = false
			o.mu.Unlock()
			return
		}
		if rec, ok := o.currentRecord(task); ok {
			rec.state = StateProcessing
		}
		metrics.SetQueueDepth(o.queue.Len())
		o.mu.Unlock()

		o.process(task)

		delay.Reset(o.opts.DrainDelay)
		select {
		case <-o.ctx.Done():
			return
		case <-delay.C:
		}
	}
}

// process runs the comprehensive pass for one task. The result is always
// cached; it is announced only if no newer submission for the same response
// has arrived since the task was queued.
func (o *Orchestrator) process(task Task) {
	log := o.logger.WithFields(logrus.Fields{
		"response_id": task.ResponseID(),
		"question_id": task.Question.ID,
		"stage":       interview.StageComprehensive,
	})

	var analysis interview.ResponseAnalysis
	stop := metrics.ObserveScoring(string(interview.StageComprehensive))
	err := o.panics.Guard("comprehensive_scoring", func() error {
		var err error
		analysis, err = o.scorer.Comprehensive(o.ctx, task.Response, task.Question)
		return err
	})
	stop()

	if err != nil {
		metrics.RecordScoringFailure(string(interview.StageComprehensive))
		failure := errors.NewScoringFailure(string(interview.StageComprehensive), err).WithField("response_id", task.ResponseID())

		o.mu.Lock()
		rec, current := o.currentRecord(task)
		if current {
			rec.state = StateFailed
		}
		o.mu.Unlock()

		log.WithError(failure).Error("Comprehensive scoring failed, task dropped")
		if current {
			o.publish(EventError, task.Response, nil, failure.Error())
		}
		return
	}

	analysis.ResponseID = task.ResponseID()
	analysis.Stage = interview.StageComprehensive

	o.mu.Lock()
	evicted := o.cache.Put(task.key, cachedAnalysis{inputs: task.inputs, analysis: analysis})
	metrics.SetCacheEntries(o.cache.Len())
	rec, current := o.currentRecord(task)
	announce := current && !rec.completed
	if current {
		rec.state = StateComprehensiveDelivered
		rec.completed = true
	}
	o.mu.Unlock()

	if evicted > 0 {
		log.WithField("evicted", evicted).Debug("Evicted oldest cache entries")
	}
	if !announce {
		log.Debug("Comprehensive result superseded, cached without announcing")
		return
	}
	o.publish(EventComplete, task.Response, &analysis, "")
	log.WithField("overall", analysis.OverallScore).Debug("Comprehensive analysis delivered")
}

func (o *Orchestrator) publish(eventType EventType, response interview.Response, analysis *interview.ResponseAnalysis, message string) {
	event := Event{
		Type:       eventType,
		Key:        response.ID,
		ResponseID: response.ID,
		SessionID:  response.SessionID,
		Analysis:   analysis,
		Timestamp:  o.now(),
	}
	if analysis != nil {
		event.Stage = analysis.Stage
	}
	if eventType == EventError {
		event.Error = message
	} else {
		event.Message = message
	}
	o.bus.Publish(event)
}

// record returns the bookkeeping entry for a response id, creating it if needed. Callers hold mu.
func (o *Orchestrator) record(responseID string) *responseRecord {
	if rec, ok := o.records.Get(responseID); ok {
		return rec
	}
	rec := &responseRecord{}
	o.records.Put(responseID, rec)
	return rec
}

// currentRecord returns the record of the submission task belongs to, or
// false once a newer submission has replaced it. Callers hold mu.
func (o *Orchestrator) currentRecord(task Task) (*responseRecord, bool) {
	rec, ok := o.records.Get(task.ResponseID())
	if !ok || rec.generation != task.generation {
		return nil, false
	}
	return rec, true
}

// State reports where a response is in the pipeline
func (o *Orchestrator) State(responseID string) (ResponseState, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	rec, ok := o.records.Get(responseID)
	if !ok {
		return StateSubmitted, false
	}
	return rec.state, true
}

// Stats is a point-in-time view of the orchestrator
type Stats struct {
	CacheEntries  int      `json:"cache_entries"`
	CacheCapacity int      `json:"cache_capacity"`
	QueueDepth    int      `json:"queue_depth"`
	QueueCapacity int      `json:"queue_capacity"`
	Queued        []string `json:"queued"`
	Draining      bool     `json:"draining"`
	Subscribers   int      `json:"subscribers"`
}

// Accepting reports whether Submit still takes new responses
func (o *Orchestrator) Accepting() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return !o.closed
}

func (o *Orchestrator) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()

	return Stats{
		CacheEntries:  o.cache.Len(),
		CacheCapacity: o.cache.Capacity(),
		QueueDepth:    o.queue.Len(),
		QueueCapacity: o.opts.QueueCapacity,
		Queued:        o.queue.ResponseIDs(),
		Draining:      o.draining,
		Subscribers:   o.bus.SubscriberCount(),
	}
}

// Shutdown stops accepting submissions, abandons queued tasks and waits for
// the drain goroutine to finish its current task
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	abandoned := o.queue.Len()
	for id := range o.progress {
		o.stopProgressLocked(id)
	}
	o.mu.Unlock()

	o.cancel()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.logger.WithField("abandoned_tasks", abandoned).Info("Analysis orchestrator stopped")
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "timed out waiting for analysis drain loop")
	}
}
