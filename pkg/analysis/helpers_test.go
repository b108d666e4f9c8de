package analysis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"interview-analyzer/pkg/interview"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// fakeScorer scores by content length so results can be told apart
type fakeScorer struct {
	mu          sync.Mutex
	calls       map[string]int
	prelimPanic bool
	compErr     error
	gate        chan struct{}
	started     chan string
}

func newFakeScorer() *fakeScorer {
	return &fakeScorer{calls: make(map[string]int), started: make(chan string, 64)}
}

func scoredAnalysis(response interview.Response, question interview.Question, stage interview.Stage, score int) interview.ResponseAnalysis {
	return interview.ResponseAnalysis{
		ResponseID:    response.ID,
		QuestionID:    question.ID,
		Stage:         stage,
		OverallScore:  score,
		Clarity:       interview.ClarityScore{Score: score},
		Relevance:     interview.RelevanceScore{Score: score},
		Depth:         interview.DepthScore{Score: score},
		Completeness:  interview.CompletenessScore{Score: score},
		Communication: interview.CommunicationScore{Score: score},
	}
}

func (f *fakeScorer) Preliminary(_ context.Context, response interview.Response, question interview.Question) (interview.ResponseAnalysis, error) {
	if f.prelimPanic {
		panic("preliminary rules failed")
	}
	return scoredAnalysis(response, question, interview.StagePreliminary, 50), nil
}

func (f *fakeScorer) Comprehensive(ctx context.Context, response interview.Response, question interview.Question) (interview.ResponseAnalysis, error) {
	f.mu.Lock()
	f.calls[response.ID]++
	f.mu.Unlock()

	select {
	case f.started <- response.ID:
	default:
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return interview.ResponseAnalysis{}, ctx.Err()
		}
	}
	if f.compErr != nil {
		return interview.ResponseAnalysis{}, f.compErr
	}
	return scoredAnalysis(response, question, interview.StageComprehensive, len(response.Content)%101), nil
}

func (f *fakeScorer) callCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

// eventLog is a push subscriber recording every event in delivery order
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) OnEvent(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) forKey(key string) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Event
	for _, e := range l.events {
		if e.Key == key {
			out = append(out, e)
		}
	}
	return out
}

func (l *eventLog) types(key string) []EventType {
	var out []EventType
	for _, e := range l.forKey(key) {
		out = append(out, e.Type)
	}
	return out
}

func (l *eventLog) count(key string, t EventType) int {
	n := 0
	for _, e := range l.forKey(key) {
		if e.Type == t {
			n++
		}
	}
	return n
}

func (l *eventLog) last(key string, t EventType) (Event, bool) {
	events := l.forKey(key)
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == t {
			return events[i], true
		}
	}
	return Event{}, false
}

func newTestOrchestrator(t *testing.T, scorer Scorer, performance PerformanceScorer, opts Options) (*Orchestrator, *eventLog) {
	t.Helper()
	if opts.DrainDelay == 0 {
		opts.DrainDelay = time.Millisecond
	}
	logger := quietLogger()
	bus := NewEventBus(logger)
	log := &eventLog{}
	bus.AddSubscriber(log)

	o := NewOrchestrator(logger, bus, scorer, performance, opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		_ = o.Shutdown(ctx)
	})
	return o, log
}

func waitStarted(t *testing.T, f *fakeScorer, id string) {
	t.Helper()
	deadline := time.After(waitFor)
	for {
		select {
		case got := <-f.started:
			if got == id {
				return
			}
		case <-deadline:
			require.FailNow(t, "comprehensive pass did not start", id)
		}
	}
}

func waitIdle(t *testing.T, o *Orchestrator) {
	t.Helper()
	require.Eventually(t, func() bool {
		s := o.Stats()
		return s.QueueDepth == 0 && !s.Draining
	}, waitFor, tick)
}

func response(id, content string) interview.Response {
	return interview.Response{ID: id, SessionID: "s-1", QuestionID: testQuestion.ID, Content: content}
}

var testQuestion = interview.Question{
	ID:               "q-1",
	Text:             "Tell me about a time you led a team through a difficult project.",
	Type:             interview.QuestionBehavioral,
	ExpectedElements: []string{"leadership", "metrics"},
}
