package transcribe

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"interview-analyzer/pkg/errors"
	"interview-analyzer/pkg/metrics"
)

// State is the recognizer lifecycle
type State int

const (
	StateIdle State = iota
	StateListening
	StateInterrupted
	StateFailed
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateInterrupted:
		return "interrupted"
	case StateFailed:
		return "failed"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// RecognizerOptions bounds the restart behaviour
type RecognizerOptions struct {
	MaxRetries int
	Backoff    time.Duration

	// OnStateChange, if set, is called after every transition with the
	// number of consecutive interruptions so far
	OnStateChange func(state State, retries int)
}

// Recognizer keeps a provider stream alive for the length of a recording.
//
//	Idle -> Listening -> Interrupted(n) -> Listening | Failed
//	Listening -> Stopped (audio ended or context canceled)
//
// A final fragment received while listening resets the interruption count.
type Recognizer struct {
	logger   *logrus.Entry
	provider Provider
	opts     RecognizerOptions

	mu      sync.Mutex
	state   State
	retries int
	running bool
}

// NewRecognizer creates a recognizer for provider
func NewRecognizer(logger *logrus.Logger, provider Provider, opts RecognizerOptions) *Recognizer {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &Recognizer{
		logger:   logger.WithFields(logrus.Fields{"component": "recognizer", "provider": provider.Name()}),
		provider: provider,
		opts:     opts,
	}
}

// State returns the current state and interruption count
func (r *Recognizer) State() (State, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, r.retries
}

func (r *Recognizer) transition(state State) {
	r.mu.Lock()
	r.state = state
	retries := r.retries
	r.mu.Unlock()

	r.logger.WithFields(logrus.Fields{"state": state, "retries": retries}).Debug("Recognizer state changed")
	if r.opts.OnStateChange != nil {
		r.opts.OnStateChange(state, retries)
	}
}

// Run streams audio until it ends, ctx is canceled or the provider fails
// more than MaxRetries times in a row. Cancellation is a clean stop.
func (r *Recognizer) Run(ctx context.Context, audio io.Reader, sink Sink) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return errors.NewInvalidInput("recognizer is already running")
	}
	r.running = true
	r.retries = 0
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	if err := r.provider.Initialize(ctx); err != nil {
		r.transition(StateFailed)
		return errors.Wrap(err, "failed to initialize transcription provider").WithField("provider", r.provider.Name())
	}

	forward := func(f Fragment) {
		kind := "interim"
		if f.Final {
			kind = "final"
			r.mu.Lock()
			r.retries = 0
			r.mu.Unlock()
		}
		metrics.RecordTranscriptionFragment(r.provider.Name(), kind)
		if sink != nil {
			sink(f)
		}
	}

	backoff := time.NewTimer(0)
	if !backoff.Stop() {
		<-backoff.C
	}
	defer backoff.Stop()

	for {
		r.transition(StateListening)
		err := r.provider.Stream(ctx, audio, forward)

		if err == nil || ctx.Err() != nil {
			r.transition(StateStopped)
			return nil
		}

		r.mu.Lock()
		r.retries++
		retries := r.retries
		r.mu.Unlock()

		if retries > r.opts.MaxRetries {
			r.transition(StateFailed)
			failure := errors.NewRecognitionFailed(r.provider.Name(), r.opts.MaxRetries, err)
			r.logger.WithError(failure).Error("Recognition failed")
			return failure
		}

		metrics.RecordTranscriptionRestart(r.provider.Name())
		r.logger.WithError(err).WithField("attempt", retries).Warn("Recognition interrupted, restarting")
		r.transition(StateInterrupted)

		backoff.Reset(r.opts.Backoff * time.Duration(retries))
		select {
		case <-ctx.Done():
			r.transition(StateStopped)
			return nil
		case <-backoff.C:
		}
	}
}
