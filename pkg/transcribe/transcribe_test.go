package transcribe

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview-analyzer/pkg/config"
	apperrors "interview-analyzer/pkg/errors"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// scriptedProvider plays one attempt per call: its fragments, then its error
type scriptedProvider struct {
	mu       sync.Mutex
	attempts []attempt
	calls    int
	initErr  error
	drain    bool
}

type attempt struct {
	fragments []Fragment
	err       error
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Initialize(context.Context) error { return p.initErr }

func (p *scriptedProvider) Stream(ctx context.Context, audio io.Reader, sink Sink) error {
	p.mu.Lock()
	idx := p.calls
	p.calls++
	p.mu.Unlock()

	if p.drain {
		if _, err := io.Copy(io.Discard, audio); err != nil {
			return err
		}
	}
	if idx >= len(p.attempts) {
		return nil
	}
	for _, f := range p.attempts[idx].fragments {
		sink(f)
	}
	return p.attempts[idx].err
}

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func stateRecorder() (*[]State, func(State, int)) {
	var mu sync.Mutex
	var states []State
	return &states, func(s State, _ int) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, s)
	}
}

func TestRecognizerStopsWhenAudioEnds(t *testing.T) {
	provider := &scriptedProvider{attempts: []attempt{{fragments: []Fragment{{Text: "hello", Final: true}}}}}
	states, onChange := stateRecorder()
	r := NewRecognizer(quietLogger(), provider, RecognizerOptions{MaxRetries: 2, OnStateChange: onChange})

	var got []string
	err := r.Run(context.Background(), bytes.NewReader(nil), func(f Fragment) { got = append(got, f.Text) })
	require.NoError(t, err)

	assert.Equal(t, []string{"hello"}, got)
	assert.Equal(t, []State{StateListening, StateStopped}, *states)
	state, retries := r.State()
	assert.Equal(t, StateStopped, state)
	assert.Zero(t, retries)
}

func TestRecognizerRestartsAfterInterruption(t *testing.T) {
	provider := &scriptedProvider{attempts: []attempt{
		{err: errors.New("stream reset")},
		{err: errors.New("stream reset")},
		{fragments: []Fragment{{Text: "recovered", Final: true}}},
	}}
	states, onChange := stateRecorder()
	r := NewRecognizer(quietLogger(), provider, RecognizerOptions{MaxRetries: 2, OnStateChange: onChange})

	require.NoError(t, r.Run(context.Background(), bytes.NewReader(nil), nil))
	assert.Equal(t, 3, provider.callCount())
	assert.Equal(t, []State{
		StateListening, StateInterrupted,
		StateListening, StateInterrupted,
		StateListening, StateStopped,
	}, *states)
}

func TestRecognizerFailsAfterMaxRetries(t *testing.T) {
	provider := &scriptedProvider{attempts: []attempt{
		{err: errors.New("network down")},
		{err: errors.New("network down")},
		{err: errors.New("network down")},
	}}
	r := NewRecognizer(quietLogger(), provider, RecognizerOptions{MaxRetries: 2})

	err := r.Run(context.Background(), bytes.NewReader(nil), nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrRecognitionFailed))
	assert.Contains(t, err.Error(), "network down")
	assert.Equal(t, 3, provider.callCount())

	state, retries := r.State()
	assert.Equal(t, StateFailed, state)
	assert.Equal(t, 3, retries)
}

func TestFinalFragmentResetsRetries(t *testing.T) {
	provider := &scriptedProvider{attempts: []attempt{
		{err: errors.New("reset")},
		{fragments: []Fragment{{Text: "progress", Final: true}}, err: errors.New("reset")},
		{},
	}}
	r := NewRecognizer(quietLogger(), provider, RecognizerOptions{MaxRetries: 1})

	// without the reset the second interruption would exceed the limit
	require.NoError(t, r.Run(context.Background(), bytes.NewReader(nil), nil))
	assert.Equal(t, 3, provider.callCount())
}

func TestRecognizerInitializeFailure(t *testing.T) {
	provider := &scriptedProvider{initErr: apperrors.ErrProviderUnavailable}
	r := NewRecognizer(quietLogger(), provider, RecognizerOptions{})

	err := r.Run(context.Background(), bytes.NewReader(nil), nil)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrProviderUnavailable))
	state, _ := r.State()
	assert.Equal(t, StateFailed, state)
	assert.Zero(t, provider.callCount())
}

func TestRecognizerCancelIsCleanStop(t *testing.T) {
	provider := &scriptedProvider{attempts: []attempt{{err: errors.New("reset")}}}
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRecognizer(quietLogger(), provider, RecognizerOptions{
		MaxRetries: 5,
		Backoff:    time.Hour,
		OnStateChange: func(s State, _ int) {
			if s == StateInterrupted {
				cancel()
			}
		},
	})

	require.NoError(t, r.Run(ctx, bytes.NewReader(nil), nil))
	state, _ := r.State()
	assert.Equal(t, StateStopped, state)
}

func pcm(samples ...int16) []byte {
	buf := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(s))
	}
	return buf
}

func constantFrame(n int, amplitude int16) []int16 {
	frame := make([]int16, n)
	for i := range frame {
		if i%2 == 0 {
			frame[i] = amplitude
		} else {
			frame[i] = -amplitude
		}
	}
	return frame
}

func TestVolume(t *testing.T) {
	assert.Zero(t, Volume(nil))
	assert.Zero(t, Volume(constantFrame(100, 0)))
	assert.Zero(t, Volume(constantFrame(100, 30)), "below -60 dBFS reads as silence")
	assert.Equal(t, 100.0, Volume(constantFrame(100, math.MaxInt16)))

	// -30 dBFS sits in the middle of the scale
	mid := int16(math.Round(32768 * math.Pow(10, -30.0/20)))
	assert.InDelta(t, 50.0, Volume(constantFrame(100, mid)), 0.2)
}

func TestRecorderVolumeSamples(t *testing.T) {
	r := NewRecorder(600) // ten samples per reading

	loud := pcm(constantFrame(10, 20000)...)
	quiet := pcm(constantFrame(10, 0)...)

	// split writes across a sample boundary
	_, _ = r.Write(loud[:5])
	_, _ = r.Write(loud[5:])
	assert.Greater(t, r.CurrentVolume(), 90.0)

	n, err := r.Write(quiet)
	require.NoError(t, err)
	assert.Equal(t, len(quiet), n)
	assert.Zero(t, r.CurrentVolume())

	_, _ = r.Write(pcm(20000, -20000))
	assert.Equal(t, 22*time.Second/600, r.AudioDuration())
	bundle := r.Finish()
	require.Len(t, bundle.VolumeSamples, 3, "a partial frame is flushed on finish")
	assert.Zero(t, bundle.VolumeSamples[1])
}

func TestRecorderTranscript(t *testing.T) {
	r := NewRecorder(16000)
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	clock := start
	r.now = func() time.Time { return clock }

	r.OnFragment(Fragment{Text: "I led"})
	assert.Equal(t, "I led", r.Transcript())

	clock = clock.Add(time.Second)
	r.OnFragment(Fragment{Text: "I led the team.", Final: true})
	r.OnFragment(Fragment{Text: "We shipped"})
	assert.Equal(t, "I led the team. We shipped", r.Transcript())

	clock = clock.Add(2 * time.Second)
	r.OnFragment(Fragment{Text: "We shipped on time.", Final: true})
	bundle := r.Finish()

	assert.Equal(t, "I led the team. We shipped on time.", bundle.Transcript)
	assert.Equal(t, start, bundle.StartedAt)
	assert.Equal(t, 3.0, bundle.Duration(0))
}

func TestCapture(t *testing.T) {
	provider := &scriptedProvider{
		drain: true,
		attempts: []attempt{{fragments: []Fragment{
			{Text: "so I", Final: false},
			{Text: "So I reduced latency by 40%.", Final: true},
		}}},
	}
	r := NewRecognizer(quietLogger(), provider, RecognizerOptions{})
	rec := NewRecorder(600)

	audio := append(pcm(constantFrame(10, 20000)...), pcm(constantFrame(10, 0)...)...)
	var seen int
	bundle, err := Capture(context.Background(), r, rec, bytes.NewReader(audio), func(Fragment) { seen++ })
	require.NoError(t, err)

	assert.Equal(t, 2, seen)
	assert.Equal(t, "So I reduced latency by 40%.", bundle.Transcript)
	assert.Len(t, bundle.VolumeSamples, 2)
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(quietLogger(), config.TranscribeConfig{Provider: config.ProviderGoogle})
	require.NoError(t, err)
	assert.Equal(t, "google", p.Name())

	p, err = NewProvider(quietLogger(), config.TranscribeConfig{Provider: config.ProviderAmazon})
	require.NoError(t, err)
	assert.Equal(t, "amazon", p.Name())

	_, err = NewProvider(quietLogger(), config.TranscribeConfig{Provider: config.ProviderNone})
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrProviderUnavailable))

	_, err = NewProvider(quietLogger(), config.TranscribeConfig{Provider: "fax"})
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrInvalidInput))
}

func TestProvidersRequireCredentials(t *testing.T) {
	ctx := context.Background()

	google := NewGoogleProvider(quietLogger(), config.TranscribeConfig{})
	assert.True(t, apperrors.IsErrorType(google.Initialize(ctx), apperrors.ErrProviderUnavailable))
	assert.True(t, apperrors.IsErrorType(google.Stream(ctx, bytes.NewReader(nil), nil), apperrors.ErrProviderUnavailable))

	amazon := NewAmazonProvider(quietLogger(), config.TranscribeConfig{})
	assert.True(t, apperrors.IsErrorType(amazon.Initialize(ctx), apperrors.ErrProviderUnavailable))
	assert.True(t, apperrors.IsErrorType(amazon.Stream(ctx, bytes.NewReader(nil), nil), apperrors.ErrProviderUnavailable))
}
