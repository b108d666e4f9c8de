package transcribe

import (
	"context"
	"encoding/binary"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"interview-analyzer/pkg/interview"
)

const (
	// volume readings are taken at roughly display frame rate
	framesPerSecond = 60

	// dBFS mapped onto the 0-100 volume scale
	silenceFloorDB = -60.0
)

// Recorder accumulates a live answer. It is an io.Writer for 16-bit little
// endian mono PCM, from which it derives volume samples, and a Sink for
// transcript fragments. Interim fragments replace each other; finals append.
type Recorder struct {
	now func() time.Time

	mu           sync.Mutex
	sampleRate   int
	sampleCount  int64
	windowSize   int
	window       []int16
	carry        []byte
	samples      []float64
	current      float64
	finals       []string
	interim      string
	startedAt    time.Time
	lastActivity time.Time
}

// NewRecorder creates a recorder for audio at sampleRate Hz
func NewRecorder(sampleRate int) *Recorder {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	size := sampleRate / framesPerSecond
	if size < 1 {
		size = 1
	}
	return &Recorder{
		now:        time.Now,
		sampleRate: sampleRate,
		windowSize: size,
		window:     make([]int16, 0, size),
	}
}

func (r *Recorder) touchLocked() {
	now := r.now()
	if r.startedAt.IsZero() {
		r.startedAt = now
	}
	r.lastActivity = now
}

// Write consumes PCM audio. It never fails.
func (r *Recorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touchLocked()

	data := p
	if len(r.carry) > 0 {
		data = append(r.carry, p...)
		r.carry = nil
	}

	for len(data) >= 2 {
		r.window = append(r.window, int16(binary.LittleEndian.Uint16(data)))
		r.sampleCount++
		data = data[2:]
		if len(r.window) == r.windowSize {
			r.current = Volume(r.window)
			r.samples = append(r.samples, r.current)
			r.window = r.window[:0]
		}
	}
	if len(data) == 1 {
		r.carry = []byte{data[0]}
	}
	return len(p), nil
}

// OnFragment records a transcript fragment
func (r *Recorder) OnFragment(f Fragment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touchLocked()

	text := strings.TrimSpace(f.Text)
	if f.Final {
		if text != "" {
			r.finals = append(r.finals, text)
		}
		r.interim = ""
		return
	}
	r.interim = text
}

// CurrentVolume is the latest volume reading, 0-100
func (r *Recorder) CurrentVolume() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// AudioDuration is the length of the audio written so far
func (r *Recorder) AudioDuration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Duration(r.sampleCount) * time.Second / time.Duration(r.sampleRate)
}

// Transcript returns the final text so far followed by any pending interim text
func (r *Recorder) Transcript() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transcriptLocked(true)
}

func (r *Recorder) transcriptLocked(withInterim bool) string {
	parts := append([]string{}, r.finals...)
	if withInterim && r.interim != "" {
		parts = append(parts, r.interim)
	}
	return strings.Join(parts, " ")
}

// Finish closes the recording and returns the signal bundle. A pending
// interim fragment is kept, since recognition may stop before finalizing it.
func (r *Recorder) Finish() *interview.AudioSignalBundle {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.window) > 0 {
		r.samples = append(r.samples, Volume(r.window))
		r.window = r.window[:0]
	}

	started := r.startedAt
	if started.IsZero() {
		started = r.now()
	}
	ended := r.now()
	if ended.Before(r.lastActivity) {
		ended = r.lastActivity
	}

	return &interview.AudioSignalBundle{
		VolumeSamples: append([]float64{}, r.samples...),
		StartedAt:     started,
		EndedAt:       ended,
		Transcript:    r.transcriptLocked(true),
	}
}

// Volume maps the RMS level of a PCM frame onto 0-100 through a -60..0 dBFS range
func Volume(frame []int16) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		v := float64(s)
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(len(frame)))
	if rms < 1 {
		return 0
	}
	db := 20 * math.Log10(rms/32768)
	if db <= silenceFloorDB {
		return 0
	}
	if db >= 0 {
		return 100
	}
	return math.Round((db-silenceFloorDB)/-silenceFloorDB*1000) / 10
}

// Capture runs recognition over audio while recording it, and returns the
// signal bundle once the audio ends. Fragments are also passed to sink.
func Capture(ctx context.Context, recognizer *Recognizer, recorder *Recorder, audio io.Reader, sink Sink) (*interview.AudioSignalBundle, error) {
	tee := io.TeeReader(audio, recorder)
	err := recognizer.Run(ctx, tee, func(f Fragment) {
		recorder.OnFragment(f)
		if sink != nil {
			sink(f)
		}
	})
	return recorder.Finish(), err
}
