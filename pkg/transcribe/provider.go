// Package transcribe captures live spoken answers: it streams audio to a
// speech-to-text provider, restarts interrupted recognition a bounded number
// of times and accumulates the transcript and volume samples the speech
// scorer needs once the recording ends.
package transcribe

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"interview-analyzer/pkg/config"
	"interview-analyzer/pkg/errors"
)

// Fragment is one interim or final piece of transcript
type Fragment struct {
	Text       string
	Final      bool
	Confidence float32
	Provider   string
	ReceivedAt time.Time
}

// Sink receives fragments in the order the provider produced them
type Sink func(Fragment)

// Provider defines the interface for streaming speech-to-text providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Initialize prepares the provider client
	Initialize(ctx context.Context) error

	// Stream sends audio to the provider until the reader is exhausted, the
	// context ends or the provider fails. A nil return means the audio ended.
	Stream(ctx context.Context, audio io.Reader, sink Sink) error
}

// NewProvider builds the provider selected in the configuration
func NewProvider(logger *logrus.Logger, cfg config.TranscribeConfig) (Provider, error) {
	switch cfg.Provider {
	case config.ProviderGoogle:
		return NewGoogleProvider(logger, cfg), nil
	case config.ProviderAmazon:
		return NewAmazonProvider(logger, cfg), nil
	case config.ProviderNone, "":
		return nil, errors.Wrap(errors.ErrProviderUnavailable, "no transcription provider configured")
	default:
		return nil, errors.NewInvalidInput(fmt.Sprintf("unknown transcription provider: %s", cfg.Provider))
	}
}

// chunkSize matches what both providers accept per streaming request
const chunkSize = 1024
