package transcribe

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"interview-analyzer/pkg/config"
	"interview-analyzer/pkg/errors"
)

// GoogleProvider streams audio to Google Cloud Speech-to-Text
type GoogleProvider struct {
	logger *logrus.Entry
	cfg    config.TranscribeConfig

	mu     sync.RWMutex
	client *speech.Client
}

// NewGoogleProvider creates a new Google Speech-to-Text provider
func NewGoogleProvider(logger *logrus.Logger, cfg config.TranscribeConfig) *GoogleProvider {
	return &GoogleProvider{
		logger: logger.WithField("component", "google_transcribe"),
		cfg:    cfg,
	}
}

// Name returns the provider name
func (p *GoogleProvider) Name() string {
	return config.ProviderGoogle
}

// Initialize creates the Speech client
func (p *GoogleProvider) Initialize(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return nil
	}

	var clientOptions []option.ClientOption
	switch {
	case p.cfg.Google.APIKey != "":
		clientOptions = append(clientOptions, option.WithAPIKey(p.cfg.Google.APIKey))
		p.logger.Debug("Using Google STT API key authentication")
	case p.cfg.Google.CredentialsFile != "":
		clientOptions = append(clientOptions, option.WithCredentialsFile(p.cfg.Google.CredentialsFile))
		p.logger.WithField("credentials_file", p.cfg.Google.CredentialsFile).Debug("Using Google STT credentials file")
	default:
		return errors.Wrap(errors.ErrProviderUnavailable, "Google STT requires either API key or credentials file")
	}

	client, err := speech.NewClient(ctx, clientOptions...)
	if err != nil {
		p.logger.WithError(err).Error("Failed to create Google Speech client")
		return errors.Wrap(err, "failed to create Google Speech client")
	}
	p.client = client

	p.logger.WithFields(logrus.Fields{
		"language":         p.cfg.Language,
		"sample_rate":      p.cfg.SampleRate,
		"model":            p.cfg.Google.Model,
		"auto_punctuation": p.cfg.Google.EnableAutomaticPunctuation,
	}).Info("Google Speech-to-Text client initialized")
	return nil
}

// Stream sends LINEAR16 audio and forwards interim and final results to sink
func (p *GoogleProvider) Stream(ctx context.Context, audio io.Reader, sink Sink) error {
	p.mu.RLock()
	client := p.client
	p.mu.RUnlock()
	if client == nil {
		return errors.Wrap(errors.ErrProviderUnavailable, "Google provider is not initialized")
	}

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := client.StreamingRecognize(streamCtx)
	if err != nil {
		return errors.Wrap(err, "failed to start Google streaming recognition")
	}

	recognitionConfig := &speechpb.RecognitionConfig{
		Encoding:                   speechpb.RecognitionConfig_LINEAR16,
		SampleRateHertz:            int32(p.cfg.SampleRate),
		LanguageCode:               p.cfg.Language,
		EnableAutomaticPunctuation: p.cfg.Google.EnableAutomaticPunctuation,
		MaxAlternatives:            1,
	}
	if p.cfg.Google.Model != "" {
		recognitionConfig.Model = p.cfg.Google.Model
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config:         recognitionConfig,
				InterimResults: true,
			},
		},
	}); err != nil {
		return errors.Wrap(err, "failed to send streaming config")
	}

	errChan := make(chan error, 2)

	go func() {
		buffer := make([]byte, chunkSize)
		for {
			n, readErr := audio.Read(buffer)
			if n > 0 {
				if sendErr := stream.Send(&speechpb.StreamingRecognizeRequest{
					StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
						AudioContent: append([]byte(nil), buffer[:n]...),
					},
				}); sendErr != nil {
					errChan <- errors.Wrap(sendErr, "failed to send audio content")
					return
				}
			}
			if readErr == io.EOF {
				_ = stream.CloseSend()
				return
			}
			if readErr != nil {
				errChan <- errors.Wrap(readErr, "failed to read audio stream")
				return
			}
			if streamCtx.Err() != nil {
				return
			}
		}
	}()

	recvDone := make(chan struct{})
	go func() {
		defer close(recvDone)
		for {
			resp, recvErr := stream.Recv()
			if recvErr == io.EOF {
				return
			}
			if recvErr != nil {
				errChan <- recvErr
				return
			}
			for _, result := range resp.Results {
				if len(result.Alternatives) == 0 {
					continue
				}
				alt := result.Alternatives[0]
				sink(Fragment{
					Text:       alt.Transcript,
					Final:      result.IsFinal,
					Confidence: alt.Confidence,
					Provider:   p.Name(),
					ReceivedAt: time.Now(),
				})
			}
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-recvDone:
		select {
		case err := <-errChan:
			return err
		default:
			return nil
		}
	}
}

// Close releases the Speech client
func (p *GoogleProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	if err != nil {
		return fmt.Errorf("failed to close Google Speech client: %w", err)
	}
	return nil
}
