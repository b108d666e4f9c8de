package transcribe

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/transcribestreaming"
	"github.com/aws/aws-sdk-go-v2/service/transcribestreaming/types"
	"github.com/sirupsen/logrus"

	"interview-analyzer/pkg/config"
	"interview-analyzer/pkg/errors"
)

// AmazonProvider streams audio to Amazon Transcribe
type AmazonProvider struct {
	logger *logrus.Entry
	cfg    config.TranscribeConfig

	mu     sync.RWMutex
	client *transcribestreaming.Client
}

// NewAmazonProvider creates a new Amazon Transcribe provider
func NewAmazonProvider(logger *logrus.Logger, cfg config.TranscribeConfig) *AmazonProvider {
	return &AmazonProvider{
		logger: logger.WithField("component", "amazon_transcribe"),
		cfg:    cfg,
	}
}

// Name returns the provider name
func (p *AmazonProvider) Name() string {
	return config.ProviderAmazon
}

// Initialize loads AWS configuration and creates the streaming client
func (p *AmazonProvider) Initialize(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return nil
	}

	amazon := p.cfg.Amazon
	if amazon.AccessKeyID == "" || amazon.SecretAccessKey == "" {
		return errors.Wrap(errors.ErrProviderUnavailable, "Amazon Transcribe requires AWS access key ID and secret access key")
	}

	region := amazon.Region
	if region == "" {
		region = "us-east-1"
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithRetryMaxAttempts(3),
		awsconfig.WithRetryMode(aws.RetryModeStandard),
		awsconfig.WithCredentialsProvider(aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     amazon.AccessKeyID,
				SecretAccessKey: amazon.SecretAccessKey,
			}, nil
		})),
	)
	if err != nil {
		p.logger.WithError(err).Error("Failed to load AWS configuration")
		return errors.Wrap(err, "failed to load AWS configuration")
	}

	p.client = transcribestreaming.NewFromConfig(cfg)

	p.logger.WithFields(logrus.Fields{
		"region":      region,
		"language":    p.cfg.Language,
		"sample_rate": p.cfg.SampleRate,
		"vocabulary":  amazon.VocabularyName,
	}).Info("Amazon Transcribe provider initialized")
	return nil
}

// Stream sends PCM audio and forwards partial and final results to sink
func (p *AmazonProvider) Stream(ctx context.Context, audio io.Reader, sink Sink) error {
	p.mu.RLock()
	client := p.client
	p.mu.RUnlock()
	if client == nil {
		return errors.Wrap(errors.ErrProviderUnavailable, "Amazon provider is not initialized")
	}

	input := &transcribestreaming.StartStreamTranscriptionInput{
		LanguageCode:         types.LanguageCode(p.cfg.Language),
		MediaSampleRateHertz: aws.Int32(int32(p.cfg.SampleRate)),
		MediaEncoding:        types.MediaEncodingPcm,
	}
	if p.cfg.Amazon.VocabularyName != "" {
		input.VocabularyName = aws.String(p.cfg.Amazon.VocabularyName)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	resp, err := client.StartStreamTranscription(streamCtx, input)
	if err != nil {
		return errors.Wrap(err, "failed to start transcription stream")
	}
	stream := resp.GetStream()

	errChan := make(chan error, 2)

	go func() {
		defer func() {
			if closeErr := stream.Close(); closeErr != nil {
				p.logger.WithError(closeErr).Debug("Failed to close stream")
			}
		}()

		buffer := make([]byte, chunkSize)
		for {
			n, readErr := audio.Read(buffer)
			if n > 0 {
				event := &types.AudioStreamMemberAudioEvent{
					Value: types.AudioEvent{AudioChunk: append([]byte(nil), buffer[:n]...)},
				}
				if sendErr := stream.Send(streamCtx, event); sendErr != nil {
					errChan <- errors.Wrap(sendErr, "failed to send audio to Amazon Transcribe")
					return
				}
			}
			if readErr == io.EOF {
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
		for event := range stream.Events() {
			if transcript, ok := event.(*types.TranscriptResultStreamMemberTranscriptEvent); ok {
				p.forward(transcript.Value, sink)
			} else {
				p.logger.WithField("event_type", fmt.Sprintf("%T", event)).Debug("Ignoring transcription event")
			}
		}
		if streamErr := stream.Err(); streamErr != nil {
			errChan <- streamErr
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

func (p *AmazonProvider) forward(event types.TranscriptEvent, sink Sink) {
	if event.Transcript == nil {
		return
	}
	for _, result := range event.Transcript.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		alt := result.Alternatives[0]
		if alt.Transcript == nil || *alt.Transcript == "" {
			continue
		}

		var confidence float32
		var scored int
		for _, item := range alt.Items {
			if item.Confidence != nil {
				confidence += float32(*item.Confidence)
				scored++
			}
		}
		if scored > 0 {
			confidence /= float32(scored)
		}

		sink(Fragment{
			Text:       *alt.Transcript,
			Final:      !result.IsPartial,
			Confidence: confidence,
			Provider:   p.Name(),
			ReceivedAt: time.Now(),
		})
	}
}

// Close drops the client
func (p *AmazonProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.client = nil
	return nil
}
