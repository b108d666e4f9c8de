package analysis

import (
	"context"

	"github.com/sirupsen/logrus"

	"interview-analyzer/pkg/interview"
	"interview-analyzer/pkg/scoring"
	"interview-analyzer/pkg/speech"
)

// Scorer produces the two analysis passes run by the orchestrator
type Scorer interface {
	Preliminary(ctx context.Context, response interview.Response, question interview.Question) (interview.ResponseAnalysis, error)
	Comprehensive(ctx context.Context, response interview.Response, question interview.Question) (interview.ResponseAnalysis, error)
}

// PipelineScorer combines the text and speech scorers
type PipelineScorer struct {
	text   *scoring.TextScorer
	speech *speech.Scorer
}

// NewPipelineScorer creates the default scorer
func NewPipelineScorer(logger *logrus.Logger) *PipelineScorer {
	return &PipelineScorer{
		text:   scoring.NewTextScorer(logger),
		speech: speech.NewScorer(logger),
	}
}

// Preliminary runs the reduced text pass with fallback speech metrics
func (p *PipelineScorer) Preliminary(_ context.Context, response interview.Response, question interview.Question) (interview.ResponseAnalysis, error) {
	return p.text.QuickScore(response, question), nil
}

// Comprehensive runs the full text pass and merges speech metrics when
// the response carries captured audio
func (p *PipelineScorer) Comprehensive(ctx context.Context, response interview.Response, question interview.Question) (interview.ResponseAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return interview.ResponseAnalysis{}, err
	}

	analysis := p.text.Score(response, question)
	if !response.HasAudio() || analysis.WordCount == 0 {
		return analysis, nil
	}

	audio := response.Audio
	transcript := audio.Transcript
	if transcript == "" {
		transcript = response.Content
	}
	spoken := p.speech.Score(transcript, audio.VolumeSamples, audio.Duration(response.ResponseTimeSeconds))
	return scoring.MergeSpeech(analysis, spoken), nil
}
