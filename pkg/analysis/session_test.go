package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "interview-analyzer/pkg/errors"
	"interview-analyzer/pkg/interview"
)

type fakePerformance struct {
	report *PerformanceReport
	err    error
	panics bool
}

func (f fakePerformance) ScoreSession(context.Context, *interview.Session) (*PerformanceReport, error) {
	if f.panics {
		panic("aggregation exploded")
	}
	return f.report, f.err
}

func testSession() *interview.Session {
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)
	return &interview.Session{
		ID:        "s-1",
		StartTime: start,
		EndTime:   &end,
		Questions: []interview.Question{testQuestion},
		Responses: []interview.Response{
			response("r1", "first answer"),
			response("r2", "second answer"),
		},
	}
}

func TestAnalyzeSession(t *testing.T) {
	perf := fakePerformance{report: &PerformanceReport{
		OverallScore: 72,
		DimensionScores: map[interview.Dimension]int{
			interview.DimensionClarity:       85,
			interview.DimensionRelevance:     78,
			interview.DimensionDepth:         72,
			interview.DimensionCompleteness:  65,
			interview.DimensionCommunication: 55,
		},
		Recommendations: []string{"Practice speaking answers aloud"},
	}}
	o, log := newTestOrchestrator(t, newFakeScorer(), perf, Options{})

	result := o.AnalyzeSession(context.Background(), testSession())

	assert.Equal(t, "s-1", result.SessionID)
	assert.Equal(t, 72, result.OverallScore)
	assert.Equal(t, 30.0, result.TimeSpentMinutes)
	assert.Equal(t, 2, result.ResponseCount)
	assert.Equal(t, 1, result.QuestionCount)
	assert.Equal(t, []interview.Dimension{interview.DimensionClarity, interview.DimensionRelevance, interview.DimensionDepth}, result.Strengths)
	assert.Equal(t, []interview.Dimension{interview.DimensionCommunication}, result.ImprovementAreas)
	assert.Equal(t, []string{"Practice speaking answers aloud"}, result.Recommendations)

	complete, ok := log.last("s-1", EventComplete)
	require.True(t, ok)
	require.NotNil(t, complete.Session)
	assert.Equal(t, 72, complete.Session.OverallScore)
}

func TestAnalyzeSessionWithoutEndTime(t *testing.T) {
	perf := fakePerformance{report: &PerformanceReport{OverallScore: 50, DimensionScores: map[interview.Dimension]int{}}}
	o, _ := newTestOrchestrator(t, newFakeScorer(), perf, Options{})

	session := testSession()
	session.EndTime = nil
	result := o.AnalyzeSession(context.Background(), session)

	assert.Zero(t, result.TimeSpentMinutes)
	assert.Empty(t, result.Strengths)
	assert.Empty(t, result.ImprovementAreas)
}

func TestHighlightsOrderAndLimit(t *testing.T) {
	scores := map[interview.Dimension]int{
		interview.DimensionClarity:       70,
		interview.DimensionRelevance:     95,
		interview.DimensionDepth:         80,
		interview.DimensionCompleteness:  90,
		interview.DimensionCommunication: 10,
		"energy":                         20,
		"posture":                        20,
		"eye_contact":                    40,
	}

	strengths, improvements := highlights(scores)
	assert.Equal(t, []interview.Dimension{interview.DimensionRelevance, interview.DimensionCompleteness, interview.DimensionDepth}, strengths)
	assert.Equal(t, []interview.Dimension{interview.DimensionCommunication, "energy", "posture"}, improvements)
}

func TestAnalyzeSessionFailures(t *testing.T) {
	tests := []struct {
		name string
		perf fakePerformance
	}{
		{"scorer error", fakePerformance{err: errors.New("no analyses available")}},
		{"scorer panic", fakePerformance{panics: true}},
		{"nil report", fakePerformance{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, log := newTestOrchestrator(t, newFakeScorer(), tt.perf, Options{})

			result := o.AnalyzeSession(context.Background(), testSession())

			assert.Equal(t, "s-1", result.SessionID)
			assert.Zero(t, result.OverallScore)
			assert.Empty(t, result.DimensionScores)
			assert.Empty(t, result.Strengths)
			assert.Empty(t, result.Recommendations)

			failure, ok := log.last("s-1", EventError)
			require.True(t, ok)
			assert.Contains(t, failure.Error, apperrors.ErrSessionAnalysisFailed.Error())
			assert.Zero(t, log.count("s-1", EventComplete))
		})
	}
}

func TestResponsePerformanceScorer(t *testing.T) {
	scorer := newFakeScorer()
	session := testSession()
	session.Analyses = map[string]interview.ResponseAnalysis{
		"r1": scoredAnalysis(session.Responses[0], testQuestion, interview.StageComprehensive, 80),
		"r2": scoredAnalysis(session.Responses[1], testQuestion, interview.StageComprehensive, 40),
	}

	report, err := NewResponsePerformanceScorer(scorer).ScoreSession(context.Background(), session)
	require.NoError(t, err)

	assert.Equal(t, 60, report.OverallScore)
	for _, dim := range interview.Dimensions {
		assert.Equal(t, 60, report.DimensionScores[dim], dim)
	}
	assert.Empty(t, report.Recommendations)
	assert.Zero(t, scorer.callCount("r1"), "stored analyses are reused")
}

func TestResponsePerformanceScorerScoresMissingAnalyses(t *testing.T) {
	scorer := newFakeScorer()
	session := testSession()
	session.Analyses = map[string]interview.ResponseAnalysis{
		"r1": scoredAnalysis(session.Responses[0], testQuestion, interview.StageComprehensive, 30),
	}

	report, err := NewResponsePerformanceScorer(scorer).ScoreSession(context.Background(), session)
	require.NoError(t, err)

	// r2 scores len("second answer") = 13
	assert.Equal(t, 1, scorer.callCount("r2"))
	assert.Equal(t, 22, report.OverallScore)
	assert.Len(t, report.Recommendations, len(interview.Dimensions))
}

func TestResponsePerformanceScorerEmptySession(t *testing.T) {
	_, err := NewResponsePerformanceScorer(newFakeScorer()).ScoreSession(context.Background(), &interview.Session{ID: "empty"})
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrInvalidInput))
}

func TestAnalyzeEmptySessionWithDefaultScorer(t *testing.T) {
	o, log := newTestOrchestrator(t, newFakeScorer(), nil, Options{})

	result := o.AnalyzeSession(context.Background(), &interview.Session{ID: "s-empty"})

	assert.Equal(t, interview.EmptySessionAnalysis("s-empty").DimensionScores, result.DimensionScores)
	_, ok := log.last("s-empty", EventError)
	assert.True(t, ok)
}
