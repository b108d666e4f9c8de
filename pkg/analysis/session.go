package analysis

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"interview-analyzer/pkg/errors"
	"interview-analyzer/pkg/interview"
	"interview-analyzer/pkg/metrics"
)

const (
	strengthCutoff    = 70
	improvementCutoff = 60
	maxHighlights     = 3
)

// PerformanceReport is what a performance scorer returns for a session
type PerformanceReport struct {
	OverallScore    int
	DimensionScores map[interview.Dimension]int
	Recommendations []string
}

// PerformanceScorer aggregates the per-dimension performance of a session
type PerformanceScorer interface {
	ScoreSession(ctx context.Context, session *interview.Session) (*PerformanceReport, error)
}

// AnalyzeSession aggregates a session. It never fails: if scoring fails the
// canonical empty analysis is returned and an error event is published under
// the session id.
func (o *Orchestrator) AnalyzeSession(ctx context.Context, session *interview.Session) interview.SessionAnalysis {
	if session == nil {
		session = &interview.Session{}
	}
	log := o.logger.WithField("session_id", session.ID)

	var report *PerformanceReport
	err := o.panics.Guard("session_analysis", func() error {
		var err error
		report, err = o.performance.ScoreSession(ctx, session)
		if err == nil && report == nil {
			err = errors.New("performance scorer returned no report")
		}
		return err
	})

	if err != nil {
		metrics.RecordSessionAnalysis("failed")
		failure := errors.Wrap(errors.ErrSessionAnalysisFailed, err.Error()).WithField("session_id", session.ID)
		log.WithError(failure).Error("Session analysis failed")

		empty := interview.EmptySessionAnalysis(session.ID)
		o.publishSession(EventError, session.ID, &empty, failure.Error())
		return empty
	}

	result := interview.SessionAnalysis{
		SessionID:        session.ID,
		OverallScore:     clampScore(report.OverallScore),
		DimensionScores:  make(map[interview.Dimension]int, len(report.DimensionScores)),
		TimeSpentMinutes: timeSpentMinutes(session),
		ResponseCount:    len(session.Responses),
		QuestionCount:    len(session.Questions),
		Recommendations:  append([]string{}, report.Recommendations...),
		AnalyzedAt:       o.now(),
	}
	for dim, score := range report.DimensionScores {
		result.DimensionScores[dim] = clampScore(score)
	}
	result.Strengths, result.ImprovementAreas = highlights(result.DimensionScores)

	metrics.RecordSessionAnalysis("completed")
	log.WithFields(logrus.Fields{
		"overall":   result.OverallScore,
		"responses": result.ResponseCount,
	}).Info("Session analysis complete")

	o.publishSession(EventComplete, session.ID, &result, "")
	return result
}

func (o *Orchestrator) publishSession(eventType EventType, sessionID string, analysis *interview.SessionAnalysis, errMessage string) {
	o.bus.Publish(Event{
		Type:      eventType,
		Key:       sessionID,
		SessionID: sessionID,
		Session:   analysis,
		Error:     errMessage,
		Timestamp: o.now(),
	})
}

func timeSpentMinutes(session *interview.Session) float64 {
	if session.EndTime == nil || session.StartTime.IsZero() {
		return 0
	}
	minutes := session.EndTime.Sub(session.StartTime).Minutes()
	if minutes < 0 {
		return 0
	}
	return math.Round(minutes*100) / 100
}

// highlights picks up to three dimensions scoring at least 70, best first,
// and up to three scoring below 60, worst first
func highlights(scores map[interview.Dimension]int) (strengths, improvements []interview.Dimension) {
	strengths = []interview.Dimension{}
	improvements = []interview.Dimension{}

	for _, dim := range orderedDimensions(scores) {
		switch score := scores[dim]; {
		case score >= strengthCutoff:
			strengths = append(strengths, dim)
		case score < improvementCutoff:
			improvements = append(improvements, dim)
		}
	}

	sort.SliceStable(strengths, func(i, j int) bool { return scores[strengths[i]] > scores[strengths[j]] })
	sort.SliceStable(improvements, func(i, j int) bool { return scores[improvements[i]] < scores[improvements[j]] })

	if len(strengths) > maxHighlights {
		strengths = strengths[:maxHighlights]
	}
	if len(improvements) > maxHighlights {
		improvements = improvements[:maxHighlights]
	}
	return strengths, improvements
}

// orderedDimensions lists the known dimensions first, then any others by name
func orderedDimensions(scores map[interview.Dimension]int) []interview.Dimension {
	dims := make([]interview.Dimension, 0, len(scores))
	known := make(map[interview.Dimension]bool, len(interview.Dimensions))
	for _, d := range interview.Dimensions {
		known[d] = true
		if _, ok := scores[d]; ok {
			dims = append(dims, d)
		}
	}
	var extra []interview.Dimension
	for d := range scores {
		if !known[d] {
			extra = append(extra, d)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(dims, extra...)
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ResponsePerformanceScorer averages the per-response analyses of a session.
// Responses without a stored analysis are scored on the spot.
type ResponsePerformanceScorer struct {
	scorer Scorer
}

// NewResponsePerformanceScorer creates the default performance scorer
func NewResponsePerformanceScorer(scorer Scorer) *ResponsePerformanceScorer {
	return &ResponsePerformanceScorer{scorer: scorer}
}

var recommendationFor = map[interview.Dimension]string{
	interview.DimensionClarity:       "Structure answers with a clear opening, body and conclusion",
	interview.DimensionRelevance:     "Answer the question that was asked before adding context",
	interview.DimensionDepth:         "Back claims with specific examples and measurable results",
	interview.DimensionCompleteness:  "Cover every part of the question, including the expected elements",
	interview.DimensionCommunication: "Practice speaking answers aloud to reduce filler words and hesitation",
}

func (p *ResponsePerformanceScorer) ScoreSession(ctx context.Context, session *interview.Session) (*PerformanceReport, error) {
	if session == nil || len(session.Responses) == 0 {
		return nil, errors.NewInvalidInput("session has no responses")
	}

	totals := make(map[interview.Dimension]int, len(interview.Dimensions))
	overall := 0
	for _, response := range session.Responses {
		analysis, ok := session.Analyses[response.ID]
		if !ok {
			question, found := session.Question(response.QuestionID)
			if !found {
				question = interview.Question{ID: response.QuestionID}
			}
			var err error
			analysis, err = p.scorer.Comprehensive(ctx, response, question)
			if err != nil {
				return nil, errors.Wrap(err, fmt.Sprintf("failed to score response %s", response.ID))
			}
		}
		for dim, score := range analysis.DimensionScores() {
			totals[dim] += score
		}
		overall += analysis.OverallScore
	}

	n := float64(len(session.Responses))
	report := &PerformanceReport{
		OverallScore:    int(math.Round(float64(overall) / n)),
		DimensionScores: make(map[interview.Dimension]int, len(totals)),
		Recommendations: []string{},
	}
	for _, dim := range interview.Dimensions {
		score := int(math.Round(float64(totals[dim]) / n))
		report.DimensionScores[dim] = score
		if score < improvementCutoff {
			report.Recommendations = append(report.Recommendations, recommendationFor[dim])
		}
	}
	return report, nil
}
