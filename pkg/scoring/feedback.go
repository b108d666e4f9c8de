package scoring

import (
	"fmt"
	"strings"

	"interview-analyzer/pkg/interview"
	"interview-analyzer/pkg/speech"
)

const (
	strengthThreshold = 80
	weaknessThreshold = 60
)

type feedbackRule struct {
	score      func(a *interview.ResponseAnalysis) int
	strength   string
	weakness   string
	suggestion func(a *interview.ResponseAnalysis) string
}

var feedbackRules = []feedbackRule{
	{
		score:      func(a *interview.ResponseAnalysis) int { return a.Clarity.Score },
		strength:   "Clear, well-structured response",
		weakness:   "Response lacks clarity or structure",
		suggestion: constant("Organize the answer with a clear opening, supporting points and a conclusion"),
	},
	{
		score:      func(a *interview.ResponseAnalysis) int { return a.Relevance.Score },
		strength:   "Answer stays focused on the question",
		weakness:   "Answer drifts from what was asked",
		suggestion: constant("Address the question directly and cover the points it asks for"),
	},
	{
		score:      func(a *interview.ResponseAnalysis) int { return a.Depth.Score },
		strength:   "Good depth with concrete examples",
		weakness:   "Answer lacks depth and specific examples",
		suggestion: constant("Add a specific example with measurable results"),
	},
	{
		score:    func(a *interview.ResponseAnalysis) int { return a.Completeness.Score },
		strength: "Covers the expected elements thoroughly",
		weakness: "Answer misses key elements",
		suggestion: func(a *interview.ResponseAnalysis) string {
			if len(a.Completeness.MissingElements) > 0 {
				return "Make sure to mention: " + strings.Join(a.Completeness.MissingElements, ", ")
			}
			return "Expand the answer so it covers the whole question"
		},
	},
	communicationRule,
}

// communicationRule judges the wording alone. MergeSpeech swaps its feedback
// for delivery feedback once audio has been scored.
var communicationRule = feedbackRule{
	score:      func(a *interview.ResponseAnalysis) int { return a.Communication.Score },
	strength:   "Expresses ideas fluently",
	weakness:   "Wording is hesitant or padded with filler",
	suggestion: constant("Cut filler words and keep sentences short and direct"),
}

func constant(s string) func(*interview.ResponseAnalysis) string {
	return func(*interview.ResponseAnalysis) string { return s }
}

// applyFeedback fills strengths, weaknesses and suggestions from the dimension scores
func applyFeedback(a *interview.ResponseAnalysis) {
	a.Strengths = []string{}
	a.Weaknesses = []string{}
	a.Suggestions = []string{}

	for _, rule := range feedbackRules {
		score := rule.score(a)
		switch {
		case score >= strengthThreshold:
			a.Strengths = append(a.Strengths, rule.strength)
		case score < weaknessThreshold:
			a.Weaknesses = append(a.Weaknesses, rule.weakness)
			a.Suggestions = append(a.Suggestions, rule.suggestion(a))
		}
	}

	if len(a.Clarity.GrammarIssues) > 0 {
		a.Suggestions = append(a.Suggestions, "Proofread for: "+strings.Join(a.Clarity.GrammarIssues, "; "))
	}
}

// MergeSpeech folds a speech analysis into a text analysis. Communication is
// replaced and delivery feedback is appended; the overall score is unchanged.
func MergeSpeech(a interview.ResponseAnalysis, s speech.Analysis) interview.ResponseAnalysis {
	merged := a
	merged.Strengths = without(a.Strengths, communicationRule.strength)
	merged.Weaknesses = without(a.Weaknesses, communicationRule.weakness)
	merged.Suggestions = without(a.Suggestions, communicationRule.suggestion(&merged))

	captured := s
	merged.Communication = interview.CommunicationScore{
		Score:  s.CommunicationScore,
		Speech: &captured,
	}

	switch {
	case s.CommunicationScore >= strengthThreshold:
		merged.Strengths = append(merged.Strengths, "Confident, fluent delivery")
	case s.CommunicationScore < weaknessThreshold:
		merged.Weaknesses = append(merged.Weaknesses, "Delivery sounded hesitant")
		merged.Suggestions = append(merged.Suggestions, "Practice answering aloud to build a steadier delivery")
	}

	if s.FillerRatio() > 0.08 && len(s.FillerWords) > 0 {
		top := s.FillerWords[0]
		merged.Suggestions = append(merged.Suggestions,
			fmt.Sprintf("Reduce filler words such as %q (used %d times)", top.Word, top.Count))
	}

	switch {
	case s.Pace > 0 && s.Pace < 120:
		merged.Suggestions = append(merged.Suggestions, fmt.Sprintf("Speak a little faster, %d words per minute is slow", s.Pace))
	case s.Pace > 180:
		merged.Suggestions = append(merged.Suggestions, fmt.Sprintf("Slow down, %d words per minute is hard to follow", s.Pace))
	}

	return merged
}

// without copies list leaving out every occurrence of drop
func without(list []string, drop string) []string {
	out := make([]string, 0, len(list))
	for _, item := range list {
		if item != drop {
			out = append(out, item)
		}
	}
	return out
}
