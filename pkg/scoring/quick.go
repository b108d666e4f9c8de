package scoring

import (
	"strings"
	"time"

	"interview-analyzer/pkg/interview"
	"interview-analyzer/pkg/speech"
)

var (
	quickTransitions = phraseSet("because", "however", "for example", "as a result", "then")
	quickExamples    = phraseSet("for example", "for instance", "i led", "when i", "in my")
	quickInsights    = phraseSet("learned", "realized", "looking back", "next time")
)

// QuickScore is the reduced pass used for preliminary feedback. It relies on
// word and sentence counts, the length band, literal expected-element matches
// and a handful of phrase checks instead of the full rule tables.
func (s *TextScorer) QuickScore(response interview.Response, question interview.Question) interview.ResponseAnalysis {
	text := response.Transcript()
	if strings.TrimSpace(text) == "" {
		return EmptyAnalysis(response, interview.StagePreliminary, s.now())
	}

	lower := strings.ToLower(text)
	words := len(strings.Fields(text))
	sentences := len(splitSentences(text))

	clarity := 60
	if sentences >= 3 {
		clarity += 10
	}
	if avg := float64(words) / float64(maxInt(1, sentences)); avg >= 8 && avg <= 25 {
		clarity += 10
	}
	if containsAny(quickTransitions, lower) {
		clarity += 10
	}
	if words < minWordsThreshold {
		clarity /= 2
	}

	keyword := defaultKeywordMatch
	missing := []string{}
	expected := expectedElements(question)
	if n := len(expected); n > 0 {
		hits := 0
		for _, element := range expected {
			if strings.Contains(lower, strings.ToLower(strings.TrimSpace(element))) {
				hits++
			} else {
				missing = append(missing, element)
			}
		}
		keyword = round(100 * float64(hits) / float64(n))
	}
	length := lengthScore(question.Type, words)
	relevance := round(float64(keyword+defaultTopicAlignment+length) / 3)

	depth := 50
	if containsAny(quickExamples, lower) {
		depth += 15
	}
	if digitPattern.MatchString(text) {
		depth += 15
	}
	if containsAny(quickInsights, lower) {
		depth += 10
	}

	coverage := defaultCoverage
	if len(expected) > 0 {
		coverage = keyword
	}
	completeness := round(float64(coverage+60) / 2)
	if words < minWordsThreshold {
		completeness = minInt(50, round(float64(completeness)*float64(words)/minWordsThreshold))
	}

	fallback := speech.Fallback(text, response.ResponseTimeSeconds)
	analysis := interview.ResponseAnalysis{
		ResponseID:    response.ID,
		QuestionID:    question.ID,
		Stage:         interview.StagePreliminary,
		Clarity:       interview.ClarityScore{Score: clamp(clarity, 0, 100), GrammarIssues: []string{}},
		Relevance:     interview.RelevanceScore{Score: clamp(relevance, 0, 100), KeywordMatch: keyword, TopicAlignment: defaultTopicAlignment, LengthScore: length, MatchedKeywords: []string{}},
		Depth:         interview.DepthScore{Score: clamp(depth, 0, 100)},
		Completeness:  interview.CompletenessScore{Score: clamp(completeness, 0, 100), Coverage: coverage, AdditionalValue: 60, MissingElements: missing},
		Communication: interview.CommunicationScore{Score: fallback.CommunicationScore},
		WordCount:     words,
		AnalyzedAt:    s.now(),
	}
	analysis.OverallScore = overall(analysis.Clarity.Score, analysis.Relevance.Score, analysis.Depth.Score, analysis.Completeness.Score)
	applyFeedback(&analysis)
	return analysis
}

// EstimateFromLength is the last-resort preliminary score used when a
// scoring pass fails. Every dimension takes the length band rating, capped
// at 70 so an estimate never reads as a strong result.
func EstimateFromLength(response interview.Response, question interview.Question, at time.Time) interview.ResponseAnalysis {
	text := response.Transcript()
	if strings.TrimSpace(text) == "" {
		return EmptyAnalysis(response, interview.StagePreliminary, at)
	}

	words := len(strings.Fields(text))
	estimate := minInt(70, lengthScore(question.Type, words))

	return interview.ResponseAnalysis{
		ResponseID:    response.ID,
		QuestionID:    question.ID,
		Stage:         interview.StagePreliminary,
		OverallScore:  estimate,
		Clarity:       interview.ClarityScore{Score: estimate, GrammarIssues: []string{}},
		Relevance:     interview.RelevanceScore{Score: estimate, LengthScore: lengthScore(question.Type, words), MatchedKeywords: []string{}},
		Depth:         interview.DepthScore{Score: estimate},
		Completeness:  interview.CompletenessScore{Score: estimate, MissingElements: []string{}},
		Communication: interview.CommunicationScore{Score: estimate},
		Strengths:     []string{},
		Weaknesses:    []string{},
		Suggestions:   []string{"Detailed feedback is still being prepared"},
		WordCount:     words,
		AnalyzedAt:    at,
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
