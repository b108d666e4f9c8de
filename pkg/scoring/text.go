package scoring

import (
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"interview-analyzer/pkg/interview"
	"interview-analyzer/pkg/speech"
)

const (
	weightClarity      = 0.20
	weightRelevance    = 0.30
	weightDepth        = 0.25
	weightCompleteness = 0.25

	minWordsThreshold = 10

	defaultKeywordMatch   = 80
	defaultTopicAlignment = 70
	defaultCoverage       = 85
)

// TextScorer scores free-text responses with fixed heuristic rule tables.
// It is safe for concurrent use.
type TextScorer struct {
	logger *logrus.Entry
	now    func() time.Time
}

// NewTextScorer creates a text scorer
func NewTextScorer(logger *logrus.Logger) *TextScorer {
	if logger == nil {
		logger = logrus.New()
	}
	return &TextScorer{
		logger: logger.WithField("component", "text_scorer"),
		now:    time.Now,
	}
}

// textFeatures is the tokenized form of a response shared by every dimension
type textFeatures struct {
	raw       string
	lower     string
	words     []string
	sentences []string
	tokens    map[string]bool
}

func extractFeatures(text string) textFeatures {
	lower := strings.ToLower(text)
	return textFeatures{
		raw:       text,
		lower:     lower,
		words:     strings.Fields(text),
		sentences: splitSentences(text),
		tokens:    tokenSet(lower),
	}
}

// Score runs the full rule-table pass. Communication comes from the speech
// fallback since the response is treated as text only; callers holding
// captured audio merge it afterwards with MergeSpeech.
func (s *TextScorer) Score(response interview.Response, question interview.Question) interview.ResponseAnalysis {
	text := response.Transcript()
	if strings.TrimSpace(text) == "" {
		return EmptyAnalysis(response, interview.StageComprehensive, s.now())
	}

	f := extractFeatures(text)

	clarity := scoreClarity(f)
	relevance := scoreRelevance(f, question)
	depth := scoreDepth(f, question)
	completeness := scoreCompleteness(f, question)
	fallback := speech.Fallback(text, response.ResponseTimeSeconds)

	analysis := interview.ResponseAnalysis{
		ResponseID:    response.ID,
		QuestionID:    question.ID,
		Stage:         interview.StageComprehensive,
		Clarity:       clarity,
		Relevance:     relevance,
		Depth:         depth,
		Completeness:  completeness,
		Communication: interview.CommunicationScore{Score: fallback.CommunicationScore},
		WordCount:     len(f.words),
		AnalyzedAt:    s.now(),
	}
	analysis.OverallScore = overall(clarity.Score, relevance.Score, depth.Score, completeness.Score)
	applyFeedback(&analysis)

	s.logger.WithFields(logrus.Fields{
		"response_id": response.ID,
		"question_id": question.ID,
		"overall":     analysis.OverallScore,
		"words":       analysis.WordCount,
	}).Debug("Scored response text")

	return analysis
}

// EmptyAnalysis is the canonical all-zero result for a blank response
func EmptyAnalysis(response interview.Response, stage interview.Stage, at time.Time) interview.ResponseAnalysis {
	return interview.ResponseAnalysis{
		ResponseID:   response.ID,
		QuestionID:   response.QuestionID,
		Stage:        stage,
		Clarity:      interview.ClarityScore{GrammarIssues: []string{}},
		Relevance:    interview.RelevanceScore{MatchedKeywords: []string{}},
		Completeness: interview.CompletenessScore{MissingElements: []string{}},
		Strengths:    []string{},
		Weaknesses:   []string{"No response provided"},
		Suggestions:  []string{},
		AnalyzedAt:   at,
	}
}

func scoreClarity(f textFeatures) interview.ClarityScore {
	issues := []string{}
	for _, rule := range grammarRules {
		if rule.regex.MatchString(f.raw) {
			issues = append(issues, rule.issue)
		}
	}
	grammar := clamp(100-10*len(issues), 0, 100)
	structure := structureRating(f.sentences)
	coherence := coherenceRating(f.sentences, f.lower)

	value := float64(grammar+10*structure+10*coherence) / 3
	if len(f.words) < minWordsThreshold {
		value *= 0.5
	}

	return interview.ClarityScore{
		Score:         clamp(round(value), 0, 100),
		GrammarScore:  grammar,
		GrammarIssues: issues,
		Structure:     structure,
		Coherence:     coherence,
	}
}

func structureRating(sentences []string) int {
	switch len(sentences) {
	case 0:
		return 0
	case 1:
		return 3
	case 2:
		return 5
	}

	rating := 5
	if containsAny(introPhrases, sentences[0]) {
		rating += 2
	}
	if containsAny(conclusivePhrases, sentences[len(sentences)-1]) {
		rating += 2
	}
	if containsAny(transitionWords, strings.Join(sentences, ". ")) {
		rating++
	}
	return clamp(rating, 0, 10)
}

func coherenceRating(sentences []string, lower string) int {
	switch len(sentences) {
	case 0:
		return 0
	case 1:
		return 8
	}

	rating := 5 + minInt(3, countDistinct(transitionWords, lower))
	refs := 0
	for _, sentence := range sentences[1:] {
		if backReference.MatchString(sentence) {
			refs++
		}
	}
	rating += minInt(2, refs)
	return clamp(rating, 0, 10)
}

func scoreRelevance(f textFeatures, q interview.Question) interview.RelevanceScore {
	keyword, matched := keywordMatch(f, expectedElements(q))
	topic := topicAlignment(f, q.Text)
	length := lengthScore(q.Type, len(f.words))

	return interview.RelevanceScore{
		Score:           clamp(round(float64(keyword+topic+length)/3), 0, 100),
		KeywordMatch:    keyword,
		TopicAlignment:  topic,
		LengthScore:     length,
		MatchedKeywords: matched,
	}
}

// keywordMatch is the share of expected elements present as a substring or
// through a concept cue
func keywordMatch(f textFeatures, expected []string) (int, []string) {
	matched := []string{}
	if len(expected) == 0 {
		return defaultKeywordMatch, matched
	}
	for _, element := range expected {
		needle := strings.ToLower(strings.TrimSpace(element))
		if strings.Contains(f.lower, needle) || conceptMatches(needle, f.lower) {
			matched = append(matched, element)
		}
	}
	return clamp(round(100*float64(len(matched))/float64(len(expected))), 0, 100), matched
}

func topicAlignment(f textFeatures, questionText string) int {
	keywords := extractKeywords(questionText)
	if len(keywords) == 0 {
		return defaultTopicAlignment
	}
	overlap := 0
	for _, k := range keywords {
		if f.tokens[k] {
			overlap++
		}
	}
	ratio := float64(overlap) / float64(len(keywords))
	return minInt(100, round(ratio*100+20))
}

// lengthScore rates a word count against the expected range of the question type
func lengthScore(t interview.QuestionType, words int) int {
	band := bandFor(t)
	switch {
	case float64(words) < float64(band.min)/2:
		return 20
	case words < band.min:
		return 50
	case words <= band.max:
		return 90
	case float64(words) <= float64(band.max)*1.5:
		return 75
	default:
		return 60
	}
}

func scoreDepth(f textFeatures, q interview.Question) interview.DepthScore {
	technical := 80
	if q.Type.IsTechnical() {
		technical = 50 +
			minInt(20, 5*countDistinct(technicalTerms, f.lower)) +
			minInt(15, 5*countDistinct(examplePhrases, f.lower)) +
			minInt(15, 5*countDistinct(methodologyTerms, f.lower))
		technical = clamp(technical, 0, 100)
	}

	example := 40
	if containsAny(examplePhrases, f.lower) {
		example += 25
	}
	if digitPattern.MatchString(f.raw) {
		example += 20
	}
	if quantifiedResult.MatchString(f.raw) {
		example += 15
	}
	example = clamp(example, 0, 100)

	insight := 50
	if containsAny(insightPhrases, f.lower) {
		insight += 20
	}
	if containsAny(reflectivePhrases, f.lower) {
		insight += 15
	}
	if containsAny(lessonPhrases, f.lower) {
		insight += 15
	}
	insight = clamp(insight, 0, 100)

	return interview.DepthScore{
		Score:             clamp(round(float64(technical+example+insight)/3), 0, 100),
		TechnicalAccuracy: technical,
		ExampleQuality:    example,
		InsightLevel:      insight,
	}
}

func scoreCompleteness(f textFeatures, q interview.Question) interview.CompletenessScore {
	coverage := defaultCoverage
	missing := []string{}
	if expected := expectedElements(q); len(expected) > 0 {
		covered := 0
		for _, element := range expected {
			if elementCovered(f, element) {
				covered++
			} else {
				missing = append(missing, element)
			}
		}
		coverage = clamp(round(100*float64(covered)/float64(len(expected))), 0, 100)
	}

	additional := 60
	for _, set := range [][]phrase{personalExperience, innovativeThinking, multiplePerspective, actionableInsight} {
		if containsAny(set, f.lower) {
			additional += 10
		}
	}
	additional = clamp(additional, 0, 100)

	value := round(float64(coverage+additional) / 2)
	if n := len(f.words); n < minWordsThreshold {
		value = minInt(50, round(float64(value)*float64(n)/minWordsThreshold))
	}

	return interview.CompletenessScore{
		Score:           clamp(value, 0, 100),
		Coverage:        coverage,
		AdditionalValue: additional,
		MissingElements: missing,
	}
}

// expectedElements drops blank entries so they count neither as covered nor as missing
func expectedElements(q interview.Question) []string {
	out := make([]string, 0, len(q.ExpectedElements))
	for _, element := range q.ExpectedElements {
		if strings.TrimSpace(element) != "" {
			out = append(out, element)
		}
	}
	return out
}

// elementCovered accepts a substring match, any shared content word, or a concept cue
func elementCovered(f textFeatures, element string) bool {
	needle := strings.ToLower(strings.TrimSpace(element))
	if strings.Contains(f.lower, needle) {
		return true
	}
	for _, word := range extractKeywords(needle) {
		if f.tokens[word] {
			return true
		}
	}
	return conceptMatches(needle, f.lower)
}

func overall(clarity, relevance, depth, completeness int) int {
	value := weightClarity*float64(clarity) +
		weightRelevance*float64(relevance) +
		weightDepth*float64(depth) +
		weightCompleteness*float64(completeness)
	return clamp(round(value), 0, 100)
}

func splitSentences(text string) []string {
	sentences := []string{}
	for _, part := range sentenceSplit.Split(text, -1) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			sentences = append(sentences, trimmed)
		}
	}
	return sentences
}

func tokenSet(lower string) map[string]bool {
	set := make(map[string]bool)
	for _, token := range tokenSplit.Split(lower, -1) {
		if token != "" {
			set[token] = true
		}
	}
	return set
}

// extractKeywords lower-cases text and keeps distinct non stop words of three or more characters
func extractKeywords(text string) []string {
	seen := make(map[string]bool)
	keywords := []string{}
	for _, token := range tokenSplit.Split(strings.ToLower(text), -1) {
		if len(token) < 3 || stopWords[token] || seen[token] {
			continue
		}
		seen[token] = true
		keywords = append(keywords, token)
	}
	return keywords
}

func round(v float64) int {
	return int(math.Round(v))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
