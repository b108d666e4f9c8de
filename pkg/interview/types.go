package interview

import (
	"time"

	"interview-analyzer/pkg/speech"
)

// QuestionType drives expected answer length and whether technical depth is assessed
type QuestionType string

const (
	QuestionBehavioral   QuestionType = "behavioral"
	QuestionTechnical    QuestionType = "technical"
	QuestionSituational  QuestionType = "situational"
	QuestionSystemDesign QuestionType = "system-design"
	QuestionCaseStudy    QuestionType = "case-study"
	QuestionGeneral      QuestionType = "general"
)

// IsTechnical reports whether answers are expected to show technical accuracy
func (t QuestionType) IsTechnical() bool {
	return t == QuestionTechnical || t == QuestionSystemDesign
}

// Question is a read-only interview prompt
type Question struct {
	ID               string       `json:"id" yaml:"id"`
	Text             string       `json:"text" yaml:"text"`
	Type             QuestionType `json:"type" yaml:"type"`
	Category         string       `json:"category,omitempty" yaml:"category"`
	Difficulty       string       `json:"difficulty,omitempty" yaml:"difficulty"`
	ExpectedElements []string     `json:"expected_elements,omitempty" yaml:"expected_elements"`
	FollowUpTriggers []string     `json:"follow_up_triggers,omitempty" yaml:"follow_up_triggers"`
}

// AudioSignalBundle is the captured signal for a spoken response
type AudioSignalBundle struct {
	VolumeSamples []float64 `json:"volume_samples"`
	StartedAt     time.Time `json:"started_at"`
	EndedAt       time.Time `json:"ended_at,omitempty"`
	Transcript    string    `json:"transcript"`
}

// Duration returns the recording length in seconds, or fallback when the
// bundle has no end timestamp
func (b *AudioSignalBundle) Duration(fallback float64) float64 {
	if b == nil || b.StartedAt.IsZero() || b.EndedAt.IsZero() || !b.EndedAt.After(b.StartedAt) {
		return fallback
	}
	return b.EndedAt.Sub(b.StartedAt).Seconds()
}

// Response is one user submission. A resubmission is a new Response with a new ID.
type Response struct {
	ID                  string             `json:"id"`
	SessionID           string             `json:"session_id"`
	QuestionID          string             `json:"question_id"`
	Content             string             `json:"content"`
	Audio               *AudioSignalBundle `json:"audio,omitempty"`
	ResponseTimeSeconds float64            `json:"response_time_seconds"`
	SubmittedAt         time.Time          `json:"submitted_at"`
}

// Transcript returns the text to score: the typed content, or the audio
// transcript when nothing was typed
func (r Response) Transcript() string {
	if r.Content == "" && r.Audio != nil {
		return r.Audio.Transcript
	}
	return r.Content
}

// HasAudio reports whether the response carries captured volume samples
func (r Response) HasAudio() bool {
	return r.Audio != nil && len(r.Audio.VolumeSamples) > 0
}

// Session groups the questions asked and the responses given in one interview
type Session struct {
	ID        string                      `json:"id"`
	UserID    string                      `json:"user_id,omitempty"`
	StartTime time.Time                   `json:"start_time"`
	EndTime   *time.Time                  `json:"end_time,omitempty"`
	Questions []Question                  `json:"questions"`
	Responses []Response                  `json:"responses"`
	Analyses  map[string]ResponseAnalysis `json:"analyses,omitempty"` // keyed by response id
}

// Question looks up a question asked in this session
func (s *Session) Question(id string) (Question, bool) {
	for _, q := range s.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// Stage distinguishes the fast estimate from the full pass
type Stage string

const (
	StagePreliminary   Stage = "preliminary"
	StageComprehensive Stage = "comprehensive"
)

type ClarityScore struct {
	Score         int      `json:"score"`
	GrammarScore  int      `json:"grammar_score"`
	GrammarIssues []string `json:"grammar_issues"`
	Structure     int      `json:"structure"` // 0-10
	Coherence     int      `json:"coherence"` // 0-10
}

type RelevanceScore struct {
	Score           int      `json:"score"`
	KeywordMatch    int      `json:"keyword_match"`
	TopicAlignment  int      `json:"topic_alignment"`
	LengthScore     int      `json:"length_score"`
	MatchedKeywords []string `json:"matched_keywords"`
}

type DepthScore struct {
	Score             int `json:"score"`
	TechnicalAccuracy int `json:"technical_accuracy"`
	ExampleQuality    int `json:"example_quality"`
	InsightLevel      int `json:"insight_level"`
}

type CompletenessScore struct {
	Score           int      `json:"score"`
	Coverage        int      `json:"coverage"`
	AdditionalValue int      `json:"additional_value"`
	MissingElements []string `json:"missing_elements"`
}

type CommunicationScore struct {
	Score  int              `json:"score"`
	Speech *speech.Analysis `json:"speech,omitempty"`
}

// ResponseAnalysis is the immutable scoring result for one response
type ResponseAnalysis struct {
	ResponseID    string             `json:"response_id"`
	QuestionID    string             `json:"question_id"`
	Stage         Stage              `json:"stage"`
	OverallScore  int                `json:"overall_score"`
	Clarity       ClarityScore       `json:"clarity"`
	Relevance     RelevanceScore     `json:"relevance"`
	Depth         DepthScore         `json:"depth"`
	Completeness  CompletenessScore  `json:"completeness"`
	Communication CommunicationScore `json:"communication"`
	Strengths     []string           `json:"strengths"`
	Weaknesses    []string           `json:"weaknesses"`
	Suggestions   []string           `json:"suggestions"`
	WordCount     int                `json:"word_count"`
	AnalyzedAt    time.Time          `json:"analyzed_at"`
}

// DimensionScores returns the five dimension scores of the analysis
func (a ResponseAnalysis) DimensionScores() map[Dimension]int {
	return map[Dimension]int{
		DimensionClarity:       a.Clarity.Score,
		DimensionRelevance:     a.Relevance.Score,
		DimensionDepth:         a.Depth.Score,
		DimensionCompleteness:  a.Completeness.Score,
		DimensionCommunication: a.Communication.Score,
	}
}

// Dimension is one of the five scored axes
type Dimension string

const (
	DimensionClarity       Dimension = "clarity"
	DimensionRelevance     Dimension = "relevance"
	DimensionDepth         Dimension = "depth"
	DimensionCompleteness  Dimension = "completeness"
	DimensionCommunication Dimension = "communication"
)

// Dimensions lists every dimension in display order
var Dimensions = []Dimension{
	DimensionClarity,
	DimensionRelevance,
	DimensionDepth,
	DimensionCompleteness,
	DimensionCommunication,
}

// SessionAnalysis aggregates every response of a session
type SessionAnalysis struct {
	SessionID        string            `json:"session_id"`
	OverallScore     int               `json:"overall_score"`
	DimensionScores  map[Dimension]int `json:"dimension_scores"`
	TimeSpentMinutes float64           `json:"time_spent_minutes"`
	ResponseCount    int               `json:"response_count"`
	QuestionCount    int               `json:"question_count"`
	Strengths        []Dimension       `json:"strengths"`
	ImprovementAreas []Dimension       `json:"improvement_areas"`
	Recommendations  []string          `json:"recommendations"`
	AnalyzedAt       time.Time         `json:"analyzed_at"`
}

// EmptySessionAnalysis is the canonical result returned when aggregation fails
func EmptySessionAnalysis(sessionID string) SessionAnalysis {
	return SessionAnalysis{
		SessionID:        sessionID,
		DimensionScores:  map[Dimension]int{},
		Strengths:        []Dimension{},
		ImprovementAreas: []Dimension{},
		Recommendations:  []string{},
		AnalyzedAt:       time.Now(),
	}
}
