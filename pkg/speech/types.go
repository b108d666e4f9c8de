package speech

// Source tells whether an analysis was computed from captured audio or estimated from text
type Source string

const (
	SourceLive     Source = "live"
	SourceFallback Source = "fallback"
)

// PauseType classifies a silent stretch by its length
type PauseType string

const (
	PauseNatural    PauseType = "natural"
	PauseHesitation PauseType = "hesitation"
	PauseThinking   PauseType = "thinking"
)

// FillerCount is the number of matches for one filler pattern
type FillerCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// Pause is a silent segment of a recording, in seconds from the start
type Pause struct {
	Start    float64   `json:"start"`
	End      float64   `json:"end"`
	Duration float64   `json:"duration"`
	Type     PauseType `json:"type"`
}

// Analysis holds the speech-derived metrics for one response
type Analysis struct {
	Source       Source        `json:"source"`
	WordCount    int           `json:"word_count"`
	Pace         int           `json:"pace"` // words per minute
	FillerWords  []FillerCount `json:"filler_words"`
	TotalFillers int           `json:"total_fillers"`
	Pauses       []Pause       `json:"pauses"`
	Clarity      int           `json:"clarity"`
	Confidence   int           `json:"confidence"`
	Volume       int           `json:"volume"`
	VolumeStdDev float64       `json:"volume_std_dev"`

	// CommunicationScore is the mean of Clarity and Confidence
	CommunicationScore int `json:"communication_score"`
}

// FillerRatio returns fillers per counted word, or 0 for an empty transcript
func (a Analysis) FillerRatio() float64 {
	if a.WordCount == 0 {
		return 0
	}
	return float64(a.TotalFillers) / float64(a.WordCount)
}
