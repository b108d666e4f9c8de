package speech

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"
)

const (
	silenceThreshold = 10.0
	minPauseSeconds  = 0.5
	maxPace          = 500

	fallbackClarity    = 75
	fallbackConfidence = 70
	fallbackVolume     = 50
)

var sentenceSplit = regexp.MustCompile(`[.!?]+`)

// Scorer derives pace, filler, pause, clarity and confidence metrics from a
// transcript and its volume samples. It holds no per-call state.
type Scorer struct {
	logger *logrus.Entry
}

// NewScorer creates a speech scorer
func NewScorer(logger *logrus.Logger) *Scorer {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scorer{logger: logger.WithField("component", "speech_scorer")}
}

// Score analyses a finished recording. volumes are 0-100 samples spread
// evenly over durationSeconds.
func (s *Scorer) Score(transcript string, volumes []float64, durationSeconds float64) Analysis {
	words := CountWords(transcript)
	fillers, total := DetectFillers(transcript)
	mean, stddev := volumeStats(volumes)

	result := Analysis{
		Source:       SourceLive,
		WordCount:    words,
		Pace:         Pace(transcript, durationSeconds),
		FillerWords:  fillers,
		TotalFillers: total,
		Pauses:       DetectPauses(volumes, durationSeconds),
		Volume:       int(math.Round(mean)),
		VolumeStdDev: stddev,
	}
	result.Clarity = clarity(result, len(volumes) > 0)
	result.Confidence = confidence(transcript, result, mean, len(volumes) > 0)
	result.CommunicationScore = communication(result.Clarity, result.Confidence)

	s.logger.WithFields(logrus.Fields{
		"words":         words,
		"pace":          result.Pace,
		"fillers":       total,
		"pauses":        len(result.Pauses),
		"communication": result.CommunicationScore,
	}).Debug("Scored speech")

	return result
}

// Fallback estimates speech metrics for a text-only response. Pace comes
// from the response time, fillers from the text itself, and the signal based
// metrics take fixed placeholder values.
func (s *Scorer) Fallback(transcript string, responseTimeSeconds float64) Analysis {
	return Fallback(transcript, responseTimeSeconds)
}

// Fallback is the package level form of Scorer.Fallback
func Fallback(transcript string, responseTimeSeconds float64) Analysis {
	fillers, total := DetectFillers(transcript)
	return Analysis{
		Source:             SourceFallback,
		WordCount:          CountWords(transcript),
		Pace:               Pace(transcript, responseTimeSeconds),
		FillerWords:        fillers,
		TotalFillers:       total,
		Pauses:             []Pause{},
		Clarity:            fallbackClarity,
		Confidence:         fallbackConfidence,
		Volume:             fallbackVolume,
		CommunicationScore: communication(fallbackClarity, fallbackConfidence),
	}
}

// CountWords counts tokens longer than one character once punctuation is removed
func CountWords(text string) int {
	count := 0
	for _, token := range strings.Fields(text) {
		stripped := strings.TrimFunc(strings.Map(func(r rune) rune {
			if unicode.IsPunct(r) {
				return -1
			}
			return r
		}, token), unicode.IsSpace)
		if len([]rune(stripped)) > 1 {
			count++
		}
	}
	return count
}

// Pace returns words per minute clamped to [0, 500]
func Pace(transcript string, durationSeconds float64) int {
	if durationSeconds <= 0 || strings.TrimSpace(transcript) == "" {
		return 0
	}
	pace := int(math.Round(float64(CountWords(transcript)) / (durationSeconds / 60)))
	return clampInt(pace, 0, maxPace)
}

// DetectFillers counts every filler pattern in text. The result is sorted by
// count descending, then by word.
func DetectFillers(text string) ([]FillerCount, int) {
	counts := []FillerCount{}
	total := 0
	if strings.TrimSpace(text) == "" {
		return counts, 0
	}

	for _, p := range fillerPatterns {
		n := len(p.regex.FindAllStringIndex(text, -1))
		if n == 0 {
			continue
		}
		counts = append(counts, FillerCount{Word: p.word, Count: n})
		total += n
	}

	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Word < counts[j].Word
	})
	return counts, total
}

// DetectPauses segments silent stretches (volume <= 10) of a recording.
// Pauses under half a second are dropped and a pause still open at the last
// sample is closed at durationSeconds.
func DetectPauses(volumes []float64, durationSeconds float64) []Pause {
	pauses := []Pause{}
	n := len(volumes)
	if n == 0 || durationSeconds <= 0 {
		return pauses
	}

	add := func(start, end float64) {
		d := end - start
		if d < minPauseSeconds {
			return
		}
		pauses = append(pauses, Pause{Start: start, End: end, Duration: d, Type: classifyPause(d)})
	}

	inPause := false
	start := 0.0
	for i, v := range volumes {
		ts := float64(i) * durationSeconds / float64(n)
		switch {
		case v <= silenceThreshold && !inPause:
			inPause = true
			start = ts
		case v > silenceThreshold && inPause:
			inPause = false
			add(start, ts)
		}
	}
	if inPause {
		add(start, durationSeconds)
	}
	return pauses
}

func classifyPause(d float64) PauseType {
	switch {
	case d < 1:
		return PauseNatural
	case d < 3:
		return PauseHesitation
	default:
		return PauseThinking
	}
}

func clarity(a Analysis, hasVolume bool) int {
	value := 80 - math.Min(30, a.FillerRatio()*100)
	if hasVolume {
		consistency := math.Max(0, 100-a.VolumeStdDev)
		value = (value + consistency) / 2
	}
	if a.WordCount < 10 {
		value *= 0.7
	}
	return clampInt(int(math.Round(value)), 0, 100)
}

func confidence(transcript string, a Analysis, meanVolume float64, hasVolume bool) int {
	value := 70
	for _, phrase := range confidencePhrases {
		value += phrase.weight * len(phrase.regex.FindAllStringIndex(transcript, -1))
	}

	switch ratio := a.FillerRatio(); {
	case ratio > 0.15:
		value -= 20
	case ratio > 0.08:
		value -= 10
	}

	if hasVolume {
		switch {
		case meanVolume >= 40 && meanVolume <= 80:
			value += 8
		case meanVolume < 25:
			value -= 12
		case meanVolume > 90:
			value -= 5
		}
		switch {
		case a.VolumeStdDev < 15:
			value += 5
		case a.VolumeStdDev > 30:
			value -= 8
		}
	}

	if a.Pace > 0 {
		switch {
		case a.Pace >= 120 && a.Pace <= 180:
			value += 5
		case a.Pace < 80:
			value -= 8
		case a.Pace > 220:
			value -= 12
		}
	}

	switch {
	case a.WordCount < 5:
		value -= 15
	case a.WordCount >= 20 && a.WordCount <= 100:
		value += 5
	}

	if avg := wordsPerSentence(transcript); avg >= 8 && avg <= 20 {
		value += 3
	}

	return clampInt(value, 20, 100)
}

func communication(clarity, confidence int) int {
	return int(math.Round(float64(clarity+confidence) / 2))
}

func wordsPerSentence(text string) float64 {
	sentences := 0
	words := 0
	for _, part := range sentenceSplit.Split(text, -1) {
		if strings.TrimSpace(part) == "" {
			continue
		}
		sentences++
		words += len(strings.Fields(part))
	}
	if sentences == 0 {
		return 0
	}
	return float64(words) / float64(sentences)
}

func volumeStats(volumes []float64) (mean, stddev float64) {
	if len(volumes) == 0 {
		return 0, 0
	}
	for _, v := range volumes {
		mean += v
	}
	mean /= float64(len(volumes))

	var variance float64
	for _, v := range volumes {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(volumes))
	return mean, math.Sqrt(variance)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
