package speech

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScorer() *Scorer {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewScorer(logger)
}

func TestCountWords(t *testing.T) {
	assert.Equal(t, 0, CountWords(""))
	assert.Equal(t, 0, CountWords("   "))
	assert.Equal(t, 2, CountWords("I am a dev."))
	assert.Equal(t, 2, CountWords("I don't know"))
	assert.Equal(t, 3, CountWords("hello, world -- again!"))
}

func TestPace(t *testing.T) {
	assert.Equal(t, 120, Pace("one two three four five six", 3))
	assert.Equal(t, 0, Pace("one two three", 0))
	assert.Equal(t, 0, Pace("   ", 30))

	long := ""
	for i := 0; i < 100; i++ {
		long += "word "
	}
	assert.Equal(t, 500, Pace(long, 1), "pace should clamp at 500")
}

func TestDetectFillers(t *testing.T) {
	fillers, total := DetectFillers("Um, so like, I mean, um I think um you know it was, like, fine.")

	assert.Equal(t, 7, total)
	assert.Equal(t, []FillerCount{
		{Word: "um", Count: 3},
		{Word: "like", Count: 2},
		{Word: "i mean", Count: 1},
		{Word: "you know", Count: 1},
	}, fillers)
}

func TestDetectFillersGuards(t *testing.T) {
	_, total := DetectFillers("I like Go and I would do so again because it is well designed.")
	assert.Equal(t, 0, total, "ordinary uses of like/so/well should not count")

	fillers, total := DetectFillers("So we shipped it. So it worked.")
	assert.Equal(t, 2, total)
	assert.Equal(t, "so", fillers[0].Word)
}

func TestDetectFillersOrderingIsDeterministic(t *testing.T) {
	text := "Basically, it actually works."
	first, _ := DetectFillers(text)
	second, _ := DetectFillers(text)

	require.Len(t, first, 2)
	assert.Equal(t, "actually", first[0].Word, "ties break alphabetically")
	assert.Equal(t, "basically", first[1].Word)
	assert.Equal(t, first, second)

	empty, total := DetectFillers("")
	assert.Empty(t, empty)
	assert.Zero(t, total)
}

func TestDetectPauses(t *testing.T) {
	tests := []struct {
		name     string
		volumes  []float64
		duration float64
		want     []Pause
	}{
		{
			name:     "leading and trailing silence",
			volumes:  []float64{5, 5, 5, 60, 60, 5, 5, 5},
			duration: 4,
			want: []Pause{
				{Start: 0, End: 1.5, Duration: 1.5, Type: PauseHesitation},
				{Start: 2.5, End: 4, Duration: 1.5, Type: PauseHesitation},
			},
		},
		{
			name:     "short gap discarded",
			volumes:  []float64{50, 5, 50},
			duration: 1,
			want:     []Pause{},
		},
		{
			name:     "natural pause",
			volumes:  []float64{50, 5, 50, 50},
			duration: 3,
			want:     []Pause{{Start: 0.75, End: 1.5, Duration: 0.75, Type: PauseNatural}},
		},
		{
			name:     "thinking pause",
			volumes:  []float64{5, 5, 5, 5, 50},
			duration: 10,
			want:     []Pause{{Start: 0, End: 8, Duration: 8, Type: PauseThinking}},
		},
		{
			name:     "no samples",
			volumes:  nil,
			duration: 5,
			want:     []Pause{},
		},
		{
			name:     "zero duration",
			volumes:  []float64{5, 5},
			duration: 0,
			want:     []Pause{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectPauses(tt.volumes, tt.duration)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i].Start, got[i].Start, 1e-9)
				assert.InDelta(t, tt.want[i].End, got[i].End, 1e-9)
				assert.InDelta(t, tt.want[i].Duration, got[i].Duration, 1e-9)
				assert.Equal(t, tt.want[i].Type, got[i].Type)
			}
		})
	}
}

func TestDetectPausesNeverOverlap(t *testing.T) {
	volumes := []float64{0, 0, 0, 40, 2, 2, 2, 2, 80, 9, 70, 1, 1, 1, 1, 1, 1, 30, 3, 3, 3}
	pauses := DetectPauses(volumes, 12)

	require.NotEmpty(t, pauses)
	for i, p := range pauses {
		assert.GreaterOrEqual(t, p.Duration, 0.5)
		assert.GreaterOrEqual(t, p.End, p.Start)
		if i > 0 {
			assert.GreaterOrEqual(t, p.Start, pauses[i-1].End)
		}
	}
}

func TestScoreConfidentDelivery(t *testing.T) {
	scorer := newTestScorer()
	transcript := "I am confident that the new design definitely improved our release process and reduced failures for every team we supported last year."
	volumes := []float64{60, 60, 60, 60, 60, 60, 60, 60, 60, 60}

	result := scorer.Score(transcript, volumes, 8.4)

	assert.Equal(t, SourceLive, result.Source)
	assert.Equal(t, 21, result.WordCount)
	assert.Equal(t, 150, result.Pace)
	assert.Zero(t, result.TotalFillers)
	assert.Empty(t, result.Pauses)
	assert.Equal(t, 60, result.Volume)
	assert.Equal(t, 90, result.Clarity)
	assert.Equal(t, 100, result.Confidence)
	assert.Equal(t, 95, result.CommunicationScore)
}

func TestScoreUncertainDelivery(t *testing.T) {
	scorer := newTestScorer()

	result := scorer.Score("I don't know. I'm not sure. No idea.", nil, 0)

	assert.Equal(t, 7, result.WordCount)
	assert.Equal(t, 0, result.Pace)
	assert.Equal(t, 25, result.Confidence)
	assert.Equal(t, 56, result.Clarity, "short answers lose 30% clarity")
}

func TestFallback(t *testing.T) {
	result := Fallback("one two three four five six", 3)

	assert.Equal(t, SourceFallback, result.Source)
	assert.Equal(t, 120, result.Pace)
	assert.Equal(t, 75, result.Clarity)
	assert.Equal(t, 70, result.Confidence)
	assert.Equal(t, 50, result.Volume)
	assert.Empty(t, result.Pauses)
	assert.NotNil(t, result.Pauses)
	assert.Equal(t, 73, result.CommunicationScore)

	withFillers := newTestScorer().Fallback("Um, I mean, it basically worked.", 10)
	assert.Equal(t, 3, withFillers.TotalFillers)
}

func TestScoreBounds(t *testing.T) {
	scorer := newTestScorer()
	inputs := []struct {
		transcript string
		volumes    []float64
		duration   float64
	}{
		{"", nil, 0},
		{"um uh er ah um uh er ah", []float64{0, 0, 0}, 2},
		{"Definitely. Certainly. Without a doubt. I achieved it and I successfully delivered it, I am confident.", []float64{95, 99, 100, 98}, 3},
		{"maybe perhaps probably I guess I think kind of sort of might", []float64{1, 90, 2, 95, 3}, 60},
		{"words words words", []float64{200, -50}, 0.1},
	}

	for _, in := range inputs {
		result := scorer.Score(in.transcript, in.volumes, in.duration)
		assert.GreaterOrEqual(t, result.Clarity, 0)
		assert.LessOrEqual(t, result.Clarity, 100)
		assert.GreaterOrEqual(t, result.Confidence, 20)
		assert.LessOrEqual(t, result.Confidence, 100)
		assert.GreaterOrEqual(t, result.CommunicationScore, 0)
		assert.LessOrEqual(t, result.CommunicationScore, 100)
		assert.GreaterOrEqual(t, result.Pace, 0)
		assert.LessOrEqual(t, result.Pace, 500)
	}
}
