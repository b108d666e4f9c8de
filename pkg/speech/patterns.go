package speech

import "regexp"

type fillerPattern struct {
	word  string
	regex *regexp.Regexp
}

type weightedPhrase struct {
	regex  *regexp.Regexp
	weight int
}

// Ordered filler table. Verbal fillers carry a guard so that ordinary uses
// ("I like Go", "so that", "well designed") are not counted.
var fillerPatterns = []fillerPattern{
	{"um", regexp.MustCompile(`(?i)\bu+m+\b`)},
	{"uh", regexp.MustCompile(`(?i)\bu+h+\b`)},
	{"er", regexp.MustCompile(`(?i)\ber+\b`)},
	{"ah", regexp.MustCompile(`(?i)\bah+\b`)},
	{"like", regexp.MustCompile(`(?i)\blike(?:,|\s+(?:um|uh|you know)\b)`)},
	{"so", regexp.MustCompile(`(?i)(?:^|[.!?]\s+)so\b`)},
	{"well", regexp.MustCompile(`(?i)(?:^|[.!?]\s+)well,`)},
	{"okay", regexp.MustCompile(`(?i)(?:^|[.!?]\s+)(?:okay|ok)\b`)},
	{"yeah", regexp.MustCompile(`(?i)\byeah\b`)},
	{"right", regexp.MustCompile(`(?i)\bright[,?]`)},
	{"actually", regexp.MustCompile(`(?i)\bactually\b`)},
	{"basically", regexp.MustCompile(`(?i)\bbasically\b`)},
	{"literally", regexp.MustCompile(`(?i)\bliterally\b`)},
	{"obviously", regexp.MustCompile(`(?i)\bobviously\b`)},
	{"clearly", regexp.MustCompile(`(?i)\bclearly\b`)},
	{"you know", regexp.MustCompile(`(?i)\byou know\b`)},
	{"i mean", regexp.MustCompile(`(?i)\bi mean\b`)},
	{"kind of", regexp.MustCompile(`(?i)\bkind of\b`)},
	{"sort of", regexp.MustCompile(`(?i)\bsort of\b`)},
	{"you see", regexp.MustCompile(`(?i)\byou see\b`)},
	{"i guess", regexp.MustCompile(`(?i)\bi guess\b`)},
	{"hm", regexp.MustCompile(`(?i)\bh+m+\b`)},
	{"mm", regexp.MustCompile(`(?i)\bmm+\b`)},
	{"oh", regexp.MustCompile(`(?i)\boh\b`)},
	{"and stuff", regexp.MustCompile(`(?i)\band stuff\b`)},
}

var confidencePhrases = buildPhraseTable(map[int][]string{
	12:  {"confident", "definitely", "certainly", "i know that", "without a doubt", "i successfully", "i achieved"},
	6:   {"i believe", "i'm sure", "i am sure", "i led", "i decided", "i delivered"},
	-15: {"i don't know", "no idea", "i'm not sure", "i am not sure", "no clue", "can't remember"},
	-8:  {"maybe", "perhaps", "i guess", "probably", "i think", "kind of", "sort of", "might"},
})

func buildPhraseTable(weights map[int][]string) []weightedPhrase {
	var table []weightedPhrase
	for _, weight := range []int{12, 6, -15, -8} {
		for _, phrase := range weights[weight] {
			table = append(table, weightedPhrase{
				regex:  regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(phrase) + `\b`),
				weight: weight,
			})
		}
	}
	return table
}
