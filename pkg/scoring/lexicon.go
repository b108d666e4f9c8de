package scoring

import (
	"regexp"
	"strings"

	"interview-analyzer/pkg/interview"
)

type grammarRule struct {
	issue string
	regex *regexp.Regexp
}

// One entry per issue type; grammar is penalized once per type no matter how often it occurs.
var grammarRules = []grammarRule{
	{
		issue: "Commonly confused words (e.g. \"could of\", \"your welcome\")",
		regex: regexp.MustCompile(`(?i)\b(?:could|would|should|must|might) of\b|\byour (?:welcome|wrong|right)\b|\bits a\b|\bthere (?:is|are) alot\b|\balot\b`),
	},
	{
		issue: "Repeated punctuation",
		regex: regexp.MustCompile(`[!?]{2,}|\.{4,}|,{2,}|;{2,}`),
	},
	{
		issue: "Extra whitespace between words",
		regex: regexp.MustCompile(`\S {2,}\S|\t`),
	},
	{
		issue: "Informal contractions (e.g. \"gonna\", \"wanna\")",
		regex: regexp.MustCompile(`(?i)\b(?:gonna|wanna|gotta|kinda|sorta|dunno|ain't|y'all|lemme|gimme)\b`),
	},
}

var (
	sentenceSplit = regexp.MustCompile(`[.!?]+`)
	tokenSplit    = regexp.MustCompile(`[^a-z0-9]+`)
	digitPattern  = regexp.MustCompile(`\d`)

	quantifiedResult = regexp.MustCompile(`(?i)\d+(?:\.\d+)?\s*(?:%|percent\b|x\b|times\b|ms\b|milliseconds\b|seconds\b|minutes\b|hours\b|days\b|weeks\b|users\b|customers\b|requests\b)|\$\s?\d|\b(?:reduced|increased|improved|cut|grew|saved|boosted|decreased|lowered|doubled|tripled)\b[^.!?]*\d`)

	backReference = regexp.MustCompile(`(?i)^(?:this|that|these|those|it|they|he|she|we)\b`)
)

var (
	introPhrases = phraseSet(
		"in my experience", "to begin", "first of all", "firstly", "i would start", "let me",
		"the situation", "at my previous", "in my previous", "in my last role", "when i was",
		"a good example", "one time", "there was a time", "to answer",
	)
	conclusivePhrases = phraseSet(
		"in conclusion", "overall", "as a result", "ultimately", "in the end", "to summarize",
		"in summary", "finally", "which resulted", "the result", "i learned", "this taught me",
		"that taught me", "looking back",
	)
	transitionWords = phraseSet(
		"however", "therefore", "additionally", "furthermore", "moreover", "first", "second",
		"then", "next", "finally", "as a result", "because", "for example", "for instance",
		"in addition", "consequently", "meanwhile", "afterwards", "after that", "also",
	)
	technicalTerms = phraseSet(
		"api", "database", "cache", "caching", "latency", "throughput", "algorithm", "complexity",
		"microservice", "microservices", "kubernetes", "docker", "sql", "index", "queue",
		"concurrency", "thread", "load balancer", "replication", "sharding", "consistency",
		"availability", "partition", "protocol", "http", "rest", "grpc", "memory", "cpu",
		"deployment", "pipeline", "architecture", "schema", "endpoint", "scalability",
	)
	examplePhrases = phraseSet(
		"for example", "for instance", "such as", "in my previous", "in my last", "at my previous",
		"when i was", "i led", "i built", "i implemented", "i worked on", "we built", "one time",
		"specifically", "in one project",
	)
	methodologyTerms = phraseSet(
		"agile", "scrum", "kanban", "tdd", "test-driven", "ci/cd", "continuous integration",
		"devops", "lean", "waterfall", "design patterns", "solid", "domain-driven", "ddd",
		"code review", "pair programming", "a/b test", "postmortem", "root cause analysis",
	)
	insightPhrases = phraseSet(
		"i realized", "the key", "insight", "the root cause", "the real problem", "i noticed",
		"underlying", "trade-off", "tradeoff",
	)
	reflectivePhrases = phraseSet(
		"looking back", "in hindsight", "if i were to", "next time", "i would have", "reflect",
		"in retrospect",
	)
	lessonPhrases = phraseSet(
		"i learned", "lesson", "taught me", "takeaway", "going forward", "since then",
	)

	personalExperience = phraseSet(
		"i led", "i was", "my team", "in my", "i worked", "personally", "my experience", "i have", "i've",
	)
	innovativeThinking = phraseSet(
		"innovative", "creative", "new approach", "novel", "redesign", "redesigned", "prototype",
		"experiment", "automated", "reimagined",
	)
	multiplePerspective = phraseSet(
		"on the other hand", "alternatively", "perspective", "stakeholder", "stakeholders",
		"trade-off", "tradeoff", "pros and cons", "from the user",
	)
	actionableInsight = phraseSet(
		"recommend", "next step", "next steps", "should", "action item", "plan to", "i would",
		"going forward",
	)
)

// Concept cues let an expected element such as "metrics" be satisfied by
// evidence like "18%" rather than only by the literal word.
var conceptCues = map[string]*regexp.Regexp{
	"leadership":      regexp.MustCompile(`(?i)\b(?:led|lead|leading|managed|mentored|coached|ownership|owned|team)\b`),
	"metrics":         regexp.MustCompile(`(?i)\d+(?:\.\d+)?\s*%|\bpercent\b|\b(?:reduced|increased|improved|cut|grew|saved|decreased)\b[^.!?]*\d`),
	"results":         regexp.MustCompile(`(?i)\b(?:resulted|outcome|impact|delivered|achieved)\b|\d+(?:\.\d+)?\s*%`),
	"impact":          regexp.MustCompile(`(?i)\b(?:resulted|outcome|impact|delivered|achieved)\b|\d+(?:\.\d+)?\s*%`),
	"teamwork":        regexp.MustCompile(`(?i)\b(?:team|collaborat\w*|together|partnered|cross-functional)\b`),
	"collaboration":   regexp.MustCompile(`(?i)\b(?:team|collaborat\w*|together|partnered|cross-functional)\b`),
	"communication":   regexp.MustCompile(`(?i)\b(?:communicat\w*|explained|presented|aligned|stakeholders?)\b`),
	"problem solving": regexp.MustCompile(`(?i)\b(?:solved|debugg\w*|root cause|diagnos\w*|fixed|investigat\w*)\b`),
	"scalability":     regexp.MustCompile(`(?i)\b(?:scal\w*|load|throughput|shard\w*|partition\w*|horizontal\w*)\b`),
	"trade-offs":      regexp.MustCompile(`(?i)\b(?:trade-?offs?|versus|vs|pros and cons|downside)\b`),
	"conflict":        regexp.MustCompile(`(?i)\b(?:disagree\w*|conflict\w*|compromise|resolved)\b`),
	"testing":         regexp.MustCompile(`(?i)\b(?:tests?|testing|unit|integration|coverage)\b`),
}

var stopWords = func() map[string]bool {
	words := strings.Fields(`a an and are as at be been but by can could describe did do does
		for from had has have how i if in into is it its me my of on or our so tell than that
		the their them then there these they this time to was we were what when where which who
		why will with would you your about give example walk through explain`)
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}()

type lengthBand struct{ min, max int }

var lengthBands = map[interview.QuestionType]lengthBand{
	interview.QuestionBehavioral:   {80, 250},
	interview.QuestionTechnical:    {60, 200},
	interview.QuestionSituational:  {70, 220},
	interview.QuestionSystemDesign: {100, 300},
}

var defaultLengthBand = lengthBand{50, 200}

func bandFor(t interview.QuestionType) lengthBand {
	if band, ok := lengthBands[t]; ok {
		return band
	}
	return defaultLengthBand
}

// phrase is a lower-case literal matched on word boundaries
type phrase struct {
	text  string
	regex *regexp.Regexp
}

func phraseSet(phrases ...string) []phrase {
	set := make([]phrase, 0, len(phrases))
	for _, p := range phrases {
		set = append(set, phrase{
			text:  p,
			regex: regexp.MustCompile(`(?i)(?:^|[^\w/])` + regexp.QuoteMeta(p) + `(?:$|[^\w/])`),
		})
	}
	return set
}

// countDistinct returns how many phrases of the set occur in text
func countDistinct(set []phrase, text string) int {
	n := 0
	for _, p := range set {
		if p.regex.MatchString(text) {
			n++
		}
	}
	return n
}

func containsAny(set []phrase, text string) bool {
	for _, p := range set {
		if p.regex.MatchString(text) {
			return true
		}
	}
	return false
}

func conceptMatches(element, text string) bool {
	key := strings.ToLower(strings.TrimSpace(element))
	key = strings.ReplaceAll(key, "_", " ")
	if cue, ok := conceptCues[key]; ok {
		return cue.MatchString(text)
	}
	if cue, ok := conceptCues[strings.ReplaceAll(key, "-", " ")]; ok {
		return cue.MatchString(text)
	}
	return false
}
