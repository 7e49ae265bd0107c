package analysis

import (
	"strings"
)

// Detector reports whether a piece of content exhibits a signal.
// Implementations must be deterministic and side-effect free.
type Detector interface {
	Detect(content string) bool
}

// KeywordDetector flags content containing any of a fixed keyword set,
// matched case-insensitively as substrings.
type KeywordDetector struct {
	Name     string
	Keywords []string
}

func (d KeywordDetector) Detect(content string) bool {
	lower := strings.ToLower(content)
	for _, kw := range d.Keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Structural signal detectors. Each is a named strategy so keyword sets can
// be tuned without touching call sites.
var (
	ContextDetector = KeywordDetector{
		Name: "context",
		Keywords: []string{
			"context", "background", "situation", "scenario",
			"given that", "currently", "we are", "i am working",
		},
	}

	ExamplesDetector = KeywordDetector{
		Name: "examples",
		Keywords: []string{
			"example", "e.g.", "for instance", "such as", "like this",
		},
	}

	ConstraintsDetector = KeywordDetector{
		Name: "constraints",
		Keywords: []string{
			"constraint", "must", "should", "require", "limit",
			"avoid", "do not", "don't", "within", "at most",
		},
	}

	ExpectedOutputDetector = KeywordDetector{
		Name: "expected_output",
		Keywords: []string{
			"output", "format", "return", "respond with", "provide",
			"give me", "expected", "result", "deliverable",
		},
	}
)

// Signals holds the four structural booleans of a text.
type Signals struct {
	HasContext        bool `json:"has_context"`
	HasExamples       bool `json:"has_examples"`
	HasConstraints    bool `json:"has_constraints"`
	HasExpectedOutput bool `json:"has_expected_output"`
}

// DetectSignals evaluates all four structural detectors against content.
func DetectSignals(content string) Signals {
	return Signals{
		HasContext:        ContextDetector.Detect(content),
		HasExamples:       ExamplesDetector.Detect(content),
		HasConstraints:    ConstraintsDetector.Detect(content),
		HasExpectedOutput: ExpectedOutputDetector.Detect(content),
	}
}

// ClarityScore rates how readable a text is on a 0–10 scale.
//
// Starting from 10: very short texts (-2) and very long texts (-1) lose
// points, as do run-on sentences (-1). Visible structure (newlines, numbered
// lists, dash bullets) earns +1. Each run of repeated !/? and each run of
// shouted uppercase costs 0.5.
func ClarityScore(content string) float64 {
	score := 10.0

	tokens := len(strings.Fields(content))
	if tokens < 10 {
		score -= 2
	}
	if tokens > 500 {
		score--
	}
	if avgTokensPerSentence(content, tokens) > 30 {
		score--
	}

	if strings.Contains(content, "\n") || strings.Contains(content, "1.") || strings.Contains(content, "- ") {
		score++
	}

	score -= 0.5 * float64(countRuns(content, isShriek, 2))
	score -= 0.5 * float64(countRuns(content, isUpper, 5))

	return clamp(score, 0, 10)
}

// avgTokensPerSentence splits on sentence terminators and averages token
// counts. A text with no complete sentence counts as one sentence spanning
// all tokens.
func avgTokensPerSentence(content string, totalTokens int) float64 {
	sentences := 0
	for _, frag := range strings.FieldsFunc(content, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	}) {
		if strings.TrimSpace(frag) != "" {
			sentences++
		}
	}
	if sentences == 0 {
		return float64(totalTokens)
	}
	return float64(totalTokens) / float64(sentences)
}

// countRuns counts maximal runs of at least minLen consecutive runes
// matching pred.
func countRuns(s string, pred func(rune) bool, minLen int) int {
	runs, length := 0, 0
	for _, r := range s {
		if pred(r) {
			length++
			continue
		}
		if length >= minLen {
			runs++
		}
		length = 0
	}
	if length >= minLen {
		runs++
	}
	return runs
}

func isShriek(r rune) bool { return r == '!' || r == '?' }

func isUpper(r rune) bool { return r >= 'A' && r <= 'Z' }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
