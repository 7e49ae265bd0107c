package analysis

import "strings"

// Complexity is the ordinal difficulty tier of a text.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

var technicalVocabDetector = KeywordDetector{
	Name: "technical_vocabulary",
	Keywords: []string{
		"api", "database", "algorithm", "function", "architecture",
		"deploy", "kubernetes", "sql", "regex", "async", "concurrency",
		"refactor", "framework", "protocol", "schema",
	},
}

// complexityScore accumulates the integer complexity score for content.
//
// Only three of the four structural signals contribute: expected-output is
// deliberately excluded even though the scorer and selector consume it.
func complexityScore(content string, sig Signals) int {
	score := 0

	tokens := len(strings.Fields(content))
	if tokens > 100 {
		score++
	}
	if tokens > 200 {
		score++
	}

	if sig.HasContext {
		score++
	}
	if sig.HasExamples {
		score++
	}
	if sig.HasConstraints {
		score++
	}

	if strings.Contains(content, " and ") || strings.Contains(content, ", ") || strings.Contains(content, "\n") {
		score++
	}
	if technicalVocabDetector.Detect(content) {
		score++
	}

	return score
}

// ClassifyComplexity maps content and its signals onto a tier. Boundary
// scores always resolve to the lower tier.
func ClassifyComplexity(content string, sig Signals) Complexity {
	score := complexityScore(content, sig)
	switch {
	case score <= 2:
		return ComplexitySimple
	case score <= 4:
		return ComplexityModerate
	default:
		return ComplexityComplex
	}
}
