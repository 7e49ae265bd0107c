package analysis

import "math"

// Deduction weights for missing structural signals.
const (
	missingContextPenalty  = 1.5
	missingExamplesPenalty = 0.5
	missingConstraintsCost = 0.5
	missingOutputPenalty   = 1.0
)

var severityPenalties = map[Severity]float64{
	SeverityHigh:   2.0,
	SeverityMedium: 1.0,
	SeverityLow:    0.5,
}

// QualityScore computes the bounded 0–10 quality score for a text given its
// signals, detected issues, and clarity. Pure and total: identical inputs
// always produce the identical score.
func QualityScore(sig Signals, issues []Issue, clarity float64) float64 {
	score := 10.0

	if !sig.HasContext {
		score -= missingContextPenalty
	}
	if !sig.HasExamples {
		score -= missingExamplesPenalty
	}
	if !sig.HasConstraints {
		score -= missingConstraintsCost
	}
	if !sig.HasExpectedOutput {
		score -= missingOutputPenalty
	}

	for _, issue := range issues {
		score -= severityPenalties[issue.Severity]
	}

	score += (clarity / 10) * 2

	return math.Round(clamp(score, 0, 10)*10) / 10
}
