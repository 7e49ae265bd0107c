package analysis

import (
	"strings"
	"testing"
)

func TestQualityScorePerfect(t *testing.T) {
	sig := Signals{HasContext: true, HasExamples: true, HasConstraints: true, HasExpectedOutput: true}
	got := QualityScore(sig, nil, 10)
	if got != 10.0 {
		t.Errorf("QualityScore = %v, want 10.0", got)
	}
}

func TestQualityScoreDeductions(t *testing.T) {
	// All signals missing: 10 - 1.5 - 0.5 - 0.5 - 1.0 = 6.5, plus clarity 0.
	got := QualityScore(Signals{}, nil, 0)
	if got != 6.5 {
		t.Errorf("QualityScore = %v, want 6.5", got)
	}
}

func TestQualityScoreIssuePenalties(t *testing.T) {
	sig := Signals{HasContext: true, HasExamples: true, HasConstraints: true, HasExpectedOutput: true}
	issues := []Issue{
		{Type: "too_broad", Severity: SeverityHigh},
		{Type: "ambiguity", Severity: SeverityMedium},
		{Type: "bias", Severity: SeverityLow},
	}
	// 10 - 2.0 - 1.0 - 0.5 + 0 = 6.5
	got := QualityScore(sig, issues, 0)
	if got != 6.5 {
		t.Errorf("QualityScore = %v, want 6.5", got)
	}
}

func TestQualityScoreClarityContribution(t *testing.T) {
	sig := Signals{HasContext: true, HasExamples: true, HasConstraints: true, HasExpectedOutput: true}
	low := QualityScore(sig, []Issue{{Severity: SeverityHigh}}, 0)
	high := QualityScore(sig, []Issue{{Severity: SeverityHigh}}, 10)
	if high-low != 2.0 {
		t.Errorf("clarity swing = %v, want 2.0", high-low)
	}
}

func TestQualityScoreClamped(t *testing.T) {
	issues := make([]Issue, 10)
	for i := range issues {
		issues[i] = Issue{Severity: SeverityHigh}
	}
	if got := QualityScore(Signals{}, issues, 0); got != 0 {
		t.Errorf("QualityScore = %v, want 0 (clamped)", got)
	}
}

func TestQualityScoreOneDecimal(t *testing.T) {
	got := QualityScore(Signals{}, nil, 7.3)
	// 6.5 + 1.46 = 7.96 -> 8.0
	if got != 8.0 {
		t.Errorf("QualityScore = %v, want 8.0", got)
	}
}

// TestQualityScoreBoundsAnyInput sweeps degenerate analyzer inputs through
// the whole pipeline and checks the final score never leaves [0, 10].
func TestQualityScoreBoundsAnyInput(t *testing.T) {
	inputs := []string{
		"",
		"?",
		strings.Repeat("a", 2<<20),
		strings.Repeat("maybe obviously!! ", 1000),
	}
	for _, in := range inputs {
		a := Analyze(in)
		if a.QualityScore < 0 || a.QualityScore > 10 {
			t.Errorf("QualityScore(%q...) = %v, out of [0,10]", truncate(in, 20), a.QualityScore)
		}
	}
}
