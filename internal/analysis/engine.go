// Package analysis turns raw prompt text into a structured quality
// assessment: structural signals, flagged issues, a complexity tier, a
// recommended prompting technique, and a bounded quality score.
//
// Every function in this package is deterministic and performs no I/O; any
// string input, including the empty string, produces a complete Analysis.
package analysis

// Analysis is the composed result of running all pipeline stages on a text.
type Analysis struct {
	Signals      Signals    `json:"signals"`
	Clarity      float64    `json:"clarity"`
	Issues       []Issue    `json:"issues"`
	Complexity   Complexity `json:"complexity"`
	Technique    string     `json:"technique"`
	Rationale    string     `json:"rationale"`
	QualityScore float64    `json:"quality_score"`
}

// Analyze runs the full pipeline on content. Stages run in dependency
// order: signals feed issue detection and complexity classification, which
// feed technique selection and scoring. Each downstream stage consumes only
// earlier outputs.
func Analyze(content string) Analysis {
	a := Analysis{
		Signals: DetectSignals(content),
		Clarity: ClarityScore(content),
	}
	a.Issues = DetectIssues(content, a.Signals)
	a.Complexity = ClassifyComplexity(content, a.Signals)
	a.Technique, a.Rationale = SelectTechnique(a.Complexity, a.Signals)
	a.QualityScore = QualityScore(a.Signals, a.Issues, a.Clarity)
	return a
}
