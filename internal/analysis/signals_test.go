package analysis

import (
	"strings"
	"testing"
)

func TestKeywordDetectorCaseInsensitive(t *testing.T) {
	d := KeywordDetector{Name: "test", Keywords: []string{"background"}}

	if !d.Detect("Some BACKGROUND on the problem") {
		t.Error("expected match regardless of case")
	}
	if d.Detect("no relevant words here") {
		t.Error("unexpected match")
	}
	if d.Detect("") {
		t.Error("empty content should never match")
	}
}

func TestDetectSignalsAllFour(t *testing.T) {
	content := "Context: a payments service. For instance, refunds fail. " +
		"Constraints: must stay backwards compatible. Output format: a checklist."

	sig := DetectSignals(content)
	if !sig.HasContext {
		t.Error("HasContext = false, want true")
	}
	if !sig.HasExamples {
		t.Error("HasExamples = false, want true")
	}
	if !sig.HasConstraints {
		t.Error("HasConstraints = false, want true")
	}
	if !sig.HasExpectedOutput {
		t.Error("HasExpectedOutput = false, want true")
	}
}

func TestDetectSignalsNone(t *testing.T) {
	sig := DetectSignals("fix this")
	if sig.HasContext || sig.HasExamples || sig.HasConstraints || sig.HasExpectedOutput {
		t.Errorf("expected no signals for bare text, got %+v", sig)
	}
}

func TestClarityScoreShortText(t *testing.T) {
	// Fewer than 10 tokens costs 2 points.
	if got := ClarityScore("fix this"); got != 8.0 {
		t.Errorf("ClarityScore = %v, want 8.0", got)
	}
}

func TestClarityScoreStructureBonus(t *testing.T) {
	base := strings.Repeat("word ", 8)
	plain := ClarityScore(base)
	listed := ClarityScore(base + "\n1. first\n2. second")
	if listed <= plain {
		t.Errorf("structured text %v should score above plain %v", listed, plain)
	}
}

func TestClarityScorePunctuationRuns(t *testing.T) {
	calm := ClarityScore(strings.Repeat("word ", 12) + "please.")
	shouty := ClarityScore(strings.Repeat("word ", 12) + "please!!! now??")
	if shouty >= calm {
		t.Errorf("repeated punctuation should cost points: shouty=%v calm=%v", shouty, calm)
	}
}

func TestClarityScoreUppercaseRuns(t *testing.T) {
	calm := ClarityScore(strings.Repeat("word ", 12) + "urgent")
	loud := ClarityScore(strings.Repeat("word ", 12) + "URGENT")
	if loud >= calm {
		t.Errorf("uppercase run should cost points: loud=%v calm=%v", loud, calm)
	}
}

func TestClarityScoreBounds(t *testing.T) {
	inputs := []string{
		"",
		"!!!!! ????? !!!!!",
		"AAAAA BBBBB CCCCC DDDDD",
		strings.Repeat("word ", 10000),
		strings.Repeat("x", 1<<20),
	}
	for _, in := range inputs {
		got := ClarityScore(in)
		if got < 0 || got > 10 {
			t.Errorf("ClarityScore(%q...) = %v, out of [0,10]", truncate(in, 20), got)
		}
	}
}

// TestClarityScoreNoSentences verifies the divide-by-zero guard: text with
// no sentence terminator treats average tokens/sentence as the token count.
func TestClarityScoreNoSentences(t *testing.T) {
	longRunOn := strings.Repeat("word ", 40) // 40 tokens, no terminator
	got := ClarityScore(longRunOn)
	// 10 - 1 (avg tokens/sentence over 30) = 9
	if got != 9.0 {
		t.Errorf("ClarityScore = %v, want 9.0", got)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
