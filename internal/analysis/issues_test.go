package analysis

import (
	"strings"
	"testing"
)

func hasIssue(issues []Issue, typ string) bool {
	for _, i := range issues {
		if i.Type == typ {
			return true
		}
	}
	return false
}

func TestDetectIssuesTooBroad(t *testing.T) {
	issues := DetectIssues("fix this", Signals{})

	if !hasIssue(issues, "too_broad") {
		t.Fatal("expected too_broad issue for 8-char prompt")
	}
	for _, i := range issues {
		if i.Type == "too_broad" && i.Severity != SeverityHigh {
			t.Errorf("too_broad severity = %q, want high", i.Severity)
		}
	}
}

func TestDetectIssuesMissingContext(t *testing.T) {
	long := strings.Repeat("implement the parser module carefully ", 5)
	issues := DetectIssues(long, Signals{HasContext: false})

	if !hasIssue(issues, "missing_context") {
		t.Error("expected missing_context for long text without context signal")
	}

	// Same text with the signal present must not flag.
	issues = DetectIssues(long, Signals{HasContext: true})
	if hasIssue(issues, "missing_context") {
		t.Error("missing_context should not fire when HasContext is true")
	}
}

func TestDetectIssuesMissingContextShortText(t *testing.T) {
	// Under 100 chars the missing_context rule stays silent.
	issues := DetectIssues("write a haiku about rivers flowing at night", Signals{})
	if hasIssue(issues, "missing_context") {
		t.Error("missing_context should not fire for short text")
	}
}

func TestDetectIssuesAmbiguity(t *testing.T) {
	issues := DetectIssues("maybe do something with the data", Signals{})
	if !hasIssue(issues, "ambiguity") {
		t.Error("expected ambiguity issue for hedge words")
	}
}

func TestDetectIssuesBias(t *testing.T) {
	issues := DetectIssues("obviously the right answer is functional programming", Signals{})
	if !hasIssue(issues, "bias") {
		t.Error("expected bias issue for absolutist phrasing")
	}
}

// TestDetectIssuesIndependent verifies rules are not mutually exclusive and
// each type fires at most once.
func TestDetectIssuesIndependent(t *testing.T) {
	issues := DetectIssues("maybe obviously", Signals{})

	if !hasIssue(issues, "too_broad") || !hasIssue(issues, "ambiguity") || !hasIssue(issues, "bias") {
		t.Fatalf("expected too_broad+ambiguity+bias, got %+v", issues)
	}

	seen := map[string]int{}
	for _, i := range issues {
		seen[i.Type]++
	}
	for typ, n := range seen {
		if n > 1 {
			t.Errorf("issue %q fired %d times, want at most once", typ, n)
		}
	}
}

func TestDetectIssuesDeclarationOrder(t *testing.T) {
	issues := DetectIssues("maybe obviously", Signals{})
	want := []string{"too_broad", "ambiguity", "bias"}
	if len(issues) != len(want) {
		t.Fatalf("got %d issues, want %d", len(issues), len(want))
	}
	for i, typ := range want {
		if issues[i].Type != typ {
			t.Errorf("issues[%d].Type = %q, want %q", i, issues[i].Type, typ)
		}
	}
}

func TestDetectIssuesClean(t *testing.T) {
	issues := DetectIssues("write a limerick about lighthouses on the coast", Signals{HasContext: true})
	if len(issues) != 0 {
		t.Errorf("expected no issues, got %+v", issues)
	}
}
