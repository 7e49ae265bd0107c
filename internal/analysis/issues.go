package analysis

// Severity grades how much an issue hurts prompt quality.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Issue is a single flagged problem with a text.
type Issue struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
}

var hedgeDetector = KeywordDetector{
	Name: "hedge_words",
	Keywords: []string{
		"something", "maybe", "sort of", "kind of", "somehow",
		"stuff", "whatever", "i guess", "or so",
	},
}

var absolutistDetector = KeywordDetector{
	Name: "absolutist_phrases",
	Keywords: []string{
		"obviously", "everyone knows", "of course", "as we all know",
		"it's common sense", "any fool", "clearly the best",
	},
}

// issueRule pairs a trigger with the issue it produces. Rules are evaluated
// in declaration order and each fires at most once per call.
type issueRule struct {
	match func(content string, sig Signals) bool
	issue Issue
}

var issueRules = []issueRule{
	{
		match: func(content string, sig Signals) bool {
			return !sig.HasContext && len(content) > 100
		},
		issue: Issue{
			Type:        "missing_context",
			Description: "The prompt is substantial but provides no background or situation.",
			Severity:    SeverityMedium,
		},
	},
	{
		match: func(content string, _ Signals) bool {
			return len(content) < 20
		},
		issue: Issue{
			Type:        "too_broad",
			Description: "The prompt is too short to convey a specific request.",
			Severity:    SeverityHigh,
		},
	},
	{
		match: func(content string, _ Signals) bool {
			return hedgeDetector.Detect(content)
		},
		issue: Issue{
			Type:        "ambiguity",
			Description: "Hedge words make the request imprecise.",
			Severity:    SeverityMedium,
		},
	},
	{
		match: func(content string, _ Signals) bool {
			return absolutistDetector.Detect(content)
		},
		issue: Issue{
			Type:        "bias",
			Description: "Absolutist phrasing presumes the answer.",
			Severity:    SeverityLow,
		},
	},
}

// DetectIssues evaluates every rule independently against the content and
// its structural signals. Rules are not mutually exclusive.
func DetectIssues(content string, sig Signals) []Issue {
	var issues []Issue
	for _, rule := range issueRules {
		if rule.match(content, sig) {
			issues = append(issues, rule.issue)
		}
	}
	return issues
}
