// Package insights mines stored prompt history for longitudinal patterns:
// quality trends, complexity skew, missing context, length problems, and
// recurring vocabulary.
package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/daneb/improver-mcp/internal/analysis"
	"github.com/daneb/improver-mcp/internal/storage"
)

// ErrAlreadyRunning is returned when a mining pass is requested while
// another pass is still in flight.
var ErrAlreadyRunning = errors.New("insight mining already in progress")

const (
	defaultWindow    = 500
	maxEvidenceIDs   = 10
	cohortSize       = 50
	trendMinScored   = 10
	shareMinRecords  = 20
	frequencyMinimum = 50
)

// Store is the slice of the storage surface the miner needs.
type Store interface {
	ListRecent(limit, offset int) ([]storage.PromptRecord, error)
	SaveInsight(storage.Insight) error
}

// Miner runs independent detectors over a snapshot of recent history and
// persists every insight they produce. A pass is mutually exclusive with
// itself and with anything run through WithExclusion.
type Miner struct {
	store  Store
	window int
	mu     sync.Mutex
	logger *slog.Logger
}

// NewMiner creates a Miner reading up to window records per pass
// (default 500 if window <= 0).
func NewMiner(store Store, window int) *Miner {
	if window <= 0 {
		window = defaultWindow
	}
	return &Miner{
		store:  store,
		window: window,
		logger: slog.Default(),
	}
}

// detector inspects a newest-first snapshot and returns zero or more
// insights. Detectors are independent and order-insensitive.
type detector struct {
	name string
	fn   func(records []storage.PromptRecord) []storage.Insight
}

// Run executes one mining pass: snapshot recent history, run all detectors
// concurrently, then persist each produced insight independently. A
// detector panic is contained to that detector. Cancellation between saves
// leaves already-saved insights intact.
func (m *Miner) Run(ctx context.Context) ([]storage.Insight, error) {
	if !m.mu.TryLock() {
		return nil, ErrAlreadyRunning
	}
	defer m.mu.Unlock()

	records, err := m.store.ListRecent(m.window, 0)
	if err != nil {
		return nil, fmt.Errorf("loading history window: %w", err)
	}

	detectors := []detector{
		{"quality_trend", detectQualityTrend},
		{"complexity_skew", detectComplexitySkew},
		{"context_usage", detectContextUsage},
		{"length_distribution", detectLengthDistribution},
		{"usage_frequency", detectUsageFrequency},
		{"pattern_detection", detectVocabularyPatterns},
	}

	results := make([][]storage.Insight, len(detectors))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(3)
	for i, d := range detectors {
		i, d := i, d
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Warn("insight detector panicked", "detector", d.name, "panic", r)
				}
			}()
			results[i] = d.fn(records)
			return nil
		})
	}
	g.Wait()

	var saved []storage.Insight
	now := time.Now().UTC()
	for _, batch := range results {
		for _, in := range batch {
			if ctx.Err() != nil {
				return saved, ctx.Err()
			}
			in.ID = uuid.New().String()
			in.CreatedAt = now
			if err := m.store.SaveInsight(in); err != nil {
				m.logger.Warn("failed to save insight", "type", in.Type, "error", err)
				continue
			}
			saved = append(saved, in)
		}
	}

	m.logger.Info("insight pass complete", "records", len(records), "insights", len(saved))
	return saved, nil
}

// WithExclusion runs fn while holding the miner's lock, so window-sensitive
// maintenance (retention cleanup) never overlaps a mining pass.
func (m *Miner) WithExclusion(fn func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn()
}

func newInsight(typ, severity, title, description string, evidence map[string]float64, promptIDs []string) storage.Insight {
	if len(promptIDs) > maxEvidenceIDs {
		promptIDs = promptIDs[:maxEvidenceIDs]
	}
	evidenceJSON := "{}"
	if len(evidence) > 0 {
		if b, err := json.Marshal(evidence); err == nil {
			evidenceJSON = string(b)
		}
	}
	idsJSON := "[]"
	if len(promptIDs) > 0 {
		if b, err := json.Marshal(promptIDs); err == nil {
			idsJSON = string(b)
		}
	}
	return storage.Insight{
		Type:          typ,
		Severity:      severity,
		Title:         title,
		Description:   description,
		EvidenceJSON:  evidenceJSON,
		PromptIDsJSON: idsJSON,
	}
}

// detectQualityTrend compares the mean quality of the most recent scored
// cohort against the preceding one. Silent below 10 scored records or when
// there is no older cohort to compare against.
func detectQualityTrend(records []storage.PromptRecord) []storage.Insight {
	var scored []storage.PromptRecord
	for _, r := range records {
		if r.QualityScore != nil {
			scored = append(scored, r)
		}
	}
	if len(scored) < trendMinScored {
		return nil
	}

	recent := scored[:min(len(scored), cohortSize)]
	older := scored[min(len(scored), cohortSize):min(len(scored), 2*cohortSize)]
	if len(older) == 0 {
		return nil
	}

	recentMean := meanQuality(recent)
	olderMean := meanQuality(older)
	delta := recentMean - olderMean

	evidence := map[string]float64{
		"recent_score": recentMean,
		"older_score":  olderMean,
		"recent_count": float64(len(recent)),
		"older_count":  float64(len(older)),
	}
	ids := recordIDs(recent)

	switch {
	case delta <= -0.5:
		return []storage.Insight{newInsight(
			"quality_decline", "warning",
			"Prompt quality is declining",
			fmt.Sprintf("Average quality dropped from %.1f to %.1f across the last %d scored prompts.",
				olderMean, recentMean, len(recent)),
			evidence, ids,
		)}
	case delta >= 0.5:
		return []storage.Insight{newInsight(
			"quality_improvement", "info",
			"Prompt quality is improving",
			fmt.Sprintf("Average quality rose from %.1f to %.1f across the last %d scored prompts.",
				olderMean, recentMean, len(recent)),
			evidence, ids,
		)}
	}
	return nil
}

func meanQuality(records []storage.PromptRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range records {
		sum += *r.QualityScore
	}
	return sum / float64(len(records))
}

func recordIDs(records []storage.PromptRecord) []string {
	ids := make([]string, 0, min(len(records), maxEvidenceIDs))
	for _, r := range records {
		if len(ids) == maxEvidenceIDs {
			break
		}
		ids = append(ids, r.ID)
	}
	return ids
}

// detectComplexitySkew flags history dominated by one end of the
// complexity spectrum.
func detectComplexitySkew(records []storage.PromptRecord) []storage.Insight {
	var classified []storage.PromptRecord
	counts := map[string]int{}
	for _, r := range records {
		if r.Complexity != nil {
			classified = append(classified, r)
			counts[*r.Complexity]++
		}
	}
	if len(classified) < shareMinRecords {
		return nil
	}

	total := float64(len(classified))
	simpleShare := float64(counts[string(analysis.ComplexitySimple)]) / total
	complexShare := float64(counts[string(analysis.ComplexityComplex)]) / total

	evidence := map[string]float64{
		"simple_share":  simpleShare,
		"complex_share": complexShare,
		"total":         total,
	}

	var out []storage.Insight
	if simpleShare > 0.8 {
		out = append(out, newInsight(
			"complexity_skew", "suggestion",
			"Most prompts are very simple",
			"Over 80% of recent prompts classify as simple. Adding context, examples, or constraints tends to produce richer answers.",
			evidence, nil,
		))
	}
	if complexShare > 0.6 {
		out = append(out, newInsight(
			"complexity_skew", "suggestion",
			"Most prompts are highly complex",
			"Over 60% of recent prompts classify as complex. Decomposing large requests into smaller ones usually improves results.",
			evidence, nil,
		))
	}
	return out
}

// detectContextUsage flags history where few prompts carry any context
// signal, sampling up to 5 offenders as evidence.
func detectContextUsage(records []storage.PromptRecord) []storage.Insight {
	if len(records) < shareMinRecords {
		return nil
	}

	withContext := 0
	var lacking []string
	for _, r := range records {
		if analysis.ContextDetector.Detect(r.Content) {
			withContext++
		} else if len(lacking) < 5 {
			lacking = append(lacking, r.ID)
		}
	}

	share := float64(withContext) / float64(len(records))
	if share >= 0.3 {
		return nil
	}

	return []storage.Insight{newInsight(
		"context_usage", "suggestion",
		"Prompts rarely include context",
		fmt.Sprintf("Only %.0f%% of recent prompts mention any background or situation. Leading with context raises answer relevance.", share*100),
		map[string]float64{
			"context_share": share,
			"total":         float64(len(records)),
		},
		lacking,
	)}
}

// detectLengthDistribution flags history skewed toward trivially short or
// unwieldy long prompts.
func detectLengthDistribution(records []storage.PromptRecord) []storage.Insight {
	if len(records) < shareMinRecords {
		return nil
	}

	short, long := 0, 0
	for _, r := range records {
		if len(r.Content) < 20 {
			short++
		}
		if len(r.Content) > 1000 {
			long++
		}
	}

	total := float64(len(records))
	shortShare := float64(short) / total
	longShare := float64(long) / total

	var out []storage.Insight
	if shortShare > 0.3 {
		out = append(out, newInsight(
			"length_distribution", "warning",
			"Many prompts are too short",
			fmt.Sprintf("%.0f%% of recent prompts are under 20 characters and likely too vague to answer well.", shortShare*100),
			map[string]float64{"short_share": shortShare, "total": total}, nil,
		))
	}
	if longShare > 0.2 {
		out = append(out, newInsight(
			"length_distribution", "info",
			"Many prompts are very long",
			fmt.Sprintf("%.0f%% of recent prompts exceed 1000 characters. Splitting them into focused requests usually helps.", longShare*100),
			map[string]float64{"long_share": longShare, "total": total}, nil,
		))
	}
	return out
}

// detectUsageFrequency flags unusually heavy daily usage, a hint that
// recurring prompts could be templated.
func detectUsageFrequency(records []storage.PromptRecord) []storage.Insight {
	if len(records) < frequencyMinimum {
		return nil
	}

	days := map[string]struct{}{}
	for _, r := range records {
		days[r.CreatedAt.UTC().Format("2006-01-02")] = struct{}{}
	}
	if len(days) == 0 {
		return nil
	}

	perDay := float64(len(records)) / float64(len(days))
	if perDay <= 50 {
		return nil
	}

	return []storage.Insight{newInsight(
		"usage_frequency", "info",
		"Heavy daily usage detected",
		fmt.Sprintf("You average %.0f prompts per day. Recurring requests are good candidates for reusable templates.", perDay),
		map[string]float64{
			"per_day": perDay,
			"days":    float64(len(days)),
			"total":   float64(len(records)),
		}, nil,
	)}
}

var stopWords = map[string]struct{}{
	"this": {}, "that": {}, "with": {}, "from": {}, "have": {}, "will": {},
	"your": {}, "about": {}, "what": {}, "when": {}, "where": {}, "which": {},
	"would": {}, "could": {}, "should": {}, "there": {}, "their": {},
	"then": {}, "than": {}, "them": {}, "these": {}, "those": {}, "were": {},
	"been": {}, "they": {}, "just": {}, "like": {}, "make": {}, "want": {},
	"need": {}, "please": {}, "into": {}, "some": {}, "more": {}, "also": {},
}

// detectVocabularyPatterns tokenizes all content and reports tokens
// recurring at least 3 times, most frequent first. Silent when nothing
// qualifies.
func detectVocabularyPatterns(records []storage.PromptRecord) []storage.Insight {
	freq := map[string]int{}
	for _, r := range records {
		for _, tok := range tokenize(r.Content) {
			freq[tok]++
		}
	}

	type tokenCount struct {
		token string
		count int
	}
	var recurring []tokenCount
	for tok, n := range freq {
		if n >= 3 {
			recurring = append(recurring, tokenCount{tok, n})
		}
	}
	if len(recurring) == 0 {
		return nil
	}

	sort.Slice(recurring, func(i, j int) bool {
		if recurring[i].count != recurring[j].count {
			return recurring[i].count > recurring[j].count
		}
		return recurring[i].token < recurring[j].token
	})
	if len(recurring) > 10 {
		recurring = recurring[:10]
	}

	evidence := make(map[string]float64, len(recurring))
	tokens := make([]string, len(recurring))
	for i, tc := range recurring {
		evidence[tc.token] = float64(tc.count)
		tokens[i] = tc.token
	}

	return []storage.Insight{newInsight(
		"pattern_detection", "info",
		"Recurring vocabulary in your prompts",
		"Frequent terms: "+strings.Join(tokens, ", ")+". Recurring themes may be worth a dedicated template or saved context.",
		evidence, nil,
	)}
}

// tokenize lowercases content, strips punctuation, drops stop words, and
// keeps tokens longer than 3 characters.
func tokenize(content string) []string {
	fields := strings.FieldsFunc(strings.ToLower(content), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	var out []string
	for _, f := range fields {
		if len(f) <= 3 {
			continue
		}
		if _, ok := stopWords[f]; ok {
			continue
		}
		out = append(out, f)
	}
	return out
}
