// Package pipeline orchestrates the analyze-and-store flow: run the
// heuristic analyzer over incoming text, persist the record, then attach
// the analysis results to it.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/daneb/improver-mcp/internal/analysis"
	"github.com/daneb/improver-mcp/internal/storage"
)

// Request is one piece of text to analyze, with optional surrounding
// metadata.
type Request struct {
	Content        string
	Context        string
	ConversationID string
	Metadata       map[string]string
}

// Result is the stored outcome of one analysis pass.
type Result struct {
	ID           string           `json:"id"`
	QualityScore float64          `json:"quality_score"`
	Clarity      float64          `json:"clarity"`
	Complexity   string           `json:"complexity"`
	Technique    string           `json:"technique"`
	Rationale    string           `json:"rationale"`
	Issues       []analysis.Issue `json:"issues"`
	DurationMs   int64            `json:"duration_ms"`
}

// Store is the slice of the storage surface the pipeline needs.
type Store interface {
	SavePrompt(storage.PromptRecord) (string, error)
	UpdateAnalysis(id string, qualityScore float64, complexity, technique string) error
}

// Pipeline runs analysis and persistence as one flow.
type Pipeline struct {
	store  Store
	logger *slog.Logger
}

// New creates a Pipeline over the given store.
func New(store Store) *Pipeline {
	return &Pipeline{store: store, logger: slog.Default()}
}

// AnalyzeAndStore validates the request, analyzes its content, saves the
// record, and attaches the analysis to it. The record is written before
// the analysis fields; a failure attaching them leaves a stored prompt
// with null analysis, which later passes treat as unscored.
func (p *Pipeline) AnalyzeAndStore(ctx context.Context, req Request) (Result, error) {
	start := time.Now()

	if strings.TrimSpace(req.Content) == "" {
		return Result{}, fmt.Errorf("analyzing prompt: %w", storage.ErrValidation)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	a := analysis.Analyze(req.Content)

	id, err := p.store.SavePrompt(storage.PromptRecord{
		Content:        req.Content,
		Context:        req.Context,
		ConversationID: req.ConversationID,
		MetadataJSON:   encodeMetadata(req.Metadata),
	})
	if err != nil {
		return Result{}, fmt.Errorf("saving prompt: %w", err)
	}

	if err := p.store.UpdateAnalysis(id, a.QualityScore, string(a.Complexity), a.Technique); err != nil {
		return Result{}, fmt.Errorf("attaching analysis to prompt %s: %w", id, err)
	}

	result := Result{
		ID:           id,
		QualityScore: a.QualityScore,
		Clarity:      a.Clarity,
		Complexity:   string(a.Complexity),
		Technique:    a.Technique,
		Rationale:    a.Rationale,
		Issues:       a.Issues,
		DurationMs:   time.Since(start).Milliseconds(),
	}

	p.logger.Debug("analysis stored",
		"id", id,
		"quality", result.QualityScore,
		"complexity", result.Complexity,
		"technique", result.Technique,
	)
	return result, nil
}

func encodeMetadata(meta map[string]string) string {
	if len(meta) == 0 {
		return "{}"
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return "{}"
	}
	return string(b)
}
