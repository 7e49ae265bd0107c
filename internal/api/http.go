package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/daneb/improver-mcp/internal/insights"
	"github.com/daneb/improver-mcp/internal/pipeline"
	"github.com/daneb/improver-mcp/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// AppDeps holds dependencies for the HTTP API.
type AppDeps struct {
	Store    *storage.Store
	Pipeline *pipeline.Pipeline
	Miner    *insights.Miner
	Token    string
}

// NewAppHandler returns the HTTP API. Everything except /health requires
// the bearer token.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/analyze", handleAnalyze(deps))
		r.Get("/prompts", handleListPrompts(deps))
		r.Get("/prompts/{id}", handleGetPrompt(deps))
		r.Post("/prompts/{id}/responses", handleAddResponse(deps))
		r.Get("/metrics/daily", handleDailyMetrics(deps))
		r.Get("/insights", handleListInsights(deps))
		r.Post("/insights/generate", handleGenerateInsights(deps))
		r.Post("/insights/{id}/acknowledge", handleAcknowledgeInsight(deps))
		r.Get("/stats", handleStats(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// AnalyzeRequest is the POST /analyze payload. Tags are stored as a
// comma-joined metadata attribute.
type AnalyzeRequest struct {
	Content        string            `json:"content"`
	Context        string            `json:"context"`
	ConversationID string            `json:"conversation_id"`
	Tags           []string          `json:"tags"`
	Metadata       map[string]string `json:"metadata"`
}

func handleAnalyze(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req AnalyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		metadata := req.Metadata
		if len(req.Tags) > 0 {
			if metadata == nil {
				metadata = make(map[string]string)
			}
			metadata["tags"] = strings.Join(req.Tags, ",")
		}

		result, err := deps.Pipeline.AnalyzeAndStore(r.Context(), pipeline.Request{
			Content:        req.Content,
			Context:        req.Context,
			ConversationID: req.ConversationID,
			Metadata:       metadata,
		})
		if errors.Is(err, storage.ErrValidation) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "content must not be blank")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "analysis failed: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}
}

// promptJSON is the wire form of a stored prompt.
type promptJSON struct {
	ID             string          `json:"id"`
	Content        string          `json:"content"`
	Context        string          `json:"context,omitempty"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Metadata       json.RawMessage `json:"metadata"`
	CreatedAt      string          `json:"created_at"`
	QualityScore   *float64        `json:"quality_score,omitempty"`
	Complexity     *string         `json:"complexity,omitempty"`
	Technique      *string         `json:"technique,omitempty"`
}

func toPromptJSON(p storage.PromptRecord) promptJSON {
	return promptJSON{
		ID:             p.ID,
		Content:        p.Content,
		Context:        p.Context,
		ConversationID: p.ConversationID,
		Metadata:       json.RawMessage(p.MetadataJSON),
		CreatedAt:      p.CreatedAt.Format(time.RFC3339),
		QualityScore:   p.QualityScore,
		Complexity:     p.Complexity,
		Technique:      p.Technique,
	}
}

func handleListPrompts(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)

		records, err := deps.Store.ListRecent(limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list prompts: %v", err)
			return
		}

		out := make([]promptJSON, len(records))
		for i, p := range records {
			out[i] = toPromptJSON(p)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}
}

// responseJSON is the wire form of a stored response.
type responseJSON struct {
	ID         string `json:"id"`
	PromptID   string `json:"prompt_id"`
	Content    string `json:"content,omitempty"`
	UserRating *int   `json:"user_rating,omitempty"`
	CreatedAt  string `json:"created_at"`
}

func handleGetPrompt(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		record, err := deps.Store.GetPrompt(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "prompt not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get prompt: %v", err)
			return
		}

		responses, err := deps.Store.GetResponsesByPrompt(id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get responses: %v", err)
			return
		}

		out := struct {
			promptJSON
			Responses []responseJSON `json:"responses"`
		}{promptJSON: toPromptJSON(record), Responses: make([]responseJSON, len(responses))}
		for i, resp := range responses {
			out.Responses[i] = responseJSON{
				ID:         resp.ID,
				PromptID:   resp.PromptID,
				Content:    resp.Content,
				UserRating: resp.UserRating,
				CreatedAt:  resp.CreatedAt.Format(time.RFC3339),
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}
}

// AddResponseRequest is the POST /prompts/{id}/responses payload.
type AddResponseRequest struct {
	Content    string `json:"content"`
	UserRating *int   `json:"user_rating"`
}

func handleAddResponse(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req AddResponseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.UserRating != nil && (*req.UserRating < 1 || *req.UserRating > 5) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_rating must be between 1 and 5")
			return
		}

		respID, err := deps.Store.SaveResponse(storage.ResponseRecord{
			PromptID:   id,
			Content:    req.Content,
			UserRating: req.UserRating,
		})
		if errors.Is(err, storage.ErrForeignKey) {
			httpError(w, http.StatusNotFound, "not_found", "prompt not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save response: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"id": respID})
	}
}

func handleDailyMetrics(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days := parseIntParam(r, "days", 30, 365)

		metrics, err := deps.Store.QualityMetricsByDay(days)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to compute metrics: %v", err)
			return
		}
		if metrics == nil {
			metrics = []storage.DayMetric{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(metrics)
	}
}

// insightJSON is the wire form of an insight; the JSON-text columns are
// inlined rather than double-encoded.
type insightJSON struct {
	ID           string          `json:"id"`
	CreatedAt    string          `json:"created_at"`
	Type         string          `json:"type"`
	Severity     string          `json:"severity"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Evidence     json.RawMessage `json:"evidence"`
	PromptIDs    json.RawMessage `json:"prompt_ids"`
	Acknowledged bool            `json:"acknowledged"`
}

func toInsightJSON(in storage.Insight) insightJSON {
	return insightJSON{
		ID:           in.ID,
		CreatedAt:    in.CreatedAt.Format(time.RFC3339),
		Type:         in.Type,
		Severity:     in.Severity,
		Title:        in.Title,
		Description:  in.Description,
		Evidence:     json.RawMessage(in.EvidenceJSON),
		PromptIDs:    json.RawMessage(in.PromptIDsJSON),
		Acknowledged: in.Acknowledged,
	}
}

func handleListInsights(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := deps.Store.ListUnacknowledgedInsights()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list insights: %v", err)
			return
		}

		out := make([]insightJSON, len(list))
		for i, in := range list {
			out[i] = toInsightJSON(in)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}
}

func handleGenerateInsights(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		generated, err := deps.Miner.Run(r.Context())
		if errors.Is(err, insights.ErrAlreadyRunning) {
			httpError(w, http.StatusConflict, "conflict", "insight generation already in progress")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "insight generation failed: %v", err)
			return
		}

		out := make([]insightJSON, len(generated))
		for i, in := range generated {
			out[i] = toInsightJSON(in)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}
}

func handleAcknowledgeInsight(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		err := deps.Store.AcknowledgeInsight(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "insight not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to acknowledge insight: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "acknowledged"})
	}
}

func handleStats(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := deps.Store.GetStats()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to compute stats: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
