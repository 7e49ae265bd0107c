package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/daneb/improver-mcp/internal/insights"
	"github.com/daneb/improver-mcp/internal/pipeline"
	"github.com/daneb/improver-mcp/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store    *storage.Store
	Pipeline *pipeline.Pipeline
	Miner    *insights.Miner
}

// NewMCPServer creates an MCP server with all improver tools and resources
// registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"improver",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("improver — local prompt quality analyzer: score prompts, track history, and surface usage insights."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("analyze_prompt",
			mcp.WithDescription("Analyze a prompt for quality, complexity, and a recommended prompting technique, and store the result."),
			mcp.WithString("content", mcp.Description("The prompt text to analyze"), mcp.Required()),
			mcp.WithString("context", mcp.Description("Optional surrounding context for the prompt")),
			mcp.WithString("conversation_id", mcp.Description("Optional conversation the prompt belongs to")),
		),
		mcpAnalyzePrompt(deps),
	)

	s.AddTool(
		mcp.NewTool("get_recent_prompts",
			mcp.WithDescription("List recently analyzed prompts with their quality scores."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 10)")),
		),
		mcpGetRecentPrompts(deps),
	)

	s.AddTool(
		mcp.NewTool("get_insights",
			mcp.WithDescription("List unacknowledged insights mined from prompt history."),
		),
		mcpGetInsights(deps),
	)

	s.AddTool(
		mcp.NewTool("generate_insights",
			mcp.WithDescription("Run insight mining over recent prompt history now."),
		),
		mcpGenerateInsights(deps),
	)

	s.AddTool(
		mcp.NewTool("usage_stats",
			mcp.WithDescription("Summarize prompt volume, average quality, and complexity distribution."),
		),
		mcpUsageStats(deps),
	)

	s.AddTool(
		mcp.NewTool("acknowledge_insight",
			mcp.WithDescription("Mark an insight as acknowledged so it stops appearing in listings."),
			mcp.WithString("id", mcp.Description("Insight id"), mcp.Required()),
		),
		mcpAcknowledgeInsight(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"insights://unacknowledged",
			"Unacknowledged Insights",
			mcp.WithResourceDescription("Insights not yet acknowledged, newest first"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceInsights(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"stats://summary",
			"Usage Summary",
			mcp.WithResourceDescription("Prompt volume and quality summary as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceStats(deps),
	)

	return s
}

func mcpAnalyzePrompt(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		content, err := req.RequireString("content")
		if err != nil {
			return mcpError("content is required"), nil
		}

		result, err := deps.Pipeline.AnalyzeAndStore(ctx, pipeline.Request{
			Content:        content,
			Context:        req.GetString("context", ""),
			ConversationID: req.GetString("conversation_id", ""),
		})
		if errors.Is(err, storage.ErrValidation) {
			return mcpError("content must not be blank"), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("analysis failed: %v", err)), nil
		}

		b, err := json.Marshal(result)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetRecentPrompts(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 10)
		if limit <= 0 {
			limit = 10
		}
		if limit > 100 {
			limit = 100
		}

		records, err := deps.Store.ListRecent(limit, 0)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list prompts: %v", err)), nil
		}
		if len(records) == 0 {
			return mcpText("[]"), nil
		}

		type promptSummary struct {
			ID           string   `json:"id"`
			CreatedAt    string   `json:"created_at"`
			Content      string   `json:"content"`
			QualityScore *float64 `json:"quality_score,omitempty"`
			Complexity   *string  `json:"complexity,omitempty"`
			Technique    *string  `json:"technique,omitempty"`
		}

		summaries := make([]promptSummary, len(records))
		for i, p := range records {
			content := p.Content
			if utf8.RuneCountInString(content) > 200 {
				runes := []rune(content)
				content = string(runes[:200]) + "..."
			}
			summaries[i] = promptSummary{
				ID:           p.ID,
				CreatedAt:    p.CreatedAt.Format(time.RFC3339),
				Content:      content,
				QualityScore: p.QualityScore,
				Complexity:   p.Complexity,
				Technique:    p.Technique,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal prompts: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetInsights(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		list, err := deps.Store.ListUnacknowledgedInsights()
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list insights: %v", err)), nil
		}
		return marshalInsights(list)
	}
}

func mcpGenerateInsights(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		generated, err := deps.Miner.Run(ctx)
		if errors.Is(err, insights.ErrAlreadyRunning) {
			return mcpError("insight generation already in progress"), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("insight generation failed: %v", err)), nil
		}
		return marshalInsights(generated)
	}
}

func marshalInsights(list []storage.Insight) (*mcp.CallToolResult, error) {
	if len(list) == 0 {
		return mcpText("[]"), nil
	}
	out := make([]insightJSON, len(list))
	for i, in := range list {
		out[i] = toInsightJSON(in)
	}
	b, err := json.Marshal(out)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal insights: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpUsageStats(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		stats, err := deps.Store.GetStats()
		if err != nil {
			return mcpError(fmt.Sprintf("failed to compute stats: %v", err)), nil
		}
		b, err := json.Marshal(stats)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal stats: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAcknowledgeInsight(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		err = deps.Store.AcknowledgeInsight(id)
		if errors.Is(err, storage.ErrNotFound) {
			return mcpError(fmt.Sprintf("insight %s not found", id)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to acknowledge insight: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Acknowledged insight %s", id)), nil
	}
}

func mcpResourceInsights(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		list, err := deps.Store.ListUnacknowledgedInsights()
		if err != nil {
			return nil, fmt.Errorf("failed to list insights: %w", err)
		}

		out := make([]insightJSON, len(list))
		for i, in := range list {
			out[i] = toInsightJSON(in)
		}
		b, err := json.Marshal(out)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal insights: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpResourceStats(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		stats, err := deps.Store.GetStats()
		if err != nil {
			return nil, fmt.Errorf("failed to compute stats: %w", err)
		}

		b, err := json.Marshal(stats)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal stats: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
