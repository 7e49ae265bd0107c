package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/daneb/improver-mcp/internal/config"
	"github.com/daneb/improver-mcp/internal/extract"
	"github.com/daneb/improver-mcp/internal/pipeline"
)

// --- analyze ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze [text]",
	Short: "Analyze a prompt and store the result",
	Long: `Analyze a prompt and store the result.

Examples:
  improver analyze "Write a function that parses RFC 3339 timestamps"
  improver analyze --file ./prompt.txt --context "code review session"
  improver analyze --url https://example.com/prompt.html`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		file, _ := cmd.Flags().GetString("file")
		url, _ := cmd.Flags().GetString("url")
		promptContext, _ := cmd.Flags().GetString("context")
		conversation, _ := cmd.Flags().GetString("conversation")
		tagsStr, _ := cmd.Flags().GetString("tags")

		if text == "" && len(args) > 0 {
			text = strings.Join(args, " ")
		}

		sources := 0
		for _, s := range []string{text, file, url} {
			if s != "" {
				sources++
			}
		}
		if sources == 0 {
			return fmt.Errorf("provide prompt text, --file, or --url")
		}
		if sources > 1 {
			return fmt.Errorf("provide exactly one of prompt text, --file, or --url")
		}

		content := text
		switch {
		case file != "":
			extracted, err := extract.FromFile(file)
			if err != nil {
				return fmt.Errorf("reading file: %w", err)
			}
			content = extracted
		case url != "":
			extracted, err := extract.FromURL(cmd.Context(), url)
			if err != nil {
				return fmt.Errorf("fetching URL: %w", err)
			}
			content = extracted
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{"content": content}
		if promptContext != "" {
			req["context"] = promptContext
		}
		if conversation != "" {
			req["conversation_id"] = conversation
		}
		if tagsStr != "" {
			tags := strings.Split(tagsStr, ",")
			for i := range tags {
				tags[i] = strings.TrimSpace(tags[i])
			}
			req["tags"] = tags
		}

		resp, err := client.post(cmd.Context(), "/analyze", req)
		if err != nil {
			return err
		}

		var result pipeline.Result
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printResult(result)
		return nil
	},
}

func printResult(result pipeline.Result) {
	fmt.Printf("\n%s %.1f / 10\n", colorize(colorBold, "Quality:"), result.QualityScore)
	fmt.Printf("%s %.1f / 10\n", colorize(colorBold, "Clarity:"), result.Clarity)
	fmt.Printf("%s %s\n", colorize(colorBold, "Complexity:"), result.Complexity)
	fmt.Printf("%s %s\n", colorize(colorBold, "Technique:"), result.Technique)
	if result.Rationale != "" {
		fmt.Printf("%s %s\n", colorize(colorBold, "Rationale:"), result.Rationale)
	}

	if len(result.Issues) == 0 {
		fmt.Printf("\n%s\n", colorize(colorGreen, "No issues found."))
		return
	}

	fmt.Printf("\n%s\n", colorize(colorBold, "Issues:"))
	for _, issue := range result.Issues {
		sev := string(issue.Severity)
		fmt.Printf("  %s %s\n", colorize(severityColor(sev), "["+sev+"]"), issue.Description)
	}
}

func init() {
	analyzeCmd.Flags().String("text", "", "prompt text to analyze")
	analyzeCmd.Flags().String("file", "", "file to extract prompt text from (pdf, html, or plain text)")
	analyzeCmd.Flags().String("url", "", "URL to fetch prompt text from")
	analyzeCmd.Flags().String("context", "", "surrounding context for the prompt")
	analyzeCmd.Flags().String("conversation", "", "conversation id to group prompts")
	analyzeCmd.Flags().String("tags", "", "comma-separated tags stored with the prompt")
}

// --- recent ---

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List recently analyzed prompts",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/prompts?limit=%d", limit))
		if err != nil {
			return err
		}

		var prompts []struct {
			ID           string   `json:"id"`
			Content      string   `json:"content"`
			CreatedAt    string   `json:"created_at"`
			QualityScore *float64 `json:"quality_score"`
		}
		if err := decodeJSON(resp, &prompts); err != nil {
			return err
		}

		if len(prompts) == 0 {
			fmt.Println("No prompts found.")
			return nil
		}

		for _, p := range prompts {
			score := "  -"
			if p.QualityScore != nil {
				score = fmt.Sprintf("%.1f", *p.QualityScore)
			}
			fmt.Printf("%s  %s  %s  %s\n",
				colorize(colorCyan, p.ID[:8]),
				p.CreatedAt,
				score,
				truncate(p.Content, 80),
			)
		}
		return nil
	},
}

func init() {
	recentCmd.Flags().Int("limit", 20, "maximum number of prompts to list")
}

// --- insights ---

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "View and manage usage insights",
}

type insightView struct {
	ID          string `json:"id"`
	CreatedAt   string `json:"created_at"`
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func printInsights(list []insightView) {
	if len(list) == 0 {
		fmt.Println("No open insights.")
		return
	}

	for _, in := range list {
		fmt.Printf("\n%s %s %s\n",
			colorize(severityColor(in.Severity), "["+in.Severity+"]"),
			colorize(colorBold, in.Title),
			colorize(colorCyan, "("+in.ID[:8]+")"),
		)
		if in.Description != "" {
			fmt.Printf("  %s\n", in.Description)
		}
	}
}

var insightsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List unacknowledged insights",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/insights")
		if err != nil {
			return err
		}

		var list []insightView
		if err := decodeJSON(resp, &list); err != nil {
			return err
		}

		printInsights(list)
		return nil
	},
}

var insightsGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run insight mining over recent history now",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/insights/generate", nil)
		if err != nil {
			return err
		}

		var list []insightView
		if err := decodeJSON(resp, &list); err != nil {
			return err
		}

		printSuccess("Generated %d insight(s)", len(list))
		printInsights(list)
		return nil
	},
}

var insightsAckCmd = &cobra.Command{
	Use:   "ack <id>",
	Short: "Acknowledge an insight so it stops appearing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/insights/"+args[0]+"/acknowledge", nil)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Acknowledged insight %s", args[0])
		return nil
	},
}

func init() {
	insightsCmd.AddCommand(insightsListCmd)
	insightsCmd.AddCommand(insightsGenerateCmd)
	insightsCmd.AddCommand(insightsAckCmd)
}

// --- stats ---

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show usage statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/stats")
		if err != nil {
			return err
		}

		var stats struct {
			TotalCount             int            `json:"total_count"`
			TodayCount             int            `json:"today_count"`
			AverageQuality         float64        `json:"average_quality"`
			ComplexityDistribution map[string]int `json:"complexity_distribution"`
		}
		if err := decodeJSON(resp, &stats); err != nil {
			return err
		}

		printStatus("Prompts", "%d total, %d today", stats.TotalCount, stats.TodayCount)
		printStatus("Avg quality", "%.1f / 10", stats.AverageQuality)
		for _, level := range []string{"simple", "moderate", "complex"} {
			if n, ok := stats.ComplexityDistribution[level]; ok {
				printStatus(strings.ToUpper(level[:1])+level[1:], "%d", n)
			}
		}
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the data directory path",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		fmt.Println(cfg.Storage.DataDir)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
